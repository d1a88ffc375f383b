package auth

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/GehirnInc/crypt"
	_ "github.com/GehirnInc/crypt/apr1_crypt"
	_ "github.com/GehirnInc/crypt/md5_crypt"
	_ "github.com/GehirnInc/crypt/sha256_crypt"
	_ "github.com/GehirnInc/crypt/sha512_crypt"
	"golang.org/x/crypto/bcrypt"
)

const (
	prefixSHA   = "{SHA}"
	prefixPlain = "{PLAIN}"
)

// Verify checks password against a stored htpasswd password field.
func Verify(stored, password string) bool {
	switch {
	case strings.HasPrefix(stored, prefixSHA):
		return verifySHA(stored[len(prefixSHA):], password)

	case strings.HasPrefix(stored, prefixPlain):
		return equal(stored[len(prefixPlain):], password)

	case isBcrypt(stored):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil

	case crypt.IsHashSupported(stored):
		return crypt.NewFromHash(stored).Verify(stored, []byte(password)) == nil
	}

	// Anything that is not a recognized hash is a legacy unhashed password.
	return equal(stored, password)
}

// verifySHA compares base64(SHA-1(password)) with digest, exactly or with
// '=' padding removed from both.
func verifySHA(digest, password string) bool {
	sum := sha1.Sum([]byte(password))
	encoded := base64.StdEncoding.EncodeToString(sum[:])

	if equal(digest, encoded) {
		return true
	}
	return equal(strings.TrimRight(digest, "="), strings.TrimRight(encoded, "="))
}

func isBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
