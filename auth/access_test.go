package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/freekieb7/kiln/config"
	"github.com/freekieb7/kiln/logging"
	"github.com/freekieb7/kiln/test"
	"golang.org/x/crypto/bcrypt"
)

type headers map[string]string

func (h headers) Header(key string) (string, bool) {
	v, ok := h[strings.ToUpper(key)]
	return v, ok
}

func basic(payload string) headers {
	return headers{"AUTHORIZATION": "Basic " + payload}
}

const (
	aliceSecret  = "YWxpY2U6c2VjcmV0"
	aliceWrong   = "YWxpY2U6d3Jvbmc="
	bobHunter2   = "Ym9iOmh1bnRlcjI="
	carolPlain   = "Y2Fyb2w6cGxhaW4="
	secretSHA    = "5en6G6MezRroT3XKqkdPOmY/BfQ="
	hunter2SHA   = "87u9ZqY9S/F0eUBXjsPQEDUw4h0="
	secretAPR1   = "$apr1$abcdefgh$h9FWgUz3n9YxylKLlR5SQ/"
	secretMD5    = "$1$saltsalt$9xy1btjgzLYfb7hivXtC//"
	secretSHA512 = "$6$saltsalt$TVLlQcbpFVof5W3Yz4DTP6gRstiNuHwwTt6GLc1E5n0U0aDehy0S5knV8wiOQSpT0Y77vwPZN.Pq.H91p5hVO1"
)

func configure(t *testing.T, credentials string) (*Access, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "htpasswd")
	test.NoError(t, os.WriteFile(path, []byte(credentials), 0600))

	cfg, err := config.FromString("[access]\nfile = " + path + "\nrealm = Members\n")
	test.NoError(t, err)

	a := New(logging.Discard())
	test.NoError(t, a.Configure(cfg))
	return a, path
}

func TestSHACredential(t *testing.T) {
	a, _ := configure(t, "alice:{SHA}"+secretSHA+"\n")

	test.True(t, a.Enabled(), "access control should be enabled")
	test.True(t, a.IsAuthorized(basic(aliceSecret)), "alice:secret should be authorized")
	test.True(t, !a.IsAuthorized(basic(aliceWrong)), "alice:wrong must be rejected")
	test.True(t, !a.IsAuthorized(headers{}), "missing header must be rejected")
}

func TestSHAPaddingStripped(t *testing.T) {
	a, _ := configure(t, "alice:{SHA}"+strings.TrimRight(secretSHA, "=")+"\n")

	test.True(t, a.IsAuthorized(basic(aliceSecret)), "unpadded digest should match")
}

func TestCredentialForms(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	test.NoError(t, err)

	testCases := []struct {
		name   string
		stored string
		pass   string
		want   bool
	}{
		{"sha", "{SHA}" + hunter2SHA, "hunter2", true},
		{"plain", "{PLAIN}plain", "plain", true},
		{"plain wrong", "{PLAIN}plain", "plains", false},
		{"bcrypt", string(hash), "hunter2", true},
		{"bcrypt wrong", string(hash), "hunter3", false},
		{"bcrypt literal hash", string(hash), string(hash), false},
		{"apr1", secretAPR1, "secret", true},
		{"apr1 wrong", secretAPR1, "Secret", false},
		{"md5", secretMD5, "secret", true},
		{"sha512", secretSHA512, "secret", true},
		{"legacy literal", "letmein", "letmein", true},
		{"legacy literal wrong", "letmein", "letmeout", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			test.Equal(t, tc.want, Verify(tc.stored, tc.pass))
		})
	}
}

func TestFirstUserEntryDecides(t *testing.T) {
	a, _ := configure(t, "# members\n\n; old\nbob:{SHA}"+hunter2SHA+"\ncarol:{PLAIN}plain\nbob:{PLAIN}hunter2\n")

	test.True(t, a.IsAuthorized(basic(bobHunter2)), "bob should be authorized")
	test.True(t, a.IsAuthorized(basic(carolPlain)), "carol should be authorized")
	test.True(t, !a.IsAuthorized(basic(aliceSecret)), "unknown user must be rejected")
}

func TestSchemeAndPayload(t *testing.T) {
	a, _ := configure(t, "alice:{PLAIN}secret\n")

	test.True(t, a.IsAuthorized(headers{"AUTHORIZATION": "basic " + aliceSecret}), "scheme is case-insensitive")
	test.True(t, !a.IsAuthorized(headers{"AUTHORIZATION": "Bearer " + aliceSecret}), "other schemes must be rejected")
	test.True(t, !a.IsAuthorized(headers{"AUTHORIZATION": "Basic !!!"}), "bad base64 must be rejected")
	test.True(t, !a.IsAuthorized(headers{"AUTHORIZATION": "Basic YWxpY2U="}), "payload without colon must be rejected")
}

func TestReloadOnModification(t *testing.T) {
	a, path := configure(t, "alice:{PLAIN}secret\n")
	test.True(t, a.IsAuthorized(basic(aliceSecret)), "alice should be authorized")

	test.NoError(t, os.WriteFile(path, []byte("bob:{PLAIN}hunter2\n"), 0600))
	later := time.Now().Add(time.Hour)
	test.NoError(t, os.Chtimes(path, later, later))

	test.True(t, !a.IsAuthorized(basic(aliceSecret)), "alice was removed")
	test.True(t, a.IsAuthorized(basic(bobHunter2)), "bob was added")
}

func TestFailedReloadKeepsSet(t *testing.T) {
	a, path := configure(t, "alice:{PLAIN}secret\n")

	test.NoError(t, os.Remove(path))
	test.True(t, a.Refresh() != nil, "refresh of a missing file should fail")
	test.True(t, a.IsAuthorized(basic(aliceSecret)), "previous set must stay active")
}

func TestDisabled(t *testing.T) {
	cfg, err := config.FromString("[settings]\nport = 80\n")
	test.NoError(t, err)

	a := New(logging.Discard())
	test.NoError(t, a.Configure(cfg))

	test.True(t, !a.Enabled(), "no file means disabled")
	test.True(t, a.IsAuthorized(headers{}), "disabled access authorizes everything")
}

func TestChallenge(t *testing.T) {
	a, _ := configure(t, "alice:{PLAIN}secret\n")

	test.Equal(t, `Basic realm="Members"`, a.Challenge())
	test.Equal(t, "Members", a.Realm())

	cfg, err := config.FromString("[access]\nrealm = say \"hi\"\n")
	test.NoError(t, err)
	test.NoError(t, a.Configure(cfg))
	test.Equal(t, `Basic realm="say \"hi\""`, a.Challenge())
}

func TestParseCredentials(t *testing.T) {
	entries, err := ParseCredentials(strings.NewReader("a:1\n  \n#c:3\n;d:4\nnocolon\nb:x:y\n"))
	test.NoError(t, err)

	test.Equal(t, 2, len(entries))
	test.Equal(t, Entry{User: "a", Password: "1"}, entries[0])
	test.Equal(t, Entry{User: "b", Password: "x:y"}, entries[1])
}
