package auth

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Entry is one line of a credential file.
type Entry struct {
	User string
	// Password is the stored form: a crypt hash, "{SHA}" plus a base64
	// SHA-1 digest, "{PLAIN}" plus the password, or a bare password.
	Password string
}

// ParseCredentials reads "user:password" lines. Blank lines and lines
// starting with '#' or ';' are skipped, as are lines without a ':'.
func ParseCredentials(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" || text[0] == '#' || text[0] == ';' {
			continue
		}

		user, password, found := strings.Cut(text, ":")
		if !found || user == "" {
			continue
		}

		entries = append(entries, Entry{User: user, Password: password})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("auth: reading credentials at line %d: %w", line, err)
	}

	return entries, nil
}
