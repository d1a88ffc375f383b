// Package auth implements HTTP Basic access control backed by an
// htpasswd-style credential file.
package auth

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/freekieb7/kiln/config"
)

const (
	DefaultRealm = "Restricted"

	sectionAccess = "access"
)

// HeaderSource is anything headers can be looked up on, such as a parsed
// request.
type HeaderSource interface {
	Header(key string) (string, bool)
}

// Access holds the active credential set. The set is replaced as a whole
// and only after a complete parse, so readers never see a partial file.
type Access struct {
	logger *slog.Logger

	mu      sync.RWMutex
	path    string
	realm   string
	modTime time.Time
	loaded  bool
	entries []Entry
}

func New(logger *slog.Logger) *Access {
	if logger == nil {
		logger = slog.Default()
	}

	return &Access{logger: logger, realm: DefaultRealm}
}

// Configure reads [access] file and realm. Without a file access control is
// disabled and every request is authorized.
func (a *Access) Configure(cfg config.Reader) error {
	path := config.String(cfg, sectionAccess, "file", "")
	realm := config.String(cfg, sectionAccess, "realm", DefaultRealm)

	a.mu.Lock()
	a.path = path
	a.realm = realm
	a.modTime = time.Time{}
	a.loaded = false
	a.entries = nil
	a.mu.Unlock()

	if path == "" {
		return nil
	}
	return a.Refresh()
}

func (a *Access) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.path != ""
}

func (a *Access) Realm() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.realm
}

// Refresh reloads the credential file when its modification time changed.
// On failure the previous set stays active.
func (a *Access) Refresh() error {
	a.mu.RLock()
	path, modTime, loaded := a.path, a.modTime, a.loaded
	a.mu.RUnlock()

	if path == "" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("auth: stat credentials: %w", err)
	}
	if loaded && info.ModTime().Equal(modTime) {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("auth: open credentials: %w", err)
	}
	entries, err := ParseCredentials(file)
	file.Close()
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.path == path {
		a.entries = entries
		a.modTime = info.ModTime()
		a.loaded = true
	}
	a.mu.Unlock()

	a.logger.Info("credentials loaded", "path", path, "entries", len(entries))
	return nil
}

// IsAuthorized checks the Basic credentials carried by h. The first entry
// with a matching user name decides.
func (a *Access) IsAuthorized(h HeaderSource) bool {
	if !a.Enabled() {
		return true
	}

	if err := a.Refresh(); err != nil {
		a.logger.Warn("credential refresh failed", "error", err)
	}

	user, password, ok := basicCredentials(h)
	if !ok {
		return false
	}

	a.mu.RLock()
	entries := a.entries
	a.mu.RUnlock()

	for _, entry := range entries {
		if entry.User == user {
			return Verify(entry.Password, password)
		}
	}
	return false
}

func basicCredentials(h HeaderSource) (string, string, bool) {
	value, ok := h.Header("Authorization")
	if !ok {
		return "", "", false
	}

	scheme, payload, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return "", "", false
	}

	payload = strings.TrimSpace(payload)
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", "", false
		}
	}

	return strings.Cut(string(decoded), ":")
}

// Challenge returns the WWW-Authenticate value for the configured realm.
func (a *Access) Challenge() string {
	realm := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(a.Realm())
	return `Basic realm="` + realm + `"`
}
