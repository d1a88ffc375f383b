package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/freekieb7/kiln/test"
)

const sample = `
[settings]
port = 8081
address = 127.0.0.1
secure = yes
poll = 50ms

[path]
default = /srv/www
Example.com = /srv/example

[mime-types]
html = text/html
ip = internal
`

func TestValue(t *testing.T) {
	store, err := FromString(sample)
	test.NoError(t, err)

	v, ok := store.Value("settings", "port")
	test.True(t, ok, "port should exist")
	test.Equal(t, "8081", v)

	v, ok = store.Value("PATH", "example.com")
	test.True(t, ok, "lookups are case-insensitive")
	test.Equal(t, "/srv/example", v)

	_, ok = store.Value("path", "missing")
	test.True(t, !ok, "missing key must not be found")

	_, ok = store.Value("nope", "port")
	test.True(t, !ok, "missing section must not be found")
}

func TestHelpers(t *testing.T) {
	store, err := FromString(sample)
	test.NoError(t, err)

	test.Equal(t, 8081, Int(store, "settings", "port", 80))
	test.Equal(t, 64, Int(store, "settings", "workers", 64))
	test.Equal(t, 80, Int(store, "settings", "address", 80))
	test.Equal(t, true, Bool(store, "settings", "secure", false))
	test.Equal(t, false, Bool(store, "settings", "missing", false))
	test.Equal(t, 50*time.Millisecond, Duration(store, "settings", "poll", time.Second))
	test.Equal(t, "fallback", String(store, "settings", "user", "fallback"))
}

func TestPort(t *testing.T) {
	store, err := FromString("[settings]\nport = 8081\nhigh = 70000\nnegative = -1\nname = http\nzero = 0\n")
	test.NoError(t, err)

	port, err := Port(store, "settings", "port", 80)
	test.NoError(t, err)
	test.Equal(t, uint16(8081), port)

	port, err = Port(store, "settings", "missing", 80)
	test.NoError(t, err)
	test.Equal(t, uint16(80), port)

	port, err = Port(store, "settings", "zero", 80)
	test.NoError(t, err)
	test.Equal(t, uint16(0), port)

	for _, key := range []string{"high", "negative", "name"} {
		_, err := Port(store, "settings", key, 80)
		test.ErrorIs(t, err, ErrInvalidPort)
	}
}

func TestLoadAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiln.ini")
	test.NoError(t, os.WriteFile(path, []byte("[settings]\nport = 1\n"), 0644))

	store, err := Load(path)
	test.NoError(t, err)
	test.Equal(t, 1, Int(store, "settings", "port", 0))

	test.NoError(t, os.WriteFile(path, []byte("[settings]\nport = 2\n"), 0644))
	test.NoError(t, store.Reload())
	test.Equal(t, 2, Int(store, "settings", "port", 0))

	test.NoError(t, os.Remove(path))
	if err := store.Reload(); err == nil {
		t.Fatal("expected reload of a missing file to fail")
	}
	test.Equal(t, 2, Int(store, "settings", "port", 0))
}

func TestLoadWithoutPath(t *testing.T) {
	_, err := Load("")
	test.ErrorIs(t, err, ErrNoPath)
}
