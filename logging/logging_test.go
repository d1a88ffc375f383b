package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/freekieb7/kiln/test"
)

func TestAppend(t *testing.T) {
	var out bytes.Buffer
	l := NewAccessLog(&out, true)
	l.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }

	test.NoError(t, l.Append("plain", false))
	test.NoError(t, l.Append("stamped", true))
	test.NoError(t, l.Event("10.0.0.1", 5555, "connect"))

	expected := "plain\n" +
		"2024-03-09 14:05:07 stamped\n" +
		"2024-03-09 14:05:07 10.0.0.1:5555 - connect\n"
	test.Equal(t, expected, out.String())
}

func TestNilAccessLogDiscards(t *testing.T) {
	var l *AccessLog

	test.NoError(t, l.Append("x", true))
	test.NoError(t, l.Event("a", 1, "b"))
	test.NoError(t, l.Dump("a", 1, []byte("b")))
	test.NoError(t, l.Close())
}

func TestOpenAccessLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")

	l, err := OpenAccessLog(path, false)
	test.NoError(t, err)
	test.NoError(t, l.Event("::1", 80, "request GET / HTTP/1.1"))
	test.NoError(t, l.Close())

	l, err = OpenAccessLog(path, false)
	test.NoError(t, err)
	test.NoError(t, l.Event("::1", 80, "response 200"))
	test.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	test.NoError(t, err)
	test.Equal(t, "::1:80 - request GET / HTTP/1.1\n::1:80 - response 200\n", string(data))
}

func TestHexDump(t *testing.T) {
	lines := HexDump([]byte("hello, world!\x00"))

	test.Equal(t, 2, len(lines))
	test.Equal(t, "68 65 6c 6c 6f 2c 20 77 6f 72 6c 64  hello, world", lines[0])
	test.Equal(t, "21 00"+strings.Repeat(" ", 30)+"  !.", lines[1])
	test.Equal(t, 0, len(HexDump(nil)))
}

func TestNewLoggerLevel(t *testing.T) {
	var out bytes.Buffer
	logger := NewLogger(Options{Level: "warn", Output: &out})

	logger.Info("hidden")
	logger.Warn("shown")

	test.True(t, !strings.Contains(out.String(), "hidden"), "info must be filtered at warn level")
	test.True(t, strings.Contains(out.String(), "shown"), "warn must be written")
	test.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	test.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
