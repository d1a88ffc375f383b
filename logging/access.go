// Package logging holds the server's log plumbing: the append-only access log
// and the construction of the operational slog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"
)

const TimestampLayout = "2006-01-02 15:04:05"

// AccessLog appends lines to a file. A nil *AccessLog discards everything.
type AccessLog struct {
	mu         sync.Mutex
	out        io.Writer
	file       *os.File
	timestamps bool
	now        func() time.Time
}

func OpenAccessLog(path string, timestamps bool) (*AccessLog, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("logging: open access log: %w", err)
	}

	return &AccessLog{
		out:        file,
		file:       file,
		timestamps: timestamps,
		now:        time.Now,
	}, nil
}

// NewAccessLog writes to an arbitrary writer.
func NewAccessLog(w io.Writer, timestamps bool) *AccessLog {
	return &AccessLog{
		out:        w,
		timestamps: timestamps,
		now:        time.Now,
	}
}

// Append writes one line, prefixed with a timestamp when asked to.
func (l *AccessLog) Append(line string, timestamped bool) error {
	if l == nil {
		return nil
	}

	var b []byte
	if timestamped {
		b = l.now().AppendFormat(b, TimestampLayout)
		b = append(b, ' ')
	}
	b = append(b, line...)
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.out.Write(b)
	return err
}

// Event appends "<addr>:<port> - <event>" using the log's timestamp setting.
func (l *AccessLog) Event(addr string, port uint16, event string) error {
	if l == nil {
		return nil
	}

	return l.Append(FormatEvent(addr, port, event), l.timestamps)
}

// Dump appends a hex dump of data, one event line per 12 byte group.
func (l *AccessLog) Dump(addr string, port uint16, data []byte) error {
	if l == nil {
		return nil
	}

	for _, line := range HexDump(data) {
		if err := l.Event(addr, port, line); err != nil {
			return err
		}
	}
	return nil
}

func (l *AccessLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

func FormatEvent(addr string, port uint16, event string) string {
	return addr + ":" + strconv.FormatUint(uint64(port), 10) + " - " + event
}
