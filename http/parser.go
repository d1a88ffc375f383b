package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/freekieb7/kiln/buffer"
	"github.com/freekieb7/kiln/transport"
)

// Source is the part of a connection the parser reads from.
// *transport.Conn satisfies it.
type Source interface {
	ReadLine(b *buffer.Buffer, units int) bool
	ReadInto(b *buffer.Buffer, limit int) (int, error)
	Valid() bool
}

type parseState uint8

const (
	stateRequestLine parseState = iota
	stateHeaders
	stateBody
	stateDone
	stateTimedOut
)

// Parser reads one request. The zero value uses ReadRetries, MaxHeaders and
// MaxBodySize.
type Parser struct {
	Retries    int
	MaxHeaders int
	MaxBody    int
}

func (p Parser) retries() int {
	if p.Retries > 0 {
		return p.Retries
	}
	return ReadRetries
}

func (p Parser) maxHeaders() int {
	if p.MaxHeaders > 0 {
		return p.MaxHeaders
	}
	return MaxHeaders
}

func (p Parser) maxBody() int {
	if p.MaxBody > 0 {
		return p.MaxBody
	}
	return MaxBodySize
}

// Parse fills req from src using buf as line scratch space. It reports
// whether a complete request arrived in time; req.TimedOut is set otherwise.
// req is not reset first so the caller can keep the remote address on it.
func (p Parser) Parse(src Source, buf *buffer.Buffer, req *Request) bool {
	state := stateRequestLine
	retries := p.retries()
	misses := 0
	headers := 0
	length := 0

	for state != stateDone && state != stateTimedOut {
		switch state {
		case stateRequestLine:
			line, ok := readLine(src, buf, retries)
			if !ok {
				state = stateTimedOut
				continue
			}

			fields := strings.Fields(line)
			if len(fields) != 3 {
				req.Method, req.URI = "", ""
				if misses++; misses >= retries {
					state = stateTimedOut
				}
				continue
			}

			req.Method = toUpper(fields[0])
			req.URI = fields[1]
			req.Version = toUpper(fields[2])
			state = stateHeaders

		case stateHeaders:
			line, ok := readLine(src, buf, retries)
			if !ok {
				state = stateTimedOut
				continue
			}

			if line == "" || headers >= p.maxHeaders() {
				state = stateDone
				if length > 0 {
					state = stateBody
				}
				continue
			}
			headers++

			key, value, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			key = toUpper(strings.TrimSpace(key))
			value = strings.TrimSpace(value)
			req.HeaderList = append(req.HeaderList, Header{Key: key, Value: value})

			switch key {
			case headerContentLength:
				n, ok := parseUint(value)
				if !ok {
					req.ParseErr = fmt.Sprintf("invalid content length %q", value)
					n = 0
				}
				length = int(min(n, uint64(p.maxBody())))
			case headerRange:
				req.Range = ParseRange(value)
			}

		case stateBody:
			p.readBody(src, buf, req, length)
			state = stateDone
		}
	}

	if state == stateTimedOut {
		req.TimedOut = true
	}

	return req.Valid()
}

func (p Parser) readBody(src Source, buf *buffer.Buffer, req *Request, length int) {
	retries := p.retries()
	remaining := retries
	discard(buf)

	for len(req.Body) < length && remaining > 0 {
		n, err := src.ReadInto(buf, length-len(req.Body))
		if err != nil && !errors.Is(err, transport.ErrWouldBlock) {
			return
		}
		if n == 0 {
			remaining--
			continue
		}

		req.Body = append(req.Body, buf.Bytes()...)
		discard(buf)
		remaining = retries
	}
}

func readLine(src Source, buf *buffer.Buffer, units int) (string, bool) {
	discard(buf)
	if !src.ReadLine(buf, units) {
		return "", false
	}
	return string(buf.Bytes()), true
}

// discard empties buf without zeroing it.
func discard(buf *buffer.Buffer) {
	buf.TrimLeft(buf.Len())
}

// ParseRange tokenizes a Range header value on "bytes", '=', '-' and digit
// runs. The first number is the start and the second the end. Exactly one
// dash seen before the first number makes the start negative, and a running
// total of exactly two dashes before the second number makes the end
// negative, so "bytes=-3" is a suffix and "bytes=5--2" ends two bytes early.
// Anything else in the value means no range.
func ParseRange(value string) Range {
	var r Range

	dashes := 0
	numbers := 0
	s := strings.TrimSpace(value)

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '-':
			dashes++
			i++
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			n, ok := parseUint(s[i:j])
			if !ok || n > 1<<62 {
				return Range{}
			}
			i = j

			switch numbers {
			case 0:
				r.Start, r.StartSet = int64(n), true
				if dashes == 1 {
					r.Start = -r.Start
				}
			case 1:
				r.End, r.EndSet = int64(n), true
				if dashes == 2 {
					r.End = -r.End
				}
			}
			numbers++
		case c == '=' || c == ' ' || c == '\t':
			i++
		case len(s)-i >= 5 && equalFold(s[i:i+5], "bytes"):
			i += 5
		default:
			return Range{}
		}
	}

	return r
}
