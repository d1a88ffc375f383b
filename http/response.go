package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/freekieb7/kiln/buffer"
	"github.com/freekieb7/kiln/filesystem"
)

type ResourceKind uint8

const (
	ResourceNone ResourceKind = iota
	ResourceFile
	ResourceDirectory
	ResourceInternal
)

// Resource is what a request URI resolved to.
type Resource struct {
	Kind ResourceKind
	// Path is the location on disk for files and directories.
	Path string
	// Name is the cleaned request path, used as listing title.
	Name string
	Size int64
}

type BodyKind uint8

const (
	BodyNone BodyKind = iota
	BodyFile
	BodyPayload
	BodyListing
)

// Plan is the outcome of Decide: what the status line and headers say and
// which bytes follow them.
type Plan struct {
	Status      uint16
	ContentType string
	// Size is the full resource size, used in Content-Range.
	Size int64
	// Offset and Length select the streamed window.
	Offset int64
	Length int64
	Body   BodyKind
	Ranged bool
}

var ErrResponseAborted = errors.New("http: connection lost while responding")

func isReadMethod(method string) bool {
	return method == MethodGet || method == MethodHead
}

func isKnownVersion(version string) bool {
	return version == Version10 || version == Version11
}

// Decide picks the response for req. The first matching rule wins:
// missing resource, timeout, servable content, directory listing, and
// finally 405.
func Decide(req *Request, res Resource, mime string, listing bool) Plan {
	readMethod := isReadMethod(req.Method)

	switch {
	case res.Kind == ResourceNone && readMethod && len(req.Payload) == 0:
		return Plan{Status: StatusNotFound}

	case req.TimedOut || req.Version == "":
		return Plan{Status: StatusRequestTimeout}

	case (res.Kind == ResourceFile || res.Kind == ResourceInternal) && readMethod && isKnownVersion(req.Version) && mime != "":
		size := res.Size
		body := BodyFile
		if res.Kind == ResourceInternal {
			size = int64(len(req.Payload))
			body = BodyPayload
		}
		if req.Method == MethodHead {
			body = BodyNone
		}

		if req.Range.Requested() {
			start, end, ok := req.Range.Resolve(size)
			if !ok {
				return Plan{Status: StatusRequestedRangeNotSatisfiable, Size: size, Ranged: true}
			}
			return Plan{
				Status:      StatusPartialContent,
				ContentType: mime,
				Size:        size,
				Offset:      start,
				Length:      end - start + 1,
				Body:        body,
				Ranged:      true,
			}
		}

		return Plan{Status: StatusOK, ContentType: mime, Size: size, Length: size, Body: body}

	case listing && res.Kind == ResourceDirectory && readMethod && isKnownVersion(req.Version):
		body := BodyListing
		if req.Method == MethodHead {
			body = BodyNone
		}
		return Plan{Status: StatusOK, ContentType: "text/html", Body: body, Length: -1}
	}

	return Plan{Status: StatusMethodNotAllowed}
}

// Responder writes planned responses. Bodies always pass through the
// caller's buffer, so memory use is bounded by its capacity.
type Responder struct {
	FS filesystem.Filesystem
}

// Send writes the status line, headers and body of plan to w. It returns
// the status actually sent, which is 404 when a listed directory vanished,
// and the number of body bytes written.
func (r Responder) Send(w io.Writer, buf *buffer.Buffer, req *Request, plan Plan, res Resource) (uint16, int64, error) {
	var listing []byte
	if plan.Status == StatusOK && res.Kind == ResourceDirectory {
		// Listings are rendered up front so HEAD and GET agree on the length.
		entries, err := r.FS.ListDirectory(res.Path)
		if err != nil {
			plan = Plan{Status: StatusNotFound}
		} else {
			listing = RenderListing(res.Name, entries)
			plan.Length = int64(len(listing))
			plan.Size = plan.Length
		}
	}

	discard(buf)
	if err := flushString(w, buf, string(responseHead(req.Version, plan))); err != nil {
		return plan.Status, 0, err
	}

	var (
		n   int64
		err error
	)
	switch plan.Body {
	case BodyFile:
		n, err = r.streamFile(w, buf, res.Path, plan.Offset, plan.Length)
	case BodyPayload:
		n, err = stream(w, buf, bytes.NewReader(req.Payload[plan.Offset:plan.Offset+plan.Length]), plan.Length)
	case BodyListing:
		n, err = stream(w, buf, bytes.NewReader(listing), int64(len(listing)))
	}

	return plan.Status, n, err
}

func (r Responder) streamFile(w io.Writer, buf *buffer.Buffer, path string, offset, length int64) (int64, error) {
	file, err := r.FS.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return 0, err
		}
	}

	return stream(w, buf, file, length)
}

// stream copies exactly length bytes from src to w: fill the buffer, drain
// it, repeat. A source that ends early is reported as io.ErrUnexpectedEOF.
func stream(w io.Writer, buf *buffer.Buffer, src io.Reader, length int64) (int64, error) {
	limited := io.LimitReader(src, length)

	var written int64
	for written < length {
		if _, err := buf.Fill(limited); err != nil && !errors.Is(err, io.EOF) {
			return written, err
		}
		if buf.Len() == 0 {
			return written, io.ErrUnexpectedEOF
		}

		n, err := buf.WriteTo(w)
		written += n
		if err != nil {
			return written, fmt.Errorf("%w: %w", ErrResponseAborted, err)
		}
	}

	return written, nil
}

func flushString(w io.Writer, buf *buffer.Buffer, s string) error {
	for len(s) > 0 {
		n, _ := buf.WriteString(s)
		s = s[n:]
		if _, err := buf.WriteTo(w); err != nil {
			return fmt.Errorf("%w: %w", ErrResponseAborted, err)
		}
	}
	return nil
}

func responseHead(version string, plan Plan) []byte {
	if version != Version10 {
		version = Version11
	}

	b := make([]byte, 0, 256)
	b = append(b, version...)
	b = append(b, ' ')
	b = appendInt(b, int64(plan.Status))
	b = append(b, ' ')
	b = append(b, StatusText(plan.Status)...)
	b = append(b, "\r\n"...)

	switch plan.Status {
	case StatusOK, StatusPartialContent:
		b = append(b, "Content-Type: "...)
		b = append(b, plan.ContentType...)
		b = append(b, "\r\n"...)
		if plan.Status == StatusPartialContent {
			b = append(b, "Content-Range: bytes "...)
			b = appendInt(b, plan.Offset)
			b = append(b, '-')
			b = appendInt(b, plan.Offset+plan.Length-1)
			b = append(b, '/')
			b = appendInt(b, plan.Size)
			b = append(b, "\r\n"...)
		}
		if plan.Length >= 0 {
			b = append(b, "Content-Length: "...)
			b = appendInt(b, plan.Length)
			b = append(b, "\r\n"...)
		}
		b = append(b, "Accept-Ranges: bytes\r\n"...)
	case StatusRequestedRangeNotSatisfiable:
		b = append(b, "Content-Range: bytes */"...)
		b = appendInt(b, plan.Size)
		b = append(b, "\r\nContent-Length: 0\r\n"...)
	case StatusMethodNotAllowed:
		b = append(b, "Allow: GET, HEAD\r\nContent-Length: 0\r\n"...)
	default:
		b = append(b, "Content-Length: 0\r\n"...)
	}

	b = append(b, "Connection: Close\r\n\r\n"...)
	return b
}

// WriteStatus sends a bodiless response with only the standard headers and
// any extra header lines given.
func WriteStatus(w io.Writer, version string, status uint16, extra ...Header) error {
	if version != Version10 {
		version = Version11
	}

	b := make([]byte, 0, 128)
	b = append(b, version...)
	b = append(b, ' ')
	b = appendInt(b, int64(status))
	b = append(b, ' ')
	b = append(b, StatusText(status)...)
	b = append(b, "\r\n"...)
	for _, h := range extra {
		b = append(b, h.Key...)
		b = append(b, ": "...)
		b = append(b, h.Value...)
		b = append(b, "\r\n"...)
	}
	b = append(b, "Content-Length: 0\r\nConnection: Close\r\n\r\n"...)

	_, err := w.Write(b)
	return err
}
