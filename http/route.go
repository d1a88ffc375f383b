package http

import (
	"html"
	"strings"
)

// InternalHandler produces the payload of a built-in resource.
type InternalHandler func(req *Request) []byte

// Route is a built-in resource, reached when the MIME table maps a request
// name to "internal".
type Route struct {
	Name        string
	ContentType string
	Handler     InternalHandler
}

var IPRoute = Route{
	Name:        "ip",
	ContentType: "text/plain",
	Handler: func(req *Request) []byte {
		return []byte(req.RemoteAddr)
	},
}

var RequestRoute = Route{
	Name:        "request",
	ContentType: "text/html",
	Handler:     dumpRequest,
}

func dumpRequest(req *Request) []byte {
	var b strings.Builder

	b.WriteString("<html><head><title>Request</title></head><body><table>")
	row := func(key, value string) {
		b.WriteString("<tr><td>")
		b.WriteString(html.EscapeString(key))
		b.WriteString("</td><td>")
		b.WriteString(html.EscapeString(value))
		b.WriteString("</td></tr>")
	}

	row("Method", req.Method)
	row("URI", req.URI)
	row("Version", req.Version)
	for _, h := range req.HeaderList {
		row(h.Key, h.Value)
	}

	b.WriteString("</table></body></html>")
	return []byte(b.String())
}
