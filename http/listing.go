package http

import (
	"html"
	"net/url"
	"strings"

	"github.com/freekieb7/kiln/filesystem"
)

// RenderListing builds the auto-index page for the directory at the request
// path title. Hidden entries and symbolic links are left out; directories
// get a trailing slash.
func RenderListing(title string, entries []filesystem.Entry) []byte {
	base := escapePath(title)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	escapedTitle := html.EscapeString(title)

	var b strings.Builder
	b.WriteString("<html><head><title>Index of ")
	b.WriteString(escapedTitle)
	b.WriteString("</title></head><body><h1>Index of ")
	b.WriteString(escapedTitle)
	b.WriteString("</h1><ul>")

	for _, entry := range entries {
		if entry.Hidden || entry.Type == filesystem.TypeSymlink {
			continue
		}

		name := entry.Name
		href := base + url.PathEscape(name)
		if entry.Type == filesystem.TypeDirectory {
			name += "/"
			href += "/"
		}

		b.WriteString(`<li><a href="`)
		b.WriteString(html.EscapeString(href))
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(name))
		b.WriteString("</a></li>")
	}

	b.WriteString("</ul></body></html>")
	return []byte(b.String())
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
