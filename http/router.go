package http

import (
	"errors"
	"log/slog"
	"net"
	"path"
	"strings"

	"github.com/freekieb7/kiln/config"
	"github.com/freekieb7/kiln/filesystem"
)

const (
	sectionPath     = "path"
	sectionDocument = "document"
	sectionMime     = "mime-types"

	keyDefault   = "default"
	keyDirectory = "directory"
	keyNone      = "none"
)

// Router maps a request onto a document root, a MIME type and, for the
// "internal" type, one of its built-in routes.
type Router struct {
	Config config.Reader
	FS     filesystem.Filesystem
	Logger *slog.Logger
	Routes []Route
}

func NewRouter(cfg config.Reader, fs filesystem.Filesystem, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return Router{
		Config: cfg,
		FS:     fs,
		Logger: logger,
		Routes: []Route{IPRoute, RequestRoute},
	}
}

// Handle registers route, replacing a route with the same name.
func (router *Router) Handle(route Route) {
	for i := range router.Routes {
		if equalFold(router.Routes[i].Name, route.Name) {
			router.Routes[i] = route
			return
		}
	}
	router.Routes = append(router.Routes, route)
}

func (router *Router) route(name string) (Route, bool) {
	for _, route := range router.Routes {
		if equalFold(route.Name, name) {
			return route, true
		}
	}
	return Route{}, false
}

// ListingEnabled reports whether directories without an index document are
// listed.
func (router *Router) ListingEnabled() bool {
	v, _ := router.Config.Value(sectionDocument, keyDirectory)
	return equalFold(v, "list")
}

// Resolve finds what req refers to. Internal routes store their output in
// req.Payload. An unresolvable request yields ResourceNone.
func (router *Router) Resolve(req *Request) (Resource, string, bool) {
	listing := router.ListingEnabled()

	name, ok := cleanURI(req.URI)
	if !ok {
		return Resource{}, "", false
	}

	host := requestHost(req)
	mime := router.mimeType(name)

	if equalFold(mime, MimeInternal) {
		route, found := router.route(filesystem.GetFileExtension(name))
		if !found {
			return Resource{}, "", false
		}

		req.Payload = route.Handler(req)
		return Resource{Kind: ResourceInternal, Name: name, Size: int64(len(req.Payload))}, route.ContentType, false
	}

	root := router.lookup(sectionPath, host)
	if root == "" {
		return Resource{}, "", false
	}

	full, ok := filesystem.Within(root, name)
	if !ok {
		return Resource{}, "", false
	}

	entry, err := router.FS.Stat(full)
	if err != nil {
		if !errors.Is(err, filesystem.ErrFileNotFound) {
			router.Logger.Warn("stat failed", "path", full, "error", err)
		}
		return Resource{}, "", false
	}

	switch entry.Type {
	case filesystem.TypeFile:
		return Resource{Kind: ResourceFile, Path: full, Name: name, Size: entry.Size}, mime, listing

	case filesystem.TypeDirectory:
		if index := router.lookup(sectionDocument, host); index != "" {
			indexPath, ok := filesystem.Within(full, index)
			if ok {
				if e, err := router.FS.Stat(indexPath); err == nil && e.Type == filesystem.TypeFile {
					return Resource{Kind: ResourceFile, Path: indexPath, Name: path.Join(name, index), Size: e.Size}, router.mimeType(index), listing
				}
			}
		}
		if listing {
			return Resource{Kind: ResourceDirectory, Path: full, Name: name}, "text/html", true
		}
	}

	return Resource{}, "", false
}

// lookup reads the per-host key of section, falling back to "default".
func (router *Router) lookup(section, host string) string {
	if host != "" {
		if v, ok := router.Config.Value(section, host); ok && v != "" {
			return v
		}
	}
	return config.String(router.Config, section, keyDefault, "")
}

// mimeType uses the text after the last dot of the final segment, or the
// whole segment when it has none, then falls back to the "none" entry.
func (router *Router) mimeType(name string) string {
	key := toLower(filesystem.GetFileExtension(name))
	if key != "" {
		if v, ok := router.Config.Value(sectionMime, key); ok && v != "" {
			return v
		}
	}
	return config.String(router.Config, sectionMime, keyNone, "")
}

func requestHost(req *Request) string {
	host, ok := req.Header(headerHost)
	if !ok {
		return ""
	}

	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return toLower(strings.Trim(host, "[]"))
}

// cleanURI drops query and fragment, decodes the path and cleans it. Paths
// with ".." segments or NUL bytes are refused.
func cleanURI(uri string) (string, bool) {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}

	decoded, ok := unescapePath(uri)
	if !ok || strings.IndexByte(decoded, 0) >= 0 {
		return "", false
	}

	for _, segment := range strings.Split(decoded, "/") {
		if segment == ".." {
			return "", false
		}
	}

	return path.Clean("/" + decoded), true
}
