package http

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/freekieb7/kiln/config"
	"github.com/freekieb7/kiln/filesystem"
	"github.com/freekieb7/kiln/logging"
	"github.com/freekieb7/kiln/test"
)

type site struct {
	router Router
	root   string
	vhost  string
}

func newSite(t *testing.T, extra string) site {
	t.Helper()

	root := t.TempDir()
	vhost := t.TempDir()

	test.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<p>home</p>"), 0644))
	test.NoError(t, os.WriteFile(filepath.Join(root, "notes.TXT"), []byte("notes"), 0644))
	test.NoError(t, os.WriteFile(filepath.Join(root, "Makefile"), []byte("all:"), 0644))
	test.NoError(t, os.Mkdir(filepath.Join(root, "pub"), 0755))
	test.NoError(t, os.WriteFile(filepath.Join(root, "pub", "a.bin"), []byte{1, 2, 3}, 0644))
	test.NoError(t, os.WriteFile(filepath.Join(vhost, "index.html"), []byte("<p>vhost</p>"), 0644))

	cfg, err := config.FromString("[path]\n" +
		"default = " + root + "\n" +
		"www.example.com = " + vhost + "\n" +
		"[document]\n" +
		"default = index.html\n" +
		extra +
		"[mime-types]\n" +
		"html = text/html\n" +
		"txt = text/plain\n" +
		"makefile = text/x-makefile\n" +
		"ip = internal\n" +
		"request = internal\n" +
		"nope = internal\n" +
		"none = application/octet-stream\n")
	test.NoError(t, err)

	return site{
		router: NewRouter(cfg, filesystem.NewLocalFileSystem(logging.Discard()), logging.Discard()),
		root:   root,
		vhost:  vhost,
	}
}

func request(uri, host string) *Request {
	req := &Request{Method: MethodGet, URI: uri, Version: Version11, RemoteAddr: "192.0.2.7"}
	if host != "" {
		req.AddHeader("Host", host)
	}
	return req
}

func TestResolveFiles(t *testing.T) {
	s := newSite(t, "")

	testCases := []struct {
		name string
		uri  string
		host string
		kind ResourceKind
		path string
		mime string
	}{
		{"index document", "/", "", ResourceFile, filepath.Join(s.root, "index.html"), "text/html"},
		{"extension case folded", "/notes.TXT", "", ResourceFile, filepath.Join(s.root, "notes.TXT"), "text/plain"},
		{"no extension uses name", "/Makefile", "", ResourceFile, filepath.Join(s.root, "Makefile"), "text/x-makefile"},
		{"fallback mime", "/pub/a.bin", "", ResourceFile, filepath.Join(s.root, "pub", "a.bin"), "application/octet-stream"},
		{"query stripped", "/notes.TXT?x=1#top", "", ResourceFile, filepath.Join(s.root, "notes.TXT"), "text/plain"},
		{"percent decoded", "/not%65s.TXT", "", ResourceFile, filepath.Join(s.root, "notes.TXT"), "text/plain"},
		{"virtual host", "/", "WWW.Example.com:8080", ResourceFile, filepath.Join(s.vhost, "index.html"), "text/html"},
		{"unknown host uses default", "/", "other.example", ResourceFile, filepath.Join(s.root, "index.html"), "text/html"},
		{"missing", "/nothing.txt", "", ResourceNone, "", ""},
		{"traversal", "/../etc/passwd", "", ResourceNone, "", ""},
		{"encoded traversal", "/%2e%2e/etc/passwd", "", ResourceNone, "", ""},
		{"bad escape", "/%zz", "", ResourceNone, "", ""},
		{"directory without listing", "/pub", "", ResourceNone, "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, mime, _ := s.router.Resolve(request(tc.uri, tc.host))

			test.Equal(t, tc.kind, res.Kind)
			test.Equal(t, tc.path, res.Path)
			test.Equal(t, tc.mime, mime)
		})
	}
}

func TestResolveListing(t *testing.T) {
	s := newSite(t, "directory = list\n")

	res, mime, listing := s.router.Resolve(request("/pub/", ""))

	test.True(t, listing, "listing should be enabled")
	test.Equal(t, ResourceDirectory, res.Kind)
	test.Equal(t, "/pub", res.Name)
	test.Equal(t, "text/html", mime)
}

func TestResolveInternal(t *testing.T) {
	s := newSite(t, "")

	req := request("/IP", "")
	res, mime, _ := s.router.Resolve(req)
	test.Equal(t, ResourceInternal, res.Kind)
	test.Equal(t, "text/plain", mime)
	test.Equal(t, "192.0.2.7", string(req.Payload))

	req = request("/request", "")
	req.AddHeader("X-Probe", "<b>")
	res, mime, _ = s.router.Resolve(req)
	test.Equal(t, ResourceInternal, res.Kind)
	test.Equal(t, "text/html", mime)
	test.Equal(t, "<html><head><title>Request</title></head><body><table>"+
		"<tr><td>Method</td><td>GET</td></tr>"+
		"<tr><td>URI</td><td>/request</td></tr>"+
		"<tr><td>Version</td><td>HTTP/1.1</td></tr>"+
		"<tr><td>X-PROBE</td><td>&lt;b&gt;</td></tr>"+
		"</table></body></html>", string(req.Payload))

	res, _, _ = s.router.Resolve(request("/nope", ""))
	test.Equal(t, ResourceNone, res.Kind)
}

func TestHandleReplacesRoute(t *testing.T) {
	s := newSite(t, "")
	s.router.Handle(Route{Name: "IP", ContentType: "text/plain", Handler: func(*Request) []byte { return []byte("hidden") }})

	req := request("/ip", "")
	s.router.Resolve(req)

	test.Equal(t, "hidden", string(req.Payload))
	test.Equal(t, 2, len(s.router.Routes))
}
