package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AKMHZJ/go-localserver/internal/config"
	"github.com/AKMHZJ/go-localserver/internal/httpmsg"
)

func newListener(t *testing.T, srv *config.Server) *config.Listener {
	t.Helper()
	return &config.Listener{Addr: "0.0.0.0:8080", Hosts: []*config.Server{srv}}
}

func newReq(t *testing.T, method httpmsg.Method, rawPath string) *httpmsg.Request {
	t.Helper()
	req := &httpmsg.Request{Method: method, RawPath: rawPath, Version: "HTTP/1.1"}
	req.Header = make(map[string][]string)
	req.Header["Host"] = []string{"example.local"}
	return req
}

func TestDispatchStaticFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>hi</html>"), 0o644))

	srv := &config.Server{
		ServerNames: []string{"example.local"},
		Routes: []*config.Route{
			{Prefix: "/", Root: dir, Index: "index.html", Methods: []string{"GET"}},
		},
	}
	rt := New(nil)
	resp := rt.Dispatch(newReq(t, httpmsg.MethodGET, "/"), newListener(t, srv))

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "<html>hi</html>", string(resp.Body))
}

func TestDispatch404WhenNoRouteMatches(t *testing.T) {
	srv := &config.Server{ServerNames: []string{"example.local"}, Routes: []*config.Route{}}
	rt := New(nil)
	resp := rt.Dispatch(newReq(t, httpmsg.MethodGET, "/missing"), newListener(t, srv))
	assert.Equal(t, 404, resp.StatusCode)
}

func TestDispatch405SetsAllowHeader(t *testing.T) {
	srv := &config.Server{
		ServerNames: []string{"example.local"},
		Routes:      []*config.Route{{Prefix: "/", Root: t.TempDir(), Methods: []string{"GET"}}},
	}
	rt := New(nil)
	resp := rt.Dispatch(newReq(t, httpmsg.MethodPOST, "/"), newListener(t, srv))

	assert.Equal(t, 405, resp.StatusCode)
	assert.Equal(t, "GET", resp.Header.Get("Allow"))
}

func TestDispatchRedirect(t *testing.T) {
	srv := &config.Server{
		ServerNames: []string{"example.local"},
		Routes: []*config.Route{
			{Prefix: "/old", Methods: []string{"GET"}, Redirect: &config.Redirect{Target: "/new", Status: 301}},
		},
	}
	rt := New(nil)
	resp := rt.Dispatch(newReq(t, httpmsg.MethodGET, "/old"), newListener(t, srv))

	assert.Equal(t, 301, resp.StatusCode)
	assert.Equal(t, "/new", resp.Header.Get("Location"))
}

func TestDispatchDelete(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	srv := &config.Server{
		ServerNames: []string{"example.local"},
		Routes:      []*config.Route{{Prefix: "/", Root: dir, Methods: []string{"DELETE"}}},
	}
	rt := New(nil)
	resp := rt.Dispatch(newReq(t, httpmsg.MethodDELETE, "/gone.txt"), newListener(t, srv))

	assert.Equal(t, 204, resp.StatusCode)
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestDispatchUpload(t *testing.T) {
	dir := t.TempDir()
	srv := &config.Server{
		ServerNames: []string{"example.local"},
		Routes:      []*config.Route{{Prefix: "/upload", Methods: []string{"POST"}, UploadDir: dir}},
	}
	rt := New(nil)
	req := newReq(t, httpmsg.MethodPOST, "/upload")
	req.Header["X-File-Name"] = []string{"note.txt"}
	req.Body = []byte("hello")

	resp := rt.Dispatch(req, newListener(t, srv))

	assert.Equal(t, 201, resp.StatusCode)
	body, err := os.ReadFile(filepath.Join(dir, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestDispatchCGIInvokesStubbedAdapter(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "hello.py")
	require.NoError(t, os.WriteFile(script, []byte("#!/usr/bin/env python3\n"), 0o755))

	called := false
	original := invokeCGI
	invokeCGI = func(ctx context.Context, req *httpmsg.Request, interpreter, scriptPath string) (*httpmsg.Response, error) {
		called = true
		assert.Equal(t, "/usr/bin/python3", interpreter)
		return httpmsg.NewResponse(200).WithBody([]byte("cgi output")), nil
	}
	defer func() { invokeCGI = original }()

	srv := &config.Server{
		ServerNames: []string{"example.local"},
		Routes: []*config.Route{
			{Prefix: "/cgi-bin", Root: dir, Methods: []string{"POST"}, CGI: map[string]string{".py": "/usr/bin/python3"}},
		},
	}
	rt := New(nil)
	resp := rt.Dispatch(newReq(t, httpmsg.MethodPOST, "/cgi-bin/hello.py"), newListener(t, srv))

	assert.True(t, called)
	assert.Equal(t, "cgi output", string(resp.Body))
}

func TestDispatchRecoversPanicAsInternalError(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "boom.py")
	require.NoError(t, os.WriteFile(script, []byte("#!/usr/bin/env python3\n"), 0o755))

	original := invokeCGI
	invokeCGI = func(ctx context.Context, req *httpmsg.Request, interpreter, scriptPath string) (*httpmsg.Response, error) {
		panic("boom")
	}
	defer func() { invokeCGI = original }()

	srv := &config.Server{
		ServerNames: []string{"example.local"},
		Routes: []*config.Route{
			{Prefix: "/cgi-bin", Root: dir, Methods: []string{"POST"}, CGI: map[string]string{".py": "/usr/bin/python3"}},
		},
	}
	rt := New(nil)
	resp := rt.Dispatch(newReq(t, httpmsg.MethodPOST, "/cgi-bin/boom.py"), newListener(t, srv))

	assert.Equal(t, 500, resp.StatusCode)
}

func TestErrorResponseUsesBuiltinBodyWithoutErrorPage(t *testing.T) {
	srv := &config.Server{ServerNames: []string{"example.local"}}
	rt := New(nil)
	resp := rt.errorResponse(srv, 404)

	assert.Equal(t, 404, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "Not Found")
}

func TestErrorResponseUsesConfiguredPage(t *testing.T) {
	dir := t.TempDir()
	errPage := filepath.Join(dir, "404.html")
	require.NoError(t, os.WriteFile(errPage, []byte("custom not found"), 0o644))

	srv := &config.Server{ErrorPages: map[int]string{404: errPage}}
	rt := New(nil)
	resp := rt.errorResponse(srv, 404)

	assert.Equal(t, "custom not found", string(resp.Body))
}
