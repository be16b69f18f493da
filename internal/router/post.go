package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/AKMHZJ/go-localserver/internal/config"
	"github.com/AKMHZJ/go-localserver/internal/errs"
	"github.com/AKMHZJ/go-localserver/internal/httpmsg"
)

func (rt *Router) handlePost(host *config.Server, route *config.Route, req *httpmsg.Request) *httpmsg.Response {
	if ext, interp, ok := cgiMatch(route, req.RawPath); ok {
		return rt.handleCGI(host, route, req, ext, interp)
	}
	if route.UploadDir != "" {
		return rt.handleUpload(host, route, req)
	}
	resp := rt.errorResponse(host, 405)
	resp.Header.Set("Allow", strings.Join(route.Methods, ", "))
	return resp
}

func cgiMatch(route *config.Route, requestPath string) (ext, interp string, ok bool) {
	if len(route.CGI) == 0 {
		return "", "", false
	}
	ext = filepath.Ext(requestPath)
	if ext == "" {
		return "", "", false
	}
	interp, ok = route.CGIInterpreter(ext)
	return ext, interp, ok
}

func (rt *Router) handleCGI(host *config.Server, route *config.Route, req *httpmsg.Request, ext, interp string) *httpmsg.Response {
	scriptPath, ok := resolvePath(route, req.RawPath)
	if !ok {
		return rt.errorResponse(host, 403)
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return rt.errorResponse(host, 404)
	}

	timeout := rt.defaultCGITime
	if route.CGITimeout != nil {
		timeout = route.CGITimeout.Std()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := invokeCGI(ctx, req, interp, scriptPath)
	if err != nil {
		kind := errs.KindOf(err)
		if rt.log != nil {
			rt.log.WithError(err).WithField("script", scriptPath).Warn("cgi invocation failed")
		}
		return rt.errorResponse(host, kind.Status())
	}
	return resp
}

func (rt *Router) handleUpload(host *config.Server, route *config.Route, req *httpmsg.Request) *httpmsg.Response {
	name := uploadFilename(req)

	dir, err := filepath.Abs(route.UploadDir)
	if err != nil {
		return rt.errorResponse(host, 500)
	}
	dest := filepath.Join(dir, name)
	if !strings.HasPrefix(dest, dir+string(filepath.Separator)) {
		return rt.errorResponse(host, 403)
	}

	if err := ioutil.WriteFile(dest, req.Body, 0o644); err != nil {
		if os.IsPermission(err) {
			return rt.errorResponse(host, 403)
		}
		return rt.errorResponse(host, 500)
	}

	resp := httpmsg.NewResponse(201)
	resp.Header.Set("Location", strings.TrimSuffix(req.RawPath, "/")+"/"+name)
	return resp
}

// uploadFilename derives the destination name from an X-File-Name hint if
// present and safe, else generates a unique name.
func uploadFilename(req *httpmsg.Request) string {
	if hint := req.Header.Get("X-File-Name"); hint != "" {
		base := filepath.Base(hint)
		if base != "." && base != "/" && base != ".." {
			return base
		}
	}
	return generateName()
}

func generateName() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
