package router

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AKMHZJ/go-localserver/internal/config"
	"github.com/AKMHZJ/go-localserver/internal/httpmsg"
	"github.com/AKMHZJ/go-localserver/internal/mimetypes"
)

// httpRange is a single byte range parsed from a Range request header,
// named and shaped after filetransport's httpRange/contentRange pair —
// this server only ever serves the single-range case, not multipart/
// byteranges.
type httpRange struct {
	start, length int64
}

func (r httpRange) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.start+r.length-1, size)
}

// parseRange parses a "bytes=start-end" Range header against a resource of
// the given size. ok is false whenever the header is absent, malformed, or
// unsatisfiable, meaning the caller should fall back to a full 200 response.
func parseRange(header string, size int64) (httpRange, bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return httpRange{}, false
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return httpRange{}, false // multiple ranges: not supported, serve whole body
	}
	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return httpRange{}, false
	}
	startStr, endStr := strings.TrimSpace(spec[:dash]), strings.TrimSpace(spec[dash+1:])

	var start, end int64
	var err error
	switch {
	case startStr == "" && endStr == "":
		return httpRange{}, false
	case startStr == "":
		// suffix range: last N bytes
		n, perr := strconv.ParseInt(endStr, 10, 64)
		if perr != nil || n <= 0 {
			return httpRange{}, false
		}
		if n > size {
			n = size
		}
		return httpRange{start: size - n, length: n}, true
	default:
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil || start >= size {
			return httpRange{}, false
		}
		if endStr == "" {
			end = size - 1
		} else {
			end, err = strconv.ParseInt(endStr, 10, 64)
			if err != nil || end < start {
				return httpRange{}, false
			}
			if end >= size {
				end = size - 1
			}
		}
		return httpRange{start: start, length: end - start + 1}, true
	}
}

func readFile(p string) ([]byte, error) {
	return ioutil.ReadFile(p)
}

// resolvePath maps a request path to a filesystem path under root, stripping
// the matched route's prefix, and confirms the result never escapes root —
// the path-traversal safety invariant.
func resolvePath(route *config.Route, requestPath string) (string, bool) {
	rel := strings.TrimPrefix(requestPath, route.Prefix)
	rel = strings.TrimPrefix(rel, "/")

	root, err := filepath.Abs(route.Root)
	if err != nil {
		return "", false
	}
	joined := filepath.Join(root, filepath.FromSlash(rel))

	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", false
	}
	return joined, true
}

func (rt *Router) handleGet(host *config.Server, route *config.Route, req *httpmsg.Request) *httpmsg.Response {
	if route.Root == "" {
		return rt.errorResponse(host, 404)
	}

	fsPath, ok := resolvePath(route, req.RawPath)
	if !ok {
		return rt.errorResponse(host, 403)
	}

	info, err := os.Stat(fsPath)
	if err != nil {
		if os.IsPermission(err) {
			return rt.errorResponse(host, 403)
		}
		return rt.errorResponse(host, 404)
	}

	if info.IsDir() {
		return rt.handleDirectory(host, route, req, fsPath)
	}

	return rt.serveFile(host, fsPath, info.Size(), req.Header.Get("Range"))
}

func (rt *Router) serveFile(host *config.Server, fsPath string, size int64, rangeHeader string) *httpmsg.Response {
	body, err := readFile(fsPath)
	if err != nil {
		if os.IsPermission(err) {
			return rt.errorResponse(host, 403)
		}
		return rt.errorResponse(host, 500)
	}

	ct := mimetypes.ByExtension(fsPath)
	if ct == "" {
		ct = mimetypes.Sniff(body)
	}

	if rangeHeader != "" {
		if rng, ok := parseRange(rangeHeader, int64(len(body))); ok {
			resp := httpmsg.NewResponse(206)
			resp.Header.Set("Content-Type", ct)
			resp.Header.Set("Content-Range", rng.contentRange(int64(len(body))))
			resp.Header.Set("Accept-Ranges", "bytes")
			return resp.WithBody(body[rng.start : rng.start+rng.length])
		}
	}

	resp := httpmsg.NewResponse(200)
	resp.Header.Set("Content-Type", ct)
	resp.Header.Set("Accept-Ranges", "bytes")
	return resp.WithBody(body)
}

func (rt *Router) handleDirectory(host *config.Server, route *config.Route, req *httpmsg.Request, dirPath string) *httpmsg.Response {
	if route.Index != "" {
		indexPath := filepath.Join(dirPath, route.Index)
		if info, err := os.Stat(indexPath); err == nil && !info.IsDir() {
			return rt.serveFile(host, indexPath, info.Size(), req.Header.Get("Range"))
		}
	}
	if route.Autoindex {
		return rt.autoindex(req.RawPath, dirPath, route.DirectoryListingOrder, req.Query)
	}
	return rt.errorResponse(host, 403)
}
