// Package router implements virtual-host selection, route matching, method
// and size policy enforcement, and the static/autoindex/redirect/upload/
// delete/CGI handlers, per the dispatcher design.
package router

import (
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AKMHZJ/go-localserver/internal/cgi"
	"github.com/AKMHZJ/go-localserver/internal/config"
	"github.com/AKMHZJ/go-localserver/internal/httpmsg"
)

// defaultCGITimeout applies when neither a route nor the server configures
// one explicitly.
const defaultCGITimeout = 5 * time.Second

// Router selects a virtual host and route for a parsed request and produces
// a response, invoking CGI or the filesystem as the route demands.
type Router struct {
	log            *logrus.Entry
	defaultCGITime time.Duration
}

// New builds a Router. The configuration is threaded through per-request via
// Dispatch's listener argument, since every listener may serve a distinct
// virtual-host set. serverCGITimeout is the server-wide CGI timeout default
// (spec.md §4.4); zero falls back to defaultCGITimeout.
func New(log *logrus.Entry, serverCGITimeout ...time.Duration) *Router {
	d := defaultCGITimeout
	if len(serverCGITimeout) > 0 && serverCGITimeout[0] > 0 {
		d = serverCGITimeout[0]
	}
	return &Router{log: log, defaultCGITime: d}
}

// Dispatch implements spec.md §4.3 steps 1-6 end to end. A recover here is
// the server's last line of defense: the reactor runs single-threaded with
// no per-connection goroutine to isolate a panic, so an unrecovered one here
// would take the whole process down over one bad request.
func (rt *Router) Dispatch(req *httpmsg.Request, listener *config.Listener) (resp *httpmsg.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			if rt.log != nil {
				rt.log.WithField("panic", rec).WithField("stack", string(debug.Stack())).Error("recovered panic in dispatch")
			}
			resp = rt.errorResponse(listener.SelectHost(req.Host()), 500)
		}
	}()

	host := listener.SelectHost(req.Host())

	route := host.SelectRoute(req.RawPath)
	if route == nil {
		return rt.errorResponse(host, 404)
	}

	method := req.Method.String()
	if !route.AllowsMethod(method) {
		resp := rt.errorResponse(host, 405)
		resp.Header.Set("Allow", strings.Join(route.Methods, ", "))
		return resp
	}

	if route.Redirect != nil {
		resp := httpmsg.NewResponse(route.Redirect.Status)
		resp.Header.Set("Location", route.Redirect.Target)
		return resp
	}

	switch req.Method {
	case httpmsg.MethodGET:
		return rt.handleGet(host, route, req)
	case httpmsg.MethodPOST:
		return rt.handlePost(host, route, req)
	case httpmsg.MethodDELETE:
		return rt.handleDelete(host, route, req)
	default:
		resp := rt.errorResponse(host, 405)
		resp.Header.Set("Allow", strings.Join(route.Methods, ", "))
		return resp
	}
}

// errorResponse renders the configured error page for status if one exists,
// else a minimal built-in body, per spec.md §4.3 step 6.
func (rt *Router) errorResponse(host *config.Server, status int) *httpmsg.Response {
	resp := httpmsg.NewResponse(status)

	if path, ok := host.ErrorPages[status]; ok {
		if body, err := readFile(path); err == nil {
			resp.Header.Set("Content-Type", "text/html; charset=utf-8")
			return resp.WithBody(body)
		}
		if rt.log != nil {
			rt.log.WithField("path", path).Warn("error page unreadable, using built-in body")
		}
	}

	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return resp.WithBody([]byte(builtinErrorBody(status)))
}

func builtinErrorBody(status int) string {
	text := httpmsg.StatusText(status)
	return "<html><head><title>" + text + "</title></head>" +
		"<body><h1>" + strconv.Itoa(status) + " " + text + "</h1></body></html>"
}

// invokeCGI is the seam the post handler calls through; kept as a var so
// tests can stub it without spawning real processes.
var invokeCGI = cgi.Invoke
