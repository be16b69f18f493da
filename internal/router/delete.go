package router

import (
	"os"

	"github.com/AKMHZJ/go-localserver/internal/config"
	"github.com/AKMHZJ/go-localserver/internal/httpmsg"
)

func (rt *Router) handleDelete(host *config.Server, route *config.Route, req *httpmsg.Request) *httpmsg.Response {
	fsPath, ok := resolvePath(route, req.RawPath)
	if !ok {
		return rt.errorResponse(host, 403)
	}

	if _, err := os.Stat(fsPath); err != nil {
		return rt.errorResponse(host, 404)
	}

	if err := os.Remove(fsPath); err != nil {
		if os.IsPermission(err) {
			return rt.errorResponse(host, 403)
		}
		return rt.errorResponse(host, 500)
	}

	return httpmsg.NewResponse(204)
}
