package httpmsg

import (
	"strconv"

	"github.com/AKMHZJ/go-localserver/internal/hdr"
)

// Response is fully buffered before it is handed to the serializer — the
// body is either a plain byte slice (generated content, CGI output) or the
// full contents of a file read off disk.
type Response struct {
	StatusCode int
	Header     hdr.Header
	Body       []byte
}

// NewResponse builds a response with an initialized header map.
func NewResponse(status int) *Response {
	return &Response{StatusCode: status, Header: make(hdr.Header)}
}

// WithBody sets the body and Content-Length header in one step.
func (r *Response) WithBody(body []byte) *Response {
	r.Body = body
	r.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return r
}

// StatusText returns the fixed reason phrase for a response's status code.
func StatusText(code int) string {
	if t, ok := statusText[code]; ok {
		return t
	}
	return "Unknown"
}

var statusText = map[int]string{
	200: "OK",
	201: "Created",
	206: "Partial Content",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	307: "Temporary Redirect",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	413: "Payload Too Large",
	500: "Internal Server Error",
	502: "Bad Gateway",
	504: "Gateway Timeout",
}
