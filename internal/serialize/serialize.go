// Package serialize produces the exact wire form of a response, the way
// badu-http's response_server.go writes the status line, headers, and body
// of a server response.
package serialize

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/AKMHZJ/go-localserver/internal/hdr"
	"github.com/AKMHZJ/go-localserver/internal/httpmsg"
)

// ServerBanner is sent as the Server header on every response.
const ServerBanner = "go-localserver"

// Write serializes resp to w: status line, headers (Server, Date,
// Content-Length and Connection: close are set on resp's own, and the whole
// set is written sorted by key), a blank line, and the body.
func Write(w io.Writer, resp *httpmsg.Response) error {
	if resp.Header == nil {
		resp.Header = make(hdr.Header)
	}
	resp.Header.Set("Server", ServerBanner)
	resp.Header.Set("Date", time.Now().UTC().Format(httpTimeFormat))
	resp.Header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	resp.Header.Set("Connection", "close")

	text := httpmsg.StatusText(resp.StatusCode)
	if _, err := fmt.Fprintf(w, "HTTP/1.1 %03d %s\r\n", resp.StatusCode, text); err != nil {
		return err
	}
	if err := resp.Header.Write(w); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return err
	}
	_, err := w.Write(resp.Body)
	return err
}

// httpTimeFormat is net/http's fixed GMT timestamp format for the Date
// header (RFC 1123 with a hard-coded "GMT" zone).
const httpTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
