package router

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"strings"

	"github.com/AKMHZJ/go-localserver/internal/httpmsg"
)

// htmlReplacer escapes directory-listing entries the way badu-http's
// filetransport package escapes generated HTML (types.go's htmlReplacer).
var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"'", "&#39;",
)

// autoindex generates an HTML directory listing for dirPath, sorted by a
// "sort" parameter in query if present, else by order: "size", "mtime", or
// (for any other value) "name".
func (rt *Router) autoindex(requestPath, dirPath, order, query string) *httpmsg.Response {
	entries, err := ioutil.ReadDir(dirPath)
	if err != nil {
		resp := httpmsg.NewResponse(500)
		resp.Body = []byte("directory unreadable")
		return resp
	}
	if q := querySort(query); q != "" {
		order = q
	}
	sortEntries(entries, order)

	base := requestPath
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>Index of %s</title></head><body>\n", htmlReplacer.Replace(requestPath))
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n<ul>\n", htmlReplacer.Replace(requestPath))
	if requestPath != "/" {
		b.WriteString(`<li><a href="../">../</a></li>` + "\n")
	}
	for _, e := range entries {
		name := e.Name()
		href := name
		if e.IsDir() {
			href += "/"
		}
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n", htmlReplacer.Replace(base+href), htmlReplacer.Replace(href))
	}
	b.WriteString("</ul></body></html>")

	resp := httpmsg.NewResponse(200)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	resp.Body = []byte(b.String())
	return resp
}

// querySort extracts a "sort" parameter from a raw query string, without
// pulling in a full query-string parser for one key.
func querySort(query string) string {
	for _, pair := range strings.Split(query, "&") {
		if k, v, ok := strings.Cut(pair, "="); ok && k == "sort" {
			return v
		}
	}
	return ""
}

func sortEntries(entries []os.FileInfo, order string) {
	switch order {
	case "size":
		sort.Slice(entries, func(i, j int) bool { return entries[i].Size() < entries[j].Size() })
	case "mtime":
		sort.Slice(entries, func(i, j int) bool { return entries[i].ModTime().Before(entries[j].ModTime()) })
	default:
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	}
}
