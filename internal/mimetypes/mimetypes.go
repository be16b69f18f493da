// Package mimetypes maps file extensions to content types, falling back to
// content sniffing for unknown extensions — the sniffing heuristics are
// adapted from badu-http's sniff package (its text/binary signature
// tables), trimmed to the small set of signatures a static file server
// actually needs.
package mimetypes

import (
	"bytes"
	"strings"
)

var byExt = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".xml":  "application/xml",
	".wasm": "application/wasm",
}

// ByExtension returns the content type for a filename's extension, or ""
// if the extension is unknown.
func ByExtension(name string) string {
	ext := extOf(name)
	return byExt[ext]
}

func extOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i:])
}

// Sniff inspects the first bytes of content and returns a best-guess
// content type, the way badu-http's sniff package detects HTML/text/binary
// content when no extension match is available. Order matters: more
// specific signatures are checked first.
func Sniff(content []byte) string {
	if len(content) > 512 {
		content = content[:512]
	}
	trimmed := bytes.TrimLeft(content, " \t\r\n\f")

	switch {
	case bytes.HasPrefix(trimmed, []byte("<!DOCTYPE HTML")), bytes.HasPrefix(trimmed, []byte("<html")):
		return "text/html; charset=utf-8"
	case bytes.HasPrefix(content, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(content, []byte("\xff\xd8\xff")):
		return "image/jpeg"
	case bytes.HasPrefix(content, []byte("GIF87a")), bytes.HasPrefix(content, []byte("GIF89a")):
		return "image/gif"
	case bytes.HasPrefix(content, []byte("%PDF-")):
		return "application/pdf"
	case isLikelyText(content):
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func isLikelyText(content []byte) bool {
	for _, b := range content {
		if b == 0 {
			return false
		}
	}
	return true
}
