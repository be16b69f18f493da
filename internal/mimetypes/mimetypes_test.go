package mimetypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByExtension(t *testing.T) {
	assert.Equal(t, "text/html", ByExtension("index.html"))
	assert.Equal(t, "image/png", ByExtension("logo.PNG"))
	assert.Equal(t, "", ByExtension("noext"))
}

func TestSniffHTML(t *testing.T) {
	assert.Equal(t, "text/html; charset=utf-8", Sniff([]byte("<html><body>hi</body></html>")))
}

func TestSniffPNG(t *testing.T) {
	sig := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0}
	assert.Equal(t, "image/png", Sniff(sig))
}

func TestSniffPlainTextFallback(t *testing.T) {
	assert.Equal(t, "text/plain; charset=utf-8", Sniff([]byte("just some text")))
}

func TestSniffBinaryFallback(t *testing.T) {
	assert.Equal(t, "application/octet-stream", Sniff([]byte{0x00, 0x01, 0x02, 0xff}))
}
