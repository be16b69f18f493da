package httpmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMethod(t *testing.T) {
	assert.Equal(t, MethodGET, ParseMethod("GET"))
	assert.Equal(t, MethodPOST, ParseMethod("POST"))
	assert.Equal(t, MethodUnknown, ParseMethod("PATCH"))
}

func TestHostStripsPort(t *testing.T) {
	req := &Request{Header: map[string][]string{"Host": {"example.local:8080"}}}
	assert.Equal(t, "example.local", req.Host())
}

func TestHostWithoutPort(t *testing.T) {
	req := &Request{Header: map[string][]string{"Host": {"example.local"}}}
	assert.Equal(t, "example.local", req.Host())
}

func TestHostStripsPortFromBracketedIPv6Literal(t *testing.T) {
	req := &Request{Header: map[string][]string{"Host": {"[::1]:8080"}}}
	assert.Equal(t, "[::1]", req.Host())
}

func TestStatusTextKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "OK", StatusText(200))
	assert.Equal(t, "Unknown", StatusText(999))
}
