package cgi

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AKMHZJ/go-localserver/internal/httpmsg"
)

func TestBuildEnvIncludesRFC3875Minimum(t *testing.T) {
	req := &httpmsg.Request{
		Method:  httpmsg.MethodGET,
		RawPath: "/cgi-bin/hello.py",
		Query:   "name=world",
		Version: "HTTP/1.1",
		Header:  map[string][]string{"Host": {"example.local:8080"}, "X-Custom-Header": {"v1"}},
	}

	env := buildEnv(req, "/var/www/cgi-bin/hello.py")

	assert.Contains(t, env, "REQUEST_METHOD=GET")
	assert.Contains(t, env, "SCRIPT_FILENAME=/var/www/cgi-bin/hello.py")
	assert.Contains(t, env, "QUERY_STRING=name=world")
	assert.Contains(t, env, "GATEWAY_INTERFACE=CGI/1.1")
	assert.Contains(t, env, "HTTP_X_CUSTOM_HEADER=v1")
	assert.Contains(t, env, "SERVER_PORT=8080")
}

func TestParseCGIOutputWithHeaders(t *testing.T) {
	out := []byte("Content-Type: text/plain\r\nX-Extra: 1\r\n\r\nhello body")
	resp, err := parseCGIOutput(out)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "hello body", string(resp.Body))
}

func TestParseCGIOutputWithStatusOverride(t *testing.T) {
	out := []byte("Status: 302 Found\r\nLocation: /elsewhere\r\n\r\n")
	resp, err := parseCGIOutput(out)
	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
	assert.Equal(t, "/elsewhere", resp.Header.Get("Location"))
}

func TestParseCGIOutputWithoutHeaderBlock(t *testing.T) {
	resp, err := parseCGIOutput([]byte("just raw output, no headers"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "just raw output, no headers", string(resp.Body))
}

func TestParseCGIOutputRejectsMalformedHeaderLine(t *testing.T) {
	_, err := parseCGIOutput([]byte("not-a-header-line\r\n\r\nbody"))
	assert.Error(t, err)
}

func TestParseCGIOutputRejectsEmptyStatusValue(t *testing.T) {
	_, err := parseCGIOutput([]byte("Status:\r\n\r\nbody"))
	assert.Error(t, err)
}

func TestParseCGIOutputRejectsBlankStatusValue(t *testing.T) {
	_, err := parseCGIOutput([]byte("Status:   \r\n\r\nbody"))
	assert.Error(t, err)
}

func TestInvokeRunsScriptAndCapturesOutput(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "echo.sh")
	contents := "#!/bin/sh\nprintf 'Content-Type: text/plain\\r\\n\\r\\nhi from cgi'\n"
	require.NoError(t, os.WriteFile(script, []byte(contents), 0o755))

	req := &httpmsg.Request{Method: httpmsg.MethodGET, RawPath: "/cgi-bin/echo.sh", Version: "HTTP/1.1", Header: map[string][]string{"Host": {"h"}}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := Invoke(ctx, req, "/bin/sh", script)
	require.NoError(t, err)
	assert.Equal(t, "hi from cgi", string(resp.Body))
}

func TestInvokeTimesOut(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "sleep.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755))

	req := &httpmsg.Request{Method: httpmsg.MethodGET, RawPath: "/cgi-bin/sleep.sh", Version: "HTTP/1.1", Header: map[string][]string{"Host": {"h"}}}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Invoke(ctx, req, "/bin/sh", script)
	require.Error(t, err)
}
