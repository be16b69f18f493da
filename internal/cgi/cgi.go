// Package cgi implements the RFC 3875 sub-process adapter: it builds the CGI
// environment, feeds the request body to the script's stdin, and parses its
// stdout back into a structured response.
//
// Environment assembly mirrors the parameter-building convention of a
// FastCGI client (see other_examples' caddyserver fcgiclient, which builds
// the same REQUEST_METHOD/SCRIPT_FILENAME/CONTENT_LENGTH parameter set for
// the binary FastCGI protocol); here it is written straight into os/exec's
// Env for classic CGI's stdin/stdout pipes instead of FastCGI records.
package cgi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AKMHZJ/go-localserver/internal/errs"
	"github.com/AKMHZJ/go-localserver/internal/httpmsg"
)

// Invoke runs interpreter against scriptPath as a CGI script per RFC 3875,
// writing req.Body to its stdin and parsing its stdout into a Response.
func Invoke(ctx context.Context, req *httpmsg.Request, interpreter, scriptPath string) (*httpmsg.Response, error) {
	cmd := exec.CommandContext(ctx, interpreter, scriptPath)
	cmd.Dir = filepath.Dir(scriptPath)
	cmd.Env = buildEnv(req, scriptPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errs.Wrap(errs.KindCgi, err, "opening cgi stdin")
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, errs.Wrap(errs.KindCgi, err, "spawning cgi interpreter")
	}

	go func() {
		_, _ = stdin.Write(req.Body)
		_ = stdin.Close()
	}()

	err = cmd.Wait()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, errs.Wrap(errs.KindCgiTimeout, ctx.Err(), "cgi script timed out")
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindCgi, err, fmt.Sprintf("cgi script exited: %s", stderr.String()))
	}

	return parseCGIOutput(stdout.Bytes())
}

// buildEnv assembles the RFC 3875 minimum environment set, plus one
// HTTP_<UPPER_SNAKE> variable per inbound header.
func buildEnv(req *httpmsg.Request, scriptPath string) []string {
	env := []string{
		"REQUEST_METHOD=" + req.Method.String(),
		"SCRIPT_NAME=" + req.RawPath,
		"SCRIPT_FILENAME=" + scriptPath,
		"PATH_INFO=" + req.RawPath,
		"QUERY_STRING=" + req.Query,
		"CONTENT_LENGTH=" + strconv.Itoa(len(req.Body)),
		"CONTENT_TYPE=" + req.Header.Get("Content-Type"),
		"SERVER_PROTOCOL=" + req.Version,
		"SERVER_NAME=" + req.Host(),
		"SERVER_PORT=" + portOf(req.Header.Get("Host")),
		"GATEWAY_INTERFACE=CGI/1.1",
	}
	for name, values := range req.Header {
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		env = append(env, key+"="+strings.Join(values, ", "))
	}
	env = append(env, os.Environ()...)
	return env
}

func portOf(host string) string {
	if end := strings.IndexByte(host, ']'); end >= 0 {
		// Bracketed IPv6 literal: only a ':' after the closing bracket is a
		// port separator.
		if i := strings.IndexByte(host[end:], ':'); i >= 0 {
			return host[end+i+1:]
		}
		return "80"
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		return host[i+1:]
	}
	return "80"
}

// parseCGIOutput splits the child's stdout into an optional header block
// (terminated by a blank line) and the remaining body, merging headers into
// the response per spec.md §4.4 — including a Status: override and
// Content-Type.
func parseCGIOutput(out []byte) (*httpmsg.Response, error) {
	resp := httpmsg.NewResponse(200)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")

	sep := bytes.Index(out, []byte("\r\n\r\n"))
	sepLen := 4
	if sep < 0 {
		sep = bytes.Index(out, []byte("\n\n"))
		sepLen = 2
	}
	if sep < 0 {
		// No header block at all: treat the whole output as body, default
		// headers stand, per the spec's tolerance for a minimal script.
		return resp.WithBody(out), nil
	}

	headerBlock := out[:sep]
	body := out[sep+sepLen:]

	scanner := bufio.NewScanner(bytes.NewReader(headerBlock))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, errs.New(errs.KindCgi, "malformed cgi header line: "+line)
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if strings.EqualFold(name, "Status") {
			fields := strings.Fields(value)
			if len(fields) == 0 {
				return nil, errs.New(errs.KindCgi, "malformed cgi Status header")
			}
			code, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, errs.New(errs.KindCgi, "malformed cgi Status header")
			}
			resp.StatusCode = code
			continue
		}
		resp.Header.Set(name, value)
	}
	return resp.WithBody(body), nil
}
