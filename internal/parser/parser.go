// Package parser implements the incremental, byte-fed HTTP/1.1 request
// parser: a state machine that tolerates fragmented arrival and never
// blocks. It does not parse in place over the connection's inbound buffer:
// each Feed call copies the fed bytes into the parser's own buffer.
//
// Chunk-size hex decoding and chunk-extension stripping are adapted from
// badu-http's utils_chunks.go (itself derived from net/http's chunked
// reader), restructured here to consume whatever is currently buffered
// and report needs-more instead of blocking on a bufio.Reader.
package parser

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/AKMHZJ/go-localserver/internal/hdr"
	"github.com/AKMHZJ/go-localserver/internal/httpmsg"
)

// State is one of the parser states from the data model.
type State int

const (
	StateRequestLine State = iota
	StateHeaders
	StateFixedBody
	StateChunkSize
	StateChunkData
	StateChunkTrailer
	StateComplete
	StateError
)

// ErrorKind classifies why the parser gave up.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrMalformed
	ErrTargetTooLong
	ErrHeadersTooLong
	ErrBodyTooLarge
)

const (
	maxTargetLen = 8 << 10
	maxHeaderLen = 16 << 10
)

// Outcome is returned by Feed to tell the reactor what to do next.
type Outcome int

const (
	NeedsMore Outcome = iota
	Complete
	Error
)

// Parser is a single connection's incremental request parser. It never
// retains a reference to the caller's slice beyond the Feed call: bytes it
// needs to keep are copied into its own buffer.
type Parser struct {
	state State
	buf   []byte // accumulated, unconsumed bytes

	maxBody int64 // effective client_max_body_size; <=0 means unbounded until known

	req       *httpmsg.Request
	bodyGoal  int64 // remaining bytes wanted for a fixed-length body
	chunkSize int64 // remaining bytes wanted for the current chunk's data
	chunked   bool

	errKind ErrorKind
}

// New returns a parser ready to parse one request, bounded by maxBody (the
// listener-wide default; the reactor may tighten it once the vhost is known
// via SetMaxBody).
func New(maxBody int64) *Parser {
	return &Parser{state: StateRequestLine, maxBody: maxBody}
}

// SetMaxBody tightens the body size ceiling once the matching virtual host
// is known, per the body-size enforcement rule in the parser contract.
func (p *Parser) SetMaxBody(n int64) {
	p.maxBody = n
}

// Reset prepares the parser for the next request on the same connection.
func (p *Parser) Reset() {
	p.state = StateRequestLine
	p.req = nil
	p.bodyGoal = 0
	p.chunkSize = 0
	p.chunked = false
	p.errKind = ErrNone
	// p.buf keeps any bytes of a pipelined next request already read.
}

// ErrorKind reports why the parser entered StateError.
func (p *Parser) ErrorKind() ErrorKind { return p.errKind }

// Request returns the completed request. Valid only after Feed returns
// Complete, and only until the next Reset.
func (p *Parser) Request() *httpmsg.Request { return p.req }

// Feed appends b to the parser's buffer and advances the state machine as
// far as the buffered bytes allow.
func (p *Parser) Feed(b []byte) Outcome {
	if len(b) > 0 {
		p.buf = append(p.buf, b...)
	}
	return p.advance()
}

func (p *Parser) fail(kind ErrorKind) Outcome {
	p.state = StateError
	p.errKind = kind
	return Error
}

func (p *Parser) advance() Outcome {
	for {
		switch p.state {
		case StateRequestLine:
			line, rest, ok := cutLine(p.buf)
			if !ok {
				if len(p.buf) > maxTargetLen+32 {
					return p.fail(ErrTargetTooLong)
				}
				return NeedsMore
			}
			req, err := parseRequestLine(line)
			if err != nil {
				return p.fail(err.(errKindErr).kind)
			}
			p.req = req
			p.buf = rest
			p.state = StateHeaders

		case StateHeaders:
			if len(p.buf) > maxHeaderLen {
				return p.fail(ErrHeadersTooLong)
			}
			done, err := p.consumeHeaderLines(p.req.Header)
			if err != nil {
				return p.fail(ErrMalformed)
			}
			if !done {
				return NeedsMore
			}
			p.beginBody()

		case StateFixedBody:
			if p.bodyGoal == 0 {
				p.state = StateComplete
				continue
			}
			take := p.bodyGoal
			if int64(len(p.buf)) < take {
				take = int64(len(p.buf))
			}
			if take == 0 {
				return NeedsMore
			}
			if p.maxBody > 0 && int64(len(p.req.Body))+take > p.maxBody {
				return p.fail(ErrBodyTooLarge)
			}
			p.req.Body = append(p.req.Body, p.buf[:take]...)
			p.buf = p.buf[take:]
			p.bodyGoal -= take
			if p.bodyGoal == 0 {
				p.state = StateComplete
			} else {
				return NeedsMore
			}

		case StateChunkSize:
			line, rest, ok := cutLine(p.buf)
			if !ok {
				return NeedsMore
			}
			size, err := parseChunkSizeLine(line)
			if err != nil {
				return p.fail(ErrMalformed)
			}
			p.buf = rest
			p.chunkSize = size
			if size == 0 {
				p.state = StateChunkTrailer
			} else {
				p.state = StateChunkData
			}

		case StateChunkData:
			need := p.chunkSize + 2 // data + trailing CRLF
			if int64(len(p.buf)) < need {
				if p.maxBody > 0 && int64(len(p.req.Body))+int64(len(p.buf)) > p.maxBody+2 {
					return p.fail(ErrBodyTooLarge)
				}
				return NeedsMore
			}
			if p.maxBody > 0 && int64(len(p.req.Body))+p.chunkSize > p.maxBody {
				return p.fail(ErrBodyTooLarge)
			}
			data := p.buf[:p.chunkSize]
			trailer := p.buf[p.chunkSize : p.chunkSize+2]
			if !bytes.Equal(trailer, crlf) {
				return p.fail(ErrMalformed)
			}
			p.req.Body = append(p.req.Body, data...)
			p.buf = p.buf[need:]
			p.state = StateChunkSize

		case StateChunkTrailer:
			// Optional trailer headers, terminated by a blank line, per the
			// chunked grammar's trailer-part.
			done, err := p.consumeHeaderLines(p.req.Header)
			if err != nil {
				return p.fail(ErrMalformed)
			}
			if !done {
				return NeedsMore
			}
			p.state = StateComplete

		case StateComplete:
			return Complete

		case StateError:
			return Error
		}
	}
}

func (p *Parser) beginBody() {
	te := strings.ToLower(p.req.Header.Get("Transfer-Encoding"))
	if strings.Contains(te, "chunked") {
		p.chunked = true
		p.state = StateChunkSize
		return
	}
	if cl := p.req.Header.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || n < 0 {
			p.state = StateError
			p.errKind = ErrMalformed
			return
		}
		if p.maxBody > 0 && n > p.maxBody {
			p.state = StateError
			p.errKind = ErrBodyTooLarge
			return
		}
		p.bodyGoal = n
		p.state = StateFixedBody
		return
	}
	p.state = StateComplete
}

var crlf = []byte("\r\n")

// cutLine returns the bytes up to (excluding) the next CRLF, and the
// remaining buffer after it. ok is false if no full line is buffered yet.
func cutLine(buf []byte) (line, rest []byte, ok bool) {
	i := bytes.Index(buf, crlf)
	if i < 0 {
		return nil, nil, false
	}
	return buf[:i], buf[i+2:], true
}

// consumeHeaderLines consumes as many complete CRLF-terminated lines as are
// currently buffered, adding each "name: value" line to dst, stopping at the
// first blank line (the header/trailer block terminator). It consumes
// p.buf incrementally so partial progress survives across Feed calls.
func (p *Parser) consumeHeaderLines(dst hdr.Header) (done bool, err error) {
	for {
		line, rest, ok := cutLine(p.buf)
		if !ok {
			return false, nil
		}
		p.buf = rest
		if len(line) == 0 {
			return true, nil
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return false, errKindErr{ErrMalformed}
		}
		name := string(line[:colon])
		value := strings.TrimSpace(string(line[colon+1:]))
		dst.Add(hdr.CanonicalHeaderKey(name), value)
	}
}

type errKindErr struct{ kind ErrorKind }

func (e errKindErr) Error() string { return "parse error" }

func parseRequestLine(line []byte) (*httpmsg.Request, error) {
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) != 3 {
		return nil, errKindErr{ErrMalformed}
	}
	method := httpmsg.ParseMethod(parts[0])
	if method == httpmsg.MethodUnknown {
		return nil, errKindErr{ErrMalformed}
	}
	target := parts[1]
	if len(target) > maxTargetLen {
		return nil, errKindErr{ErrTargetTooLong}
	}
	version := parts[2]
	if version != "HTTP/1.1" && version != "HTTP/1.0" {
		return nil, errKindErr{ErrMalformed}
	}
	path, query := target, ""
	if i := strings.IndexByte(target, '?'); i >= 0 {
		path, query = target[:i], target[i+1:]
	}
	// Route matching operates on decoded path segments; an escaped target
	// that doesn't decode cleanly is malformed rather than silently passed
	// through encoded.
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return nil, errKindErr{ErrMalformed}
	}
	path = decoded
	return &httpmsg.Request{
		Method:  method,
		RawPath: path,
		Query:   query,
		Version: version,
		Header:  make(hdr.Header),
	}, nil
}

// parseChunkSizeLine parses a chunk-size line, stripping any chunk
// extension, per utils_chunks.go's removeChunkExtension/parseHexUint.
func parseChunkSizeLine(line []byte) (int64, error) {
	if semi := bytes.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return 0, errKindErr{ErrMalformed}
	}
	var n int64
	for i, b := range line {
		var v int64
		switch {
		case '0' <= b && b <= '9':
			v = int64(b - '0')
		case 'a' <= b && b <= 'f':
			v = int64(b-'a') + 10
		case 'A' <= b && b <= 'F':
			v = int64(b-'A') + 10
		default:
			return 0, errKindErr{ErrMalformed}
		}
		if i == 16 {
			return 0, errKindErr{ErrMalformed}
		}
		n = n<<4 | v
	}
	return n, nil
}
