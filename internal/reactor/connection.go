//go:build linux

package reactor

import (
	"time"

	"github.com/AKMHZJ/go-localserver/internal/config"
	"github.com/AKMHZJ/go-localserver/internal/parser"
)

// connection is a live client socket with its parser and buffers, per the
// data model. It carries at most one in-flight request at a time.
type connection struct {
	fd       int
	listener *boundListener
	parser   *parser.Parser

	outbound []byte // bytes pending write; drained on write-readiness
	writeInt bool   // whether EPOLLOUT interest is currently registered

	lastActivity time.Time
	closing      bool // close once outbound drains
}

func newConnection(fd int, l *boundListener, defaultMaxBody int64, now time.Time) *connection {
	maxBody := defaultMaxBody
	if len(l.cfg.Hosts) > 0 && l.cfg.Hosts[0].ClientMaxBodySize > 0 {
		maxBody = l.cfg.Hosts[0].ClientMaxBodySize
	}
	return &connection{
		fd:           fd,
		listener:     l,
		parser:       parser.New(maxBody),
		lastActivity: now,
	}
}

// touch updates the idle-timeout clock on any successful read or write.
func (c *connection) touch(now time.Time) { c.lastActivity = now }

// idleFor reports how long the connection has gone without activity.
func (c *connection) idleFor(now time.Time) time.Duration {
	return now.Sub(c.lastActivity)
}

// tightenMaxBody applies the matched virtual host's client_max_body_size
// once the Host header is known, per the parser's body-size enforcement
// precedence rule (vhost limit once known, else listener-wide default).
func (c *connection) tightenMaxBody(vhost *config.Server) {
	if vhost != nil && vhost.ClientMaxBodySize > 0 {
		c.parser.SetMaxBody(vhost.ClientMaxBodySize)
	}
}
