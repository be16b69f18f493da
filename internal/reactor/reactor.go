//go:build linux

// Package reactor implements the single-threaded, epoll-driven event loop
// that owns every listening socket and every live connection: it accepts,
// drains non-blocking reads and writes, invokes the dispatcher once a
// request is complete, and reaps idle or failed connections. Grounded on
// docker-compose's archutils/epoll.go (the three epoll syscalls) and
// execution/executors/shim/shim.go (the registered-fd bookkeeping around
// them).
package reactor

import (
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AKMHZJ/go-localserver/internal/config"
	"github.com/AKMHZJ/go-localserver/internal/errs"
	"github.com/AKMHZJ/go-localserver/internal/httpmsg"
	"github.com/AKMHZJ/go-localserver/internal/parser"
	"github.com/AKMHZJ/go-localserver/internal/serialize"
)

const (
	readChunkDefault = 64 * 1024
	tickInterval     = 1 * time.Second
	maxEventsPerWait = 256
)

// Dispatch produces a response for a completed request on a given listener.
type Dispatch func(req *httpmsg.Request, listener *config.Listener) *httpmsg.Response

// Reactor owns one epoll instance, every listening socket, and the table of
// live connections.
type Reactor struct {
	epfd int
	log  *logrus.Entry

	listeners map[int]*boundListener
	conns     map[int]*connection

	dispatch       Dispatch
	idleTimeout    time.Duration
	readChunk      int
	defaultMaxBody int64

	stop chan struct{}
}

// New builds a Reactor. dispatch is called synchronously from the read path
// whenever a connection's parser completes a request.
func New(log *logrus.Entry, dispatch Dispatch, idleTimeout time.Duration, readChunk int, defaultMaxBody int64) (*Reactor, error) {
	epfd, err := epollCreate()
	if err != nil {
		return nil, errs.Wrap(errs.KindBind, err, "creating epoll instance")
	}
	if readChunk <= 0 {
		readChunk = readChunkDefault
	}
	return &Reactor{
		epfd:           epfd,
		log:            log,
		listeners:      map[int]*boundListener{},
		conns:          map[int]*connection{},
		dispatch:       dispatch,
		idleTimeout:    idleTimeout,
		readChunk:      readChunk,
		defaultMaxBody: defaultMaxBody,
		stop:           make(chan struct{}),
	}, nil
}

// Bind opens every listener's socket and registers it for read-readiness.
// All-or-nothing: any failure tears down sockets already opened.
func (r *Reactor) Bind(listeners []*config.Listener) error {
	opened := make([]int, 0, len(listeners))
	for _, l := range listeners {
		fd, err := openListener(l.Addr)
		if err != nil {
			for _, f := range opened {
				_ = closeFd(f)
			}
			return err
		}
		if err := epollCtl(r.epfd, epollctlAdd, fd, epollinFlag); err != nil {
			_ = closeFd(fd)
			for _, f := range opened {
				_ = closeFd(f)
			}
			return errs.Wrap(errs.KindBind, err, "registering listener with epoll")
		}
		r.listeners[fd] = &boundListener{fd: fd, cfg: l}
		opened = append(opened, fd)
		r.log.WithField("addr", l.Addr).Info("listening")
	}
	return nil
}

// Stop requests the run loop to exit after its current iteration.
func (r *Reactor) Stop() { close(r.stop) }

// Run blocks, servicing readiness events until Stop is called or a fatal
// epoll error occurs.
func (r *Reactor) Run() error {
	events := make([]syscall.EpollEvent, maxEventsPerWait)
	for {
		select {
		case <-r.stop:
			return nil
		default:
		}

		timeout := r.nextTimeoutMillis()
		n, err := epollWait(r.epfd, events, timeout)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return errs.Wrap(errs.KindInternal, err, "epoll_wait failed")
		}

		now := time.Now()
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			mask := events[i].Events

			if l, ok := r.listeners[fd]; ok {
				r.acceptAll(l, now)
				continue
			}
			c, ok := r.conns[fd]
			if !ok {
				continue
			}
			if mask&(syscall.EPOLLHUP|syscall.EPOLLERR) != 0 {
				c.closing = true
			} else {
				if mask&epollinFlag != 0 {
					r.handleReadable(c, now)
				}
				if mask&epolloutFlag != 0 {
					r.handleWritable(c, now)
				}
			}
			r.maybeDrop(c)
		}

		r.reap(time.Now())
	}
}

// nextTimeoutMillis bounds epoll_wait by the fixed reactor tick, so the
// reaper runs regularly even with no I/O activity.
func (r *Reactor) nextTimeoutMillis() int {
	return int(tickInterval / time.Millisecond)
}

// acceptAll drains the listener's accept queue until it would block, per
// the "accept in a loop" rule.
func (r *Reactor) acceptAll(l *boundListener, now time.Time) {
	for {
		nfd, _, err := syscall.Accept4(l.fd, syscall.SOCK_NONBLOCK)
		if err != nil {
			if err == syscall.EAGAIN {
				return
			}
			r.log.WithError(err).Warn("accept failed")
			return
		}
		c := newConnection(nfd, l, r.defaultMaxBody, now)
		r.conns[nfd] = c
		if err := epollCtl(r.epfd, epollctlAdd, nfd, epollinFlag); err != nil {
			r.log.WithError(err).Warn("registering connection with epoll failed")
			_ = closeFd(nfd)
			delete(r.conns, nfd)
		}
	}
}

// handleReadable drains the socket into the parser until it would block,
// the peer closes, or a non-recoverable error occurs.
func (r *Reactor) handleReadable(c *connection, now time.Time) {
	buf := make([]byte, r.readChunk)
	for {
		n, err := syscall.Read(c.fd, buf)
		if n > 0 {
			c.touch(now)
			r.feed(c, buf[:n])
			if c.closing {
				return
			}
		}
		if err != nil {
			if err == syscall.EAGAIN {
				return
			}
			c.closing = true
			return
		}
		if n == 0 {
			c.closing = true
			return
		}
	}
}

// feed pushes newly read bytes into the connection's parser and, on
// completion, dispatches synchronously and enqueues the serialized
// response for writing.
func (r *Reactor) feed(c *connection, b []byte) {
	outcome := c.parser.Feed(b)

	if req := c.parser.Request(); req != nil && req.Header.Get("Host") != "" {
		vhost := c.listener.cfg.SelectHost(req.Host())
		c.tightenMaxBody(vhost)
	}

	switch outcome {
	case parser.NeedsMore:
		return
	case parser.Error:
		resp := httpmsg.NewResponse(statusForParseError(c.parser.ErrorKind()))
		resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
		resp.Body = []byte(errs.KindParse.String())
		r.enqueue(c, resp)
		c.closing = true
	case parser.Complete:
		req := c.parser.Request()
		resp := r.dispatch(req, c.listener.cfg)
		r.enqueue(c, resp)
		// Connections are closed after each response, per the wire protocol
		// contract: no keep-alive pipelining. The write path drains the
		// queued response before maybeDrop/reap actually close the socket.
		c.closing = true
	}
}

func statusForParseError(kind parser.ErrorKind) int {
	if kind == parser.ErrBodyTooLarge {
		return 413
	}
	return 400
}

// enqueue serializes resp into the connection's outbound buffer and
// requests write-readiness.
func (r *Reactor) enqueue(c *connection, resp *httpmsg.Response) {
	var buf writeBuffer
	if err := serialize.Write(&buf, resp); err != nil {
		r.log.WithError(err).Warn("serializing response failed")
		c.closing = true
		return
	}
	c.outbound = append(c.outbound, buf.Bytes()...)
	r.requestWrite(c)
}

func (r *Reactor) requestWrite(c *connection) {
	if c.writeInt {
		return
	}
	if err := epollCtl(r.epfd, epollctlMod, c.fd, epollinFlag|epolloutFlag); err != nil {
		r.log.WithError(err).Warn("registering write interest failed")
		return
	}
	c.writeInt = true
}

// handleWritable drains the outbound buffer until empty or the write would
// block, clearing write interest when empty.
func (r *Reactor) handleWritable(c *connection, now time.Time) {
	for len(c.outbound) > 0 {
		n, err := syscall.Write(c.fd, c.outbound)
		if n > 0 {
			c.touch(now)
			c.outbound = c.outbound[n:]
		}
		if err != nil {
			if err == syscall.EAGAIN {
				return
			}
			c.closing = true
			return
		}
	}
	if c.writeInt {
		_ = epollCtl(r.epfd, epollctlMod, c.fd, epollinFlag)
		c.writeInt = false
	}
}

// maybeDrop deregisters and drops a connection once it is closing with an
// empty outbound buffer.
func (r *Reactor) maybeDrop(c *connection) {
	if c.closing && len(c.outbound) == 0 {
		_ = epollCtl(r.epfd, epollctlDel, c.fd, 0)
		_ = closeFd(c.fd)
		delete(r.conns, c.fd)
	}
}

// reap closes any connection idle beyond idleTimeout, or already closing
// with a drained outbound buffer.
func (r *Reactor) reap(now time.Time) {
	for fd, c := range r.conns {
		if c.closing && len(c.outbound) == 0 {
			_ = epollCtl(r.epfd, epollctlDel, fd, 0)
			_ = closeFd(fd)
			delete(r.conns, fd)
			continue
		}
		if c.idleFor(now) > r.idleTimeout {
			_ = epollCtl(r.epfd, epollctlDel, fd, 0)
			_ = closeFd(fd)
			delete(r.conns, fd)
		}
	}
}

// writeBuffer is a minimal io.Writer accumulating bytes, used so the
// serializer doesn't need to know about the connection's outbound slice.
type writeBuffer struct{ b []byte }

func (w *writeBuffer) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}
func (w *writeBuffer) Bytes() []byte { return w.b }
