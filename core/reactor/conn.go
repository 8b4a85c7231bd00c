package reactor

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/gofrs/uuid/v5"

	"github.com/strandkit/strand/core/action"
	"github.com/strandkit/strand/core/http"
	"github.com/strandkit/strand/core/poller"
	"github.com/strandkit/strand/core/pools"
)

var knownMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true, "DELETE": true,
	"OPTIONS": true, "TRACE": true, "PATCH": true, "CONNECT": true,
}

type connState int

const (
	stateReading connState = iota
	stateWriting
	stateClosing
)

// conn is one accepted client connection. All access happens on the reactor
// goroutine, so there is no locking.
type conn struct {
	fd     int
	remote string
	local  string

	parser *http.Parser
	state  connState

	// out is response bytes not yet accepted by the kernel.
	out []byte

	served          int
	closeAfterWrite bool
	lastActive      time.Time
	interest        int
}

func (r *Reactor) acceptReady(listenFD int) {
	for {
		nfd, sa, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EINTR || err == unix.ECONNABORTED {
				continue
			}
			r.log.Error("accept failed", zap.Error(err))
			return
		}

		unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		unix.SetsockoptInt(nfd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)

		c := &conn{
			fd:         nfd,
			remote:     sockaddrString(sa),
			local:      r.addr,
			parser:     http.NewParser(r.cfg.Limits),
			state:      stateReading,
			lastActive: time.Now(),
			interest:   poller.Read,
		}
		if err := r.poll.Add(nfd, poller.Read); err != nil {
			r.log.Error("poller add failed", zap.Int("fd", nfd), zap.Error(err))
			unix.Close(nfd)
			continue
		}
		r.conns[nfd] = c
		r.log.Debug("connection accepted",
			zap.Int("fd", nfd),
			zap.String("remote", c.remote))
	}
}

func (r *Reactor) connReadable(c *conn) {
	buf := pools.GetBytes(r.cfg.ReadBufferSize)
	defer pools.PutBytes(buf)

	eof := false
	for {
		n, err := unix.Read(c.fd, buf)
		if n > 0 {
			c.lastActive = time.Now()
			c.parser.Feed(buf[:n])
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			if err == unix.EINTR {
				continue
			}
			r.closeConn(c, "read error")
			return
		}
		if n == 0 {
			eof = true
			break
		}
		if n < len(buf) {
			break
		}
	}

	// Requests that arrived before an EOF still get served; anything
	// half-parsed is abandoned with the connection.
	r.drainRequests(c)
	if eof && c.state != stateClosing {
		c.closeAfterWrite = true
		if len(c.out) == 0 {
			r.closeConn(c, "peer closed")
		}
	}
}

// drainRequests serves every complete request buffered on the connection,
// including pipelined ones, before returning to the poll loop.
func (r *Reactor) drainRequests(c *conn) {
	for c.state == stateReading {
		req, err := c.parser.Next()
		if err != nil {
			var perr *http.ProtocolError
			if errors.As(err, &perr) {
				r.log.Warn("protocol error",
					zap.String("remote", c.remote),
					zap.Int("status", perr.Status),
					zap.String("reason", perr.Reason))
				w := http.NewResponse("HTTP/1.1")
				r.errorPages.Render(w, perr.Status, perr.Reason)
				c.closeAfterWrite = true
				r.enqueue(c, w.Take())
				return
			}
			r.closeConn(c, "parse error")
			return
		}
		if req == nil {
			return
		}
		r.serveRequest(c, req)
	}
}

func (r *Reactor) serveRequest(c *conn, req *http.Request) {
	req.RemoteAddr = c.remote
	req.LocalAddr = c.local
	c.served++

	method := strings.ToUpper(req.Method)

	w := http.NewResponse(req.Proto)
	if method == "HEAD" {
		w.DiscardBody()
	}
	id, _ := uuid.NewV4()
	log := r.log.With(
		zap.String("request_id", id.String()),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("remote", c.remote))

	route, params, found := r.router.Resolve(req.Path)
	switch {
	case !knownMethods[method]:
		r.errorPages.Render(w, http.StatusMethodNotAllowed, "unknown method "+req.Method)
	case !found:
		r.errorPages.Render(w, http.StatusNotFound, "no route for "+req.Path)
	default:
		// Resolved per request so a registry reload takes effect without
		// restarting the loop. A handler unregistered since the route was
		// built is a routing miss, not a server fault.
		if _, ok := r.registry.Resolve(route.HandlerRef); !ok {
			log.Error("handler not registered", zap.String("handler", route.HandlerRef))
			r.errorPages.Render(w, http.StatusNotFound, "no route for "+req.Path)
			break
		}
		handler, err := r.registry.Build(route.HandlerRef, route.Args)
		if err != nil {
			log.Error("handler construction failed", zap.Error(err))
			r.errorPages.Render(w, http.StatusInternalServerError, "")
		} else {
			ctx := &action.Ctx{
				Request:   req,
				Response:  w,
				Params:    params,
				Args:      route.Args,
				RequestID: id.String(),
				Log:       log,
				Outbound: func(addr string, payload []byte, timeout time.Duration, cb func(*http.ClientResponse, error)) error {
					return r.Issue(addr, payload, timeout, cb)
				},
			}
			switch err := action.Dispatch(handler, ctx); {
			case err == nil:
				w.Finish()
			case errors.Is(err, action.ErrMethodNotSupported):
				r.errorPages.Render(w, http.StatusMethodNotAllowed, req.Method+" not supported on "+route.Pattern)
			default:
				log.Error("handler failed", zap.Error(err))
				if w.Composed() {
					// Headers already sent; the framing cannot carry an
					// error page, so cut the connection.
					c.closeAfterWrite = true
					w.Finish()
				} else {
					r.errorPages.Render(w, http.StatusInternalServerError, "")
				}
				var fault *action.HandlerFault
				if errors.As(err, &fault) {
					c.closeAfterWrite = true
				}
			}
		}
	}

	log.Info("request served",
		zap.Int("status", w.Status()),
		zap.Int("served_on_conn", c.served))

	if w.CloseAfter() || !req.Persistent() {
		c.closeAfterWrite = true
	}
	if r.cfg.MaxRequestsPerConn > 0 && c.served >= r.cfg.MaxRequestsPerConn {
		c.closeAfterWrite = true
	}
	r.enqueue(c, w.Take())
}

// enqueue appends response bytes and flushes as much as the socket accepts.
func (r *Reactor) enqueue(c *conn, data []byte) {
	c.out = append(c.out, data...)
	r.flush(c)
}

func (r *Reactor) flush(c *conn) {
	for len(c.out) > 0 {
		n, err := unix.Write(c.fd, c.out)
		if n > 0 {
			c.out = c.out[n:]
			c.lastActive = time.Now()
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				c.state = stateWriting
				r.setInterest(c, poller.Read|poller.Write)
				return
			}
			if err == unix.EINTR {
				continue
			}
			r.closeConn(c, "write error")
			return
		}
	}

	if c.closeAfterWrite {
		r.closeConn(c, "response complete")
		return
	}
	if c.state == stateWriting {
		c.state = stateReading
		r.setInterest(c, poller.Read)
		// Requests pipelined behind the stalled write are still buffered.
		r.drainRequests(c)
	}
}

func (r *Reactor) connWritable(c *conn) {
	r.flush(c)
}

func (r *Reactor) setInterest(c *conn, interest int) {
	if c.interest == interest {
		return
	}
	if err := r.poll.Modify(c.fd, interest); err != nil {
		r.log.Error("poller modify failed", zap.Int("fd", c.fd), zap.Error(err))
		r.closeConn(c, "poller failure")
		return
	}
	c.interest = interest
}

func (r *Reactor) closeConn(c *conn, why string) {
	if c.state == stateClosing {
		return
	}
	c.state = stateClosing

	delete(r.conns, c.fd)
	r.poll.Remove(c.fd)
	unix.Close(c.fd)

	r.log.Debug("connection closed",
		zap.Int("fd", c.fd),
		zap.String("remote", c.remote),
		zap.String("why", why),
		zap.Int("requests_served", c.served))
}

// sweepIdle closes connections quiet for longer than the idle timeout.
func (r *Reactor) sweepIdle(now time.Time) {
	if r.cfg.IdleTimeout <= 0 {
		return
	}
	for _, c := range r.conns {
		if now.Sub(c.lastActive) > r.cfg.IdleTimeout {
			r.closeConn(c, "idle timeout")
		}
	}
}
