package reactor

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/strandkit/strand/core/http"
	"github.com/strandkit/strand/core/poller"
	"github.com/strandkit/strand/core/pools"
)

// OutboundCallback receives the terminal result of an outbound exchange.
// Exactly one of resp and err is non-nil, and it fires exactly once, on the
// reactor goroutine.
type OutboundCallback func(resp *http.ClientResponse, err error)

// TransportFault reports a failed outbound exchange.
type TransportFault struct {
	Addr string
	Op   string
	Err  error
}

func (e *TransportFault) Error() string {
	return fmt.Sprintf("outbound %s: %s: %v", e.Addr, e.Op, e.Err)
}

func (e *TransportFault) Unwrap() error { return e.Err }

type outboundReq struct {
	addr    string
	payload []byte
	timeout time.Duration
	cb      OutboundCallback
}

type outboundConn struct {
	fd        int
	req       *outboundReq
	parser    *http.ResponseParser
	out       []byte
	connected bool
	done      bool
	deadline  time.Time
}

// Issue queues an outbound HTTP exchange on the reactor's own event loop.
// Safe to call from any goroutine, including from inside a handler running
// on the loop. There is no retry; the callback reports the first failure.
func (r *Reactor) Issue(addr string, payload []byte, timeout time.Duration, cb OutboundCallback) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return fmt.Errorf("reactor: stopped")
	}
	r.pending = append(r.pending, &outboundReq{addr: addr, payload: payload, timeout: timeout, cb: cb})
	r.mu.Unlock()

	r.wake()
	return nil
}

// startPending opens a nonblocking connect for every queued request. Runs
// on the reactor goroutine after a wakeup.
func (r *Reactor) startPending() {
	r.mu.Lock()
	reqs := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, req := range reqs {
		r.startOutbound(req)
	}
}

func (r *Reactor) startOutbound(req *outboundReq) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", req.addr)
	if err != nil {
		req.cb(nil, &TransportFault{Addr: req.addr, Op: "resolve", Err: err})
		return
	}

	family := unix.AF_INET
	if tcpAddr.IP.To4() == nil && tcpAddr.IP != nil {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		req.cb(nil, &TransportFault{Addr: req.addr, Op: "socket", Err: err})
		return
	}
	unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	sa, err := sockaddrFor(family, tcpAddr)
	if err != nil {
		unix.Close(fd)
		req.cb(nil, &TransportFault{Addr: req.addr, Op: "resolve", Err: err})
		return
	}

	oc := &outboundConn{
		fd:     fd,
		req:    req,
		parser: http.NewResponseParser(r.cfg.Limits),
		out:    req.payload,
	}
	if req.timeout > 0 {
		oc.deadline = time.Now().Add(req.timeout)
	}

	err = unix.Connect(fd, sa)
	switch err {
	case nil:
		oc.connected = true
	case unix.EINPROGRESS:
	default:
		unix.Close(fd)
		req.cb(nil, &TransportFault{Addr: req.addr, Op: "connect", Err: err})
		return
	}

	interest := poller.Write
	if oc.connected && len(oc.out) == 0 {
		interest = poller.Read
	}
	if err := r.poll.Add(fd, interest); err != nil {
		unix.Close(fd)
		req.cb(nil, &TransportFault{Addr: req.addr, Op: "register", Err: err})
		return
	}
	r.outbound[fd] = oc
	r.log.Debug("outbound started", zap.String("addr", req.addr), zap.Int("fd", fd))
}

func (r *Reactor) outboundEvent(oc *outboundConn, ev poller.Event) {
	if ev.Err && !ev.Readable {
		r.failOutbound(oc, &TransportFault{Addr: oc.req.addr, Op: "connect", Err: socketError(oc.fd)})
		return
	}
	if ev.Writable {
		r.outboundWritable(oc)
	}
	if ev.Readable && !oc.done {
		r.outboundReadable(oc)
	}
}

func (r *Reactor) outboundWritable(oc *outboundConn) {
	if !oc.connected {
		if err := socketError(oc.fd); err != nil {
			r.failOutbound(oc, &TransportFault{Addr: oc.req.addr, Op: "connect", Err: err})
			return
		}
		oc.connected = true
	}

	for len(oc.out) > 0 {
		n, err := unix.Write(oc.fd, oc.out)
		if n > 0 {
			oc.out = oc.out[n:]
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EINTR {
				continue
			}
			r.failOutbound(oc, &TransportFault{Addr: oc.req.addr, Op: "write", Err: err})
			return
		}
	}

	if err := r.poll.Modify(oc.fd, poller.Read); err != nil {
		r.failOutbound(oc, &TransportFault{Addr: oc.req.addr, Op: "register", Err: err})
	}
}

func (r *Reactor) outboundReadable(oc *outboundConn) {
	buf := pools.GetBytes(r.cfg.ReadBufferSize)
	defer pools.PutBytes(buf)

	for {
		n, err := unix.Read(oc.fd, buf)
		if n > 0 {
			oc.parser.Feed(buf[:n])
			resp, perr := oc.parser.Next()
			if perr != nil {
				r.failOutbound(oc, &TransportFault{Addr: oc.req.addr, Op: "parse", Err: perr})
				return
			}
			if resp != nil {
				r.finishOutbound(oc, resp)
				return
			}
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EINTR {
				continue
			}
			r.failOutbound(oc, &TransportFault{Addr: oc.req.addr, Op: "read", Err: err})
			return
		}
		if n == 0 {
			resp, perr := oc.parser.Finish()
			if perr != nil {
				r.failOutbound(oc, &TransportFault{Addr: oc.req.addr, Op: "read", Err: perr})
				return
			}
			r.finishOutbound(oc, resp)
			return
		}
	}
}

func (r *Reactor) finishOutbound(oc *outboundConn, resp *http.ClientResponse) {
	if oc.done {
		return
	}
	oc.done = true
	r.removeOutbound(oc)
	oc.req.cb(resp, nil)
}

func (r *Reactor) failOutbound(oc *outboundConn, err error) {
	if oc.done {
		return
	}
	oc.done = true
	r.removeOutbound(oc)
	r.log.Debug("outbound failed", zap.String("addr", oc.req.addr), zap.Error(err))
	oc.req.cb(nil, err)
}

func (r *Reactor) removeOutbound(oc *outboundConn) {
	delete(r.outbound, oc.fd)
	r.poll.Remove(oc.fd)
	unix.Close(oc.fd)
}

func (r *Reactor) sweepOutbound(now time.Time) {
	for _, oc := range r.outbound {
		if !oc.deadline.IsZero() && now.After(oc.deadline) {
			r.failOutbound(oc, &TransportFault{Addr: oc.req.addr, Op: "timeout", Err: unix.ETIMEDOUT})
		}
	}
}

func socketError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}
