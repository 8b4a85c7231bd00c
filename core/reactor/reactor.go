package reactor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/strandkit/strand/core/action"
	"github.com/strandkit/strand/core/http"
	"github.com/strandkit/strand/core/poller"
	"github.com/strandkit/strand/core/registry"
	"github.com/strandkit/strand/core/router"
)

// Config tunes one reactor instance.
type Config struct {
	// Addr is the primary listen address. Addrs adds more; the reactor
	// accepts on all of them and serves the same route table.
	Addr               string
	Addrs              []string
	ReusePort          bool
	Limits             http.Limits
	IdleTimeout        time.Duration
	MaxRequestsPerConn int
	ReadBufferSize     int
}

func (c Config) withDefaults() Config {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 8192
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

// Reactor runs a single-threaded event loop over nonblocking sockets: the
// listen socket, every accepted connection, every outbound client
// connection, and a wakeup pipe other goroutines use to hand it work.
type Reactor struct {
	cfg  Config
	addr string

	poll      poller.Poller
	listeners map[int]string

	router     *router.Router
	registry   *registry.Registry
	errorPages *action.ErrorPages

	conns    map[int]*conn
	outbound map[int]*outboundConn

	wakeRead  int
	wakeWrite int

	mu      sync.Mutex
	pending []*outboundReq
	stopped bool

	log *zap.Logger
}

// New creates a reactor. Listen must run before Run.
func New(cfg Config, rt *router.Router, reg *registry.Registry, pages *action.ErrorPages, log *zap.Logger) (*Reactor, error) {
	p, err := poller.NewPoller()
	if err != nil {
		return nil, fmt.Errorf("reactor: poller: %w", err)
	}

	var pipeFDs [2]int
	if err := unix.Pipe2(pipeFDs[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		p.Close()
		return nil, fmt.Errorf("reactor: wakeup pipe: %w", err)
	}

	if pages == nil {
		pages = action.NewErrorPages()
	}

	r := &Reactor{
		cfg:        cfg.withDefaults(),
		poll:       p,
		listeners:  make(map[int]string),
		router:     rt,
		registry:   reg,
		errorPages: pages,
		conns:      make(map[int]*conn),
		outbound:   make(map[int]*outboundConn),
		wakeRead:   pipeFDs[0],
		wakeWrite:  pipeFDs[1],
		log:        log,
	}
	if err := p.Add(r.wakeRead, poller.Read); err != nil {
		r.Close()
		return nil, fmt.Errorf("reactor: register wakeup: %w", err)
	}
	return r, nil
}

// Listen binds the serving sockets, the primary Addr plus any extra Addrs.
func (r *Reactor) Listen() error {
	addrs := append([]string{r.cfg.Addr}, r.cfg.Addrs...)
	for _, a := range addrs {
		fd, err := listen(a, r.cfg.ReusePort)
		if err != nil {
			return err
		}
		bound := a
		if sa, err := unix.Getsockname(fd); err == nil {
			if s := sockaddrString(sa); s != "" {
				bound = s
			}
		}
		if err := r.poll.Add(fd, poller.Read); err != nil {
			unix.Close(fd)
			return fmt.Errorf("reactor: register listener: %w", err)
		}
		r.listeners[fd] = bound
		if r.addr == "" {
			r.addr = bound
		}
		r.log.Info("listening", zap.String("addr", bound), zap.Bool("reuse_port", r.cfg.ReusePort))
	}
	return nil
}

// Addr returns the bound listen address, useful when the config asked for
// port 0.
func (r *Reactor) Addr() string { return r.addr }

// Run drives the event loop until ctx is cancelled. It must be called from
// exactly one goroutine; everything inside the loop is single-threaded.
func (r *Reactor) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, r.wake)
	defer stop()

	lastSweep := time.Now()
	for {
		if ctx.Err() != nil {
			r.shutdown()
			return ctx.Err()
		}

		events, err := r.poll.Wait(1000)
		if err != nil {
			return fmt.Errorf("reactor: poll wait: %w", err)
		}

		for _, ev := range events {
			if _, ok := r.listeners[ev.FD]; ok {
				r.acceptReady(ev.FD)
				continue
			}
			if ev.FD == r.wakeRead {
				r.drainWakeup()
				continue
			}
			r.dispatchEvent(ev)
		}

		if now := time.Now(); now.Sub(lastSweep) >= time.Second {
			r.sweepIdle(now)
			r.sweepOutbound(now)
			lastSweep = now
		}
	}
}

func (r *Reactor) dispatchEvent(ev poller.Event) {
	if c, ok := r.conns[ev.FD]; ok {
		// A hangup with pending data still reads first; the read loop
		// sees the EOF after draining it.
		if ev.Err && !ev.Readable {
			r.closeConn(c, "socket error")
			return
		}
		if ev.Writable {
			r.connWritable(c)
		}
		if ev.Readable && c.state != stateClosing {
			r.connReadable(c)
		}
		return
	}
	if oc, ok := r.outbound[ev.FD]; ok {
		r.outboundEvent(oc, ev)
	}
}

func (r *Reactor) drainWakeup() {
	var buf [64]byte
	for {
		if _, err := unix.Read(r.wakeRead, buf[:]); err != nil {
			break
		}
	}
	r.startPending()
}

// wake nudges the event loop from another goroutine.
func (r *Reactor) wake() {
	unix.Write(r.wakeWrite, []byte{1})
}

func (r *Reactor) shutdown() {
	for _, c := range r.conns {
		r.closeConn(c, "shutdown")
	}
	for _, oc := range r.outbound {
		r.failOutbound(oc, fmt.Errorf("reactor: shutting down"))
	}
	r.Close()
	r.log.Info("reactor stopped")
}

// Close releases the reactor's own descriptors. Run calls it on the way
// out; standalone use (tests, failed startup) may call it directly.
func (r *Reactor) Close() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	for fd := range r.listeners {
		r.poll.Remove(fd)
		unix.Close(fd)
		delete(r.listeners, fd)
	}
	unix.Close(r.wakeRead)
	unix.Close(r.wakeWrite)
	r.poll.Close()
}
