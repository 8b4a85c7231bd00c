//go:build darwin || freebsd || netbsd || openbsd
// +build darwin freebsd netbsd openbsd

package poller

import (
	"golang.org/x/sys/unix"
)

// KqueuePoller is a kqueue-based I/O multiplexer
type KqueuePoller struct {
	kqfd   int
	events []unix.Kevent_t
}

// NewPoller creates a new Poller (BSD/macOS)
func NewPoller() (Poller, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}

	return &KqueuePoller{
		kqfd:   kqfd,
		events: make([]unix.Kevent_t, 1024),
	}, nil
}

func (p *KqueuePoller) control(fd int, filter int16, flags uint16) error {
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}

	_, err := unix.Kevent(p.kqfd, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (p *KqueuePoller) apply(fd int, interest int) error {
	// kqueue keeps one registration per filter, so read and write interest
	// are toggled independently.
	if interest&Read != 0 {
		if err := p.control(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE); err != nil {
			return err
		}
	} else {
		p.control(fd, unix.EVFILT_READ, unix.EV_DELETE)
	}

	if interest&Write != 0 {
		return p.control(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE)
	}

	p.control(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	return nil
}

// Add adds a file descriptor to the watch list
func (p *KqueuePoller) Add(fd int, interest int) error {
	return p.apply(fd, interest)
}

// Modify replaces the interest set for a file descriptor
func (p *KqueuePoller) Modify(fd int, interest int) error {
	return p.apply(fd, interest)
}

// Remove removes a file descriptor from the watch list
func (p *KqueuePoller) Remove(fd int) error {
	p.control(fd, unix.EVFILT_READ, unix.EV_DELETE)
	p.control(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	return nil
}

// Wait waits for I/O events
func (p *KqueuePoller) Wait(timeout int) ([]Event, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.Timespec{
			Sec:  int64(timeout / 1000),
			Nsec: int64((timeout % 1000) * 1000000),
		}
		ts = &t
	}

	n, err := unix.Kevent(p.kqfd, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	if n <= 0 {
		return nil, nil
	}

	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		raw := p.events[i]
		events = append(events, Event{
			FD:       int(raw.Ident),
			Readable: raw.Filter == unix.EVFILT_READ,
			Writable: raw.Filter == unix.EVFILT_WRITE,
			Err:      raw.Flags&(unix.EV_ERROR|unix.EV_EOF) != 0,
		})
	}

	return events, nil
}

// Close closes the Poller
func (p *KqueuePoller) Close() error {
	return unix.Close(p.kqfd)
}
