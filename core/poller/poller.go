package poller

// Interest flags for a registered file descriptor.
const (
	Read  = 1 << iota // readable
	Write             // writable
)

// Event is a single readiness notification.
type Event struct {
	FD       int
	Readable bool
	Writable bool
	Err      bool // error or peer hangup on the descriptor
}

// Poller is the I/O multiplexing interface
type Poller interface {
	Add(fd int, interest int) error
	Modify(fd int, interest int) error
	Remove(fd int) error
	Wait(timeout int) ([]Event, error)
	Close() error
}
