package poller

import (
	"testing"

	"golang.org/x/sys/unix"
)

func newPipe(t *testing.T) (int, int) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestPollerReadReadiness(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	rfd, wfd := newPipe(t)
	if err := p.Add(rfd, Read); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Nothing written yet, so a short wait must be empty.
	events, err := p.Wait(10)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	for _, ev := range events {
		if ev.FD == rfd && ev.Readable {
			t.Fatal("readable before any write")
		}
	}

	unix.Write(wfd, []byte("x"))

	events, err = p.Wait(1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	found := false
	for _, ev := range events {
		if ev.FD == rfd && ev.Readable {
			found = true
		}
	}
	if !found {
		t.Fatal("no readable event after write")
	}
}

func TestPollerModifyAndRemove(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	rfd, wfd := newPipe(t)
	if err := p.Add(wfd, Write); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// An empty pipe's write end is immediately writable.
	events, err := p.Wait(1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	writable := false
	for _, ev := range events {
		if ev.FD == wfd && ev.Writable {
			writable = true
		}
	}
	if !writable {
		t.Fatal("write end not writable")
	}

	// Drop write interest; no further events for the fd.
	if err := p.Modify(wfd, 0); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	events, err = p.Wait(10)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	for _, ev := range events {
		if ev.FD == wfd && ev.Writable {
			t.Fatal("writable event after interest dropped")
		}
	}

	if err := p.Remove(wfd); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_ = rfd
}
