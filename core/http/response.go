package http

import (
	"fmt"
	"strconv"
	"time"
)

// Cookie carries the attributes of a Set-Cookie header.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	Expires  time.Time
	MaxAge   int
	Secure   bool
	HTTPOnly bool
}

func (c Cookie) encode() string {
	s := c.Name + "=" + c.Value
	if c.Path != "" {
		s += "; Path=" + c.Path
	}
	if c.Domain != "" {
		s += "; Domain=" + c.Domain
	}
	if !c.Expires.IsZero() {
		s += "; Expires=" + c.Expires.UTC().Format(time.RFC1123)
	}
	if c.MaxAge != 0 {
		s += "; Max-Age=" + strconv.Itoa(c.MaxAge)
	}
	if c.Secure {
		s += "; Secure"
	}
	if c.HTTPOnly {
		s += "; HttpOnly"
	}
	return s
}

type headerPair struct {
	name  string
	value string
}

// Response composes the wire bytes of one HTTP response. Headers must be
// composed before the first body write; composition is idempotent so
// handlers and the error path can both call it safely.
//
// HTTP/1.1 responses are framed with chunked transfer encoding, which lets
// headers go out before the body size is known. HTTP/1.0 responses write the
// body raw and force the connection closed.
type Response struct {
	proto    string
	status   int
	headers  []headerPair
	cookies  []Cookie
	composed bool
	finished bool
	chunked  bool
	discard  bool
	out      []byte
}

// NewResponse starts a response for the given request protocol version.
func NewResponse(proto string) *Response {
	return &Response{proto: proto, status: StatusOK}
}

// SetStatus sets the status code. It has no effect after headers compose.
func (w *Response) SetStatus(code int) {
	if !w.composed {
		w.status = code
	}
}

// Status returns the status code the response will carry (or carried).
func (w *Response) Status() int { return w.status }

// SetHeader sets a header, replacing any prior value of the same name.
func (w *Response) SetHeader(name, value string) {
	if w.composed {
		return
	}
	for i := range w.headers {
		if w.headers[i].name == name {
			w.headers[i].value = value
			return
		}
	}
	w.headers = append(w.headers, headerPair{name, value})
}

// AddHeader appends a header without replacing earlier values.
func (w *Response) AddHeader(name, value string) {
	if !w.composed {
		w.headers = append(w.headers, headerPair{name, value})
	}
}

// SetCookie queues a Set-Cookie header.
func (w *Response) SetCookie(c Cookie) {
	if !w.composed {
		w.cookies = append(w.cookies, c)
	}
}

// Redirect sets a Location header with the given status. Status zero means
// 302.
func (w *Response) Redirect(location string, status int) {
	if status == 0 {
		status = StatusFound
	}
	w.SetStatus(status)
	w.SetHeader("Location", location)
}

// Composed reports whether headers have been written.
func (w *Response) Composed() bool { return w.composed }

// CloseAfter reports whether the connection must close once this response
// finishes. True for HTTP/1.0 bodies, which are delimited by EOF.
func (w *Response) CloseAfter() bool { return w.proto != "HTTP/1.1" }

// ComposeHeaders serializes the status line and headers. Calling it again is
// a no-op.
func (w *Response) ComposeHeaders() {
	if w.composed {
		return
	}
	w.composed = true

	w.out = append(w.out, w.proto...)
	w.out = append(w.out, ' ')
	w.out = strconv.AppendInt(w.out, int64(w.status), 10)
	w.out = append(w.out, ' ')
	w.out = append(w.out, StatusText(w.status)...)
	w.out = append(w.out, '\r', '\n')

	if w.proto == "HTTP/1.1" {
		w.chunked = true
		w.headers = append(w.headers, headerPair{"Transfer-Encoding", "chunked"})
	} else {
		w.headers = append(w.headers, headerPair{"Connection", "close"})
	}

	hasType := false
	for _, h := range w.headers {
		if h.name == "Content-Type" {
			hasType = true
		}
		w.out = append(w.out, h.name...)
		w.out = append(w.out, ':', ' ')
		w.out = append(w.out, h.value...)
		w.out = append(w.out, '\r', '\n')
	}
	if !hasType {
		w.out = append(w.out, "Content-Type: text/html\r\n"...)
	}
	for _, c := range w.cookies {
		w.out = append(w.out, "Set-Cookie: "...)
		w.out = append(w.out, c.encode()...)
		w.out = append(w.out, '\r', '\n')
	}
	w.out = append(w.out, '\r', '\n')
}

// DiscardBody makes subsequent body writes report success without emitting
// bytes, for HEAD responses.
func (w *Response) DiscardBody() { w.discard = true }

// Write appends body bytes, composing headers first if the handler has not
// already done so.
func (w *Response) Write(p []byte) (int, error) {
	if w.finished {
		return 0, fmt.Errorf("http: write after response finished")
	}
	w.ComposeHeaders()

	if len(p) == 0 || w.discard {
		return len(p), nil
	}
	if w.chunked {
		w.out = strconv.AppendInt(w.out, int64(len(p)), 16)
		w.out = append(w.out, '\r', '\n')
		w.out = append(w.out, p...)
		w.out = append(w.out, '\r', '\n')
	} else {
		w.out = append(w.out, p...)
	}
	return len(p), nil
}

// WriteString appends a string body fragment.
func (w *Response) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Finish terminates the response. Chunked responses get the zero-length
// terminal chunk.
func (w *Response) Finish() {
	if w.finished {
		return
	}
	w.ComposeHeaders()
	if w.chunked {
		w.out = append(w.out, '0', '\r', '\n', '\r', '\n')
	}
	w.finished = true
}

// Finished reports whether Finish has run.
func (w *Response) Finished() bool { return w.finished }

// Take returns the wire bytes accumulated so far and clears the buffer, so
// the transport can stream a response progressively.
func (w *Response) Take() []byte {
	out := w.out
	w.out = nil
	return out
}

// Bytes returns the pending wire bytes without consuming them.
func (w *Response) Bytes() []byte { return w.out }
