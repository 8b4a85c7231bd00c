package http

import (
	"net/textproto"
	"strings"
)

// Persistence classification for a parsed request, mirroring the two ways a
// connection earns reuse: protocol default (HTTP/1.1) or an explicit
// keep-alive header (HTTP/1.0).
const (
	PersistenceNone = iota
	PersistenceKeepAlive
	PersistenceProtocol
)

// Request is a fully parsed inbound HTTP request.
type Request struct {
	Method  string
	Path    string // path without the query string
	RawPath string // path as received, including the query string
	Proto   string // "HTTP/1.0" or "HTTP/1.1"

	// Headers uses canonical MIME keys. Duplicate headers are
	// last-value-wins.
	Headers map[string]string

	// Cookies parsed from the Cookie header.
	Cookies map[string]string

	// Params holds query-string values merged with urlencoded form body
	// values. Multi-valued parameters accumulate in order.
	Params map[string][]string

	Body          []byte
	ContentLength int64
	Chunked       bool

	RemoteAddr string
	LocalAddr  string

	persistence int
}

// Header returns a header value by name (any case). Missing headers yield "".
func (r *Request) Header(name string) string {
	return r.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// Cookie returns a request cookie value by name.
func (r *Request) Cookie(name string) string {
	return r.Cookies[name]
}

// Param returns the first value of a query/form parameter.
func (r *Request) Param(name string) string {
	if vs := r.Params[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Persistent reports whether the transport may serve another request after
// this one. HTTP/1.1 persists unless the client sent "Connection: close";
// HTTP/1.0 persists only with an explicit "Connection: keep-alive".
func (r *Request) Persistent() bool {
	return r.persistence != PersistenceNone
}

func (r *Request) classifyPersistence() {
	conn := strings.ToLower(r.Header("Connection"))

	switch {
	case r.Proto == "HTTP/1.1" && conn != "close":
		r.persistence = PersistenceProtocol
	case conn == "keep-alive":
		r.persistence = PersistenceKeepAlive
	default:
		r.persistence = PersistenceNone
	}
}

func (r *Request) addParam(name, value string) {
	if r.Params == nil {
		r.Params = make(map[string][]string, 4)
	}
	r.Params[name] = append(r.Params[name], value)
}

func (r *Request) setHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string, 8)
	}
	r.Headers[textproto.CanonicalMIMEHeaderKey(name)] = value
}

func parseCookieHeader(raw string, into map[string]string) {
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, value, _ := strings.Cut(part, "=")
		into[name] = value
	}
}
