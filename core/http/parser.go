package http

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Parser states.
const (
	stateRequestLine = iota
	stateHeaders
	stateBody
	stateChunkSize
	stateChunkData
	stateChunkTrailer
	stateComplete
)

// Limits bounds the inbound parser. Zero values fall back to the defaults.
type Limits struct {
	MaxRequestLine int
	MaxHeaderBytes int
	MaxBodyBytes   int64
}

const (
	DefaultMaxRequestLine = 4096
	DefaultMaxHeaderBytes = 16384
	DefaultMaxBodyBytes   = 4 << 20
)

func (l Limits) withDefaults() Limits {
	if l.MaxRequestLine <= 0 {
		l.MaxRequestLine = DefaultMaxRequestLine
	}
	if l.MaxHeaderBytes <= 0 {
		l.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return l
}

// ProtocolError is a connection-fatal parse failure. The status carries the
// response the transport should attempt before closing.
type ProtocolError struct {
	Status int
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("http: %d %s", e.Status, e.Reason)
}

func protoErr(status int, format string, args ...any) *ProtocolError {
	return &ProtocolError{Status: status, Reason: fmt.Sprintf(format, args...)}
}

// Parser is an incremental HTTP/1.x request parser. Bytes arrive through
// Feed in whatever fragments the transport produces; Next returns a request
// once one is complete, leaving any pipelined remainder buffered for the
// following call.
type Parser struct {
	limits Limits

	buf   []byte
	state int

	req        *Request
	headerSize int

	bodyRemaining int64
	chunkNeed     int64
}

// NewParser returns a parser bounded by limits.
func NewParser(limits Limits) *Parser {
	return &Parser{limits: limits.withDefaults()}
}

// Feed appends raw bytes from the transport.
func (p *Parser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
}

// Buffered reports how many unconsumed bytes the parser is holding.
func (p *Parser) Buffered() int { return len(p.buf) }

// Next advances the parser. It returns a complete request, or (nil, nil)
// when more bytes are needed, or a *ProtocolError on a malformed or
// oversized request.
func (p *Parser) Next() (*Request, error) {
	for {
		switch p.state {
		case stateRequestLine:
			line, ok, err := p.takeLine(p.limits.MaxRequestLine)
			if err != nil {
				return nil, protoErr(StatusRequestURITooLong, "request line exceeds %d bytes", p.limits.MaxRequestLine)
			}
			if !ok {
				return nil, nil
			}
			if len(line) == 0 {
				// Tolerate a stray CRLF before the request line.
				continue
			}
			if err := p.parseRequestLine(line); err != nil {
				return nil, err
			}
			p.state = stateHeaders

		case stateHeaders:
			line, ok, err := p.takeLine(p.limits.MaxHeaderBytes - p.headerSize)
			if err != nil {
				return nil, protoErr(StatusRequestHeaderFieldsTooLarge, "headers exceed %d bytes", p.limits.MaxHeaderBytes)
			}
			if !ok {
				return nil, nil
			}
			p.headerSize += len(line) + 2
			if len(line) == 0 {
				if err := p.finishHeaders(); err != nil {
					return nil, err
				}
				continue
			}
			if err := p.parseHeaderLine(line); err != nil {
				return nil, err
			}

		case stateBody:
			if int64(len(p.buf)) < p.bodyRemaining {
				return nil, nil
			}
			n := p.bodyRemaining
			p.req.Body = append(p.req.Body, p.buf[:n]...)
			p.buf = p.buf[n:]
			p.bodyRemaining = 0
			p.state = stateComplete

		case stateChunkSize:
			line, ok, err := p.takeLine(p.limits.MaxRequestLine)
			if err != nil {
				return nil, protoErr(StatusBadRequest, "chunk size line too long")
			}
			if !ok {
				return nil, nil
			}
			sizeStr, _, _ := strings.Cut(string(line), ";")
			size, perr := strconv.ParseInt(strings.TrimSpace(sizeStr), 16, 64)
			if perr != nil || size < 0 {
				return nil, protoErr(StatusBadRequest, "malformed chunk size %q", sizeStr)
			}
			if int64(len(p.req.Body))+size > p.limits.MaxBodyBytes {
				return nil, protoErr(StatusRequestEntityTooLarge, "chunked body exceeds %d bytes", p.limits.MaxBodyBytes)
			}
			if size == 0 {
				p.state = stateChunkTrailer
				continue
			}
			p.chunkNeed = size
			p.state = stateChunkData

		case stateChunkData:
			// Chunk payload plus its trailing CRLF.
			if int64(len(p.buf)) < p.chunkNeed+2 {
				return nil, nil
			}
			p.req.Body = append(p.req.Body, p.buf[:p.chunkNeed]...)
			if p.buf[p.chunkNeed] != '\r' || p.buf[p.chunkNeed+1] != '\n' {
				return nil, protoErr(StatusBadRequest, "chunk missing CRLF terminator")
			}
			p.buf = p.buf[p.chunkNeed+2:]
			p.chunkNeed = 0
			p.state = stateChunkSize

		case stateChunkTrailer:
			line, ok, err := p.takeLine(p.limits.MaxHeaderBytes - p.headerSize)
			if err != nil {
				return nil, protoErr(StatusBadRequest, "chunk trailer too long")
			}
			if !ok {
				return nil, nil
			}
			p.headerSize += len(line) + 2
			if len(line) == 0 {
				p.state = stateComplete
				continue
			}
			// Trailer headers are parsed but do not override earlier ones.

		case stateComplete:
			req := p.req
			p.reset()

			req.mergeFormBody()
			return req, nil
		}
	}
}

func (p *Parser) reset() {
	p.req = nil
	p.state = stateRequestLine
	p.headerSize = 0
	p.bodyRemaining = 0
	p.chunkNeed = 0
}

// takeLine consumes one CRLF (or bare LF) terminated line. ok is false when
// the buffer does not yet hold a full line; err is non-nil when the pending
// partial line already exceeds max. An exhausted budget (max <= 0) is
// over-limit, never unlimited.
func (p *Parser) takeLine(max int) (line []byte, ok bool, err error) {
	if max <= 0 {
		return nil, false, errLineTooLong
	}
	idx := bytes.IndexByte(p.buf, '\n')
	if idx < 0 {
		if len(p.buf) > max {
			return nil, false, errLineTooLong
		}
		return nil, false, nil
	}
	if idx > max {
		return nil, false, errLineTooLong
	}

	line = p.buf[:idx]
	p.buf = p.buf[idx+1:]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, true, nil
}

var errLineTooLong = fmt.Errorf("http: line too long")

func (p *Parser) parseRequestLine(line []byte) error {
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) < 2 {
		return protoErr(StatusBadRequest, "malformed request line %q", line)
	}

	req := &Request{
		Method:  parts[0],
		RawPath: parts[1],
		Proto:   "HTTP/1.0",
		Cookies: make(map[string]string),
	}
	if len(parts) == 3 && parts[2] != "" {
		req.Proto = parts[2]
	}

	switch req.Proto {
	case "HTTP/1.0", "HTTP/1.1":
	default:
		return protoErr(StatusHTTPVersionNotSupported, "unsupported protocol %q", req.Proto)
	}

	path, query, hasQuery := strings.Cut(req.RawPath, "?")
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	req.Path = path
	if hasQuery {
		if vals, err := url.ParseQuery(query); err == nil {
			for name, vs := range vals {
				for _, v := range vs {
					req.addParam(name, v)
				}
			}
		}
	}

	p.req = req
	return nil
}

func (p *Parser) parseHeaderLine(line []byte) error {
	name, value, found := strings.Cut(string(line), ":")
	if !found || name == "" {
		return protoErr(StatusBadRequest, "malformed header %q", line)
	}
	p.req.setHeader(name, strings.TrimSpace(value))
	return nil
}

func (p *Parser) finishHeaders() error {
	req := p.req
	req.classifyPersistence()

	if cookie := req.Header("Cookie"); cookie != "" {
		parseCookieHeader(cookie, req.Cookies)
	}

	if te := strings.ToLower(req.Header("Transfer-Encoding")); strings.Contains(te, "chunked") {
		req.Chunked = true
		p.state = stateChunkSize
		return nil
	}

	if cl := req.Header("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return protoErr(StatusBadRequest, "malformed Content-Length %q", cl)
		}
		if n > p.limits.MaxBodyBytes {
			return protoErr(StatusRequestEntityTooLarge, "body of %d bytes exceeds %d", n, p.limits.MaxBodyBytes)
		}
		req.ContentLength = n
		if n > 0 {
			p.bodyRemaining = n
			p.state = stateBody
			return nil
		}
	}

	p.state = stateComplete
	return nil
}

// mergeFormBody folds a urlencoded body into Params after the query string,
// so form values append rather than replace.
func (r *Request) mergeFormBody() {
	if len(r.Body) == 0 {
		return
	}
	ct, _, _ := strings.Cut(r.Header("Content-Type"), ";")
	if strings.TrimSpace(ct) != "application/x-www-form-urlencoded" {
		return
	}
	vals, err := url.ParseQuery(string(r.Body))
	if err != nil {
		return
	}
	for name, vs := range vals {
		for _, v := range vs {
			r.addParam(name, v)
		}
	}
}
