package http

import (
	"bytes"
	"strconv"
	"strings"
)

// ClientResponse is a parsed response to an outbound request.
type ClientResponse struct {
	Proto      string
	Status     int
	Reason     string
	Headers    map[string]string
	Cookies    map[string]string
	Body       []byte
	Persistent bool
}

// Header returns a response header value by canonical name lookup.
func (r *ClientResponse) Header(name string) string {
	return r.Headers[canonicalKey(name)]
}

// ContentType returns the media type without parameters.
func (r *ClientResponse) ContentType() string {
	ct, _, _ := strings.Cut(r.Header("Content-Type"), ";")
	return strings.TrimSpace(ct)
}

// ContentEncoding returns the Content-Encoding header value.
func (r *ClientResponse) ContentEncoding() string {
	return r.Header("Content-Encoding")
}

func canonicalKey(name string) string {
	// textproto canonicalization without the import churn here.
	b := []byte(name)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			b[i] = c - 32
		} else if !upper && 'A' <= c && c <= 'Z' {
			b[i] = c + 32
		}
		upper = c == '-'
	}
	return string(b)
}

// Response parser states mirror the request parser's, with an extra terminal
// mode for bodies delimited by connection close.
const (
	respStateStatusLine = iota
	respStateHeaders
	respStateBody
	respStateChunkSize
	respStateChunkData
	respStateChunkTrailer
	respStateUntilClose
	respStateComplete
)

// ResponseParser incrementally parses one HTTP/1.x response.
type ResponseParser struct {
	limits Limits

	buf   []byte
	state int

	resp          *ClientResponse
	headerSize    int
	bodyRemaining int64
	chunkNeed     int64
}

// NewResponseParser returns a response parser bounded by limits.
func NewResponseParser(limits Limits) *ResponseParser {
	return &ResponseParser{limits: limits.withDefaults()}
}

// Feed appends raw transport bytes.
func (p *ResponseParser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
}

// Next advances the parser, returning a complete response, (nil, nil) when
// more bytes are needed, or a *ProtocolError.
func (p *ResponseParser) Next() (*ClientResponse, error) {
	for {
		switch p.state {
		case respStateStatusLine:
			line, ok, err := p.takeLine(p.limits.MaxRequestLine)
			if err != nil {
				return nil, protoErr(StatusBadGateway, "status line too long")
			}
			if !ok {
				return nil, nil
			}
			if perr := p.parseStatusLine(line); perr != nil {
				return nil, perr
			}
			p.state = respStateHeaders

		case respStateHeaders:
			line, ok, err := p.takeLine(p.limits.MaxHeaderBytes - p.headerSize)
			if err != nil {
				return nil, protoErr(StatusBadGateway, "response headers too long")
			}
			if !ok {
				return nil, nil
			}
			p.headerSize += len(line) + 2
			if len(line) == 0 {
				p.finishHeaders()
				continue
			}
			name, value, found := strings.Cut(string(line), ":")
			if !found || name == "" {
				return nil, protoErr(StatusBadGateway, "malformed response header %q", line)
			}
			key := canonicalKey(name)
			value = strings.TrimSpace(value)
			if key == "Set-Cookie" {
				if cn, cv, ok := strings.Cut(strings.TrimSpace(strings.Split(value, ";")[0]), "="); ok {
					p.resp.Cookies[cn] = cv
				}
				continue
			}
			p.resp.Headers[key] = value

		case respStateBody:
			if int64(len(p.buf)) < p.bodyRemaining {
				return nil, nil
			}
			p.resp.Body = append(p.resp.Body, p.buf[:p.bodyRemaining]...)
			p.buf = p.buf[p.bodyRemaining:]
			p.state = respStateComplete

		case respStateChunkSize:
			line, ok, err := p.takeLine(p.limits.MaxRequestLine)
			if err != nil {
				return nil, protoErr(StatusBadGateway, "chunk size line too long")
			}
			if !ok {
				return nil, nil
			}
			sizeStr, _, _ := strings.Cut(string(line), ";")
			size, perr := strconv.ParseInt(strings.TrimSpace(sizeStr), 16, 64)
			if perr != nil || size < 0 {
				return nil, protoErr(StatusBadGateway, "malformed chunk size %q", sizeStr)
			}
			if int64(len(p.resp.Body))+size > p.limits.MaxBodyBytes {
				return nil, protoErr(StatusBadGateway, "response body exceeds %d bytes", p.limits.MaxBodyBytes)
			}
			if size == 0 {
				p.state = respStateChunkTrailer
				continue
			}
			p.chunkNeed = size
			p.state = respStateChunkData

		case respStateChunkData:
			if int64(len(p.buf)) < p.chunkNeed+2 {
				return nil, nil
			}
			p.resp.Body = append(p.resp.Body, p.buf[:p.chunkNeed]...)
			if p.buf[p.chunkNeed] != '\r' || p.buf[p.chunkNeed+1] != '\n' {
				return nil, protoErr(StatusBadGateway, "chunk missing CRLF terminator")
			}
			p.buf = p.buf[p.chunkNeed+2:]
			p.state = respStateChunkSize

		case respStateChunkTrailer:
			line, ok, err := p.takeLine(p.limits.MaxHeaderBytes - p.headerSize)
			if err != nil {
				return nil, protoErr(StatusBadGateway, "chunk trailer too long")
			}
			if !ok {
				return nil, nil
			}
			p.headerSize += len(line) + 2
			if len(line) == 0 {
				p.state = respStateComplete
			}

		case respStateUntilClose:
			// Body arrives until EOF; Finish delivers it.
			if int64(len(p.buf)) > p.limits.MaxBodyBytes {
				return nil, protoErr(StatusBadGateway, "response body exceeds %d bytes", p.limits.MaxBodyBytes)
			}
			return nil, nil

		case respStateComplete:
			resp := p.resp
			p.resp = nil
			p.headerSize = 0
			p.state = respStateStatusLine
			return resp, nil
		}
	}
}

// Finish handles the peer closing the connection. Responses delimited by
// EOF complete here; a close mid-framing is an error.
func (p *ResponseParser) Finish() (*ClientResponse, error) {
	if p.state == respStateUntilClose {
		resp := p.resp
		resp.Body = append(resp.Body, p.buf...)
		p.buf = nil
		p.resp = nil
		p.headerSize = 0
		p.state = respStateStatusLine
		return resp, nil
	}
	return nil, protoErr(StatusBadGateway, "connection closed mid-response")
}

// takeLine mirrors the request parser's: max <= 0 is over-limit.
func (p *ResponseParser) takeLine(max int) (line []byte, ok bool, err error) {
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

func (p *ResponseParser) parseStatusLine(line []byte) *ProtocolError {
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) < 2 {
		return protoErr(StatusBadGateway, "malformed status line %q", line)
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return protoErr(StatusBadGateway, "malformed status code %q", parts[1])
	}
	p.resp = &ClientResponse{
		Proto:   parts[0],
		Status:  status,
		Headers: make(map[string]string, 8),
		Cookies: make(map[string]string),
	}
	if len(parts) == 3 {
		p.resp.Reason = parts[2]
	}
	return nil
}

func (p *ResponseParser) finishHeaders() {
	resp := p.resp

	conn := strings.ToLower(resp.Header("Connection"))
	resp.Persistent = (resp.Proto == "HTTP/1.1" && conn != "close") || conn == "keep-alive"

	if strings.Contains(strings.ToLower(resp.Header("Transfer-Encoding")), "chunked") {
		p.state = respStateChunkSize
		return
	}
	if cl := resp.Header("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n >= 0 {
			if n == 0 {
				p.state = respStateComplete
				return
			}
			p.bodyRemaining = n
			p.state = respStateBody
			return
		}
	}
	if resp.Status == StatusNoContent || resp.Status == StatusNotModified || resp.Status/100 == 1 {
		p.state = respStateComplete
		return
	}
	p.state = respStateUntilClose
}
