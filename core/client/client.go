package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/strandkit/strand/core/http"
	"github.com/strandkit/strand/core/reactor"
)

// Response is the parsed result of an outbound request.
type Response = http.ClientResponse

// Request builds one outbound HTTP exchange. Construct it, set parameters
// and headers, then Open it on a reactor; the callback fires exactly once
// with either a response or an error.
type Request struct {
	method  string
	u       *url.URL
	headers []string
	cookies []string
	params  url.Values
	body    []byte
	timeout time.Duration
	opened  bool
}

// New parses the target URL. Only plain http is supported.
func New(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse %q: %w", rawURL, err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("client: %q has no host", rawURL)
	}
	return &Request{
		method:  strings.ToUpper(method),
		u:       u,
		params:  url.Values{},
		timeout: 30 * time.Second,
	}, nil
}

// Get builds a GET request.
func Get(rawURL string) (*Request, error) { return New("GET", rawURL) }

// Post builds a POST request.
func Post(rawURL string) (*Request, error) { return New("POST", rawURL) }

// SetParameter adds a parameter. GET requests carry parameters in the query
// string; other verbs send them as a urlencoded body.
func (r *Request) SetParameter(name, value string) *Request {
	r.params.Add(name, value)
	return r
}

// SetHeader appends a request header.
func (r *Request) SetHeader(name, value string) *Request {
	r.headers = append(r.headers, name+": "+value)
	return r
}

// SetCookie attaches a cookie pair.
func (r *Request) SetCookie(name, value string) *Request {
	r.cookies = append(r.cookies, name+"="+value)
	return r
}

// SetBody sets a raw body with its content type. A raw body takes
// precedence over parameters on non-GET verbs.
func (r *Request) SetBody(contentType string, body []byte) *Request {
	r.body = body
	r.SetHeader("Content-Type", contentType)
	return r
}

// SetTimeout bounds the whole exchange, connect included. Zero disables it.
func (r *Request) SetTimeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Open serializes the request and hands it to the reactor's event loop.
// The callback runs on the reactor goroutine. A Request is single use.
func (r *Request) Open(rx *reactor.Reactor, cb reactor.OutboundCallback) error {
	if r.opened {
		return fmt.Errorf("client: %s %s already opened", r.method, r.u)
	}
	r.opened = true
	return rx.Issue(r.Addr(), r.Payload(), r.timeout, cb)
}

// Addr returns the host:port the request connects to.
func (r *Request) Addr() string {
	host := r.u.Host
	if r.u.Port() == "" {
		host += ":80"
	}
	return host
}

// Payload serializes the request to wire bytes.
func (r *Request) Payload() []byte {
	path := r.u.Path
	if path == "" {
		path = "/"
	}
	query := r.u.RawQuery
	body := r.body
	formBody := false

	if len(r.params) > 0 {
		encoded := r.params.Encode()
		if r.method == "GET" || r.method == "HEAD" {
			if query != "" {
				query += "&" + encoded
			} else {
				query = encoded
			}
		} else if body == nil {
			body = []byte(encoded)
			formBody = true
		}
	}

	var b strings.Builder
	b.WriteString(r.method)
	b.WriteByte(' ')
	b.WriteString(path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: " + r.u.Host + "\r\n")
	b.WriteString("Connection: close\r\n")
	for _, h := range r.headers {
		b.WriteString(h + "\r\n")
	}
	if formBody {
		b.WriteString("Content-Type: application/x-www-form-urlencoded\r\n")
	}
	if len(r.cookies) > 0 {
		b.WriteString("Cookie: " + strings.Join(r.cookies, "; ") + "\r\n")
	}
	if len(body) > 0 {
		b.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	}
	b.WriteString("\r\n")
	b.Write(body)
	return []byte(b.String())
}
