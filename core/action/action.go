package action

import (
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/strandkit/strand/core/http"
	"github.com/strandkit/strand/core/router"
)

// Ctx carries one request through a handler: the parsed request, the
// response composer, coerced path params, and the route's static args.
type Ctx struct {
	Request  *http.Request
	Response *http.Response
	Params   router.Params
	Args     map[string]any

	// RequestID correlates log lines for this request.
	RequestID string
	Log       *zap.Logger

	// Outbound queues an HTTP exchange on the serving event loop. The
	// callback runs on the loop, typically after this response has
	// already been flushed, so it suits notification-style calls rather
	// than proxying.
	Outbound func(addr string, payload []byte, timeout time.Duration, cb func(*http.ClientResponse, error)) error
}

// Verb handler interfaces. An action implements only the verbs it serves;
// dispatch answers 405 for the rest.
type (
	GetHandler     interface{ Get(*Ctx) error }
	HeadHandler    interface{ Head(*Ctx) error }
	PostHandler    interface{ Post(*Ctx) error }
	PutHandler     interface{ Put(*Ctx) error }
	DeleteHandler  interface{ Delete(*Ctx) error }
	OptionsHandler interface{ Options(*Ctx) error }
	TraceHandler   interface{ Trace(*Ctx) error }
	PatchHandler   interface{ Patch(*Ctx) error }
	ConnectHandler interface{ Connect(*Ctx) error }
)

// Factory builds a handler instance from a route's static args. The
// transport resolves and invokes it per request, so a registry reload takes
// effect on the next request.
type Factory func(args map[string]any) (any, error)

// ErrMethodNotSupported reports a route that matched but whose handler does
// not implement the request verb.
var ErrMethodNotSupported = errors.New("action: method not supported")

// HandlerFault wraps a panic recovered at the dispatch boundary.
type HandlerFault struct {
	Verb  string
	Panic any
}

func (e *HandlerFault) Error() string {
	return fmt.Sprintf("action: %s handler panicked: %v", e.Verb, e.Panic)
}

// Dispatch invokes the handler method matching the request verb. Verbs
// compare case-insensitively. Panics inside the handler are recovered and
// returned as a *HandlerFault so one bad request cannot take the process
// down.
func Dispatch(handler any, ctx *Ctx) (err error) {
	verb := lowerVerb(ctx.Request.Method)

	defer func() {
		if r := recover(); r != nil {
			err = &HandlerFault{Verb: verb, Panic: r}
		}
	}()

	switch verb {
	case "get":
		if h, ok := handler.(GetHandler); ok {
			return h.Get(ctx)
		}
	case "head":
		if h, ok := handler.(HeadHandler); ok {
			return h.Head(ctx)
		}
		// HEAD falls back to GET; the transport suppresses the body.
		if h, ok := handler.(GetHandler); ok {
			return h.Get(ctx)
		}
	case "post":
		if h, ok := handler.(PostHandler); ok {
			return h.Post(ctx)
		}
	case "put":
		if h, ok := handler.(PutHandler); ok {
			return h.Put(ctx)
		}
	case "delete":
		if h, ok := handler.(DeleteHandler); ok {
			return h.Delete(ctx)
		}
	case "options":
		if h, ok := handler.(OptionsHandler); ok {
			return h.Options(ctx)
		}
	case "trace":
		if h, ok := handler.(TraceHandler); ok {
			return h.Trace(ctx)
		}
	case "patch":
		if h, ok := handler.(PatchHandler); ok {
			return h.Patch(ctx)
		}
	case "connect":
		if h, ok := handler.(ConnectHandler); ok {
			return h.Connect(ctx)
		}
	}
	return ErrMethodNotSupported
}

func lowerVerb(method string) string {
	b := []byte(method)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

// DecodeArgs fills a typed struct from a route's static args map.
func DecodeArgs(args map[string]any, into any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           into,
		WeaklyTypedInput: true,
		TagName:          "arg",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("action: decode args: %w", err)
	}
	return nil
}
