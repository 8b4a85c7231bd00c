/*
Package strand is an asynchronous, pre-forking HTTP server framework.

A single-threaded reactor multiplexes every socket in one event loop:
the listen socket, accepted connections, outbound client connections, and
a wakeup pipe. Blocking never happens on the loop; sockets are nonblocking
and the loop parks in epoll (Linux) or kqueue (BSD/macOS) between events.

For multi-core machines a supervisor re-executes the binary as N worker
processes, each binding the serving address with SO_REUSEPORT so the
kernel spreads accepted connections across the pool. Dead workers are
respawned with backoff.

Routing is an ordered table of patterns with typed capture groups:

	/user/(number:\d+)      -> the "number" param coerces to int64
	/page/(word:[a-z]+)     -> the "word" param stays a string

Routes name their handlers by dotted reference ("user.byID") resolved
through a registry, so handler sets and route tables can be swapped live.
Handlers are plain structs implementing per-verb interfaces (Get, Post,
...); a verb the handler lacks answers 405, and handler panics are
contained to a 500 on that one connection.

The same event loop drives an outbound HTTP client: handlers or other
goroutines queue a request and receive exactly one callback with the
parsed response or a transport fault.

See cmd/strandd for the server binary and examples/basic for embedding.
*/
package strand
