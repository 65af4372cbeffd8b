package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"sync"
	"time"
)

const readTimeout = 2 * time.Second

// Handler answers one request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response { return f(ctx, req) }

// Mux routes requests by command name.
type Mux map[string]Handler

// Handle dispatches req. Unknown commands get the supported list back.
func (m Mux) Handle(ctx context.Context, req Request) Response {
	name := strings.ToLower(strings.TrimSpace(req.Command))
	if h, ok := m[name]; ok {
		return h.Handle(ctx, req)
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return Failure(fmt.Sprintf("unknown command %q (supported: %s)", req.Command, strings.Join(names, ", ")))
}

// Serve answers one request per connection until ctx ends or the listener closes.
// It waits for in-flight connections before returning.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(ctx, conn, handler)
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	var req Request
	if err := readMessage(conn, &req); err != nil {
		_ = writeMessage(conn, Failure(fmt.Sprintf("read request: %v", err)))
		return
	}
	_ = writeMessage(conn, handler.Handle(ctx, req))
}
