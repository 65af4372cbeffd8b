package session

import (
	"context"
	"time"

	"github.com/rbright/suzerain/internal/ipc"
)

// Handle serves out-of-band status and stop requests.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	return c.Mux().Handle(ctx, req)
}

// Mux exposes the controller's IPC commands.
func (c *Controller) Mux() ipc.Mux {
	return ipc.Mux{
		ipc.CommandStatus: ipc.HandlerFunc(c.status),
		ipc.CommandStop:   ipc.HandlerFunc(c.stop),
	}
}

func (c *Controller) status(context.Context, ipc.Request) ipc.Response {
	resp := ipc.Response{OK: true, State: string(c.deps.Runner.State())}
	c.mu.Lock()
	if a := c.active; a != nil {
		resp.Phrase = a.phrase
		resp.ElapsedMS = time.Since(a.started).Milliseconds()
	}
	c.mu.Unlock()
	if resp.Phrase == "" {
		resp.Message = "waiting for a command"
	}
	return resp
}

func (c *Controller) stop(context.Context, ipc.Request) ipc.Response {
	if !c.Stop() {
		return ipc.Response{OK: false, State: string(c.deps.Runner.State()), Error: "nothing is running"}
	}
	return ipc.Response{OK: true, State: string(c.deps.Runner.State()), Message: "stop requested"}
}
