// Package cmd is the transport-agnostic command core shared by the chat bot
// and the admin CLI. A command has a name, a description and Run; how it is
// parsed and dispatched is up to the adapter that owns the registry.
package cmd

import "context"

// Invocation is what an adapter hands to a command: positional arguments and
// an adapter-specific payload (a chat message context, CLI output, ...).
type Invocation struct {
	Args []string
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Middleware wraps a command. The result is still a Command.
type Middleware func(Command) Command

// Apply wraps c with mws. The first middleware ends up outermost.
func Apply(c Command, mws ...Middleware) Command {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

type wrapped struct {
	inner Command
	run   func(ctx context.Context, inv *Invocation) error
}

func (w *wrapped) Name() string        { return w.inner.Name() }
func (w *wrapped) Description() string { return w.inner.Description() }
func (w *wrapped) Unwrap() Command     { return w.inner }

func (w *wrapped) Run(ctx context.Context, inv *Invocation) error {
	return w.run(ctx, inv)
}

// Wrap returns c with its Run replaced by run. Name and Description still
// come from c, and Root can reach c again.
func Wrap(c Command, run func(ctx context.Context, inv *Invocation) error) Command {
	return &wrapped{inner: c, run: run}
}

// Root strips every middleware layer and returns the command underneath, so
// adapters can type-assert to optional interfaces.
func Root(c Command) Command {
	for {
		u, ok := c.(interface{ Unwrap() Command })
		if !ok {
			return c
		}
		c = u.Unwrap()
	}
}
