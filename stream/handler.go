// Package stream drives the bidirectional command stream against the trace
// service.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package stream

import (
	"context"

	"github.com/gfxtrace/replay/box"
	"github.com/gfxtrace/replay/typesys"
	"github.com/gfxtrace/replay/wire"
	"github.com/pkg/errors"
)

// Verdict is a handler's decision for the current command. The zero value
// passes, so callbacks that return nothing special keep the command.
type Verdict int

const (
	PassCommand Verdict = iota
	DropCommand
)

// CommandFunc handles one command with its positional decoded parameters.
type CommandFunc func(ctx context.Context, args []any) (Verdict, error)

// Handler names the commands of interest. The registered names are sent to
// the service in the stream-start request; only those commands (plus the
// catch-all, if any) are dispatched.
//
// Optional behavior is picked up via the optional interfaces below. Embed
// HandlerBase to gain allocation and memory-introspection helpers.
type Handler interface {
	Commands() map[string]CommandFunc
}

// Starter runs once, lazily, before the first dispatched command.
type Starter interface {
	Start()
}

// Defaulter receives every handled command that has no named registration.
// Its mere presence flips pass_default in the start request.
type Defaulter interface {
	Default(ctx context.Context, name string, args []any) (Verdict, error)
}

// InitialCommandsListener is signalled between the trace's setup commands
// and the user commands; its presence opts the stream into receiving the
// setup commands.
type InitialCommandsListener interface {
	InitialCommandsDone()
}

// InitialCommandsProcessor overrides the inclusion decision that
// InitialCommandsListener presence implies.
type InitialCommandsProcessor interface {
	ProcessInitialCommands() bool
}

// HandlerBase bridges handler code to the running session. Embed it (by
// pointer) in the handler; the driver binds it before the first command.
type HandlerBase struct {
	w  *walker
	tm *typesys.Manager
}

// binder is satisfied by handlers embedding *HandlerBase.
type binder interface {
	bind(w *walker, tm *typesys.Manager)
}

func (hb *HandlerBase) bind(w *walker, tm *typesys.Manager) { hb.w, hb.tm = w, tm }

// Make allocates a fresh external pointer to n defaulted elements of the
// named type. The pointer type is looked up as typeName + "*" under the
// current command's API; the address is a session-local fictional sentinel.
func (hb *HandlerBase) Make(ctx context.Context, typeName string, n uint64) (*box.Pointer, error) {
	if hb.w == nil {
		return nil, errors.New("handler is not attached to a session")
	}
	t, err := hb.tm.GetTypeByName(ctx, typeName+"*", hb.w.lastAPI)
	if err != nil {
		return nil, err
	}
	pt, ok := t.(*typesys.PointerType)
	if !ok {
		return nil, errors.Wrapf(typesys.ErrUnknownType, "%s* is not a pointer type", typeName)
	}
	return box.MakeExternal(ctx, hb.w, pt, hb.w.nextAllocIndex(), n)
}

// GetMemory fetches the service's memory snapshot for the current command.
func (hb *HandlerBase) GetMemory(ctx context.Context) (*wire.Memory, error) {
	if hb.w == nil {
		return nil, errors.New("handler is not attached to a session")
	}
	return hb.w.getMemory(ctx)
}
