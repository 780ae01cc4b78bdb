// Package stream drives the bidirectional command stream against the trace
// service.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package stream

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/gfxtrace/replay/box"
	"github.com/gfxtrace/replay/cmn/debug"
	"github.com/gfxtrace/replay/typesys"
	"github.com/gfxtrace/replay/wire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrProtocol: the service broke the per-command protocol contract (or
// answered a sub-request with the wrong message).
var ErrProtocol = errors.New("protocol error")

// commandStream abstracts the bidi RPC for the driver (and the tests).
type commandStream interface {
	Send(*wire.Request) error
	Recv() (*wire.Response, error)
	CloseSend() error
}

// walker owns one streaming session: the outgoing queue, the blocking read
// side, the per-command state machine, and the per-command dirty set.
// Command processing is strictly serial and in wire order; between a
// command and its terminal pass/drop there is exactly one outstanding
// sub-request at a time.
type walker struct {
	log     *logrus.Entry
	h       Handler
	cmds    map[string]CommandFunc
	tm      *typesys.Manager
	q       *reqQ
	cs      commandStream
	capture *wire.Capture

	lastAPI *wire.API

	// per-command, cleared on flush (insertion-ordered for a stable
	// PutMemory layout)
	dirtyList []*box.Pointer
	dirtySet  map[*box.Pointer]struct{}

	allocIdx      uint64
	totalSent     atomic.Int64
	totalReceived atomic.Int64

	initialized bool
	useDefault  bool
	useInitial  bool
}

// interface guard
var _ box.Session = (*walker)(nil)

func newWalker(log *logrus.Entry, capture *wire.Capture, h Handler, g typesys.Getter) *walker {
	w := &walker{
		log:      log,
		h:        h,
		cmds:     h.Commands(),
		tm:       typesys.NewManager(g),
		q:        newReqQ(),
		capture:  capture,
		dirtySet: make(map[*box.Pointer]struct{}),
	}
	if b, ok := h.(binder); ok {
		b.bind(w, w.tm)
	}
	_, w.useDefault = h.(Defaulter)
	_, w.useInitial = h.(InitialCommandsListener)
	if p, ok := h.(InitialCommandsProcessor); ok {
		w.useInitial = p.ProcessInitialCommands()
	}
	return w
}

// run attaches the stream, starts the send pump, and processes messages to
// completion.
func (w *walker) run(ctx context.Context, cs commandStream) error {
	w.cs = cs
	go w.sendLoop()
	return w.process(ctx)
}

// sendLoop drains the outgoing queue into the stream; the RPC layer blocks
// in next() until a request is available.
func (w *walker) sendLoop() {
	for {
		r, ok := w.q.next()
		if !ok {
			if err := w.cs.CloseSend(); err != nil {
				w.log.WithError(err).Warn("closing send side")
			}
			return
		}
		if err := w.cs.Send(r); err != nil {
			w.log.WithError(err).Warn("stream send")
			return
		}
	}
}

func (w *walker) put(r *wire.Request) {
	w.totalSent.Add(1)
	sentTotal.Inc()
	w.q.put(r)
}

func (w *walker) get() (*wire.Response, error) {
	resp, err := w.cs.Recv()
	if err != nil {
		return nil, err
	}
	w.totalReceived.Add(1)
	receivedTotal.Inc()
	return resp, nil
}

func (w *walker) nextAllocIndex() uint64 {
	w.allocIdx++
	return w.allocIdx
}

func (w *walker) startRequest() *wire.Request {
	names := make([]string, 0, len(w.cmds))
	for name := range w.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return &wire.Request{Start: &wire.StartRequest{
		Capture:                w.capture,
		CommandNames:           names,
		PassDefault:            w.useDefault,
		IncludeInitialCommands: w.useInitial,
	}}
}

// process is the per-message loop; it returns when the service signals
// done or error, or the stream fails.
func (w *walker) process(ctx context.Context) error {
	defer w.q.close()
	w.put(w.startRequest())
	for {
		resp, err := w.get()
		if err != nil {
			return errors.Wrap(err, "stream receive")
		}
		switch {
		case resp.Error != nil:
			w.log.Errorf("error returned from server: %s", resp.Error)
			return nil
		case resp.Done != nil:
			w.log.Debug("stream done")
			return nil
		case resp.InitialCommandsDone != nil:
			if l, ok := w.h.(InitialCommandsListener); ok {
				l.InitialCommandsDone()
			}
		case resp.Command != nil:
			if err := w.handleCommand(ctx, resp.Command); err != nil {
				return err
			}
		default:
			w.log.Warn("unexpected message outside a command step")
		}
	}
}

func (w *walker) handleCommand(ctx context.Context, wc *wire.Command) error {
	w.lastAPI = wc.API
	if !w.initialized {
		if s, ok := w.h.(Starter); ok {
			s.Start()
		}
		w.initialized = true
	}
	cmd, err := bindCommand(ctx, w, w.tm, wc)
	if err != nil {
		return err
	}
	verdict := PassCommand
	if fn, ok := w.cmds[cmd.Name]; ok {
		verdict, err = fn(ctx, cmd.Args())
	} else if d, ok := w.h.(Defaulter); ok {
		verdict, err = d.Default(ctx, cmd.Name, cmd.Args())
	}
	if err != nil {
		return errors.Wrapf(err, "handler %s", cmd.Name)
	}
	if err := w.flushDirty(ctx); err != nil {
		return err
	}
	if verdict == DropCommand {
		w.put(&wire.Request{DropCommand: &wire.Drop{}})
	} else {
		w.put(&wire.Request{PassCommand: &wire.Pass{}})
	}
	return nil
}

// flushDirty encodes every pointer the handler dirtied during this command
// step into one PutMemory, emitted before the terminal pass/drop. External
// pointers newly discovered while encoding join the worklist; the seen set
// guards against re-encoding a pointer twice within one command.
func (w *walker) flushDirty(ctx context.Context) error {
	if len(w.dirtyList) == 0 {
		return nil
	}
	queue := append([]*box.Pointer(nil), w.dirtyList...)
	seen := make(map[*box.Pointer]struct{}, len(queue))
	for _, p := range queue {
		seen[p] = struct{}{}
	}
	visit := func(p *box.Pointer) {
		if _, ok := seen[p]; !ok && p.External() {
			seen[p] = struct{}{}
			queue = append(queue, p)
		}
	}
	var objs []*wire.MemoryObject
	for i := 0; i < len(queue); i++ {
		p := queue[i]
		ut, err := p.Underlying(ctx)
		if err != nil {
			return err
		}
		st, err := w.tm.GetTypeByName(ctx, ut.Name()+"&", w.lastAPI)
		if err != nil {
			return errors.Wrapf(err, "flush %s", p)
		}
		enc, err := p.Encoded(ctx, visit)
		if err != nil {
			return errors.Wrapf(err, "flush %s", p)
		}
		objs = append(objs, &wire.MemoryObject{
			Pointer:     &wire.Pointer{Address: p.Addr(), Fictional: p.External()},
			Type:        &wire.TypePath{TypeIndex: st.ID()},
			WriteObject: enc,
		})
	}
	w.dirtyList = nil
	w.dirtySet = make(map[*box.Pointer]struct{})
	w.put(&wire.Request{PutMemory: &wire.PutMemory{Objects: objs}})
	return nil
}

// Resolve fetches pointer[offset] under the given underlying type: one
// outgoing sub-request, one blocking read of the matching response.
func (w *walker) Resolve(ctx context.Context, addr, typeID, offset uint64) (*wire.Value, error) {
	debug.Assert(w.cs != nil)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.put(&wire.Request{ResolveObject: &wire.ResolveObject{
		Pointer: addr,
		Type:    &wire.TypePath{TypeIndex: typeID},
		Offset:  offset,
	}})
	resolvesTotal.Inc()
	resp, err := w.get()
	if err != nil {
		return nil, errors.Wrap(err, "resolve object")
	}
	if resp.ReadObject == nil {
		return nil, errors.Wrapf(ErrProtocol, "resolve 0x%x[%d]: no read_object in response", addr, offset)
	}
	return resp.ReadObject, nil
}

// Dirtied registers a pointer in the per-command flush set.
func (w *walker) Dirtied(p *box.Pointer) {
	if _, ok := w.dirtySet[p]; ok {
		return
	}
	w.dirtySet[p] = struct{}{}
	w.dirtyList = append(w.dirtyList, p)
}

func (w *walker) getMemory(ctx context.Context) (*wire.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.put(&wire.Request{GetMemory: &wire.GetMemory{}})
	resp, err := w.get()
	if err != nil {
		return nil, errors.Wrap(err, "get memory")
	}
	if resp.Memory == nil {
		return nil, errors.Wrap(ErrProtocol, "get memory: no snapshot in response")
	}
	return resp.Memory, nil
}
