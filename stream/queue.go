// Package stream drives the bidirectional command stream against the trace
// service: it multiplexes one RPC into a producer queue of outgoing
// requests and a blocking consumer of incoming messages, runs the
// per-command protocol state machine, and flushes mutated memory back.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package stream

import (
	"sync"

	"github.com/gfxtrace/replay/wire"
)

// reqQ is the outgoing request FIFO: non-blocking put, blocking next,
// drained by the send pump. Closing releases the pump.
type reqQ struct {
	mu     sync.Mutex
	cond   *sync.Cond
	pend   []*wire.Request
	closed bool
}

func newReqQ() *reqQ {
	q := &reqQ{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *reqQ) put(r *wire.Request) {
	q.mu.Lock()
	if !q.closed {
		q.pend = append(q.pend, r)
	}
	q.mu.Unlock()
	q.cond.Signal()
}

// next blocks until a request is available or the queue is closed.
func (q *reqQ) next() (*wire.Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pend) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.pend) == 0 {
		return nil, false
	}
	r := q.pend[0]
	q.pend = q.pend[1:]
	return r, true
}

func (q *reqQ) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
