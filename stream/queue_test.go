// Package stream drives the bidirectional command stream against the trace
// service.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package stream

import (
	"sync"
	"testing"

	"github.com/gfxtrace/replay/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := newReqQ()
	a := &wire.Request{Start: &wire.StartRequest{}}
	b := &wire.Request{PassCommand: &wire.Pass{}}
	q.put(a)
	q.put(b)

	r, ok := q.next()
	require.True(t, ok)
	assert.Same(t, a, r)
	r, ok = q.next()
	require.True(t, ok)
	assert.Same(t, b, r)
}

func TestQueueBlocksUntilPut(t *testing.T) {
	q := newReqQ()
	want := &wire.Request{GetMemory: &wire.GetMemory{}}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r, ok := q.next()
		assert.True(t, ok)
		assert.Same(t, want, r)
	}()
	q.put(want)
	wg.Wait()
}

func TestQueueClose(t *testing.T) {
	q := newReqQ()
	q.put(&wire.Request{PassCommand: &wire.Pass{}})
	q.close()

	// pending requests drain before the closed signal
	_, ok := q.next()
	assert.True(t, ok)
	_, ok = q.next()
	assert.False(t, ok)

	// put after close is dropped
	q.put(&wire.Request{DropCommand: &wire.Drop{}})
	_, ok = q.next()
	assert.False(t, ok)
}
