// Package box materialises service-supplied values into navigable runtime
// handles.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package box

import (
	"context"
	"fmt"

	"github.com/gfxtrace/replay/cmn/debug"
	"github.com/gfxtrace/replay/typesys"
	"github.com/gfxtrace/replay/wire"
	"github.com/pkg/errors"
)

// Pointer is a lazy, sparse, dirty-tracking proxy over remote memory.
//
// A non-external pointer populates items[i] on first read via one
// resolve-object round-trip per unseen index. An external pointer was
// allocated client-side: its address is a session-local sentinel with no
// remote backing, and reads of never-populated offsets fail.
type Pointer struct {
	sess     Session
	typ      *typesys.PointerType
	addr     uint64
	external bool
	items    map[uint64]any
	dirty    map[uint64]bool
}

// NewPointer wraps a decoded remote address.
func NewPointer(s Session, t *typesys.PointerType, addr uint64) *Pointer {
	return &Pointer{
		sess:  s,
		typ:   t,
		addr:  addr,
		items: make(map[uint64]any),
		dirty: make(map[uint64]bool),
	}
}

// NewExternal allocates a client-side pointer with a fictional address.
func NewExternal(s Session, t *typesys.PointerType, addr uint64) *Pointer {
	p := NewPointer(s, t, addr)
	p.external = true
	return p
}

// MakeExternal allocates a client-side pointer and prefills items[0..n-1]
// with the underlying type's defaults. Prefilling issues no resolve
// round-trips and does not dirty the pointer.
func MakeExternal(ctx context.Context, s Session, t *typesys.PointerType, addr, n uint64) (*Pointer, error) {
	p := NewExternal(s, t, addr)
	ut, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		v, err := Default(ctx, s, ut, p, i)
		if err != nil {
			return nil, err
		}
		p.put(i, v)
	}
	return p, nil
}

func (p *Pointer) Type() *typesys.PointerType { return p.typ }
func (p *Pointer) Addr() uint64               { return p.addr }
func (p *Pointer) External() bool             { return p.external }

func (p *Pointer) Underlying(ctx context.Context) (typesys.Type, error) {
	return p.typ.Underlying(ctx)
}

func (p *Pointer) String() string {
	return fmt.Sprintf("<%s>(%d)", p.typ.Name(), p.addr)
}

// At reads index i, resolving it remotely on first access.
func (p *Pointer) At(ctx context.Context, i uint64) (any, error) {
	if v, ok := p.items[i]; ok {
		return v, nil
	}
	if p.external {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "%s[%d]", p, i)
	}
	ut, err := p.typ.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	wv, err := p.sess.Resolve(ctx, p.addr, ut.ID(), i)
	if err != nil {
		return nil, errors.Wrapf(err, "%s[%d]", p, i)
	}
	v, err := Decode(ctx, p.sess, p, i, ut, wv)
	if err != nil {
		return nil, err
	}
	p.items[i] = v
	return v, nil
}

// Set writes index i. For a non-external pointer the slot is materialised
// first and the new value must match its kind.
func (p *Pointer) Set(ctx context.Context, i uint64, v any) error {
	if !p.external {
		old, err := p.At(ctx, i)
		if err != nil {
			return err
		}
		if !sameKind(old, v) {
			return errors.Wrapf(ErrKindMismatch, "%s[%d]: %T -> %T", p, i, v, old)
		}
	}
	p.items[i] = v
	p.markDirty(i)
	return nil
}

// put stores a prefilled default without dirtying (external allocation).
func (p *Pointer) put(i uint64, v any) {
	debug.Assert(p.external)
	p.items[i] = v
}

func (p *Pointer) markDirty(i uint64) {
	p.dirty[i] = true
	p.sess.Dirtied(p)
}

// maxOffset is the densification high-water mark: the highest dirty offset,
// or, when nothing is dirty (an external pointer swept up by the flush
// worklist), the highest populated one.
func (p *Pointer) maxOffset() (max uint64) {
	if len(p.dirty) > 0 {
		for i, d := range p.dirty {
			if d && i > max {
				max = i
			}
		}
		return max
	}
	for i := range p.items {
		if i > max {
			max = i
		}
	}
	return max
}

// Encoded produces the dense run [0..maxOffset] of this pointer's values as
// a wire slice. Unread offsets are materialised: resolved remotely for
// non-external pointers, defaulted for external ones. Every pointer value
// encountered during encoding is reported through visit so the flush can
// pick up newly-discovered external pointers.
func (p *Pointer) Encoded(ctx context.Context, visit func(*Pointer)) (*wire.Value, error) {
	if len(p.items) == 0 {
		return nil, nil
	}
	ut, err := p.typ.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	max := p.maxOffset()
	vals := make([]*wire.Value, 0, max+1)
	for i := uint64(0); i <= max; i++ {
		v, err := p.atForEncode(ctx, ut, i)
		if err != nil {
			return nil, err
		}
		wv, err := Encode(ctx, ut, v, visit)
		if err != nil {
			return nil, err
		}
		vals = append(vals, wv)
	}
	return &wire.Value{Slice: &wire.Slice{Values: vals}}, nil
}

func (p *Pointer) atForEncode(ctx context.Context, ut typesys.Type, i uint64) (any, error) {
	if v, ok := p.items[i]; ok {
		return v, nil
	}
	if p.external {
		v, err := Default(ctx, p.sess, ut, p, i)
		if err != nil {
			return nil, err
		}
		p.items[i] = v
		return v, nil
	}
	return p.At(ctx, i)
}
