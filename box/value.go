// Package box materialises service-supplied values into navigable runtime
// handles: structs with typed fields, pointers that act as lazy sparse
// proxies over remote memory, and fixed-size arrays. Mutations made through
// the handles are tracked per-offset and encoded back into the wire form.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package box

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/gfxtrace/replay/wire"
	"github.com/pkg/errors"
)

var (
	// ErrKindMismatch: a write placed a host value of a different kind into
	// a decoded slot.
	ErrKindMismatch = errors.New("value kind mismatch")
	// ErrIndexOutOfRange: a client-allocated pointer was dereferenced at an
	// offset that was never populated.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Session is the stream driver's face to the value graph: remote
// dereferences and per-command dirty registration.
type Session interface {
	Resolve(ctx context.Context, addr, typeID, offset uint64) (*wire.Value, error)
	Dirtied(p *Pointer)
}

// sameKind compares host-value kinds: dynamic-type equality.
func sameKind(a, b any) bool { return reflect.TypeOf(a) == reflect.TypeOf(b) }

////////////
// Struct //
////////////

// Struct is a decoded struct value. Fields hold host values keyed by the
// declared field names; a non-owning back-reference to the pointer (and
// offset) this struct was materialised from propagates dirtiness.
type Struct struct {
	typeName string
	names    []string
	fields   map[string]any
	owner    *Pointer
	off      uint64
	dirty    bool
}

func (s *Struct) TypeName() string { return s.typeName }
func (s *Struct) Fields() []string { return s.names }

func (s *Struct) Get(name string) (any, error) {
	v, ok := s.fields[name]
	if !ok {
		return nil, errors.Errorf("%s: no field %q", s.typeName, name)
	}
	return v, nil
}

// MustGet is Get for fields known to exist.
func (s *Struct) MustGet(name string) any {
	v, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Set assigns a field. The new value must be of the same kind as the
// current one; a successful assignment marks the owning pointer dirty at
// the owning offset.
func (s *Struct) Set(name string, v any) error {
	old, ok := s.fields[name]
	if !ok {
		return errors.Errorf("%s: no field %q", s.typeName, name)
	}
	if !sameKind(old, v) {
		return errors.Wrapf(ErrKindMismatch, "%s.%s: %T -> %T", s.typeName, name, v, old)
	}
	s.fields[name] = v
	s.dirty = true
	if s.owner != nil {
		s.owner.markDirty(s.off)
	}
	return nil
}

func (s *Struct) String() string {
	var sb strings.Builder
	sb.WriteString(s.typeName)
	sb.WriteByte('{')
	for _, n := range s.names {
		sb.WriteString("\n    ")
		sb.WriteString(n)
		sb.WriteString(" = ")
		fmt.Fprint(&sb, s.fields[n])
	}
	sb.WriteString("\n}")
	return sb.String()
}

///////////
// Array //
///////////

// Array is a decoded fixed-size array. Elements are pods by construction;
// writes are not kind-checked and propagate dirtiness to the owning pointer.
type Array struct {
	elems []any
	owner *Pointer
	off   uint64
}

func (a *Array) Len() int { return len(a.elems) }

func (a *Array) At(i int) (any, error) {
	if i < 0 || i >= len(a.elems) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "array[%d] of %d", i, len(a.elems))
	}
	return a.elems[i], nil
}

func (a *Array) Set(i int, v any) error {
	if i < 0 || i >= len(a.elems) {
		return errors.Wrapf(ErrIndexOutOfRange, "array[%d] of %d", i, len(a.elems))
	}
	a.elems[i] = v
	if a.owner != nil {
		a.owner.markDirty(a.off)
	}
	return nil
}
