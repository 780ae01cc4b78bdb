// Package typesys lazily resolves the trace service's self-describing type
// catalogue and exposes per-kind type representations. Types arrive on
// demand, potentially recursively, and are memoised for the session.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package typesys

import (
	"context"

	"github.com/gfxtrace/replay/cmn/debug"
	"github.com/gfxtrace/replay/wire"
	"github.com/pkg/errors"
)

// ErrUnknownType: the service cannot resolve a type id or name, or a value
// is decoded against an unrecognized kind discriminator.
var ErrUnknownType = errors.New("unknown type")

// Type is a resolved catalogue entry. Concrete kind is discriminated by the
// dynamic type: *PodType, *SizedType, *PointerType, *ArrayType, *StructType,
// *EnumType, *PseudonymType.
//
// Scalar kinds decode wire values directly; compound values (struct handles,
// lazy pointers, arrays) are built by package box on top of these.
type Type interface {
	ID() uint64
	Name() string

	// Underlying returns the child type, nil for leaves. Resolution may
	// require a service round-trip.
	Underlying(ctx context.Context) (Type, error)
	// Base follows Underlying to the ultimate leaf.
	Base(ctx context.Context) (Type, error)

	Decode(ctx context.Context, v *wire.Value) (any, error)
	Encode(ctx context.Context, v any) (*wire.Value, error)
	Default(ctx context.Context) (any, error)
}

type typeBase struct {
	name string
	id   uint64
	api  *wire.API
}

func (t *typeBase) ID() uint64   { return t.id }
func (t *typeBase) Name() string { return t.name }

//////////////
// PodType  //
//////////////

type PodType struct {
	typeBase
	pod wire.Pod
}

func (*PodType) Underlying(context.Context) (Type, error) { return nil, nil }
func (t *PodType) Base(context.Context) (Type, error)     { return t, nil }
func (t *PodType) Pod() wire.Pod                          { return t.pod }

func (t *PodType) Decode(_ context.Context, v *wire.Value) (any, error) {
	if v == nil || v.Pod == nil {
		return nil, errors.Errorf("%s: value is not a pod", t.name)
	}
	p := v.Pod
	switch t.pod {
	case wire.PodFloat32:
		return p.Float32, nil
	case wire.PodFloat64:
		return p.Float64, nil
	case wire.PodUint8:
		return p.Uint8, nil
	case wire.PodSint8:
		return p.Sint8, nil
	case wire.PodUint16:
		return p.Uint16, nil
	case wire.PodSint16:
		return p.Sint16, nil
	case wire.PodUint32:
		return p.Uint32, nil
	case wire.PodSint32:
		return p.Sint32, nil
	case wire.PodUint64:
		return p.Uint64, nil
	case wire.PodSint64:
		return p.Sint64, nil
	case wire.PodBool:
		return p.Bool, nil
	case wire.PodString:
		return p.String, nil
	}
	return nil, errors.Wrap(ErrUnknownType, t.name)
}

func (t *PodType) Encode(_ context.Context, v any) (*wire.Value, error) {
	p := &wire.PodValue{}
	ok := true
	switch t.pod {
	case wire.PodFloat32:
		p.Float32, ok = v.(float32)
	case wire.PodFloat64:
		p.Float64, ok = v.(float64)
	case wire.PodUint8:
		p.Uint8, ok = v.(uint8)
	case wire.PodSint8:
		p.Sint8, ok = v.(int8)
	case wire.PodUint16:
		p.Uint16, ok = v.(uint16)
	case wire.PodSint16:
		p.Sint16, ok = v.(int16)
	case wire.PodUint32:
		p.Uint32, ok = v.(uint32)
	case wire.PodSint32:
		p.Sint32, ok = v.(int32)
	case wire.PodUint64:
		p.Uint64, ok = v.(uint64)
	case wire.PodSint64:
		p.Sint64, ok = v.(int64)
	case wire.PodBool:
		p.Bool, ok = v.(bool)
	case wire.PodString:
		p.String, ok = v.(string)
	default:
		return nil, errors.Wrap(ErrUnknownType, t.name)
	}
	if !ok {
		return nil, errors.Errorf("%s: cannot encode %T", t.name, v)
	}
	return &wire.Value{Pod: p}, nil
}

func (t *PodType) Default(context.Context) (any, error) {
	switch t.pod {
	case wire.PodFloat32:
		return float32(0), nil
	case wire.PodFloat64:
		return float64(0), nil
	case wire.PodUint8:
		return uint8(0), nil
	case wire.PodSint8:
		return int8(0), nil
	case wire.PodUint16:
		return uint16(0), nil
	case wire.PodSint16:
		return int16(0), nil
	case wire.PodUint32:
		return uint32(0), nil
	case wire.PodSint32:
		return int32(0), nil
	case wire.PodUint64:
		return uint64(0), nil
	case wire.PodSint64:
		return int64(0), nil
	case wire.PodBool:
		return false, nil
	case wire.PodString:
		return "", nil
	}
	return nil, errors.Wrap(ErrUnknownType, t.name)
}

///////////////
// SizedType //
///////////////

// SizedType is a host-width abstract integer; decodes as 64-bit.
type SizedType struct {
	typeBase
	sized wire.Sized
}

func (*SizedType) Underlying(context.Context) (Type, error) { return nil, nil }
func (t *SizedType) Base(context.Context) (Type, error)     { return t, nil }
func (t *SizedType) Sized() wire.Sized                      { return t.sized }

func (t *SizedType) Decode(_ context.Context, v *wire.Value) (any, error) {
	if v == nil || v.Pod == nil {
		return nil, errors.Errorf("%s: value is not a pod", t.name)
	}
	switch t.sized {
	case wire.SizedInt:
		return v.Pod.Sint64, nil
	case wire.SizedUint, wire.SizedSize:
		return v.Pod.Uint64, nil
	case wire.SizedChar:
		return uint64(v.Pod.Uint8), nil
	}
	return nil, errors.Wrap(ErrUnknownType, t.name)
}

func (t *SizedType) Encode(_ context.Context, v any) (*wire.Value, error) {
	switch t.sized {
	case wire.SizedInt:
		x, ok := v.(int64)
		if !ok {
			return nil, errors.Errorf("%s: cannot encode %T", t.name, v)
		}
		return &wire.Value{Pod: &wire.PodValue{Sint64: x}}, nil
	case wire.SizedUint, wire.SizedSize:
		x, ok := v.(uint64)
		if !ok {
			return nil, errors.Errorf("%s: cannot encode %T", t.name, v)
		}
		return &wire.Value{Pod: &wire.PodValue{Uint64: x}}, nil
	case wire.SizedChar:
		x, ok := v.(uint64)
		if !ok {
			return nil, errors.Errorf("%s: cannot encode %T", t.name, v)
		}
		return &wire.Value{Pod: &wire.PodValue{Uint8: uint8(x)}}, nil
	}
	return nil, errors.Wrap(ErrUnknownType, t.name)
}

func (t *SizedType) Default(context.Context) (any, error) {
	if t.sized == wire.SizedInt {
		return int64(0), nil
	}
	return uint64(0), nil
}

/////////////////
// PointerType //
/////////////////

type PointerType struct {
	typeBase
	child   uint64
	isConst bool
	tm      *Manager
}

func (t *PointerType) IsConst() bool { return t.isConst }

func (t *PointerType) Underlying(ctx context.Context) (Type, error) {
	return t.tm.GetType(ctx, t.child, t.api)
}

func (t *PointerType) Base(ctx context.Context) (Type, error) {
	u, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	return u.Base(ctx)
}

// Decode reads the pointed-to address: either a boxed pointer or a pod
// uint64 rendering of it.
func (t *PointerType) Decode(_ context.Context, v *wire.Value) (any, error) {
	if v == nil {
		return nil, errors.Errorf("%s: empty pointer value", t.name)
	}
	if v.Pod != nil {
		return v.Pod.Uint64, nil
	}
	if v.Pointer != nil {
		return v.Pointer.Address, nil
	}
	return nil, errors.Errorf("%s: value is not a pointer", t.name)
}

func (t *PointerType) Encode(_ context.Context, v any) (*wire.Value, error) {
	addr, ok := v.(uint64)
	if !ok {
		return nil, errors.Errorf("%s: cannot encode %T as address", t.name, v)
	}
	return &wire.Value{Pointer: &wire.Pointer{Address: addr}}, nil
}

func (*PointerType) Default(context.Context) (any, error) { return uint64(0), nil }

///////////////
// ArrayType //
///////////////

type ArrayType struct {
	typeBase
	child uint64
	size  uint64
	tm    *Manager
}

func (t *ArrayType) Size() uint64 { return t.size }

func (t *ArrayType) Underlying(ctx context.Context) (Type, error) {
	return t.tm.GetType(ctx, t.child, t.api)
}

func (t *ArrayType) Base(ctx context.Context) (Type, error) {
	u, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	return u.Base(ctx)
}

// Decode prefers fully-boxed entries when their count matches the declared
// size, falling back to the single populated pod-array fast path.
func (t *ArrayType) Decode(ctx context.Context, v *wire.Value) (any, error) {
	if v == nil {
		return nil, errors.Errorf("%s: empty array value", t.name)
	}
	if v.Array != nil && uint64(len(v.Array.Entries)) == t.size {
		ct, err := t.Underlying(ctx)
		if err != nil {
			return nil, err
		}
		elems := make([]any, t.size)
		for i, e := range v.Array.Entries {
			if elems[i], err = ct.Decode(ctx, e); err != nil {
				return nil, err
			}
		}
		return elems, nil
	}
	if v.Pod != nil {
		if elems, ok := podArrayElems(v.Pod); ok {
			return elems, nil
		}
	}
	return nil, errors.Errorf("%s: array value has no usable representation", t.name)
}

func podArrayElems(p *wire.PodValue) ([]any, bool) {
	switch {
	case len(p.Float32Array) > 0:
		return anySlice(p.Float32Array), true
	case len(p.Float64Array) > 0:
		return anySlice(p.Float64Array), true
	case len(p.UintArray) > 0:
		return anySlice(p.UintArray), true
	case len(p.SintArray) > 0:
		return anySlice(p.SintArray), true
	case len(p.Uint8Array) > 0:
		return anySlice(p.Uint8Array), true
	case len(p.Sint8Array) > 0:
		return anySlice(p.Sint8Array), true
	case len(p.Uint16Array) > 0:
		return anySlice(p.Uint16Array), true
	case len(p.Sint16Array) > 0:
		return anySlice(p.Sint16Array), true
	case len(p.Uint32Array) > 0:
		return anySlice(p.Uint32Array), true
	case len(p.Sint32Array) > 0:
		return anySlice(p.Sint32Array), true
	case len(p.Uint64Array) > 0:
		return anySlice(p.Uint64Array), true
	case len(p.Sint64Array) > 0:
		return anySlice(p.Sint64Array), true
	case len(p.BoolArray) > 0:
		return anySlice(p.BoolArray), true
	case len(p.StringArray) > 0:
		return anySlice(p.StringArray), true
	}
	return nil, false
}

func anySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}

func (t *ArrayType) Encode(ctx context.Context, v any) (*wire.Value, error) {
	elems, ok := v.([]any)
	if !ok {
		return nil, errors.Errorf("%s: cannot encode %T as array", t.name, v)
	}
	ct, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]*wire.Value, len(elems))
	for i, e := range elems {
		if entries[i], err = ct.Encode(ctx, e); err != nil {
			return nil, err
		}
	}
	return &wire.Value{Array: &wire.Array{Entries: entries}}, nil
}

func (t *ArrayType) Default(ctx context.Context) (any, error) {
	ct, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	elems := make([]any, t.size)
	for i := range elems {
		if elems[i], err = ct.Default(ctx); err != nil {
			return nil, err
		}
	}
	return elems, nil
}

////////////////
// StructType //
////////////////

type StructType struct {
	typeBase
	fields []wire.StructField
	index  map[string]int
	tm     *Manager
}

func (t *StructType) NumFields() int { return len(t.fields) }

func (t *StructType) FieldName(i int) string {
	debug.Assert(i >= 0 && i < len(t.fields))
	return t.fields[i].Name
}

func (t *StructType) FieldIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Field resolves the i-th field's type.
func (t *StructType) Field(ctx context.Context, i int) (Type, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, errors.Errorf("%s: no field %d", t.name, i)
	}
	return t.tm.GetType(ctx, t.fields[i].Type, t.api)
}

func (t *StructType) FieldByName(ctx context.Context, name string) (Type, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, errors.Errorf("%s: no field %q", t.name, name)
	}
	return t.Field(ctx, i)
}

// struct is not a leaf but has no single child; field access is indexed
func (t *StructType) Underlying(context.Context) (Type, error) {
	return nil, errors.Errorf("%s: struct underlying requires a field index", t.name)
}

func (t *StructType) Base(context.Context) (Type, error) { return t, nil }

func (t *StructType) Decode(context.Context, *wire.Value) (any, error) {
	return nil, errors.Errorf("%s: struct decodes field-wise", t.name)
}

func (t *StructType) Encode(context.Context, any) (*wire.Value, error) {
	return nil, errors.Errorf("%s: struct encodes field-wise", t.name)
}

func (t *StructType) Default(context.Context) (any, error) {
	return nil, errors.Errorf("%s: struct defaults field-wise", t.name)
}

//////////////
// EnumType //
//////////////

// EnumType decodes as its underlying integral value; symbolic mapping is a
// client concern.
type EnumType struct {
	typeBase
	child uint64
	tm    *Manager
}

func (t *EnumType) Underlying(ctx context.Context) (Type, error) {
	return t.tm.GetType(ctx, t.child, t.api)
}

func (t *EnumType) Base(ctx context.Context) (Type, error) {
	u, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	return u.Base(ctx)
}

func (t *EnumType) Decode(ctx context.Context, v *wire.Value) (any, error) {
	u, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	return u.Decode(ctx, v)
}

func (t *EnumType) Encode(ctx context.Context, v any) (*wire.Value, error) {
	u, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	return u.Encode(ctx, v)
}

func (t *EnumType) Default(ctx context.Context) (any, error) {
	u, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	return u.Default(ctx)
}

///////////////////
// PseudonymType //
///////////////////

// PseudonymType is a named alias, transparent for decode/encode.
type PseudonymType struct {
	typeBase
	child uint64
	tm    *Manager
}

func (t *PseudonymType) Underlying(ctx context.Context) (Type, error) {
	return t.tm.GetType(ctx, t.child, t.api)
}

func (t *PseudonymType) Base(ctx context.Context) (Type, error) {
	u, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	return u.Base(ctx)
}

func (t *PseudonymType) Decode(ctx context.Context, v *wire.Value) (any, error) {
	u, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	return u.Decode(ctx, v)
}

func (t *PseudonymType) Encode(ctx context.Context, v any) (*wire.Value, error) {
	u, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	return u.Encode(ctx, v)
}

func (t *PseudonymType) Default(ctx context.Context) (any, error) {
	u, err := t.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	return u.Default(ctx)
}

////////////////
// opaqueType //
////////////////

// opaqueType stands in for unrecognized kind discriminators; any use fails.
type opaqueType struct {
	typeBase
}

func (*opaqueType) Underlying(context.Context) (Type, error) { return nil, nil }
func (t *opaqueType) Base(context.Context) (Type, error)     { return t, nil }

func (t *opaqueType) Decode(context.Context, *wire.Value) (any, error) {
	return nil, errors.Wrap(ErrUnknownType, t.name)
}

func (t *opaqueType) Encode(context.Context, any) (*wire.Value, error) {
	return nil, errors.Wrap(ErrUnknownType, t.name)
}

func (t *opaqueType) Default(context.Context) (any, error) {
	return nil, errors.Wrap(ErrUnknownType, t.name)
}
