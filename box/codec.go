// Package box materialises service-supplied values into navigable runtime
// handles.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package box

import (
	"context"

	"github.com/gfxtrace/replay/typesys"
	"github.com/gfxtrace/replay/wire"
	"github.com/pkg/errors"
)

// Decode materialises a wire value against its resolved type. owner/off tie
// the produced handle back to the pointer slot it came from, so nested
// writes propagate dirtiness; pass owner=nil for top-level command params.
func Decode(ctx context.Context, s Session, owner *Pointer, off uint64, t typesys.Type, v *wire.Value) (any, error) {
	switch tt := t.(type) {
	case *typesys.StructType:
		if v == nil || v.Struct == nil || len(v.Struct.Fields) != tt.NumFields() {
			return nil, errors.Errorf("%s: struct value does not match declared fields", tt.Name())
		}
		st := &Struct{
			typeName: tt.Name(),
			names:    make([]string, 0, tt.NumFields()),
			fields:   make(map[string]any, tt.NumFields()),
			owner:    owner,
			off:      off,
		}
		for i := 0; i < tt.NumFields(); i++ {
			ft, err := tt.Field(ctx, i)
			if err != nil {
				return nil, err
			}
			fv, err := Decode(ctx, s, owner, off, ft, v.Struct.Fields[i])
			if err != nil {
				return nil, err
			}
			fn := tt.FieldName(i)
			st.names = append(st.names, fn)
			st.fields[fn] = fv
		}
		return st, nil
	case *typesys.PointerType:
		av, err := tt.Decode(ctx, v)
		if err != nil {
			return nil, err
		}
		return NewPointer(s, tt, av.(uint64)), nil
	case *typesys.PseudonymType:
		u, err := tt.Underlying(ctx)
		if err != nil {
			return nil, err
		}
		return Decode(ctx, s, owner, off, u, v)
	case *typesys.ArrayType:
		ev, err := tt.Decode(ctx, v)
		if err != nil {
			return nil, err
		}
		return &Array{elems: ev.([]any), owner: owner, off: off}, nil
	default:
		// pods, sized, enums
		return t.Decode(ctx, v)
	}
}

// Default builds the type's zero value: defaulted fields for structs, a
// null non-external pointer, size defaults for arrays, zeros otherwise.
func Default(ctx context.Context, s Session, t typesys.Type, owner *Pointer, off uint64) (any, error) {
	switch tt := t.(type) {
	case *typesys.StructType:
		st := &Struct{
			typeName: tt.Name(),
			names:    make([]string, 0, tt.NumFields()),
			fields:   make(map[string]any, tt.NumFields()),
			owner:    owner,
			off:      off,
		}
		for i := 0; i < tt.NumFields(); i++ {
			ft, err := tt.Field(ctx, i)
			if err != nil {
				return nil, err
			}
			fv, err := Default(ctx, s, ft, owner, off)
			if err != nil {
				return nil, err
			}
			fn := tt.FieldName(i)
			st.names = append(st.names, fn)
			st.fields[fn] = fv
		}
		return st, nil
	case *typesys.PointerType:
		return NewPointer(s, tt, 0), nil
	case *typesys.PseudonymType:
		u, err := tt.Underlying(ctx)
		if err != nil {
			return nil, err
		}
		return Default(ctx, s, u, owner, off)
	case *typesys.ArrayType:
		ev, err := tt.Default(ctx)
		if err != nil {
			return nil, err
		}
		return &Array{elems: ev.([]any), owner: owner, off: off}, nil
	default:
		return t.Default(ctx)
	}
}

// Encode turns a host value back into its wire form. visit, if non-nil, is
// called for every pointer handle encountered, allowing the flush to grow
// its worklist.
func Encode(ctx context.Context, t typesys.Type, v any, visit func(*Pointer)) (*wire.Value, error) {
	switch tt := t.(type) {
	case *typesys.StructType:
		st, ok := v.(*Struct)
		if !ok {
			return nil, errors.Wrapf(ErrKindMismatch, "%s: cannot encode %T as struct", tt.Name(), v)
		}
		fields := make([]*wire.Value, 0, tt.NumFields())
		for i := 0; i < tt.NumFields(); i++ {
			ft, err := tt.Field(ctx, i)
			if err != nil {
				return nil, err
			}
			fv, err := st.Get(tt.FieldName(i))
			if err != nil {
				return nil, err
			}
			wv, err := Encode(ctx, ft, fv, visit)
			if err != nil {
				return nil, err
			}
			fields = append(fields, wv)
		}
		return &wire.Value{Struct: &wire.Struct{Fields: fields}}, nil
	case *typesys.PointerType:
		p, ok := v.(*Pointer)
		if !ok {
			return nil, errors.Wrapf(ErrKindMismatch, "%s: cannot encode %T as pointer", tt.Name(), v)
		}
		if visit != nil {
			visit(p)
		}
		return &wire.Value{Pointer: &wire.Pointer{Address: p.addr, Fictional: p.external}}, nil
	case *typesys.PseudonymType:
		u, err := tt.Underlying(ctx)
		if err != nil {
			return nil, err
		}
		return Encode(ctx, u, v, visit)
	case *typesys.ArrayType:
		arr, ok := v.(*Array)
		if !ok {
			return nil, errors.Wrapf(ErrKindMismatch, "%s: cannot encode %T as array", tt.Name(), v)
		}
		return tt.Encode(ctx, arr.elems)
	default:
		return t.Encode(ctx, v)
	}
}
