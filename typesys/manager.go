// Package typesys lazily resolves the trace service's self-describing type
// catalogue and exposes per-kind type representations.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package typesys

import (
	"context"
	"strconv"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/gfxtrace/replay/wire"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Getter is the service's `Get` entry point used for type lookups
// (by index and by name).
type Getter interface {
	Get(ctx context.Context, req *wire.GetRequest) (*wire.GetResponse, error)
}

// Manager caches resolved types by id for the life of the session and
// additionally indexes them by (name, API scope). The same name may bind to
// different types under different graphics APIs, hence the scoping.
type Manager struct {
	getter Getter
	sf     singleflight.Group

	mu    sync.Mutex
	types map[uint64]Type
	names map[string]map[uint64]uint64 // name -> API-scope key -> type id
}

func NewManager(g Getter) *Manager {
	return &Manager{
		getter: g,
		types:  make(map[uint64]Type),
		names:  make(map[string]map[uint64]uint64),
	}
}

// apiKey collapses the opaque API identity into a map key.
func apiKey(api *wire.API) uint64 {
	if api == nil {
		return 0
	}
	return xxhash.Checksum64(api.ID.Data)
}

// GetType resolves a type by catalogue index, hitting the service at most
// once per unique id.
func (tm *Manager) GetType(ctx context.Context, id uint64, api *wire.API) (Type, error) {
	tm.mu.Lock()
	if t, ok := tm.types[id]; ok {
		tm.indexLocked(t.Name(), api, id)
		tm.mu.Unlock()
		return t, nil
	}
	tm.mu.Unlock()

	v, err, _ := tm.sf.Do(strconv.FormatUint(id, 10), func() (any, error) {
		return tm.fetchType(ctx, id, api)
	})
	if err != nil {
		return nil, err
	}
	return v.(Type), nil
}

// GetTypeByName resolves a type by (name, API scope), consulting the name
// index first.
func (tm *Manager) GetTypeByName(ctx context.Context, name string, api *wire.API) (Type, error) {
	tm.mu.Lock()
	if byAPI, ok := tm.names[name]; ok {
		if id, ok := byAPI[apiKey(api)]; ok {
			t := tm.types[id]
			tm.mu.Unlock()
			return t, nil
		}
	}
	tm.mu.Unlock()

	resp, err := tm.getter.Get(ctx, &wire.GetRequest{
		Path: &wire.Path{TypeByName: &wire.TypeByNamePath{TypeName: name, API: api}},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "lookup type %q", name)
	}
	if resp.Error != nil || resp.Value == nil || resp.Value.Type == nil {
		return nil, errors.Wrapf(ErrUnknownType, "%q (%s)", name, resp.Error)
	}
	return tm.GetType(ctx, resp.Value.Type.TypeID, api)
}

func (tm *Manager) fetchType(ctx context.Context, id uint64, api *wire.API) (Type, error) {
	tm.mu.Lock()
	if t, ok := tm.types[id]; ok {
		tm.mu.Unlock()
		return t, nil
	}
	tm.mu.Unlock()

	resp, err := tm.getter.Get(ctx, &wire.GetRequest{
		Path: &wire.Path{Type: &wire.TypePath{TypeIndex: id}},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "resolve type %d", id)
	}
	if resp.Error != nil || resp.Value == nil || resp.Value.Type == nil {
		return nil, errors.Wrapf(ErrUnknownType, "id %d (%s)", id, resp.Error)
	}
	t := tm.construct(resp.Value.Type, api)

	tm.mu.Lock()
	tm.types[id] = t
	tm.indexLocked(t.Name(), api, id)
	tm.mu.Unlock()
	return t, nil
}

// caller must hold tm.mu
func (tm *Manager) indexLocked(name string, api *wire.API, id uint64) {
	byAPI, ok := tm.names[name]
	if !ok {
		byAPI = make(map[uint64]uint64)
		tm.names[name] = byAPI
	}
	byAPI[apiKey(api)] = id
}

// construct inspects the set oneof branch and builds the matching kind; an
// unrecognized discriminator yields an opaque type whose use fails with
// ErrUnknownType.
func (tm *Manager) construct(ti *wire.Type, api *wire.API) Type {
	base := typeBase{name: ti.Name, id: ti.TypeID, api: api}
	switch {
	case ti.Pseudonym != nil:
		return &PseudonymType{typeBase: base, child: ti.Pseudonym.Underlying, tm: tm}
	case ti.Pointer != nil:
		return &PointerType{typeBase: base, child: ti.Pointer.Pointee, isConst: ti.Pointer.IsConst, tm: tm}
	case ti.Enum != nil:
		return &EnumType{typeBase: base, child: ti.Enum.Underlying, tm: tm}
	case ti.Struct != nil:
		st := &StructType{typeBase: base, fields: ti.Struct.Fields, tm: tm}
		st.index = make(map[string]int, len(st.fields))
		for i, f := range st.fields {
			st.index[f.Name] = i
		}
		return st
	case ti.Array != nil:
		return &ArrayType{typeBase: base, child: ti.Array.ElementType, size: ti.Array.Size, tm: tm}
	case ti.Pod != nil:
		switch *ti.Pod {
		case wire.PodFloat32, wire.PodFloat64,
			wire.PodUint8, wire.PodSint8, wire.PodUint16, wire.PodSint16,
			wire.PodUint32, wire.PodSint32, wire.PodUint64, wire.PodSint64,
			wire.PodBool, wire.PodString:
			return &PodType{typeBase: base, pod: *ti.Pod}
		}
	case ti.Sized != nil:
		switch *ti.Sized {
		case wire.SizedInt, wire.SizedUint, wire.SizedSize, wire.SizedChar:
			return &SizedType{typeBase: base, sized: *ti.Sized}
		}
	}
	return &opaqueType{typeBase: base}
}
