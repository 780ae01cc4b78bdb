// Package typesys lazily resolves the trace service's self-describing type
// catalogue and exposes per-kind type representations.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package typesys_test

import (
	"context"
	"testing"

	"github.com/gfxtrace/replay/typesys"
	"github.com/gfxtrace/replay/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	types  map[uint64]*wire.Type
	names  map[string]uint64
	calls  map[uint64]int
	nameRP int
}

func newFakeGetter() *fakeGetter {
	return &fakeGetter{
		types: make(map[uint64]*wire.Type),
		names: make(map[string]uint64),
		calls: make(map[uint64]int),
	}
}

func (g *fakeGetter) add(t *wire.Type) *fakeGetter {
	g.types[t.TypeID] = t
	g.names[t.Name] = t.TypeID
	return g
}

func (g *fakeGetter) Get(_ context.Context, req *wire.GetRequest) (*wire.GetResponse, error) {
	switch {
	case req.Path.Type != nil:
		id := req.Path.Type.TypeIndex
		g.calls[id]++
		t, ok := g.types[id]
		if !ok {
			return &wire.GetResponse{Error: &wire.Error{Msg: "no such type"}}, nil
		}
		return &wire.GetResponse{Value: &wire.PathValue{Type: t}}, nil
	case req.Path.TypeByName != nil:
		g.nameRP++
		id, ok := g.names[req.Path.TypeByName.TypeName]
		if !ok {
			return &wire.GetResponse{Error: &wire.Error{Msg: "no such name"}}, nil
		}
		return &wire.GetResponse{Value: &wire.PathValue{Type: g.types[id]}}, nil
	}
	return nil, errors.New("malformed get request")
}

func podType(id uint64, name string, pod wire.Pod) *wire.Type {
	return &wire.Type{TypeID: id, Name: name, Pod: &pod}
}

func sizedType(id uint64, name string, s wire.Sized) *wire.Type {
	return &wire.Type{TypeID: id, Name: name, Sized: &s}
}

func vulkanAPI() *wire.API { return &wire.API{ID: wire.ID{Data: []byte("vulkan")}} }

func TestTypeMemoisation(t *testing.T) {
	g := newFakeGetter().add(podType(1, "uint8", wire.PodUint8))
	tm := typesys.NewManager(g)
	api := vulkanAPI()

	t1, err := tm.GetType(context.Background(), 1, api)
	require.NoError(t, err)
	t2, err := tm.GetType(context.Background(), 1, api)
	require.NoError(t, err)

	assert.Same(t, t1, t2, "repeated resolution must return the same handle")
	assert.Equal(t, 1, g.calls[1], "at most one fetch per unique id")
}

func TestTypeByNameUsesIndex(t *testing.T) {
	g := newFakeGetter().add(podType(1, "uint8", wire.PodUint8))
	tm := typesys.NewManager(g)
	api := vulkanAPI()

	t1, err := tm.GetType(context.Background(), 1, api)
	require.NoError(t, err)

	// resolution above indexed the name; no name round-trip expected
	t2, err := tm.GetTypeByName(context.Background(), "uint8", api)
	require.NoError(t, err)
	assert.Same(t, t1, t2)
	assert.Zero(t, g.nameRP)

	_, err = tm.GetTypeByName(context.Background(), "nope", api)
	assert.ErrorIs(t, err, typesys.ErrUnknownType)
}

func TestNameScopingPerAPI(t *testing.T) {
	// the same name binds to different ids under different API scopes
	g := newFakeGetter().add(podType(1, "size_t", wire.PodUint64))
	g.types[2] = podType(2, "size_t", wire.PodUint32)
	tm := typesys.NewManager(g)

	gles := &wire.API{ID: wire.ID{Data: []byte("gles")}}
	vk := vulkanAPI()

	tvk, err := tm.GetType(context.Background(), 1, vk)
	require.NoError(t, err)
	tgles, err := tm.GetType(context.Background(), 2, gles)
	require.NoError(t, err)

	got, err := tm.GetTypeByName(context.Background(), "size_t", vk)
	require.NoError(t, err)
	assert.Same(t, tvk, got)
	got, err = tm.GetTypeByName(context.Background(), "size_t", gles)
	require.NoError(t, err)
	assert.Same(t, tgles, got)
}

func TestPodDecodeDefault(t *testing.T) {
	tests := []struct {
		name string
		pod  wire.Pod
		val  *wire.PodValue
		want any
		dflt any
	}{
		{"uint8", wire.PodUint8, &wire.PodValue{Uint8: 7}, uint8(7), uint8(0)},
		{"sint8", wire.PodSint8, &wire.PodValue{Sint8: -7}, int8(-7), int8(0)},
		{"uint16", wire.PodUint16, &wire.PodValue{Uint16: 77}, uint16(77), uint16(0)},
		{"sint16", wire.PodSint16, &wire.PodValue{Sint16: -77}, int16(-77), int16(0)},
		{"uint32", wire.PodUint32, &wire.PodValue{Uint32: 777}, uint32(777), uint32(0)},
		{"sint32", wire.PodSint32, &wire.PodValue{Sint32: -777}, int32(-777), int32(0)},
		{"uint64", wire.PodUint64, &wire.PodValue{Uint64: 7777}, uint64(7777), uint64(0)},
		{"sint64", wire.PodSint64, &wire.PodValue{Sint64: -7777}, int64(-7777), int64(0)},
		{"float32", wire.PodFloat32, &wire.PodValue{Float32: 0.5}, float32(0.5), float32(0)},
		{"float64", wire.PodFloat64, &wire.PodValue{Float64: 0.25}, float64(0.25), float64(0)},
		{"bool", wire.PodBool, &wire.PodValue{Bool: true}, true, false},
		{"string", wire.PodString, &wire.PodValue{String: "x"}, "x", ""},
	}
	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id := uint64(i + 1)
			g := newFakeGetter().add(podType(id, tc.name, tc.pod))
			tm := typesys.NewManager(g)
			tp, err := tm.GetType(context.Background(), id, vulkanAPI())
			require.NoError(t, err)

			got, err := tp.Decode(context.Background(), &wire.Value{Pod: tc.val})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			d, err := tp.Default(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.dflt, d)

			// wire-level round-trip
			enc, err := tp.Encode(context.Background(), got)
			require.NoError(t, err)
			assert.Equal(t, &wire.Value{Pod: tc.val}, enc)
		})
	}
}

func TestSizedDecode64Bit(t *testing.T) {
	g := newFakeGetter().
		add(sizedType(1, "int", wire.SizedInt)).
		add(sizedType(2, "uint", wire.SizedUint)).
		add(sizedType(3, "size", wire.SizedSize)).
		add(sizedType(4, "char", wire.SizedChar))
	tm := typesys.NewManager(g)
	api := vulkanAPI()
	ctx := context.Background()

	ti, _ := tm.GetType(ctx, 1, api)
	v, err := ti.Decode(ctx, &wire.Value{Pod: &wire.PodValue{Sint64: -9}})
	require.NoError(t, err)
	assert.Equal(t, int64(-9), v)

	tu, _ := tm.GetType(ctx, 2, api)
	v, err = tu.Decode(ctx, &wire.Value{Pod: &wire.PodValue{Uint64: 9}})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v)

	tc, _ := tm.GetType(ctx, 4, api)
	v, err = tc.Decode(ctx, &wire.Value{Pod: &wire.PodValue{Uint8: 65}})
	require.NoError(t, err)
	assert.Equal(t, uint64(65), v)

	enc, err := tc.Encode(ctx, uint64(65))
	require.NoError(t, err)
	assert.Equal(t, uint8(65), enc.Pod.Uint8)
}

func TestUnknownDiscriminator(t *testing.T) {
	g := newFakeGetter()
	g.types[9] = &wire.Type{TypeID: 9, Name: "mystery"} // no kind branch set
	tm := typesys.NewManager(g)

	tp, err := tm.GetType(context.Background(), 9, vulkanAPI())
	require.NoError(t, err)

	_, err = tp.Decode(context.Background(), &wire.Value{})
	assert.ErrorIs(t, err, typesys.ErrUnknownType)
	_, err = tp.Default(context.Background())
	assert.ErrorIs(t, err, typesys.ErrUnknownType)
}

func TestStructFieldLookup(t *testing.T) {
	g := newFakeGetter().
		add(podType(1, "uint32", wire.PodUint32)).
		add(podType(2, "uint64", wire.PodUint64)).
		add(&wire.Type{TypeID: 3, Name: "VkExtent", Struct: &wire.StructType{Fields: []wire.StructField{
			{Name: "width", Type: 1},
			{Name: "height", Type: 1},
			{Name: "handle", Type: 2},
		}}})
	tm := typesys.NewManager(g)
	ctx := context.Background()

	tp, err := tm.GetType(ctx, 3, vulkanAPI())
	require.NoError(t, err)
	st, ok := tp.(*typesys.StructType)
	require.True(t, ok)

	assert.Equal(t, 3, st.NumFields())
	assert.Equal(t, "height", st.FieldName(1))

	ft, err := st.FieldByName(ctx, "handle")
	require.NoError(t, err)
	assert.Equal(t, "uint64", ft.Name())

	_, err = st.FieldByName(ctx, "depth")
	assert.Error(t, err)
}

func TestEnumAndPseudonymDelegate(t *testing.T) {
	g := newFakeGetter().
		add(podType(1, "sint32", wire.PodSint32)).
		add(&wire.Type{TypeID: 2, Name: "VkResult", Enum: &wire.EnumType{Underlying: 1}}).
		add(&wire.Type{TypeID: 3, Name: "VkBool32", Pseudonym: &wire.PseudonymType{Underlying: 1}})
	tm := typesys.NewManager(g)
	ctx := context.Background()
	api := vulkanAPI()

	en, err := tm.GetType(ctx, 2, api)
	require.NoError(t, err)
	v, err := en.Decode(ctx, &wire.Value{Pod: &wire.PodValue{Sint32: -3}})
	require.NoError(t, err)
	assert.Equal(t, int32(-3), v)

	ps, err := tm.GetType(ctx, 3, api)
	require.NoError(t, err)
	base, err := ps.Base(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sint32", base.Name())

	// transparency: decoding via the pseudonym equals decoding via its base
	pv, err := ps.Decode(ctx, &wire.Value{Pod: &wire.PodValue{Sint32: 42}})
	require.NoError(t, err)
	bv, err := base.Decode(ctx, &wire.Value{Pod: &wire.PodValue{Sint32: 42}})
	require.NoError(t, err)
	assert.Equal(t, bv, pv)
}

func TestArrayDecodeFastPaths(t *testing.T) {
	g := newFakeGetter().
		add(podType(1, "float32", wire.PodFloat32)).
		add(&wire.Type{TypeID: 2, Name: "float[3]", Array: &wire.ArrayType{ElementType: 1, Size: 3}})
	tm := typesys.NewManager(g)
	ctx := context.Background()

	tp, err := tm.GetType(ctx, 2, vulkanAPI())
	require.NoError(t, err)

	// boxed entries matching the declared size
	boxed := &wire.Value{Array: &wire.Array{Entries: []*wire.Value{
		{Pod: &wire.PodValue{Float32: 1}},
		{Pod: &wire.PodValue{Float32: 2}},
		{Pod: &wire.PodValue{Float32: 3}},
	}}}
	v, err := tp.Decode(ctx, boxed)
	require.NoError(t, err)
	assert.Equal(t, []any{float32(1), float32(2), float32(3)}, v)

	// pod-array fast path
	v, err = tp.Decode(ctx, &wire.Value{Pod: &wire.PodValue{Float32Array: []float32{4, 5, 6}}})
	require.NoError(t, err)
	assert.Equal(t, []any{float32(4), float32(5), float32(6)}, v)

	d, err := tp.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{float32(0), float32(0), float32(0)}, d)
}
