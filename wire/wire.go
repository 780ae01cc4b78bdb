// Package wire defines the trace service's message set: the streaming
// request/response envelopes, the self-describing type catalogue, and the
// boxed value representation. The schemas are owned by the service; this
// package renders them as plain structs so the client can speak the
// protocol without a codegen step.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"strconv"
)

// Pod enumerates the concrete primitive types.
type Pod int32

const (
	PodUnknown Pod = iota
	PodFloat32
	PodFloat64
	PodUint
	PodSint
	PodUint8
	PodSint8
	PodUint16
	PodSint16
	PodUint32
	PodSint32
	PodUint64
	PodSint64
	PodBool
	PodString
)

// Sized enumerates the host-width abstract types; all decode as 64-bit.
type Sized int32

const (
	SizedInt Sized = iota
	SizedUint
	SizedSize
	SizedChar
)

// identity of the API family a type or command belongs to
type (
	ID struct {
		Data []byte `json:"data,omitempty"`
	}
	API struct {
		ID ID `json:"ID"`
	}
)

// type catalogue
type (
	Type struct {
		TypeID uint64 `json:"type_id"`
		Name   string `json:"name,omitempty"`

		// exactly one of the following is set
		Pseudonym *PseudonymType `json:"pseudonym,omitempty"`
		Pointer   *PointerType   `json:"pointer,omitempty"`
		Enum      *EnumType      `json:"enum,omitempty"`
		Struct    *StructType    `json:"struct,omitempty"`
		Array     *ArrayType     `json:"array,omitempty"`
		Pod       *Pod           `json:"pod,omitempty"`
		Sized     *Sized         `json:"sized,omitempty"`
	}
	PseudonymType struct {
		Underlying uint64 `json:"underlying"`
	}
	PointerType struct {
		Pointee uint64 `json:"pointee"`
		IsConst bool   `json:"is_const,omitempty"`
	}
	EnumType struct {
		Underlying uint64 `json:"underlying"`
	}
	StructType struct {
		Fields []StructField `json:"fields,omitempty"`
	}
	StructField struct {
		Name string `json:"name"`
		Type uint64 `json:"type"`
	}
	ArrayType struct {
		ElementType uint64 `json:"element_type"`
		Size        uint64 `json:"size"`
	}
)

// paths (the service's `Get` addressing scheme)
type (
	TypePath struct {
		TypeIndex uint64 `json:"type_index"`
	}
	TypeByNamePath struct {
		TypeName string `json:"type_name"`
		API      *API   `json:"API,omitempty"`
	}
	Path struct {
		Type       *TypePath       `json:"type,omitempty"`
		TypeByName *TypeByNamePath `json:"type_by_name,omitempty"`
	}
	GetRequest struct {
		Path *Path `json:"path,omitempty"`
	}
	GetResponse struct {
		Value *PathValue `json:"value,omitempty"`
		Error *Error     `json:"error,omitempty"`
	}
	PathValue struct {
		Type *Type `json:"type,omitempty"`
	}
)

// boxed values
type (
	Value struct {
		Pod     *PodValue `json:"pod,omitempty"`
		Pointer *Pointer  `json:"pointer,omitempty"`
		Struct  *Struct   `json:"struct,omitempty"`
		Array   *Array    `json:"array,omitempty"`
		Slice   *Slice    `json:"slice,omitempty"`
	}
	Pointer struct {
		Address   uint64 `json:"address"`
		Fictional bool   `json:"fictional,omitempty"`
	}
	Struct struct {
		Fields []*Value `json:"fields,omitempty"`
	}
	Array struct {
		Entries []*Value `json:"entries,omitempty"`
	}
	Slice struct {
		Values []*Value `json:"values,omitempty"`
	}
	// PodValue carries one scalar or one pod-array fast path.
	PodValue struct {
		Float32 float32 `json:"float32,omitempty"`
		Float64 float64 `json:"float64,omitempty"`
		Uint    uint64  `json:"uint,omitempty"`
		Sint    int64   `json:"sint,omitempty"`
		Uint8   uint8   `json:"uint8,omitempty"`
		Sint8   int8    `json:"sint8,omitempty"`
		Uint16  uint16  `json:"uint16,omitempty"`
		Sint16  int16   `json:"sint16,omitempty"`
		Uint32  uint32  `json:"uint32,omitempty"`
		Sint32  int32   `json:"sint32,omitempty"`
		Uint64  uint64  `json:"uint64,omitempty"`
		Sint64  int64   `json:"sint64,omitempty"`
		Bool    bool    `json:"bool,omitempty"`
		String  string  `json:"string,omitempty"`

		Float32Array []float32 `json:"float32_array,omitempty"`
		Float64Array []float64 `json:"float64_array,omitempty"`
		UintArray    []uint64  `json:"uint_array,omitempty"`
		SintArray    []int64   `json:"sint_array,omitempty"`
		Uint8Array   []byte    `json:"uint8_array,omitempty"`
		Sint8Array   []int8    `json:"sint8_array,omitempty"`
		Uint16Array  []uint16  `json:"uint16_array,omitempty"`
		Sint16Array  []int16   `json:"sint16_array,omitempty"`
		Uint32Array  []uint32  `json:"uint32_array,omitempty"`
		Sint32Array  []int32   `json:"sint32_array,omitempty"`
		Uint64Array  []uint64  `json:"uint64_array,omitempty"`
		Sint64Array  []int64   `json:"sint64_array,omitempty"`
		BoolArray    []bool    `json:"bool_array,omitempty"`
		StringArray  []string  `json:"string_array,omitempty"`
	}
)

// captures
type (
	Capture struct {
		ID *ID `json:"ID,omitempty"`
	}
	LoadCaptureRequest struct {
		Path string `json:"path"`
	}
	LoadCaptureResponse struct {
		Capture *Capture `json:"capture,omitempty"`
		Error   *Error   `json:"error,omitempty"`
	}
)

// command stream
type (
	// Request is the outgoing oneof of StreamCommands.
	Request struct {
		Start         *StartRequest  `json:"start,omitempty"`
		ResolveObject *ResolveObject `json:"resolve_object,omitempty"`
		GetMemory     *GetMemory     `json:"get_memory,omitempty"`
		PutMemory     *PutMemory     `json:"put_memory,omitempty"`
		PassCommand   *Pass          `json:"pass_command,omitempty"`
		DropCommand   *Drop          `json:"drop_command,omitempty"`
	}
	StartRequest struct {
		Capture                *Capture `json:"capture,omitempty"`
		CommandNames           []string `json:"command_names,omitempty"`
		PassDefault            bool     `json:"pass_default,omitempty"`
		IncludeInitialCommands bool     `json:"include_initial_commands,omitempty"`
	}
	ResolveObject struct {
		Pointer uint64    `json:"pointer"`
		Type    *TypePath `json:"type,omitempty"`
		Offset  uint64    `json:"offset"`
	}
	GetMemory struct{}
	PutMemory struct {
		Objects []*MemoryObject `json:"objects,omitempty"`
	}
	MemoryObject struct {
		Pointer     *Pointer  `json:"pointer,omitempty"`
		Type        *TypePath `json:"type,omitempty"`
		WriteObject *Value    `json:"write_object,omitempty"`
	}
	Pass struct{}
	Drop struct{}

	// Response is the incoming oneof of StreamCommands.
	Response struct {
		Done                *Done                `json:"done,omitempty"`
		Error               *Error               `json:"error,omitempty"`
		InitialCommandsDone *InitialCommandsDone `json:"initial_commands_done,omitempty"`
		Command             *Command             `json:"command,omitempty"`
		ReadObject          *Value               `json:"read_object,omitempty"`
		Memory              *Memory              `json:"memory,omitempty"`
	}
	Done                struct{}
	InitialCommandsDone struct{}
	Command             struct {
		Name       string       `json:"name"`
		API        *API         `json:"API,omitempty"`
		Parameters []*Parameter `json:"parameters,omitempty"`
	}
	Parameter struct {
		Name  string    `json:"name"`
		Type  *TypePath `json:"type,omitempty"`
		Value *Value    `json:"value,omitempty"`
	}
	// Memory is the snapshot answering GetMemory.
	Memory struct {
		Observations []*MemoryRange `json:"observations,omitempty"`
	}
	MemoryRange struct {
		Base uint64 `json:"base"`
		Data []byte `json:"data,omitempty"`
	}
	Error struct {
		Msg string `json:"msg,omitempty"`
	}
)

func (e *Error) String() string {
	if e == nil {
		return "<nil>"
	}
	return e.Msg
}

func (p *Pointer) String() string {
	if p == nil {
		return "<nil>"
	}
	s := "0x" + strconv.FormatUint(p.Address, 16)
	if p.Fictional {
		s += "(fictional)"
	}
	return s
}
