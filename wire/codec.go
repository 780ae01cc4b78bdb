// Package wire defines the trace service's message set: the streaming
// request/response envelopes, the self-describing type catalogue, and the
// boxed value representation.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/encoding"
)

// CodecName identifies the stream's content subtype on the wire.
const CodecName = "gapis-json"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Codec is the gRPC codec for the service messages. It must be forced on
// every call (grpc.ForceCodec) since there are no generated bindings.
type Codec struct{}

// interface guard
var _ encoding.Codec = Codec{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) { return jsonAPI.Marshal(v) }

func (Codec) Unmarshal(data []byte, v any) error { return jsonAPI.Unmarshal(data, v) }

func init() { encoding.RegisterCodec(Codec{}) }
