// Package stream drives the bidirectional command stream against the trace
// service.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package stream

import (
	"context"

	"github.com/gfxtrace/replay/typesys"
	"github.com/gfxtrace/replay/wire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrConnect: the RPC channel cannot be established.
var ErrConnect = errors.New("cannot connect to trace service")

// hand-rolled method names; bindings codegen is an external collaborator
const (
	methodLoadCapture    = "/gapis.Gapid/LoadCapture"
	methodGet            = "/gapis.Gapid/Get"
	methodStreamCommands = "/gapis.Gapid/StreamCommands"
)

var streamCommandsDesc = &grpc.StreamDesc{
	StreamName:    "StreamCommands",
	ClientStreams: true,
	ServerStreams: true,
}

type options struct {
	log      *logrus.Logger
	dialOpts []grpc.DialOption
}

type Option func(*options)

// WithLogger overrides the default (standard) logrus logger.
func WithLogger(l *logrus.Logger) Option { return func(o *options) { o.log = l } }

// WithDialOptions appends gRPC dial options (credentials, interceptors).
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dialOpts = append(o.dialOpts, opts...) }
}

// Conn is a client connection to the trace service. It carries the unary
// entry points (LoadCapture, Get) and opens streaming walk sessions.
type Conn struct {
	cc  *grpc.ClientConn
	log *logrus.Entry
	sid string
	w   *walker // most recent session, for the observation counters
}

// interface guard
var _ typesys.Getter = (*Conn)(nil)

// Dial connects to the trace service. The service listens on localhost
// without transport security; supply credentials via WithDialOptions when
// that does not hold.
func Dial(ctx context.Context, target string, opts ...Option) (*Conn, error) {
	o := &options{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(o)
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, o.dialOpts...)
	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(ErrConnect, "%s: %v", target, err)
	}
	sid := shortid.MustGenerate()
	return &Conn{
		cc:  cc,
		sid: sid,
		log: o.log.WithFields(logrus.Fields{"session": sid, "target": target}),
	}, nil
}

func (c *Conn) Close() error { return c.cc.Close() }

// Get is the service's path-addressed lookup, used by the type manager.
func (c *Conn) Get(ctx context.Context, req *wire.GetRequest) (*wire.GetResponse, error) {
	resp := &wire.GetResponse{}
	if err := c.cc.Invoke(ctx, methodGet, req, resp, grpc.ForceCodec(wire.Codec{})); err != nil {
		return nil, errors.Wrap(err, "get")
	}
	return resp, nil
}

// LoadCapture loads the trace at path on the service side.
func (c *Conn) LoadCapture(ctx context.Context, path string) (*wire.Capture, error) {
	resp := &wire.LoadCaptureResponse{}
	req := &wire.LoadCaptureRequest{Path: path}
	if err := c.cc.Invoke(ctx, methodLoadCapture, req, resp, grpc.ForceCodec(wire.Codec{})); err != nil {
		return nil, errors.Wrapf(err, "load capture %q", path)
	}
	if resp.Error != nil {
		return nil, errors.Errorf("load capture %q: %s", path, resp.Error)
	}
	if resp.Capture == nil {
		return nil, errors.Wrapf(ErrProtocol, "load capture %q: empty response", path)
	}
	return resp.Capture, nil
}

// WalkTrace loads the capture, opens the command stream, and walks it to
// completion, dispatching to the handler. One walk at a time per Conn.
func (c *Conn) WalkTrace(ctx context.Context, path string, h Handler) error {
	capture, err := c.LoadCapture(ctx, path)
	if err != nil {
		return err
	}
	cs, err := c.cc.NewStream(ctx, streamCommandsDesc, methodStreamCommands, grpc.ForceCodec(wire.Codec{}))
	if err != nil {
		return errors.Wrap(err, "open command stream")
	}
	w := newWalker(c.log, capture, h, c)
	c.w = w
	c.log.WithField("capture", path).Info("walking trace")
	err = w.run(ctx, grpcCommandStream{cs})
	c.log.WithFields(logrus.Fields{
		"sent":     w.totalSent.Load(),
		"received": w.totalReceived.Load(),
	}).Info("walk finished")
	return err
}

// NumSent reports outgoing requests on the most recent walk.
func (c *Conn) NumSent() int64 {
	if c.w == nil {
		return 0
	}
	return c.w.totalSent.Load()
}

// NumReceived reports incoming messages on the most recent walk.
func (c *Conn) NumReceived() int64 {
	if c.w == nil {
		return 0
	}
	return c.w.totalReceived.Load()
}

// grpcCommandStream adapts the raw client stream to the driver's typed
// send/receive.
type grpcCommandStream struct {
	grpc.ClientStream
}

func (s grpcCommandStream) Send(r *wire.Request) error { return s.SendMsg(r) }

func (s grpcCommandStream) Recv() (*wire.Response, error) {
	resp := &wire.Response{}
	if err := s.RecvMsg(resp); err != nil {
		return nil, err
	}
	return resp, nil
}
