// Package stream drives the bidirectional command stream against the trace
// service.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/gfxtrace/replay/box"
	"github.com/gfxtrace/replay/typesys"
	"github.com/gfxtrace/replay/wire"
	"github.com/pkg/errors"
)

// Param is one decoded, named command parameter.
type Param struct {
	Name  string
	Value any
}

// Command binds a wire command to its positional, typed parameter list.
type Command struct {
	Name   string
	params []Param
	byName map[string]any
}

// bindCommand resolves each parameter's type under the command's API scope
// and decodes its value (no owning pointer, offset 0).
func bindCommand(ctx context.Context, s box.Session, tm *typesys.Manager, wc *wire.Command) (*Command, error) {
	c := &Command{
		Name:   wc.Name,
		params: make([]Param, 0, len(wc.Parameters)),
		byName: make(map[string]any, len(wc.Parameters)),
	}
	for _, p := range wc.Parameters {
		if p.Type == nil {
			return nil, errors.Errorf("%s: parameter %q has no type", wc.Name, p.Name)
		}
		t, err := tm.GetType(ctx, p.Type.TypeIndex, wc.API)
		if err != nil {
			return nil, errors.Wrapf(err, "%s(%s)", wc.Name, p.Name)
		}
		v, err := box.Decode(ctx, s, nil, 0, t, p.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "%s(%s)", wc.Name, p.Name)
		}
		c.params = append(c.params, Param{Name: p.Name, Value: v})
		c.byName[p.Name] = v
	}
	return c, nil
}

func (c *Command) Params() []Param { return c.params }

func (c *Command) Get(name string) (any, bool) {
	v, ok := c.byName[name]
	return v, ok
}

// Args returns the positional decoded values, the shape handler callbacks
// receive.
func (c *Command) Args() []any {
	args := make([]any, len(c.params))
	for i := range c.params {
		args[i] = c.params[i].Value
	}
	return args
}

func (c *Command) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteByte('(')
	for i := range c.params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", c.params[i].Name, c.params[i].Value)
	}
	sb.WriteByte(')')
	return sb.String()
}
