//go:build debug

// Package debug provides assertions compiled in under the `debug` build tag
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"fmt"
)

func ON() bool { return true }

func Assert(cond bool, args ...any) {
	if !cond {
		if len(args) > 0 {
			panic("assertion failed: " + fmt.Sprint(args...))
		}
		panic("assertion failed")
	}
}

func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic("assertion failed: " + fmt.Sprintf(format, args...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}

func FailTypeCast(v any) {
	panic(fmt.Sprintf("unexpected type %T", v))
}
