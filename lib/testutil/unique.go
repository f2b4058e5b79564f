// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var counter atomic.Uint64

// UniqueID returns "prefix-N" with N increasing across the test binary.
//
//	name := testutil.UniqueID("region") // "region-1", "region-2", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, counter.Add(1))
}
