// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import "github.com/bureau-foundation/faultline/lib/wire"

// Classify maps a request label to its reply label. It is total and
// has no side effects. The sentinel is not a request and classifies
// as unknown.
func Classify(label wire.Label) wire.Label {
	switch label {
	case wire.RequestA:
		return wire.ReplyA
	case wire.RequestB:
		return wire.ReplyB
	default:
		return wire.ReplyUnknown
	}
}
