// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds faultline's CBOR configuration.
//
// The request/reply path uses the fixed-width frames in lib/wire and
// never touches CBOR. CBOR carries everything around it: the datagrams
// roles send to the logger and the run summaries written by
// lib/report. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2), so identical values produce identical bytes and a summary's
// digest is stable across runs with the same numbers.
//
//	data, err := codec.Marshal(notification)
//	err = codec.Unmarshal(data, &notification)
//
// Types that only ever travel as CBOR carry `cbor` struct tags.
package codec
