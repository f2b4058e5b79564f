// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client implements the client role: the driver of the
// benchmark.
//
// [Client.Run] performs a number of rounds. Each round is two timed
// request/reply exchanges (label 1, then label 2) with a shared region
// handoff between them, followed by one logger notification:
//
//	call(1)  ->  write region  ->  notify server  ->  [gap]
//	call(2)  ->  notify logger ->  [pause before next round]
//
// Every completed exchange contributes one [Sample] whose wall latency
// (client send to client receive) feeds [Stats]. The server-reported
// processing time is kept alongside for reporting but never enters the
// aggregate. An exchange that fails is a measurement gap: it is
// logged, counted in [Result.Gaps], and contributes no sample.
//
// Zero rounds is legal and produces no samples; [Stats.Average]
// reports false instead of dividing by zero.
package client
