// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package server implements the server role.
//
// [Classify] is the label table: 1 answers 10, 2 answers 20, anything
// else answers 0. [Server.HandleRequest] is the entry point a
// transport calls for every inbound frame. For a request it measures
// its own processing time around classification and returns the
// reply. For the sentinel it runs [Server.HandleSharedRegionNotification]
// and returns no reply: the server reads the shared region, writes its
// response into it, and notifies the logger.
//
// Nothing a peer sends can stop the server. Unknown labels degrade to
// reply 0 with an error-level record, and a failed logger notification
// is logged and forgotten.
package server
