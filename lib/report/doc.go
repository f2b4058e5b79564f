// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package report writes client latency reports to disk.
//
// The file name picks the format. A name ending in .csv (before any
// compression suffix) gets one row per sample with the header
// "iteration,latency_ns", the shape the plotting scripts read. A name
// ending in .cbor gets the whole [Report]: summary and samples. A
// trailing .zst or .lz4 compresses either one.
//
// Files are written atomically: a temporary file in the same
// directory is synced and renamed into place, so a reader never sees
// a partial report.
package report
