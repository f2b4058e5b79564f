// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
	"strconv"
)

// Label is a request or reply discriminator. It is stored as 64 bits;
// a 32-bit codec rejects values that do not fit.
type Label uint64

// Reserved label values.
const (
	// RequestA and RequestB are the two request types a client sends.
	RequestA Label = 1
	RequestB Label = 2

	// ReplyA and ReplyB are the server's answers to RequestA and
	// RequestB.
	ReplyA Label = 10
	ReplyB Label = 20

	// ReplyUnknown answers any label the server does not recognise.
	ReplyUnknown Label = 0

	// CrasherLabel is the label the crasher sends. The server does not
	// recognise it.
	CrasherLabel Label = 99

	// SentinelLabel announces that the shared region holds new data.
	// It is a one-way notification and never gets a reply.
	SentinelLabel Label = 0xFFFFFFFF
)

func (l Label) String() string {
	if l == SentinelLabel {
		return "sentinel"
	}
	return strconv.FormatUint(uint64(l), 10)
}

var (
	// ErrIncompleteMessage means fewer bytes than one frame were
	// available. Callers treat it as "no message" or "peer closed",
	// never as a protocol violation.
	ErrIncompleteMessage = errors.New("incomplete message")

	// ErrLabelOverflow means a label does not fit the codec's width.
	ErrLabelOverflow = errors.New("label overflows codec width")

	// ErrSentinelCollision means a configured request label equals
	// the sentinel.
	ErrSentinelCollision = errors.New("request label collides with sentinel")

	// ErrUnexpectedSentinel means a reply frame carried the sentinel.
	ErrUnexpectedSentinel = errors.New("sentinel label in reply")
)

// LabelError reports which label failed validation and why.
type LabelError struct {
	Label Label
	Err   error
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("label %d: %v", uint64(e.Label), e.Err)
}

func (e *LabelError) Unwrap() error { return e.Err }

// ValidateLabels checks request labels against codec before any
// traffic flows. Every failure is reported, joined.
func ValidateLabels(codec Codec, labels ...Label) error {
	var errs []error
	for _, label := range labels {
		if label == SentinelLabel {
			errs = append(errs, &LabelError{Label: label, Err: ErrSentinelCollision})
			continue
		}
		if !codec.Fits(label) {
			errs = append(errs, &LabelError{Label: label, Err: ErrLabelOverflow})
		}
	}
	return errors.Join(errs...)
}
