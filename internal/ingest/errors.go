// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import "errors"

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes ingestion failures for handling.
type ErrorKind int

const (
	// KindNetwork covers connection failures, non-2xx replies and read errors.
	KindNetwork ErrorKind = iota
	// KindTimeout means the ingestion deadline passed.
	KindTimeout
	// KindCanceled means the parent context was canceled. Handle.Cancel
	// never produces it.
	KindCanceled
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is an ingestion failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is an ingestion timeout.
func IsTimeout(err error) bool {
	var ie *Error
	return errors.As(err, &ie) && ie.Kind == KindTimeout
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var ie *Error
	return errors.As(err, &ie) && ie.Kind == KindNetwork
}

// IsCanceled reports whether err came from a canceled parent context.
func IsCanceled(err error) bool {
	var ie *Error
	return errors.As(err, &ie) && ie.Kind == KindCanceled
}
