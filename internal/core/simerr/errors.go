// Package simerr holds the error taxonomy shared by every simulation
// component. Callers wrap these sentinels with context and test them with
// errors.Is.
package simerr

import "errors"

var (
	// ErrValidation: malformed input such as a negative resource field.
	ErrValidation = errors.New("validation failed")
	// ErrCapacity: a resource ledger would exceed its storage capacity.
	ErrCapacity = errors.New("storage capacity exceeded")
	// ErrOverflow: an addition would leave the representable range.
	ErrOverflow = errors.New("value overflow")
	// ErrAllocation: worker allocation sum or reserve ratio violated.
	ErrAllocation = errors.New("invalid worker allocation")
	// ErrInsufficient: a stock cannot cover a cost.
	ErrInsufficient = errors.New("insufficient resources")
	// ErrNotFound: id lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrIO: save/load medium failure.
	ErrIO = errors.New("storage i/o failure")
	// ErrSerialization: corrupt or incompatible snapshot.
	ErrSerialization = errors.New("snapshot serialization failure")
	// ErrRateLimited: a command source exceeded its intake budget.
	ErrRateLimited = errors.New("command rate limited")
)
