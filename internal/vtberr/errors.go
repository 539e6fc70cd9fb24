// Package vtberr defines the error taxonomy shared by every vtbond
// component: config validation, network/transport failures, transient
// per-link send errors, Noise decapsulation errors, and missing resources.
package vtberr

import "errors"

// Sentinel errors. Call sites wrap these with fmt.Errorf("%w: …") to add
// context; callers distinguish kinds with errors.Is.
var (
	// InvalidConfig covers key lengths, unparseable addresses, and
	// impossible numeric ranges. Always fatal at startup.
	ErrInvalidConfig = errors.New("invalid configuration")

	// Network covers TUN I/O, UDP bind, and Noise state machine errors.
	// Fatal to the Supervisor loop.
	ErrNetwork = errors.New("network error")

	// TransientLink covers per-send I/O failures on one link. Absorbed by
	// the LinkManager: the link is marked down and other links are tried.
	ErrTransientLink = errors.New("transient link error")

	// Decapsulation covers a Noise state machine rejecting an inbound
	// packet. Logged and dropped; never propagates to the Supervisor.
	ErrDecapsulation = errors.New("decapsulation error")

	// NotFound covers a missing configuration file at startup.
	ErrNotFound = errors.New("not found")
)
