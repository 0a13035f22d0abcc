// Package simerr defines the sentinel error kinds the simulation engine
// reports up to its callers, per the propagation policy in spec.md §7.
package simerr

import "errors"

var (
	// ErrConfigInvalid is returned when a configuration fails validation
	// before any device is started.
	ErrConfigInvalid = errors.New("configuration invalid")

	// ErrPortUnavailable is returned when a port allocation or an
	// allocation-plan validation cannot be satisfied by a pool.
	ErrPortUnavailable = errors.New("port unavailable")

	// ErrEndpointBindFailure is returned when a device's protocol server
	// could not bind its assigned port.
	ErrEndpointBindFailure = errors.New("endpoint bind failure")

	// ErrBrokerUnreachable is returned when the MQTT gateway could not
	// connect to or confirm connection with its broker within the
	// allotted window.
	ErrBrokerUnreachable = errors.New("mqtt broker unreachable")

	// ErrDeviceNotFound is returned by inspection/restart operations that
	// reference an unknown device id.
	ErrDeviceNotFound = errors.New("device not found")
)
