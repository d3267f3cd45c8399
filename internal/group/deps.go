package group

import "context"

// Device is a resolved member handle. The roster only needs identity and an
// initial state read; everything else goes through the Commander.
type Device interface {
	ID() string
	Snapshot() Snapshot
}

// Registry resolves configured device identifiers to live devices. It is
// consulted once, at roster construction; identifiers that do not resolve
// are silently dropped from the roster.
type Registry interface {
	Resolve(deviceID string) (Device, bool)
}

// Commander delivers one command to one member device. Send returns once
// the underlying integration has accepted or rejected the command; it must
// not wait for the resulting state change, which arrives later as a
// snapshot update.
type Commander interface {
	Send(ctx context.Context, deviceID string, cmd Command) error
}
