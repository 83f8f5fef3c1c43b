// Package aidot defines the contract between this daemon and an AiDot
// device-client implementation. The client owns discovery, authentication,
// the wire protocol and key handling; this package only describes the
// boundary the rest of the daemon programs against.
package aidot

import (
	"context"
	"errors"
)

// ErrNotLoggedIn is returned by DeviceClient.ReadStatus when the device
// session has expired or was never established. Callers are expected to
// Login again and continue.
var ErrNotLoggedIn = errors.New("aidot: device not logged in")

// LoginInfo is the opaque login payload (tokens, account identifiers)
// produced by the vendor's account flow. The daemon passes it through to
// the client untouched.
type LoginInfo map[string]any

// Client is the account-level handle. One Client serves all devices of an
// account.
type Client interface {
	// DeviceClient returns the per-device client for the given device
	// record. Repeated calls for the same device return the same client.
	DeviceClient(device Device) DeviceClient

	// StartDiscover begins background LAN discovery so device clients can
	// learn addresses without manual configuration.
	StartDiscover()

	// Cleanup releases all connections and background work.
	Cleanup() error
}

// DeviceClient drives a single light.
type DeviceClient interface {
	Info() DeviceInfo

	// Status returns the last known status snapshot.
	Status() Status

	Login(ctx context.Context) error

	// ReadStatus blocks until the device pushes its next status update and
	// returns it. Returns ErrNotLoggedIn when the session is gone.
	ReadStatus(ctx context.Context) (Status, error)

	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	SetDimming(ctx context.Context, dimming int) error
	SetCCT(ctx context.Context, kelvin int) error
	SetRGBW(ctx context.Context, color RGBW) error

	// UpdateIPAddress forces a known address for the device. With manual
	// set, discovery results no longer override it.
	UpdateIPAddress(ip string, manual bool)
}

// Factory builds a Client from login info. Backends register a Factory so
// the daemon can construct them by name.
type Factory func(login LoginInfo) (Client, error)
