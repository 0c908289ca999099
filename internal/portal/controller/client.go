// Package controller mirrors guest authorisations onto the network access
// controller that enforces them at the link layer. The local store stays
// authoritative; everything here is best effort.
package controller

import (
	"context"
	"errors"
	"fmt"
)

// ErrController matches every failure reported by a Client.
var ErrController = errors.New("controller: request failed")

// Station is a device currently associated with the guest network.
// Authorized is false while the device still sits behind the captive portal.
type Station struct {
	MAC        string `json:"mac"`
	IP         string `json:"ip"`
	Signal     int    `json:"signal"`
	Authorized bool   `json:"authorized"`
}

// Client is the capability set the portal needs from a controller. MACs
// are passed normalised (see NormalizeMAC) and durations in whole minutes.
//
// Implementations must be idempotent: authorising an authorised station
// updates its remaining minutes, and unauthorising or kicking an unknown
// station succeeds.
type Client interface {
	Authorize(ctx context.Context, mac string, minutes int) error
	Unauthorize(ctx context.Context, mac string) error
	Kick(ctx context.Context, mac string) error
	ListActive(ctx context.Context) ([]Station, error)
}

// Error is returned for timeouts, transport failures and explicit
// rejections alike.
type Error struct {
	Op  string
	MAC string
	Err error
}

func (e *Error) Error() string {
	if e.MAC == "" {
		return fmt.Sprintf("controller: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("controller: %s %s: %v", e.Op, e.MAC, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrController }

// Timeout reports whether the call ran out of time.
func (e *Error) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// wrap turns err into an *Error unless it already is one.
func wrap(op, mac string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Op: op, MAC: mac, Err: err}
}
