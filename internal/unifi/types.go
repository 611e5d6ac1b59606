// Package unifi provides a session-authenticated client for the UniFi
// Network controller API, limited to switching a single switch port
// between two port configuration profiles.
package unifi

import (
	"context"
	"log/slog"
)

// levelTrace is used for raw response bodies. It must equal
// config.LevelTrace so that --log-level trace shows them.
const levelTrace = slog.LevelDebug - 4

// PortController enables and disables switch ports by applying one of
// two preconfigured port profiles. The UniFi Client implements it.
type PortController interface {
	EnablePort(ctx context.Context, deviceID string, port int) error
	DisablePort(ctx context.Context, deviceID string, port int) error
}

// PoEModeAuto lets the switch negotiate PoE on the port.
const PoEModeAuto = "auto"

// PortOverride is the per-port configuration record the controller
// accepts in a device's port_overrides list.
type PortOverride struct {
	PortIdx                int      `json:"port_idx"`
	PoEMode                string   `json:"poe_mode"`
	PortConfID             string   `json:"portconf_id"`
	PortSecurityMACAddress []string `json:"port_security_mac_address"`
	STPPortMode            bool     `json:"stp_port_mode"`
	Autoneg                bool     `json:"autoneg"`
	PortSecurityEnabled    bool     `json:"port_security_enabled"`
}

// PortOverrideRequest is the body of a device update that replaces the
// port overrides.
type PortOverrideRequest struct {
	PortOverrides []PortOverride `json:"port_overrides"`
}

// NewPortOverrideRequest builds the single-port override payload that
// applies profileID to port.
func NewPortOverrideRequest(port int, profileID string) PortOverrideRequest {
	return PortOverrideRequest{
		PortOverrides: []PortOverride{{
			PortIdx:                port,
			PoEMode:                PoEModeAuto,
			PortConfID:             profileID,
			PortSecurityMACAddress: []string{},
			STPPortMode:            true,
			Autoneg:                true,
			PortSecurityEnabled:    false,
		}},
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Return codes carried in the response envelope.
const (
	rcOK    = "ok"
	rcError = "error"
)

// envelope is the wrapper every controller response carries. Only the
// meta block is used.
type envelope struct {
	Meta *struct {
		RC  string `json:"rc"`
		Msg string `json:"msg,omitempty"`
	} `json:"meta"`
}
