// Package probe identifies the host environment that gates maintenance:
// which network the machine is on and where its power comes from.
//
// The exec-backed probers are platform-specific (see the darwin/linux
// files); the parsing helpers here are pure so they can be tested anywhere.
package probe

import (
	"context"
	"strconv"
	"strings"
)

// PowerSource classifies where the machine currently draws power from.
type PowerSource string

const (
	PowerAC      PowerSource = "ac"
	PowerBattery PowerSource = "battery"
	PowerUnknown PowerSource = "unknown"
)

// PowerStatus is one sample of the power supply state.
// BatteryPercent is -1 when the charge level could not be determined.
type PowerStatus struct {
	Source         PowerSource
	BatteryPercent int
}

// NetworkProber reports the current network identity (Wi-Fi SSID).
// An empty string means the identity could not be determined.
type NetworkProber interface {
	CurrentNetworkID(ctx context.Context) (string, error)
}

// PowerProber reports the current power supply state.
type PowerProber interface {
	CurrentPower(ctx context.Context) (PowerStatus, error)
}

// parseAirportNetwork extracts the SSID from
// `networksetup -getairportnetwork <if>` output, e.g.
//
//	Current Wi-Fi Network: CastleGhost
//
// Returns "" when the interface is off or not associated.
func parseAirportNetwork(out string) string {
	line := strings.TrimSpace(out)
	const prefix = "Current Wi-Fi Network:"
	if !strings.HasPrefix(line, prefix) {
		// "You are not associated with an AirPort network." and
		// power-off messages land here.
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix))
}

// parsePmset extracts the power source and battery percentage from
// `pmset -g batt` output, e.g.
//
//	Now drawing from 'AC Power'
//	 -InternalBattery-0 (id=1234)	85%; charging; 1:02 remaining present: true
func parsePmset(out string) PowerStatus {
	st := PowerStatus{Source: PowerUnknown, BatteryPercent: -1}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Now drawing from") {
			switch {
			case strings.Contains(line, "'AC Power'"):
				st.Source = PowerAC
			case strings.Contains(line, "'Battery Power'"):
				st.Source = PowerBattery
			}
			continue
		}
		if i := strings.Index(line, "%;"); i > 0 {
			j := strings.LastIndexAny(line[:i], " \t")
			if j >= 0 {
				if n, err := strconv.Atoi(strings.TrimSpace(line[j+1 : i])); err == nil && n >= 0 && n <= 100 {
					st.BatteryPercent = n
				}
			}
		}
	}
	return st
}
