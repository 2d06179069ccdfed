//go:build darwin

package probe

import (
	"context"
	"os/exec"
	"strings"
)

// WifiProber reads the current SSID via networksetup.
type WifiProber struct {
	// Interface is the Wi-Fi interface to query (default "en0").
	Interface string
}

func NewWifi(iface string) *WifiProber {
	if strings.TrimSpace(iface) == "" {
		iface = "en0"
	}
	return &WifiProber{Interface: iface}
}

func (p *WifiProber) CurrentNetworkID(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "networksetup", "-getairportnetwork", p.Interface).CombinedOutput()
	if err != nil {
		// networksetup exits non-zero when the interface is missing or
		// Wi-Fi is off; an unknown identity is the honest answer.
		return "", nil
	}
	return parseAirportNetwork(string(out)), nil
}

// BatteryProber reads the power state via pmset.
type BatteryProber struct{}

func NewPower() *BatteryProber { return &BatteryProber{} }

func (p *BatteryProber) CurrentPower(ctx context.Context) (PowerStatus, error) {
	out, err := exec.CommandContext(ctx, "pmset", "-g", "batt").CombinedOutput()
	if err != nil {
		return PowerStatus{Source: PowerUnknown, BatteryPercent: -1}, nil
	}
	return parsePmset(string(out)), nil
}
