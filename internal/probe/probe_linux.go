//go:build linux

package probe

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// WifiProber reads the current SSID via iwgetid.
type WifiProber struct {
	// Interface optionally pins the queried interface; empty lets
	// iwgetid pick the first wireless one.
	Interface string
}

func NewWifi(iface string) *WifiProber {
	return &WifiProber{Interface: strings.TrimSpace(iface)}
}

func (p *WifiProber) CurrentNetworkID(ctx context.Context) (string, error) {
	args := []string{"-r"}
	if p.Interface != "" {
		args = append([]string{p.Interface}, args...)
	}
	out, err := exec.CommandContext(ctx, "iwgetid", args...).CombinedOutput()
	if err != nil {
		// Non-zero exit means no wireless association; treat as unknown.
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}

// BatteryProber reads the power state from /sys/class/power_supply.
type BatteryProber struct {
	// Root exists so tests can point at a fake sysfs tree.
	Root string
}

func NewPower() *BatteryProber { return &BatteryProber{Root: "/sys/class/power_supply"} }

func (p *BatteryProber) CurrentPower(ctx context.Context) (PowerStatus, error) {
	st := PowerStatus{Source: PowerUnknown, BatteryPercent: -1}

	entries, err := os.ReadDir(p.Root)
	if err != nil {
		return st, nil
	}
	onAC := false
	sawSupply := false
	for _, e := range entries {
		dir := filepath.Join(p.Root, e.Name())
		typ := strings.TrimSpace(readSmallFile(filepath.Join(dir, "type")))
		switch typ {
		case "Mains", "USB":
			sawSupply = true
			if strings.TrimSpace(readSmallFile(filepath.Join(dir, "online"))) == "1" {
				onAC = true
			}
		case "Battery":
			sawSupply = true
			if s := strings.TrimSpace(readSmallFile(filepath.Join(dir, "capacity"))); s != "" {
				if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 100 {
					st.BatteryPercent = n
				}
			}
		}
	}
	if !sawSupply {
		return st, nil
	}
	if onAC {
		st.Source = PowerAC
	} else {
		st.Source = PowerBattery
	}
	return st, nil
}

func readSmallFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}
