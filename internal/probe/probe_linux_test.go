//go:build linux

package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeSupply(t *testing.T, root, name string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for f, v := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(v+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBatteryProberSysfs(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "AC", map[string]string{"type": "Mains", "online": "1"})
	writeSupply(t, root, "BAT0", map[string]string{"type": "Battery", "capacity": "73"})

	p := &BatteryProber{Root: root}
	st, err := p.CurrentPower(context.Background())
	if err != nil {
		t.Fatalf("CurrentPower: %v", err)
	}
	if st.Source != PowerAC {
		t.Fatalf("source = %q, want ac", st.Source)
	}
	if st.BatteryPercent != 73 {
		t.Fatalf("percent = %d, want 73", st.BatteryPercent)
	}
}

func TestBatteryProberOnBattery(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "AC", map[string]string{"type": "Mains", "online": "0"})
	writeSupply(t, root, "BAT0", map[string]string{"type": "Battery", "capacity": "20"})

	p := &BatteryProber{Root: root}
	st, _ := p.CurrentPower(context.Background())
	if st.Source != PowerBattery {
		t.Fatalf("source = %q, want battery", st.Source)
	}
}

func TestBatteryProberMissingSysfs(t *testing.T) {
	p := &BatteryProber{Root: filepath.Join(t.TempDir(), "nope")}
	st, err := p.CurrentPower(context.Background())
	if err != nil {
		t.Fatalf("CurrentPower: %v", err)
	}
	if st.Source != PowerUnknown {
		t.Fatalf("source = %q, want unknown", st.Source)
	}
}
