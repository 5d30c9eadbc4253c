package nobo

import (
	"errors"
	"math"
	"testing"
)

func TestParseComponent(t *testing.T) {
	c, err := ParseComponent("H02 186170024143 0 Kontor 0 1 -1 -1")
	if err != nil {
		t.Fatalf("ParseComponent() error: %v", err)
	}

	if c.SerialNumber() != "186170024143" {
		t.Errorf("SerialNumber() = %q, want %q", c.SerialNumber(), "186170024143")
	}
	if c.Name() != "Kontor" {
		t.Errorf("Name() = %q, want %q", c.Name(), "Kontor")
	}
	if c.ZoneID() != 1 {
		t.Errorf("ZoneID() = %d, want 1", c.ZoneID())
	}
	if c.TemperatureSensorForZoneID() != -1 {
		t.Errorf("TemperatureSensorForZoneID() = %d, want -1", c.TemperatureSensorForZoneID())
	}
	if c.Reverse() {
		t.Error("Reverse() = true, want false")
	}
	if c.HasTemperature() {
		t.Errorf("HasTemperature() = true for a freshly parsed component (%v)", c.Temperature())
	}

	want := "U02 186170024143 0 Kontor 0 1 -1 -1"
	if got := c.CommandString("U02"); got != want {
		t.Errorf("CommandString() = %q, want %q", got, want)
	}
}

func TestComponentWithTemperature(t *testing.T) {
	c, err := ParseComponent("H02 186170024143 0 Kontor 0 1 -1 -1")
	if err != nil {
		t.Fatalf("ParseComponent() error: %v", err)
	}

	warm := c.WithTemperature(21.5)
	if warm.Temperature() != 21.5 {
		t.Errorf("Temperature() = %v, want 21.5", warm.Temperature())
	}
	if !math.IsNaN(c.Temperature()) {
		t.Errorf("original Temperature() = %v, want NaN", c.Temperature())
	}
	if warm.CommandString(PrefixComponent) != c.CommandString(PrefixComponent) {
		t.Error("temperature leaked into the component record")
	}
}

func TestParseComponentErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "short serial", line: "H02 18617002414 0 Kontor 0 1 -1 -1"},
		{name: "serial with letters", line: "H02 18617002414x 0 Kontor 0 1 -1 -1"},
		{name: "missing field", line: "H02 186170024143 0 Kontor 0 1 -1"},
		{name: "bad zone", line: "H02 186170024143 0 Kontor 0 x -1 -1"},
		{name: "bad reverse", line: "H02 186170024143 0 Kontor yes 1 -1 -1"},
		{name: "wrong prefix", line: "H01 186170024143 0 Kontor 0 1 -1 -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseComponent(tt.line); !errors.Is(err, ErrInvalidData) {
				t.Errorf("ParseComponent(%q) error = %v, want ErrInvalidData", tt.line, err)
			}
		})
	}
}
