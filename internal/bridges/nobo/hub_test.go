package nobo

import (
	"errors"
	"testing"
)

const hubLine = "H05 102000012345 My\u00a0Eco\u00a0Hub 1440 -1 11123610_rev._1 115 20190805"

func TestParseHub(t *testing.T) {
	h, err := ParseHub(hubLine)
	if err != nil {
		t.Fatalf("ParseHub() error: %v", err)
	}

	if h.SerialNumber() != "102000012345" {
		t.Errorf("SerialNumber() = %q", h.SerialNumber())
	}
	if h.Name() != "My Eco Hub" {
		t.Errorf("Name() = %q, want %q", h.Name(), "My Eco Hub")
	}
	if h.DefaultAwayOverrideMinutes() != 1440 {
		t.Errorf("DefaultAwayOverrideMinutes() = %d, want 1440", h.DefaultAwayOverrideMinutes())
	}
	if h.ActiveOverrideID() != -1 {
		t.Errorf("ActiveOverrideID() = %d, want -1", h.ActiveOverrideID())
	}
	if h.SoftwareVersion() != "11123610_rev._1" || h.HardwareVersion() != "115" || h.ProductionDate() != "20190805" {
		t.Errorf("versions = %q %q %q", h.SoftwareVersion(), h.HardwareVersion(), h.ProductionDate())
	}
}

func TestHubWithActiveOverrideID(t *testing.T) {
	h, err := ParseHub(hubLine)
	if err != nil {
		t.Fatalf("ParseHub() error: %v", err)
	}

	changed := h.WithActiveOverrideID(9)
	if h.ActiveOverrideID() != -1 {
		t.Errorf("original ActiveOverrideID() = %d, want -1", h.ActiveOverrideID())
	}
	want := "U03 102000012345 My\u00a0Eco\u00a0Hub 1440 9 11123610_rev._1 115 20190805"
	if got := changed.CommandString(PrefixUpdateHub); got != want {
		t.Errorf("CommandString() = %q, want %q", got, want)
	}
}

func TestParseHubErrors(t *testing.T) {
	tests := []string{
		"H05 10200001234 Hub 1440 -1 sw hw 20190805",
		"H05 102000012345 Hub x -1 sw hw 20190805",
		"H05 102000012345 Hub 1440 -1 sw hw",
		"H04 102000012345 Hub 1440 -1 sw hw 20190805",
	}

	for _, line := range tests {
		if _, err := ParseHub(line); !errors.Is(err, ErrInvalidData) {
			t.Errorf("ParseHub(%q) error = %v, want ErrInvalidData", line, err)
		}
	}
}
