package nobo

import (
	"errors"
	"testing"
	"time"
)

func TestParseOverridePlan(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		mode     OverrideMode
		typ      OverrideType
		target   OverrideTarget
		targetID int
		start    *time.Time
		end      *time.Time
	}{
		{
			name:     "normal now on hub",
			line:     "H04 4 0 0 -1 -1 0 -1",
			mode:     OverrideModeNormal,
			typ:      OverrideTypeNow,
			target:   OverrideTargetHub,
			targetID: -1,
		},
		{
			name:     "away timer with start",
			line:     "B03 9 3 1 202001221930 -1 0 -1",
			mode:     OverrideModeAway,
			typ:      OverrideTypeTimer,
			target:   OverrideTargetHub,
			targetID: -1,
			start:    ptrTime(time.Date(2020, 1, 22, 19, 30, 0, 0, time.Local)),
		},
		{
			name:     "comfort window on zone",
			line:     "H04 12 1 2 202312240600 202312262200 1 3",
			mode:     OverrideModeComfort,
			typ:      OverrideTypeFromTo,
			target:   OverrideTargetZone,
			targetID: 3,
			start:    ptrTime(time.Date(2023, 12, 24, 6, 0, 0, 0, time.Local)),
			end:      ptrTime(time.Date(2023, 12, 26, 22, 0, 0, 0, time.Local)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := ParseOverridePlan(tt.line)
			if err != nil {
				t.Fatalf("ParseOverridePlan() error: %v", err)
			}
			if o.Mode() != tt.mode {
				t.Errorf("Mode() = %v, want %v", o.Mode(), tt.mode)
			}
			if o.Type() != tt.typ {
				t.Errorf("Type() = %v, want %v", o.Type(), tt.typ)
			}
			if o.Target() != tt.target {
				t.Errorf("Target() = %v, want %v", o.Target(), tt.target)
			}
			if o.TargetID() != tt.targetID {
				t.Errorf("TargetID() = %d, want %d", o.TargetID(), tt.targetID)
			}
			assertTime(t, "StartTime()", o.StartTime(), tt.start)
			assertTime(t, "EndTime()", o.EndTime(), tt.end)
		})
	}
}

func TestOverridePlanPrefixesShareBody(t *testing.T) {
	body := "9 3 1 202001221930 -1 0 -1"
	first, err := ParseOverridePlan("H04 " + body)
	if err != nil {
		t.Fatalf("ParseOverridePlan(H04) error: %v", err)
	}

	for _, prefix := range []string{PrefixOverrideAdded, PrefixOverrideRemoved, PrefixHubUpdated} {
		o, err := ParseOverridePlan(prefix + " " + body)
		if err != nil {
			t.Fatalf("ParseOverridePlan(%s) error: %v", prefix, err)
		}
		if o.CommandString("X") != first.CommandString("X") {
			t.Errorf("%s parsed differently: %q vs %q", prefix, o.CommandString("X"), first.CommandString("X"))
		}
	}

	if got, want := first.CommandString(PrefixAddOverride), "A03 "+body; got != want {
		t.Errorf("CommandString(A03) = %q, want %q", got, want)
	}
}

func TestParseOverridePlanErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "mode out of range", line: "H04 4 7 0 -1 -1 0 -1"},
		{name: "type out of range", line: "H04 4 0 9 -1 -1 0 -1"},
		{name: "target out of range", line: "H04 4 0 0 -1 -1 3 -1"},
		{name: "short date", line: "H04 4 0 0 2020012219 -1 0 -1"},
		{name: "date with letters", line: "H04 4 0 0 -1 20200122x930 0 -1"},
		{name: "missing target id", line: "H04 4 0 0 -1 -1 0"},
		{name: "non numeric id", line: "H04 four 0 0 -1 -1 0 -1"},
		{name: "zone prefix", line: "H01 4 0 0 -1 -1 0 -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseOverridePlan(tt.line); !errors.Is(err, ErrInvalidData) {
				t.Errorf("ParseOverridePlan(%q) error = %v, want ErrInvalidData", tt.line, err)
			}
		})
	}
}

func TestNewHubOverride(t *testing.T) {
	o := NewHubOverride(OverrideModeAway)
	want := "A03 1 3 3 -1 -1 0 -1"
	if got := o.CommandString(PrefixAddOverride); got != want {
		t.Errorf("CommandString() = %q, want %q", got, want)
	}
}

func TestNewOverridePlanTruncatesToMinute(t *testing.T) {
	start := time.Date(2024, 3, 1, 7, 15, 42, 0, time.Local)
	o := NewOverridePlan(OverrideModeComfort, OverrideTypeTimer, OverrideTargetZone, 2, &start, nil)

	want := "A03 1 1 1 202403010715 -1 1 2"
	if got := o.CommandString(PrefixAddOverride); got != want {
		t.Errorf("CommandString() = %q, want %q", got, want)
	}
}

func TestOverridePlanActiveAt(t *testing.T) {
	o, err := ParseOverridePlan("H04 12 1 2 202312240600 202312262200 1 3")
	if err != nil {
		t.Fatalf("ParseOverridePlan() error: %v", err)
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "before start", at: time.Date(2023, 12, 24, 5, 59, 0, 0, time.Local), want: false},
		{name: "at start", at: time.Date(2023, 12, 24, 6, 0, 0, 0, time.Local), want: true},
		{name: "inside", at: time.Date(2023, 12, 25, 12, 0, 0, 0, time.Local), want: true},
		{name: "at end", at: time.Date(2023, 12, 26, 22, 0, 0, 0, time.Local), want: false},
	}

	for _, tt := range tests {
		if got := o.ActiveAt(tt.at); got != tt.want {
			t.Errorf("%s: ActiveAt() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOverrideEnumNames(t *testing.T) {
	for i, name := range []string{"NORMAL", "COMFORT", "ECO", "AWAY"} {
		m, err := ParseOverrideMode(name)
		if err != nil || int(m) != i {
			t.Errorf("ParseOverrideMode(%q) = %v, %v; want %d", name, m, err, i)
		}
		if OverrideMode(i).String() != name {
			t.Errorf("OverrideMode(%d).String() = %q, want %q", i, OverrideMode(i).String(), name)
		}
	}
	if _, err := ParseOverrideMode("party"); !errors.Is(err, ErrInvalidData) {
		t.Errorf("ParseOverrideMode(party) error = %v, want ErrInvalidData", err)
	}
	if got := OverrideType(9).String(); got != "UNKNOWN(9)" {
		t.Errorf("OverrideType(9).String() = %q", got)
	}
	if target, err := ParseOverrideTarget("zone"); err != nil || target != OverrideTargetZone {
		t.Errorf("ParseOverrideTarget(zone) = %v, %v", target, err)
	}
	if _, err := ParseOverrideTarget("room"); !errors.Is(err, ErrInvalidData) {
		t.Errorf("ParseOverrideTarget(room) error = %v, want ErrInvalidData", err)
	}
}

func assertTime(t *testing.T, label string, got, want *time.Time) {
	t.Helper()
	if (got == nil) != (want == nil) {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
	if got != nil && !got.Equal(*want) {
		t.Errorf("%s = %v, want %v", label, *got, *want)
	}
}
