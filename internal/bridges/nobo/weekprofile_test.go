package nobo

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// defaultProfile is the hub's factory profile: comfort 06-08 and 15-23 on
// weekdays, comfort from 07 at weekends.
const defaultProfile = "00000,06001,08000,15001,23000," +
	"00000,06001,08000,15001,23000," +
	"00000,06001,08000,15001,23000," +
	"00000,06001,08000,15001,23000," +
	"00000,06001,08000,15001,23000," +
	"00000,07001," +
	"00000,07001"

// 2024-01-01 is a Monday.
func at(weekday, hour, minute int) time.Time {
	return time.Date(2024, 1, 1+weekday, hour, minute, 0, 0, time.Local)
}

func TestParseWeekProfilePartitionsDays(t *testing.T) {
	w, err := ParseWeekProfile("H03 1 Default " + defaultProfile)
	if err != nil {
		t.Fatalf("ParseWeekProfile() error: %v", err)
	}

	if w.ID() != 1 || w.Name() != "Default" {
		t.Errorf("ID/Name = %d/%q, want 1/Default", w.ID(), w.Name())
	}
	if n := len(strings.Split(defaultProfile, ",")); n != 29 {
		t.Fatalf("fixture has %d points, want 29", n)
	}

	wantLens := []int{5, 5, 5, 5, 5, 2, 2}
	for day, want := range wantLens {
		if got := len(w.Day(day)); got != want {
			t.Errorf("len(Day(%d)) = %d, want %d", day, got, want)
		}
	}

	if got := w.Day(5)[1]; got.Minute != 7*60 || got.Digit != '1' {
		t.Errorf("Saturday second point = %+v, want 07:00 digit 1", got)
	}
}

func TestWeekProfileStatusAtDefault(t *testing.T) {
	w, err := ParseWeekProfile("H03 1 Default " + defaultProfile)
	if err != nil {
		t.Fatalf("ParseWeekProfile() error: %v", err)
	}

	tests := []struct {
		name string
		at   time.Time
		want WeekProfileStatus
	}{
		{name: "monday midnight", at: at(0, 0, 0), want: WeekProfileStatusEco},
		{name: "monday one minute before comfort", at: at(0, 5, 59), want: WeekProfileStatusEco},
		{name: "monday exactly at comfort", at: at(0, 6, 0), want: WeekProfileStatusComfort},
		{name: "monday one minute after comfort", at: at(0, 6, 1), want: WeekProfileStatusComfort},
		{name: "monday midday", at: at(0, 12, 0), want: WeekProfileStatusEco},
		{name: "friday evening", at: at(4, 18, 30), want: WeekProfileStatusComfort},
		{name: "friday late", at: at(4, 23, 59), want: WeekProfileStatusEco},
		{name: "saturday early", at: at(5, 6, 30), want: WeekProfileStatusEco},
		{name: "saturday morning", at: at(5, 7, 0), want: WeekProfileStatusComfort},
		{name: "sunday night", at: at(6, 23, 59), want: WeekProfileStatusComfort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.StatusAt(tt.at); got != tt.want {
				t.Errorf("StatusAt(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestWeekProfileStatusAtOneEntryPerDay(t *testing.T) {
	w, err := ParseWeekProfile("H03 2 Off 00004,00003,00004,00004,00004,00004,00003")
	if err != nil {
		t.Fatalf("ParseWeekProfile() error: %v", err)
	}

	for _, day := range []int{2, 6} {
		for _, hm := range [][2]int{{0, 0}, {8, 15}, {23, 59}} {
			if got := w.StatusAt(at(day, hm[0], hm[1])); got != WeekProfileStatusOff {
				t.Errorf("day %d %02d:%02d StatusAt() = %v, want OFF", day, hm[0], hm[1], got)
			}
		}
	}
}

// The raw digit table (0 eco, 1 comfort, 2 away, 3 and 4 off) is fixed for
// every profile. A lone comfort point keeps the whole day in comfort.
func TestWeekProfileStatusDigitTable(t *testing.T) {
	tests := []struct {
		digit byte
		want  WeekProfileStatus
	}{
		{digit: '0', want: WeekProfileStatusEco},
		{digit: '1', want: WeekProfileStatusComfort},
		{digit: '2', want: WeekProfileStatusAway},
		{digit: '3', want: WeekProfileStatusOff},
		{digit: '4', want: WeekProfileStatusOff},
	}

	for _, tt := range tests {
		point := "0000" + string(tt.digit)
		line := "H03 5 Const " + strings.Repeat(point+",", 6) + point
		w, err := ParseWeekProfile(line)
		if err != nil {
			t.Fatalf("ParseWeekProfile(%q) error: %v", line, err)
		}
		if got := w.StatusAt(at(3, 13, 37)); got != tt.want {
			t.Errorf("digit %c: StatusAt() = %v, want %v", tt.digit, got, tt.want)
		}
	}
}

func TestWeekProfileStatusAtIsIdempotent(t *testing.T) {
	w, err := ParseWeekProfile("H03 1 Default " + defaultProfile)
	if err != nil {
		t.Fatalf("ParseWeekProfile() error: %v", err)
	}
	before := w.CommandString(PrefixWeekProfile)

	q := at(2, 15, 0)
	first, second := w.StatusAt(q), w.StatusAt(q)
	if first != second {
		t.Errorf("StatusAt() not idempotent: %v then %v", first, second)
	}
	if after := w.CommandString(PrefixWeekProfile); after != before {
		t.Errorf("profile changed during evaluation: %q -> %q", before, after)
	}
}

func TestWeekProfileStatusAtFallsBackToPreviousDay(t *testing.T) {
	var w WeekProfile
	w.days[6] = []Transition{{Minute: 0, Digit: '0'}, {Minute: 22 * 60, Digit: '2'}}
	w.days[0] = []Transition{{Minute: 6 * 60, Digit: '1'}}
	for d := 1; d < 6; d++ {
		w.days[d] = []Transition{{Minute: 0, Digit: '1'}}
	}

	if got := w.StatusAt(at(0, 5, 0)); got != WeekProfileStatusAway {
		t.Errorf("Monday 05:00 StatusAt() = %v, want AWAY from Sunday", got)
	}
	if got := w.StatusAt(at(0, 6, 0)); got != WeekProfileStatusComfort {
		t.Errorf("Monday 06:00 StatusAt() = %v, want COMFORT", got)
	}
}

func TestWeekProfileRoundTrip(t *testing.T) {
	tests := []string{
		"H03 1 Default " + defaultProfile,
		"H03 2 Off 00004,00003,00004,00004,00004,00004,00003",
		"H03 7 Hytte\u00a0vinter 00002,00002,00002,00002,00000,16001,00001,00001,22000",
	}

	for _, line := range tests {
		w, err := ParseWeekProfile(line)
		if err != nil {
			t.Fatalf("ParseWeekProfile(%q) error: %v", line, err)
		}
		want := PrefixUpdateWeekProfile + strings.TrimPrefix(line, PrefixWeekProfile)
		if got := w.CommandString(PrefixUpdateWeekProfile); got != want {
			t.Errorf("CommandString() = %q, want %q", got, want)
		}
	}
}

func TestParseWeekProfileErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "six days", line: "H03 2 Off 00004,00004,00004,00004,00004,00004"},
		{name: "eight days", line: "H03 2 Off 00004,00004,00004,00004,00004,00004,00004,00004"},
		{name: "does not start at midnight", line: "H03 2 Off 06004,00004,00004,00004,00004,00004,00004"},
		{name: "four digit point", line: "H03 2 Off 0000,00004,00004,00004,00004,00004,00004"},
		{name: "letters in point", line: "H03 2 Off 0a004,00004,00004,00004,00004,00004,00004"},
		{name: "hour 24", line: "H03 2 Off 00004,24004,00004,00004,00004,00004,00004,00004"},
		{name: "minute 60", line: "H03 2 Off 00004,10604,00004,00004,00004,00004,00004"},
		{name: "unknown status", line: "H03 2 Off 00009,00004,00004,00004,00004,00004,00004"},
		{
			name: "nine points in a day",
			line: "H03 2 Busy 00000,01001,02000,03001,04000,05001,06000,07001,08000," +
				"00004,00004,00004,00004,00004,00004",
		},
		{name: "spaces in profile", line: "H03 2 Off 00004, 00004"},
		{name: "empty profile", line: "H03 2 Off "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseWeekProfile(tt.line); !errors.Is(err, ErrInvalidData) {
				t.Errorf("ParseWeekProfile(%q) error = %v, want ErrInvalidData", tt.line, err)
			}
		})
	}
}
