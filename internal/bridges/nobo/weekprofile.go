package nobo

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Week profile layout constants.
const (
	// weekProfileFields is the token count of a week profile line.
	weekProfileFields = 4

	// daysPerWeek is the number of day lists in a profile.
	daysPerWeek = 7

	// maxTransitionsPerDay is the most points the hub stores for one day.
	maxTransitionsPerDay = 8

	// transitionLength is the HHMMs token length.
	transitionLength = 5

	// transitionSeparator separates points in the profile token.
	transitionSeparator = ","
)

// weekProfilePrefixes are the line types carrying a week profile record.
var weekProfilePrefixes = []string{PrefixWeekProfile, PrefixWeekProfileAdded, PrefixWeekProfileUpdated, PrefixWeekProfileRemoved}

// WeekProfileStatus is the heating state a week profile schedules.
type WeekProfileStatus int

// Week profile states.
const (
	WeekProfileStatusEco WeekProfileStatus = iota
	WeekProfileStatusComfort
	WeekProfileStatusAway
	WeekProfileStatusOff
)

var weekProfileStatusNames = [...]string{"ECO", "COMFORT", "AWAY", "OFF"}

func (s WeekProfileStatus) String() string {
	if s < 0 || int(s) >= len(weekProfileStatusNames) {
		return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
	}
	return weekProfileStatusNames[s]
}

// statusByDigit maps the raw transition digit to a status. Digits 3 and 4
// both switch the heater off; the hub writes 4, older profiles carry 3.
var statusByDigit = map[byte]WeekProfileStatus{
	'0': WeekProfileStatusEco,
	'1': WeekProfileStatusComfort,
	'2': WeekProfileStatusAway,
	'3': WeekProfileStatusOff,
	'4': WeekProfileStatusOff,
}

// Transition is one point of a day schedule: from Minute (minutes after
// midnight) the status given by the raw digit applies.
type Transition struct {
	Minute int
	Digit  byte
}

// Status returns the status the transition switches to.
func (t Transition) Status() WeekProfileStatus {
	return statusByDigit[t.Digit]
}

// String encodes the transition as HHMMs.
func (t Transition) String() string {
	return fmt.Sprintf("%02d%02d%c", t.Minute/60, t.Minute%60, t.Digit)
}

// WeekProfile is a named 7 day schedule.
//
// Days are indexed Monday (0) to Sunday (6). The per-day lists are built
// once at parse time and never change afterwards.
type WeekProfile struct {
	id   int
	name string
	days [daysPerWeek][]Transition
}

// ParseWeekProfile decodes a week profile line:
//
//	H03 <id> <name> <HHMMs,HHMMs,...>
//
// A point at 00:00 that follows any point of the current day starts the
// next day.
//
// Returns:
//   - WeekProfile: decoded profile
//   - error: *DataError on a bad arity, bad point, a day with more than 8
//     points, or a day count other than 7
func ParseWeekProfile(line string) (WeekProfile, error) {
	r, err := splitRecord(line, weekProfileFields)
	if err != nil {
		return WeekProfile{}, err
	}
	if err := r.hasPrefix(weekProfilePrefixes...); err != nil {
		return WeekProfile{}, err
	}

	w := WeekProfile{name: r.name(2)}
	if w.id, err = r.int(1); err != nil {
		return WeekProfile{}, err
	}
	if w.days, err = partitionDays(r.line, r.str(3)); err != nil {
		return WeekProfile{}, err
	}
	return w, nil
}

// partitionDays splits the flat profile token into seven day lists.
func partitionDays(line, profile string) ([daysPerWeek][]Transition, error) {
	var days [daysPerWeek][]Transition
	day := -1

	for _, token := range strings.Split(profile, transitionSeparator) {
		t, err := parseTransition(line, token)
		if err != nil {
			return days, err
		}
		if t.Minute == 0 {
			day++
			if day >= daysPerWeek {
				return days, dataError(line, token, "more than %d days in profile", daysPerWeek)
			}
		} else if day < 0 {
			return days, dataError(line, token, "profile must start at 0000")
		}
		if len(days[day]) == maxTransitionsPerDay {
			return days, dataError(line, token, "more than %d points on day %d", maxTransitionsPerDay, day+1)
		}
		days[day] = append(days[day], t)
	}

	if day != daysPerWeek-1 {
		return days, dataError(line, profile, "expected %d days, got %d", daysPerWeek, day+1)
	}
	return days, nil
}

func parseTransition(line, token string) (Transition, error) {
	if len(token) != transitionLength || !isDigits(token) {
		return Transition{}, dataError(line, token, "transition must be %d digits", transitionLength)
	}
	hour, _ := strconv.Atoi(token[0:2])   //nolint:errcheck // digits checked above
	minute, _ := strconv.Atoi(token[2:4]) //nolint:errcheck // digits checked above
	if hour > 23 || minute > 59 {
		return Transition{}, dataError(line, token, "invalid time of day")
	}
	if _, ok := statusByDigit[token[4]]; !ok {
		return Transition{}, dataError(line, token, "unknown status digit")
	}
	return Transition{Minute: hour*60 + minute, Digit: token[4]}, nil
}

// ID returns the week profile id.
func (w WeekProfile) ID() int { return w.id }

// Name returns the profile name with ordinary spaces.
func (w WeekProfile) Name() string { return w.name }

// Day returns a copy of the transitions for weekday (Monday = 0).
func (w WeekProfile) Day(weekday int) []Transition {
	return append([]Transition(nil), w.days[weekday]...)
}

// StatusAt returns the status scheduled at t (local wall clock).
//
// The last point of t's weekday at or before t wins. Before the day's
// first point the previous day's last point still applies, wrapping from
// Monday back to Sunday.
func (w WeekProfile) StatusAt(t time.Time) WeekProfileStatus {
	day := mondayIndex(t.Weekday())
	minute := t.Hour()*60 + t.Minute()

	points := w.days[day]
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Minute <= minute {
			return points[i].Status()
		}
	}

	for back := 1; back <= daysPerWeek; back++ {
		prev := w.days[(day-back+daysPerWeek)%daysPerWeek]
		if len(prev) > 0 {
			return prev[len(prev)-1].Status()
		}
	}
	return WeekProfileStatusEco
}

// CommandString encodes w as a line with the given prefix.
func (w WeekProfile) CommandString(prefix string) string {
	var points []string
	for _, day := range w.days {
		for _, t := range day {
			points = append(points, t.String())
		}
	}
	return joinFields(prefix,
		strconv.Itoa(w.id),
		ToHubString(w.name),
		strings.Join(points, transitionSeparator),
	)
}

// mondayIndex maps time.Weekday (Sunday = 0) to Monday = 0.
func mondayIndex(d time.Weekday) int {
	return (int(d) + daysPerWeek - 1) % daysPerWeek
}
