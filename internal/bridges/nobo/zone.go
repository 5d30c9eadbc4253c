package nobo

import "strconv"

// zoneFields is the token count of a zone line, prefix included.
const zoneFields = 8

// zonePrefixes are the line types carrying a zone record.
var zonePrefixes = []string{PrefixZone, PrefixZoneAdded, PrefixZoneUpdated, PrefixZoneRemoved}

// Zone is a logical heating zone driven by a week profile.
//
// Zone is an immutable value; the With* methods return modified copies
// used to build update commands.
type Zone struct {
	id                 int
	name               string
	weekProfileID      int
	comfortTemperature int
	ecoTemperature     int
	allowOverrides     bool
	activeOverrideID   int
}

// ParseZone decodes a zone line:
//
//	H01 <id> <name> <weekProfileId> <comfortTemp> <ecoTemp> <allowOverrides> <activeOverrideId>
//
// Returns:
//   - Zone: decoded zone
//   - error: *DataError if the arity, prefix or any field is wrong
func ParseZone(line string) (Zone, error) {
	r, err := splitRecord(line, zoneFields)
	if err != nil {
		return Zone{}, err
	}
	if err := r.hasPrefix(zonePrefixes...); err != nil {
		return Zone{}, err
	}

	z := Zone{name: r.name(2)}
	if z.id, err = r.int(1); err != nil {
		return Zone{}, err
	}
	if z.weekProfileID, err = r.int(3); err != nil {
		return Zone{}, err
	}
	if z.comfortTemperature, err = r.int(4); err != nil {
		return Zone{}, err
	}
	if z.ecoTemperature, err = r.int(5); err != nil {
		return Zone{}, err
	}
	if z.allowOverrides, err = r.flag(6); err != nil {
		return Zone{}, err
	}
	if z.activeOverrideID, err = r.int(7); err != nil {
		return Zone{}, err
	}
	return z, nil
}

// ID returns the zone id.
func (z Zone) ID() int { return z.id }

// Name returns the zone name with ordinary spaces.
func (z Zone) Name() string { return z.name }

// WeekProfileID returns the id of the active week profile.
func (z Zone) WeekProfileID() int { return z.weekProfileID }

// ComfortTemperature returns the comfort set point in °C.
func (z Zone) ComfortTemperature() int { return z.comfortTemperature }

// EcoTemperature returns the eco set point in °C.
func (z Zone) EcoTemperature() int { return z.ecoTemperature }

// AllowOverrides reports whether manual overrides are allowed.
func (z Zone) AllowOverrides() bool { return z.allowOverrides }

// ActiveOverrideID returns the id of the zone's override, or -1.
func (z Zone) ActiveOverrideID() int { return z.activeOverrideID }

// WithWeekProfileID returns a copy of z using week profile id.
func (z Zone) WithWeekProfileID(id int) Zone {
	z.weekProfileID = id
	return z
}

// WithComfortTemperature returns a copy of z with a new comfort set point.
func (z Zone) WithComfortTemperature(celsius int) Zone {
	z.comfortTemperature = celsius
	return z
}

// WithEcoTemperature returns a copy of z with a new eco set point.
func (z Zone) WithEcoTemperature(celsius int) Zone {
	z.ecoTemperature = celsius
	return z
}

// CommandString encodes z as a line with the given prefix.
func (z Zone) CommandString(prefix string) string {
	return joinFields(prefix,
		strconv.Itoa(z.id),
		ToHubString(z.name),
		strconv.Itoa(z.weekProfileID),
		strconv.Itoa(z.comfortTemperature),
		strconv.Itoa(z.ecoTemperature),
		formatFlag(z.allowOverrides),
		strconv.Itoa(z.activeOverrideID),
	)
}
