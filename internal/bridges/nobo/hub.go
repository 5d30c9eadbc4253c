package nobo

import "strconv"

// hubFields is the token count of a hub info line, prefix included.
const hubFields = 8

// hubPrefixes are the line types carrying a hub record.
var hubPrefixes = []string{PrefixHubInfo, PrefixHubUpdated}

// Hub describes the Ecohub itself.
type Hub struct {
	serial                     SerialNumber
	name                       string
	defaultAwayOverrideMinutes int
	activeOverrideID           int
	softwareVersion            string
	hardwareVersion            string
	productionDate             string
}

// ParseHub decodes a hub info line:
//
//	H05 <serial> <name> <defaultAwayOverrideMinutes> <activeOverrideId> <sw> <hw> <productionDate>
//
// Returns:
//   - Hub: decoded hub
//   - error: *DataError if the arity, prefix or any field is wrong
func ParseHub(line string) (Hub, error) {
	r, err := splitRecord(line, hubFields)
	if err != nil {
		return Hub{}, err
	}
	if err := r.hasPrefix(hubPrefixes...); err != nil {
		return Hub{}, err
	}

	h := Hub{
		name:            r.name(2),
		softwareVersion: r.str(5),
		hardwareVersion: r.str(6),
		productionDate:  r.str(7),
	}
	if h.serial, err = r.serial(1); err != nil {
		return Hub{}, err
	}
	if h.defaultAwayOverrideMinutes, err = r.int(3); err != nil {
		return Hub{}, err
	}
	if h.activeOverrideID, err = r.int(4); err != nil {
		return Hub{}, err
	}
	return h, nil
}

// SerialNumber returns the hub serial.
func (h Hub) SerialNumber() SerialNumber { return h.serial }

// Name returns the hub name with ordinary spaces.
func (h Hub) Name() string { return h.name }

// DefaultAwayOverrideMinutes returns the default length of an away override.
func (h Hub) DefaultAwayOverrideMinutes() int { return h.defaultAwayOverrideMinutes }

// ActiveOverrideID returns the id of the hub-wide override in effect.
func (h Hub) ActiveOverrideID() int { return h.activeOverrideID }

// SoftwareVersion returns the firmware version string.
func (h Hub) SoftwareVersion() string { return h.softwareVersion }

// HardwareVersion returns the hardware revision string.
func (h Hub) HardwareVersion() string { return h.hardwareVersion }

// ProductionDate returns the raw production date token.
func (h Hub) ProductionDate() string { return h.productionDate }

// WithActiveOverrideID returns a copy of h pointing at override id.
func (h Hub) WithActiveOverrideID(id int) Hub {
	h.activeOverrideID = id
	return h
}

// CommandString encodes h as a line with the given prefix.
func (h Hub) CommandString(prefix string) string {
	return joinFields(prefix,
		h.serial.String(),
		ToHubString(h.name),
		strconv.Itoa(h.defaultAwayOverrideMinutes),
		strconv.Itoa(h.activeOverrideID),
		h.softwareVersion,
		h.hardwareVersion,
		h.productionDate,
	)
}
