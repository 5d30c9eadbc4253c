package nobo

import (
	"math"
	"strconv"
)

// componentFields is the token count of a component line, prefix included.
const componentFields = 8

// componentPrefixes are the line types carrying a component record.
var componentPrefixes = []string{PrefixComponent, PrefixComponentAdded, PrefixComponentUpdated, PrefixComponentRemoved}

// Component is a physical heater, thermostat or switch paired with the hub.
//
// The temperature is not part of the component record. It arrives in
// separate Y02 lines and is attached with WithTemperature; NaN means no
// reading.
type Component struct {
	serial              SerialNumber
	status              int
	name                string
	reverse             bool
	zoneID              int
	activeOverrideID    int
	temperatureSensorID int
	temperature         float64
}

// ParseComponent decodes a component line:
//
//	H02 <serial> <status> <name> <reverse> <zoneId> <activeOverrideId> <tempSensorForZoneId>
//
// Returns:
//   - Component: decoded component with an unknown (NaN) temperature
//   - error: *DataError if the arity, prefix or any field is wrong
func ParseComponent(line string) (Component, error) {
	r, err := splitRecord(line, componentFields)
	if err != nil {
		return Component{}, err
	}
	if err := r.hasPrefix(componentPrefixes...); err != nil {
		return Component{}, err
	}

	c := Component{name: r.name(3), temperature: math.NaN()}
	if c.serial, err = r.serial(1); err != nil {
		return Component{}, err
	}
	if c.status, err = r.int(2); err != nil {
		return Component{}, err
	}
	if c.reverse, err = r.flag(4); err != nil {
		return Component{}, err
	}
	if c.zoneID, err = r.int(5); err != nil {
		return Component{}, err
	}
	if c.activeOverrideID, err = r.int(6); err != nil {
		return Component{}, err
	}
	if c.temperatureSensorID, err = r.int(7); err != nil {
		return Component{}, err
	}
	return c, nil
}

// SerialNumber returns the component serial; it is the component identity.
func (c Component) SerialNumber() SerialNumber { return c.serial }

// Name returns the component name with ordinary spaces.
func (c Component) Name() string { return c.name }

// Reverse reports whether the on/off signal is reversed.
func (c Component) Reverse() bool { return c.reverse }

// ZoneID returns the zone the component belongs to, or -1.
func (c Component) ZoneID() int { return c.zoneID }

// TemperatureSensorForZoneID returns the zone this component measures
// temperature for, or -1 when it is not a zone sensor.
func (c Component) TemperatureSensorForZoneID() int { return c.temperatureSensorID }

// ActiveOverrideID returns the component's own override, or -1.
func (c Component) ActiveOverrideID() int { return c.activeOverrideID }

// Temperature returns the last reported temperature in °C, NaN if unknown.
func (c Component) Temperature() float64 { return c.temperature }

// HasTemperature reports whether a reading has been attached.
func (c Component) HasTemperature() bool { return !math.IsNaN(c.temperature) }

// WithTemperature returns a copy of c carrying a new reading.
func (c Component) WithTemperature(celsius float64) Component {
	c.temperature = celsius
	return c
}

// CommandString encodes c as a line with the given prefix.
func (c Component) CommandString(prefix string) string {
	return joinFields(prefix,
		c.serial.String(),
		strconv.Itoa(c.status),
		ToHubString(c.name),
		formatFlag(c.reverse),
		strconv.Itoa(c.zoneID),
		strconv.Itoa(c.activeOverrideID),
		strconv.Itoa(c.temperatureSensorID),
	)
}
