package nobo

import (
	"math"
	"strconv"
)

// temperatureFields is the token count of a Y02 line.
const temperatureFields = 3

// notAvailable is sent instead of a value when a sensor has no reading.
const notAvailable = "N/A"

// TemperatureReading is a Y02 report for one component.
type TemperatureReading struct {
	Serial SerialNumber
	// Celsius is NaN when the hub reported N/A.
	Celsius float64
}

// ParseTemperature decodes "Y02 <serial> <value|N/A>".
func ParseTemperature(line string) (TemperatureReading, error) {
	r, err := splitRecord(line, temperatureFields)
	if err != nil {
		return TemperatureReading{}, err
	}
	if err := r.hasPrefix(PrefixTemperature); err != nil {
		return TemperatureReading{}, err
	}

	serial, err := r.serial(1)
	if err != nil {
		return TemperatureReading{}, err
	}
	if r.str(2) == notAvailable {
		return TemperatureReading{Serial: serial, Celsius: math.NaN()}, nil
	}
	if !isDecimal(r.str(2)) {
		return TemperatureReading{}, dataError(r.line, r.str(2), "temperature is not a decimal")
	}
	v, err := strconv.ParseFloat(r.str(2), 64)
	if err != nil {
		return TemperatureReading{}, dataError(r.line, r.str(2), "temperature is not a decimal")
	}
	return TemperatureReading{Serial: serial, Celsius: v}, nil
}
