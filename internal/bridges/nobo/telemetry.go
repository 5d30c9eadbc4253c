package nobo

import (
	"strconv"
	"time"
)

// Measurement names written by InfluxTelemetry.
const (
	MeasurementTemperature = "nobo_temperature"
	MeasurementZone        = "nobo_zone"
)

// PointWriter is the time-series sink. *influxdb.Client implements it.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time)
}

// InfluxTelemetry implements TelemetryWriter on a PointWriter.
type InfluxTelemetry struct {
	writer PointWriter
	hub    string
}

// Ensure InfluxTelemetry implements TelemetryWriter.
var _ TelemetryWriter = (*InfluxTelemetry)(nil)

// NewInfluxTelemetry creates a telemetry writer. hubSerial is added as
// the "hub" tag on every point.
func NewInfluxTelemetry(writer PointWriter, hubSerial string) *InfluxTelemetry {
	return &InfluxTelemetry{writer: writer, hub: hubSerial}
}

// WriteTemperature records the last reported temperature of a component.
// Components without a reading are skipped.
func (t *InfluxTelemetry) WriteTemperature(c Component, at time.Time) {
	if !c.HasTemperature() {
		return
	}
	t.writer.WritePointWithTime(MeasurementTemperature,
		map[string]string{
			"hub":    t.hub,
			"serial": c.SerialNumber().String(),
			"name":   c.Name(),
			"zone":   strconv.Itoa(c.ZoneID()),
		},
		map[string]interface{}{
			"celsius": c.Temperature(),
		},
		at)
}

// WriteZoneStatus records a zone's set points and effective status.
func (t *InfluxTelemetry) WriteZoneStatus(z Zone, status ZoneStatus, at time.Time) {
	t.writer.WritePointWithTime(MeasurementZone,
		map[string]string{
			"hub":  t.hub,
			"zone": strconv.Itoa(z.ID()),
			"name": z.Name(),
		},
		map[string]interface{}{
			"status":      status.Status.String(),
			"status_code": int(status.Status),
			"source":      string(status.Source),
			"override_id": status.OverrideID,
			"comfort":     z.ComfortTemperature(),
			"eco":         z.EcoTemperature(),
			"target":      targetTemperature(z, status.Status),
		},
		at)
}

// awayTemperature is the fixed frost protection set point of AWAY.
const awayTemperature = 7

// targetTemperature is the set point the zone heats to in a given status.
// OFF reports 0.
func targetTemperature(z Zone, s WeekProfileStatus) int {
	switch s {
	case WeekProfileStatusComfort:
		return z.ComfortTemperature()
	case WeekProfileStatusEco:
		return z.EcoTemperature()
	case WeekProfileStatusAway:
		return awayTemperature
	default:
		return 0
	}
}
