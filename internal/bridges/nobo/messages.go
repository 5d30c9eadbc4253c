package nobo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gosimple/slug"
)

// MQTT message types for communication between the Nobø bridge and its
// consumers (home automation core, dashboards, scripts).

// Protocol is the protocol identifier carried in every message.
const Protocol = "nobo"

// Command names accepted on the command topic.
const (
	CommandSetZone               = "set_zone"
	CommandSetZoneWeekProfile    = "set_zone_week_profile"
	CommandSetComfortTemperature = "set_comfort_temperature"
	CommandSetEcoTemperature     = "set_eco_temperature"
	CommandSetOverride           = "set_override"
	CommandRaw                   = "raw"
)

// Request actions accepted on the request topic.
const (
	ActionReadState = "read_state"
	ActionReadAll   = "read_all"
	ActionRefresh   = "refresh"
)

// CommandMessage asks the bridge to change something on the hub.
// Topic: nobohub/command/nobo/{target}
type CommandMessage struct {
	// ID correlates the command with its acknowledgment. Generated when empty.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Command is one of the Command* names.
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"zone_id": 1, "comfort_temperature": 22, "eco_temperature": 17} for set_zone
	//   {"zone_id": 1, "week_profile_id": 2} for set_zone_week_profile
	//   {"zone_id": 1, "temperature": 22} for set_comfort_temperature
	//   {"mode": "away", "type": "constant", "target": "hub"} for set_override
	//   {"line": "G00"} for raw
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("mqtt", "api").
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command line was written to the hub.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the hub did not accept the line in time.
	AckTimeout AckStatus = "timeout"
)

// AckMessage acknowledges a command.
// Topic: nobohub/ack/nobo/{target}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Target    string    `json:"target"`

	// Line is the hub command line that was sent.
	Line string `json:"line,omitempty"`

	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command and request failures.
const (
	ErrCodeHubUnreachable    = "HUB_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage carries the current value of one hub entity.
// Topic: nobohub/state/nobo/{kind}/{key}
// QoS: 1, Retained: Yes
type StateMessage struct {
	Kind      EntityKind `json:"kind"`
	Key       string     `json:"key"`
	Timestamp time.Time  `json:"timestamp"`
	Protocol  string     `json:"protocol"`
	State     any        `json:"state"`
}

// ZoneView is the JSON form of a zone.
type ZoneView struct {
	ID                 int    `json:"id"`
	Name               string `json:"name"`
	WeekProfileID      int    `json:"week_profile_id"`
	ComfortTemperature int    `json:"comfort_temperature"`
	EcoTemperature     int    `json:"eco_temperature"`
	AllowOverrides     bool   `json:"allow_overrides"`
	ActiveOverrideID   int    `json:"active_override_id"`
}

// NewZoneView converts a zone.
func NewZoneView(z Zone) ZoneView {
	return ZoneView{
		ID:                 z.ID(),
		Name:               z.Name(),
		WeekProfileID:      z.WeekProfileID(),
		ComfortTemperature: z.ComfortTemperature(),
		EcoTemperature:     z.EcoTemperature(),
		AllowOverrides:     z.AllowOverrides(),
		ActiveOverrideID:   z.ActiveOverrideID(),
	}
}

// ComponentView is the JSON form of a component. Temperature is omitted
// until the hub has reported one.
type ComponentView struct {
	Serial                     string   `json:"serial"`
	Model                      string   `json:"model"`
	Name                       string   `json:"name"`
	Reverse                    bool     `json:"reverse"`
	ZoneID                     int      `json:"zone_id"`
	TemperatureSensorForZoneID int      `json:"temperature_sensor_for_zone_id"`
	ActiveOverrideID           int      `json:"active_override_id"`
	Temperature                *float64 `json:"temperature,omitempty"`
}

// NewComponentView converts a component.
func NewComponentView(c Component) ComponentView {
	v := ComponentView{
		Serial:                     c.SerialNumber().String(),
		Model:                      c.SerialNumber().ComponentType(),
		Name:                       c.Name(),
		Reverse:                    c.Reverse(),
		ZoneID:                     c.ZoneID(),
		TemperatureSensorForZoneID: c.TemperatureSensorForZoneID(),
		ActiveOverrideID:           c.ActiveOverrideID(),
	}
	if c.HasTemperature() {
		t := c.Temperature()
		v.Temperature = &t
	}
	return v
}

// TransitionView is one switch point of a week profile day.
type TransitionView struct {
	Time   string `json:"time"`
	Status string `json:"status"`
}

// WeekProfileView is the JSON form of a week profile. Days run Monday
// to Sunday.
type WeekProfileView struct {
	ID   int                `json:"id"`
	Name string             `json:"name"`
	Days [][]TransitionView `json:"days"`
}

// NewWeekProfileView converts a week profile.
func NewWeekProfileView(w WeekProfile) WeekProfileView {
	v := WeekProfileView{ID: w.ID(), Name: w.Name(), Days: make([][]TransitionView, daysPerWeek)}
	for d := range daysPerWeek {
		for _, tr := range w.Day(d) {
			v.Days[d] = append(v.Days[d], TransitionView{
				Time:   fmt.Sprintf("%02d:%02d", tr.Minute/60, tr.Minute%60),
				Status: tr.Status().String(),
			})
		}
	}
	return v
}

// OverrideView is the JSON form of an override plan.
type OverrideView struct {
	ID       int        `json:"id"`
	Mode     string     `json:"mode"`
	Type     string     `json:"type"`
	Target   string     `json:"target"`
	TargetID int        `json:"target_id"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
}

// NewOverrideView converts an override plan.
func NewOverrideView(o OverridePlan) OverrideView {
	return OverrideView{
		ID:       o.ID(),
		Mode:     o.Mode().String(),
		Type:     o.Type().String(),
		Target:   o.Target().String(),
		TargetID: o.TargetID(),
		Start:    o.StartTime(),
		End:      o.EndTime(),
	}
}

// HubView is the JSON form of the hub record.
type HubView struct {
	Serial                     string `json:"serial"`
	Name                       string `json:"name"`
	DefaultAwayOverrideMinutes int    `json:"default_away_override_minutes"`
	ActiveOverrideID           int    `json:"active_override_id"`
	SoftwareVersion            string `json:"software_version"`
	HardwareVersion            string `json:"hardware_version"`
	ProductionDate             string `json:"production_date"`
}

// NewHubView converts the hub record.
func NewHubView(h Hub) HubView {
	return HubView{
		Serial:                     h.SerialNumber().String(),
		Name:                       h.Name(),
		DefaultAwayOverrideMinutes: h.DefaultAwayOverrideMinutes(),
		ActiveOverrideID:           h.ActiveOverrideID(),
		SoftwareVersion:            h.SoftwareVersion(),
		HardwareVersion:            h.HardwareVersion(),
		ProductionDate:             h.ProductionDate(),
	}
}

// ZoneStatusView is the JSON form of a computed zone status.
type ZoneStatusView struct {
	ZoneID     int              `json:"zone_id"`
	Status     string           `json:"status"`
	Source     ZoneStatusSource `json:"source"`
	OverrideID int              `json:"override_id"`
	At         time.Time        `json:"at"`
}

// NewZoneStatusView converts a zone status evaluated at t.
func NewZoneStatusView(s ZoneStatus, t time.Time) ZoneStatusView {
	return ZoneStatusView{
		ZoneID:     s.ZoneID,
		Status:     s.Status.String(),
		Source:     s.Source,
		OverrideID: s.OverrideID,
		At:         t.UTC(),
	}
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthOffline   HealthStatus = "offline"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthMessage reports the bridge's operational status.
// Topic: nobohub/health/nobo
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Connection    *ConnectionStatus `json:"connection,omitempty"`
	Statistics    *BridgeStatistics `json:"statistics,omitempty"`
	Zones         int               `json:"zones"`
	Components    int               `json:"components"`
	Reason        string            `json:"reason,omitempty"`
}

// ConnectionStatus describes the hub connection.
type ConnectionStatus struct {
	// Status is "connected", "reconnecting" or "disconnected".
	Status       string     `json:"status"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	LinesReceived uint64 `json:"lines_received"`
	LinesSent     uint64 `json:"lines_sent"`
	Errors        uint64 `json:"errors"`
	Reconnects    uint64 `json:"reconnects"`
}

// RequestMessage is a request/response operation.
// Topic: nobohub/request/nobo/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is one of the Action* names.
	Action string `json:"action"`

	// Kind and Key select the entity for read_state.
	Kind EntityKind `json:"kind,omitempty"`
	Key  string     `json:"key,omitempty"`
}

// ResponseMessage answers a request.
// Topic: nobohub/response/nobo/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAckMessage creates an acknowledgment for a command.
func NewAckMessage(cmd CommandMessage, target, line string, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Command:   cmd.Command,
		Status:    status,
		Protocol:  Protocol,
		Target:    target,
		Line:      line,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, target, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, target, "", status)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage wraps an entity view.
func NewStateMessage(kind EntityKind, key string, state any) StateMessage {
	return StateMessage{
		Kind:      kind,
		Key:       key,
		Timestamp: time.Now().UTC(),
		Protocol:  Protocol,
		State:     state,
	}
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, stats ClientStats, zones, components int, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Bridge:        bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Zones:         zones,
		Components:    components,
	}

	conn := &ConnectionStatus{Status: "disconnected"}
	switch {
	case stats.Connected:
		conn.Status = "connected"
	case stats.Reconnecting:
		conn.Status = "reconnecting"
	}
	if !stats.LastActivity.IsZero() {
		last := stats.LastActivity.UTC()
		conn.LastActivity = &last
	}
	msg.Connection = conn

	msg.Statistics = &BridgeStatistics{
		LinesReceived: stats.LinesRx,
		LinesSent:     stats.LinesTx,
		Errors:        stats.ErrorsTotal,
		Reconnects:    stats.ReconnectsTotal,
	}
	return msg
}

// NewLWTMessage creates the Last Will and Testament payload published by
// the broker when the bridge disappears.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// Topic helpers

// TopicPrefix is the base topic for all bridge messages.
const TopicPrefix = "nobohub"

// CommandTopic returns the topic for commands to a target.
// Example: nobohub/command/nobo/zone-1
func CommandTopic(target string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, target)
}

// AckTopic returns the topic for command acknowledgments.
// Example: nobohub/ack/nobo/zone-1
func AckTopic(target string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Protocol, target)
}

// StateTopic returns the retained state topic of one entity.
// Example: nobohub/state/nobo/zone/1-living-room
func StateTopic(kind EntityKind, segment string) string {
	return fmt.Sprintf("%s/state/%s/%s/%s", TopicPrefix, Protocol, kind, segment)
}

// ZoneStatusTopic returns the retained topic of a zone's computed status.
// Example: nobohub/status/nobo/zone/1-living-room
func ZoneStatusTopic(segment string) string {
	return fmt.Sprintf("%s/status/%s/zone/%s", TopicPrefix, Protocol, segment)
}

// HealthTopic returns the topic for health status.
func HealthTopic() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// RequestTopic returns the topic for a request.
func RequestTopic(requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, Protocol, requestID)
}

// ResponseTopic returns the topic for a response.
func ResponseTopic(requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, Protocol, requestID)
}

// CommandSubscribeTopic returns the subscription pattern for all commands.
func CommandSubscribeTopic() string {
	return fmt.Sprintf("%s/command/%s/#", TopicPrefix, Protocol)
}

// RequestSubscribeTopic returns the subscription pattern for all requests.
func RequestSubscribeTopic() string {
	return fmt.Sprintf("%s/request/%s/#", TopicPrefix, Protocol)
}

// TopicSegment builds a readable topic segment from an entity key and its
// display name: "1" and "Living Room" give "1-living-room". The key alone
// is used when the name has no sluggable characters.
func TopicSegment(key, name string) string {
	s := slug.Make(name)
	if s == "" {
		return key
	}
	return key + "-" + s
}

// zoneSegment is the topic segment of a zone.
func zoneSegment(z Zone) string {
	return TopicSegment(strconv.Itoa(z.ID()), z.Name())
}
