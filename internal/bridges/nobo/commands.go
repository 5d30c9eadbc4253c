package nobo

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Temperature limits the hub accepts for zone set points, in °C.
const (
	MinSetPoint = 7
	MaxSetPoint = 30
)

// Execute turns a command into a hub line and writes it to the hub.
// State is not touched here: the hub echoes the change as a V or B line
// which then flows through the normal line handler.
//
// Parameters:
//   - ctx: Context for cancellation; CommandTimeout is applied on top
//   - cmd: Command with its parameters
//
// Returns:
//   - string: the line that was sent (also returned on send failure)
//   - error: ErrInvalidCommand, ErrInvalidParameter, ErrNotFound or a send error
func (b *Bridge) Execute(ctx context.Context, cmd CommandMessage) (string, error) {
	line, err := b.BuildCommandLine(cmd)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.CommandTimeout)
	defer cancel()

	if err := b.hub.Send(ctx, line); err != nil {
		return line, fmt.Errorf("send %s: %w", cmd.Command, err)
	}

	b.logInfo("command sent",
		"command_id", cmd.ID,
		"command", cmd.Command,
		"line", line)
	return line, nil
}

// BuildCommandLine validates a command against the current state and
// returns the hub line implementing it.
func (b *Bridge) BuildCommandLine(cmd CommandMessage) (string, error) {
	p := cmd.Parameters

	switch cmd.Command {
	case CommandSetZone:
		z, err := b.zoneParam(p)
		if err != nil {
			return "", err
		}
		changed := false
		for _, key := range []string{"week_profile_id", "comfort_temperature", "eco_temperature"} {
			if v, ok := p[key]; !ok || v == nil {
				continue
			}
			if z, err = b.applyZoneChange(z, key, p); err != nil {
				return "", err
			}
			changed = true
		}
		if !changed {
			return "", fmt.Errorf("%w: one of week_profile_id, comfort_temperature or eco_temperature is required", ErrInvalidParameter)
		}
		return z.CommandString(PrefixUpdateZone), nil

	case CommandSetZoneWeekProfile:
		z, err := b.zoneParam(p)
		if err != nil {
			return "", err
		}
		if z, err = b.applyZoneChange(z, "week_profile_id", p); err != nil {
			return "", err
		}
		return z.CommandString(PrefixUpdateZone), nil

	case CommandSetComfortTemperature, CommandSetEcoTemperature:
		z, err := b.zoneParam(p)
		if err != nil {
			return "", err
		}
		celsius, err := setPointParam(p, "temperature")
		if err != nil {
			return "", err
		}
		if cmd.Command == CommandSetComfortTemperature {
			z = z.WithComfortTemperature(celsius)
		} else {
			z = z.WithEcoTemperature(celsius)
		}
		return z.CommandString(PrefixUpdateZone), nil

	case CommandSetOverride:
		o, err := b.overrideParam(p)
		if err != nil {
			return "", err
		}
		return o.CommandString(PrefixAddOverride), nil

	case CommandRaw:
		line, err := stringParam(p, "line")
		if err != nil {
			return "", err
		}
		if strings.ContainsAny(line, "\r\n") {
			return "", fmt.Errorf("%w: line must not contain line breaks", ErrInvalidParameter)
		}
		return line, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Command)
	}
}

// zoneParam resolves the zone_id parameter against State.
func (b *Bridge) zoneParam(p map[string]any) (Zone, error) {
	id, err := intParam(p, "zone_id")
	if err != nil {
		return Zone{}, err
	}
	z, ok := b.state.Zone(id)
	if !ok {
		return Zone{}, fmt.Errorf("%w: zone %d", ErrNotFound, id)
	}
	return z, nil
}

// applyZoneChange applies the zone field named by key, read from p.
// A U00 record replaces the whole zone on the hub.
func (b *Bridge) applyZoneChange(z Zone, key string, p map[string]any) (Zone, error) {
	switch key {
	case "week_profile_id":
		id, err := intParam(p, key)
		if err != nil {
			return Zone{}, err
		}
		if _, ok := b.state.WeekProfile(id); !ok {
			return Zone{}, fmt.Errorf("%w: week profile %d", ErrNotFound, id)
		}
		return z.WithWeekProfileID(id), nil
	case "comfort_temperature":
		celsius, err := setPointParam(p, key)
		if err != nil {
			return Zone{}, err
		}
		return z.WithComfortTemperature(celsius), nil
	case "eco_temperature":
		celsius, err := setPointParam(p, key)
		if err != nil {
			return Zone{}, err
		}
		return z.WithEcoTemperature(celsius), nil
	default:
		return Zone{}, fmt.Errorf("%w: unknown zone field %s", ErrInvalidParameter, key)
	}
}

// setPointParam reads a set point and checks it against the hub's range.
func setPointParam(p map[string]any, key string) (int, error) {
	celsius, err := intParam(p, key)
	if err != nil {
		return 0, err
	}
	if celsius < MinSetPoint || celsius > MaxSetPoint {
		return 0, fmt.Errorf("%w: %s %d outside %d..%d", ErrInvalidParameter, key, celsius, MinSetPoint, MaxSetPoint)
	}
	return celsius, nil
}

// overrideParam builds an override plan from command parameters.
// Only mode is required; type defaults to CONSTANT and target to HUB.
func (b *Bridge) overrideParam(p map[string]any) (OverridePlan, error) {
	modeName, err := stringParam(p, "mode")
	if err != nil {
		return OverridePlan{}, err
	}
	mode, err := ParseOverrideMode(modeName)
	if err != nil {
		return OverridePlan{}, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	typ := OverrideTypeConstant
	if s, ok := p["type"].(string); ok {
		if typ, err = ParseOverrideType(s); err != nil {
			return OverridePlan{}, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
	}

	target, targetID := OverrideTargetHub, -1
	if s, ok := p["target"].(string); ok {
		if target, err = ParseOverrideTarget(s); err != nil {
			return OverridePlan{}, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
	}
	switch target {
	case OverrideTargetZone:
		id, err := intParam(p, "target_id")
		if err != nil {
			return OverridePlan{}, err
		}
		if _, ok := b.state.Zone(id); !ok {
			return OverridePlan{}, fmt.Errorf("%w: zone %d", ErrNotFound, id)
		}
		targetID = id
	case OverrideTargetComponent:
		return OverridePlan{}, fmt.Errorf("%w: component overrides are not supported", ErrInvalidParameter)
	}

	start, err := timeParam(p, "start")
	if err != nil {
		return OverridePlan{}, err
	}
	end, err := timeParam(p, "end")
	if err != nil {
		return OverridePlan{}, err
	}
	if typ == OverrideTypeFromTo && (start == nil || end == nil) {
		return OverridePlan{}, fmt.Errorf("%w: from_to override needs start and end", ErrInvalidParameter)
	}
	if typ == OverrideTypeTimer && end == nil {
		return OverridePlan{}, fmt.Errorf("%w: timer override needs end", ErrInvalidParameter)
	}
	if start != nil && end != nil && !end.After(*start) {
		return OverridePlan{}, fmt.Errorf("%w: end must be after start", ErrInvalidParameter)
	}

	return NewOverridePlan(mode, typ, target, targetID, start, end), nil
}

// intParam reads an integer parameter. JSON numbers arrive as float64;
// numeric strings are accepted too.
func intParam(p map[string]any, key string) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidParameter, key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidParameter, key)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, key)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, key)
	}
}

func stringParam(p map[string]any, key string) (string, error) {
	s, ok := p[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidParameter, key)
	}
	return s, nil
}

// timeParam reads an optional RFC 3339 timestamp.
func timeParam(p map[string]any, key string) (*time.Time, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an RFC 3339 string", ErrInvalidParameter, key)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidParameter, key, err)
	}
	t = t.In(time.Local)
	return &t, nil
}
