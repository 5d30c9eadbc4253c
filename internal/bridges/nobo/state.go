package nobo

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"
)

// EntityKind names the register an event touched.
type EntityKind string

// Entity kinds.
const (
	KindZone        EntityKind = "zone"
	KindComponent   EntityKind = "component"
	KindWeekProfile EntityKind = "weekprofile"
	KindOverride    EntityKind = "override"
	KindHub         EntityKind = "hub"
	KindTemperature EntityKind = "temperature"
	KindControl     EntityKind = "control"
)

// hubKey is the register key used for the single hub record.
const hubKey = "hub"

// Event describes the effect of one applied line.
type Event struct {
	Kind EntityKind
	// Key is the entity id as text (zone id, serial, ...).
	Key string
	// Removed is true when the line deleted the entity.
	Removed bool
	// Line is the canonical H-prefixed record for stored entities, empty
	// for removals, control lines and temperatures.
	Line string
}

// ZoneStatusSource says where a computed zone status came from.
type ZoneStatusSource string

// Zone status sources.
const (
	SourceWeekProfile ZoneStatusSource = "week_profile"
	SourceOverride    ZoneStatusSource = "override"
)

// ZoneStatus is the effective heating state of one zone at an instant.
type ZoneStatus struct {
	ZoneID     int
	Status     WeekProfileStatus
	Source     ZoneStatusSource
	OverrideID int
}

// State holds everything the hub has told us.
//
// Thread Safety: all methods are safe for concurrent use. Lines are
// applied under a write lock, queries take a read lock.
type State struct {
	mu           sync.RWMutex
	zones        *Register[int, Zone]
	components   *Register[SerialNumber, Component]
	weekProfiles *Register[int, WeekProfile]
	overrides    *Register[int, OverridePlan]
	hub          *Hub
	temperatures map[SerialNumber]float64

	// seen holds the keys applied since BeginReload, nil outside a
	// full dump.
	seen map[EntityKind]map[string]struct{}
}

// NewState creates an empty state.
func NewState() *State {
	return &State{
		zones:        NewRegister(Zone.ID),
		components:   NewRegister(Component.SerialNumber),
		weekProfiles: NewRegister(WeekProfile.ID),
		overrides:    NewRegister(OverridePlan.ID),
		temperatures: make(map[SerialNumber]float64),
	}
}

// Apply routes a hub line by prefix into the matching register.
//
// Returns:
//   - Event: what changed
//   - error: *DataError for malformed lines, ErrHubError for E00,
//     ErrUnknownPrefix for anything else not understood
func (s *State) Apply(line string) (Event, error) {
	ev, err := s.apply(line)
	if err == nil && !ev.Removed {
		s.markSeen(ev)
	}
	return ev, err
}

func (s *State) apply(line string) (Event, error) {
	line = trimLine(line)
	prefix := LinePrefix(line)

	switch prefix {
	case PrefixZone, PrefixZoneAdded, PrefixZoneUpdated, PrefixZoneRemoved:
		return s.applyZone(line, prefix == PrefixZoneRemoved)
	case PrefixComponent, PrefixComponentAdded, PrefixComponentUpdated, PrefixComponentRemoved:
		return s.applyComponent(line, prefix == PrefixComponentRemoved)
	case PrefixWeekProfile, PrefixWeekProfileAdded, PrefixWeekProfileUpdated, PrefixWeekProfileRemoved:
		return s.applyWeekProfile(line, prefix == PrefixWeekProfileRemoved)
	case PrefixOverride, PrefixOverrideAdded, PrefixOverrideRemoved:
		return s.applyOverride(line, prefix == PrefixOverrideRemoved)
	case PrefixHubInfo, PrefixHubUpdated:
		return s.applyHub(line)
	case PrefixTemperature:
		return s.applyTemperature(line)
	case PrefixSendingAll, PrefixHello, PrefixHandshake, PrefixKeepAlive:
		return Event{Kind: KindControl, Key: prefix}, nil
	case PrefixError, PrefixReject:
		return Event{Kind: KindControl, Key: prefix}, fmt.Errorf("%w: %s", ErrHubError, line)
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownPrefix, prefix)
	}
}

func (s *State) applyZone(line string, remove bool) (Event, error) {
	z, err := ParseZone(line)
	if err != nil {
		return Event{}, err
	}
	ev := Event{Kind: KindZone, Key: strconv.Itoa(z.ID()), Removed: remove}

	s.mu.Lock()
	defer s.mu.Unlock()
	if remove {
		s.zones.Remove(z.ID())
		return ev, nil
	}
	s.zones.Put(z)
	ev.Line = z.CommandString(PrefixZone)
	return ev, nil
}

func (s *State) applyComponent(line string, remove bool) (Event, error) {
	c, err := ParseComponent(line)
	if err != nil {
		return Event{}, err
	}
	ev := Event{Kind: KindComponent, Key: c.SerialNumber().String(), Removed: remove}

	s.mu.Lock()
	defer s.mu.Unlock()
	if remove {
		s.components.Remove(c.SerialNumber())
		delete(s.temperatures, c.SerialNumber())
		return ev, nil
	}
	if t, ok := s.temperatures[c.SerialNumber()]; ok {
		c = c.WithTemperature(t)
	}
	s.components.Put(c)
	ev.Line = c.CommandString(PrefixComponent)
	return ev, nil
}

func (s *State) applyWeekProfile(line string, remove bool) (Event, error) {
	w, err := ParseWeekProfile(line)
	if err != nil {
		return Event{}, err
	}
	ev := Event{Kind: KindWeekProfile, Key: strconv.Itoa(w.ID()), Removed: remove}

	s.mu.Lock()
	defer s.mu.Unlock()
	if remove {
		s.weekProfiles.Remove(w.ID())
		return ev, nil
	}
	s.weekProfiles.Put(w)
	ev.Line = w.CommandString(PrefixWeekProfile)
	return ev, nil
}

func (s *State) applyOverride(line string, remove bool) (Event, error) {
	o, err := ParseOverridePlan(line)
	if err != nil {
		return Event{}, err
	}
	ev := Event{Kind: KindOverride, Key: strconv.Itoa(o.ID()), Removed: remove}

	s.mu.Lock()
	defer s.mu.Unlock()
	if remove {
		s.overrides.Remove(o.ID())
		return ev, nil
	}
	s.overrides.Put(o)
	ev.Line = o.CommandString(PrefixOverride)
	return ev, nil
}

func (s *State) applyHub(line string) (Event, error) {
	h, err := ParseHub(line)
	if err != nil {
		return Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hub = &h
	return Event{Kind: KindHub, Key: hubKey, Line: h.CommandString(PrefixHubInfo)}, nil
}

func (s *State) applyTemperature(line string) (Event, error) {
	r, err := ParseTemperature(line)
	if err != nil {
		return Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if math.IsNaN(r.Celsius) {
		delete(s.temperatures, r.Serial)
	} else {
		s.temperatures[r.Serial] = r.Celsius
	}
	if c, ok := s.components.Get(r.Serial); ok {
		s.components.Put(c.WithTemperature(r.Celsius))
	}
	return Event{Kind: KindTemperature, Key: r.Serial.String()}, nil
}

// BeginReload starts tracking which entities a full dump mentions.
// Call it when H00 arrives.
func (s *State) BeginReload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = map[EntityKind]map[string]struct{}{
		KindZone:        {},
		KindComponent:   {},
		KindWeekProfile: {},
		KindOverride:    {},
	}
}

func (s *State) markSeen(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keys, ok := s.seen[ev.Kind]; ok {
		keys[ev.Key] = struct{}{}
	}
}

// FinishReload removes every zone, component, week profile and override
// not applied since BeginReload. The hub record is kept.
//
// Returns:
//   - []Event: one removal event per dropped entity, ordered by kind and
//     key; nil when no reload was in progress
func (s *State) FinishReload() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		return nil
	}
	seen := s.seen
	s.seen = nil

	var removed []Event
	drop := func(kind EntityKind, key string) bool {
		if _, ok := seen[kind][key]; ok {
			return false
		}
		removed = append(removed, Event{Kind: kind, Key: key, Removed: true})
		return true
	}
	for _, id := range s.zones.Keys() {
		if drop(KindZone, strconv.Itoa(id)) {
			s.zones.Remove(id)
		}
	}
	for _, serial := range s.components.Keys() {
		if drop(KindComponent, serial.String()) {
			s.components.Remove(serial)
			delete(s.temperatures, serial)
		}
	}
	for _, id := range s.weekProfiles.Keys() {
		if drop(KindWeekProfile, strconv.Itoa(id)) {
			s.weekProfiles.Remove(id)
		}
	}
	for _, id := range s.overrides.Keys() {
		if drop(KindOverride, strconv.Itoa(id)) {
			s.overrides.Remove(id)
		}
	}

	slices.SortFunc(removed, func(a, b Event) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.Key, b.Key))
	})
	return removed
}

// Zone returns the zone with id.
func (s *State) Zone(id int) (Zone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zones.Get(id)
}

// Zones returns all zones ordered by id.
func (s *State) Zones() []Zone {
	s.mu.RLock()
	zones := s.zones.Values()
	s.mu.RUnlock()
	slices.SortFunc(zones, func(a, b Zone) int { return cmp.Compare(a.ID(), b.ID()) })
	return zones
}

// Component returns the component with serial.
func (s *State) Component(serial SerialNumber) (Component, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.components.Get(serial)
}

// Components returns all components ordered by serial.
func (s *State) Components() []Component {
	s.mu.RLock()
	components := s.components.Values()
	s.mu.RUnlock()
	slices.SortFunc(components, func(a, b Component) int {
		return cmp.Compare(a.SerialNumber(), b.SerialNumber())
	})
	return components
}

// WeekProfile returns the week profile with id.
func (s *State) WeekProfile(id int) (WeekProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weekProfiles.Get(id)
}

// WeekProfiles returns all week profiles ordered by id.
func (s *State) WeekProfiles() []WeekProfile {
	s.mu.RLock()
	profiles := s.weekProfiles.Values()
	s.mu.RUnlock()
	slices.SortFunc(profiles, func(a, b WeekProfile) int { return cmp.Compare(a.ID(), b.ID()) })
	return profiles
}

// Override returns the override plan with id.
func (s *State) Override(id int) (OverridePlan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overrides.Get(id)
}

// Overrides returns all override plans ordered by id.
func (s *State) Overrides() []OverridePlan {
	s.mu.RLock()
	overrides := s.overrides.Values()
	s.mu.RUnlock()
	slices.SortFunc(overrides, func(a, b OverridePlan) int { return cmp.Compare(a.ID(), b.ID()) })
	return overrides
}

// Hub returns the hub record once H05 has been received.
func (s *State) Hub() (Hub, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hub == nil {
		return Hub{}, false
	}
	return *s.hub, true
}

// ActiveHubOverride returns the override the hub reports as active.
func (s *State) ActiveHubOverride() (OverridePlan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hub == nil {
		return OverridePlan{}, false
	}
	return s.overrides.Get(s.hub.ActiveOverrideID())
}

// ZoneStatus computes the effective status of zone id at t.
//
// When the zone allows overrides, the lowest-id override that is not
// NORMAL, is active at t and targets either this zone or the whole hub
// wins. Otherwise the zone's week profile decides.
//
// Returns:
//   - ZoneStatus: effective status and where it came from
//   - error: ErrNotFound if the zone or its week profile is unknown
func (s *State) ZoneStatus(id int, t time.Time) (ZoneStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	z, ok := s.zones.Get(id)
	if !ok {
		return ZoneStatus{}, fmt.Errorf("%w: zone %d", ErrNotFound, id)
	}

	if z.AllowOverrides() {
		overrides := s.overrides.Values()
		slices.SortFunc(overrides, func(a, b OverridePlan) int { return cmp.Compare(a.ID(), b.ID()) })
		for _, o := range overrides {
			if o.Mode() == OverrideModeNormal || !o.ActiveAt(t) {
				continue
			}
			zoneMatch := o.Target() == OverrideTargetZone && o.TargetID() == id
			hubMatch := o.Target() == OverrideTargetHub && o.TargetID() == -1
			if zoneMatch || hubMatch {
				return ZoneStatus{ZoneID: id, Status: statusForMode(o.Mode()), Source: SourceOverride, OverrideID: o.ID()}, nil
			}
		}
	}

	w, ok := s.weekProfiles.Get(z.WeekProfileID())
	if !ok {
		return ZoneStatus{}, fmt.Errorf("%w: week profile %d for zone %d", ErrNotFound, z.WeekProfileID(), id)
	}
	return ZoneStatus{ZoneID: id, Status: w.StatusAt(t), Source: SourceWeekProfile, OverrideID: -1}, nil
}

// statusForMode maps a non-normal override mode to a status.
func statusForMode(m OverrideMode) WeekProfileStatus {
	switch m {
	case OverrideModeComfort:
		return WeekProfileStatusComfort
	case OverrideModeAway:
		return WeekProfileStatusAway
	default:
		return WeekProfileStatusEco
	}
}
