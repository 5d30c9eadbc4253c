package nobo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 3

	// defaultCommandTimeout bounds one write to the hub.
	defaultCommandTimeout = 5 * time.Second

	// snapshotTimeout bounds a single snapshot store operation.
	snapshotTimeout = 5 * time.Second
)

// Bridge connects the hub to MQTT.
// It handles:
//   - Applying hub lines to State and publishing retained entity state
//   - Recomputing zone status when schedules or overrides change
//   - Translating MQTT commands into hub command lines
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg       BridgeConfig
	mqtt      MQTTClient
	hub       Connector
	state     *State
	health    *HealthReporter
	store     SnapshotStore   // Optional
	telemetry TelemetryWriter // Optional
	now       func() time.Time

	// Retained topics published per entity, used to clear them on removal
	topics   map[string]string
	topicsMu sync.Mutex

	// Last published zone status for change detection
	zoneStatus   map[int]ZoneStatus
	zoneStatusMu sync.Mutex

	errorsTotal atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// BridgeConfig holds bridge identity and timing.
type BridgeConfig struct {
	// ID identifies the bridge in health messages. Default: "nobo".
	ID string

	// Version is reported in health messages.
	Version string

	// HealthInterval is how often health is published. Default: 30s.
	HealthInterval time.Duration

	// CommandTimeout bounds each command sent to the hub. Default: 5s.
	CommandTimeout time.Duration
}

// MQTTClient is the interface for MQTT operations.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Snapshot is one persisted entity line.
type Snapshot struct {
	Kind      EntityKind
	Key       string
	Line      string
	UpdatedAt time.Time
}

// SnapshotStore persists the last known line of every entity so state is
// available before the hub has answered. Optional.
type SnapshotStore interface {
	Save(ctx context.Context, kind EntityKind, key, line string) error
	Delete(ctx context.Context, kind EntityKind, key string) error
	LoadAll(ctx context.Context) ([]Snapshot, error)
}

// TelemetryWriter records time series. Optional.
type TelemetryWriter interface {
	WriteTemperature(c Component, at time.Time)
	WriteZoneStatus(z Zone, status ZoneStatus, at time.Time)
}

// BridgeOptions holds the dependencies for creating a bridge.
type BridgeOptions struct {
	Config     BridgeConfig
	MQTTClient MQTTClient
	Hub        Connector

	// State receives every hub line. A new one is created when nil.
	State *State

	Store     SnapshotStore
	Telemetry TelemetryWriter
	Logger    Logger
}

// NewBridge creates a new bridge instance. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Hub == nil {
		return nil, fmt.Errorf("hub client is required")
	}

	cfg := opts.Config
	if cfg.ID == "" {
		cfg.ID = Protocol
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	state := opts.State
	if state == nil {
		state = NewState()
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:        cfg,
		mqtt:       opts.MQTTClient,
		hub:        opts.Hub,
		state:      state,
		store:      opts.Store,
		telemetry:  opts.Telemetry,
		now:        time.Now,
		topics:     make(map[string]string),
		zoneStatus: make(map[int]ZoneStatus),
		done:       make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  cfg.ID,
		Version:   cfg.Version,
		Interval:  cfg.HealthInterval,
		Publisher: opts.MQTTClient,
		Hub:       opts.Hub,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start restores the snapshot, hooks the hub line handler, subscribes to
// MQTT and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.restoreSnapshot(ctx)

	b.hub.SetOnLine(b.handleHubLine)

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.health.Start(ctx)
	b.updateCounts()
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started", "bridge_id", b.cfg.ID)
	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// State returns the entity state the bridge maintains.
func (b *Bridge) State() *State {
	return b.state
}

// restoreSnapshot replays stored lines into State and republishes them.
func (b *Bridge) restoreSnapshot(ctx context.Context) {
	if b.store == nil {
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	snapshots, err := b.store.LoadAll(loadCtx)
	if err != nil {
		b.logError("failed to load snapshot", err)
		return
	}

	restored := 0
	for _, s := range snapshots {
		ev, err := b.state.Apply(s.Line)
		if err != nil {
			b.logError("skipping stored line", fmt.Errorf("kind=%s key=%s: %w", s.Kind, s.Key, err))
			continue
		}
		b.publishEvent(ev)
		restored++
	}
	if restored > 0 {
		b.PublishZoneStatuses(b.now())
	}
	b.logInfo("snapshot restored", "entities", restored)
}

// handleHubLine processes one line received from the hub.
func (b *Bridge) handleHubLine(line string) {
	ev, err := b.state.Apply(line)
	if err != nil {
		switch {
		case errors.Is(err, ErrHubError):
			b.errorsTotal.Add(1)
			b.logError("hub rejected command", err)
		case errors.Is(err, ErrUnknownPrefix):
			b.logDebug("ignoring line", "line", line)
		default:
			b.errorsTotal.Add(1)
			b.logError("failed to apply hub line", err)
		}
		return
	}

	switch ev.Kind {
	case KindControl:
		if ev.Key == PrefixSendingAll {
			b.state.BeginReload()
		}
		return
	case KindTemperature:
		b.handleTemperature(SerialNumber(ev.Key))
		return
	}

	b.persist(ev)
	b.publishEvent(ev)
	if LinePrefix(line) == PrefixHubInfo {
		b.finishReload()
		return
	}
	if ev.Kind == KindComponent {
		b.updateCounts()
		return
	}
	if ev.Kind == KindZone {
		b.updateCounts()
	}
	b.PublishZoneStatuses(b.now())
}

// finishReload drops whatever the hub left out of its full dump, including
// entities restored from the snapshot, and clears their stored rows and
// retained topics.
func (b *Bridge) finishReload() {
	removed := b.state.FinishReload()
	for _, ev := range removed {
		b.persist(ev)
		b.publishEvent(ev)
	}
	b.updateCounts()
	b.PublishZoneStatuses(b.now())
	b.logInfo("hub state loaded",
		"zones", len(b.state.Zones()),
		"components", len(b.state.Components()),
		"removed", len(removed))
}

// handleTemperature republishes a component after a Y02 report.
func (b *Bridge) handleTemperature(serial SerialNumber) {
	c, ok := b.state.Component(serial)
	if !ok {
		b.logDebug("temperature for unknown component", "serial", serial.String())
		return
	}
	b.publishEvent(Event{Kind: KindComponent, Key: serial.String()})
	if b.telemetry != nil && c.HasTemperature() {
		b.telemetry.WriteTemperature(c, b.now())
	}
}

// persist writes or deletes the snapshot row of an entity.
func (b *Bridge) persist(ev Event) {
	if b.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, snapshotTimeout)
	defer cancel()

	var err error
	if ev.Removed {
		err = b.store.Delete(ctx, ev.Kind, ev.Key)
	} else {
		err = b.store.Save(ctx, ev.Kind, ev.Key, ev.Line)
	}
	if err != nil {
		b.logError("failed to persist snapshot", fmt.Errorf("kind=%s key=%s: %w", ev.Kind, ev.Key, err))
	}
}

// publishEvent publishes the retained state of the entity an event
// touched, or clears its topic when it was removed.
func (b *Bridge) publishEvent(ev Event) {
	cacheKey := string(ev.Kind) + "/" + ev.Key

	if ev.Removed {
		b.topicsMu.Lock()
		topic, ok := b.topics[cacheKey]
		delete(b.topics, cacheKey)
		b.topicsMu.Unlock()
		if ok {
			b.publish(topic, nil, true)
		}
		if ev.Kind == KindZone {
			b.clearZoneStatus(ev.Key)
		}
		return
	}

	segment, view, ok := b.entityView(ev.Kind, ev.Key)
	if !ok {
		return
	}
	topic := StateTopic(ev.Kind, segment)

	b.topicsMu.Lock()
	old, had := b.topics[cacheKey]
	b.topics[cacheKey] = topic
	b.topicsMu.Unlock()

	// A rename moves the entity to a new topic.
	if had && old != topic {
		b.publish(old, nil, true)
	}

	b.publishJSON(topic, NewStateMessage(ev.Kind, ev.Key, view), true)
}

// entityView looks up an entity and returns its topic segment and view.
func (b *Bridge) entityView(kind EntityKind, key string) (string, any, bool) {
	switch kind {
	case KindZone:
		id, err := strconv.Atoi(key)
		if err != nil {
			return "", nil, false
		}
		z, ok := b.state.Zone(id)
		if !ok {
			return "", nil, false
		}
		return zoneSegment(z), NewZoneView(z), true
	case KindComponent:
		c, ok := b.state.Component(SerialNumber(key))
		if !ok {
			return "", nil, false
		}
		return TopicSegment(key, c.Name()), NewComponentView(c), true
	case KindWeekProfile:
		id, err := strconv.Atoi(key)
		if err != nil {
			return "", nil, false
		}
		w, ok := b.state.WeekProfile(id)
		if !ok {
			return "", nil, false
		}
		return TopicSegment(key, w.Name()), NewWeekProfileView(w), true
	case KindOverride:
		id, err := strconv.Atoi(key)
		if err != nil {
			return "", nil, false
		}
		o, ok := b.state.Override(id)
		if !ok {
			return "", nil, false
		}
		return key, NewOverrideView(o), true
	case KindHub:
		h, ok := b.state.Hub()
		if !ok {
			return "", nil, false
		}
		return hubKey, NewHubView(h), true
	default:
		return "", nil, false
	}
}

// PublishZoneStatuses evaluates every zone at t and publishes the ones
// whose status changed since the last call.
//
// Returns:
//   - int: number of zones whose status changed
func (b *Bridge) PublishZoneStatuses(t time.Time) int {
	changed := 0
	for _, z := range b.state.Zones() {
		st, err := b.state.ZoneStatus(z.ID(), t)
		if err != nil {
			b.logDebug("zone status unavailable", "zone", z.ID(), "reason", err.Error())
			continue
		}

		// A rename moves the status to a new topic.
		topic := ZoneStatusTopic(zoneSegment(z))
		b.topicsMu.Lock()
		old, had := b.topics[zoneStatusCacheKey(z.ID())]
		b.topics[zoneStatusCacheKey(z.ID())] = topic
		b.topicsMu.Unlock()
		moved := had && old != topic
		if moved {
			b.publish(old, nil, true)
		}

		b.zoneStatusMu.Lock()
		prev, seen := b.zoneStatus[z.ID()]
		b.zoneStatus[z.ID()] = st
		b.zoneStatusMu.Unlock()

		if seen && prev == st && !moved {
			continue
		}
		changed++

		b.publishJSON(topic, NewZoneStatusView(st, t), true)
		if b.telemetry != nil {
			b.telemetry.WriteZoneStatus(z, st, t)
		}
		b.logDebug("zone status changed",
			"zone", z.ID(),
			"status", st.Status.String(),
			"source", string(st.Source))
	}
	return changed
}

// clearZoneStatus clears the retained status of a removed zone and
// forgets it so it is published afresh if it comes back.
func (b *Bridge) clearZoneStatus(key string) {
	id, err := strconv.Atoi(key)
	if err != nil {
		return
	}
	b.zoneStatusMu.Lock()
	delete(b.zoneStatus, id)
	b.zoneStatusMu.Unlock()

	b.topicsMu.Lock()
	topic, ok := b.topics[zoneStatusCacheKey(id)]
	delete(b.topics, zoneStatusCacheKey(id))
	b.topicsMu.Unlock()
	if ok {
		b.publish(topic, nil, true)
	}
}

func zoneStatusCacheKey(id int) string {
	return "zone_status/" + strconv.Itoa(id)
}

// updateCounts refreshes the entity counts in health messages.
func (b *Bridge) updateCounts() {
	b.health.SetCounts(len(b.state.Zones()), len(b.state.Components()))
}

// handleMQTTMessage routes an MQTT message by topic category.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	// Topic format: nobohub/{category}/nobo/{target}
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logError("invalid topic format", fmt.Errorf("topic=%s", topic))
		return
	}

	switch parts[1] {
	case "command":
		target := ""
		if len(parts) > minTopicParts {
			target = strings.Join(parts[minTopicParts:], "/")
		}
		b.handleCommand(target, payload)
	case "request":
		b.handleRequest(payload)
	default:
		b.logDebug("ignoring message", "topic", topic)
	}
}

// handleCommand executes a command received over MQTT and acknowledges it.
func (b *Bridge) handleCommand(target string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Source == "" {
		cmd.Source = "mqtt"
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"command", cmd.Command,
		"target", target)

	line, err := b.Execute(b.ctx, cmd)
	if err != nil {
		b.publishAckError(cmd, target, errorCode(err), err.Error())
		return
	}
	b.publishAck(cmd, target, line)
}

func (b *Bridge) publishAck(cmd CommandMessage, target, line string) {
	b.publishJSON(AckTopic(target), NewAckMessage(cmd, target, line, AckAccepted), false)
}

func (b *Bridge) publishAckError(cmd CommandMessage, target, code, message string) {
	b.publishJSON(AckTopic(target), NewAckError(cmd, target, code, message), false)
	b.logError("command failed", fmt.Errorf("command=%s code=%s message=%s", cmd.Command, code, message))
}

// errorCode maps an execution error to an ack error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidParameter), errors.Is(err, ErrInvalidData):
		return ErrCodeInvalidParameters
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrConnectionFailed):
		return ErrCodeHubUnreachable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return ErrCodeTimeout
	default:
		return ErrCodeBridgeError
	}
}

// handleRequest answers a request message.
func (b *Bridge) handleRequest(payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}

	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	var resp ResponseMessage
	switch req.Action {
	case ActionReadState:
		resp = b.handleReadState(req)
	case ActionReadAll:
		resp = b.handleReadAll(req)
	case ActionRefresh:
		resp = b.handleRefresh(req)
	default:
		resp = failedResponse(req, ErrCodeInvalidCommand, fmt.Sprintf("unknown action: %s", req.Action))
	}

	b.publishJSON(ResponseTopic(req.RequestID), resp, false)
}

func (b *Bridge) handleReadState(req RequestMessage) ResponseMessage {
	if req.Kind == "" || req.Key == "" {
		return failedResponse(req, ErrCodeInvalidParameters, "kind and key are required")
	}
	_, view, ok := b.entityView(req.Kind, req.Key)
	if !ok {
		return failedResponse(req, ErrCodeNotFound, fmt.Sprintf("%s %s not found", req.Kind, req.Key))
	}
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      map[string]any{"kind": req.Kind, "key": req.Key, "state": view},
	}
}

func (b *Bridge) handleReadAll(req RequestMessage) ResponseMessage {
	data := map[string]any{
		"zones":         mapViews(b.state.Zones(), NewZoneView),
		"components":    mapViews(b.state.Components(), NewComponentView),
		"week_profiles": mapViews(b.state.WeekProfiles(), NewWeekProfileView),
		"overrides":     mapViews(b.state.Overrides(), NewOverrideView),
	}
	if h, ok := b.state.Hub(); ok {
		data["hub"] = NewHubView(h)
	}
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      data,
	}
}

// handleRefresh asks the hub for a full dump.
func (b *Bridge) handleRefresh(req RequestMessage) ResponseMessage {
	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.CommandTimeout)
	defer cancel()

	if err := b.hub.Send(ctx, PrefixGetAll); err != nil {
		return failedResponse(req, errorCode(err), err.Error())
	}
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      map[string]any{"message": "refresh requested, state updates will follow"},
	}
}

func failedResponse(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     &ResponseError{Code: code, Message: message},
	}
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logError("failed to marshal message", fmt.Errorf("topic=%s: %w", topic, err))
		return
	}
	b.publish(topic, payload, retained)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	if err := b.mqtt.Publish(topic, payload, 1, retained); err != nil {
		b.logError("failed to publish", fmt.Errorf("topic=%s: %w", topic, err))
	}
}

// BridgeMetrics is a point-in-time snapshot for the API.
type BridgeMetrics struct {
	Connected    bool
	Reconnecting bool
	Status       string
	LinesTx      uint64
	LinesRx      uint64
	Errors       uint64
	Reconnects   uint64
	Zones        int
	Components   int
	WeekProfiles int
	Overrides    int
}

// GetMetrics returns the current bridge metrics.
func (b *Bridge) GetMetrics() BridgeMetrics {
	stats := b.hub.Stats()
	status := "disconnected"
	switch {
	case stats.Connected:
		status = "connected"
	case stats.Reconnecting:
		status = "reconnecting"
	}
	return BridgeMetrics{
		Connected:    stats.Connected,
		Reconnecting: stats.Reconnecting,
		Status:       status,
		LinesTx:      stats.LinesTx,
		LinesRx:      stats.LinesRx,
		Errors:       stats.ErrorsTotal + b.errorsTotal.Load(),
		Reconnects:   stats.ReconnectsTotal,
		Zones:        len(b.state.Zones()),
		Components:   len(b.state.Components()),
		WeekProfiles: len(b.state.WeekProfiles()),
		Overrides:    len(b.state.Overrides()),
	}
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	if b.logger == nil {
		return noopLogger{}
	}
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.getLogger().Info(msg, keysAndValues...)
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.getLogger().Debug(msg, keysAndValues...)
}

func (b *Bridge) logError(msg string, err error) {
	b.getLogger().Error(msg, "error", err)
}

// mapViews converts a slice of entities to their JSON views.
func mapViews[T, V any](items []T, view func(T) V) []V {
	return lo.Map(items, func(it T, _ int) V { return view(it) })
}
