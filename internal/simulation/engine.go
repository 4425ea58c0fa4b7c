package simulation

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/simshield/simshield-server/internal/metrics"
	"github.com/simshield/simshield-server/internal/models"
)

const (
	metricRefreshInterval = 1 * time.Second
	riskRefreshInterval   = 5 * time.Second

	// A risk move larger than this emits a risk_change event
	riskChangeThreshold = 15

	// Chance per metric refresh that a device sheds one failed login
	failedAuthDecayProbability = 0.3
)

// Config controls engine construction
type Config struct {
	// DeviceCount is the size of the device batch (default 5)
	DeviceCount int

	// TickInterval is the attack/defense loop period (default 2s)
	TickInterval time.Duration

	// WeakPasswordProbability is the chance a created device has a weak
	// password (default 0.3)
	WeakPasswordProbability float64

	// Rand overrides the random source; nil means a time-seeded one
	Rand Rand
}

func (c *Config) applyDefaults() {
	if c.DeviceCount <= 0 {
		c.DeviceCount = 5
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 2 * time.Second
	}
	if c.WeakPasswordProbability <= 0 {
		c.WeakPasswordProbability = 0.3
	}
	if c.Rand == nil {
		c.Rand = defaultRand()
	}
}

// Listener receives every emitted simulation event, synchronously and in
// registration order. A panicking listener is isolated; it never stops
// delivery to the others or the loop that emitted the event.
type Listener func(*models.SimulationEvent)

// Subscription is a handle for removing a registered listener
type Subscription struct {
	id     uuid.UUID
	engine *Engine
}

// Unsubscribe removes the listener; safe to call more than once
func (s *Subscription) Unsubscribe() {
	if s == nil || s.engine == nil {
		return
	}
	s.engine.unsubscribe(s.id)
	s.engine = nil
}

type listenerEntry struct {
	id uuid.UUID
	fn Listener
}

// Engine is the sole owner and mutator of the simulation state. All other
// code reads snapshots or sends it commands. The three periodic loops
// (tick, metric refresh, risk refresh) run on independent timers but every
// loop body executes atomically under the engine lock.
type Engine struct {
	cfg Config
	rng Rand

	mu        sync.Mutex
	state     *models.SimulationState
	listeners []listenerEntry

	// Non-nil while running; replaced on every Start so that a loop
	// iteration already waiting on the lock can detect it was cancelled.
	stopCh chan struct{}
}

// NewEngine creates an engine with a freshly constructed, stopped state
func NewEngine(cfg Config) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg: cfg,
		rng: cfg.Rand,
	}
	e.state = e.newState()
	return e
}

func (e *Engine) newState() *models.SimulationState {
	return &models.SimulationState{
		TickInterval: int(e.cfg.TickInterval / time.Millisecond),
		Devices:      newDeviceBatch(e.cfg.DeviceCount, e.cfg.WeakPasswordProbability, e.rng),
		LastUpdated:  time.Now(),
	}
}

// Start begins the periodic loops. No-op if already running.
func (e *Engine) Start() *models.SimulationState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Running {
		return e.state.Clone()
	}

	e.state.Running = true
	now := time.Now()
	e.state.StartedAt = &now

	stop := make(chan struct{})
	e.stopCh = stop
	go e.runLoop(stop, e.cfg.TickInterval, e.tick)
	go e.runLoop(stop, metricRefreshInterval, e.refreshMetrics)
	go e.runLoop(stop, riskRefreshInterval, e.refreshRisk)

	log.Info().
		Int("devices", len(e.state.Devices)).
		Dur("tick_interval", e.cfg.TickInterval).
		Msg("Simulation started")

	e.emitSystemEvent(models.EventTypeInfo, models.SeverityInfo, "Simulation started", nil)
	return e.state.Clone()
}

// Pause stops all periodic loops. No-op if not running. No loop body runs
// after Pause returns.
func (e *Engine) Pause() *models.SimulationState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Running {
		return e.state.Clone()
	}

	e.cancelLoops()
	e.state.Running = false

	log.Info().Msg("Simulation paused")
	e.emitSystemEvent(models.EventTypeInfo, models.SeverityInfo, "Simulation paused", nil)
	return e.state.Clone()
}

// Reset cancels the loops and replaces the whole state with a freshly
// constructed one. Legal in any state; discards all device history.
func (e *Engine) Reset() *models.SimulationState {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLoops()
	e.state = e.newState()

	log.Info().Int("devices", len(e.state.Devices)).Msg("Simulation reset")
	e.emitSystemEvent(models.EventTypeInfo, models.SeverityInfo, "Simulation reset to initial state", nil)
	return e.state.Clone()
}

// cancelLoops invalidates the current stop channel. Any loop iteration
// acquiring the lock afterwards sees the mismatch and exits without
// running its step. Caller holds the engine lock.
func (e *Engine) cancelLoops() {
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
	}
}

// SetAttackState merges a partial attack update. A firmwareTamper change
// takes effect on every device immediately, without waiting for a tick.
func (e *Engine) SetAttackState(u models.AttackUpdate) *models.SimulationState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if u.SynFlood != nil {
		e.state.Attack.SynFlood = *u.SynFlood
		metrics.AttackIntensity.WithLabelValues("syn_flood").Set(*u.SynFlood)
	}
	if u.DictionaryAttack != nil {
		e.state.Attack.DictionaryAttack = *u.DictionaryAttack
		metrics.AttackIntensity.WithLabelValues("dictionary").Set(*u.DictionaryAttack)
	}
	if u.MQTTFlood != nil {
		e.state.Attack.MQTTFlood = *u.MQTTFlood
		metrics.AttackIntensity.WithLabelValues("mqtt_flood").Set(*u.MQTTFlood)
	}
	if u.FirmwareTamper != nil {
		e.state.Attack.FirmwareTamper = *u.FirmwareTamper
		for _, d := range e.state.Devices {
			d.IntegrityRisk = *u.FirmwareTamper
		}
		if *u.FirmwareTamper {
			e.emitSystemEvent(models.EventTypeTampering, models.SeverityCritical,
				"Firmware tampering detected across all devices!", nil)
		} else {
			e.emitSystemEvent(models.EventTypeInfo, models.SeverityInfo,
				"Firmware integrity restored", nil)
		}
	}

	e.state.LastUpdated = time.Now()
	return e.state.Clone()
}

// SetDefenseState merges a partial defense update. Signature-check changes
// are announced immediately; their per-device effect lands on the next tick.
func (e *Engine) SetDefenseState(u models.DefenseUpdate) *models.SimulationState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if u.RateLimiting != nil {
		e.state.Defense.RateLimiting = *u.RateLimiting
	}
	if u.AccountLockout != nil {
		e.state.Defense.AccountLockout = *u.AccountLockout
	}
	if u.SignatureCheck != nil {
		e.state.Defense.SignatureCheck = *u.SignatureCheck
		msg := "Firmware signature verification disabled"
		if *u.SignatureCheck {
			msg = "Firmware signature verification enabled"
		}
		e.emitSystemEvent(models.EventTypeDefense, models.SeverityInfo, msg, nil)
	}

	e.state.LastUpdated = time.Now()
	return e.state.Clone()
}

// State returns a deep, independent snapshot of the current state
func (e *Engine) State() *models.SimulationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// DeviceByID returns a snapshot of one device, or nil if unknown
func (e *Engine) DeviceByID(id string) *models.Device {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d := e.state.Device(id); d != nil {
		return d.Clone()
	}
	return nil
}

// Subscribe registers an event listener and returns its removal handle
func (e *Engine) Subscribe(fn Listener) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.New()
	e.listeners = append(e.listeners, listenerEntry{id: id, fn: fn})
	return &Subscription{id: id, engine: e}
}

func (e *Engine) unsubscribe(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

// runLoop drives one periodic step. The stop-channel identity check under
// the lock guarantees that no step runs after Pause or Reset has returned,
// even for an iteration already in flight.
func (e *Engine) runLoop(stop chan struct{}, interval time.Duration, step func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.stopCh != stop {
				e.mu.Unlock()
				return
			}
			step()
			e.mu.Unlock()
		}
	}
}

// tick applies attack effects then defense mitigations to every device,
// in stable list order. Caller holds the engine lock.
func (e *Engine) tick() {
	now := time.Now()
	compromised := 0

	for _, d := range e.state.Devices {
		e.applyAttackEffects(d)
		e.applyDefenseMitigations(d)
		normalizeMetrics(&d.Metrics)
		d.Metrics.UpdatedAt = now
		if d.Compromised {
			compromised++
		}
	}

	e.state.LastUpdated = now
	metrics.TicksTotal.Inc()
	metrics.CompromisedDevices.Set(float64(compromised))
}

// refreshMetrics resynthesizes every device's baseline-derived metrics,
// amplified when the device is compromised or integrity-flagged. Stateful
// fields survive the resynthesis: failedAuth decays probabilistically,
// battery drains and never recovers. Caller holds the engine lock.
func (e *Engine) refreshMetrics() {
	now := time.Now()

	for _, d := range e.state.Devices {
		attackMult := 1.0
		if d.Compromised {
			attackMult = 1.5
		}
		tamperMult := 1.0
		if d.IntegrityRisk {
			tamperMult = 1.3
		}

		fresh := synthesizeMetrics(baselineFor(d.Category), attackMult, tamperMult, e.rng)

		fresh.FailedAuth = d.Metrics.FailedAuth
		if e.rng.Float64() < failedAuthDecayProbability && fresh.FailedAuth > 0 {
			fresh.FailedAuth--
		}

		if d.Metrics.BatteryLevel != nil {
			level := max0(*d.Metrics.BatteryLevel - 0.05*e.rng.Float64())
			fresh.BatteryLevel = &level
		}

		d.Metrics = fresh
	}

	e.state.LastUpdated = now
}

// refreshRisk recomputes every device's risk score and reports moves
// larger than the change threshold. Caller holds the engine lock.
func (e *Engine) refreshRisk() {
	for _, d := range e.state.Devices {
		previous := d.RiskScore
		d.RiskScore = riskScore(d)

		if math.Abs(d.RiskScore-previous) > riskChangeThreshold {
			direction := "increased"
			if d.RiskScore < previous {
				direction = "decreased"
			}
			e.emitDeviceEvent(d, models.EventTypeRiskChange, models.SeverityInfo,
				fmt.Sprintf("Risk score for %s %s to %.0f", d.Name, direction, d.RiskScore),
				models.Variables{
					"previousScore": previous,
					"newScore":      d.RiskScore,
				})
		}
	}

	e.state.LastUpdated = time.Now()
}

// emitDeviceEvent emits an event tied to one device and records it as the
// device's most recent event. Caller holds the engine lock.
func (e *Engine) emitDeviceEvent(d *models.Device, typ models.EventType, severity models.EventSeverity, message string, details models.Variables) {
	ev := &models.SimulationEvent{
		ID:         uuid.New(),
		Timestamp:  time.Now(),
		DeviceID:   d.ID,
		DeviceName: d.Name,
		Type:       typ,
		Severity:   severity,
		Message:    message,
		Details:    details,
	}
	d.LastEvent = ev
	e.notify(ev)
}

// emitSystemEvent emits an event not tied to any device. Caller holds the
// engine lock.
func (e *Engine) emitSystemEvent(typ models.EventType, severity models.EventSeverity, message string, details models.Variables) {
	e.notify(&models.SimulationEvent{
		ID:        uuid.New(),
		Timestamp: time.Now(),
		Type:      typ,
		Severity:  severity,
		Message:   message,
		Details:   details,
	})
}

// notify delivers an event to every listener in registration order. Each
// listener gets its own copy and its own panic isolation.
func (e *Engine) notify(ev *models.SimulationEvent) {
	metrics.EventsTotal.WithLabelValues(string(ev.Type)).Inc()

	for _, l := range e.listeners {
		dispatch(l.fn, ev.Clone())
	}
}

func dispatch(fn Listener, ev *models.SimulationEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("event_type", string(ev.Type)).
				Msg("Event listener panicked")
		}
	}()
	fn(ev)
}
