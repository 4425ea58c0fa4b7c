package simulation

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simshield/simshield-server/internal/models"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	m.Run()
}

// constRand always returns the same draw, making every probability check
// deterministic: 0 triggers everything, values near 1 trigger nothing.
type constRand struct {
	v float64
}

func (r constRand) Float64() float64 { return r.v }

func newTestEngine(t *testing.T, rng Rand) *Engine {
	t.Helper()
	return NewEngine(Config{
		DeviceCount:  5,
		TickInterval: time.Hour, // loops must never fire on their own in tests
		Rand:         rng,
	})
}

// eventRecorder captures emitted events for assertions
type eventRecorder struct {
	mu     sync.Mutex
	events []*models.SimulationEvent
}

func (r *eventRecorder) listen(e *models.SimulationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(typ models.EventType) []*models.SimulationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SimulationEvent
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func TestStartPauseWithoutTickLeavesMetricsUnchanged(t *testing.T) {
	e := newTestEngine(t, constRand{0.5})

	before := e.State()
	e.Start()
	after := e.Pause()

	assert.False(t, after.Running)
	require.Len(t, after.Devices, len(before.Devices))
	for i, d := range after.Devices {
		assert.Equal(t, before.Devices[i].Metrics, d.Metrics)
	}
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	e := newTestEngine(t, constRand{0.5})
	rec := &eventRecorder{}
	e.Subscribe(rec.listen)

	first := e.Start()
	second := e.Start()

	assert.True(t, first.Running)
	assert.True(t, second.Running)
	assert.Equal(t, first.StartedAt, second.StartedAt)
	// Only one "Simulation started" event
	assert.Len(t, rec.ofType(models.EventTypeInfo), 1)

	e.Pause()
}

func TestResetYieldsFreshZeroedState(t *testing.T) {
	e := newTestEngine(t, constRand{0.5})

	e.SetAttackState(models.AttackUpdate{
		SynFlood:       floatPtr(80),
		FirmwareTamper: boolPtr(true),
	})
	e.SetDefenseState(models.DefenseUpdate{RateLimiting: boolPtr(true)})
	e.Start()

	oldIDs := map[string]bool{}
	for _, d := range e.State().Devices {
		oldIDs[d.ID] = true
	}

	state := e.Reset()

	assert.False(t, state.Running)
	assert.Equal(t, models.AttackState{}, state.Attack)
	assert.Equal(t, models.DefenseState{}, state.Defense)
	require.Len(t, state.Devices, 5)
	for _, d := range state.Devices {
		assert.False(t, d.Compromised)
		assert.False(t, d.IntegrityRisk)
		assert.False(t, oldIDs[d.ID], "reset must create a fresh device batch")
	}

	// Reset is idempotent in shape
	again := e.Reset()
	assert.False(t, again.Running)
	assert.Equal(t, models.AttackState{}, again.Attack)
	assert.Len(t, again.Devices, 5)
}

func TestFirmwareTamperTogglesIntegrityRiskImmediately(t *testing.T) {
	e := newTestEngine(t, constRand{0.5})
	rec := &eventRecorder{}
	e.Subscribe(rec.listen)

	state := e.SetAttackState(models.AttackUpdate{FirmwareTamper: boolPtr(true)})
	for _, d := range state.Devices {
		assert.True(t, d.IntegrityRisk)
	}

	tampering := rec.ofType(models.EventTypeTampering)
	require.Len(t, tampering, 1)
	assert.Equal(t, models.SeverityCritical, tampering[0].Severity)
	assert.Equal(t, "Firmware tampering detected across all devices!", tampering[0].Message)

	state = e.SetAttackState(models.AttackUpdate{FirmwareTamper: boolPtr(false)})
	for _, d := range state.Devices {
		assert.False(t, d.IntegrityRisk)
	}
	infos := rec.ofType(models.EventTypeInfo)
	require.NotEmpty(t, infos)
	assert.Equal(t, "Firmware integrity restored", infos[len(infos)-1].Message)
}

func TestPartialAttackMergeLeavesOtherKnobsAlone(t *testing.T) {
	e := newTestEngine(t, constRand{0.5})

	e.SetAttackState(models.AttackUpdate{SynFlood: floatPtr(60)})
	state := e.SetAttackState(models.AttackUpdate{MQTTFlood: floatPtr(30)})

	assert.Equal(t, 60.0, state.Attack.SynFlood)
	assert.Equal(t, 30.0, state.Attack.MQTTFlood)
	assert.Equal(t, 0.0, state.Attack.DictionaryAttack)
}

func TestDictionaryAttackCompromisesWeakDeviceOnce(t *testing.T) {
	// A zero draw makes every probability check succeed
	e := newTestEngine(t, constRand{0})
	rec := &eventRecorder{}
	e.Subscribe(rec.listen)

	for _, d := range e.state.Devices {
		d.WeakPassword = true
		d.Compromised = false
	}
	e.SetAttackState(models.AttackUpdate{DictionaryAttack: floatPtr(100)})

	e.tick()
	for _, d := range e.state.Devices {
		assert.True(t, d.Compromised)
		assert.GreaterOrEqual(t, d.Metrics.FailedAuth, 5.0)
	}

	// A second tick must not re-compromise or re-emit
	e.tick()
	compromises := rec.ofType(models.EventTypeCompromise)
	assert.Len(t, compromises, len(e.state.Devices))
	for _, ev := range compromises {
		assert.Equal(t, models.SeverityCritical, ev.Severity)
		assert.NotEmpty(t, ev.DeviceID)
	}
}

func TestDictionaryAttackNeverCompromisesStrongDevice(t *testing.T) {
	e := newTestEngine(t, constRand{0})

	for _, d := range e.state.Devices {
		d.WeakPassword = false
	}
	e.SetAttackState(models.AttackUpdate{DictionaryAttack: floatPtr(100)})

	for i := 0; i < 10; i++ {
		e.tick()
	}
	for _, d := range e.state.Devices {
		assert.False(t, d.Compromised)
	}
}

func TestSynFloodTickRaisesTrafficAndEmitsHighSeverity(t *testing.T) {
	e := newTestEngine(t, constRand{0})
	rec := &eventRecorder{}
	e.Subscribe(rec.listen)

	type pre struct{ netIn, cpu float64 }
	before := map[string]pre{}
	for _, d := range e.state.Devices {
		d.Metrics.NetworkIn = 100
		d.Metrics.CPU = 10
		before[d.ID] = pre{netIn: 100, cpu: 10}
	}

	e.SetAttackState(models.AttackUpdate{SynFlood: floatPtr(80)})
	e.tick()

	for _, d := range e.state.Devices {
		b := before[d.ID]
		assert.GreaterOrEqual(t, d.Metrics.NetworkIn, b.netIn+500*0.8)
		assert.GreaterOrEqual(t, d.Metrics.CPU, b.cpu+10*0.8)
	}

	attacks := rec.ofType(models.EventTypeAttack)
	require.NotEmpty(t, attacks)
	foundHigh := false
	for _, ev := range attacks {
		if ev.Severity == models.SeverityHigh {
			foundHigh = true
		}
	}
	assert.True(t, foundHigh, "80 intensity is above the high-severity threshold")
}

func TestMQTTFloodOnlyBumpsMessageRateWhereItExists(t *testing.T) {
	e := newTestEngine(t, constRand{0})

	rates := map[string]float64{}
	for _, d := range e.state.Devices {
		if d.Metrics.MessageRate != nil {
			rates[d.ID] = *d.Metrics.MessageRate
		}
	}

	e.SetAttackState(models.AttackUpdate{MQTTFlood: floatPtr(100)})
	e.tick()

	for _, d := range e.state.Devices {
		if prev, ok := rates[d.ID]; ok {
			require.NotNil(t, d.Metrics.MessageRate)
			assert.GreaterOrEqual(t, *d.Metrics.MessageRate, prev+50)
		} else {
			assert.Nil(t, d.Metrics.MessageRate)
		}
	}
}

func TestRateLimitingClampsTraffic(t *testing.T) {
	e := newTestEngine(t, constRand{0.999})

	for _, d := range e.state.Devices {
		d.Metrics.NetworkIn = 5000
		if d.Metrics.MessageRate != nil {
			*d.Metrics.MessageRate = 500
		}
	}
	e.SetDefenseState(models.DefenseUpdate{RateLimiting: boolPtr(true)})

	e.tick()
	for _, d := range e.state.Devices {
		assert.LessOrEqual(t, d.Metrics.NetworkIn, 1000.0)
		if d.Metrics.MessageRate != nil {
			assert.LessOrEqual(t, *d.Metrics.MessageRate, 100.0)
		}
	}
}

func TestAccountLockoutHoldsFailedAuthAtThreshold(t *testing.T) {
	e := newTestEngine(t, constRand{0.999})

	e.state.Devices[0].Metrics.FailedAuth = 12
	e.SetDefenseState(models.DefenseUpdate{AccountLockout: boolPtr(true)})

	e.tick()
	assert.Equal(t, 5.0, e.state.Devices[0].Metrics.FailedAuth)
}

func TestSignatureCheckClearsIntegrityRisk(t *testing.T) {
	e := newTestEngine(t, constRand{0.999})
	rec := &eventRecorder{}
	e.Subscribe(rec.listen)

	e.state.Devices[0].IntegrityRisk = true
	e.SetDefenseState(models.DefenseUpdate{SignatureCheck: boolPtr(true)})

	e.tick()
	assert.False(t, e.state.Devices[0].IntegrityRisk)

	defenses := rec.ofType(models.EventTypeDefense)
	require.NotEmpty(t, defenses)
	assert.Equal(t, e.state.Devices[0].ID, defenses[len(defenses)-1].DeviceID)
}

func TestTickNormalizesMetricBounds(t *testing.T) {
	e := newTestEngine(t, constRand{0.999})

	e.state.Devices[0].Metrics.CPU = 95
	e.SetAttackState(models.AttackUpdate{SynFlood: floatPtr(100)})

	e.tick()
	for _, d := range e.state.Devices {
		assert.LessOrEqual(t, d.Metrics.CPU, 100.0)
		assert.GreaterOrEqual(t, d.Metrics.CPU, 0.0)
		assert.GreaterOrEqual(t, d.Metrics.Memory, 0.0)
		assert.LessOrEqual(t, d.Metrics.Memory, 100.0)
	}
}

func TestStateSnapshotsAreDeepAndIndependent(t *testing.T) {
	e := newTestEngine(t, constRand{0.5})

	first := e.State()
	second := e.State()

	require.NotSame(t, first, second)
	assert.Equal(t, first, second)

	// Mutating a snapshot must not leak into the engine or other snapshots
	first.Devices[0].Metrics.CPU = 999
	first.Devices[0].OpenPorts[0] = -1
	first.Attack.SynFlood = 999

	fresh := e.State()
	assert.Equal(t, second, fresh)
}

func TestMetricRefreshAppliesCompromiseAndTamperMultipliers(t *testing.T) {
	// 0.5 keeps jitter at exactly 1.0, isolating the multipliers
	e := newTestEngine(t, constRand{0.5})

	d := e.state.Devices[0]
	d.Compromised = true
	d.IntegrityRisk = true
	b := baselineFor(d.Category)

	e.refreshMetrics()
	assert.InDelta(t, clamp(b.CPU*1.5*1.3, 0, 100), d.Metrics.CPU, 0.001)
	assert.InDelta(t, b.NetworkIn*1.5*1.3, d.Metrics.NetworkIn, 0.001)
}

func TestMetricRefreshDecaysFailedAuthAndBattery(t *testing.T) {
	// 0.1 < 0.3 so the decay draw always succeeds
	e := newTestEngine(t, constRand{0.1})

	d := e.state.Devices[0]
	d.Metrics.FailedAuth = 3
	battery := 50.0
	d.Metrics.BatteryLevel = &battery

	e.refreshMetrics()
	assert.Equal(t, 2.0, d.Metrics.FailedAuth)
	require.NotNil(t, d.Metrics.BatteryLevel)
	assert.Less(t, *d.Metrics.BatteryLevel, 50.0)

	// failedAuth never decays below zero
	d.Metrics.FailedAuth = 0
	e.refreshMetrics()
	assert.Equal(t, 0.0, d.Metrics.FailedAuth)
}

func TestRiskRefreshEmitsChangeEventsPastThreshold(t *testing.T) {
	e := newTestEngine(t, constRand{0.5})
	rec := &eventRecorder{}
	e.Subscribe(rec.listen)

	d := e.state.Devices[0]
	d.RiskScore = 0
	d.Compromised = true // guarantees a move well past the threshold

	e.refreshRisk()
	changes := rec.ofType(models.EventTypeRiskChange)
	require.NotEmpty(t, changes)
	assert.Equal(t, d.ID, changes[0].DeviceID)

	// A second refresh with no change stays quiet
	before := len(changes)
	e.refreshRisk()
	assert.Len(t, rec.ofType(models.EventTypeRiskChange), before)
}

func TestListenerPanicDoesNotBlockDelivery(t *testing.T) {
	e := newTestEngine(t, constRand{0.5})

	var order []string
	e.Subscribe(func(*models.SimulationEvent) {
		order = append(order, "first")
		panic("listener failure")
	})
	e.Subscribe(func(*models.SimulationEvent) {
		order = append(order, "second")
	})

	e.emitSystemEvent(models.EventTypeInfo, models.SeverityInfo, "probe", nil)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	e := newTestEngine(t, constRand{0.5})
	rec := &eventRecorder{}

	sub := e.Subscribe(rec.listen)
	e.emitSystemEvent(models.EventTypeInfo, models.SeverityInfo, "one", nil)
	sub.Unsubscribe()
	sub.Unsubscribe() // safe to repeat
	e.emitSystemEvent(models.EventTypeInfo, models.SeverityInfo, "two", nil)

	assert.Len(t, rec.ofType(models.EventTypeInfo), 1)
}

func TestListenersReceiveIndependentCopies(t *testing.T) {
	e := newTestEngine(t, constRand{0.5})

	var got *models.SimulationEvent
	e.Subscribe(func(ev *models.SimulationEvent) {
		ev.Message = "mutated"
		ev.Details["k"] = "poisoned"
	})
	e.Subscribe(func(ev *models.SimulationEvent) {
		got = ev
	})

	e.emitSystemEvent(models.EventTypeInfo, models.SeverityInfo, "original", models.Variables{"k": "v"})

	require.NotNil(t, got)
	assert.Equal(t, "original", got.Message)
	assert.Equal(t, "v", got.Details["k"])
}

func TestPauseAndResetStopLoops(t *testing.T) {
	e := NewEngine(Config{
		DeviceCount:  3,
		TickInterval: 5 * time.Millisecond,
		Rand:         constRand{0.999},
	})

	e.Start()
	time.Sleep(30 * time.Millisecond)

	state := e.Reset()
	assert.False(t, state.Running)

	// No loop body may run after Reset returns
	marker := e.State().LastUpdated
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, marker, e.State().LastUpdated)
}
