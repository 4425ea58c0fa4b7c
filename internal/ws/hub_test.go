package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simshield/simshield-server/internal/models"
	"github.com/simshield/simshield-server/internal/simulation"
	"github.com/simshield/simshield-server/internal/validation"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	m.Run()
}

func newTestHub(t *testing.T) (*Hub, *simulation.Engine) {
	t.Helper()

	engine := simulation.NewEngine(simulation.Config{
		DeviceCount:  3,
		TickInterval: time.Hour,
	})
	return NewHub(engine, validation.NewValidator()), engine
}

// dialTestHub starts the hub run loop, serves it over httptest and dials in
func dialTestHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

// readEnvelope reads frames until one of the wanted type arrives
func readEnvelope(t *testing.T, conn *websocket.Conn, wantType string) Envelope {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))

	for {
		var env Envelope
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &env))
		if env.Type == wantType {
			return env
		}
		require.True(t, time.Now().Before(deadline), "no %q frame received", wantType)
	}
}

func decodeState(t *testing.T, env Envelope) models.SimulationState {
	t.Helper()

	raw, err := json.Marshal(env.Payload)
	require.NoError(t, err)

	var state models.SimulationState
	require.NoError(t, json.Unmarshal(raw, &state))
	return state
}

func TestClientReceivesInitialState(t *testing.T) {
	h, _ := newTestHub(t)
	conn := dialTestHub(t, h)

	state := decodeState(t, readEnvelope(t, conn, PushState))
	assert.False(t, state.Running)
	assert.Len(t, state.Devices, 3)
}

func TestStartCommandRoundTrip(t *testing.T) {
	h, engine := newTestHub(t)
	conn := dialTestHub(t, h)

	readEnvelope(t, conn, PushState)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandStart}))

	deadline := time.Now().Add(3 * time.Second)
	for {
		state := decodeState(t, readEnvelope(t, conn, PushState))
		if state.Running {
			break
		}
		require.True(t, time.Now().Before(deadline), "no running state push received")
	}

	assert.True(t, engine.State().Running)
}

func TestSetAttackCommandReachesEngine(t *testing.T) {
	h, engine := newTestHub(t)
	conn := dialTestHub(t, h)

	readEnvelope(t, conn, PushState)

	payload, _ := json.Marshal(map[string]interface{}{"dictionaryAttack": 80})
	require.NoError(t, conn.WriteJSON(Command{Type: CommandSetAttack, Payload: payload}))

	deadline := time.Now().Add(3 * time.Second)
	for engine.State().Attack.DictionaryAttack != 80 {
		require.True(t, time.Now().Before(deadline), "attack update never applied")
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInvalidAttackCommandRejected(t *testing.T) {
	h, engine := newTestHub(t)
	conn := dialTestHub(t, h)

	readEnvelope(t, conn, PushState)

	payload, _ := json.Marshal(map[string]interface{}{"mqttFlood": 500})
	require.NoError(t, conn.WriteJSON(Command{Type: CommandSetAttack, Payload: payload}))

	env := readEnvelope(t, conn, PushError)
	msg, ok := env.Payload.(string)
	require.True(t, ok)
	assert.Contains(t, msg, "mqttFlood")

	assert.Equal(t, 0.0, engine.State().Attack.MQTTFlood)
}

func TestUnknownCommandRejected(t *testing.T) {
	h, _ := newTestHub(t)
	conn := dialTestHub(t, h)

	readEnvelope(t, conn, PushState)

	require.NoError(t, conn.WriteJSON(Command{Type: "self_destruct"}))

	env := readEnvelope(t, conn, PushError)
	msg, ok := env.Payload.(string)
	require.True(t, ok)
	assert.Contains(t, msg, "unknown command")
}

func TestMalformedFrameRejected(t *testing.T) {
	h, _ := newTestHub(t)
	conn := dialTestHub(t, h)

	readEnvelope(t, conn, PushState)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	env := readEnvelope(t, conn, PushError)
	msg, ok := env.Payload.(string)
	require.True(t, ok)
	assert.Contains(t, msg, "invalid command frame")
}

func TestEngineEventsAreBroadcast(t *testing.T) {
	h, engine := newTestHub(t)
	conn := dialTestHub(t, h)

	readEnvelope(t, conn, PushState)

	engine.SetDefenseState(models.DefenseUpdate{SignatureCheck: boolPtr(true)})

	env := readEnvelope(t, conn, PushEvent)

	raw, err := json.Marshal(env.Payload)
	require.NoError(t, err)

	var event models.SimulationEvent
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, models.EventTypeDefense, event.Type)
}

func boolPtr(b bool) *bool { return &b }
