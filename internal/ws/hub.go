package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/simshield/simshield-server/internal/metrics"
	"github.com/simshield/simshield-server/internal/models"
	"github.com/simshield/simshield-server/internal/simulation"
	"github.com/simshield/simshield-server/internal/validation"
)

// statePushInterval is the fixed cadence of full-state pushes, independent
// of the engine tick interval
const statePushInterval = 1 * time.Second

type directed struct {
	conn    *websocket.Conn
	payload []byte
}

// Hub fans engine state and events out to connected dashboard clients and
// feeds client commands back into the engine. The run loop is the sole
// writer on every connection.
type Hub struct {
	engine    *simulation.Engine
	validator *validation.Validator
	upgrader  websocket.Upgrader

	clients   map[*websocket.Conn]bool
	register  chan *websocket.Conn
	remove    chan *websocket.Conn
	broadcast chan []byte
	direct    chan directed
}

// NewHub creates a hub bound to the engine
func NewHub(engine *simulation.Engine, validator *validation.Validator) *Hub {
	return &Hub{
		engine:    engine,
		validator: validator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]bool),
		register:  make(chan *websocket.Conn),
		remove:    make(chan *websocket.Conn),
		broadcast: make(chan []byte, 64),
		direct:    make(chan directed, 64),
	}
}

// Run drives the hub until the context is cancelled. It subscribes to the
// engine for events and pushes the full state once per second.
func (h *Hub) Run(ctx context.Context) {
	sub := h.engine.Subscribe(func(event *models.SimulationEvent) {
		frame, err := json.Marshal(Envelope{Type: PushEvent, Payload: event})
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal event push")
			return
		}
		// Never block the engine's emit path
		select {
		case h.broadcast <- frame:
		default:
			log.Debug().Msg("WebSocket broadcast queue full, dropping event frame")
		}
	})
	defer sub.Unsubscribe()

	ticker := time.NewTicker(statePushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				conn.Close()
			}
			return

		case conn := <-h.register:
			h.clients[conn] = true
			metrics.ConnectedClients.Set(float64(len(h.clients)))
			h.write(conn, h.stateFrame())

		case conn := <-h.remove:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				metrics.ConnectedClients.Set(float64(len(h.clients)))
			}

		case frame := <-h.broadcast:
			for conn := range h.clients {
				h.write(conn, frame)
			}

		case msg := <-h.direct:
			h.write(msg.conn, msg.payload)

		case <-ticker.C:
			if len(h.clients) == 0 {
				continue
			}
			frame := h.stateFrame()
			for conn := range h.clients {
				h.write(conn, frame)
			}
		}
	}
}

func (h *Hub) stateFrame() []byte {
	frame, err := json.Marshal(Envelope{Type: PushState, Payload: h.engine.State()})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal state push")
		return nil
	}
	return frame
}

func (h *Hub) write(conn *websocket.Conn, frame []byte) {
	if frame == nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.Warn().Err(err).Msg("Failed to write WebSocket frame, dropping client")
		delete(h.clients, conn)
		conn.Close()
		metrics.ConnectedClients.Set(float64(len(h.clients)))
	}
}

// HandleWS upgrades the connection and starts its read loop
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.register <- conn
	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.remove <- conn
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleCommand(conn, raw)
	}
}

// handleCommand parses and applies one client command. Invalid commands
// are rejected at this boundary and never reach the engine.
func (h *Hub) handleCommand(conn *websocket.Conn, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		h.sendError(conn, "invalid command frame")
		return
	}

	switch cmd.Type {
	case CommandStart:
		h.engine.Start()
	case CommandPause:
		h.engine.Pause()
	case CommandReset:
		h.engine.Reset()

	case CommandSetAttack:
		var update models.AttackUpdate
		if err := json.Unmarshal(cmd.Payload, &update); err != nil {
			h.sendError(conn, "invalid attack payload")
			return
		}
		if err := h.validator.Validate(update); err != nil {
			h.sendError(conn, err.Error())
			return
		}
		h.engine.SetAttackState(update)

	case CommandSetDefense:
		var update models.DefenseUpdate
		if err := json.Unmarshal(cmd.Payload, &update); err != nil {
			h.sendError(conn, "invalid defense payload")
			return
		}
		h.engine.SetDefenseState(update)

	default:
		h.sendError(conn, fmt.Sprintf("unknown command type %q", cmd.Type))
		return
	}

	// Push the post-command state to everyone right away
	select {
	case h.broadcast <- h.stateFrame():
	default:
	}
}

func (h *Hub) sendError(conn *websocket.Conn, message string) {
	frame, err := json.Marshal(Envelope{Type: PushError, Payload: message})
	if err != nil {
		return
	}
	select {
	case h.direct <- directed{conn: conn, payload: frame}:
	default:
	}
}
