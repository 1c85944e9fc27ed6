// Package gateway fans quiz events out to websocket clients and answers
// their commands. One connection pool per competition plus a shared pool
// for list viewers.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/witslabs/quizwall/go/internal/bus"
)

// ConnectionManager owns the websocket connection pools.
type ConnectionManager struct {
	competitionConnections map[uuid.UUID]map[*Connection]bool
	listConnections        map[*Connection]bool
	mu                     sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	commands *CommandHandler

	broadcastCh chan broadcastMessage
}

// Connection is one websocket client. UserID is uuid.Nil for spectators,
// CompetitionID is uuid.Nil for list connections.
type Connection struct {
	ID            string
	UserID        uuid.UUID
	CompetitionID uuid.UUID
	Conn          *websocket.Conn
	Send          chan []byte
	Manager       *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds websocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	competitionID uuid.UUID
	list          bool
	data          []byte
}

// DefaultConnectionConfig returns the production websocket settings.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  2048,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig, commands *CommandHandler) *ConnectionManager {
	return &ConnectionManager{
		competitionConnections: make(map[uuid.UUID]map[*Connection]bool),
		listConnections:        make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		commands:    commands,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// Start processes broadcast messages until the context ends.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request into a managed websocket
// connection and starts its pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID, competitionID uuid.UUID) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:            uuid.New().String(),
		UserID:        userID,
		CompetitionID: competitionID,
		Conn:          conn,
		Send:          make(chan []byte, 256),
		Manager:       cm,
		ConnectedAt:   time.Now(),
		LastPing:      time.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID.String()).
		Str("competition_id", competitionID.String()).
		Msg("websocket connection established")
	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn.CompetitionID == uuid.Nil {
		cm.listConnections[conn] = true
		return
	}
	if cm.competitionConnections[conn.CompetitionID] == nil {
		cm.competitionConnections[conn.CompetitionID] = make(map[*Connection]bool)
	}
	cm.competitionConnections[conn.CompetitionID][conn] = true
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn.CompetitionID == uuid.Nil {
		if cm.listConnections[conn] {
			delete(cm.listConnections, conn)
			close(conn.Send)
		}
		return
	}
	if connections, exists := cm.competitionConnections[conn.CompetitionID]; exists {
		if connections[conn] {
			delete(connections, conn)
			close(conn.Send)
			if len(connections) == 0 {
				delete(cm.competitionConnections, conn.CompetitionID)
			}
			log.Info().
				Str("connection_id", conn.ID).
				Str("competition_id", conn.CompetitionID.String()).
				Msg("connection unregistered")
		}
	}
}

// BroadcastToCompetition queues an event for every connection watching a
// competition.
func (cm *ConnectionManager) BroadcastToCompetition(competitionID uuid.UUID, event bus.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}
	select {
	case cm.broadcastCh <- broadcastMessage{competitionID: competitionID, data: data}:
	default:
		log.Warn().Str("competition_id", competitionID.String()).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToList queues an event for every list viewer.
func (cm *ConnectionManager) BroadcastToList(event bus.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}
	select {
	case cm.broadcastCh <- broadcastMessage{list: true, data: data}:
	default:
		log.Warn().Msg("broadcast channel full, dropping list message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	if message.list {
		for conn := range cm.listConnections {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.competitionConnections[message.competitionID] {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.Send <- message.data:
		default:
			// Slow consumer; drop the connection, not the event stream.
			log.Warn().Str("connection_id", conn.ID).Msg("send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
}

// ConnectionStats summarizes the live pools.
type ConnectionStats struct {
	TotalConnections   int            `json:"total_connections"`
	ListConnections    int            `json:"list_connections"`
	ActiveCompetitions int            `json:"active_competitions"`
	PerCompetition     map[string]int `json:"per_competition"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ListConnections:    len(cm.listConnections),
		ActiveCompetitions: len(cm.competitionConnections),
		PerCompetition:     make(map[string]int),
	}
	stats.TotalConnections = len(cm.listConnections)
	for id, connections := range cm.competitionConnections {
		stats.TotalConnections += len(connections)
		stats.PerCompetition[id.String()] = len(connections)
	}
	return stats
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			break
		}
		if response := c.Manager.commands.Handle(context.Background(), c.UserID, c.CompetitionID, message); response != nil {
			select {
			case c.Send <- response:
			default:
				log.Warn().Str("connection_id", c.ID).Msg("send buffer full, dropping command response")
			}
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
