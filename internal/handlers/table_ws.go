// internal/handlers/table_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jfelden/wordstack/internal/auth"
	"github.com/jfelden/wordstack/internal/database"
	"github.com/jfelden/wordstack/internal/game"
	"github.com/jfelden/wordstack/internal/models"
	"github.com/jfelden/wordstack/internal/relay"
	"github.com/jfelden/wordstack/internal/table"
)

// MaxChatLength caps a single chat line.
const MaxChatLength = 500

// wsCommand is the envelope every inbound client message decodes into.
// Fields irrelevant to a given type are left zero.
type wsCommand struct {
	Type         string `json:"type"`
	TableID      string `json:"table_id,omitempty"`
	Seat         int    `json:"seat,omitempty"`
	Direction    string `json:"direction,omitempty"`
	PlacementID  int    `json:"placement_id,omitempty"`
	TargetSeat   int    `json:"target_seat,omitempty"`
	Text         string `json:"text,omitempty"`
	PlayerID     string `json:"player_id,omitempty"`
	InvitationID string `json:"invitation_id,omitempty"`
	Visibility   string `json:"visibility,omitempty"`
	Rated        bool   `json:"rated,omitempty"`

	Keys *models.PlayerControlKeys `json:"keys,omitempty"`
}

// TableWSHandler binds a websocket at /rooms/ws/{room_id} to the relay and
// routes its commands into the table and game layers.
func TableWSHandler(logger *logrus.Logger, s *TableServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/rooms/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "missing room_id", http.StatusBadRequest)
			return
		}
		roomUUID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "invalid room_id", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"table"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "table" {
			c.Close(BadSubprotocolError, "client must speak the table subprotocol")
			return
		}

		playerID, err := auth.AuthenticateRequest(r)
		if err != nil {
			logger.Warnf("auth failed for room %s: %v", roomUUID, err)
			code := websocket.StatusCode(InvalidAuthTokenError)
			if errors.Is(err, auth.ErrMalformedPlayerID) {
				code = InvalidUserIDError
			}
			c.Close(code, "authentication failed")
			return
		}

		room, ok := s.RoomByID(roomUUID)
		if !ok {
			c.Close(InvalidRoomIDError, "room does not exist")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		conn := &relay.Conn{
			ID:       uuid.New(),
			PlayerID: playerID,
			Cancel:   cancel,
			OutChan:  make(chan game.Event, 32),
		}
		s.Relay.Register(conn)
		s.Relay.Subscribe(room.ID, playerID)

		// Seed the per-viewer chat filter from durable mutes.
		if muted, err := database.GetMutedIDs(ctx, playerID); err == nil {
			s.Relay.Mutes().Load(playerID, muted)
		} else {
			logger.Warnf("mute load failed for %v: %v", playerID, err)
		}

		logger.Infof("player %v (%s) connected to room %v", playerID, remoteAddr, roomUUID)

		go tableWritePump(ctx, c, conn, logger)

		// Reconnection: if the player already holds a seat somewhere, re-attach
		// to that table's channel and resync.
		if t, found := s.Tables.FindByPlayer(playerID); found {
			s.attachToTable(ctx, conn, room, t)
		}

		tableReadPump(ctx, c, s, room, conn, logger)

		s.Relay.Unsubscribe(room.ID, playerID)
		s.Relay.Unregister(playerID, conn.ID)
		logger.Infof("player %v disconnected from room %v", playerID, roomUUID)
	}
}

// tableWritePump drains the connection's OutChan onto the socket.
func tableWritePump(ctx context.Context, c *websocket.Conn, conn *relay.Conn, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("marshal outbound event: %v", err)
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancelWrite()
			if err != nil {
				logger.Warnf("write to player %v failed: %v", conn.PlayerID, err)
				return
			}
		}
	}
}

// tableReadPump decodes inbound commands until the socket closes.
func tableReadPump(ctx context.Context, c *websocket.Conn, s *TableServer, room *table.Room, conn *relay.Conn, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("websocket closed normally for player %v", conn.PlayerID)
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("read error for player %v: %v", conn.PlayerID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var cmd wsCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			conn.WriteError("invalid JSON")
			continue
		}
		s.handleCommand(ctx, room, conn, cmd)
	}
}

// handleCommand executes one inbound command. Table mutations flow through
// the table's own mutex; events they return are dispatched only after the
// mutation persisted.
func (s *TableServer) handleCommand(ctx context.Context, room *table.Room, conn *relay.Conn, cmd wsCommand) {
	playerID := conn.PlayerID
	switch cmd.Type {
	case "create-table":
		t, err := s.CreateTable(ctx, room.ID, playerID, cmd.Visibility, cmd.Rated)
		if err != nil {
			conn.WriteError(err.Error())
			return
		}
		s.sitAt(ctx, room, conn, t, 1)

	case "sit":
		t, ok := s.tableIn(room, cmd.TableID)
		if !ok {
			conn.WriteError("table not found")
			return
		}
		s.sitAt(ctx, room, conn, t, cmd.Seat)

	case "stand":
		t, ok := s.tableIn(room, cmd.TableID)
		if !ok {
			conn.WriteError("table not found")
			return
		}
		events, err := t.Stand(playerID)
		if err != nil {
			conn.WriteError(err.Error())
			return
		}
		s.persistAndDispatch(ctx, t, events)
		s.Relay.Evict(t.ID, playerID)

	case "ready":
		t, ok := s.tableIn(room, cmd.TableID)
		if !ok {
			conn.WriteError("table not found")
			return
		}
		events, err := t.ToggleReady(playerID)
		if err != nil {
			conn.WriteError(err.Error())
			return
		}
		s.persistAndDispatch(ctx, t, events)

	case "start":
		t, ok := s.tableIn(room, cmd.TableID)
		if !ok {
			conn.WriteError("table not found")
			return
		}
		events, err := t.StartCountdown(playerID)
		if err != nil {
			conn.WriteError(err.Error())
			return
		}
		s.persistAndDispatch(ctx, t, events)

	case "boot":
		t, ok := s.tableIn(room, cmd.TableID)
		if !ok {
			conn.WriteError("table not found")
			return
		}
		bootedID := uuid.Nil
		if seat, exists := t.Seats[cmd.Seat]; exists {
			t.Mu.Lock()
			bootedID = seat.PlayerID
			t.Mu.Unlock()
		}
		events, err := t.Boot(playerID, cmd.Seat)
		if err != nil {
			conn.WriteError(err.Error())
			return
		}
		if bootedID != uuid.Nil {
			id, _ := uuid.NewRandom()
			rec := &models.TableBoot{ID: id, TableID: t.ID, HostID: playerID, BootedID: bootedID, CreatedAt: time.Now()}
			if err := database.InsertBoot(ctx, rec); err != nil {
				s.Log.WithError(err).Warn("boot record insert failed")
			}
			s.Relay.Evict(t.ID, bootedID)
		}
		s.persistAndDispatch(ctx, t, events)

	case "move":
		if g := s.gameFor(room, cmd.TableID); g != nil {
			if err := g.HandleMove(playerID, cmd.Direction); err != nil {
				conn.WriteError(err.Error())
			}
		}

	case "rotate":
		if g := s.gameFor(room, cmd.TableID); g != nil {
			if err := g.HandleRotate(playerID); err != nil {
				conn.WriteError(err.Error())
			}
		}

	case "drop":
		if g := s.gameFor(room, cmd.TableID); g != nil {
			if err := g.HandleDrop(playerID, cmd.PlacementID); err != nil {
				conn.WriteError(err.Error())
			}
		}

	case "use-item":
		if g := s.gameFor(room, cmd.TableID); g != nil {
			if err := g.HandleUseItem(playerID, cmd.TargetSeat); err != nil {
				conn.WriteError(err.Error())
			}
		}

	case "forfeit":
		if g := s.gameFor(room, cmd.TableID); g != nil {
			g.Forfeit(playerID)
		}

	case "sync":
		if g := s.gameFor(room, cmd.TableID); g != nil {
			g.SyncState(playerID)
		}

	case "chat":
		text := strings.TrimSpace(cmd.Text)
		if text == "" {
			return
		}
		if len(text) > MaxChatLength {
			text = text[:MaxChatLength]
		}
		t, ok := s.tableIn(room, cmd.TableID)
		if !ok {
			conn.WriteError("table not found")
			return
		}
		msg, ev := room.AppendChat(t.ID, playerID, text)
		if err := database.InsertChatMessage(ctx, &msg); err != nil {
			s.Log.WithError(err).Warn("chat persist failed")
		}
		s.Dispatch(ctx, []game.Event{ev})

	case "invite":
		s.handleInvite(ctx, room, conn, cmd)

	case "accept-invite":
		s.handleAcceptInvite(ctx, room, conn, cmd)

	case "decline-invite":
		invID, err := uuid.Parse(cmd.InvitationID)
		if err != nil {
			conn.WriteError("invalid invitation_id")
			return
		}
		inv, err := database.GetInvitation(ctx, invID)
		if err != nil {
			conn.WriteError("invitation not found")
			return
		}
		if inv.ToPlayer != playerID {
			conn.WriteError("invitation is not yours")
			return
		}
		if err := database.DeclineInvitation(ctx, invID); err != nil {
			conn.WriteError(err.Error())
			return
		}
		s.Relay.SendToPlayer(inv.FromPlayer, game.Event{
			Type:    game.EventInviteDeclined,
			TableID: inv.TableID,
			Payload: map[string]interface{}{"invitation_id": invID.String(), "player_id": playerID.String()},
		})

	case "mute", "unmute":
		target, err := uuid.Parse(cmd.PlayerID)
		if err != nil {
			conn.WriteError("invalid player_id")
			return
		}
		if err := s.Mute(ctx, playerID, target, cmd.Type == "mute"); err != nil {
			conn.WriteError(err.Error())
		}

	case "get-keys":
		keys, err := database.GetControlKeys(ctx, playerID)
		if err != nil {
			conn.WriteError(err.Error())
			return
		}
		conn.Write(game.Event{Type: game.EventTableUpdated, Payload: map[string]interface{}{"control_keys": keys}})

	case "set-keys":
		if cmd.Keys == nil {
			conn.WriteError("missing keys")
			return
		}
		cmd.Keys.PlayerID = playerID
		if err := database.SaveControlKeys(ctx, cmd.Keys); err != nil {
			conn.WriteError(err.Error())
		}

	default:
		conn.WriteError("unknown command type")
	}
}

// sitAt seats the player, persists, dispatches, and attaches the connection
// to the table channel with a chat replay.
func (s *TableServer) sitAt(ctx context.Context, room *table.Room, conn *relay.Conn, t *table.Table, seatNum int) {
	events, err := t.Sit(conn.PlayerID, seatNum)
	if err != nil {
		conn.WriteError(err.Error())
		return
	}
	s.persistAndDispatch(ctx, t, events)
	s.attachToTable(ctx, conn, room, t)
}

// attachToTable subscribes the connection to the table channel, replays
// recent chat, and resyncs a game in progress.
func (s *TableServer) attachToTable(ctx context.Context, conn *relay.Conn, room *table.Room, t *table.Table) {
	s.Relay.Subscribe(t.ID, conn.PlayerID)

	history, err := database.GetRecentChat(ctx, t.ID, table.ChatHistorySize)
	if err != nil {
		s.Log.WithError(err).Warn("chat replay fetch failed")
		history = nil
	}
	for _, msg := range history {
		if s.Relay.Mutes().IsMuted(conn.PlayerID, msg.PlayerID) {
			continue
		}
		conn.Write(game.Event{
			Type:    game.EventChatMessage,
			TableID: t.ID,
			Payload: map[string]interface{}{
				"message_id": msg.ID.String(),
				"player_id":  msg.PlayerID.String(),
				"text":       msg.Text,
				"sent_at":    msg.SentAt.Unix(),
			},
		})
	}

	t.Mu.Lock()
	g := t.Game
	t.Mu.Unlock()
	if g != nil {
		g.SyncState(conn.PlayerID)
	}
}

// tableIn resolves a table id string to a live table in this room.
func (s *TableServer) tableIn(room *table.Room, tableID string) (*table.Table, bool) {
	id, err := uuid.Parse(tableID)
	if err != nil {
		return nil, false
	}
	t, ok := s.Tables.Get(id)
	if !ok || t.RoomID != room.ID {
		return nil, false
	}
	return t, true
}

// gameFor returns the running game at the table, or nil when the table is
// unknown or idle.
func (s *TableServer) gameFor(room *table.Room, tableID string) *game.Game {
	t, ok := s.tableIn(room, tableID)
	if !ok {
		return nil
	}
	t.Mu.Lock()
	g := t.Game
	t.Mu.Unlock()
	if g == nil {
		return nil
	}
	return g
}

// persistAndDispatch saves the table and, only on success, releases its
// outbox.
func (s *TableServer) persistAndDispatch(ctx context.Context, t *table.Table, events []game.Event) {
	if err := s.Tables.Save(ctx, t); err != nil {
		s.Log.WithError(err).WithField("table", t.ID).Error("table save failed, outbox suppressed")
		return
	}
	s.Dispatch(ctx, events)
}

// handleInvite records an invitation and pings the invitee if connected.
func (s *TableServer) handleInvite(ctx context.Context, room *table.Room, conn *relay.Conn, cmd wsCommand) {
	t, ok := s.tableIn(room, cmd.TableID)
	if !ok {
		conn.WriteError("table not found")
		return
	}
	toPlayer, err := uuid.Parse(cmd.PlayerID)
	if err != nil {
		conn.WriteError("invalid player_id")
		return
	}
	if t.PlayerSeat(conn.PlayerID) == 0 {
		conn.WriteError("must be seated to invite")
		return
	}
	id, _ := uuid.NewRandom()
	inv := &models.TableInvitation{
		ID:         id,
		TableID:    t.ID,
		FromPlayer: conn.PlayerID,
		ToPlayer:   toPlayer,
		SeatNumber: cmd.Seat,
		Status:     models.InvitePending,
		CreatedAt:  time.Now(),
	}
	if err := database.InsertInvitation(ctx, inv); err != nil {
		conn.WriteError(err.Error())
		return
	}
	s.Relay.SendToPlayer(toPlayer, game.Event{
		Type:    game.EventInvited,
		TableID: t.ID,
		Seat:    cmd.Seat,
		Payload: map[string]interface{}{
			"invitation_id": inv.ID.String(),
			"from_player":   conn.PlayerID.String(),
			"room_id":       room.ID.String(),
		},
	})
}

// handleAcceptInvite claims the invited seat. The live table decides the
// race; the durable status update follows the successful claim.
func (s *TableServer) handleAcceptInvite(ctx context.Context, room *table.Room, conn *relay.Conn, cmd wsCommand) {
	invID, err := uuid.Parse(cmd.InvitationID)
	if err != nil {
		conn.WriteError("invalid invitation_id")
		return
	}
	inv, err := database.GetInvitation(ctx, invID)
	if err != nil {
		conn.WriteError("invitation not found")
		return
	}
	if inv.ToPlayer != conn.PlayerID {
		conn.WriteError("invitation is not yours")
		return
	}
	if inv.Status != models.InvitePending {
		conn.WriteError("invitation already resolved")
		return
	}
	t, ok := s.Tables.Get(inv.TableID)
	if !ok {
		conn.WriteError("table no longer exists")
		return
	}
	events, err := t.ClaimSeatForInvite(conn.PlayerID, inv.SeatNumber)
	if err != nil {
		conn.WriteError(err.Error())
		return
	}
	if _, err := database.AcceptInvitation(ctx, invID); err != nil {
		s.Log.WithError(err).WithField("invitation", invID).Warn("invitation status update failed")
	}
	s.persistAndDispatch(ctx, t, events)
	s.attachToTable(ctx, conn, room, t)
}
