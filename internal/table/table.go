package table

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jfelden/wordstack/internal/game"
	"github.com/jfelden/wordstack/internal/models"
)

// Contention and validation errors. Callers reject the command and leave
// state untouched; clients re-query on contention.
var (
	ErrSeatOccupied   = errors.New("seat is occupied")
	ErrInvalidSeat    = errors.New("invalid seat number")
	ErrNotSeated      = errors.New("player is not seated at this table")
	ErrTableActive    = errors.New("table already has an active game")
	ErrNotEnoughTeams = errors.New("not enough ready teams")
	ErrNotHost        = errors.New("only the host may do that")
)

// MinReadyTeamsCount gates the countdown: at least this many teams must
// have every occupied seat ready.
const MinReadyTeamsCount = 2

// CountdownSeconds between the start command and the game going active.
const CountdownSeconds = 5

// Table is the live orchestration object for one table. Its mutex is the
// unit of serialization: every mutating operation on seats or the game is
// processed one at a time per table, while different tables run in parallel.
type Table struct {
	ID           uuid.UUID
	RoomID       uuid.UUID
	Slot         int
	Visibility   string
	Rated        bool
	HostPlayerID uuid.UUID
	State        string

	Seats map[int]*models.TableSeat
	Game  *game.Game

	// CountdownTimer is non-nil only while State == countdown.
	CountdownTimer *time.Timer

	// OnEmpty is called after the last seat vacates so the store can
	// destroy the table.
	OnEmpty func(tableID uuid.UUID)

	// OnCommit receives the outbox of a timer-driven transition after the
	// mutation is committed, so nothing is published for a mutation that
	// later fails to persist. Command paths return their outbox instead.
	OnCommit func(t *Table, events []game.Event)

	Mu  sync.Mutex
	Log *logrus.Logger
}

// NewTable creates an idle table with empty seats in the given room slot.
func NewTable(roomID uuid.UUID, slot int, visibility string, rated bool, host uuid.UUID, logger *logrus.Logger) *Table {
	id, _ := uuid.NewRandom()
	if logger == nil {
		logger = logrus.New()
	}
	t := &Table{
		ID:           id,
		RoomID:       roomID,
		Slot:         slot,
		Visibility:   visibility,
		Rated:        rated,
		HostPlayerID: host,
		State:        models.TableIdle,
		Seats:        make(map[int]*models.TableSeat, models.SeatsPerTable),
		Log:          logger,
	}
	for n := 1; n <= models.SeatsPerTable; n++ {
		seatID, _ := uuid.NewRandom()
		t.Seats[n] = &models.TableSeat{ID: seatID, TableID: id, SeatNumber: n}
	}
	return t
}

// Record returns the persistable table row.
func (t *Table) Record() *models.Table {
	return &models.Table{
		ID:           t.ID,
		RoomID:       t.RoomID,
		Slot:         t.Slot,
		Visibility:   t.Visibility,
		Rated:        t.Rated,
		HostPlayerID: t.HostPlayerID,
		State:        t.State,
	}
}

// Sit seats a player. Sitting in one's own current seat is an idempotent
// no-op, so a reconnecting player re-attaches instead of erroring.
// Acquires the table lock.
func (t *Table) Sit(playerID uuid.UUID, seatNum int) ([]game.Event, error) {
	t.Mu.Lock()
	defer t.Mu.Unlock()
	return t.sitUnsafe(playerID, seatNum)
}

// sitUnsafe is the implementation. Assumes the lock is held.
func (t *Table) sitUnsafe(playerID uuid.UUID, seatNum int) ([]game.Event, error) {
	seat, ok := t.Seats[seatNum]
	if !ok {
		return nil, ErrInvalidSeat
	}
	if seat.PlayerID == playerID {
		return nil, nil // reconnect; already here
	}
	if seat.Occupied() {
		return nil, ErrSeatOccupied
	}
	if t.State == models.TableActive || t.State == models.TableCountdown {
		return nil, ErrTableActive
	}
	// Moving seats vacates the old one.
	for _, s := range t.Seats {
		if s.PlayerID == playerID {
			s.PlayerID = uuid.Nil
			s.Ready = false
		}
	}
	seat.PlayerID = playerID
	seat.Ready = false
	t.Log.WithFields(logrus.Fields{"table": t.ID, "seat": seatNum, "player": playerID}).Info("player sat down")
	return []game.Event{t.seatEventUnsafe(seatNum)}, nil
}

// Stand vacates the player's seat. During an active game the seat forfeits.
// When the last seat vacates, OnEmpty fires (outside the lock).
func (t *Table) Stand(playerID uuid.UUID) ([]game.Event, error) {
	t.Mu.Lock()
	seat := t.seatOfUnsafe(playerID)
	if seat == nil {
		t.Mu.Unlock()
		return nil, ErrNotSeated
	}
	events := t.vacateUnsafe(seat)
	empty := t.occupiedCountUnsafe() == 0
	onEmpty := t.OnEmpty
	t.Mu.Unlock()

	if empty && onEmpty != nil {
		onEmpty(t.ID)
	}
	return events, nil
}

// Boot removes a seated player at the host's request. Same seat semantics
// as Stand, plus a booted notification for the target.
func (t *Table) Boot(hostID uuid.UUID, seatNum int) ([]game.Event, error) {
	t.Mu.Lock()
	if t.HostPlayerID != hostID {
		t.Mu.Unlock()
		return nil, ErrNotHost
	}
	seat, ok := t.Seats[seatNum]
	if !ok {
		t.Mu.Unlock()
		return nil, ErrInvalidSeat
	}
	if !seat.Occupied() {
		t.Mu.Unlock()
		return nil, ErrNotSeated
	}
	booted := seat.PlayerID
	events := t.vacateUnsafe(seat)
	events = append(events, game.Event{
		Type:    game.EventBooted,
		TableID: t.ID,
		Seat:    seatNum,
		Payload: map[string]interface{}{"player_id": booted.String(), "host_id": hostID.String()},
	})
	empty := t.occupiedCountUnsafe() == 0
	onEmpty := t.OnEmpty
	t.Mu.Unlock()

	if empty && onEmpty != nil {
		onEmpty(t.ID)
	}
	return events, nil
}

// vacateUnsafe empties a seat, forfeiting it if a game is running and
// cancelling the countdown if one is pending. Assumes the lock is held.
func (t *Table) vacateUnsafe(seat *models.TableSeat) []game.Event {
	playerID := seat.PlayerID
	seat.PlayerID = uuid.Nil
	seat.Ready = false

	if t.State == models.TableCountdown {
		t.cancelCountdownUnsafe()
	}
	if t.State == models.TableActive && t.Game != nil {
		// Forfeit outside the table lock ordering concern: Game has its
		// own mutex and never calls back into the table synchronously.
		go t.Game.Forfeit(playerID)
	}
	t.Log.WithFields(logrus.Fields{"table": t.ID, "seat": seat.SeatNumber, "player": playerID}).Info("seat vacated")
	return []game.Event{t.seatEventUnsafe(seat.SeatNumber)}
}

// ToggleReady flips the player's ready flag. Valid only while idle.
func (t *Table) ToggleReady(playerID uuid.UUID) ([]game.Event, error) {
	t.Mu.Lock()
	defer t.Mu.Unlock()
	if t.State == models.TableActive {
		return nil, ErrTableActive
	}
	seat := t.seatOfUnsafe(playerID)
	if seat == nil {
		return nil, ErrNotSeated
	}
	seat.Ready = !seat.Ready
	events := []game.Event{t.seatEventUnsafe(seat.SeatNumber)}
	if !seat.Ready && t.State == models.TableCountdown {
		t.cancelCountdownUnsafe()
		events = append(events, t.tableEventUnsafe())
	}
	return events, nil
}

// StartCountdown transitions idle -> countdown when at least
// MinReadyTeamsCount teams have every occupied seat ready. The countdown
// expiry no-ops if the table left countdown in the meantime.
func (t *Table) StartCountdown(playerID uuid.UUID) ([]game.Event, error) {
	t.Mu.Lock()
	defer t.Mu.Unlock()
	if t.State != models.TableIdle {
		return nil, ErrTableActive
	}
	if t.seatOfUnsafe(playerID) == nil {
		return nil, ErrNotSeated
	}
	if t.readyTeamCountUnsafe() < MinReadyTeamsCount {
		return nil, ErrNotEnoughTeams
	}

	t.State = models.TableCountdown
	var timer *time.Timer
	timer = time.AfterFunc(CountdownSeconds*time.Second, func() {
		t.countdownExpired(timer)
	})
	t.CountdownTimer = timer
	t.Log.WithFields(logrus.Fields{"table": t.ID}).Info("countdown started")

	return []game.Event{
		t.tableEventUnsafe(),
		{Type: game.EventGameCountdown, TableID: t.ID, Payload: map[string]interface{}{"seconds": CountdownSeconds}},
	}, nil
}

// countdownExpired is the timer callback. Stale timers (countdown cancelled
// and possibly restarted) are ignored.
func (t *Table) countdownExpired(timer *time.Timer) {
	t.Mu.Lock()
	if t.State != models.TableCountdown || t.CountdownTimer != timer {
		t.Mu.Unlock()
		t.Log.WithFields(logrus.Fields{"table": t.ID}).Debug("stale countdown timer fired, ignoring")
		return
	}
	t.CountdownTimer = nil
	events := t.startGameUnsafe()
	onCommit := t.OnCommit
	t.Mu.Unlock()

	if onCommit != nil {
		onCommit(t, events)
	}
}

// startGameUnsafe instantiates the authoritative game with one board, next
// pieces queue and power bar per occupied seat. Assumes the lock is held.
func (t *Table) startGameUnsafe() []game.Event {
	occupants := make(map[int]uuid.UUID)
	for n, s := range t.Seats {
		if s.Occupied() {
			occupants[n] = s.PlayerID
		}
	}
	t.State = models.TableActive
	g := game.NewGame(t.ID, occupants, time.Now().UnixNano(), t.Log)
	t.Game = g
	t.Log.WithFields(logrus.Fields{"table": t.ID, "game": g.ID, "seats": len(occupants)}).Info("game started")
	return []game.Event{t.tableEventUnsafe()}
}

// FinishGame resolves an active game: the table passes through finished
// (broadcast so clients render the result) and settles back to idle with
// every ready flag cleared, so the next game needs a fresh ready round.
func (t *Table) FinishGame() []game.Event {
	t.Mu.Lock()
	defer t.Mu.Unlock()
	if t.State != models.TableActive {
		return nil
	}
	t.State = models.TableFinished
	t.Game = nil
	events := []game.Event{t.tableEventUnsafe()}
	for n, s := range t.Seats {
		if s.Ready {
			s.Ready = false
			events = append(events, t.seatEventUnsafe(n))
		}
	}
	t.State = models.TableIdle
	events = append(events, t.tableEventUnsafe())
	return events
}

// ClaimSeatForInvite seats an invitee as part of invitation acceptance.
// Fails with ErrSeatOccupied if another accept took the seat first; the
// caller runs this inside the same transaction scope as the invitation
// status update.
func (t *Table) ClaimSeatForInvite(playerID uuid.UUID, seatNum int) ([]game.Event, error) {
	t.Mu.Lock()
	defer t.Mu.Unlock()
	seat, ok := t.Seats[seatNum]
	if !ok {
		return nil, ErrInvalidSeat
	}
	if seat.Occupied() && seat.PlayerID != playerID {
		return nil, ErrSeatOccupied
	}
	return t.sitUnsafe(playerID, seatNum)
}

// PlayerSeat returns the seat number a player occupies, or 0.
func (t *Table) PlayerSeat(playerID uuid.UUID) int {
	t.Mu.Lock()
	defer t.Mu.Unlock()
	if s := t.seatOfUnsafe(playerID); s != nil {
		return s.SeatNumber
	}
	return 0
}

// cancelCountdownUnsafe stops a pending countdown. Assumes the lock is held.
func (t *Table) cancelCountdownUnsafe() {
	if t.CountdownTimer != nil {
		t.CountdownTimer.Stop()
		t.CountdownTimer = nil
	}
	t.State = models.TableIdle
	t.Log.WithFields(logrus.Fields{"table": t.ID}).Info("countdown cancelled")
}

// readyTeamCountUnsafe counts teams whose occupied seats are all ready and
// which have at least one occupied seat. Assumes the lock is held.
func (t *Table) readyTeamCountUnsafe() int {
	occupied := make(map[int]int)
	ready := make(map[int]int)
	for _, s := range t.Seats {
		if !s.Occupied() {
			continue
		}
		occupied[s.Team()]++
		if s.Ready {
			ready[s.Team()]++
		}
	}
	n := 0
	for team, occ := range occupied {
		if occ > 0 && ready[team] == occ {
			n++
		}
	}
	return n
}

func (t *Table) seatOfUnsafe(playerID uuid.UUID) *models.TableSeat {
	for _, s := range t.Seats {
		if s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

func (t *Table) occupiedCountUnsafe() int {
	n := 0
	for _, s := range t.Seats {
		if s.Occupied() {
			n++
		}
	}
	return n
}

// seatEventUnsafe builds the seat-updated notification for one seat.
func (t *Table) seatEventUnsafe(seatNum int) game.Event {
	s := t.Seats[seatNum]
	return game.Event{
		Type:    game.EventSeatUpdated,
		TableID: t.ID,
		Seat:    seatNum,
		Payload: map[string]interface{}{
			"player_id": s.PlayerID.String(),
			"team":      s.Team(),
			"ready":     s.Ready,
			"occupied":  s.Occupied(),
		},
	}
}

// tableEventUnsafe builds the table-updated notification.
func (t *Table) tableEventUnsafe() game.Event {
	ev := game.Event{
		Type:    game.EventTableUpdated,
		TableID: t.ID,
		Payload: map[string]interface{}{
			"room_id":    t.RoomID.String(),
			"slot":       t.Slot,
			"state":      t.State,
			"visibility": t.Visibility,
			"rated":      t.Rated,
			"host":       t.HostPlayerID.String(),
		},
	}
	if t.Game != nil {
		ev.Payload["game_id"] = t.Game.ID.String()
	}
	return ev
}

// String implements fmt.Stringer for log readability.
func (t *Table) String() string {
	return fmt.Sprintf("table %s (room %s slot %d, %s)", t.ID, t.RoomID, t.Slot, t.State)
}
