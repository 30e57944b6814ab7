package game

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Errors surfaced to the orchestration layer. Board overflow is not here:
// it is a terminal outcome, not a rejected command.
var (
	ErrNotInGame     = errors.New("player has no seat in this game")
	ErrGameOver      = errors.New("game already over")
	ErrInvalidTarget = errors.New("invalid target seat")
	ErrEmptyBar      = errors.New("power bar is empty")
)

// DefaultDropInterval is the gravity tick. Speed-drop halves it.
const DefaultDropInterval = time.Second

// ShieldDuration is how long a level-3 defense blocks incoming attacks.
const ShieldDuration = 10 * time.Second

// MaxSeatNumber bounds seat numbering when iterating sparse seat maps.
const MaxSeatNumber = 8

// OnGameEndFunc receives the finished game's results so the table layer can
// reset seats and persist stats.
type OnGameEndFunc func(tableID uuid.UUID, winnerTeam int, results []SeatResult)

// SeatResult is one seat's terminal outcome.
type SeatResult struct {
	SeatNumber int       `json:"seat_number"`
	PlayerID   uuid.UUID `json:"player_id"`
	Team       int       `json:"team"`
	Won        bool      `json:"won"`
	Removed    int       `json:"removed"`
}

// SeatState is the live, in-memory-only game artifact set for one occupied
// seat. It exists only while the game is active and is never persisted to
// durable storage.
type SeatState struct {
	SeatNumber int
	PlayerID   uuid.UUID
	Board      *Board
	Current    *Piece
	Next       *NextPieces
	Bar        *PowerBar
	Diamonds   DiamondTracker

	// PlacementSeq is the id of the next drop this seat will accept.
	// Re-delivered drops carrying a stale id are no-ops.
	PlacementSeq int

	ShieldUntil time.Time
	SpeedDrop   bool
	Lost        bool
}

// Shielded reports whether incoming attacks currently no-op for this seat.
func (s *SeatState) Shielded() bool {
	return time.Now().Before(s.ShieldUntil)
}

// Team is derived from the seat number.
func (s *SeatState) Team() int {
	return (s.SeatNumber + 1) / 2
}

// Game is the authoritative session for one table. All mutation goes
// through Mu; the table layer guarantees at most one Game per table.
type Game struct {
	ID      uuid.UUID
	TableID uuid.UUID

	Seats map[int]*SeatState // seat number -> live state

	Started    bool
	GameOver   bool
	WinnerTeam int
	StartedAt  time.Time

	Mu sync.Mutex

	// BroadcastFn sends an event to every table subscriber. Nil-safe.
	BroadcastFn func(ev Event)
	// BroadcastToPlayerFn sends an event to one player's connections.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev Event)
	// OnGameEnd is invoked (outside the lock) exactly once at game end.
	OnGameEnd OnGameEndFunc

	gen          *Generator
	dropInterval time.Duration
	dropTimers   map[int]*time.Timer
	log          *logrus.Logger
}

// NewGame builds a session for the given occupied seats. The seed makes the
// piece stream reproducible in tests.
func NewGame(tableID uuid.UUID, occupants map[int]uuid.UUID, seed int64, logger *logrus.Logger) *Game {
	id, _ := uuid.NewRandom()
	if logger == nil {
		logger = logrus.New()
	}
	g := &Game{
		ID:           id,
		TableID:      tableID,
		Seats:        make(map[int]*SeatState, len(occupants)),
		gen:          NewGenerator(seed),
		dropInterval: DefaultDropInterval,
		dropTimers:   make(map[int]*time.Timer),
		log:          logger,
	}
	for seatNum, playerID := range occupants {
		g.Seats[seatNum] = &SeatState{
			SeatNumber: seatNum,
			PlayerID:   playerID,
			Board:      NewBoard(),
			Next:       NewNextPieces(g.gen),
			Bar:        NewPowerBar(),
		}
	}
	return g
}

// Start deals the first piece to every seat and arms the gravity timers.
func (g *Game) Start() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.Started || g.GameOver {
		return
	}
	g.Started = true
	g.StartedAt = time.Now()
	for _, seat := range g.Seats {
		seat.Current = seat.Next.Dequeue()
		g.armDropTimerLocked(seat.SeatNumber)
	}
	g.broadcast(Event{Type: EventGameTimer, TableID: g.TableID, Payload: map[string]interface{}{
		"drop_interval_ms": g.dropInterval.Milliseconds(),
	}})
	g.broadcastStateLocked()
}

// armDropTimerLocked schedules the next gravity tick for a seat. The fired
// callback re-checks state under the lock and no-ops when stale.
func (g *Game) armDropTimerLocked(seatNum int) {
	interval := g.dropInterval
	if seat := g.Seats[seatNum]; seat != nil && seat.SpeedDrop {
		interval = g.dropInterval / 2
	}
	g.dropTimers[seatNum] = time.AfterFunc(interval, func() {
		g.gravityTick(seatNum)
	})
}

// gravityTick advances one seat's falling piece by a row, or places it once
// it has come to rest.
func (g *Game) gravityTick(seatNum int) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat, ok := g.Seats[seatNum]
	if !ok || g.GameOver || seat.Lost || seat.Current == nil {
		return
	}
	if seat.Current.SoftDrop(seat.Board) {
		g.broadcastStateLocked()
	} else {
		g.resolvePlacementLocked(seat)
	}
	if !g.GameOver && !seat.Lost {
		g.armDropTimerLocked(seatNum)
	}
}

// HandleMove applies a left/right/down shift to the player's falling piece.
// Invalid moves are no-ops, not errors.
func (g *Game) HandleMove(playerID uuid.UUID, direction string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat, err := g.seatForLocked(playerID)
	if err != nil {
		return err
	}
	if seat.Current == nil {
		return nil
	}
	moved := false
	switch direction {
	case "left":
		moved = seat.Current.MoveLeft(seat.Board)
	case "right":
		moved = seat.Current.MoveRight(seat.Board)
	case "down":
		moved = seat.Current.SoftDrop(seat.Board)
	}
	if moved {
		g.broadcastStateLocked()
	}
	return nil
}

// HandleRotate cycles the block order of the falling piece.
func (g *Game) HandleRotate(playerID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat, err := g.seatForLocked(playerID)
	if err != nil {
		return err
	}
	if seat.Current == nil {
		return nil
	}
	seat.Current.Cycle()
	g.broadcastStateLocked()
	return nil
}

// HandleDrop hard-drops the falling piece and resolves the placement.
// placementID must match the seat's current PlacementSeq; duplicates from
// redundant connections are ignored.
func (g *Game) HandleDrop(playerID uuid.UUID, placementID int) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat, err := g.seatForLocked(playerID)
	if err != nil {
		return err
	}
	if seat.Current == nil {
		return nil
	}
	if placementID != seat.PlacementSeq {
		g.log.WithFields(logrus.Fields{
			"game": g.ID, "seat": seat.SeatNumber, "got": placementID, "want": seat.PlacementSeq,
		}).Debug("ignoring duplicate drop")
		return nil
	}
	g.resolvePlacementLocked(seat)
	return nil
}

// HandleUseItem consumes the oldest power-bar item. Power items become
// effects (attacks need a live opposing target); diamond items apply to the
// seat itself.
func (g *Game) HandleUseItem(playerID uuid.UUID, targetSeat int) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	seat, err := g.seatForLocked(playerID)
	if err != nil {
		return err
	}
	item := seat.Bar.Peek()
	if item == nil {
		return ErrEmptyBar
	}
	switch item.Kind {
	case BlockDiamond:
		seat.Bar.Dequeue()
		g.applyDiamondLocked(seat, item.Diamond)
	case BlockPower:
		eff := Effect{
			Type:       item.PowerType,
			Level:      item.PowerLevel,
			SourceSeat: seat.SeatNumber,
			TargetSeat: seat.SeatNumber,
		}
		if item.PowerType == PowerAttack {
			target, err := g.resolveAttackTargetLocked(seat, targetSeat)
			if err != nil {
				// Rejected command: the item keeps its place at the head.
				return err
			}
			eff.TargetSeat = target
		}
		seat.Bar.Dequeue()
		g.resolveEffectsLocked([]Effect{eff})
	}
	g.broadcastStateLocked()
	return nil
}

// resolveAttackTargetLocked validates the requested target, defaulting to
// the lowest-numbered live opposing seat.
func (g *Game) resolveAttackTargetLocked(src *SeatState, requested int) (int, error) {
	if requested != 0 {
		t, ok := g.Seats[requested]
		if !ok || t.Lost || t.Team() == src.Team() {
			return 0, ErrInvalidTarget
		}
		return requested, nil
	}
	for n := 1; n <= MaxSeatNumber; n++ {
		if t, ok := g.Seats[n]; ok && !t.Lost && t.Team() != src.Team() {
			return n, nil
		}
	}
	return 0, ErrInvalidTarget
}

// applyDiamondLocked runs a threshold bonus against the seat's own state.
func (g *Game) applyDiamondLocked(seat *SeatState, kind DiamondKind) {
	var removed int
	switch kind {
	case DiamondSpeedDrop:
		seat.SpeedDrop = true
		g.broadcast(Event{Type: EventGameTimer, TableID: g.TableID, Seat: seat.SeatNumber, Payload: map[string]interface{}{
			"drop_interval_ms": (g.dropInterval / 2).Milliseconds(),
		}})
	case DiamondRemovePowers:
		board := seat.Board.Copy()
		removed = board.ClearPowers()
		seat.Board = board
	case DiamondRemoveStones:
		board := seat.Board.Copy()
		removed = board.ClearStones()
		seat.Board = board
	}
	g.creditRemovalLocked(seat, removed)
	g.broadcast(Event{Type: EventPowerFire, TableID: g.TableID, Seat: seat.SeatNumber, Payload: map[string]interface{}{
		"kind":    string(kind),
		"removed": removed,
	}})
}

// resolveEffectsLocked applies a batch of effects in deterministic order:
// defense before attack, lower source seat first.
func (g *Game) resolveEffectsLocked(effects []Effect) {
	sortEffects(effects)
	for _, eff := range effects {
		target, ok := g.Seats[eff.TargetSeat]
		if !ok || target.Lost {
			continue
		}
		switch {
		case eff.Type == PowerDefense && eff.Level == 3:
			target.ShieldUntil = time.Now().Add(ShieldDuration)
		case eff.Type == PowerAttack && eff.Level == 3:
			if !target.Shielded() {
				target.Bar.Clear()
			}
		default:
			board, removed := applyEffect(eff, target)
			target.Board = board
			g.creditRemovalLocked(target, removed)
		}
		g.broadcast(Event{Type: EventPowerFire, TableID: g.TableID, Seat: eff.TargetSeat, Payload: map[string]interface{}{
			"power_type":  string(eff.Type),
			"level":       eff.Level,
			"source_seat": eff.SourceSeat,
		}})
	}
}

// resolvePlacementLocked commits the falling piece to the board and runs the
// match/collapse cycle to quiescence. Overflow loses the seat.
func (g *Game) resolvePlacementLocked(seat *SeatState) {
	piece := seat.Current
	seat.Current = nil
	seat.PlacementSeq++

	if err := seat.Board.Place(piece); err != nil {
		g.log.WithFields(logrus.Fields{"game": g.ID, "seat": seat.SeatNumber}).Info("board overflow, seat loses")
		g.seatLostLocked(seat)
		return
	}

	for {
		matches := FindMatches(seat.Board)
		word := FindSpecialWord(seat.Board)
		if len(matches) == 0 && len(word) == 0 {
			break
		}

		// A matched power run is collected as one bar item before removal.
		seen := make(map[string]bool)
		for _, c := range matches {
			blk := seat.Board.Cells[c.Row][c.Col]
			if blk == nil || blk.Kind != BlockPower {
				continue
			}
			key := string(blk.PowerType) + string(rune('0'+blk.PowerLevel))
			if seen[key] {
				continue
			}
			seen[key] = true
			item := *blk
			item.Marked = false
			seat.Bar.Enqueue(&item)
		}

		seat.Board.MarkCells(matches)
		seat.Board.MarkCells(word)
		g.broadcast(Event{Type: EventBlocksMarked, TableID: g.TableID, Seat: seat.SeatNumber, Payload: map[string]interface{}{
			"cells":        matches,
			"special_word": word,
		}})

		removed := seat.Board.Collapse()
		// The special word counts double toward the diamond thresholds.
		removed += len(word)
		g.creditRemovalLocked(seat, removed)
	}

	if g.GameOver || seat.Lost {
		return
	}
	seat.Current = seat.Next.Dequeue()
	g.broadcastStateLocked()
}

// creditRemovalLocked feeds the removal counter and enqueues any newly
// unlocked diamond bonuses into the seat's bar.
func (g *Game) creditRemovalLocked(seat *SeatState, removed int) {
	if removed <= 0 {
		return
	}
	for _, kind := range seat.Diamonds.Add(removed) {
		if evicted := seat.Bar.Enqueue(NewDiamond(kind)); evicted != nil {
			g.log.WithFields(logrus.Fields{"game": g.ID, "seat": seat.SeatNumber}).Debug("power bar full, evicted oldest item")
		}
		g.broadcast(Event{Type: EventPowerFire, TableID: g.TableID, Seat: seat.SeatNumber, Payload: map[string]interface{}{
			"unlocked": string(kind),
			"removed":  seat.Diamonds.Removed,
		}})
	}
}

// Forfeit loses the seat of a player who stood up or was booted mid-game.
func (g *Game) Forfeit(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.GameOver {
		return
	}
	for _, seat := range g.Seats {
		if seat.PlayerID == playerID && !seat.Lost {
			g.log.WithFields(logrus.Fields{"game": g.ID, "seat": seat.SeatNumber, "player": playerID}).Info("seat forfeits")
			g.seatLostLocked(seat)
			return
		}
	}
}

// seatLostLocked marks the seat lost and resolves the game if one or zero
// teams remain alive.
func (g *Game) seatLostLocked(seat *SeatState) {
	seat.Lost = true
	seat.Current = nil
	if t := g.dropTimers[seat.SeatNumber]; t != nil {
		t.Stop()
	}

	alive := make(map[int]bool)
	for _, s := range g.Seats {
		if !s.Lost {
			alive[s.Team()] = true
		}
	}
	if len(alive) > 1 {
		g.broadcastStateLocked()
		return
	}
	winner := 0
	for team := range alive {
		winner = team
	}
	g.endGameLocked(winner)
}

// endGameLocked finishes the game deterministically and fires OnGameEnd
// outside the lock. Safe to call at most once; later calls no-op.
func (g *Game) endGameLocked(winnerTeam int) {
	if g.GameOver {
		return
	}
	g.GameOver = true
	g.WinnerTeam = winnerTeam
	for _, t := range g.dropTimers {
		t.Stop()
	}

	results := make([]SeatResult, 0, len(g.Seats))
	for _, s := range g.Seats {
		results = append(results, SeatResult{
			SeatNumber: s.SeatNumber,
			PlayerID:   s.PlayerID,
			Team:       s.Team(),
			Won:        s.Team() == winnerTeam && winnerTeam != 0,
			Removed:    s.Diamonds.Removed,
		})
		s.Diamonds.Reset()
	}
	g.broadcast(Event{Type: EventGameOver, TableID: g.TableID, Payload: map[string]interface{}{
		"winner_team": winnerTeam,
		"results":     results,
	}})
	if g.OnGameEnd != nil {
		cb, tid := g.OnGameEnd, g.TableID
		go cb(tid, winnerTeam, results)
	}
}

// SyncState sends one player a full snapshot, used on connect/reconnect.
func (g *Game) SyncState(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.BroadcastToPlayerFn == nil {
		return
	}
	g.BroadcastToPlayerFn(playerID, g.stateEventLocked())
}

func (g *Game) seatForLocked(playerID uuid.UUID) (*SeatState, error) {
	if g.GameOver {
		return nil, ErrGameOver
	}
	for _, s := range g.Seats {
		if s.PlayerID == playerID && !s.Lost {
			return s, nil
		}
	}
	return nil, ErrNotInGame
}

func (g *Game) stateEventLocked() Event {
	snaps := make([]SeatSnapshot, 0, len(g.Seats))
	for n := 1; n <= MaxSeatNumber; n++ {
		s, ok := g.Seats[n]
		if !ok {
			continue
		}
		snaps = append(snaps, SeatSnapshot{
			SeatNumber: s.SeatNumber,
			PlayerID:   s.PlayerID,
			Board:      s.Board.Snapshot(),
			Current:    s.Current,
			Next:       s.Next.Peek(),
			Bar:        s.Bar.Items(),
			Removed:    s.Diamonds.Removed,
			Shielded:   s.Shielded(),
			Lost:       s.Lost,
		})
	}
	return Event{Type: EventGameState, TableID: g.TableID, Payload: map[string]interface{}{
		"game_id":     g.ID.String(),
		"started":     g.Started,
		"game_over":   g.GameOver,
		"winner_team": g.WinnerTeam,
		"seats":       snaps,
	}}
}

func (g *Game) broadcastStateLocked() {
	g.broadcast(g.stateEventLocked())
}

func (g *Game) broadcast(ev Event) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
}
