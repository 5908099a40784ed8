package game

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"highlowtrading/internal/action"
	"highlowtrading/internal/bots"
	"highlowtrading/internal/hltgame"
	"highlowtrading/internal/store"
)

var (
	// ErrGameNotFound is returned when a game id has no live session.
	ErrGameNotFound = errors.New("game: not found")
	// ErrNotYourTurn is returned when the engine is at a chance or terminal
	// node, where no seat acts.
	ErrNotYourTurn = errors.New("game: not your turn")
	// ErrSeatNotYours is returned when userID does not hold the seat whose
	// turn it is.
	ErrSeatNotYours = errors.New("game: seat does not belong to this user")
)

// Manager owns every live game, mirroring the donor's mutex-guarded
// Scheduler (internal/game/scheduler.go) generalized from one active match
// to a map of independently running games.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store *store.Store
	rng   *rand.Rand

	onGameEnd func(*Session, []float64)
}

// NewManager returns a Manager backed by st for persisting completed games.
// st may be nil, in which case completed games are discarded (useful for
// tests).
func NewManager(st *store.Store) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		store:    st,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OnGameEnd registers a callback fired once a game reaches its terminal
// state, after persistence, mirroring the donor's OnMatchEnd. Callbacks
// registered earlier keep firing, in registration order.
func (m *Manager) OnGameEnd(fn func(*Session, []float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.onGameEnd
	if prev == nil {
		m.onGameEnd = fn
		return
	}
	m.onGameEnd = func(s *Session, returns []float64) {
		prev(s, returns)
		fn(s, returns)
	}
}

// CreateGame validates cfg, starts a new session, assigns humanSeats (seat
// index -> user id), fills every remaining seat with a scripted bot, then
// drives the engine through its chance phases and any immediately-playable
// bot turns.
func (m *Manager) CreateGame(cfg action.Config, humanSeats map[int]string) (*Session, error) {
	g, err := hltgame.NewGame(cfg)
	if err != nil {
		return nil, fmt.Errorf("game: %w", err)
	}

	session := &Session{
		ID:        uuid.NewString(),
		game:      g,
		state:     g.NewInitialState(),
		bots:      bots.NewManager(),
		seats:     make([]string, cfg.NumPlayers),
		createdAt: time.Now(),
	}
	for seat, userID := range humanSeats {
		if seat < 0 || seat >= cfg.NumPlayers {
			return nil, fmt.Errorf("game: seat %d out of range [0,%d)", seat, cfg.NumPlayers)
		}
		session.seats[seat] = userID
	}
	for seat := 0; seat < cfg.NumPlayers; seat++ {
		if session.seats[seat] == "" {
			seed := int64(seat) + int64(len(m.sessions)) + time.Now().UnixNano()
			session.bots.Assign(seat, bots.NewScriptedBot(seat, seed, 2))
		}
	}
	session.startedAt = time.Now()

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	log.Printf("[GameManager] created game %s (%d players, %d bot seats)",
		session.ID, cfg.NumPlayers, session.bots.Count())

	if err := m.advance(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns the live session for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return s, nil
}

// Submit applies a as userID's action for their seat in game id, then
// drives any automatic chance/bot turns that follow, finishing and
// persisting the game if it reaches terminal.
func (m *Manager) Submit(id, userID string, a action.Action) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}

	seat := session.state.CurrentPlayer()
	if seat < 0 {
		return fmt.Errorf("game: %w: chance or terminal node, no seat to act", ErrNotYourTurn)
	}
	if session.SeatUser(seat) != userID {
		return ErrSeatNotYours
	}
	if err := session.state.ApplyAction(a); err != nil {
		return err
	}
	return m.advance(session)
}

// advance resolves chance nodes by uniform sampling and plays every
// immediately-available bot turn, stopping at a human's turn or terminal.
func (m *Manager) advance(session *Session) error {
	for {
		s := session.state
		switch player := s.CurrentPlayer(); {
		case s.IsTerminal():
			return m.finish(session)

		case player == hltgame.ChancePlayer:
			outcomes, err := s.ChanceOutcomes()
			if err != nil {
				return err
			}
			choice := outcomes[m.rng.Intn(len(outcomes))]
			if err := s.ApplyAction(choice.Action); err != nil {
				return err
			}

		default:
			a, ok, err := session.bots.ActIfBot(s, player)
			if err != nil {
				return err
			}
			if !ok {
				return nil // a human must act next
			}
			if err := s.ApplyAction(a); err != nil {
				return err
			}
		}
	}
}

// finish computes terminal returns, persists the game, removes it from the
// live set, and fires the OnGameEnd callback.
func (m *Manager) finish(session *Session) error {
	returns, err := session.state.Returns()
	if err != nil {
		return err
	}
	session.endedAt = time.Now()

	if m.store != nil {
		if err := m.persist(session, returns); err != nil {
			log.Printf("[GameManager] failed to persist game %s: %v", session.ID, err)
		}
	}

	m.mu.Lock()
	delete(m.sessions, session.ID)
	m.mu.Unlock()

	m.mu.RLock()
	cb := m.onGameEnd
	m.mu.RUnlock()
	if cb != nil {
		cb(session, returns)
	}
	return nil
}

func (m *Manager) persist(session *Session, returns []float64) error {
	cfg := session.Config()
	s := session.state
	record := store.GameRecord{
		ID:                   session.ID,
		NumPlayers:           cfg.NumPlayers,
		StepsPerPlayer:       cfg.StepsPerPlayer,
		MaxContractsPerTrade: cfg.MaxContractsPerTrade,
		CustomerMaxSize:      cfg.CustomerMaxSize,
		MaxContractValue:     cfg.MaxContractValue,
		SettlementValue:      s.Settlement(),
		FinalBook:            s.String(),
		StartedAt:            session.startedAt,
		EndedAt:              session.endedAt,
	}

	seats := make([]store.SeatResult, cfg.NumPlayers)
	for seat := 0; seat < cfg.NumPlayers; seat++ {
		role, payload, _ := s.PrivateInfo(seat)
		target := 0
		if role == action.RoleCustomer {
			target = payload
		}
		userID := sql.NullString{}
		if u := session.SeatUser(seat); u != "" {
			userID = sql.NullString{String: u, Valid: true}
		}
		contracts, cash := s.PlayerPosition(seat)
		seats[seat] = store.SeatResult{
			GameID:         session.ID,
			Seat:           seat,
			UserID:         userID,
			Role:           roleLabel(role),
			Target:         target,
			FinalContracts: contracts,
			FinalCash:      cash,
			ReturnValue:    returns[seat],
		}
	}

	return m.store.SaveGame(record, seats)
}

// roleLabel renders a Role the way the store schema expects: lower-case,
// hyphenated (spec.md's Role.String() is PascalCase, meant for logs/UI).
func roleLabel(r action.Role) string {
	switch r {
	case action.RoleValueCheater:
		return "value-cheater"
	case action.RoleHighLowCheater:
		return "high-low-cheater"
	case action.RoleCustomer:
		return "customer"
	default:
		return "unknown"
	}
}

// Count returns the number of currently live games.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
