// Package game hosts many concurrent High-Low Trading games, assigning
// human seats and filling the rest with scripted bots, adapted from the
// donor's single-match Scheduler (internal/game/scheduler.go) generalized
// to a map of independently running games.
package game

import (
	"time"

	"highlowtrading/internal/action"
	"highlowtrading/internal/bots"
	"highlowtrading/internal/hltgame"
)

// Session is one live game: its engine state, seat assignments, and the
// scripted bots filling any seat with no registered human.
type Session struct {
	ID string

	game  *hltgame.Game
	state *hltgame.State
	bots  *bots.Manager

	// seats[i] is the user id occupying seat i, or "" if a bot holds it.
	seats []string

	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time
}

// Config returns the session's immutable game configuration.
func (s *Session) Config() action.Config { return s.game.Config }

// State returns the live engine state. Callers must not retain it across a
// Manager-serialized mutation; use Manager methods to read/act instead of
// holding this pointer.
func (s *Session) State() *hltgame.State { return s.state }

// SeatUser returns the user id occupying seat, or "" if it is bot-held.
func (s *Session) SeatUser(seat int) string {
	if seat < 0 || seat >= len(s.seats) {
		return ""
	}
	return s.seats[seat]
}

// IsBotSeat reports whether seat has no registered human.
func (s *Session) IsBotSeat(seat int) bool { return s.SeatUser(seat) == "" }

// SeatOf returns the seat userID occupies, if any.
func (s *Session) SeatOf(userID string) (seat int, ok bool) {
	for i, u := range s.seats {
		if u == userID {
			return i, true
		}
	}
	return -1, false
}
