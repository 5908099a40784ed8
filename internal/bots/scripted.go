// Package bots implements scripted seat-fillers for games that have fewer
// registered human players than the configured seat count, adapted from the
// donor's random/mandated trading bots.
package bots

import (
	"math/rand"

	"highlowtrading/internal/action"
	"highlowtrading/internal/hltgame"
)

// ScriptedBot quotes a two-sided market around a role-derived fair-value
// estimate, biased by private information the way the donor's
// MandatedAgent biases its side from its signed mandate and its
// NoiseTraderBot randomizes size (internal/bots/noise.go in the donor).
type ScriptedBot struct {
	Player int

	spread int // base half-spread in price ticks around the fair-value estimate
	rng    *rand.Rand
}

// NewScriptedBot creates a bot seated at player, with a deterministic rng
// seeded by seed (callers should vary seed per bot to avoid lock-step
// quoting across seats).
func NewScriptedBot(player int, seed int64, spread int) *ScriptedBot {
	return &ScriptedBot{Player: player, spread: spread, rng: rand.New(rand.NewSource(seed))}
}

// Act decodes the bot's private information from s and returns a legal
// PlayerQuote action. It must only be called while s.CurrentPlayer() ==
// b.Player and the current phase is PlayerTrading.
func (b *ScriptedBot) Act(s *hltgame.State) (action.Action, error) {
	cfg := s.Config()
	role, payload, err := s.PrivateInfo(b.Player)
	if err != nil {
		return 0, err
	}
	bestBid, bestAsk, hasBid, hasAsk := s.BestBidAsk()

	variant := b.quote(cfg, role, payload, bestBid, bestAsk, hasBid, hasAsk)
	return action.Encode(cfg, variant)
}

func (b *ScriptedBot) quote(cfg action.Config, role action.Role, payload int, bestBid, bestAsk int, hasBid, hasAsk bool) action.Variant {
	mcv := cfg.MaxContractValue
	mct := cfg.MaxContractsPerTrade

	fair := mcv / 2
	switch role {
	case action.RoleValueCheater:
		// Knows one of the two candidate contract values outright.
		fair = payload
	case action.RoleHighLowCheater:
		// Knows only which extreme settlement will land on.
		if payload > 0 {
			fair = mcv
		} else {
			fair = 1
		}
	case action.RoleCustomer:
		// No value signal; price off the visible market instead.
		switch {
		case hasBid && hasAsk:
			fair = (bestBid + bestAsk) / 2
		case hasBid:
			fair = bestBid
		case hasAsk:
			fair = bestAsk
		}
	}

	half := b.spread + b.rng.Intn(3)
	bidPrice := clampPrice(fair-half, mcv)
	askPrice := clampPrice(fair+half+1, mcv)
	if askPrice <= bidPrice {
		if bidPrice < mcv {
			askPrice = bidPrice + 1
		} else {
			bidPrice = mcv - 1
			askPrice = mcv
		}
	}

	bidSize := 1 + b.rng.Intn(mct)
	askSize := 1 + b.rng.Intn(mct)

	// A customer with a directional target only quotes the side that moves
	// it toward that target, mirroring the donor's MandatedAgent quoting
	// only in its mandate's direction.
	if role == action.RoleCustomer {
		switch {
		case payload > 0:
			askSize = 0
		case payload < 0:
			bidSize = 0
		}
	}

	return action.Variant{
		Kind: action.KindPlayerQuote,
		BidPrice: bidPrice, BidSize: bidSize,
		AskPrice: askPrice, AskSize: askSize,
	}
}

func clampPrice(p, mcv int) int {
	if p < 1 {
		return 1
	}
	if p > mcv {
		return mcv
	}
	return p
}

// Manager holds the scripted bots filling the seats a game host has not
// assigned to a registered human, mirroring the donor's BotManager
// collection (internal/bots/bot.go) minus its Start/Stop goroutine loop —
// this game is turn-based, so a bot only acts when asked.
type Manager struct {
	bySeat map[int]*ScriptedBot
}

// NewManager returns an empty seat-to-bot registry.
func NewManager() *Manager {
	return &Manager{bySeat: make(map[int]*ScriptedBot)}
}

// Assign registers bot for seat, overwriting any existing assignment.
func (m *Manager) Assign(seat int, bot *ScriptedBot) {
	m.bySeat[seat] = bot
}

// Release removes any bot assigned to seat (a human has claimed it).
func (m *Manager) Release(seat int) {
	delete(m.bySeat, seat)
}

// ActIfBot returns the action for seat if a bot occupies it, or ok=false if
// the seat belongs to a human (the caller should wait for their submission
// instead).
func (m *Manager) ActIfBot(s *hltgame.State, seat int) (a action.Action, ok bool, err error) {
	bot, assigned := m.bySeat[seat]
	if !assigned {
		return 0, false, nil
	}
	a, err = bot.Act(s)
	return a, true, err
}

// Count returns the number of seats currently filled by a bot.
func (m *Manager) Count() int { return len(m.bySeat) }
