package hltgame

import (
	"fmt"
	"strings"

	"highlowtrading/internal/action"
	"highlowtrading/internal/matching"
)

// ChancePlayer and TerminalPlayer are the two non-seat player ids a host
// framework must special-case, named after OpenSpiel's kChancePlayerId /
// kTerminalPlayerId (original_source/open_spiel/games/high_low_trading).
const (
	ChancePlayer   = -1
	TerminalPlayer = -4
)

// Position is a player's signed contract and cash holding.
type Position struct {
	Contracts int
	Cash      int
}

// QuoteEntry is one append-only entry in the public quote log.
type QuoteEntry struct {
	Player int
	Quote  action.Variant
}

type playerAction struct {
	Player int
	Move   action.Action
}

// Game holds the immutable per-game configuration and derives the host
// contract values (spec.md §6). It is deliberately not referenced back
// from State — State carries its own copy of Config by value (spec.md §9's
// "back-references ... are a convenience ... should inline configuration
// into the state rather than replicate the owner pointer pattern").
type Game struct {
	Config action.Config
}

// NewGame validates cfg and returns a Game.
func NewGame(cfg action.Config) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, wrapError(InvalidAction, "game configuration", err)
	}
	return &Game{Config: cfg}, nil
}

// NumDistinctActions is (max_contracts_per_trade+1)^2 * max_contract_value^2,
// the widest phase (PlayerTrading) plus one (spec.md §6).
func (g *Game) NumDistinctActions() int {
	mct := int64(g.Config.MaxContractsPerTrade + 1)
	mcv := int64(g.Config.MaxContractValue)
	return int(mct * mct * mcv * mcv)
}

// MaxChanceOutcomes is 1 + the largest chance phase's outcome count.
func (g *Game) MaxChanceOutcomes() int {
	chancePhases := []action.Phase{
		action.PhaseChanceValue, action.PhaseChanceHighLow,
		action.PhaseChancePermutation, action.PhaseCustomerSize,
	}
	var max int64
	for _, phase := range chancePhases {
		r, err := action.LegalRange(phase, g.Config)
		if err != nil {
			continue
		}
		if n := int64(r) + 1; n > max {
			max = n
		}
	}
	return int(max) + 1
}

// MaxGameLength is total_moves.
func (g *Game) MaxGameLength() int { return g.Config.TotalMoves() }

// MaxChanceNodesInHistory is chance_moves.
func (g *Game) MaxChanceNodesInHistory() int { return g.Config.ChanceMoves() }

// ObservationTensorLength is the fixed tensor length from spec.md §4.5:
// 11 + steps_per_player*num_players*6 + num_players*2.
func (g *Game) ObservationTensorLength() int {
	cfg := g.Config
	return 11 + cfg.StepsPerPlayer*cfg.NumPlayers*6 + cfg.NumPlayers*2
}

// NewInitialState returns a fresh State at move 0 (ChanceValue).
func (g *Game) NewInitialState() *State {
	np := g.Config.NumPlayers
	return &State{
		cfg:         g.Config,
		permutation: make([]int, np),
		roles:       make([]action.Role, np),
		targets:     make([]int, np),
		positions:   make([]Position, np),
		book:        matching.NewBook(),
	}
}

// State is the C4 game state machine: everything mutated by ApplyAction.
type State struct {
	cfg action.Config

	move           int
	contractValues [2]int
	isHigh         bool
	permutation    []int
	roles          []action.Role
	targets        []int
	positions      []Position
	quoteLog       []QuoteEntry
	fillLog        []matching.Fill
	book           *matching.Book

	history []playerAction
}

// Config returns the state's immutable configuration.
func (s *State) Config() action.Config { return s.cfg }

// MoveNumber is the zero-based index of the next action to apply.
func (s *State) MoveNumber() int { return s.move }

// IsTerminal reports whether every move has been applied. Per spec.md §9,
// this uses "==", resolving the source's two conflicting predicates in
// favor of the one consistent with total_moves being reachable.
func (s *State) IsTerminal() bool { return s.move == s.cfg.TotalMoves() }

// CurrentPlayer returns ChancePlayer during the four chance phases, the
// round-robin acting player during PlayerTrading, or TerminalPlayer.
func (s *State) CurrentPlayer() int {
	if s.IsTerminal() {
		return TerminalPlayer
	}
	if s.move < s.cfg.ChanceMoves() {
		return ChancePlayer
	}
	return (s.move - s.cfg.ChanceMoves()) % s.cfg.NumPlayers
}

func (s *State) phase() action.Phase {
	return action.PhaseOf(s.move, s.cfg)
}

// LegalActions returns the full inclusive legal range for the current
// phase, or nil at a terminal state (spec.md §4.4).
func (s *State) LegalActions() ([]action.Action, error) {
	if s.IsTerminal() {
		return nil, nil
	}
	maxID, err := action.LegalRange(s.phase(), s.cfg)
	if err != nil {
		return nil, wrapError(PhaseMismatch, "legal_actions", err)
	}
	actions := make([]action.Action, int(maxID)+1)
	for i := range actions {
		actions[i] = action.Action(i)
	}
	return actions, nil
}

// ChanceOutcomes lists the uniform chance outcomes for the current phase.
// Fatal (HostMisuse) if called outside a chance node (spec.md §7).
func (s *State) ChanceOutcomes() ([]action.ActionProb, error) {
	if s.CurrentPlayer() != ChancePlayer {
		return nil, newError(HostMisuse, "chance_outcomes queried outside a chance node")
	}
	return action.ChanceOutcomes(s.phase(), s.cfg)
}

// ApplyAction dispatches on the current phase, mutating state, then
// advances the move counter (spec.md §4.4).
func (s *State) ApplyAction(a action.Action) error {
	if s.IsTerminal() {
		return newError(PhaseMismatch, "apply_action called on a terminal state")
	}
	actingPlayer := s.CurrentPlayer()
	if err := s.doApplyAction(a); err != nil {
		return err
	}
	s.history = append(s.history, playerAction{Player: actingPlayer, Move: a})
	s.move++
	return nil
}

func (s *State) doApplyAction(a action.Action) error {
	phase := s.phase()
	maxID, err := action.LegalRange(phase, s.cfg)
	if err != nil {
		return wrapError(PhaseMismatch, fmt.Sprintf("move %d", s.move), err)
	}
	if a < 0 || a > maxID {
		return newError(InvalidAction, fmt.Sprintf(
			"action %d out of range [0,%d] for phase %s at move %d", a, maxID, phase, s.move))
	}
	variant, err := action.Decode(phase, s.cfg, a)
	if err != nil {
		return wrapError(InvalidAction, "decode", err)
	}

	switch phase {
	case action.PhaseChanceValue:
		s.contractValues[s.move] = variant.ContractValue

	case action.PhaseChanceHighLow:
		s.isHigh = variant.IsHigh

	case action.PhaseChancePermutation:
		s.permutation = variant.Permutation
		s.roles = variant.Roles

	case action.PhaseCustomerSize:
		k := s.move - 4 // CustomerSize occupies m in [4, 4+num_customers)
		customerPlayer := s.permutation[3+k]
		s.targets[customerPlayer] = variant.CustomerSize

	case action.PhasePlayerTrading:
		p := (s.move - s.cfg.ChanceMoves()) % s.cfg.NumPlayers
		s.quoteLog = append(s.quoteLog, QuoteEntry{Player: p, Quote: variant})

		tid := int64(2 * s.move)
		bidFills, err := s.book.AddOrder(matching.Order{
			TID: tid, CustomerID: p, Price: variant.BidPrice, Size: variant.BidSize, IsBid: true,
		})
		if err != nil {
			return wrapError(MatchingInvariant, "bid order", err)
		}
		askFills, err := s.book.AddOrder(matching.Order{
			TID: tid + 1, CustomerID: p, Price: variant.AskPrice, Size: variant.AskSize, IsBid: false,
		})
		if err != nil {
			return wrapError(MatchingInvariant, "ask order", err)
		}

		fills := append(bidFills, askFills...)
		s.fillLog = append(s.fillLog, fills...)
		for _, f := range fills {
			if f.IsSellQuote {
				s.positions[f.CustomerID].Contracts += f.Size
				s.positions[f.CustomerID].Cash -= f.Price * f.Size
				s.positions[f.QuoterID].Contracts -= f.Size
				s.positions[f.QuoterID].Cash += f.Price * f.Size
			} else {
				s.positions[f.CustomerID].Contracts -= f.Size
				s.positions[f.CustomerID].Cash += f.Price * f.Size
				s.positions[f.QuoterID].Contracts += f.Size
				s.positions[f.QuoterID].Cash -= f.Price * f.Size
			}
		}

	default:
		return newError(PhaseMismatch, fmt.Sprintf("phase %s has no apply rule", phase))
	}
	return nil
}

// Settlement is max(v1, v2) if is_high, else min (spec.md §4.4).
func (s *State) Settlement() int {
	v1, v2 := s.contractValues[0], s.contractValues[1]
	if s.isHigh {
		if v1 > v2 {
			return v1
		}
		return v2
	}
	if v1 < v2 {
		return v1
	}
	return v2
}

// Returns computes the terminal payoff for every player: cash plus
// contracts valued at settlement, minus a customer's target-miss penalty
// (spec.md §4.4). HostMisuse if called before terminal.
func (s *State) Returns() ([]float64, error) {
	if !s.IsTerminal() {
		return nil, newError(HostMisuse, "returns queried outside terminal")
	}
	settlement := float64(s.Settlement())
	returns := make([]float64, s.cfg.NumPlayers)
	for j := 0; j < s.cfg.NumPlayers; j++ {
		r := float64(s.positions[j].Cash) + float64(s.positions[j].Contracts)*settlement
		if s.targets[j] != 0 {
			diff := s.targets[j] - s.positions[j].Contracts
			if diff < 0 {
				diff = -diff
			}
			r -= float64(diff * s.cfg.MaxContractValue)
		}
		returns[j] = r
	}
	return returns, nil
}

// Clone returns a deep copy independent of s (spec.md §4.4).
func (s *State) Clone() *State {
	clone := *s
	clone.permutation = append([]int(nil), s.permutation...)
	clone.roles = append([]action.Role(nil), s.roles...)
	clone.targets = append([]int(nil), s.targets...)
	clone.positions = append([]Position(nil), s.positions...)
	clone.quoteLog = append([]QuoteEntry(nil), s.quoteLog...)
	clone.fillLog = append([]matching.Fill(nil), s.fillLog...)
	clone.book = s.book.Clone()
	clone.history = append([]playerAction(nil), s.history...)
	return &clone
}

// ResampleFromInfostate is stubbed, matching the original's own stub
// (spec.md §9): it deliberately leaves resampling unspecified and returns
// a fresh initial state rather than one consistent with player's observed
// information.
func (s *State) ResampleFromInfostate(player int) *State {
	g, err := NewGame(s.cfg)
	if err != nil {
		return s.Clone()
	}
	return g.NewInitialState()
}

// UndoAction reverts the last applied action by replaying history from
// scratch, because order-book state is a function of the entire action
// sequence and cannot be decremented in place (spec.md §4.4, §9).
func (s *State) UndoAction(player int, move action.Action) error {
	if len(s.history) == 0 {
		return newError(HostMisuse, "undo called with empty history")
	}
	last := s.history[len(s.history)-1]
	if last.Player != player || last.Move != move {
		return newError(HostMisuse, "undo: player/move does not match history tail")
	}
	savedHistory := s.history[:len(s.history)-1]

	g := &Game{Config: s.cfg}
	fresh := g.NewInitialState()
	for _, pa := range savedHistory {
		if err := fresh.ApplyAction(pa.Move); err != nil {
			return wrapError(HostMisuse, "undo: replay failed", err)
		}
	}
	*s = *fresh
	return nil
}

// ActionToString renders a decoded action for logging/debugging.
func (s *State) ActionToString(player int, a action.Action) (string, error) {
	variant, err := action.Decode(s.phase(), s.cfg, a)
	if err != nil {
		return "", wrapError(InvalidAction, "action_to_string", err)
	}
	return fmt.Sprintf("Player %d %s", player, variant), nil
}

// PlayerPosition returns player's current signed contracts and cash,
// analogous to the original's per-player position getters.
func (s *State) PlayerPosition(player int) (contracts, cash int) {
	if player < 0 || player >= len(s.positions) {
		return 0, 0
	}
	p := s.positions[player]
	return p.Contracts, p.Cash
}

// BestBidAsk exposes the market's top of book, analogous to the original
// Market's public best-price getters, for callers (bots, UI) that need the
// current market without touching engine-private fields.
func (s *State) BestBidAsk() (bid, ask int, hasBid, hasAsk bool) {
	bid, hasBid = s.book.BestBid()
	ask, hasAsk = s.book.BestAsk()
	return
}

// permutationSlotOf returns player's permutation entry (0 or 1 for the two
// ValueCheaters, 2 for the HighLowCheater, 3+k for the k-th Customer), or -1
// for a player outside [0, num_players). Before the permutation is drawn
// every entry is 0.
func (s *State) permutationSlotOf(player int) int {
	if player < 0 || player >= len(s.permutation) {
		return -1
	}
	return s.permutation[player]
}

// String renders the full state: setup, public quote/fill log, positions,
// and the current market book (spec.md §4.5's string form, minus the
// per-observer private-information section — see State.InformationStateString).
func (s *State) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "contract values: %d, %d\n", s.contractValues[0], s.contractValues[1])
	settleOn := "Low"
	if s.isHigh {
		settleOn = "High"
	}
	fmt.Fprintf(&sb, "settles on: %s\n", settleOn)
	fmt.Fprintf(&sb, "permutation: %v\n", s.permutation)
	for i, t := range s.targets {
		if t == 0 {
			fmt.Fprintf(&sb, "player %d target: none\n", i)
		} else {
			fmt.Fprintf(&sb, "player %d target: %+d\n", i, t)
		}
	}
	sb.WriteString(s.publicInfoString())
	return sb.String()
}

func (s *State) publicInfoString() string {
	var sb strings.Builder
	sb.WriteString("quotes:\n")
	for _, q := range s.quoteLog {
		fmt.Fprintf(&sb, "  player %d: %s\n", q.Player, q.Quote)
	}
	sb.WriteString("fills:\n")
	for _, f := range s.fillLog {
		fmt.Fprintf(&sb, "  price=%d size=%d quoter=%d customer=%d sell_quote=%t\n",
			f.Price, f.Size, f.QuoterID, f.CustomerID, f.IsSellQuote)
	}
	sb.WriteString("positions:\n")
	for i, p := range s.positions {
		fmt.Fprintf(&sb, "  player %d: contracts=%d cash=%d\n", i, p.Contracts, p.Cash)
	}
	fmt.Fprintf(&sb, "market:\n  %s\n", s.book.String())
	return sb.String()
}
