package hltgame

import (
	"errors"
	"testing"

	"highlowtrading/internal/action"
)

func defaultConfig() action.Config {
	return action.Config{
		NumPlayers:           4,
		StepsPerPlayer:       2,
		MaxContractsPerTrade: 2,
		CustomerMaxSize:      3,
		MaxContractValue:     30,
	}
}

func newTestState(t *testing.T) *State {
	t.Helper()
	g, err := NewGame(defaultConfig())
	if err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}
	return g.NewInitialState()
}

func mustApply(t *testing.T, s *State, v action.Variant) {
	t.Helper()
	a, err := action.Encode(s.cfg, v)
	if err != nil {
		t.Fatalf("Encode(%+v) failed: %v", v, err)
	}
	if err := s.ApplyAction(a); err != nil {
		t.Fatalf("ApplyAction(%v) for %+v failed: %v", a, v, err)
	}
}

// applyScenario1Chance drives the four chance phases plus the single
// customer-size draw with the fixed values from spec.md §8 scenario 1:
// v1=5, v2=25, is_high=true, and a permutation yielding roles
// [ValueCheater, HighLowCheater, Customer, ValueCheater].
func applyScenario1Chance(t *testing.T, s *State) {
	t.Helper()
	mustApply(t, s, action.Variant{Kind: action.KindContractValue, ContractValue: 5})
	mustApply(t, s, action.Variant{Kind: action.KindContractValue, ContractValue: 25})
	mustApply(t, s, action.Variant{Kind: action.KindHighLow, IsHigh: true})
	mustApply(t, s, action.Variant{Kind: action.KindPermutation, Permutation: []int{0, 2, 3, 1}})
	mustApply(t, s, action.Variant{Kind: action.KindCustomerTarget, CustomerSize: 2})
}

func TestScenario1SimpleCrossAtAsk(t *testing.T) {
	s := newTestState(t)
	applyScenario1Chance(t, s)

	if s.roles[0] != action.RoleValueCheater || s.roles[1] != action.RoleHighLowCheater ||
		s.roles[2] != action.RoleCustomer || s.roles[3] != action.RoleValueCheater {
		t.Fatalf("unexpected roles from permutation [0,2,3,1]: %v", s.roles)
	}

	mustApply(t, s, action.Variant{Kind: action.KindPlayerQuote, BidPrice: 1, BidSize: 1, AskPrice: 30, AskSize: 1})
	mustApply(t, s, action.Variant{Kind: action.KindPlayerQuote, BidPrice: 2, BidSize: 1, AskPrice: 29, AskSize: 1})
	mustApply(t, s, action.Variant{Kind: action.KindPlayerQuote, BidPrice: 29, BidSize: 1, AskPrice: 30, AskSize: 1})

	if len(s.fillLog) != 1 {
		t.Fatalf("expected exactly 1 fill, got %d: %+v", len(s.fillLog), s.fillLog)
	}
	f := s.fillLog[0]
	if f.Price != 29 || f.Size != 1 {
		t.Errorf("fill = price %d size %d, want price 29 size 1", f.Price, f.Size)
	}
	if !f.IsSellQuote || f.QuoterID != 1 || f.CustomerID != 2 {
		t.Errorf("expected player 2 lifting player 1's resting ask, got %+v", f)
	}

	wantPositions := []Position{
		{Contracts: 0, Cash: 0},
		{Contracts: -1, Cash: 29},
		{Contracts: 1, Cash: -29},
		{Contracts: 0, Cash: 0},
	}
	for i, want := range wantPositions {
		if s.positions[i] != want {
			t.Errorf("player %d position = %+v, want %+v", i, s.positions[i], want)
		}
	}
}

func TestScenario2ZeroSizeQuoteSuppressed(t *testing.T) {
	s := newTestState(t)
	applyScenario1Chance(t, s)

	mustApply(t, s, action.Variant{Kind: action.KindPlayerQuote, BidPrice: 15, BidSize: 0, AskPrice: 16, AskSize: 0})

	if len(s.fillLog) != 0 {
		t.Fatalf("expected no fills, got %d", len(s.fillLog))
	}
	if _, ok := s.book.BestBid(); ok {
		t.Errorf("expected empty bid side after zero-size quote")
	}
	if _, ok := s.book.BestAsk(); ok {
		t.Errorf("expected empty ask side after zero-size quote")
	}
}

func TestScenario5SettlementLow(t *testing.T) {
	s := newTestState(t)
	s.contractValues = [2]int{5, 25}
	s.isHigh = false
	if got := s.Settlement(); got != 5 {
		t.Fatalf("Settlement() = %d, want 5", got)
	}

	s.move = s.cfg.TotalMoves()
	s.positions[0] = Position{Contracts: 1, Cash: -25}
	returns, err := s.Returns()
	if err != nil {
		t.Fatalf("Returns() failed: %v", err)
	}
	if returns[0] != -20 {
		t.Errorf("player 0 return = %v, want -20", returns[0])
	}
}

func TestScenario6CustomerTargetPenalty(t *testing.T) {
	s := newTestState(t)
	s.contractValues = [2]int{10, 10}
	s.isHigh = true
	s.targets[2] = 2
	s.move = s.cfg.TotalMoves()

	returns, err := s.Returns()
	if err != nil {
		t.Fatalf("Returns() failed: %v", err)
	}
	want := -float64(2 * s.cfg.MaxContractValue)
	if returns[2] != want {
		t.Errorf("player 2 (target=+2, contracts=0) return = %v, want %v", returns[2], want)
	}
}

func TestCustomerSizeAssignedByPermutationIndex(t *testing.T) {
	// spec.md §4.4: target assigned to permutation[3+k] literally, not to
	// whichever player the role table calls "Customer" — see DESIGN.md.
	s := newTestState(t)
	applyScenario1Chance(t, s)
	if s.targets[1] != 2 {
		t.Fatalf("expected target +2 on player 1 (permutation[3]=1), got targets=%v", s.targets)
	}
}

func TestIsTerminalUsesEquality(t *testing.T) {
	s := newTestState(t)
	for i := 0; i < s.cfg.TotalMoves()-1; i++ {
		if s.IsTerminal() {
			t.Fatalf("state reported terminal early at move %d", i)
		}
		applyLegalAction(t, s)
	}
	if s.IsTerminal() {
		t.Fatalf("state reported terminal one move early")
	}
	applyLegalAction(t, s)
	if !s.IsTerminal() {
		t.Fatalf("expected terminal at move == total_moves")
	}
	if s.CurrentPlayer() != TerminalPlayer {
		t.Fatalf("CurrentPlayer() = %d, want TerminalPlayer", s.CurrentPlayer())
	}
}

// applyLegalAction applies action 0 (always legal, since every phase's
// range includes 0) for whatever the current phase is.
func applyLegalAction(t *testing.T, s *State) {
	t.Helper()
	if err := s.ApplyAction(0); err != nil {
		t.Fatalf("ApplyAction(0) at move %d failed: %v", s.move, err)
	}
}

func TestReturnsHostMisuseBeforeTerminal(t *testing.T) {
	s := newTestState(t)
	_, err := s.Returns()
	var gameErr *GameError
	if !errors.As(err, &gameErr) || gameErr.Kind != HostMisuse {
		t.Fatalf("expected HostMisuse error, got %v", err)
	}
}

func TestChanceOutcomesHostMisuseDuringTrading(t *testing.T) {
	s := newTestState(t)
	for s.CurrentPlayer() == ChancePlayer {
		applyLegalAction(t, s)
	}
	_, err := s.ChanceOutcomes()
	var gameErr *GameError
	if !errors.As(err, &gameErr) || gameErr.Kind != HostMisuse {
		t.Fatalf("expected HostMisuse error, got %v", err)
	}
}

func TestApplyActionInvalidRangeRejected(t *testing.T) {
	s := newTestState(t)
	maxID, err := action.LegalRange(action.PhaseChanceValue, s.cfg)
	if err != nil {
		t.Fatalf("LegalRange failed: %v", err)
	}
	err = s.ApplyAction(maxID + 1)
	var gameErr *GameError
	if !errors.As(err, &gameErr) || gameErr.Kind != InvalidAction {
		t.Fatalf("expected InvalidAction error, got %v", err)
	}
}

func TestApplyActionOnTerminalIsPhaseMismatch(t *testing.T) {
	s := newTestState(t)
	for !s.IsTerminal() {
		applyLegalAction(t, s)
	}
	err := s.ApplyAction(0)
	var gameErr *GameError
	if !errors.As(err, &gameErr) || gameErr.Kind != PhaseMismatch {
		t.Fatalf("expected PhaseMismatch error, got %v", err)
	}
}

func TestLegalActionsSpansEntirePhaseRange(t *testing.T) {
	s := newTestState(t)
	legal, err := s.LegalActions()
	if err != nil {
		t.Fatalf("LegalActions failed: %v", err)
	}
	maxID, err := action.LegalRange(action.PhaseChanceValue, s.cfg)
	if err != nil {
		t.Fatalf("LegalRange failed: %v", err)
	}
	if len(legal) != int(maxID)+1 {
		t.Fatalf("LegalActions length = %d, want %d", len(legal), maxID+1)
	}
	for i, a := range legal {
		if a != action.Action(i) {
			t.Fatalf("legal[%d] = %d, want %d", i, a, i)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := newTestState(t)
	applyScenario1Chance(t, s)
	clone := s.Clone()

	mustApply(t, s, action.Variant{Kind: action.KindPlayerQuote, BidPrice: 1, BidSize: 1, AskPrice: 30, AskSize: 1})

	if clone.move != 5 {
		t.Fatalf("clone's move mutated: got %d, want 5", clone.move)
	}
	if len(clone.quoteLog) != 0 {
		t.Fatalf("clone's quote log mutated: %v", clone.quoteLog)
	}
	if _, ok := clone.book.BestBid(); ok {
		t.Fatalf("clone's book mutated by original's AddOrder")
	}
}

func TestUndoActionReplaysHistory(t *testing.T) {
	s := newTestState(t)
	applyScenario1Chance(t, s)
	mustApply(t, s, action.Variant{Kind: action.KindPlayerQuote, BidPrice: 1, BidSize: 1, AskPrice: 30, AskSize: 1})

	lastMove := s.history[len(s.history)-1]
	if err := s.UndoAction(lastMove.Player, lastMove.Move); err != nil {
		t.Fatalf("UndoAction failed: %v", err)
	}
	if s.move != 5 {
		t.Fatalf("after undo, move = %d, want 5", s.move)
	}
	if len(s.quoteLog) != 0 {
		t.Fatalf("after undo, quote log should be empty, got %v", s.quoteLog)
	}
}

func TestActionToStringRendersDecodedVariant(t *testing.T) {
	s := newTestState(t)
	str, err := s.ActionToString(0, 4) // ContractValueDraw{5}
	if err != nil {
		t.Fatalf("ActionToString failed: %v", err)
	}
	if str == "" {
		t.Fatalf("expected non-empty rendering")
	}
}

func TestResampleFromInfostateReturnsFreshInitialState(t *testing.T) {
	s := newTestState(t)
	applyScenario1Chance(t, s)
	mustApply(t, s, action.Variant{Kind: action.KindPlayerQuote, BidPrice: 1, BidSize: 1, AskPrice: 30, AskSize: 1})

	resampled := s.ResampleFromInfostate(0)
	if resampled.MoveNumber() != 0 {
		t.Fatalf("expected a fresh initial state at move 0, got move %d", resampled.MoveNumber())
	}
	if resampled.CurrentPlayer() != ChancePlayer {
		t.Fatalf("expected a fresh initial state to start at the chance player")
	}
	if s.MoveNumber() == 0 {
		t.Fatalf("resampling should not mutate the original state")
	}
}
