// Package action implements the phase-dependent bijection between a raw
// action id and a structured High-Low Trading action: the chance draws,
// the permutation/role assignment, the customer target, and a player's
// two-sided quote.
package action

import (
	"fmt"

	"highlowtrading/internal/permtab"
)

// Action is a raw, dense, non-negative action id as seen by the host
// game-framework boundary.
type Action int64

// Config holds the game's immutable construction parameters (spec.md §3).
type Config struct {
	NumPlayers            int
	StepsPerPlayer        int
	MaxContractsPerTrade  int
	CustomerMaxSize       int
	MaxContractValue      int
}

// Validate checks the configuration bounds from spec.md §3.
func (c Config) Validate() error {
	if c.NumPlayers < 4 || c.NumPlayers > 10 {
		return fmt.Errorf("action: num_players %d out of range [4, 10]", c.NumPlayers)
	}
	if c.StepsPerPlayer < 1 {
		return fmt.Errorf("action: steps_per_player %d must be >= 1", c.StepsPerPlayer)
	}
	if c.MaxContractsPerTrade < 1 {
		return fmt.Errorf("action: max_contracts_per_trade %d must be >= 1", c.MaxContractsPerTrade)
	}
	if c.MaxContractValue < 2 {
		return fmt.Errorf("action: max_contract_value %d must be >= 2", c.MaxContractValue)
	}
	if c.CustomerMaxSize < 1 {
		return fmt.Errorf("action: customer_max_size %d must be >= 1", c.CustomerMaxSize)
	}
	return nil
}

// NumCustomers returns num_players - 3.
func (c Config) NumCustomers() int { return c.NumPlayers - 3 }

// ChanceMoves returns 4 + num_customers.
func (c Config) ChanceMoves() int { return 4 + c.NumCustomers() }

// TotalMoves returns chance_moves + steps_per_player*num_players.
func (c Config) TotalMoves() int { return c.ChanceMoves() + c.StepsPerPlayer*c.NumPlayers }

// Phase is one of the six symbolic stages of the game, a pure function of
// the move counter (spec.md §4.2).
type Phase int

const (
	PhaseChanceValue Phase = iota
	PhaseChanceHighLow
	PhaseChancePermutation
	PhaseCustomerSize
	PhasePlayerTrading
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseChanceValue:
		return "ChanceValue"
	case PhaseChanceHighLow:
		return "ChanceHighLow"
	case PhaseChancePermutation:
		return "ChancePermutation"
	case PhaseCustomerSize:
		return "CustomerSize"
	case PhasePlayerTrading:
		return "PlayerTrading"
	case PhaseTerminal:
		return "Terminal"
	default:
		return "Unknown"
	}
}

// PhaseOf returns the phase for move index m under cfg (spec.md §4.2).
func PhaseOf(m int, cfg Config) Phase {
	nc := cfg.NumCustomers()
	chanceMoves := cfg.ChanceMoves()
	switch {
	case m < 0:
		return PhaseTerminal
	case m < 2:
		return PhaseChanceValue
	case m == 2:
		return PhaseChanceHighLow
	case m == 3:
		return PhaseChancePermutation
	case m < chanceMoves:
		_ = nc
		return PhaseCustomerSize
	case m < chanceMoves+cfg.StepsPerPlayer*cfg.NumPlayers:
		return PhasePlayerTrading
	default:
		return PhaseTerminal
	}
}

// Role is a player's assigned role, derived from the drawn permutation.
type Role int

const (
	RoleValueCheater Role = iota
	RoleHighLowCheater
	RoleCustomer
)

func (r Role) String() string {
	switch r {
	case RoleValueCheater:
		return "ValueCheater"
	case RoleHighLowCheater:
		return "HighLowCheater"
	case RoleCustomer:
		return "Customer"
	default:
		return "Unknown"
	}
}

// RoleFromPermutationSlot returns the role of the player occupying
// permutation slot i, given perm[i] (spec.md §3).
func RoleFromPermutationSlot(permID int) Role {
	switch permID {
	case 0, 1:
		return RoleValueCheater
	case 2:
		return RoleHighLowCheater
	default:
		return RoleCustomer
	}
}

// Kind tags which structured action a Variant carries.
type Kind int

const (
	KindContractValue Kind = iota
	KindHighLow
	KindPermutation
	KindCustomerTarget
	KindPlayerQuote
)

// Variant is the tagged structured action decoded from (or destined to be
// encoded into) a raw Action id. Only the fields relevant to Kind are
// meaningful.
type Variant struct {
	Kind Kind

	ContractValue int // KindContractValue: v in [1, max_contract_value]
	IsHigh        bool // KindHighLow

	Permutation []int  // KindPermutation: perm of [0, num_players)
	Roles       []Role // KindPermutation: roles[i] for player i

	CustomerSize int // KindCustomerTarget: in [-S, S] \ {0}, or S+1 at the top edge id (see DESIGN.md)

	BidSize  int // KindPlayerQuote
	AskSize  int
	BidPrice int // 1-based
	AskPrice int // 1-based
}

func (v Variant) String() string {
	switch v.Kind {
	case KindContractValue:
		return fmt.Sprintf("ContractValueDraw{%d}", v.ContractValue)
	case KindHighLow:
		return fmt.Sprintf("HighLowDraw{is_high=%t}", v.IsHigh)
	case KindPermutation:
		return fmt.Sprintf("PermutationDraw{perm=%v}", v.Permutation)
	case KindCustomerTarget:
		return fmt.Sprintf("CustomerTarget{%+d}", v.CustomerSize)
	case KindPlayerQuote:
		return fmt.Sprintf("PlayerQuote{bid=%d@%d ask=%d@%d}", v.BidSize, v.BidPrice, v.AskSize, v.AskPrice)
	default:
		return "Variant{unknown}"
	}
}

// LegalRange returns the inclusive [0, max] legal id range for phase under
// cfg. It errors for PhaseTerminal, which has no legal actions.
func LegalRange(phase Phase, cfg Config) (max Action, err error) {
	switch phase {
	case PhaseChanceValue:
		return Action(cfg.MaxContractValue - 1), nil
	case PhaseChanceHighLow:
		return 1, nil
	case PhaseChancePermutation:
		return Action(permtab.Factorial(cfg.NumPlayers) - 1), nil
	case PhaseCustomerSize:
		return Action(2 * cfg.CustomerMaxSize), nil
	case PhasePlayerTrading:
		mct := int64(cfg.MaxContractsPerTrade + 1)
		mcv := int64(cfg.MaxContractValue)
		return Action(mct*mct*mcv*mcv - 1), nil
	default:
		return 0, fmt.Errorf("action: phase %s has no legal action range", phase)
	}
}

// Decode converts a raw action id into its structured Variant for phase.
func Decode(phase Phase, cfg Config, id Action) (Variant, error) {
	maxID, err := LegalRange(phase, cfg)
	if err != nil {
		return Variant{}, err
	}
	if id < 0 || id > maxID {
		return Variant{}, fmt.Errorf("action: id %d out of range [0, %d] for phase %s", id, maxID, phase)
	}

	switch phase {
	case PhaseChanceValue:
		return Variant{Kind: KindContractValue, ContractValue: int(id) + 1}, nil

	case PhaseChanceHighLow:
		return Variant{Kind: KindHighLow, IsHigh: id == 1}, nil

	case PhaseChancePermutation:
		perm, err := permtab.Unrank(int64(id), cfg.NumPlayers)
		if err != nil {
			return Variant{}, fmt.Errorf("action: decoding permutation: %w", err)
		}
		roles := make([]Role, cfg.NumPlayers)
		for i, p := range perm {
			roles[i] = RoleFromPermutationSlot(p)
		}
		return Variant{Kind: KindPermutation, Permutation: perm, Roles: roles}, nil

	case PhaseCustomerSize:
		s := cfg.CustomerMaxSize
		size := int(id) - s
		if size >= 0 {
			size++
		}
		return Variant{Kind: KindCustomerTarget, CustomerSize: size}, nil

	case PhasePlayerTrading:
		mct := cfg.MaxContractsPerTrade
		mcv := cfg.MaxContractValue
		rolling := int64(id)

		bidSizeDenom := int64(mct+1) * int64(mcv) * int64(mcv)
		bidSize := rolling / bidSizeDenom
		rolling %= bidSizeDenom

		askSizeDenom := int64(mcv) * int64(mcv)
		askSize := rolling / askSizeDenom
		rolling %= askSizeDenom

		bidPriceDenom := int64(mcv)
		bidPrice := rolling/bidPriceDenom + 1
		rolling %= bidPriceDenom
		askPrice := rolling + 1

		return Variant{
			Kind:     KindPlayerQuote,
			BidSize:  int(bidSize),
			AskSize:  int(askSize),
			BidPrice: int(bidPrice),
			AskPrice: int(askPrice),
		}, nil

	default:
		return Variant{}, fmt.Errorf("action: phase %s has no decode rule", phase)
	}
}

// Encode converts a structured Variant into its raw action id, the inverse
// of Decode for the variant's implied phase.
func Encode(cfg Config, v Variant) (Action, error) {
	switch v.Kind {
	case KindContractValue:
		return Action(v.ContractValue - 1), nil

	case KindHighLow:
		if v.IsHigh {
			return 1, nil
		}
		return 0, nil

	case KindPermutation:
		return Action(permtab.Rank(v.Permutation)), nil

	case KindCustomerTarget:
		if v.CustomerSize == 0 {
			return 0, fmt.Errorf("action: customer size 0 is forbidden")
		}
		s := v.CustomerSize
		if s > 0 {
			s--
		}
		return Action(s + cfg.CustomerMaxSize), nil

	case KindPlayerQuote:
		mcv := int64(cfg.MaxContractValue)
		mct := int64(cfg.MaxContractsPerTrade)
		adjBid := int64(v.BidPrice - 1)
		adjAsk := int64(v.AskPrice - 1)
		id := adjAsk + adjBid*mcv + int64(v.AskSize)*mcv*mcv + int64(v.BidSize)*(mct+1)*mcv*mcv
		return Action(id), nil

	default:
		return 0, fmt.Errorf("action: unknown variant kind %d", v.Kind)
	}
}

// ActionProb pairs a legal chance action with its probability.
type ActionProb struct {
	Action Action
	Prob   float64
}

// ChanceOutcomes lists the uniform chance outcomes for phase (spec.md §4.4:
// "Chance outcomes are uniform over that range"). Errors for non-chance
// phases.
func ChanceOutcomes(phase Phase, cfg Config) ([]ActionProb, error) {
	switch phase {
	case PhaseChanceValue, PhaseChanceHighLow, PhaseChancePermutation, PhaseCustomerSize:
	default:
		return nil, fmt.Errorf("action: phase %s is not a chance phase", phase)
	}
	maxID, err := LegalRange(phase, cfg)
	if err != nil {
		return nil, err
	}
	n := int(maxID) + 1
	outcomes := make([]ActionProb, n)
	prob := 1.0 / float64(n)
	for i := 0; i < n; i++ {
		outcomes[i] = ActionProb{Action: Action(i), Prob: prob}
	}
	return outcomes, nil
}
