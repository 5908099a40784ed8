package hltgame

import (
	"fmt"
	"math"
	"strings"

	"highlowtrading/internal/action"
)

// InformationStateTensor writes the per-player info-state tensor described
// in spec.md §4.5. The game is Markov in the info-state, so this also
// serves as the observation tensor (spec.md §4.5, §6).
func (s *State) InformationStateTensor(player int) ([]float32, error) {
	if player < 0 || player >= s.cfg.NumPlayers {
		return nil, newError(HostMisuse, fmt.Sprintf("player %d out of range [0,%d)", player, s.cfg.NumPlayers))
	}
	np := s.cfg.NumPlayers
	length := 11 + s.cfg.StepsPerPlayer*np*6 + np*2
	values := make([]float32, length)
	offset := 0

	// 1. Game configuration (5 floats).
	values[offset] = float32(s.cfg.StepsPerPlayer)
	offset++
	values[offset] = float32(s.cfg.MaxContractsPerTrade)
	offset++
	values[offset] = float32(s.cfg.CustomerMaxSize)
	offset++
	values[offset] = float32(s.cfg.MaxContractValue)
	offset++
	values[offset] = float32(np)
	offset++

	rolesKnown := s.move >= s.cfg.ChanceMoves()

	// 2. One-hot role of the observer (3 floats).
	if rolesKnown {
		switch s.roles[player] {
		case action.RoleValueCheater:
			values[offset] = 1
		case action.RoleHighLowCheater:
			values[offset+1] = 1
		case action.RoleCustomer:
			values[offset+2] = 1
		}
	}
	offset += 3

	// 3. sin/cos of the observer's player id (2 floats).
	angle := 2 * math.Pi * float64(player) / float64(np)
	values[offset] = float32(math.Sin(angle))
	offset++
	values[offset] = float32(math.Cos(angle))
	offset++

	// 4. Private payload (1 float).
	if rolesKnown {
		values[offset] = float32(s.privatePayload(player))
	}
	offset++

	// 5. Every player's (contracts, cash) — 2*np floats.
	for _, p := range s.positions {
		values[offset] = float32(p.Contracts)
		offset++
		values[offset] = float32(p.Cash)
		offset++
	}

	// 6. One 6-float block per recorded quote; the tail stays zero.
	for _, q := range s.quoteLog {
		values[offset] = float32(q.Quote.BidPrice)
		offset++
		values[offset] = float32(q.Quote.AskPrice)
		offset++
		values[offset] = float32(q.Quote.BidSize)
		offset++
		values[offset] = float32(q.Quote.AskSize)
		offset++
		actorAngle := 2 * math.Pi * float64(q.Player) / float64(np)
		values[offset] = float32(math.Sin(actorAngle))
		offset++
		values[offset] = float32(math.Cos(actorAngle))
		offset++
	}

	return values, nil
}

// ObservationTensor is identical to InformationStateTensor: the game is
// Markov in the info-state (spec.md §4.5).
func (s *State) ObservationTensor(player int) ([]float32, error) {
	return s.InformationStateTensor(player)
}

// InformationStateString renders the observer's private information (role
// and payload; a "pending..." placeholder before the permutation is drawn)
// followed by the full
// public quote/fill/position/market log (spec.md §4.5).
func (s *State) InformationStateString(player int) (string, error) {
	if player < 0 || player >= s.cfg.NumPlayers {
		return "", newError(HostMisuse, fmt.Sprintf("player %d out of range [0,%d)", player, s.cfg.NumPlayers))
	}
	var sb strings.Builder
	sb.WriteString("private information:\n")

	if s.move >= s.cfg.ChanceMoves() {
		role := s.roles[player]
		fmt.Fprintf(&sb, "  role: %s\n", role)
		switch role {
		case action.RoleValueCheater:
			fmt.Fprintf(&sb, "  candidate contract value: %d\n", int(s.privatePayload(player)))
		case action.RoleHighLowCheater:
			settleOn := "Low"
			if s.isHigh {
				settleOn = "High"
			}
			fmt.Fprintf(&sb, "  settlement will be: %s\n", settleOn)
		case action.RoleCustomer:
			fmt.Fprintf(&sb, "  target position: %+d\n", s.targets[player])
		}
	} else {
		sb.WriteString("  pending...\n")
	}

	sb.WriteString(s.publicInfoString())
	return sb.String(), nil
}

// ObservationString is identical to InformationStateString (spec.md §4.5).
func (s *State) ObservationString(player int) (string, error) {
	return s.InformationStateString(player)
}

// privatePayload is the single-number private signal carried by a role:
// the candidate contract value for a ValueCheater, +1/-1 for a
// HighLowCheater, or the target for a Customer. Shared by the tensor and
// string views and by PrivateInfo below.
func (s *State) privatePayload(player int) int {
	switch s.roles[player] {
	case action.RoleValueCheater:
		slot := s.permutationSlotOf(player)
		if slot < 0 || slot > 1 {
			return 0
		}
		return s.contractValues[slot]
	case action.RoleHighLowCheater:
		if s.isHigh {
			return 1
		}
		return -1
	case action.RoleCustomer:
		return s.targets[player]
	default:
		return 0
	}
}

// PrivateInfo exposes a player's role and private payload once the
// permutation has been drawn, for callers (scripted bots, UI) that need the
// decoded signal rather than the raw tensor. HostMisuse before the
// permutation phase resolves.
func (s *State) PrivateInfo(player int) (action.Role, int, error) {
	if player < 0 || player >= s.cfg.NumPlayers {
		return 0, 0, newError(HostMisuse, fmt.Sprintf("player %d out of range [0,%d)", player, s.cfg.NumPlayers))
	}
	if s.move < s.cfg.ChanceMoves() {
		return 0, 0, newError(HostMisuse, "private info queried before the permutation has been drawn")
	}
	return s.roles[player], s.privatePayload(player), nil
}
