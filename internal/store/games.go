package store

import (
	"database/sql"
	"time"
)

// GameRecord is a single completed game's configuration and outcome.
type GameRecord struct {
	ID                   string
	NumPlayers           int
	StepsPerPlayer       int
	MaxContractsPerTrade int
	CustomerMaxSize      int
	MaxContractValue     int
	SettlementValue      int
	FinalBook            string
	StartedAt            time.Time
	EndedAt              time.Time
	CreatedAt            time.Time
}

// SeatResult is one seat's role, target, and final position in a game.
type SeatResult struct {
	GameID         string
	Seat           int
	UserID         sql.NullString
	Role           string
	Target         int
	FinalContracts int
	FinalCash      int
	ReturnValue    float64
}

// UserStats is the running aggregate of a seat holder's results across
// every game they've occupied a human seat in.
type UserStats struct {
	UserID       string
	GamesPlayed  int
	TotalReturn  float64
	BestReturn   float64
	WorstReturn  float64
	UpdatedAt    time.Time
}

// SaveGame records a completed game and every seat's result, then updates
// the aggregate stats of any human-held seat.
func (s *Store) SaveGame(game GameRecord, seats []SeatResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO games (id, num_players, steps_per_player, max_contracts_per_trade,
			customer_max_size, max_contract_value, settlement_value, final_book, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, game.ID, game.NumPlayers, game.StepsPerPlayer, game.MaxContractsPerTrade,
		game.CustomerMaxSize, game.MaxContractValue, game.SettlementValue, game.FinalBook,
		game.StartedAt, game.EndedAt)
	if err != nil {
		return err
	}

	for _, seat := range seats {
		_, err = tx.Exec(`
			INSERT INTO game_seats (game_id, seat, user_id, role, target, final_contracts, final_cash, return_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, game.ID, seat.Seat, seat.UserID, seat.Role, seat.Target,
			seat.FinalContracts, seat.FinalCash, seat.ReturnValue)
		if err != nil {
			return err
		}

		if seat.UserID.Valid {
			if err := s.updateUserStatsInTx(tx, seat.UserID.String, seat.ReturnValue); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (s *Store) updateUserStatsInTx(tx *sql.Tx, userID string, returnValue float64) error {
	var stats UserStats
	err := tx.QueryRow(`
		SELECT user_id, games_played, total_return, best_return, worst_return
		FROM user_stats WHERE user_id = ?
	`, userID).Scan(&stats.UserID, &stats.GamesPlayed, &stats.TotalReturn, &stats.BestReturn, &stats.WorstReturn)

	if err == sql.ErrNoRows {
		stats = UserStats{UserID: userID}
	} else if err != nil {
		return err
	}

	stats.GamesPlayed++
	stats.TotalReturn += returnValue
	if stats.GamesPlayed == 1 || returnValue > stats.BestReturn {
		stats.BestReturn = returnValue
	}
	if stats.GamesPlayed == 1 || returnValue < stats.WorstReturn {
		stats.WorstReturn = returnValue
	}

	_, err = tx.Exec(`
		INSERT INTO user_stats (user_id, games_played, total_return, best_return, worst_return, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			games_played = excluded.games_played,
			total_return = excluded.total_return,
			best_return = excluded.best_return,
			worst_return = excluded.worst_return,
			updated_at = CURRENT_TIMESTAMP
	`, stats.UserID, stats.GamesPlayed, stats.TotalReturn, stats.BestReturn, stats.WorstReturn)
	return err
}

// GetUserStats returns the aggregate stats for a user, zero-valued if they
// have never held a seat.
func (s *Store) GetUserStats(userID string) (*UserStats, error) {
	var stats UserStats
	err := s.db.QueryRow(`
		SELECT user_id, games_played, total_return, best_return, worst_return, updated_at
		FROM user_stats WHERE user_id = ?
	`, userID).Scan(&stats.UserID, &stats.GamesPlayed, &stats.TotalReturn, &stats.BestReturn, &stats.WorstReturn, &stats.UpdatedAt)
	if err == sql.ErrNoRows {
		return &UserStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetGame returns a completed game's record by ID.
func (s *Store) GetGame(gameID string) (*GameRecord, error) {
	var g GameRecord
	err := s.db.QueryRow(`
		SELECT id, num_players, steps_per_player, max_contracts_per_trade,
			customer_max_size, max_contract_value, settlement_value, final_book, started_at, ended_at, created_at
		FROM games WHERE id = ?
	`, gameID).Scan(&g.ID, &g.NumPlayers, &g.StepsPerPlayer, &g.MaxContractsPerTrade,
		&g.CustomerMaxSize, &g.MaxContractValue, &g.SettlementValue, &g.FinalBook,
		&g.StartedAt, &g.EndedAt, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetGameSeats returns every seat's result for a completed game, ordered by seat.
func (s *Store) GetGameSeats(gameID string) ([]SeatResult, error) {
	rows, err := s.db.Query(`
		SELECT game_id, seat, user_id, role, target, final_contracts, final_cash, return_value
		FROM game_seats WHERE game_id = ? ORDER BY seat ASC
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []SeatResult
	for rows.Next() {
		var seat SeatResult
		if err := rows.Scan(&seat.GameID, &seat.Seat, &seat.UserID, &seat.Role,
			&seat.Target, &seat.FinalContracts, &seat.FinalCash, &seat.ReturnValue); err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, rows.Err()
}

// GetRecentGames returns the most recently completed games.
func (s *Store) GetRecentGames(limit int) ([]GameRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, num_players, steps_per_player, max_contracts_per_trade,
			customer_max_size, max_contract_value, settlement_value, final_book, started_at, ended_at, created_at
		FROM games ORDER BY ended_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []GameRecord
	for rows.Next() {
		var g GameRecord
		if err := rows.Scan(&g.ID, &g.NumPlayers, &g.StepsPerPlayer, &g.MaxContractsPerTrade,
			&g.CustomerMaxSize, &g.MaxContractValue, &g.SettlementValue, &g.FinalBook,
			&g.StartedAt, &g.EndedAt, &g.CreatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// GetLeaderboard returns the top users by total return across every game
// they've held a human seat in.
func (s *Store) GetLeaderboard(limit int) ([]UserStats, error) {
	rows, err := s.db.Query(`
		SELECT user_id, games_played, total_return, best_return, worst_return, updated_at
		FROM user_stats WHERE games_played > 0
		ORDER BY total_return DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []UserStats
	for rows.Next() {
		var st UserStats
		if err := rows.Scan(&st.UserID, &st.GamesPlayed, &st.TotalReturn, &st.BestReturn, &st.WorstReturn, &st.UpdatedAt); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
