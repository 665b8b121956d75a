// Package repository provides the relational sink's query and write
// surface over the replay schema.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ramonehamilton/arena-replay/internal/mtga/assembler"
	"github.com/ramonehamilton/arena-replay/internal/storage"
)

// ErrDuplicateMatch is returned when a replay is written for a match id
// that already exists in the store.
var ErrDuplicateMatch = errors.New("match already recorded")

// ErrMatchNotFound is returned when a lookup finds no matching row.
var ErrMatchNotFound = errors.New("match not found")

// ReplayRepository is the persistence boundary for assembled match replays.
type ReplayRepository interface {
	// Write persists a replay in a single transaction. It is safe to call
	// concurrently; a repeat write for the same match id fails with
	// ErrDuplicateMatch and leaves the existing rows untouched.
	Write(ctx context.Context, replay *assembler.MatchReplay) error

	// GetMatches returns every recorded match header, in insertion order.
	GetMatches(ctx context.Context) ([]MatchRow, error)

	// GetMatch retrieves a single match header by id.
	GetMatch(ctx context.Context, matchID string) (*MatchRow, error)

	// GetDecklists returns every decklist submission recorded for a match,
	// ordered by submission index.
	GetDecklists(ctx context.Context, matchID string) ([]assembler.Decklist, error)

	// GetMulligans returns every mulligan decision recorded for a match.
	GetMulligans(ctx context.Context, matchID string) ([]assembler.Mulligan, error)

	// GetMatchResults returns every game result recorded for a match.
	GetMatchResults(ctx context.Context, matchID string) ([]assembler.GameResult, error)
}

// MatchRow is a match header as stored, with its derived outcome.
type MatchRow struct {
	assembler.Match
	ControllerWon bool
}

type replayRepository struct {
	db *storage.DB
}

// NewReplayRepository builds a ReplayRepository backed by db.
func NewReplayRepository(db *storage.DB) ReplayRepository {
	return &replayRepository{db: db}
}

func (r *replayRepository) Write(ctx context.Context, replay *assembler.MatchReplay) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO matches (
				id, controller_seat_id, controller_player_name,
				opponent_player_name, created_at
			) VALUES (?, ?, ?, ?, ?)
		`,
			replay.Match.ID,
			replay.Match.ControllerSeatID,
			replay.Match.ControllerName,
			replay.Match.OpponentName,
			replay.Match.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateMatch
			}
			return fmt.Errorf("insert match: %w", err)
		}

		for _, d := range replay.Decklists {
			mainDeck, err := json.Marshal(d.MainDeck)
			if err != nil {
				return fmt.Errorf("marshal main deck: %w", err)
			}
			sideboard, err := json.Marshal(d.Sideboard)
			if err != nil {
				return fmt.Errorf("marshal sideboard: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO decks (match_id, submission_index, main_deck, sideboard)
				VALUES (?, ?, ?, ?)
			`, replay.Match.ID, d.SubmissionIndex, mainDeck, sideboard)
			if err != nil {
				return fmt.Errorf("insert deck submission %d: %w", d.SubmissionIndex, err)
			}
		}

		for _, m := range replay.Mulligans {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO mulligans (
					match_id, game_number, opponent_identity,
					number_to_keep, play_draw, decision, hand
				) VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
				replay.Match.ID, m.GameNumber, m.OpponentIdentity,
				m.NumberToKeep, m.PlayDraw, m.Decision, encodeHand(m.Hand),
			)
			if err != nil {
				return fmt.Errorf("insert mulligan for game %d: %w", m.GameNumber, err)
			}
		}

		for _, g := range replay.GameResults {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO game_results (match_id, game_number, winning_seat_id, result_reason)
				VALUES (?, ?, ?, ?)
			`, replay.Match.ID, g.GameNumber, g.WinningSeatID, g.ResultReason)
			if err != nil {
				return fmt.Errorf("insert game result %d: %w", g.GameNumber, err)
			}
		}

		for _, raw := range replay.RawEvents {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO events (match_id, seq, kind, payload)
				VALUES (?, ?, ?, ?)
			`, replay.Match.ID, raw.Seq, raw.Kind, []byte(raw.Raw))
			if err != nil {
				return fmt.Errorf("insert event seq %d: %w", raw.Seq, err)
			}
		}

		return nil
	})
}

func (r *replayRepository) GetMatches(ctx context.Context) ([]MatchRow, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, controller_seat_id, controller_player_name, opponent_player_name, created_at
		FROM matches
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var m MatchRow
		if err := rows.Scan(&m.ID, &m.ControllerSeatID, &m.ControllerName, &m.OpponentName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	// The single-connection pool means the headers must be fully read
	// before issuing the per-match result queries.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close matches: %w", err)
	}

	for i := range out {
		results, err := r.GetMatchResults(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].ControllerWon = (&assembler.MatchReplay{Match: out[i].Match, GameResults: results}).DidControllerWin()
	}

	return out, nil
}

func (r *replayRepository) GetMatch(ctx context.Context, matchID string) (*MatchRow, error) {
	var m MatchRow
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, controller_seat_id, controller_player_name, opponent_player_name, created_at
		FROM matches
		WHERE id = ?
	`, matchID).Scan(&m.ID, &m.ControllerSeatID, &m.ControllerName, &m.OpponentName, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}

	results, err := r.GetMatchResults(ctx, matchID)
	if err != nil {
		return nil, err
	}
	m.ControllerWon = (&assembler.MatchReplay{Match: m.Match, GameResults: results}).DidControllerWin()

	return &m, nil
}

func (r *replayRepository) GetDecklists(ctx context.Context, matchID string) ([]assembler.Decklist, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT submission_index, main_deck, sideboard
		FROM decks
		WHERE match_id = ?
		ORDER BY submission_index
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("query decklists: %w", err)
	}
	defer rows.Close()

	var out []assembler.Decklist
	for rows.Next() {
		var d assembler.Decklist
		var mainDeck, sideboard []byte
		if err := rows.Scan(&d.SubmissionIndex, &mainDeck, &sideboard); err != nil {
			return nil, fmt.Errorf("scan decklist: %w", err)
		}
		if err := json.Unmarshal(mainDeck, &d.MainDeck); err != nil {
			return nil, fmt.Errorf("decode main deck for submission %d: %w", d.SubmissionIndex, err)
		}
		if err := json.Unmarshal(sideboard, &d.Sideboard); err != nil {
			return nil, fmt.Errorf("decode sideboard for submission %d: %w", d.SubmissionIndex, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decklists: %w", err)
	}

	return out, nil
}

func (r *replayRepository) GetMulligans(ctx context.Context, matchID string) ([]assembler.Mulligan, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT game_number, opponent_identity, number_to_keep, play_draw, decision, hand
		FROM mulligans
		WHERE match_id = ?
		ORDER BY id
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("query mulligans: %w", err)
	}
	defer rows.Close()

	var out []assembler.Mulligan
	for rows.Next() {
		var m assembler.Mulligan
		var hand string
		if err := rows.Scan(&m.GameNumber, &m.OpponentIdentity, &m.NumberToKeep, &m.PlayDraw, &m.Decision, &hand); err != nil {
			return nil, fmt.Errorf("scan mulligan: %w", err)
		}
		m.Hand = decodeHand(hand)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mulligans: %w", err)
	}

	return out, nil
}

func (r *replayRepository) GetMatchResults(ctx context.Context, matchID string) ([]assembler.GameResult, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT game_number, winning_seat_id, result_reason
		FROM game_results
		WHERE match_id = ?
		ORDER BY game_number
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("query game results: %w", err)
	}
	defer rows.Close()

	var out []assembler.GameResult
	for rows.Next() {
		var g assembler.GameResult
		if err := rows.Scan(&g.GameNumber, &g.WinningSeatID, &g.ResultReason); err != nil {
			return nil, fmt.Errorf("scan game result: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game results: %w", err)
	}

	return out, nil
}

// encodeHand serializes a mulligan hand as a comma-separated list of card
// ids, matching the format the event decoder parses from the raw log line.
func encodeHand(hand []int64) string {
	parts := make([]string, len(hand))
	for i, id := range hand {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func decodeHand(s string) []int64 {
	if s == "" {
		return nil
	}
	fields := strings.Split(s, ",")
	hand := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			continue
		}
		hand = append(hand, id)
	}
	return hand
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
