// Package assembler reconstructs completed matches from the event stream
// produced by the event package's Decoder.
package assembler

import (
	"time"

	"github.com/ramonehamilton/arena-replay/internal/mtga/event"
)

// Match is the replay's header.
type Match struct {
	ID               string
	ControllerSeatID int
	ControllerName   string
	OpponentName     string
	CreatedAt        time.Time
}

// GameResult is one game within a match.
type GameResult struct {
	GameNumber    int
	WinningSeatID int
	ResultReason  string
}

// Mulligan is a single mulligan decision within a match.
type Mulligan struct {
	GameNumber       int
	OpponentIdentity string
	NumberToKeep     int
	PlayDraw         string
	Decision         string
	Hand             []int64
}

// Decklist is one submission of a player's deck during a match.
type Decklist struct {
	SubmissionIndex int
	MainDeck        []event.DeckCard
	Sideboard       []event.DeckCard
}

// RawEvent is a timestamped, sequence-numbered entry in the replay's raw
// event stream, preserved for diagnostic fidelity.
type RawEvent struct {
	Seq  uint64
	Kind string
	Raw  string
	At   time.Time
}

// MatchReplay is the aggregate root emitted by the assembler for one
// completed match.
type MatchReplay struct {
	Match       Match
	GameResults []GameResult
	Mulligans   []Mulligan
	Decklists   []Decklist
	RawEvents   []RawEvent

	// CardNames maps the card ids referenced by Decklists and Mulligans to
	// their reference-catalog names. Nil when no catalog was configured.
	CardNames map[int64]string `json:",omitempty"`
}

// DidControllerWin derives the match outcome for the controller seat: true
// iff the controller won a strict majority of recorded games.
func (r *MatchReplay) DidControllerWin() bool {
	var wins int
	for _, g := range r.GameResults {
		if g.WinningSeatID == r.Match.ControllerSeatID {
			wins++
		}
	}
	return wins*2 > len(r.GameResults)
}

// PrimaryDecklist returns the first submitted decklist, or the zero value
// and false if none was ever submitted.
func (r *MatchReplay) PrimaryDecklist() (Decklist, bool) {
	if len(r.Decklists) == 0 {
		return Decklist{}, false
	}
	return r.Decklists[0], true
}
