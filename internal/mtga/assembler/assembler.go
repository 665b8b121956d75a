package assembler

import (
	"fmt"

	"github.com/ramonehamilton/arena-replay/internal/mtga/cards"
	"github.com/ramonehamilton/arena-replay/internal/mtga/event"
)

// State is the assembler's position in its match-boundary state machine.
type State int

const (
	StateIdle State = iota
	StateInMatch
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInMatch:
		return "InMatch"
	case StateReady:
		return "Ready"
	default:
		return "Idle"
	}
}

// BuildError reports a required field missing from the accumulated match
// state at Build time.
type BuildError struct {
	Field string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// Disagreement records a controller-seat conflict observed while the
// assembler was tracking a match, for the parse-error stream.
type Disagreement struct {
	MatchID          string
	MatchStartSeat   int
	SelfReportedSeat int
}

// Assembler is a single-match-at-a-time state machine: it ingests decoded
// events and, on a MatchEnd boundary, emits a completed MatchReplay. It is
// not safe for concurrent use.
type Assembler struct {
	state   State
	catalog *cards.Catalog

	match     Match
	games     []GameResult
	mulligans []Mulligan
	decklists []Decklist
	raw       []RawEvent

	disagreements []Disagreement
}

// New returns an Assembler in the Idle state.
func New() *Assembler {
	return &Assembler{state: StateIdle}
}

// NewWithCatalog returns an Assembler that resolves the card ids appearing
// in a replay's decklists and mulligan hands against catalog, so emitted
// replays carry human-readable card names alongside the raw ids.
func NewWithCatalog(catalog *cards.Catalog) *Assembler {
	a := New()
	a.catalog = catalog
	return a
}

// State returns the assembler's current state.
func (a *Assembler) State() State {
	return a.state
}

// Disagreements drains and returns any controller-seat disagreements
// recorded since the last call.
func (a *Assembler) Disagreements() []Disagreement {
	d := a.disagreements
	a.disagreements = nil
	return d
}

// Ingest feeds one decoded event to the assembler. It returns true iff this
// event completed a match (a MatchEnd while InMatch), meaning Build is now
// expected to be called.
func (a *Assembler) Ingest(ev event.Event) bool {
	switch a.state {
	case StateIdle:
		if ev.Kind == event.KindMatchStart {
			a.openMatch(ev)
		}
		return false

	case StateInMatch:
		return a.ingestInMatch(ev)

	default:
		// Ready: callers must Build before ingesting further events.
		return false
	}
}

func (a *Assembler) openMatch(ev event.Event) {
	p := ev.MatchStart
	a.state = StateInMatch
	a.match = Match{
		ID:               p.MatchID,
		ControllerSeatID: p.ControllerSeatID,
		ControllerName:   p.ControllerName,
		OpponentName:     p.OpponentName,
		CreatedAt:        p.CreatedAt,
	}
	a.games = nil
	a.mulligans = nil
	a.decklists = nil
	a.raw = nil

	if p.SelfSeatID != 0 && p.SelfSeatID != p.ControllerSeatID {
		a.disagreements = append(a.disagreements, Disagreement{
			MatchID:          p.MatchID,
			MatchStartSeat:   p.ControllerSeatID,
			SelfReportedSeat: p.SelfSeatID,
		})
	}
}

func (a *Assembler) ingestInMatch(ev event.Event) bool {
	switch ev.Kind {
	case event.KindDecklistSubmission:
		a.decklists = append(a.decklists, Decklist{
			SubmissionIndex: len(a.decklists),
			MainDeck:        ev.Decklist.MainDeck,
			Sideboard:       ev.Decklist.Sideboard,
		})
		a.appendRaw(ev)

	case event.KindMulliganDecision:
		p := ev.Mulligan
		a.mulligans = append(a.mulligans, Mulligan{
			GameNumber:       p.GameNumber,
			OpponentIdentity: p.OpponentIdentity,
			NumberToKeep:     p.NumberToKeep,
			PlayDraw:         p.PlayDraw,
			Decision:         p.Decision,
			Hand:             p.Hand,
		})
		a.appendRaw(ev)

	case event.KindGameEnd:
		p := ev.GameEnd
		a.games = append(a.games, GameResult{
			GameNumber:    p.GameNumber,
			WinningSeatID: p.WinningSeatID,
			ResultReason:  p.ResultReason,
		})
		a.appendRaw(ev)

	case event.KindMatchEnd:
		a.appendRaw(ev)
		a.state = StateReady
		return true

	default:
		a.appendRaw(ev)
	}
	return false
}

func (a *Assembler) appendRaw(ev event.Event) {
	a.raw = append(a.raw, RawEvent{Seq: ev.Seq, Kind: ev.Kind.String(), Raw: ev.Raw, At: ev.At})
}

// Build consumes the accumulated match state and returns the aggregate.
// Regardless of outcome, the assembler resets to Idle so the ingest loop
// can continue with the next match.
func (a *Assembler) Build() (*MatchReplay, error) {
	defer a.reset()

	if a.match.ID == "" {
		return nil, &BuildError{Field: "match_id"}
	}
	if len(a.decklists) == 0 {
		return nil, &BuildError{Field: "decklists"}
	}

	return &MatchReplay{
		Match:       a.match,
		GameResults: a.games,
		Mulligans:   a.mulligans,
		Decklists:   a.decklists,
		RawEvents:   a.raw,
		CardNames:   a.resolveCardNames(),
	}, nil
}

// resolveCardNames maps every card id referenced by the accumulated
// decklists and mulligan hands to its catalog name. Ids the catalog does
// not know are omitted; without a catalog the map is nil.
func (a *Assembler) resolveCardNames() map[int64]string {
	if a.catalog == nil {
		return nil
	}
	names := make(map[int64]string)
	resolve := func(id int64) {
		if _, done := names[id]; done {
			return
		}
		if card, ok := a.catalog.Get(id); ok {
			names[id] = card.Name
		}
	}
	for _, d := range a.decklists {
		for _, c := range d.MainDeck {
			resolve(c.CardID)
		}
		for _, c := range d.Sideboard {
			resolve(c.CardID)
		}
	}
	for _, m := range a.mulligans {
		for _, id := range m.Hand {
			resolve(id)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

func (a *Assembler) reset() {
	a.state = StateIdle
	a.match = Match{}
	a.games = nil
	a.mulligans = nil
	a.decklists = nil
	a.raw = nil
}
