package assembler

import (
	"reflect"
	"testing"
	"time"

	"github.com/ramonehamilton/arena-replay/internal/mtga/cards"
	"github.com/ramonehamilton/arena-replay/internal/mtga/event"
)

func matchStart(id string, seat int) event.Event {
	return event.Event{
		Kind: event.KindMatchStart,
		MatchStart: &event.MatchStartPayload{
			MatchID:          id,
			ControllerSeatID: seat,
			ControllerName:   "Alice",
			OpponentName:     "Bob",
			CreatedAt:        time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
	}
}

func decklistSubmission(cards ...event.DeckCard) event.Event {
	return event.Event{
		Kind:     event.KindDecklistSubmission,
		Decklist: &event.DecklistPayload{MainDeck: cards},
	}
}

func gameEnd(game, winner int, reason string) event.Event {
	return event.Event{
		Kind: event.KindGameEnd,
		GameEnd: &event.GameEndPayload{
			GameNumber:    game,
			WinningSeatID: winner,
			ResultReason:  reason,
		},
	}
}

var matchEnd = event.Event{Kind: event.KindMatchEnd}

// Minimal complete match: one decklist, one game, MatchEnd closes it.
func TestAssembler_MinimalMatch(t *testing.T) {
	a := New()

	events := []event.Event{
		matchStart("M1", 1),
		decklistSubmission(event.DeckCard{CardID: 101, Quantity: 4}, event.DeckCard{CardID: 102, Quantity: 20}),
		gameEnd(1, 1, "Concede"),
		matchEnd,
	}

	var completed bool
	for _, ev := range events {
		completed = a.Ingest(ev)
	}
	if !completed {
		t.Fatal("Ingest did not report completion on MatchEnd")
	}

	replay, err := a.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(replay.Decklists) != 1 {
		t.Fatalf("Decklists len = %d, want 1", len(replay.Decklists))
	}
	if len(replay.GameResults) != 1 {
		t.Fatalf("GameResults len = %d, want 1", len(replay.GameResults))
	}
	if !replay.DidControllerWin() {
		t.Error("DidControllerWin() = false, want true")
	}
	if a.State() != StateIdle {
		t.Errorf("state after Build = %v, want Idle", a.State())
	}
}

// A mulligan decision before the first game is carried on the replay.
func TestAssembler_MulliganPath(t *testing.T) {
	a := New()
	a.Ingest(matchStart("M1", 1))
	a.Ingest(event.Event{
		Kind: event.KindMulliganDecision,
		Mulligan: &event.MulliganPayload{
			GameNumber:   1,
			Hand:         []int64{101, 101, 102, 102, 102, 102, 102},
			NumberToKeep: 6,
			PlayDraw:     "Play",
			Decision:     "mulligan",
		},
	})
	a.Ingest(decklistSubmission(event.DeckCard{CardID: 101, Quantity: 4}, event.DeckCard{CardID: 102, Quantity: 20}))
	a.Ingest(gameEnd(1, 1, "Concede"))
	a.Ingest(matchEnd)

	replay, err := a.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(replay.Mulligans) != 1 {
		t.Fatalf("Mulligans len = %d, want 1", len(replay.Mulligans))
	}
	if len(replay.Mulligans[0].Hand) != 7 {
		t.Errorf("hand length = %d, want 7", len(replay.Mulligans[0].Hand))
	}
}

// A malformed/unrecognized line still ends up in the raw stream.
func TestAssembler_UnknownEventPreservedInRawStream(t *testing.T) {
	a := New()
	a.Ingest(matchStart("M1", 1))
	a.Ingest(event.Event{Kind: event.KindUnknown, Seq: 99, Raw: "\x00garbage\x00"})
	a.Ingest(decklistSubmission(event.DeckCard{CardID: 101, Quantity: 4}))
	a.Ingest(gameEnd(1, 1, "Concede"))
	a.Ingest(matchEnd)

	replay, err := a.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	var found bool
	for _, r := range replay.RawEvents {
		if r.Raw == "\x00garbage\x00" {
			found = true
		}
	}
	if !found {
		t.Error("malformed line was not preserved in the raw event stream")
	}
}

// Missing match id: Ingest never reports completion, Build never
// becomes meaningful, and the assembler stays Idle.
func TestAssembler_MissingMatchStart(t *testing.T) {
	a := New()
	completed := a.Ingest(decklistSubmission(event.DeckCard{CardID: 101, Quantity: 4}))
	completed = a.Ingest(matchEnd) || completed

	if completed {
		t.Fatal("Ingest reported completion without a preceding MatchStart")
	}
	if a.State() != StateIdle {
		t.Errorf("state = %v, want Idle", a.State())
	}
}

// Assembler idempotence: feeding the full stream at once or in two halves
// through fresh/checkpointed assemblers yields equal replays.
func TestAssembler_Idempotence(t *testing.T) {
	events := []event.Event{
		matchStart("M1", 1),
		decklistSubmission(event.DeckCard{CardID: 101, Quantity: 4}),
		gameEnd(1, 1, "Concede"),
		matchEnd,
	}

	whole := New()
	var wholeReplay *MatchReplay
	for _, ev := range events {
		if whole.Ingest(ev) {
			r, err := whole.Build()
			if err != nil {
				t.Fatal(err)
			}
			wholeReplay = r
		}
	}

	split := New()
	var splitReplay *MatchReplay
	for _, ev := range events[:2] {
		split.Ingest(ev)
	}
	for _, ev := range events[2:] {
		if split.Ingest(ev) {
			r, err := split.Build()
			if err != nil {
				t.Fatal(err)
			}
			splitReplay = r
		}
	}

	if !reflect.DeepEqual(wholeReplay, splitReplay) {
		t.Errorf("replays differ:\n%+v\n%+v", wholeReplay, splitReplay)
	}
}

func TestAssembler_ControllerDisagreementRecorded(t *testing.T) {
	a := New()
	a.Ingest(event.Event{
		Kind: event.KindMatchStart,
		MatchStart: &event.MatchStartPayload{
			MatchID:          "M1",
			ControllerSeatID: 1,
			SelfSeatID:       2,
		},
	})

	disagreements := a.Disagreements()
	if len(disagreements) != 1 {
		t.Fatalf("disagreements = %d, want 1", len(disagreements))
	}
	if disagreements[0].MatchStartSeat != 1 {
		t.Errorf("MatchStart-wins rule not applied in recorded disagreement: %+v", disagreements[0])
	}
}

func TestAssembler_ResolvesCardNamesFromCatalog(t *testing.T) {
	catalog := cards.NewCatalog([]cards.Card{
		{ID: 101, Name: "Questing Beast"},
		{ID: 102, Name: "Once Upon a Time"},
	})

	a := NewWithCatalog(catalog)
	a.Ingest(matchStart("M1", 1))
	a.Ingest(decklistSubmission(event.DeckCard{CardID: 101, Quantity: 4}, event.DeckCard{CardID: 999, Quantity: 1}))
	a.Ingest(event.Event{
		Kind: event.KindMulliganDecision,
		Mulligan: &event.MulliganPayload{
			GameNumber: 1,
			Hand:       []int64{102},
			Decision:   "keep",
		},
	})
	a.Ingest(gameEnd(1, 1, "Concede"))
	a.Ingest(matchEnd)

	replay, err := a.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := replay.CardNames[101]; got != "Questing Beast" {
		t.Errorf("CardNames[101] = %q, want Questing Beast", got)
	}
	if got := replay.CardNames[102]; got != "Once Upon a Time" {
		t.Errorf("CardNames[102] = %q, want Once Upon a Time", got)
	}
	if _, ok := replay.CardNames[999]; ok {
		t.Error("CardNames must omit ids the catalog does not know")
	}
}
