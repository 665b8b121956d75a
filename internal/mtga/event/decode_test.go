package event

import "testing"

func TestDecoder_Totality(t *testing.T) {
	lines := []string{
		"",
		"[UnityCrossThreadLogger]2024-01-15 10:30:45",
		"\x00garbage\x00",
		`{"matchId":"M1","opponentScreenName":"Bob"}`,
		`not json at all {`,
	}

	d := NewDecoder()
	var lastSeq uint64
	for i, line := range lines {
		ev := d.Decode(line)
		if ev.Seq <= lastSeq {
			t.Fatalf("line %d: sequence number did not strictly increase: %d <= %d", i, ev.Seq, lastSeq)
		}
		lastSeq = ev.Seq
		if ev.Raw != line {
			t.Errorf("line %d: Raw = %q, want %q", i, ev.Raw, line)
		}
	}
}

func TestDecoder_MatchStart(t *testing.T) {
	d := NewDecoder()
	ev := d.Decode(`[UnityCrossThreadLogger]2024-01-15 10:30:45 {"matchId":"M1","opponentScreenName":"Bob","matchGameRoomStateChangedEvent":{}}`)
	if ev.Kind != KindMatchStart {
		t.Fatalf("Kind = %v, want KindMatchStart", ev.Kind)
	}
	if ev.MatchStart.MatchID != "M1" {
		t.Errorf("MatchID = %q, want M1", ev.MatchStart.MatchID)
	}
	if ev.MatchStart.OpponentName != "Bob" {
		t.Errorf("OpponentName = %q, want Bob", ev.MatchStart.OpponentName)
	}
}

func TestDecoder_DecklistSubmission(t *testing.T) {
	d := NewDecoder()
	ev := d.Decode(`{"mainDeck":[{"cardId":101,"quantity":4},{"cardId":102,"quantity":20}],"sideboard":[]}`)
	if ev.Kind != KindDecklistSubmission {
		t.Fatalf("Kind = %v, want KindDecklistSubmission", ev.Kind)
	}
	if len(ev.Decklist.MainDeck) != 2 {
		t.Fatalf("MainDeck len = %d, want 2", len(ev.Decklist.MainDeck))
	}
	if ev.Decklist.MainDeck[0] != (DeckCard{CardID: 101, Quantity: 4}) {
		t.Errorf("MainDeck[0] = %+v", ev.Decklist.MainDeck[0])
	}
}

func TestDecoder_MulliganHandParsing(t *testing.T) {
	d := NewDecoder()
	ev := d.Decode(`{"gameNumber":1,"hand":"101,101,102,102,102,102,102","decision":"mulligan","numberToKeep":6,"playDraw":"Play"}`)
	if ev.Kind != KindMulliganDecision {
		t.Fatalf("Kind = %v, want KindMulliganDecision", ev.Kind)
	}
	if len(ev.Mulligan.Hand) != 7 {
		t.Fatalf("hand length = %d, want 7", len(ev.Mulligan.Hand))
	}
}

func TestDecoder_UnknownIsPreserved(t *testing.T) {
	d := NewDecoder()
	raw := `{"someField":"someValue"}`
	ev := d.Decode(raw)
	if ev.Kind != KindUnknown {
		t.Fatalf("Kind = %v, want KindUnknown", ev.Kind)
	}
	if ev.Raw != raw {
		t.Errorf("Raw = %q, want %q", ev.Raw, raw)
	}
}
