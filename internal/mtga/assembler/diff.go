package assembler

import "github.com/ramonehamilton/arena-replay/internal/mtga/event"

// DeckDelta is a signed quantity change for a single card id between two
// successive decklist submissions.
type DeckDelta struct {
	CardID int64
	Delta  int
}

// Diff computes the multiset delta from a to b, keyed by card id. A card
// present in only one side contributes its full quantity, signed by
// direction; a card whose quantity changed contributes the difference.
// Diff(a, a) is always empty.
func Diff(a, b []event.DeckCard) []DeckDelta {
	counts := make(map[int64]int)
	for _, c := range a {
		counts[c.CardID] -= c.Quantity
	}
	for _, c := range b {
		counts[c.CardID] += c.Quantity
	}

	var deltas []DeckDelta
	for id, d := range counts {
		if d != 0 {
			deltas = append(deltas, DeckDelta{CardID: id, Delta: d})
		}
	}
	return deltas
}

// Apply reconstructs b from a and deltas produced by Diff(a, b).
func Apply(deltas []DeckDelta, a []event.DeckCard) []event.DeckCard {
	counts := make(map[int64]int)
	var order []int64
	for _, c := range a {
		if _, seen := counts[c.CardID]; !seen {
			order = append(order, c.CardID)
		}
		counts[c.CardID] += c.Quantity
	}
	for _, d := range deltas {
		if _, seen := counts[d.CardID]; !seen {
			order = append(order, d.CardID)
		}
		counts[d.CardID] += d.Delta
	}

	var out []event.DeckCard
	for _, id := range order {
		if q := counts[id]; q > 0 {
			out = append(out, event.DeckCard{CardID: id, Quantity: q})
		}
	}
	return out
}
