package cards

import (
	"os"
	"path/filepath"
	"testing"
)

func putVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func putTag(buf []byte, field uint64, wireType uint64) []byte {
	return putVarint(buf, field<<3|wireType)
}

func putStringField(buf []byte, field uint64, s string) []byte {
	buf = putTag(buf, field, wireLen)
	buf = putVarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func putVarintField(buf []byte, field, v uint64) []byte {
	buf = putTag(buf, field, wireVarint)
	return putVarint(buf, v)
}

// encodeFixtureCard builds the raw bytes for one length-delimited Card
// message, mirroring the wire layout catalog.go decodes.
func encodeFixtureCard(id int64, set, name, typeLine string, cmc uint64) []byte {
	var msg []byte
	msg = putVarintField(msg, 1, uint64(id))
	msg = putStringField(msg, 2, set)
	msg = putStringField(msg, 3, name)
	msg = putVarintField(msg, 7, cmc)
	msg = putStringField(msg, 8, typeLine)

	var out []byte
	out = putVarint(out, uint64(len(msg)))
	return append(out, msg...)
}

func TestCatalog_OpenAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.bin")

	var data []byte
	data = append(data, encodeFixtureCard(101, "ELD", "Questing Beast", "Legendary Creature — Beast", 4)...)
	data = append(data, encodeFixtureCard(102, "ELD", "Once Upon a Time", "Instant", 0)...)
	data = append(data, 0x00) // trailing zero-length padding must be tolerated

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cat.Len())
	}

	card, ok := cat.Get(101)
	if !ok {
		t.Fatal("Get(101) not found")
	}
	if card.Name != "Questing Beast" || card.Set != "ELD" {
		t.Errorf("card = %+v", card)
	}
	// The supertype "Legendary" leads the type line, so only the first
	// token counts and this card does not classify as a creature.
	if card.Type() != TypeUnknown {
		t.Errorf("Type() = %v, want Unknown for a supertype-led type line", card.Type())
	}
	instant, ok := cat.Get(102)
	if !ok {
		t.Fatal("Get(102) not found")
	}
	if instant.Type() != TypeInstant {
		t.Errorf("Type() = %v, want Instant", instant.Type())
	}

	if got := cat.PrettyName(102); got != "Once Upon a Time" {
		t.Errorf("PrettyName(102) = %q", got)
	}
	if got := cat.PrettyName(999); got != "999" {
		t.Errorf("PrettyName(unknown) = %q, want the stringified id", got)
	}
}

func TestCatalog_OpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Fatal("expected an error opening a nonexistent catalog")
	}
}
