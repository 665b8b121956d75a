package cards

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Catalog is an immutable, read-only lookup of every card known at load
// time. It is safe to share by pointer across goroutines once built.
type Catalog struct {
	byID map[int64]Card
}

// Open decodes the binary CardCollection catalog at path. Any decode
// failure is fatal to the caller, matching the reference database's
// load-once-at-startup contract.
func Open(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open card catalog: %w", err)
	}
	defer f.Close()

	d := newCatalogDecoder(f)
	cat := &Catalog{byID: make(map[int64]Card)}

	for {
		card, err := d.nextCard()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode card catalog: %w", err)
		}
		cat.byID[card.ID] = card
	}

	return cat, nil
}

// NewCatalog builds a Catalog directly from card records, bypassing the
// binary decode path. Tests use this; the CLI always goes through Open.
func NewCatalog(cards []Card) *Catalog {
	byID := make(map[int64]Card, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}
	return &Catalog{byID: byID}
}

// Get returns the card record for id, if known.
func (c *Catalog) Get(id int64) (Card, bool) {
	card, ok := c.byID[id]
	return card, ok
}

// PrettyName returns the card's name, falling back to the stringified id
// when the card is not present in the catalog.
func (c *Catalog) PrettyName(id int64) string {
	if card, ok := c.byID[id]; ok {
		return card.Name
	}
	return fmt.Sprintf("%d", id)
}

// Len returns the number of cards loaded.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// Cards returns every loaded card, in no particular order.
func (c *Catalog) Cards() []Card {
	out := make([]Card, 0, len(c.byID))
	for _, card := range c.byID {
		out = append(out, card)
	}
	return out
}

// --- binary decoding ---
//
// The catalog is a sequence of length-delimited Card messages (a
// CardCollection is simply every Card record, one after another, each
// preceded by a varint byte length) following the tag layout of a widely
// used schema-IDL: each field is preceded by a varint tag, (field_number <<
// 3) | wire_type, where wire_type 0 is varint and wire_type 2 is
// length-delimited (string/bytes/submessage).

const (
	wireVarint = 0
	wireLen    = 2
)

type catalogDecoder struct {
	r *bufio.Reader
}

func newCatalogDecoder(r io.Reader) *catalogDecoder {
	return &catalogDecoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// nextCard reads one length-delimited Card message. io.EOF (with zero bytes
// consumed) signals a clean end of the catalog; trailing zero-length
// padding is tolerated by treating a zero-length message as a no-op skip.
func (d *catalogDecoder) nextCard() (Card, error) {
	for {
		size, err := d.readVarint()
		if err == io.EOF {
			return Card{}, io.EOF
		}
		if err != nil {
			return Card{}, err
		}
		if size == 0 {
			continue
		}

		buf := make([]byte, size)
		if _, err := io.ReadFull(d.r, buf); err != nil {
			return Card{}, fmt.Errorf("read card message: %w", err)
		}
		return decodeCardMessage(buf)
	}
}

func (d *catalogDecoder) readVarint() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			if shift == 0 {
				return 0, io.EOF
			}
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, fmt.Errorf("varint overflow")
		}
	}
}

// decodeCardMessage decodes one Card message body: a series of (tag,
// value) pairs in field-number order is not assumed; fields may repeat
// (card_faces, colors, color_identity) and are appended in encounter order.
func decodeCardMessage(data []byte) (Card, error) {
	var c Card
	pos := 0

	for pos < len(data) {
		tag, n, err := readVarintAt(data[pos:])
		if err != nil {
			return Card{}, err
		}
		pos += n

		field := tag >> 3
		wireType := tag & 0x7

		switch wireType {
		case wireVarint:
			val, n, err := readVarintAt(data[pos:])
			if err != nil {
				return Card{}, err
			}
			pos += n
			applyVarintField(&c, field, val)

		case wireLen:
			length, n, err := readVarintAt(data[pos:])
			if err != nil {
				return Card{}, err
			}
			pos += n
			if pos+int(length) > len(data) {
				return Card{}, fmt.Errorf("field %d: length %d exceeds message bounds", field, length)
			}
			chunk := data[pos : pos+int(length)]
			pos += int(length)

			if field == 12 { // card_faces
				face, err := decodeCardFaceMessage(chunk)
				if err != nil {
					return Card{}, fmt.Errorf("card face: %w", err)
				}
				c.Faces = append(c.Faces, face)
			} else {
				applyStringField(&c, field, string(chunk))
			}

		default:
			return Card{}, fmt.Errorf("unsupported wire type %d for field %d", wireType, field)
		}
	}

	return c, nil
}

func decodeCardFaceMessage(data []byte) (CardFace, error) {
	var f CardFace
	pos := 0
	for pos < len(data) {
		tag, n, err := readVarintAt(data[pos:])
		if err != nil {
			return CardFace{}, err
		}
		pos += n
		field := tag >> 3
		wireType := tag & 0x7
		if wireType != wireLen {
			return CardFace{}, fmt.Errorf("card face field %d: unsupported wire type %d", field, wireType)
		}
		length, n, err := readVarintAt(data[pos:])
		if err != nil {
			return CardFace{}, err
		}
		pos += n
		if pos+int(length) > len(data) {
			return CardFace{}, fmt.Errorf("card face field %d: length exceeds bounds", field)
		}
		chunk := string(data[pos : pos+int(length)])
		pos += int(length)

		switch field {
		case 1:
			f.Name = chunk
		case 2:
			f.TypeLine = chunk
		case 3:
			f.ManaCost = chunk
		case 4:
			f.ImageURI = chunk
		case 5:
			f.Colors = append(f.Colors, chunk)
		}
	}
	return f, nil
}

// Field numbers follow the order given in the reference Card message
// sketch: id=1, set=2, name=3, lang=4, image_uri=5, mana_cost=6, cmc=7,
// type_line=8, layout=9, colors=10, color_identity=11, card_faces=12.
func applyVarintField(c *Card, field uint64, val uint64) {
	switch field {
	case 1:
		c.ID = int64(val)
	case 7:
		c.CMC = int32(val)
	}
}

func applyStringField(c *Card, field uint64, val string) {
	switch field {
	case 2:
		c.Set = val
	case 3:
		c.Name = val
	case 4:
		c.Lang = val
	case 5:
		c.ImageURI = val
	case 6:
		c.ManaCost = val
	case 8:
		c.TypeLine = val
	case 9:
		c.Layout = val
	case 10:
		c.Colors = append(c.Colors, val)
	case 11:
		c.ColorIdentity = append(c.ColorIdentity, val)
	}
}

func readVarintAt(data []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i, b := range data {
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, fmt.Errorf("varint overflow")
		}
	}
	return 0, 0, fmt.Errorf("truncated varint")
}
