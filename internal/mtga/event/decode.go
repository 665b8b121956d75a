package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Decoder turns raw log lines into Events, assigning each a strictly
// increasing sequence number. It holds no reference to the source file and
// is safe to reuse across an entire tail session.
type Decoder struct {
	seq uint64
}

// NewDecoder returns a ready-to-use Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode never panics: a line that cannot be classified becomes a
// KindUnknown event carrying the original text. A line with no parsable
// JSON payload is additionally marked with a DecodeError.
func (d *Decoder) Decode(line string) Event {
	d.seq++
	ev := Event{Kind: KindUnknown, Seq: d.seq, Raw: line, At: time.Now().UTC()}

	payload, ok := extractJSON(line)
	if !ok {
		ev.DecodeError = "no parsable JSON payload"
		return ev
	}

	switch {
	case hasAny(payload, "matchId", "MatchId") && hasAny(payload, "opponentScreenName", "OpponentScreenName", "matchGameRoomStateChangedEvent"):
		decodeMatchStart(&ev, payload)
	case hasAny(payload, "matchId", "MatchId") && hasAny(payload, "matchEndedReason", "MatchEndedReason", "winningTeamId", "WinningTeamId"):
		decodeMatchEnd(&ev, payload)
	case hasAny(payload, "gameNumber", "GameNumber") && hasAny(payload, "winningTeamId", "WinningTeamId") && !hasAny(payload, "decision", "Decision"):
		decodeGameEnd(&ev, payload)
	case hasAny(payload, "gameNumber", "GameNumber") && hasAny(payload, "teamId", "TeamId") && !hasAny(payload, "decision", "Decision", "winningTeamId", "WinningTeamId"):
		decodeGameStart(&ev, payload)
	case hasAny(payload, "decision", "Decision") && hasAny(payload, "hand", "Hand"):
		decodeMulligan(&ev, payload)
	case hasAny(payload, "deckLists", "DeckLists", "Deck") || hasAny(payload, "mainDeck", "MainDeck"):
		decodeDecklist(&ev, payload)
	case hasAny(payload, "annotationId", "AnnotationId") || hasAny(payload, "type", "Type") && hasAny(payload, "affectedIds", "AffectedIds"):
		decodeAnnotation(&ev, payload)
	case hasAny(payload, "instanceId", "InstanceId") && hasAny(payload, "grpId", "GrpId"):
		decodeCardRevealed(&ev, payload)
	}

	return ev
}

// extractJSON finds and parses the JSON object embedded after a log line's
// timestamp/logger-name prefix, tolerating lines that are pure JSON.
func extractJSON(line string) (map[string]interface{}, bool) {
	start := strings.Index(line, "{")
	if start == -1 {
		return nil, false
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(line[start:]), &data); err != nil {
		return nil, false
	}
	return data, true
}

func hasAny(m map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func strField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func intField(m map[string]interface{}, keys ...string) int {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch n := v.(type) {
			case float64:
				return int(n)
			case string:
				if i, err := strconv.Atoi(n); err == nil {
					return i
				}
			}
		}
	}
	return 0
}

func int64Field(m map[string]interface{}, keys ...string) int64 {
	return int64(intField(m, keys...))
}

func mapField(m map[string]interface{}, keys ...string) map[string]interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if nested, ok := v.(map[string]interface{}); ok {
				return nested
			}
		}
	}
	return nil
}

func sliceField(m map[string]interface{}, keys ...string) []interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.([]interface{}); ok {
				return s
			}
		}
	}
	return nil
}

func decodeMatchStart(ev *Event, m map[string]interface{}) {
	payload := &MatchStartPayload{
		MatchID:      strField(m, "matchId", "MatchId"),
		OpponentName: strField(m, "opponentScreenName", "OpponentScreenName"),
		CreatedAt:    time.Now().UTC(),
	}

	if room := mapField(m, "matchGameRoomStateChangedEvent"); room != nil {
		if info := mapField(room, "gameRoomInfo"); info != nil {
			if cfg := mapField(info, "gameRoomConfig"); cfg != nil {
				for _, p := range sliceField(cfg, "reservedPlayers") {
					if pm, ok := p.(map[string]interface{}); ok {
						seat := intField(pm, "systemSeatId", "SystemSeatId")
						if name := strField(pm, "playerName", "PlayerName"); name != "" {
							payload.SelfSeatID = seat
						}
					}
				}
			}
		}
	}

	if seat := intField(m, "systemSeatIds", "controllerSeatId", "ControllerSeatId"); seat != 0 {
		payload.ControllerSeatID = seat
	} else if ids := sliceField(m, "systemSeatIds"); len(ids) > 0 {
		if f, ok := ids[0].(float64); ok {
			payload.ControllerSeatID = int(f)
		}
	}
	if payload.ControllerSeatID == 0 {
		payload.ControllerSeatID = 1
	}
	payload.ControllerName = strField(m, "screenName", "ScreenName", "controllerPlayerName")

	if payload.MatchID == "" {
		ev.DecodeError = "missing matchId"
		return
	}

	ev.Kind = KindMatchStart
	ev.MatchStart = payload
}

func decodeMatchEnd(ev *Event, m map[string]interface{}) {
	ev.Kind = KindMatchEnd
	ev.MatchEnd = &MatchEndPayload{MatchID: strField(m, "matchId", "MatchId")}
}

func decodeGameStart(ev *Event, m map[string]interface{}) {
	ev.Kind = KindGameStart
	ev.GameStart = &GameStartPayload{GameNumber: intField(m, "gameNumber", "GameNumber")}
}

func decodeGameEnd(ev *Event, m map[string]interface{}) {
	ev.Kind = KindGameEnd
	ev.GameEnd = &GameEndPayload{
		GameNumber:    intField(m, "gameNumber", "GameNumber"),
		WinningSeatID: intField(m, "winningTeamId", "WinningTeamId"),
		ResultReason:  strField(m, "winningReason", "WinningReason", "reason", "Reason"),
	}
}

func decodeMulligan(ev *Event, m map[string]interface{}) {
	payload := &MulliganPayload{
		GameNumber:       intField(m, "gameNumber", "GameNumber"),
		OpponentIdentity: strField(m, "opponentIdentity", "OpponentIdentity"),
		NumberToKeep:     intField(m, "numberToKeep", "NumberToKeep", "cardsToKeep", "CardsToKeep"),
		PlayDraw:         strField(m, "playDraw", "PlayDraw", "decisionZone", "DecisionZone"),
		Decision:         strField(m, "decision", "Decision"),
	}
	hand := strField(m, "hand", "Hand")
	for _, part := range strings.Split(hand, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			payload.Hand = append(payload.Hand, id)
		}
	}
	ev.Kind = KindMulliganDecision
	ev.Mulligan = payload
}

func decodeDecklist(ev *Event, m map[string]interface{}) {
	payload := &DecklistPayload{}
	payload.MainDeck = parseCardQuantities(sliceField(m, "mainDeck", "MainDeck"))
	payload.Sideboard = parseCardQuantities(sliceField(m, "sideboard", "Sideboard"))
	if payload.MainDeck == nil && payload.Sideboard == nil {
		if deck := mapField(m, "Deck"); deck != nil {
			payload.MainDeck = parseCardQuantities(sliceField(deck, "DeckCards", "deckCards"))
			payload.Sideboard = parseCardQuantities(sliceField(deck, "SideboardCards", "sideboardCards"))
		}
	}
	ev.Kind = KindDecklistSubmission
	ev.Decklist = payload
}

// parseCardQuantities accepts either a list of {cardId, quantity} objects or
// a flat "id:qty" string list, matching the two encodings the client has
// been observed to emit for deck card lists.
func parseCardQuantities(raw []interface{}) []DeckCard {
	var out []DeckCard
	for _, item := range raw {
		switch v := item.(type) {
		case map[string]interface{}:
			out = append(out, DeckCard{
				CardID:   int64Field(v, "cardId", "CardId", "card_id"),
				Quantity: intField(v, "quantity", "Quantity"),
			})
		case string:
			parts := strings.SplitN(v, ":", 2)
			if len(parts) != 2 {
				continue
			}
			id, err1 := strconv.ParseInt(parts[0], 10, 64)
			qty, err2 := strconv.Atoi(parts[1])
			if err1 == nil && err2 == nil {
				out = append(out, DeckCard{CardID: id, Quantity: qty})
			}
		}
	}
	return out
}

func decodeAnnotation(ev *Event, m map[string]interface{}) {
	ev.Kind = KindAnnotationResolution
	ev.Annotation = &AnnotationPayload{
		AnnotationID: int64Field(m, "annotationId", "AnnotationId"),
		Type:         strField(m, "type", "Type"),
	}
}

func decodeCardRevealed(ev *Event, m map[string]interface{}) {
	ev.Kind = KindCardRevealed
	ev.CardReveal = &CardRevealPayload{
		InstanceID: int64Field(m, "instanceId", "InstanceId"),
		CardID:     int64Field(m, "grpId", "GrpId"),
	}
}

// DescribeUnknown gives a short human-readable reason an Unknown event was
// not otherwise classified, for the parse-error stream.
func DescribeUnknown(ev Event) string {
	if ev.DecodeError != "" {
		return fmt.Sprintf("seq %d: %s", ev.Seq, ev.DecodeError)
	}
	return fmt.Sprintf("seq %d: unrecognized line shape", ev.Seq)
}
