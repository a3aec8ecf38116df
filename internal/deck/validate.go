package deck

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDeck is matched by every *ValidationError.
var ErrInvalidDeck = errors.New("deck: invalid deck")

// ValidationError lists everything wrong with a deck in a single failure.
type ValidationError struct {
	// Reason is set when the deck as a whole is unusable (undefined, not a
	// sequence, empty) and no per-card checks were made.
	Reason        string
	Malformed     []string
	UnknownTitles []string
	UnknownValues []string
	Mismatched    []string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", ErrInvalidDeck, e.Reason)
	}

	var parts []string
	if len(e.Malformed) > 0 {
		parts = append(parts, "cards in deck are invalid: "+strings.Join(e.Malformed, ", "))
	}
	if len(e.UnknownTitles) > 0 {
		parts = append(parts, "unknown card titles: "+strings.Join(e.UnknownTitles, ", "))
	}
	if len(e.UnknownValues) > 0 {
		parts = append(parts, "unknown card values: "+strings.Join(e.UnknownValues, ", "))
	}
	if len(e.Mismatched) > 0 {
		parts = append(parts, "mismatched cards: "+strings.Join(e.Mismatched, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidDeck, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrInvalidDeck) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDeck
}

func (e *ValidationError) empty() bool {
	return e.Reason == "" &&
		len(e.Malformed) == 0 &&
		len(e.UnknownTitles) == 0 &&
		len(e.UnknownValues) == 0 &&
		len(e.Mismatched) == 0
}

// Validate checks that cards is a non-empty sequence of canonical cards whose
// value matches the leading token of the title.
func Validate(cards []Card) error {
	if cards == nil {
		return &ValidationError{Reason: "deck should be defined"}
	}
	if len(cards) == 0 {
		return &ValidationError{Reason: "deck is empty"}
	}

	verr := &ValidationError{}
	for i, card := range cards {
		if card.Title == "" || card.Value == "" {
			verr.Malformed = append(verr.Malformed, describeMalformed(i, card))
			continue
		}
		if !knownTitles[card.Title] {
			verr.UnknownTitles = append(verr.UnknownTitles, card.Title)
		}
		if !card.Value.Valid() {
			verr.UnknownValues = append(verr.UnknownValues, string(card.Value))
		}
		if leadingToken(card.Title) != string(card.Value) {
			verr.Mismatched = append(verr.Mismatched,
				fmt.Sprintf("title: %s and value: %s", card.Title, card.Value))
		}
	}

	if verr.empty() {
		return nil
	}
	return verr
}

// ParseCards decodes raw JSON into cards, rejecting anything that is not an
// array of objects with string title and value fields before running
// Validate on the result.
func ParseCards(raw []byte) ([]Card, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &ValidationError{Reason: "deck should be defined"}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, &ValidationError{Reason: "deck should be array"}
	}
	if len(elems) == 0 {
		return nil, &ValidationError{Reason: "deck is empty"}
	}

	verr := &ValidationError{}
	cards := make([]Card, 0, len(elems))
	for i, elem := range elems {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(elem, &fields); err != nil || fields == nil {
			verr.Malformed = append(verr.Malformed, fmt.Sprintf("#%d is not an object", i))
			continue
		}

		title, okTitle := stringField(fields, "title")
		value, okValue := stringField(fields, "value")
		switch {
		case !okTitle && !okValue:
			verr.Malformed = append(verr.Malformed, fmt.Sprintf("#%d has no string title or value", i))
		case !okTitle:
			verr.Malformed = append(verr.Malformed, fmt.Sprintf("#%d (value %s) has no string title", i, value))
		case !okValue:
			verr.Malformed = append(verr.Malformed, fmt.Sprintf("#%d (%s) has no string value", i, title))
		default:
			cards = append(cards, Card{Title: title, Value: Rank(value)})
		}
	}
	if !verr.empty() {
		return nil, verr
	}

	if err := Validate(cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func describeMalformed(i int, card Card) string {
	switch {
	case card.Title == "" && card.Value == "":
		return fmt.Sprintf("#%d has no title or value", i)
	case card.Title == "":
		return fmt.Sprintf("#%d (value %s) has no title", i, card.Value)
	default:
		return fmt.Sprintf("#%d (%s) has no value", i, card.Title)
	}
}

func leadingToken(title string) string {
	if i := strings.IndexByte(title, ' '); i >= 0 {
		return title[:i]
	}
	return title
}
