package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
)

var ErrInvalidFieldPath = errors.New("invalid field path")

// Fields is a last-write-wins patch keyed by dotted document paths such as
// "players.p1.pv". A nil value removes the field.
type Fields map[string]any

type serverValue struct {
	SV string `json:".sv"`
}

// ServerTimestamp is replaced with the store clock in milliseconds when the patch is written.
var ServerTimestamp any = serverValue{SV: "timestamp"}

func isServerTimestamp(value any) bool {
	switch v := value.(type) {
	case serverValue:
		return v.SV == "timestamp"
	case map[string]any:
		// the form a stored patch decodes back into
		return len(v) == 1 && v[".sv"] == "timestamp"
	default:
		return false
	}
}

// DisconnectFields is the cleanup a client registers for its own slot: it loses all health
// and is marked forfeited.
func DisconnectFields(slot entity.Slot) Fields {
	prefix := "players." + string(slot) + "."

	return Fields{
		prefix + "pv":       0,
		prefix + "status":   entity.PlayerForfeited,
		prefix + "lastSeen": ServerTimestamp,
	}
}

// disconnectTx applies a registered cleanup to a match that is still open. A finished
// match keeps its final state.
func disconnectTx(fields Fields) TxFunc {
	return func(current *entity.Match, now int64) (*entity.Match, error) {
		if current == nil {
			return nil, apperror.ErrMatchNotFound
		}

		if current.IsTerminal() {
			return nil, fmt.Errorf("%w: status %s", apperror.ErrMatchOver, current.Status)
		}

		return applyFields(current, fields, now)
	}
}

func applyFields(m *entity.Match, fields Fields, now int64) (*entity.Match, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("could not marshal match: %w", err)
	}

	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}

	for _, path := range slices.Sorted(maps.Keys(fields)) {
		value := fields[path]
		if isServerTimestamp(value) {
			value = now
		}

		if err = setPath(doc, path, value); err != nil {
			return nil, err
		}
	}

	if raw, err = json.Marshal(doc); err != nil {
		return nil, fmt.Errorf("could not marshal patched match: %w", err)
	}

	var patched entity.Match
	if err = json.Unmarshal(raw, &patched); err != nil {
		return nil, fmt.Errorf("patch produced an invalid match: %w", err)
	}

	return &patched, nil
}

func decodeDocument(raw []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var doc map[string]any
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("could not decode match document: %w", err)
	}

	return doc, nil
}

func setPath(doc map[string]any, path string, value any) error {
	parts := strings.Split(path, ".")
	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("%w: %q", ErrInvalidFieldPath, path)
		}
	}

	node := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			if value == nil {
				return nil
			}
			next = map[string]any{}
			node[part] = next
		}
		node = next
	}

	last := parts[len(parts)-1]
	if value == nil {
		delete(node, last)
	} else {
		node[last] = value
	}

	return nil
}

func encodeFields(fields Fields) ([]byte, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("could not marshal fields: %w", err)
	}

	return raw, nil
}

func decodeFields(raw []byte) (Fields, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var fields Fields
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("could not decode fields: %w", err)
	}

	return fields, nil
}
