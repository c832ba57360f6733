package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

const stateVersion = 1

// document is the serialized form shared by the file and bbolt backends.
type document struct {
	Version   int       `json:"version"`
	Keys      []string  `json:"keys"`
	UpdatedAt time.Time `json:"updated_at"`
}

func encodeState(state domain.SeenState, now time.Time) ([]byte, error) {
	doc := document{
		Version:   stateVersion,
		Keys:      domain.NewSeenState(state.Keys...).Keys,
		UpdatedAt: now.UTC(),
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode seen state: %w", err)
	}
	return append(raw, '\n'), nil
}

// decodeState parses stored bytes. A document that does not start with '{'
// is read as the legacy one-key-per-line text format.
func decodeState(raw []byte) (domain.SeenState, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return domain.SeenState{}, nil
	}
	if trimmed[0] != '{' {
		return decodeLegacy(trimmed), nil
	}

	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return domain.SeenState{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if doc.Version != stateVersion {
		return domain.SeenState{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptState, doc.Version)
	}
	return domain.NewSeenState(doc.Keys...), nil
}

func decodeLegacy(raw []byte) domain.SeenState {
	var keys []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		keys = append(keys, sc.Text())
	}
	return domain.NewSeenState(keys...)
}
