package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRecord is returned for persisted host records that cannot be used.
var ErrMalformedRecord = errors.New("malformed host record")

type record struct {
	ID      string    `json:"id"`
	Active  bool      `json:"active"`
	History []float64 `json:"history"`
}

// EncodeRecord serializes a host into its persisted form.
func EncodeRecord(h HostSnapshot) (string, error) {
	if strings.TrimSpace(h.ID) == "" {
		return "", fmt.Errorf("encode record: %w: empty id", ErrMalformedRecord)
	}
	hist := h.History
	if hist == nil {
		hist = []float64{}
	}
	b, err := json.Marshal(record{ID: h.ID, Active: h.Active, History: hist})
	if err != nil {
		return "", fmt.Errorf("encode record %s: %w", h.ID, err)
	}
	return string(b), nil
}

// DecodeRecord parses a persisted host record.
//
// Older records used "ip" instead of "id". A missing "active" means active,
// and history entries that are not numbers read as failed samples.
func DecodeRecord(s string) (HostSnapshot, error) {
	var raw struct {
		ID      *string `json:"id"`
		IP      *string `json:"ip"`
		Active  *bool   `json:"active"`
		History []any   `json:"history"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return HostSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	var id string
	if raw.ID != nil {
		id = strings.TrimSpace(*raw.ID)
	}
	if id == "" && raw.IP != nil {
		id = strings.TrimSpace(*raw.IP)
	}
	if id == "" {
		return HostSnapshot{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}

	h := HostSnapshot{ID: id, Active: true, History: make([]float64, 0, len(raw.History))}
	if raw.Active != nil {
		h.Active = *raw.Active
	}
	for _, v := range raw.History {
		f, ok := v.(float64)
		if !ok {
			f = 0
		}
		h.History = append(h.History, f)
	}
	if len(h.History) > HistoryLimit {
		h.History = append([]float64(nil), h.History[len(h.History)-HistoryLimit:]...)
	}
	return h, nil
}
