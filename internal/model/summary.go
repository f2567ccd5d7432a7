package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type SummaryKind string

const (
	SummaryAI     SummaryKind = "ai-summary"
	SummaryRecord SummaryKind = "record"
	SummaryText   SummaryKind = "text"
)

// SummaryEntry is one item of the error summary panel.
type SummaryEntry struct {
	Raw  json.RawMessage
	Kind SummaryKind

	Message     string
	ID          string
	RHErrorPred *float64
}

func NewAISummary(message string) SummaryEntry {
	raw, _ := json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{string(SummaryAI), message})

	return SummaryEntry{Raw: raw, Kind: SummaryAI, Message: message}
}

func parseSummaryEntry(data []byte) (SummaryEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if isNull(trimmed) {
		return SummaryEntry{}, fmt.Errorf("failed to decode summary entry: null")
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return SummaryEntry{}, fmt.Errorf("failed to decode summary entry: %w", err)
		}
		return SummaryEntry{Raw: cloneRaw(trimmed), Kind: SummaryText, Message: s}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return SummaryEntry{}, fmt.Errorf("failed to decode summary entry: %w", err)
	}

	e := SummaryEntry{Raw: cloneRaw(trimmed), Kind: SummaryRecord}
	if parseString(fields["type"]) == string(SummaryAI) {
		e.Kind = SummaryAI
	}
	e.Message = parseString(fields["message"])
	e.ID, _ = ParseID(fields["id"])
	e.RHErrorPred, _ = parseFloat(fields["RH_ERROR_pred"])
	return e, nil
}

// ParseSummary decodes a /summary body. It accepts either {"summary": "..."},
// which becomes a single AI entry, or an array of entries. Anything else
// well-formed yields ErrNoData.
func ParseSummary(data []byte) ([]SummaryEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if isNull(trimmed) {
		return nil, ErrNoData
	}

	switch trimmed[0] {
	case '{':
		var obj struct {
			Summary json.RawMessage `json:"summary"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("failed to decode summary: %w", err)
		}
		if msg := parseString(obj.Summary); msg != "" {
			return []SummaryEntry{NewAISummary(msg)}, nil
		}
		return nil, ErrNoData
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode summary: %w", err)
		}
		if len(items) == 0 {
			return nil, ErrNoData
		}
		entries := make([]SummaryEntry, 0, len(items))
		for i, item := range items {
			e, err := parseSummaryEntry(item)
			if err != nil {
				return nil, fmt.Errorf("summary entry %d: %w", i, err)
			}
			entries = append(entries, e)
		}
		return entries, nil
	default:
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("failed to decode summary: invalid JSON")
		}
		return nil, ErrNoData
	}
}

// Text is the single line shown for the entry.
func (e SummaryEntry) Text() string {
	if e.Kind == SummaryText || e.Message != "" {
		return e.Message
	}

	id := e.ID
	if id == "" {
		id = "N/A"
	}
	rh := "N/A"
	if e.RHErrorPred != nil {
		rh = FormatError(*e.RHErrorPred)
	}
	return fmt.Sprintf("Sensor ID: %s / RH Error: %s", id, rh)
}

func (e SummaryEntry) MarshalJSON() ([]byte, error) {
	if len(e.Raw) == 0 {
		return jsonNull, nil
	}
	return e.Raw, nil
}

func (e *SummaryEntry) UnmarshalJSON(data []byte) error {
	parsed, err := parseSummaryEntry(data)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
