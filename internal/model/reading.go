package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Reading is one sensor sample as returned by the upstream service. Raw is
// the exact object received and is what gets re-emitted; the typed fields
// are a best-effort decode for display.
type Reading struct {
	Raw json.RawMessage

	ID          string
	CreatedAt   string
	DHTTempC    *float64
	DHTRH       *float64
	BMETempC    *float64
	BMERH       *float64
	PressureHPa *float64
	RHErrorPred *float64
}

func ParseReading(data []byte) (Reading, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Reading{}, fmt.Errorf("failed to decode reading: %w", err)
	}
	if fields == nil {
		return Reading{}, fmt.Errorf("failed to decode reading: null object")
	}

	r := Reading{Raw: cloneRaw(data)}
	r.ID, _ = ParseID(fields["id"])
	r.CreatedAt = parseString(fields["created_at"])
	r.DHTTempC, _ = parseFloat(fields["DHT_TEMP_C"])
	r.DHTRH, _ = parseFloat(fields["DHT_RH"])
	r.BMETempC, _ = parseFloat(fields["BME_TEMP_C"])
	r.BMERH, _ = parseFloat(fields["BME_RH"])
	r.PressureHPa, _ = parseFloat(fields["Pressure_hPa"])
	r.RHErrorPred, _ = parseFloat(fields["RH_ERROR_pred"])

	return r, nil
}

// ParseReadings decodes a /new-reading body. Anything other than a non-empty
// array yields ErrNoData.
func ParseReadings(data []byte) ([]Reading, error) {
	trimmed := bytes.TrimSpace(data)
	if isNull(trimmed) {
		return nil, ErrNoData
	}
	if trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("failed to decode readings: invalid JSON")
		}
		return nil, ErrNoData
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("failed to decode readings: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoData
	}

	readings := make([]Reading, 0, len(items))
	for i, item := range items {
		r, err := ParseReading(item)
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func (r Reading) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return jsonNull, nil
	}
	return r.Raw, nil
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	parsed, err := ParseReading(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ErrorBand classifies the reading's RH error. Readings without one are neutral.
func (r Reading) ErrorBand() Band {
	if r.RHErrorPred == nil {
		return BandNeutral
	}
	return ClassifyError(*r.RHErrorPred)
}
