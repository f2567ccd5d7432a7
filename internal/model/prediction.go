package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Prediction is the model-estimated error. The upstream sends either a bare
// number or an object carrying RH_ERROR_pred.
type Prediction struct {
	Raw   json.RawMessage
	Value *float64
}

// ParsePrediction returns nil without error for a null body.
func ParsePrediction(data []byte) (*Prediction, error) {
	trimmed := bytes.TrimSpace(data)
	if isNull(trimmed) {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("failed to decode prediction: invalid JSON")
	}

	p := &Prediction{Raw: cloneRaw(trimmed)}
	if trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode prediction: %w", err)
		}
		p.Value, _ = parseFloat(fields["RH_ERROR_pred"])
		return p, nil
	}

	p.Value, _ = parseFloat(trimmed)
	return p, nil
}

func (p Prediction) Band() Band {
	if p.Value == nil {
		return BandNeutral
	}
	return ClassifyPrediction(*p.Value)
}

func (p Prediction) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return jsonNull, nil
	}
	return p.Raw, nil
}
