package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		in   float64
		want Band
	}{
		{0, BandGreen},
		{2, BandGreen},
		{-2, BandGreen},
		{2.01, BandAmber},
		{-2.81, BandAmber},
		{5, BandAmber},
		{-5, BandAmber},
		{5.0001, BandRed},
		{-12.3, BandRed},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyError(tc.in), "ClassifyError(%v)", tc.in)
	}
}

func TestClassifyPrediction(t *testing.T) {
	assert.Equal(t, BandRed, ClassifyPrediction(5.5))
	assert.Equal(t, BandNeutral, ClassifyPrediction(5))
	assert.Equal(t, BandNeutral, ClassifyPrediction(-9))
}

func TestParseReadings(t *testing.T) {
	t.Run("keeps order and raw bytes", func(t *testing.T) {
		body := `[{"id":200,"RH_ERROR_pred":-2.81,"created_at":"2025-01-02T03:04:05Z"},{"id":"201","DHT_TEMP_C":"21.5","extra":[1,2]}]`

		got, err := ParseReadings([]byte(body))
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "200", got[0].ID)
		require.NotNil(t, got[0].RHErrorPred)
		assert.Equal(t, -2.81, *got[0].RHErrorPred)
		assert.Equal(t, BandAmber, got[0].ErrorBand())
		assert.Equal(t, "2025-01-02T03:04:05Z", got[0].CreatedAt)

		assert.Equal(t, "201", got[1].ID)
		require.NotNil(t, got[1].DHTTempC)
		assert.Equal(t, 21.5, *got[1].DHTTempC)
		assert.Nil(t, got[1].RHErrorPred)
		assert.Equal(t, BandNeutral, got[1].ErrorBand())

		out, err := json.Marshal(got)
		require.NoError(t, err)
		assert.JSONEq(t, body, string(out))
	})

	t.Run("empty and null are no data", func(t *testing.T) {
		for _, body := range []string{"[]", "null", "", "  ", `{"status":"idle"}`} {
			_, err := ParseReadings([]byte(body))
			assert.ErrorIs(t, err, ErrNoData, "body %q", body)
		}
	})

	t.Run("malformed is an error", func(t *testing.T) {
		for _, body := range []string{"[{", "not json", "[1,2]"} {
			_, err := ParseReadings([]byte(body))
			require.Error(t, err, "body %q", body)
			assert.False(t, errors.Is(err, ErrNoData), "body %q", body)
		}
	})
}

func TestParseSummary(t *testing.T) {
	t.Run("ai summary object", func(t *testing.T) {
		got, err := ParseSummary([]byte(`{"summary":"Humidity drift on sensor 4"}`))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, SummaryAI, got[0].Kind)
		assert.Equal(t, "Humidity drift on sensor 4", got[0].Text())
		assert.JSONEq(t, `{"type":"ai-summary","message":"Humidity drift on sensor 4"}`, string(got[0].Raw))
	})

	t.Run("array of mixed entries", func(t *testing.T) {
		got, err := ParseSummary([]byte(`[{"id":17,"RH_ERROR_pred":6.104},"plain text",{"message":"hello"},{}]`))
		require.NoError(t, err)
		require.Len(t, got, 4)

		assert.Equal(t, SummaryRecord, got[0].Kind)
		assert.Equal(t, "Sensor ID: 17 / RH Error: 6.10", got[0].Text())
		assert.Equal(t, SummaryText, got[1].Kind)
		assert.Equal(t, "plain text", got[1].Text())
		assert.Equal(t, "hello", got[2].Text())
		assert.Equal(t, "Sensor ID: N/A / RH Error: N/A", got[3].Text())
	})

	t.Run("no data shapes", func(t *testing.T) {
		for _, body := range []string{`{"summary":""}`, `{}`, `[]`, `null`, `42`} {
			_, err := ParseSummary([]byte(body))
			assert.ErrorIs(t, err, ErrNoData, "body %q", body)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseSummary([]byte(`{"summary":`))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNoData))
	})
}

func TestParsePrediction(t *testing.T) {
	t.Run("bare number", func(t *testing.T) {
		p, err := ParsePrediction([]byte("3.14159"))
		require.NoError(t, err)
		require.NotNil(t, p)
		require.NotNil(t, p.Value)
		assert.InDelta(t, 3.14159, *p.Value, 1e-9)
		assert.Equal(t, BandNeutral, p.Band())
	})

	t.Run("object", func(t *testing.T) {
		p, err := ParsePrediction([]byte(`{"RH_ERROR_pred": 7.2, "model": "v2"}`))
		require.NoError(t, err)
		require.NotNil(t, p.Value)
		assert.Equal(t, 7.2, *p.Value)
		assert.Equal(t, BandRed, p.Band())
		assert.JSONEq(t, `{"RH_ERROR_pred": 7.2, "model": "v2"}`, string(p.Raw))
	})

	t.Run("object without value", func(t *testing.T) {
		p, err := ParsePrediction([]byte(`{"status":"warming up"}`))
		require.NoError(t, err)
		assert.Nil(t, p.Value)
	})

	t.Run("null", func(t *testing.T) {
		p, err := ParsePrediction([]byte("null"))
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParsePrediction([]byte("{"))
		require.Error(t, err)
	})
}

func TestParseID(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`200`, "200", true},
		{`"200"`, "200", true},
		{`" abc "`, "abc", true},
		{`null`, "", false},
		{`""`, "", false},
		{`{"id":1}`, "", false},
		{`true`, "", false},
	}
	for _, tc := range cases {
		got, ok := ParseID(json.RawMessage(tc.raw))
		assert.Equal(t, tc.ok, ok, "ParseID(%s)", tc.raw)
		assert.Equal(t, tc.want, got, "ParseID(%s)", tc.raw)
	}
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, "-2.81", FormatError(-2.81))
	assert.Equal(t, "0.00", FormatError(0))
	assert.Equal(t, "6.10", FormatError(6.104))
}
