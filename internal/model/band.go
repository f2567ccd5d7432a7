package model

import (
	"math"
	"strconv"
)

// Band is the colour class used to flag error magnitudes.
type Band string

const (
	BandRed     Band = "red"
	BandAmber   Band = "amber"
	BandGreen   Band = "green"
	BandNeutral Band = "neutral"
)

const (
	redThreshold   = 5.0
	amberThreshold = 2.0
)

// ClassifyError: red above 5, amber in (2,5], green otherwise. Sign is ignored.
func ClassifyError(v float64) Band {
	abs := math.Abs(v)
	switch {
	case abs > redThreshold:
		return BandRed
	case abs > amberThreshold:
		return BandAmber
	default:
		return BandGreen
	}
}

// ClassifyPrediction only flags large positive predictions.
func ClassifyPrediction(v float64) Band {
	if v > redThreshold {
		return BandRed
	}
	return BandNeutral
}

func FormatError(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
