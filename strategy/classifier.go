package strategy

import "ema-rejection/models"

// RejectionParams holds the candle-shape thresholds of the rejection
// classifier. All values are price points on the underlying index.
type RejectionParams struct {
	MinBodyPoints      float64 // minimum body for a body rejection
	ProximityTolerance float64 // max distance from an EMA to count as a touch
	ShortWickMax       float64 // opposing wick must stay under this
	LongWickMin        float64 // supporting wick must reach at least this
	MaxBodyWickRatio   float64 // opposing wick cap for a body rejection, as a fraction of the body
}

func near(price, ema, tolerance float64) bool {
	diff := price - ema
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func nearEither(price, fast, slow, tolerance float64) bool {
	return near(price, fast, tolerance) || near(price, slow, tolerance)
}

// IsBullishRejection reports whether the bar rejected the EMA zone from
// above. Two shapes qualify: a long body bouncing off an EMA, or a green
// candle with a long lower wick and a short upper wick that probed the zone
// and closed back above it.
func IsBullishRejection(bar models.Bar, fastEMA, slowEMA float64, p RejectionParams) bool {
	if !bar.IsGreen() {
		return false
	}

	upperWick := bar.High - bar.Close
	lowerWick := bar.Open - bar.Low

	bodyRejection := bar.Body() >= p.MinBodyPoints &&
		upperWick <= p.MaxBodyWickRatio*bar.Body() &&
		nearEither(bar.Low, fastEMA, slowEMA, p.ProximityTolerance)

	probedZone := nearEither(bar.Open, fastEMA, slowEMA, p.ProximityTolerance) ||
		(bar.Open > fastEMA && bar.Low < slowEMA)
	wickRejection := upperWick < p.ShortWickMax &&
		lowerWick >= p.LongWickMin &&
		probedZone

	return bodyRejection || wickRejection
}

// IsBearishRejection is the mirror of IsBullishRejection: a red candle
// rejecting the EMA zone from below.
func IsBearishRejection(bar models.Bar, fastEMA, slowEMA float64, p RejectionParams) bool {
	if bar.IsGreen() || bar.Close == bar.Open {
		return false
	}

	upperWick := bar.High - bar.Open
	lowerWick := bar.Close - bar.Low

	bodyRejection := bar.Body() >= p.MinBodyPoints &&
		lowerWick <= p.MaxBodyWickRatio*bar.Body() &&
		nearEither(bar.High, fastEMA, slowEMA, p.ProximityTolerance)

	probedZone := nearEither(bar.Open, fastEMA, slowEMA, p.ProximityTolerance) ||
		(bar.Open < fastEMA && bar.High > slowEMA)
	wickRejection := lowerWick < p.ShortWickMax &&
		upperWick >= p.LongWickMin &&
		probedZone

	return bodyRejection || wickRejection
}
