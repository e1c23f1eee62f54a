package engine

import "math"

// Variant weights for the overall score.
const (
	MobileWeight  = 0.7
	DesktopWeight = 0.3
)

// CombineScores weights mobile and desktop scores into one overall score,
// rounded to one decimal. With one score present it is returned as is; with
// none the result is nil.
func CombineScores(mobile, desktop *int) *float64 {
	var score float64
	switch {
	case mobile != nil && desktop != nil:
		score = math.Round((float64(*mobile)*MobileWeight+float64(*desktop)*DesktopWeight)*10) / 10
	case mobile != nil:
		score = float64(*mobile)
	case desktop != nil:
		score = float64(*desktop)
	default:
		return nil
	}
	return &score
}
