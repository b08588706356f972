// Package value scores players on price efficiency: value over a
// positional replacement baseline, points per million, ceiling/floor
// percentiles, and ownership-based classification.
package value

import (
	"math"
	"sort"

	"fpl-points-mcp/internal/model"
)

// Metrics is the value analysis for one player given their expected
// points for the upcoming fixture.
type Metrics struct {
	ValueOverReplacement float64 `json:"value_over_replacement"`
	PointsPerMillion     float64 `json:"points_per_million"`
	CeilingPoints        float64 `json:"ceiling_points"`
	FloorPoints          float64 `json:"floor_points"`
	UpsideRatio          float64 `json:"upside_ratio"`
	ConsistencyScore     float64 `json:"consistency_score"`
	EffectiveOwnership   float64 `json:"effective_ownership"`
	IsTemplate           bool    `json:"is_template"`
	IsDifferential       bool    `json:"is_differential"`
	ValueTier            string  `json:"value_tier"`
}

// replacementLevel approximates the 13th-15th best option at each
// position: the points a free transfer could always get.
type replacementLevel struct {
	expectedPoints float64
	price          float64
}

var replacementLevels = map[model.Position]replacementLevel{
	model.Goalkeeper: {expectedPoints: 3.5, price: 4.5},
	model.Defender:   {expectedPoints: 4.0, price: 4.5},
	model.Midfielder: {expectedPoints: 4.5, price: 5.5},
	model.Forward:    {expectedPoints: 4.0, price: 5.5},
}

// Analyze computes value metrics for one player. expectedPoints is the
// player's projected total for the fixture (typically PointsBreakdown
// Total). A short or empty game log falls back to multiples of the
// expectation for ceiling and floor.
func Analyze(player model.PlayerSnapshot, expectedPoints float64, history []model.HistoryRecord) Metrics {
	position := player.Position
	if !position.Valid() {
		position = model.Midfielder
	}

	replacement := replacementLevels[position]
	vor := expectedPoints - replacement.expectedPoints
	ppm := expectedPoints / math.Max(player.Price, 3.5)

	var ceiling, floor, consistency float64
	if len(history) >= 5 {
		points := make([]float64, len(history))
		sum := 0.0
		for i, h := range history {
			points[i] = float64(h.TotalPoints)
			sum += points[i]
		}
		ceiling = percentile(points, 90)
		floor = percentile(points, 10)
		m := sum / float64(len(points))
		consistency = 1 - stdDev(points, m)/math.Max(m, 1)
	} else {
		ceiling = expectedPoints * 2.5
		floor = math.Max(0, expectedPoints*0.3)
		consistency = 0.5
	}

	return Metrics{
		ValueOverReplacement: vor,
		PointsPerMillion:     ppm,
		CeilingPoints:        ceiling,
		FloorPoints:          floor,
		UpsideRatio:          ceiling / math.Max(expectedPoints, 1),
		ConsistencyScore:     math.Max(0, math.Min(1, consistency)),
		EffectiveOwnership:   player.SelectedByPct * 1.2,
		IsTemplate:           player.SelectedByPct > 25,
		IsDifferential:       player.SelectedByPct < 10,
		ValueTier:            priceTier(player.Price),
	}
}

func priceTier(price float64) string {
	switch {
	case price < 4.5:
		return "enabler"
	case price < 6.0:
		return "budget"
	case price < 9.0:
		return "mid-price"
	default:
		return "premium"
	}
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(values []float64, pct float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}
