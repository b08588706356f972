// Package form analyzes a player's recent game log: exponentially
// time-decayed form, control-limit streak detection, and regression-to-mean
// projection against underlying chance quality.
package form

import (
	"math"
	"sort"

	"fpl-points-mcp/internal/model"
)

// Metric selects which game-log column a form calculation reads.
type Metric string

const (
	MetricTotalPoints Metric = "total_points"
	MetricGoals       Metric = "goals_scored"
	MetricAssists     Metric = "assists"
	MetricMinutes     Metric = "minutes"
	MetricBonus       Metric = "bonus"
	MetricICT         Metric = "ict_index"
)

func (m Metric) value(h model.HistoryRecord) float64 {
	switch m {
	case MetricGoals:
		return float64(h.GoalsScored)
	case MetricAssists:
		return float64(h.Assists)
	case MetricMinutes:
		return float64(h.Minutes)
	case MetricBonus:
		return float64(h.Bonus)
	case MetricICT:
		return h.ICTIndex
	default:
		return float64(h.TotalPoints)
	}
}

// FormSummary is the time-weighted view of one metric over a game log.
type FormSummary struct {
	WeightedForm   float64 `json:"weighted_form"`
	RawForm        float64 `json:"raw_form"`
	Trend          float64 `json:"trend"`
	TrendDirection string  `json:"trend_direction"`
	Consistency    float64 `json:"consistency"`
	GamesAnalyzed  int     `json:"games_analyzed"`
}

// Streak reports the player's current run relative to their own control
// limits (mean ± 1.5 std).
type Streak struct {
	CurrentStreak  string  `json:"current_streak"`
	StreakLength   int     `json:"streak_length"`
	MeanPoints     float64 `json:"mean_points"`
	StdPoints      float64 `json:"std_points"`
	UpperThreshold float64 `json:"upper_threshold"`
	LowerThreshold float64 `json:"lower_threshold"`
}

// Regression quantifies over/under-performance versus xG/xA and the
// per-gameweek reversion it projects.
type Regression struct {
	GoalsVsXG                float64 `json:"goals_vs_xg"`
	AssistsVsXA              float64 `json:"assists_vs_xa"`
	IsOverperforming         bool    `json:"is_overperforming"`
	IsUnderperforming        bool    `json:"is_underperforming"`
	ProjectedAdjustmentPerGW float64 `json:"projected_adjustment_per_gw"`
	RegressionFactor         float64 `json:"regression_factor"`
}

// Analyzer holds the decay and reversion constants. Zero history never
// errors; every method returns a neutral result instead.
type Analyzer struct {
	decay              float64
	regressionFraction float64
}

// New builds an Analyzer. decay defaults to 0.15 (about half the weight on
// the last ~5 games); regressionFraction defaults to 0.5.
func New(decay, regressionFraction float64) *Analyzer {
	if decay <= 0 {
		decay = 0.15
	}
	if regressionFraction <= 0 {
		regressionFraction = 0.5
	}
	return &Analyzer{decay: decay, regressionFraction: regressionFraction}
}

// WeightedForm computes time-decayed form for one metric. Entry i
// (most-recent-first) is weighted exp(-decay*i). The trend sign is flipped
// so positive means improving.
func (a *Analyzer) WeightedForm(history []model.HistoryRecord, metric Metric) FormSummary {
	if len(history) == 0 {
		return FormSummary{TrendDirection: "stable"}
	}

	sorted := sortRecentFirst(history)
	values := make([]float64, len(sorted))
	weightedSum := 0.0
	weightTotal := 0.0
	for i, h := range sorted {
		v := metric.value(h)
		values[i] = v
		w := math.Exp(-a.decay * float64(i))
		weightedSum += v * w
		weightTotal += w
	}

	weighted := weightedSum / weightTotal
	raw := mean(values)

	trend := 0.0
	if len(values) >= 3 {
		// x=0 is the most recent game, so the recent direction is the
		// negated least-squares slope.
		trend = -slope(values)
	}

	consistency := 0.0
	if raw > 0 {
		consistency = clip01(1 - std(values)/raw)
	}

	direction := "stable"
	if trend > 0.1 {
		direction = "up"
	} else if trend < -0.1 {
		direction = "down"
	}

	return FormSummary{
		WeightedForm:   weighted,
		RawForm:        raw,
		Trend:          trend,
		TrendDirection: direction,
		Consistency:    consistency,
		GamesAnalyzed:  len(values),
	}
}

// DetectStreaks classifies the current run of games against control limits
// at mean ± 1.5 std of total points. Fewer than 5 entries, or a flat log,
// is neutral.
func (a *Analyzer) DetectStreaks(history []model.HistoryRecord) Streak {
	if len(history) < 5 {
		return Streak{CurrentStreak: "neutral"}
	}

	sorted := sortRecentFirst(history)
	points := make([]float64, len(sorted))
	for i, h := range sorted {
		points[i] = float64(h.TotalPoints)
	}

	meanPts := mean(points)
	stdPts := std(points)
	if stdPts == 0 {
		return Streak{CurrentStreak: "neutral", MeanPoints: meanPts}
	}

	upper := meanPts + 1.5*stdPts
	lower := meanPts - 1.5*stdPts

	streakType := "neutral"
	streakLength := 0
walk:
	for _, pts := range points {
		switch {
		case pts > upper:
			switch streakType {
			case "hot":
				streakLength++
			case "neutral":
				streakType = "hot"
				streakLength = 1
			default:
				break walk
			}
		case pts < lower:
			switch streakType {
			case "cold":
				streakLength++
			case "neutral":
				streakType = "cold"
				streakLength = 1
			default:
				break walk
			}
		default:
			if streakLength > 0 {
				break walk
			}
		}
	}

	return Streak{
		CurrentStreak:  streakType,
		StreakLength:   streakLength,
		MeanPoints:     meanPts,
		StdPoints:      stdPts,
		UpperThreshold: upper,
		LowerThreshold: lower,
	}
}

// RegressionToMean compares actual goals/assists to xG/xA over the
// supplied log and projects the expected per-gameweek reversion: roughly
// half of any over/under-performance versus chance quality reverts.
func (a *Analyzer) RegressionToMean(player model.PlayerSnapshot, history []model.HistoryRecord) Regression {
	if len(history) < 5 {
		return Regression{RegressionFactor: 1.0}
	}

	totalGoals := 0
	totalAssists := 0
	for _, h := range history {
		totalGoals += h.GoalsScored
		totalAssists += h.Assists
	}

	goalDiff := 0.0
	if player.XG > 0 {
		goalDiff = float64(totalGoals) - player.XG
	}
	assistDiff := 0.0
	if player.XA > 0 {
		assistDiff = float64(totalAssists) - player.XA
	}

	ptsPerGoal := map[model.Position]float64{
		model.Goalkeeper: 6, model.Defender: 6, model.Midfielder: 5, model.Forward: 4,
	}[player.Position]
	if ptsPerGoal == 0 {
		ptsPerGoal = 5
	}
	const ptsPerAssist = 3.0

	adjustment := -(goalDiff*a.regressionFraction*ptsPerGoal +
		assistDiff*a.regressionFraction*ptsPerAssist) / float64(len(history))

	return Regression{
		GoalsVsXG:                goalDiff,
		AssistsVsXA:              assistDiff,
		IsOverperforming:         goalDiff > 0.5 || assistDiff > 0.5,
		IsUnderperforming:        goalDiff < -0.5 || assistDiff < -0.5,
		ProjectedAdjustmentPerGW: adjustment,
		RegressionFactor:         1 + adjustment/math.Max(1, player.Form),
	}
}

func sortRecentFirst(history []model.HistoryRecord) []model.HistoryRecord {
	sorted := append([]model.HistoryRecord(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Gameweek > sorted[j].Gameweek
	})
	return sorted
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// std is the population standard deviation.
func std(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// slope is the least-squares slope of values against their indices.
func slope(values []float64) float64 {
	n := float64(len(values))
	meanX := (n - 1) / 2
	meanY := mean(values)
	num := 0.0
	den := 0.0
	for i, v := range values {
		dx := float64(i) - meanX
		num += dx * (v - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func clip01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
