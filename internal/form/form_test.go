package form

import (
	"math"
	"testing"

	"fpl-points-mcp/internal/model"
)

func newTestAnalyzer() *Analyzer {
	return New(0.15, 0.5)
}

// gameLog builds a history from points listed oldest-first, assigning
// gameweeks 1..n so gameweek n is the most recent.
func gameLog(points ...int) []model.HistoryRecord {
	out := make([]model.HistoryRecord, len(points))
	for i, p := range points {
		out[i] = model.HistoryRecord{Gameweek: i + 1, TotalPoints: p, Minutes: 90}
	}
	return out
}

func TestWeightedForm_EmptyHistory(t *testing.T) {
	got := newTestAnalyzer().WeightedForm(nil, MetricTotalPoints)

	if got.WeightedForm != 0 || got.RawForm != 0 || got.GamesAnalyzed != 0 {
		t.Errorf("empty log form = %+v, want zeros", got)
	}
	if got.TrendDirection != "stable" {
		t.Errorf("TrendDirection = %q, want %q", got.TrendDirection, "stable")
	}
}

func TestWeightedForm_RecentGamesWeighMore(t *testing.T) {
	// Most recent game scored 10, everything before scored 2: the decayed
	// average must sit above the raw mean.
	got := newTestAnalyzer().WeightedForm(gameLog(2, 2, 2, 2, 10), MetricTotalPoints)

	if got.WeightedForm <= got.RawForm {
		t.Errorf("WeightedForm = %v <= RawForm = %v, want recent spike to dominate",
			got.WeightedForm, got.RawForm)
	}
	if got.GamesAnalyzed != 5 {
		t.Errorf("GamesAnalyzed = %d, want 5", got.GamesAnalyzed)
	}
}

func TestWeightedForm_TrendDirection(t *testing.T) {
	// Scores rise 2,4,6,8,10 across gameweeks: slope per game is 2.
	got := newTestAnalyzer().WeightedForm(gameLog(2, 4, 6, 8, 10), MetricTotalPoints)

	if math.Abs(got.Trend-2) > 1e-9 {
		t.Errorf("Trend = %v, want 2", got.Trend)
	}
	if got.TrendDirection != "up" {
		t.Errorf("TrendDirection = %q, want %q", got.TrendDirection, "up")
	}

	got = newTestAnalyzer().WeightedForm(gameLog(10, 8, 6, 4, 2), MetricTotalPoints)
	if got.TrendDirection != "down" {
		t.Errorf("TrendDirection = %q, want %q", got.TrendDirection, "down")
	}

	got = newTestAnalyzer().WeightedForm(gameLog(5, 5, 5, 5, 5), MetricTotalPoints)
	if got.TrendDirection != "stable" {
		t.Errorf("TrendDirection = %q, want %q", got.TrendDirection, "stable")
	}
}

func TestWeightedForm_ConsistencyBounds(t *testing.T) {
	flat := newTestAnalyzer().WeightedForm(gameLog(6, 6, 6, 6), MetricTotalPoints)
	if flat.Consistency != 1 {
		t.Errorf("flat log Consistency = %v, want 1", flat.Consistency)
	}

	wild := newTestAnalyzer().WeightedForm(gameLog(0, 15, 0, 15, 0), MetricTotalPoints)
	if wild.Consistency < 0 || wild.Consistency > 1 {
		t.Errorf("Consistency = %v, outside [0,1]", wild.Consistency)
	}
}

func TestWeightedForm_MetricSelection(t *testing.T) {
	history := []model.HistoryRecord{
		{Gameweek: 2, TotalPoints: 12, GoalsScored: 2, Minutes: 90},
		{Gameweek: 1, TotalPoints: 2, GoalsScored: 0, Minutes: 45},
	}

	pts := newTestAnalyzer().WeightedForm(history, MetricTotalPoints)
	goals := newTestAnalyzer().WeightedForm(history, MetricGoals)

	if pts.RawForm != 7 {
		t.Errorf("points RawForm = %v, want 7", pts.RawForm)
	}
	if goals.RawForm != 1 {
		t.Errorf("goals RawForm = %v, want 1", goals.RawForm)
	}
}

func TestDetectStreaks_HotSpike(t *testing.T) {
	// mean 5.6, std 7.2: upper limit 16.4. Only the most recent game (20)
	// clears it, so the streak is hot with length 1.
	got := newTestAnalyzer().DetectStreaks(gameLog(2, 2, 2, 2, 20))

	if got.CurrentStreak != "hot" {
		t.Errorf("CurrentStreak = %q, want %q", got.CurrentStreak, "hot")
	}
	if got.StreakLength != 1 {
		t.Errorf("StreakLength = %d, want 1", got.StreakLength)
	}
	if math.Abs(got.MeanPoints-5.6) > 1e-9 {
		t.Errorf("MeanPoints = %v, want 5.6", got.MeanPoints)
	}
}

func TestDetectStreaks_ColdRun(t *testing.T) {
	// Two most recent games at 0 against a high, tight baseline.
	got := newTestAnalyzer().DetectStreaks(gameLog(10, 9, 10, 9, 10, 9, 0, 0))

	if got.CurrentStreak != "cold" {
		t.Errorf("CurrentStreak = %q, want %q", got.CurrentStreak, "cold")
	}
	if got.StreakLength != 2 {
		t.Errorf("StreakLength = %d, want 2", got.StreakLength)
	}
}

func TestDetectStreaks_ShortLogIsNeutral(t *testing.T) {
	got := newTestAnalyzer().DetectStreaks(gameLog(20, 20, 20, 20))

	if got.CurrentStreak != "neutral" || got.StreakLength != 0 {
		t.Errorf("short log streak = %+v, want neutral/0", got)
	}
}

func TestDetectStreaks_FlatLogIsNeutral(t *testing.T) {
	got := newTestAnalyzer().DetectStreaks(gameLog(5, 5, 5, 5, 5, 5))

	if got.CurrentStreak != "neutral" {
		t.Errorf("CurrentStreak = %q, want %q (zero variance)", got.CurrentStreak, "neutral")
	}
	if got.MeanPoints != 5 {
		t.Errorf("MeanPoints = %v, want 5", got.MeanPoints)
	}
}

func TestRegressionToMean_ShortLogIsNeutral(t *testing.T) {
	player := model.PlayerSnapshot{Position: model.Forward, XG: 2}

	got := newTestAnalyzer().RegressionToMean(player, gameLog(5, 5, 5))

	if got.RegressionFactor != 1.0 {
		t.Errorf("RegressionFactor = %v, want 1.0", got.RegressionFactor)
	}
	if got.IsOverperforming || got.IsUnderperforming {
		t.Errorf("flags = %v/%v, want neither on a short log",
			got.IsOverperforming, got.IsUnderperforming)
	}
}

func TestRegressionToMean_BalancedPlayerHoldsSteady(t *testing.T) {
	history := gameLog(5, 5, 5, 5, 5)
	for i := range history {
		history[i].GoalsScored = 1
	}
	player := model.PlayerSnapshot{Position: model.Forward, XG: 5, XA: 0, Form: 5}

	got := newTestAnalyzer().RegressionToMean(player, history)

	if got.GoalsVsXG != 0 {
		t.Errorf("GoalsVsXG = %v, want 0", got.GoalsVsXG)
	}
	if got.ProjectedAdjustmentPerGW != 0 {
		t.Errorf("ProjectedAdjustmentPerGW = %v, want 0", got.ProjectedAdjustmentPerGW)
	}
	if got.RegressionFactor != 1.0 {
		t.Errorf("RegressionFactor = %v, want 1.0", got.RegressionFactor)
	}
}

func TestRegressionToMean_OverperformerProjectsDown(t *testing.T) {
	history := gameLog(8, 8, 8, 8, 8)
	for i := range history {
		history[i].GoalsScored = 1
	}
	// 5 goals from 2 xG: 3 goals of overperformance.
	player := model.PlayerSnapshot{Position: model.Forward, XG: 2, Form: 6}

	got := newTestAnalyzer().RegressionToMean(player, history)

	if got.GoalsVsXG != 3 {
		t.Errorf("GoalsVsXG = %v, want 3", got.GoalsVsXG)
	}
	if !got.IsOverperforming {
		t.Error("IsOverperforming = false, want true")
	}
	if got.ProjectedAdjustmentPerGW >= 0 {
		t.Errorf("ProjectedAdjustmentPerGW = %v, want negative", got.ProjectedAdjustmentPerGW)
	}
	// -(3 * 0.5 * 4) / 5 = -1.2 points per gameweek
	if math.Abs(got.ProjectedAdjustmentPerGW+1.2) > 1e-9 {
		t.Errorf("ProjectedAdjustmentPerGW = %v, want -1.2", got.ProjectedAdjustmentPerGW)
	}
	if got.RegressionFactor >= 1 {
		t.Errorf("RegressionFactor = %v, want < 1", got.RegressionFactor)
	}
}

func TestRegressionToMean_UnderperformerProjectsUp(t *testing.T) {
	history := gameLog(2, 2, 2, 2, 2)
	player := model.PlayerSnapshot{Position: model.Midfielder, XG: 4, Form: 2}

	got := newTestAnalyzer().RegressionToMean(player, history)

	if got.GoalsVsXG != -4 {
		t.Errorf("GoalsVsXG = %v, want -4", got.GoalsVsXG)
	}
	if !got.IsUnderperforming {
		t.Error("IsUnderperforming = false, want true")
	}
	if got.ProjectedAdjustmentPerGW <= 0 {
		t.Errorf("ProjectedAdjustmentPerGW = %v, want positive", got.ProjectedAdjustmentPerGW)
	}
}
