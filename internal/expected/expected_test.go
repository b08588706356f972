package expected

import (
	"math"
	"testing"

	"fpl-points-mcp/internal/config"
	"fpl-points-mcp/internal/model"
	"fpl-points-mcp/internal/strength"
)

// newTestCalculator wires a calculator over an unfitted strength model, so
// every fixture resolves to the neutral baseline prediction.
func newTestCalculator() *Calculator {
	cfg := config.Default().Model
	return New(strength.New(cfg), cfg)
}

// fullGames builds n most-recent-first gameweek rows of 90 minutes each.
func fullGames(n int) []model.HistoryRecord {
	out := make([]model.HistoryRecord, n)
	for i := range out {
		out[i] = model.HistoryRecord{
			Gameweek:    n - i,
			Minutes:     90,
			TotalPoints: 5,
			BPS:         20,
			Bonus:       1,
		}
	}
	return out
}

func TestCalculate_SuspendedPlayerScoresZero(t *testing.T) {
	calc := newTestCalculator()
	player := model.PlayerSnapshot{
		ID: 1, Position: model.Midfielder, Status: model.StatusSuspended,
		ChanceOfPlaying: -1, Minutes: 900,
	}

	got := calc.CalculateForFixture(player, model.FixtureContext{OpponentID: 2, IsHome: true}, fullGames(6))

	if got != (PointsBreakdown{}) {
		t.Errorf("breakdown = %+v, want all zero for suspended player", got)
	}
}

func TestCalculate_UnavailablePlayerScoresZero(t *testing.T) {
	calc := newTestCalculator()
	player := model.PlayerSnapshot{
		ID: 1, Position: model.Forward, Status: model.StatusUnavailable,
		ChanceOfPlaying: 0,
	}

	got := calc.CalculateForFixture(player, model.FixtureContext{OpponentID: 2, IsHome: false}, nil)

	if got.Total != 0 || got.ConfidenceLower != 0 || got.ConfidenceUpper != 0 {
		t.Errorf("Total/CI = %v/%v/%v, want all zero",
			got.Total, got.ConfidenceLower, got.ConfidenceUpper)
	}
}

func TestCalculate_ConfidenceIntervalInvariants(t *testing.T) {
	calc := newTestCalculator()
	player := model.PlayerSnapshot{
		ID: 1, Position: model.Midfielder, Status: model.StatusAvailable,
		ChanceOfPlaying: -1, Minutes: 900, XG: 3.2, XA: 2.1, XGI: 5.3, ICTIndex: 80,
	}

	got := calc.CalculateForFixture(player, model.FixtureContext{OpponentID: 2, IsHome: true}, fullGames(8))

	if got.ConfidenceLower < 0 {
		t.Errorf("ConfidenceLower = %v, want >= 0", got.ConfidenceLower)
	}
	if got.ConfidenceLower > got.Total {
		t.Errorf("ConfidenceLower = %v > Total = %v", got.ConfidenceLower, got.Total)
	}
	if got.ConfidenceUpper < got.Total {
		t.Errorf("ConfidenceUpper = %v < Total = %v", got.ConfidenceUpper, got.Total)
	}
}

func TestCalculate_ComponentsSumToTotal(t *testing.T) {
	calc := newTestCalculator()
	player := model.PlayerSnapshot{
		ID: 1, Position: model.Defender, Status: model.StatusAvailable,
		ChanceOfPlaying: -1, Minutes: 1200, XG: 1.0, XA: 0.8, XGI: 1.8,
	}

	got := calc.CalculateForFixture(player, model.FixtureContext{OpponentID: 2, IsHome: true}, fullGames(10))

	sum := got.Minutes + got.Goals + got.Assists + got.CleanSheet +
		got.GoalsConceded + got.Bonus + got.Saves + got.PenaltySaves +
		got.YellowCards + got.RedCards + got.OwnGoals
	if math.Abs(sum-got.Total) > 0.07 {
		t.Errorf("component sum = %v, Total = %v, want equal within rounding", sum, got.Total)
	}
}

func TestCalculate_GoalkeeperGetsSavePoints(t *testing.T) {
	calc := newTestCalculator()
	fixture := model.FixtureContext{OpponentID: 2, IsHome: true}

	gk := model.PlayerSnapshot{
		ID: 1, Position: model.Goalkeeper, Status: model.StatusAvailable,
		ChanceOfPlaying: -1, Minutes: 900,
	}
	mid := model.PlayerSnapshot{
		ID: 2, Position: model.Midfielder, Status: model.StatusAvailable,
		ChanceOfPlaying: -1, Minutes: 900,
	}

	if got := calc.CalculateForFixture(gk, fixture, fullGames(6)); got.Saves <= 0 {
		t.Errorf("GK Saves = %v, want > 0", got.Saves)
	}
	if got := calc.CalculateForFixture(mid, fixture, fullGames(6)); got.Saves != 0 {
		t.Errorf("MID Saves = %v, want 0", got.Saves)
	}
}

func TestCalculate_ForwardNoCleanSheetPoints(t *testing.T) {
	calc := newTestCalculator()
	fwd := model.PlayerSnapshot{
		ID: 1, Position: model.Forward, Status: model.StatusAvailable,
		ChanceOfPlaying: -1, Minutes: 900,
	}

	got := calc.CalculateForFixture(fwd, model.FixtureContext{OpponentID: 2, IsHome: true}, fullGames(6))

	if got.CleanSheet != 0 {
		t.Errorf("FWD CleanSheet = %v, want 0", got.CleanSheet)
	}
	if got.GoalsConceded != 0 {
		t.Errorf("FWD GoalsConceded = %v, want 0", got.GoalsConceded)
	}
}

func TestMinutesExpectation_BetaPosterior(t *testing.T) {
	player := model.PlayerSnapshot{Status: model.StatusAvailable, ChanceOfPlaying: -1}

	expMinutes, p60 := minutesExpectation(player, fullGames(5))

	// Beta(3,1) prior plus 5 observed 60+ appearances: p60 = 8/9.
	wantP60 := 8.0 / 9.0
	if math.Abs(p60-wantP60) > 1e-9 {
		t.Errorf("p60 = %v, want %v", p60, wantP60)
	}
	wantMinutes := wantP60*85 + (1-wantP60)*30
	if math.Abs(expMinutes-wantMinutes) > 1e-9 {
		t.Errorf("expMinutes = %v, want %v", expMinutes, wantMinutes)
	}
}

func TestMinutesExpectation_InjuredUsesChanceFlag(t *testing.T) {
	player := model.PlayerSnapshot{Status: model.StatusInjured, ChanceOfPlaying: 50}

	expMinutes, p60 := minutesExpectation(player, fullGames(5))

	if math.Abs(expMinutes-15) > 1e-9 {
		t.Errorf("expMinutes = %v, want 15 (50%% of 30)", expMinutes)
	}
	if p60 != 0.1 {
		t.Errorf("p60 = %v, want 0.1", p60)
	}
}

func TestMinutesExpectation_ChanceScalesHealthyPlayers(t *testing.T) {
	full := model.PlayerSnapshot{Status: model.StatusDoubtful, ChanceOfPlaying: 100}
	half := model.PlayerSnapshot{Status: model.StatusDoubtful, ChanceOfPlaying: 50}

	fullMin, fullP60 := minutesExpectation(full, fullGames(5))
	halfMin, halfP60 := minutesExpectation(half, fullGames(5))

	if math.Abs(halfMin-fullMin/2) > 1e-9 {
		t.Errorf("halfMin = %v, want %v", halfMin, fullMin/2)
	}
	if math.Abs(halfP60-fullP60/2) > 1e-9 {
		t.Errorf("halfP60 = %v, want %v", halfP60, fullP60/2)
	}
}

func TestGoalExpectation_CapsAtCeiling(t *testing.T) {
	player := model.PlayerSnapshot{Minutes: 2700, XG: 60, XGI: 90}

	got := goalExpectation(player, model.Forward, 1.4)

	if got > 1.5 {
		t.Errorf("goal expectation = %v, want capped at 1.5", got)
	}
}

func TestCardProbability_EmpiricalAndPriors(t *testing.T) {
	history := fullGames(10)
	history[0].YellowCards = 1
	history[1].YellowCards = 1

	if got := cardProbability(history, model.Midfielder, false); math.Abs(got-0.2) > 1e-9 {
		t.Errorf("yellow prob = %v, want 0.2 (2 of last 10)", got)
	}
	if got := cardProbability(nil, model.Defender, false); got != 0.08 {
		t.Errorf("yellow prior (DEF) = %v, want 0.08", got)
	}
	if got := cardProbability(nil, model.Forward, true); got != redCardPrior {
		t.Errorf("red prior = %v, want %v", got, redCardPrior)
	}
}
