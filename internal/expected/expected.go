// Package expected implements the Bayesian expected-points calculator:
// a full per-component decomposition of a player's fantasy scoring for one
// fixture, built from match goal expectations, minutes/discipline/bonus
// priors, and the player's recent game log.
//
// Conjugate priors drive the updating: Beta-Binomial for the 60-minute
// probability, a Gamma-Poisson blend for goal and assist rates.
package expected

import (
	"math"

	"fpl-points-mcp/internal/config"
	"fpl-points-mcp/internal/model"
	"fpl-points-mcp/internal/strength"
)

// PointsBreakdown is the expected points split by scoring component, with
// a 90% confidence interval. Components sum to Total within rounding.
type PointsBreakdown struct {
	Minutes         float64 `json:"minutes"`
	Goals           float64 `json:"goals"`
	Assists         float64 `json:"assists"`
	CleanSheet      float64 `json:"clean_sheet"`
	GoalsConceded   float64 `json:"goals_conceded"`
	Bonus           float64 `json:"bonus"`
	Saves           float64 `json:"saves"`
	PenaltySaves    float64 `json:"penalty_saves"`
	YellowCards     float64 `json:"yellow_cards"`
	RedCards        float64 `json:"red_cards"`
	OwnGoals        float64 `json:"own_goals"`
	Total           float64 `json:"total"`
	ConfidenceLower float64 `json:"confidence_lower"`
	ConfidenceUpper float64 `json:"confidence_upper"`
}

// pointsRow is the scoring rule set for one position.
type pointsRow struct {
	minutes60      float64
	minutesAny     float64
	goal           float64
	assist         float64
	cleanSheet     float64
	goalsConceded2 float64
	penaltySave    float64
	save3          float64
	yellow         float64
	red            float64
	ownGoal        float64
}

// pointsTable reproduces the fantasy scoring rules exactly.
var pointsTable = map[model.Position]pointsRow{
	model.Goalkeeper: {minutes60: 2, minutesAny: 1, goal: 6, assist: 3, cleanSheet: 4, goalsConceded2: -1, penaltySave: 5, save3: 1, yellow: -1, red: -3, ownGoal: -2},
	model.Defender:   {minutes60: 2, minutesAny: 1, goal: 6, assist: 3, cleanSheet: 4, goalsConceded2: -1, yellow: -1, red: -3, ownGoal: -2},
	model.Midfielder: {minutes60: 2, minutesAny: 1, goal: 5, assist: 3, cleanSheet: 1, yellow: -1, red: -3, ownGoal: -2},
	model.Forward:    {minutes60: 2, minutesAny: 1, goal: 4, assist: 3, yellow: -1, red: -3, ownGoal: -2},
}

// Position-based prior rates per match, used until a player has enough
// observed games to trust their own rates.
var (
	goalPriors   = map[model.Position]float64{model.Goalkeeper: 0.01, model.Defender: 0.04, model.Midfielder: 0.08, model.Forward: 0.15}
	assistPriors = map[model.Position]float64{model.Goalkeeper: 0.01, model.Defender: 0.05, model.Midfielder: 0.10, model.Forward: 0.06}
	yellowPriors = map[model.Position]float64{model.Goalkeeper: 0.02, model.Defender: 0.08, model.Midfielder: 0.06, model.Forward: 0.05}
)

const redCardPrior = 0.002

// Calculator produces expected-points breakdowns. It holds an immutable
// reference to the strength model for fixture resolution and is safe for
// concurrent use.
type Calculator struct {
	match        *strength.Model
	ictThreshold float64
}

// New builds a Calculator around a fitted (or prior-seeded) strength model.
func New(match *strength.Model, cfg config.ModelConfig) *Calculator {
	return &Calculator{match: match, ictThreshold: cfg.ICTBonusThreshold}
}

// CalculateForFixture resolves the match prediction for the player's next
// fixture and delegates to Calculate.
func (c *Calculator) CalculateForFixture(player model.PlayerSnapshot, fixture model.FixtureContext, history []model.HistoryRecord) PointsBreakdown {
	var pred strength.MatchPrediction
	if fixture.IsHome {
		pred = c.match.Predict(player.TeamID, fixture.OpponentID)
	} else {
		pred = c.match.Predict(fixture.OpponentID, player.TeamID)
	}
	return c.Calculate(player, fixture, pred, history)
}

// Calculate decomposes one player's expected fantasy points for one
// fixture. history must be ordered most-recent-first and may be empty;
// every input gap resolves to a documented prior, never an error.
func (c *Calculator) Calculate(player model.PlayerSnapshot, fixture model.FixtureContext, pred strength.MatchPrediction, history []model.HistoryRecord) PointsBreakdown {
	position := player.Position
	if !position.Valid() {
		position = model.Midfielder
	}
	pts := pointsTable[position]

	expMinutes, p60 := minutesExpectation(player, history)
	if expMinutes == 0 && p60 == 0 {
		// Suspended or unavailable: the player cannot take the field,
		// so no component can score.
		return PointsBreakdown{}
	}

	teamXG := pred.HomeXG
	oppXG := pred.AwayXG
	csProb := pred.CleanSheetHome
	if !fixture.IsHome {
		teamXG = pred.AwayXG
		oppXG = pred.HomeXG
		csProb = pred.CleanSheetAway
	}

	expGoals := goalExpectation(player, position, teamXG)
	expAssists := assistExpectation(player, position)

	expCS := 0.0
	switch position {
	case model.Goalkeeper, model.Defender:
		expCS = csProb * p60
	case model.Midfielder:
		expCS = csProb * p60 * 0.3 // mids get fewer CS points
	}

	gcPts := 0.0
	if position == model.Goalkeeper || position == model.Defender {
		expConceded := oppXG * p60
		gcPts = (expConceded / 2) * pts.goalsConceded2
	}

	expBonus := c.bonusExpectation(player, history, expGoals, expAssists)

	savesPts := 0.0
	if position == model.Goalkeeper {
		expSaves := oppXG * 2.8 // average saves per xG faced
		savesPts = (expSaves / 3) * pts.save3
	}

	expYellow := cardProbability(history, position, false)
	expRed := cardProbability(history, position, true)
	const expOwnGoal = 0.01

	minutesPts := p60*pts.minutes60 + (expMinutes/90-p60)*pts.minutesAny
	goalsPts := expGoals * pts.goal
	assistsPts := expAssists * pts.assist
	csPts := expCS * pts.cleanSheet
	yellowPts := expYellow * pts.yellow
	redPts := expRed * pts.red
	ogPts := expOwnGoal * pts.ownGoal
	penaltySavePts := 0.0 // too rare to model

	total := minutesPts + goalsPts + assistsPts + csPts + gcPts +
		expBonus + savesPts + penaltySavePts + yellowPts + redPts + ogPts

	variance := componentVariance(pts, expGoals, expAssists, csProb, expBonus)
	std := math.Sqrt(variance)
	lower := math.Max(0, total-1.645*std)
	upper := total + 1.645*std
	if lower > total {
		lower = math.Max(0, total)
	}

	return PointsBreakdown{
		Minutes:         round2(minutesPts),
		Goals:           round2(goalsPts),
		Assists:         round2(assistsPts),
		CleanSheet:      round2(csPts),
		GoalsConceded:   round2(gcPts),
		Bonus:           round2(expBonus),
		Saves:           round2(savesPts),
		PenaltySaves:    round2(penaltySavePts),
		YellowCards:     round2(yellowPts),
		RedCards:        round2(redPts),
		OwnGoals:        round2(ogPts),
		Total:           round2(total),
		ConfidenceLower: round2(lower),
		ConfidenceUpper: round2(upper),
	}
}

// minutesExpectation models "plays 60+ minutes" as a Beta-Binomial
// posterior over the last 5 appearances, prior Beta(3,1), then scales both
// outputs by the provider's chance-of-playing flag.
func minutesExpectation(player model.PlayerSnapshot, history []model.HistoryRecord) (expMinutes, p60 float64) {
	chance := player.PlayChance()

	switch player.Status {
	case model.StatusUnavailable, model.StatusSuspended:
		return 0, 0
	case model.StatusInjured:
		return chance * 30, 0.1
	}

	const (
		alphaPrior = 3.0
		betaPrior  = 1.0
	)

	if len(history) > 0 {
		recent := history
		if len(recent) > 5 {
			recent = recent[:5]
		}
		played60 := 0
		playedAny := 0
		for _, h := range recent {
			if h.Minutes >= 60 {
				played60++
			}
			if h.Minutes > 0 {
				playedAny++
			}
		}
		n := float64(len(recent))
		alpha := alphaPrior + float64(played60)
		beta := betaPrior + n - float64(played60)
		p60 = alpha / (alpha + beta)
		anyRate := float64(playedAny) / math.Max(1, n)
		expMinutes = p60*85 + (1-p60)*30*anyRate
	} else {
		games := math.Max(1, math.Round(float64(player.Minutes)/90))
		perGame := float64(player.Minutes) / games
		p60 = math.Min(0.95, perGame/90)
		expMinutes = perGame
	}

	return expMinutes * chance, p60 * chance
}

// goalExpectation blends the position prior with the player's observed
// xG-per-90, weighted toward the observed rate as games accumulate, then
// rescales by the player's share of team goal involvement this fixture.
func goalExpectation(player model.PlayerSnapshot, position model.Position, teamXG float64) float64 {
	prior := goalPriors[position]
	gamesEquiv := math.Max(1, float64(player.Minutes)/90)

	rate := prior
	if gamesEquiv > 3 {
		perGame := player.XG / gamesEquiv
		weight := math.Min(1.0, gamesEquiv/10)
		rate = weight*perGame + (1-weight)*prior
	}

	if player.XGI > 0 && gamesEquiv > 0 {
		involvement := player.XGI / gamesEquiv / math.Max(0.5, teamXG)
		rate = rate * involvement / prior
	}

	return math.Min(rate*1.2, 1.5)
}

func assistExpectation(player model.PlayerSnapshot, position model.Position) float64 {
	prior := assistPriors[position]
	gamesEquiv := math.Max(1, float64(player.Minutes)/90)

	rate := prior
	if gamesEquiv > 3 {
		perGame := player.XA / gamesEquiv
		weight := math.Min(1.0, gamesEquiv/10)
		rate = weight*perGame + (1-weight)*prior
	}

	return math.Min(rate*1.1, 1.0)
}

// bonusExpectation averages recent bonus when a game log exists (with a
// 10% boost for consistently high BPS), otherwise estimates from expected
// goal involvement and the ICT index.
func (c *Calculator) bonusExpectation(player model.PlayerSnapshot, history []model.HistoryRecord, expGoals, expAssists float64) float64 {
	if len(history) > 0 {
		recent := history
		if len(recent) > 10 {
			recent = recent[:10]
		}
		totalBonus := 0
		totalBPS := 0
		for _, h := range recent {
			totalBonus += h.Bonus
			totalBPS += h.BPS
		}
		n := math.Max(1, float64(len(recent)))
		avgBonus := float64(totalBonus) / n
		avgBPS := float64(totalBPS) / n
		if avgBPS > 25 {
			return math.Min(avgBonus*1.1, 3.0)
		}
		return avgBonus
	}

	base := expGoals*1.2 + expAssists*0.8
	if player.ICTIndex > c.ictThreshold {
		base += 0.3
	}
	return math.Min(base, 2.5)
}

// cardProbability is the empirical card frequency over up to the last 20
// games, or a position prior without history.
func cardProbability(history []model.HistoryRecord, position model.Position, red bool) float64 {
	if len(history) > 0 {
		recent := history
		if len(recent) > 20 {
			recent = recent[:20]
		}
		count := 0
		for _, h := range recent {
			if red && h.RedCards > 0 {
				count++
			}
			if !red && h.YellowCards > 0 {
				count++
			}
		}
		return float64(count) / math.Max(1, float64(len(recent)))
	}
	if red {
		return redCardPrior
	}
	return yellowPriors[position]
}

// componentVariance sums independent component variances: Poisson
// (variance = mean) for goals and assists, Bernoulli for the clean sheet,
// a fixed 1.5x multiplier for the noisy bonus, and a small fixed minutes
// variance.
func componentVariance(pts pointsRow, expGoals, expAssists, csProb, expBonus float64) float64 {
	goalVar := expGoals * pts.goal * pts.goal
	assistVar := expAssists * pts.assist * pts.assist
	csVar := csProb * (1 - csProb) * pts.cleanSheet * pts.cleanSheet
	bonusVar := expBonus * 1.5
	const minutesVar = 2.0
	return goalVar + assistVar + csVar + bonusVar + minutesVar
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
