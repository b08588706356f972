// Package strength implements a Dixon-Coles team-strength model: per-team
// attack/defence multipliers fitted by maximum likelihood over historical
// results, with a low-score correction factor, exposed through match
// outcome prediction.
//
// Reference: Dixon, M. & Coles, S. (1997). Modelling Association Football
// Scores and Inefficiencies in the Football Betting Market.
package strength

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"fpl-points-mcp/internal/config"
	"fpl-points-mcp/internal/logger"
	"fpl-points-mcp/internal/model"
	"fpl-points-mcp/internal/optimize"
)

// TeamStrength holds a team's fitted attack and defence multipliers,
// normalized around 1.0 (league average). Replaced wholesale on each fit,
// never partially mutated.
type TeamStrength struct {
	AttackHome  float64 `json:"attack_home"`
	AttackAway  float64 `json:"attack_away"`
	DefenceHome float64 `json:"defence_home"`
	DefenceAway float64 `json:"defence_away"`
}

// MatchPrediction is the model's view of one fixture. Outcome
// probabilities sum to 1.
type MatchPrediction struct {
	HomeXG         float64 `json:"home_xg"`
	AwayXG         float64 `json:"away_xg"`
	CleanSheetHome float64 `json:"clean_sheet_home"`
	CleanSheetAway float64 `json:"clean_sheet_away"`
	HomeWinProb    float64 `json:"home_win_prob"`
	DrawProb       float64 `json:"draw_prob"`
	AwayWinProb    float64 `json:"away_win_prob"`
}

// Fit outcome status tags. They are observability only and never change
// the calling contract.
const (
	StatusFitted                = "fitted"
	StatusInitializedFromPriors = "initialized_from_priors"
	StatusFallbackToPriors      = "fallback_to_priors"
)

// FitReport describes how the strength table was produced.
type FitReport struct {
	Status        string  `json:"status"`
	Matches       int     `json:"n_matches"`
	Teams         int     `json:"n_teams"`
	Rho           float64 `json:"rho"`
	HomeAdvantage float64 `json:"home_advantage"`
	Reason        string  `json:"reason,omitempty"`
}

// seedReference normalizes season strength ratings (typically 800-1400)
// to a ~1.0 league mean on the prior-initialization path.
const seedReference = 1100.0

// fitSeedReference normalizes the home+away rating sum when seeding the
// optimizer's starting point.
const fitSeedReference = 2000.0

// Model estimates team strengths and predicts match outcomes. Fit replaces
// the strength table atomically; Predict is safe for concurrent use.
type Model struct {
	leagueAvgGoals float64
	timeDecay      float64
	homeBoost      float64
	awayFade       float64
	gridSize       int

	mu        sync.RWMutex
	strengths map[int]TeamStrength
	rho       float64
	homeAdv   float64
}

// New builds a Model from configuration. The strength table starts empty;
// Predict falls back to a fixed baseline until Fit is called.
func New(cfg config.ModelConfig) *Model {
	grid := cfg.GoalGridSize
	if grid < 2 {
		grid = 8
	}
	return &Model{
		leagueAvgGoals: cfg.LeagueAvgGoals,
		timeDecay:      cfg.TimeDecay,
		homeBoost:      cfg.HomeStrengthBoost,
		awayFade:       cfg.AwayStrengthFade,
		gridSize:       grid,
		strengths:      map[int]TeamStrength{},
	}
}

// tau is the Dixon-Coles correction for low-scoring outcomes, which a
// plain bivariate Poisson systematically mis-estimates.
func tau(homeGoals, awayGoals int, homeExp, awayExp, rho float64) float64 {
	switch {
	case homeGoals == 0 && awayGoals == 0:
		return 1 - homeExp*awayExp*rho
	case homeGoals == 0 && awayGoals == 1:
		return 1 + homeExp*rho
	case homeGoals == 1 && awayGoals == 0:
		return 1 + awayExp*rho
	case homeGoals == 1 && awayGoals == 1:
		return 1 - rho
	default:
		return 1.0
	}
}

// Fit estimates the strength table from historical results, seeded by the
// season ratings. With no matches the seeds become the table directly.
// Fit never fails: any numerical problem falls back to the prior-seeded
// table and is reported in the returned status.
func (m *Model) Fit(matches []model.MatchResult, seeds []model.TeamSeed) FitReport {
	if len(matches) == 0 {
		m.seedFromPriors(seeds)
		return FitReport{Status: StatusInitializedFromPriors, Teams: len(seeds)}
	}

	teamIDs := make([]int, 0, len(seeds))
	for _, s := range seeds {
		teamIDs = append(teamIDs, s.ID)
	}
	sort.Ints(teamIDs)
	teamIdx := make(map[int]int, len(teamIDs))
	for i, id := range teamIDs {
		teamIdx[id] = i
	}
	n := len(teamIDs)
	if n == 0 {
		m.seedFromPriors(seeds)
		return FitReport{Status: StatusFallbackToPriors, Matches: len(matches), Reason: "no team seeds"}
	}

	attack := make([]float64, n)
	defence := make([]float64, n)
	for _, s := range seeds {
		i := teamIdx[s.ID]
		attack[i] = math.Max(0.2, float64(s.AttackHome+s.AttackAway)/fitSeedReference)
		defence[i] = math.Max(0.2, float64(s.DefenceHome+s.DefenceAway)/fitSeedReference)
	}

	// Parameter vector: log-attacks, log-defences, home advantage, rho.
	dim := 2*n + 2
	x0 := make([]float64, dim)
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := 0; i < n; i++ {
		x0[i] = math.Log(attack[i])
		x0[n+i] = math.Log(defence[i])
	}
	x0[dim-2] = 0.25 // ~25% home advantage
	x0[dim-1] = 0.0
	for i := 0; i < 2*n; i++ {
		lower[i], upper[i] = -2, 2
	}
	lower[dim-2], upper[dim-2] = -0.5, 0.5
	lower[dim-1], upper[dim-1] = -0.3, 0.3

	weights := make([]float64, len(matches))
	for i, match := range matches {
		weights[i] = 1.0
		if m.timeDecay > 0 && match.DaysAgo > 0 {
			weights[i] = math.Exp(-m.timeDecay * float64(match.DaysAgo))
		}
	}

	negLogLikelihood := func(params []float64) float64 {
		homeAdv := params[dim-2]
		rho := params[dim-1]
		ll := 0.0
		for i, match := range matches {
			hIdx, ok := teamIdx[match.HomeTeam]
			if !ok {
				continue
			}
			aIdx, ok := teamIdx[match.AwayTeam]
			if !ok {
				continue
			}
			homeExp := math.Exp(params[hIdx] - params[n+aIdx] + homeAdv)
			awayExp := math.Exp(params[aIdx] - params[n+hIdx])

			h := float64(match.HomeScore)
			a := float64(match.AwayScore)
			t := tau(match.HomeScore, match.AwayScore, homeExp, awayExp, rho)
			ll += weights[i] * (h*math.Log(homeExp+1e-10) - homeExp +
				a*math.Log(awayExp+1e-10) - awayExp +
				math.Log(t+1e-10))
		}
		return -ll
	}

	res, err := optimize.Minimize(optimize.Problem{
		Func:  negLogLikelihood,
		X0:    x0,
		Lower: lower,
		Upper: upper,
	}, optimize.Options{})
	if err != nil {
		logger.Warn("strength fit failed, falling back to priors: %v", err)
		m.seedFromPriors(seeds)
		return FitReport{Status: StatusFallbackToPriors, Matches: len(matches), Teams: n, Reason: err.Error()}
	}

	fitted := make(map[int]TeamStrength, n)
	for id, i := range teamIdx {
		att := math.Exp(res.X[i])
		def := math.Exp(res.X[n+i])
		fitted[id] = TeamStrength{
			AttackHome:  att * m.homeBoost,
			AttackAway:  att * m.awayFade,
			DefenceHome: def * m.awayFade, // stronger defence at home
			DefenceAway: def * m.homeBoost,
		}
	}

	rho := res.X[dim-1]
	homeAdv := res.X[dim-2]
	m.mu.Lock()
	m.strengths = fitted
	m.rho = rho
	m.homeAdv = homeAdv
	m.mu.Unlock()

	logger.Debug("strength fit converged in %d iterations, rho=%.4f", res.Iterations, rho)
	return FitReport{
		Status:        StatusFitted,
		Matches:       len(matches),
		Teams:         n,
		Rho:           rho,
		HomeAdvantage: homeAdv,
	}
}

// seedFromPriors replaces the strength table directly from season ratings.
// This path never fails; zero ratings normalize to the 1100 reference.
func (m *Model) seedFromPriors(seeds []model.TeamSeed) {
	table := make(map[int]TeamStrength, len(seeds))
	for _, s := range seeds {
		table[s.ID] = TeamStrength{
			AttackHome:  seedRatio(s.AttackHome),
			AttackAway:  seedRatio(s.AttackAway),
			DefenceHome: seedRatio(s.DefenceHome),
			DefenceAway: seedRatio(s.DefenceAway),
		}
	}
	m.mu.Lock()
	m.strengths = table
	m.rho = 0
	m.homeAdv = 0
	m.mu.Unlock()
}

func seedRatio(rating int) float64 {
	if rating <= 0 {
		rating = int(seedReference)
	}
	return float64(rating) / seedReference
}

// Strength returns the current table entry for a team.
func (m *Model) Strength(teamID int) (TeamStrength, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strengths[teamID]
	return s, ok
}

// Predict computes goal expectations and outcome probabilities for a
// fixture. Unknown teams yield a fixed neutral baseline; Predict never
// fails.
func (m *Model) Predict(homeID, awayID int) MatchPrediction {
	m.mu.RLock()
	home, okHome := m.strengths[homeID]
	away, okAway := m.strengths[awayID]
	rho := m.rho
	m.mu.RUnlock()

	if !okHome || !okAway {
		pred := MatchPrediction{
			HomeXG:         1.4,
			AwayXG:         1.1,
			CleanSheetHome: 0.3,
			CleanSheetAway: 0.25,
		}
		pred.HomeWinProb, pred.DrawProb, pred.AwayWinProb = m.outcomeProbs(pred.HomeXG, pred.AwayXG, 0)
		return pred
	}

	homeXG := home.AttackHome * (2 - away.DefenceAway) * m.leagueAvgGoals / 2
	awayXG := away.AttackAway * (2 - home.DefenceHome) * m.leagueAvgGoals / 2
	homeXG = clip(homeXG, 0.3, 4.0)
	awayXG = clip(awayXG, 0.2, 3.5)

	pred := MatchPrediction{
		HomeXG:         homeXG,
		AwayXG:         awayXG,
		CleanSheetHome: poissonPMF(0, awayXG),
		CleanSheetAway: poissonPMF(0, homeXG),
	}
	pred.HomeWinProb, pred.DrawProb, pred.AwayWinProb = m.outcomeProbs(homeXG, awayXG, rho)
	return pred
}

// outcomeProbs aggregates the tau-corrected score grid into win/draw/loss
// masses and renormalizes them to sum to exactly 1.
func (m *Model) outcomeProbs(homeXG, awayXG, rho float64) (homeWin, draw, awayWin float64) {
	for h := 0; h < m.gridSize; h++ {
		for a := 0; a < m.gridSize; a++ {
			p := poissonPMF(h, homeXG) * poissonPMF(a, awayXG)
			p *= tau(h, a, homeXG, awayXG, rho)
			switch {
			case h > a:
				homeWin += p
			case h == a:
				draw += p
			default:
				awayWin += p
			}
		}
	}
	total := homeWin + draw + awayWin
	if total > 0 {
		homeWin /= total
		draw /= total
		awayWin /= total
	}
	return homeWin, draw, awayWin
}

// poissonPMF returns P(X=k) for X ~ Poisson(lambda).
func poissonPMF(k int, lambda float64) float64 {
	if lambda <= 0 {
		if k == 0 {
			return 1
		}
		return 0
	}
	logP := float64(k)*math.Log(lambda) - lambda - logFactorial(k)
	return math.Exp(logP)
}

func logFactorial(k int) float64 {
	lf := 0.0
	for i := 2; i <= k; i++ {
		lf += math.Log(float64(i))
	}
	return lf
}

func clip(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// String implements fmt.Stringer for log lines.
func (r FitReport) String() string {
	if r.Reason != "" {
		return fmt.Sprintf("%s (%s)", r.Status, r.Reason)
	}
	return r.Status
}
