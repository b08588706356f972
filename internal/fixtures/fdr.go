// Package fixtures converts team strengths into bounded fixture
// difficulty ratings (FDR, 1-5 with lower = easier) and aggregates them
// over multi-gameweek windows for planning.
package fixtures

import (
	"math"
	"sort"

	"fpl-points-mcp/internal/config"
	"fpl-points-mcp/internal/model"
)

// FixtureDifficultyRating is the difficulty of one fixture from one
// team's point of view.
type FixtureDifficultyRating struct {
	Gameweek             int     `json:"gameweek,omitempty"`
	FDRAttack            float64 `json:"fdr_attack"`
	FDRDefence           float64 `json:"fdr_defence"`
	FDROverall           float64 `json:"fdr_overall"`
	CleanSheetProb       float64 `json:"clean_sheet_prob"`
	ExpectedGoalsFor     float64 `json:"expected_goals_for"`
	ExpectedGoalsAgainst float64 `json:"expected_goals_against"`
	IsHome               bool    `json:"is_home"`
	OpponentName         string  `json:"opponent_name"`
	OpponentStrength     float64 `json:"opponent_strength"`
}

// MultiGameweekRating aggregates a team's fixtures over a gameweek window.
type MultiGameweekRating struct {
	TotalFDR        float64                   `json:"total_fdr"`
	AvgFDRAttack    float64                   `json:"avg_fdr_attack"`
	AvgFDRDefence   float64                   `json:"avg_fdr_defence"`
	FixtureSwing    float64                   `json:"fixture_swing"`
	NumFixtures     int                       `json:"num_fixtures"`
	DoubleGameweeks int                       `json:"double_gameweeks"`
	BlankGameweeks  int                       `json:"blank_gameweeks"`
	Fixtures        []FixtureDifficultyRating `json:"fixtures"`
}

// TeamRanking is one row of a league-wide fixture-run ranking.
type TeamRanking struct {
	Rank         int     `json:"rank"`
	TeamID       int     `json:"team_id"`
	TeamName     string  `json:"team_name"`
	ShortName    string  `json:"short_name"`
	FDR          float64 `json:"fdr"`
	NumFixtures  int     `json:"num_fixtures"`
	DoubleGWs    int     `json:"double_gws"`
	BlankGWs     int     `json:"blank_gws"`
	FixtureSwing float64 `json:"fixture_swing"`
}

// TickerEntry is one fixture in a team's upcoming run, banded for display.
type TickerEntry struct {
	Opponent   string  `json:"opponent"`
	IsHome     bool    `json:"is_home"`
	FDR        float64 `json:"fdr"`
	FDRAttack  float64 `json:"fdr_attack"`
	FDRDefence float64 `json:"fdr_defence"`
	Color      string  `json:"color"`
	Difficulty string  `json:"difficulty"`
	CSProb     float64 `json:"cs_prob"`
}

type teamInfo struct {
	name        string
	shortName   string
	strength    float64
	attackHome  float64
	attackAway  float64
	defenceHome float64
	defenceAway float64
}

// seedReference normalizes season strength ratings to a ~1.0 league mean.
const seedReference = 1100.0

// Engine rates fixtures from season-strength seeds and a fixture list.
// All methods are read-only after construction and safe for concurrent
// callers.
type Engine struct {
	leagueAvgXG float64
	teams       map[int]teamInfo
	fixtures    []model.Fixture
}

// New builds an Engine over the supplied seeds and fixture list.
func New(cfg config.ModelConfig, seeds []model.TeamSeed, fixtures []model.Fixture) *Engine {
	avgXG := cfg.LeagueAvgXG
	if avgXG <= 0 {
		avgXG = 1.35
	}
	teams := make(map[int]teamInfo, len(seeds))
	for _, s := range seeds {
		teams[s.ID] = teamInfo{
			name:        s.Name,
			shortName:   s.ShortName,
			strength:    float64(s.Strength),
			attackHome:  seedRatio(s.AttackHome),
			attackAway:  seedRatio(s.AttackAway),
			defenceHome: seedRatio(s.DefenceHome),
			defenceAway: seedRatio(s.DefenceAway),
		}
	}
	return &Engine{
		leagueAvgXG: avgXG,
		teams:       teams,
		fixtures:    append([]model.Fixture(nil), fixtures...),
	}
}

func seedRatio(rating int) float64 {
	if rating <= 0 {
		return 1.0
	}
	return float64(rating) / seedReference
}

// neutralRating is the documented fallback for unknown teams.
func neutralRating(isHome bool) FixtureDifficultyRating {
	return FixtureDifficultyRating{
		FDRAttack:            3.0,
		FDRDefence:           3.0,
		FDROverall:           3.0,
		CleanSheetProb:       0.25,
		ExpectedGoalsFor:     1.3,
		ExpectedGoalsAgainst: 1.3,
		IsHome:               isHome,
		OpponentName:         "Unknown",
		OpponentStrength:     3.0,
	}
}

// FDR rates one fixture for a team. FDR attack rises with the opponent's
// defence (harder to score), FDR defence with the opponent's attack
// (harder to keep a clean sheet). Missing data yields the neutral rating;
// FDR never fails.
func (e *Engine) FDR(teamID, opponentID int, isHome bool) FixtureDifficultyRating {
	team, okTeam := e.teams[teamID]
	opponent, okOpp := e.teams[opponentID]
	if !okTeam || !okOpp {
		return neutralRating(isHome)
	}

	var teamAttack, teamDefence, oppAttack, oppDefence float64
	if isHome {
		teamAttack, teamDefence = team.attackHome, team.defenceHome
		oppAttack, oppDefence = opponent.attackAway, opponent.defenceAway
	} else {
		teamAttack, teamDefence = team.attackAway, team.defenceAway
		oppAttack, oppDefence = opponent.attackHome, opponent.defenceHome
	}

	xgFor := e.leagueAvgXG * teamAttack * (2 - oppDefence)
	xgAgainst := e.leagueAvgXG * oppAttack * (2 - teamDefence)
	csProb := math.Exp(-xgAgainst)

	// Map the ~0.7-1.3 strength band linearly onto the 1-5 scale.
	fdrAttack := clip(1+4*(oppDefence-0.7)/0.6, 1, 5)
	fdrDefence := clip(1+4*(oppAttack-0.7)/0.6, 1, 5)
	fdrOverall := 0.55*fdrAttack + 0.45*fdrDefence

	return FixtureDifficultyRating{
		FDRAttack:            fdrAttack,
		FDRDefence:           fdrDefence,
		FDROverall:           fdrOverall,
		CleanSheetProb:       csProb,
		ExpectedGoalsFor:     xgFor,
		ExpectedGoalsAgainst: xgAgainst,
		IsHome:               isHome,
		OpponentName:         opponent.name,
		OpponentStrength:     opponent.strength,
	}
}

// AnalyzeWindow aggregates every fixture for a team in the inclusive
// gameweek range, counting doubles and blanks. The swing compares the
// first half of the ordered run to the second; positive means the
// fixtures are improving.
func (e *Engine) AnalyzeWindow(teamID, startGW, endGW int) MultiGameweekRating {
	windowLen := endGW - startGW + 1
	if windowLen < 0 {
		windowLen = 0
	}

	var ratings []FixtureDifficultyRating
	gwCounts := map[int]int{}

	for _, f := range e.fixtures {
		if f.Gameweek == 0 || f.Gameweek < startGW || f.Gameweek > endGW {
			continue
		}
		var r FixtureDifficultyRating
		switch teamID {
		case f.HomeTeam:
			r = e.FDR(teamID, f.AwayTeam, true)
		case f.AwayTeam:
			r = e.FDR(teamID, f.HomeTeam, false)
		default:
			continue
		}
		r.Gameweek = f.Gameweek
		ratings = append(ratings, r)
		gwCounts[f.Gameweek]++
	}

	if len(ratings) == 0 {
		return MultiGameweekRating{
			TotalFDR:       15.0,
			AvgFDRAttack:   3.0,
			AvgFDRDefence:  3.0,
			BlankGameweeks: windowLen,
		}
	}

	sort.SliceStable(ratings, func(i, j int) bool {
		return ratings[i].Gameweek < ratings[j].Gameweek
	})

	totalFDR := 0.0
	sumAttack := 0.0
	sumDefence := 0.0
	overalls := make([]float64, len(ratings))
	for i, r := range ratings {
		totalFDR += r.FDROverall
		sumAttack += r.FDRAttack
		sumDefence += r.FDRDefence
		overalls[i] = r.FDROverall
	}

	doubles := 0
	for _, c := range gwCounts {
		if c > 1 {
			doubles++
		}
	}
	blanks := windowLen - len(gwCounts)

	swing := 0.0
	if n := len(overalls); n >= 4 {
		swing = mean(overalls[:n/2]) - mean(overalls[n/2:])
	}

	return MultiGameweekRating{
		TotalFDR:        totalFDR,
		AvgFDRAttack:    sumAttack / float64(len(ratings)),
		AvgFDRDefence:   sumDefence / float64(len(ratings)),
		FixtureSwing:    swing,
		NumFixtures:     len(ratings),
		DoubleGameweeks: doubles,
		BlankGameweeks:  blanks,
		Fixtures:        ratings,
	}
}

// RankTeams orders every known team by windowed fixture difficulty,
// easiest first. mode is "attack", "defence", or "overall".
func (e *Engine) RankTeams(startGW, endGW int, mode string) []TeamRanking {
	rankings := make([]TeamRanking, 0, len(e.teams))
	for id, info := range e.teams {
		rating := e.AnalyzeWindow(id, startGW, endGW)

		var fdr float64
		switch mode {
		case "attack":
			fdr = rating.AvgFDRAttack
		case "defence":
			fdr = rating.AvgFDRDefence
		default:
			fdr = rating.TotalFDR / math.Max(1, float64(rating.NumFixtures))
		}

		rankings = append(rankings, TeamRanking{
			TeamID:       id,
			TeamName:     info.name,
			ShortName:    info.shortName,
			FDR:          fdr,
			NumFixtures:  rating.NumFixtures,
			DoubleGWs:    rating.DoubleGameweeks,
			BlankGWs:     rating.BlankGameweeks,
			FixtureSwing: rating.FixtureSwing,
		})
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].FDR != rankings[j].FDR {
			return rankings[i].FDR < rankings[j].FDR
		}
		return rankings[i].TeamID < rankings[j].TeamID
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}
	return rankings
}

// Ticker returns a team's next numGWs fixtures with display banding.
func (e *Engine) Ticker(teamID, currentGW, numGWs int) []TickerEntry {
	if numGWs <= 0 {
		numGWs = 6
	}
	rating := e.AnalyzeWindow(teamID, currentGW, currentGW+numGWs-1)

	ticker := make([]TickerEntry, 0, len(rating.Fixtures))
	for _, f := range rating.Fixtures {
		color, difficulty := band(f.FDROverall)
		ticker = append(ticker, TickerEntry{
			Opponent:   f.OpponentName,
			IsHome:     f.IsHome,
			FDR:        f.FDROverall,
			FDRAttack:  f.FDRAttack,
			FDRDefence: f.FDRDefence,
			Color:      color,
			Difficulty: difficulty,
			CSProb:     f.CleanSheetProb,
		})
	}
	return ticker
}

func band(fdr float64) (color, difficulty string) {
	switch {
	case fdr <= 2:
		return "green", "easy"
	case fdr <= 2.5:
		return "light_green", "fairly_easy"
	case fdr <= 3.5:
		return "gray", "medium"
	case fdr <= 4:
		return "orange", "tough"
	default:
		return "red", "very_tough"
	}
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

func clip(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
