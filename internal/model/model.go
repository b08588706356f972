// Package model holds the value types shared by the prediction components.
// Everything here is an immutable input or output snapshot; none of the
// analytical packages mutate these after construction.
package model

// Position is the FPL element type (1=GK, 2=DEF, 3=MID, 4=FWD).
type Position int

const (
	Goalkeeper Position = 1
	Defender   Position = 2
	Midfielder Position = 3
	Forward    Position = 4
)

func (p Position) Label() string {
	switch p {
	case Goalkeeper:
		return "GK"
	case Defender:
		return "DEF"
	case Midfielder:
		return "MID"
	case Forward:
		return "FWD"
	default:
		return "UNK"
	}
}

// Valid reports whether p is one of the four playing positions.
func (p Position) Valid() bool {
	return p >= Goalkeeper && p <= Forward
}

// Status is the FPL availability flag for a player.
type Status string

const (
	StatusAvailable   Status = "a"
	StatusDoubtful    Status = "d"
	StatusInjured     Status = "i"
	StatusSuspended   Status = "s"
	StatusUnavailable Status = "u"
)

// PlayerSnapshot is a player's season-to-date state as supplied by the
// upstream data provider. ChanceOfPlaying is 0-100; -1 means the provider
// did not set it, which reads as fully available.
type PlayerSnapshot struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Position        Position `json:"position"`
	Status          Status   `json:"status"`
	ChanceOfPlaying int      `json:"chance_of_playing"`
	Form            float64  `json:"form"`
	PointsPerGame   float64  `json:"points_per_game"`
	Minutes         int      `json:"minutes"`
	GoalsScored     int      `json:"goals_scored"`
	Assists         int      `json:"assists"`
	CleanSheets     int      `json:"clean_sheets"`
	Bonus           int      `json:"bonus"`
	XG              float64  `json:"xg"`
	XA              float64  `json:"xa"`
	XGI             float64  `json:"xgi"`
	ICTIndex        float64  `json:"ict_index"`
	Price           float64  `json:"price"`
	SelectedByPct   float64  `json:"selected_by_percent"`
	TeamID          int      `json:"team_id"`
}

// PlayChance resolves ChanceOfPlaying to a 0-1 multiplier.
func (p PlayerSnapshot) PlayChance() float64 {
	if p.ChanceOfPlaying < 0 {
		return 1.0
	}
	if p.ChanceOfPlaying > 100 {
		return 1.0
	}
	return float64(p.ChanceOfPlaying) / 100
}

// HistoryRecord is one gameweek row of a player's game log.
// Consumers expect logs ordered most-recent-first.
type HistoryRecord struct {
	Gameweek    int     `json:"gameweek"`
	Minutes     int     `json:"minutes"`
	TotalPoints int     `json:"total_points"`
	GoalsScored int     `json:"goals_scored"`
	Assists     int     `json:"assists"`
	CleanSheets int     `json:"clean_sheets"`
	Bonus       int     `json:"bonus"`
	BPS         int     `json:"bps"`
	YellowCards int     `json:"yellow_cards"`
	RedCards    int     `json:"red_cards"`
	ICTIndex    float64 `json:"ict_index"`
}

// TeamSeed carries a team's season strength ratings from the upstream
// provider. The four directional ratings are typically in the 800-1400
// range and normalize to ~1.0 at league average.
type TeamSeed struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ShortName   string `json:"short_name"`
	Strength    int    `json:"strength"`
	AttackHome  int    `json:"strength_attack_home"`
	AttackAway  int    `json:"strength_attack_away"`
	DefenceHome int    `json:"strength_defence_home"`
	DefenceAway int    `json:"strength_defence_away"`
}

// MatchResult is one historical result used to fit the strength model.
// DaysAgo feeds the optional exponential recency weight; 0 disables decay
// for the match.
type MatchResult struct {
	HomeTeam  int `json:"home_team"`
	AwayTeam  int `json:"away_team"`
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`
	DaysAgo   int `json:"days_ago"`
}

// Fixture is one scheduled or finished match. Gameweek 0 means the fixture
// has not been assigned to a round yet.
type Fixture struct {
	ID        int  `json:"id"`
	Gameweek  int  `json:"gameweek"`
	HomeTeam  int  `json:"home_team"`
	AwayTeam  int  `json:"away_team"`
	Finished  bool `json:"finished"`
	HomeScore int  `json:"home_score"`
	AwayScore int  `json:"away_score"`
}

// FixtureContext orients a single fixture from one player's point of view.
type FixtureContext struct {
	OpponentID int  `json:"opponent_id"`
	IsHome     bool `json:"is_home"`
}
