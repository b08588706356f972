// Package provider is the read-through client for the upstream FPL API.
// It fetches bootstrap, fixture, and per-player history payloads, caches
// raw bytes through the JSON store, and maps them onto the model types the
// prediction core consumes. The core itself never touches the network.
package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"fpl-points-mcp/internal/config"
	"fpl-points-mcp/internal/model"
	"fpl-points-mcp/internal/store"
)

// Client fetches and caches upstream payloads.
type Client struct {
	HTTP      *http.Client
	Store     *store.JSONStore
	BaseURL   string
	UserAgent string
	Sleep     time.Duration
	UseCache  bool
}

// NewClient builds a Client over the given store and data settings.
func NewClient(st *store.JSONStore, cfg config.DataConfig) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: 20 * time.Second},
		Store:     st,
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Sleep:     time.Duration(cfg.SleepMS) * time.Millisecond,
		UseCache:  cfg.UseCache,
	}
}

// fetchRaw downloads urlPath (like "/bootstrap-static/") and caches it at
// relPath. Returns raw bytes from cache or network.
func (c *Client) fetchRaw(urlPath string, relPath string, force bool) ([]byte, error) {
	if !force && c.UseCache && c.Store.Exists(relPath) {
		return c.Store.ReadRaw(relPath)
	}

	if c.Sleep > 0 {
		time.Sleep(c.Sleep)
	}

	req, err := http.NewRequest("GET", c.BaseURL+urlPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s failed: %d body=%s", urlPath, resp.StatusCode, string(body))
	}

	if err := c.Store.WriteRaw(relPath, body, true); err != nil {
		return nil, err
	}
	return body, nil
}

// Bootstrap is the subset of bootstrap-static this core needs.
type Bootstrap struct {
	Teams   []model.TeamSeed
	Players []model.PlayerSnapshot
}

// rawBootstrap mirrors the upstream payload. Several numeric fields
// arrive as strings and now_cost is in tenths of a million.
type rawBootstrap struct {
	Teams []struct {
		ID                  int    `json:"id"`
		Name                string `json:"name"`
		ShortName           string `json:"short_name"`
		Strength            int    `json:"strength"`
		StrengthAttackHome  int    `json:"strength_attack_home"`
		StrengthAttackAway  int    `json:"strength_attack_away"`
		StrengthDefenceHome int    `json:"strength_defence_home"`
		StrengthDefenceAway int    `json:"strength_defence_away"`
	} `json:"teams"`
	Elements []struct {
		ID              int    `json:"id"`
		WebName         string `json:"web_name"`
		ElementType     int    `json:"element_type"`
		Status          string `json:"status"`
		ChanceOfPlaying *int   `json:"chance_of_playing_next_round"`
		Form            string `json:"form"`
		PointsPerGame   string `json:"points_per_game"`
		Minutes         int    `json:"minutes"`
		GoalsScored     int    `json:"goals_scored"`
		Assists         int    `json:"assists"`
		CleanSheets     int    `json:"clean_sheets"`
		Bonus           int    `json:"bonus"`
		XG              string `json:"expected_goals"`
		XA              string `json:"expected_assists"`
		XGI             string `json:"expected_goal_involvements"`
		ICTIndex        string `json:"ict_index"`
		NowCost         int    `json:"now_cost"`
		SelectedByPct   string `json:"selected_by_percent"`
		Team            int    `json:"team"`
	} `json:"elements"`
}

// FetchBootstrap returns team seeds and player snapshots.
func (c *Client) FetchBootstrap(force bool) (Bootstrap, error) {
	body, err := c.fetchRaw("/bootstrap-static/", "bootstrap/bootstrap-static.json", force)
	if err != nil {
		return Bootstrap{}, err
	}
	return decodeBootstrap(body)
}

func decodeBootstrap(body []byte) (Bootstrap, error) {
	var raw rawBootstrap
	if err := unmarshal(body, &raw); err != nil {
		return Bootstrap{}, err
	}

	out := Bootstrap{
		Teams:   make([]model.TeamSeed, 0, len(raw.Teams)),
		Players: make([]model.PlayerSnapshot, 0, len(raw.Elements)),
	}
	for _, t := range raw.Teams {
		out.Teams = append(out.Teams, model.TeamSeed{
			ID:          t.ID,
			Name:        t.Name,
			ShortName:   t.ShortName,
			Strength:    t.Strength,
			AttackHome:  t.StrengthAttackHome,
			AttackAway:  t.StrengthAttackAway,
			DefenceHome: t.StrengthDefenceHome,
			DefenceAway: t.StrengthDefenceAway,
		})
	}
	for _, e := range raw.Elements {
		chance := -1
		if e.ChanceOfPlaying != nil {
			chance = *e.ChanceOfPlaying
		}
		out.Players = append(out.Players, model.PlayerSnapshot{
			ID:              e.ID,
			Name:            e.WebName,
			Position:        model.Position(e.ElementType),
			Status:          model.Status(e.Status),
			ChanceOfPlaying: chance,
			Form:            parseFloat(e.Form),
			PointsPerGame:   parseFloat(e.PointsPerGame),
			Minutes:         e.Minutes,
			GoalsScored:     e.GoalsScored,
			Assists:         e.Assists,
			CleanSheets:     e.CleanSheets,
			Bonus:           e.Bonus,
			XG:              parseFloat(e.XG),
			XA:              parseFloat(e.XA),
			XGI:             parseFloat(e.XGI),
			ICTIndex:        parseFloat(e.ICTIndex),
			Price:           float64(e.NowCost) / 10,
			SelectedByPct:   parseFloat(e.SelectedByPct),
			TeamID:          e.Team,
		})
	}
	return out, nil
}

type rawFixture struct {
	ID         int    `json:"id"`
	Event      *int   `json:"event"`
	TeamH      int    `json:"team_h"`
	TeamA      int    `json:"team_a"`
	Finished   bool   `json:"finished"`
	TeamHScore *int   `json:"team_h_score"`
	TeamAScore *int   `json:"team_a_score"`
	Kickoff    string `json:"kickoff_time"`
}

// FetchFixtures returns the full season fixture list.
func (c *Client) FetchFixtures(force bool) ([]model.Fixture, error) {
	body, err := c.fetchRaw("/fixtures/", "fixtures/fixtures.json", force)
	if err != nil {
		return nil, err
	}
	return decodeFixtures(body)
}

func decodeFixtures(body []byte) ([]model.Fixture, error) {
	var raw []rawFixture
	if err := unmarshal(body, &raw); err != nil {
		return nil, err
	}
	out := make([]model.Fixture, 0, len(raw))
	for _, f := range raw {
		fx := model.Fixture{
			ID:       f.ID,
			HomeTeam: f.TeamH,
			AwayTeam: f.TeamA,
			Finished: f.Finished,
		}
		if f.Event != nil {
			fx.Gameweek = *f.Event
		}
		if f.TeamHScore != nil {
			fx.HomeScore = *f.TeamHScore
		}
		if f.TeamAScore != nil {
			fx.AwayScore = *f.TeamAScore
		}
		out = append(out, fx)
	}
	return out, nil
}

type rawElementSummary struct {
	History []struct {
		Round       int    `json:"round"`
		Minutes     int    `json:"minutes"`
		TotalPoints int    `json:"total_points"`
		GoalsScored int    `json:"goals_scored"`
		Assists     int    `json:"assists"`
		CleanSheets int    `json:"clean_sheets"`
		Bonus       int    `json:"bonus"`
		BPS         int    `json:"bps"`
		YellowCards int    `json:"yellow_cards"`
		RedCards    int    `json:"red_cards"`
		ICTIndex    string `json:"ict_index"`
	} `json:"history"`
}

// FetchHistory returns a player's gameweek log, most recent first.
func (c *Client) FetchHistory(elementID int, force bool) ([]model.HistoryRecord, error) {
	body, err := c.fetchRaw(
		fmt.Sprintf("/element-summary/%d/", elementID),
		fmt.Sprintf("element-summary/%d.json", elementID),
		force,
	)
	if err != nil {
		return nil, err
	}
	return decodeHistory(body)
}

func decodeHistory(body []byte) ([]model.HistoryRecord, error) {
	var raw rawElementSummary
	if err := unmarshal(body, &raw); err != nil {
		return nil, err
	}
	out := make([]model.HistoryRecord, 0, len(raw.History))
	// The API lists rounds ascending; consumers want most-recent-first.
	for i := len(raw.History) - 1; i >= 0; i-- {
		h := raw.History[i]
		out = append(out, model.HistoryRecord{
			Gameweek:    h.Round,
			Minutes:     h.Minutes,
			TotalPoints: h.TotalPoints,
			GoalsScored: h.GoalsScored,
			Assists:     h.Assists,
			CleanSheets: h.CleanSheets,
			Bonus:       h.Bonus,
			BPS:         h.BPS,
			YellowCards: h.YellowCards,
			RedCards:    h.RedCards,
			ICTIndex:    parseFloat(h.ICTIndex),
		})
	}
	return out, nil
}

// Results converts finished fixtures to fit inputs, weighting recency by
// gameweek distance (one gameweek ~ 7 days).
func Results(fixtures []model.Fixture, currentGW int) []model.MatchResult {
	out := make([]model.MatchResult, 0, len(fixtures))
	for _, f := range fixtures {
		if !f.Finished {
			continue
		}
		daysAgo := 0
		if f.Gameweek > 0 && currentGW > f.Gameweek {
			daysAgo = (currentGW - f.Gameweek) * 7
		}
		out = append(out, model.MatchResult{
			HomeTeam:  f.HomeTeam,
			AwayTeam:  f.AwayTeam,
			HomeScore: f.HomeScore,
			AwayScore: f.AwayScore,
			DaysAgo:   daysAgo,
		})
	}
	return out
}

func parseFloat(s string) float64 {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return 0
}

func unmarshal(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode upstream payload: %w", err)
	}
	return nil
}
