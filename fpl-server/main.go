package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"fpl-points-mcp/internal/config"
	"fpl-points-mcp/internal/expected"
	"fpl-points-mcp/internal/fixtures"
	"fpl-points-mcp/internal/form"
	"fpl-points-mcp/internal/logger"
	"fpl-points-mcp/internal/model"
	"fpl-points-mcp/internal/provider"
	"fpl-points-mcp/internal/store"
	"fpl-points-mcp/internal/strength"
	"fpl-points-mcp/internal/value"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PredictMatchArgs struct {
	HomeTeamID int `json:"home_team_id" jsonschema:"Home team id (required)"`
	AwayTeamID int `json:"away_team_id" jsonschema:"Away team id (required)"`
}

type ExpectedPointsArgs struct {
	ElementID  int  `json:"element_id" jsonschema:"Player element id (required)"`
	OpponentID int  `json:"opponent_id" jsonschema:"Opponent team id (0 = next fixture)"`
	IsHome     bool `json:"is_home" jsonschema:"Playing at home (used with opponent_id)"`
}

type FixtureDifficultyArgs struct {
	TeamID     int  `json:"team_id" jsonschema:"Team id (required)"`
	OpponentID int  `json:"opponent_id" jsonschema:"Opponent team id (required)"`
	IsHome     bool `json:"is_home" jsonschema:"Playing at home"`
}

type FixtureWindowArgs struct {
	TeamID  int `json:"team_id" jsonschema:"Team id (required)"`
	StartGW int `json:"start_gw" jsonschema:"First gameweek of the window (0 = current)"`
	EndGW   int `json:"end_gw" jsonschema:"Last gameweek of the window (0 = start + 5)"`
}

type FixtureTickerArgs struct {
	TeamID int `json:"team_id" jsonschema:"Team id (required)"`
	FromGW int `json:"from_gw" jsonschema:"First gameweek (0 = current)"`
	NumGWs int `json:"num_gws" jsonschema:"How many gameweeks forward (default 6)"`
}

type RankFixturesArgs struct {
	StartGW int    `json:"start_gw" jsonschema:"First gameweek of the window (0 = current)"`
	EndGW   int    `json:"end_gw" jsonschema:"Last gameweek of the window (0 = start + 5)"`
	Mode    string `json:"mode" jsonschema:"Ranking mode: attack|defence|overall (default overall)"`
}

type PlayerFormArgs struct {
	ElementID int    `json:"element_id" jsonschema:"Player element id (required)"`
	Metric    string `json:"metric" jsonschema:"Game-log metric (default total_points)"`
}

type PlayerArgs struct {
	ElementID int `json:"element_id" jsonschema:"Player element id (required)"`
}

type RefitArgs struct {
	Refresh bool `json:"refresh" jsonschema:"Re-download bootstrap and fixtures before fitting"`
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// app owns the fitted components and the data they were built from.
// refit replaces everything under the lock; tool reads take the lock
// briefly to grab consistent references.
type app struct {
	cfg    *config.Config
	client *provider.Client

	mu        sync.RWMutex
	match     *strength.Model
	calc      *expected.Calculator
	engine    *fixtures.Engine
	analyzer  *form.Analyzer
	players   map[int]model.PlayerSnapshot
	fixtures  []model.Fixture
	currentGW int
	report    strength.FitReport
}

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (optional)")
		refresh    = flag.Bool("refresh", false, "force re-download of upstream data on startup")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config: %v", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	st := store.NewJSONStore(cfg.Data.RawRoot)
	a := &app{
		cfg:      cfg,
		client:   provider.NewClient(st, cfg.Data),
		analyzer: form.New(cfg.Model.FormDecay, cfg.Model.RegressionFraction),
	}
	if err := a.rebuild(*refresh); err != nil {
		logger.Fatal("load upstream data: %v", err)
	}

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "fpl-points-mcp",
			Version: "0.1.0",
		},
		nil,
	)

	registry := make([]toolInfo, 0, 16)

	addTool(server, &registry, &mcp.Tool{
		Name:        "predict_match",
		Description: "Goal expectations, clean sheet and win/draw/loss probabilities for a fixture",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args PredictMatchArgs) (*mcp.CallToolResult, any, error) {
		if args.HomeTeamID == 0 || args.AwayTeamID == 0 {
			return toolError(fmt.Errorf("home_team_id and away_team_id are required")), nil, nil
		}
		a.mu.RLock()
		pred := a.match.Predict(args.HomeTeamID, args.AwayTeamID)
		a.mu.RUnlock()
		return toolResult(pred)
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "expected_points",
		Description: "Expected fantasy points breakdown for a player in a fixture, with confidence interval",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ExpectedPointsArgs) (*mcp.CallToolResult, any, error) {
		player, err := a.player(args.ElementID)
		if err != nil {
			return toolError(err), nil, nil
		}
		fixture := model.FixtureContext{OpponentID: args.OpponentID, IsHome: args.IsHome}
		if fixture.OpponentID == 0 {
			fixture, err = a.nextFixture(player.TeamID)
			if err != nil {
				return toolError(err), nil, nil
			}
		}
		history := a.history(args.ElementID)
		a.mu.RLock()
		calc := a.calc
		a.mu.RUnlock()
		return toolResult(calc.CalculateForFixture(player, fixture, history))
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "fixture_difficulty",
		Description: "Attack/defence/overall difficulty rating for one fixture",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FixtureDifficultyArgs) (*mcp.CallToolResult, any, error) {
		if args.TeamID == 0 || args.OpponentID == 0 {
			return toolError(fmt.Errorf("team_id and opponent_id are required")), nil, nil
		}
		a.mu.RLock()
		rating := a.engine.FDR(args.TeamID, args.OpponentID, args.IsHome)
		a.mu.RUnlock()
		return toolResult(rating)
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "fixture_outlook",
		Description: "Aggregated fixture difficulty over a gameweek window (doubles, blanks, swing)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FixtureWindowArgs) (*mcp.CallToolResult, any, error) {
		if args.TeamID == 0 {
			return toolError(fmt.Errorf("team_id is required")), nil, nil
		}
		start, end := a.resolveWindow(args.StartGW, args.EndGW)
		a.mu.RLock()
		rating := a.engine.AnalyzeWindow(args.TeamID, start, end)
		a.mu.RUnlock()
		return toolResult(rating)
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "fixture_ticker",
		Description: "Upcoming fixtures for a team with difficulty banding",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FixtureTickerArgs) (*mcp.CallToolResult, any, error) {
		if args.TeamID == 0 {
			return toolError(fmt.Errorf("team_id is required")), nil, nil
		}
		from := args.FromGW
		if from <= 0 {
			from = a.gameweek()
		}
		a.mu.RLock()
		ticker := a.engine.Ticker(args.TeamID, from, args.NumGWs)
		a.mu.RUnlock()
		return toolResult(ticker)
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "rank_fixtures",
		Description: "Rank all teams by fixture difficulty over a gameweek window",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RankFixturesArgs) (*mcp.CallToolResult, any, error) {
		start, end := a.resolveWindow(args.StartGW, args.EndGW)
		a.mu.RLock()
		rankings := a.engine.RankTeams(start, end, strings.ToLower(args.Mode))
		a.mu.RUnlock()
		return toolResult(rankings)
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "player_form",
		Description: "Time-weighted form, trend, and consistency for a player",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args PlayerFormArgs) (*mcp.CallToolResult, any, error) {
		if _, err := a.player(args.ElementID); err != nil {
			return toolError(err), nil, nil
		}
		metric := form.Metric(args.Metric)
		if args.Metric == "" {
			metric = form.MetricTotalPoints
		}
		return toolResult(a.analyzer.WeightedForm(a.history(args.ElementID), metric))
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "player_streaks",
		Description: "Hot/cold streak detection for a player's recent scores",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args PlayerArgs) (*mcp.CallToolResult, any, error) {
		if _, err := a.player(args.ElementID); err != nil {
			return toolError(err), nil, nil
		}
		return toolResult(a.analyzer.DetectStreaks(a.history(args.ElementID)))
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "regression_outlook",
		Description: "Over/under-performance versus xG/xA and projected reversion",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args PlayerArgs) (*mcp.CallToolResult, any, error) {
		player, err := a.player(args.ElementID)
		if err != nil {
			return toolError(err), nil, nil
		}
		return toolResult(a.analyzer.RegressionToMean(player, a.history(args.ElementID)))
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "player_value",
		Description: "Value metrics: points per million, value over replacement, ceiling/floor",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args PlayerArgs) (*mcp.CallToolResult, any, error) {
		player, err := a.player(args.ElementID)
		if err != nil {
			return toolError(err), nil, nil
		}
		fixture, err := a.nextFixture(player.TeamID)
		if err != nil {
			return toolError(err), nil, nil
		}
		history := a.history(args.ElementID)
		a.mu.RLock()
		calc := a.calc
		a.mu.RUnlock()
		breakdown := calc.CalculateForFixture(player, fixture, history)
		return toolResult(value.Analyze(player, breakdown.Total, history))
	})

	addTool(server, &registry, &mcp.Tool{
		Name:        "refit_model",
		Description: "Refit team strengths from finished fixtures (optionally refreshing data first)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RefitArgs) (*mcp.CallToolResult, any, error) {
		if err := a.rebuild(args.Refresh); err != nil {
			return toolError(err), nil, nil
		}
		a.mu.RLock()
		report := a.report
		a.mu.RUnlock()
		return toolResult(report)
	})

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})

	apiKey := strings.TrimSpace(os.Getenv("FPL_POINTS_API_KEY"))
	if cfg.Server.RequireAuth && apiKey == "" {
		logger.Fatal("FPL_POINTS_API_KEY is required (set env var or server.require_auth=false)")
	}

	withAuth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next(w, r)
				return
			}
			key := strings.TrimSpace(r.Header.Get(cfg.Server.AuthHeader))
			if key == "" {
				if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					key = strings.TrimSpace(authz[7:])
				}
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next(w, r)
		}
	}

	http.HandleFunc("/health", withAuth(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))

	http.HandleFunc("/tools", withAuth(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		b, _ := json.MarshalIndent(map[string]any{"tools": registry}, "", "  ")
		w.Write(b)
	}))

	http.HandleFunc(cfg.Server.MCPPath, withAuth(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))

	logger.Info("MCP HTTP server listening on %s%s", cfg.Server.Addr, cfg.Server.MCPPath)
	if err := http.ListenAndServe(cfg.Server.Addr, nil); err != nil {
		logger.Fatal("%v", err)
	}
}

func addTool[T any](server *mcp.Server, registry *[]toolInfo, tool *mcp.Tool, handler func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, any, error)) {
	*registry = append(*registry, toolInfo{Name: tool.Name, Description: tool.Description})
	mcp.AddTool(server, tool, handler)
}

// rebuild loads (or reloads) upstream data, refits the strength model,
// and swaps in fresh components.
func (a *app) rebuild(refresh bool) error {
	boot, err := a.client.FetchBootstrap(refresh)
	if err != nil {
		return err
	}
	fixtureList, err := a.client.FetchFixtures(refresh)
	if err != nil {
		return err
	}

	currentGW := currentGameweek(fixtureList)
	match := strength.New(a.cfg.Model)
	report := match.Fit(provider.Results(fixtureList, currentGW), boot.Teams)
	logger.Info("strength model: %s (%d matches, %d teams)", report, report.Matches, report.Teams)

	players := make(map[int]model.PlayerSnapshot, len(boot.Players))
	for _, p := range boot.Players {
		players[p.ID] = p
	}

	a.mu.Lock()
	a.match = match
	a.calc = expected.New(match, a.cfg.Model)
	a.engine = fixtures.New(a.cfg.Model, boot.Teams, fixtureList)
	a.players = players
	a.fixtures = fixtureList
	a.currentGW = currentGW
	a.report = report
	a.mu.Unlock()
	return nil
}

func (a *app) player(elementID int) (model.PlayerSnapshot, error) {
	if elementID == 0 {
		return model.PlayerSnapshot{}, fmt.Errorf("element_id is required")
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.players[elementID]
	if !ok {
		return model.PlayerSnapshot{}, fmt.Errorf("player not found: %d", elementID)
	}
	return p, nil
}

// history fetches a player's game log; failures degrade to no history,
// which every consumer resolves with priors.
func (a *app) history(elementID int) []model.HistoryRecord {
	history, err := a.client.FetchHistory(elementID, false)
	if err != nil {
		logger.Debug("no history for element %d: %v", elementID, err)
		return nil
	}
	return history
}

func (a *app) gameweek() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentGW
}

func (a *app) resolveWindow(start, end int) (int, int) {
	if start <= 0 {
		start = a.gameweek()
	}
	if end <= 0 {
		end = start + 5
	}
	return start, end
}

// nextFixture finds the team's next unfinished scheduled fixture.
func (a *app) nextFixture(teamID int) (model.FixtureContext, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	best := model.FixtureContext{}
	bestGW := 0
	for _, f := range a.fixtures {
		if f.Finished || f.Gameweek == 0 || f.Gameweek < a.currentGW {
			continue
		}
		if f.HomeTeam != teamID && f.AwayTeam != teamID {
			continue
		}
		if bestGW == 0 || f.Gameweek < bestGW {
			bestGW = f.Gameweek
			best = model.FixtureContext{OpponentID: f.AwayTeam, IsHome: true}
			if f.AwayTeam == teamID {
				best = model.FixtureContext{OpponentID: f.HomeTeam, IsHome: false}
			}
		}
	}
	if bestGW == 0 {
		return model.FixtureContext{}, fmt.Errorf("no upcoming fixture for team %d", teamID)
	}
	return best, nil
}

// currentGameweek is the earliest gameweek with an unfinished fixture,
// falling back to the last scheduled gameweek at season end.
func currentGameweek(fixtureList []model.Fixture) int {
	current := 0
	last := 0
	for _, f := range fixtureList {
		if f.Gameweek == 0 {
			continue
		}
		if f.Gameweek > last {
			last = f.Gameweek
		}
		if !f.Finished && (current == 0 || f.Gameweek < current) {
			current = f.Gameweek
		}
	}
	if current == 0 {
		return last
	}
	return current
}

func toolResult(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
