package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/AruFlux/Tank-combat-arena/internal/config"
	"github.com/AruFlux/Tank-combat-arena/internal/game"
	"github.com/AruFlux/Tank-combat-arena/internal/scores"
	"github.com/rs/zerolog"
)

type runStats struct {
	runIndex int
	seed     int64

	ticks    int // ticks actually simulated
	gameOver bool
	result   game.Result

	firstKillTick   int
	firstHitTaken   int
	penetrations    int // player shells that went through
	ricochets       int // player shells that bounced
	moduleHits      int
	hitsTaken       int
	damageTaken     float64
	killZones       map[string]int // armor zone of each killing penetration
	finalHealth     float64
	firstWaveClears int
}

func main() {
	var runs int
	var ticks int
	var seedBase int64
	var seedStep int64
	var configDir string
	var store bool

	flag.IntVar(&runs, "runs", 5, "number of headless autopilot runs")
	flag.IntVar(&ticks, "ticks", 3600, "maximum ticks per run")
	flag.Int64Var(&seedBase, "seed-base", 42, "base RNG seed for run 1")
	flag.Int64Var(&seedStep, "seed-step", 1, "seed increment between runs")
	flag.StringVar(&configDir, "config", "", "directory holding tank_arena.cfg.json (sim.* rules, scores.*)")
	flag.BoolVar(&store, "store", false, "save each run's result to the configured score store")
	flag.Parse()

	if runs <= 0 {
		fmt.Println("error: -runs must be > 0")
		return
	}
	if ticks <= 0 {
		fmt.Println("error: -ticks must be > 0")
		return
	}

	rules := game.DefaultRules()
	if configDir != "" || store {
		dir := configDir
		if dir == "" {
			dir = "."
		}
		if err := config.Load(dir); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		rules = config.Rules()
	}

	fmt.Printf("=== Headless Autopilot Report ===\n")
	fmt.Printf("runs=%d ticks=%d seed_base=%d seed_step=%d\n\n", runs, ticks, seedBase, seedStep)

	all := make([]runStats, 0, runs)
	for i := 0; i < runs; i++ {
		seed := seedBase + int64(i)*seedStep
		stats := runAutopilot(i+1, seed, ticks, rules)
		all = append(all, stats)
		printRun(stats)
	}

	printAggregate(all)

	if store {
		if err := storeResults(all); err != nil {
			fmt.Printf("error: %v\n", err)
			os.Exit(1)
		}
	}
}

func runAutopilot(runIndex int, seed int64, ticks int, rules game.Rules) runStats {
	ts := game.NewTestSim(
		game.WithTestSeed(seed),
		game.WithTestRules(rules),
		game.WithAutopilot(),
	)
	end := ts.RunUntil(func(ts *game.TestSim) bool {
		return ts.Sim.Phase() == game.PhaseGameOver
	}, ticks)

	rs := runStats{
		runIndex:      runIndex,
		seed:          seed,
		ticks:         ts.CurrentTick(),
		gameOver:      end != -1,
		result:        ts.Sim.Result(),
		firstKillTick: firstTick(ts.SimLog.Entries(), "state", "tank_destroyed", "enemy"),
		firstHitTaken: firstTick(ts.SimLog.Entries(), "combat", "penetration", "player"),
		killZones:     map[string]int{},
	}
	if p := ts.Player(); p != nil {
		rs.finalHealth = p.Health
	}

	// The kill shot is the last penetration on a tank before it is destroyed.
	lastPen := map[string]string{}
	for _, e := range ts.SimLog.Entries() {
		switch {
		case e.Category == "combat" && e.Key == "penetration":
			if e.Side == "player" {
				rs.hitsTaken++
				rs.damageTaken += e.NumVal
				continue
			}
			rs.penetrations++
			lastPen[e.Tank] = zoneOf(e.Value)
		case e.Category == "combat" && e.Key == "ricochet" && e.Side == "enemy":
			rs.ricochets++
		case e.Category == "combat" && e.Key == "module_damaged" && e.Side == "enemy":
			rs.moduleHits++
		case e.Category == "state" && e.Key == "tank_destroyed" && e.Side == "enemy":
			if z, ok := lastPen[e.Tank]; ok {
				rs.killZones[z]++
			}
		case e.Category == "session" && e.Key == "wave_started" && e.NumVal == 2:
			rs.firstWaveClears = e.Tick
		}
	}
	return rs
}

// zoneOf pulls the armor zone out of a penetration detail such as
// "P pen hull_sides for 80 (512px)".
func zoneOf(detail string) string {
	fields := strings.Fields(detail)
	for i, f := range fields {
		if f == "pen" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return "unknown"
}

func firstTick(entries []game.SimLogEntry, category, key, side string) int {
	for _, e := range entries {
		if e.Category != category || e.Key != key {
			continue
		}
		if side == "" || e.Side == side {
			return e.Tick
		}
	}
	return -1
}

func printRun(rs runStats) {
	r := rs.result
	fmt.Printf("--- Run %d (seed=%d) ---\n", rs.runIndex, rs.seed)
	fmt.Printf("outcome: ticks=%d game_over=%t final_hp=%.0f\n", rs.ticks, rs.gameOver, rs.finalHealth)
	fmt.Printf("result: score=%d kills=%d wave=%d accuracy=%d%% survival=%ds shots=%d/%d\n",
		r.Score, r.Kills, r.Wave, r.Accuracy, r.SurvivalTime, r.ShotsHit, r.ShotsFired)
	fmt.Printf("phase_markers: first_kill=%d first_hit_taken=%d wave1_cleared=%d\n",
		rs.firstKillTick, rs.firstHitTaken, rs.firstWaveClears)
	fmt.Printf("gunnery: penetrations=%d ricochets=%d module_hits=%d pen_ratio=%.2f\n",
		rs.penetrations, rs.ricochets, rs.moduleHits, penRatio(rs.penetrations, rs.ricochets))
	fmt.Printf("survivability: hits_taken=%d damage_taken=%.0f\n", rs.hitsTaken, rs.damageTaken)
	fmt.Printf("kill_zones: %s\n", formatCounts(rs.killZones))
	fmt.Println()
}

func penRatio(pens, ricochets int) float64 {
	if pens+ricochets == 0 {
		return 0
	}
	return float64(pens) / float64(pens+ricochets)
}

// formatCounts renders a count map as "k=v" pairs, highest count first.
func formatCounts(m map[string]int) string {
	if len(m) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, " ")
}

type aggregate struct {
	runs         int
	gameOvers    int
	meanScore    float64
	meanKills    float64
	meanWave     float64
	meanAccuracy float64
	meanSurvival float64
	bestWave     int
	bestScore    int
	penRatio     float64
	killZones    map[string]int
	medianFirst  int // median first-kill tick over runs that scored one, -1 if none
}

func summarize(all []runStats) aggregate {
	agg := aggregate{runs: len(all), killZones: map[string]int{}, medianFirst: -1}
	if len(all) == 0 {
		return agg
	}
	pens, rics := 0, 0
	firstKills := make([]int, 0, len(all))
	for _, rs := range all {
		r := rs.result
		if rs.gameOver {
			agg.gameOvers++
		}
		agg.meanScore += float64(r.Score)
		agg.meanKills += float64(r.Kills)
		agg.meanWave += float64(r.Wave)
		agg.meanAccuracy += float64(r.Accuracy)
		agg.meanSurvival += float64(r.SurvivalTime)
		if r.Wave > agg.bestWave {
			agg.bestWave = r.Wave
		}
		if r.Score > agg.bestScore {
			agg.bestScore = r.Score
		}
		pens += rs.penetrations
		rics += rs.ricochets
		for z, n := range rs.killZones {
			agg.killZones[z] += n
		}
		if rs.firstKillTick >= 0 {
			firstKills = append(firstKills, rs.firstKillTick)
		}
	}
	n := float64(len(all))
	agg.meanScore /= n
	agg.meanKills /= n
	agg.meanWave /= n
	agg.meanAccuracy /= n
	agg.meanSurvival /= n
	agg.penRatio = penRatio(pens, rics)
	if len(firstKills) > 0 {
		sort.Ints(firstKills)
		agg.medianFirst = firstKills[len(firstKills)/2]
	}
	return agg
}

func printAggregate(all []runStats) {
	agg := summarize(all)
	fmt.Printf("=== Aggregate (%d runs) ===\n", agg.runs)
	fmt.Printf("game_overs=%d/%d best_wave=%d best_score=%d\n", agg.gameOvers, agg.runs, agg.bestWave, agg.bestScore)
	fmt.Printf("mean: score=%.1f kills=%.2f wave=%.2f accuracy=%.1f%% survival=%.1fs\n",
		agg.meanScore, agg.meanKills, agg.meanWave, agg.meanAccuracy, agg.meanSurvival)
	fmt.Printf("gunnery: pen_ratio=%.2f median_first_kill_tick=%d\n", agg.penRatio, agg.medianFirst)
	fmt.Printf("kill_zones: %s\n", formatCounts(agg.killZones))
}

// storeResults saves every run under an "autopilot-<seed>" username.
func storeResults(all []runStats) error {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "scores").Logger()
	mgr := scores.NewManager(l)
	if err := mgr.Connect(config.GetScoresConfig()); err != nil {
		return fmt.Errorf("connecting score store: %w", err)
	}
	defer mgr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, rs := range all {
		name := fmt.Sprintf("autopilot-%d", rs.seed)
		if _, err := mgr.Store.CreateScore(ctx, scores.FromResult(name, rs.result)); err != nil {
			return fmt.Errorf("run %d: %w", rs.runIndex, err)
		}
	}
	fmt.Printf("stored %d results\n", len(all))
	return nil
}
