package main

import (
	"testing"

	"github.com/AruFlux/Tank-combat-arena/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneOf(t *testing.T) {
	assert.Equal(t, "hull_sides", zoneOf("P pen hull_sides for 80 (512px)"))
	assert.Equal(t, "unknown", zoneOf("P bounced off turret_front (300px)"))
	assert.Equal(t, "unknown", zoneOf("pen"))
}

func TestFirstTick(t *testing.T) {
	entries := []game.SimLogEntry{
		{Tick: 5, Category: "combat", Key: "penetration", Side: "enemy"},
		{Tick: 9, Category: "combat", Key: "penetration", Side: "player"},
	}
	assert.Equal(t, 5, firstTick(entries, "combat", "penetration", ""))
	assert.Equal(t, 9, firstTick(entries, "combat", "penetration", "player"))
	assert.Equal(t, -1, firstTick(entries, "state", "tank_destroyed", ""))
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "none", formatCounts(nil))
	assert.Equal(t, "hull_rear=3 hull_sides=3 turret_front=1",
		formatCounts(map[string]int{"turret_front": 1, "hull_sides": 3, "hull_rear": 3}))
}

func TestSummarize(t *testing.T) {
	all := []runStats{
		{
			gameOver: true, firstKillTick: 300, penetrations: 3, ricochets: 1,
			result:    game.Result{Score: 300, Kills: 3, Wave: 2, Accuracy: 75, SurvivalTime: 40},
			killZones: map[string]int{"hull_sides": 2, "hull_rear": 1},
		},
		{
			gameOver: false, firstKillTick: -1, penetrations: 1, ricochets: 3,
			result:    game.Result{Score: 0, Kills: 0, Wave: 1, Accuracy: 25, SurvivalTime: 60},
			killZones: map[string]int{},
		},
	}
	agg := summarize(all)
	assert.Equal(t, 2, agg.runs)
	assert.Equal(t, 1, agg.gameOvers)
	assert.InDelta(t, 150, agg.meanScore, 1e-9)
	assert.InDelta(t, 1.5, agg.meanWave, 1e-9)
	assert.InDelta(t, 50, agg.meanAccuracy, 1e-9)
	assert.InDelta(t, 50, agg.meanSurvival, 1e-9)
	assert.Equal(t, 2, agg.bestWave)
	assert.Equal(t, 300, agg.bestScore)
	assert.InDelta(t, 0.5, agg.penRatio, 1e-9)
	assert.Equal(t, 300, agg.medianFirst)
	assert.Equal(t, 2, agg.killZones["hull_sides"])

	empty := summarize(nil)
	assert.Equal(t, -1, empty.medianFirst)
}

func TestRunAutopilot_Deterministic(t *testing.T) {
	a := runAutopilot(1, 77, 1200, game.DefaultRules())
	b := runAutopilot(1, 77, 1200, game.DefaultRules())
	require.Equal(t, a, b)
	assert.Positive(t, a.ticks)
	assert.LessOrEqual(t, a.ticks, 1200)
	assert.Equal(t, a.result.Kills, sumCounts(a.killZones), "every kill follows a penetration")
}

func sumCounts(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

