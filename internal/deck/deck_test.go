package deck

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/millrun/internal/domain"
)

func testConfig() domain.MillConfig {
	return domain.MillConfig{
		DiameterM:         5,
		LengthM:           7,
		RPM:               15,
		MediaFillFraction: 0.35,
		ParticleDensity:   3000,
		MediaDensity:      7800,
		SimTimeS:          0.1,
		TimestepS:         1e-4,
	}
}

// directive returns the fields of the first deck line starting with prefix.
func directive(t *testing.T, deck, prefix string) []string {
	t.Helper()
	for _, line := range strings.Split(deck, "\n") {
		if strings.HasPrefix(line, prefix+" ") {
			return strings.Fields(line)
		}
	}
	t.Fatalf("directive %q not found in deck:\n%s", prefix, deck)
	return nil
}

func TestBuildInputIsDeterministic(t *testing.T) {
	configs := []domain.MillConfig{
		testConfig(),
		{DiameterM: 1.2, LengthM: 0.4, RPM: 42, MediaFillFraction: 0.2, ParticleDensity: 2650, MediaDensity: 7850, SimTimeS: 2, TimestepS: 1e-5},
		{DiameterM: 9.75, LengthM: 4.1, RPM: 0.5, MediaFillFraction: 0.9, ParticleDensity: 1, MediaDensity: 1, SimTimeS: 60, TimestepS: 1e-2},
	}
	for _, cfg := range configs {
		first := BuildInput(cfg)
		second := BuildInput(cfg)
		assert.Equal(t, first, second)
	}
}

func TestBuildInputContainsUnitsAndHeader(t *testing.T) {
	deck := BuildInput(testConfig())
	assert.True(t, strings.HasPrefix(deck, "# Auto-generated LIGGGHTS input deck for a grinding mill\nunits si\n"))
	assert.True(t, strings.HasSuffix(deck, "run 1000\n"))
	assert.False(t, strings.HasSuffix(deck, "\n\n"))
}

func TestBuildInputTimestepAndRunDirectives(t *testing.T) {
	tests := []struct {
		sim, dt   float64
		wantSteps string
	}{
		{0.1, 1e-4, "1000"},
		{1, 1e-3, "1000"},
		// Floor of the float quotient, not the rounded value.
		{2, 1e-5, "199999"},
		{60, 1e-2, "6000"},
		{0.5, 3e-4, "1666"},
	}
	for _, tt := range tests {
		cfg := testConfig()
		cfg.SimTimeS = tt.sim
		cfg.TimestepS = tt.dt
		deck := BuildInput(cfg)

		ts := directive(t, deck, "timestep")
		require.Len(t, ts, 2)
		got, err := strconv.ParseFloat(ts[1], 64)
		require.NoError(t, err)
		assert.Equal(t, tt.dt, got)

		run := directive(t, deck, "run")
		assert.Equal(t, []string{"run", tt.wantSteps}, run)
		assert.Equal(t, tt.wantSteps, strconv.FormatInt(cfg.TotalSteps(), 10))
	}
}

func TestBuildInputDumpInterval(t *testing.T) {
	deck := BuildInput(testConfig())
	assert.Equal(t, []string{"dump", "dmp", "all", "custom", "8", DumpFileName, "id", "x", "y", "z", "vx", "vy", "vz"},
		directive(t, deck, "dump"))

	short := testConfig()
	short.SimTimeS = 0.005 // 50 steps
	assert.Equal(t, "1", directive(t, BuildInput(short), "dump")[4])
}

func TestBuildInputGeometry(t *testing.T) {
	deck := BuildInput(testConfig())

	assert.Equal(t, []string{"region", "simbox", "block", "-5", "5", "-5", "5", "-7", "7", "units", "box"},
		directive(t, deck, "region simbox"))
	assert.Equal(t, []string{"region", "mill", "cylinder", "z", "0", "0", "2.5", "-3.5", "3.5", "units", "box"},
		directive(t, deck, "region mill"))
	assert.Contains(t, deck, "primitive type 2 zcylinder 2.5\n")
	assert.Contains(t, deck, "density constant 3000 radius constant 0.01\n")

	fill := directive(t, deck, "region fill")
	radius, err := strconv.ParseFloat(fill[6], 64)
	require.NoError(t, err)
	assert.InDelta(t, 2.125, radius, 1e-12)
	high, err := strconv.ParseFloat(fill[8], 64)
	require.NoError(t, err)
	assert.InDelta(t, 3.15, high, 1e-12)
}

func TestBuildInputRotation(t *testing.T) {
	omega := directive(t, BuildInput(testConfig()), "variable omega")
	require.Len(t, omega, 4)
	got, err := strconv.ParseFloat(omega[3], 64)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, got, 1e-12)
}

func TestBuildInputFixedSeeds(t *testing.T) {
	deck := BuildInput(testConfig())
	for _, seed := range []string{"15485867", "32452843", "49979687"} {
		assert.Contains(t, deck, seed)
	}
}

func TestDerive(t *testing.T) {
	d := Derive(testConfig())
	assert.Equal(t, 2.5, d.Radius)
	assert.Equal(t, int64(1000), d.Steps)
	assert.Equal(t, int64(8), d.DumpEvery)
	assert.Equal(t, int64(40000), d.StepsPerRevolution)
	assert.InDelta(t, 18.917, d.CriticalRPM, 1e-3)
}
