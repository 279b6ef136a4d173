package simulate

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomDeterministic(t *testing.T) {
	a, b := NewRandom(42), NewRandom(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float64(), b.Float64())
		require.Equal(t, a.Intn(1000), b.Intn(1000))
	}
	assert.NotEqual(t, NewRandom(1).Float64(), NewRandom(2).Float64())
}

func TestRandomRanges(t *testing.T) {
	rand := NewRandom(3)
	sum := 0.0
	const n = 20000
	for i := 0; i < n; i++ {
		u := rand.Float64()
		require.True(t, u >= 0 && u < 1)
		v := rand.Uniform(2, 3)
		require.True(t, v >= 2 && v < 3)
		sum += rand.Normal(1, 0.1)

		a1, a2 := rand.AllelePair()
		require.NotEqual(t, a1, a2)
	}
	assert.InDelta(t, 1.0, sum/n, 0.01)
}

func TestRandomPerm(t *testing.T) {
	perm := NewRandom(9).Perm(500)
	require.Len(t, perm, 500)
	seen := make([]bool, 500)
	moved := 0
	for i, v := range perm {
		require.False(t, seen[v])
		seen[v] = true
		if v != i {
			moved++
		}
	}
	assert.Greater(t, moved, 400)
	assert.Equal(t, perm, NewRandom(9).Perm(500))
}

func countLines(t *testing.T, fname string, gz bool) int {
	f, err := os.Open(fname)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if gz {
		r, err := gzip.NewReader(f)
		require.NoError(t, err)
		scanner = bufio.NewScanner(r)
	}
	n := 0
	for scanner.Scan() {
		n++
	}
	require.NoError(t, scanner.Err())
	return n
}

func TestWritePanel(t *testing.T) {
	dir := t.TempDir()
	params := DefaultPanelParams()
	params.NumChroms = 3
	params.SnpsPerChrom = 200
	params.NumExtraSnps = 10

	panel, err := WritePanel(dir, params)
	require.NoError(t, err)

	assert.Equal(t, 600, panel.NumMarkers)
	assert.Len(t, panel.LDFiles, 3)
	assert.Equal(t, filepath.Join(dir, "ref", "2.l2.ldscore.gz"), panel.LDFiles[1])

	assert.Equal(t, 601, countLines(t, panel.MarkerList, false))
	assert.Equal(t, 201, countLines(t, panel.LDFiles[0], true))
	assert.Equal(t, panel.NumSumstats+1, countLines(t, panel.SumstatsFile, false))
	assert.Equal(t, 600+10+panel.NumDuplicate, panel.NumSumstats)
	assert.True(t, panel.NumExpected <= 600-panel.NumLowMaf)
	assert.True(t, panel.NumExpected > 0)

	// same seed, same bytes
	other, err := WritePanel(t.TempDir(), params)
	require.NoError(t, err)
	first, err := os.ReadFile(panel.SumstatsFile)
	require.NoError(t, err)
	second, err := os.ReadFile(other.SumstatsFile)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPanelParamsValidate(t *testing.T) {
	p := DefaultPanelParams()
	require.NoError(t, p.Validate())

	p.NumChroms = 23
	require.Error(t, p.Validate())

	p = DefaultPanelParams()
	p.FlipFrac = 1.5
	require.Error(t, p.Validate())

	p = DefaultPanelParams()
	p.SampleSize = 0
	require.Error(t, p.Validate())
}
