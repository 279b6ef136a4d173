package simulate

import (
	"encoding/binary"
	"math"

	"github.com/aead/chacha20/chacha"
	"github.com/hhcho/frand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	bufferSize int = 1024
	chachaRounds   = 20
)

// Random is a deterministic stream seeded from a single integer, so that
// simulated panels can be regenerated exactly.
type Random struct {
	seed uint64
	prg  *frand.RNG
}

func NewRandom(seed uint64) *Random {
	key := make([]byte, chacha.KeySize)
	binary.LittleEndian.PutUint64(key, seed)
	return &Random{
		seed: seed,
		prg:  frand.NewCustom(key, bufferSize, chachaRounds),
	}
}

func (rand *Random) Seed() uint64 {
	return rand.seed
}

// Float64 returns a uniform value in [0, 1)
func (rand *Random) Float64() float64 {
	return rand.prg.Float64()
}

func (rand *Random) Intn(n int) int {
	return rand.prg.Intn(n)
}

// Perm returns a random permutation of [0, n)
func (rand *Random) Perm(n int) []int {
	return rand.prg.Perm(n)
}

// Normal samples N(mu, sigma^2) by inverting the normal CDF
func (rand *Random) Normal(mu, sigma float64) float64 {
	u := rand.Float64()
	for u == 0 {
		u = rand.Float64()
	}
	return distuv.Normal{Mu: mu, Sigma: sigma}.Quantile(u)
}

func (rand *Random) NormalVec(n int, mu, sigma float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rand.Normal(mu, sigma)
	}
	return out
}

// Uniform samples from [lo, hi)
func (rand *Random) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*rand.Float64()
}

// Allele pair drawn from the four nucleotides, never identical
func (rand *Random) AllelePair() (string, string) {
	bases := [4]string{"A", "C", "G", "T"}
	i := rand.Intn(4)
	j := (i + 1 + rand.Intn(3)) % 4
	return bases[i], bases[j]
}

func clampPositive(x, floor float64) float64 {
	return math.Max(x, floor)
}
