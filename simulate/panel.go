package simulate

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// PanelParams describes a synthetic reference panel and a matching GWAS.
// Per-marker L2 follows a sine wave along each chromosome plus Gaussian noise so
// that window means vary enough to identify both regression coefficients.
type PanelParams struct {
	NumChroms    int     `toml:"num_chroms"`
	SnpsPerChrom int     `toml:"snps_per_chrom"`
	CMStep       float64 `toml:"cm_step"`
	BPStep       uint64  `toml:"bp_step"`

	L2Mean      float64 `toml:"l2_mean"`
	L2Amplitude float64 `toml:"l2_amplitude"`
	L2Period    int     `toml:"l2_period"`
	L2SD        float64 `toml:"l2_sd"`

	Heritability float64 `toml:"heritability"`
	Intercept    float64 `toml:"intercept"`
	SampleSize   float64 `toml:"sample_size"`

	LowMafFrac    float64 `toml:"low_maf_frac"`
	MissingZFrac  float64 `toml:"missing_z_frac"`
	DuplicateFrac float64 `toml:"duplicate_frac"`
	FlipFrac      float64 `toml:"flip_frac"`
	MismatchFrac  float64 `toml:"mismatch_frac"`
	NumExtraSnps  int     `toml:"num_extra_snps"`
	Shuffle       bool    `toml:"shuffle"`

	Seed uint64 `toml:"seed"`
}

func DefaultPanelParams() PanelParams {
	return PanelParams{
		NumChroms:     22,
		SnpsPerChrom:  2000,
		CMStep:        0.0005,
		BPStep:        500,
		L2Mean:        1,
		L2Amplitude:   0.5,
		L2Period:      500,
		L2SD:          0.1,
		Heritability:  0.5,
		Intercept:     1,
		SampleSize:    61220,
		LowMafFrac:    0.05,
		MissingZFrac:  0.01,
		DuplicateFrac: 0.01,
		FlipFrac:      0.3,
		MismatchFrac:  0.01,
		NumExtraSnps:  100,
		Shuffle:       true,
		Seed:          1,
	}
}

func (p *PanelParams) Validate() error {
	if p.NumChroms < 1 || p.NumChroms > 22 {
		return errors.Errorf("num_chroms must be within 1..22, got %d", p.NumChroms)
	}
	if p.SnpsPerChrom < 1 {
		return errors.Errorf("snps_per_chrom must be positive, got %d", p.SnpsPerChrom)
	}
	if p.L2Period < 1 {
		return errors.Errorf("l2_period must be positive, got %d", p.L2Period)
	}
	if p.SampleSize <= 0 {
		return errors.Errorf("sample_size must be positive, got %v", p.SampleSize)
	}
	for name, f := range map[string]float64{
		"low_maf_frac":   p.LowMafFrac,
		"missing_z_frac": p.MissingZFrac,
		"duplicate_frac": p.DuplicateFrac,
		"flip_frac":      p.FlipFrac,
		"mismatch_frac":  p.MismatchFrac,
	} {
		if f < 0 || f > 1 {
			return errors.Errorf("%s must be within [0, 1], got %v", name, f)
		}
	}
	return nil
}

// Panel lists the files written by WritePanel
type Panel struct {
	RefDir       string
	MarkerList   string
	LDFiles      []string
	SumstatsFile string

	NumMarkers   int // markers in the reference panel
	NumSumstats  int // data rows in the sumstats file, duplicates and missing included
	NumLowMaf    int
	NumMissingZ  int
	NumMismatch  int
	NumDuplicate int
	NumExpected  int // markers that should survive every join and filter
}

type simMarker struct {
	snp    string
	a1, a2 string
	chrom  int
	cm     float64
	bp     uint64
	maf    float64
	l2     float64
	z      float64
}

// WritePanel writes <dir>/ref/sim.snplist, <dir>/ref/<c>.l2.ldscore.gz and
// <dir>/sim.sumstats.
func WritePanel(dir string, p PanelParams) (*Panel, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rand := NewRandom(p.Seed)
	refDir := filepath.Join(dir, "ref")
	if err := os.MkdirAll(refDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create reference directory")
	}

	total := p.NumChroms * p.SnpsPerChrom
	markers := make([][]simMarker, p.NumChroms)
	panel := &Panel{
		RefDir:       refDir,
		MarkerList:   filepath.Join(refDir, "sim.snplist"),
		SumstatsFile: filepath.Join(dir, "sim.sumstats"),
		NumMarkers:   total,
	}

	for c := range markers {
		chrom := c + 1
		markers[c] = make([]simMarker, p.SnpsPerChrom)
		for i := range markers[c] {
			m := &markers[c][i]
			m.snp = fmt.Sprintf("rs%d%06d", chrom, i)
			m.a1, m.a2 = rand.AllelePair()
			m.chrom = chrom
			m.cm = float64(i) * p.CMStep
			m.bp = uint64(i+1) * p.BPStep
			wave := p.L2Amplitude * math.Sin(2*math.Pi*float64(i)/float64(p.L2Period))
			m.l2 = clampPositive(p.L2Mean+wave+rand.Normal(0, p.L2SD), 0.01)
			if rand.Float64() < p.LowMafFrac {
				m.maf = rand.Uniform(0, 0.01)
				panel.NumLowMaf++
			} else {
				m.maf = rand.Uniform(0.02, 0.5)
			}
			x := m.l2 * p.SampleSize / float64(total)
			m.z = rand.Normal(0, math.Sqrt(p.Intercept+p.Heritability*x))
		}
	}

	if err := writeMarkerList(panel.MarkerList, markers); err != nil {
		return nil, err
	}
	for c := range markers {
		fname := filepath.Join(refDir, strconv.Itoa(c+1)+".l2.ldscore.gz")
		if err := writeLDFile(fname, markers[c], rand, p.Shuffle); err != nil {
			return nil, err
		}
		panel.LDFiles = append(panel.LDFiles, fname)
	}
	if err := writeSumstats(panel, markers, rand, p); err != nil {
		return nil, err
	}

	log.Lvl2("Simulated", total, "markers on", p.NumChroms, "chromosomes into", dir)
	return panel, nil
}

func writeMarkerList(fname string, markers [][]simMarker) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "create marker list")
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	writer.WriteString("SNP\tA1\tA2\n")
	for c := range markers {
		for _, m := range markers[c] {
			writer.WriteString(strings.Join([]string{m.snp, m.a1, m.a2}, "\t") + "\n")
		}
	}
	return writer.Flush()
}

func writeLDFile(fname string, markers []simMarker, rand *Random, shuffle bool) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "create ld score file")
	}
	defer file.Close()

	var order []int
	if shuffle {
		order = rand.Perm(len(markers))
	} else {
		order = make([]int, len(markers))
		for i := range order {
			order[i] = i
		}
	}

	gz := gzip.NewWriter(file)
	writer := bufio.NewWriter(gz)
	writer.WriteString("CHR\tSNP\tBP\tCM\tMAF\tL2\n")
	for _, i := range order {
		m := markers[i]
		writer.WriteString(strings.Join([]string{
			strconv.Itoa(m.chrom),
			m.snp,
			strconv.FormatUint(m.bp, 10),
			strconv.FormatFloat(m.cm, 'g', -1, 64),
			strconv.FormatFloat(m.maf, 'g', -1, 64),
			strconv.FormatFloat(m.l2, 'g', -1, 64),
		}, "\t") + "\n")
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	return gz.Close()
}

func writeSumstats(panel *Panel, markers [][]simMarker, rand *Random, p PanelParams) error {
	file, err := os.Create(panel.SumstatsFile)
	if err != nil {
		return errors.Wrap(err, "create sumstats")
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	writer.WriteString("SNP\tA1\tA2\tZ\n")
	line := func(snp, a1, a2, z string) {
		writer.WriteString(strings.Join([]string{snp, a1, a2, z}, "\t") + "\n")
		panel.NumSumstats++
	}
	for c := range markers {
		for _, m := range markers[c] {
			a1, a2 := m.a1, m.a2
			if rand.Float64() < p.FlipFrac {
				a1, a2 = a2, a1
			}
			mismatch := rand.Float64() < p.MismatchFrac
			if mismatch {
				a1, a2 = mismatchedPair(m.a1, m.a2)
				panel.NumMismatch++
			}
			z := strconv.FormatFloat(m.z, 'g', -1, 64)
			if rand.Float64() < p.MissingZFrac {
				z = "NA"
				panel.NumMissingZ++
			}
			if z != "NA" && !mismatch && m.maf > 0.01 {
				panel.NumExpected++
			}
			line(m.snp, a1, a2, z)
			if z != "NA" && rand.Float64() < p.DuplicateFrac {
				line(m.snp, a1, a2, z)
				panel.NumDuplicate++
			}
		}
	}
	for i := 0; i < p.NumExtraSnps; i++ {
		a1, a2 := rand.AllelePair()
		line(fmt.Sprintf("rsx%06d", i), a1, a2, strconv.FormatFloat(rand.Normal(0, 1), 'g', -1, 64))
	}
	return writer.Flush()
}

// mismatchedPair returns an allele pair that differs from {a1, a2} as a set
func mismatchedPair(a1, a2 string) (string, string) {
	for _, b := range []string{"A", "C", "G", "T"} {
		if b != a1 && b != a2 {
			return a1, b
		}
	}
	return a1, a2
}
