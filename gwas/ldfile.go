package gwas

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hhcho/ldsc/ldscore"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/sync/errgroup"
)

// LDFile is the per-chromosome reference file, <refDir>/<chrom>.l2.ldscore.gz
func LDFile(refDir string, chrom int) string {
	return filepath.Join(refDir, strconv.Itoa(chrom)+".l2.ldscore.gz")
}

// ReadLDFile inner-joins one chromosome's LD file with the merged sumstats by
// SNP. Only the first row of a SNP repeated within the file is kept; the
// number skipped is returned alongside the markers.
func ReadLDFile(filename string, chrom int, merged map[string]MergedMarker) ([]ldscore.Marker, int, error) {
	tfs, err := NewTableFileStream(filename, StageLDJoin, chrom)
	if err != nil {
		return nil, 0, err
	}
	defer tfs.Close()

	cols, err := tfs.Require("SNP", "CM", "BP", "L2")
	if err != nil {
		return nil, 0, err
	}
	snpCol, cmCol, bpCol, l2Col := cols[0], cols[1], cols[2], cols[3]
	chrCol := tfs.Optional("CHR")
	mafCol := tfs.Optional("MAF")

	var out []ldscore.Marker
	seen := make(map[string]struct{})
	dupes := 0
	for {
		row, err := tfs.NextRow()
		if err != nil {
			return nil, 0, err
		}
		if row == nil {
			break
		}
		snp := strings.TrimSpace(row[snpCol])
		mm, ok := merged[snp]
		if !ok {
			continue
		}
		if _, dup := seen[snp]; dup {
			dupes++
			continue
		}
		seen[snp] = struct{}{}

		m := ldscore.Marker{SNP: snp, Z: mm.Z, Chrom: chrom}
		if chrCol >= 0 {
			if m.Chrom, err = tfs.Int(chrCol, "CHR"); err != nil {
				return nil, 0, err
			}
		}
		if m.CM, err = tfs.Float(cmCol, "CM"); err != nil {
			return nil, 0, err
		}
		if m.BP, err = tfs.Uint(bpCol, "BP"); err != nil {
			return nil, 0, err
		}
		if m.L2, err = tfs.Float(l2Col, "L2"); err != nil {
			return nil, 0, err
		}
		switch {
		case mafCol >= 0 && !isMissing(row[mafCol]):
			if m.MAF, err = tfs.Float(mafCol, "MAF"); err != nil {
				return nil, 0, err
			}
		case mm.HasMAF:
			m.MAF = mm.MAF
		default:
			return nil, 0, tfs.rowError("no MAF for SNP "+snp+" in the LD file or the marker list", nil)
		}
		out = append(out, m)
	}
	log.Lvl2("Chromosome", chrom, ":", len(out), "SNPs joined from", filename)
	return out, dupes, nil
}

// JoinLDFiles reads the LD file of every chromosome on at most nproc
// goroutines and concatenates the joined markers in chromosome order. The
// first failure cancels the remaining reads.
func JoinLDFiles(ctx context.Context, refDir string, chroms []int, merged map[string]MergedMarker, nproc int, stats *JoinStats) ([]ldscore.Marker, error) {
	start := time.Now()
	if nproc <= 0 {
		nproc = runtime.NumCPU()
	}

	sorted := append([]int(nil), chroms...)
	sort.Ints(sorted)

	results := make([][]ldscore.Marker, len(sorted))
	dupes := make([]int, len(sorted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nproc)
	for i, chrom := range sorted {
		i, chrom := i, chrom
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			markers, d, err := ReadLDFile(LDFile(refDir, chrom), chrom, merged)
			if err != nil {
				return err
			}
			results[i] = markers
			dupes[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// a SNP listed under two chromosomes keeps its lowest-numbered entry
	var out []ldscore.Marker
	seen := make(map[string]struct{}, len(merged))
	totalDupes := 0
	for i := range results {
		totalDupes += dupes[i]
		for _, m := range results[i] {
			if _, dup := seen[m.SNP]; dup {
				totalDupes++
				continue
			}
			seen[m.SNP] = struct{}{}
			out = append(out, m)
		}
	}

	log.LLvl1(time.Now().Format(time.StampMilli), "Merged", len(sorted), "LD score files in", time.Since(start))
	log.LLvl1(time.Now().Format(time.StampMilli), "Remain", len(out), "SNPs after joined with LD score files")
	if stats != nil {
		stats.LDFiles = len(sorted)
		stats.LDDuplicates = totalDupes
		stats.Joined = len(out)
	}
	if len(out) == 0 {
		return nil, &DataError{Stage: StageLDJoin, Path: refDir, Rows: len(merged), Msg: "no merged SNP found in the LD score files"}
	}
	return out, nil
}

// FilterMaf keeps the markers passing fp.KeepMaf
func FilterMaf(markers []ldscore.Marker, fp *FilterParams, stats *JoinStats) ([]ldscore.Marker, error) {
	out := markers[:0:0]
	for _, m := range markers {
		if fp.KeepMaf(m.MAF) {
			out = append(out, m)
		}
	}
	removed := len(markers) - len(out)
	log.LLvl1(time.Now().Format(time.StampMilli), "Removed", removed, "SNPs with MAF <=", fp.MafLowerBound)
	if stats != nil {
		stats.LowMaf = removed
		stats.Remaining = len(out)
	}
	if len(out) == 0 {
		return nil, &DataError{Stage: StageMafFilter, Rows: len(markers), Msg: "no SNP passed the MAF filter"}
	}
	return out, nil
}

// GroupByChromosome splits markers into per-chromosome tables in ascending
// chromosome order, each sorted by the method's position column.
func GroupByChromosome(markers []ldscore.Marker, method ldscore.Method) []ldscore.ChromTable {
	byChrom := make(map[int][]ldscore.Marker)
	for _, m := range markers {
		byChrom[m.Chrom] = append(byChrom[m.Chrom], m)
	}
	chroms := make([]int, 0, len(byChrom))
	for c := range byChrom {
		chroms = append(chroms, c)
	}
	sort.Ints(chroms)

	tables := make([]ldscore.ChromTable, len(chroms))
	for i, c := range chroms {
		tables[i] = ldscore.ChromTable{Chrom: c, Markers: byChrom[c]}
		tables[i].SortByPosition(method)
	}
	return tables
}
