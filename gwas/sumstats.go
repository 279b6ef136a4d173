package gwas

import (
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.dedis.ch/onet/v3/log"
)

type SumstatsRecord struct {
	SNP string
	Z   float64
	A1  string
	A2  string
}

type MarkerListEntry struct {
	SNP    string
	A1     string
	A2     string
	MAF    float64
	HasMAF bool
}

// MergedMarker is a sumstats record confirmed against the reference marker list
type MergedMarker struct {
	SNP    string
	Z      float64
	MAF    float64
	HasMAF bool
}

// JoinStats counts the SNPs kept and dropped at each stage of the join
type JoinStats struct {
	SumstatsRead   int `toml:"sumstats_read"`
	MissingZ       int `toml:"missing_z"`
	Duplicates     int `toml:"duplicates"`
	Unique         int `toml:"unique"`
	MarkerListRead int `toml:"marker_list_read"`
	Merged         int `toml:"merged"`
	LDFiles        int `toml:"ld_files"`
	LDDuplicates   int `toml:"ld_duplicates"`
	Joined         int `toml:"joined"`
	LowMaf         int `toml:"low_maf"`
	Remaining      int `toml:"remaining"`
}

// NormalizeAlleles orders an allele pair so that matching ignores A1/A2 order
func NormalizeAlleles(a1, a2 string) (string, string) {
	if a2 < a1 {
		return a2, a1
	}
	return a1, a2
}

func isMissing(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NA", "NAN", "N/A", "NULL", ".":
		return true
	}
	return false
}

// ReadSumstats reads SNP, Z, A1 and A2, drops rows without a usable Z and keeps
// the first row of every duplicated SNP.
func ReadSumstats(filename string, stats *JoinStats) ([]SumstatsRecord, error) {
	tfs, err := NewTableFileStream(filename, StageSumstats, 0)
	if err != nil {
		return nil, err
	}
	defer tfs.Close()

	cols, err := tfs.Require("SNP", "Z", "A1", "A2")
	if err != nil {
		return nil, err
	}
	snpCol, zCol, a1Col, a2Col := cols[0], cols[1], cols[2], cols[3]

	var out []SumstatsRecord
	seen := make(map[string]struct{})
	read, missing, dupes := 0, 0, 0
	for {
		row, err := tfs.NextRow()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		read++
		if isMissing(row[zCol]) {
			missing++
			continue
		}
		z, err := tfs.Float(zCol, "Z")
		if err != nil {
			return nil, err
		}
		if math.IsNaN(z) || math.IsInf(z, 0) {
			missing++
			continue
		}
		snp := strings.TrimSpace(row[snpCol])
		if _, ok := seen[snp]; ok {
			dupes++
			continue
		}
		seen[snp] = struct{}{}
		out = append(out, SumstatsRecord{
			SNP: snp,
			Z:   z,
			A1:  strings.TrimSpace(row[a1Col]),
			A2:  strings.TrimSpace(row[a2Col]),
		})
	}

	log.LLvl1(time.Now().Format(time.StampMilli), "Read", read, "SNPs from", filename)
	if dupes > 0 {
		log.LLvl1(time.Now().Format(time.StampMilli), "Removed", dupes, "duplicated SNPs")
	}
	log.LLvl1(time.Now().Format(time.StampMilli), "Remain", len(out), "unique SNPs with z-score")

	if stats != nil {
		stats.SumstatsRead = read
		stats.MissingZ = missing
		stats.Duplicates = dupes
		stats.Unique = len(out)
	}
	if len(out) == 0 {
		return nil, &DataError{Stage: StageSumstats, Path: filename, Rows: read, Msg: "no SNPs with a z-score"}
	}
	return out, nil
}

// FindMarkerList locates the single *.snplist file in the reference directory
func FindMarkerList(refDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(refDir, "*.snplist"))
	if err != nil {
		return "", &DataError{Stage: StageMarkerList, Path: refDir, Msg: "bad reference directory", Err: err}
	}
	if len(matches) == 0 {
		return "", &DataError{Stage: StageMarkerList, Path: refDir, Msg: "no *.snplist file found"}
	}
	if len(matches) > 1 {
		sort.Strings(matches)
		return "", &DataError{Stage: StageMarkerList, Path: refDir, Msg: "more than one *.snplist file: " + strings.Join(matches, ", ")}
	}
	return matches[0], nil
}

// ReadMarkerList reads SNP, A1, A2 and, when present, MAF
func ReadMarkerList(filename string, stats *JoinStats) ([]MarkerListEntry, error) {
	tfs, err := NewTableFileStream(filename, StageMarkerList, 0)
	if err != nil {
		return nil, err
	}
	defer tfs.Close()

	cols, err := tfs.Require("SNP", "A1", "A2")
	if err != nil {
		return nil, err
	}
	mafCol := tfs.Optional("MAF")

	var out []MarkerListEntry
	for {
		row, err := tfs.NextRow()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		entry := MarkerListEntry{
			SNP: strings.TrimSpace(row[cols[0]]),
			A1:  strings.TrimSpace(row[cols[1]]),
			A2:  strings.TrimSpace(row[cols[2]]),
		}
		if mafCol >= 0 && !isMissing(row[mafCol]) {
			if entry.MAF, err = tfs.Float(mafCol, "MAF"); err != nil {
				return nil, err
			}
			entry.HasMAF = true
		}
		out = append(out, entry)
	}
	if stats != nil {
		stats.MarkerListRead = len(out)
	}
	if len(out) == 0 {
		return nil, &DataError{Stage: StageMarkerList, Path: filename, Msg: "marker list is empty"}
	}
	return out, nil
}

func alleleKey(snp, a1, a2 string) string {
	a1, a2 = NormalizeAlleles(a1, a2)
	return snp + "\x00" + a1 + "\x00" + a2
}

// MergeSumstats inner-joins the sumstats with the marker list on SNP and the
// unordered allele pair. The result is keyed by SNP.
func MergeSumstats(sumstats []SumstatsRecord, markerList []MarkerListEntry, stats *JoinStats) (map[string]MergedMarker, error) {
	index := make(map[string]int, len(markerList))
	for i := range markerList {
		key := alleleKey(markerList[i].SNP, markerList[i].A1, markerList[i].A2)
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}

	merged := make(map[string]MergedMarker)
	for _, rec := range sumstats {
		i, ok := index[alleleKey(rec.SNP, rec.A1, rec.A2)]
		if !ok {
			continue
		}
		if _, dup := merged[rec.SNP]; dup {
			continue
		}
		merged[rec.SNP] = MergedMarker{
			SNP:    rec.SNP,
			Z:      rec.Z,
			MAF:    markerList[i].MAF,
			HasMAF: markerList[i].HasMAF,
		}
	}

	log.LLvl1(time.Now().Format(time.StampMilli), "Remain", len(merged), "SNPs after merged with *.snplist file")
	if stats != nil {
		stats.Merged = len(merged)
	}
	if len(merged) == 0 {
		return nil, &DataError{Stage: StageMerge, Rows: len(sumstats), Msg: "no sumstats SNP matched the marker list"}
	}
	return merged, nil
}
