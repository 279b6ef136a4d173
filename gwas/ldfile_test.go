package gwas

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hhcho/ldsc/ldscore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMerged() map[string]MergedMarker {
	return map[string]MergedMarker{
		"rs1": {SNP: "rs1", Z: 1},
		"rs2": {SNP: "rs2", Z: 2, MAF: 0.3, HasMAF: true},
		"rs3": {SNP: "rs3", Z: 3, MAF: 0.25, HasMAF: true},
		"rs4": {SNP: "rs4", Z: 4},
	}
}

func TestLDFile(t *testing.T) {
	assert.Equal(t, filepath.Join("ref", "7.l2.ldscore.gz"), LDFile("ref", 7))
}

func TestJoinLDFiles(t *testing.T) {
	dir := t.TempDir()
	writeGzFile(t, LDFile(dir, 1),
		"CHR\tSNP\tBP\tCM\tMAF\tL2",
		"1\trs3\t300\t0.3\t0.2\t1.3",
		"1\trs1\t100\t0.1\t0.005\t1.1",
		"1\trs8\t800\t0.8\t0.2\t1.8",
		"1\trs3\t301\t0.31\t0.2\t9.9",
	)
	writeGzFile(t, LDFile(dir, 2),
		"SNP\tBP\tCM\tL2",
		"rs2\t200\t0.2\t1.2",
		"rs3\t999\t0.9\t1.9",
		"rs4\t1.5e+03\t0.4\t1.4",
	)

	merged := testMerged()
	merged["rs4"] = MergedMarker{SNP: "rs4", Z: 4, MAF: 0.1, HasMAF: true}
	for _, nproc := range []int{1, 2, 0} {
		var stats JoinStats
		markers, err := JoinLDFiles(context.Background(), dir, []int{2, 1}, merged, nproc, &stats)
		require.NoError(t, err)
		require.Len(t, markers, 4)

		// chromosome order, first row of a repeated SNP, no cross-chromosome duplicates
		assert.Equal(t, []string{"rs3", "rs1", "rs2", "rs4"}, []string{markers[0].SNP, markers[1].SNP, markers[2].SNP, markers[3].SNP})
		assert.Equal(t, ldscore.Marker{SNP: "rs3", Z: 3, Chrom: 1, CM: 0.3, BP: 300, L2: 1.3, MAF: 0.2}, markers[0])
		assert.Equal(t, 2, markers[2].Chrom)
		assert.Equal(t, 0.3, markers[2].MAF)
		assert.Equal(t, uint64(1500), markers[3].BP)
		assert.Equal(t, 2, stats.LDFiles)
		assert.Equal(t, 2, stats.LDDuplicates)
		assert.Equal(t, 4, stats.Joined)

		fp := &FilterParams{MafLowerBound: 0.01}
		kept, err := FilterMaf(markers, fp, &stats)
		require.NoError(t, err)
		assert.Len(t, kept, 3)
		assert.Equal(t, 1, stats.LowMaf)
		for _, m := range kept {
			assert.Greater(t, m.MAF, 0.01)
		}
	}
}

func TestJoinLDFilesMissingMaf(t *testing.T) {
	dir := t.TempDir()
	writeGzFile(t, LDFile(dir, 1),
		"SNP\tBP\tCM\tL2",
		"rs1\t100\t0.1\t1.1",
	)
	_, err := JoinLDFiles(context.Background(), dir, []int{1}, testMerged(), 1, nil)
	var de *DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageLDJoin, de.Stage)
	assert.Equal(t, 1, de.Chrom)
	assert.Equal(t, 2, de.Line)
}

func TestJoinLDFilesErrors(t *testing.T) {
	dir := t.TempDir()
	var de *DataError

	// missing chromosome file
	writeGzFile(t, LDFile(dir, 1), "SNP\tBP\tCM\tL2\tMAF", "rs1\t100\t0.1\t1.1\t0.2")
	_, err := JoinLDFiles(context.Background(), dir, []int{1, 2}, testMerged(), 2, nil)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.Chrom)

	// missing column
	writeGzFile(t, LDFile(dir, 3), "SNP\tBP\tL2", "rs1\t100\t1.1")
	_, err = JoinLDFiles(context.Background(), dir, []int{3}, testMerged(), 1, nil)
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Msg, "CM")

	// nothing joined
	writeGzFile(t, LDFile(dir, 4), "SNP\tBP\tCM\tL2\tMAF", "rs99\t100\t0.1\t1.1\t0.2")
	_, err = JoinLDFiles(context.Background(), dir, []int{4}, testMerged(), 1, nil)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageLDJoin, de.Stage)
	assert.Equal(t, 0, de.Chrom)
}

func TestFilterMafBoundary(t *testing.T) {
	markers := []ldscore.Marker{{SNP: "a", MAF: 0.01}, {SNP: "b", MAF: 0.0100001}, {SNP: "c", MAF: 0}}
	kept, err := FilterMaf(markers, &FilterParams{MafLowerBound: 0.01}, nil)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "b", kept[0].SNP)
	assert.Len(t, markers, 3)

	_, err = FilterMaf(markers[:1], &FilterParams{MafLowerBound: 0.01}, nil)
	var de *DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageMafFilter, de.Stage)
}

func TestGroupByChromosome(t *testing.T) {
	markers := []ldscore.Marker{
		{SNP: "c", Chrom: 3, CM: 0.5, BP: 10},
		{SNP: "a", Chrom: 1, CM: 0.2, BP: 30},
		{SNP: "b", Chrom: 1, CM: 0.1, BP: 40},
		{SNP: "d", Chrom: 1, CM: 0.3, BP: 20},
	}
	tables := GroupByChromosome(markers, ldscore.MethodCM)
	require.Len(t, tables, 2)
	assert.Equal(t, 1, tables[0].Chrom)
	assert.Equal(t, 3, tables[1].Chrom)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, tables[0].Positions(ldscore.MethodCM))

	tables = GroupByChromosome(markers, ldscore.MethodBP)
	assert.Equal(t, []float64{20, 30, 40}, tables[0].Positions(ldscore.MethodBP))
}
