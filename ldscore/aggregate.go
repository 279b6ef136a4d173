package ldscore

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// AggregateChromosome computes the window-mean LD score of every marker in one
// chromosome. The table must already be sorted by the window's method column.
func AggregateChromosome(table *ChromTable, w Window) ([]Row, error) {
	if err := w.Validate(); err != nil {
		if dwe, ok := err.(*DegenerateWindowError); ok {
			dwe.Chrom = table.Chrom
			dwe.Rows = table.Len()
		}
		return nil, err
	}

	means, counts, err := windowMeans(table.Chrom, table.Positions(w.Method), table.L2(), w.Size)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, table.Len())
	for i := range table.Markers {
		m := &table.Markers[i]
		rows[i] = Row{
			SNP:     m.SNP,
			Chrom:   table.Chrom,
			Z:       m.Z,
			CM:      m.CM,
			BP:      m.BP,
			L2:      m.L2,
			LDScore: means[i],
			M:       counts[i],
		}
	}
	return rows, nil
}

// Aggregate runs AggregateChromosome over every table on nproc workers
// (runtime.NumCPU() when nproc <= 0). Rows are concatenated in ascending
// chromosome order regardless of which worker finishes first. The first
// failing chromosome cancels the remaining work and its error is returned.
func Aggregate(ctx context.Context, tables []ChromTable, w Window, nproc int) (*Table, error) {
	start := time.Now()
	if len(tables) == 0 {
		return &Table{}, nil
	}
	if nproc <= 0 {
		nproc = runtime.NumCPU()
	}
	if nproc > len(tables) {
		nproc = len(tables)
	}

	order := make([]int, len(tables))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tables[order[a]].Chrom < tables[order[b]].Chrom
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]Row, len(tables))
	errs := make([]error, len(tables))

	// Dispatcher
	jobChannels := make([]chan int, nproc)
	for i := range jobChannels {
		jobChannels[i] = make(chan int, 32)
	}
	go func() {
		for index := range order {
			jobChannels[index%nproc] <- index
		}
		for _, c := range jobChannels {
			close(c)
		}
	}()

	var workerGroup sync.WaitGroup
	for thread := 0; thread < nproc; thread++ {
		workerGroup.Add(1)
		go func(thread int) {
			defer workerGroup.Done()
			for slot := range jobChannels[thread] {
				if err := ctx.Err(); err != nil {
					errs[slot] = err
					continue
				}
				table := &tables[order[slot]]
				rows, err := AggregateChromosome(table, w)
				if err != nil {
					errs[slot] = err
					cancel()
					continue
				}
				results[slot] = rows
				log.Lvl2("Chromosome", table.Chrom, "aggregated", len(rows), "SNPs on thread", thread)
			}
		}(thread)
	}
	workerGroup.Wait()

	// report the lowest chromosome that actually failed rather than a cancellation
	var firstErr error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil || (errors.Is(firstErr, context.Canceled) && !errors.Is(err, context.Canceled)) {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	total := 0
	for _, rows := range results {
		total += len(rows)
	}
	out := &Table{Rows: make([]Row, 0, total)}
	for _, rows := range results {
		out.Rows = append(out.Rows, rows...)
	}

	log.LLvl1(time.Now().Format(time.StampMilli), "Calculated LD score for", len(tables), "chromosomes in", time.Since(start))
	return out, nil
}
