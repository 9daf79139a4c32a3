/*
Package merge implements tiled small-region merging over a label raster.

A run makes one statistics pass over every tile to build per-label population
and spectral sums, then one pass per region size from 1 to MinSize-1.  Each
size pass scans every tile for regions of exactly that size, folds the
per-tile adjacency sets into one map, and only then merges each such region
into the neighbor with the closest mean.  Because merges are decided from the
folded map in label order, the resulting label table does not depend on the
tile grid.
*/
package merge

import (
	"context"
	"time"

	memsize "github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
	"github.com/janelia-flyem/lsms/labels"
	"github.com/janelia-flyem/lsms/lsms"
	"github.com/janelia-flyem/lsms/raster"
	"github.com/pkg/errors"
	"github.com/twinj/uuid"
)

// State is the set of label tables carried from pass to pass.
type State struct {
	LUT   *labels.LUT
	Stats *labels.Stats

	// total is the population that must be conserved across passes.
	total uint64
}

// NewState wraps initial statistics with an identity LUT.
func NewState(stats *labels.Stats) *State {
	return &State{
		LUT:   labels.NewLUT(stats.MaxLabel()),
		Stats: stats,
		total: stats.TotalPopulation(),
	}
}

// Verify checks the table invariants: no LUT cycles, population conserved,
// and no population left on absorbed labels.
func (st *State) Verify() error {
	if err := st.LUT.CheckAcyclic(); err != nil {
		return errors.Wrap(ErrInvariant, err.Error())
	}
	if got := st.Stats.TotalPopulation(); got != st.total {
		return errors.Wrapf(ErrInvariant, "population not conserved: %d pixels, expected %d", got, st.total)
	}
	for label := uint64(1); label <= st.LUT.MaxLabel(); label++ {
		if st.LUT.Get(label) != label && st.Stats.Population(label) != 0 {
			return errors.Wrapf(ErrInvariant, "absorbed label %d still holds %d pixels",
				label, st.Stats.Population(label))
		}
	}
	return nil
}

// PassSummary describes one size pass.
type PassSummary struct {
	Size       uint64
	Candidates int
	Merges     int
	Elapsed    time.Duration
}

// Result is the output of a merge run.
type Result struct {
	*State

	RunID         string
	Background    uint64
	RegionsBefore int
	RegionsAfter  int
	Passes        []PassSummary
}

// Merger drives the merge of one label raster using one spectral raster.
type Merger struct {
	cfg      Config
	labels   raster.LabelReader
	spectral raster.SpectralReader
	grid     raster.TileGrid
}

// New validates the configuration against the rasters and returns a Merger.
func New(lr raster.LabelReader, sr raster.SpectralReader, cfg Config) (*Merger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lr.Bounds() != sr.Bounds() {
		return nil, errors.Wrapf(ErrConfig, "label extent %v differs from spectral extent %v",
			lr.Bounds(), sr.Bounds())
	}
	if sr.NumBands() <= 0 {
		return nil, errors.Wrapf(ErrConfig, "spectral raster has %d bands", sr.NumBands())
	}
	grid, err := cfg.TileGrid(lr.Bounds())
	if err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = lsms.NumCPU
	}
	return &Merger{
		cfg:      cfg,
		labels:   lr,
		spectral: sr,
		grid:     grid,
	}, nil
}

// Grid returns the tile grid used for every pass.
func (m *Merger) Grid() raster.TileGrid {
	return m.grid
}

// Run computes the label statistics, merges every region below MinSize, and
// returns the final tables.  Any error aborts the run without partial output.
func (m *Merger) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewV4().String()
	timedLog := lsms.NewTimeLog()
	lsms.Infof("Merge run %s: min size %d, %s, %d workers\n", runID, m.cfg.MinSize, m.grid, m.cfg.Workers)

	acc, err := m.AccumulateStats(ctx)
	if err != nil {
		return nil, err
	}
	if acc.MaxLabel > m.cfg.maxLabel() {
		return nil, errors.Wrapf(ErrResource, "largest label %d exceeds table limit %d", acc.MaxLabel, m.cfg.maxLabel())
	}
	st := NewState(acc.Stats())
	result := &Result{
		State:         st,
		RunID:         runID,
		Background:    acc.Background,
		RegionsBefore: st.Stats.NumActive(),
	}
	lsms.Infof("Run %s: %s regions over %s labeled pixels, tables use %s\n", runID,
		humanize.Comma(int64(result.RegionsBefore)), humanize.Comma(int64(st.total)),
		humanize.Bytes(uint64(memsize.Of(st.LUT)+memsize.Of(st.Stats))))

	for s := uint64(1); s < uint64(m.cfg.MinSize); s++ {
		summary, err := m.Pass(ctx, st, s)
		if err != nil {
			return nil, err
		}
		result.Passes = append(result.Passes, summary)
	}
	result.RegionsAfter = st.Stats.NumActive()
	timedLog.Infof("Run %s merged %s regions into %s", runID,
		humanize.Comma(int64(result.RegionsBefore)), humanize.Comma(int64(result.RegionsAfter)))
	return result, nil
}

// Pass runs adjacency discovery and merge resolution for regions of exactly
// the given size, then compacts and verifies the tables.
func (m *Merger) Pass(ctx context.Context, st *State, size uint64) (PassSummary, error) {
	start := time.Now()
	adj, err := m.discover(ctx, st, size)
	if err != nil {
		return PassSummary{}, err
	}
	merges := st.resolve(adj, size)
	st.LUT.Compact()
	if err := st.Verify(); err != nil {
		return PassSummary{}, errors.Wrapf(err, "after size %d pass", size)
	}
	summary := PassSummary{
		Size:       size,
		Candidates: len(adj),
		Merges:     merges,
		Elapsed:    time.Since(start),
	}
	passesRun.Inc()
	unionsMade.Add(float64(merges))
	passDuration.Observe(summary.Elapsed.Seconds())
	lsms.Debugf("Size %d pass: %d candidates, %d merges in %s\n", size, summary.Candidates, merges, summary.Elapsed)
	return summary, nil
}
