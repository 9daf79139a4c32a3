package merge

import (
	"context"
	"image"

	"github.com/janelia-flyem/lsms/labels"
	"github.com/janelia-flyem/lsms/lsms"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// AccumulateStats reads every tile once and returns the population and
// spectral sums of every label.  Tiles are scanned concurrently, each into its
// own accumulator, and the accumulators are folded in tile order so the sums
// are the same for every run with the same grid.
func (m *Merger) AccumulateStats(ctx context.Context) (*labels.Accumulator, error) {
	timedLog := lsms.NewTimeLog()
	tiles := m.grid.Tiles()
	partial := make([]*labels.Accumulator, len(tiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for i, tile := range tiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			acc, err := m.accumulateTile(tile)
			if err != nil {
				return err
			}
			partial[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := labels.NewAccumulator(m.spectral.NumBands())
	for _, acc := range partial {
		if err := total.Merge(acc); err != nil {
			return nil, errors.Wrap(ErrConfig, err.Error())
		}
	}
	timedLog.Infof("Accumulated statistics for %d labels over %d tiles", total.NumLabels(), len(tiles))
	return total, nil
}

func (m *Merger) accumulateTile(tile image.Rectangle) (*labels.Accumulator, error) {
	lt, err := m.labels.ReadLabels(tile)
	if err != nil {
		return nil, errors.Wrapf(err, "reading labels for tile %v", tile)
	}
	st, err := m.spectral.ReadSpectral(tile)
	if err != nil {
		return nil, errors.Wrapf(err, "reading spectral values for tile %v", tile)
	}
	tilesRead.WithLabelValues("stats").Inc()
	if st.Bands != m.spectral.NumBands() {
		return nil, errors.Wrapf(ErrConfig, "tile %v has %d bands, expected %d", tile, st.Bands, m.spectral.NumBands())
	}
	if lt.Rect != tile || st.Rect != tile {
		return nil, errors.Wrapf(ErrConfig, "read of tile %v returned label window %v and spectral window %v",
			tile, lt.Rect, st.Rect)
	}
	acc := labels.NewAccumulator(st.Bands)
	for i, label := range lt.Data {
		acc.AddPixel(label, st.Data[i*st.Bands:(i+1)*st.Bands])
	}
	return acc, nil
}
