package merge

import (
	"context"
	"image"

	"github.com/janelia-flyem/lsms/labels"
	"github.com/janelia-flyem/lsms/raster"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// discover scans every tile for regions whose population equals size and
// returns the folded adjacency map.  Workers only read the tables, which are
// compacted, so no locking is needed.
func (m *Merger) discover(ctx context.Context, st *State, size uint64) (labels.Adjacency, error) {
	tiles := m.grid.Tiles()
	partial := make([]labels.Adjacency, len(tiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for i, tile := range tiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			padded := m.grid.Padded(tile, int(size)+1)
			lt, err := m.labels.ReadLabels(padded)
			if err != nil {
				return errors.Wrapf(err, "reading labels %v for size %d pass", padded, size)
			}
			tilesRead.WithLabelValues("adjacency").Inc()
			partial[i] = discoverTile(lt, tile, m.grid.Bounds, st, size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	adj := make(labels.Adjacency)
	for _, a := range partial {
		adj.Merge(a)
	}
	return adj, nil
}

// discoverTile visits every pixel of the nominal tile and pairs it with its
// right and bottom neighbors, which may lie in the padding.  Pixels to the
// left and above are covered by their own right and bottom pairs, so each
// adjacent pixel pair in the image is seen by exactly one tile.  Neighbors
// outside bounds don't exist.
func discoverTile(lt *raster.LabelTile, tile, bounds image.Rectangle, st *State, size uint64) labels.Adjacency {
	adj := make(labels.Adjacency)
	record := func(a, b uint64) {
		if b == 0 || a == b {
			return
		}
		if st.Stats.Population(a) == size {
			adj.Add(a, b)
		}
		if st.Stats.Population(b) == size {
			adj.Add(b, a)
		}
	}
	for y := tile.Min.Y; y < tile.Max.Y; y++ {
		for x := tile.Min.X; x < tile.Max.X; x++ {
			label := st.LUT.Canonical(lt.At(x, y))
			if label == 0 {
				continue
			}
			if x+1 < bounds.Max.X {
				record(label, st.LUT.Canonical(lt.At(x+1, y)))
			}
			if y+1 < bounds.Max.Y {
				record(label, st.LUT.Canonical(lt.At(x, y+1)))
			}
		}
	}
	return adj
}

// resolve merges every candidate of the given size into its closest neighbor
// by mean spectral value.  Candidates are taken in ascending label order and
// neighbors in ascending label order, so the first neighbor at the minimum
// distance wins.  A candidate already merged earlier in the pass no longer
// has the candidate size and is skipped.
func (st *State) resolve(adj labels.Adjacency, size uint64) (merges int) {
	scratch := make([]float64, 2*st.Stats.NumBands())
	for _, label := range adj.Labels() {
		root := st.LUT.Find(label)
		if st.Stats.Population(root) != size {
			continue
		}
		var best uint64
		var bestDist float64
		var found bool
		for _, neighbor := range adj.Neighbors(label) {
			n := st.LUT.Find(neighbor)
			if n == root || n == 0 {
				continue
			}
			dist := st.Stats.SquaredDistance(root, n, scratch)
			if !found || dist < bestDist {
				best, bestDist, found = n, dist, true
			}
		}
		if !found {
			continue
		}
		if kept, absorbed, merged := st.LUT.Union(root, best); merged {
			st.Stats.Absorb(kept, absorbed)
			merges++
		}
	}
	return
}
