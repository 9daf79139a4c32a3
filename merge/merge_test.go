package merge

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"testing"

	"github.com/janelia-flyem/lsms/labels"
	"github.com/janelia-flyem/lsms/raster"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// makeRandomRasters returns a label image made of small rectangular patches
// with some background, and a 3-band spectral image with integer values.
func makeRandomRasters(t *testing.T, seed int64, width, height int) (*raster.LabelImage, *raster.SpectralImage) {
	rng := rand.New(rand.NewSource(seed))
	bounds := image.Rect(0, 0, width, height)
	lbls := raster.NewLabelImage(bounds)
	var next uint64 = 1
	for y := 0; y < height; {
		h := 1 + rng.Intn(3)
		for x := 0; x < width; {
			w := 1 + rng.Intn(4)
			label := next
			if rng.Intn(10) == 0 {
				label = 0
			} else {
				next++
			}
			for dy := 0; dy < h && y+dy < height; dy++ {
				for dx := 0; dx < w && x+dx < width; dx++ {
					lbls.Set(x+dx, y+dy, label)
				}
			}
			x += w
		}
		y += h
	}
	spectral, err := raster.NewSpectralImage(bounds, 3)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			spectral.SetPixel(x, y, float64(rng.Intn(256)), float64(rng.Intn(256)), float64(rng.Intn(256)))
		}
	}
	return lbls, spectral
}

func runMerge(t *testing.T, lr raster.LabelReader, sr raster.SpectralReader, cfg Config) *Result {
	m, err := New(lr, sr, cfg)
	if err != nil {
		t.Fatal(err)
	}
	result, err := m.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func uniformSpectral(t *testing.T, bounds image.Rectangle, value float64) *raster.SpectralImage {
	spectral, err := raster.NewSpectralImage(bounds, 1)
	if err != nil {
		t.Fatal(err)
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			spectral.SetPixel(x, y, value)
		}
	}
	return spectral
}

func TestSingleSmallRegion(t *testing.T) {
	lbls, err := raster.NewLabelImageFromRows([][]uint64{
		{2, 2, 2, 2},
		{2, 5, 2, 2},
		{2, 2, 2, 2},
		{2, 2, 2, 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	spectral := uniformSpectral(t, lbls.Bounds(), 7)
	spectral.SetPixel(1, 1, 100)

	result := runMerge(t, lbls, spectral, Config{MinSize: 2, TileWidth: 2, TileHeight: 2})
	if got := result.LUT.Find(5); got != 2 {
		t.Errorf("label 5 mapped to %d, expected 2", got)
	}
	if pop := result.Stats.Population(2); pop != 16 {
		t.Errorf("label 2 population %d, expected 16", pop)
	}
	if pop := result.Stats.Population(5); pop != 0 {
		t.Errorf("label 5 population %d, expected 0", pop)
	}
	mean := result.Stats.Mean(2, nil)
	if expected := (15*7.0 + 100) / 16; mean[0] != expected {
		t.Errorf("label 2 mean %f, expected %f", mean[0], expected)
	}
	if result.RegionsBefore != 2 || result.RegionsAfter != 1 {
		t.Errorf("regions %d -> %d, expected 2 -> 1", result.RegionsBefore, result.RegionsAfter)
	}
	if len(result.Passes) != 1 || result.Passes[0].Merges != 1 {
		t.Errorf("unexpected pass summary: %v", result.Passes)
	}
}

func TestIsolatedRegion(t *testing.T) {
	lbls, err := raster.NewLabelImageFromRows([][]uint64{
		{0, 0, 0, 4},
		{0, 1, 0, 4},
		{0, 0, 0, 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	spectral := uniformSpectral(t, lbls.Bounds(), 1)
	result := runMerge(t, lbls, spectral, Config{MinSize: 5, TilesX: 2, TilesY: 2})
	if got := result.LUT.Find(1); got != 1 {
		t.Errorf("isolated label 1 mapped to %d", got)
	}
	if got := result.LUT.Find(4); got != 4 {
		t.Errorf("isolated label 4 mapped to %d", got)
	}
	if result.Stats.Population(1) != 1 || result.Stats.Population(4) != 3 {
		t.Errorf("populations changed: %d, %d", result.Stats.Population(1), result.Stats.Population(4))
	}
	if result.Background != 8 {
		t.Errorf("background %d, expected 8", result.Background)
	}
}

func TestTieGoesToSmallestLabel(t *testing.T) {
	lbls, err := raster.NewLabelImageFromRows([][]uint64{
		{3, 3, 3},
		{4, 9, 6},
		{4, 4, 6},
	})
	if err != nil {
		t.Fatal(err)
	}
	spectral := uniformSpectral(t, lbls.Bounds(), 5)
	result := runMerge(t, lbls, spectral, Config{MinSize: 2, TilesX: 3, TilesY: 3})
	if got := result.LUT.Find(9); got != 3 {
		t.Errorf("label 9 mapped to %d, expected 3", got)
	}
}

func TestMinSizeOneIsIdentity(t *testing.T) {
	lbls, spectral := makeRandomRasters(t, 3, 20, 12)
	result := runMerge(t, lbls, spectral, Config{MinSize: 1, TileWidth: 7, TileHeight: 5})
	if len(result.Passes) != 0 {
		t.Errorf("expected no passes, got %d", len(result.Passes))
	}
	for label := uint64(0); label <= result.LUT.MaxLabel(); label++ {
		if result.LUT.Find(label) != label {
			t.Fatalf("label %d mapped to %d with min size 1", label, result.LUT.Find(label))
		}
	}
	if result.RegionsBefore != result.RegionsAfter {
		t.Errorf("regions changed %d -> %d", result.RegionsBefore, result.RegionsAfter)
	}
}

func TestTileInvariance(t *testing.T) {
	lbls, spectral := makeRandomRasters(t, 1, 16, 16)
	grids := []Config{
		{MinSize: 6, TilesX: 4, TilesY: 4},
		{MinSize: 6, TilesX: 1, TilesY: 1},
		{MinSize: 6, TilesX: 16, TilesY: 1},
		{MinSize: 6, TileWidth: 3, TileHeight: 5, Workers: 1},
	}
	var first *Result
	for i, cfg := range grids {
		result := runMerge(t, lbls, spectral, cfg)
		if first == nil {
			first = result
			if result.RegionsAfter >= result.RegionsBefore {
				t.Fatalf("random image had no merges: %d regions", result.RegionsBefore)
			}
			continue
		}
		if !result.LUT.Equal(first.LUT) {
			t.Errorf("grid %d (%+v) produced a different LUT", i, cfg)
		}
		for label := uint64(1); label <= first.Stats.MaxLabel(); label++ {
			if result.Stats.Population(label) != first.Stats.Population(label) {
				t.Errorf("grid %d: label %d population %d, expected %d", i, label,
					result.Stats.Population(label), first.Stats.Population(label))
			}
		}
	}
}

func TestMergeProperties(t *testing.T) {
	lbls, spectral := makeRandomRasters(t, 2, 24, 18)
	prevRegions := -1
	for _, minSize := range []int{1, 2, 3, 5, 8, 13} {
		t.Run(fmt.Sprintf("minsize-%d", minSize), func(t *testing.T) {
			result := runMerge(t, lbls, spectral, Config{MinSize: minSize, TileWidth: 5, TileHeight: 4})
			checkFind(t, result.LUT)
			checkSmallRegionsIsolated(t, lbls, result, minSize)
			if prevRegions >= 0 && result.RegionsAfter > prevRegions {
				t.Errorf("min size %d left %d regions, more than %d at a smaller size",
					minSize, result.RegionsAfter, prevRegions)
			}
			prevRegions = result.RegionsAfter
		})
	}
}

// checkFind verifies Find is idempotent and never maps a label upward.
func checkFind(t *testing.T, lut *labels.LUT) {
	t.Helper()
	for label := uint64(0); label <= lut.MaxLabel(); label++ {
		root := lut.Find(label)
		if lut.Find(root) != root {
			t.Fatalf("Find(Find(%d)) != Find(%d)", label, label)
		}
		if root > label {
			t.Fatalf("label %d mapped up to %d", label, root)
		}
	}
	if lut.Find(0) != 0 {
		t.Fatalf("background was merged")
	}
}

// checkSmallRegionsIsolated relabels the image and verifies that populations
// match the final statistics and that every region still under minSize has no
// labeled neighbor.
func checkSmallRegionsIsolated(t *testing.T, lbls *raster.LabelImage, result *Result, minSize int) {
	t.Helper()
	bounds := lbls.Bounds()
	grid, err := raster.NewTileGridBySize(bounds, 7, 7)
	if err != nil {
		t.Fatal(err)
	}
	out := raster.NewLabelImage(bounds)
	if err := raster.Relabel(lbls, result.LUT, grid, out); err != nil {
		t.Fatal(err)
	}
	counts, err := raster.CountLabels(out, grid)
	if err != nil {
		t.Fatal(err)
	}
	if counts[0] != result.Background {
		t.Errorf("relabeled background %d, expected %d", counts[0], result.Background)
	}
	for label := uint64(1); label <= result.Stats.MaxLabel(); label++ {
		if counts[label] != result.Stats.Population(label) {
			t.Errorf("label %d: relabeled count %d, population %d", label, counts[label], result.Stats.Population(label))
		}
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			a := out.At(x, y)
			if a == 0 || counts[a] >= uint64(minSize) {
				continue
			}
			for _, q := range []image.Point{{x + 1, y}, {x, y + 1}, {x - 1, y}, {x, y - 1}} {
				if !q.In(bounds) {
					continue
				}
				if b := out.At(q.X, q.Y); b != 0 && b != a {
					t.Errorf("region %d of size %d at (%d,%d) still touches region %d", a, counts[a], x, y, b)
				}
			}
		}
	}
}

type failingReader struct {
	*raster.LabelImage
	failAt image.Point
}

func (r failingReader) ReadLabels(rect image.Rectangle) (*raster.LabelTile, error) {
	if r.failAt.In(rect) {
		return nil, fmt.Errorf("simulated read failure at %v", r.failAt)
	}
	return r.LabelImage.ReadLabels(rect)
}

func TestErrors(t *testing.T) {
	lbls, spectral := makeRandomRasters(t, 4, 10, 10)

	if _, err := New(lbls, spectral, Config{MinSize: 0}); !errors.Is(err, ErrConfig) {
		t.Errorf("expected config error for min size 0, got %v", err)
	}
	if _, err := New(lbls, spectral, Config{MinSize: 3, Workers: -1}); !errors.Is(err, ErrConfig) {
		t.Errorf("expected config error for negative workers, got %v", err)
	}
	small := raster.NewLabelImage(image.Rect(0, 0, 5, 10))
	if _, err := New(small, spectral, Config{MinSize: 3}); !errors.Is(err, ErrConfig) {
		t.Errorf("expected config error for mismatched extents, got %v", err)
	}

	m, err := New(lbls, spectral, Config{MinSize: 3, MaxLabel: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Run(context.Background()); !errors.Is(err, ErrResource) {
		t.Errorf("expected resource error for small label limit, got %v", err)
	}

	reader := failingReader{LabelImage: lbls, failAt: image.Point{9, 9}}
	m, err = New(reader, spectral, Config{MinSize: 3, TileWidth: 4, TileHeight: 4})
	if err != nil {
		t.Fatal(err)
	}
	result, err := m.Run(context.Background())
	if err == nil || result != nil {
		t.Errorf("expected read failure to abort the run, got result %v, err %v", result, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err = New(lbls, spectral, Config{MinSize: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled run, got %v", err)
	}
}

func TestVerifyDetectsLostPixels(t *testing.T) {
	stats := labels.NewStats(3, 1)
	stats.Add(1, 2, []float64{2})
	stats.Add(3, 1, []float64{1})
	st := NewState(stats)
	if err := st.Verify(); err != nil {
		t.Fatal(err)
	}
	st.LUT.Union(1, 3)
	if err := st.Verify(); !errors.Is(err, ErrInvariant) {
		t.Errorf("expected invariant error for unabsorbed pixels, got %v", err)
	}
	st.Stats.Absorb(1, 3)
	if err := st.Verify(); err != nil {
		t.Errorf("unexpected error after absorb: %v", err)
	}
	st.Stats.Add(2, 1, []float64{0})
	if err := st.Verify(); !errors.Is(err, ErrInvariant) {
		t.Errorf("expected invariant error for extra pixels, got %v", err)
	}
}

func TestMetrics(t *testing.T) {
	lbls, spectral := makeRandomRasters(t, 5, 12, 12)
	unionsBefore := testutil.ToFloat64(unionsMade)
	passesBefore := testutil.ToFloat64(passesRun)
	result := runMerge(t, lbls, spectral, Config{MinSize: 4, TilesX: 2, TilesY: 2})

	var merges int
	for _, p := range result.Passes {
		merges += p.Merges
	}
	if got := testutil.ToFloat64(unionsMade) - unionsBefore; got != float64(merges) {
		t.Errorf("unions counter grew by %f, expected %d", got, merges)
	}
	if got := testutil.ToFloat64(passesRun) - passesBefore; got != 3 {
		t.Errorf("passes counter grew by %f, expected 3", got)
	}
	if merges != result.RegionsBefore-result.RegionsAfter {
		t.Errorf("%d merges but regions went %d -> %d", merges, result.RegionsBefore, result.RegionsAfter)
	}
}
