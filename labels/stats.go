package labels

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Stats holds the population and per-band spectral sum of every label.
// The mean of a label is its sum divided by its population, so merging two
// labels by adding sums yields the population-weighted average of their means.
type Stats struct {
	bands int
	pop   []uint64
	sums  []float64 // (maxLabel+1) * bands
}

// NewStats returns empty statistics for labels 0..maxLabel.
func NewStats(maxLabel uint64, bands int) *Stats {
	return &Stats{
		bands: bands,
		pop:   make([]uint64, maxLabel+1),
		sums:  make([]float64, (maxLabel+1)*uint64(bands)),
	}
}

func (s *Stats) NumBands() int {
	return s.bands
}

func (s *Stats) MaxLabel() uint64 {
	return uint64(len(s.pop) - 1)
}

// Population returns the pixel count of label, 0 for labels beyond the table.
func (s *Stats) Population(label uint64) uint64 {
	if label >= uint64(len(s.pop)) {
		return 0
	}
	return s.pop[label]
}

// Sum returns the band sums of label.  The slice aliases the table.
func (s *Stats) Sum(label uint64) []float64 {
	i := label * uint64(s.bands)
	return s.sums[i : i+uint64(s.bands)]
}

// Mean writes the mean band vector of label into dst, allocating if dst is
// too small, and returns it.  An empty label has a zero mean.
func (s *Stats) Mean(label uint64, dst []float64) []float64 {
	if cap(dst) < s.bands {
		dst = make([]float64, s.bands)
	}
	dst = dst[:s.bands]
	pop := s.Population(label)
	if pop == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return dst
	}
	floats.ScaleTo(dst, 1/float64(pop), s.Sum(label))
	return dst
}

// Add records count more pixels for label with the given band sums.
func (s *Stats) Add(label, count uint64, sum []float64) {
	s.pop[label] += count
	floats.Add(s.Sum(label), sum)
}

// Absorb moves the population and sums of absorbed into kept.
func (s *Stats) Absorb(kept, absorbed uint64) {
	s.pop[kept] += s.pop[absorbed]
	s.pop[absorbed] = 0
	keptSum, absorbedSum := s.Sum(kept), s.Sum(absorbed)
	floats.Add(keptSum, absorbedSum)
	for i := range absorbedSum {
		absorbedSum[i] = 0
	}
}

// SquaredDistance returns the squared euclidean distance between the means
// of labels a and b.  scratch must hold at least 2*NumBands() values.
func (s *Stats) SquaredDistance(a, b uint64, scratch []float64) float64 {
	ma := s.Mean(a, scratch[:s.bands])
	mb := s.Mean(b, scratch[s.bands:2*s.bands])
	floats.Sub(ma, mb)
	return floats.Dot(ma, ma)
}

// TotalPopulation returns the pixel count over all non-background labels.
func (s *Stats) TotalPopulation() uint64 {
	var total uint64
	for _, p := range s.pop[1:] {
		total += p
	}
	return total
}

// NumActive returns the number of non-background labels with pixels.
func (s *Stats) NumActive() int {
	var n int
	for _, p := range s.pop[1:] {
		if p > 0 {
			n++
		}
	}
	return n
}

// Accumulator gathers sparse per-label sums for one tile or worker.  Labels
// are kept in first-seen order so folding accumulators in a fixed order
// produces the same floating-point sums every run.
type Accumulator struct {
	bands  int
	index  map[uint64]int
	labels []uint64
	counts []uint64
	sums   []float64

	// Background counts pixels with label 0.
	Background uint64

	// MaxLabel is the largest label seen.
	MaxLabel uint64
}

// NewAccumulator returns an empty accumulator for pixels with the given band count.
func NewAccumulator(bands int) *Accumulator {
	return &Accumulator{
		bands: bands,
		index: make(map[uint64]int),
	}
}

func (a *Accumulator) NumBands() int {
	return a.bands
}

// NumLabels returns the number of distinct non-background labels seen.
func (a *Accumulator) NumLabels() int {
	return len(a.labels)
}

func (a *Accumulator) slot(label uint64) int {
	i, found := a.index[label]
	if !found {
		i = len(a.labels)
		a.index[label] = i
		a.labels = append(a.labels, label)
		a.counts = append(a.counts, 0)
		a.sums = append(a.sums, make([]float64, a.bands)...)
		if label > a.MaxLabel {
			a.MaxLabel = label
		}
	}
	return i
}

// AddPixel records one pixel of label with its band values.
func (a *Accumulator) AddPixel(label uint64, values []float64) {
	if label == 0 {
		a.Background++
		return
	}
	i := a.slot(label)
	a.counts[i]++
	floats.Add(a.sums[i*a.bands:(i+1)*a.bands], values)
}

// Merge folds b into a.
func (a *Accumulator) Merge(b *Accumulator) error {
	if a.bands != b.bands {
		return fmt.Errorf("can't merge accumulators with %d and %d bands", a.bands, b.bands)
	}
	a.Background += b.Background
	for j, label := range b.labels {
		i := a.slot(label)
		a.counts[i] += b.counts[j]
		floats.Add(a.sums[i*a.bands:(i+1)*a.bands], b.sums[j*b.bands:(j+1)*b.bands])
	}
	return nil
}

// Labels returns the sorted non-background labels seen.
func (a *Accumulator) Labels() []uint64 {
	out := make([]uint64, len(a.labels))
	copy(out, a.labels)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stats returns dense statistics indexed up to the largest label seen.
func (a *Accumulator) Stats() *Stats {
	s := NewStats(a.MaxLabel, a.bands)
	for i, label := range a.labels {
		s.Add(label, a.counts[i], a.sums[i*a.bands:(i+1)*a.bands])
	}
	return s
}
