/*
Package labels holds the label-indexed tables used during small-region
merging: the union-find look-up table (LUT), per-label population and spectral
statistics, and the adjacency sets discovered during a pass.

Tables are dense slices indexed by label, so memory scales with the largest
label and not with image size.  Label 0 is background: it is never a merge
candidate and never absorbs another label.
*/
package labels

import (
	"bufio"
	"fmt"
	"io"
)

// LUT is a union-find table mapping every label to a label at or below it.
// Following entries always ends at a canonical label that maps to itself.
// The canonical label of a union is the smaller of the two roots, so
// lut[l] <= l holds for every l and chains can't cycle.
type LUT struct {
	parent []uint64
}

// NewLUT returns the identity mapping over labels 0..maxLabel.
func NewLUT(maxLabel uint64) *LUT {
	parent := make([]uint64, maxLabel+1)
	for i := range parent {
		parent[i] = uint64(i)
	}
	return &LUT{parent: parent}
}

// MaxLabel returns the largest label held by the table.
func (lut *LUT) MaxLabel() uint64 {
	return uint64(len(lut.parent) - 1)
}

// Get returns the raw entry for label, which need not be canonical.
func (lut *LUT) Get(label uint64) uint64 {
	if label >= uint64(len(lut.parent)) {
		return label
	}
	return lut.parent[label]
}

// Find returns the canonical label and compresses the path it walked.
// Labels beyond the table are their own canonical label.  Find mutates the
// table and must not be called concurrently.
func (lut *LUT) Find(label uint64) uint64 {
	if label >= uint64(len(lut.parent)) {
		return label
	}
	root := label
	for lut.parent[root] != root {
		root = lut.parent[root]
	}
	for label != root {
		next := lut.parent[label]
		lut.parent[label] = root
		label = next
	}
	return root
}

// Canonical returns the canonical label without modifying the table, so
// concurrent readers may share a LUT as long as nothing calls Find or Union.
// After Compact it is a single lookup.
func (lut *LUT) Canonical(label uint64) uint64 {
	if label >= uint64(len(lut.parent)) {
		return label
	}
	for lut.parent[label] != label {
		label = lut.parent[label]
	}
	return label
}

// Union joins the partitions of a and b.  The smaller root is kept.  If a and
// b already share a root, nothing changes and merged is false.
func (lut *LUT) Union(a, b uint64) (kept, absorbed uint64, merged bool) {
	ra, rb := lut.Find(a), lut.Find(b)
	if ra == rb {
		return ra, rb, false
	}
	if ra > rb {
		ra, rb = rb, ra
	}
	lut.parent[rb] = ra
	return ra, rb, true
}

// Compact points every entry directly at its canonical label.
func (lut *LUT) Compact() {
	// Entries never point above themselves, so a forward sweep sees every
	// parent already compacted.
	for i, p := range lut.parent {
		lut.parent[i] = lut.parent[p]
	}
}

// CheckAcyclic verifies the table invariant that every entry points at or
// below its own label and that its target is in range.
func (lut *LUT) CheckAcyclic() error {
	for i, p := range lut.parent {
		if p > uint64(i) {
			return fmt.Errorf("label %d maps to larger label %d", i, p)
		}
	}
	return nil
}

// NumCanonical returns the number of labels, excluding 0, that are their own root.
func (lut *LUT) NumCanonical() int {
	var n int
	for i := 1; i < len(lut.parent); i++ {
		if lut.parent[i] == uint64(i) {
			n++
		}
	}
	return n
}

// Equal returns true if both tables resolve every label identically.
func (lut *LUT) Equal(other *LUT) bool {
	if len(lut.parent) != len(other.parent) {
		return false
	}
	for i := range lut.parent {
		if lut.Canonical(uint64(i)) != other.Canonical(uint64(i)) {
			return false
		}
	}
	return true
}

// WriteMappings writes "from to" lines for every label whose canonical label
// differs from itself and returns the number of lines written.
func (lut *LUT) WriteMappings(w io.Writer) (numMappings uint64, err error) {
	bw := bufio.NewWriter(w)
	for i := range lut.parent {
		from := uint64(i)
		to := lut.Canonical(from)
		if from == to {
			continue
		}
		if _, err = fmt.Fprintf(bw, "%d %d\n", from, to); err != nil {
			return
		}
		numMappings++
	}
	err = bw.Flush()
	return
}
