package labels

import "sort"

// Adjacency maps a candidate label to the set of labels seen next to it.
type Adjacency map[uint64]map[uint64]struct{}

// Add records neighbor as adjacent to label.
func (adj Adjacency) Add(label, neighbor uint64) {
	set, found := adj[label]
	if !found {
		set = make(map[uint64]struct{})
		adj[label] = set
	}
	set[neighbor] = struct{}{}
}

// Merge folds every entry of other into adj.
func (adj Adjacency) Merge(other Adjacency) {
	for label, neighbors := range other {
		set, found := adj[label]
		if !found {
			set = make(map[uint64]struct{}, len(neighbors))
			adj[label] = set
		}
		for neighbor := range neighbors {
			set[neighbor] = struct{}{}
		}
	}
}

// Labels returns the candidate labels in ascending order.
func (adj Adjacency) Labels() []uint64 {
	out := make([]uint64, 0, len(adj))
	for label := range adj {
		out = append(out, label)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Neighbors returns the labels adjacent to label in ascending order.
func (adj Adjacency) Neighbors(label uint64) []uint64 {
	set := adj[label]
	out := make([]uint64, 0, len(set))
	for neighbor := range set {
		out = append(out, neighbor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
