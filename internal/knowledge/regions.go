package knowledge

import "sort"

// Region is a gene's extent on one chromosome of one assembly (1-based, inclusive).
type Region struct {
	Gene     string
	Assembly string
	Chrom    string
	Start    int64
	End      int64
}

// Contains returns true if the given position is within the region.
func (r *Region) Contains(pos int64) bool {
	return pos >= r.Start && pos <= r.End
}

// RegionIndex provides O(log n + k) overlap queries using a sorted-slice approach.
// Regions are loaded once and never modified after build.
type RegionIndex struct {
	regions []*Region
	maxEnd  []int64 // maxEnd[i] = max(End) for regions[i:]
}

// BuildRegionIndex creates an index from a slice of regions on one chromosome.
func BuildRegionIndex(regions []*Region) *RegionIndex {
	if len(regions) == 0 {
		return &RegionIndex{}
	}

	sorted := make([]*Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	maxEnd := make([]int64, len(sorted))
	maxEnd[len(sorted)-1] = sorted[len(sorted)-1].End
	for i := len(sorted) - 2; i >= 0; i-- {
		maxEnd[i] = sorted[i].End
		if maxEnd[i+1] > maxEnd[i] {
			maxEnd[i] = maxEnd[i+1]
		}
	}

	return &RegionIndex{regions: sorted, maxEnd: maxEnd}
}

// FindOverlaps returns all regions whose [Start, End] range contains pos.
func (idx *RegionIndex) FindOverlaps(pos int64) []*Region {
	if len(idx.regions) == 0 {
		return nil
	}

	var result []*Region

	// hi is the first index with start > pos; candidates are [0, hi).
	hi := sort.Search(len(idx.regions), func(i int) bool {
		return idx.regions[i].Start > pos
	})

	for i := hi - 1; i >= 0; i-- {
		// maxEnd[i] covers regions[i:], so nothing at or before i can contain pos.
		if idx.maxEnd[i] < pos {
			break
		}
		if idx.regions[i].End >= pos {
			result = append(result, idx.regions[i])
		}
	}

	return result
}
