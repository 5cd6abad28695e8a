package segment

import (
	"math"

	"github.com/golang/geo/r3"
)

// Constants for clustering configuration
const (
	// DefaultEps is the neighbourhood radius in unit-normal space.
	DefaultEps = 0.1
	// DefaultMinPts is the minimum number of faces to form a segment.
	DefaultMinPts = 5
	// EstimatedPointsPerCell is used for initial spatial index capacity estimation
	EstimatedPointsPerCell = 4
)

// Label values produced by DBSCAN. Cluster labels are 1-based.
const (
	unvisited = 0
	Noise     = -1
)

type cellKey struct{ x, y, z int64 }

// SpatialIndex buckets 3D points into a regular grid so neighbourhood
// queries only touch the 27 surrounding cells. Cell size should match eps.
type SpatialIndex struct {
	CellSize float64
	Grid     map[cellKey][]int
}

// NewSpatialIndex creates a spatial index with the specified cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[cellKey][]int),
	}
}

func (si *SpatialIndex) cell(p r3.Vector) cellKey {
	return cellKey{
		x: int64(math.Floor(p.X / si.CellSize)),
		y: int64(math.Floor(p.Y / si.CellSize)),
		z: int64(math.Floor(p.Z / si.CellSize)),
	}
}

// Build populates the index. Points flagged in skip are left out.
func (si *SpatialIndex) Build(points []r3.Vector, skip []bool) {
	si.Grid = make(map[cellKey][]int, len(points)/EstimatedPointsPerCell)
	for i, p := range points {
		if skip != nil && skip[i] {
			continue
		}
		k := si.cell(p)
		si.Grid[k] = append(si.Grid[k], i)
	}
}

// RegionQuery returns indices of all indexed points within eps of
// points[idx], including idx itself.
func (si *SpatialIndex) RegionQuery(points []r3.Vector, idx int, eps float64) []int {
	p := points[idx]
	base := si.cell(p)
	eps2 := eps * eps
	neighbors := []int{}

	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				k := cellKey{base.x + dx, base.y + dy, base.z + dz}
				for _, candidate := range si.Grid[k] {
					d := points[candidate].Sub(p)
					if d.Dot(d) <= eps2 {
						neighbors = append(neighbors, candidate)
					}
				}
			}
		}
	}
	return neighbors
}

// Params contains parameters for the DBSCAN clustering algorithm.
type Params struct {
	Eps    float64
	MinPts int
}

// DefaultParams returns the parameters used for roof plane segmentation.
func DefaultParams() Params {
	return Params{Eps: DefaultEps, MinPts: DefaultMinPts}
}

// DBSCAN labels each point with a 1-based cluster ID or Noise. Points
// flagged in skip are always Noise. The second return value is the number
// of clusters found.
func DBSCAN(points []r3.Vector, skip []bool, params Params) ([]int, int) {
	n := len(points)
	labels := make([]int, n)
	if n == 0 {
		return labels, 0
	}

	si := NewSpatialIndex(params.Eps)
	si.Build(points, skip)

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		if skip != nil && skip[i] {
			labels[i] = Noise
			continue
		}

		neighbors := si.RegionQuery(points, i, params.Eps)
		if len(neighbors) < params.MinPts {
			labels[i] = Noise
			continue
		}

		clusterID++
		expandCluster(points, si, labels, i, neighbors, clusterID, params)
	}
	return labels, clusterID
}

// expandCluster grows a cluster outward from a core point. Each point is
// queued at most once so dense clusters stay linear in queue length.
func expandCluster(points []r3.Vector, si *SpatialIndex, labels []int,
	seedIdx int, neighbors []int, clusterID int, params Params) {

	labels[seedIdx] = clusterID
	queued := map[int]bool{seedIdx: true}
	queue := make([]int, 0, len(neighbors))
	for _, idx := range neighbors {
		if !queued[idx] {
			queued[idx] = true
			queue = append(queue, idx)
		}
	}

	for j := 0; j < len(queue); j++ {
		idx := queue[j]

		if labels[idx] == Noise {
			labels[idx] = clusterID // border point
			continue
		}
		if labels[idx] != unvisited {
			continue
		}

		labels[idx] = clusterID
		more := si.RegionQuery(points, idx, params.Eps)
		if len(more) < params.MinPts {
			continue
		}
		for _, c := range more {
			if !queued[c] && (labels[c] == unvisited || labels[c] == Noise) {
				queued[c] = true
				queue = append(queue, c)
			}
		}
	}
}
