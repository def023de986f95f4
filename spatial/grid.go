package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// Regular Grid Spatial Partition
//
// An uniformely sub-divided grid implementing the Partition interface.
// The particularities are:
//  - the grid has a resolution that defines how large a cell is. For example,
//    a resolution of 1 will make each cell hold a 1x1 meter subdivision of the
//    scene. While a resolution of 100 will make each cell hold a 100x100 meter
//    subdivision.
//  - Z is up, so cells only subdivide the X/Y plane. Each cell column holds
//    every item overlapping it regardless of height.
//  - Items that are global or would cover more than MaxCellsPerItem cells are
//    kept in an overflow list that every query visits.

const (
	MaxCellsPerItem = 1024
	MaxGridCells    = 1 << 20
)

type RegularGrid struct {
	Resolution float64
	ItemCount  uint32
	Min        r3.Vector
	Max        r3.Vector
	Grid       [][][]Item
	Overflow   []Item

	placements map[uint32]placement
}

type placement struct {
	box      Box
	overflow bool
}

func NewRegularGrid(numCols uint, numRows uint, resolution float64) *RegularGrid {
	if numCols == 0 {
		numCols = 1
	}
	if numRows == 0 {
		numRows = 1
	}
	if resolution <= 0 {
		resolution = 1
	}

	result := &RegularGrid{
		Resolution: resolution,
		Min:        r3.Vector{},
		Max:        r3.Vector{X: float64(numCols) * resolution, Y: float64(numRows) * resolution},
		placements: make(map[uint32]placement),
	}

	result.Grid = make([][][]Item, numRows)
	for i := range result.Grid {
		result.Grid[i] = make([][]Item, numCols)
	}

	return result
}

func (grid *RegularGrid) Insert(it Item) {
	if _, ok := grid.placements[it.ObjectID()]; ok {
		grid.Remove(it)
	}

	box := it.WorldBox()
	if grid.isOverflow(box) {
		grid.Overflow = append(grid.Overflow, it)
		grid.placements[it.ObjectID()] = placement{box: box, overflow: true}
		grid.ItemCount++
		return
	}

	grid.ExpandToFitPoint(box.Min)
	grid.ExpandToFitPoint(box.Max)

	minX, minY, maxX, maxY := grid.cellRange(box)
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			grid.Grid[y][x] = append(grid.Grid[y][x], it)
		}
	}

	grid.placements[it.ObjectID()] = placement{box: box}
	grid.ItemCount++
}

func (grid *RegularGrid) Remove(it Item) {
	p, ok := grid.placements[it.ObjectID()]
	if !ok {
		return
	}
	delete(grid.placements, it.ObjectID())
	grid.ItemCount--

	if p.overflow {
		grid.Overflow = removeItem(grid.Overflow, it.ObjectID())
		return
	}

	minX, minY, maxX, maxY := grid.cellRange(p.box)
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			grid.Grid[y][x] = removeItem(grid.Grid[y][x], it.ObjectID())
		}
	}
}

// Update moves the item to the cells covered by its current world box.
func (grid *RegularGrid) Update(it Item) {
	if p, ok := grid.placements[it.ObjectID()]; ok && p.box.Equal(it.WorldBox()) {
		return
	}
	grid.Remove(it)
	grid.Insert(it)
}

func (grid *RegularGrid) FindOverlapping(box Box, typeMask uint32, fn func(Item)) {
	visited := make(map[uint32]struct{})
	visit := func(it Item) {
		if it.TypeMask()&typeMask == 0 {
			return
		}
		if _, ok := visited[it.ObjectID()]; ok {
			return
		}
		visited[it.ObjectID()] = struct{}{}
		if box.IsOverlapped(it.WorldBox()) {
			fn(it)
		}
	}

	// Snapshot the overflow list so fn may mutate the grid.
	overflow := append([]Item(nil), grid.Overflow...)

	// clamp input to grid size:
	clamped := box.Intersect(Box{
		Min: r3.Vector{X: grid.Min.X, Y: grid.Min.Y, Z: box.Min.Z},
		Max: r3.Vector{X: grid.Max.X, Y: grid.Max.Y, Z: box.Max.Z},
	})
	if clamped.IsValid() {
		var candidates []Item
		minX, minY, maxX, maxY := grid.cellRange(clamped)
		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				candidates = append(candidates, grid.Grid[y][x]...)
			}
		}
		for _, it := range candidates {
			visit(it)
		}
	}

	for _, it := range overflow {
		visit(it)
	}
}

func (grid *RegularGrid) GetDebugInfo() DebugInfo {
	result := DebugInfo{
		Resolution:    grid.Resolution,
		RowCount:      uint32(len(grid.Grid)),
		ColCount:      uint32(len(grid.Grid[0])),
		ItemCount:     grid.ItemCount,
		OverflowCount: uint32(len(grid.Overflow)),
		MinPoint:      grid.Min,
		MaxPoint:      grid.Max,
	}

	result.Occupancy = make([]uint32, result.RowCount*result.ColCount)
	for y := uint32(0); y < result.RowCount; y++ {
		for x := uint32(0); x < result.ColCount; x++ {
			result.Occupancy[y*result.ColCount+x] = uint32(len(grid.Grid[y][x]))
		}
	}

	return result
}

// ExpandToFitPoint grows the grid until p lies inside it. Cell limits are
// in the range [min..max[, so a point on the max edge adds a cell.
// The grid only grows by whole cells, which keeps existing cell boundaries
// where they were.
func (grid *RegularGrid) ExpandToFitPoint(p r3.Vector) {
	if p.X >= grid.Min.X && p.Y >= grid.Min.Y && p.X < grid.Max.X && p.Y < grid.Max.Y {
		return
	}

	var left, right, below, above int
	if p.X < grid.Min.X {
		left = int(math.Ceil((grid.Min.X - p.X) / grid.Resolution))
	} else if p.X >= grid.Max.X {
		right = int(math.Floor((p.X-grid.Max.X)/grid.Resolution)) + 1
	}
	if p.Y < grid.Min.Y {
		below = int(math.Ceil((grid.Min.Y - p.Y) / grid.Resolution))
	} else if p.Y >= grid.Max.Y {
		above = int(math.Floor((p.Y-grid.Max.Y)/grid.Resolution)) + 1
	}

	// Add columns:
	if left > 0 || right > 0 {
		for i := range grid.Grid {
			row := make([][]Item, 0, left+len(grid.Grid[i])+right)
			row = append(row, make([][]Item, left)...)
			row = append(row, grid.Grid[i]...)
			row = append(row, make([][]Item, right)...)
			grid.Grid[i] = row
		}
		grid.Min.X -= float64(left) * grid.Resolution
		grid.Max.X += float64(right) * grid.Resolution
	}

	// Add rows:
	if below > 0 || above > 0 {
		colCount := len(grid.Grid[0])
		rows := make([][][]Item, 0, below+len(grid.Grid)+above)
		for i := 0; i < below; i++ {
			rows = append(rows, make([][]Item, colCount))
		}
		rows = append(rows, grid.Grid...)
		for i := 0; i < above; i++ {
			rows = append(rows, make([][]Item, colCount))
		}
		grid.Grid = rows
		grid.Min.Y -= float64(below) * grid.Resolution
		grid.Max.Y += float64(above) * grid.Resolution
	}
}

func (grid *RegularGrid) isOverflow(box Box) bool {
	if box.IsGlobal() {
		return true
	}
	cols := math.Floor(box.Max.X/grid.Resolution) - math.Floor(box.Min.X/grid.Resolution) + 1
	rows := math.Floor(box.Max.Y/grid.Resolution) - math.Floor(box.Min.Y/grid.Resolution) + 1
	if cols*rows > MaxCellsPerItem {
		return true
	}

	// Far away items would grow the grid past its cell budget.
	gridCols := math.Ceil((math.Max(grid.Max.X, box.Max.X+grid.Resolution) - math.Min(grid.Min.X, box.Min.X)) / grid.Resolution)
	gridRows := math.Ceil((math.Max(grid.Max.Y, box.Max.Y+grid.Resolution) - math.Min(grid.Min.Y, box.Min.Y)) / grid.Resolution)
	return gridCols*gridRows > MaxGridCells
}

func (grid *RegularGrid) cellRange(box Box) (minX, minY, maxX, maxY int) {
	minX = grid.cellIndex(box.Min.X, grid.Min.X, len(grid.Grid[0]))
	maxX = grid.cellIndex(box.Max.X, grid.Min.X, len(grid.Grid[0]))
	minY = grid.cellIndex(box.Min.Y, grid.Min.Y, len(grid.Grid))
	maxY = grid.cellIndex(box.Max.Y, grid.Min.Y, len(grid.Grid))
	return minX, minY, maxX, maxY
}

func (grid *RegularGrid) cellIndex(v float64, origin float64, count int) int {
	i := int(math.Floor((v - origin) / grid.Resolution))
	if i < 0 {
		return 0
	}
	if i >= count {
		return count - 1
	}
	return i
}

func removeItem(items []Item, id uint32) []Item {
	for i, it := range items {
		if it.ObjectID() == id {
			items[i] = items[len(items)-1]
			items[len(items)-1] = nil
			return items[:len(items)-1]
		}
	}
	return items
}
