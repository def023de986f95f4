package spatial

import "github.com/golang/geo/r3"

// AllTypes matches every item type mask.
const AllTypes = ^uint32(0)

// Item is anything that can be stored in a spatial partition.
type Item interface {
	ObjectID() uint32
	WorldBox() Box
	TypeMask() uint32
}

type DebugInfo struct {
	Resolution    float64   `json:"resolution"`
	RowCount      uint32    `json:"row_count"`
	ColCount      uint32    `json:"col_count"`
	ItemCount     uint32    `json:"item_count"`
	OverflowCount uint32    `json:"overflow_count"`
	MinPoint      r3.Vector `json:"min_point"`
	MaxPoint      r3.Vector `json:"max_point"`
	Occupancy     []uint32  `json:"occupancy"`
}

// Partition is a broad phase index answering box overlap queries.
type Partition interface {
	Insert(it Item)
	Remove(it Item)
	Update(it Item)

	// FindOverlapping calls fn once for every item whose type matches
	// typeMask and whose world box overlaps box.
	FindOverlapping(box Box, typeMask uint32, fn func(Item))

	// debug stuff:
	GetDebugInfo() DebugInfo
}
