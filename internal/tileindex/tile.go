// Package tileindex maps a lat/lon bounding box onto the set of
// Morton-interleaved integer tile identifiers the node table is indexed
// by. It is a pure, total function with no I/O.
//
// The original implementation (cgimap's quad_tile.cpp) was not part of
// the retrieved reference sources, so the resolution and interleave
// chosen here are a from-scratch but standard 2D Morton encoding: each
// axis is mapped from degrees onto a bits-wide grid spanning its full
// range; it is documented as an assumption in DESIGN.md rather than
// reverse-engineered.
package tileindex

import (
	"math"

	"github.com/jronak/cgimap-go/internal/osmtypes"
)

// bits is the number of bits of resolution per axis; 16 bits per axis
// interleave to a 32-bit tile id, with cells of about 0.0055 degrees of
// longitude by 0.0027 degrees of latitude (roughly 600 m by 300 m at the
// equator).
const bits = 16

// interleave folds lo into the even bit positions and hi into the odd
// bit positions of the returned 32-bit value.
func interleave(lo, hi uint32) uint64 {
	var tile uint64
	for i := bits - 1; i >= 0; i-- {
		tile = (tile << 1) | uint64((hi>>uint(i))&1)
		tile = (tile << 1) | uint64((lo>>uint(i))&1)
	}
	return tile
}

// coordToGrid maps a degree value in [min,max] to a bits-wide grid
// coordinate, clamping to the valid range.
func coordToGrid(deg, min, max float64) uint32 {
	if deg < min {
		deg = min
	}
	if deg > max {
		deg = max
	}
	span := max - min
	frac := (deg - min) / span
	maxGrid := float64((uint32(1) << bits) - 1)
	return uint32(math.Round(frac * maxGrid))
}

func latToGrid(lat float64) uint32 { return coordToGrid(lat, -90, 90) }
func lonToGrid(lon float64) uint32 { return coordToGrid(lon, -180, 180) }

// maxTiles caps the number of distinct tile ids this pure function will
// enumerate for a single box; very large boxes are covered by coarser
// (fewer, larger) tiles rather than by enumerating every fine-grained
// grid cell they span.
const maxTiles = 4096

// TilesForBBox returns the deduplicated set of tile identifiers covering
// the given box. Degenerate boxes (min > max on either axis) return an
// empty slice, matching spec's "degenerate boxes may return empty."
func TilesForBBox(box osmtypes.BBox) []uint64 {
	if box.MinLat > box.MaxLat || box.MinLon > box.MaxLon {
		return nil
	}

	minX, maxX := lonToGrid(box.MinLon), lonToGrid(box.MaxLon)
	minY, maxY := latToGrid(box.MinLat), latToGrid(box.MaxLat)

	shift := uint(0)
	for {
		spanX := uint64(maxX>>shift) - uint64(minX>>shift) + 1
		spanY := uint64(maxY>>shift) - uint64(minY>>shift) + 1
		if spanX*spanY <= maxTiles || shift >= bits {
			break
		}
		shift++
	}

	seen := make(map[uint64]struct{})
	var tiles []uint64
	for y := minY >> shift; ; y++ {
		for x := minX >> shift; ; x++ {
			t := interleave(x<<shift, y<<shift)
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				tiles = append(tiles, t)
			}
			if x == maxX>>shift {
				break
			}
		}
		if y == maxY>>shift {
			break
		}
	}
	return tiles
}
