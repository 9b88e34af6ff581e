package tileindex_test

import (
	"testing"

	"github.com/jronak/cgimap-go/internal/osmtypes"
	"github.com/jronak/cgimap-go/internal/tileindex"
	"github.com/stretchr/testify/assert"
)

func TestTilesForBBox_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		box  osmtypes.BBox
	}{
		{"min lat above max lat", osmtypes.BBox{MinLat: 10, MaxLat: 5, MinLon: 0, MaxLon: 1}},
		{"min lon above max lon", osmtypes.BBox{MinLat: 0, MaxLat: 1, MinLon: 10, MaxLon: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiles := tileindex.TilesForBBox(tt.box)
			assert.Empty(t, tiles)
		})
	}
}

func TestTilesForBBox_SinglePointIsOneTile(t *testing.T) {
	box := osmtypes.BBox{MinLat: 51.5, MaxLat: 51.5, MinLon: -0.12, MaxLon: -0.12}
	tiles := tileindex.TilesForBBox(box)
	assert.Len(t, tiles, 1)
}

func TestTilesForBBox_Deduplicated(t *testing.T) {
	box := osmtypes.BBox{MinLat: 51.5, MaxLat: 51.50001, MinLon: -0.12, MaxLon: -0.11999}
	tiles := tileindex.TilesForBBox(box)

	seen := make(map[uint64]bool)
	for _, tile := range tiles {
		assert.False(t, seen[tile], "tile %d duplicated", tile)
		seen[tile] = true
	}
}

func TestTilesForBBox_LargeBoxBounded(t *testing.T) {
	box := osmtypes.BBox{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}
	tiles := tileindex.TilesForBBox(box)
	assert.NotEmpty(t, tiles)
	assert.LessOrEqual(t, len(tiles), 4096)
}

func TestTilesForBBox_Deterministic(t *testing.T) {
	box := osmtypes.BBox{MinLat: 40.0, MaxLat: 41.0, MinLon: -74.5, MaxLon: -73.5}
	first := tileindex.TilesForBBox(box)
	second := tileindex.TilesForBBox(box)
	assert.ElementsMatch(t, first, second)
}
