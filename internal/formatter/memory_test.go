package formatter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jronak/cgimap-go/internal/apidb"
	"github.com/jronak/cgimap-go/internal/formatter"
	"github.com/jronak/cgimap-go/internal/osmtypes"
)

func TestMemory_ImplementsFormatter(t *testing.T) {
	var _ apidb.Formatter = formatter.New()
}

func TestMemory_CapturesCallsInOrder(t *testing.T) {
	m := formatter.New()

	require.NoError(t, m.WriteNode(osmtypes.ElementInfo{ID: 1}, 1.5, 2.5, nil))
	require.NoError(t, m.WriteNode(osmtypes.ElementInfo{ID: 2}, 3.5, 4.5, nil))
	require.NoError(t, m.WriteWay(osmtypes.ElementInfo{ID: 10}, []osmtypes.NWRID{1, 2}, nil))
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, m.WriteChangeset(osmtypes.ChangesetInfo{ID: 50}, true, now))

	require.Len(t, m.Nodes, 2)
	assert.Equal(t, osmtypes.NWRID(1), m.Nodes[0].Elem.ID)
	assert.Equal(t, osmtypes.NWRID(2), m.Nodes[1].Elem.ID)

	require.Len(t, m.Ways, 1)
	assert.Equal(t, []osmtypes.NWRID{1, 2}, m.Ways[0].Nodes)

	require.Len(t, m.Changesets, 1)
	assert.True(t, m.Changesets[0].IncludeDiscussions)
	assert.Equal(t, now, m.Changesets[0].Now)
}
