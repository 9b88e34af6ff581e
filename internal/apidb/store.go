// Package apidb implements the data selection engine (spec §4.4) and its
// factory (spec §4.5): the core of cgimap-go. The engine itself only
// knows about the Store interface below — an explicit, narrow contract
// over the relational backend — so its invariants (monotonic working
// sets, the tables_empty precondition, streaming emission) can be unit
// tested against a fake Store without a real database, the same way the
// teacher scopes its own storage contracts narrowly and close to their
// one caller (internal/decision/iterate.go's local Storage interface,
// internal/storage/provider.go's StorageProvider).
package apidb

import (
	"context"

	"github.com/jronak/cgimap-go/internal/osmtypes"
)

// NodeRow is a single streamed row from the node emission query: element
// info plus position and tags, already extracted.
type NodeRow struct {
	Elem osmtypes.ElementInfo
	Lon  float64
	Lat  float64
	Tags osmtypes.Tags
}

// WayRow is a single streamed row from the way emission query.
type WayRow struct {
	Elem  osmtypes.ElementInfo
	Nodes []osmtypes.NWRID
	Tags  osmtypes.Tags
}

// RelationRow is a single streamed row from the relation emission query.
type RelationRow struct {
	Elem    osmtypes.ElementInfo
	Members []osmtypes.Member
	Tags    osmtypes.Tags
}

// ChangesetRow is a single streamed row from the changeset emission
// query, already carrying its tags and (if requested) comments.
type ChangesetRow struct {
	Info osmtypes.ChangesetInfo
}

// Store is the relational backend contract the selection engine drives.
// One Store is bound to exactly one engine for the engine's lifetime
// (spec §5: "the primary connection of a selection engine is not
// shared"); it owns the four session-local transient tables and the
// implicit transaction they live in.
//
// Every method is a single blocking round-trip except the Stream*
// methods, which hold an open cursor and invoke their callback
// row-at-a-time (spec §4.4: "the implementation must not materialize the
// entire result set in memory").
type Store interface {
	// CheckNodeVisibility, CheckWayVisibility and CheckRelationVisibility
	// are the visibility probes; they have no working-set side effects.
	CheckNodeVisibility(ctx context.Context, id osmtypes.NWRID) (osmtypes.Visibility, error)
	CheckWayVisibility(ctx context.Context, id osmtypes.NWRID) (osmtypes.Visibility, error)
	CheckRelationVisibility(ctx context.Context, id osmtypes.NWRID) (osmtypes.Visibility, error)

	// SelectNodes, SelectWays, SelectRelations and SelectChangesets insert
	// into the corresponding transient set those ids that exist in the
	// authoritative table and are not already present. They return the
	// count actually inserted.
	SelectNodes(ctx context.Context, ids []osmtypes.NWRID) (int, error)
	SelectWays(ctx context.Context, ids []osmtypes.NWRID) (int, error)
	SelectRelations(ctx context.Context, ids []osmtypes.NWRID) (int, error)
	SelectChangesets(ctx context.Context, ids []osmtypes.ChangesetID) (int, error)

	// SelectNodesFromBBox performs the bulk tile-indexed bbox insert. The
	// caller (Engine) is responsible for enforcing the tables_empty
	// precondition before calling this; Store itself assumes it has
	// already been checked.
	SelectNodesFromBBox(ctx context.Context, tiles []uint64, box osmtypes.BBox, limit int) (int, error)

	// The eight graph-expansion operations, one per row of spec §4.4's
	// table. Each is an idempotent anti-join upsert; none is transitive.
	NodesFromRelations(ctx context.Context) error
	WaysFromRelations(ctx context.Context) error
	RelationsMembersOfRelations(ctx context.Context) error
	WaysFromNodes(ctx context.Context) error
	NodesFromWayNodes(ctx context.Context) error
	RelationsFromNodes(ctx context.Context) error
	RelationsFromWays(ctx context.Context) error
	RelationsFromRelations(ctx context.Context) error

	// StreamNodes, StreamWays, StreamRelations and StreamChangesets drive
	// the emission queries, invoking fn once per row in ascending id
	// order with already-extracted payloads. includeDiscussions controls
	// whether StreamChangesets attaches the full comment list.
	StreamNodes(ctx context.Context, fn func(NodeRow) error) error
	StreamWays(ctx context.Context, fn func(WayRow) error) error
	StreamRelations(ctx context.Context, fn func(RelationRow) error) error
	StreamChangesets(ctx context.Context, includeDiscussions bool, fn func(ChangesetRow) error) error

	// Close releases the session: rolls back the implicit transaction and
	// drops the transient tables.
	Close(ctx context.Context) error
}
