package apidb

import (
	"context"
	"time"

	"github.com/jronak/cgimap-go/internal/cgimaperr"
	"github.com/jronak/cgimap-go/internal/logging"
	"github.com/jronak/cgimap-go/internal/osmtypes"
)

// Formatter is the narrow external collaborator contract from spec §6.
// Formatters decide their own framing; the engine only ever calls these
// four methods, one self-contained entity per call.
type Formatter interface {
	WriteNode(elem osmtypes.ElementInfo, lon, lat float64, tags osmtypes.Tags) error
	WriteWay(elem osmtypes.ElementInfo, nodes []osmtypes.NWRID, tags osmtypes.Tags) error
	WriteRelation(elem osmtypes.ElementInfo, members []osmtypes.Member, tags osmtypes.Tags) error
	WriteChangeset(info osmtypes.ChangesetInfo, includeDiscussions bool, now time.Time) error
}

// Engine is the per-request state holder of spec §4.4: a bound Store plus
// the tables_empty invariant, the changeset-discussions toggle, and the
// per-operation call-once tracking for emission.
//
// An Engine is not safe for concurrent use: spec §5 describes a
// single-threaded, synchronous, per-request scheduling model, and the
// underlying Store's session (one database connection) could not
// usefully serve two goroutines at once regardless.
type Engine struct {
	store Store
	log   *logging.Logger
	id    string

	tablesEmpty bool
	includeDisc bool

	emittedNodes      bool
	emittedWays       bool
	emittedRelations  bool
	emittedChangesets bool

	closed bool
}

// NewEngine wraps a freshly-opened Store (its transient tables already
// created and empty) into an Engine. Selection factories are the only
// expected caller.
func NewEngine(store Store, log *logging.Logger) *Engine {
	return &Engine{
		store:       store,
		log:         log,
		id:          logging.EngineID(),
		tablesEmpty: true,
	}
}

// Close discards the engine: rolls back the underlying session's
// transaction and drops its transient tables. Safe to call more than
// once.
func (e *Engine) Close(ctx context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.store.Close(ctx)
}

// --- visibility probes -----------------------------------------------

func (e *Engine) CheckNodeVisibility(ctx context.Context, id osmtypes.NWRID) (osmtypes.Visibility, error) {
	return e.store.CheckNodeVisibility(ctx, id)
}

func (e *Engine) CheckWayVisibility(ctx context.Context, id osmtypes.NWRID) (osmtypes.Visibility, error) {
	return e.store.CheckWayVisibility(ctx, id)
}

func (e *Engine) CheckRelationVisibility(ctx context.Context, id osmtypes.NWRID) (osmtypes.Visibility, error) {
	return e.store.CheckRelationVisibility(ctx, id)
}

// --- selection: by id list ---------------------------------------------

func (e *Engine) SelectNodes(ctx context.Context, ids []osmtypes.NWRID) (int, error) {
	e.log.Debugf("[%s] selecting %d nodes by id", e.id, len(ids))
	n, err := e.store.SelectNodes(ctx, ids)
	if err != nil {
		return 0, err
	}
	e.tablesEmpty = false
	return n, nil
}

func (e *Engine) SelectWays(ctx context.Context, ids []osmtypes.NWRID) (int, error) {
	e.log.Debugf("[%s] selecting %d ways by id", e.id, len(ids))
	n, err := e.store.SelectWays(ctx, ids)
	if err != nil {
		return 0, err
	}
	e.tablesEmpty = false
	return n, nil
}

func (e *Engine) SelectRelations(ctx context.Context, ids []osmtypes.NWRID) (int, error) {
	e.log.Debugf("[%s] selecting %d relations by id", e.id, len(ids))
	n, err := e.store.SelectRelations(ctx, ids)
	if err != nil {
		return 0, err
	}
	e.tablesEmpty = false
	return n, nil
}

// SelectChangesets does not touch tablesEmpty. This asymmetry is
// intentional: it matches the reference implementation exactly (see
// SPEC_FULL.md's resolution of the spec §9 open question) rather than
// conservatively tightening behavior the tests never exercised.
func (e *Engine) SelectChangesets(ctx context.Context, ids []osmtypes.ChangesetID) (int, error) {
	e.log.Debugf("[%s] selecting %d changesets by id", e.id, len(ids))
	return e.store.SelectChangesets(ctx, ids)
}

// --- selection: nodes by bbox -------------------------------------------

// SelectNodesFromBBox requires that no node, way or relation selection
// has run on this engine yet (SelectNodes, SelectWays, SelectRelations or
// an earlier SelectNodesFromBBox); calling it otherwise is a programmer
// error (spec §4.4, invariant in spec §3). A prior SelectChangesets does
// not block it (see SelectChangesets). tiles is computed by the caller via
// internal/tileindex so Store stays free of any tiling concern.
func (e *Engine) SelectNodesFromBBox(ctx context.Context, tiles []uint64, box osmtypes.BBox, limit int) (int, error) {
	if !e.tablesEmpty {
		return 0, cgimaperr.NewInvariantError("select_nodes_from_bbox called with non-empty working sets")
	}

	e.log.Infof("[%s] filling tmp_nodes from bbox", e.id)
	n, err := e.store.SelectNodesFromBBox(ctx, tiles, box, limit)
	if err != nil {
		return 0, err
	}
	e.tablesEmpty = false
	return n, nil
}

// --- selection: graph expansion -----------------------------------------

func (e *Engine) NodesFromRelations(ctx context.Context) error {
	e.log.Debugf("[%s] filling tmp_nodes (from relations)", e.id)
	return e.store.NodesFromRelations(ctx)
}

func (e *Engine) WaysFromRelations(ctx context.Context) error {
	e.log.Debugf("[%s] filling tmp_ways (from relations)", e.id)
	return e.store.WaysFromRelations(ctx)
}

func (e *Engine) RelationsMembersOfRelations(ctx context.Context) error {
	e.log.Debugf("[%s] filling tmp_relations (from relations)", e.id)
	return e.store.RelationsMembersOfRelations(ctx)
}

func (e *Engine) WaysFromNodes(ctx context.Context) error {
	e.log.Debugf("[%s] filling tmp_ways (from nodes)", e.id)
	return e.store.WaysFromNodes(ctx)
}

func (e *Engine) NodesFromWayNodes(ctx context.Context) error {
	e.log.Debugf("[%s] filling tmp_nodes (from way nodes)", e.id)
	return e.store.NodesFromWayNodes(ctx)
}

func (e *Engine) RelationsFromNodes(ctx context.Context) error {
	e.log.Debugf("[%s] filling tmp_relations (from nodes)", e.id)
	return e.store.RelationsFromNodes(ctx)
}

func (e *Engine) RelationsFromWays(ctx context.Context) error {
	e.log.Debugf("[%s] filling tmp_relations (from ways)", e.id)
	return e.store.RelationsFromWays(ctx)
}

func (e *Engine) RelationsFromRelations(ctx context.Context) error {
	e.log.Debugf("[%s] filling tmp_relations (from relations)", e.id)
	return e.store.RelationsFromRelations(ctx)
}

// --- changeset discussions toggle ---------------------------------------

// SelectChangesetDiscussions sets the engine-level flag that makes
// subsequent WriteChangesets calls include the full comment list.
func (e *Engine) SelectChangesetDiscussions() {
	e.includeDisc = true
}

// --- emission -------------------------------------------------------------

// WriteNodes streams the full contents of sel_nodes through formatter.
// May be called at most once per engine.
func (e *Engine) WriteNodes(ctx context.Context, formatter Formatter) error {
	if e.emittedNodes {
		return cgimaperr.NewInvariantError("write_nodes called more than once on this engine")
	}
	e.emittedNodes = true

	e.log.Infof("[%s] fetching nodes", e.id)
	return e.store.StreamNodes(ctx, func(row NodeRow) error {
		return formatter.WriteNode(row.Elem, row.Lon, row.Lat, row.Tags)
	})
}

// WriteWays streams the full contents of sel_ways through formatter. May
// be called at most once per engine.
func (e *Engine) WriteWays(ctx context.Context, formatter Formatter) error {
	if e.emittedWays {
		return cgimaperr.NewInvariantError("write_ways called more than once on this engine")
	}
	e.emittedWays = true

	e.log.Infof("[%s] fetching ways", e.id)
	return e.store.StreamWays(ctx, func(row WayRow) error {
		return formatter.WriteWay(row.Elem, row.Nodes, row.Tags)
	})
}

// WriteRelations streams the full contents of sel_relations through
// formatter. May be called at most once per engine.
func (e *Engine) WriteRelations(ctx context.Context, formatter Formatter) error {
	if e.emittedRelations {
		return cgimaperr.NewInvariantError("write_relations called more than once on this engine")
	}
	e.emittedRelations = true

	e.log.Infof("[%s] fetching relations", e.id)
	return e.store.StreamRelations(ctx, func(row RelationRow) error {
		return formatter.WriteRelation(row.Elem, row.Members, row.Tags)
	})
}

// WriteChangesets streams the full contents of sel_changesets through
// formatter. May be called at most once per engine. now is the request's
// reference time, passed straight through to every WriteChangeset call
// exactly as spec §6's write_changesets(formatter, now) requires; the
// engine does not interpret it itself.
func (e *Engine) WriteChangesets(ctx context.Context, formatter Formatter, now time.Time) error {
	if e.emittedChangesets {
		return cgimaperr.NewInvariantError("write_changesets called more than once on this engine")
	}
	e.emittedChangesets = true

	return e.store.StreamChangesets(ctx, e.includeDisc, func(row ChangesetRow) error {
		return formatter.WriteChangeset(row.Info, e.includeDisc, now)
	})
}
