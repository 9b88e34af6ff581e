package apidb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jronak/cgimap-go/internal/cgimaperr"
	"github.com/jronak/cgimap-go/internal/changesetcache"
	"github.com/jronak/cgimap-go/internal/logging"
	"github.com/jronak/cgimap-go/internal/osmtypes"
	"github.com/jronak/cgimap-go/internal/rowextract"
)

// sqlStore is the relational-backend Store implementation (spec §4.4,
// §6) against the schema named in spec §6, adapted to MySQL dialect per
// spec's "any equivalent is acceptable if query shapes are preserved":
// array_agg becomes a correlated-subquery GROUP_CONCAT wrapped in braces
// so rowextract.ParseArrayLiteral can still parse it, and the planner
// hint is MySQL's optimizer_switch rather than Postgres's
// enable_mergejoin/enable_hashjoin GUCs.
//
// One sqlStore pins exactly one *sql.Conn for its entire lifetime (spec
// §5: "the primary connection of a selection engine is not shared"), so
// that MySQL's own connection-scoped temporary tables behave like the
// reference implementation's session-local transient tables.
type sqlStore struct {
	conn  *sql.Conn
	tx    *sql.Tx
	cache *changesetcache.Cache
	log   *logging.Logger
}

// NewSQLStore pins a connection from db, opens its implicit transaction,
// and creates the four transient working-set tables, empty. db should be
// the factory's primary pool; the changeset cache's own loader
// connection must come from a separate pool (spec §4.2, §5).
func NewSQLStore(ctx context.Context, db *sql.DB, cache *changesetcache.Cache, log *logging.Logger) (Store, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, cgimaperr.NewDatabaseError("acquire connection", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return nil, cgimaperr.NewDatabaseError("begin transaction", err)
	}

	s := &sqlStore{conn: conn, tx: tx, cache: cache, log: log}
	if err := s.createTransientTables(ctx); err != nil {
		tx.Rollback()
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) createTransientTables(ctx context.Context) error {
	stmts := []string{
		"CREATE TEMPORARY TABLE tmp_nodes (id BIGINT UNSIGNED PRIMARY KEY)",
		"CREATE TEMPORARY TABLE tmp_ways (id BIGINT UNSIGNED PRIMARY KEY)",
		"CREATE TEMPORARY TABLE tmp_relations (id BIGINT UNSIGNED PRIMARY KEY)",
		"CREATE TEMPORARY TABLE tmp_changesets (id BIGINT UNSIGNED PRIMARY KEY)",
	}
	for _, stmt := range stmts {
		if _, err := s.tx.ExecContext(ctx, stmt); err != nil {
			return cgimaperr.NewDatabaseError("create transient table", err)
		}
	}
	return nil
}

func (s *sqlStore) Close(ctx context.Context) error {
	err := s.tx.Rollback()
	// Closing a *sql.Conn returns the physical connection to the pool, so
	// the session state this store created is removed explicitly first.
	_, dropErr := s.conn.ExecContext(ctx, "DROP TEMPORARY TABLE IF EXISTS tmp_nodes, tmp_ways, tmp_relations, tmp_changesets")
	_, resetErr := s.conn.ExecContext(ctx, "SET SESSION optimizer_switch = @@GLOBAL.optimizer_switch")
	closeErr := s.conn.Close()
	if err != nil && err != sql.ErrTxDone {
		return cgimaperr.NewDatabaseError("close session", err)
	}
	if dropErr != nil {
		return cgimaperr.NewDatabaseError("drop transient tables", dropErr)
	}
	if resetErr != nil {
		return cgimaperr.NewDatabaseError("reset planner hint", resetErr)
	}
	if closeErr != nil {
		return cgimaperr.NewDatabaseError("close session", closeErr)
	}
	return nil
}

// --- visibility probes ---------------------------------------------------

func (s *sqlStore) checkVisibility(ctx context.Context, table string, id osmtypes.NWRID) (osmtypes.Visibility, error) {
	var visible bool
	query := fmt.Sprintf("SELECT visible FROM %s WHERE id = ?", table)
	err := s.tx.QueryRowContext(ctx, query, uint64(id)).Scan(&visible)
	switch {
	case err == sql.ErrNoRows:
		return osmtypes.NonExist, nil
	case err != nil:
		return osmtypes.NonExist, cgimaperr.NewDatabaseError("check visibility", err)
	case visible:
		return osmtypes.Exists, nil
	default:
		return osmtypes.Deleted, nil
	}
}

func (s *sqlStore) CheckNodeVisibility(ctx context.Context, id osmtypes.NWRID) (osmtypes.Visibility, error) {
	return s.checkVisibility(ctx, "current_nodes", id)
}

func (s *sqlStore) CheckWayVisibility(ctx context.Context, id osmtypes.NWRID) (osmtypes.Visibility, error) {
	return s.checkVisibility(ctx, "current_ways", id)
}

func (s *sqlStore) CheckRelationVisibility(ctx context.Context, id osmtypes.NWRID) (osmtypes.Visibility, error) {
	return s.checkVisibility(ctx, "current_relations", id)
}

// --- selection: by id list ------------------------------------------------

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func uint64Args(ids []osmtypes.NWRID) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = uint64(id)
	}
	return args
}

func (s *sqlStore) selectByID(ctx context.Context, tmpTable, srcTable string, ids []interface{}) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(
		"INSERT IGNORE INTO %s (id) SELECT id FROM %s WHERE id IN (%s)",
		tmpTable, srcTable, placeholders(len(ids)),
	)
	res, err := s.tx.ExecContext(ctx, query, ids...)
	if err != nil {
		return 0, cgimaperr.NewDatabaseError("select by id", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, cgimaperr.NewDatabaseError("select by id", err)
	}
	return int(n), nil
}

func (s *sqlStore) SelectNodes(ctx context.Context, ids []osmtypes.NWRID) (int, error) {
	return s.selectByID(ctx, "tmp_nodes", "current_nodes", uint64Args(ids))
}

func (s *sqlStore) SelectWays(ctx context.Context, ids []osmtypes.NWRID) (int, error) {
	return s.selectByID(ctx, "tmp_ways", "current_ways", uint64Args(ids))
}

func (s *sqlStore) SelectRelations(ctx context.Context, ids []osmtypes.NWRID) (int, error) {
	return s.selectByID(ctx, "tmp_relations", "current_relations", uint64Args(ids))
}

func (s *sqlStore) SelectChangesets(ctx context.Context, ids []osmtypes.ChangesetID) (int, error) {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = uint64(id)
	}
	return s.selectByID(ctx, "tmp_changesets", "changesets", args)
}

// --- selection: nodes by bbox ---------------------------------------------

// SelectNodesFromBBox assumes the caller (Engine) has already enforced
// the tables_empty precondition.
func (s *sqlStore) SelectNodesFromBBox(ctx context.Context, tiles []uint64, box osmtypes.BBox, limit int) (int, error) {
	if len(tiles) == 0 {
		return 0, nil
	}

	// Scope the planner hint to this session only (spec §9), the MySQL
	// analogue of disabling merge/hash joins around the tile-index scan.
	if _, err := s.tx.ExecContext(ctx, "SET SESSION optimizer_switch='mrr_cost_based=off'"); err != nil {
		return 0, cgimaperr.NewDatabaseError("set planner hint", err)
	}

	tileArgs := make([]interface{}, len(tiles))
	for i, t := range tiles {
		tileArgs[i] = t
	}

	query := fmt.Sprintf(
		`INSERT IGNORE INTO tmp_nodes (id)
		 SELECT id FROM current_nodes
		 WHERE tile IN (%s)
		   AND latitude BETWEEN ? AND ?
		   AND longitude BETWEEN ? AND ?
		   AND visible = 1
		 LIMIT ?`,
		placeholders(len(tiles)),
	)

	args := append(tileArgs,
		int64(box.MinLat*osmtypes.Scale), int64(box.MaxLat*osmtypes.Scale),
		int64(box.MinLon*osmtypes.Scale), int64(box.MaxLon*osmtypes.Scale),
		limit+1,
	)

	res, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, cgimaperr.NewDatabaseError("select nodes from bbox", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, cgimaperr.NewDatabaseError("select nodes from bbox", err)
	}
	return int(n), nil
}

// --- selection: graph expansion --------------------------------------------

func (s *sqlStore) expandAntiJoin(ctx context.Context, query string) error {
	if _, err := s.tx.ExecContext(ctx, query); err != nil {
		return cgimaperr.NewDatabaseError("graph expansion", err)
	}
	return nil
}

func (s *sqlStore) NodesFromRelations(ctx context.Context) error {
	return s.expandAntiJoin(ctx, `
		INSERT IGNORE INTO tmp_nodes (id)
		SELECT member_id FROM current_relation_members
		WHERE relation_id IN (SELECT id FROM tmp_relations) AND member_type = 'Node'`)
}

func (s *sqlStore) WaysFromRelations(ctx context.Context) error {
	return s.expandAntiJoin(ctx, `
		INSERT IGNORE INTO tmp_ways (id)
		SELECT member_id FROM current_relation_members
		WHERE relation_id IN (SELECT id FROM tmp_relations) AND member_type = 'Way'`)
}

func (s *sqlStore) RelationsMembersOfRelations(ctx context.Context) error {
	return s.expandAntiJoin(ctx, `
		INSERT IGNORE INTO tmp_relations (id)
		SELECT member_id FROM current_relation_members
		WHERE relation_id IN (SELECT id FROM tmp_relations) AND member_type = 'Relation'`)
}

func (s *sqlStore) WaysFromNodes(ctx context.Context) error {
	return s.expandAntiJoin(ctx, `
		INSERT IGNORE INTO tmp_ways (id)
		SELECT way_id FROM current_way_nodes
		WHERE node_id IN (SELECT id FROM tmp_nodes)`)
}

func (s *sqlStore) NodesFromWayNodes(ctx context.Context) error {
	return s.expandAntiJoin(ctx, `
		INSERT IGNORE INTO tmp_nodes (id)
		SELECT node_id FROM current_way_nodes
		WHERE way_id IN (SELECT id FROM tmp_ways)`)
}

func (s *sqlStore) RelationsFromNodes(ctx context.Context) error {
	return s.expandAntiJoin(ctx, `
		INSERT IGNORE INTO tmp_relations (id)
		SELECT relation_id FROM current_relation_members
		WHERE member_type = 'Node' AND member_id IN (SELECT id FROM tmp_nodes)`)
}

func (s *sqlStore) RelationsFromWays(ctx context.Context) error {
	return s.expandAntiJoin(ctx, `
		INSERT IGNORE INTO tmp_relations (id)
		SELECT relation_id FROM current_relation_members
		WHERE member_type = 'Way' AND member_id IN (SELECT id FROM tmp_ways)`)
}

func (s *sqlStore) RelationsFromRelations(ctx context.Context) error {
	return s.expandAntiJoin(ctx, `
		INSERT IGNORE INTO tmp_relations (id)
		SELECT relation_id FROM current_relation_members
		WHERE member_type = 'Relation' AND member_id IN (SELECT id FROM tmp_relations)`)
}

// --- emission ---------------------------------------------------------------

// timestampCol builds a DATE_FORMAT expression for an arbitrary column,
// reproducing the reference implementation's to_char(..., 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
// byte-for-byte (spec §4.4).
func timestampCol(table, column string) string {
	return fmt.Sprintf(`DATE_FORMAT(%s.%s, '%%Y-%%m-%%dT%%H:%%i:%%sZ')`, table, column)
}

func (s *sqlStore) StreamNodes(ctx context.Context, fn func(NodeRow) error) error {
	query := fmt.Sprintf(`
		SELECT n.id, n.version, %s, n.changeset_id, n.visible, n.latitude, n.longitude,
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(t.k) SEPARATOR ',') FROM current_node_tags t WHERE t.node_id = n.id), ''), '}'),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(t.v) SEPARATOR ',') FROM current_node_tags t WHERE t.node_id = n.id), ''), '}')
		FROM tmp_nodes tn
		JOIN current_nodes n ON n.id = tn.id
		ORDER BY n.id`, timestampCol("n", "timestamp"))

	rows, err := s.tx.QueryContext(ctx, query)
	if err != nil {
		return cgimaperr.NewDatabaseError("stream nodes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, changesetID         uint64
			version                 int32
			timestamp               string
			visible                 bool
			lat, lon                int64
			tagK, tagV              string
		)
		if err := rows.Scan(&id, &version, &timestamp, &changesetID, &visible, &lat, &lon, &tagK, &tagV); err != nil {
			return cgimaperr.NewDatabaseError("scan node row", err)
		}

		tags, err := rowextract.ExtractTags(tagK, tagV)
		if err != nil {
			return err
		}

		cs, err := s.cache.Get(ctx, osmtypes.ChangesetID(changesetID))
		if err != nil {
			return err
		}

		elemRow := rowextract.ElementRow{ID: id, Version: version, Timestamp: timestamp, ChangesetID: changesetID, Visible: visible}
		info := rowextract.ExtractElementInfo(elemRow, cs)

		row := NodeRow{
			Elem: info,
			Lon:  float64(lon) / osmtypes.Scale,
			Lat:  float64(lat) / osmtypes.Scale,
			Tags: tags,
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return cgimaperr.NewDatabaseError("stream nodes", rows.Err())
}

func (s *sqlStore) StreamWays(ctx context.Context, fn func(WayRow) error) error {
	query := fmt.Sprintf(`
		SELECT w.id, w.version, %s, w.changeset_id, w.visible,
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(wn.node_id ORDER BY wn.sequence_id SEPARATOR ',') FROM current_way_nodes wn WHERE wn.way_id = w.id), ''), '}'),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(wt.k) SEPARATOR ',') FROM current_way_tags wt WHERE wt.way_id = w.id), ''), '}'),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(wt.v) SEPARATOR ',') FROM current_way_tags wt WHERE wt.way_id = w.id), ''), '}')
		FROM tmp_ways tw
		JOIN current_ways w ON w.id = tw.id
		ORDER BY w.id`, timestampCol("w", "timestamp"))

	rows, err := s.tx.QueryContext(ctx, query)
	if err != nil {
		return cgimaperr.NewDatabaseError("stream ways", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, changesetID    uint64
			version            int32
			timestamp          string
			visible            bool
			nodeIDs, tagK, tagV string
		)
		if err := rows.Scan(&id, &version, &timestamp, &changesetID, &visible, &nodeIDs, &tagK, &tagV); err != nil {
			return cgimaperr.NewDatabaseError("scan way row", err)
		}

		nodes, err := rowextract.ExtractWayNodes(nodeIDs)
		if err != nil {
			return err
		}
		tags, err := rowextract.ExtractTags(tagK, tagV)
		if err != nil {
			return err
		}

		cs, err := s.cache.Get(ctx, osmtypes.ChangesetID(changesetID))
		if err != nil {
			return err
		}

		elemRow := rowextract.ElementRow{ID: id, Version: version, Timestamp: timestamp, ChangesetID: changesetID, Visible: visible}
		info := rowextract.ExtractElementInfo(elemRow, cs)

		if err := fn(WayRow{Elem: info, Nodes: nodes, Tags: tags}); err != nil {
			return err
		}
	}
	return cgimaperr.NewDatabaseError("stream ways", rows.Err())
}

func (s *sqlStore) StreamRelations(ctx context.Context, fn func(RelationRow) error) error {
	query := fmt.Sprintf(`
		SELECT r.id, r.version, %s, r.changeset_id, r.visible,
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(rm.member_type ORDER BY rm.sequence_id SEPARATOR ',') FROM current_relation_members rm WHERE rm.relation_id = r.id), ''), '}'),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(rm.member_id ORDER BY rm.sequence_id SEPARATOR ',') FROM current_relation_members rm WHERE rm.relation_id = r.id), ''), '}'),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(rm.member_role) ORDER BY rm.sequence_id SEPARATOR ',') FROM current_relation_members rm WHERE rm.relation_id = r.id), ''), '}'),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(rt.k) SEPARATOR ',') FROM current_relation_tags rt WHERE rt.relation_id = r.id), ''), '}'),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(rt.v) SEPARATOR ',') FROM current_relation_tags rt WHERE rt.relation_id = r.id), ''), '}')
		FROM tmp_relations tr
		JOIN current_relations r ON r.id = tr.id
		ORDER BY r.id`, timestampCol("r", "timestamp"))

	rows, err := s.tx.QueryContext(ctx, query)
	if err != nil {
		return cgimaperr.NewDatabaseError("stream relations", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, changesetID                           uint64
			version                                    int32
			timestamp                                  string
			visible                                    bool
			memberTypes, memberIDs, memberRoles        string
			tagK, tagV                                  string
		)
		if err := rows.Scan(&id, &version, &timestamp, &changesetID, &visible, &memberTypes, &memberIDs, &memberRoles, &tagK, &tagV); err != nil {
			return cgimaperr.NewDatabaseError("scan relation row", err)
		}

		members, err := rowextract.ExtractMembers(memberTypes, memberIDs, memberRoles)
		if err != nil {
			return err
		}
		tags, err := rowextract.ExtractTags(tagK, tagV)
		if err != nil {
			return err
		}

		cs, err := s.cache.Get(ctx, osmtypes.ChangesetID(changesetID))
		if err != nil {
			return err
		}

		elemRow := rowextract.ElementRow{ID: id, Version: version, Timestamp: timestamp, ChangesetID: changesetID, Visible: visible}
		info := rowextract.ExtractElementInfo(elemRow, cs)

		if err := fn(RelationRow{Elem: info, Members: members, Tags: tags}); err != nil {
			return err
		}
	}
	return cgimaperr.NewDatabaseError("stream relations", rows.Err())
}

func (s *sqlStore) StreamChangesets(ctx context.Context, includeDiscussions bool, fn func(ChangesetRow) error) error {
	commentCols := "0"
	if includeDiscussions {
		commentCols = `CONCAT('{', COALESCE((SELECT GROUP_CONCAT(cc.author_id ORDER BY cc.created_at SEPARATOR ',') FROM changeset_comments cc WHERE cc.changeset_id = c.id AND cc.visible = 1), ''), '}'),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(u.display_name) ORDER BY cc.created_at SEPARATOR ',') FROM changeset_comments cc JOIN users u ON u.id = cc.author_id WHERE cc.changeset_id = c.id AND cc.visible = 1), ''), '}'),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(cc.body) ORDER BY cc.created_at SEPARATOR ',') FROM changeset_comments cc WHERE cc.changeset_id = c.id AND cc.visible = 1), ''), '}'),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(DATE_FORMAT(cc.created_at, '%Y-%m-%dT%H:%i:%sZ')) ORDER BY cc.created_at SEPARATOR ',') FROM changeset_comments cc WHERE cc.changeset_id = c.id AND cc.visible = 1), ''), '}')`
	}

	query := fmt.Sprintf(`
		SELECT c.id, %s, %s, c.min_lat, c.max_lat, c.min_lon, c.max_lon, c.num_changes,
		       (SELECT COUNT(*) FROM changeset_comments cc WHERE cc.changeset_id = c.id AND cc.visible = 1),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(ct.k) SEPARATOR ',') FROM changeset_tags ct WHERE ct.changeset_id = c.id), ''), '}'),
		       CONCAT('{', COALESCE((SELECT GROUP_CONCAT(QUOTE(ct.v) SEPARATOR ',') FROM changeset_tags ct WHERE ct.changeset_id = c.id), ''), '}'),
		       %s
		FROM tmp_changesets tc
		JOIN changesets c ON c.id = tc.id
		ORDER BY c.id`,
		timestampCol("c", "created_at"),
		timestampCol("c", "closed_at"),
		commentCols,
	)

	rows, err := s.tx.QueryContext(ctx, query)
	if err != nil {
		return cgimaperr.NewDatabaseError("stream changesets", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                                              uint64
			createdAt, closedAt                              string
			minLat, maxLat, minLon, maxLon                   sql.NullInt64
			numChanges                                       int64
			commentsCount                                    int
			tagK, tagV                                       string
			authorIDs, displayNames, bodies, createdAtsArray sql.NullString
		)

		dest := []interface{}{&id, &createdAt, &closedAt, &minLat, &maxLat, &minLon, &maxLon, &numChanges, &commentsCount, &tagK, &tagV}
		if includeDiscussions {
			dest = append(dest, &authorIDs, &displayNames, &bodies, &createdAtsArray)
		} else {
			var noComments int
			dest = append(dest, &noComments)
		}
		if err := rows.Scan(dest...); err != nil {
			return cgimaperr.NewDatabaseError("scan changeset row", err)
		}

		tags, err := rowextract.ExtractTags(tagK, tagV)
		if err != nil {
			return err
		}

		row := rowextract.ChangesetRow{
			ID:         id,
			CreatedAt:  createdAt,
			ClosedAt:   closedAt,
			NumChanges: numChanges,
		}
		if minLat.Valid && maxLat.Valid && minLon.Valid && maxLon.Valid {
			row.MinLat, row.MaxLat, row.MinLon, row.MaxLon = &minLat.Int64, &maxLat.Int64, &minLon.Int64, &maxLon.Int64
		}

		cs, err := s.cache.Get(ctx, osmtypes.ChangesetID(id))
		if err != nil {
			return err
		}

		info := rowextract.ExtractChangesetInfo(row, cs)
		info.Tags = tags
		info.CommentsCount = commentsCount

		if includeDiscussions && authorIDs.Valid {
			comments, err := rowextract.ExtractComments(authorIDs.String, displayNames.String, bodies.String, createdAtsArray.String)
			if err != nil {
				return err
			}
			info.Comments = comments
		}

		if err := fn(ChangesetRow{Info: info}); err != nil {
			return err
		}
	}
	return cgimaperr.NewDatabaseError("stream changesets", rows.Err())
}
