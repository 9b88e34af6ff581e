package rowextract

import (
	"strconv"

	"github.com/jronak/cgimap-go/internal/cgimaperr"
	"github.com/jronak/cgimap-go/internal/changesetcache"
	"github.com/jronak/cgimap-go/internal/osmtypes"
)

// ElementRow is the subset of a node/way/relation row needed to build an
// ElementInfo, independent of which of the three tables it came from.
type ElementRow struct {
	ID          uint64
	Version     int32
	Timestamp   string
	ChangesetID uint64
	Visible     bool
}

// ExtractElementInfo applies the author-privacy rule (spec §3: "Author
// fields are present iff the referenced changeset is public") using an
// already-resolved changeset cache entry.
func ExtractElementInfo(row ElementRow, cs changesetcache.Changeset) osmtypes.ElementInfo {
	info := osmtypes.ElementInfo{
		ID:        osmtypes.NWRID(row.ID),
		Version:   row.Version,
		Timestamp: row.Timestamp,
		Changeset: osmtypes.ChangesetID(row.ChangesetID),
		Visible:   row.Visible,
	}
	if cs.DataPublic {
		uid := cs.UserID
		name := cs.DisplayName
		info.UID = &uid
		info.DisplayName = &name
	}
	return info
}

// ExtractTags parses the tag_k/tag_v aggregated array columns into an
// ordered Tags slice. The two arrays must parse to equal length (spec
// §4.3); a mismatch is a MalformedRowError.
func ExtractTags(tagK, tagV string) (osmtypes.Tags, error) {
	keys, err := ParseArrayLiteral(tagK)
	if err != nil {
		return nil, err
	}
	values, err := ParseArrayLiteral(tagV)
	if err != nil {
		return nil, err
	}
	if len(keys) != len(values) {
		return nil, cgimaperr.NewMalformedRowError("tag key/value array length mismatch")
	}

	tags := make(osmtypes.Tags, len(keys))
	for i := range keys {
		tags[i] = osmtypes.Tag{Key: keys[i], Value: values[i]}
	}
	return tags, nil
}

// ExtractWayNodes parses the node_ids aggregated array column (decimal
// integer strings, in storage sequence order, possibly repeating ids) for
// a way row.
func ExtractWayNodes(nodeIDs string) ([]osmtypes.NWRID, error) {
	raw, err := ParseArrayLiteral(nodeIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]osmtypes.NWRID, len(raw))
	for i, s := range raw {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, cgimaperr.NewMalformedRowError("non-numeric node id in way node list: " + s)
		}
		ids[i] = osmtypes.NWRID(n)
	}
	return ids, nil
}

// memberTypeFromName matches case-insensitively by first character:
// {N,n}→node, {W,w}→way, {R,r}→relation; anything else is malformed
// (spec §4.3).
func memberTypeFromName(name string) (osmtypes.MemberType, error) {
	if len(name) == 0 {
		return 0, cgimaperr.NewMalformedRowError("empty member type")
	}
	switch name[0] {
	case 'N', 'n':
		return osmtypes.MemberNode, nil
	case 'W', 'w':
		return osmtypes.MemberWay, nil
	case 'R', 'r':
		return osmtypes.MemberRelation, nil
	default:
		return 0, cgimaperr.NewMalformedRowError("unrecognized member type: " + name)
	}
}

// ExtractMembers parses the member_types/member_ids/member_roles parallel
// aggregated arrays for a relation row. All three must parse to equal
// length; order is storage sequence order (spec §4.3, §4.4).
func ExtractMembers(memberTypes, memberIDs, memberRoles string) ([]osmtypes.Member, error) {
	types, err := ParseArrayLiteral(memberTypes)
	if err != nil {
		return nil, err
	}
	ids, err := ParseArrayLiteral(memberIDs)
	if err != nil {
		return nil, err
	}
	roles, err := ParseArrayLiteral(memberRoles)
	if err != nil {
		return nil, err
	}
	if len(types) != len(ids) || len(ids) != len(roles) {
		return nil, cgimaperr.NewMalformedRowError("member types/ids/roles array length mismatch")
	}

	members := make([]osmtypes.Member, len(ids))
	for i := range ids {
		t, err := memberTypeFromName(types[i])
		if err != nil {
			return nil, err
		}
		ref, err := strconv.ParseUint(ids[i], 10, 64)
		if err != nil {
			return nil, cgimaperr.NewMalformedRowError("non-numeric member id: " + ids[i])
		}
		members[i] = osmtypes.Member{Type: t, Ref: ref, Role: roles[i]}
	}
	return members, nil
}

// ExtractComments parses the four parallel comment columns for a
// changeset row. All four must parse to equal length (spec §4.3).
func ExtractComments(authorIDs, displayNames, bodies, createdAts string) ([]osmtypes.Comment, error) {
	ids, err := ParseArrayLiteral(authorIDs)
	if err != nil {
		return nil, err
	}
	names, err := ParseArrayLiteral(displayNames)
	if err != nil {
		return nil, err
	}
	bodyVals, err := ParseArrayLiteral(bodies)
	if err != nil {
		return nil, err
	}
	createdVals, err := ParseArrayLiteral(createdAts)
	if err != nil {
		return nil, err
	}
	if len(ids) != len(names) || len(names) != len(bodyVals) || len(bodyVals) != len(createdVals) {
		return nil, cgimaperr.NewMalformedRowError("comment column array length mismatch")
	}

	comments := make([]osmtypes.Comment, len(ids))
	for i := range ids {
		authorID, err := strconv.ParseUint(ids[i], 10, 64)
		if err != nil {
			return nil, cgimaperr.NewMalformedRowError("non-numeric comment author id: " + ids[i])
		}
		comments[i] = osmtypes.Comment{
			AuthorID:          authorID,
			AuthorDisplayName: names[i],
			Body:              bodyVals[i],
			CreatedAt:         createdVals[i],
		}
	}
	return comments, nil
}

// ChangesetRow is the subset of a changeset row needed to build a
// ChangesetInfo, before tags/comments are attached.
type ChangesetRow struct {
	ID         uint64
	CreatedAt  string
	ClosedAt   string
	MinLat     *int64
	MaxLat     *int64
	MinLon     *int64
	MaxLon     *int64
	NumChanges int64
}

// ExtractChangesetInfo builds a ChangesetInfo from a row plus its
// resolved changeset cache entry. The four bounding-box coordinates must
// be all-present or all-absent; a partial set is treated as wholly
// absent (spec §4.3).
func ExtractChangesetInfo(row ChangesetRow, cs changesetcache.Changeset) osmtypes.ChangesetInfo {
	info := osmtypes.ChangesetInfo{
		ID:         osmtypes.ChangesetID(row.ID),
		CreatedAt:  row.CreatedAt,
		ClosedAt:   row.ClosedAt,
		NumChanges: row.NumChanges,
	}

	if row.MinLat != nil && row.MaxLat != nil && row.MinLon != nil && row.MaxLon != nil {
		info.Box = &osmtypes.BoundingBox{
			MinLat: float64(*row.MinLat) / osmtypes.Scale,
			MaxLat: float64(*row.MaxLat) / osmtypes.Scale,
			MinLon: float64(*row.MinLon) / osmtypes.Scale,
			MaxLon: float64(*row.MaxLon) / osmtypes.Scale,
		}
	}

	if cs.DataPublic {
		uid := cs.UserID
		name := cs.DisplayName
		info.UID = &uid
		info.DisplayName = &name
	}

	return info
}
