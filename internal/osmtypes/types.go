// Package osmtypes defines the in-memory entity shapes produced by the
// selection engine: the canonical projection of OSM's current_* tables
// plus changeset metadata.
package osmtypes

// NWRID is the shared 64-bit unsigned id space for nodes, ways and relations.
type NWRID uint64

// ChangesetID is the distinct 64-bit unsigned id space for changesets.
type ChangesetID uint64

// Visibility is the result of a visibility probe against an element table.
type Visibility int

const (
	NonExist Visibility = iota
	Exists
	Deleted
)

func (v Visibility) String() string {
	switch v {
	case Exists:
		return "exists"
	case Deleted:
		return "deleted"
	default:
		return "non_exist"
	}
}

// MemberType distinguishes the three element kinds a relation member can
// reference.
type MemberType int

const (
	MemberNode MemberType = iota
	MemberWay
	MemberRelation
)

func (t MemberType) String() string {
	switch t {
	case MemberNode:
		return "node"
	case MemberWay:
		return "way"
	case MemberRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Tag is a single (key, value) pair. Order within a Tags slice must be
// preserved from storage.
type Tag struct {
	Key   string
	Value string
}

// Tags is an ordered sequence of key/value pairs.
type Tags []Tag

// ElementInfo is the metadata common to nodes, ways and relations.
type ElementInfo struct {
	ID          NWRID
	Version     int32
	Timestamp   string // pre-formatted YYYY-MM-DDTHH:MM:SSZ
	Changeset   ChangesetID
	Visible     bool
	UID         *uint64
	DisplayName *string
}

// Node is an element-info record plus a scaled lat/lon position.
type Node struct {
	Info Element
	Lon  float64
	Lat  float64
	Tags Tags
}

// Element embeds ElementInfo so node/way/relation payloads share a field name.
type Element struct {
	ElementInfo
}

// Way is an element-info record plus the ordered, possibly-repeating
// sequence of referenced node ids.
type Way struct {
	Info  Element
	Nodes []NWRID
	Tags  Tags
}

// Member is a single relation member triple.
type Member struct {
	Type MemberType
	Ref  uint64 // node/way/relation id depending on Type
	Role string
}

// Relation is an element-info record plus its ordered member list.
type Relation struct {
	Info    Element
	Members []Member
	Tags    Tags
}

// BoundingBox is a changeset bounding box in degrees (the stored scaled
// integers divided by Scale); all four fields are present together or not
// at all (see RowExtract contract).
type BoundingBox struct {
	MinLat, MaxLat, MinLon, MaxLon float64
}

// Comment is a single changeset discussion comment.
type Comment struct {
	AuthorID          uint64
	AuthorDisplayName string
	Body              string
	CreatedAt         string
}

// ChangesetInfo is the full changeset-info record, including discussion
// comments when discussions were requested.
type ChangesetInfo struct {
	ID            ChangesetID
	CreatedAt     string
	ClosedAt      string
	Box           *BoundingBox
	NumChanges    int64
	UID           *uint64
	DisplayName   *string
	CommentsCount int
	Comments      []Comment
	Tags          Tags
}

// Degrees bbox as supplied by a caller (e.g. an HTTP query parameter set).
type BBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Scale is the fixed factor between degrees and the signed-integer
// representation nodes and changeset bounding boxes are persisted with.
const Scale = 1e7

