// Package formatter supplies the one formatter implementation this
// repository ships on its own: a trivial in-memory collector satisfying
// apidb.Formatter, for tests and for cmd/cgimap-query's manual/
// integration exercising of the selection engine. Production XML/JSON
// formatters are external collaborators out of scope (spec §1).
package formatter

import (
	"sync"
	"time"

	"github.com/jronak/cgimap-go/internal/osmtypes"
)

// Node is a captured write_node call.
type Node struct {
	Elem osmtypes.ElementInfo
	Lon  float64
	Lat  float64
	Tags osmtypes.Tags
}

// Way is a captured write_way call.
type Way struct {
	Elem  osmtypes.ElementInfo
	Nodes []osmtypes.NWRID
	Tags  osmtypes.Tags
}

// Relation is a captured write_relation call.
type Relation struct {
	Elem    osmtypes.ElementInfo
	Members []osmtypes.Member
	Tags    osmtypes.Tags
}

// Changeset is a captured write_changeset call.
type Changeset struct {
	Info               osmtypes.ChangesetInfo
	IncludeDiscussions bool
	Now                time.Time
}

// Memory accumulates every entity written to it, in call order, safe for
// concurrent use even though a single engine only ever drives one
// Memory serially (spec §5).
type Memory struct {
	mu         sync.Mutex
	Nodes      []Node
	Ways       []Way
	Relations  []Relation
	Changesets []Changeset
}

// New returns an empty Memory formatter.
func New() *Memory {
	return &Memory{}
}

func (m *Memory) WriteNode(elem osmtypes.ElementInfo, lon, lat float64, tags osmtypes.Tags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Nodes = append(m.Nodes, Node{Elem: elem, Lon: lon, Lat: lat, Tags: tags})
	return nil
}

func (m *Memory) WriteWay(elem osmtypes.ElementInfo, nodes []osmtypes.NWRID, tags osmtypes.Tags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ways = append(m.Ways, Way{Elem: elem, Nodes: nodes, Tags: tags})
	return nil
}

func (m *Memory) WriteRelation(elem osmtypes.ElementInfo, members []osmtypes.Member, tags osmtypes.Tags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Relations = append(m.Relations, Relation{Elem: elem, Members: members, Tags: tags})
	return nil
}

func (m *Memory) WriteChangeset(info osmtypes.ChangesetInfo, includeDiscussions bool, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Changesets = append(m.Changesets, Changeset{Info: info, IncludeDiscussions: includeDiscussions, Now: now})
	return nil
}
