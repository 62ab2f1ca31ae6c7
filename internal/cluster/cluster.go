// Package cluster holds the fixed peer membership a node runs
// against. Grounded on the teacher's src/topology/datacenter.go
// container, trimmed from its ring/datacenter/token-replication shape
// down to a flat, static member list — this spec's cluster size and
// membership are fixed at startup (no join/leave protocol; an
// explicit non-goal).
package cluster

import (
	"fmt"
	"sort"

	"github.com/latticedb/lattice/internal/ballot"
)

// Member is one peer's address, as configured.
type Member struct {
	ID   ballot.NodeID
	Addr string
}

// Cluster is the fixed set of nodes participating in consensus,
// including this node itself.
type Cluster struct {
	Self    ballot.NodeID
	Members []Member
}

// New validates and builds a Cluster. Self must appear in members and
// every NodeID must be unique and non-zero (zero is reserved, see
// ballot.MinBallot's use of node 0 as "no node").
func New(self ballot.NodeID, members []Member) (*Cluster, error) {
	seen := make(map[ballot.NodeID]bool, len(members))
	sawSelf := false
	for _, m := range members {
		if m.ID == 0 {
			return nil, fmt.Errorf("cluster: node id 0 is reserved")
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("cluster: duplicate node id %d", m.ID)
		}
		seen[m.ID] = true
		if m.ID == self {
			sawSelf = true
		}
	}
	if !sawSelf {
		return nil, fmt.Errorf("cluster: self id %d not present in member list", self)
	}
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Cluster{Self: self, Members: sorted}, nil
}

// Size is the total member count, including self — spec §6's
// clusterSize.
func (c *Cluster) Size() int {
	return len(c.Members)
}

// PeerAddrs returns every member's address except self, for wiring a
// transport.
func (c *Cluster) PeerAddrs() map[ballot.NodeID]string {
	out := make(map[ballot.NodeID]string, len(c.Members)-1)
	for _, m := range c.Members {
		if m.ID == c.Self {
			continue
		}
		out[m.ID] = m.Addr
	}
	return out
}

// SelfAddr returns this node's own configured address.
func (c *Cluster) SelfAddr() string {
	for _, m := range c.Members {
		if m.ID == c.Self {
			return m.Addr
		}
	}
	return ""
}
