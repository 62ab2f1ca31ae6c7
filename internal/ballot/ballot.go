// Package ballot defines the totally-ordered identifiers Paxos rounds
// and log slots are built from: ballot numbers and slot ids. Nothing in
// this package depends on the rest of the module, the same way the
// teacher kept its node id type dependency-free so every other package
// could import it without pulling in consensus logic.
package ballot

import (
	"fmt"
	"math"
)

// NodeID names a cluster member. Zero is reserved as "no node" and is
// never assigned to a real member (see MinBallot).
type NodeID uint64

// BallotNumber totally orders proposal rounds: counter first, then the
// node that minted it, so ballots minted concurrently by different
// nodes never collide.
type BallotNumber struct {
	Counter uint64
	Node    NodeID
}

// MinBallot is the sentinel ballot used only by a min-prepare liveness
// probe (spec §4.5, §9). It is strictly less than any ballot a real
// node can mint, since node ids start at 1 and counters start at 0.
var MinBallot = BallotNumber{Counter: 0, Node: 0}

// Less reports whether b sorts strictly before other.
func (b BallotNumber) Less(other BallotNumber) bool {
	if b.Counter != other.Counter {
		return b.Counter < other.Counter
	}
	return b.Node < other.Node
}

// Compare returns -1, 0, or 1 as b is less than, equal to, or greater
// than other.
func (b BallotNumber) Compare(other BallotNumber) int {
	switch {
	case b == other:
		return 0
	case b.Less(other):
		return -1
	default:
		return 1
	}
}

// Next returns the smallest ballot greater than b that self could
// mint, i.e. (b.Counter+1, self).
func (b BallotNumber) Next(self NodeID) BallotNumber {
	return BallotNumber{Counter: b.Counter + 1, Node: self}
}

func (b BallotNumber) String() string {
	return fmt.Sprintf("(%d,%d)", b.Counter, b.Node)
}

// MinLogIndex is the sentinel slot position used by a min-prepare. It
// is strictly less than any real log position (log indexes start at 1).
const MinLogIndex = int64(math.MinInt64)

// SlotID (a.k.a. Identifier) names a round of Paxos bound to one log
// position. From records which proposer minted the id; ordering for
// keyed maps is by LogIndex only, per spec §4.1.
type SlotID struct {
	From     NodeID
	Number   BallotNumber
	LogIndex int64
}

// Less orders slot ids by LogIndex only — this is the ordering used
// for the OrderedMap-shaped prepareResponses/acceptResponses state.
func (s SlotID) Less(other SlotID) bool {
	return s.LogIndex < other.LogIndex
}

// Compare returns -1, 0, or 1 by LogIndex only.
func (s SlotID) Compare(other SlotID) int {
	switch {
	case s.LogIndex == other.LogIndex:
		return 0
	case s.LogIndex < other.LogIndex:
		return -1
	default:
		return 1
	}
}

func (s SlotID) String() string {
	return fmt.Sprintf("%d@%s/%d", s.From, s.Number, s.LogIndex)
}

// MinPrepareID builds the sentinel slot id for a liveness probe: the
// smallest possible ballot, LogIndex = MinLogIndex, minted by self.
// Always distinct from any id a real Prepare could carry.
func MinPrepareID(self NodeID) SlotID {
	return SlotID{From: self, Number: MinBallot, LogIndex: MinLogIndex}
}
