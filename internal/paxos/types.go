// Package paxos is the core per-node Multi-Paxos state machine: a
// single-threaded event processor that turns one incoming message or
// timer tick into an updated role/state, outbound messages, durable
// journal writes, and committed deliveries.
//
// Grounded on the teacher's src/consensus package (scope.go,
// scope_accept.go, scope_commit.go, manager_prepare.go): same
// phase-handler-per-file layout, same statsd counters / go-logging
// style. Generalized
// from EPaxos per-instance consensus over inter-dependent scopes to
// Multi-Paxos per-slot consensus over one totally-ordered log, with
// explicit Follower/Recoverer/Leader roles instead of a single
// command-leader-or-not distinction.
package paxos

import (
	"fmt"

	logging "github.com/op/go-logging"

	"github.com/google/uuid"

	"github.com/latticedb/lattice/internal/ballot"
)

var logger *logging.Logger

func init() {
	logger = logging.MustGetLogger("paxos")
}

// Role is a node's current position in the election/takeover protocol
// (spec §4.11).
type Role int

const (
	Follower Role = iota
	Recoverer
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Recoverer:
		return "recoverer"
	case Leader:
		return "leader"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Progress is the durable record described in spec §3: the highest
// ballot this node has promised, and the highest slot it has
// committed. Invariant P1: HighestCommitted.Number <= HighestPromised.
// Invariant P2: both fields are monotonically non-decreasing over the
// node's lifetime.
type Progress struct {
	HighestPromised  ballot.BallotNumber
	HighestCommitted ballot.SlotID
}

// Accept is the value a node has chosen to store for one slot —
// exactly what the Journal persists per slot.
type Accept struct {
	ID    ballot.SlotID
	Value CommandValue
}

// CommandValue is an opaque client command. The core never interprets
// Bytes; internal/host does.
type CommandValue struct {
	MsgID uuid.UUID
	Bytes []byte
}

// ClientHandle identifies the connection a command arrived on, for
// routing NotLeader/NoLongerLeader/reply messages back. Opaque to the
// core; the runtime/transport defines what's inside it.
type ClientHandle string
