// Package transport implements the paxos.Envelope delivery fabric: an
// in-memory transport for single-process clusters and tests, and a
// persistent-connection TCP transport for real deployments — grounded
// respectively on the teacher's src/consensus/testing_mocks.go mockNode
// (partition-capable in-process delivery) and src/cluster/{cluster,
// node}.go's ConnectionPool + length-prefixed message framing.
package transport

import (
	"context"

	"github.com/latticedb/lattice/internal/ballot"
	"github.com/latticedb/lattice/internal/paxos"
)

// Transport is the spec §6 collaborator. Handler receives every
// message this node's Envelope Send/Broadcast calls land on a peer,
// for the runtime to wrap as a paxos.Inbound event.
type Transport interface {
	Send(ctx context.Context, to ballot.NodeID, env paxos.Envelope) error
	Broadcast(ctx context.Context, env paxos.Envelope) error
	SetHandler(h func(from ballot.NodeID, msg paxos.Message))
	Close() error
}
