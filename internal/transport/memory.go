package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/latticedb/lattice/internal/ballot"
	"github.com/latticedb/lattice/internal/paxos"
)

// hub is the shared registry every InMemory transport in one process
// registers with, so Send/Broadcast can reach sibling nodes directly
// without a socket. Grounded on the teacher's mockCluster/mockNode
// pair in src/consensus/testing_mocks.go.
type hub struct {
	mu    sync.RWMutex
	nodes map[ballot.NodeID]*InMemory
}

func newHub() *hub {
	return &hub{nodes: make(map[ballot.NodeID]*InMemory)}
}

// InMemory delivers Envelopes directly to sibling InMemory transports
// sharing the same hub — no serialization, no network. Partitioned
// mirrors the teacher's mockNode.partition flag: while true, every
// inbound and outbound message for this node is silently dropped.
type InMemory struct {
	self        ballot.NodeID
	hub         *hub
	mu          sync.RWMutex
	handler     func(from ballot.NodeID, msg paxos.Message)
	Partitioned bool
}

// NewInMemoryCluster builds one InMemory transport per id, all wired
// to the same hub.
func NewInMemoryCluster(ids []ballot.NodeID) map[ballot.NodeID]*InMemory {
	h := newHub()
	out := make(map[ballot.NodeID]*InMemory, len(ids))
	for _, id := range ids {
		t := &InMemory{self: id, hub: h}
		h.nodes[id] = t
		out[id] = t
	}
	return out
}

func (t *InMemory) SetHandler(h func(from ballot.NodeID, msg paxos.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *InMemory) Send(ctx context.Context, to ballot.NodeID, env paxos.Envelope) error {
	if t.Partitioned {
		return nil
	}
	t.hub.mu.RLock()
	peer, ok := t.hub.nodes[to]
	t.hub.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: unknown peer %d", to)
	}
	peer.deliver(t.self, env.Msg)
	return nil
}

func (t *InMemory) Broadcast(ctx context.Context, env paxos.Envelope) error {
	if t.Partitioned {
		return nil
	}
	t.hub.mu.RLock()
	peers := make([]*InMemory, 0, len(t.hub.nodes))
	for id, peer := range t.hub.nodes {
		if id == t.self {
			continue
		}
		peers = append(peers, peer)
	}
	t.hub.mu.RUnlock()
	for _, peer := range peers {
		peer.deliver(t.self, env.Msg)
	}
	return nil
}

func (t *InMemory) deliver(from ballot.NodeID, msg paxos.Message) {
	if t.Partitioned {
		return
	}
	t.mu.RLock()
	h := t.handler
	t.mu.RUnlock()
	if h != nil {
		h(from, msg)
	}
}

func (t *InMemory) Close() error { return nil }
