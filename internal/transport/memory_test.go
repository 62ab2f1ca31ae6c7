package transport

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/internal/ballot"
	"github.com/latticedb/lattice/internal/paxos"
)

type recorder struct {
	mu       sync.Mutex
	received []paxos.Message
	from     []ballot.NodeID
}

func (r *recorder) handler() func(ballot.NodeID, paxos.Message) {
	return func(from ballot.NodeID, msg paxos.Message) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.from = append(r.from, from)
		r.received = append(r.received, msg)
	}
}

func TestInMemorySend(t *testing.T) {
	nodes := NewInMemoryCluster([]ballot.NodeID{1, 2, 3})
	rec2 := &recorder{}
	nodes[2].SetHandler(rec2.handler())

	msg := paxos.Prepare{ID: ballot.SlotID{From: 1, LogIndex: 1}}
	require.NoError(t, nodes[1].Send(context.Background(), 2, paxos.Envelope{To: 2, Msg: msg}))

	rec2.mu.Lock()
	defer rec2.mu.Unlock()
	require.Len(t, rec2.received, 1)
	require.Equal(t, ballot.NodeID(1), rec2.from[0])
	require.Equal(t, msg, rec2.received[0])
}

func TestInMemoryBroadcastReachesEveryoneButSelf(t *testing.T) {
	nodes := NewInMemoryCluster([]ballot.NodeID{1, 2, 3})
	rec2, rec3 := &recorder{}, &recorder{}
	nodes[2].SetHandler(rec2.handler())
	nodes[3].SetHandler(rec3.handler())

	msg := paxos.Commit{HighestCommitted: ballot.SlotID{From: 1, LogIndex: 5}}
	require.NoError(t, nodes[1].Broadcast(context.Background(), paxos.Envelope{Broadcast: true, Msg: msg}))

	rec2.mu.Lock()
	require.Len(t, rec2.received, 1)
	rec2.mu.Unlock()

	rec3.mu.Lock()
	require.Len(t, rec3.received, 1)
	rec3.mu.Unlock()
}

func TestInMemoryPartitionDropsMessages(t *testing.T) {
	nodes := NewInMemoryCluster([]ballot.NodeID{1, 2})
	rec2 := &recorder{}
	nodes[2].SetHandler(rec2.handler())

	nodes[1].Partitioned = true
	msg := paxos.Prepare{ID: ballot.SlotID{From: 1, LogIndex: 1}}
	require.NoError(t, nodes[1].Send(context.Background(), 2, paxos.Envelope{To: 2, Msg: msg}))

	rec2.mu.Lock()
	defer rec2.mu.Unlock()
	require.Empty(t, rec2.received)
}

func TestInMemorySendUnknownPeer(t *testing.T) {
	nodes := NewInMemoryCluster([]ballot.NodeID{1, 2})
	err := nodes[1].Send(context.Background(), 99, paxos.Envelope{To: 99, Msg: paxos.Prepare{}})
	require.Error(t, err)
}
