package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/internal/ballot"
	"github.com/latticedb/lattice/internal/paxos"
)

// listenLoopback starts t on an OS-assigned loopback port and returns
// the address it bound, for wiring a second TCP transport's peers map
// before either side knows the other's port ahead of time.
func listenLoopback(t *testing.T, tr *TCP) string {
	t.Helper()
	require.NoError(t, tr.Listen("127.0.0.1:0"))
	return tr.listener.Addr().String()
}

func TestTCPSendDeliversAcrossRealSockets(t *testing.T) {
	b := NewTCP(2, map[ballot.NodeID]string{})
	addrB := listenLoopback(t, b)
	defer b.Close()

	a := NewTCP(1, map[ballot.NodeID]string{2: addrB})
	addrA := listenLoopback(t, a)
	defer a.Close()
	b.peers[1] = addrA

	rec := &recorder{}
	b.SetHandler(rec.handler())

	msg := paxos.Prepare{ID: ballot.SlotID{From: 1, LogIndex: 7}}
	require.NoError(t, a.Send(context.Background(), 2, paxos.Envelope{To: 2, Msg: msg}))

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.received) == 1
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, ballot.NodeID(1), rec.from[0])
	require.Equal(t, msg, rec.received[0])
}

func TestTCPBroadcastReachesEveryPeer(t *testing.T) {
	b := NewTCP(2, map[ballot.NodeID]string{})
	addrB := listenLoopback(t, b)
	defer b.Close()

	c := NewTCP(3, map[ballot.NodeID]string{})
	addrC := listenLoopback(t, c)
	defer c.Close()

	a := NewTCP(1, map[ballot.NodeID]string{2: addrB, 3: addrC})
	listenLoopback(t, a)
	defer a.Close()

	recB, recC := &recorder{}, &recorder{}
	b.SetHandler(recB.handler())
	c.SetHandler(recC.handler())

	msg := paxos.Commit{HighestCommitted: ballot.SlotID{From: 1, LogIndex: 3}}
	require.NoError(t, a.Broadcast(context.Background(), paxos.Envelope{Broadcast: true, Msg: msg}))

	require.Eventually(t, func() bool {
		recB.mu.Lock()
		recC.mu.Lock()
		defer recB.mu.Unlock()
		defer recC.mu.Unlock()
		return len(recB.received) == 1 && len(recC.received) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTCPSendToUnknownPeerFails(t *testing.T) {
	a := NewTCP(1, map[ballot.NodeID]string{})
	err := a.Send(context.Background(), 99, paxos.Envelope{To: 99, Msg: paxos.Prepare{}})
	require.Error(t, err)
}

func TestTCPSendRedialsAfterConnectionDrops(t *testing.T) {
	b := NewTCP(2, map[ballot.NodeID]string{})
	addrB := listenLoopback(t, b)
	defer b.Close()

	a := NewTCP(1, map[ballot.NodeID]string{2: addrB})
	listenLoopback(t, a)
	defer a.Close()

	rec := &recorder{}
	b.SetHandler(rec.handler())

	msg := paxos.Prepare{ID: ballot.SlotID{From: 1, LogIndex: 1}}
	require.NoError(t, a.Send(context.Background(), 2, paxos.Envelope{To: 2, Msg: msg}))
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.received) == 1
	}, time.Second, 5*time.Millisecond)

	a.dropConn(2)

	require.NoError(t, a.Send(context.Background(), 2, paxos.Envelope{To: 2, Msg: msg}))
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.received) == 2
	}, time.Second, 5*time.Millisecond)
}
