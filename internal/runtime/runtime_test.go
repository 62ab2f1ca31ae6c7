package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/internal/ballot"
	"github.com/latticedb/lattice/internal/clock"
	"github.com/latticedb/lattice/internal/host"
	"github.com/latticedb/lattice/internal/journal"
	"github.com/latticedb/lattice/internal/paxos"
)

// fakeTransport is a minimal transport.Transport double that records
// every Send/Broadcast call instead of moving bytes anywhere.
type fakeTransport struct {
	mu        sync.Mutex
	sent      []paxos.Envelope
	broadcast []paxos.Envelope
}

func (f *fakeTransport) Send(ctx context.Context, to ballot.NodeID, env paxos.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeTransport) Broadcast(ctx context.Context, env paxos.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, env)
	return nil
}

func (f *fakeTransport) SetHandler(h func(from ballot.NodeID, msg paxos.Message)) {}
func (f *fakeTransport) Close() error                                            { return nil }

func newTestRuntime(tr *fakeTransport, h host.Host) *Runtime {
	node := paxos.NewNode(1, 3, journal.NewMemory(), nil, paxos.Progress{}, 0)
	clk := clock.NewFake(1)
	return New(1, node, tr, h, clk, clk, 50*time.Millisecond, 100*time.Millisecond)
}

func TestClientRegistryRoundTrip(t *testing.T) {
	reg := NewClientRegistry()
	handle, replies := reg.register()

	reg.reply(handle, clientReply{bytes: []byte("ok")})
	select {
	case r := <-replies:
		require.Equal(t, []byte("ok"), r.bytes)
	default:
		t.Fatal("expected a buffered reply")
	}

	reg.forget(handle)
	reg.reply(handle, clientReply{bytes: []byte("too late")})
	select {
	case <-replies:
		t.Fatal("forgotten handle must not receive further replies")
	default:
	}
}

func TestClientRegistryUnknownHandleIsANoop(t *testing.T) {
	reg := NewClientRegistry()
	require.NotPanics(t, func() {
		reg.reply(paxos.ClientHandle("never-registered"), clientReply{})
	})
}

func TestRuntimeSendRoutesClientRepliesWithoutTouchingTransport(t *testing.T) {
	tr := &fakeTransport{}
	r := newTestRuntime(tr, host.NewMemory())

	handle, replies := r.clients.register()
	r.send(context.Background(), paxos.Envelope{ToClient: handle, Msg: paxos.NotLeader{Node: 2}})

	require.Empty(t, tr.sent)
	require.Empty(t, tr.broadcast)
	reply := <-replies
	require.Equal(t, []byte("NOTLEADER 2"), reply.bytes)
}

func TestRuntimeSendRoutesNetworkMessagesToTransport(t *testing.T) {
	tr := &fakeTransport{}
	r := newTestRuntime(tr, host.NewMemory())

	r.send(context.Background(), paxos.Envelope{To: 2, Msg: paxos.Prepare{}})
	require.Len(t, tr.sent, 1)

	r.send(context.Background(), paxos.Envelope{Broadcast: true, Msg: paxos.Commit{}})
	require.Len(t, tr.broadcast, 1)
}

func TestRuntimeDeliverForwardsHostReplyToWaitingClient(t *testing.T) {
	tr := &fakeTransport{}
	r := newTestRuntime(tr, host.NewMemory())

	handle, replies := r.clients.register()
	cmd := host.EncodeCommand(host.Command{Verb: "SET", Key: "k", Args: []string{"v"}})
	r.deliver(context.Background(), paxos.Delivery{LogIndex: 1, Value: paxos.CommandValue{MsgID: uuid.New(), Bytes: cmd}, ReplyTo: handle})

	reply := <-replies
	require.NoError(t, reply.err)
	require.Equal(t, []byte("OK"), reply.bytes)
}

func TestRuntimeDeliverWithNoWaitingClientStillAppliesToHost(t *testing.T) {
	tr := &fakeTransport{}
	h := host.NewMemory()
	r := newTestRuntime(tr, h)

	cmd := host.EncodeCommand(host.Command{Verb: "SET", Key: "k", Args: []string{"v"}})
	r.deliver(context.Background(), paxos.Delivery{LogIndex: 1, Value: paxos.CommandValue{MsgID: uuid.New(), Bytes: cmd}})

	got, err := h.Deliver(context.Background(), 2, paxos.CommandValue{MsgID: uuid.New(), Bytes: host.EncodeCommand(host.Command{Verb: "GET", Key: "k"})})
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestRuntimeStepExecutesOutboundEffects(t *testing.T) {
	tr := &fakeTransport{}
	r := newTestRuntime(tr, host.NewMemory())

	err := r.step(context.Background(), paxos.CheckTimeout{Now: 10, NextInterval: 50})
	require.NoError(t, err)
	require.Len(t, tr.broadcast, 1, "a follower's first CheckTimeout broadcasts its min-prepare probe")
}

func TestSubmitBlocksUntilReplyThenUnblocks(t *testing.T) {
	tr := &fakeTransport{}
	r := newTestRuntime(tr, host.NewMemory())

	done := make(chan struct{})
	var reply []byte
	var submitErr error
	go func() {
		reply, submitErr = r.Submit(context.Background(), paxos.CommandValue{MsgID: uuid.New(), Bytes: []byte("GET k")})
		close(done)
	}()

	var ev paxos.Event
	select {
	case ev = <-r.events:
	case <-time.After(time.Second):
		t.Fatal("Submit never enqueued an event")
	}
	cmdEv, ok := ev.(paxos.InboundCommand)
	require.True(t, ok)
	r.clients.reply(cmdEv.Client, clientReply{bytes: []byte("bar")})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit never returned")
	}
	require.NoError(t, submitErr)
	require.Equal(t, []byte("bar"), reply)
}

func TestSubmitReturnsContextErrorWhenCancelled(t *testing.T) {
	tr := &fakeTransport{}
	r := newTestRuntime(tr, host.NewMemory())
	// Fill the events channel so Submit's enqueue select has to pick
	// ctx.Done() instead.
	for i := 0; i < cap(r.events); i++ {
		r.events <- paxos.HeartBeat{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Submit(ctx, paxos.CommandValue{MsgID: uuid.New()})
	require.ErrorIs(t, err, context.Canceled)
}
