package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/latticedb/lattice/internal/ballot"
	"github.com/latticedb/lattice/internal/codec"
	"github.com/latticedb/lattice/internal/paxos"
	"github.com/latticedb/lattice/internal/wire"
)

// TCP is a persistent-connection transport: one outbound connection
// per peer, dialed lazily and redialed on write failure, plus a
// listener accepting one inbound connection per peer. Grounded on the
// teacher's src/cluster/{cluster,node}.go ConnectionPool and its
// length-prefixed message.WriteMessage/ReadMessage framing, simplified
// from request/response (RemoteNode.SendMessage blocks for a reply) to
// fire-and-forget: every Paxos response is itself a fresh message sent
// back over the responder's own outbound connection, never a reply on
// the same socket.
type TCP struct {
	self ballot.NodeID
	peers map[ballot.NodeID]string

	mu      sync.Mutex
	conns   map[ballot.NodeID]net.Conn
	handler func(from ballot.NodeID, msg paxos.Message)

	listener net.Listener
}

// NewTCP builds a transport for self, with peers mapping every other
// cluster member's NodeID to its listen address.
func NewTCP(self ballot.NodeID, peers map[ballot.NodeID]string) *TCP {
	return &TCP{self: self, peers: peers, conns: make(map[ballot.NodeID]net.Conn)}
}

// Listen starts accepting inbound peer connections on addr. Must be
// called before peers can reach this node.
func (t *TCP) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	t.listener = l
	go t.acceptLoop()
	return nil
}

func (t *TCP) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		go t.readLoop(conn)
	}
}

// readLoop expects a one-time handshake frame (the peer's NodeID)
// followed by a stream of message frames.
func (t *TCP) readLoop(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	peerIDRaw, err := wire.ReadUint64(r)
	if err != nil {
		return
	}
	peerID := ballot.NodeID(peerIDRaw)

	for {
		b, err := wire.ReadFieldBytes(r)
		if err != nil {
			return
		}
		msg, err := codec.DecodeMessage(b)
		if err != nil {
			continue
		}
		t.mu.Lock()
		h := t.handler
		t.mu.Unlock()
		if h != nil {
			h(peerID, msg)
		}
	}
}

func (t *TCP) SetHandler(h func(from ballot.NodeID, msg paxos.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *TCP) getConn(to ballot.NodeID) (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if conn, ok := t.conns[to]; ok {
		return conn, nil
	}
	addr, ok := t.peers[to]
	if !ok {
		return nil, fmt.Errorf("transport: unknown peer %d", to)
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	w := bufio.NewWriter(conn)
	if err := wire.WriteUint64(w, uint64(t.self)); err != nil {
		conn.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		conn.Close()
		return nil, err
	}
	t.conns[to] = conn
	return conn, nil
}

func (t *TCP) dropConn(to ballot.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.conns[to]; ok {
		conn.Close()
		delete(t.conns, to)
	}
}

func (t *TCP) Send(ctx context.Context, to ballot.NodeID, env paxos.Envelope) error {
	conn, err := t.getConn(to)
	if err != nil {
		return err
	}
	b, err := codec.EncodeMessage(env.Msg)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(conn)
	if err := wire.WriteFieldBytes(w, b); err != nil {
		t.dropConn(to)
		return err
	}
	if err := w.Flush(); err != nil {
		t.dropConn(to)
		return err
	}
	return nil
}

func (t *TCP) Broadcast(ctx context.Context, env paxos.Envelope) error {
	var firstErr error
	for id := range t.peers {
		if err := t.Send(ctx, id, env); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, conn := range t.conns {
		conn.Close()
	}
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}
