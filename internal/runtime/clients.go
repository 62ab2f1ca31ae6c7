package runtime

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/latticedb/lattice/internal/paxos"
)

// clientReply is what a registered client handle eventually receives:
// either a host reply, or an error decoding/applying its command.
type clientReply struct {
	bytes []byte
	err   error
}

// ClientRegistry maps the opaque paxos.ClientHandle values Submit hands
// out to a channel the waiting goroutine is blocked on. One per
// Runtime; every handle is used for exactly one Submit call and
// forgotten afterward, so this never grows unbounded.
type ClientRegistry struct {
	mu      sync.Mutex
	waiting map[paxos.ClientHandle]chan clientReply
	next    uint64
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{waiting: make(map[paxos.ClientHandle]chan clientReply)}
}

func (c *ClientRegistry) register() (paxos.ClientHandle, <-chan clientReply) {
	id := atomic.AddUint64(&c.next, 1)
	handle := paxos.ClientHandle(fmt.Sprintf("local-%d", id))
	ch := make(chan clientReply, 1)

	c.mu.Lock()
	c.waiting[handle] = ch
	c.mu.Unlock()

	return handle, ch
}

func (c *ClientRegistry) forget(handle paxos.ClientHandle) {
	c.mu.Lock()
	delete(c.waiting, handle)
	c.mu.Unlock()
}

// reply delivers a reply to handle's waiter, if it is still
// registered. A handle can legitimately be gone already (Submit's
// context was cancelled and it stopped waiting) — that's not an error,
// just a dropped reply.
func (c *ClientRegistry) reply(handle paxos.ClientHandle, r clientReply) {
	c.mu.Lock()
	ch, ok := c.waiting[handle]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- r:
	default:
	}
}
