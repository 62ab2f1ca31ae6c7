// Package runtime is the event loop that drives one paxos.Node: it
// owns the single goroutine Apply's single-threaded contract requires,
// turns transport callbacks and timer ticks into paxos.Event values,
// and executes the Effects each Apply call returns (sends, host
// deliveries, client replies). Grounded on the teacher's
// src/consensus/manager.go-style single-goroutine Manager loop (every
// scope mutation happens on one thread, fed by a channel) generalized
// from per-scope dispatch to the per-node event queue spec.md §5/§9
// describe.
package runtime

import (
	"context"
	"fmt"
	"time"

	logging "github.com/op/go-logging"

	"github.com/latticedb/lattice/internal/ballot"
	"github.com/latticedb/lattice/internal/clock"
	"github.com/latticedb/lattice/internal/host"
	"github.com/latticedb/lattice/internal/paxos"
	"github.com/latticedb/lattice/internal/transport"
)

var logger *logging.Logger

func init() {
	logger = logging.MustGetLogger("runtime")
}

// Runtime wires one paxos.Node to its collaborators and runs its event
// loop. Not safe for concurrent use beyond its own Run goroutine and
// the Submit/enqueue entry points, which are.
type Runtime struct {
	self ballot.NodeID
	node *paxos.Node

	transport transport.Transport
	host      host.Host
	clk       clock.Clock
	rnd       clock.Random
	clients   *ClientRegistry

	timeoutMin time.Duration
	timeoutMax time.Duration
	pollEvery  time.Duration

	events chan paxos.Event
}

// New builds a Runtime. timeoutMin/timeoutMax bound the randomized
// interval used to reseed CheckTimeout deadlines (spec §9's "each
// CheckTimeout/Inbound event carries the next interval to use, chosen
// by the runtime, not the core").
func New(self ballot.NodeID, node *paxos.Node, tr transport.Transport, h host.Host, clk clock.Clock, rnd clock.Random, timeoutMin, timeoutMax time.Duration) *Runtime {
	return &Runtime{
		self:       self,
		node:       node,
		transport:  tr,
		host:       h,
		clk:        clk,
		rnd:        rnd,
		clients:    NewClientRegistry(),
		timeoutMin: timeoutMin,
		timeoutMax: timeoutMax,
		pollEvery:  20 * time.Millisecond,
		events:     make(chan paxos.Event, 256),
	}
}

// nextInterval picks a randomized duration in [timeoutMin, timeoutMax),
// in milliseconds, matching the clock/journal's int64-millis time base.
func (r *Runtime) nextInterval() int64 {
	return r.rnd.Uniform(r.timeoutMin.Milliseconds(), r.timeoutMax.Milliseconds())
}

// Submit enqueues a client command and blocks until the runtime has
// routed a reply (or the context is cancelled). Safe to call from any
// goroutine; multiple in-flight Submits are fine, each with its own
// ClientHandle.
func (r *Runtime) Submit(ctx context.Context, value paxos.CommandValue) ([]byte, error) {
	handle, replies := r.clients.register()
	defer r.clients.forget(handle)

	select {
	case r.events <- paxos.InboundCommand{Client: handle, Value: value, Now: r.clk.Now(), NextInterval: r.nextInterval()}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-replies:
		return reply.bytes, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run starts the ticker and transport handler and processes events
// until ctx is cancelled. It returns the first *paxos.FatalError the
// core reports, per spec §7: a fatal error means this node must stop
// consuming events until restarted from its journal.
func (r *Runtime) Run(ctx context.Context) error {
	r.transport.SetHandler(func(from ballot.NodeID, msg paxos.Message) {
		select {
		case r.events <- paxos.Inbound{From: from, Msg: msg, Now: r.clk.Now(), NextInterval: r.nextInterval()}:
		case <-ctx.Done():
		}
	})

	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	// Spec §5: three heartbeats must fit inside the minimum follower
	// timeout, so a live leader's evidence reaches a probing follower
	// before its own min-prepare probe would otherwise fire.
	heartbeat := time.NewTicker(r.timeoutMin / 4)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.step(ctx, paxos.CheckTimeout{Now: r.clk.Now(), NextInterval: r.nextInterval()}); err != nil {
				return err
			}
		case <-heartbeat.C:
			if err := r.step(ctx, paxos.HeartBeat{Now: r.clk.Now()}); err != nil {
				return err
			}
		case ev := <-r.events:
			if err := r.step(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (r *Runtime) step(ctx context.Context, ev paxos.Event) error {
	eff, err := r.node.Apply(ctx, ev)
	if err != nil {
		logger.Errorf("node %d: fatal error applying %T: %v", r.self, ev, err)
		return err
	}
	r.execute(ctx, eff)
	return nil
}

// execute runs everything an Apply call deferred: every network send
// first, then every host delivery in log order, matching spec §5's
// "Effects only carries what must happen after the journal write".
func (r *Runtime) execute(ctx context.Context, eff paxos.Effects) {
	for _, env := range eff.Outbound {
		r.send(ctx, env)
	}
	for _, d := range eff.Delivered {
		r.deliver(ctx, d)
	}
}

func (r *Runtime) send(ctx context.Context, env paxos.Envelope) {
	if env.ToClient != "" {
		r.clients.reply(env.ToClient, clientReply{bytes: encodeClientMessage(env.Msg)})
		return
	}
	var err error
	if env.Broadcast {
		err = r.transport.Broadcast(ctx, env)
	} else {
		err = r.transport.Send(ctx, env.To, env)
	}
	if err != nil {
		logger.Warningf("node %d: send %T failed: %v", r.self, env.Msg, err)
	}
}

func (r *Runtime) deliver(ctx context.Context, d paxos.Delivery) {
	reply, err := r.host.Deliver(ctx, d.LogIndex, d.Value)
	if d.ReplyTo == "" {
		if err != nil {
			logger.Warningf("node %d: deliver slot %d: %v", r.self, d.LogIndex, err)
		}
		return
	}
	r.clients.reply(d.ReplyTo, clientReply{bytes: reply, err: err})
}

// encodeClientMessage turns a NotLeader/NoLongerLeader wire message
// into the bytes Submit's caller sees — there is no client transport
// codec beyond reporting which of the two happened, since spec §9
// only requires the client retry with a fresh msgId either way.
func encodeClientMessage(msg paxos.Message) []byte {
	switch m := msg.(type) {
	case paxos.NotLeader:
		return []byte(fmt.Sprintf("NOTLEADER %d", m.Node))
	case paxos.NoLongerLeader:
		return []byte(fmt.Sprintf("NOLONGERLEADER %s", m.Reason))
	default:
		return nil
	}
}
