package paxos

import (
	"context"
	"errors"
	"math"

	"github.com/latticedb/lattice/internal/ballot"
)

// handleCommandValue implements spec §4.9's CommandValue bullet. Any
// role other than Leader cannot originate a proposal for the client —
// spec §7's client-facing error case.
func (n *Node) handleCommandValue(ctx context.Context, e InboundCommand) (Effects, error) {
	var eff Effects

	if n.role != Leader {
		eff.send(toClient(e.Client, NotLeader{Node: n.self, MsgID: e.Value.MsgID}))
		return eff, nil
	}

	if n.state.Epoch == nil || n.state.Progress.HighestPromised.Compare(*n.state.Epoch) > 0 {
		return Effects{}, fatalf(errors.New("leader invariant L1 violated"), "node %d epoch=%v highestPromised=%s", n.self, n.state.Epoch, n.state.Progress.HighestPromised)
	}
	epoch := *n.state.Epoch

	nextLogIndex := n.state.Progress.HighestCommitted.LogIndex + 1
	for idx := range n.state.AcceptResponses {
		if idx+1 > nextLogIndex {
			nextLogIndex = idx + 1
		}
	}
	if nextLogIndex == math.MaxInt64 {
		eff.send(toClient(e.Client, NotLeader{Node: n.self, MsgID: e.Value.MsgID}))
		return eff, nil
	}

	newID := ballot.SlotID{From: n.self, Number: epoch, LogIndex: nextLogIndex}
	if err := n.journal.Accept(ctx, Accept{ID: newID, Value: e.Value}); err != nil {
		return Effects{}, fatalf(err, "self-accept client command at %s", newID)
	}

	n.state.ClientCommands[nextLogIndex] = ClientCommandEntry{Client: e.Client, Value: e.Value}
	n.state.AcceptResponses[nextLogIndex] = &AcceptSlotState{
		ID:      newID,
		Accept:  Accept{ID: newID, Value: e.Value},
		Timeout: e.Now + e.NextInterval,
		Votes: map[ballot.NodeID]AcceptVote{
			n.self: {From: n.self, Ack: true, Progress: n.state.Progress},
		},
	}
	eff.send(broadcast(Accept{ID: newID, Value: e.Value}))
	n.statsInc("leader.command.accept.count", 1)
	return eff, nil
}

// handleHeartBeat implements spec §4.9's HeartBeat bullet — the only
// role that broadcasts Commit proactively; Followers and Recoverers
// only learn of commits this way or via RetransmitResponse.
func (n *Node) handleHeartBeat(ctx context.Context, e HeartBeat) (Effects, error) {
	var eff Effects
	if n.role != Leader {
		return eff, nil
	}
	eff.send(broadcast(Commit{HighestCommitted: n.state.Progress.HighestCommitted, Heartbeat: e.Now}))
	n.statsInc("leader.heartbeat.broadcast.count", 1)
	return eff, nil
}
