package paxos

import (
	"context"

	"github.com/google/uuid"

	"github.com/latticedb/lattice/internal/ballot"
)

// noopValue fills every free recovery slot (one where no responder in
// the majority reported an accepted value), including the newest slot
// being recovered — see handleRecovererPrepareResponse below. uuid.Nil
// marks it as internal: Host never
// sees a clientCommands entry for it and no client ever waits on its
// reply.
var noopValue = CommandValue{MsgID: uuid.Nil}

// handleRecovererPrepareResponse implements spec §4.6. Resolution of
// the spec's free-slot language: this implementation always mints the
// slot's Accept as soon as it has a majority ack, using a no-op value
// when nothing was previously accepted there — including for the
// newest recovered slot, which simplifies the slot bookkeeping (no
// slot is held open waiting for a client command that may never
// arrive) at the cost of one wasted no-op when the new leader's first
// client command would otherwise have landed exactly there.
func (n *Node) handleRecovererPrepareResponse(ctx context.Context, vote PrepareVote, id ballot.SlotID, now, nextInterval int64) (Effects, error) {
	var eff Effects

	slot, ok := n.state.PrepareResponses[id.LogIndex]
	if !ok || slot.ID != id {
		return eff, nil
	}

	if vote.Progress.HighestCommitted.LogIndex > n.state.Progress.HighestCommitted.LogIndex {
		eff.send(toNode(vote.From, RetransmitRequest{
			From:         n.self,
			To:           vote.From,
			FromLogIndex: n.state.Progress.HighestCommitted.LogIndex,
		}))
		n.backdown(&eff, "recovery prepare responder ahead on commit")
		return eff, nil
	}

	slot.Votes[vote.From] = vote
	if len(slot.Votes) < n.quorum() {
		return eff, nil
	}

	for _, v := range slot.Votes {
		if !v.Ack {
			n.backdown(&eff, "majority nack on recovery prepare")
			return eff, nil
		}
	}

	var chosen *Accept
	for _, v := range slot.Votes {
		if v.Accepted != nil && (chosen == nil || v.Accepted.ID.Number.Compare(chosen.ID.Number) > 0) {
			chosen = v.Accepted
		}
	}
	value := noopValue
	if chosen != nil {
		value = chosen.Value
	}

	newID := ballot.SlotID{From: n.self, Number: *n.state.Epoch, LogIndex: id.LogIndex}
	if err := n.journal.Accept(ctx, Accept{ID: newID, Value: value}); err != nil {
		return Effects{}, fatalf(err, "self-accept recovery value at %s", newID)
	}

	n.state.AcceptResponses[newID.LogIndex] = &AcceptSlotState{
		ID:      newID,
		Accept:  Accept{ID: newID, Value: value},
		Timeout: now + nextInterval,
		Votes: map[ballot.NodeID]AcceptVote{
			n.self: {From: n.self, Ack: true, Progress: n.state.Progress},
		},
	}
	eff.send(broadcast(Accept{ID: newID, Value: value}))
	n.statsInc("recovery.accept.broadcast.count", 1)

	delete(n.state.PrepareResponses, id.LogIndex)
	if len(n.state.PrepareResponses) == 0 {
		n.role = Leader
		logger.Infof("node %d promoted to leader at epoch %s", n.self, *n.state.Epoch)
		n.statsInc("paxos.promote_leader.count", 1)
	}

	return eff, nil
}
