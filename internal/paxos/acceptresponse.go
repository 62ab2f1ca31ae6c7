package paxos

import (
	"context"

	"github.com/latticedb/lattice/internal/ballot"
)

// handleAcceptResponse implements spec §4.7, shared by Recoverer and
// Leader. A majority nack ends the round immediately via backdown; a
// majority ack only marks the slot decided — advancing
// highestCommitted still waits for every lower slot to close first,
// so out-of-order majorities accumulate in AcceptResponses until the
// prefix is contiguous.
func (n *Node) handleAcceptResponse(ctx context.Context, vote AcceptVote, id ballot.SlotID) (Effects, error) {
	var eff Effects

	slot, ok := n.state.AcceptResponses[id.LogIndex]
	if !ok || slot.ID != id {
		return eff, nil
	}
	slot.Votes[vote.From] = vote

	var acks, nacks int
	for _, v := range slot.Votes {
		if v.Ack {
			acks++
		} else {
			nacks++
		}
	}

	if nacks >= n.quorum() {
		n.backdown(&eff, "majority nack on accept")
		return eff, nil
	}
	if acks >= n.quorum() {
		slot.Decided = true
	}

	if err := n.commitDecidedPrefix(ctx, &eff); err != nil {
		return Effects{}, err
	}
	return eff, nil
}

// commitDecidedPrefix advances highestCommitted through every
// contiguous, majority-decided slot starting right after the current
// watermark, delivering each value and answering its waiting client.
func (n *Node) commitDecidedPrefix(ctx context.Context, eff *Effects) error {
	for {
		idx := n.state.Progress.HighestCommitted.LogIndex + 1
		slot, ok := n.state.AcceptResponses[idx]
		if !ok || !slot.Decided {
			return nil
		}
		if err := n.advanceCommitted(ctx, slot.ID); err != nil {
			return err
		}
		delivery := Delivery{LogIndex: idx, Value: slot.Accept.Value}
		if cmd, waiting := n.state.ClientCommands[idx]; waiting {
			delivery.ReplyTo = cmd.Client
			delete(n.state.ClientCommands, idx)
		}
		eff.deliver(delivery)
		n.statsInc("paxos.commit.count", 1)
		delete(n.state.AcceptResponses, idx)
	}
}
