package paxos

import (
	"context"

	"github.com/latticedb/lattice/internal/ballot"
)

// handleRetransmitRequest implements spec §4.10's request side: every
// journaled Accept after fromIdx, split into the already-committed
// range and the still-proposed range above it.
func (n *Node) handleRetransmitRequest(ctx context.Context, msg RetransmitRequest) (Effects, error) {
	var eff Effects

	var committed []Accept
	for idx := msg.FromLogIndex + 1; idx <= n.state.Progress.HighestCommitted.LogIndex; idx++ {
		if a := n.lookupAccepted(ctx, idx); a != nil {
			committed = append(committed, *a)
		}
	}

	var proposed []Accept
	if _, max, ok, err := n.journal.Bounds(ctx); err == nil && ok {
		for idx := n.state.Progress.HighestCommitted.LogIndex + 1; idx <= max; idx++ {
			if a := n.lookupAccepted(ctx, idx); a != nil {
				proposed = append(proposed, *a)
			}
		}
	}

	eff.send(toNode(msg.From, RetransmitResponse{
		From:      n.self,
		To:        msg.From,
		Committed: committed,
		Proposed:  proposed,
	}))
	return eff, nil
}

// handleRetransmitResponse implements spec §4.10's response side: the
// only mechanism through which a lagging Follower crosses a gap in its
// local journal. Each committed entry durably saves progress as it
// lands rather than once at the end — simpler, and still at most one
// extra durable write per caught-up slot.
func (n *Node) handleRetransmitResponse(ctx context.Context, from ballot.NodeID, msg RetransmitResponse) (Effects, error) {
	var eff Effects

	for _, a := range msg.Committed {
		if a.ID.LogIndex != n.state.Progress.HighestCommitted.LogIndex+1 {
			break
		}
		if err := n.journal.Accept(ctx, a); err != nil {
			return Effects{}, fatalf(err, "journal accept retransmitted commit %s", a.ID)
		}
		if err := n.advanceCommitted(ctx, a.ID); err != nil {
			return Effects{}, err
		}
		eff.deliver(Delivery{LogIndex: a.ID.LogIndex, Value: a.Value})
	}

	for _, a := range msg.Proposed {
		if a.ID.Number.Compare(n.state.Progress.HighestPromised) >= 0 && a.ID.LogIndex > n.state.Progress.HighestCommitted.LogIndex {
			if err := n.journal.Accept(ctx, a); err != nil {
				return Effects{}, fatalf(err, "journal accept retransmitted proposal %s", a.ID)
			}
		}
	}

	n.statsInc("retransmit.response.applied.count", 1)
	return eff, nil
}
