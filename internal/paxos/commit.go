package paxos

import (
	"context"

	"github.com/latticedb/lattice/internal/ballot"
)

// handleCommit implements spec §4.4, the Follower commit path. The
// heartbeat/timeout refresh in step 1 and the fast-forward in step 3
// are each reused elsewhere: refresh by nothing else (only a Commit
// ever carries heartbeat evidence), fast-forward by the Recoverer/
// Leader "return to follower on higher commit" path in
// handleCommitAsRecovererOrLeader below.
func (n *Node) handleCommit(ctx context.Context, from ballot.NodeID, msg Commit, now, nextInterval int64) (Effects, error) {
	var eff Effects

	if n.role != Follower {
		return n.handleCommitAsRecovererOrLeader(ctx, msg)
	}

	if msg.Heartbeat > n.state.LeaderHeartbeat || msg.HighestCommitted.Number.Compare(n.state.Progress.HighestPromised) > 0 {
		if msg.Heartbeat > n.state.LeaderHeartbeat {
			n.state.LeaderHeartbeat = msg.Heartbeat
		}
		n.state.Timeout = now + nextInterval
		n.state.clearPrepareProbe()
	}

	if err := n.commitFastForward(ctx, &eff, msg.HighestCommitted); err != nil {
		return Effects{}, err
	}

	if n.state.Progress.HighestCommitted.LogIndex < msg.HighestCommitted.LogIndex {
		eff.send(toNode(from, RetransmitRequest{
			From:         n.self,
			To:           from,
			FromLogIndex: n.state.Progress.HighestCommitted.LogIndex,
		}))
	}

	return eff, nil
}

// handleCommitAsRecovererOrLeader implements spec §4.9's "return to
// follower on higher commit": a Commit evidencing a strictly higher
// epoch or watermark than this node's own recovery means another
// leader has already won; catch up and step aside.
func (n *Node) handleCommitAsRecovererOrLeader(ctx context.Context, msg Commit) (Effects, error) {
	var eff Effects

	higher := msg.HighestCommitted.LogIndex > n.state.Progress.HighestCommitted.LogIndex
	if !higher && msg.HighestCommitted.LogIndex == n.state.Progress.HighestCommitted.LogIndex && n.state.Epoch != nil {
		higher = msg.HighestCommitted.Number.Compare(*n.state.Epoch) > 0
	}
	if !higher {
		return eff, nil
	}

	if err := n.commitFastForward(ctx, &eff, msg.HighestCommitted); err != nil {
		return Effects{}, err
	}
	n.backdown(&eff, "observed commit from a higher epoch")
	return eff, nil
}

// commitFastForward advances highestCommitted toward target one slot
// at a time, delivering each value to the host and durably saving
// progress per slot, stopping at the first gap or ballot mismatch
// (spec §4.4 step 3, strictness resolved in SPEC_FULL.md's Open
// Question 1: a journaled Accept only counts if its ballot equals
// target.Number). It is a no-op if target is not ahead of the current
// watermark (spec §4.4 step 2) and is safe to call twice with the
// same target (spec §8's "applying the same Commit twice is a
// no-op").
func (n *Node) commitFastForward(ctx context.Context, eff *Effects, target ballot.SlotID) error {
	for idx := n.state.Progress.HighestCommitted.LogIndex + 1; idx <= target.LogIndex; idx++ {
		accepted := n.lookupAccepted(ctx, idx)
		if accepted == nil || accepted.ID.Number.Compare(target.Number) != 0 {
			break
		}
		eff.deliver(Delivery{LogIndex: idx, Value: accepted.Value})
		if err := n.advanceCommitted(ctx, accepted.ID); err != nil {
			return err
		}
	}
	return nil
}
