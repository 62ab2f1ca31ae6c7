package paxos

import (
	"context"

	"github.com/latticedb/lattice/internal/ballot"
)

// lenses.go collects the small, pure-ish mutators shared across
// handlers — the systems-language stand-in for the teacher's (and the
// original's) immutable lenses over PaxosData, per spec §9: "a
// systems implementation may mutate a single NodeState owned by the
// event loop; the contract is that no partially-updated state is ever
// observed across an event boundary". Every exported mutation here is
// only ever called from within one Apply call.

// highestAcceptedIndex returns the highest slot this node has a
// journaled Accept for, used by PrepareAck/PrepareNack and by takeover
// (spec §4.1's recoverPrepares).
func (n *Node) highestAcceptedIndex(ctx context.Context) int64 {
	_, max, ok, err := n.journal.Bounds(ctx)
	if err != nil || !ok {
		return n.state.Progress.HighestCommitted.LogIndex
	}
	return max
}

func (n *Node) lookupAccepted(ctx context.Context, logIndex int64) *Accept {
	a, ok, err := n.journal.Accepted(ctx, logIndex)
	if err != nil || !ok {
		return nil
	}
	return &a
}

// raisePromise durably raises HighestPromised to number, per P1/P2. It
// is the caller's job to have already checked number is actually
// higher.
func (n *Node) raisePromise(ctx context.Context, number ballot.BallotNumber) error {
	n.state.Progress.HighestPromised = number
	if err := n.journal.Save(ctx, n.state.Progress); err != nil {
		return fatalf(err, "save progress while raising promise to %s", number)
	}
	return nil
}

// advanceCommitted durably advances HighestCommitted to id. Caller
// must have already verified id.LogIndex is the very next slot to
// close (log contiguity, spec invariant 4).
func (n *Node) advanceCommitted(ctx context.Context, id ballot.SlotID) error {
	n.state.Progress.HighestCommitted = id
	if err := n.journal.Save(ctx, n.state.Progress); err != nil {
		return fatalf(err, "save progress while committing %s", id)
	}
	return nil
}

// backdown transitions to Follower from any role, clearing all
// in-flight recovery/leadership state and failing any client commands
// that were still waiting on this node's leadership — spec §4.2 ("a
// higher promise forbids this node from continuing as leader/
// recoverer"), §4.7/§4.9 (majority nack / higher commit).
func (n *Node) backdown(eff *Effects, reason string) {
	for _, cmd := range n.state.ClientCommands {
		eff.send(toClient(cmd.Client, NoLongerLeader{MsgID: cmd.Value.MsgID, Reason: reason}))
	}
	wasLeaderlike := n.role != Follower
	n.state.clearAcceptRounds()
	n.state.clearPrepareProbe()
	n.role = Follower
	if wasLeaderlike {
		logger.Infof("node %d backing down to follower: %s", n.self, reason)
		n.statsInc("paxos.backdown.count", 1)
	}
}
