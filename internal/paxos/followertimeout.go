package paxos

import (
	"context"

	"github.com/latticedb/lattice/internal/ballot"
)

// handleCheckTimeout implements the clock ≥ timeout branch of spec
// §4.5 (Follower) and dispatches to resend.go's §4.8 rebroadcast logic
// for Recoverer/Leader. A tick that arrives before the deadline is a
// no-op — the runtime is free to poll more often than the deadline it
// was told.
func (n *Node) handleCheckTimeout(ctx context.Context, e CheckTimeout) (Effects, error) {
	if e.Now < n.state.Timeout {
		return Effects{}, nil
	}
	if n.role == Follower {
		return n.followerCheckTimeout(ctx, e)
	}
	return n.resendCheckTimeout(ctx, e)
}

// followerCheckTimeout implements spec §4.5's first bullet: seed or
// rebroadcast the min-prepare liveness probe.
func (n *Node) followerCheckTimeout(ctx context.Context, e CheckTimeout) (Effects, error) {
	var eff Effects

	slot, probing := n.state.PrepareResponses[ballot.MinLogIndex]
	if !probing {
		id := ballot.MinPrepareID(n.self)
		slot = &PrepareSlotState{
			ID: id,
			Votes: map[ballot.NodeID]PrepareVote{
				n.self: n.selfPrepareVote(ctx, false, nil),
			},
		}
		n.state.PrepareResponses[ballot.MinLogIndex] = slot
		n.statsInc("follower.probe.broadcast.count", 1)
	}
	eff.send(broadcast(Prepare{ID: slot.ID}))
	n.state.Timeout = e.Now + e.NextInterval
	return eff, nil
}

func (n *Node) selfPrepareVote(ctx context.Context, ack bool, accepted *Accept) PrepareVote {
	return PrepareVote{
		From:                 n.self,
		Ack:                  ack,
		Progress:             n.state.Progress,
		HighestAcceptedIndex: n.highestAcceptedIndex(ctx),
		LeaderHeartbeat:      n.state.LeaderHeartbeat,
		Accepted:             accepted,
	}
}

// handlePrepareResponse routes a normalized PrepareAck/PrepareNack per
// role: a Follower is either probing (§4.5) or the response is stale;
// a Recoverer is running its recovery round (§4.6); a Leader has
// already cleared its prepare phase and ignores it (§4.9).
func (n *Node) handlePrepareResponse(ctx context.Context, vote PrepareVote, id ballot.SlotID, now, nextInterval int64) (Effects, error) {
	switch n.role {
	case Follower:
		return n.handleFollowerProbeResponse(ctx, vote, id, now, nextInterval)
	case Recoverer:
		return n.handleRecovererPrepareResponse(ctx, vote, id, now, nextInterval)
	default:
		return Effects{}, nil
	}
}

// handleFollowerProbeResponse implements spec §4.5's PrepareResponse
// bullets while prepareResponses holds only the min-prepare probe.
func (n *Node) handleFollowerProbeResponse(ctx context.Context, vote PrepareVote, id ballot.SlotID, now, nextInterval int64) (Effects, error) {
	var eff Effects

	slot, probing := n.state.PrepareResponses[ballot.MinLogIndex]
	if !probing || slot.ID != id {
		return eff, nil
	}

	if vote.Progress.HighestCommitted.LogIndex > n.state.Progress.HighestCommitted.LogIndex {
		eff.send(toNode(vote.From, RetransmitRequest{
			From:         n.self,
			To:           vote.From,
			FromLogIndex: n.state.Progress.HighestCommitted.LogIndex,
		}))
		n.state.clearPrepareProbe()
		return eff, nil
	}

	slot.Votes[vote.From] = vote
	if len(slot.Votes) < n.quorum() {
		return eff, nil
	}

	var evidence []int64
	for _, v := range slot.Votes {
		if v.From == n.self {
			continue
		}
		if !v.Ack && v.LeaderHeartbeat > n.state.LeaderHeartbeat {
			evidence = append(evidence, v.LeaderHeartbeat)
		}
	}

	switch {
	case len(evidence) == 0:
		if err := n.takeover(ctx, &eff, now, nextInterval); err != nil {
			return Effects{}, err
		}
		return eff, nil
	case len(evidence)+1 >= n.quorum():
		max := evidence[0]
		for _, h := range evidence[1:] {
			if h > max {
				max = h
			}
		}
		n.state.LeaderHeartbeat = max
		n.state.clearPrepareProbe()
		return eff, nil
	default:
		if err := n.takeover(ctx, &eff, now, nextInterval); err != nil {
			return Effects{}, err
		}
		return eff, nil
	}
}

// recoverPrepares implements spec §4.1's helper exactly: one Prepare
// per slot in (committedIdx .. max(committedIdx+1, acceptedIdx+1)],
// all bearing the same freshly raised ballot. Always yields ≥1
// Prepare, per spec §8's round-trip law.
func recoverPrepares(highest ballot.BallotNumber, committedIdx, acceptedIdx int64, self ballot.NodeID) []Prepare {
	next := ballot.BallotNumber{Counter: highest.Counter + 1, Node: self}
	from := committedIdx + 1
	to := from
	if acceptedIdx+1 > to {
		to = acceptedIdx + 1
	}
	prepares := make([]Prepare, 0, to-from+1)
	for idx := from; idx <= to; idx++ {
		prepares = append(prepares, Prepare{ID: ballot.SlotID{From: self, Number: next, LogIndex: idx}})
	}
	return prepares
}

// takeover implements spec §4.5 step 3: mint recovery prepares, raise
// the promise, self-vote each one from the local journal, broadcast,
// and transition to Recoverer.
func (n *Node) takeover(ctx context.Context, eff *Effects, now, nextInterval int64) error {
	highest := n.state.Progress.HighestPromised
	if n.state.Progress.HighestCommitted.Number.Compare(highest) > 0 {
		highest = n.state.Progress.HighestCommitted.Number
	}
	acceptedIdx := n.highestAcceptedIndex(ctx)
	prepares := recoverPrepares(highest, n.state.Progress.HighestCommitted.LogIndex, acceptedIdx, n.self)

	epoch := prepares[0].ID.Number
	if err := n.raisePromise(ctx, epoch); err != nil {
		return err
	}

	n.state.PrepareResponses = make(map[int64]*PrepareSlotState, len(prepares))
	for _, p := range prepares {
		n.state.PrepareResponses[p.ID.LogIndex] = &PrepareSlotState{
			ID: p.ID,
			Votes: map[ballot.NodeID]PrepareVote{
				n.self: n.selfPrepareVote(ctx, true, n.lookupAccepted(ctx, p.ID.LogIndex)),
			},
		}
		eff.send(broadcast(p))
	}
	n.state.Epoch = &epoch
	n.role = Recoverer
	n.state.Timeout = now + nextInterval
	logger.Infof("node %d taking over at epoch %s covering slots %d..%d", n.self, epoch, prepares[0].ID.LogIndex, prepares[len(prepares)-1].ID.LogIndex)
	n.statsInc("paxos.takeover.count", 1)
	return nil
}
