package paxos

import (
	"context"
	"time"
)

// handlePrepare implements spec §4.2, shared by every role: the
// promise rule. Grounded on the teacher's manager_prepare.go
// HandlePrepare, generalized from "does this ballot beat the
// instance's MaxBallot" to the three-way compare spec §4.2 spells out
// (nack / ack-no-change / ack-and-raise-then-backdown).
func (n *Node) handlePrepare(ctx context.Context, msg Prepare) (Effects, error) {
	start := time.Now()
	n.statsInc("prepare.message.received.count", 1)
	defer func() { n.statsTiming("prepare.message.response.time", time.Since(start).Milliseconds()) }()

	var eff Effects
	id := msg.ID

	switch id.Number.Compare(n.state.Progress.HighestPromised) {
	case -1:
		logger.Debugf("node %d nacking prepare %s below promise %s", n.self, id, n.state.Progress.HighestPromised)
		n.statsInc("prepare.message.response.rejected", 1)
		eff.send(toNode(id.From, PrepareNack{
			ID:                   id,
			From:                 n.self,
			Progress:             n.state.Progress,
			HighestAcceptedIndex: n.highestAcceptedIndex(ctx),
			LeaderHeartbeat:      n.state.LeaderHeartbeat,
		}))
		return eff, nil

	case 0:
		eff.send(toNode(id.From, PrepareAck{
			ID:                   id,
			From:                 n.self,
			Progress:             n.state.Progress,
			HighestAcceptedIndex: n.highestAcceptedIndex(ctx),
			LeaderHeartbeat:      n.state.LeaderHeartbeat,
			Accepted:             n.lookupAccepted(ctx, id.LogIndex),
		}))
		return eff, nil

	default:
		if err := n.raisePromise(ctx, id.Number); err != nil {
			return Effects{}, err
		}
		eff.send(toNode(id.From, PrepareAck{
			ID:                   id,
			From:                 n.self,
			Progress:             n.state.Progress,
			HighestAcceptedIndex: n.highestAcceptedIndex(ctx),
			LeaderHeartbeat:      n.state.LeaderHeartbeat,
			Accepted:             n.lookupAccepted(ctx, id.LogIndex),
		}))
		n.statsInc("prepare.message.response.accepted.count", 1)
		n.backdown(&eff, "received higher-ballot prepare")
		return eff, nil
	}
}
