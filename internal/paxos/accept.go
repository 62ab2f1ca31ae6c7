package paxos

import "context"

// handleAccept implements spec §4.3, shared by every role: the accept
// rule, including the single-decision-per-slot nack for already-sealed
// slots. Grounded on the teacher's scope_accept.go HandleAccept,
// generalized from "reject if ballot has been superseded" to also
// reject once the slot is committed.
func (n *Node) handleAccept(ctx context.Context, msg Accept) (Effects, error) {
	n.statsInc("accept.message.received.count", 1)

	var eff Effects
	id := msg.ID

	if id.Number.Compare(n.state.Progress.HighestPromised) < 0 {
		logger.Debugf("node %d nacking accept %s below promise %s", n.self, id, n.state.Progress.HighestPromised)
		eff.send(toNode(id.From, AcceptNack{ID: id, From: n.self, Progress: n.state.Progress}))
		return eff, nil
	}

	if id.LogIndex <= n.state.Progress.HighestCommitted.LogIndex {
		logger.Debugf("node %d nacking accept %s: slot already sealed at %d", n.self, id, n.state.Progress.HighestCommitted.LogIndex)
		eff.send(toNode(id.From, AcceptNack{ID: id, From: n.self, Progress: n.state.Progress}))
		return eff, nil
	}

	if id.Number.Compare(n.state.Progress.HighestPromised) > 0 {
		if err := n.raisePromise(ctx, id.Number); err != nil {
			return Effects{}, err
		}
	}

	if err := n.journal.Accept(ctx, Accept{ID: id, Value: msg.Value}); err != nil {
		return Effects{}, fatalf(err, "journal accept for %s", id)
	}

	n.statsInc("accept.message.response.accepted.count", 1)
	eff.send(toNode(id.From, AcceptAck{ID: id, From: n.self, Progress: n.state.Progress}))
	return eff, nil
}
