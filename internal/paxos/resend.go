package paxos

import "context"

// resendCheckTimeout implements spec §4.8 for Recoverer and Leader: a
// Recoverer still waiting on promises rebroadcasts its outstanding
// Prepares; otherwise outstanding Accepts past their own per-slot
// deadline are rebroadcast. A Leader never raises its ballot here —
// only the initial takeover prepare (followertimeout.go's takeover)
// does that.
func (n *Node) resendCheckTimeout(ctx context.Context, e CheckTimeout) (Effects, error) {
	var eff Effects

	if len(n.state.PrepareResponses) > 0 {
		for _, slot := range n.state.PrepareResponses {
			eff.send(broadcast(Prepare{ID: slot.ID}))
		}
		n.statsInc("resend.prepare.count", int64(len(n.state.PrepareResponses)))
		n.state.Timeout = e.Now + e.NextInterval
		return eff, nil
	}

	resent := 0
	for _, slot := range n.state.AcceptResponses {
		if e.Now <= slot.Timeout {
			continue
		}
		eff.send(broadcast(Accept{ID: slot.ID, Value: slot.Accept.Value}))
		slot.Timeout = e.Now + e.NextInterval
		resent++
	}
	if resent > 0 {
		n.statsInc("resend.accept.count", int64(resent))
	}
	n.state.Timeout = e.Now + e.NextInterval
	return eff, nil
}
