package paxos

import (
	"context"
	"fmt"
)

// Effects is what one Apply call produces: outbound messages (to be
// sent only after this call's journal writes — already durable by the
// time Apply returns, see collaborators.go — have landed) and values
// ready for the host application, in log order.
type Effects struct {
	Outbound  []Envelope
	Delivered []Delivery
}

func (e *Effects) send(env Envelope) {
	e.Outbound = append(e.Outbound, env)
}

func (e *Effects) deliver(d Delivery) {
	e.Delivered = append(e.Delivered, d)
}

// Apply is the single entry point described in spec §5: it consumes
// one Event and returns the resulting Effects. It is single-threaded
// by contract — the runtime must not call Apply concurrently for the
// same Node. Journal writes required by the event have already been
// made durable by the time Apply returns (see each handler); Effects
// only carries what must happen *after* that — outbound sends and
// host deliveries.
func (n *Node) Apply(ctx context.Context, ev Event) (Effects, error) {
	switch e := ev.(type) {
	case Inbound:
		return n.dispatchInbound(ctx, e)
	case InboundCommand:
		return n.handleCommandValue(ctx, e)
	case CheckTimeout:
		return n.handleCheckTimeout(ctx, e)
	case HeartBeat:
		return n.handleHeartBeat(ctx, e)
	default:
		return Effects{}, fmt.Errorf("paxos: unrecognized event type %T", ev)
	}
}

func (n *Node) dispatchInbound(ctx context.Context, e Inbound) (Effects, error) {
	switch msg := e.Msg.(type) {
	case Prepare:
		return n.handlePrepare(ctx, msg)
	case PrepareAck:
		return n.handlePrepareResponse(ctx, PrepareVote{
			From:                 msg.From,
			Ack:                  true,
			Progress:             msg.Progress,
			HighestAcceptedIndex: msg.HighestAcceptedIndex,
			LeaderHeartbeat:      msg.LeaderHeartbeat,
			Accepted:             msg.Accepted,
		}, msg.ID, e.Now, e.NextInterval)
	case PrepareNack:
		return n.handlePrepareResponse(ctx, PrepareVote{
			From:                 msg.From,
			Ack:                  false,
			Progress:             msg.Progress,
			HighestAcceptedIndex: msg.HighestAcceptedIndex,
			LeaderHeartbeat:      msg.LeaderHeartbeat,
		}, msg.ID, e.Now, e.NextInterval)
	case Accept:
		return n.handleAccept(ctx, msg)
	case AcceptAck:
		return n.handleAcceptResponse(ctx, AcceptVote{From: msg.From, Ack: true, Progress: msg.Progress}, msg.ID)
	case AcceptNack:
		return n.handleAcceptResponse(ctx, AcceptVote{From: msg.From, Ack: false, Progress: msg.Progress}, msg.ID)
	case Commit:
		return n.handleCommit(ctx, e.From, msg, e.Now, e.NextInterval)
	case RetransmitRequest:
		return n.handleRetransmitRequest(ctx, msg)
	case RetransmitResponse:
		return n.handleRetransmitResponse(ctx, e.From, msg)
	default:
		logger.Debugf("paxos: ignoring unexpected inbound message type %T", msg)
		return Effects{}, nil
	}
}
