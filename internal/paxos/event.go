package paxos

import "github.com/latticedb/lattice/internal/ballot"

// Event is whatever Apply consumes in one call: a message that
// arrived over the wire, a client command, or a timer tick. The
// runtime (never the core) decides when timers fire, per spec §5/§9.
type Event interface {
	isEvent()
}

// Inbound wraps a wire Message with the peer it arrived from. From is
// the sender's node id as reported by the transport; handlers that
// reply to a proposer (e.g. Prepare, Accept) address it by ID.From
// instead. Now is the
// runtime's Clock.now() reading at receipt and NextInterval a fresh
// Random.uniform() draw — both supplied by the runtime (never sampled
// by the core itself) for the handlers that reset a deadline on
// message receipt (e.g. Commit's follower-timeout refresh, spec
// §4.4 step 1), so Apply stays a pure function of its arguments.
type Inbound struct {
	From         ballot.NodeID
	Msg          Message
	Now          int64
	NextInterval int64
}

// InboundCommand is a client's CommandValue arriving on Client's
// connection. Now/NextInterval are supplied by the runtime for the
// same reason as Inbound's: minting a new Accept round needs a resend
// deadline (spec §4.8's per-slot "inner timeout").
type InboundCommand struct {
	Client       ClientHandle
	Value        CommandValue
	Now          int64
	NextInterval int64
}

// CheckTimeout is the generic "timeout check" tick from spec §1/§4.5;
// Now is the runtime's Clock.now() reading. NextInterval is a fresh
// Random.uniform() draw the handler uses if it needs to reset the
// follower/resend deadline.
type CheckTimeout struct {
	Now          int64
	NextInterval int64
}

// HeartBeat is the leader's periodic broadcast tick.
type HeartBeat struct {
	Now int64
}

func (Inbound) isEvent()        {}
func (InboundCommand) isEvent() {}
func (CheckTimeout) isEvent()   {}
func (HeartBeat) isEvent()      {}
