package paxos

import (
	"github.com/google/uuid"

	"github.com/latticedb/lattice/internal/ballot"
)

// Message is any of the wire variants from spec §3. A concrete Node
// only ever receives one inside an Event; Envelope pairs an outbound
// Message with where it should go.
type Message interface {
	isMessage()
}

// Prepare requests a promise for id.Number, proposed either as part
// of normal leader-takeover recovery or as a min-prepare liveness
// probe (spec §4.5, §9) when id.LogIndex == ballot.MinLogIndex.
type Prepare struct {
	ID ballot.SlotID
}

// PrepareAck is a promise: the sender will not accept any proposal
// numbered below id.Number. Accepted carries the slot's previously
// journaled value, if any, for the value-selection rule (spec §4.6).
type PrepareAck struct {
	ID                   ballot.SlotID
	From                 ballot.NodeID
	Progress             Progress
	HighestAcceptedIndex int64
	LeaderHeartbeat      int64
	Accepted             *Accept
}

// PrepareNack is a promise refusal: the sender already promised a
// higher ballot.
type PrepareNack struct {
	ID                   ballot.SlotID
	From                 ballot.NodeID
	Progress             Progress
	HighestAcceptedIndex int64
	LeaderHeartbeat      int64
}

// AcceptAck confirms the sender has durably journaled the Accept.
type AcceptAck struct {
	ID       ballot.SlotID
	From     ballot.NodeID
	Progress Progress
}

// AcceptNack refuses an Accept, either because of a higher promise or
// because the slot is already sealed by a commit.
type AcceptNack struct {
	ID       ballot.SlotID
	From     ballot.NodeID
	Progress Progress
}

// Commit fast-forwards the receiver's committed watermark and doubles
// as the leader's heartbeat.
type Commit struct {
	HighestCommitted ballot.SlotID
	Heartbeat        int64
}

// RetransmitRequest asks From's peer to resend everything after
// FromLogIndex.
type RetransmitRequest struct {
	From         ballot.NodeID
	To           ballot.NodeID
	FromLogIndex int64
}

// RetransmitResponse carries a caught-up bundle: Committed entries can
// be delivered immediately (once contiguous), Proposed entries are
// merely journaled, never committed (spec §4.10).
type RetransmitResponse struct {
	From      ballot.NodeID
	To        ballot.NodeID
	Committed []Accept
	Proposed  []Accept
}

// NotLeader tells a client that Node did not originate the command and
// cannot act as leader for it.
type NotLeader struct {
	Node  ballot.NodeID
	MsgID uuid.UUID
}

// NoLongerLeader is sent to clients whose commands were in flight when
// this node backed down — the outcome of their command is unknown and
// must be retried. Not enumerated as a distinct wire constant in spec
// §3's message list, but required by §4.7/§4.9/the backdown scenario
// in §8; added here as the minimal supplement spec's own text implies.
type NoLongerLeader struct {
	MsgID  uuid.UUID
	Reason string
}

func (Prepare) isMessage()            {}
func (PrepareAck) isMessage()         {}
func (PrepareNack) isMessage()        {}
func (Accept) isMessage()             {}
func (AcceptAck) isMessage()          {}
func (AcceptNack) isMessage()         {}
func (Commit) isMessage()             {}
func (RetransmitRequest) isMessage()  {}
func (RetransmitResponse) isMessage() {}
func (CommandValue) isMessage()       {}
func (NotLeader) isMessage()          {}
func (NoLongerLeader) isMessage()     {}

// Envelope addresses an outbound Message: either one peer node, a
// client connection, or every peer (Broadcast).
type Envelope struct {
	Broadcast bool
	To        ballot.NodeID
	ToClient  ClientHandle
	Msg       Message
}

func toNode(to ballot.NodeID, msg Message) Envelope {
	return Envelope{To: to, Msg: msg}
}

func toClient(to ClientHandle, msg Message) Envelope {
	return Envelope{ToClient: to, Msg: msg}
}

func broadcast(msg Message) Envelope {
	return Envelope{Broadcast: true, Msg: msg}
}

// Delivery is one committed value handed to the host application, in
// log order. ReplyTo is set when this slot's command originated from
// a client still connected to this node (spec §6: "Host.deliver(value)
// → Option<reply bytes>; invoked once per committed slot in log
// order; reply is forwarded to the originating client if any") — the
// runtime calls Host.Deliver and, if ReplyTo is non-empty, forwards
// whatever reply bytes come back to that client. It is empty for
// values this node only learned about via Commit/RetransmitResponse.
type Delivery struct {
	LogIndex int64
	Value    CommandValue
	ReplyTo  ClientHandle
}
