package paxos

import "github.com/latticedb/lattice/internal/ballot"

// PrepareVote is the locally-normalized form of a PrepareAck/PrepareNack,
// keyed by the responder's node id inside a PrepareSlotState.
type PrepareVote struct {
	From                 ballot.NodeID
	Ack                  bool
	Progress             Progress
	HighestAcceptedIndex int64
	LeaderHeartbeat      int64
	Accepted             *Accept
}

// PrepareSlotState tracks one outstanding Prepare round for one slot.
type PrepareSlotState struct {
	ID    ballot.SlotID
	Votes map[ballot.NodeID]PrepareVote
}

// AcceptVote is the locally-normalized form of an AcceptAck/AcceptNack.
type AcceptVote struct {
	From     ballot.NodeID
	Ack      bool
	Progress Progress
}

// AcceptSlotState tracks one outstanding Accept round: the Accept this
// node broadcast, its resend deadline, and votes received so far.
// Decided marks a slot that has a majority AcceptAck but may still be
// waiting on lower slots to close before it can advance
// highestCommitted (spec §4.7's "commits must respect log
// contiguity").
type AcceptSlotState struct {
	ID      ballot.SlotID
	Accept  Accept
	Timeout int64
	Votes   map[ballot.NodeID]AcceptVote
	Decided bool
}

// ClientCommandEntry remembers which client is waiting on a slot this
// node proposed as leader, so the eventual commit (or backdown) can
// reply to the right connection. Never persisted — spec §9: "on
// crash, clients see failure and retry with a fresh msgId".
type ClientCommandEntry struct {
	Client ClientHandle
	Value  CommandValue
}

// NodeState is the in-memory state described in spec §3. All three
// maps are keyed by LogIndex, matching the spec's OrderedMap<SlotId,...>
// whose ordering is LogIndex-only (spec §4.1).
type NodeState struct {
	Progress         Progress
	LeaderHeartbeat  int64
	Timeout          int64
	PrepareResponses map[int64]*PrepareSlotState
	Epoch            *ballot.BallotNumber
	AcceptResponses  map[int64]*AcceptSlotState
	ClientCommands   map[int64]ClientCommandEntry
}

func newNodeState(p Progress, now int64) NodeState {
	return NodeState{
		Progress:         p,
		LeaderHeartbeat:  0,
		Timeout:          now,
		PrepareResponses: make(map[int64]*PrepareSlotState),
		AcceptResponses:  make(map[int64]*AcceptSlotState),
		ClientCommands:   make(map[int64]ClientCommandEntry),
	}
}

// clearPrepareProbe drops all in-flight prepareResponses state —
// spec §4.4 step 1 ("clear any in-flight prepareResponses") and the
// backdown transition (spec §4.11).
func (s *NodeState) clearPrepareProbe() {
	s.PrepareResponses = make(map[int64]*PrepareSlotState)
	s.Epoch = nil
}

// clearAcceptRounds drops all in-flight acceptResponses/clientCommands
// state, used on backdown (spec §4.7, §4.9).
func (s *NodeState) clearAcceptRounds() {
	s.AcceptResponses = make(map[int64]*AcceptSlotState)
	s.ClientCommands = make(map[int64]ClientCommandEntry)
}

// Node is the per-node Paxos state machine: one Role, one NodeState,
// one exclusively-owned Journal. Apply is the only entry point and is
// single-threaded by contract (spec §5) — nothing here takes a lock.
type Node struct {
	self        ballot.NodeID
	clusterSize int
	journal     Journal
	stats       Stats
	role        Role
	state       NodeState
}

// NewNode boots a node from durable state, per spec §3 ("Initial role
// on boot is Follower, with state rehydrated from journal").
func NewNode(self ballot.NodeID, clusterSize int, journal Journal, stats Stats, progress Progress, now int64) *Node {
	if stats == nil {
		stats = noopStats{}
	}
	return &Node{
		self:        self,
		clusterSize: clusterSize,
		journal:     journal,
		stats:       stats,
		role:        Follower,
		state:       newNodeState(progress, now),
	}
}

// Role reports the node's current role (for observability/tests only;
// never branched on outside this package).
func (n *Node) Role() Role { return n.role }

// Progress reports the node's current durable progress snapshot.
func (n *Node) Progress() Progress { return n.state.Progress }

// Timeout reports the deadline the runtime should wake this node up
// by, per spec §9 ("the core only exposes its timeout deadline").
func (n *Node) Timeout() int64 { return n.state.Timeout }

// quorum is floor(clusterSize/2)+1, computed per spec §6.
func (n *Node) quorum() int {
	return n.clusterSize/2 + 1
}

func (n *Node) statsInc(stat string, value int64) {
	_ = n.stats.Inc(stat, value, 1.0)
}

func (n *Node) statsTiming(stat string, deltaMillis int64) {
	_ = n.stats.Timing(stat, deltaMillis, 1.0)
}
