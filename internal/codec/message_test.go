package codec

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/internal/ballot"
	"github.com/latticedb/lattice/internal/paxos"
)

func slotID(from ballot.NodeID, counter uint64, node ballot.NodeID, idx int64) ballot.SlotID {
	return ballot.SlotID{From: from, Number: ballot.BallotNumber{Counter: counter, Node: node}, LogIndex: idx}
}

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	id := slotID(1, 3, 1, 42)
	progress := paxos.Progress{HighestPromised: id.Number, HighestCommitted: slotID(1, 2, 1, 40)}
	accept := paxos.Accept{ID: id, Value: paxos.CommandValue{MsgID: uuid.New(), Bytes: []byte("SET foo bar")}}

	cases := []paxos.Message{
		paxos.Prepare{ID: id},
		paxos.PrepareAck{ID: id, From: 2, Progress: progress, HighestAcceptedIndex: 41, LeaderHeartbeat: 7, Accepted: &accept},
		paxos.PrepareAck{ID: id, From: 2, Progress: progress, HighestAcceptedIndex: 41, LeaderHeartbeat: 7, Accepted: nil},
		paxos.PrepareNack{ID: id, From: 2, Progress: progress, HighestAcceptedIndex: 41, LeaderHeartbeat: 7},
		accept,
		paxos.AcceptAck{ID: id, From: 2, Progress: progress},
		paxos.AcceptNack{ID: id, From: 2, Progress: progress},
		paxos.Commit{HighestCommitted: id, Heartbeat: 99},
		paxos.RetransmitRequest{From: 1, To: 2, FromLogIndex: 10},
		paxos.RetransmitResponse{From: 2, To: 1, Committed: []paxos.Accept{accept}, Proposed: []paxos.Accept{accept}},
		paxos.CommandValue{MsgID: uuid.New(), Bytes: []byte("GET foo")},
		paxos.NotLeader{Node: 3, MsgID: uuid.New()},
		paxos.NoLongerLeader{MsgID: uuid.New(), Reason: "backed down"},
	}

	for _, want := range cases {
		b, err := EncodeMessage(want)
		require.NoError(t, err)

		got, err := DecodeMessage(b)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDecodeMessageRejectsUnknownTag(t *testing.T) {
	_, err := DecodeMessage([]byte{255})
	require.Error(t, err)
}

func TestWriteReadProgressRoundTrip(t *testing.T) {
	p := paxos.Progress{
		HighestPromised:  ballot.BallotNumber{Counter: 5, Node: 2},
		HighestCommitted: slotID(2, 4, 2, 17),
	}
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteProgress(w, p))
	require.NoError(t, w.Flush())

	got, err := ReadProgress(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, p, got)
}
