// Package codec serializes paxos.Message and paxos.Progress/Accept
// values to the length-prefixed little-endian wire format from
// internal/wire, for both internal/transport (peer links) and
// internal/journal (the on-disk record log). Grounded on the
// teacher's src/serializer/serializer.go tag-byte dispatch pattern.
package codec

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/google/uuid"

	"github.com/latticedb/lattice/internal/ballot"
	"github.com/latticedb/lattice/internal/paxos"
	"github.com/latticedb/lattice/internal/wire"
)

type tag byte

const (
	tagPrepare tag = iota + 1
	tagPrepareAck
	tagPrepareNack
	tagAccept
	tagAcceptAck
	tagAcceptNack
	tagCommit
	tagRetransmitRequest
	tagRetransmitResponse
	tagCommandValue
	tagNotLeader
	tagNoLongerLeader
)

// EncodeMessage serializes any paxos.Message variant.
func EncodeMessage(msg paxos.Message) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := writeMessage(w, msg); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMessage deserializes a byte slice written by EncodeMessage.
func DecodeMessage(b []byte) (paxos.Message, error) {
	r := bufio.NewReader(bytes.NewReader(b))
	return readMessage(r)
}

func writeMessage(w *bufio.Writer, msg paxos.Message) error {
	switch m := msg.(type) {
	case paxos.Prepare:
		wire.WriteByte(w, byte(tagPrepare))
		return WriteSlotID(w, m.ID)
	case paxos.PrepareAck:
		wire.WriteByte(w, byte(tagPrepareAck))
		return writePrepareAck(w, m)
	case paxos.PrepareNack:
		wire.WriteByte(w, byte(tagPrepareNack))
		return writePrepareNack(w, m)
	case paxos.Accept:
		wire.WriteByte(w, byte(tagAccept))
		return WriteAccept(w, m)
	case paxos.AcceptAck:
		wire.WriteByte(w, byte(tagAcceptAck))
		return writeAcceptVote(w, m.ID, m.From, m.Progress)
	case paxos.AcceptNack:
		wire.WriteByte(w, byte(tagAcceptNack))
		return writeAcceptVote(w, m.ID, m.From, m.Progress)
	case paxos.Commit:
		wire.WriteByte(w, byte(tagCommit))
		if err := WriteSlotID(w, m.HighestCommitted); err != nil {
			return err
		}
		return wire.WriteInt64(w, m.Heartbeat)
	case paxos.RetransmitRequest:
		wire.WriteByte(w, byte(tagRetransmitRequest))
		wire.WriteUint64(w, uint64(m.From))
		wire.WriteUint64(w, uint64(m.To))
		return wire.WriteInt64(w, m.FromLogIndex)
	case paxos.RetransmitResponse:
		wire.WriteByte(w, byte(tagRetransmitResponse))
		return writeRetransmitResponse(w, m)
	case paxos.CommandValue:
		wire.WriteByte(w, byte(tagCommandValue))
		return writeCommandValue(w, m)
	case paxos.NotLeader:
		wire.WriteByte(w, byte(tagNotLeader))
		wire.WriteUint64(w, uint64(m.Node))
		return wire.WriteFieldBytes(w, mustMarshalUUID(m.MsgID))
	case paxos.NoLongerLeader:
		wire.WriteByte(w, byte(tagNoLongerLeader))
		if err := wire.WriteFieldBytes(w, mustMarshalUUID(m.MsgID)); err != nil {
			return err
		}
		return wire.WriteFieldBytes(w, []byte(m.Reason))
	default:
		return fmt.Errorf("codec: unrecognized message type %T", msg)
	}
}

func readMessage(r *bufio.Reader) (paxos.Message, error) {
	t, err := wire.ReadByte(r)
	if err != nil {
		return nil, err
	}
	switch tag(t) {
	case tagPrepare:
		id, err := ReadSlotID(r)
		if err != nil {
			return nil, err
		}
		return paxos.Prepare{ID: id}, nil
	case tagPrepareAck:
		return readPrepareAck(r)
	case tagPrepareNack:
		return readPrepareNack(r)
	case tagAccept:
		return ReadAccept(r)
	case tagAcceptAck:
		id, from, progress, err := readAcceptVote(r)
		if err != nil {
			return nil, err
		}
		return paxos.AcceptAck{ID: id, From: from, Progress: progress}, nil
	case tagAcceptNack:
		id, from, progress, err := readAcceptVote(r)
		if err != nil {
			return nil, err
		}
		return paxos.AcceptNack{ID: id, From: from, Progress: progress}, nil
	case tagCommit:
		id, err := ReadSlotID(r)
		if err != nil {
			return nil, err
		}
		hb, err := wire.ReadInt64(r)
		if err != nil {
			return nil, err
		}
		return paxos.Commit{HighestCommitted: id, Heartbeat: hb}, nil
	case tagRetransmitRequest:
		from, err := wire.ReadUint64(r)
		if err != nil {
			return nil, err
		}
		to, err := wire.ReadUint64(r)
		if err != nil {
			return nil, err
		}
		fromIdx, err := wire.ReadInt64(r)
		if err != nil {
			return nil, err
		}
		return paxos.RetransmitRequest{From: ballot.NodeID(from), To: ballot.NodeID(to), FromLogIndex: fromIdx}, nil
	case tagRetransmitResponse:
		return readRetransmitResponse(r)
	case tagCommandValue:
		return readCommandValue(r)
	case tagNotLeader:
		node, err := wire.ReadUint64(r)
		if err != nil {
			return nil, err
		}
		id, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		return paxos.NotLeader{Node: ballot.NodeID(node), MsgID: id}, nil
	case tagNoLongerLeader:
		id, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		reason, err := wire.ReadFieldBytes(r)
		if err != nil {
			return nil, err
		}
		return paxos.NoLongerLeader{MsgID: id, Reason: string(reason)}, nil
	default:
		return nil, fmt.Errorf("codec: unrecognized wire tag %d", t)
	}
}

func WriteSlotID(w *bufio.Writer, id ballot.SlotID) error {
	if err := wire.WriteUint64(w, uint64(id.From)); err != nil {
		return err
	}
	if err := wire.WriteUint64(w, id.Number.Counter); err != nil {
		return err
	}
	if err := wire.WriteUint64(w, uint64(id.Number.Node)); err != nil {
		return err
	}
	return wire.WriteInt64(w, id.LogIndex)
}

func ReadSlotID(r *bufio.Reader) (ballot.SlotID, error) {
	from, err := wire.ReadUint64(r)
	if err != nil {
		return ballot.SlotID{}, err
	}
	counter, err := wire.ReadUint64(r)
	if err != nil {
		return ballot.SlotID{}, err
	}
	node, err := wire.ReadUint64(r)
	if err != nil {
		return ballot.SlotID{}, err
	}
	logIndex, err := wire.ReadInt64(r)
	if err != nil {
		return ballot.SlotID{}, err
	}
	return ballot.SlotID{
		From:     ballot.NodeID(from),
		Number:   ballot.BallotNumber{Counter: counter, Node: ballot.NodeID(node)},
		LogIndex: logIndex,
	}, nil
}

func writeCommandValue(w *bufio.Writer, v paxos.CommandValue) error {
	if err := wire.WriteFieldBytes(w, mustMarshalUUID(v.MsgID)); err != nil {
		return err
	}
	return wire.WriteFieldBytes(w, v.Bytes)
}

func readCommandValue(r *bufio.Reader) (paxos.CommandValue, error) {
	id, err := readUUID(r)
	if err != nil {
		return paxos.CommandValue{}, err
	}
	b, err := wire.ReadFieldBytes(r)
	if err != nil {
		return paxos.CommandValue{}, err
	}
	return paxos.CommandValue{MsgID: id, Bytes: b}, nil
}

func WriteAccept(w *bufio.Writer, a paxos.Accept) error {
	if err := WriteSlotID(w, a.ID); err != nil {
		return err
	}
	return writeCommandValue(w, a.Value)
}

func ReadAccept(r *bufio.Reader) (paxos.Accept, error) {
	id, err := ReadSlotID(r)
	if err != nil {
		return paxos.Accept{}, err
	}
	v, err := readCommandValue(r)
	if err != nil {
		return paxos.Accept{}, err
	}
	return paxos.Accept{ID: id, Value: v}, nil
}

func WriteProgress(w *bufio.Writer, p paxos.Progress) error {
	if err := wire.WriteUint64(w, p.HighestPromised.Counter); err != nil {
		return err
	}
	if err := wire.WriteUint64(w, uint64(p.HighestPromised.Node)); err != nil {
		return err
	}
	return WriteSlotID(w, p.HighestCommitted)
}

func ReadProgress(r *bufio.Reader) (paxos.Progress, error) {
	counter, err := wire.ReadUint64(r)
	if err != nil {
		return paxos.Progress{}, err
	}
	node, err := wire.ReadUint64(r)
	if err != nil {
		return paxos.Progress{}, err
	}
	committed, err := ReadSlotID(r)
	if err != nil {
		return paxos.Progress{}, err
	}
	return paxos.Progress{
		HighestPromised:  ballot.BallotNumber{Counter: counter, Node: ballot.NodeID(node)},
		HighestCommitted: committed,
	}, nil
}

func writeAcceptVote(w *bufio.Writer, id ballot.SlotID, from ballot.NodeID, progress paxos.Progress) error {
	if err := WriteSlotID(w, id); err != nil {
		return err
	}
	if err := wire.WriteUint64(w, uint64(from)); err != nil {
		return err
	}
	return WriteProgress(w, progress)
}

func readAcceptVote(r *bufio.Reader) (ballot.SlotID, ballot.NodeID, paxos.Progress, error) {
	id, err := ReadSlotID(r)
	if err != nil {
		return ballot.SlotID{}, 0, paxos.Progress{}, err
	}
	from, err := wire.ReadUint64(r)
	if err != nil {
		return ballot.SlotID{}, 0, paxos.Progress{}, err
	}
	progress, err := ReadProgress(r)
	if err != nil {
		return ballot.SlotID{}, 0, paxos.Progress{}, err
	}
	return id, ballot.NodeID(from), progress, nil
}

func writePrepareAck(w *bufio.Writer, m paxos.PrepareAck) error {
	if err := WriteSlotID(w, m.ID); err != nil {
		return err
	}
	if err := wire.WriteUint64(w, uint64(m.From)); err != nil {
		return err
	}
	if err := WriteProgress(w, m.Progress); err != nil {
		return err
	}
	if err := wire.WriteInt64(w, m.HighestAcceptedIndex); err != nil {
		return err
	}
	if err := wire.WriteInt64(w, m.LeaderHeartbeat); err != nil {
		return err
	}
	if m.Accepted == nil {
		return wire.WriteBool(w, false)
	}
	if err := wire.WriteBool(w, true); err != nil {
		return err
	}
	return WriteAccept(w, *m.Accepted)
}

func readPrepareAck(r *bufio.Reader) (paxos.PrepareAck, error) {
	id, err := ReadSlotID(r)
	if err != nil {
		return paxos.PrepareAck{}, err
	}
	from, err := wire.ReadUint64(r)
	if err != nil {
		return paxos.PrepareAck{}, err
	}
	progress, err := ReadProgress(r)
	if err != nil {
		return paxos.PrepareAck{}, err
	}
	hai, err := wire.ReadInt64(r)
	if err != nil {
		return paxos.PrepareAck{}, err
	}
	hb, err := wire.ReadInt64(r)
	if err != nil {
		return paxos.PrepareAck{}, err
	}
	hasAccepted, err := wire.ReadBool(r)
	if err != nil {
		return paxos.PrepareAck{}, err
	}
	var accepted *paxos.Accept
	if hasAccepted {
		a, err := ReadAccept(r)
		if err != nil {
			return paxos.PrepareAck{}, err
		}
		accepted = &a
	}
	return paxos.PrepareAck{
		ID:                   id,
		From:                 ballot.NodeID(from),
		Progress:             progress,
		HighestAcceptedIndex: hai,
		LeaderHeartbeat:      hb,
		Accepted:             accepted,
	}, nil
}

func writePrepareNack(w *bufio.Writer, m paxos.PrepareNack) error {
	if err := WriteSlotID(w, m.ID); err != nil {
		return err
	}
	if err := wire.WriteUint64(w, uint64(m.From)); err != nil {
		return err
	}
	if err := WriteProgress(w, m.Progress); err != nil {
		return err
	}
	if err := wire.WriteInt64(w, m.HighestAcceptedIndex); err != nil {
		return err
	}
	return wire.WriteInt64(w, m.LeaderHeartbeat)
}

func readPrepareNack(r *bufio.Reader) (paxos.PrepareNack, error) {
	id, err := ReadSlotID(r)
	if err != nil {
		return paxos.PrepareNack{}, err
	}
	from, err := wire.ReadUint64(r)
	if err != nil {
		return paxos.PrepareNack{}, err
	}
	progress, err := ReadProgress(r)
	if err != nil {
		return paxos.PrepareNack{}, err
	}
	hai, err := wire.ReadInt64(r)
	if err != nil {
		return paxos.PrepareNack{}, err
	}
	hb, err := wire.ReadInt64(r)
	if err != nil {
		return paxos.PrepareNack{}, err
	}
	return paxos.PrepareNack{ID: id, From: ballot.NodeID(from), Progress: progress, HighestAcceptedIndex: hai, LeaderHeartbeat: hb}, nil
}

func writeRetransmitResponse(w *bufio.Writer, m paxos.RetransmitResponse) error {
	if err := wire.WriteUint64(w, uint64(m.From)); err != nil {
		return err
	}
	if err := wire.WriteUint64(w, uint64(m.To)); err != nil {
		return err
	}
	if err := writeAcceptList(w, m.Committed); err != nil {
		return err
	}
	return writeAcceptList(w, m.Proposed)
}

func readRetransmitResponse(r *bufio.Reader) (paxos.RetransmitResponse, error) {
	from, err := wire.ReadUint64(r)
	if err != nil {
		return paxos.RetransmitResponse{}, err
	}
	to, err := wire.ReadUint64(r)
	if err != nil {
		return paxos.RetransmitResponse{}, err
	}
	committed, err := readAcceptList(r)
	if err != nil {
		return paxos.RetransmitResponse{}, err
	}
	proposed, err := readAcceptList(r)
	if err != nil {
		return paxos.RetransmitResponse{}, err
	}
	return paxos.RetransmitResponse{From: ballot.NodeID(from), To: ballot.NodeID(to), Committed: committed, Proposed: proposed}, nil
}

func writeAcceptList(w *bufio.Writer, accepts []paxos.Accept) error {
	if err := wire.WriteUint64(w, uint64(len(accepts))); err != nil {
		return err
	}
	for _, a := range accepts {
		if err := WriteAccept(w, a); err != nil {
			return err
		}
	}
	return nil
}

func readAcceptList(r *bufio.Reader) ([]paxos.Accept, error) {
	n, err := wire.ReadUint64(r)
	if err != nil {
		return nil, err
	}
	accepts := make([]paxos.Accept, 0, n)
	for i := uint64(0); i < n; i++ {
		a, err := ReadAccept(r)
		if err != nil {
			return nil, err
		}
		accepts = append(accepts, a)
	}
	return accepts, nil
}

func mustMarshalUUID(id uuid.UUID) []byte {
	b, _ := id.MarshalBinary()
	return b
}

func readUUID(r *bufio.Reader) (uuid.UUID, error) {
	b, err := wire.ReadFieldBytes(r)
	if err != nil {
		return uuid.UUID{}, err
	}
	var id uuid.UUID
	if len(b) == 0 {
		return id, nil
	}
	if err := id.UnmarshalBinary(b); err != nil {
		return uuid.UUID{}, err
	}
	return id, nil
}
