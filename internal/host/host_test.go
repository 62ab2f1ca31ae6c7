package host

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/internal/paxos"
)

func cmdValue(cmd Command) paxos.CommandValue {
	return paxos.CommandValue{MsgID: uuid.New(), Bytes: EncodeCommand(cmd)}
}

func TestEncodeDecodeCommandRoundTrip(t *testing.T) {
	cmd := Command{Verb: "SET", Key: "foo", Args: []string{"bar"}}
	got, err := DecodeCommand(EncodeCommand(cmd))
	require.NoError(t, err)
	require.Equal(t, cmd, got)

	noArgs := Command{Verb: "DEL", Key: "foo"}
	got2, err := DecodeCommand(EncodeCommand(noArgs))
	require.NoError(t, err)
	require.Equal(t, noArgs, got2)
}

func TestMemorySetGetDel(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Deliver(ctx, 1, cmdValue(Command{Verb: "SET", Key: "foo", Args: []string{"bar"}}))
	require.NoError(t, err)

	reply, err := m.Deliver(ctx, 2, cmdValue(Command{Verb: "GET", Key: "foo"}))
	require.NoError(t, err)
	require.Equal(t, "bar", string(reply))

	missing, err := m.Deliver(ctx, 3, cmdValue(Command{Verb: "GET", Key: "absent"}))
	require.NoError(t, err)
	require.Empty(t, missing)

	reply, err = m.Deliver(ctx, 4, cmdValue(Command{Verb: "DEL", Key: "foo"}))
	require.NoError(t, err)
	require.Equal(t, "OK", string(reply))

	afterDel, err := m.Deliver(ctx, 5, cmdValue(Command{Verb: "GET", Key: "foo"}))
	require.NoError(t, err)
	require.Empty(t, afterDel)
}

func TestMemoryDeliverIsIdempotentByMsgID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	value := paxos.CommandValue{MsgID: uuid.New(), Bytes: EncodeCommand(Command{Verb: "SET", Key: "k", Args: []string{"v1"}})}

	reply1, err := m.Deliver(ctx, 1, value)
	require.NoError(t, err)
	require.Equal(t, "OK", string(reply1))

	// Same MsgID redelivered (e.g. retransmit) must not reapply the write.
	overwrite := paxos.CommandValue{MsgID: value.MsgID, Bytes: EncodeCommand(Command{Verb: "SET", Key: "k", Args: []string{"v2"}})}
	reply2, err := m.Deliver(ctx, 1, overwrite)
	require.NoError(t, err)
	require.Equal(t, reply1, reply2)

	got, err := m.Deliver(ctx, 2, cmdValue(Command{Verb: "GET", Key: "k"}))
	require.NoError(t, err)
	require.Equal(t, "v1", string(got))
}

func TestMemoryRejectsUnknownVerb(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Deliver(ctx, 1, cmdValue(Command{Verb: "EXPIRE", Key: "k"}))
	require.Error(t, err)
}

func TestMemorySetRequiresValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Deliver(ctx, 1, cmdValue(Command{Verb: "SET", Key: "k"}))
	require.Error(t, err)
}

func TestMemoryIncrStartsAtZeroAndAccumulates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	reply, err := m.Deliver(ctx, 1, cmdValue(Command{Verb: "INCR", Key: "counter"}))
	require.NoError(t, err)
	require.Equal(t, "1", string(reply))

	reply, err = m.Deliver(ctx, 2, cmdValue(Command{Verb: "INCR", Key: "counter"}))
	require.NoError(t, err)
	require.Equal(t, "2", string(reply))

	got, err := m.Deliver(ctx, 3, cmdValue(Command{Verb: "GET", Key: "counter"}))
	require.NoError(t, err)
	require.Equal(t, "2", string(got))
}

func TestMemoryIncrRejectsNonIntegerValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Deliver(ctx, 1, cmdValue(Command{Verb: "SET", Key: "k", Args: []string{"not-a-number"}}))
	require.NoError(t, err)

	_, err = m.Deliver(ctx, 2, cmdValue(Command{Verb: "INCR", Key: "k"}))
	require.Error(t, err)
}

func TestMemoryDeliverSkipsRecoveryNoop(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	reply, err := m.Deliver(ctx, 1, paxos.CommandValue{MsgID: uuid.Nil})
	require.NoError(t, err)
	require.Empty(t, reply)
}
