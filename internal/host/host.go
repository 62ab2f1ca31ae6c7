// Package host implements the application the consensus core replicates
// commands for: a small Redis-alike key/value store, grounded on the
// teacher's src/store/{store,redis}.go GET/SET/DEL/INCR command set and
// singleValue/timestamp shape — trimmed of the multi-datacenter
// Reconcile/Instruction-repair machinery (spec's Non-goal: single
// replicated log, no per-key vector-clock reconciliation) but keeping
// the same four verbs and the same "store is a pluggable interface"
// shape so a different Host could be swapped in.
package host

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/latticedb/lattice/internal/paxos"
	"github.com/latticedb/lattice/internal/wire"
)

// Host is the spec §6 collaborator: Deliver is invoked once per
// committed slot, in log order, and may return reply bytes to forward
// to the client that originated the command.
type Host interface {
	Deliver(ctx context.Context, logIndex int64, value paxos.CommandValue) ([]byte, error)
}

// Command is the decoded form of a CommandValue.Bytes payload: a verb
// plus its arguments, length-prefix framed the same way every other
// wire value in this module is.
type Command struct {
	Verb string
	Key  string
	Args []string
}

// EncodeCommand serializes a Command into CommandValue.Bytes.
func EncodeCommand(c Command) []byte {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	wire.WriteFieldBytes(w, []byte(c.Verb))
	wire.WriteFieldBytes(w, []byte(c.Key))
	wire.WriteUint64(w, uint64(len(c.Args)))
	for _, a := range c.Args {
		wire.WriteFieldBytes(w, []byte(a))
	}
	w.Flush()
	return buf.Bytes()
}

// DecodeCommand parses a Command out of CommandValue.Bytes.
func DecodeCommand(b []byte) (Command, error) {
	r := bufio.NewReader(bytes.NewReader(b))
	verb, err := wire.ReadFieldBytes(r)
	if err != nil {
		return Command{}, fmt.Errorf("host: decode verb: %w", err)
	}
	key, err := wire.ReadFieldBytes(r)
	if err != nil {
		return Command{}, fmt.Errorf("host: decode key: %w", err)
	}
	n, err := wire.ReadUint64(r)
	if err != nil {
		return Command{}, fmt.Errorf("host: decode arg count: %w", err)
	}
	args := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		a, err := wire.ReadFieldBytes(r)
		if err != nil {
			return Command{}, fmt.Errorf("host: decode arg %d: %w", i, err)
		}
		args = append(args, string(a))
	}
	return Command{Verb: string(verb), Key: string(key), Args: args}, nil
}

const (
	get  = "GET"
	set  = "SET"
	del  = "DEL"
	incr = "INCR"
)

// Memory is an in-memory Host: a map guarded by one RWMutex, same as
// the teacher's Redis store before anything durable or networked gets
// layered on top.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
	seen map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string), seen: make(map[string][]byte)}
}

// Deliver applies one committed Command. Idempotence (spec §4.4: "the
// host is expected to be idempotent or to dedupe by msgId") is
// implemented by caching the reply for each MsgID already seen — a
// retransmit or Commit double-delivery returns the same reply rather
// than reapplying the write.
func (m *Memory) Deliver(ctx context.Context, logIndex int64, value paxos.CommandValue) ([]byte, error) {
	if value.MsgID == uuid.Nil {
		// A recovery no-op fills a slot without a real command behind
		// it (spec §4.6) — nothing to apply, nothing to reply with.
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := value.MsgID.String()
	if reply, ok := m.seen[key]; ok {
		return reply, nil
	}

	cmd, err := DecodeCommand(value.Bytes)
	if err != nil {
		return nil, err
	}

	var reply []byte
	switch strings.ToUpper(cmd.Verb) {
	case get:
		if v, ok := m.data[cmd.Key]; ok {
			reply = []byte(v)
		}
	case set:
		if len(cmd.Args) == 0 {
			return nil, fmt.Errorf("host: SET %s: missing value argument", cmd.Key)
		}
		m.data[cmd.Key] = cmd.Args[0]
		reply = []byte("OK")
	case del:
		delete(m.data, cmd.Key)
		reply = []byte("OK")
	case incr:
		n := int64(0)
		if v, ok := m.data[cmd.Key]; ok {
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("host: INCR %s: value %q is not an integer", cmd.Key, v)
			}
			n = parsed
		}
		n++
		m.data[cmd.Key] = strconv.FormatInt(n, 10)
		reply = []byte(strconv.FormatInt(n, 10))
	default:
		return nil, fmt.Errorf("host: unrecognized command %q", cmd.Verb)
	}

	m.seen[key] = reply
	return reply, nil
}
