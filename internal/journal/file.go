package journal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/latticedb/lattice/internal/codec"
	"github.com/latticedb/lattice/internal/paxos"
	"github.com/latticedb/lattice/internal/wire"
)

type recordKind byte

const (
	recordProgress recordKind = iota + 1
	recordAccept
)

// File is a durable, append-only paxos.Journal: every Save/Accept call
// appends one record and fsyncs before returning, matching the
// durable-before-send contract in spec §5/§6. On Open it replays the
// whole file to rebuild the in-memory index used for reads — the same
// "replay the log into a map" shape as the teacher's
// Redis.DeserializeValue/data map, just sourced from disk instead of
// from an RPC payload.
type File struct {
	mu       sync.Mutex
	f        *os.File
	progress paxos.Progress
	accepts  map[int64]paxos.Accept
}

// Open opens (creating if absent) the journal file at path and
// replays any existing records.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	j := &File{f: f, accepts: make(map[int64]paxos.Accept)}
	if err := j.replay(); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

func (j *File) replay() error {
	if _, err := j.f.Seek(0, 0); err != nil {
		return err
	}
	r := bufio.NewReader(j.f)
	for {
		kindByte, err := wire.ReadByte(r)
		if err != nil {
			break
		}
		switch recordKind(kindByte) {
		case recordProgress:
			p, err := codec.ReadProgress(r)
			if err != nil {
				return fmt.Errorf("journal: replay progress record: %w", err)
			}
			j.progress = p
		case recordAccept:
			a, err := codec.ReadAccept(r)
			if err != nil {
				return fmt.Errorf("journal: replay accept record: %w", err)
			}
			j.accepts[a.ID.LogIndex] = a
		default:
			return fmt.Errorf("journal: unrecognized record kind %d", kindByte)
		}
	}
	_, err := j.f.Seek(0, 2)
	return err
}

func (j *File) appendRecord(kind recordKind, write func(w *bufio.Writer) error) error {
	w := bufio.NewWriter(j.f)
	if err := wire.WriteByte(w, byte(kind)); err != nil {
		return err
	}
	if err := write(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return j.f.Sync()
}

func (j *File) Load(ctx context.Context) (paxos.Progress, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress, nil
}

func (j *File) Save(ctx context.Context, p paxos.Progress) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.appendRecord(recordProgress, func(w *bufio.Writer) error { return codec.WriteProgress(w, p) }); err != nil {
		return fmt.Errorf("journal: save progress: %w", err)
	}
	j.progress = p
	return nil
}

func (j *File) Accept(ctx context.Context, a paxos.Accept) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.appendRecord(recordAccept, func(w *bufio.Writer) error { return codec.WriteAccept(w, a) }); err != nil {
		return fmt.Errorf("journal: accept %s: %w", a.ID, err)
	}
	j.accepts[a.ID.LogIndex] = a
	return nil
}

func (j *File) Accepted(ctx context.Context, logIndex int64) (paxos.Accept, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	a, ok := j.accepts[logIndex]
	return a, ok, nil
}

func (j *File) Bounds(ctx context.Context) (min, max int64, ok bool, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	first := true
	for idx := range j.accepts {
		if first {
			min, max = idx, idx
			first = false
			continue
		}
		if idx < min {
			min = idx
		}
		if idx > max {
			max = idx
		}
	}
	return min, max, !first, nil
}

func (j *File) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}
