// Package wire implements the binary field codec shared by the
// journal's on-disk record log and the transport's message framing.
//
// Grounded on the teacher's src/serializer/serializer.go: a length-
// prefixed byte field is the one primitive everything else composes
// from, little endian throughout.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
)

// WriteFieldBytes writes the length of bytes followed by bytes itself.
func WriteFieldBytes(w *bufio.Writer, b []byte) error {
	size := uint32(len(b))
	if err := binary.Write(w, binary.LittleEndian, size); err != nil {
		return err
	}
	n, err := w.Write(b)
	if err != nil {
		return err
	}
	if uint32(n) != size {
		return fmt.Errorf("wire: short write, expected %d bytes, wrote %d", size, n)
	}
	return nil
}

// ReadFieldBytes reads a length-prefixed byte field written by
// WriteFieldBytes.
func ReadFieldBytes(r *bufio.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	b := make([]byte, size)
	if _, err := readFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readFull(r *bufio.Reader, b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := r.Read(b[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteUint64 writes a little-endian uint64 field.
func WriteUint64(w *bufio.Writer, v uint64) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// ReadUint64 reads a little-endian uint64 field.
func ReadUint64(r *bufio.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// WriteInt64 writes a little-endian int64 field.
func WriteInt64(w *bufio.Writer, v int64) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// ReadInt64 reads a little-endian int64 field.
func ReadInt64(r *bufio.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// WriteByte writes a single tag byte.
func WriteByte(w *bufio.Writer, b byte) error {
	return w.WriteByte(b)
}

// ReadByte reads a single tag byte.
func ReadByte(r *bufio.Reader) (byte, error) {
	return r.ReadByte()
}

// WriteBool writes a boolean as a single byte.
func WriteBool(w *bufio.Writer, v bool) error {
	if v {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

// ReadBool reads a boolean written by WriteBool.
func ReadBool(r *bufio.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}
