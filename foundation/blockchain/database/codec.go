package database

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrCodec is returned for any malformed wire data.
var ErrCodec = errors.New("malformed wire data")

// maxContentSize bounds the content field of an output.
const maxContentSize = 1_050_000

// writeVarInt writes n in the variable-length integer format used across
// the wire: base-128 big-endian groups, high bit set on every byte except
// the last, each continuation step subtracting one before shifting.
func writeVarInt(w io.Writer, n uint64) error {
	var tmp [10]byte
	i := 0
	for {
		b := byte(n & 0x7f)
		if i > 0 {
			b |= 0x80
		}
		tmp[i] = b
		if n <= 0x7f {
			break
		}
		n = (n >> 7) - 1
		i++
	}
	for ; i >= 0; i-- {
		if _, err := w.Write(tmp[i : i+1]); err != nil {
			return err
		}
	}
	return nil
}

// readVarInt is the inverse of writeVarInt.
func readVarInt(r io.Reader) (uint64, error) {
	var n uint64
	var buf [1]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		if n > (^uint64(0)-0x7f)>>7 {
			return 0, fmt.Errorf("varint overflow: %w", ErrCodec)
		}
		n = (n << 7) | uint64(buf[0]&0x7f)
		if buf[0]&0x80 == 0 {
			return n, nil
		}
		n++
	}
}

// writeCompactSize writes a collection length prefix.
func writeCompactSize(w io.Writer, n uint64) error {
	var buf [9]byte
	switch {
	case n < 253:
		buf[0] = byte(n)
		_, err := w.Write(buf[:1])
		return err
	case n <= 0xffff:
		buf[0] = 253
		binary.LittleEndian.PutUint16(buf[1:3], uint16(n))
		_, err := w.Write(buf[:3])
		return err
	case n <= 0xffffffff:
		buf[0] = 254
		binary.LittleEndian.PutUint32(buf[1:5], uint32(n))
		_, err := w.Write(buf[:5])
		return err
	default:
		buf[0] = 255
		binary.LittleEndian.PutUint64(buf[1:9], n)
		_, err := w.Write(buf[:9])
		return err
	}
}

// readCompactSize is the inverse of writeCompactSize.
func readCompactSize(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return 0, err
	}
	switch buf[0] {
	case 253:
		if _, err := io.ReadFull(r, buf[:2]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(buf[:2])), nil
	case 254:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(buf[:4])), nil
	case 255:
		if _, err := io.ReadFull(r, buf[:8]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(buf[:8]), nil
	default:
		return uint64(buf[0]), nil
	}
}

// writeBytes writes a length-prefixed byte slice.
func writeBytes(w io.Writer, b []byte) error {
	if err := writeCompactSize(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readBytes reads a length-prefixed byte slice bounded by max.
func readBytes(r io.Reader, max uint64) ([]byte, error) {
	n, err := readCompactSize(r)
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, fmt.Errorf("field of %d bytes exceeds limit %d: %w", n, max, ErrCodec)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// writeUint32 writes a fixed-width little-endian uint32.
func writeUint32(w io.Writer, n uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], n)
	_, err := w.Write(buf[:])
	return err
}

// readUint32 reads a fixed-width little-endian uint32.
func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// writeUint64 writes a fixed-width little-endian uint64.
func writeUint64(w io.Writer, n uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	_, err := w.Write(buf[:])
	return err
}

// readUint64 reads a fixed-width little-endian uint64.
func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
