package ring

import (
	"encoding/binary"
	"fmt"
)

// Store provides ring operations over a mapped arena. It does no
// locking of its own: Append and Reset require the segment guard held
// exclusively, At and Snapshot require at least a shared hold.
type Store struct {
	data []byte
}

// New wraps an arena. The arena must be exactly Size bytes.
func New(data []byte) (*Store, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("ring: arena is %d bytes, want %d", len(data), Size)
	}
	return &Store{data: data}, nil
}

// Initialize stamps the header of a freshly zeroed arena. Only the
// first attacher calls this, under the segment init lock.
func (s *Store) Initialize() {
	binary.LittleEndian.PutUint32(s.data[offMagic:], magic)
	binary.LittleEndian.PutUint32(s.data[offVersion:], version)
	binary.LittleEndian.PutUint32(s.data[offCapacity:], Capacity)
	s.setCursor(0)
	s.setTotalWritten(0)
}

// Validate checks the header stamp left by the first attacher.
func (s *Store) Validate() error {
	if got := binary.LittleEndian.Uint32(s.data[offMagic:]); got != magic {
		return fmt.Errorf("ring: bad magic %#x", got)
	}
	if got := binary.LittleEndian.Uint32(s.data[offVersion:]); got != version {
		return fmt.Errorf("ring: layout version %d, want %d", got, version)
	}
	if got := binary.LittleEndian.Uint32(s.data[offCapacity:]); got != Capacity {
		return fmt.Errorf("ring: capacity %d, want %d", got, Capacity)
	}
	return nil
}

// Append writes rec into the cursor slot, overwriting the oldest entry
// once the buffer has wrapped, then advances the cursor and the total.
// Overwrite is the designed behavior, not an error condition: Append
// never fails and never blocks on capacity.
func (s *Store) Append(rec Record) {
	cur := s.Cursor()
	encodeRecord(s.slot(int(cur)), rec)
	s.setCursor((cur + 1) % Capacity)
	s.setTotalWritten(s.TotalWritten() + 1)
}

// At decodes the record in slot i.
func (s *Store) At(i int) Record {
	return decodeRecord(s.slot(i))
}

// Snapshot copies every slot into a caller-owned slice, so longer read
// operations can run after the guard is released.
func (s *Store) Snapshot() []Record {
	out := make([]Record, Capacity)
	for i := range out {
		out[i] = decodeRecord(s.slot(i))
	}
	return out
}

// Reset empties the buffer: cursor and total return to zero and every
// slot becomes the empty sentinel.
func (s *Store) Reset() {
	clear(s.data[headerSize:])
	s.setCursor(0)
	s.setTotalWritten(0)
}

// Cursor returns the next write position, always in [0, Capacity).
func (s *Store) Cursor() uint32 {
	return binary.LittleEndian.Uint32(s.data[offCursor:])
}

// TotalWritten counts every append ever performed. It is not capped by
// Capacity.
func (s *Store) TotalWritten() uint64 {
	return binary.LittleEndian.Uint64(s.data[offTotalWritten:])
}

// Len returns the number of occupied slots, min(TotalWritten, Capacity).
func (s *Store) Len() int {
	if tw := s.TotalWritten(); tw < Capacity {
		return int(tw)
	}
	return Capacity
}

func (s *Store) setCursor(v uint32) {
	binary.LittleEndian.PutUint32(s.data[offCursor:], v)
}

func (s *Store) setTotalWritten(v uint64) {
	binary.LittleEndian.PutUint64(s.data[offTotalWritten:], v)
}

func (s *Store) slot(i int) []byte {
	off := headerSize + i*slotSize
	return s.data[off : off+slotSize]
}
