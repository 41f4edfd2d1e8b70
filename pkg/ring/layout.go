package ring

import (
	"bytes"
	"encoding/binary"
	"log/slog"
)

// Shared-memory layout. All integers are little-endian at fixed byte
// offsets, so any attached process can locate a slot from its index
// alone. Variable text is stored with an explicit length prefix inside
// a fixed-width field.
const (
	magic   = 0x4c4d4853 // "SHML"
	version = 1

	headerSize = 64

	offMagic        = 0
	offVersion      = 4
	offCapacity     = 8
	offCursor       = 12
	offTotalWritten = 16

	slotPID       = 0
	slotLevel     = 4
	slotTimestamp = 8
	slotCode      = 16
	slotMsgLen    = 21
	slotQueryLen  = 23
	slotMsg       = 25
	slotQuery     = slotMsg + MaxMessageLen

	slotSize = slotQuery + MaxQueryLen
)

// Size is the arena size in bytes of a full segment: one header plus
// Capacity fixed-width slots.
const Size = headerSize + Capacity*slotSize

func encodeRecord(dst []byte, rec Record) {
	rec = rec.Clamp()
	binary.LittleEndian.PutUint32(dst[slotPID:], uint32(rec.PID))
	binary.LittleEndian.PutUint32(dst[slotLevel:], uint32(int32(rec.Level)))
	binary.LittleEndian.PutUint64(dst[slotTimestamp:], uint64(rec.Timestamp))
	writeText(dst[slotCode:slotCode+CodeLen], rec.Code)
	binary.LittleEndian.PutUint16(dst[slotMsgLen:], uint16(len(rec.Message)))
	binary.LittleEndian.PutUint16(dst[slotQueryLen:], uint16(len(rec.QueryText)))
	writeText(dst[slotMsg:slotMsg+MaxMessageLen], rec.Message)
	writeText(dst[slotQuery:slotQuery+MaxQueryLen], rec.QueryText)
}

func decodeRecord(src []byte) Record {
	msgLen := int(binary.LittleEndian.Uint16(src[slotMsgLen:]))
	if msgLen > MaxMessageLen {
		msgLen = MaxMessageLen
	}
	queryLen := int(binary.LittleEndian.Uint16(src[slotQueryLen:]))
	if queryLen > MaxQueryLen {
		queryLen = MaxQueryLen
	}

	return Record{
		PID:       int32(binary.LittleEndian.Uint32(src[slotPID:])),
		Level:     slog.Level(int32(binary.LittleEndian.Uint32(src[slotLevel:]))),
		Timestamp: int64(binary.LittleEndian.Uint64(src[slotTimestamp:])),
		Code:      readCode(src[slotCode : slotCode+CodeLen]),
		Message:   string(src[slotMsg : slotMsg+msgLen]),
		QueryText: string(src[slotQuery : slotQuery+queryLen]),
	}
}

// writeText copies s into the fixed field and clears the tail, so an
// overwritten slot never leaks bytes from a longer predecessor.
func writeText(dst []byte, s string) {
	n := copy(dst, s)
	clear(dst[n:])
}

func readCode(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		src = src[:i]
	}
	return string(src)
}
