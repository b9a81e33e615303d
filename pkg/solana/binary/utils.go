// Package binary holds little-endian helpers for fixed account and
// instruction layouts. Each helper advances offset by the bytes it consumed
// and expects the caller to have checked the buffer length.
package binary

import (
	"encoding/binary"
)

// PutBytes copies src, advancing offset by size even when src is shorter.
func PutBytes(dst, src []byte, size int, offset *int) {
	copy(dst[*offset:*offset+size], src)
	*offset += size
}

// GetBytes returns a copy of the next size bytes.
func GetBytes(src []byte, size int, offset *int) []byte {
	out := append([]byte(nil), src[*offset:*offset+size]...)
	*offset += size
	return out
}

func PutUint8(dst []byte, v uint8, offset *int) {
	dst[*offset] = v
	*offset++
}

func GetUint8(src []byte, dst *uint8, offset *int) {
	*dst = src[*offset]
	*offset++
}

func PutUint64(dst []byte, v uint64, offset *int) {
	binary.LittleEndian.PutUint64(dst[*offset:], v)
	*offset += 8
}

func GetUint64(src []byte, dst *uint64, offset *int) {
	*dst = binary.LittleEndian.Uint64(src[*offset:])
	*offset += 8
}
