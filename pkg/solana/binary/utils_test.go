package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutGet(t *testing.T) {
	buf := make([]byte, 4+1+8)

	var offset int
	PutBytes(buf, []byte{0xaa, 0xbb}, 4, &offset)
	PutUint8(buf, 7, &offset)
	PutUint64(buf, 890_880, &offset)
	assert.Equal(t, len(buf), offset)
	assert.Equal(t, []byte{0xaa, 0xbb, 0, 0, 7}, buf[:5])
	assert.Equal(t, []byte{0x00, 0x98, 0x0d, 0, 0, 0, 0, 0}, buf[5:])

	var u8 uint8
	var u64 uint64

	offset = 0
	prefix := GetBytes(buf, 4, &offset)
	GetUint8(buf, &u8, &offset)
	GetUint64(buf, &u64, &offset)
	assert.Equal(t, len(buf), offset)

	assert.Equal(t, []byte{0xaa, 0xbb, 0, 0}, prefix)
	assert.EqualValues(t, 7, u8)
	assert.EqualValues(t, 890_880, u64)

	// Returned bytes don't alias the buffer.
	prefix[0] = 0
	assert.EqualValues(t, 0xaa, buf[0])
}
