package framer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFramerHandshakeNeedsTwelveBytes(t *testing.T) {
	f := NewClientFramer()
	res, err := f.Next([]byte{'l', 0, 0, 0, 0, 0, 0, 0, 0, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Need)
	assert.Equal(t, StateStart, f.State)
}

func TestClientFramerHandshakeBadByteOrderIsLost(t *testing.T) {
	f := NewClientFramer()
	buf := make([]byte, 12)
	buf[0] = 'X'
	res, err := f.Next(buf, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, res.PacketLen)
	assert.Equal(t, StateLost, f.State)
}

func TestClientFramerHandshakeComplete(t *testing.T) {
	f := NewClientFramer()
	buf := make([]byte, 12)
	buf[0] = 'l'
	binary.LittleEndian.PutUint16(buf[6:8], 0) // name len
	binary.LittleEndian.PutUint16(buf[8:10], 0) // data len
	res, err := f.Next(buf, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, res.PacketLen)
	assert.Equal(t, StateNormal, f.State)
}

func TestClientFramerHandshakeWithAuthCookieNeedsPaddedLength(t *testing.T) {
	f := NewClientFramer()
	// name len 5 ("MIT-DES"[:5] truncated for the example), data len 3;
	// both pad up to 4-byte units, so total = 12 + 8 + 4 = 24.
	buf := make([]byte, 12)
	buf[0] = 'l'
	binary.LittleEndian.PutUint16(buf[6:8], 5)
	binary.LittleEndian.PutUint16(buf[8:10], 3)
	res, err := f.Next(buf, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Need)

	full := make([]byte, 24)
	copy(full, buf)
	res, err = f.Next(full, 24)
	require.NoError(t, err)
	assert.Equal(t, 24, res.PacketLen)
	assert.Equal(t, StateNormal, f.State)
}

func TestClientFramerNormalRequestLength(t *testing.T) {
	f := &ClientFramer{State: StateNormal, Order: binary.LittleEndian}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[2:4], 2) // 2 four-byte units = 8 bytes
	res, err := f.Next(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, res.PacketLen)
	assert.Equal(t, 0, res.BigOffset)
}

func TestClientFramerBigRequestAppliesOffset(t *testing.T) {
	f := &ClientFramer{State: StateNormal, Order: binary.LittleEndian}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[2:4], 0)
	binary.LittleEndian.PutUint32(buf[4:8], 0x10000)
	res, err := f.Next(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, 0x10000*4, res.PacketLen)
	assert.Equal(t, 4, res.BigOffset)
}

func TestClientFramerBigRequestBelowMinimumIsLost(t *testing.T) {
	f := &ClientFramer{State: StateNormal, Order: binary.LittleEndian}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[2:4], 0)
	binary.LittleEndian.PutUint32(buf[4:8], 1)
	res, err := f.Next(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, StateLost, f.State)
	assert.Equal(t, 8, res.PacketLen)
}

func TestServerFramerErrorIsFixed32(t *testing.T) {
	f := &ServerFramer{State: StateNormal, Order: binary.LittleEndian}
	buf := make([]byte, 32)
	buf[0] = 0
	res, err := f.Next(buf, 32)
	require.NoError(t, err)
	assert.Equal(t, 32, res.PacketLen)
}

func TestServerFramerReplyReadsLength32(t *testing.T) {
	f := &ServerFramer{State: StateNormal, Order: binary.LittleEndian}
	buf := make([]byte, 40)
	buf[0] = 1
	binary.LittleEndian.PutUint32(buf[4:8], 2) // 2 extra 4-byte units
	res, err := f.Next(buf, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, res.PacketLen)
}

func TestServerFramerPlainEventIsFixed32(t *testing.T) {
	f := &ServerFramer{State: StateNormal, Order: binary.LittleEndian}
	buf := make([]byte, 32)
	buf[0] = 28 // PropertyNotify
	res, err := f.Next(buf, 32)
	require.NoError(t, err)
	assert.Equal(t, 32, res.PacketLen)
}

func TestServerFramerGenericEventUsesLength32(t *testing.T) {
	f := &ServerFramer{State: StateNormal, Order: binary.LittleEndian}
	buf := make([]byte, 40)
	buf[0] = GenericEventCode
	binary.LittleEndian.PutUint32(buf[4:8], 2)
	res, err := f.Next(buf, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, res.PacketLen)
}
