package protocol_test

import (
	"errors"
	"math"
	"testing"

	"github.com/RoanBrand/LWNXProtocol/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldDecoders(t *testing.T) {
	p := &protocol.Packet{Payload: []byte{0x80, 0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x10, 0x27}}

	u8, err := p.Uint8(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x80), u8)

	i8, err := p.Int8(0)
	require.NoError(t, err)
	assert.Equal(t, int8(-128), i8)

	i16, err := p.Int16(1)
	require.NoError(t, err)
	assert.Equal(t, int16(-2), i16)

	u16, err := p.Uint16(7)
	require.NoError(t, err)
	assert.Equal(t, uint16(10000), u16)

	i32, err := p.Int32(3)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), i32)

	u32, err := p.Uint32(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFE), u32)
}

func TestFieldOutOfRange(t *testing.T) {
	p := &protocol.Packet{Payload: []byte{1, 2}}

	_, err := p.Uint32(0)
	assert.ErrorIs(t, err, protocol.ErrOutOfRange)

	var oor *protocol.OutOfRangeError
	require.True(t, errors.As(err, &oor))
	assert.Equal(t, protocol.OutOfRangeError{Offset: 0, Size: 4, Available: 2}, *oor)

	_, err = p.Uint16(1)
	assert.ErrorIs(t, err, protocol.ErrOutOfRange)
	_, err = p.Uint8(2)
	assert.ErrorIs(t, err, protocol.ErrOutOfRange)
	_, err = p.Int8(-1)
	assert.ErrorIs(t, err, protocol.ErrOutOfRange)
	_, err = p.Data(1, 2)
	assert.ErrorIs(t, err, protocol.ErrOutOfRange)
}

func TestFieldSizeOverflow(t *testing.T) {
	p := &protocol.Packet{Payload: []byte{1, 2, 3}}

	assert.NotPanics(t, func() {
		_, err := p.Data(1, math.MaxInt)
		var oor *protocol.OutOfRangeError
		if assert.True(t, errors.As(err, &oor)) {
			assert.Equal(t, math.MaxInt, oor.Size)
		}

		_, err = p.Data(math.MaxInt, 1)
		assert.ErrorIs(t, err, protocol.ErrOutOfRange)
		_, err = p.Uint32(math.MaxInt - 1)
		assert.ErrorIs(t, err, protocol.ErrOutOfRange)
		_, err = p.Str16(math.MaxInt)
		assert.ErrorIs(t, err, protocol.ErrOutOfRange)
	})
}

func TestStr16(t *testing.T) {
	long := []byte("ABCDEFGHIJKLMNOPQRST")

	tests := []struct {
		name    string
		payload []byte
		offset  int
		want    string
		wantErr bool
	}{
		{"terminated", []byte{'A', 'B', 0}, 0, "AB", false},
		{"empty string", []byte{0, 'x'}, 0, "", false},
		{"at offset", []byte{9, 9, 'h', 'i', 0, 'z'}, 2, "hi", false},
		{"full window without terminator", long[:16], 0, "ABCDEFGHIJKLMNOP", false},
		{"stops at 16 bytes", long, 2, "CDEFGHIJKLMNOPQR", false},
		{"unterminated short field", []byte{'A', 'B', 'C'}, 0, "", true},
		{"offset past end", []byte{'A', 0}, 3, "", true},
		{"negative offset", []byte{'A', 0}, -1, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &protocol.Packet{Payload: tt.payload}
			got, err := p.Str16(tt.offset)
			if tt.wantErr {
				assert.ErrorIs(t, err, protocol.ErrOutOfRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDataIsCopy(t *testing.T) {
	p := &protocol.Packet{Payload: []byte{1, 2, 3, 4}}
	d, err := p.Data(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, d)

	d[0] = 0xFF
	assert.Equal(t, byte(2), p.Payload[1])

	empty, err := p.Data(4, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
