package protocol_test

import (
	"math/rand"
	"testing"

	"github.com/RoanBrand/LWNXProtocol/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEncode(t *testing.T, command byte, write bool, payload []byte) []byte {
	t.Helper()
	raw, err := protocol.Encode(command, write, payload)
	require.NoError(t, err)
	return raw
}

func TestParserSkipsGarbage(t *testing.T) {
	stream := []byte{0x00, 0x13, 0x37, 0xFF, 0x01}
	stream = append(stream, mustEncode(t, 44, false, []byte{0x10, 0x27})...)

	var parser protocol.Parser
	frames := parser.Feed(stream)
	require.Len(t, frames, 1)
	assert.Equal(t, byte(44), frames[0].Command)
	assert.Equal(t, []byte{0x10, 0x27}, frames[0].Payload)
	assert.False(t, parser.Pending())
}

func TestParserEvents(t *testing.T) {
	raw := mustEncode(t, 2, false, []byte{1, 2, 3, 4})

	var parser protocol.Parser
	for i, b := range raw {
		p, ev := parser.FeedByte(b)
		if i < len(raw)-1 {
			assert.Nil(t, p)
			assert.Equal(t, protocol.EventNone, ev)
			assert.True(t, parser.Pending())
			continue
		}
		require.NotNil(t, p)
		assert.Equal(t, protocol.EventFrame, ev)
		assert.Equal(t, byte(2), p.Command)
	}
}

func TestParserBadLength(t *testing.T) {
	tests := []struct {
		name  string
		flags [2]byte
	}{
		{"below minimum", [2]byte{0x00, 0x00}},
		{"above maximum", [2]byte{0xFF, 0xFF}},
		{"just above maximum", [2]byte{0x80, 0xFE}}, // (0xFE80>>6)+2 = 1020
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var parser protocol.Parser
			_, ev := parser.FeedByte(protocol.StartByte)
			assert.Equal(t, protocol.EventNone, ev)
			_, ev = parser.FeedByte(tt.flags[0])
			assert.Equal(t, protocol.EventNone, ev)
			p, ev := parser.FeedByte(tt.flags[1])
			assert.Nil(t, p)
			assert.Equal(t, protocol.EventBadLength, ev)
			assert.False(t, parser.Pending())
		})
	}
}

func TestParserBadCRCThenRecover(t *testing.T) {
	bad := mustEncode(t, 10, false, []byte{1, 2})
	bad[len(bad)-2] ^= 0x01
	good := mustEncode(t, 11, false, []byte{3, 4})

	var parser protocol.Parser
	var events []protocol.Event
	var frames []*protocol.Packet
	for _, b := range append(bad, good...) {
		p, ev := parser.FeedByte(b)
		if ev != protocol.EventNone {
			events = append(events, ev)
		}
		if p != nil {
			frames = append(frames, p)
		}
	}
	assert.Equal(t, []protocol.Event{protocol.EventBadCRC, protocol.EventFrame}, events)
	require.Len(t, frames, 1)
	assert.Equal(t, byte(11), frames[0].Command)
}

func TestParserStartByteInPayload(t *testing.T) {
	raw := mustEncode(t, 5, true, []byte{0xAA, 0xAA, 0x40, 0x00})
	var parser protocol.Parser
	frames := parser.Feed(raw)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0xAA, 0xAA, 0x40, 0x00}, frames[0].Payload)
}

func TestParserLargestFrame(t *testing.T) {
	payload := make([]byte, protocol.MaxPayloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	var parser protocol.Parser
	frames := parser.Feed(mustEncode(t, 9, false, payload))
	require.Len(t, frames, 1)
	assert.Equal(t, payload, frames[0].Payload)
}

func TestParserReset(t *testing.T) {
	raw := mustEncode(t, 1, false, []byte{1, 2, 3, 4})
	var parser protocol.Parser
	assert.Empty(t, parser.Feed(raw[:5]))
	parser.Reset()
	assert.False(t, parser.Pending())
	assert.Empty(t, parser.Feed(raw[5:]))
	assert.Len(t, parser.Feed(raw), 1)
}

func TestParserByteWiseMatchesBulk(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	var stream []byte
	for i := 0; i < 50; i++ {
		noise := make([]byte, rnd.Intn(8))
		for j := range noise {
			noise[j] = byte(rnd.Intn(0xAA)) // keep the start byte out of the noise
		}
		stream = append(stream, noise...)
		payload := make([]byte, rnd.Intn(40))
		rnd.Read(payload)
		frame := mustEncode(t, byte(i), rnd.Intn(2) == 1, payload)
		if i%7 == 0 {
			frame[len(frame)-1] ^= 0x80
		}
		stream = append(stream, frame...)
	}

	var bulk protocol.Parser
	want := bulk.Feed(stream)

	var single protocol.Parser
	var got []*protocol.Packet
	for _, b := range stream {
		if p, ev := single.FeedByte(b); ev == protocol.EventFrame {
			got = append(got, p)
		}
	}

	assert.Len(t, want, 50-8)
	assert.Equal(t, want, got)

	// chunked feeding
	var chunked protocol.Parser
	got = got[:0]
	for len(stream) > 0 {
		n := 1 + rnd.Intn(13)
		if n > len(stream) {
			n = len(stream)
		}
		got = append(got, chunked.Feed(stream[:n])...)
		stream = stream[n:]
	}
	assert.Equal(t, want, got)
}
