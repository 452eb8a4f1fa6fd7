package protocol

import "encoding/binary"

type parseState uint8

const (
	awaitingMarker parseState = iota
	gotMarker
	gotFlagsLow
	accumulatingPayload
)

// Event reports what a single byte did to the parser.
type Event uint8

const (
	EventNone      Event = iota // byte consumed, no frame boundary
	EventFrame                  // a verified frame was completed
	EventBadLength              // declared length out of bounds, frame abandoned
	EventBadCRC                 // frame completed but failed the crc check
)

func (e Event) String() string {
	switch e {
	case EventFrame:
		return "ok"
	case EventBadLength:
		return "bad_length"
	case EventBadCRC:
		return "bad_crc"
	default:
		return "none"
	}
}

// Parser is the streaming frame decoder for one connection.
// It consumes one byte per transition and resynchronises on the next start byte
// after any invalid frame. The zero value is ready to use.
type Parser struct {
	state     parseState
	buf       []byte
	remaining int
}

// Reset drops any partially received frame.
func (p *Parser) Reset() {
	p.state = awaitingMarker
	p.buf = p.buf[:0]
	p.remaining = 0
}

// Pending reports whether a frame is partially accumulated.
func (p *Parser) Pending() bool {
	return p.state != awaitingMarker
}

// FeedByte advances the state machine by one byte. A non-nil packet is
// returned only together with EventFrame.
func (p *Parser) FeedByte(b byte) (*Packet, Event) {
	switch p.state {
	case awaitingMarker:
		if b == StartByte {
			if p.buf == nil {
				p.buf = make([]byte, 0, MaxFrameSize)
			}
			p.buf = append(p.buf[:0], b)
			p.state = gotMarker
		}
	case gotMarker:
		p.buf = append(p.buf, b)
		p.state = gotFlagsLow
	case gotFlagsLow:
		p.buf = append(p.buf, b)
		declared := declaredLength(binary.LittleEndian.Uint16(p.buf[1:3]))
		if declared < minDeclaredLength || declared > maxDeclaredLength {
			p.Reset()
			return nil, EventBadLength
		}
		p.remaining = declared
		p.state = accumulatingPayload
	case accumulatingPayload:
		p.buf = append(p.buf, b)
		p.remaining--
		if p.remaining > 0 {
			return nil, EventNone
		}
		frame := p.buf
		p.Reset()
		if !crcMatches(frame) {
			return nil, EventBadCRC
		}
		return packetFromFrame(frame), EventFrame
	}
	return nil, EventNone
}

// Feed runs every byte of data through FeedByte and returns the verified frames in order.
func (p *Parser) Feed(data []byte) []*Packet {
	var out []*Packet
	for _, b := range data {
		if pkt, ev := p.FeedByte(b); ev == EventFrame {
			out = append(out, pkt)
		}
	}
	return out
}
