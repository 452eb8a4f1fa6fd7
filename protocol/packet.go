package protocol

import (
	"encoding/binary"
	"fmt"
)

// Framing constants.
const (
	StartByte = 0xAA

	headerSize = 4 // marker, flags (2), command id
	crcSize    = 2

	// Bounds on the declared length (flags>>6)+2, i.e. command byte + data + crc.
	minDeclaredLength = 3
	maxDeclaredLength = 1019

	// MaxPayloadSize is the largest data section that still yields a frame the parser accepts.
	MaxPayloadSize = maxDeclaredLength - 1 - crcSize

	MinFrameSize = headerSize + crcSize
	MaxFrameSize = headerSize + MaxPayloadSize + crcSize

	flagWrite   = 0x0001
	lengthShift = 6
)

// Protocol packet and helpers.
// Payload holds the data bytes that follow the command id.
type Packet struct {
	Command byte
	Write   bool
	Payload []byte
}

func (p *Packet) flags() uint16 {
	f := uint16(1+len(p.Payload)) << lengthShift
	if p.Write {
		f |= flagWrite
	}
	return f
}

// serialize builds the full frame including crc.
func (p *Packet) serialize() []byte {
	ser := make([]byte, 0, headerSize+len(p.Payload)+crcSize)
	ser = append(ser, StartByte)
	ser = binary.LittleEndian.AppendUint16(ser, p.flags())
	ser = append(ser, p.Command)
	ser = append(ser, p.Payload...)
	return binary.LittleEndian.AppendUint16(ser, Checksum(ser))
}

// Raw returns the packet as it appears on the wire.
func (p *Packet) Raw() []byte {
	return p.serialize()
}

func (p *Packet) String() string {
	dir := "R"
	if p.Write {
		dir = "W"
	}
	if len(p.Payload) == 0 {
		return fmt.Sprintf("cmd=%d %s <no data>", p.Command, dir)
	}
	return fmt.Sprintf("cmd=%d %s [%d]data=% x", p.Command, dir, len(p.Payload), p.Payload)
}

// Encode frames a command for transmission.
func Encode(command byte, write bool, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes, maximum is %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	p := Packet{Command: command, Write: write, Payload: payload}
	return p.serialize(), nil
}

// Decode verifies a complete frame and returns its fields.
// The returned payload does not alias raw.
func Decode(raw []byte) (*Packet, error) {
	if len(raw) < MinFrameSize {
		return nil, ErrShortFrame
	}
	if raw[0] != StartByte {
		return nil, ErrBadMarker
	}
	flags := binary.LittleEndian.Uint16(raw[1:3])
	declared := declaredLength(flags)
	if declared < minDeclaredLength || declared > maxDeclaredLength {
		return nil, fmt.Errorf("%w: %d", ErrBadLength, declared)
	}
	if 3+declared != len(raw) {
		return nil, fmt.Errorf("%w: header says %d bytes, got %d", ErrBadLength, 3+declared, len(raw))
	}
	if !crcMatches(raw) {
		return nil, ErrBadCRC
	}
	return packetFromFrame(raw), nil
}

// declaredLength is the number of bytes that follow the flags field.
func declaredLength(flags uint16) int {
	return int(flags>>lengthShift) + crcSize
}

func crcMatches(frame []byte) bool {
	n := len(frame)
	return binary.LittleEndian.Uint16(frame[n-crcSize:]) == Checksum(frame[:n-crcSize])
}

// packetFromFrame assumes frame has already been verified.
func packetFromFrame(frame []byte) *Packet {
	flags := binary.LittleEndian.Uint16(frame[1:3])
	data := frame[headerSize : len(frame)-crcSize]
	payload := make([]byte, len(data))
	copy(payload, data)
	return &Packet{
		Command: frame[3],
		Write:   flags&flagWrite != 0,
		Payload: payload,
	}
}
