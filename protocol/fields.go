package protocol

import "encoding/binary"

// StringFieldSize is the fixed width of LWNX string fields.
const StringFieldSize = 16

// Field accessors read from the data that follows the command id, so offset 0
// is frame byte 4. Every accessor bounds-checks against the payload.

func (p *Packet) window(offset, size int) ([]byte, error) {
	if offset < 0 || size < 0 || offset > len(p.Payload) || size > len(p.Payload)-offset {
		return nil, &OutOfRangeError{Offset: offset, Size: size, Available: len(p.Payload)}
	}
	return p.Payload[offset : offset+size], nil
}

func (p *Packet) Uint8(offset int) (uint8, error) {
	b, err := p.window(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (p *Packet) Int8(offset int) (int8, error) {
	v, err := p.Uint8(offset)
	return int8(v), err
}

func (p *Packet) Uint16(offset int) (uint16, error) {
	b, err := p.window(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (p *Packet) Int16(offset int) (int16, error) {
	v, err := p.Uint16(offset)
	return int16(v), err
}

func (p *Packet) Uint32(offset int) (uint32, error) {
	b, err := p.window(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (p *Packet) Int32(offset int) (int32, error) {
	v, err := p.Uint32(offset)
	return int32(v), err
}

// Str16 decodes a zero terminated string of at most StringFieldSize bytes.
// A string that is not terminated within the bytes the payload actually holds
// is out of range unless the full 16 byte window was available.
func (p *Packet) Str16(offset int) (string, error) {
	if offset < 0 || offset > len(p.Payload) {
		return "", &OutOfRangeError{Offset: offset, Size: StringFieldSize, Available: len(p.Payload)}
	}
	field := p.Payload[offset:]
	if len(field) > StringFieldSize {
		field = field[:StringFieldSize]
	}
	for i, c := range field {
		if c == 0 {
			return string(field[:i]), nil
		}
	}
	if len(field) < StringFieldSize {
		return "", &OutOfRangeError{Offset: offset, Size: StringFieldSize, Available: len(p.Payload)}
	}
	return string(field), nil
}

// Data returns a copy of exactly size payload bytes starting at offset.
func (p *Packet) Data(offset, size int) ([]byte, error) {
	b, err := p.window(offset, size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, b)
	return out, nil
}
