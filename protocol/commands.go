package protocol

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Command ids shared by every LWNX product.
const (
	CmdProductName     byte = 0
	CmdHardwareVersion byte = 1
	CmdFirmwareVersion byte = 2
	CmdSerialNumber    byte = 3
)

// ProductInfo identifies a connected device. Versions are the raw 32 bit values
// reported by the device.
type ProductInfo struct {
	Name            string `json:"name"`
	HardwareVersion uint32 `json:"hardwareVersion"`
	FirmwareVersion uint32 `json:"firmwareVersion"`
	SerialNumber    string `json:"serialNumber"`
}

// ReadProductInfo queries the identification commands in turn.
func (s *Session) ReadProductInfo(ctx context.Context) (ProductInfo, error) {
	var info ProductInfo
	var err error
	if info.Name, err = s.ReadString(ctx, CmdProductName); err != nil {
		return info, fmt.Errorf("product name: %w", err)
	}
	if info.HardwareVersion, err = s.ReadUint32(ctx, CmdHardwareVersion); err != nil {
		return info, fmt.Errorf("hardware version: %w", err)
	}
	if info.FirmwareVersion, err = s.ReadUint32(ctx, CmdFirmwareVersion); err != nil {
		return info, fmt.Errorf("firmware version: %w", err)
	}
	if info.SerialNumber, err = s.ReadString(ctx, CmdSerialNumber); err != nil {
		return info, fmt.Errorf("serial number: %w", err)
	}
	return info, nil
}

func (s *Session) read(ctx context.Context, command byte) (*Packet, error) {
	return s.Execute(ctx, command, false, nil)
}

func (s *Session) ReadUint8(ctx context.Context, command byte) (uint8, error) {
	p, err := s.read(ctx, command)
	if err != nil {
		return 0, err
	}
	return p.Uint8(0)
}

func (s *Session) ReadInt8(ctx context.Context, command byte) (int8, error) {
	p, err := s.read(ctx, command)
	if err != nil {
		return 0, err
	}
	return p.Int8(0)
}

func (s *Session) ReadUint16(ctx context.Context, command byte) (uint16, error) {
	p, err := s.read(ctx, command)
	if err != nil {
		return 0, err
	}
	return p.Uint16(0)
}

func (s *Session) ReadInt16(ctx context.Context, command byte) (int16, error) {
	p, err := s.read(ctx, command)
	if err != nil {
		return 0, err
	}
	return p.Int16(0)
}

func (s *Session) ReadUint32(ctx context.Context, command byte) (uint32, error) {
	p, err := s.read(ctx, command)
	if err != nil {
		return 0, err
	}
	return p.Uint32(0)
}

func (s *Session) ReadInt32(ctx context.Context, command byte) (int32, error) {
	p, err := s.read(ctx, command)
	if err != nil {
		return 0, err
	}
	return p.Int32(0)
}

// ReadString reads a 16 byte string field.
func (s *Session) ReadString(ctx context.Context, command byte) (string, error) {
	p, err := s.read(ctx, command)
	if err != nil {
		return "", err
	}
	return p.Str16(0)
}

// ReadData reads exactly size bytes of response data.
func (s *Session) ReadData(ctx context.Context, command byte, size int) ([]byte, error) {
	p, err := s.read(ctx, command)
	if err != nil {
		return nil, err
	}
	return p.Data(0, size)
}

// WriteData sends a write command and waits for the device to acknowledge it.
func (s *Session) WriteData(ctx context.Context, command byte, data []byte) error {
	_, err := s.Execute(ctx, command, true, data)
	return err
}

func (s *Session) WriteUint8(ctx context.Context, command byte, v uint8) error {
	return s.WriteData(ctx, command, []byte{v})
}

func (s *Session) WriteInt8(ctx context.Context, command byte, v int8) error {
	return s.WriteUint8(ctx, command, uint8(v))
}

func (s *Session) WriteUint16(ctx context.Context, command byte, v uint16) error {
	return s.WriteData(ctx, command, binary.LittleEndian.AppendUint16(nil, v))
}

func (s *Session) WriteInt16(ctx context.Context, command byte, v int16) error {
	return s.WriteUint16(ctx, command, uint16(v))
}

func (s *Session) WriteUint32(ctx context.Context, command byte, v uint32) error {
	return s.WriteData(ctx, command, binary.LittleEndian.AppendUint32(nil, v))
}

func (s *Session) WriteInt32(ctx context.Context, command byte, v int32) error {
	return s.WriteUint32(ctx, command, uint32(v))
}

// WriteString writes a string field, zero padded to 16 bytes. Longer strings
// are rejected rather than truncated.
func (s *Session) WriteString(ctx context.Context, command byte, v string) error {
	if len(v) > StringFieldSize {
		return fmt.Errorf("%w: string of %d bytes exceeds field size %d", ErrPayloadTooLarge, len(v), StringFieldSize)
	}
	field := make([]byte, StringFieldSize)
	copy(field, v)
	return s.WriteData(ctx, command, field)
}
