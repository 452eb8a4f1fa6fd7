// RS-232/Virtual-Serial over USB as the transport layer for the protocol.

package comwrapper

import (
	"io"
	"time"

	"github.com/tarm/serial"
)

type serialPort interface {
	io.ReadWriteCloser
	Flush() error
}

// Port is a serial port adapted to protocol.Transport.
type Port struct {
	name string
	port serialPort
}

// Open opens a COM port. readTimeout bounds each Read so the receive loop
// can notice a closed session; it must be non-zero.
func Open(name string, baud int, readTimeout time.Duration) (*Port, error) {
	p, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout})
	if err != nil {
		return nil, err
	}
	return &Port{name: name, port: p}, nil
}

// Read returns (0, nil) when the read timeout passes without data.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Flush discards data received but not yet read.
func (p *Port) Flush() error {
	return p.port.Flush()
}

func (p *Port) Close() error {
	return p.port.Close()
}

func (p *Port) String() string {
	return p.name
}
