// Package protocol implements the LightWare LWNX binary serial protocol used by
// SF-series laser rangefinders.
//
// A frame on the wire is
//
//	0xAA | flags lo | flags hi | command id | data... | crc lo | crc hi
//
// where flags = (1+len(data))<<6 | write. The crc covers every byte before it.
//
// Packets are built with Encode and checked with Decode. A Parser recovers
// frames from an unreliable byte stream, and a Session runs the
// request/acknowledge exchange with timeouts and retries over any Transport.
package protocol
