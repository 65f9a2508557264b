package linkmux

import (
	"fmt"
	"net"

	"go.bug.st/serial"
)

// NewSerialLinkMux opens a hardware base link at the given device path.
func NewSerialLinkMux(path string, opts PortOptions) (*LinkMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial link %s: %w", path, err)
	}
	return NewLinkMux[serial.Port](port), nil
}

// NewTCPLinkMux dials a base controller listening on a TCP address. Used
// with networked controllers and with the simulator tool.
func NewTCPLinkMux(addr string) (*LinkMux[net.Conn], error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial base link %s: %w", addr, err)
	}
	return NewLinkMux[net.Conn](conn), nil
}
