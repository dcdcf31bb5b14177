package reader

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// Serial implements TagReader for serial RFID readers.
// Protocol: [0x02][0x09][data...][checksum][0x03]
type Serial struct {
	port   *serial.Port
	device string
}

// NewSerial opens the serial reader on the given device node.
func NewSerial(device string) (*Serial, error) {
	c := &serial.Config{
		Name:        device,
		Baud:        115200,
		ReadTimeout: time.Second,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	return &Serial{port: port, device: device}, nil
}

// Read implements TagReader.Read for serial readers.
func (s *Serial) Read(ctx context.Context) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		uid, err := s.readFrame()
		if err != nil {
			return "", err
		}
		if uid != "" {
			return uid, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (s *Serial) readFrame() (string, error) {
	buff := make([]byte, 9)

	n, err := s.port.Read(buff)
	if err != nil {
		return "", nil // Timeout, try again
	}
	if n != 9 {
		return "", nil // Partial read
	}

	preambles := []byte{0x02, 0x09}
	terminator := []byte{0x03}

	if !bytes.Equal(buff[0:2], preambles) {
		return "", nil
	}
	if !bytes.Equal(buff[8:9], terminator) {
		return "", nil
	}

	data := buff[1:7]
	xor := data[0]
	for i := 1; i < len(data); i++ {
		xor ^= data[i]
	}
	if xor != buff[7] {
		return "", nil // Checksum mismatch
	}

	return hexUID(data[2:6]), nil
}

// hexUID renders the card id bytes as upper-case hex, the fixed case
// used throughout the queue and upload payload.
func hexUID(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// Close implements TagReader.Close.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
