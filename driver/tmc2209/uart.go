package tmc2209

import (
	"errors"
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// syncNibble is the fixed low nibble of every datagram's first byte,
// per the TMC2209 UART single-wire datagram format.
const syncNibble = 0b0101

// nodeAddr is the node address a TMC2209 always uses in its reply
// datagrams (the UART interface doesn't support addressing multiple
// drivers on reads).
const nodeAddr = 0xff

// UART implements the TMC2209's single-wire UART interface over any
// serial port, framing read/write datagrams with the sync nibble and
// CRC8 trailer the chip expects. Unlike the teacher's TinyGo/PIO
// half-duplex bit-banger, this talks to the driver through a real
// UART (RS232-level or a USB-serial adapter wired to the single-wire
// pin through a diode-OR), so there's no PIO program to load or pin
// direction to flip; the datagram framing is unchanged.
type UART struct {
	port *serial.Port
}

// OpenUART opens the serial device at path (e.g. "/dev/ttyAMA2") at
// the TMC2209's fixed 57600 baud UART rate.
func OpenUART(path string) (*UART, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        path,
		Baud:        57600,
		ReadTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("tmc2209: open %s: %w", path, err)
	}
	return &UART{port: port}, nil
}

func (u *UART) Close() error {
	return u.port.Close()
}

// Write frames tx as a write datagram (sync nibble + payload + CRC8)
// and sends it.
func (u *UART) Write(tx []byte) (int, error) {
	buf := make([]byte, len(tx)+2)
	buf[0] = syncNibble
	copy(buf[1:], tx)
	buf[len(buf)-1] = crc8(buf[:len(buf)-1])
	if _, err := u.port.Write(buf); err != nil {
		return 0, fmt.Errorf("tmc2209: uart write: %w", err)
	}
	return len(tx), nil
}

// Read reads a reply datagram (sync nibble + node address + payload +
// CRC8) and returns the payload, validating sync, node address and
// checksum. A TMC2209 echoes every byte it sees on the single-wire
// bus, including its own write request; callers are responsible for
// discarding the echo before calling Read for a reply.
func (u *UART) Read(rx []byte) (int, error) {
	buf := make([]byte, len(rx)+3)
	n, err := readFull(u.port, buf)
	if err != nil {
		return 0, fmt.Errorf("tmc2209: uart read: %w", err)
	}
	buf = buf[:n]
	if len(buf) < 3 {
		return 0, errors.New("tmc2209: short reply datagram")
	}
	if crc8(buf[:len(buf)-1]) != buf[len(buf)-1] {
		return 0, errors.New("tmc2209: invalid CRC for receive datagram")
	}
	if buf[0]&0b1111 != syncNibble {
		return 0, errors.New("tmc2209: invalid sync nibble")
	}
	if buf[1] != nodeAddr {
		return 0, errors.New("tmc2209: invalid node address")
	}
	return copy(rx, buf[2:len(buf)-1]), nil
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func crc8(data []byte) byte {
	crc := byte(0)
	for _, b := range data {
		for i := 0; i < 8; i++ {
			xor := (crc>>7)^(b&0b1) != 0
			crc <<= 1
			b >>= 1
			if xor {
				crc ^= 0b111
			}
		}
	}
	return crc
}
