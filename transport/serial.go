// Package transport implements the servo controller's two external
// links: an in-process, single-slot command mailbox with a
// sequence-number handshake, and a status-snapshot publisher whose
// length-prefixed CBOR frames can be written to any io.Writer (in
// practice a github.com/tarm/serial port to a jog pendant or MDI
// console). Commands are not read from the serial port.
package transport

import (
	"errors"
	"io"
	"runtime"

	"github.com/tarm/serial"
)

// Open probes a fixed list of candidate device paths (or dev alone,
// if non-empty) and returns the first one that opens, grounded on
// driver/mjolnir/device.go's Open(): try several likely paths, keep
// the first success.
func Open(dev string) (io.ReadWriteCloser, error) {
	const baud = 115200

	var candidates []string
	if dev != "" {
		candidates = append(candidates, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			candidates = append(candidates, "COM3", "COM4")
		case "linux":
			candidates = append(candidates, "/dev/ttyACM0", "/dev/ttyUSB0")
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("transport: no device specified")
	}
	var firstErr error
	for _, d := range candidates {
		port, err := serial.OpenPort(&serial.Config{Name: d, Baud: baud})
		if err == nil {
			return port, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
