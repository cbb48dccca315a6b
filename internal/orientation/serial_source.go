package orientation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaudRate is used when a SerialSource is created with a zero baud rate.
const DefaultBaudRate = 115200

// openPort is swapped in tests.
var openPort = func(name string, mode *serial.Mode) (io.ReadCloser, error) {
	return serial.Open(name, mode)
}

// listPorts is swapped in tests.
var listPorts = serial.GetPortsList

// SerialSource reads newline-delimited Reading JSON from a serial port, as
// written by a microcontroller with an attached IMU.
type SerialSource struct {
	port   string
	baud   int
	logger *log.Logger
}

// NewSerialSource creates a source for the named port.
func NewSerialSource(port string, baud int, logger *log.Logger) *SerialSource {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SerialSource{
		port:   port,
		baud:   baud,
		logger: logger,
	}
}

// Supported reports whether the port is currently present.
func (s *SerialSource) Supported() bool {
	ports, err := listPorts()
	if err != nil {
		return false
	}
	for _, p := range ports {
		if p == s.port {
			return true
		}
	}
	return false
}

// Subscribe opens the port and reads lines until cancelled or the port fails.
func (s *SerialSource) Subscribe(fn func(Reading)) (func(), error) {
	port, err := openPort(s.port, &serial.Mode{BaudRate: s.baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", s.port, err)
	}

	var (
		mu      sync.Mutex
		stopped bool
	)

	go func() {
		scanner := bufio.NewScanner(port)
		for scanner.Scan() {
			var r Reading
			if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
				s.logger.Printf("serial orientation line unmarshal error: %v", err)
				continue
			}

			mu.Lock()
			done := stopped
			mu.Unlock()
			if done {
				return
			}
			fn(r)
		}

		mu.Lock()
		done := stopped
		mu.Unlock()
		if err := scanner.Err(); err != nil && !done {
			s.logger.Printf("serial port %s read error: %v", s.port, err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			if err := port.Close(); err != nil {
				s.logger.Printf("close serial port %s: %v", s.port, err)
			}
		})
	}, nil
}
