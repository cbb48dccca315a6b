package orientation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ReplaySource plays back a recorded trace of readings. Each Subscribe starts
// a fresh playback on its own goroutine; Done is closed when the most recent
// playback has delivered every reading or was cancelled.
type ReplaySource struct {
	readings []Reading

	mu   sync.Mutex
	done chan struct{}
}

// NewReplaySource creates a ReplaySource from readings already in memory.
func NewReplaySource(readings []Reading) *ReplaySource {
	return &ReplaySource{
		readings: readings,
		done:     make(chan struct{}),
	}
}

// LoadReplayFile reads a JSON-lines trace from path.
func LoadReplayFile(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	readings, err := ParseTrace(f)
	if err != nil {
		return nil, fmt.Errorf("parse trace %s: %w", path, err)
	}

	return NewReplaySource(readings), nil
}

// ParseTrace decodes one Reading per non-empty line. Lines starting with '#'
// are comments. Unknown fields are ignored so annotated traces can be reused.
func ParseTrace(r io.Reader) ([]Reading, error) {
	var readings []Reading

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var reading Reading
		if err := json.Unmarshal([]byte(line), &reading); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		readings = append(readings, reading)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return readings, nil
}

// Len returns the number of readings in the trace.
func (s *ReplaySource) Len() int {
	return len(s.readings)
}

// Supported always reports true; a trace needs no hardware.
func (s *ReplaySource) Supported() bool {
	return true
}

// Subscribe starts playback to fn.
func (s *ReplaySource) Subscribe(fn func(Reading)) (func(), error) {
	stop := make(chan struct{})
	done := make(chan struct{})

	s.mu.Lock()
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for _, r := range s.readings {
			select {
			case <-stop:
				return
			default:
			}
			fn(r)
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }, nil
}

// Done returns a channel closed when the current playback finishes.
func (s *ReplaySource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
