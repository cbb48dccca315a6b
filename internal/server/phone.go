package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/headsup/internal/feedback"
	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/orientation"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	helloWait      = 10 * time.Second
	resumeWait     = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

var (
	errPhoneClosed    = errors.New("phone disconnected")
	errSendBufferFull = errors.New("phone send buffer full")
	errNoAudio        = errors.New("phone has no audio output")
	errNoVibration    = errors.New("phone has no vibration motor")
)

// Messages coming from the phone page
type clientMessage struct {
	Type string `json:"type"` // "hello", "orientation", "permission_result", "audio_state", "control"

	// hello
	Orientation        bool `json:"orientation,omitempty"`
	Audio              bool `json:"audio,omitempty"`
	Vibrate            bool `json:"vibrate,omitempty"`
	PermissionRequired bool `json:"permission_required,omitempty"`

	// orientation; the page clock is a float of milliseconds
	Beta      *float64 `json:"beta,omitempty"`
	Gamma     *float64 `json:"gamma,omitempty"`
	Timestamp float64  `json:"timestamp,omitempty"`

	Granted bool                `json:"granted,omitempty"` // permission_result
	State   feedback.AudioState `json:"state,omitempty"`   // hello, audio_state
	Action  string              `json:"action,omitempty"`  // control
}

// Messages sent to the phone page

type simpleMessage struct {
	Type string `json:"type"` // "resume_audio", "request_permission"
}

type sessionMessage struct {
	Type   string         `json:"type"` // "session"
	ID     string         `json:"id"`
	Config gesture.Config `json:"config"`
}

type gestureMessage struct {
	Type    string `json:"type"` // "gesture"
	Gesture string `json:"gesture"`
}

type toneMessage struct {
	Type string                 `json:"type"` // "tone"
	Tone feedback.ScheduledTone `json:"tone"`
}

type vibrateMessage struct {
	Type string `json:"type"` // "vibrate"
	MS   int64  `json:"ms"`
}

// phone is one connected browser. It is the orientation source, the audio
// output and the vibration motor of its session.
type phone struct {
	conn   *websocket.Conn
	send   chan any
	done   chan struct{}
	once   sync.Once
	logger *log.Logger

	orientation bool
	audio       bool
	vibrate     bool
	consent     bool

	mu          sync.Mutex
	handlers    map[int]func(orientation.Reading)
	nextHandler int
	audioState  feedback.AudioState
	resumed     []chan struct{}
	permission  chan bool
	permStale   int // answers still owed to abandoned requests
}

func newPhone(conn *websocket.Conn, hello clientMessage, logger *log.Logger) *phone {
	state := hello.State
	if state == "" {
		state = feedback.AudioSuspended
	}
	return &phone{
		conn:        conn,
		send:        make(chan any, sendBuffer),
		done:        make(chan struct{}),
		logger:      logger,
		orientation: hello.Orientation,
		audio:       hello.Audio,
		vibrate:     hello.Vibrate,
		consent:     hello.PermissionRequired,
		handlers:    make(map[int]func(orientation.Reading)),
		audioState:  state,
		permission:  make(chan bool, 1),
	}
}

func (p *phone) close() {
	p.once.Do(func() { close(p.done) })
}

// sendMsg queues msg without blocking. A phone that cannot keep up loses
// messages rather than stalling the recognizer.
func (p *phone) sendMsg(msg any) error {
	select {
	case <-p.done:
		return errPhoneClosed
	default:
	}

	select {
	case p.send <- msg:
		return nil
	case <-p.done:
		return errPhoneClosed
	default:
		return errSendBufferFull
	}
}

// Supported reports whether the page found a deviceorientation API.
func (p *phone) Supported() bool {
	return p.orientation
}

// Subscribe registers fn for readings arriving on the read pump.
func (p *phone) Subscribe(fn func(orientation.Reading)) (func(), error) {
	p.mu.Lock()
	id := p.nextHandler
	p.nextHandler++
	p.handlers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}, nil
}

// RequestPermission asks the page to show its consent prompt and waits for
// the answer. Pages that need no consent are granted at once.
func (p *phone) RequestPermission(ctx context.Context) (bool, error) {
	if !p.consent {
		return true, nil
	}
	if err := p.sendMsg(simpleMessage{Type: "request_permission"}); err != nil {
		return false, err
	}

	select {
	case granted := <-p.permission:
		return granted, nil
	case <-p.done:
		return false, errPhoneClosed
	case <-ctx.Done():
		p.abandonPermission()
		return false, ctx.Err()
	}
}

// abandonPermission marks the answer to a timed out request as stale so the
// next request does not pick it up.
func (p *phone) abandonPermission() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.permission:
	default:
		p.permStale++
	}
}

// NewContext hands out the page's audio context.
func (p *phone) NewContext() (feedback.AudioContext, error) {
	if !p.audio {
		return nil, errNoAudio
	}
	return p, nil
}

func (p *phone) State() feedback.AudioState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audioState
}

// Resume asks the page to resume its audio context and waits until it
// reports running.
func (p *phone) Resume(ctx context.Context) error {
	p.mu.Lock()
	if p.audioState == feedback.AudioRunning {
		p.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	p.resumed = append(p.resumed, ch)
	p.mu.Unlock()

	if err := p.sendMsg(simpleMessage{Type: "resume_audio"}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, resumeWait)
	defer cancel()

	select {
	case <-ch:
		return nil
	case <-p.done:
		return errPhoneClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrentTime is always zero: tone start times are offsets the page adds
// to its own audio clock on receipt.
func (p *phone) CurrentTime() float64 {
	return 0
}

func (p *phone) Play(t feedback.ScheduledTone) error {
	return p.sendMsg(toneMessage{Type: "tone", Tone: t})
}

func (p *phone) Vibrate(d time.Duration) error {
	if !p.vibrate {
		return errNoVibration
	}
	return p.sendMsg(vibrateMessage{Type: "vibrate", MS: d.Milliseconds()})
}

func (p *phone) deliver(r orientation.Reading) {
	p.mu.Lock()
	handlers := make([]func(orientation.Reading), 0, len(p.handlers))
	for _, fn := range p.handlers {
		handlers = append(handlers, fn)
	}
	p.mu.Unlock()

	for _, fn := range handlers {
		fn(r)
	}
}

func (p *phone) setAudioState(state feedback.AudioState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audioState = state
	if state != feedback.AudioRunning {
		return
	}
	for _, ch := range p.resumed {
		close(ch)
	}
	p.resumed = nil
}

// setPermission keeps only the newest answer. Answers to abandoned requests
// are dropped.
func (p *phone) setPermission(granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.permStale > 0 {
		p.permStale--
		return
	}
	for {
		select {
		case p.permission <- granted:
			return
		default:
		}
		select {
		case <-p.permission:
		default:
		}
	}
}

// readPump reads messages until the connection fails, calling onControl for
// control actions.
func (p *phone) readPump(onControl func(action string)) {
	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := p.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Printf("phone read error: %v", err)
			}
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "orientation":
			p.deliver(orientation.Reading{
				Beta:        msg.Beta,
				Gamma:       msg.Gamma,
				TimestampMs: int64(msg.Timestamp),
			})
		case "permission_result":
			p.setPermission(msg.Granted)
		case "audio_state":
			p.setAudioState(msg.State)
		case "control":
			onControl(msg.Action)
		default:
			// ignore unknown types
		}
	}
}

func (p *phone) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case msg := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(msg); err != nil {
				p.close()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				return
			}
		case <-p.done:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
