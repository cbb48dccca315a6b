package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/ayusman/headsup/internal/app"
	"github.com/ayusman/headsup/internal/feedback"
	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/server/api"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // phones join over the LAN by IP
	},
}

type statusMessage struct {
	Type   string            `json:"type"` // "status"
	Status app.SessionStatus `json:"status"`
}

// controlCues maps page-initiated feedback actions to cues.
var controlCues = map[string]feedback.Cue{
	"game_over":       feedback.CueGameOver,
	"countdown":       feedback.CueCountdown,
	"countdown_final": feedback.CueCountdownFinal,
}

// handlePhone upgrades a phone page to a websocket. The first message must
// be a hello describing the page's sensors; the phone then becomes the
// source and feedback device of a new session that lives as long as the
// connection.
func (s *Server) handlePhone(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade error: %v", err)
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(helloWait))
	var hello clientMessage
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "hello" {
		s.logger.Printf("phone %s: expected hello: %v", realIP(r), err)
		_ = conn.Close()
		return
	}

	p := newPhone(conn, hello, s.logger)

	opts := app.SessionOptions{
		Kind:   "ws",
		Source: p,
		OnGesture: func(g gesture.Gesture) {
			_ = p.sendMsg(gestureMessage{Type: "gesture", Gesture: string(g)})
		},
	}
	if hello.Audio {
		opts.Audio = p
	}
	if hello.Vibrate {
		opts.Haptics = p
	}

	sess, err := s.config.App.NewSession(opts)
	if err != nil {
		s.logger.Printf("phone %s: failed to open session: %v", realIP(r), err)
		_ = conn.Close()
		return
	}
	s.logf("phone %s joined as session %s", realIP(r), sess.ID)

	_ = p.sendMsg(sessionMessage{Type: "session", ID: sess.ID, Config: sess.Recognizer().Config()})

	go p.writePump()
	p.readPump(func(action string) { s.phoneControl(p, sess, action) })

	p.close()
	if err := s.config.App.CloseSession(sess.ID); err != nil {
		s.logger.Printf("phone session %s: %v", sess.ID, err)
	}
	s.logf("phone session %s left", sess.ID)
}

// phoneControl runs a control action sent by the page and answers with the
// session status. Permission requests wait for a later message on the same
// connection, so they run off the read pump.
func (s *Server) phoneControl(p *phone, sess *app.Session, action string) {
	reply := func() {
		_ = p.sendMsg(statusMessage{Type: "status", Status: sess.Status()})
	}

	switch action {
	case "start":
		if err := sess.Start(); err != nil {
			s.logger.Printf("session %s: start: %v", sess.ID, err)
		}
		reply()
	case "stop":
		sess.Stop()
		reply()
	case "permission":
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), api.PermissionTimeout)
			defer cancel()
			go func() {
				select {
				case <-p.done:
					cancel()
				case <-ctx.Done():
				}
			}()
			if _, err := sess.RequestPermission(ctx); err != nil {
				s.logger.Printf("session %s: permission: %v", sess.ID, err)
			}
			reply()
		}()
	case "status":
		reply()
	default:
		if cue, ok := controlCues[action]; ok {
			if err := sess.Play(cue); err != nil {
				s.logger.Printf("session %s: %v", sess.ID, err)
			}
			return
		}
		s.logf("session %s: unknown control %q", sess.ID, action)
	}
}
