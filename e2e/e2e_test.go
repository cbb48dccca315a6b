package e2e

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/headsup/internal/app"
	"github.com/ayusman/headsup/internal/calibrate"
	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/orientation"
	"github.com/ayusman/headsup/internal/server"
	"github.com/ayusman/headsup/internal/store"
)

const (
	roundTrace   = "../testdata/landscape_round.jsonl"
	labeledTrace = "../testdata/landscape_labeled.jsonl"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []app.GestureEvent
}

func (p *recordingPublisher) Publish(ev app.GestureEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) gestures() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Gesture
	}
	return out
}

type harness struct {
	store *store.Store
	app   *app.App
	pub   *recordingPublisher
	ts    *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pub := &recordingPublisher{}
	logger := log.New(io.Discard, "", 0)
	a, err := app.New(app.Config{
		Store:     st,
		Gesture:   gesture.Landscape(),
		Publisher: pub,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(a.Close)

	ts := httptest.NewServer(server.New(server.Config{App: a, Logger: logger}))
	t.Cleanup(ts.Close)

	return &harness{store: st, app: a, pub: pub, ts: ts}
}

func loadReadings(t *testing.T, path string) []orientation.Reading {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	readings, err := orientation.ParseTrace(f)
	if err != nil {
		t.Fatalf("ParseTrace() error = %v", err)
	}
	return readings
}

func TestE2E_PhoneRound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t)

	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	read := func(typ string) map[string]any {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("waiting for %q: %v", typ, err)
			}
			if msg["type"] == typ {
				return msg
			}
		}
	}

	conn.WriteJSON(map[string]any{"type": "hello", "orientation": true})
	sessionID := read("session")["id"].(string)

	conn.WriteJSON(map[string]any{"type": "control", "action": "start"})
	read("status")

	for _, r := range loadReadings(t, roundTrace) {
		conn.WriteJSON(map[string]any{
			"type":      "orientation",
			"beta":      r.Beta,
			"gamma":     r.Gamma,
			"timestamp": r.TimestampMs,
		})
	}

	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, read("gesture")["gesture"].(string))
	}
	want := []string{"down", "up", "down", "up"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("gestures = %v, want %v", got, want)
	}

	t.Run("EventsPersisted", func(t *testing.T) {
		var n int
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if n, _ = h.store.Events().Count(sessionID); n == 4 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		if n != 4 {
			t.Errorf("stored events = %d, want 4", n)
		}
	})

	t.Run("EventsPublished", func(t *testing.T) {
		deadline := time.Now().Add(2 * time.Second)
		for len(h.pub.gestures()) < len(want) && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if got := h.pub.gestures(); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("published = %v, want %v", got, want)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := h.ts.Client().Get(h.ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("GET /api/health error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after a round")
		}
	})
}

func TestE2E_ReplaySession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t)

	src := orientation.NewReplaySource(loadReadings(t, roundTrace))

	var mu sync.Mutex
	var got []gesture.Gesture
	sess, err := h.app.NewSession(app.SessionOptions{
		Kind:   "replay",
		Source: src,
		OnGesture: func(g gesture.Gesture) {
			mu.Lock()
			got = append(got, g)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if err := sess.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-src.Done()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 4 || got[0] != gesture.Down || got[1] != gesture.Up {
		t.Errorf("gestures = %v, want down up down up", got)
	}

	status := sess.Status()
	if status.Gestures != 4 || status.LastGesture != "up" {
		t.Errorf("status = %+v", status)
	}
}

func TestE2E_CalibratedProfile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t)
	client := h.ts.Client()

	samples, err := calibrate.LoadFile(labeledTrace)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	report, err := calibrate.Analyze(samples)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	suggested, err := calibrate.Suggest(report, gesture.Landscape())
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}

	body, _ := json.Marshal(map[string]any{"name": "couch", "config": suggested})
	resp, err := client.Post(h.ts.URL+"/api/profiles", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("POST /api/profiles error = %v", err)
	}
	var created struct {
		ID     string         `json:"id"`
		Config gesture.Config `json:"config"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	sess, err := h.app.NewSession(app.SessionOptions{Kind: "mock", Source: orientation.NewMockSource()})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	resp, err = client.Post(h.ts.URL+"/api/profiles/"+created.ID+"/activate", "application/json", nil)
	if err != nil {
		t.Fatalf("activate error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if got := sess.Recognizer().Config().Name; got != "couch" {
		t.Errorf("open session thresholds = %q, want couch", got)
	}

	// Every labeled pose is recognized by the calibrated thresholds.
	for _, sc := range calibrate.Evaluate(created.Config, samples) {
		if sc.Rate < 0.9 {
			t.Errorf("%s hit rate = %.2f, want >= 0.9", sc.Label, sc.Rate)
		}
	}
}
