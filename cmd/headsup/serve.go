package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/ayusman/headsup/internal/app"
	"github.com/ayusman/headsup/internal/orientation"
	"github.com/ayusman/headsup/internal/server"
	"github.com/ayusman/headsup/internal/store"
	"github.com/ayusman/headsup/internal/tray"
)

const (
	mqttConnectTimeout = 10 * time.Second
	trayRefresh        = 2 * time.Second
)

func serve(ctx context.Context, cfg *Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logf(cfg, "START: headsup v%s", releaseVersion)

	logger := newLogger(cfg)

	dbPath, err := cfg.dbPath()
	if err != nil {
		return err
	}
	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()
	logf(cfg, "STORE: %s", dbPath)

	var client mqtt.Client
	if cfg.mqttBroker != "" {
		client, err = connectMQTT(cfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		logf(cfg, "MQTT: connected to %s", cfg.mqttBroker)
	}

	var pub app.Publisher
	if cfg.mqttPublishTopic != "" {
		pub = app.NewMQTTPublisher(client, cfg.mqttPublishTopic)
	}

	a, err := app.New(app.Config{
		Store:     st,
		Gesture:   cfg.gesture,
		Publisher: pub,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	a.RegisterGestureCallback(func(ev app.GestureEvent) {
		logf(cfg, "GESTURE: %s session=%s t=%dms ambiguous=%t", ev.Gesture, ev.SessionID, ev.TimestampMs, ev.Ambiguous)
	})

	if err := startSource(cfg, a, client, logger); err != nil {
		return err
	}

	srv := server.New(server.Config{
		App:       a,
		StaticDir: cfg.staticDir,
		PublicURL: cfg.publicURL,
		Logger:    logger,
		Verbose:   cfg.verbose,
	})

	addr := net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port))
	joinURL := cfg.joinURL()
	printJoin(os.Stdout, joinURL)

	if !cfg.tray {
		return srv.ListenAndServe(ctx, addr)
	}
	return serveWithTray(ctx, cfg, a, srv, addr, joinURL)
}

func connectMQTT(cfg *Config) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.mqttBroker).
		SetClientID(cfg.mqttClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.mqttBroker, token.Error())
	}
	return client, nil
}

// startSource opens a listening session for a sensor that is not a phone.
// Phones open their own sessions over the websocket.
func startSource(cfg *Config, a *app.App, client mqtt.Client, logger *log.Logger) error {
	var src orientation.Source
	switch cfg.source {
	case "mqtt":
		src = orientation.NewMQTTSource(client, cfg.mqttTopic, logger)
	case "serial":
		src = orientation.NewSerialSource(cfg.serialPort, cfg.serialBaud, logger)
	default:
		return nil
	}

	sess, err := a.NewSession(app.SessionOptions{Kind: cfg.source, Source: src})
	if err != nil {
		return err
	}
	if err := sess.Start(); err != nil {
		return fmt.Errorf("start %s session: %w", cfg.source, err)
	}
	logf(cfg, "SOURCE: %s session %s listening", cfg.source, sess.ID)
	return nil
}

// joinURL is the address phones should open. Without --public-url it guesses
// the LAN address when bound to all interfaces.
func (c *Config) joinURL() string {
	if c.publicURL != "" {
		return c.publicURL
	}

	host := c.bind
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = outboundIP()
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.port)) + "/"
}

// outboundIP returns the local address of the default route. Dialing UDP
// sends no packets.
func outboundIP() string {
	conn, err := net.Dial("udp", "192.0.2.1:9")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// printJoin writes the join URL and a terminal QR code for it.
func printJoin(w io.Writer, url string) {
	fmt.Fprintf(w, "Join: %s\n", url)

	q, err := qrcode.New(url, qrcode.Low)
	if err != nil {
		return
	}
	fmt.Fprint(w, renderQR(q.Bitmap()))
}

// renderQR draws two bitmap rows per line with half block characters.
func renderQR(bitmap [][]bool) string {
	var b strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bottom := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bottom:
				b.WriteString(" ")
			case top:
				b.WriteString("▄")
			case bottom:
				b.WriteString("▀")
			default:
				b.WriteString("█")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func serveWithTray(ctx context.Context, cfg *Config, a *app.App, srv *server.Server, addr, joinURL string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := tray.New(a.IsEnabled())
	t.OnToggle(func(enabled bool) {
		a.SetEnabled(enabled)
		logf(cfg, "TRAY: listening=%t", enabled)
	})
	t.OnOpen(func() {
		if err := openBrowser(joinURL); err != nil {
			logf(cfg, "ERROR: open %s: %v", joinURL, err)
		}
	})
	t.OnQuit(cancel)

	a.RegisterGestureCallback(func(ev app.GestureEvent) {
		t.SetLastGesture(ev.Gesture)
	})

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe(ctx, addr)
		t.Quit()
	}()

	go func() {
		ticker := time.NewTicker(trayRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.SetSessions(len(a.Sessions()))
				t.SetEnabled(a.IsEnabled())
			}
		}
	}()

	t.Run()
	cancel()
	return <-errs
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
