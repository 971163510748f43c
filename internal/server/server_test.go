package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ---------- Helpers ----------

// newTestServer serves s over httptest with its hub running.
func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New("127.0.0.1:0")
	go s.hub.Run()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.hub.Stop()
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, s *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", s.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ---------- Handshake Tests ----------

func TestHello(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts, WSPath)

	if err := conn.WriteJSON(Message{Command: CommandHello, Protocols: []string{ProtocolOfficial7}}); err != nil {
		t.Fatal(err)
	}

	msg := readMessage(t, conn)
	if msg.Command != CommandHello {
		t.Errorf("command = %q, want %q", msg.Command, CommandHello)
	}
	if len(msg.Protocols) != 1 || msg.Protocols[0] != ProtocolOfficial7 {
		t.Errorf("protocols = %v", msg.Protocols)
	}
	if msg.ServerName != "sasswatch" {
		t.Errorf("serverName = %q", msg.ServerName)
	}
}

func TestNonHelloIgnored(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts, WSPath)
	waitForClients(t, s, 1)

	if err := conn.WriteJSON(Message{Command: CommandInfo}); err != nil {
		t.Fatal(err)
	}
	s.NotifyReload("/out/site.css")

	// The first frame is the reload, not a reply to info.
	if msg := readMessage(t, conn); msg.Command != CommandReload {
		t.Errorf("command = %q, want %q", msg.Command, CommandReload)
	}
}

// ---------- Reload Tests ----------

func TestNotifyReload_Stylesheet(t *testing.T) {
	s, ts := newTestServer(t)
	a := dial(t, ts, WSPath)
	b := dial(t, ts, LiveReloadPath)
	waitForClients(t, s, 2)

	s.NotifyReload("/srv/site/dist/site.css")

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		if msg.Command != CommandReload {
			t.Errorf("command = %q, want reload", msg.Command)
		}
		if msg.Path != "/srv/site/dist/site.css" {
			t.Errorf("path = %q", msg.Path)
		}
		if !msg.LiveCSS {
			t.Error("expected liveCSS for a stylesheet")
		}
	}
}

func TestNotifyReload_FullReload(t *testing.T) {
	tests := []string{"", "/out/app.js", "/out/index.html"}

	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			s, ts := newTestServer(t)
			conn := dial(t, ts, WSPath)
			waitForClients(t, s, 1)

			s.NotifyReload(path)

			if msg := readMessage(t, conn); msg.LiveCSS {
				t.Errorf("NotifyReload(%q) set liveCSS", path)
			}
		})
	}
}

func TestNotifyReload_NoClients(t *testing.T) {
	s, _ := newTestServer(t)

	done := make(chan struct{})
	go func() {
		s.NotifyReload("/out/site.css")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("NotifyReload blocked with no clients")
	}
}

// ---------- Hub Tests ----------

func TestHub_Disconnect(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts, WSPath)
	waitForClients(t, s, 1)

	conn.Close()
	waitForClients(t, s, 0)
}

func TestHub_StopClosesClients(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts, WSPath)
	waitForClients(t, s, 1)

	s.hub.Stop()
	s.hub.Stop()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("read after Stop = %v, want close going away", err)
	}
	if n := s.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d after Stop, want 0", n)
	}
}

func TestHub_UpgradeRequired(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + WSPath)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

// ---------- Client Script Tests ----------

func TestClientScript(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + ClientPath)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/javascript") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := string(ClientScript(WSPath))
	for _, want := range []string{`"/__sasswatch/ws"`, ProtocolOfficial7, "refreshStyles", "location.reload()"} {
		if !strings.Contains(body, want) {
			t.Errorf("client script missing %q", want)
		}
	}
}

// ---------- Server Lifecycle Tests ----------

func TestStart(t *testing.T) {
	s := New("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for strings.HasSuffix(s.Addr(), ":0") {
		if time.Now().After(deadline) {
			t.Fatal("server did not bind")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + s.Addr() + ClientPath)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Start = %v, want nil", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStart_AddressInUse(t *testing.T) {
	_, ts := newTestServer(t)
	addr := strings.TrimPrefix(ts.URL, "http://")

	if err := New(addr).Start(context.Background()); err == nil {
		t.Error("expected error for an address in use")
	}
}
