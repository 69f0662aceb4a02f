package ws

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type fakeVerifier struct {
	password string
}

func (f *fakeVerifier) VerifyPassword(_ context.Context, _, password string) error {
	if password != f.password {
		return errors.New("bad credentials")
	}
	return nil
}

type echoProcessor struct{}

func (echoProcessor) Process(_ context.Context, _ string, raw []byte) ([]byte, error) {
	return raw, nil
}

func newTestWSServer(t *testing.T) (*httptest.Server, *Manager) {
	t.Helper()
	manager := NewManager(time.Minute)
	server := NewServer(manager, echoProcessor{}, &fakeVerifier{password: "station-secret"}, time.Minute, 5*time.Second, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("/ocpp/", server.HandleWS)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, manager
}

func wsURL(ts *httptest.Server, stationID string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ocpp/" + stationID
}

func basicAuth(user, pass string) http.Header {
	return http.Header{
		"Authorization": []string{"Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))},
	}
}

func TestHandleWSRejectsMissingAuth(t *testing.T) {
	ts, _ := newTestWSServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "cs-1"), nil)
	if err == nil {
		t.Fatal("expected handshake failure without credentials")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestHandleWSRejectsWrongCredentials(t *testing.T) {
	ts, _ := newTestWSServer(t)

	cases := []struct {
		name   string
		header http.Header
	}{
		{"wrong password", basicAuth("cs-1", "wrong")},
		{"username mismatch", basicAuth("other", "station-secret")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "cs-1"), tc.header)
			if err == nil {
				t.Fatal("expected handshake failure")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %+v", resp)
			}
		})
	}
}

func TestHandleWSFrameRoundTrip(t *testing.T) {
	ts, manager := newTestWSServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "cs-1"), basicAuth("cs-1", "station-secret"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frame := `[2,"uid-1","Heartbeat",{}]`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, echoed, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(echoed) != frame {
		t.Fatalf("expected echo %q, got %q", frame, echoed)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := manager.Get("cs-1"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("connection never registered with manager")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
