package ocpp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestParserParseCall(t *testing.T) {
	parser := NewParser()

	msg, err := parser.Parse([]byte(`[2,"uid-1","Heartbeat",{}]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.MessageType != 2 || msg.UniqueID != "uid-1" || msg.Action != "Heartbeat" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestParserRejectsBadFrames(t *testing.T) {
	parser := NewParser()

	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `hello`},
		{"too short", `[2,"uid-1"]`},
		{"call without payload", `[2,"uid-1","Heartbeat"]`},
		{"callresult", `[3,"uid-1",{}]`},
		{"unknown type", `[9,"uid-1","Heartbeat",{}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parser.Parse([]byte(tc.raw)); err == nil {
				t.Fatalf("expected error for %s", tc.raw)
			}
		})
	}
}

func TestProcessorBuildsCallResult(t *testing.T) {
	router := NewRouter()
	router.Register("Heartbeat", func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		return map[string]string{"currentTime": "2026-05-01T12:00:00Z"}, nil
	})
	processor := NewProcessor(NewParser(), router, zap.NewNop())

	resp, err := processor.Process(context.Background(), "cs-1", []byte(`[2,"uid-7","Heartbeat",{}]`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(resp, &frame); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(frame) != 3 {
		t.Fatalf("expected 3-element CALLRESULT, got %d", len(frame))
	}
	var msgType int
	var uid string
	_ = json.Unmarshal(frame[0], &msgType)
	_ = json.Unmarshal(frame[1], &uid)
	if msgType != 3 || uid != "uid-7" {
		t.Fatalf("unexpected CALLRESULT envelope: type %d uid %s", msgType, uid)
	}
}

func TestProcessorHandlerErrorBecomesCallError(t *testing.T) {
	router := NewRouter()
	router.Register("NotifyReport", func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		return nil, errors.New("boom")
	})
	processor := NewProcessor(NewParser(), router, zap.NewNop())

	resp, err := processor.Process(context.Background(), "cs-1", []byte(`[2,"uid-9","NotifyReport",{}]`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(resp, &frame); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	var msgType int
	_ = json.Unmarshal(frame[0], &msgType)
	if msgType != 4 {
		t.Fatalf("expected CALLERROR frame, got type %d", msgType)
	}
}

func TestProcessorUnknownAction(t *testing.T) {
	processor := NewProcessor(NewParser(), NewRouter(), zap.NewNop())

	resp, err := processor.Process(context.Background(), "cs-1", []byte(`[2,"uid-2","NoSuchAction",{}]`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var frame []json.RawMessage
	if err := json.Unmarshal(resp, &frame); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	var msgType int
	_ = json.Unmarshal(frame[0], &msgType)
	if msgType != 4 {
		t.Fatalf("expected CALLERROR for unknown action, got type %d", msgType)
	}
}
