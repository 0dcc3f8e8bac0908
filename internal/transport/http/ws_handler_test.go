package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/avelichko/workchat/internal/core"
	"github.com/avelichko/workchat/internal/proto"
	"github.com/avelichko/workchat/internal/store"
)

// outboundFrame mirrors proto.Outbound with raw data for test decoding.
type outboundFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func dialWS(t *testing.T, ctx context.Context, env *testEnv, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", msgType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
		t.Fatalf("write %s frame: %v", msgType, err)
	}
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) outboundFrame {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read frame waiting for %s: %v", wantType, err)
		}
		if frame.Type == wantType {
			return frame
		}
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/ws")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws?token=garbage"
	if _, _, err := websocket.Dial(ctx, wsURL, nil); err == nil {
		t.Fatalf("expected dial with bad token to fail")
	}
}

func TestWebSocketBroadcastsRestSend(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, alice := env.registerUser(t, "alice@example.com", "Alice")
	bobToken, bob := env.registerUser(t, "bob@example.com", "Bob")
	ws := env.createWorkspace(t, "acme", alice.ID)
	if err := env.store.AddWorkspaceMember(context.Background(), ws.ID, bob.ID, store.RoleMember); err != nil {
		t.Fatalf("add workspace member: %v", err)
	}
	ch := env.createChannel(t, ws.ID, "general", store.ChannelPublic, alice.ID, bob.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connAlice := dialWS(t, ctx, env, aliceToken)
	connBob := dialWS(t, ctx, env, bobToken)

	sendFrame(t, ctx, connAlice, proto.InboundTypeJoinChannel, proto.ChannelRef{ChannelID: ch.ID})

	// A first send proves Alice's join was processed before Bob joins.
	status, body := doJSON(t, env, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"workspaceId": ws.ID,
		"channelId":   ch.ID,
		"content":     "warming up",
	})
	if status != http.StatusCreated {
		t.Fatalf("warmup send: expected 201, got %d: %s", status, body)
	}
	readUntil(t, ctx, connAlice, proto.OutboundTypeNewMessage)

	sendFrame(t, ctx, connBob, proto.InboundTypeJoinChannel, proto.ChannelRef{ChannelID: ch.ID})
	joined := readUntil(t, ctx, connAlice, proto.OutboundTypeUserJoined)
	var notice proto.UserEvent
	if err := json.Unmarshal(joined.Data, &notice); err != nil {
		t.Fatalf("unmarshal join notice: %v", err)
	}
	if notice.UserName != "Bob" {
		t.Fatalf("expected Bob join notice, got %q", notice.UserName)
	}

	status, body = doJSON(t, env, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"workspaceId": ws.ID,
		"channelId":   ch.ID,
		"content":     "hi there",
		"clientTag":   "tag-42",
	})
	if status != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", status, body)
	}

	for _, conn := range []*websocket.Conn{connAlice, connBob} {
		frame := readUntil(t, ctx, conn, proto.OutboundTypeNewMessage)
		var msg proto.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			t.Fatalf("unmarshal broadcast message: %v", err)
		}
		if msg.Content != "hi there" || msg.User.Name != "Alice" {
			t.Fatalf("unexpected broadcast payload: %+v", msg)
		}
		if msg.ClientTag != "tag-42" {
			t.Fatalf("expected clientTag in broadcast, got %q", msg.ClientTag)
		}
	}
}

func TestWebSocketJoinDeniedForOutsider(t *testing.T) {
	env := newTestEnv(t)
	_, alice := env.registerUser(t, "alice@example.com", "Alice")
	malloryToken, _ := env.registerUser(t, "mallory@example.com", "Mallory")
	ws := env.createWorkspace(t, "acme", alice.ID)
	ch := env.createChannel(t, ws.ID, "general", store.ChannelPublic, alice.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, env, malloryToken)
	sendFrame(t, ctx, conn, proto.InboundTypeJoinChannel, proto.ChannelRef{ChannelID: ch.ID})

	frame := readUntil(t, ctx, conn, proto.OutboundTypeError)
	if frame.Error == nil || frame.Error.Code != core.ErrCodeForbidden {
		t.Fatalf("expected forbidden error, got %+v", frame.Error)
	}
}

func TestWebSocketTypingIndicators(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, alice := env.registerUser(t, "alice@example.com", "Alice")
	bobToken, bob := env.registerUser(t, "bob@example.com", "Bob")
	ws := env.createWorkspace(t, "acme", alice.ID)
	ch := env.createChannel(t, ws.ID, "general", store.ChannelPublic, alice.ID, bob.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connBob := dialWS(t, ctx, env, bobToken)
	sendFrame(t, ctx, connBob, proto.InboundTypeJoinChannel, proto.ChannelRef{ChannelID: ch.ID})

	// A send proves Bob's join was processed before Alice joins.
	status, body := doJSON(t, env, http.MethodPost, "/api/messages", bobToken, map[string]any{
		"workspaceId": ws.ID,
		"channelId":   ch.ID,
		"content":     "warming up",
	})
	if status != http.StatusCreated {
		t.Fatalf("warmup send: expected 201, got %d: %s", status, body)
	}
	readUntil(t, ctx, connBob, proto.OutboundTypeNewMessage)

	connAlice := dialWS(t, ctx, env, aliceToken)
	sendFrame(t, ctx, connAlice, proto.InboundTypeJoinChannel, proto.ChannelRef{ChannelID: ch.ID})

	// Bob sees Alice arrive once her join is processed.
	readUntil(t, ctx, connBob, proto.OutboundTypeUserJoined)

	sendFrame(t, ctx, connAlice, proto.InboundTypeTypingStart, proto.TypingData{ChannelID: ch.ID, UserName: "Alice"})

	frame := readUntil(t, ctx, connBob, proto.OutboundTypeUserTyping)
	var typing proto.UserEvent
	if err := json.Unmarshal(frame.Data, &typing); err != nil {
		t.Fatalf("unmarshal typing notice: %v", err)
	}
	if typing.UserName != "Alice" {
		t.Fatalf("expected Alice typing, got %q", typing.UserName)
	}

	sendFrame(t, ctx, connAlice, proto.InboundTypeTypingStop, proto.TypingData{ChannelID: ch.ID, UserName: "Alice"})
	frame = readUntil(t, ctx, connBob, proto.OutboundTypeUserStopTyping)
	if err := json.Unmarshal(frame.Data, &typing); err != nil {
		t.Fatalf("unmarshal stop notice: %v", err)
	}
	if typing.UserName != "Alice" {
		t.Fatalf("expected Alice stop notice, got %q", typing.UserName)
	}
}
