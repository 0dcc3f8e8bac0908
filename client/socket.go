package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

type inboundFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type outboundFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
}

// Socket is a WebSocket subscription to the server's broadcast hub.
type Socket struct {
	conn *websocket.Conn
}

// DialSocket connects to the server's /ws endpoint. baseURL may use the
// http(s) or ws(s) scheme.
func DialSocket(ctx context.Context, baseURL, token string) (*Socket, error) {
	wsURL := baseURL
	if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + strings.TrimPrefix(wsURL, "http")
	}
	wsURL += "/ws?token=" + token

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return &Socket{conn: conn}, nil
}

// Close terminates the connection.
func (s *Socket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "closing")
}

// JoinChannel subscribes to a channel room.
func (s *Socket) JoinChannel(ctx context.Context, channelID int64) error {
	return s.send(ctx, "join-channel", map[string]int64{"channelId": channelID})
}

// LeaveChannel unsubscribes from a channel room.
func (s *Socket) LeaveChannel(ctx context.Context, channelID int64) error {
	return s.send(ctx, "leave-channel", map[string]int64{"channelId": channelID})
}

// JoinWorkspace subscribes to the legacy workspace-wide room.
func (s *Socket) JoinWorkspace(ctx context.Context, workspaceID int64) error {
	return s.send(ctx, "join-workspace", map[string]int64{"workspaceId": workspaceID})
}

// LeaveWorkspace unsubscribes from the legacy workspace-wide room.
func (s *Socket) LeaveWorkspace(ctx context.Context, workspaceID int64) error {
	return s.send(ctx, "leave-workspace", map[string]int64{"workspaceId": workspaceID})
}

// TypingStart signals that the user began typing in a channel.
func (s *Socket) TypingStart(ctx context.Context, channelID int64, userName string) error {
	return s.send(ctx, "typing-start", map[string]any{"channelId": channelID, "userName": userName})
}

// TypingStop signals that the user stopped typing in a channel.
func (s *Socket) TypingStop(ctx context.Context, channelID int64, userName string) error {
	return s.send(ctx, "typing-stop", map[string]any{"channelId": channelID, "userName": userName})
}

func (s *Socket) send(ctx context.Context, msgType string, data any) error {
	return wsjson.Write(ctx, s.conn, inboundFrame{Type: msgType, Data: data})
}

// Next blocks until the server pushes the next event.
func (s *Socket) Next(ctx context.Context) (Event, error) {
	var frame outboundFrame
	if err := wsjson.Read(ctx, s.conn, &frame); err != nil {
		return Event{}, err
	}
	return decodeFrame(frame)
}

// Listen reads events until the context is cancelled or the connection
// drops, invoking handler for each. Decode failures on individual frames are
// skipped; the realtime layer is best effort and REST stays authoritative.
func (s *Socket) Listen(ctx context.Context, handler func(Event)) error {
	for {
		event, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if event.Type == "" {
			continue
		}
		handler(event)
	}
}

func decodeFrame(frame outboundFrame) (Event, error) {
	event := Event{Type: frame.Type}

	switch frame.Type {
	case EventNewMessage, EventMessageUpdated:
		var msg Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		event.Message = &msg

	case EventMessageDeleted:
		var deleted struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(frame.Data, &deleted); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		event.MessageID = deleted.ID

	case EventUserTyping, EventUserStopTyping, EventUserJoined, EventUserLeft:
		var user struct {
			UserName string `json:"userName"`
		}
		if err := json.Unmarshal(frame.Data, &user); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		event.UserName = user.UserName

	case EventError:
		if frame.Error != nil {
			event.ErrCode = frame.Error.Code
			event.ErrMsg = frame.Error.Msg
		}

	default:
		// Unknown event type; tolerated for forward compatibility.
		event.Type = ""
	}

	return event, nil
}
