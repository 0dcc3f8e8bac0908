package http

import (
	"encoding/json"

	"github.com/avelichko/workchat/internal/core"
	"github.com/avelichko/workchat/internal/proto"
	"github.com/avelichko/workchat/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinChannel, proto.InboundTypeLeaveChannel:
		var ref proto.ChannelRef
		if err := json.Unmarshal(inbound.Data, &ref); err != nil {
			return nil, nil, err
		}
		if ref.ChannelID <= 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "channelId is required"}, nil
		}
		kind := core.CommandJoinChannel
		if inbound.Type == proto.InboundTypeLeaveChannel {
			kind = core.CommandLeaveChannel
		}
		return &core.Command{Kind: kind, ChannelID: ref.ChannelID}, nil, nil

	case proto.InboundTypeJoinWorkspace, proto.InboundTypeLeaveWorkspace:
		var ref proto.WorkspaceRef
		if err := json.Unmarshal(inbound.Data, &ref); err != nil {
			return nil, nil, err
		}
		if ref.WorkspaceID <= 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "workspaceId is required"}, nil
		}
		kind := core.CommandJoinWorkspace
		if inbound.Type == proto.InboundTypeLeaveWorkspace {
			kind = core.CommandLeaveWorkspace
		}
		return &core.Command{Kind: kind, WorkspaceID: ref.WorkspaceID}, nil, nil

	case proto.InboundTypeTypingStart, proto.InboundTypeTypingStop:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return nil, nil, err
		}
		if typing.ChannelID <= 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "channelId is required"}, nil
		}
		kind := core.CommandTypingStart
		if inbound.Type == proto.InboundTypeTypingStop {
			kind = core.CommandTypingStop
		}
		return &core.Command{Kind: kind, ChannelID: typing.ChannelID, UserName: typing.UserName}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessageCreated:
		return proto.Outbound{Type: proto.OutboundTypeNewMessage, Data: wireMessage(event.Message)}
	case core.EventMessageUpdated:
		return proto.Outbound{Type: proto.OutboundTypeMessageUpdated, Data: wireMessage(event.Message)}
	case core.EventMessageDeleted:
		return proto.Outbound{Type: proto.OutboundTypeMessageDeleted, Data: proto.MessageDeleted{ID: event.MessageID}}
	case core.EventTypingStart:
		return proto.Outbound{Type: proto.OutboundTypeUserTyping, Data: proto.UserEvent{UserName: event.UserName}}
	case core.EventTypingStop:
		return proto.Outbound{Type: proto.OutboundTypeUserStopTyping, Data: proto.UserEvent{UserName: event.UserName}}
	case core.EventMemberJoined:
		return proto.Outbound{Type: proto.OutboundTypeUserJoined, Data: proto.UserEvent{UserName: event.UserName}}
	case core.EventMemberLeft:
		return proto.Outbound{Type: proto.OutboundTypeUserLeft, Data: proto.UserEvent{UserName: event.UserName}}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message}}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}
	}
}

// coreMessage lifts a persisted message into the hub's event form, attaching
// the transient client tag that never touches the database.
func coreMessage(msg *store.Message, clientTag string) *core.Message {
	return &core.Message{
		ID:          msg.ID,
		WorkspaceID: msg.WorkspaceID,
		ChannelID:   msg.ChannelID,
		UserID:      msg.UserID,
		UserName:    msg.UserName,
		UserEmail:   msg.UserEmail,
		Content:     msg.Content,
		ClientTag:   clientTag,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
	}
}

func wireMessage(msg *core.Message) proto.Message {
	return proto.Message{
		ID:          msg.ID,
		WorkspaceID: msg.WorkspaceID,
		ChannelID:   msg.ChannelID,
		Content:     msg.Content,
		ClientTag:   msg.ClientTag,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
		User:        proto.UserRef{ID: msg.UserID, Name: msg.UserName, Email: msg.UserEmail},
	}
}
