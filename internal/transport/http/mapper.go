package http

import (
	"encoding/json"

	"github.com/tgchat-app/chat-server/internal/core"
	"github.com/tgchat-app/chat-server/internal/proto"
	"github.com/tgchat-app/chat-server/internal/store"
)

// inboundToCommand maps a wire envelope to a core command. A nil command
// with a nil error means the payload was malformed in a way that is
// dropped silently (the join path). Other malformed payloads answer a
// bad_request error envelope.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil
		}
		if !join.Valid() {
			return nil, nil
		}
		return &core.Command{
			Kind: core.CommandJoinChat,
			Room: join.ChatID,
			User: userFromProto(join.User),
		}, nil
	case proto.InboundTypeSend:
		var send proto.SendData
		if err := json.Unmarshal(inbound.Data, &send); err != nil {
			return nil, badRequest("invalid send-message payload")
		}
		return &core.Command{
			Kind:    core.CommandSendMessage,
			Room:    send.ChatID,
			Text:    send.Message.Text,
			ReplyTo: send.Message.ReplyTo,
		}, nil
	case proto.InboundTypeEdit:
		var edit proto.EditData
		if err := json.Unmarshal(inbound.Data, &edit); err != nil {
			return nil, badRequest("invalid edit-message payload")
		}
		return &core.Command{
			Kind:      core.CommandEditMessage,
			Room:      edit.ChatID,
			MessageID: edit.MessageID,
			Text:      edit.Text,
		}, nil
	case proto.InboundTypePin, proto.InboundTypeUnpin:
		var pin proto.PinData
		if err := json.Unmarshal(inbound.Data, &pin); err != nil {
			return nil, badRequest("invalid pin payload")
		}
		kind := core.CommandPinMessage
		if inbound.Type == proto.InboundTypeUnpin {
			kind = core.CommandUnpinMessage
		}
		return &core.Command{
			Kind:      kind,
			Room:      pin.ChatID,
			MessageID: pin.Message.ID,
		}, nil
	case proto.InboundTypeDelete:
		var del proto.DeleteData
		if err := json.Unmarshal(inbound.Data, &del); err != nil {
			return nil, badRequest("invalid delete-message payload")
		}
		return &core.Command{
			Kind:      core.CommandDeleteMessage,
			Room:      del.ChatID,
			MessageID: del.MessageID,
		}, nil
	case proto.InboundTypeDeleteAll:
		var del proto.DeleteAllData
		if err := json.Unmarshal(inbound.Data, &del); err != nil {
			return nil, badRequest("invalid delete-all-messages payload")
		}
		return &core.Command{
			Kind: core.CommandDeleteAllMessages,
			Room: del.ChatID,
		}, nil
	case proto.InboundTypeBan, proto.InboundTypeUnban, proto.InboundTypeSetAdmin, proto.InboundTypeDeleteAdmin:
		var mod proto.ModerateData
		if err := json.Unmarshal(inbound.Data, &mod); err != nil || mod.UserID == 0 {
			return nil, badRequest("invalid moderation payload")
		}
		kinds := map[string]core.CommandKind{
			proto.InboundTypeBan:         core.CommandBanUser,
			proto.InboundTypeUnban:       core.CommandUnbanUser,
			proto.InboundTypeSetAdmin:    core.CommandSetAdmin,
			proto.InboundTypeDeleteAdmin: core.CommandDeleteAdmin,
		}
		return &core.Command{
			Kind:         kinds[inbound.Type],
			TargetUserID: mod.UserID,
		}, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventUserJoined, core.EventNewMessage, core.EventEditMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: event.Kind.String(),
			Data:  messageToProto(event.Message),
		}
	case core.EventPinMessage, core.EventUnpinMessage, core.EventDeleteMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: event.Kind.String(),
			Data: proto.EventOutcome{
				ChatID:    event.Room,
				MessageID: event.MessageID,
				Affected:  event.Affected,
			},
		}
	case core.EventDeleteAllMessages:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: event.Kind.String(),
			Data: proto.EventRoomCleared{
				ChatID:       event.Room,
				DeletedCount: event.Affected,
			},
		}
	case core.EventBanUser, core.EventUnbanUser, core.EventSetAdmin, core.EventDeleteAdmin:
		var user *proto.User
		if event.User != nil {
			u := userToProto(*event.User)
			user = &u
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: event.Kind.String(),
			Data: proto.EventModeration{
				Affected: event.Affected,
				User:     user,
			},
		}
	case core.EventHistory:
		messages := make([]proto.Message, 0, len(event.Messages))
		for _, msg := range event.Messages {
			if m := messageToProto(msg); m != nil {
				messages = append(messages, *m)
			}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: event.Kind.String(),
			Data: proto.EventHistory{
				ChatID:   event.Room,
				Messages: messages,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func userFromProto(u *proto.User) *store.User {
	if u == nil {
		return nil
	}
	return &store.User{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		IsAdmin:      u.IsAdmin,
		IsBanned:     u.IsBanned,
		ChatNickname: u.ChatNickname,
	}
}

func userToProto(u store.User) proto.User {
	return proto.User{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		IsAdmin:      u.IsAdmin,
		IsBanned:     u.IsBanned,
		ChatNickname: u.ChatNickname,
	}
}

func messageToProto(m *store.Message) *proto.Message {
	if m == nil {
		return nil
	}
	return &proto.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		Text:      m.Text,
		User:      userToProto(m.User),
		Timestamp: m.Timestamp,
		Type:      string(m.Type),
		IsPinned:  m.IsPinned,
		ReplyTo:   m.ReplyTo,
		Edited:    m.Edited,
		EditedAt:  m.EditedAt,
	}
}
