package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

type FrameType string

const (
	FrameChatMessage FrameType = "chat_message"
	FrameTyping      FrameType = "typing"
	FrameMarkRead    FrameType = "mark_read"

	FrameConnectionEstablished FrameType = "connection_established"
	FrameTypingIndicator       FrameType = "typing_indicator"
	FrameUserOffline           FrameType = "user_offline"
	FrameHeartbeat             FrameType = "heartbeat"
	FrameMarkReadAck           FrameType = "mark_read_ack"
	FrameError                 FrameType = "error"
)

// ClientFrame is one of ChatMessageFrame, TypingFrame or MarkReadFrame.
type ClientFrame interface {
	Kind() FrameType
	clientFrame()
}

type ChatMessageFrame struct {
	Text      string
	ProductID *int64
}

func (ChatMessageFrame) Kind() FrameType { return FrameChatMessage }
func (ChatMessageFrame) clientFrame()    {}

type TypingFrame struct {
	IsTyping bool
}

func (TypingFrame) Kind() FrameType { return FrameTyping }
func (TypingFrame) clientFrame()    {}

type MarkReadFrame struct{}

func (MarkReadFrame) Kind() FrameType { return FrameMarkRead }
func (MarkReadFrame) clientFrame()    {}

type envelope struct {
	Type *string `json:"type"`
}

type chatMessageWire struct {
	Message   string `json:"message"`
	ProductID *int64 `json:"product_id"`
}

type typingWire struct {
	IsTyping bool `json:"is_typing"`
}

// DecodeClientFrame parses a raw client frame into its typed form.
// A frame without a type is treated as a chat message.
func DecodeClientFrame(data []byte) (ClientFrame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	frameType := FrameChatMessage
	if env.Type != nil {
		frameType = FrameType(*env.Type)
	}

	switch frameType {
	case FrameChatMessage:
		var wire chatMessageWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ChatMessageFrame{Text: wire.Message, ProductID: wire.ProductID}, nil
	case FrameTyping:
		var wire typingWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return TypingFrame(wire), nil
	case FrameMarkRead:
		return MarkReadFrame{}, nil
	default:
		return nil, &UnknownFrameError{Type: string(frameType)}
	}
}

type UnknownFrameError struct {
	Type string
}

func (e *UnknownFrameError) Error() string {
	return "unknown message type: " + e.Type
}

func (e *UnknownFrameError) Unwrap() error {
	return ErrUnknownFrameType
}

// ValidateText trims text and checks it against maxLength runes.
func ValidateText(text string, maxLength int) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	if maxLength > 0 && len([]rune(trimmed)) > maxLength {
		return "", ErrMessageTooLong
	}
	return trimmed, nil
}

type ConnectionEstablishedFrame struct {
	Type      FrameType `json:"type"`
	Message   string    `json:"message"`
	Room      string    `json:"room"`
	SessionID string    `json:"session_id"`
	User      Identity  `json:"user"`
}

func NewConnectionEstablishedFrame(room, sessionID string, ident Identity) ConnectionEstablishedFrame {
	return ConnectionEstablishedFrame{
		Type:      FrameConnectionEstablished,
		Message:   "Chat connection established successfully",
		Room:      room,
		SessionID: sessionID,
		User:      ident,
	}
}

type ChatMessageEvent struct {
	Type       FrameType       `json:"type"`
	ID         int64           `json:"id"`
	Message    string          `json:"message"`
	SenderType SenderKind      `json:"sender_type"`
	UserID     int64           `json:"user_id"`
	UserName   string          `json:"user_name"`
	UserEmail  string          `json:"user_email"`
	ProductID  *int64          `json:"product_id"`
	Product    *ProductSummary `json:"product,omitempty"`
	CreatedAt  string          `json:"created_at"`
	Timestamp  string          `json:"timestamp"`
}

func NewChatMessageEvent(msg *Message, product *ProductSummary) ChatMessageEvent {
	created := msg.CreatedAt.UTC()
	return ChatMessageEvent{
		Type:       FrameChatMessage,
		ID:         msg.ID,
		Message:    msg.Text,
		SenderType: msg.SenderKind,
		UserID:     msg.UserID,
		UserName:   msg.UserName,
		UserEmail:  msg.UserEmail,
		ProductID:  msg.TaggedProductID,
		Product:    product,
		CreatedAt:  created.Format(time.RFC3339Nano),
		Timestamp:  created.Format("15:04"),
	}
}

type TypingIndicatorFrame struct {
	Type     FrameType `json:"type"`
	UserName string    `json:"user_name"`
	IsTyping bool      `json:"is_typing"`
}

func NewTypingIndicatorFrame(ident Identity, isTyping bool) TypingIndicatorFrame {
	return TypingIndicatorFrame{Type: FrameTypingIndicator, UserName: ident.DisplayName, IsTyping: isTyping}
}

type UserOfflineFrame struct {
	Type           FrameType `json:"type"`
	UserID         int64     `json:"user_id"`
	UserName       string    `json:"user_name"`
	DisconnectTime string    `json:"disconnect_time"`
}

func NewUserOfflineFrame(ident Identity, at time.Time) UserOfflineFrame {
	return UserOfflineFrame{
		Type:           FrameUserOffline,
		UserID:         ident.UserID,
		UserName:       ident.DisplayName,
		DisconnectTime: at.UTC().Format(time.RFC3339Nano),
	}
}

type HeartbeatFrame struct {
	Type      FrameType `json:"type"`
	Timestamp string    `json:"timestamp"`
}

func NewHeartbeatFrame(at time.Time) HeartbeatFrame {
	return HeartbeatFrame{Type: FrameHeartbeat, Timestamp: at.UTC().Format(time.RFC3339Nano)}
}

type MarkReadAckFrame struct {
	Type  FrameType `json:"type"`
	Count int64     `json:"count"`
}

func NewMarkReadAckFrame(count int64) MarkReadAckFrame {
	return MarkReadAckFrame{Type: FrameMarkReadAck, Count: count}
}

type ErrorFrame struct {
	Type    FrameType `json:"type"`
	Message string    `json:"message"`
}

func NewErrorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: FrameError, Message: message}
}

// EncodeFrame serializes a server frame for the wire.
func EncodeFrame(frame any) ([]byte, error) {
	if frame == nil {
		return nil, errors.New("frame is nil")
	}
	return json.Marshal(frame)
}
