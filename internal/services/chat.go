package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/apperr"
	"github.com/harentsoaR/telehealth-api/internal/chat"
	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/store"
)

const MaxChatMessageLength = 2000

// Publisher pushes events to live connections of a user.
type Publisher interface {
	Publish(topic, eventType string, payload any) error
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

type ChatService struct {
	store     *store.Store
	publisher Publisher
	now       func() time.Time
}

func NewChatService(st *store.Store, publisher Publisher) *ChatService {
	return &ChatService{store: st, publisher: publisher, now: func() time.Time { return time.Now().UTC() }}
}

// Send persists the message and pushes it to both participants. The
// receiver can be a user or a doctor.
func (s *ChatService) Send(ctx context.Context, caller Caller, req SendMessageRequest) (*models.ChatMessage, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, apperr.Invalid(apperr.CodeInvalidRequest, "Message is required")
	}
	if len(text) > MaxChatMessageLength {
		return nil, apperr.Invalid(apperr.CodeInvalidRequest, "Message is too long")
	}
	receiverID, err := parseID(req.ReceiverID, "receiver id")
	if err != nil {
		return nil, err
	}
	if err := s.participantExists(ctx, receiverID); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ID:        primitive.NewObjectID(),
		Sender:    caller.ID,
		Receiver:  receiverID,
		Message:   text,
		Timestamp: s.now(),
	}
	if err := s.store.Chats.Insert(ctx, msg); err != nil {
		return nil, apperr.Internal("Failed to send message", err)
	}

	if s.publisher != nil {
		for _, topic := range []string{receiverID.Hex(), caller.ID.Hex()} {
			if err := s.publisher.Publish(topic, chat.EventMessage, msg); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("chat publish failed")
			}
		}
	}
	return msg, nil
}

func (s *ChatService) History(ctx context.Context, caller Caller, peerIDRaw string) ([]models.ChatMessage, error) {
	peerID, err := parseID(peerIDRaw, "peer id")
	if err != nil {
		return nil, err
	}
	messages, err := s.store.Chats.Conversation(ctx, caller.ID, peerID)
	if err != nil {
		return nil, apperr.Internal("Failed to load messages", err)
	}
	return messages, nil
}

func (s *ChatService) participantExists(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.store.Users.FindByID(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return apperr.Internal("Failed to load receiver", err)
	}
	_, err = s.store.Doctors.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Receiver not found")
	}
	if err != nil {
		return apperr.Internal("Failed to load receiver", err)
	}
	return nil
}
