package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

// ChatService keeps one persona chat session per user
type ChatService struct {
	ai     ports.AIGateway
	logger *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*chatState
}

type chatState struct {
	// one turn at a time per user
	turn     sync.Mutex
	session  ports.ChatSession
	messages []entities.ChatMessage
}

// NewChatService creates a new chat service
func NewChatService(ai ports.AIGateway, logger *logger.Logger) *ChatService {
	return &ChatService{
		ai:       ai,
		logger:   logger.WithComponent("chat"),
		now:      time.Now,
		sessions: make(map[string]*chatState),
	}
}

func (s *ChatService) state(userID string) *chatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[userID]
	if !ok {
		st = &chatState{session: s.ai.OpenChatSession(ChatPersona)}
		s.sessions[userID] = st
	}
	return st
}

// History returns the finished messages of the user's conversation
func (s *ChatService) History(userID string) []entities.ChatMessage {
	st := s.state(userID)
	st.turn.Lock()
	defer st.turn.Unlock()
	return append([]entities.ChatMessage(nil), st.messages...)
}

// Send runs one turn. onDelta receives each fragment as it arrives. When
// the stream fails the reply becomes the apology text and failed is true;
// the turn always ends with a finalized message.
func (s *ChatService) Send(ctx context.Context, userID, text string, onDelta func(string)) (reply entities.ChatMessage, failed bool) {
	st := s.state(userID)
	st.turn.Lock()
	defer st.turn.Unlock()

	st.messages = append(st.messages, entities.ChatMessage{
		ID:        uuid.NewString(),
		Role:      entities.ChatRoleUser,
		Text:      text,
		Timestamp: s.now(),
	})
	reply = entities.ChatMessage{ID: uuid.NewString(), Role: entities.ChatRoleModel, Timestamp: s.now()}

	full, err := s.stream(ctx, st.session, text, onDelta)
	if err != nil {
		s.logger.Warnw("Chat stream failed", "user_id", userID, "error", err.Error())
		reply.Text = ChatApology
		failed = true
	} else {
		reply.Text = full
	}

	st.messages = append(st.messages, reply)
	return reply, failed
}

func (s *ChatService) stream(ctx context.Context, session ports.ChatSession, text string, onDelta func(string)) (string, error) {
	stream, err := session.SendMessageStream(ctx, text)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		b.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
}
