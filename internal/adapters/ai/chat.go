package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/ophion/companion/internal/ports"
)

// chatSession keeps the conversation history. Turns are appended only after
// their stream completes.
type chatSession struct {
	gateway *Gateway

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

func (g *Gateway) OpenChatSession(systemInstruction string) ports.ChatSession {
	s := &chatSession{gateway: g}
	if systemInstruction != "" {
		s.history = append(s.history, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}
	return s
}

func (s *chatSession) SendMessageStream(ctx context.Context, text string) (ports.ChatStream, error) {
	g := s.gateway
	if !g.configured {
		g.observe("chat", ports.ErrAIUnavailable)
		return nil, ports.ErrAIUnavailable
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ai rate limit: %w", err)
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}

	s.mu.Lock()
	messages := make([]openai.ChatCompletionMessage, 0, len(s.history)+1)
	messages = append(messages, s.history...)
	s.mu.Unlock()
	messages = append(messages, user)

	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages:    messages,
		Stream:      true,
	})
	if err != nil {
		g.observe("chat", err)
		return nil, fmt.Errorf("open chat stream: %w", err)
	}

	return &chatStream{session: s, user: user, stream: stream}, nil
}

func (s *chatSession) commit(user openai.ChatCompletionMessage, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, user, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
}

type chatStream struct {
	session *chatSession
	user    openai.ChatCompletionMessage
	stream  *openai.ChatCompletionStream
	reply   strings.Builder
	done    bool
}

func (c *chatStream) Recv() (string, error) {
	if c.done {
		return "", io.EOF
	}

	for {
		resp, err := c.stream.Recv()
		if errors.Is(err, io.EOF) {
			c.done = true
			c.session.commit(c.user, c.reply.String())
			c.session.gateway.observe("chat", nil)
			return "", io.EOF
		}
		if err != nil {
			c.done = true
			c.session.gateway.observe("chat", err)
			return "", fmt.Errorf("chat stream: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}

		delta := resp.Choices[0].Delta.Content
		c.reply.WriteString(delta)
		return delta, nil
	}
}

func (c *chatStream) Close() error {
	c.stream.Close()
	return nil
}
