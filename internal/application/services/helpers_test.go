package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ophion/companion/internal/adapters/repository"
	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

const testUser = "guest_1700000000000_k3j9x0q2a"

var errModelDown = errors.New("model unreachable")

// mockGateway is a testify mock of the AI gateway. Structured calls are
// matched on the request name.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) GenerateStructured(ctx context.Context, req ports.StructuredRequest, out any) error {
	args := m.Called(req.Name, out)
	return args.Error(0)
}

func (m *mockGateway) GenerateText(ctx context.Context, prompt string) (string, error) {
	args := m.Called(prompt)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) OpenChatSession(systemInstruction string) ports.ChatSession {
	args := m.Called(systemInstruction)
	return args.Get(0).(ports.ChatSession)
}

// answer decodes body into the destination of a structured call
func answer(body string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		if err := json.Unmarshal([]byte(body), args.Get(1)); err != nil {
			panic(err)
		}
	}
}

// scriptedSession streams deltas, then fails with err when it is set
type scriptedSession struct {
	deltas  []string
	err     error
	openErr error
	sent    []string
}

func (s *scriptedSession) SendMessageStream(ctx context.Context, text string) (ports.ChatStream, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.sent = append(s.sent, text)
	return &scriptedStream{deltas: append([]string(nil), s.deltas...), err: s.err}, nil
}

type scriptedStream struct {
	deltas []string
	err    error
	closed bool
}

func (s *scriptedStream) Recv() (string, error) {
	if len(s.deltas) > 0 {
		d := s.deltas[0]
		s.deltas = s.deltas[1:]
		return d, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type fixture struct {
	ai         *mockGateway
	store      *repository.MemoryStore
	assistant  *AssistantService
	workspaces *WorkspaceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ai := &mockGateway{}
	store := repository.NewMemoryStore()
	log := logger.NewNop()

	assistant := NewAssistantService(ai, nil, 0, log)
	workspaces := NewWorkspaceService(store, assistant, workspace.Options{TickInterval: -1}, log)
	t.Cleanup(workspaces.Close)

	return &fixture{ai: ai, store: store, assistant: assistant, workspaces: workspaces}
}

func (f *fixture) workspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws := f.workspaces.Get(context.Background(), testUser)
	require.True(t, ws.Connected())
	return ws
}
