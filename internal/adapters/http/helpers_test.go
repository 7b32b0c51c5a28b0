package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/ophion/companion/internal/adapters/repository"
	"github.com/ophion/companion/internal/application/board"
	"github.com/ophion/companion/internal/application/services"
	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/infrastructure/config"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

const testUser = "guest_1700000000000_k3j9x0q2a"

type structValidator struct {
	v *validator.Validate
}

func (s structValidator) Validate(i interface{}) error {
	return s.v.Struct(i)
}

// offlineGateway answers like an unconfigured model, except for chat,
// which streams the scripted deltas and then fails with err if set.
type offlineGateway struct {
	deltas []string
	err    error
}

func (g offlineGateway) GenerateStructured(ctx context.Context, req ports.StructuredRequest, out any) error {
	return ports.ErrAIUnavailable
}

func (g offlineGateway) GenerateText(ctx context.Context, prompt string) (string, error) {
	return "", ports.ErrAIUnavailable
}

func (g offlineGateway) OpenChatSession(systemInstruction string) ports.ChatSession {
	return g
}

func (g offlineGateway) SendMessageStream(ctx context.Context, text string) (ports.ChatStream, error) {
	return &replayStream{deltas: append([]string(nil), g.deltas...), err: g.err}, nil
}

type replayStream struct {
	deltas []string
	err    error
}

func (s *replayStream) Recv() (string, error) {
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

func (s *replayStream) Close() error { return nil }

// testAPI wires the handlers onto an echo instance the way the server
// does, with the caller fixed to testUser.
type testAPI struct {
	echo       *echo.Echo
	store      *repository.MemoryStore
	workspaces *services.WorkspaceService
	identity   *services.IdentityService
}

func newTestAPI(t *testing.T, ai ports.AIGateway) *testAPI {
	t.Helper()
	log := logger.NewNop()
	store := repository.NewMemoryStore()

	assistant := services.NewAssistantService(ai, nil, 0, log)
	workspaces := services.NewWorkspaceService(store, assistant, workspace.Options{TickInterval: -1}, log)
	t.Cleanup(workspaces.Close)

	boards := services.NewBoardService(workspaces, assistant, board.DefaultGeometry(), log)
	catalog := repository.NewProjectCatalog()
	identity := services.NewIdentityService(nil, config.JWTConfig{
		Secret:    "test-secret",
		ExpiresIn: time.Hour,
		Issuer:    "companion-test",
	}, log)

	wh := NewWorkspaceHandler(workspaces,
		services.NewAnalyticsService(workspaces),
		services.NewWrappedService(workspaces, catalog, assistant, log),
		log)
	wh.PingInterval = time.Hour
	bh := NewBoardHandler(boards, workspaces, log)
	ph := NewProjectHandler(services.NewProjectService(catalog, workspaces, assistant, log), log)
	ch := NewChatHandler(services.NewChatService(ai, log), log)
	sh := NewSessionHandler(identity, log)
	th := NewThemeHandler()

	e := echo.New()
	e.Validator = structValidator{v: validator.New()}

	e.POST("/session", sh.StartSession)
	e.GET("/themes", th.ListThemes)
	e.GET("/themes/:id", th.GetTheme)

	g := e.Group("", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextUserID, testUser)
			return next(c)
		}
	})
	g.PUT("/session/name", sh.Rename)
	g.GET("/workspace", wh.GetView)
	g.GET("/workspace/events", wh.Events)
	g.GET("/tasks", wh.ListTasks)
	g.POST("/tasks", wh.CreateTask)
	g.POST("/tasks/magic", wh.MagicSetup)
	g.PATCH("/tasks/:id", wh.UpdateTask)
	g.DELETE("/tasks/:id", wh.DeleteTask)
	g.POST("/tasks/:id/toggle", wh.ToggleTask)
	g.GET("/analytics", wh.Analytics)
	g.GET("/wrapped", wh.Wrapped)
	g.POST("/notes", bh.CreateNote)
	g.POST("/notes/:id/opacity", bh.SetOpacity)
	g.GET("/board", bh.GetBoard)
	g.POST("/board/drag", bh.BeginDrag)
	g.POST("/board/move", bh.Move)
	g.POST("/board/release", bh.Release)
	g.POST("/board/conversion/confirm", bh.ConfirmConversion)
	g.GET("/projects", ph.ListProjects)
	g.GET("/projects/:id", ph.GetProject)
	g.GET("/chat/messages", ch.History)
	g.POST("/chat/messages", ch.Send)

	return &testAPI{echo: e, store: store, workspaces: workspaces, identity: identity}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

// sseEvent is one parsed Server-Sent Event
type sseEvent struct {
	Name string
	Data string
}

func parseEvents(body string) []sseEvent {
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = strings.TrimPrefix(line, "data: ")
			}
		}
		if ev.Name != "" {
			events = append(events, ev)
		}
	}
	return events
}
