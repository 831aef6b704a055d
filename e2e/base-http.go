package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"groupchat/auth"
	"groupchat/infrastructure/http/handler"
	"groupchat/infrastructure/storage"
	"groupchat/repositories"
	"groupchat/runtime"
	"groupchat/services"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

const testSecret = "e2e-secret-e2e-secret-e2e-secret"

type BaseHTTPSuite struct {
	suite.Suite
	Config  Config
	BaseURL string

	server   *httptest.Server
	db       *badger.DB
	messages *repositories.MessageRepository
}

// Session is what signup hands back.
type Session struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
}

// Frame is one live channel frame.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SetupSuite loads the environment configuration and, without a target
// address, boots the full stack on a temporary store.
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr != "" {
		s.BaseURL = strings.TrimSuffix(s.Config.ServerAddr, "/")
		return
	}

	log := slog.Default()
	s.db, err = badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	s.messages, err = repositories.NewMessageRepository(s.db)
	s.Require().NoError(err)
	blobs, err := storage.NewDiskBlobStore(log, s.T().TempDir(), "http://localhost/files")
	s.Require().NoError(err)

	users := repositories.NewUserRepository(s.db)
	groups := repositories.NewGroupRepository(s.db)
	registry := runtime.NewRegistry(log)
	sequencer := runtime.NewSequencer()
	tokens := auth.NewTokenIssuer(testSecret, time.Hour)

	s.server = httptest.NewServer(handler.NewRouter(handler.Dependencies{
		Log:          log,
		Tokens:       tokens,
		AuthService:  services.NewAuthService(log, users, tokens),
		GroupService: services.NewGroupService(log, groups, users, registry, sequencer),
		ChatService: services.NewChatService(log, groups, s.messages, users, registry, sequencer, blobs, nil, nil,
			services.ChatConfig{MaxMessageLength: 4000, BufferSize: 64}),
		MaxUploadSize: 1 << 20,
		AllowedOrigin: "*",
	}))
	s.BaseURL = s.server.URL
}

func (s *BaseHTTPSuite) TearDownSuite() {
	if s.server != nil {
		s.server.CloseClientConnections()
		s.server.Close()
	}
	if s.messages != nil {
		_ = s.messages.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// Step prints a colorized header for a scenario step.
func (s *BaseHTTPSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call sends a JSON request and decodes the JSON answer into out when given.
// It returns the status code.
func (s *BaseHTTPSuite) Call(method, path, token string, body, out any) int {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.BaseURL+path, payload)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	line := fmt.Sprintf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		line += "\nRESPONSE:\n" + string(raw)
	}
	s.T().Log(line)

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

// Signup registers a fresh user under a unique email.
func (s *BaseHTTPSuite) Signup(name string) Session {
	var session Session
	status := s.Call(http.MethodPost, "/users/signup", "", map[string]string{
		"name":     name,
		"email":    fmt.Sprintf("%s-%s@example.com", strings.ToLower(name), uuid.NewString()[:8]),
		"password": "Password123",
	}, &session)
	s.Require().Equal(http.StatusCreated, status)
	s.Require().NotEmpty(session.Token)
	return session
}

func (s *BaseHTTPSuite) wsURL(token string) string {
	return "ws" + strings.TrimPrefix(s.BaseURL, "http") + "/ws?token=" + token
}

// Dial opens the live channel of a user.
func (s *BaseHTTPSuite) Dial(token string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL(token), nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

// Expect reads frames until one named event shows up, skipping the others.
func (s *BaseHTTPSuite) Expect(conn *websocket.Conn, event string) Frame {
	deadline := time.Now().Add(3 * time.Second)
	s.Require().NoError(conn.SetReadDeadline(deadline))
	for {
		var frame Frame
		err := conn.ReadJSON(&frame)
		s.Require().NoError(err, "waiting for %s", event)
		if frame.Event == event {
			return frame
		}
		s.T().Logf("skipping frame %s", frame.Event)
	}
}

// ExpectSilence fails if a message frame arrives within the window.
// Once it returned, conn can no longer be read.
func (s *BaseHTTPSuite) ExpectSilence(conn *websocket.Conn, event string, window time.Duration) {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(window)))
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		s.Require().NotEqual(event, frame.Event, "unexpected frame %s", string(frame.Data))
	}
}

func (s *BaseHTTPSuite) Send(conn *websocket.Conn, event string, data any) {
	s.Require().NoError(conn.WriteJSON(map[string]any{"event": event, "data": data}))
}
