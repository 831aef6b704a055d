package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	Token         string `env:"CHAT_TOKEN,required=true"`
	GroupID       string `env:"CHAT_GROUP_ID"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type newMessage struct {
	ID        uint64    `json:"id"`
	Message   string    `json:"message"`
	GroupID   *string   `json:"groupId"`
	Sender    string    `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
	IsFile    bool      `json:"isFile"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run opens the live channel, prints every event, and posts each stdin line
// to the configured group, or to the global room when none is set.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsURL := url.URL{Scheme: "ws", Host: config.ServerAddress, Path: "/ws", RawQuery: "token=" + url.QueryEscape(config.Token)}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	if config.GroupID != "" {
		join := map[string]any{"event": "joinGroup", "data": map[string]string{"groupId": config.GroupID}}
		if err = conn.WriteJSON(join); err != nil {
			return exitRuntime, fmt.Errorf("join failed: %w", err)
		}
	}
	log.Info(fmt.Sprintf(">>> Connected to %s (Ctrl+C to quit)...", config.ServerAddress))

	go readStdin(ctx, log.Error, config)

	received := make(chan error, 1)
	go func() {
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				received <- err
				return
			}
			printFrame(f)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Stopping client...")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return exitOK, nil
	case err = <-received:
		if ctx.Err() != nil {
			return exitOK, nil
		}
		return exitRuntime, fmt.Errorf("stream error: %w", err)
	}
}

func printFrame(f frame) {
	switch f.Event {
	case "newMessage":
		var m newMessage
		if err := json.Unmarshal(f.Data, &m); err != nil {
			color.Red.Printf("unreadable message: %v\n", err)
			return
		}
		body := m.Message
		if m.IsFile {
			body = color.Cyan.Render("[file] " + body)
		}
		fmt.Printf("%s %s: %s\n",
			color.Gray.Render(m.CreatedAt.Local().Format(time.TimeOnly)),
			color.New(color.FgGreen, color.OpBold).Render(m.Sender),
			body)
	case "error":
		color.Red.Printf("! %s\n", string(f.Data))
	default:
		color.Yellow.Printf("* %s %s\n", f.Event, string(f.Data))
	}
}

func readStdin(ctx context.Context, logError func(msg string, args ...any), config Config) {
	path := "/messages"
	if config.GroupID != "" {
		path = "/groups/" + url.PathEscape(config.GroupID) + "/messages"
	}
	endpoint := "http://" + config.ServerAddress + path
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := post(ctx, endpoint, config.Token, line); err != nil {
			logError("Send failed", "error", err)
		}
	}
}

func post(ctx context.Context, endpoint, token, message string) error {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		var failure struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return fmt.Errorf("%s: %s", resp.Status, failure.Message)
	}
	return nil
}
