package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gemmad/internal/artifact"
	"gemmad/internal/chatlog"
	"gemmad/internal/download"
	"gemmad/internal/engine"
	"gemmad/internal/httpapi"
	"gemmad/internal/session"
	"gemmad/pkg/types"
)

// echoRuntime stands in for the native engine: it loads any file and answers
// every prompt with a fixed reply.
type echoRuntime struct{ reply string }

func (r *echoRuntime) Load(path string, opts engine.LoadOptions) (engine.Session, error) {
	return &echoSession{reply: r.reply}, nil
}

type echoSession struct{ reply string }

func (s *echoSession) Predict(ctx context.Context, prompt string, img image.Image, opts engine.GenOptions) (string, error) {
	return s.reply, nil
}

func (s *echoSession) Close() error { return nil }

// newStack wires the full daemon in-process: a fake artifact source, the real
// fetcher, the orchestrator over an echo runtime, and the HTTP mux.
func newStack(t *testing.T, artifactBody []byte) (*httptest.Server, *session.Orchestrator) {
	t.Helper()
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(artifactBody)
	}))
	t.Cleanup(source.Close)

	dir := t.TempDir()
	store, err := chatlog.Open(dir)
	if err != nil {
		t.Fatalf("open chatlog: %v", err)
	}
	orch := session.New(session.Config{
		Location:  artifact.Locate(dir, "model.gguf"),
		SourceURL: source.URL,
		Fetcher:   download.New(""),
		Engine:    engine.New(&echoRuntime{reply: "a haiku about the ocean"}, engine.LoadOptions{}, engine.GenOptions{}),
		Log:       store,
	})
	srv := httptest.NewServer(httpapi.NewMux(orch))
	t.Cleanup(srv.Close)
	return srv, orch
}

func waitReady(t *testing.T, srv *httptest.Server) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/readyz")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never became ready")
}

func TestE2E_DownloadActivateChat(t *testing.T) {
	srv, orch := newStack(t, make([]byte, 2048))
	go orch.Run(context.Background())
	waitReady(t, srv)

	// Status reflects the published artifact and terminal progress.
	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	resp.Body.Close()
	if st.State != "ready" || st.ArtifactBytes != 2048 || st.Progress.Percent != 100 {
		t.Fatalf("unexpected status: %+v", st)
	}

	// Chat round-trip appends both sides of the exchange.
	resp, err = http.Post(srv.URL+"/chat", "application/json", bytes.NewBufferString(`{"prompt":"write a haiku"}`))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	var chat types.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || chat.Message.Text == "" {
		t.Fatalf("chat status=%d message=%+v", resp.StatusCode, chat.Message)
	}

	resp, err = http.Get(srv.URL + "/messages")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	var msgs types.MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	resp.Body.Close()
	if len(msgs.Messages) != 2 {
		t.Fatalf("messages=%d want 2", len(msgs.Messages))
	}
	if msgs.Messages[0].Sender != types.SenderUser || msgs.Messages[1].Sender != types.SenderAssistant {
		t.Fatalf("unexpected transcript order: %+v", msgs.Messages)
	}
}

func TestE2E_ChatBeforeReadyIs503(t *testing.T) {
	srv, _ := newStack(t, []byte("weights"))
	// Lifecycle never started: the session is still uninitialized.
	resp, err := http.Post(srv.URL+"/chat", "application/json", bytes.NewBufferString(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", resp.StatusCode)
	}
}

func TestE2E_RetryAfterAuthFailure(t *testing.T) {
	var rejected bool
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rejected {
			rejected = true
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("weights"))
	}))
	defer source.Close()

	dir := t.TempDir()
	store, err := chatlog.Open(dir)
	if err != nil {
		t.Fatalf("open chatlog: %v", err)
	}
	orch := session.New(session.Config{
		Location:  artifact.Locate(dir, "model.gguf"),
		SourceURL: source.URL,
		Fetcher:   download.New("expired-token"),
		Engine:    engine.New(&echoRuntime{reply: "ok"}, engine.LoadOptions{}, engine.GenOptions{}),
		Log:       store,
	})
	srv := httptest.NewServer(httpapi.NewMux(orch))
	defer srv.Close()

	if err := orch.Run(context.Background()); err == nil {
		t.Fatalf("expected auth failure on first run")
	}

	resp, err := http.Post(srv.URL+"/retry", "application/json", nil)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	var rr types.RetryResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		t.Fatalf("decode retry: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || rr.OpID == "" {
		t.Fatalf("retry status=%d op=%q", resp.StatusCode, rr.OpID)
	}
	waitReady(t, srv)

	// A second retry in the ready state is rejected.
	resp, err = http.Post(srv.URL+"/retry", "application/json", nil)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status=%d want 409", resp.StatusCode)
	}
}
