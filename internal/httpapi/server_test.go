package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gemmad/internal/engine"
	"gemmad/internal/session"
	"gemmad/pkg/types"
)

type mockService struct {
	status   types.StatusResponse
	messages []types.Message
	ready    bool
	chatMsg  types.Message
	chatErr  error
	retryID  string
	retryErr error

	gotChat  *types.ChatRequest
	retries  int
}

func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Messages() []types.Message {
	return append([]types.Message(nil), m.messages...)
}
func (m *mockService) Ready() bool { return m.ready }
func (m *mockService) Chat(ctx context.Context, req types.ChatRequest) (types.Message, error) {
	m.gotChat = &req
	if m.chatErr != nil {
		return types.Message{}, m.chatErr
	}
	return m.chatMsg, nil
}
func (m *mockService) Retry(ctx context.Context) (string, error) {
	m.retries++
	return m.retryID, m.retryErr
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "downloading", Progress: types.ProgressOf(50, 100)}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.State != "downloading" || body.Progress.Percent != 50 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMessagesHandler(t *testing.T) {
	svc := &mockService{messages: []types.Message{
		{ID: "1", Text: "hi", Sender: types.SenderUser},
		{ID: "2", Text: "hello", Sender: types.SenderAssistant},
	}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/messages", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.MessagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Messages) != 2 || body.Messages[1].Sender != types.SenderAssistant {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestChatSuccess(t *testing.T) {
	svc := &mockService{chatMsg: types.Message{ID: "9", Text: "a reply", Sender: types.SenderAssistant}}
	r := NewMux(svc)
	w := postJSON(t, r, "/chat", `{"prompt":"hi","image_path":"/tmp/cat.png"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Message.Text != "a reply" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if svc.gotChat == nil || svc.gotChat.ImagePath != "/tmp/cat.png" {
		t.Fatalf("request not forwarded: %+v", svc.gotChat)
	}
}

func TestChatRequiresJSONContentType(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"prompt":"hi"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestChatBadJSON(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(t, r, "/chat", "not-json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestChatBlankPrompt(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := postJSON(t, r, "/chat", `{"prompt":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.gotChat != nil {
		t.Fatalf("blank prompt must not reach the service")
	}
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"empty prompt", engine.ErrEmptyPrompt(), http.StatusBadRequest},
		{"invalid image", engine.ErrInvalidImage("/tmp/x.png", context.DeadlineExceeded), http.StatusBadRequest},
		{"image not found", engine.ErrImageNotFound("/tmp/x.png"), http.StatusNotFound},
		{"busy", engine.ErrBusy(), http.StatusTooManyRequests},
		{"not ready", session.ErrNotReady("downloading"), http.StatusServiceUnavailable},
		{"not activated", engine.ErrNotActivated(), http.StatusServiceUnavailable},
		{"runtime unavailable", engine.ErrRuntimeUnavailable("no backend"), http.StatusServiceUnavailable},
		{"engine failure", engine.ErrEngineFailure(context.DeadlineExceeded), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewMux(&mockService{chatErr: c.err})
			w := postJSON(t, r, "/chat", `{"prompt":"hi"}`)
			if w.Code != c.want {
				t.Fatalf("status=%d want=%d body=%s", w.Code, c.want, w.Body.String())
			}
			var body types.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body.Code != c.want || body.Error == "" {
				t.Fatalf("unexpected error body: %+v", body)
			}
		})
	}
}

func TestRetryAccepted(t *testing.T) {
	svc := &mockService{retryID: "op-1"}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/retry", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.RetryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.OpID != "op-1" || svc.retries != 1 {
		t.Fatalf("unexpected: body=%+v retries=%d", body, svc.retries)
	}
}

func TestRetryWrongStateConflict(t *testing.T) {
	svc := &mockService{retryErr: session.ErrNotRetryable("ready")}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/retry", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz(t *testing.T) {
	r := NewMux(&mockService{ready: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	r := NewMux(&mockService{ready: false})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}
