package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/your-org/greeter/internal/greet"
	"github.com/your-org/greeter/internal/notify"
	"github.com/your-org/greeter/pkg/dto"
)

func greetingRouter(store *greetStore, sink *eventSink) *gin.Engine {
	fanout := notify.NewFanout()
	if sink != nil {
		fanout.Register(sink)
	}

	h := NewGreetingHandler(greet.NewService(store), fanout)

	r := gin.New()
	r.POST("/api/greet", h.Create)
	r.GET("/api/greetings", h.List)
	r.GET("/api/stats", h.Stats)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, r http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w
}

func TestCreateGreeting(t *testing.T) {
	store := &greetStore{}
	sink := &eventSink{}
	r := greetingRouter(store, sink)

	w := postJSON(t, r, "/api/greet", dto.GreetRequest{Name: "Alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp dto.GreetingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Name != "Alice" {
		t.Errorf("expected name Alice, got %q", resp.Name)
	}
	if !strings.Contains(resp.Greeting, "Alice") {
		t.Errorf("greeting %q does not mention the name", resp.Greeting)
	}
	if resp.ID == 0 || resp.Timestamp == "" {
		t.Errorf("expected id and timestamp set, got %+v", resp)
	}

	events := sink.all()
	if len(events) != 1 || events[0].Type != notify.EventNewGreeting {
		t.Errorf("expected one newGreeting fanout event, got %+v", events)
	}
}

func TestCreateGreeting_SanitizesName(t *testing.T) {
	r := greetingRouter(&greetStore{}, nil)

	w := postJSON(t, r, "/api/greet", dto.GreetRequest{Name: `<script>alert("x")</script>`})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp dto.GreetingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, forbidden := range []string{"<", ">", "&", `"`, "'"} {
		if strings.Contains(resp.Name, forbidden) {
			t.Errorf("response name %q contains %q", resp.Name, forbidden)
		}
	}
}

func TestCreateGreeting_MissingName(t *testing.T) {
	store := &greetStore{}
	r := greetingRouter(store, nil)

	for _, body := range []any{dto.GreetRequest{}, dto.GreetRequest{Name: "   "}, map[string]string{}} {
		w := postJSON(t, r, "/api/greet", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %+v: expected 400, got %d", body, w.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp["error"] != "name is required" {
			t.Errorf("unexpected error message %q", resp["error"])
		}
	}

	if len(store.greetings) != 0 {
		t.Errorf("expected nothing persisted, got %d greetings", len(store.greetings))
	}
}

func TestCreateGreeting_MalformedJSON(t *testing.T) {
	r := greetingRouter(&greetStore{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/greet", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreateGreeting_StoreFailure(t *testing.T) {
	store := &greetStore{failWith: errors.New("db down")}
	r := greetingRouter(store, nil)

	w := postJSON(t, r, "/api/greet", dto.GreetRequest{Name: "Alice"})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	// Generic message only, no internals leaked.
	if strings.Contains(w.Body.String(), "db down") {
		t.Errorf("response leaked internal error: %s", w.Body.String())
	}
}

func TestListGreetings_NewestFirstCapped(t *testing.T) {
	store := &greetStore{}
	r := greetingRouter(store, nil)

	for i := 0; i < 12; i++ {
		if w := postJSON(t, r, "/api/greet", dto.GreetRequest{Name: "Visitor"}); w.Code != http.StatusOK {
			t.Fatalf("seed greeting failed: %d", w.Code)
		}
	}

	var resp []dto.GreetingResponse
	if w := getJSON(t, r, "/api/greetings", &resp); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if len(resp) != 10 {
		t.Fatalf("expected 10 greetings, got %d", len(resp))
	}
	for i := 1; i < len(resp); i++ {
		if resp[i].ID > resp[i-1].ID {
			t.Errorf("expected newest first, got id %d after %d", resp[i].ID, resp[i-1].ID)
		}
	}
}

func TestStats_CountsOnlyPersistedGreetings(t *testing.T) {
	store := &greetStore{}
	r := greetingRouter(store, nil)

	for i := 0; i < 4; i++ {
		postJSON(t, r, "/api/greet", dto.GreetRequest{Name: "Visitor"})
	}
	postJSON(t, r, "/api/greet", dto.GreetRequest{Name: ""})
	postJSON(t, r, "/api/greet", dto.GreetRequest{Name: "   "})

	var resp dto.StatsResponse
	if w := getJSON(t, r, "/api/stats", &resp); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp.TotalGreetings != 4 {
		t.Errorf("expected 4 total greetings, got %d", resp.TotalGreetings)
	}
}
