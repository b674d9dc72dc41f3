package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zulandar/dealscout/internal/agent"
	"github.com/zulandar/dealscout/internal/db"
	"github.com/zulandar/dealscout/internal/listing"
	"github.com/zulandar/dealscout/internal/negotiation"
	"github.com/zulandar/dealscout/internal/scout"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRouter(t *testing.T) (*gin.Engine, *scout.Service) {
	t.Helper()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	quiet := log.New(io.Discard, "", 0)
	svc := &scout.Service{
		DB: gdb,
		Options: negotiation.Options{
			Logger: quiet,
			Now:    func() time.Time { return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) },
		},
		Buyer:       agent.NewRules(negotiation.Buyer),
		Seller:      agent.NewRules(negotiation.Seller),
		Logger:      quiet,
		Parallelism: 2,
	}
	for _, o := range []listing.CreateOpts{
		{ID: "trek", Title: "Trek mountain bike", Category: "bikes", AskingPrice: 450, SellerID: "s1"},
		{ID: "giant", Title: "Giant mountain bike", Category: "bikes", AskingPrice: 600, SellerID: "s2"},
	} {
		if _, err := listing.Create(gdb, o); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	return NewRouter(svc, []string{"http://localhost:3000"}, quiet), svc
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	r, _ := testRouter(t)
	w := do(t, r, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}
}

func TestListings(t *testing.T) {
	r, _ := testRouter(t)

	w := do(t, r, http.MethodPost, "/api/listings", `{"title":"Desk lamp","asking_price":25,"condition":"fair","category":"home"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var created struct{ ID, Condition string }
	decode(t, w, &created)
	if created.ID == "" || created.Condition != "fair" {
		t.Errorf("created = %+v", created)
	}

	tests := []struct {
		name string
		path string
		code int
		n    int
	}{
		{"all", "/api/listings", http.StatusOK, 3},
		{"query", "/api/listings?q=mountain+bike+under+500", http.StatusOK, 1},
		{"category", "/api/listings?category=home", http.StatusOK, 1},
		{"bad condition", "/api/listings?q=bike&condition=mint", http.StatusBadRequest, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodGet, tt.path, "")
			if w.Code != tt.code {
				t.Fatalf("code = %d, want %d: %s", w.Code, tt.code, w.Body.String())
			}
			if tt.n >= 0 {
				var rows []map[string]any
				decode(t, w, &rows)
				if len(rows) != tt.n {
					t.Errorf("rows = %d, want %d", len(rows), tt.n)
				}
			}
		})
	}

	if w := do(t, r, http.MethodGet, "/api/listings/trek", ""); w.Code != http.StatusOK {
		t.Errorf("get = %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/listings/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("get missing = %d, want 404", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/listings", `{"title":"free","asking_price":0}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid create = %d, want 400", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/listings", `{`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed create = %d, want 400", w.Code)
	}
}

func TestParse(t *testing.T) {
	r, _ := testRouter(t)
	w := do(t, r, http.MethodPost, "/api/parse", `{"query":"road bike $300 to $500 within 10 miles"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("parse = %d", w.Code)
	}
	var q listing.Query
	decode(t, w, &q)
	if q.MinPrice == nil || *q.MinPrice != 300 || q.MaxPrice == nil || *q.MaxPrice != 500 || q.WithinMiles == nil || *q.WithinMiles != 10 {
		t.Errorf("query = %+v", q)
	}
}

func TestStartNegotiations(t *testing.T) {
	r, _ := testRouter(t)

	w := do(t, r, http.MethodPost, "/api/negotiations", `{"listing_ids":["trek"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("negotiate = %d %s", w.Code, w.Body.String())
	}
	var outs []scout.Outcome
	decode(t, w, &outs)
	if len(outs) != 1 || outs[0].Result.Status != negotiation.StatusSuccess {
		t.Fatalf("outcomes = %+v", outs)
	}

	w = do(t, r, http.MethodPost, "/api/negotiations", `{"listing_ids":["trek","giant"],"buyer_budget":560}`)
	decode(t, w, &outs)
	if len(outs) != 2 || outs[1].Result.MaxBudget != 560 {
		t.Errorf("multi outcomes = %+v", outs)
	}

	tests := []struct {
		name string
		body string
		code int
	}{
		{"no ids", `{"listing_ids":[]}`, http.StatusBadRequest},
		{"unknown listing", `{"listing_ids":["ghost"]}`, http.StatusNotFound},
		{"bad budget", `{"listing_ids":["trek"],"buyer_budget":-1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, r, http.MethodPost, "/api/negotiations", tt.body); w.Code != tt.code {
				t.Errorf("code = %d, want %d: %s", w.Code, tt.code, w.Body.String())
			}
		})
	}
}

func TestNegotiationHistory(t *testing.T) {
	r, _ := testRouter(t)
	w := do(t, r, http.MethodPost, "/api/negotiations", `{"listing_ids":["trek"]}`)
	var outs []scout.Outcome
	decode(t, w, &outs)

	w = do(t, r, http.MethodGet, "/api/negotiations?listing_id=trek", "")
	var rows []map[string]any
	decode(t, w, &rows)
	if len(rows) != 1 {
		t.Errorf("history rows = %d, want 1", len(rows))
	}

	w = do(t, r, http.MethodGet, "/api/negotiations/"+outs[0].ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get negotiation = %d", w.Code)
	}
	var got struct {
		ID     string             `json:"id"`
		Result negotiation.Result `json:"result"`
	}
	decode(t, w, &got)
	if got.ID != outs[0].ID || len(got.Result.Messages) != len(outs[0].Result.Messages) {
		t.Errorf("negotiation = %s with %d messages", got.ID, len(got.Result.Messages))
	}

	if w := do(t, r, http.MethodGet, "/api/negotiations/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing negotiation = %d, want 404", w.Code)
	}
}

func TestStreamNegotiation(t *testing.T) {
	r, _ := testRouter(t)
	w := do(t, r, http.MethodPost, "/api/negotiations/stream", `{"listing_ids":["trek"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("stream = %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"event: connected", "event: message", "Negotiation started for Trek mountain bike.", "event: result", "event: complete"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q", want)
		}
	}
	if strings.Index(body, "event: result") < strings.LastIndex(body, "event: message") {
		t.Error("result event sent before the last message")
	}

	if w := do(t, r, http.MethodPost, "/api/negotiations/stream", `{"listing_ids":["ghost"]}`); w.Code != http.StatusNotFound {
		t.Errorf("missing listing stream = %d, want 404", w.Code)
	}
}

func TestStreamHunt(t *testing.T) {
	r, _ := testRouter(t)
	w := do(t, r, http.MethodPost, "/api/hunts", `{"search_query":"mountain bike","top_n":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("hunt = %d %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{"event: status", "event: products_found", "event: negotiation_complete", "event: best_deal", "event: complete"} {
		if !strings.Contains(body, want) {
			t.Errorf("hunt stream missing %q", want)
		}
	}

	w = do(t, r, http.MethodPost, "/api/hunts", `{"search_query":"kayak"}`)
	if !strings.Contains(w.Body.String(), "No products found") {
		t.Errorf("empty hunt body = %q", w.Body.String())
	}

	if w := do(t, r, http.MethodPost, "/api/hunts", `{"search_query":" "}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank query = %d, want 400", w.Code)
	}
}

func TestHuntWebSocket(t *testing.T) {
	r, _ := testRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/hunts/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"action": "hunt.start", "search_query": "mountain bike"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var types []string
	for {
		var msg wsHuntMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		types = append(types, msg.Type)
	}
	if len(types) == 0 || types[0] != scout.EventStatus || types[len(types)-1] != scout.EventComplete {
		t.Errorf("message types = %v", types)
	}
}

func TestHuntWebSocket_UnsupportedAction(t *testing.T) {
	r, _ := testRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/hunts/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(map[string]any{"action": "hunt.stop"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var msg wsHuntMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "error" || msg.Error != "unsupported action" {
		t.Errorf("message = %+v", msg)
	}
}

func TestCORS(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/negotiations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin %q", got)
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		origins []string
		origin  string
		want    bool
	}{
		{[]string{"http://localhost:3000"}, "http://localhost:3000", true},
		{[]string{"http://localhost:3000/"}, "http://localhost:3000", true},
		{[]string{"http://localhost:3000"}, "http://localhost:4000", false},
		{[]string{"*"}, "https://anything.example", true},
		{nil, "http://localhost:3000", false},
	}
	for _, tt := range tests {
		if got := originAllowed(tt.origins, tt.origin); got != tt.want {
			t.Errorf("originAllowed(%v, %q) = %v, want %v", tt.origins, tt.origin, got, tt.want)
		}
	}
}

func TestStart_RequiresService(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil || !strings.Contains(err.Error(), "service with db is required") {
		t.Errorf("error = %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	if statusFor(listing.ErrNotFound) != http.StatusNotFound {
		t.Error("listing.ErrNotFound should map to 404")
	}
	if statusFor(negotiation.ErrInvalidInput) != http.StatusBadRequest {
		t.Error("ErrInvalidInput should map to 400")
	}
	if statusFor(io.ErrUnexpectedEOF) != http.StatusInternalServerError {
		t.Error("other errors should map to 500")
	}
}
