package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/encoding/json"
	"github.com/gin-gonic/gin"
)

type echoReq struct {
	Name string `json:"name" binding:"required"`
}

func TestHealthHandler(t *testing.T) {
	core.AddHealthIndicator(core.HealthIndicator{Name: "always-up", CheckHealth: func(rail core.Rail) bool { return true }})
	engine := NewEngine(core.EmptyRail())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"UP"`) {
		t.Fatalf("unexpected body %v", w.Body.String())
	}

	core.AddHealthIndicator(core.HealthIndicator{Name: "always-down", CheckHealth: func(rail core.Rail) bool { return false }})
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestMappedRouteHandler(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(TraceMiddleware())
	engine.POST("/echo", NewMappedTRouteHandler(func(c *gin.Context, rail core.Rail, req echoReq) (any, error) {
		if req.Name == "missing" {
			return nil, core.ErrNotFound.WithInternalMsg("no such name")
		}
		if req.Name == "boom" {
			return nil, errors.New("boom")
		}
		return req, nil
	}))

	cases := []struct {
		body string
		code int
	}{
		{`{"name":"ana"}`, http.StatusOK},
		{`{}`, http.StatusBadRequest},
		{`{"name":"missing"}`, http.StatusNotFound},
		{`{"name":"boom"}`, http.StatusInternalServerError},
	}
	for _, cs := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(cs.body))
		r.Header.Set("Content-Type", applicationJson)
		r.Header.Set(core.XTraceId, "trace-1")
		engine.ServeHTTP(w, r)
		if w.Code != cs.code {
			t.Fatalf("%v: expected %d, got %d, %v", cs.body, cs.code, w.Code, w.Body.String())
		}
		if w.Header().Get(core.XTraceId) != "trace-1" {
			t.Fatalf("trace not propagated, %v", w.Header())
		}
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"name":"ana"}`))
	r.Header.Set("Content-Type", applicationJson)
	engine.ServeHTTP(w, r)
	resp, err := json.ParseJsonAs[GnResp[echoReq]](w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error || resp.Data.Name != "ana" {
		t.Fatalf("unexpected resp %+v", resp)
	}
}
