package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/jobsheet/internal/domain/project"
	"github.com/geocoder89/jobsheet/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type bindErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			JSON   string                `json:"json"`
			Field  string                `json:"field"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func bindRouter() *gin.Engine {
	r := gin.New()
	r.POST("/projects", func(ctx *gin.Context) {
		var req project.CreateRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})
	return r
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := `{"name":"Alpha","owner":"Rossi","jam_sent":"01/05/2024"}`
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	bindRouter().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}

	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}

	wantRules := map[string]string{
		"owner":    "oneof",
		"jam_sent": "datetime",
	}

	found := map[string]handlers.FieldError{}
	for _, fieldErr := range resp.Error.Details.Fields {
		found[fieldErr.Field] = fieldErr
	}

	for field, rule := range wantRules {
		fieldErr, ok := found[field]
		if !ok {
			t.Fatalf("missing field error for %q: %+v", field, resp.Error.Details.Fields)
		}
		if fieldErr.Rule != rule {
			t.Fatalf("field %q rule mismatch: got %q want %q", field, fieldErr.Rule, rule)
		}
		if fieldErr.Message == "" {
			t.Fatalf("field %q should include a non-empty message", field)
		}
	}
}

func TestBindJSON_TypeMismatchUsesJSONFieldNames(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := `{"name":"Alpha","year":"ten"}`
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	bindRouter().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}

	if resp.Error.Details.JSON != "invalid_json_type" {
		t.Fatalf("expected invalid_json_type, got %q", resp.Error.Details.JSON)
	}
	if resp.Error.Details.Field != "year" {
		t.Fatalf("expected detail field to be year, got %q", resp.Error.Details.Field)
	}
	if len(resp.Error.Details.Fields) == 0 || resp.Error.Details.Fields[0].Rule != "type" {
		t.Fatalf("expected a type field error, got %+v", resp.Error.Details.Fields)
	}
}

func TestBindJSON_SyntaxError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString(`{"name":`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	bindRouter().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
}

func TestBindJSON_MessageNamesFirstField(t *testing.T) {
	gin.SetMode(gin.TestMode)

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString(`{"owner":"Rossi"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	bindRouter().ServeHTTP(w, req)

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error.Message != "owner must be one of Piaser, Lazzarin, Reato, Mattiuzzo, Saccon, Savio" {
		t.Fatalf("unexpected message %q", resp.Error.Message)
	}
}

func TestBindJSON_EmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	req := httptest.NewRequest(http.MethodPost, "/projects", http.NoBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	bindRouter().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("empty_body")) {
		t.Fatalf("expected empty_body detail, got %s", w.Body.String())
	}
}
