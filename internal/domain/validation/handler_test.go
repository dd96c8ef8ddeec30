package validation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dermview/dermview/internal/platform/auth"
)

func newTestServer(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc := newTestService(newMockRepo(), &mockPublisher{})
	e := echo.New()
	api := e.Group("/api/v1", auth.DevAuthMiddleware())
	NewHandler(svc).RegisterRoutes(api)
	return e, svc
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func submitViaAPI(t *testing.T, e *echo.Echo) ValidationRecord {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/api/v1/validations",
		`{"subject_id":"subj-1","owner_id":"own-1","ai_result":{"melanoma":0.87}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var out ValidationRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	return out
}

func TestSubmitEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	out := submitViaAPI(t, e)
	if out.Status != StatusPending {
		t.Errorf("expected pending, got %q", out.Status)
	}
	if out.SubjectID != "subj-1" {
		t.Errorf("unexpected subject %q", out.SubjectID)
	}
}

func TestSubmitEndpoint_BadInput(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/validations", `{"owner_id":"own-1","ai_result":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestReviewEndpoint(t *testing.T) {
	e, _ := newTestServer(t)
	created := submitViaAPI(t, e)

	path := fmt.Sprintf("/api/v1/validations/%s/review?userId=rev-1&role=reviewer", created.ID)
	rec := doJSON(e, http.MethodPost, path,
		`{"decision":"approved","expert_result":{"melanoma":0.9},"comments":"confirmed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var out ValidationRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusApproved {
		t.Errorf("expected approved, got %q", out.Status)
	}
	if out.ReviewerID == nil || *out.ReviewerID != "rev-1" {
		t.Error("expected reviewer identity taken from auth")
	}
}

func TestReviewEndpoint_OwnerForbidden(t *testing.T) {
	e, _ := newTestServer(t)
	created := submitViaAPI(t, e)

	path := fmt.Sprintf("/api/v1/validations/%s/review?userId=own-1&role=owner", created.ID)
	rec := doJSON(e, http.MethodPost, path, `{"decision":"rejected"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for owner role, got %d", rec.Code)
	}
}

func TestReviewEndpoint_ErrorMapping(t *testing.T) {
	e, _ := newTestServer(t)
	created := submitViaAPI(t, e)
	base := fmt.Sprintf("/api/v1/validations/%s/review?userId=rev-1&role=reviewer", created.ID)

	// Missing expert result for approve.
	rec := doJSON(e, http.MethodPost, base, `{"decision":"approved"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}

	// Unknown decision.
	rec = doJSON(e, http.MethodPost, base, `{"decision":"escalated"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	// Unknown record.
	rec = doJSON(e, http.MethodPost,
		"/api/v1/validations/00000000-0000-0000-0000-000000000001/review?userId=rev-1&role=reviewer",
		`{"decision":"rejected"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	// Malformed id.
	rec = doJSON(e, http.MethodPost, "/api/v1/validations/not-a-uuid/review?userId=rev-1&role=reviewer",
		`{"decision":"rejected"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", rec.Code)
	}

	// Second review of the same record.
	rec = doJSON(e, http.MethodPost, base, `{"decision":"rejected"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first decision: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	rec = doJSON(e, http.MethodPost, base, `{"decision":"rejected"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for re-review, got %d", rec.Code)
	}
}

func TestGetEndpoint(t *testing.T) {
	e, _ := newTestServer(t)
	created := submitViaAPI(t, e)

	rec := doJSON(e, http.MethodGet, "/api/v1/validations/"+created.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/validations/00000000-0000-0000-0000-000000000001", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListEndpoint(t *testing.T) {
	e, _ := newTestServer(t)
	submitViaAPI(t, e)

	rec := doJSON(e, http.MethodGet, "/api/v1/validations?status=pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pending list: expected 200, got %d", rec.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 pending record, got %d", resp.Total)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/validations?owner_id=own-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("owner list: expected 200, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/validations", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without filter, got %d", rec.Code)
	}
}
