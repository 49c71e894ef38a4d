package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/card-etl/internal/domain"
	"github.com/dvloznov/card-etl/internal/jobs"
	"github.com/dvloznov/card-etl/internal/jobs/inmemory"
	"github.com/dvloznov/card-etl/internal/store/sqlite"
)

func seededStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	txs := []*domain.Transaction{
		{
			TransNum: "t1", TransTime: time.Date(2019, 1, 1, 14, 30, 5, 0, time.UTC),
			Gender: "F", City: "Houston", State: "TX", StateName: "Texas",
			Lat: 29.76, Long: -95.36, CityPop: 2300000,
			Merchant: "fraud_Kirlin and Sons", Category: "personal_care",
			Amt: 4.97, MerchLat: 29.80, MerchLong: -95.40,
			Year: 2019, Month: 1, Day: 1, Hour: "02:30:05 PM",
		},
		{
			TransNum: "t2", TransTime: time.Date(2019, 2, 10, 9, 15, 0, 0, time.UTC),
			Gender: "M", City: "Seattle", State: "WA", StateName: "Washington",
			Lat: 47.60, Long: -122.33, CityPop: 750000,
			Merchant: "fraud_Sporer-Keebler", Category: "grocery_pos",
			Amt: 120.50, MerchLat: 47.61, MerchLong: -122.34,
			Year: 2019, Month: 2, Day: 10, Hour: "09:15:00 AM",
		},
	}
	if err := store.ReplaceAll(context.Background(), txs); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}
	return store
}

func TestSummaryHandler_Summary(t *testing.T) {
	h := NewSummaryHandler(seededStore(t), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body sqlite.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Transactions != 2 {
		t.Errorf("Expected 2 transactions, got %d", body.Transactions)
	}
}

func TestSummaryHandler_ByGender(t *testing.T) {
	h := NewSummaryHandler(seededStore(t), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ByGender(rec, httptest.NewRequest(http.MethodGet, "/api/summary/gender", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Genders []sqlite.GenderSummary `json:"genders"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(body.Genders) != 2 {
		t.Errorf("Expected 2 gender buckets, got %d", len(body.Genders))
	}
}

func TestSummaryHandler_ByStateWithLimit(t *testing.T) {
	h := NewSummaryHandler(seededStore(t), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ByState(rec, httptest.NewRequest(http.MethodGet, "/api/summary/states?limit=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		States []sqlite.StateSummary `json:"states"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(body.States) != 1 {
		t.Fatalf("Expected 1 state, got %d", len(body.States))
	}
	if body.States[0].StateName != "Washington" {
		t.Errorf("Expected top state Washington, got %s", body.States[0].StateName)
	}
}

func TestSummaryHandler_Transactions(t *testing.T) {
	h := NewSummaryHandler(seededStore(t), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Transactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions?limit=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("Expected 1 transaction with limit, got %d", body.Count)
	}
}

// failingPublisher rejects every publish, for the error path.
type failingPublisher struct{}

func (failingPublisher) PublishCleanDataset(ctx context.Context, job *jobs.CleanDatasetJob) error {
	return errors.New("queue full")
}
func (failingPublisher) Close() error { return nil }

func TestRunsHandler_Create(t *testing.T) {
	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(10, jobStore)
	defer queue.Close()

	h := NewRunsHandler(queue, jobStore, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"source":"data.csv"}`))
	h.Create(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var body jobs.CleanDatasetJob
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.JobID == "" {
		t.Error("Expected job ID in response")
	}
	if body.Status != jobs.JobStatusPending {
		t.Errorf("Expected pending status, got %s", body.Status)
	}
}

func TestRunsHandler_CreateValidation(t *testing.T) {
	h := NewRunsHandler(failingPublisher{}, inmemory.NewStore(), zerolog.Nop())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing source", `{}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
		{"publish failure", `{"source":"data.csv"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(tt.body))
			h.Create(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRunsHandler_Get(t *testing.T) {
	jobStore := inmemory.NewStore()
	if err := jobStore.SaveJob(context.Background(), &jobs.CleanDatasetJob{
		JobID:  "run-1",
		Source: "data.csv",
		Status: jobs.JobStatusCompleted,
	}); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	h := NewRunsHandler(failingPublisher{}, jobStore, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body jobs.CleanDatasetJob
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.JobID != "run-1" || body.Status != jobs.JobStatusCompleted {
		t.Errorf("Unexpected job: %+v", body)
	}
}

func TestRunsHandler_GetNotFound(t *testing.T) {
	h := NewRunsHandler(failingPublisher{}, inmemory.NewStore(), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Unexpected status: %v", body)
	}
}
