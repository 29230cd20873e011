package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flatwatch/internal/dedup"
	"flatwatch/internal/model"
	"flatwatch/internal/scheduler"
)

type fakeStore struct {
	stats dedup.Stats
	err   error
}

func (f *fakeStore) Exists(context.Context, string) (bool, error)         { return false, nil }
func (f *fakeStore) Record(context.Context, model.Listing) (bool, error) { return false, nil }
func (f *fakeStore) Purge(context.Context, time.Time) (int64, error)     { return 0, nil }
func (f *fakeStore) Stats(context.Context) (dedup.Stats, error)          { return f.stats, f.err }

type fakeReporter []scheduler.SourceStatus

func (f fakeReporter) Snapshot() []scheduler.SourceStatus { return f }

func TestHandleHealth(t *testing.T) {
	s := New(":0", &fakeStore{}, fakeReporter{})

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "flatwatch" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleStats(t *testing.T) {
	store := &fakeStore{stats: dedup.Stats{Total: 7, Last24h: 2, BySource: map[string]int64{"avito": 7}}}
	reporter := fakeReporter{{SourceID: "avito", State: scheduler.StateIdle, Dispatched: 3}}
	s := New(":0", store, reporter)

	rec := httptest.NewRecorder()
	s.handleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Store   dedup.Stats              `json:"store"`
		Sources []scheduler.SourceStatus `json:"sources"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Store.Total != 7 {
		t.Errorf("store.total = %d, want 7", body.Store.Total)
	}
	if len(body.Sources) != 1 || body.Sources[0].SourceID != "avito" {
		t.Errorf("sources = %+v", body.Sources)
	}
}

func TestHandleStats_StoreDown(t *testing.T) {
	store := &fakeStore{err: &dedup.StorageError{Op: "stats", Err: errors.New("down")}}
	s := New(":0", store, fakeReporter{})

	rec := httptest.NewRecorder()
	s.handleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
