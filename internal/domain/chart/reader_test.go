package chart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/store"
)

// seedChart stores a patient with one record in every section and returns
// the patient id.
func seedChart(mem *store.MemoryStore) string {
	pid := mem.Put(store.Resource{
		"resourceType": "Patient",
		"name":         []interface{}{map[string]interface{}{"given": []interface{}{"Jane"}, "family": "Doe"}},
	})
	subject := map[string]interface{}{"reference": "Patient/" + pid}
	for _, sec := range Sections {
		r := store.Resource{"resourceType": sec.ResourceType}
		if sec.ResourceType == "Appointment" {
			r["participant"] = []interface{}{map[string]interface{}{"actor": subject, "status": "accepted"}}
		} else {
			r[sec.Param] = subject
		}
		mem.Put(r)
	}
	// Another patient's record must not leak into the chart.
	mem.Put(store.Resource{"resourceType": "Observation", "subject": map[string]interface{}{"reference": "Patient/other"}})
	return pid
}

func newTestReader(repo store.Repository, cfg Config) *Reader {
	return NewReader(repo, zerolog.Nop(), nil, cfg)
}

func TestReader_Read(t *testing.T) {
	mem := store.NewMemoryStore()
	pid := seedChart(mem)

	chart, err := newTestReader(mem, Config{ConsoleBaseURL: "https://console.example.com/"}).Read(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chart.Patient.Resource["id"] != pid {
		t.Errorf("expected patient %s, got %v", pid, chart.Patient.Resource["id"])
	}
	for _, sec := range Sections {
		if got := len(chart.Section(sec.Name)); got != 1 {
			t.Errorf("%s: expected 1 entry, got %d", sec.Name, got)
		}
	}
	if len(chart.Degraded) != 0 {
		t.Errorf("expected no degraded sections, got %v", chart.Degraded)
	}
	if chart.Patient.Link == nil || chart.Patient.Link.URL != "https://console.example.com/Patient/"+pid {
		t.Errorf("expected patient link, got %+v", chart.Patient.Link)
	}
	if chart.Patient.Link.Label != "Jane Doe" {
		t.Errorf("expected label Jane Doe, got %q", chart.Patient.Link.Label)
	}
}

func TestReader_PatientNotFound(t *testing.T) {
	mem := store.NewMemoryStore()
	// A failing section proves the fan-out never started.
	mem.FailSearch("Observation", errors.New("must not be queried"))

	_, err := newTestReader(mem, Config{Strict: true}).Read(context.Background(), "missing")
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

type deniedRepo struct {
	*store.MemoryStore
}

func (deniedRepo) Read(context.Context, string, string) (store.Resource, error) {
	return nil, &store.Error{Kind: store.KindAuth, Op: "read", StatusCode: 403}
}

func TestReader_AccessDenied(t *testing.T) {
	_, err := newTestReader(deniedRepo{store.NewMemoryStore()}, Config{}).Read(context.Background(), "p1")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestReader_DegradesFailedSection(t *testing.T) {
	mem := store.NewMemoryStore()
	pid := seedChart(mem)
	mem.FailSearch("Condition", &store.Error{Kind: store.KindUnavailable, Op: "search", StatusCode: 503})

	chart, err := newTestReader(mem, Config{}).Read(context.Background(), pid)
	if err != nil {
		t.Fatalf("expected degraded chart, got error %v", err)
	}
	if len(chart.Conditions) != 0 {
		t.Errorf("expected empty conditions, got %d", len(chart.Conditions))
	}
	if chart.Conditions == nil {
		t.Error("expected an empty, non-nil section")
	}
	if len(chart.Degraded) != 1 || chart.Degraded[0] != "conditions" {
		t.Errorf("expected conditions degraded, got %v", chart.Degraded)
	}
	for _, sec := range Sections {
		if sec.Name == "conditions" {
			continue
		}
		if len(chart.Section(sec.Name)) != 1 {
			t.Errorf("%s: expected populated section", sec.Name)
		}
	}
}

func TestReader_StrictFailsWholeRead(t *testing.T) {
	mem := store.NewMemoryStore()
	pid := seedChart(mem)
	mem.FailSearch("Invoice", &store.Error{Kind: store.KindUnavailable, Op: "search"})

	_, err := newTestReader(mem, Config{Strict: true}).Read(context.Background(), pid)
	var se *SectionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SectionError, got %v", err)
	}
	if se.Section != "invoices" {
		t.Errorf("expected invoices, got %s", se.Section)
	}
}

func TestReader_SectionTimeout(t *testing.T) {
	mem := store.NewMemoryStore()
	pid := seedChart(mem)
	mem.DelaySearch("Media", time.Second)

	chart, err := newTestReader(mem, Config{QueryTimeout: 50 * time.Millisecond}).Read(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chart.Degraded) != 1 || chart.Degraded[0] != "media" {
		t.Errorf("expected media degraded by timeout, got %v", chart.Degraded)
	}
}

// Sections run concurrently: twelve 100ms searches finish well under the
// 1.2s a sequential read would take.
func TestReader_FansOutConcurrently(t *testing.T) {
	mem := store.NewMemoryStore()
	pid := seedChart(mem)
	for _, sec := range Sections {
		mem.DelaySearch(sec.ResourceType, 100*time.Millisecond)
	}

	start := time.Now()
	if _, err := newTestReader(mem, Config{}).Read(context.Background(), pid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 600*time.Millisecond {
		t.Errorf("expected concurrent fan-out, took %v", elapsed)
	}
}

func TestChart_WithoutLinks(t *testing.T) {
	mem := store.NewMemoryStore()
	pid := seedChart(mem)
	chart, err := newTestReader(mem, Config{}).Read(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plain := chart.WithoutLinks()
	if plain.Patient.Link != nil || plain.Observations[0].Link != nil {
		t.Error("expected links removed")
	}
	if chart.Observations[0].Link == nil {
		t.Error("expected original chart untouched")
	}
}
