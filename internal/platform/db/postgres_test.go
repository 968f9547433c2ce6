package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ehr/intake/internal/platform/fhir"
	"github.com/ehr/intake/internal/platform/store"
)

// TestPGStore_Integration needs a disposable database in TEST_DATABASE_URL.
func TestPGStore_Integration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, url, 4, 1)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	m := NewMigrator(pool, Migrations())
	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if n, err := m.Up(ctx); err != nil || n != 0 {
		t.Fatalf("expected second run to apply nothing, got %d (%v)", n, err)
	}

	b := fhir.NewTransactionBundle(time.Now())
	if err := b.AddCreate("urn:uuid:p1", "Patient", map[string]interface{}{"resourceType": "Patient"}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddCreate("urn:uuid:o1", "Observation", map[string]interface{}{
		"resourceType": "Observation",
		"status":       "final",
		"subject":      map[string]interface{}{"reference": "urn:uuid:p1"},
	}); err != nil {
		t.Fatal(err)
	}

	s := store.NewPGStore(pool)
	res, err := s.WriteTransaction(ctx, b)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(res.Locations) != 2 {
		t.Fatalf("expected 2 locations, got %v", res.Locations)
	}
	_, patientID, _ := fhir.ParseReference(res.Locations[0])

	if _, err := s.Read(ctx, "Patient", patientID); err != nil {
		t.Errorf("read patient: %v", err)
	}
	obs, err := s.Search(ctx, "Observation", store.SearchQuery{Subject: "Patient/" + patientID, Limit: 10})
	if err != nil || len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d (%v)", len(obs), err)
	}
	subject, _ := obs[0]["subject"].(map[string]interface{})
	if subject["reference"] != "Patient/"+patientID {
		t.Errorf("expected rewritten subject reference, got %v", subject["reference"])
	}
	if _, err := s.Read(ctx, "Patient", "missing"); store.KindOf(err) != store.KindNotFound {
		t.Errorf("expected not-found, got %v", err)
	}
}
