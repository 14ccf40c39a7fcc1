package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResultRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"key_events":[],"relationships":[],"evidence":[]}`)
	if err := s.SaveResult(ctx, "/docs/paper1.pdf", "hash-a", "dioxin", payload); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := s.GetResult(ctx, "/docs/paper1.pdf", "hash-a", "dioxin")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("payload = %s, want %s", got, payload)
	}
}

func TestResultMissOnHashChange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, "/docs/paper1.pdf", "hash-a", "dioxin", []byte("{}")); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := s.GetResult(ctx, "/docs/paper1.pdf", "hash-b", "dioxin")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got != nil {
		t.Errorf("stale hash returned payload %s, want miss", got)
	}
}

func TestResultMissOnTopicChange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, "/docs/paper1.pdf", "hash-a", "dioxin", []byte("{}")); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := s.GetResult(ctx, "/docs/paper1.pdf", "hash-a", "cadmium")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got != nil {
		t.Errorf("different topic returned payload %s, want miss", got)
	}
}

func TestSaveResultKeepsDocumentsIsolated(t *testing.T) {
	// Re-saving a changed document must resolve its own row id, not the
	// connection's last inserted row, so other documents' payloads
	// survive untouched.
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, "/docs/A.pdf", "hash-a1", "dioxin", []byte("payload-A1")); err != nil {
		t.Fatalf("SaveResult A: %v", err)
	}
	if err := s.SaveResult(ctx, "/docs/B.pdf", "hash-b", "dioxin", []byte("payload-B")); err != nil {
		t.Fatalf("SaveResult B: %v", err)
	}
	if err := s.SaveResult(ctx, "/docs/A.pdf", "hash-a2", "dioxin", []byte("payload-A2")); err != nil {
		t.Fatalf("SaveResult A update: %v", err)
	}

	gotB, err := s.GetResult(ctx, "/docs/B.pdf", "hash-b", "dioxin")
	if err != nil {
		t.Fatalf("GetResult B: %v", err)
	}
	if string(gotB) != "payload-B" {
		t.Errorf("doc B payload = %q, want payload-B", gotB)
	}

	gotA, err := s.GetResult(ctx, "/docs/A.pdf", "hash-a2", "dioxin")
	if err != nil {
		t.Fatalf("GetResult A: %v", err)
	}
	if string(gotA) != "payload-A2" {
		t.Errorf("doc A payload = %q, want payload-A2", gotA)
	}

	if stale, _ := s.GetResult(ctx, "/docs/A.pdf", "hash-a1", "dioxin"); stale != nil {
		t.Errorf("stale hash returned payload %q, want miss", stale)
	}

	doc, err := s.GetDocumentByPath(ctx, "/docs/B.pdf")
	if err != nil {
		t.Fatalf("GetDocumentByPath: %v", err)
	}
	if doc.ContentHash != "hash-b" || doc.Status != StatusProcessed {
		t.Errorf("doc B = %s/%s, want hash-b/%s", doc.ContentHash, doc.Status, StatusProcessed)
	}
}

func TestUpsertDocumentStableID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	idA, err := s.UpsertDocument(ctx, Document{Path: "/docs/A.pdf", Filename: "A.pdf", ContentHash: "h1", Status: StatusProcessed})
	if err != nil {
		t.Fatalf("UpsertDocument A: %v", err)
	}
	idB, err := s.UpsertDocument(ctx, Document{Path: "/docs/B.pdf", Filename: "B.pdf", ContentHash: "h2", Status: StatusProcessed})
	if err != nil {
		t.Fatalf("UpsertDocument B: %v", err)
	}
	if idA == idB {
		t.Fatalf("distinct documents share id %d", idA)
	}

	again, err := s.UpsertDocument(ctx, Document{Path: "/docs/A.pdf", Filename: "A.pdf", ContentHash: "h3", Status: StatusFailed})
	if err != nil {
		t.Fatalf("UpsertDocument A update: %v", err)
	}
	if again != idA {
		t.Errorf("updated document id = %d, want %d", again, idA)
	}
}

func TestSaveResultReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, "/docs/paper1.pdf", "hash-a", "dioxin", []byte("old")); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := s.SaveResult(ctx, "/docs/paper1.pdf", "hash-b", "dioxin", []byte("new")); err != nil {
		t.Fatalf("SaveResult replace: %v", err)
	}

	got, err := s.GetResult(ctx, "/docs/paper1.pdf", "hash-b", "dioxin")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("payload = %s, want new", got)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("documents = %d, want 1", len(docs))
	}
	if docs[0].ContentHash != "hash-b" {
		t.Errorf("content hash = %s, want hash-b", docs[0].ContentHash)
	}
}
