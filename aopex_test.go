package aopex

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/toxindex/aopex/extract"
	"github.com/toxindex/aopex/llm"
	"github.com/toxindex/aopex/parser"
	"github.com/toxindex/aopex/store"
)

// fakeChat returns canned responses in order and records call count.
type fakeChat struct {
	responses []string
	calls     int
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if f.calls >= len(f.responses) {
		return &llm.ChatResponse{Content: "{}"}, nil
	}
	content := f.responses[f.calls]
	f.calls++
	return &llm.ChatResponse{Content: content}, nil
}

func newTestEngine(t *testing.T, chat llm.Provider) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DisableCache = true
	cfg.SourcePrefix = "OPENALEX"
	cfg.MaxDocChars = 500000
	return &Engine{
		cfg:     cfg,
		chat:    chat,
		parsers: parser.NewRegistry(),
		extractor: extract.New(chat, extract.Config{
			MaxAttempts: 1,
			JitterMin:   time.Nanosecond,
			JitterMax:   time.Nanosecond,
		}),
	}
}

func newTestEngineWithStore(t *testing.T, chat llm.Provider) *Engine {
	t.Helper()
	e := newTestEngine(t, chat)
	s, err := store.New(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	e.cfg.DisableCache = false
	e.store = s
	return e
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestProcessDocumentEmpty(t *testing.T) {
	chat := &fakeChat{}
	e := newTestEngine(t, chat)

	path := writeDoc(t, "empty.txt", "   \n\t ")
	res := e.ProcessDocument(context.Background(), path, "dioxin")

	if !res.Failed() {
		t.Fatal("expected failure for empty document")
	}
	if res.Error != ErrorKindEmptyPDF {
		t.Errorf("error = %q, want %q", res.Error, ErrorKindEmptyPDF)
	}
	if res.PMID != "empty" {
		t.Errorf("pmid = %q, want file stem", res.PMID)
	}
	if chat.calls != 0 {
		t.Errorf("LLM called %d times for empty document, want 0", chat.calls)
	}
}

func TestProcessDocumentNoEvents(t *testing.T) {
	chat := &fakeChat{responses: []string{`{"events": []}`}}
	e := newTestEngine(t, chat)

	path := writeDoc(t, "paper.txt", "Some toxicology text.")
	res := e.ProcessDocument(context.Background(), path, "dioxin")

	if res.Error != ErrorKindNoEvents {
		t.Errorf("error = %q, want %q", res.Error, ErrorKindNoEvents)
	}
	if res.Message != "" {
		t.Errorf("message = %q, want empty for expected failure", res.Message)
	}
}

func TestProcessDocumentNoRelationshipsContainer(t *testing.T) {
	chat := &fakeChat{responses: []string{
		`{"events": [{"id": "e1", "name": "Activation of AhR", "description": "d", "event_type": "MIE", "biological_level": "molecular"}]}`,
		`{"something_else": true}`,
	}}
	e := newTestEngine(t, chat)

	path := writeDoc(t, "paper.txt", "Some toxicology text.")
	res := e.ProcessDocument(context.Background(), path, "dioxin")

	if res.Error != ErrorKindNoRelationships {
		t.Errorf("error = %q, want %q", res.Error, ErrorKindNoRelationships)
	}
}

func TestProcessDocumentUnsupportedFormat(t *testing.T) {
	chat := &fakeChat{}
	e := newTestEngine(t, chat)

	path := writeDoc(t, "paper.docx", "text")
	res := e.ProcessDocument(context.Background(), path, "dioxin")

	if !res.Failed() {
		t.Fatal("expected failure for unsupported format")
	}
	if res.Error != "UnsupportedFormat" {
		t.Errorf("error = %q, want UnsupportedFormat", res.Error)
	}
	if res.Message == "" {
		t.Error("message empty for unexpected failure")
	}
}

func TestProcessDocumentFullPipeline(t *testing.T) {
	// Event ids are reassigned to UUIDs before relationship extraction,
	// so the fake peeks at the extraction request to echo them back.
	chat := &echoingChat{t: t}
	e := newTestEngine(t, chat)

	path := writeDoc(t, "W123.txt", "Dioxin activates AhR which reduces fertility.")
	res := e.ProcessDocument(context.Background(), path, "dioxin")

	if res.Failed() {
		t.Fatalf("pipeline failed: %s %s", res.Error, res.Message)
	}
	if len(res.KeyEvents) != 2 {
		t.Fatalf("key events = %d, want 2", len(res.KeyEvents))
	}
	for _, ev := range res.KeyEvents {
		if ev.Reference != "W123" || ev.PMID != "W123" {
			t.Errorf("event provenance = %s/%s, want W123", ev.Reference, ev.PMID)
		}
		if ev.ID == "" {
			t.Error("event id not assigned")
		}
	}
	if len(res.Relationships) != 1 {
		t.Fatalf("relationships = %d, want 1", len(res.Relationships))
	}
	rel := res.Relationships[0]
	if rel.EvidenceStrength != 0.9 {
		t.Errorf("strength = %v, want 0.9", rel.EvidenceStrength)
	}
	if rel.PMID != "W123" {
		t.Errorf("relationship pmid = %q, want W123", rel.PMID)
	}
	if len(res.Evidence) != 1 {
		t.Fatalf("evidence = %d, want 1", len(res.Evidence))
	}
	if res.Evidence[0].SourceID != "OPENALEX:W123" {
		t.Errorf("source id = %q", res.Evidence[0].SourceID)
	}
}

// echoingChat plays the three pipeline stages: it extracts two events,
// then reads the assigned event ids out of the relationship prompt to
// propose one edge between them, then scores it.
type echoingChat struct {
	t     *testing.T
	stage int
	ids   []string
}

func (f *echoingChat) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.stage++
	switch f.stage {
	case 1:
		return &llm.ChatResponse{Content: `{"events": [
			{"id": "e1", "name": "Activation of AhR", "description": "d", "event_type": "MIE", "biological_level": "molecular"},
			{"id": "e2", "name": "Reduced fertility", "description": "d", "event_type": "AO", "biological_level": "organism"}
		]}`}, nil
	case 2:
		f.ids = extractIDs(f.t, req.Messages[len(req.Messages)-1].Content)
		if len(f.ids) != 2 {
			f.t.Fatalf("expected 2 event ids in prompt, got %v", f.ids)
		}
		edge, _ := json.Marshal(map[string]any{
			"relationships": []map[string]string{
				{"source_event_id": f.ids[0], "target_event_id": f.ids[1]},
			},
		})
		return &llm.ChatResponse{Content: string(edge)}, nil
	default:
		return &llm.ChatResponse{Content: `{"strength_score": 0.9, "justification": "direct evidence"}`}, nil
	}
}

// extractIDs pulls the event ids out of the JSON embedded in a prompt.
func extractIDs(t *testing.T, prompt string) []string {
	t.Helper()
	start := -1
	depth := 0
	for i, r := range prompt {
		if r == '[' {
			if depth == 0 {
				start = i
			}
			depth++
		}
		if r == ']' {
			depth--
			if depth == 0 && start >= 0 {
				var events []struct {
					ID string `json:"id"`
				}
				if err := json.Unmarshal([]byte(prompt[start:i+1]), &events); err != nil {
					start = -1
					continue
				}
				ids := make([]string, len(events))
				for j, e := range events {
					ids[j] = e.ID
				}
				return ids
			}
		}
	}
	t.Fatal("no event JSON array found in prompt")
	return nil
}

func TestProcessDocumentRecordsFailureStatus(t *testing.T) {
	chat := &fakeChat{}
	e := newTestEngineWithStore(t, chat)

	path := writeDoc(t, "empty.txt", "  ")
	res := e.ProcessDocument(context.Background(), path, "dioxin")
	if res.Error != ErrorKindEmptyPDF {
		t.Fatalf("error = %q, want %q", res.Error, ErrorKindEmptyPDF)
	}

	doc, err := e.Store().GetDocumentByPath(context.Background(), res.Path)
	if err != nil {
		t.Fatalf("GetDocumentByPath: %v", err)
	}
	if doc.Status != store.StatusFailed {
		t.Errorf("status = %q, want %q", doc.Status, store.StatusFailed)
	}

	docs, err := e.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("documents = %d, want 1", len(docs))
	}
}

func TestProcessDocumentCachesSuccess(t *testing.T) {
	e := newTestEngineWithStore(t, &echoingChat{t: t})
	ctx := context.Background()

	path := writeDoc(t, "W123.txt", "Dioxin activates AhR which reduces fertility.")
	first := e.ProcessDocument(ctx, path, "dioxin")
	if first.Failed() {
		t.Fatalf("first run failed: %s %s", first.Error, first.Message)
	}

	doc, err := e.Store().GetDocumentByPath(ctx, first.Path)
	if err != nil {
		t.Fatalf("GetDocumentByPath: %v", err)
	}
	if doc.Status != store.StatusProcessed {
		t.Errorf("status = %q, want %q", doc.Status, store.StatusProcessed)
	}

	// A second run must come from the cache: the replacement provider
	// would fail the pipeline if consulted.
	broken := &fakeChat{}
	e.extractor = extract.New(broken, extract.Config{
		MaxAttempts: 1,
		JitterMin:   time.Nanosecond,
		JitterMax:   time.Nanosecond,
	})
	second := e.ProcessDocument(ctx, path, "dioxin")
	if second.Failed() {
		t.Fatalf("second run failed: %s %s", second.Error, second.Message)
	}
	if broken.calls != 0 {
		t.Errorf("LLM called %d times on cached run, want 0", broken.calls)
	}
	if len(second.KeyEvents) != len(first.KeyEvents) {
		t.Errorf("cached key events = %d, want %d", len(second.KeyEvents), len(first.KeyEvents))
	}
}

func TestCapRunes(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{strings.Repeat("酸", 5), 3, strings.Repeat("酸", 3)},
	}
	for _, c := range cases {
		got := capRunes(c.in, c.n)
		if got != c.want {
			t.Errorf("capRunes(%q, %d) = %q, want %q", c.in, c.n, got, c.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("capRunes(%q, %d) produced invalid UTF-8", c.in, c.n)
		}
	}
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"/docs/W123.pdf": "W123",
		"paper.txt":      "paper",
		"noext":          "noext",
	}
	for in, want := range cases {
		if got := stem(in); got != want {
			t.Errorf("stem(%q) = %q, want %q", in, got, want)
		}
	}
}
