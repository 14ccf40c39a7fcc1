// Package aopex extracts adverse outcome pathways from scientific
// documents. A document is parsed to text, an LLM extracts key events
// and candidate relationships, each surviving relationship is scored
// for evidence strength, and the validated graph is returned with
// evidence provenance records.
package aopex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/toxindex/aopex/aop"
	"github.com/toxindex/aopex/extract"
	"github.com/toxindex/aopex/graph"
	"github.com/toxindex/aopex/llm"
	"github.com/toxindex/aopex/parser"
	"github.com/toxindex/aopex/report"
	"github.com/toxindex/aopex/store"
)

// Result is the outcome of processing one document. A failed run
// carries Error (a short failure kind) and optionally Message instead
// of graph data.
type Result struct {
	Path          string               `json:"path"`
	PMID          string               `json:"pmid"`
	KeyEvents     []aop.KeyEvent       `json:"key_events,omitempty"`
	Relationships []aop.Relationship   `json:"relationships,omitempty"`
	Evidence      []aop.EvidenceRecord `json:"evidence,omitempty"`
	Error         string               `json:"error,omitempty"`
	Message       string               `json:"message,omitempty"`
}

// Failed reports whether processing ended in an error.
func (r *Result) Failed() bool { return r.Error != "" }

// Failure kinds reported in Result.Error. Anything else is the Go
// error kind of an unexpected failure.
const (
	ErrorKindEmptyPDF        = "Empty PDF"
	ErrorKindNoEvents        = "No events"
	ErrorKindNoRelationships = "No relationships"
)

// Engine is the main entry point for the extraction pipeline.
type Engine struct {
	cfg       Config
	chat      llm.Provider
	parsers   *parser.Registry
	extractor *extract.Extractor
	store     *store.Store
}

// New creates an engine with the given configuration. The result
// cache is opened unless DisableCache is set.
func New(cfg Config) (*Engine, error) {
	if cfg.MaxDocChars <= 0 {
		cfg.MaxDocChars = 500000
	}
	if cfg.SourcePrefix == "" {
		cfg.SourcePrefix = "OPENALEX"
	}

	chat, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	var s *store.Store
	if !cfg.DisableCache {
		s, err = store.New(cfg.resolveDBPath())
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
	}

	extractor := extract.New(chat, extract.Config{
		MaxAttempts: cfg.MaxAttempts,
		JitterMin:   cfg.JitterMin,
		JitterMax:   cfg.JitterMax,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})

	return &Engine{
		cfg:       cfg,
		chat:      chat,
		parsers:   parser.NewRegistry(),
		extractor: extractor,
		store:     s,
	}, nil
}

// Close cleanly shuts down the engine.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Store returns the underlying result cache, or nil when caching is
// disabled.
func (e *Engine) Store() *store.Store {
	return e.store
}

// TopicFromQuery asks the LLM to condense a free-form user query into
// a short topic phrase for the extraction prompts.
func (e *Engine) TopicFromQuery(ctx context.Context, query string) (string, error) {
	topic, err := e.extractor.Topic(ctx, query)
	if err != nil {
		return "", fmt.Errorf("deriving topic: %w", err)
	}
	return topic, nil
}

// GenerateReport renders a markdown report for a successful result.
func (e *Engine) GenerateReport(res *Result, topic string) string {
	return report.Generate(res.KeyEvents, res.Relationships, res.Evidence, topic)
}

// ProcessDocument runs the full pipeline on one document. It never
// returns a Go error: failures are reported in Result.Error so a batch
// over many documents records per-document outcomes and keeps going.
func (e *Engine) ProcessDocument(ctx context.Context, path, topic string) *Result {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	workID := stem(absPath)
	res := &Result{Path: absPath, PMID: workID}

	log := slog.With("work_id", workID)

	hash := ""
	if e.store != nil {
		hash, err = fileHash(absPath)
		if err == nil {
			if cached := e.cachedResult(ctx, absPath, hash, topic); cached != nil {
				log.Info("cache hit")
				return cached
			}
		}
	}

	// Record failed runs in the document registry so ListDocuments
	// shows which inputs need attention.
	defer func() {
		if e.store == nil || hash == "" || !res.Failed() {
			return
		}
		e.recordFailure(ctx, absPath, hash, log)
	}()

	docText, err := e.readDocumentText(ctx, absPath)
	if err != nil {
		return res.fail(log, err)
	}
	if strings.TrimSpace(docText) == "" {
		log.Warn("empty document")
		res.Error = ErrorKindEmptyPDF
		return res
	}

	events, err := e.extractor.ExtractEvents(ctx, docText, topic)
	if err != nil {
		return res.fail(log, err)
	}
	if len(events) == 0 {
		log.Warn("no events extracted")
		res.Error = ErrorKindNoEvents
		return res
	}

	// Assign stable ids and provenance before relationship extraction
	// so the candidate edges reference these ids.
	for i := range events {
		events[i].ID = uuid.NewString()
		events[i].Reference = workID
		events[i].PMID = workID
	}
	log.Info("extracted events", "count", len(events))

	candidates, err := e.extractor.ExtractRelationships(ctx, docText, events)
	if err != nil {
		if errors.Is(err, extract.ErrNoRelationshipContainer) {
			log.Warn("no relationships extracted")
			res.Error = ErrorKindNoRelationships
			return res
		}
		return res.fail(log, err)
	}
	log.Info("extracted relationships", "count", len(candidates))

	assembler := graph.NewAssembler(workID, workID, e.cfg.SourcePrefix,
		func(ctx context.Context, source, target *aop.KeyEvent) (aop.RelationshipStrength, error) {
			return e.extractor.ScoreRelationship(ctx, docText, source, target)
		})
	assembly, err := assembler.Assemble(ctx, events, candidates)
	if err != nil {
		return res.fail(log, err)
	}

	res.KeyEvents = assembly.KeyEvents
	res.Relationships = assembly.Relationships
	res.Evidence = assembly.Evidence
	log.Info("success",
		"events", len(res.KeyEvents),
		"relationships", len(res.Relationships),
		"invalid_transitions", assembly.InvalidTransitions)

	if e.store != nil && hash != "" {
		e.cacheResult(ctx, absPath, hash, topic, res, log)
	}
	return res
}

// ListDocuments returns all cached documents. Returns nil when caching
// is disabled.
func (e *Engine) ListDocuments(ctx context.Context) ([]store.Document, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.ListDocuments(ctx)
}

func (e *Engine) cachedResult(ctx context.Context, path, hash, topic string) *Result {
	payload, err := e.store.GetResult(ctx, path, hash, topic)
	if err != nil || payload == nil {
		return nil
	}
	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil
	}
	return &res
}

func (e *Engine) recordFailure(ctx context.Context, path, hash string, log *slog.Logger) {
	_, err := e.store.UpsertDocument(ctx, store.Document{
		Path:        path,
		Filename:    filepath.Base(path),
		ContentHash: hash,
		Status:      store.StatusFailed,
	})
	if err != nil {
		log.Warn("recording failure status", "error", err)
	}
}

func (e *Engine) cacheResult(ctx context.Context, path, hash, topic string, res *Result, log *slog.Logger) {
	payload, err := json.Marshal(res)
	if err != nil {
		log.Warn("marshaling result for cache", "error", err)
		return
	}
	if err := e.store.SaveResult(ctx, path, hash, topic, payload); err != nil {
		log.Warn("caching result", "error", err)
	}
}

// readDocumentText parses the document and joins its pages, capped at
// MaxDocChars.
func (e *Engine) readDocumentText(ctx context.Context, path string) (string, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	p, err := e.parsers.Get(format)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	parsed, err := p.Parse(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrParsingFailed, path, err)
	}

	return capRunes(strings.Join(parsed.Pages, "\n\n"), e.cfg.MaxDocChars), nil
}

// capRunes limits s to n characters, not bytes, so the cap cannot cut a
// multibyte rune in half.
func capRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// fail records an unexpected error on the result as its kind plus a
// message.
func (r *Result) fail(log *slog.Logger, err error) *Result {
	kind := errKind(err)
	log.Error("processing failed", "kind", kind, "error", err)
	r.Error = kind
	r.Message = err.Error()
	return r
}

// errKind names the failure category for an unexpected error: a
// sentinel label when recognized, otherwise the innermost error's
// concrete type.
func errKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "DeadlineExceeded"
	case errors.Is(err, ErrUnsupportedFormat):
		return "UnsupportedFormat"
	case errors.Is(err, os.ErrNotExist):
		return "FileNotFound"
	case errors.Is(err, ErrParsingFailed):
		return "ParsingFailed"
	default:
		return fmt.Sprintf("%T", unwrapAll(err))
	}
}

func unwrapAll(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		next := u.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
}

// stem returns the filename without its extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// fileHash returns the hex SHA-256 of a file's contents.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
