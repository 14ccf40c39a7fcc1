// Package extract drives the three LLM-backed extraction stages: key events,
// candidate relationships, and per-relationship evidence scoring. Every
// stage call is paced with a jittered delay and retried on failure.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/toxindex/aopex/aop"
	"github.com/toxindex/aopex/llm"
)

// ErrNoRelationshipContainer is returned by ExtractRelationships when the
// LLM response carries no "relationships" key at all. An empty list is a
// valid (if disappointing) answer; a missing container is not.
var ErrNoRelationshipContainer = errors.New("extract: response has no relationships container")

// Config tunes retry pacing for stage calls.
type Config struct {
	// MaxAttempts caps how often a failing stage call is tried. Zero means
	// the default of 3.
	MaxAttempts int
	// JitterMin and JitterMax bound the random delay slept before every
	// attempt, including the first. Zero values mean the defaults of
	// 500ms-1500ms. The pre-call sleep spreads request bursts; there is no
	// exponential growth between attempts.
	JitterMin time.Duration
	JitterMax time.Duration
	// Temperature and MaxTokens are passed through to every chat call.
	Temperature float64
	MaxTokens   int
}

const (
	defaultMaxAttempts = 3
	defaultJitterMin   = 500 * time.Millisecond
	defaultJitterMax   = 1500 * time.Millisecond
	defaultMaxTokens   = 16384
)

// Extractor runs structured extraction stages against one chat provider.
// It is stateless across calls and safe for sequential reuse within a run.
type Extractor struct {
	chat llm.Provider
	cfg  Config
}

// New creates an extractor. Zero config fields fall back to defaults.
func New(chat llm.Provider, cfg Config) *Extractor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.JitterMin <= 0 {
		cfg.JitterMin = defaultJitterMin
	}
	if cfg.JitterMax < cfg.JitterMin {
		cfg.JitterMax = defaultJitterMax
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Extractor{chat: chat, cfg: cfg}
}

// eventsResult is the JSON shape returned by the event extraction call.
type eventsResult struct {
	Events []aop.KeyEvent `json:"events"`
}

// relationshipsResult is the JSON shape returned by the relationship
// extraction call. The pointer distinguishes a missing container from an
// empty list.
type relationshipsResult struct {
	Relationships *[]aop.RawRelationship `json:"relationships"`
}

// ExtractEvents runs stage 1: chemical-agnostic key events for one topic.
// The returned events are normalized and validated but carry no ids; the
// orchestrator assigns those.
func (e *Extractor) ExtractEvents(ctx context.Context, docText, topic string) ([]aop.KeyEvent, error) {
	prompt := fmt.Sprintf(eventExtractionPrompt, topic, docText, topic)

	return invokeWithRetry(ctx, e, "extract_events", func(ctx context.Context) ([]aop.KeyEvent, error) {
		var result eventsResult
		if err := e.chatStructured(ctx, prompt, &result); err != nil {
			return nil, err
		}
		for i := range result.Events {
			if err := result.Events[i].Validate(); err != nil {
				return nil, fmt.Errorf("invalid extracted event: %w", err)
			}
		}
		return result.Events, nil
	})
}

// ExtractRelationships runs stage 2: candidate leads_to edges between the
// extracted events. The full event list is serialized into the prompt so the
// LLM can reference events by their generated ids.
func (e *Extractor) ExtractRelationships(ctx context.Context, docText string, events []aop.KeyEvent) ([]aop.RawRelationship, error) {
	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing events: %w", err)
	}
	prompt := fmt.Sprintf(relationshipExtractionPrompt, docText, eventsJSON)

	return invokeWithRetry(ctx, e, "extract_relationships", func(ctx context.Context) ([]aop.RawRelationship, error) {
		var result relationshipsResult
		if err := e.chatStructured(ctx, prompt, &result); err != nil {
			return nil, err
		}
		if result.Relationships == nil {
			return nil, ErrNoRelationshipContainer
		}
		return *result.Relationships, nil
	})
}

// ScoreRelationship runs stage 3 for one validated edge: an evidence
// strength in [0,1] with a textual justification. Callers treat failures as
// non-fatal and substitute a default score.
func (e *Extractor) ScoreRelationship(ctx context.Context, docText string, source, target *aop.KeyEvent) (aop.RelationshipStrength, error) {
	sourceJSON, err := json.MarshalIndent(source, "", "  ")
	if err != nil {
		return aop.RelationshipStrength{}, fmt.Errorf("serializing source event: %w", err)
	}
	targetJSON, err := json.MarshalIndent(target, "", "  ")
	if err != nil {
		return aop.RelationshipStrength{}, fmt.Errorf("serializing target event: %w", err)
	}
	prompt := fmt.Sprintf(scoreRelationshipPrompt, docText, sourceJSON, targetJSON)

	return invokeWithRetry(ctx, e, "score_relationship", func(ctx context.Context) (aop.RelationshipStrength, error) {
		var result aop.RelationshipStrength
		if err := e.chatStructured(ctx, prompt, &result); err != nil {
			return aop.RelationshipStrength{}, err
		}
		if err := result.Validate(); err != nil {
			return aop.RelationshipStrength{}, err
		}
		return result, nil
	})
}

// Topic extracts a bare topic name from a free-form user query using a
// plain-text completion. The first line of the response is taken and
// surrounding quotes stripped.
func (e *Extractor) Topic(ctx context.Context, query string) (string, error) {
	prompt := fmt.Sprintf("Extract only the topic name from the following query. Return ONLY the topic name, nothing else, no explanation.\n\nQuery: %s\n\nTopic:", query)

	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("topic extraction: %w", err)
	}

	return firstLine(llm.ParseCompletion(resp.Content).Text()), nil
}

// chatStructured issues one JSON-mode chat call and decodes the structured
// completion into out.
func (e *Extractor) chatStructured(ctx context.Context, prompt string, out any) error {
	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Messages:       []llm.Message{{Role: "user", Content: prompt}},
		Temperature:    e.cfg.Temperature,
		MaxTokens:      e.cfg.MaxTokens,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return fmt.Errorf("llm chat: %w", err)
	}
	return llm.ParseCompletion(resp.Content).Decode(out)
}
