// Package parser loads document text for the extraction pipeline. Parsers
// produce per-page text; the caller joins pages and applies the document
// size ceiling.
package parser

import "context"

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Pages  []string // Ordered page texts; empty pages are omitted
	Method string   // "native"
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}
