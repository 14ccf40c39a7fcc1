package parser

import (
	"context"
	"fmt"
	"os"
)

// TextParser handles plain text (.txt) files as a single page.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	if len(data) == 0 {
		return &ParseResult{Method: "native"}, nil
	}

	return &ParseResult{
		Pages:  []string{string(data)},
		Method: "native",
	}, nil
}
