package aopex

import (
	"os"
	"path/filepath"
	"time"

	"github.com/toxindex/aopex/llm"
)

// Config holds all configuration for the aopex engine.
type Config struct {
	// DBPath is the full path to the SQLite cache database file.
	// If empty, defaults to ~/.aopex/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "aopex".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.aopex/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// DisableCache skips the result cache entirely. Every call then
	// re-runs the extraction pipeline.
	DisableCache bool `json:"disable_cache" yaml:"disable_cache"`

	// Chat configures the LLM used for all extraction stages.
	Chat llm.Config `json:"chat" yaml:"chat"`

	// MaxDocChars caps the document text passed to the LLM. Defaults
	// to 500000.
	MaxDocChars int `json:"max_doc_chars" yaml:"max_doc_chars"`

	// Extraction retry behavior.
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts"`
	JitterMin   time.Duration `json:"jitter_min" yaml:"jitter_min"`
	JitterMax   time.Duration `json:"jitter_max" yaml:"jitter_max"`

	// Sampling parameters for the extraction stages.
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`

	// SourcePrefix labels evidence source ids, e.g. "OPENALEX" yields
	// source ids of the form OPENALEX:<reference>.
	SourcePrefix string `json:"source_prefix" yaml:"source_prefix"`
}

// DefaultConfig returns a Config with sensible defaults. The cache
// database is stored in ~/.aopex/aopex.db.
func DefaultConfig() Config {
	return Config{
		DBName:     "aopex",
		StorageDir: "home",
		Chat: llm.Config{
			Provider: "gemini",
			Model:    "gemini-2.5-pro",
		},
		MaxDocChars:  500000,
		MaxAttempts:  3,
		JitterMin:    500 * time.Millisecond,
		JitterMax:    1500 * time.Millisecond,
		Temperature:  0.1,
		MaxTokens:    16384,
		SourcePrefix: "OPENALEX",
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "aopex"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		dir := filepath.Join(home, ".aopex")
		return filepath.Join(dir, name+".db")
	}
}
