// Package parse defines the structural result exchanged between the cache
// coordinators and the per-language parse functions they front.
package parse

import (
	"context"
	"time"
)

// Language identifies a programming language for parsing.
type Language string

const (
	LangUnknown    Language = "unknown"
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangCPP        Language = "cpp"
	LangCSharp     Language = "csharp"
	LangDart       Language = "dart"
)

// SymbolKind classifies an extracted entity.
type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolMethod   SymbolKind = "method"
	SymbolClass    SymbolKind = "class"
	SymbolType     SymbolKind = "type"
	SymbolImport   SymbolKind = "import"
	SymbolVariable SymbolKind = "variable"
)

// Symbol is a single named entity found in a source file.
type Symbol struct {
	Name    string     `json:"name"`
	Kind    SymbolKind `json:"kind"`
	Line    int        `json:"line"`
	EndLine int        `json:"endLine,omitempty"`
}

// Result is the normalized, language-agnostic structure of one parsed file.
// Results handed out by the cache are shared; callers must not mutate them.
type Result struct {
	Success   bool              `json:"success"`
	Language  Language          `json:"language"`
	Error     string            `json:"error,omitempty"`
	Functions []Symbol          `json:"functions,omitempty"`
	Classes   []Symbol          `json:"classes,omitempty"`
	Imports   []Symbol          `json:"imports,omitempty"`
	Variables []Symbol          `json:"variables,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`

	// ParseTime is attached by the coordinator that invoked the parse
	// function, never by the parse function itself.
	ParseTime time.Duration `json:"parseTime"`
}

// Failed builds an unsuccessful result carrying msg.
func Failed(lang Language, msg string) *Result {
	if lang == "" {
		lang = LangUnknown
	}
	return &Result{Success: false, Language: lang, Error: msg}
}

// Func turns the content of a single file into a structural result.
// A returned error means the parse function itself failed; a Result with
// Success=false means it ran but could not make sense of the input.
type Func func(ctx context.Context, path, content string) (*Result, error)
