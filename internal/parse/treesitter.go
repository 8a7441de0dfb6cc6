package parse

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// nodeRule describes how one grammar node kind maps to a Symbol.
type nodeRule struct {
	kind SymbolKind
	// field names the child holding the symbol name. Empty means the
	// node's own text is used.
	field string
	// maxDepth limits the rule to nodes at most this deep below the root.
	// Zero means any depth.
	maxDepth int
}

// grammar pairs a tree-sitter language with its extraction rules.
type grammar struct {
	lang  *tree_sitter.Language
	rules map[string]nodeRule
}

func goGrammar() grammar {
	return grammar{
		lang: tree_sitter.NewLanguage(tree_sitter_go.Language()),
		rules: map[string]nodeRule{
			"function_declaration": {kind: SymbolFunction, field: "name"},
			"method_declaration":   {kind: SymbolMethod, field: "name"},
			"type_spec":            {kind: SymbolType, field: "name"},
			"import_spec":          {kind: SymbolImport, field: "path"},
			"var_spec":             {kind: SymbolVariable, field: "name", maxDepth: 3},
			"const_spec":           {kind: SymbolVariable, field: "name", maxDepth: 3},
		},
	}
}

func pythonGrammar() grammar {
	return grammar{
		lang: tree_sitter.NewLanguage(tree_sitter_python.Language()),
		rules: map[string]nodeRule{
			"function_definition":   {kind: SymbolFunction, field: "name"},
			"class_definition":      {kind: SymbolClass, field: "name"},
			"import_statement":      {kind: SymbolImport, field: "name"},
			"import_from_statement": {kind: SymbolImport, field: "module_name"},
			"assignment":            {kind: SymbolVariable, field: "left", maxDepth: 2},
		},
	}
}

func typescriptGrammar() grammar {
	return grammar{
		lang: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		rules: map[string]nodeRule{
			"function_declaration":   {kind: SymbolFunction, field: "name"},
			"method_definition":      {kind: SymbolMethod, field: "name"},
			"class_declaration":      {kind: SymbolClass, field: "name"},
			"interface_declaration":  {kind: SymbolType, field: "name"},
			"type_alias_declaration": {kind: SymbolType, field: "name"},
			"enum_declaration":       {kind: SymbolType, field: "name"},
			"import_statement":       {kind: SymbolImport, field: "source"},
			"variable_declarator":    {kind: SymbolVariable, field: "name", maxDepth: 3},
		},
	}
}

func rustGrammar() grammar {
	return grammar{
		lang: tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		rules: map[string]nodeRule{
			"function_item":   {kind: SymbolFunction, field: "name"},
			"struct_item":     {kind: SymbolClass, field: "name"},
			"enum_item":       {kind: SymbolType, field: "name"},
			"trait_item":      {kind: SymbolType, field: "name"},
			"use_declaration": {kind: SymbolImport, field: "argument"},
			"const_item":      {kind: SymbolVariable, field: "name"},
			"static_item":     {kind: SymbolVariable, field: "name"},
		},
	}
}

// TreeSitter is a parse function backed by tree-sitter grammars for Go,
// Python, TypeScript/JavaScript and Rust. A fresh tree-sitter parser is
// created per call, so Parse is safe for concurrent use.
type TreeSitter struct {
	grammars map[Language]grammar
}

// NewTreeSitter registers the built-in grammars.
func NewTreeSitter() *TreeSitter {
	ts := typescriptGrammar()
	return &TreeSitter{
		grammars: map[Language]grammar{
			LangGo:         goGrammar(),
			LangPython:     pythonGrammar(),
			LangTypeScript: ts,
			LangJavaScript: ts,
			LangRust:       rustGrammar(),
		},
	}
}

// SupportedLanguages returns the languages this parser can handle.
func (p *TreeSitter) SupportedLanguages() []Language {
	langs := make([]Language, 0, len(p.grammars))
	for l := range p.grammars {
		langs = append(langs, l)
	}
	return langs
}

// Func adapts p to the Func contract.
func (p *TreeSitter) Func() Func {
	return p.Parse
}

// Parse extracts functions, classes, imports and variables from content.
// Languages without a registered grammar yield an unsuccessful result, not an
// error.
func (p *TreeSitter) Parse(ctx context.Context, path, content string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lang := DetectLanguage(path, content)
	g, ok := p.grammars[lang]
	if !ok {
		return Failed(lang, fmt.Sprintf("no grammar for language %s", lang)), nil
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(g.lang); err != nil {
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}

	source := []byte(content)
	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", path)
	}
	defer tree.Close()

	root := tree.RootNode()
	res := &Result{
		Success:  true,
		Language: lang,
		Metadata: map[string]string{
			"loc":       strconv.Itoa(countLOC(content)),
			"hasErrors": strconv.FormatBool(root.HasError()),
		},
	}

	cursor := root.Walk()
	defer cursor.Close()
	collect(cursor, source, g.rules, 0, res)

	return res, nil
}

func collect(cursor *tree_sitter.TreeCursor, source []byte, rules map[string]nodeRule, depth int, res *Result) {
	node := cursor.Node()
	if rule, ok := rules[node.Kind()]; ok && (rule.maxDepth == 0 || depth <= rule.maxDepth) {
		if sym, ok := symbolFor(node, source, rule); ok {
			res.add(sym)
		}
	}

	if cursor.GotoFirstChild() {
		collect(cursor, source, rules, depth+1, res)
		for cursor.GotoNextSibling() {
			collect(cursor, source, rules, depth+1, res)
		}
		cursor.GotoParent()
	}
}

func symbolFor(node *tree_sitter.Node, source []byte, rule nodeRule) (Symbol, bool) {
	nameNode := node
	if rule.field != "" {
		nameNode = node.ChildByFieldName(rule.field)
		if nameNode == nil {
			return Symbol{}, false
		}
	}

	name := nameNode.Utf8Text(source)
	if rule.kind == SymbolImport {
		name = strings.Trim(name, "\"'`")
	}
	if name == "" {
		return Symbol{}, false
	}

	return Symbol{
		Name:    name,
		Kind:    rule.kind,
		Line:    int(node.StartPosition().Row) + 1,
		EndLine: int(node.EndPosition().Row) + 1,
	}, true
}

func (r *Result) add(sym Symbol) {
	switch sym.Kind {
	case SymbolFunction, SymbolMethod:
		r.Functions = append(r.Functions, sym)
	case SymbolClass, SymbolType:
		r.Classes = append(r.Classes, sym)
	case SymbolImport:
		r.Imports = append(r.Imports, sym)
	case SymbolVariable:
		r.Variables = append(r.Variables, sym)
	}
}

// countLOC counts lines, adding one for a final unterminated line.
func countLOC(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}
