package parse

import (
	"path/filepath"
	"strings"
)

// extToLanguage maps file extensions to Language.
var extToLanguage = map[string]Language{
	".go":    LangGo,
	".py":    LangPython,
	".pyx":   LangPython,
	".ts":    LangTypeScript,
	".tsx":   LangTypeScript,
	".js":    LangJavaScript,
	".jsx":   LangJavaScript,
	".mjs":   LangJavaScript,
	".rs":    LangRust,
	".java":  LangJava,
	".kt":    LangJava,
	".scala": LangJava,
	".c":     LangCPP,
	".h":     LangCPP,
	".cc":    LangCPP,
	".cpp":   LangCPP,
	".cxx":   LangCPP,
	".hpp":   LangCPP,
	".cs":    LangCSharp,
	".dart":  LangDart,
}

// contentMarkers are substrings that strongly suggest a language when the
// extension is missing or unknown. Each hit scores one point.
var contentMarkers = []struct {
	lang    Language
	markers []string
}{
	{LangGo, []string{"package main", "func ", "import (", "fmt.Println"}},
	{LangPython, []string{"def ", "import ", "from ", "if __name__", "#!/usr/bin/env python"}},
	{LangRust, []string{"fn main()", "use std::", "pub fn ", "impl ", "let mut"}},
	{LangTypeScript, []string{"interface ", ": string", "import type", "implements "}},
	{LangJavaScript, []string{"function ", "const ", "require(", "=> ", "export default"}},
	{LangJava, []string{"public class ", "import java.", "System.out.println", "@Override"}},
	{LangCSharp, []string{"using System;", "namespace ", "Console.WriteLine"}},
	{LangCPP, []string{"#include <", "std::", "int main(", "using namespace"}},
	{LangDart, []string{"import 'package:", "void main()", "@override"}},
}

// DetectLanguage picks a language for path, preferring the extension and
// falling back to content markers. Returns LangUnknown when nothing matches.
func DetectLanguage(path, content string) Language {
	if lang, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}

	best, bestScore := LangUnknown, 0
	for _, cm := range contentMarkers {
		score := 0
		for _, m := range cm.markers {
			if strings.Contains(content, m) {
				score++
			}
		}
		// Ties keep the earlier (more specific) entry.
		if score > bestScore {
			best, bestScore = cm.lang, score
		}
	}
	return best
}
