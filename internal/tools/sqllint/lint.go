package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)^\s*(--sql\b|select|insert|update|delete|with)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

type markerSite struct {
	file string
	name string
	line int
}

// linter accumulates violations across files so duplicate markers in
// different files are reported.
type linter struct {
	fset       *token.FileSet
	violations []violation
	markers    map[string]markerSite
}

func newLinter() *linter {
	return &linter{fset: token.NewFileSet(), markers: map[string]markerSite{}}
}

func (l *linter) LintFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return l.LintSource(path, src)
}

func (l *linter) LintSource(name string, src []byte) error {
	file, err := parser.ParseFile(l.fset, name, src, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			ident := joinNames(vs.Names)
			if i < len(vs.Names) && vs.Names[i] != nil {
				ident = vs.Names[i].Name
			}
			l.checkValue(name, ident, value)
		}
		return true
	})
	return nil
}

func (l *linter) checkValue(file, ident string, value ast.Expr) {
	switch v := value.(type) {
	case *ast.BasicLit:
		if v.Kind != token.STRING {
			return
		}
		raw, err := unquote(v.Value)
		if err != nil || !sqlKeywordPattern.MatchString(raw) {
			return
		}
		l.checkMarker(file, ident, l.fset.Position(v.Pos()).Line, raw)
	case *ast.BinaryExpr:
		if v.Op != token.ADD || !containsSQLLiteral(v) {
			return
		}
		l.add(file, ident, l.fset.Position(v.Pos()).Line, "SQL built by concatenation; use a single literal with placeholders")
	}
}

func (l *linter) checkMarker(file, ident string, line int, raw string) {
	marker := firstLine(raw)
	if !uuidMarkerPattern.MatchString(marker) {
		l.add(file, ident, line, "missing or invalid --sql <uuid> marker")
		return
	}
	id := strings.TrimPrefix(marker, "--sql ")
	if prev, ok := l.markers[id]; ok {
		l.add(file, ident, line, fmt.Sprintf("marker %s already used by %s at %s:%d", id, prev.name, prev.file, prev.line))
		return
	}
	l.markers[id] = markerSite{file: file, name: ident, line: line}
}

func (l *linter) add(file, ident string, line int, msg string) {
	l.violations = append(l.violations, violation{file: file, name: ident, line: line, message: msg})
}

// Violations returns the collected problems ordered by file and line.
func (l *linter) Violations() []violation {
	out := append([]violation(nil), l.violations...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].file != out[j].file {
			return out[i].file < out[j].file
		}
		return out[i].line < out[j].line
	})
	return out
}

func containsSQLLiteral(expr ast.Expr) bool {
	found := false
	ast.Inspect(expr, func(n ast.Node) bool {
		bl, ok := n.(*ast.BasicLit)
		if !ok || bl.Kind != token.STRING {
			return true
		}
		if raw, err := unquote(bl.Value); err == nil && sqlKeywordPattern.MatchString(raw) {
			found = true
		}
		return !found
	})
	return found
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
