// Package export renders a session graph as JSON, Graphviz DOT, Mermaid or
// plain text, optionally zstd-compressed.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"walker/internal/depgraph"
	"walker/internal/paths"
)

// Format is an export format name.
type Format string

const (
	FormatJSON    Format = "json"
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
	FormatText    Format = "text"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatDOT, FormatMermaid, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (use json, dot, mermaid or text)", s)
}

// Metadata describes where an export came from.
type Metadata struct {
	SessionID string    `json:"sessionId"`
	RepoRoot  string    `json:"repoRoot"`
	Generated time.Time `json:"generated"`
}

// Document is the JSON export.
type Document struct {
	Metadata Metadata        `json:"metadata"`
	Stats    depgraph.Stats  `json:"stats"`
	Edges    []depgraph.Edge `json:"edges"`
	Cycles   [][]string      `json:"cycles,omitempty"`

	// Unresolved maps a file to the raw specifiers it could not resolve.
	Unresolved map[string][]string `json:"unresolved,omitempty"`
}

// Exporter renders one graph. Paths under RepoRoot are shown relative to it.
type Exporter struct {
	meta       Metadata
	graph      *depgraph.Graph
	unresolved map[string][]string
	rawEdges   map[depgraph.Edge]struct{}
	rawNodes   map[string]struct{}
}

// NewExporter creates an Exporter for g. unresolved maps each file to the
// specifiers the analyzer could not resolve; those edges are drawn as
// unresolved whatever the specifier looks like.
func NewExporter(meta Metadata, g *depgraph.Graph, unresolved map[string][]string) *Exporter {
	if meta.Generated.IsZero() {
		meta.Generated = time.Now().UTC()
	}
	e := &Exporter{
		meta:       meta,
		graph:      g,
		unresolved: unresolved,
		rawEdges:   make(map[depgraph.Edge]struct{}),
		rawNodes:   make(map[string]struct{}),
	}
	for file, specs := range unresolved {
		for _, spec := range specs {
			e.rawEdges[depgraph.Edge{File: file, Dependency: spec}] = struct{}{}
		}
	}

	// A node is a raw specifier unless some edge resolves to it or it is an
	// analyzed file.
	resolved := make(map[string]struct{})
	for _, edge := range g.Edges() {
		if e.isUnresolved(edge) {
			e.rawNodes[edge.Dependency] = struct{}{}
		} else {
			resolved[edge.Dependency] = struct{}{}
		}
	}
	for _, f := range g.Files() {
		resolved[f] = struct{}{}
	}
	for n := range e.rawNodes {
		if _, ok := resolved[n]; ok {
			delete(e.rawNodes, n)
		}
	}
	return e
}

// Write renders the graph in format to w. With compress set the output is
// a zstd stream.
func (e *Exporter) Write(w io.Writer, format Format, compress bool) error {
	var body []byte
	switch format {
	case FormatJSON:
		data, err := e.JSON()
		if err != nil {
			return err
		}
		body = append(data, '\n')
	case FormatDOT:
		body = []byte(e.DOT())
	case FormatMermaid:
		body = []byte(e.Mermaid())
	case FormatText:
		body = []byte(e.Text())
	default:
		return fmt.Errorf("unknown export format %q", format)
	}

	if !compress {
		_, err := w.Write(body)
		return err
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := enc.Write(body); err != nil {
		enc.Close()
		return fmt.Errorf("compress export: %w", err)
	}
	return enc.Close()
}

// JSON serializes the graph to indented JSON.
func (e *Exporter) JSON() ([]byte, error) {
	doc := Document{
		Metadata: e.meta,
		Stats:    e.graph.Stats(),
		Edges:    e.graph.Edges(),
		Cycles:   e.graph.Cycles(),
	}
	if len(e.unresolved) > 0 {
		doc.Unresolved = e.unresolved
	}
	if doc.Edges == nil {
		doc.Edges = []depgraph.Edge{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DOT generates a Graphviz digraph. Edges point from a file to what it
// includes; unresolved specifiers are drawn dashed.
func (e *Exporter) DOT() string {
	var b strings.Builder
	b.WriteString("digraph includes {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box fontname=\"Helvetica\"];\n\n")

	for _, n := range e.nodes() {
		if e.isRawNode(n) {
			b.WriteString(fmt.Sprintf("  %q [label=%q style=dashed color=\"#d29922\"];\n", n, n))
			continue
		}
		b.WriteString(fmt.Sprintf("  %q [label=%q];\n", n, e.label(n)))
	}
	b.WriteString("\n")
	for _, edge := range e.graph.Edges() {
		style := "solid"
		if e.isUnresolved(edge) {
			style = "dashed"
		}
		b.WriteString(fmt.Sprintf("  %q -> %q [style=%s];\n", edge.File, edge.Dependency, style))
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid generates a Mermaid flowchart of the graph.
func (e *Exporter) Mermaid() string {
	ids := make(map[string]string)
	var b strings.Builder
	b.WriteString("graph LR\n")
	for i, n := range e.nodes() {
		id := fmt.Sprintf("n%d", i)
		ids[n] = id
		label := strings.ReplaceAll(e.label(n), "\"", "'")
		if e.isRawNode(n) {
			b.WriteString(fmt.Sprintf("  %s{{\"%s\"}}\n", id, label))
		} else {
			b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", id, label))
		}
	}
	for _, edge := range e.graph.Edges() {
		arrow := "-->"
		if e.isUnresolved(edge) {
			arrow = "-.->"
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n", ids[edge.File], arrow, ids[edge.Dependency]))
	}
	return b.String()
}

// Text lists every file with its dependencies and dependents.
func (e *Exporter) Text() string {
	var b strings.Builder
	stats := e.graph.Stats()
	b.WriteString(fmt.Sprintf("# Repository: %s\n", e.meta.RepoRoot))
	if e.meta.SessionID != "" {
		b.WriteString(fmt.Sprintf("# Session: %s\n", e.meta.SessionID))
	}
	b.WriteString(fmt.Sprintf("# Files: %d | Dependencies: %d | Edges: %d\n\n", stats.Files, stats.Dependencies, stats.Edges))

	for _, f := range e.graph.Files() {
		b.WriteString(e.label(f) + "\n")
		for _, d := range e.graph.Dependencies(f) {
			marker := "->"
			label := e.label(d)
			if e.isUnresolved(depgraph.Edge{File: f, Dependency: d}) {
				marker = "?>"
				label = d
			}
			b.WriteString(fmt.Sprintf("  %s %s\n", marker, label))
		}
		if deps := e.graph.Dependents(f); len(deps) > 0 {
			b.WriteString(fmt.Sprintf("  <- %d dependent(s)\n", len(deps)))
		}
	}

	if cycles := e.graph.Cycles(); len(cycles) > 0 {
		b.WriteString(fmt.Sprintf("\nCycles: %d\n", len(cycles)))
		for i, c := range cycles {
			labels := make([]string, len(c))
			for j, f := range c {
				labels[j] = e.label(f)
			}
			b.WriteString(fmt.Sprintf("  %d: %s\n", i+1, strings.Join(labels, " -> ")))
		}
	}

	b.WriteString("\n---\nLegend:\n")
	b.WriteString("  -> = includes\n")
	b.WriteString("  ?> = unresolved specifier\n")
	return b.String()
}

func (e *Exporter) nodes() []string {
	seen := make(map[string]struct{})
	for _, edge := range e.graph.Edges() {
		seen[edge.File] = struct{}{}
		seen[edge.Dependency] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (e *Exporter) label(path string) string {
	if e.isRawNode(path) {
		return path
	}
	return paths.Display(path, e.meta.RepoRoot)
}

func (e *Exporter) isUnresolved(edge depgraph.Edge) bool {
	_, ok := e.rawEdges[edge]
	return ok
}

func (e *Exporter) isRawNode(n string) bool {
	_, ok := e.rawNodes[n]
	return ok
}
