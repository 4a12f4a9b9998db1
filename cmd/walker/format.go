package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *ScanResponse:
		return formatScanHuman(v), nil
	case *DependentsResponse:
		return formatDependentsHuman(v), nil
	case *SessionsResponse:
		return formatSessionsHuman(v), nil
	default:
		return formatJSON(resp)
	}
}

func formatScanHuman(resp *ScanResponse) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Scanned %d files in %s\n", len(resp.Files), resp.RepoRoot))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, f := range resp.Files {
		b.WriteString(f.File)
		if f.Skipped {
			b.WriteString("  (no finder for this extension)")
		}
		b.WriteString("\n")
		unresolved := make(map[string]bool, len(f.Unresolved))
		for _, u := range f.Unresolved {
			unresolved[u] = true
		}
		for _, d := range f.Dependencies {
			marker := "->"
			if unresolved[d] {
				marker = "?>"
			}
			b.WriteString(fmt.Sprintf("  %s %s\n", marker, d))
		}
		if n := len(f.Dependents); n > 0 {
			b.WriteString(fmt.Sprintf("  <- %d %s: %s\n", n, plural(n, "dependent", "dependents"), strings.Join(f.Dependents, ", ")))
		}
	}

	b.WriteString(fmt.Sprintf("\nFiles: %d  Dependencies: %d  Edges: %d\n",
		resp.Stats.Files, resp.Stats.Dependencies, resp.Stats.Edges))
	if len(resp.Cycles) > 0 {
		b.WriteString(fmt.Sprintf("\nInclude cycles: %d\n", len(resp.Cycles)))
		for i, c := range resp.Cycles {
			b.WriteString(fmt.Sprintf("  %d: %s\n", i+1, strings.Join(c, " -> ")))
		}
	}
	if resp.Saved {
		b.WriteString(fmt.Sprintf("\nSaved session %s\n", resp.SessionID))
	}
	b.WriteString(fmt.Sprintf("(took %dms)", resp.DurationMs))
	return b.String()
}

func formatDependentsHuman(resp *DependentsResponse) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Dependents of %s\n", resp.File))
	b.WriteString(strings.Repeat("=", 60) + "\n")
	if !resp.Known {
		b.WriteString(fmt.Sprintf("\n%s is not part of session %s\n", resp.File, resp.SessionID))
		return b.String()
	}
	if len(resp.Transitive) == 0 {
		b.WriteString("\nNo file depends on it.\n")
		return b.String()
	}

	direct := make(map[string]bool, len(resp.Direct))
	for _, d := range resp.Direct {
		direct[d] = true
	}
	b.WriteString("\n")
	for _, d := range resp.Transitive {
		kind := "transitive"
		if direct[d] {
			kind = "direct"
		}
		b.WriteString(fmt.Sprintf("  %s (%s)\n", d, kind))
	}
	b.WriteString(fmt.Sprintf("\n%d direct, %d total\n", len(resp.Direct), len(resp.Transitive)))
	return b.String()
}

func formatSessionsHuman(resp *SessionsResponse) string {
	var b strings.Builder

	if resp.Pruned > 0 {
		b.WriteString(fmt.Sprintf("Pruned %d %s\n\n", resp.Pruned, plural(resp.Pruned, "session", "sessions")))
	}
	if len(resp.Sessions) == 0 {
		b.WriteString("No saved sessions. Run 'walker scan --save' to create one.\n")
		return b.String()
	}
	for _, s := range resp.Sessions {
		b.WriteString(fmt.Sprintf("%s  %s  %d files, %d edges  %s\n",
			s.SessionID, s.CreatedAt.Local().Format(time.DateTime), s.Files, s.Edges, s.RepoRoot))
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
