package recognize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dohanlee/gmail-table-extractor/internal/pipeline"
)

// wire mirrors the response schema. Cells decode as *string so the
// model's null (empty cell) becomes "".
type wire struct {
	Tables []struct {
		Headers []string    `json:"headers"`
		Rows    [][]*string `json:"rows"`
	} `json:"tables"`
}

// parseResponse decodes the model output. Despite the response schema,
// models occasionally wrap JSON in code fences or leading prose, so
// parsing strips fences first and falls back to the outermost brace
// span.
func parseResponse(text string) (pipeline.TableSet, error) {
	cleaned := stripFences(text)

	var w wire
	if err := json.Unmarshal([]byte(cleaned), &w); err != nil {
		span, ok := braceSpan(cleaned)
		if !ok {
			return pipeline.TableSet{}, fmt.Errorf("no valid JSON in model response: %w", err)
		}
		cleaned = span
		if err := json.Unmarshal([]byte(cleaned), &w); err != nil {
			return pipeline.TableSet{}, fmt.Errorf("parse model response: %w", err)
		}
	}

	if len(w.Tables) == 0 {
		return pipeline.TableSet{}, fmt.Errorf("model response contains no tables")
	}

	out := pipeline.TableSet{Raw: json.RawMessage(cleaned)}
	for _, t := range w.Tables {
		table := pipeline.Table{Headers: t.Headers}
		for _, row := range t.Rows {
			cells := make([]string, len(row))
			for i, c := range row {
				if c != nil {
					cells[i] = *c
				}
			}
			table.Rows = append(table.Rows, cells)
		}
		out.Tables = append(out.Tables, table)
	}
	return out, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.Trim(s, "`")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}

// braceSpan returns the substring from the first '{' to the last '}'.
func braceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
