package recognize

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func TestParseResponse_StrictJSON(t *testing.T) {
	t.Parallel()

	text := `{"tables":[{"headers":["항목","금액"],"rows":[["수수료","1,000"],["정산",null]]}]}`
	got, err := parseResponse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(got.Tables))
	}
	tbl := got.Tables[0]
	if len(tbl.Headers) != 2 || tbl.Headers[0] != "항목" {
		t.Fatalf("unexpected headers: %v", tbl.Headers)
	}
	if tbl.Rows[1][1] != "" {
		t.Fatalf("null cell should decode to empty string, got %q", tbl.Rows[1][1])
	}
	if string(got.Raw) != text {
		t.Fatalf("raw capture mismatch: %q", got.Raw)
	}
}

func TestParseResponse_CodeFenced(t *testing.T) {
	t.Parallel()

	text := "```json\n{\"tables\":[{\"headers\":[\"h\"],\"rows\":[[\"v\"]]}]}\n```"
	got, err := parseResponse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Tables[0].Rows[0][0] != "v" {
		t.Fatalf("unexpected cell: %v", got.Tables)
	}
}

func TestParseResponse_ProseAroundJSON(t *testing.T) {
	t.Parallel()

	text := `Here is the result: {"tables":[{"headers":["h"],"rows":[["v"]]}]} Done.`
	got, err := parseResponse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Tables[0].Headers[0] != "h" {
		t.Fatalf("unexpected table: %v", got.Tables)
	}
}

func TestParseResponse_RaggedRowsSurvive(t *testing.T) {
	t.Parallel()

	text := `{"tables":[{"headers":["a","b"],"rows":[["1"],["2","3","4"]]}]}`
	got, err := parseResponse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := got.Tables[0].Rows
	if len(rows[0]) != 1 || len(rows[1]) != 3 {
		t.Fatalf("ragged rows were reshaped: %v", rows)
	}
}

func TestParseResponse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty response", "", "no valid JSON"},
		{"prose only", "I could not find any tables.", "no valid JSON"},
		{"truncated json", `{"tables": [`, "no valid JSON"},
		{"garbled json", `{"tables": [}`, "parse model response"},
		{"zero tables", `{"tables":[]}`, "no tables"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseResponse(tc.text)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestClassifyErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"quota exhausted", genai.APIError{Code: 429, Message: "quota"}, true},
		{"server error", genai.APIError{Code: 503, Message: "unavailable"}, true},
		{"bad request", genai.APIError{Code: 400, Message: "invalid"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := classifyErr(tc.err)
			var transient *TransientError
			if errors.As(got, &transient) != tc.transient {
				t.Fatalf("classifyErr(%v) transient = %v, want %v", tc.err, !tc.transient, tc.transient)
			}
		})
	}
}
