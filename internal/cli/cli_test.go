package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"excel-mcp/internal/identity"
	"excel-mcp/internal/resilience"
	"excel-mcp/internal/sheets"
	"excel-mcp/internal/store"
)

func init() {
	color.NoColor = true
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(&App{Logger: zerolog.Nop()})
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTableRender(t *testing.T) {
	var buf bytes.Buffer
	output := &Output{writer: &buf}
	table := NewTable(output, "Name", "Rows")
	table.AddRow("Sheet1", "12")
	table.AddRow("March", "3")
	table.Render()

	want := "Name    Rows\n------  ----\nSheet1  12\nMarch   3\n"
	if buf.String() != want {
		t.Errorf("Render() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestStripANSI(t *testing.T) {
	if got := stripANSI("\x1b[32msuccess\x1b[0m"); got != "success" {
		t.Errorf("stripANSI() = %q", got)
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, "version", "--json", "--config", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	if v["version"] != Version {
		t.Errorf("version = %q", v["version"])
	}
}

func TestToolsJSON(t *testing.T) {
	out, err := run(t, "tools", "--json", "--config", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var defs []struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal([]byte(out), &defs); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	if len(defs) != 4 || defs[0].Function.Name != "excel.updateRowByLookup" {
		t.Errorf("definitions = %+v", defs)
	}
}

func TestCallDryRunIsJournaled(t *testing.T) {
	dir := t.TempDir()
	args := `{"url":"https://contoso.sharepoint.com/sites/ops","file_name":"Book.xlsx","sheet_name":"Sheet1","address":"A1:B1","values":[[1,2]]}`

	out, err := run(t, "call", "excel.updateRange", "--dry-run", "--args", args, "--config", dir)
	if err != nil {
		t.Fatalf("call: %v\n%s", err, out)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	if result["status"] != "success" {
		t.Errorf("result = %v", result)
	}

	out, err = run(t, "journal", "--json", "--config", dir)
	if err != nil {
		t.Fatal(err)
	}
	var calls []store.ToolCall
	if err := json.Unmarshal([]byte(out), &calls); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	if len(calls) != 1 || calls[0].Tool != "excel.updateRange" || calls[0].Status != "success" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestCallShapeMismatchFails(t *testing.T) {
	args := `{"url":"https://contoso.sharepoint.com/sites/ops","file_name":"Book.xlsx","sheet_name":"Sheet1","address":"A1:C1","values":[[1,2]]}`

	out, err := run(t, "call", "excel.updateRange", "--dry-run", "--args", args, "--config", t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out, "ShapeMismatch") {
		t.Errorf("output = %q", out)
	}
}

func TestCallRejectsInvalidJSON(t *testing.T) {
	if _, err := run(t, "call", "excel.updateRange", "--dry-run", "--args", "{", "--config", t.TempDir()); err == nil {
		t.Fatal("expected error")
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("abcdefghij", 8); got != "abcde..." {
		t.Errorf("shorten() = %q", got)
	}
	if got := shorten("abc", 8); got != "abc" {
		t.Errorf("shorten() = %q", got)
	}
}

func TestBreakerCheck(t *testing.T) {
	graph := sheets.NewGraphClient(sheets.GraphOptions{BaseURL: "http://127.0.0.1:1"}, identity.StaticToken("token"), zerolog.Nop())
	check := breakerCheck(graph)

	healthy, detail := check.Check()
	stats, ok := detail.(resilience.CircuitBreakerStats)
	if !healthy || !ok || stats.State != resilience.CircuitClosed || check.Name != "graph" {
		t.Errorf("check = %v, %+v", healthy, detail)
	}
}
