package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

const testdata = "../../internal/validate/testdata/controller.ini"

// testApp returns the CLI with output captured and os.Exit disabled.
func testApp(out io.Writer) *cli.App {
	app := newApp()
	app.Writer = out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

// runApp runs the CLI with settings isolated from the host and returns
// stdout and the exit code.
func runApp(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out bytes.Buffer
	app := testApp(&out)

	settings := filepath.Join(t.TempDir(), "config.toml")
	err := app.Run(append([]string{"configcheck", "--config", settings}, args...))
	if err == nil {
		return out.String(), exitPass
	}
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		t.Fatalf("unexpected error without exit code: %v", err)
	}
	return out.String(), ec.ExitCode()
}

func writeConfig(t *testing.T, old, new string) string {
	t.Helper()
	data, err := os.ReadFile(testdata)
	if err != nil {
		t.Fatalf("failed to read testdata: %v", err)
	}
	src := string(data)
	if old != "" {
		if !strings.Contains(src, old) {
			t.Fatalf("testdata does not contain %q", old)
		}
		src = strings.Replace(src, old, new, 1)
	}
	path := filepath.Join(t.TempDir(), "controller.ini")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestValidate_ExitCodes(t *testing.T) {
	tmp := t.TempDir()
	malformed := filepath.Join(tmp, "malformed.ini")
	os.WriteFile(malformed, []byte("[system\n"), 0644)
	badSchema := filepath.Join(tmp, "schema.toml")
	os.WriteFile(badSchema, []byte("[[section]]\nname = \"x\"\nbogus = 1\n"), 0644)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "clean file", args: []string{"validate", testdata}, want: exitPass},
		{name: "failing file", args: []string{"validate", writeConfig(t, "hosts_count = 2", "hosts_count = 3")}, want: exitFail},
		{name: "missing file", args: []string{"validate", filepath.Join(tmp, "absent.ini")}, want: exitFatal},
		{name: "malformed file", args: []string{"validate", malformed}, want: exitFatal},
		{name: "no path", args: []string{"validate"}, want: exitFatal},
		{name: "unknown format", args: []string{"validate", "--format", "xml", testdata}, want: exitSettings},
		{name: "bad log level", args: []string{"--log-level", "loud", "validate", testdata}, want: exitSettings},
		{name: "bad schema", args: []string{"validate", "--schema", badSchema, testdata}, want: exitSettings},
		{name: "missing schema", args: []string{"validate", "--schema", filepath.Join(tmp, "none.toml"), testdata}, want: exitSettings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := runApp(t, tt.args...)
			if got != tt.want {
				t.Errorf("exit code = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidate_TextReport(t *testing.T) {
	out, code := runApp(t, "validate", writeConfig(t, "hosts_count = 2", "hosts_count = 3"))
	if code != exitFail {
		t.Fatalf("exit code = %d, want %d", code, exitFail)
	}
	if !strings.Contains(out, "expected 3, found 2") {
		t.Errorf("report does not explain the count mismatch:\n%s", out)
	}
	if !strings.Contains(out, "FAIL: 1 error, 0 warnings") {
		t.Errorf("report has no summary line:\n%s", out)
	}
}

func TestValidate_JSONReport(t *testing.T) {
	out, code := runApp(t, "validate", "--format", "json", writeConfig(t, "", ""))
	if code != exitPass {
		t.Fatalf("exit code = %d, want %d", code, exitPass)
	}

	var doc struct {
		Verdict string            `json:"verdict"`
		Errors  int               `json:"errors"`
		Issues  []json.RawMessage `json:"issues"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if doc.Verdict != "pass" || doc.Errors != 0 || len(doc.Issues) != 0 {
		t.Errorf("unexpected document %+v", doc)
	}
}

func TestValidate_SettingsFile(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "config.toml")
	os.WriteFile(settings, []byte(`format = "yaml"`), 0644)

	var out bytes.Buffer
	if err := testApp(&out).Run([]string{"configcheck", "--config", settings, "validate", testdata}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "verdict: pass\n") {
		t.Errorf("settings format not applied, got:\n%s", out.String())
	}

	os.WriteFile(settings, []byte(`format = "xml"`), 0644)
	err := testApp(io.Discard).Run([]string{"configcheck", "--config", settings, "validate", testdata})
	var ec cli.ExitCoder
	if !errors.As(err, &ec) || ec.ExitCode() != exitSettings {
		t.Errorf("expected settings failure, got %v", err)
	}
}

func TestSchemaCommand(t *testing.T) {
	out, code := runApp(t, "schema")
	if code != exitPass {
		t.Fatalf("exit code = %d, want %d", code, exitPass)
	}
	for _, want := range []string{
		"[system]",
		"hosts_count",
		"required when system.mode is one of duplex",
		"rules:",
		"platform-networks-disjoint",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("schema output lacks %q:\n%s", want, out)
		}
	}
}
