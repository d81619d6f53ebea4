package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func newTestApp(t *testing.T, run RunFunc) (*App, *bytes.Buffer) {
	t.Helper()
	app := NewApp("tool", "test tool")
	app.AddCommand(&cobra.Command{Use: "show"}, run)

	var out bytes.Buffer
	app.Root.SetOut(&out)
	app.Root.SetErr(&bytes.Buffer{})
	return app, &out
}

func returnMap(*cobra.Command, []string) (any, error) {
	return map[string]any{"a": 1}, nil
}

func TestAppDefaultsToYAML(t *testing.T) {
	app, out := newTestApp(t, returnMap)
	app.Root.SetArgs([]string{"show"})

	if err := app.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if app.OutputFormat() != FormatYAML {
		t.Errorf("OutputFormat() = %q, want yaml", app.OutputFormat())
	}
	if out.String() != "a: 1\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestAppJSONFlag(t *testing.T) {
	app, out := newTestApp(t, returnMap)
	app.Root.SetArgs([]string{"--output-format", "json", "show"})

	if err := app.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, out.String())
	}
	if got["a"] != float64(1) {
		t.Errorf("got %v", got)
	}
}

func TestAppFlagAfterSubcommand(t *testing.T) {
	app, out := newTestApp(t, func(*cobra.Command, []string) (any, error) {
		return "raw text", nil
	})
	app.Root.SetArgs([]string{"show", "--output-format=raw"})

	if err := app.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.String() != "raw text" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestAppRejectsUnknownFormat(t *testing.T) {
	app, _ := newTestApp(t, returnMap)
	app.Root.SetArgs([]string{"--output-format", "xml", "show"})

	err := app.Execute(context.Background())
	if err == nil {
		t.Fatal("Execute() should fail for an unknown format")
	}
	if !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestAppPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	app, out := newTestApp(t, func(*cobra.Command, []string) (any, error) {
		return map[string]any{"ignored": true}, boom
	})
	app.Root.SetArgs([]string{"show"})

	if err := app.Execute(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Execute() error = %v, want boom", err)
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be printed on error, got %q", out.String())
	}
}

func TestAppNilResultPrintsNothing(t *testing.T) {
	app, out := newTestApp(t, func(*cobra.Command, []string) (any, error) {
		return nil, nil
	})
	app.Root.SetArgs([]string{"show"})

	if err := app.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
}
