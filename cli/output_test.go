package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestPrintRetvalJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintRetval(&buf, map[string]any{"a": 1}, FormatJSON); err != nil {
		t.Fatalf("PrintRetval() error = %v", err)
	}

	if buf.String() != "{\n  \"a\": 1\n}\n" {
		t.Errorf("unexpected JSON output %q", buf.String())
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got["a"] != float64(1) {
		t.Errorf("round trip = %v, want map[a:1]", got)
	}
}

func TestPrintRetvalYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintRetval(&buf, map[string]any{"a": 1}, FormatYAML); err != nil {
		t.Fatalf("PrintRetval() error = %v", err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if got["a"] != 1 {
		t.Errorf("round trip = %v, want map[a:1]", got)
	}
	if strings.Contains(buf.String(), "{") {
		t.Errorf("expected block style YAML, got %q", buf.String())
	}
}

type job struct {
	Name    string    `json:"name"`
	Started time.Time `json:"started"`
	Tags    []string  `json:"tags,omitempty"`
}

func TestPrintRetvalStructs(t *testing.T) {
	started := time.Date(2024, 1, 20, 16, 10, 39, 0, time.UTC)
	ret := []job{{Name: "ingest", Started: started}}

	var js bytes.Buffer
	if err := PrintRetval(&js, ret, FormatJSON); err != nil {
		t.Fatalf("PrintRetval(json) error = %v", err)
	}
	if !strings.Contains(js.String(), `"started": "2024-01-20T16:10:39Z"`) {
		t.Errorf("dates should be ISO formatted, got %q", js.String())
	}

	var ys bytes.Buffer
	if err := PrintRetval(&ys, ret, FormatYAML); err != nil {
		t.Fatalf("PrintRetval(yaml) error = %v", err)
	}
	if !strings.Contains(ys.String(), "name: ingest") {
		t.Errorf("YAML should follow json tags, got %q", ys.String())
	}
}

type stringer struct{}

func (stringer) String() string { return "from stringer" }

func TestPrintRetvalRaw(t *testing.T) {
	tests := []struct {
		name    string
		ret     any
		want    string
		wantErr bool
	}{
		{name: "string", ret: "plain text", want: "plain text"},
		{name: "bytes", ret: []byte("bytes"), want: "bytes"},
		{name: "stringer", ret: stringer{}, want: "from stringer"},
		{name: "reader", ret: strings.NewReader("streamed"), want: "streamed"},
		{name: "map", ret: map[string]any{"a": 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := PrintRetval(&buf, tt.ret, FormatRaw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PrintRetval() error = %v, wantErr %v", err, tt.wantErr)
			}
			if buf.String() != tt.want {
				t.Errorf("PrintRetval() wrote %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestPrintRetvalUnknownFormat(t *testing.T) {
	err := PrintRetval(&bytes.Buffer{}, map[string]any{"a": 1}, OutputFormat("xml"))
	if !errors.Is(err, ErrUnknownOutputFormat) {
		t.Errorf("PrintRetval() error = %v, want ErrUnknownOutputFormat", err)
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, f := range OutputFormats {
		got, err := ParseOutputFormat(string(f))
		if err != nil || got != f {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", f, got, err)
		}
	}
	if _, err := ParseOutputFormat("YAML"); !errors.Is(err, ErrUnknownOutputFormat) {
		t.Errorf("ParseOutputFormat is case sensitive, got %v", err)
	}
}
