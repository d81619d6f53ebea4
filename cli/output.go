package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

// ErrUnknownOutputFormat is returned for a format other than yaml, json or
// raw.
var ErrUnknownOutputFormat = errors.New("unknown output format")

// OutputFormat selects how a command's return value is printed. It
// implements pflag.Value.
type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
	FormatRaw  OutputFormat = "raw"
)

// OutputFormats lists the accepted values in help order.
var OutputFormats = []OutputFormat{FormatYAML, FormatJSON, FormatRaw}

func (f *OutputFormat) String() string {
	return string(*f)
}

func (f *OutputFormat) Set(s string) error {
	format, err := ParseOutputFormat(s)
	if err != nil {
		return err
	}
	*f = format
	return nil
}

func (f *OutputFormat) Type() string {
	return "format"
}

// ParseOutputFormat validates s.
func ParseOutputFormat(s string) (OutputFormat, error) {
	for _, f := range OutputFormats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownOutputFormat, s)
}

func formatNames() []string {
	names := make([]string, len(OutputFormats))
	for i, f := range OutputFormats {
		names[i] = string(f)
	}
	return names
}

// PrintRetval writes ret to w in the given format. YAML and JSON follow the
// value's json tags. Raw output only accepts strings, byte slices and
// fmt.Stringer values.
func PrintRetval(w io.Writer, ret any, format OutputFormat) error {
	switch format {
	case FormatYAML:
		out, err := yaml.Marshal(ret)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(ret); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	case FormatRaw:
		return writeRaw(w, ret)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOutputFormat, format)
	}
}

func writeRaw(w io.Writer, ret any) error {
	var err error
	switch v := ret.(type) {
	case string:
		_, err = io.WriteString(w, v)
	case []byte:
		_, err = w.Write(v)
	case fmt.Stringer:
		_, err = io.WriteString(w, v.String())
	case io.Reader:
		_, err = io.Copy(w, v)
	default:
		return fmt.Errorf("raw output requires a string, got %T", ret)
	}
	return err
}
