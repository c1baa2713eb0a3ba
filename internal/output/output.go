package output

import (
	"fmt"
	"io"
	"os"

	"github.com/mj1618/uibridge/internal/model"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatYAML, FormatJSON, FormatXML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %q (expected yaml, json, or xml)", s)
	}
}

// OutputFormat is the current output format, set by the root command's --format flag.
var OutputFormat Format = FormatYAML

// PrettyOutput enables pretty-printing for JSON output.
var PrettyOutput bool

// Stdout is where Print writes.
var Stdout io.Writer = os.Stdout

// Documenter is implemented by results that have a hierarchy document
// form for --format xml.
type Documenter interface {
	XML() ([]byte, error)
}

// SnapshotResult is the output of the `snapshot` command.
type SnapshotResult struct {
	Generation string                `yaml:"generation" json:"generation"`
	Kind       string                `yaml:"kind"       json:"kind"`
	TS         int64                 `yaml:"ts"         json:"ts"`
	Nodes      int                   `yaml:"nodes"      json:"nodes"`
	Root       *model.GenericElement `yaml:"root"       json:"root"`
}

func (r SnapshotResult) XML() ([]byte, error) { return model.MarshalHierarchy(r.Root) }

// FindResult is the output of the `find` command.
type FindResult struct {
	Generation string              `yaml:"generation" json:"generation"`
	Text       string              `yaml:"text"       json:"text"`
	Elements   []model.FlatElement `yaml:"elements"   json:"elements"`
}

// ActResult is the output of the `act` command and of each `do` step.
type ActResult struct {
	Action     string `yaml:"action"               json:"action"`
	Index      int    `yaml:"index,omitempty"      json:"index,omitempty"`
	OK         bool   `yaml:"ok"                   json:"ok"`
	Error      string `yaml:"error,omitempty"      json:"error,omitempty"`
	Kind       string `yaml:"kind,omitempty"       json:"kind,omitempty"`
	Generation string `yaml:"generation,omitempty" json:"generation,omitempty"`
}

// WaitResult is the output of the `wait` command.
type WaitResult struct {
	Reason     string `yaml:"reason"              json:"reason"`
	ElapsedMS  int64  `yaml:"elapsed_ms"          json:"elapsed_ms"`
	Generation string `yaml:"generation,omitempty" json:"generation,omitempty"`
}

// Print serializes v to Stdout in the current output format.
func Print(v interface{}) error {
	return Fprint(Stdout, OutputFormat, v)
}

// Fprint serializes v to w in format f.
func Fprint(w io.Writer, f Format, v interface{}) error {
	switch f {
	case FormatJSON:
		return PrintJSON(w, v, PrettyOutput)
	case FormatYAML:
		return PrintYAML(w, v)
	case FormatXML:
		d, ok := v.(Documenter)
		if !ok {
			return fmt.Errorf("xml output is only available for snapshots")
		}
		doc, err := d.XML()
		if err != nil {
			return err
		}
		if _, err := w.Write(append(doc, '\n')); err != nil {
			return fmt.Errorf("xml write: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", f)
	}
}
