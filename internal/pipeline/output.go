package pipeline

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/rhermens/s3-dedupe/internal/record"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatYAML   Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatNDJSON, FormatYAML:
		return f, nil
	default:
		return "", eris.Errorf("pipeline: unknown output format %q", s)
	}
}

// Encode writes records to w. json writes a single array, ndjson one record
// per line, yaml a sequence of mappings. Key order is preserved in every
// format.
func Encode(w io.Writer, records []record.Value, format Format) error {
	if records == nil {
		records = []record.Value{}
	}

	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		return eris.Wrap(enc.Encode(records), "pipeline: encode json")
	case FormatNDJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for i, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return eris.Wrapf(err, "pipeline: encode record %d", i)
			}
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(yamlNode(record.ArrayValue(records...))); err != nil {
			return eris.Wrap(err, "pipeline: encode yaml")
		}
		return eris.Wrap(enc.Close(), "pipeline: close yaml encoder")
	default:
		return eris.Errorf("pipeline: unknown output format %q", format)
	}
}

func yamlNode(v record.Value) *yaml.Node {
	switch v.Kind() {
	case record.Object:
		n := &yaml.Node{Kind: yaml.MappingNode}
		for _, key := range v.Keys() {
			val, _ := v.Get(key)
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				yamlNode(val),
			)
		}
		return n
	case record.Array:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range v.Items() {
			n.Content = append(n.Content, yamlNode(item))
		}
		return n
	case record.String:
		s, _ := v.Str()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	case record.Bool:
		b, _ := v.Bool()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(b)}
	case record.Number:
		num, _ := v.Number()
		return &yaml.Node{Kind: yaml.ScalarNode, Value: num.String()}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}
