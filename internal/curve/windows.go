package curve

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/snpike/duet-astro/internal/gti"
)

var ErrBadWindow = errors.New("malformed window entry")

// windowFile is the mapping form of a YAML window file:
//
//	windows:
//	  - [0, 2100]
//	  - {start: 5760, end: 7860}
type windowFile struct {
	Windows []yaml.Node `yaml:"windows"`
}

// ReadWindowsYAML decodes a window list from YAML. The document is either a
// sequence of windows or a mapping with a "windows" key; each window is a
// two-element [start, end] sequence or a {start, end} mapping. The list is
// validated before it is returned.
func ReadWindowsYAML(r io.Reader) (gti.List, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return gti.List{}, nil
		}
		return nil, fmt.Errorf("decoding window yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return gti.List{}, nil
	}

	root := doc.Content[0]
	var items []*yaml.Node
	switch root.Kind {
	case yaml.SequenceNode:
		items = root.Content
	case yaml.MappingNode:
		var wf windowFile
		if err := root.Decode(&wf); err != nil {
			return nil, fmt.Errorf("decoding window yaml: %w", err)
		}
		for i := range wf.Windows {
			items = append(items, &wf.Windows[i])
		}
	default:
		return nil, fmt.Errorf("%w: top level must be a list or a mapping with \"windows\"", ErrBadWindow)
	}

	out := make(gti.List, 0, len(items))
	for i, n := range items {
		iv, err := decodeWindow(n)
		if err != nil {
			return nil, fmt.Errorf("window %d (line %d): %w", i, n.Line, err)
		}
		out = append(out, iv)
	}
	if err := gti.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeWindow(n *yaml.Node) (gti.Interval, error) {
	switch n.Kind {
	case yaml.SequenceNode:
		var pair []float64
		if err := n.Decode(&pair); err != nil {
			return gti.Interval{}, err
		}
		if len(pair) != 2 {
			return gti.Interval{}, fmt.Errorf("%w: %d values, want 2", ErrBadWindow, len(pair))
		}
		return gti.Interval{Start: pair[0], End: pair[1]}, nil
	case yaml.MappingNode:
		var iv gti.Interval
		if err := n.Decode(&iv); err != nil {
			return gti.Interval{}, err
		}
		return iv, nil
	}
	return gti.Interval{}, fmt.Errorf("%w: want [start, end] or {start, end}", ErrBadWindow)
}

// WriteWindowsYAML writes l as a mapping with a "windows" key holding
// [start, end] pairs.
func WriteWindowsYAML(w io.Writer, l gti.List) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, iv := range l {
		seq.Content = append(seq.Content, &yaml.Node{
			Kind:  yaml.SequenceNode,
			Style: yaml.FlowStyle,
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Value: formatFloat(iv.Start)},
				{Kind: yaml.ScalarNode, Value: formatFloat(iv.End)},
			},
		})
	}
	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "windows"},
			seq,
		},
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding window yaml: %w", err)
	}
	return enc.Close()
}

// ReadWindowsFile reads a window list from a .yaml/.yml file or from a
// two-column table (see ReadWindowsTable) for any other extension.
func ReadWindowsFile(path string, logger *slog.Logger) (gti.List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening window file: %w", err)
	}
	defer f.Close()

	var l gti.List
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		l, err = ReadWindowsYAML(f)
	default:
		l, err = ReadWindowsTable(f, FormatFor(path), logger)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// ReadWindowsTable reads windows from a table with "start" and "end"
// columns, using the same layout rules as ReadModel. The list is validated
// before it is returned.
func ReadWindowsTable(r io.Reader, format Format, logger *slog.Logger) (gti.List, error) {
	m, err := ReadModel(r, format, logger)
	if errors.Is(err, ErrNoRows) {
		return gti.List{}, nil
	}
	if err != nil {
		return nil, err
	}
	starts, err := m.Column("start")
	if err != nil {
		return nil, err
	}
	ends, err := m.Column("end")
	if err != nil {
		return nil, err
	}

	out := make(gti.List, len(starts))
	for i := range starts {
		out[i] = gti.Interval{Start: starts[i], End: ends[i]}
	}
	if err := gti.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}
