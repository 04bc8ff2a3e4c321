package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/confkit/internal/storage"
)

const mergeTag = "!!merge"

// YAMLSource holds the flattened properties of a YAML document.
//
// Nested mappings are joined with dots, so
//
//	server:
//	  port: 8080
//
// yields server.port=8080. Sequences of scalars are joined with commas and
// sequences holding mappings are indexed (servers[0].ip).
type YAMLSource struct {
	name    string
	path    string
	ordinal int
	store   storage.Storage
}

// NewYAMLFile reads and flattens the YAML file at path. The source is named
// after the path and can be reloaded.
func NewYAMLFile(path string) (*YAMLSource, error) {
	props, err := readYAMLFile(path)
	if err != nil {
		return nil, err
	}
	return &YAMLSource{
		name:    "yaml:" + filepath.Clean(path),
		path:    path,
		ordinal: FileOrdinal,
		store:   storage.NewMemoryStorage(props),
	}, nil
}

// NewYAMLReader flattens the YAML document read from r into a source named name.
func NewYAMLReader(name string, r io.Reader) (*YAMLSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read yaml %s: %w", name, err)
	}
	props, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parse yaml %s: %w", name, err)
	}
	return &YAMLSource{
		name:    name,
		ordinal: FileOrdinal,
		store:   storage.NewMemoryStorage(props),
	}, nil
}

func (s *YAMLSource) Name() string { return s.name }

func (s *YAMLSource) Ordinal() int {
	return ResolveOrdinal(s.store.Get, s.ordinal)
}

func (s *YAMLSource) Value(key string) (string, bool) {
	return s.store.Get(key)
}

func (s *YAMLSource) Properties() map[string]string {
	return s.store.Snapshot()
}

func (s *YAMLSource) PropertyNames() []string {
	return s.store.Keys()
}

// Path returns the backing file, or "" for reader-based sources.
func (s *YAMLSource) Path() string { return s.path }

// Reload re-reads the backing file. On error the previous properties are kept.
func (s *YAMLSource) Reload() error {
	if s.path == "" {
		return ErrNotReloadable
	}
	props, err := readYAMLFile(s.path)
	if err != nil {
		return err
	}
	return s.store.Replace(props)
}

func readYAMLFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	props, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parse yaml %s: %w", path, err)
	}
	return props, nil
}

// ParseYAML flattens a YAML document into dotted property keys.
// An empty document yields no properties.
func ParseYAML(data []byte) (map[string]string, error) {
	props := make(map[string]string)
	if len(bytes.TrimSpace(data)) == 0 {
		return props, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return props, nil
	}

	root := resolveAlias(doc.Content[0])
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return props, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, ErrInvalidDocument
	}

	flatten(props, "", root)
	return props, nil
}

func flatten(out map[string]string, prefix string, n *yaml.Node) {
	n = resolveAlias(n)

	switch n.Kind {
	case yaml.MappingNode:
		// merged keys first so explicit keys override them
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Tag != mergeTag {
				continue
			}
			merged := resolveAlias(n.Content[i+1])
			if merged.Kind == yaml.SequenceNode {
				for _, item := range merged.Content {
					flatten(out, prefix, item)
				}
				continue
			}
			flatten(out, prefix, merged)
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Tag == mergeTag {
				continue
			}
			flatten(out, joinKey(prefix, key.Value), n.Content[i+1])
		}
	case yaml.SequenceNode:
		if scalarSequence(n) {
			items := make([]string, 0, len(n.Content))
			for _, item := range n.Content {
				items = append(items, escapeListItem(scalarValue(resolveAlias(item))))
			}
			out[prefix] = strings.Join(items, ",")
			return
		}
		for i, item := range n.Content {
			flatten(out, fmt.Sprintf("%s[%d]", prefix, i), item)
		}
	case yaml.ScalarNode:
		out[prefix] = scalarValue(n)
	}
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func scalarSequence(n *yaml.Node) bool {
	for _, item := range n.Content {
		if resolveAlias(item).Kind != yaml.ScalarNode {
			return false
		}
	}
	return true
}

func scalarValue(n *yaml.Node) string {
	if n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

// escapeListItem escapes backslashes and commas so convert.SplitList
// recovers the item unchanged.
func escapeListItem(item string) string {
	return listEscaper.Replace(item)
}

var listEscaper = strings.NewReplacer(`\`, `\\`, ",", `\,`)

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
