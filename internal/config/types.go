package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts Go duration syntax, "Nd" day counts, or a bare number
// of seconds.
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses "90d", "1h30m" or "300".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// StringList accepts either a single string or a sequence of strings.
// Non-string sequence members are dropped.
type StringList []string

func (l *StringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if v := strings.TrimSpace(n.Value); v != "" {
			*l = StringList{v}
		}
		return nil
	case yaml.SequenceNode:
		out := make(StringList, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode || c.ShortTag() != "!!str" {
				continue
			}
			if v := strings.TrimSpace(c.Value); v != "" {
				out = append(out, v)
			}
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", n.Line)
	}
}

// Named is one entry of a Section.
type Named[T any] struct {
	Name  string
	Value T
}

// Section is a YAML mapping of named entries that keeps document order.
// Entries that fail to decode are skipped and reported as warnings.
type Section[T any] struct {
	Entries  []Named[T]
	warnings []string
}

func (s *Section[T]) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of named entries", n.Line)
	}
	s.Entries = nil
	s.warnings = nil
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		var v T
		if err := n.Content[i+1].Decode(&v); err != nil {
			s.warnings = append(s.warnings, fmt.Sprintf("entry %q skipped: %v", name, err))
			continue
		}
		s.Entries = append(s.Entries, Named[T]{Name: name, Value: v})
	}
	return nil
}

func (s Section[T]) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range s.Entries {
		var v yaml.Node
		if err := v.Encode(e.Value); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: e.Name}, &v)
	}
	return n, nil
}

func (s *Section[T]) takeWarnings(section string) []string {
	out := make([]string, len(s.warnings))
	for i, w := range s.warnings {
		out[i] = section + ": " + w
	}
	s.warnings = nil
	return out
}

func (s Section[T]) Len() int { return len(s.Entries) }

// filter keeps entries for which keep returns true; keep may modify the entry.
func (s *Section[T]) filter(keep func(name string, v *T) bool) {
	out := s.Entries[:0]
	for i := range s.Entries {
		e := s.Entries[i]
		if keep(e.Name, &e.Value) {
			out = append(out, e)
		}
	}
	s.Entries = out
}
