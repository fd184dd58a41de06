package fdm

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Entry is one name/value pair of an [OperatingPoint].
type Entry struct {
	Name  string
	Value float64
}

// OperatingPoint is an initial-condition snapshot. Entries are applied to the
// engine in insertion order, since some engines derive one ic value from
// another (ic/mach after ic/h-sl-ft, for instance).
type OperatingPoint struct {
	entries []Entry
	index   map[string]int
}

func NewOperatingPoint(entries ...Entry) *OperatingPoint {
	op := &OperatingPoint{}
	for _, e := range entries {
		op.Set(e.Name, e.Value)
	}
	return op
}

// Set overwrites an existing entry in place or appends a new one.
func (op *OperatingPoint) Set(name string, v float64) {
	if op.index == nil {
		op.index = make(map[string]int)
	}
	if i, ok := op.index[name]; ok {
		op.entries[i].Value = v
		return
	}
	op.index[name] = len(op.entries)
	op.entries = append(op.entries, Entry{Name: name, Value: v})
}

func (op *OperatingPoint) Get(name string) (float64, bool) {
	if op == nil {
		return 0, false
	}
	i, ok := op.index[name]
	if !ok {
		return 0, false
	}
	return op.entries[i].Value, true
}

func (op *OperatingPoint) Len() int {
	if op == nil {
		return 0
	}
	return len(op.entries)
}

func (op *OperatingPoint) Keys() []string {
	if op == nil {
		return nil
	}
	keys := make([]string, len(op.entries))
	for i, e := range op.entries {
		keys[i] = e.Name
	}
	return keys
}

func (op *OperatingPoint) Entries() []Entry {
	if op == nil {
		return nil
	}
	out := make([]Entry, len(op.entries))
	copy(out, op.entries)
	return out
}

func (op *OperatingPoint) Clone() *OperatingPoint {
	c := &OperatingPoint{}
	if op == nil {
		return c
	}
	for _, e := range op.entries {
		c.Set(e.Name, e.Value)
	}
	return c
}

// Merge copies every entry of other into op; other wins on conflicts.
func (op *OperatingPoint) Merge(other *OperatingPoint) {
	for _, e := range other.Entries() {
		op.Set(e.Name, e.Value)
	}
}

// Apply writes every entry to the engine in order.
func (op *OperatingPoint) Apply(h *Handle) error {
	for _, e := range op.Entries() {
		if err := h.Set(e.Name, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func (op *OperatingPoint) String() string {
	s := "{"
	for i, e := range op.Entries() {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %g", e.Name, e.Value)
	}
	return s + "}"
}

func (op *OperatingPoint) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range op.Entries() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(e.Value, 'g', -1, 64)},
		)
	}
	return node, nil
}

func (op *OperatingPoint) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("operating point: expected mapping, got line %d", value.Line)
	}
	*op = OperatingPoint{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var v float64
		if err := value.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("operating point %q: %w", value.Content[i].Value, err)
		}
		op.Set(value.Content[i].Value, v)
	}
	return nil
}
