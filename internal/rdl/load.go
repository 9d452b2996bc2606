package rdl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Tree is a loaded register-map with a path index
type Tree struct {
	Root  *Node
	nodes map[string]*Node
}

// Lookup returns the node at a dotted path
func (t *Tree) Lookup(path string) (*Node, bool) {
	n, ok := t.nodes[stripIndices(path)]
	return n, ok
}

// Len returns the number of nodes in the tree
func (t *Tree) Len() int { return len(t.nodes) }

// Walk visits every node depth-first in source order. Returning false
// skips the children of the visited node.
func (t *Tree) Walk(fn func(*Node) bool) {
	var walk func(*Node)
	walk = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
}

// LoadFile reads an elaborated tree from a JSON file
func LoadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	t, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Load reads an elaborated tree from r
func Load(r io.Reader) (*Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses an elaborated tree and links it
func Decode(data []byte) (*Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root Node
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decoding tree: %w", err)
	}
	return New(&root)
}

// New links a tree built in memory: parents, paths and references. Raw
// reference and encoding objects in property bags are replaced by *Ref
// and *Enum values.
func New(root *Node) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("empty tree")
	}
	if root.Kind != KindAddrMap {
		return nil, fmt.Errorf("root %q is a %s, expected an addrmap", root.InstName, root.Kind)
	}

	t := &Tree{Root: root, nodes: make(map[string]*Node)}
	if err := t.link(root, nil); err != nil {
		return nil, err
	}

	var err error
	t.Walk(func(n *Node) bool {
		if err != nil {
			return false
		}
		err = t.resolve(n)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) link(n, parent *Node) error {
	if n.InstName == "" {
		return fmt.Errorf("%s node without inst_name below %q", n.Kind, pathOf(parent))
	}
	n.parent = parent
	if parent == nil {
		n.path = n.InstName
	} else {
		n.path = parent.path + "." + n.InstName
	}
	if _, dup := t.nodes[n.path]; dup {
		return fmt.Errorf("duplicate instance %q", n.path)
	}
	t.nodes[n.path] = n

	if n.Kind == KindField && n.Width == 0 {
		n.Width = n.MSB - n.LSB + 1
	}
	if n.Kind == KindField && n.MSB < n.LSB {
		return fmt.Errorf("%s: msb %d below lsb %d", n.path, n.MSB, n.LSB)
	}

	for _, c := range n.Children {
		if c == nil {
			return fmt.Errorf("%s: null child", n.path)
		}
		if err := t.link(c, n); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) resolve(n *Node) error {
	for name, v := range n.Properties {
		switch val := v.(type) {
		case map[string]any:
			resolved, err := t.resolveObject(n, name, val)
			if err != nil {
				return err
			}
			n.Properties[name] = resolved
		case *Ref:
			if err := t.bind(n, name, val); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Tree) resolveObject(n *Node, name string, obj map[string]any) (any, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	if _, ok := obj["ref"]; ok {
		var ref Ref
		if err := json.Unmarshal(raw, &ref); err != nil {
			return nil, fmt.Errorf("%s: property %s: %w", n.path, name, err)
		}
		if err := t.bind(n, name, &ref); err != nil {
			return nil, err
		}
		return &ref, nil
	}
	if _, ok := obj["members"]; ok {
		var enum Enum
		if err := json.Unmarshal(raw, &enum); err != nil {
			return nil, fmt.Errorf("%s: property %s: %w", n.path, name, err)
		}
		if enum.Name == "" {
			return nil, fmt.Errorf("%s: property %s: encoding without a name", n.path, name)
		}
		return &enum, nil
	}
	return nil, fmt.Errorf("%s: property %s: unrecognized object value", n.path, name)
}

func (t *Tree) bind(n *Node, name string, ref *Ref) error {
	target, ok := t.Lookup(ref.Target)
	if !ok {
		return fmt.Errorf("%s: property %s references unknown instance %q", n.path, name, ref.Target)
	}
	ref.Node = target
	return nil
}

var indexRe = regexp.MustCompile(`\[[^\]]*\]`)

// stripIndices maps an element path such as top.r[2].f to its array
// instance top.r.f
func stripIndices(path string) string {
	if !strings.Contains(path, "[") {
		return path
	}
	return indexRe.ReplaceAllString(path, "")
}

func pathOf(n *Node) string {
	if n == nil {
		return "<root>"
	}
	return n.path
}
