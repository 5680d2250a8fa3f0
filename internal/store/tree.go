package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Leaves maps leaf paths to their JSON values.
type Leaves map[string]json.RawMessage

// Flatten encodes value and splits it into leaves rooted at root. Objects are
// walked; scalars and arrays become leaves; nulls and empty objects vanish.
func Flatten(root string, value any) (Leaves, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", root, err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode %s: %w", root, err)
	}

	leaves := Leaves{}
	if err := flattenInto(leaves, root, generic); err != nil {
		return nil, err
	}
	return leaves, nil
}

func flattenInto(leaves Leaves, path string, value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		for key, child := range v {
			if err := ValidateSegment(key); err != nil {
				return err
			}
			if err := flattenInto(leaves, path+"/"+key, child); err != nil {
				return err
			}
		}
		return nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode leaf %s: %w", path, err)
		}
		leaves[path] = raw
		return nil
	}
}

// Expand rebuilds the JSON value at root from the leaves at or under it.
// It returns nil when no leaf is present.
func Expand(root string, leaves Leaves) (json.RawMessage, error) {
	if raw, ok := leaves[root]; ok {
		return raw, nil
	}

	tree := map[string]any{}
	prefix := root + "/"
	for path, raw := range leaves {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		segments := strings.Split(path[len(prefix):], "/")
		node := tree
		for _, segment := range segments[:len(segments)-1] {
			next, ok := node[segment].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[segment] = next
			}
			node = next
		}
		node[segments[len(segments)-1]] = raw
	}
	if len(tree) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", root, err)
	}
	return raw, nil
}

// Patch is the leaf level effect of an Update or Delete.
type Patch struct {
	// Clear lists subtrees to drop, each including its own leaf.
	Clear []string
	// Ancestors lists leaf paths above the cleared subtrees that must go so
	// the written children can hang below them.
	Ancestors []string
	Set       Leaves
}

func PlanUpdate(path string, fields map[string]any) (*Patch, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	patch := &Patch{Set: Leaves{}}
	seenAncestor := map[string]struct{}{}
	for _, key := range keys {
		child, err := Child(path, key)
		if err != nil {
			return nil, err
		}
		patch.Clear = append(patch.Clear, child)
		for _, ancestor := range Ancestors(child) {
			if _, ok := seenAncestor[ancestor]; ok {
				continue
			}
			seenAncestor[ancestor] = struct{}{}
			patch.Ancestors = append(patch.Ancestors, ancestor)
		}

		value := fields[key]
		if value == nil {
			continue
		}
		leaves, err := Flatten(child, value)
		if err != nil {
			return nil, err
		}
		for leafPath, raw := range leaves {
			patch.Set[leafPath] = raw
		}
	}
	return patch, nil
}

func PlanDelete(path string) (*Patch, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	return &Patch{Clear: []string{path}, Set: Leaves{}}, nil
}

// Apply runs the patch against an in-memory leaf set.
func (p *Patch) Apply(leaves Leaves) {
	for _, root := range p.Clear {
		for path := range leaves {
			if IsWithin(path, root) {
				delete(leaves, path)
			}
		}
	}
	for _, ancestor := range p.Ancestors {
		delete(leaves, ancestor)
	}
	for path, raw := range p.Set {
		leaves[path] = raw
	}
}
