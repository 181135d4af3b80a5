package dsl

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog — все загруженные сущности по FQN ("module.Name").
type Catalog map[string]*Entity

func (c Catalog) Add(ents ...*Entity) error {
	for _, e := range ents {
		if e == nil || e.Name == "" {
			return fmt.Errorf("empty entity name")
		}
		if e.Module == "" {
			return fmt.Errorf("entity %q has no module — add `module <name>` at the top", e.Name)
		}
		if _, exists := c[e.FQN()]; exists {
			return fmt.Errorf("duplicate entity %q in module %q", e.Name, e.Module)
		}
		c[e.FQN()] = e
	}
	return nil
}

// Resolve находит сущность по "module.Name" или по одному "Name".
// Без модуля имя должно быть уникальным среди всех модулей.
func (c Catalog) Resolve(class string) (*Entity, bool) {
	class = strings.TrimSpace(class)
	if class == "" {
		return nil, false
	}
	if e, ok := c[class]; ok {
		return e, true
	}

	module, name := "", class
	if i := strings.LastIndexByte(class, '.'); i > 0 {
		module, name = class[:i], class[i+1:]
	}
	ml := strings.ToLower(module)
	nl := strings.ToLower(name)

	var found *Entity
	for _, e := range c {
		if strings.ToLower(e.Name) != nl {
			continue
		}
		if ml != "" {
			if strings.ToLower(e.Module) == ml {
				return e, true
			}
			continue
		}
		if found != nil { // неуникально
			return nil, false
		}
		found = e
	}
	return found, found != nil
}

// Sorted возвращает сущности в стабильном порядке FQN.
func (c Catalog) Sorted() []*Entity {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Entity, 0, len(keys))
	for _, k := range keys {
		out = append(out, c[k])
	}
	return out
}
