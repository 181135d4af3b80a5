// Package registry holds the content types the admin can manage. Types are
// loaded once at startup from YAML and are immutable afterwards.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RelationshipConfig lists the content classes a relationship may point to.
type RelationshipConfig struct {
	Types []string `yaml:"types" json:"types"`
}

// ContentType — описание одного управляемого типа контента.
type ContentType struct {
	Type          string                        `yaml:"type" json:"type"`
	Name          string                        `yaml:"name" json:"name"`
	Class         string                        `yaml:"class" json:"class"`
	Relationships map[string]RelationshipConfig `yaml:"relationships" json:"relationships,omitempty"`
	SearchFields  []string                      `yaml:"search_fields" json:"search_fields,omitempty"`
	ReadOnly      []string                      `yaml:"read_only" json:"read_only"`
	PushReadOnly  []string                      `yaml:"push_read_only" json:"-"`
	SummaryFields []string                      `yaml:"summary_fields" json:"summary_fields,omitempty"`
	FieldTypes    map[string]string             `yaml:"field_types" json:"field_types,omitempty"`
	OwnerField    string                        `yaml:"owner_field" json:"owner_field,omitempty"`
}

// DefaultReadOnly — поля, которые не редактируются, если read_only не задан.
var DefaultReadOnly = []string{"id", "created_at", "updated_at"}

// normalize заполняет значения по умолчанию: read_only, затем push_read_only поверх.
func (ct *ContentType) normalize() {
	ct.Type = strings.TrimSpace(ct.Type)
	ct.Class = strings.TrimSpace(ct.Class)
	if ct.ReadOnly == nil {
		ct.ReadOnly = append([]string(nil), DefaultReadOnly...)
	}
	for _, a := range ct.PushReadOnly {
		if !ct.IsReadOnly(a) {
			ct.ReadOnly = append(ct.ReadOnly, a)
		}
	}
	ct.PushReadOnly = nil
	if ct.Name == "" {
		ct.Name = ct.Type
	}
}

func (ct *ContentType) IsReadOnly(attr string) bool {
	for _, a := range ct.ReadOnly {
		if a == attr {
			return true
		}
	}
	return false
}

func (ct *ContentType) HasRelationship(attr string) bool {
	_, ok := ct.Relationships[attr]
	return ok
}

// RelationshipNames returns relationship attributes in sorted order.
func (ct *ContentType) RelationshipNames() []string {
	out := make([]string, 0, len(ct.Relationships))
	for k := range ct.Relationships {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// file is the on-disk shape: either a single type or a `types:` list.
type file struct {
	ContentType `yaml:",inline"`
	Types       []ContentType `yaml:"types"`
}

// LoadFile читает один YAML-файл с одним типом или списком types.
func LoadFile(path string) ([]ContentType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var out []ContentType
	if f.Type != "" || len(f.Types) == 0 {
		out = append(out, f.ContentType)
	}
	out = append(out, f.Types...)
	if len(out) == 1 && out[0].Type == "" && out[0].Class == "" {
		return nil, fmt.Errorf("%s: no content types", path)
	}
	for i := range out {
		if out[i].Type == "" {
			// имя типа — из имени файла, если файл описывает один тип
			if len(out) == 1 {
				out[i].Type = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			} else {
				return nil, fmt.Errorf("%s: content type #%d has no type key", path, i+1)
			}
		}
		out[i].normalize()
	}
	return out, nil
}

// LoadDir читает все *.yaml / *.yml из каталога в порядке имён файлов.
func LoadDir(dir string) ([]ContentType, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []ContentType
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		types, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, types...)
	}
	return out, nil
}
