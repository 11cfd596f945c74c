package integrations

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/Gabiro3/blimp2/pkg/types"
)

// ParseAppSpec parses one app definition from YAML bytes
func ParseAppSpec(data []byte) (*types.AppSpec, error) {
	var spec types.AppSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse app spec yaml: %w", err)
	}

	spec.App = types.NormalizeAppName(spec.App)
	if err := ValidateAppSpec(&spec); err != nil {
		return nil, fmt.Errorf("invalid app spec %q: %w", spec.App, err)
	}
	return &spec, nil
}

// ValidateAppSpec checks that the definition is well-formed
func ValidateAppSpec(s *types.AppSpec) error {
	if s.App == "" {
		return fmt.Errorf("app is required")
	}
	if len(s.Functions) == 0 {
		return fmt.Errorf("at least one function is required")
	}

	seen := make(map[string]bool, len(s.Functions))
	for _, fn := range s.Functions {
		if fn.Name == "" {
			return fmt.Errorf("function name is required")
		}
		if seen[fn.Name] {
			return fmt.Errorf("function %q: defined twice", fn.Name)
		}
		seen[fn.Name] = true

		if fn.Description == "" {
			return fmt.Errorf("function %q: description is required", fn.Name)
		}
		switch fn.Kind {
		case types.FunctionKindFetch:
			if fn.ResultKey == "" {
				return fmt.Errorf("function %q: fetch functions must declare result_key", fn.Name)
			}
			if !fn.DataType.Valid() {
				return fmt.Errorf("function %q: unknown data_type %q", fn.Name, fn.DataType)
			}
		case types.FunctionKindAction:
		default:
			return fmt.Errorf("function %q: kind must be fetch or action", fn.Name)
		}
	}
	return nil
}

// LoadSpecs loads every *.yaml app definition under dir of fsys, sorted by app.
func LoadSpecs(fsys fs.FS, dir string) ([]*types.AppSpec, error) {
	var specs []*types.AppSpec

	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		spec, err := ParseAppSpec(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		log.Debug().
			Str("app", spec.App).
			Int("functions", len(spec.Functions)).
			Msg("loaded app definition")

		specs = append(specs, spec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk definitions: %w", err)
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].App < specs[j].App })
	return specs, nil
}
