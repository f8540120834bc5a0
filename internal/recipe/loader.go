package recipe

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

var validate = validator.New()

// Load decodes a recipe document from path and validates it (required
// ComponentName/ComponentVersion, recognized dependency types).
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrInvalid, "read recipe %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a recipe document from raw YAML bytes.
func Parse(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrParse, "unmarshal recipe YAML")
	}
	if err := validate.Struct(&r); err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrInvalid, "validate recipe")
	}
	for name, dep := range r.ComponentDependencies {
		if err := validate.Struct(dep); err != nil {
			return nil, apierrors.WrapKind(err, apierrors.ErrInvalid, "validate dependency %s", name)
		}
	}
	return &r, nil
}
