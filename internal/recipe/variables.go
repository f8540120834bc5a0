package recipe

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/value"
	"github.com/itchyny/gojq"
)

// ConfigReader is the subset of internal/config/store.Store's surface the
// resolver needs, duck-typed to avoid importing the store package (mirrors
// the same avoid-a-coupling choice made by internal/config/kv's BusClient).
type ConfigReader interface {
	Read(keyPath []string) (*value.Value, error)
}

// Resolver expands {type:key} and {componentDep:type:key} tokens in recipe
// phase scripts.
type Resolver struct {
	RootPath  string
	ThingName string
	Config    ConfigReader
}

var tokenPattern = regexp.MustCompile(`\{[^{}]+\}`)

// Resolve expands every recognized token in script. componentName and
// componentVersion identify the owning component, used for work/artifacts
// paths and as the default "self" scope for configuration tokens.
func (r *Resolver) Resolve(script, componentName, componentVersion string) (string, error) {
	var firstErr error
	out := tokenPattern.ReplaceAllStringFunc(script, func(tok string) string {
		if firstErr != nil {
			return tok
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(tok, "{"), "}")
		expanded, err := r.resolveToken(inner, componentName, componentVersion)
		if err != nil {
			firstErr = err
			return tok
		}
		return expanded
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func (r *Resolver) resolveToken(inner, componentName, componentVersion string) (string, error) {
	parts := strings.SplitN(inner, ":", 3)
	switch len(parts) {
	case 2:
		return r.expand(parts[0], parts[1], componentName, componentVersion)
	case 3:
		// {componentDep:type:key} — scope is the named dependency, not self.
		return r.expand(parts[1], parts[2], parts[0], "")
	default:
		return "", apierrors.WrapKind(fmt.Errorf("malformed variable token %q", inner), apierrors.ErrInvalid, "resolve variable")
	}
}

func (r *Resolver) expand(varType, key, scopeName, componentVersion string) (string, error) {
	switch varType {
	case "kernel":
		if key == "rootPath" {
			return r.RootPath, nil
		}
	case "iot":
		if key == "thingName" {
			return r.ThingName, nil
		}
	case "work":
		if key == "path" {
			return fmt.Sprintf("%s/work/%s/", r.RootPath, scopeName), nil
		}
	case "artifacts":
		switch key {
		case "path":
			return fmt.Sprintf("%s/packages/artifacts/%s/%s/", r.RootPath, scopeName, componentVersion), nil
		case "decompressedPath":
			return fmt.Sprintf("%s/packages/artifacts-unarchived/%s/%s/", r.RootPath, scopeName, componentVersion), nil
		}
	case "configuration":
		return r.expandConfiguration(scopeName, key)
	}
	return "", apierrors.WrapKind(fmt.Errorf("unrecognized variable %s:%s", varType, key), apierrors.ErrInvalid, "resolve variable")
}

// expandConfiguration reads services/<scopeName>/configuration and
// evaluates the JSON-pointer-shaped key against it via gojq, translating
// "/a/b" into the jq query ".a.b".
func (r *Resolver) expandConfiguration(scopeName, pointer string) (string, error) {
	if r.Config == nil {
		return "", apierrors.WrapKind(fmt.Errorf("no config reader configured"), apierrors.ErrInvalid, "resolve configuration variable")
	}
	v, err := r.Config.Read([]string{"services", scopeName, "configuration"})
	if err != nil {
		return "", err
	}

	query := pointerToJQ(pointer)
	parsed, err := gojq.Parse(query)
	if err != nil {
		return "", apierrors.WrapKind(err, apierrors.ErrInvalid, "parse configuration pointer %q", pointer)
	}

	iter := parsed.Run(toGenericJSON(v))
	result, ok := iter.Next()
	if !ok {
		return "", apierrors.WrapKind(fmt.Errorf("configuration pointer %q produced no result", pointer), apierrors.ErrNoEntry, "resolve configuration variable")
	}
	if err, ok := result.(error); ok {
		return "", apierrors.WrapKind(err, apierrors.ErrInvalid, "evaluate configuration pointer %q", pointer)
	}

	if s, ok := result.(string); ok {
		return s, nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return "", apierrors.WrapKind(err, apierrors.ErrInvalid, "encode configuration pointer result")
	}
	return string(encoded), nil
}

// pointerToJQ translates a "/a/b/0" JSON-pointer-shaped key into the jq
// query ".a.b[0]" (numeric segments index arrays; non-numeric segments
// index objects).
func pointerToJQ(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return "."
	}
	var b strings.Builder
	for _, seg := range strings.Split(pointer, "/") {
		if isAllDigits(seg) {
			b.WriteString("[")
			b.WriteString(seg)
			b.WriteString("]")
			continue
		}
		b.WriteString(".")
		b.WriteString(seg)
	}
	return b.String()
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// toGenericJSON converts a value.Value tree into plain interface{} values
// gojq can evaluate against, mirroring internal/config/store's toGeneric
// (duplicated rather than imported, same rationale as ConfigReader above).
func toGenericJSON(v *value.Value) interface{} {
	if v == nil || v.IsNull() {
		return nil
	}
	switch v.Kind {
	case value.KindBool:
		return v.Bool
	case value.KindInt:
		return v.Int
	case value.KindFloat:
		return v.Float
	case value.KindBuffer:
		return string(v.Buffer)
	case value.KindList:
		items := make([]interface{}, len(v.List))
		for i, item := range v.List {
			items[i] = toGenericJSON(item)
		}
		return items
	case value.KindMap:
		m := make(map[string]interface{}, v.Map.Len())
		for _, k := range v.Map.Keys() {
			child, _ := v.Map.Get(k)
			m[k] = toGenericJSON(child)
		}
		return m
	default:
		return nil
	}
}
