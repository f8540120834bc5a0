// Package recipe models component recipe documents (name, version,
// dependencies, default configuration, per-platform lifecycle manifests)
// and resolves them to a concrete, interpolated lifecycle for the current
// platform.
package recipe

import "gopkg.in/yaml.v3"

// DependencyType classifies how strictly a component dependency's version
// requirement and running state are enforced.
type DependencyType string

const (
	DependencyHard DependencyType = "HARD"
	DependencySoft DependencyType = "SOFT"
)

// Dependency is one entry of ComponentDependencies.
type Dependency struct {
	VersionRequirement string         `yaml:"VersionRequirement" json:"versionRequirement" validate:"required"`
	DependencyType     DependencyType `yaml:"DependencyType" json:"dependencyType" validate:"required,oneof=HARD SOFT"`
}

// Platform restricts a Manifest to an operating system and architecture.
// Empty fields, "*", and "all" are all treated as wildcards.
type Platform struct {
	OS           string `yaml:"os" json:"os"`
	Architecture string `yaml:"architecture" json:"architecture"`
}

func platformMatches(want string, have string) bool {
	switch want {
	case "", "*", "all":
		return true
	default:
		return want == have
	}
}

// Matches reports whether p matches the running OS and architecture.
func (p Platform) Matches(os, arch string) bool {
	return platformMatches(p.OS, os) && platformMatches(p.Architecture, arch)
}

// Phase is one lifecycle phase (install, startup, run, shutdown,
// bootstrap). A phase configured as a bare string in the recipe document
// is normalized to Phase{Script: <string>}.
type Phase struct {
	Script            string            `yaml:"Script" json:"script"`
	SetEnv            map[string]string `yaml:"SetEnv" json:"setEnv,omitempty"`
	RequiresPrivilege bool              `yaml:"RequiresPrivilege" json:"requiresPrivilege,omitempty"`
	Timeout           *int              `yaml:"Timeout" json:"timeout,omitempty"`
	SkipIf            string            `yaml:"SkipIf" json:"skipIf,omitempty"`
}

// UnmarshalYAML decodes a phase given either as a bare script string or as
// a mapping of the Phase fields.
func (p *Phase) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		p.Script = node.Value
		return nil
	}
	type plainPhase Phase
	return node.Decode((*plainPhase)(p))
}

// DefaultTimeoutSeconds is applied to every phase except run, which has no
// timeout.
const DefaultTimeoutSeconds = 120

// TimeoutSeconds returns the effective timeout for a phase named
// phaseName, honoring the run-phase no-timeout rule.
func (p Phase) TimeoutSeconds(phaseName string) (seconds int, hasTimeout bool) {
	if p.Timeout != nil {
		return *p.Timeout, true
	}
	if phaseName == "run" {
		return 0, false
	}
	return DefaultTimeoutSeconds, true
}

// Lifecycle holds the recognized phases of one manifest. Startup and Run
// are mutually exclusive; Startup is preferred when both are present.
type Lifecycle struct {
	Install   *Phase `yaml:"install" json:"install,omitempty"`
	Startup   *Phase `yaml:"startup" json:"startup,omitempty"`
	Run       *Phase `yaml:"run" json:"run,omitempty"`
	Shutdown  *Phase `yaml:"shutdown" json:"shutdown,omitempty"`
	Bootstrap *Phase `yaml:"bootstrap" json:"bootstrap,omitempty"`
}

// IsEmpty reports whether no phase of l is configured.
func (l Lifecycle) IsEmpty() bool {
	return l.Install == nil && l.Startup == nil && l.Run == nil && l.Shutdown == nil && l.Bootstrap == nil
}

// RunPhase returns the preferred run-style phase (startup over run) along
// with its name, or ("", nil, false) if neither is configured.
func (l Lifecycle) RunPhase() (name string, phase *Phase, ok bool) {
	if l.Startup != nil {
		return "startup", l.Startup, true
	}
	if l.Run != nil {
		return "run", l.Run, true
	}
	return "", nil, false
}

// Manifest is one platform-scoped lifecycle definition.
type Manifest struct {
	Platform   Platform  `yaml:"Platform" json:"platform"`
	Lifecycle  Lifecycle `yaml:"Lifecycle" json:"lifecycle"`
	Selections []string  `yaml:"Selections" json:"selections,omitempty"`
	Artifacts  []string  `yaml:"Artifacts" json:"artifacts,omitempty"`
}

// ComponentConfiguration holds the component's default configuration tree,
// decoded generically (mirrors the JSON shapes internal/config/store
// converts to value.Value).
type ComponentConfiguration struct {
	DefaultConfiguration map[string]interface{} `yaml:"DefaultConfiguration" json:"defaultConfiguration,omitempty"`
}

// Recipe is a full component recipe document.
type Recipe struct {
	ComponentName          string                 `yaml:"ComponentName" json:"componentName" validate:"required"`
	ComponentVersion       string                 `yaml:"ComponentVersion" json:"componentVersion" validate:"required"`
	ComponentDependencies  map[string]Dependency  `yaml:"ComponentDependencies" json:"componentDependencies,omitempty"`
	ComponentConfiguration ComponentConfiguration `yaml:"ComponentConfiguration" json:"componentConfiguration,omitempty"`
	Manifests              []Manifest             `yaml:"Manifests" json:"manifests"`
	// Lifecycle is the top-level fallback lifecycle map, keyed by selection
	// name. For a matching manifest whose own Lifecycle is empty,
	// SelectManifest looks up each of its Selections in order.
	Lifecycle map[string]Lifecycle `yaml:"Lifecycle" json:"lifecycle,omitempty"`
}

// defaultSelections is used in place of a manifest's own Selections list
// when that list is absent or empty.
var defaultSelections = []string{"all"}

// SelectManifest picks the manifest to run for this (os, arch), trying
// every platform-matching manifest in order until one resolves a
// lifecycle: a manifest whose own Lifecycle is non-empty wins outright;
// otherwise its Selections (or, if empty, ["all"]) are looked up in turn
// against the recipe's top-level Lifecycle map, and the first hit wins.
// A manifest that resolves nothing is skipped in favor of the next
// platform-matching manifest, rather than failing the whole selection.
func (r *Recipe) SelectManifest(os, arch string) (Lifecycle, error) {
	matched := false
	for i := range r.Manifests {
		m := &r.Manifests[i]
		if !m.Platform.Matches(os, arch) {
			continue
		}
		matched = true
		if !m.Lifecycle.IsEmpty() {
			return m.Lifecycle, nil
		}

		selections := m.Selections
		if len(selections) == 0 {
			selections = defaultSelections
		}
		for _, sel := range selections {
			if lc, ok := r.Lifecycle[sel]; ok {
				return lc, nil
			}
		}
	}
	if !matched {
		return Lifecycle{}, errNoManifestMatch(os, arch)
	}
	return Lifecycle{}, errNoLifecycleForSelection(os, arch)
}
