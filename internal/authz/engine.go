// Package authz evaluates per-destination allow policies assembled from
// configuration of the form
// services.<sourceComponent>.configuration.accessControl.<destination>.<policyId>,
// indexing compiled permissions by destination -> principal -> operation ->
// resource patterns for fast lookup.
package authz

import (
	"sync"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

// wildcardAny is the wildcard principal/operation bucket key, matched last
// in the lookup order.
const wildcardAny = "*"

// Policy is one configured access-control entry before expansion.
type Policy struct {
	PolicyID         string
	PolicyDescription string
	Principals       []string
	Operations       []string
	Resources        []string
	ResourceType     string // "" or "MQTT"; unknown types deny
}

type resourceBucket struct {
	policy   LookupPolicy
	patterns []string
}

// Engine holds compiled permissions for one IPC broker instance.
type Engine struct {
	mu    sync.RWMutex
	table map[string]map[string]map[string]*resourceBucket // dest -> principal -> operation -> bucket
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	return &Engine{table: make(map[string]map[string]map[string]*resourceBucket)}
}

// AddPolicy expands a configured policy into per-(principal,operation)
// resource buckets for destination dest. Empty Operations or Principals
// rejects the policy; an unrecognized ResourceType is
// accepted here but always denies at lookup time (defense in depth — the
// resourceType is re-validated by the caller against the request's
// resourceType too).
func (e *Engine) AddPolicy(dest string, p Policy) error {
	if len(p.Operations) == 0 {
		return apierrors.WrapKind(apierrors.New("policy has no operations"), apierrors.ErrInvalid, "add policy %s", p.PolicyID)
	}
	if len(p.Principals) == 0 {
		return apierrors.WrapKind(apierrors.New("policy has no principals"), apierrors.ErrInvalid, "add policy %s", p.PolicyID)
	}

	if p.ResourceType != "" && p.ResourceType != "MQTT" {
		// Accepted, but none of its resources are recorded, so it grants nothing.
		return nil
	}

	lookup := Standard
	if p.ResourceType == "MQTT" {
		lookup = MQTTStyle
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.table[dest]; !ok {
		e.table[dest] = make(map[string]map[string]*resourceBucket)
	}
	for _, principal := range p.Principals {
		if _, ok := e.table[dest][principal]; !ok {
			e.table[dest][principal] = make(map[string]*resourceBucket)
		}
		for _, op := range p.Operations {
			bucket, ok := e.table[dest][principal][op]
			if !ok {
				bucket = &resourceBucket{policy: lookup}
				e.table[dest][principal][op] = bucket
			}
			bucket.patterns = append(bucket.patterns, p.Resources...)
		}
	}
	return nil
}

// IsAuthorized evaluates (dest, principal, op, resource) under resourceType
// ("" for Standard, "MQTT" for MQTT-style). Lookup order:
// (principal, op) -> (principal, *) -> (*, op) -> (*, *); first hit wins.
// An unknown resourceType always denies.
func (e *Engine) IsAuthorized(dest, principal, op, resource, resourceType string) bool {
	if resourceType != "" && resourceType != "MQTT" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	byPrincipal, ok := e.table[dest]
	if !ok {
		return false
	}

	candidates := []string{principal, wildcardAny}
	if principal == wildcardAny {
		candidates = []string{wildcardAny}
	}
	ops := []string{op, wildcardAny}
	if op == wildcardAny {
		ops = []string{wildcardAny}
	}

	for _, p := range candidates {
		byOp, ok := byPrincipal[p]
		if !ok {
			continue
		}
		for _, o := range ops {
			bucket, ok := byOp[o]
			if !ok {
				continue
			}
			for _, pattern := range bucket.patterns {
				if Match(bucket.policy, pattern, resource) {
					return true
				}
			}
		}
	}
	return false
}
