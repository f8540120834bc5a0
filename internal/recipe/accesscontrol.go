package recipe

import "strings"

// AccessControlEntry is one expanded accessControl policy read from a
// recipe's ComponentConfiguration.DefaultConfiguration, ready to hand to
// authz.Engine.AddPolicy.
type AccessControlEntry struct {
	PolicyID    string
	Description string
	Operations  []string
	Resources   []string
}

// AccessControlPolicies reads
// services.<component>.configuration.accessControl.<destination>.<policyId>
// out of a recipe's default configuration tree. The destination level is
// flattened away: this rendition's IPC broker authorizes with dest==op (see
// DESIGN.md), so only the policy's own operations/resources/id survive.
func (r *Recipe) AccessControlPolicies() []AccessControlEntry {
	raw, ok := r.ComponentConfiguration.DefaultConfiguration["accessControl"]
	if !ok {
		return nil
	}
	byDestination, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}

	var entries []AccessControlEntry
	for _, destRaw := range byDestination {
		policies, ok := destRaw.(map[string]interface{})
		if !ok {
			continue
		}
		for policyID, policyRaw := range policies {
			policy, ok := policyRaw.(map[string]interface{})
			if !ok {
				continue
			}
			entries = append(entries, AccessControlEntry{
				PolicyID:    policyID,
				Description: stringField(policy, "policyDescription"),
				Operations:  stringListField(policy, "operations"),
				Resources:   stringListField(policy, "resources"),
			})
		}
	}
	return entries
}

// NormalizeOperation strips the "aws.greengrass#" (or any "ns#") namespace
// prefix real recipes put on operation names, since the broker's operation
// strings (GetConfiguration, PublishToIoTCore, ...) are unprefixed.
func NormalizeOperation(op string) string {
	if i := strings.LastIndexByte(op, '#'); i >= 0 {
		return op[i+1:]
	}
	return op
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringListField(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// mqttOperations is the set of IPC operations whose resource is a topic
// matched with MQTT-style wildcards (+ / #), per requestResource in
// internal/ipc/handlers.go.
var mqttOperations = map[string]bool{
	"PublishToIoTCore":   true,
	"SubscribeToIoTCore": true,
	"PublishToTopic":     true,
	"SubscribeToTopic":   true,
}

// IsMQTTStyleOperation reports whether op's resources should be compiled
// with MQTT-style wildcard matching rather than the standard glob.
func IsMQTTStyleOperation(op string) bool {
	return mqttOperations[op]
}
