// Package names implements namespace-tolerant, case-insensitive lookup
// of object and field identifiers. Identifiers of the form ns__name
// belong to namespace ns; custom identifiers additionally carry a
// __c/__r/__mdt suffix.
package names

import "strings"

var customSuffixes = []string{"__c", "__r", "__mdt"}

// Strip removes a leading ns__ prefix from name. The comparison is
// case-insensitive; the original spelling of the remainder is kept.
func Strip(name, ns string) string {
	if ns == "" || name == "" {
		return name
	}
	prefix := ns + "__"
	if len(name) > len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
		return name[len(prefix):]
	}
	return name
}

// Add prepends ns__ to name when name does not already carry a
// namespace. Custom identifiers (ending __c/__r/__mdt) are namespaced
// in front of their base; any identifier whose base already contains
// __ is returned unchanged.
func Add(name, ns string) string {
	if ns == "" || name == "" {
		return name
	}
	base, suffix := splitCustomSuffix(name)
	if strings.Contains(base, "__") {
		return name
	}
	return ns + "__" + base + suffix
}

func splitCustomSuffix(name string) (base, suffix string) {
	lower := strings.ToLower(name)
	for _, s := range customSuffixes {
		if strings.HasSuffix(lower, s) {
			return name[:len(name)-len(s)], name[len(name)-len(s):]
		}
	}
	return name, ""
}

// candidates yields the lookup forms for key in order: as given,
// stripped, namespaced. All lowercased; duplicates removed.
func candidates(key, ns string) []string {
	lower := strings.ToLower(key)
	out := []string{lower}
	if ns != "" {
		for _, alt := range []string{strings.ToLower(Strip(key, ns)), strings.ToLower(Add(key, ns))} {
			seen := false
			for _, c := range out {
				if c == alt {
					seen = true
					break
				}
			}
			if !seen {
				out = append(out, alt)
			}
		}
	}
	return out
}

// Lookup finds key in a map keyed by lowercased identifiers, trying
// the key itself, then its namespace-stripped form, then its
// namespace-added form. The first hit wins.
func Lookup[V any](m map[string]V, key, ns string) (V, bool) {
	for _, c := range candidates(key, ns) {
		if v, ok := m[c]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Contains is Lookup for set membership
func Contains(set map[string]struct{}, key, ns string) bool {
	_, ok := Lookup(set, key, ns)
	return ok
}

// Includes reports whether list contains key under the same fallback
// rules. List entries are compared lowercased.
func Includes(list []string, key, ns string) bool {
	for _, c := range candidates(key, ns) {
		for _, item := range list {
			if strings.ToLower(item) == c {
				return true
			}
		}
	}
	return false
}
