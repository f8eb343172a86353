package sorter

import "strings"

// Transform derives one concrete folder name from an abstract label.
type Transform struct {
	Name  string
	Apply func(label string) string
}

var (
	Exact = Transform{Name: "exact", Apply: func(l string) string { return l }}
	Upper = Transform{Name: "upper", Apply: strings.ToUpper}
	Lower = Transform{Name: "lower", Apply: strings.ToLower}
)

// Prefixed nests the label under a root such as "INBOX." or "Folders/".
func Prefixed(prefix string) Transform {
	return Transform{
		Name:  "prefix " + prefix,
		Apply: func(l string) string { return prefix + l },
	}
}

// DefaultPrefixes covers slash and dot delimited INBOX hierarchies and the
// Folders/Labels roots exposed by Proton Mail Bridge.
var DefaultPrefixes = []string{"INBOX/", "INBOX.", "Folders/", "Labels/"}

// Transforms returns the probe order: exact, upper, lower, then one transform
// per root prefix. Names are never wrapped in quotes here; the client quotes
// every mailbox argument on the wire.
func Transforms(prefixes []string) []Transform {
	out := []Transform{Exact, Upper, Lower}
	for _, p := range prefixes {
		out = append(out, Prefixed(p))
	}

	return out
}

// CreateTransforms is the order tried when creating a folder: the label as
// given, then nested under each root prefix.
func CreateTransforms(prefixes []string) []Transform {
	out := []Transform{Exact}
	for _, p := range prefixes {
		out = append(out, Prefixed(p))
	}

	return out
}

// candidate is one concrete folder name and the transform that produced it.
type candidate struct {
	Name string
	Via  string
}

// Candidates applies transforms to label in order, dropping empty and
// duplicate names.
func Candidates(label string, transforms []Transform) []string {
	var names []string
	for _, c := range candidateList(label, transforms) {
		names = append(names, c.Name)
	}

	return names
}

func candidateList(label string, transforms []Transform) []candidate {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}

	seen := make(map[string]bool, len(transforms))
	out := make([]candidate, 0, len(transforms))

	for _, t := range transforms {
		name := t.Apply(label)
		if name == "" || seen[name] {
			continue
		}

		seen[name] = true
		out = append(out, candidate{Name: name, Via: t.Name})
	}

	return out
}
