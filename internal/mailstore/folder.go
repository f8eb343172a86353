package mailstore

import (
	"fmt"
	"strings"
)

// Folder is one LIST response entry.
type Folder struct {
	Name       string
	Delimiter  string
	Attributes []string
}

// Raw renders the entry the way it appears on the wire, e.g.
// (\HasNoChildren) "/" "Folders/Bills".
func (f Folder) Raw() string {
	delim := "NIL"
	if f.Delimiter != "" {
		delim = fmt.Sprintf("%q", f.Delimiter)
	}

	return fmt.Sprintf("(%s) %s %q", strings.Join(f.Attributes, " "), delim, f.Name)
}

// Selectable reports whether the entry can be opened.
func (f Folder) Selectable() bool {
	for _, attr := range f.Attributes {
		if strings.EqualFold(attr, `\Noselect`) || strings.EqualFold(attr, `\NonExistent`) {
			return false
		}
	}

	return true
}
