package sorter

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/meko-christian/mail-sorter/internal/mailstore"
)

// ResolveResult is the outcome of mapping a folder label to a concrete
// mailbox name.
type ResolveResult struct {
	Folder string
	OK     bool
	// Via names the transform or list heuristic that matched.
	Via string
}

// Heuristic extracts a short name from a LIST entry so it can be compared
// against a label.
type Heuristic struct {
	Name    string
	Extract func(entry mailstore.Folder, prefixes []string) string
}

var trailingQuoted = regexp.MustCompile(`"([^"]*)"$`)

// Heuristics are applied in order to the materialized folder list when no
// probe succeeded.
var Heuristics = []Heuristic{
	{Name: "listed name", Extract: func(e mailstore.Folder, _ []string) string {
		return e.Name
	}},
	{Name: "trailing quoted segment", Extract: func(e mailstore.Folder, _ []string) string {
		if m := trailingQuoted.FindStringSubmatch(e.Name); m != nil {
			return m[1]
		}
		return ""
	}},
	{Name: "last segment", Extract: func(e mailstore.Folder, _ []string) string {
		return lastSegment(e.Name, e.Delimiter)
	}},
	{Name: "known root", Extract: func(e mailstore.Folder, prefixes []string) string {
		return stripPrefix(e.Name, prefixes)
	}},
}

// Resolver maps folder labels to mailbox names the server accepts. Results,
// negative ones included, are memoized for the lifetime of the resolver,
// which is one run.
type Resolver struct {
	store      Store
	transforms []Transform
	prefixes   []string
	log        *slog.Logger

	cache   map[string]ResolveResult
	listing []mailstore.Folder
	listed  bool
}

func NewResolver(store Store, prefixes []string, log *slog.Logger) *Resolver {
	if prefixes == nil {
		prefixes = DefaultPrefixes
	}

	return &Resolver{
		store:      store,
		transforms: Transforms(prefixes),
		prefixes:   prefixes,
		log:        log,
		cache:      make(map[string]ResolveResult),
	}
}

// Candidates returns the ordered probe list for label.
func (r *Resolver) Candidates(label string) []string {
	return Candidates(label, r.transforms)
}

// Resolve probes the candidates for label with EXAMINE and falls back to the
// folder list. Probing changes the server-side selection; the previous
// selection is restored on a best-effort basis, but callers select the folder
// they need before every message operation.
func (r *Resolver) Resolve(label string) ResolveResult {
	if res, ok := r.cache[label]; ok {
		return res
	}

	res := r.probe(label)
	if !res.OK {
		res = r.fromListing(label)
	}

	if res.OK {
		r.log.Info("Resolved folder", "label", label, "folder", res.Folder, "via", res.Via)
	} else {
		r.log.Warn("Folder does not exist or cannot be selected", "label", label,
			"hint", "Create it manually in your mail client")
	}

	r.cache[label] = res
	return res
}

func (r *Resolver) probe(label string) ResolveResult {
	prev, prevReadOnly := r.store.Selected()
	defer r.restore(prev, prevReadOnly)

	for _, c := range candidateList(label, r.transforms) {
		if _, err := r.store.Examine(c.Name); err != nil {
			r.log.Debug("Folder probe failed", "candidate", c.Name, "error", err)
			continue
		}

		return ResolveResult{Folder: c.Name, OK: true, Via: c.Via}
	}

	return ResolveResult{}
}

func (r *Resolver) restore(prev string, readOnly bool) {
	if prev == "" {
		return
	}
	if cur, ro := r.store.Selected(); cur == prev && ro == readOnly {
		return
	}

	var err error
	if readOnly {
		_, err = r.store.Examine(prev)
	} else {
		_, err = r.store.Select(prev)
	}

	if err != nil {
		r.log.Debug("Failed to restore previous folder selection", "folder", prev, "error", err)
	}
}

func (r *Resolver) fromListing(label string) ResolveResult {
	folders := r.folders()
	if len(folders) == 0 {
		return ResolveResult{}
	}

	wanted := labelKeys(label, r.prefixes)

	for _, h := range Heuristics {
		for _, entry := range folders {
			if !entry.Selectable() {
				continue
			}

			key := h.Extract(entry, r.prefixes)
			if key == "" {
				continue
			}

			for _, w := range wanted {
				if strings.EqualFold(key, w) {
					return ResolveResult{Folder: entry.Name, OK: true, Via: h.Name}
				}
			}
		}
	}

	return ResolveResult{}
}

// folders returns the folder list, fetched once per run.
func (r *Resolver) folders() []mailstore.Folder {
	if r.listed {
		return r.listing
	}

	folders, err := r.store.ListFolders()
	if err != nil {
		r.log.Error("Failed to get folders", "error", err)
		return nil
	}

	r.listing = folders
	r.listed = true

	return folders
}

// labelKeys are the forms of label a listed short name may equal: the label
// itself, its last segment and the label without a known root.
func labelKeys(label string, prefixes []string) []string {
	label = strings.Trim(strings.TrimSpace(label), `"`)
	keys := []string{label}

	for _, k := range []string{lastSegment(label, ""), stripPrefix(label, prefixes)} {
		if k != "" && !containsFold(keys, k) {
			keys = append(keys, k)
		}
	}

	return keys
}

// lastSegment returns the text after the last delimiter. Without a known
// delimiter both "/" and "." are tried.
func lastSegment(name, delim string) string {
	delims := []string{"/", "."}
	if delim != "" {
		delims = []string{delim}
	}

	best := -1
	width := 0
	for _, d := range delims {
		if i := strings.LastIndex(name, d); i > best {
			best, width = i, len(d)
		}
	}

	if best < 0 || best+width >= len(name) {
		return ""
	}

	return name[best+width:]
}

func stripPrefix(name string, prefixes []string) string {
	for _, p := range prefixes {
		if len(name) > len(p) && strings.EqualFold(name[:len(p)], p) {
			return name[len(p):]
		}
	}

	return ""
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}

	return false
}
