package sorter

import (
	"errors"
	"fmt"
	"log/slog"
)

// EnsureFolder makes sure label exists on the server. An existing folder is
// returned as is; otherwise each creation format is tried in order and the
// first one the server accepts is verified with a fresh resolve.
func EnsureFolder(store Store, label string, prefixes []string, log *slog.Logger) (string, error) {
	if prefixes == nil {
		prefixes = DefaultPrefixes
	}

	if res := NewResolver(store, prefixes, log).Resolve(label); res.OK {
		log.Info("Folder already exists", "label", label, "folder", res.Folder)
		return res.Folder, nil
	}

	var errs []error
	for _, c := range candidateList(label, CreateTransforms(prefixes)) {
		if err := store.Create(c.Name); err != nil {
			log.Debug("Failed to create folder", "candidate", c.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			continue
		}

		log.Info("Created folder", "label", label, "folder", c.Name, "via", c.Via)

		if res := NewResolver(store, prefixes, log).Resolve(label); res.OK {
			return res.Folder, nil
		}

		return c.Name, nil
	}

	return "", fmt.Errorf("failed to create folder %q: %w", label, errors.Join(errs...))
}
