package config

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultFallback is the category every unrecognized classification falls back to.
const DefaultFallback = "manual_review"

var (
	ErrCategoryExists   = errors.New("category already exists")
	ErrUnknownCategory  = errors.New("category does not exist")
	ErrFallbackCategory = errors.New("fallback category cannot be removed")
	ErrInvalidCategory  = errors.New("invalid category")
)

// Category maps a classification label to its destination folder label.
type Category struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Folder string `mapstructure:"folder" yaml:"folder"`
}

// Categories is an ordered, immutable set of categories. Order is the
// configuration order and decides which name wins when several match an
// oracle answer. Mutating operations return a new value.
type Categories struct {
	items    []Category
	fallback string
}

// NewCategories builds a category set. The fallback category must be present.
func NewCategories(fallback string, items ...Category) (Categories, error) {
	if fallback == "" {
		fallback = DefaultFallback
	}

	cats := Categories{fallback: fallback}
	seen := make(map[string]bool, len(items))

	for _, c := range items {
		c.Name = strings.TrimSpace(c.Name)
		c.Folder = strings.TrimSpace(c.Folder)

		if c.Name == "" || c.Folder == "" {
			return Categories{}, fmt.Errorf("%w: name and folder are required (got %q -> %q)", ErrInvalidCategory, c.Name, c.Folder)
		}
		if seen[c.Name] {
			return Categories{}, fmt.Errorf("%w: %s", ErrCategoryExists, c.Name)
		}

		seen[c.Name] = true
		cats.items = append(cats.items, c)
	}

	if !seen[fallback] {
		return Categories{}, fmt.Errorf("%w: fallback category %q is not configured", ErrInvalidCategory, fallback)
	}

	return cats, nil
}

// DefaultCategories mirrors the categories shipped with the sample config.
func DefaultCategories() Categories {
	cats, _ := NewCategories(DefaultFallback,
		Category{Name: DefaultFallback, Folder: "Folders/ManualReview"},
		Category{Name: "bills", Folder: "Folders/Bills"},
		Category{Name: "promotional", Folder: "Folders/Promotions"},
	)

	return cats
}

// All returns a copy of the categories in configuration order.
func (c Categories) All() []Category {
	return append([]Category(nil), c.items...)
}

// Names returns the category names in configuration order.
func (c Categories) Names() []string {
	names := make([]string, 0, len(c.items))
	for _, item := range c.items {
		names = append(names, item.Name)
	}

	return names
}

func (c Categories) Len() int { return len(c.items) }

// Get returns the category with the given name.
func (c Categories) Get(name string) (Category, bool) {
	for _, item := range c.items {
		if item.Name == name {
			return item, true
		}
	}

	return Category{}, false
}

// Fallback returns the fallback category.
func (c Categories) Fallback() Category {
	cat, _ := c.Get(c.fallback)
	return cat
}

// Resolve returns the category for name, or the fallback category when name
// is empty or not configured. The boolean reports whether name was known.
func (c Categories) Resolve(name string) (Category, bool) {
	if cat, ok := c.Get(name); ok {
		return cat, true
	}

	return c.Fallback(), false
}

// Add returns a new set with the category appended.
func (c Categories) Add(name, folder string) (Categories, error) {
	name = strings.TrimSpace(name)
	folder = strings.TrimSpace(folder)

	if name == "" || folder == "" {
		return c, fmt.Errorf("%w: name and folder are required", ErrInvalidCategory)
	}
	if _, ok := c.Get(name); ok {
		return c, fmt.Errorf("%w: %s", ErrCategoryExists, name)
	}

	next := c.clone()
	next.items = append(next.items, Category{Name: name, Folder: folder})

	return next, nil
}

// Remove returns a new set without the category. The fallback category is
// never removed.
func (c Categories) Remove(name string) (Categories, error) {
	if name == c.fallback {
		return c, fmt.Errorf("%w: %s", ErrFallbackCategory, name)
	}
	if _, ok := c.Get(name); !ok {
		return c, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}

	next := Categories{fallback: c.fallback}
	for _, item := range c.items {
		if item.Name != name {
			next.items = append(next.items, item)
		}
	}

	return next, nil
}

// Update returns a new set with the category pointing at folder.
func (c Categories) Update(name, folder string) (Categories, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return c, fmt.Errorf("%w: folder is required", ErrInvalidCategory)
	}
	if _, ok := c.Get(name); !ok {
		return c, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}

	next := c.clone()
	for i := range next.items {
		if next.items[i].Name == name {
			next.items[i].Folder = folder
		}
	}

	return next, nil
}

func (c Categories) clone() Categories {
	return Categories{
		items:    append([]Category(nil), c.items...),
		fallback: c.fallback,
	}
}

// toMaps renders the categories as plain maps, the shape viper stores defaults in.
func (c Categories) toMaps() []map[string]any {
	out := make([]map[string]any, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, map[string]any{"name": item.Name, "folder": item.Folder})
	}

	return out
}
