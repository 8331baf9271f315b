package core

import (
	"strings"
	"unicode"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// IDIndex answers "is this registry project already installed?" for search results.
// An item is indexed by registry id, normalized display name and filename slug so that
// files dropped in by hand still match.
type IDIndex struct {
	keys map[string]*domain.ContentItem
}

// NewIDIndex builds an index over installed items
func NewIDIndex(items []domain.ContentItem) *IDIndex {
	idx := &IDIndex{keys: make(map[string]*domain.ContentItem, len(items)*3)}
	for i := range items {
		idx.Add(&items[i])
	}
	return idx
}

// Add indexes one item
func (x *IDIndex) Add(item *domain.ContentItem) {
	if item.RegistryID != "" {
		x.keys[idKey(item.SourceID, item.RegistryID)] = item
	}
	if n := normalizeName(item.Name); n != "" {
		x.keys["name:"+n] = item
	}
	if slug := ParseContentFilename(item.Filename).Slug; slug != "" {
		x.keys["slug:"+slug] = item
	}
}

// Lookup returns the installed item matching a project, if any
func (x *IDIndex) Lookup(p domain.ContentProject) (*domain.ContentItem, bool) {
	candidates := []string{idKey(p.SourceID, p.ID)}
	if p.Slug != "" {
		candidates = append(candidates, idKey(p.SourceID, p.Slug), "slug:"+Slugify(p.Slug))
	}
	if n := normalizeName(p.Name); n != "" {
		candidates = append(candidates, "name:"+n)
	}

	for _, k := range candidates {
		if item, ok := x.keys[k]; ok {
			return item, true
		}
	}
	return nil, false
}

// IsInstalled reports whether any key of the project matches an installed item
func (x *IDIndex) IsInstalled(p domain.ContentProject) bool {
	_, ok := x.Lookup(p)
	return ok
}

// Len returns the number of index keys
func (x *IDIndex) Len() int {
	return len(x.keys)
}

func idKey(sourceID, id string) string {
	return "id:" + sourceID + ":" + id
}

// normalizeName lowercases and keeps only letters and digits: "Just Enough Items (JEI)" -> "justenoughitemsjei"
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
