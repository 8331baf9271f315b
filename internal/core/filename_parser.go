package core

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

// ParsedFilename contains what can be guessed about a content file from its name alone
type ParsedFilename struct {
	Name    string // Display name, separators replaced by spaces
	Version string // Content version, empty when none was found
	Slug    string // Lowercase dash-separated name without loader tags, for matching registry slugs
}

// contentExtensions are the file types recognized in content directories
var contentExtensions = []string{".jar", ".zip"}

// nameEnd finds where the name portion stops: the first separator followed by a version number
var nameEnd = regexp.MustCompile(`[-_ +][vV]?\d+\.\d`)

// versionPattern matches dotted versions with an optional lettered suffix, e.g. 0.5.3+mc1.20.1
var versionPattern = regexp.MustCompile(`\d+(?:\.\d+)+(?:[-+][a-zA-Z][\w.]*)?`)

// gameVersionPattern recognizes a bare Minecraft release such as 1.20 or 1.20.1
var gameVersionPattern = regexp.MustCompile(`^1\.\d{1,2}(?:\.\d{1,2})?$`)

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// gameVersionTag matches tags like "mc1.20.1" embedded in names
var gameVersionTag = regexp.MustCompile(`mc\d+(?:\.\d+)*`)

// loaderTags are dropped from slugs so "sodium-fabric" matches the registry slug "sodium"
var loaderTags = map[string]bool{
	"fabric":   true,
	"forge":    true,
	"neoforge": true,
	"quilt":    true,
}

// ParseContentFilename extracts a name, version and slug from a mod or pack filename like
// "sodium-fabric-0.5.3+mc1.20.1.jar" or "jei-1.20.1-forge-15.2.0.27.jar".
// The Minecraft version commonly embedded in filenames is skipped when another version is present.
func ParseContentFilename(filename string) ParsedFilename {
	base := stripExtension(strings.TrimSuffix(filepath.Base(filename), domain.DisabledSuffix))

	name, rest := base, ""
	if loc := nameEnd.FindStringIndex(base); loc != nil && loc[0] > 0 {
		name, rest = base[:loc[0]], base[loc[0]+1:]
	}

	return ParsedFilename{
		Name:    strings.Join(strings.FieldsFunc(name, isNameSeparator), " "),
		Version: pickVersion(rest),
		Slug:    Slugify(name),
	}
}

// Slugify lowercases s and joins its words with dashes. Loader and game version tags after
// the first word are dropped.
func Slugify(s string) string {
	s = gameVersionTag.ReplaceAllString(strings.ToLower(s), "")

	var words []string
	for _, w := range strings.Split(slugSeparators.ReplaceAllString(s, "-"), "-") {
		if w == "" || (len(words) > 0 && loaderTags[w]) {
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, "-")
}

func pickVersion(s string) string {
	matches := versionPattern.FindAllString(s, -1)
	if len(matches) == 0 {
		return ""
	}
	for _, m := range matches {
		core := m
		if i := strings.IndexAny(m, "-+"); i >= 0 {
			core = m[:i]
		}
		if !gameVersionPattern.MatchString(core) {
			return m
		}
	}
	return matches[0]
}

func isNameSeparator(r rune) bool {
	return r == '-' || r == '_' || r == ' '
}

// stripExtension removes a content archive extension from a filename
func stripExtension(filename string) string {
	filename = filepath.Base(filename)
	for _, ext := range contentExtensions {
		if strings.HasSuffix(strings.ToLower(filename), ext) {
			return filename[:len(filename)-len(ext)]
		}
	}
	return filename
}
