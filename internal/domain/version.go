package domain

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/mod/semver"
)

// CompareVersions compares two version strings and returns -1, 0 or 1.
// Versions that parse as semantic versions (with or without a leading "v") are compared
// with semver rules; build metadata such as "+mc1.20.1" is ignored. Anything else falls
// back to comparing dot-separated numeric segments, treating missing segments as zero.
func CompareVersions(v1, v2 string) int {
	s1, s2 := canonicalSemver(v1), canonicalSemver(v2)
	if semver.IsValid(s1) && semver.IsValid(s2) {
		return semver.Compare(s1, s2)
	}
	return compareSegments(v1, v2)
}

// IsNewerVersion reports whether candidate is strictly newer than current
func IsNewerVersion(current, candidate string) bool {
	return CompareVersions(current, candidate) < 0
}

func canonicalSemver(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	return "v" + v
}

func compareSegments(v1, v2 string) int {
	a, b := numericSegments(v1), numericSegments(v2)
	for len(a) < len(b) {
		a = append(a, 0)
	}
	for len(b) < len(a) {
		b = append(b, 0)
	}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// numericSegments extracts the leading number of every dot-separated segment of the
// release part, e.g. "1.20.4-rc1" -> [1 20 4].
func numericSegments(v string) []int {
	v = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(v), "v"), "V")
	if i := strings.IndexAny(v, "-+ "); i >= 0 {
		v = v[:i]
	}
	if v == "" {
		return nil
	}

	var out []int
	for _, part := range strings.Split(v, ".") {
		end := strings.IndexFunc(part, func(r rune) bool { return !unicode.IsDigit(r) })
		if end >= 0 {
			part = part[:end]
		}
		n, _ := strconv.Atoi(part)
		out = append(out, n)
	}
	return out
}

// GameVersionLine returns the "major.minor" line of a Minecraft release, e.g. "1.20.4" -> "1.20".
// Non-release identifiers (snapshots) are returned unchanged.
func GameVersionLine(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) < 2 {
		return v
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return v
		}
	}
	return parts[0] + "." + parts[1]
}
