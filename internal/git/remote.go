package git

import "strings"

// NormalizeRemote lower-cases a remote URL and strips path separators, so
// that URLs differing only in case or slashes compare equal.
func NormalizeRemote(url string) string {
	return strings.NewReplacer("/", "", `\`, "").Replace(strings.ToLower(strings.TrimSpace(url)))
}

// SameRemote reports whether two remote URLs refer to the same location
func SameRemote(a, b string) bool {
	return NormalizeRemote(a) == NormalizeRemote(b)
}
