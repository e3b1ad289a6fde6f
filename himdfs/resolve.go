package himdfs

import (
	"path"
	"strings"
)

// Resolve canonicalises wantPath against the real entries List returns,
// walking one path component at a time and matching case-insensitively.
// It returns the path exactly as the filesystem spells it, or wantPath
// unchanged if any component along the way cannot be found (callers then
// get a normal not-found error from the underlying Open/GetSize call).
func Resolve(fs FileSystem, wantPath string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(wantPath, "\\", "/"))
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")

	resolved := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		entries, err := fs.List(resolved)
		if err != nil {
			return wantPath, err
		}

		match := part
		found := false
		for _, e := range entries {
			if strings.EqualFold(e, part) {
				match = e
				found = true
				break
			}
		}
		if !found {
			return wantPath, nil
		}
		resolved = resolved + "/" + match
	}
	return resolved, nil
}
