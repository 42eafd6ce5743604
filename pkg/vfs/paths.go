package vfs

import (
	"path"
	"strings"
	"unicode/utf8"

	"github.com/paninifs/panini/pkg/vfs/status"
)

const (
	rootPath = "/"

	// DefaultMaxComponentLength is the longest name accepted for a path component
	DefaultMaxComponentLength = 255

	defaultStreamSuffix = "::$DATA"
	reservedChars       = "<>:\"|?*"
)

// CleanPath normalizes a host path to the canonical form used by the namespace:
// slash separated, rooted, without empty, "." or ".." components.
//
// The default data stream suffix "::$DATA" is accepted and stripped.
func CleanPath(pth string, maxComponentLength int) (string, error) {
	if strings.IndexByte(pth, 0) >= 0 {
		return "", status.ErrInvalidName.WrapMessage("NUL in %q", pth)
	}
	if maxComponentLength <= 0 {
		maxComponentLength = DefaultMaxComponentLength
	}
	pth = strings.TrimSuffix(strings.ReplaceAll(pth, `\`, "/"), defaultStreamSuffix)

	components := strings.Split(pth, "/")
	kept := components[:0]
	for _, c := range components {
		switch c {
		case "":
			continue
		case ".", "..":
			return "", status.ErrInvalidName.WrapMessage("relative component in %q", pth)
		}
		if strings.ContainsAny(c, reservedChars) {
			return "", status.ErrInvalidName.WrapMessage("reserved character in %q", c)
		}
		if utf8.RuneCountInString(c) > maxComponentLength {
			return "", status.ErrInvalidName.WrapMessage("component longer than %d: %q", maxComponentLength, c)
		}
		kept = append(kept, c)
	}
	return rootPath + strings.Join(kept, "/"), nil
}

func parentOf(pth string) string {
	return path.Dir(pth)
}

func baseOf(pth string) string {
	return path.Base(pth)
}

// childPrefix is the radix prefix shared by all descendants of a directory
func childPrefix(dir string) string {
	if dir == rootPath {
		return rootPath
	}
	return dir + "/"
}

// isWithin tells if pth is dir itself or one of its descendants
func isWithin(pth, dir string) bool {
	return pth == dir || strings.HasPrefix(pth, childPrefix(dir))
}

// rebase moves pth from under oldDir to under newDir
func rebase(pth, oldDir, newDir string) string {
	if pth == oldDir {
		return newDir
	}
	return childPrefix(newDir) + strings.TrimPrefix(pth, childPrefix(oldDir))
}
