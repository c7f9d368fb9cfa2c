// Package pkgname normalizes fully qualified package identifiers to bare
// package names.
//
// Package managers report installed units as name-version-release strings
// (e.g. "glibc-minimal-langpack-2.39-5.fc40"). The name may contain
// hyphens, but the version and release fields never do, so the bare name is
// everything left of the two rightmost hyphen-delimited fields.
// Normalization is single-pass: a bare name that itself has three or more
// hyphen-delimited fields is indistinguishable from an identifier, so each
// identifier is normalized exactly once and bare names are never fed back
// in.
package pkgname

import (
	"fmt"
	"strings"
)

// Name returns the bare package name of a fully qualified identifier.
// Identifiers with fewer than three hyphen-delimited fields are returned
// unchanged; a bare name with three or more fields (glibc-minimal-langpack)
// is stripped like an identifier, so Name must be applied exactly once.
// Malformed input degrades to a conservative result rather than an error:
// an over-long name only makes pruning less aggressive, never incorrect.
func Name(id string) string {
	fields := strings.Split(id, "-")
	if len(fields) < 3 {
		return id
	}
	return strings.Join(fields[:len(fields)-2], "-")
}

// NameAll normalizes every identifier in ids. The result preserves input
// order and may contain duplicates; callers dedupe with setutil.
func NameAll(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, Name(id))
	}
	return names
}

// Validate checks that name is usable as a package name argument to the
// package database: non-empty, no whitespace, no path separators, no shell
// metacharacters.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("package name is empty")
	}
	if strings.ContainsAny(name, " \t\n/\\$;|&`'\"") {
		return fmt.Errorf("invalid package name %q", name)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("package name %q starts with a dash", name)
	}
	return nil
}
