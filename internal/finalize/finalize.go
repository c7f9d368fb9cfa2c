// Package finalize turns a pruned installroot into a finished image root.
//
// Finalization is the lowest-rigor stage of the pipeline: linker cache
// regeneration and ELF stripping are best-effort, and cleanup is plain
// deletion outside a small allow-list. Two rules are invariants rather than
// cleanup steps: the scanner metadata directory always exists in the result
// (empty if nothing populated it), and the package database directory is
// never part of any cleanup glob.
package finalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atgreen/do-better/internal/buildinfo"
	"github.com/atgreen/do-better/internal/fsops"
)

// packageDBDirs are package database locations, relative to the target
// root. Nothing under these paths is ever deleted.
var packageDBDirs = []string{
	"usr/lib/sysimage/rpm",
	"var/lib/rpm",
}

// cleanupGlobs name cache, log, doc and man content deleted from every
// image, relative to the target root.
var cleanupGlobs = []string{
	"var/cache/*",
	"var/log/*",
	"usr/share/doc/*",
	"usr/share/man/*",
	"usr/share/info/*",
}

// localeDirs are pruned down to the locale allow-list.
var localeDirs = []string{
	"usr/share/locale",
	"usr/lib/locale",
}

// elfDirs are searched for executables when stripping is requested.
var elfDirs = []string{
	"usr/bin",
	"usr/sbin",
	"usr/libexec",
}

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Request describes one finalization run.
type Request struct {
	// Root is the target root to finalize.
	Root string

	// Manifest is written into the scanner metadata directory. May be nil;
	// the directory is created either way.
	Manifest *buildinfo.Manifest

	// StripELF enables best-effort debug symbol stripping.
	StripELF bool

	// LocaleAllowlist lists the locale entries to retain.
	LocaleAllowlist []string

	// AppUser and AppUID define the non-root application identity.
	AppUser string
	AppUID  int
}

// Result reports what finalization did.
type Result struct {
	// Warnings lists best-effort steps that failed.
	Warnings []string

	// Stripped is the number of ELF files stripped.
	Stripped int
}

// Finalizer performs the finalization stage.
type Finalizer struct {
	fs    fsops.FS
	tools Toolchain
	info  *buildinfo.Writer
}

// New creates a new Finalizer.
func New(fs fsops.FS, tools Toolchain, info *buildinfo.Writer) *Finalizer {
	return &Finalizer{fs: fs, tools: tools, info: info}
}

// Finalize runs user registration, linker cache refresh, optional ELF
// stripping, cleanup, and metadata preservation against req.Root.
func (f *Finalizer) Finalize(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{}

	if err := f.writeUsers(req.Root, req.AppUser, req.AppUID); err != nil {
		return nil, fmt.Errorf("failed to register users: %w", err)
	}

	if err := f.tools.Ldconfig(ctx, req.Root); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("linker cache not refreshed: %v", err))
	}

	if req.StripELF {
		stripped, warnings := f.stripExecutables(ctx, req.Root)
		result.Stripped = stripped
		result.Warnings = append(result.Warnings, warnings...)
	}

	if err := f.cleanup(req.Root, req.LocaleAllowlist); err != nil {
		return nil, err
	}

	// The scanner metadata directory exists in every image, populated or
	// not, and is written after cleanup so no cleanup rule can touch it.
	if req.Manifest != nil {
		if err := f.info.Write(req.Root, req.Manifest); err != nil {
			return nil, err
		}
	} else if err := f.info.EnsureDir(req.Root); err != nil {
		return nil, err
	}

	return result, nil
}

// writeUsers registers a minimal user and group database: root plus one
// non-root application identity.
func (f *Finalizer) writeUsers(root, appUser string, appUID int) error {
	passwd := fmt.Sprintf("root:x:0:0:root:/root:/bin/bash\n%s:x:%d:%d::/home/%s:/sbin/nologin\n",
		appUser, appUID, appUID, appUser)
	group := fmt.Sprintf("root:x:0:\n%s:x:%d:\n", appUser, appUID)

	if err := f.fs.AtomicWrite(filepath.Join(root, "etc", "passwd"), []byte(passwd), 0644); err != nil {
		return err
	}
	if err := f.fs.AtomicWrite(filepath.Join(root, "etc", "group"), []byte(group), 0644); err != nil {
		return err
	}
	return f.fs.MkdirAll(filepath.Join(root, "home", appUser), 0755)
}

// stripExecutables strips ELF executables under the usual binary
// directories. Failures degrade to warnings.
func (f *Finalizer) stripExecutables(ctx context.Context, root string) (int, []string) {
	var warnings []string
	stripped := 0

	for _, dir := range elfDirs {
		base := filepath.Join(root, dir)
		exists, err := f.fs.Exists(base)
		if err != nil || !exists {
			continue
		}

		err = f.fs.Walk(base, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() || info.Mode()&0111 == 0 {
				return nil
			}
			ok, err := f.isELF(path)
			if err != nil || !ok {
				return nil
			}
			if err := f.tools.Strip(ctx, path); err != nil {
				warnings = append(warnings, fmt.Sprintf("strip %s: %v", path, err))
				return nil
			}
			stripped++
			return nil
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("walk %s: %v", base, err))
		}
	}
	return stripped, warnings
}

// isELF reads only the magic bytes; candidate binaries are never loaded
// whole.
func (f *Finalizer) isELF(path string) (bool, error) {
	r, err := f.fs.Open(path)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = r.Close()
	}()

	header := make([]byte, len(elfMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(header, elfMagic), nil
}

// cleanup deletes cache, log, doc and man content and prunes locales down
// to the allow-list. The package database directories are exempt from every
// rule.
func (f *Finalizer) cleanup(root string, localeAllowlist []string) error {
	for _, glob := range cleanupGlobs {
		matches, err := f.fs.Glob(filepath.Join(root, filepath.FromSlash(glob)))
		if err != nil {
			return fmt.Errorf("failed to expand cleanup pattern %s: %w", glob, err)
		}
		for _, match := range matches {
			if f.isPackageDBPath(root, match) {
				continue
			}
			if err := f.fs.RemoveAll(match); err != nil {
				return fmt.Errorf("failed to remove %s: %w", match, err)
			}
		}
	}

	allowed := make(map[string]bool, len(localeAllowlist))
	for _, locale := range localeAllowlist {
		allowed[locale] = true
	}

	for _, dir := range localeDirs {
		base := filepath.Join(root, dir)
		entries, err := f.fs.ReadDir(base)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to read locale directory %s: %w", base, err)
		}
		for _, entry := range entries {
			if allowed[entry.Name()] {
				continue
			}
			if err := f.fs.RemoveAll(filepath.Join(base, entry.Name())); err != nil {
				return fmt.Errorf("failed to remove locale %s: %w", entry.Name(), err)
			}
		}
	}
	return nil
}

// isPackageDBPath reports whether path lies inside a package database
// directory of root.
func (f *Finalizer) isPackageDBPath(root, path string) bool {
	for _, dbDir := range packageDBDirs {
		prefix := filepath.Join(root, filepath.FromSlash(dbDir))
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
