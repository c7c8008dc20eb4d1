// Package archive pulls named extracts out of nightly point-of-sale archives.
//
// Two container formats are understood: zip, and tar compressed with xz
// (.tar.xz or .txz). Entries are matched on their base name without regard to
// case or to the directory they were stored under.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/phillip-england/prodsummary/internal/table"
)

var (
	ErrEntryNotFound      = errors.New("archive entry not found")
	ErrUnsupportedArchive = errors.New("unsupported archive format")
)

type format int

const (
	formatUnknown format = iota
	formatZip
	formatTarXZ
)

func detect(name string) format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return formatZip
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return formatTarXZ
	default:
		return formatUnknown
	}
}

// IsArchive reports whether name has an extension the Store can open.
func IsArchive(name string) bool {
	return detect(name) != formatUnknown
}

// Stem strips the archive extension from name.
func Stem(name string) string {
	base := filepath.Base(name)
	lower := strings.ToLower(base)
	for _, ext := range []string{".tar.xz", ".txz", ".zip"} {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Store extracts entries from archives on the local filesystem.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Entries lists the base names of the regular files in an archive.
func (s *Store) Entries(archivePath string) ([]string, error) {
	var names []string
	err := s.walk(archivePath, func(name string, _ io.Reader) (bool, error) {
		names = append(names, name)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Extract writes the entry matching entryName into destDir and returns its path.
//
// entryName matches an entry whose base name equals it, ignoring case, or, when
// entryName has no extension, an entry whose stem equals it and whose extension
// is a readable table format. An existing file at the destination is replaced.
func (s *Store) Extract(archivePath, entryName, destDir string) (string, error) {
	entries, err := s.Entries(archivePath)
	if err != nil {
		return "", err
	}
	want, ok := pickEntry(entries, entryName)
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrEntryNotFound, entryName, filepath.Base(archivePath))
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create extract directory: %w", err)
	}
	dest := filepath.Join(destDir, want)

	err = s.walk(archivePath, func(name string, r io.Reader) (bool, error) {
		if name != want {
			return false, nil
		}
		return true, writeFile(dest, r)
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

func pickEntry(entries []string, entryName string) (string, bool) {
	for _, name := range entries {
		if strings.EqualFold(name, entryName) {
			return name, true
		}
	}
	if filepath.Ext(entryName) != "" {
		return "", false
	}
	for _, ext := range table.Extensions {
		for _, name := range entries {
			if strings.EqualFold(name, entryName+ext) {
				return name, true
			}
		}
	}
	return "", false
}

// walk visits every regular file in the archive until fn reports done.
func (s *Store) walk(archivePath string, fn func(name string, r io.Reader) (bool, error)) error {
	switch detect(archivePath) {
	case formatZip:
		return walkZip(archivePath, fn)
	case formatTarXZ:
		return walkTarXZ(archivePath, fn)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedArchive, filepath.Base(archivePath))
	}
}

func walkZip(archivePath string, fn func(string, io.Reader) (bool, error)) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip %s: %w", filepath.Base(archivePath), err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		// Some POS exporters write Windows separators into entry names.
		done, err := fn(path.Base(strings.ReplaceAll(f.Name, `\`, "/")), rc)
		_ = rc.Close()
		if err != nil || done {
			return err
		}
	}
	return nil
}

func walkTarXZ(archivePath string, fn func(string, io.Reader) (bool, error)) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	xr, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("open xz %s: %w", filepath.Base(archivePath), err)
	}
	tr := tar.NewReader(xr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar %s: %w", filepath.Base(archivePath), err)
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}
		done, err := fn(path.Base(hdr.Name), tr)
		if err != nil || done {
			return err
		}
	}
}

func writeFile(dest string, r io.Reader) error {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(dest), err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(dest), err)
	}
	return out.Close()
}
