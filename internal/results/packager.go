package results

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// DefaultReportPattern selects JUnit XML reports anywhere under the results directory
const DefaultReportPattern = "**/TEST-*.xml"

// PackageRequest describes one results archive
type PackageRequest struct {
	Task     string
	JUnitDir string
	// DebugDir is archived unconditionally; a missing directory is fine
	DebugDir string
	DestDir  string
	// Pattern selects candidate reports relative to JUnitDir (DefaultReportPattern when empty)
	Pattern string
}

// Archive is the outcome of packaging
type Archive struct {
	Path       string
	Included   []string
	Excluded   []string
	DebugFiles []string
	Size       int64
}

// Entries returns the number of files written to the archive
func (a *Archive) Entries() int {
	return len(a.Included) + len(a.DebugFiles)
}

// ArchiveName returns the archive file name for a JUnit results directory
func ArchiveName(junitDir string) string {
	return "test-results-" + filepath.Base(filepath.Clean(junitDir)) + ".zip"
}

// Packager builds results archives from reports that pass the archive policy
type Packager struct {
	logger  *zap.Logger
	include func(path string) bool
}

// NewPackager creates a Packager using ShouldInclude as its policy
func NewPackager(logger *zap.Logger) *Packager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Packager{logger: logger, include: ShouldInclude}
}

type entry struct {
	name string
	path string
}

// Package writes DestDir/test-results-<base(JUnitDir)>.zip. Empty directories are
// never recorded and entries are written in name order. The archive is replaced atomically.
func (p *Packager) Package(ctx context.Context, req PackageRequest) (*Archive, error) {
	pattern := req.Pattern
	if pattern == "" {
		pattern = DefaultReportPattern
	}

	archive := &Archive{Path: filepath.Join(req.DestDir, ArchiveName(req.JUnitDir))}

	reports, err := p.collect(ctx, req.JUnitDir, pattern)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []entry
	for _, e := range reports {
		if !p.include(e.path) {
			archive.Excluded = append(archive.Excluded, e.name)
			p.logger.Debug("excluding fully skipped report", zap.String("task", req.Task), zap.String("report", e.name))
			continue
		}
		archive.Included = append(archive.Included, e.name)
		seen[e.name] = true
		entries = append(entries, e)
	}

	if req.DebugDir != "" {
		debug, debugErr := p.collect(ctx, req.DebugDir, "")
		if debugErr != nil {
			return nil, debugErr
		}
		for _, e := range debug {
			if seen[e.name] {
				p.logger.Warn("debug artifact shadows a report, skipping", zap.String("entry", e.name))
				continue
			}
			seen[e.name] = true
			archive.DebugFiles = append(archive.DebugFiles, e.name)
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	size, err := writeZip(ctx, archive.Path, entries)
	if err != nil {
		return nil, err
	}
	archive.Size = size

	p.logger.Info("packaged test results",
		zap.String("task", req.Task),
		zap.String("archive", archive.Path),
		zap.Int("included", len(archive.Included)),
		zap.Int("excluded", len(archive.Excluded)),
		zap.Int("debug", len(archive.DebugFiles)),
	)
	return archive, nil
}

// Clean deletes a previously built archive. A missing archive is not an error.
func (p *Packager) Clean(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// collect lists regular files under dir whose slash-separated relative name matches
// pattern, or every file when pattern is empty. A missing dir yields nothing.
func (p *Packager) collect(ctx context.Context, dir, pattern string) ([]entry, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		p.logger.Debug("results directory does not exist", zap.String("dir", dir))
		return nil, nil
	}

	var out []entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		name := filepath.ToSlash(rel)

		if pattern != "" {
			ok, matchErr := doublestar.Match(pattern, name)
			if matchErr != nil {
				return fmt.Errorf("bad pattern %q: %w", pattern, matchErr)
			}
			if !ok {
				return nil
			}
		}
		out = append(out, entry{name: name, path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return out, nil
}

func writeZip(ctx context.Context, dest string, entries []entry) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return 0, fmt.Errorf("create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".test-results-*.zip")
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	zw := zip.NewWriter(tmp)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return 0, err
		}
		if err := addFile(zw, e); err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return 0, fmt.Errorf("move archive into place: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func addFile(zw *zip.Writer, e entry) error {
	f, err := os.Open(e.path) //nolint:gosec // path comes from walking the results directory
	if err != nil {
		return fmt.Errorf("open %s: %w", e.path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = e.name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s: %w", e.name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write %s: %w", e.name, err)
	}
	return nil
}
