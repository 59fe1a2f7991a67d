// Package dupes finds byte-identical files produced by independent sample generators
package dupes

import (
	"context"
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Groups maps a content hash to the paths sharing it, in walk order.
// Only hashes with more than one path are present.
type Groups map[string][]string

// Hashes returns the group keys in sorted order
func (g Groups) Hashes() []string {
	hashes := make([]string, 0, len(g))
	for h := range g {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return hashes
}

// Files returns the number of files that belong to some group
func (g Groups) Files() int {
	n := 0
	for _, paths := range g {
		n += len(paths)
	}
	return n
}

// Report writes one line per group in hash order
func (g Groups) Report(w io.Writer) error {
	for _, h := range g.Hashes() {
		if _, err := fmt.Fprintf(w, "Duplicate build files found for hash '%s' : [%s]\n", h, strings.Join(g[h], ", ")); err != nil {
			return err
		}
	}
	return nil
}

// Detector hashes matching files under a directory tree
type Detector struct {
	logger  *zap.Logger
	workers int
}

// NewDetector creates a Detector hashing with up to workers goroutines (0 = NumCPU)
func NewDetector(logger *zap.Logger, workers int) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Detector{logger: logger, workers: workers}
}

// Find walks root, hashes every file whose name ends with suffix and returns the
// groups of identical files. It never modifies the tree. Unreadable entries are
// logged and skipped; the only error returned is from ctx.
func (d *Detector) Find(ctx context.Context, root, suffix string) (Groups, error) {
	paths, err := d.collect(ctx, root, suffix)
	if err != nil {
		return nil, err
	}

	hashes := make([]string, len(paths))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.workers)
	for i, path := range paths {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			sum, hashErr := hashFile(path)
			if hashErr != nil {
				d.logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(hashErr))
				return nil
			}
			hashes[i] = sum
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	byHash := make(map[string][]string)
	for i, path := range paths {
		if hashes[i] == "" {
			continue
		}
		byHash[hashes[i]] = append(byHash[hashes[i]], path)
	}

	groups := make(Groups)
	for h, members := range byHash {
		if len(members) > 1 {
			groups[h] = members
		}
	}

	d.logger.Debug("duplicate scan finished",
		zap.String("root", root),
		zap.String("suffix", suffix),
		zap.Int("files", len(paths)),
		zap.Int("groups", len(groups)),
	)
	return groups, nil
}

func (d *Detector) collect(ctx context.Context, root, suffix string) ([]string, error) {
	var paths []string
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				d.logger.Warn("cannot scan directory", zap.String("root", root), zap.Error(err))
				return fs.SkipAll
			}
			d.logger.Warn("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), suffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return paths, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from walking the scanned tree
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha1.New() //nolint:gosec // content fingerprint
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
