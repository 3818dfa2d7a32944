package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

const progressEvery = 10_000_000

// scanConfig controls which codes are accepted from the input files.
type scanConfig struct {
	// MinFiles is the number of distinct files a code must appear in.
	MinFiles      int
	MinLen        int
	MaxLen        int
	BloomCapacity uint
	BloomFPR      float64
}

func (c scanConfig) accept(code string) bool {
	return len(code) >= c.MinLen && len(code) <= c.MaxLen
}

// findCodes returns the sorted codes that appear in at least cfg.MinFiles of
// the given gzip files.
func findCodes(ctx context.Context, files []string, cfg scanConfig) ([]string, error) {
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("at most %d files are supported, got %d", bits.UintSize, len(files))
	}
	if cfg.MinFiles > len(files) {
		return nil, errors.Errorf("need at least %d files, got %d", cfg.MinFiles, len(files))
	}
	if cfg.MinFiles <= 1 {
		return collectCodes(ctx, files, cfg)
	}

	// Pass 1: build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := buildBloomFilters(ctx, files, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: confirm candidates against the files themselves.
	slog.Info("pass 2: finding candidate codes")
	return findValidCodes(ctx, files, filters, cfg)
}

// collectCodes returns every distinct accepted code.
func collectCodes(ctx context.Context, files []string, cfg scanConfig) ([]string, error) {
	seen := make(map[string]struct{})
	for _, path := range files {
		if err := streamGzFile(ctx, path, func(code string) {
			if cfg.accept(code) {
				seen[code] = struct{}{}
			}
		}); err != nil {
			return nil, err
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes, nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, cfg scanConfig) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(cfg.BloomCapacity, cfg.BloomFPR)
			var count uint64
			if err := streamGzFile(ctx, path, func(code string) {
				if !cfg.accept(code) {
					return
				}
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			slog.Info("pass 1 complete", slog.String("file", path), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findValidCodes re-streams each file and marks codes that some other file's
// filter may contain. Each file only sets its own bit, so false positives
// never count toward MinFiles.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter, cfg scanConfig) ([]string, error) {
	results := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			fileBit := uint(1) << uint(i)
			var count uint64

			if err := streamGzFile(ctx, path, func(code string) {
				if !cfg.accept(code) {
					return
				}
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 2 progress", slog.String("file", path), slog.Uint64("codes", count))
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						candidates[code] |= fileBit
						return
					}
				}
			}); err != nil {
				return errors.Wrapf(err, "scan %s for candidates", path)
			}

			slog.Info("pass 2 complete",
				slog.String("file", path),
				slog.Uint64("total_codes", count),
				slog.Int("candidates", len(candidates)),
			)
			results[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= cfg.MinFiles {
			valid = append(valid, code)
		}
	}
	slices.Sort(valid)
	return valid, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each trimmed,
// non-empty line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if code := strings.TrimSpace(scanner.Text()); code != "" {
			fn(code)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
