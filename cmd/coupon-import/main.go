// Command coupon-import bulk-loads coupon codes from gzip-compressed lists,
// one code per line. By default a code is imported only when it appears in
// at least two of the files.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/couponables/internal/domain/coupon"
	"github.com/xenking/couponables/internal/storage/postgres"
)

// creator stores a single coupon.
type creator interface {
	Create(ctx context.Context, c *coupon.Coupon) error
}

type importStats struct {
	Created int
	Skipped int
}

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		typ         string
		value       string
		quantity    int
		limit       int
		scan        scanConfig
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing the gzip code lists")
	flag.StringVar(&pattern, "pattern", "*.gz", "glob selecting files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&typ, "type", string(coupon.TypePercentage), "calculation strategy of imported coupons")
	flag.StringVar(&value, "value", "10", "value of imported coupons")
	flag.IntVar(&quantity, "quantity", 0, "overall redemptions per coupon (0 is unlimited)")
	flag.IntVar(&limit, "limit", 0, "redemptions per redeemer (0 is unlimited)")
	flag.IntVar(&scan.MinFiles, "min-files", 2, "number of files a code must appear in")
	flag.IntVar(&scan.MinLen, "min-len", 8, "minimum code length")
	flag.IntVar(&scan.MaxLen, "max-len", 10, "maximum code length")
	flag.UintVar(&scan.BloomCapacity, "bloom-capacity", 120_000_000, "expected codes per file")
	flag.Float64Var(&scan.BloomFPR, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	attrs, err := importAttributes(typ, value, quantity, limit)
	if err != nil {
		slog.Error("invalid coupon attributes", slog.String("error", err.Error()))
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, pattern, databaseURL, scan, attrs); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string, scan scanConfig, attrs coupon.Attributes) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "list files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s in %s", pattern, dataDir)
	}
	slices.Sort(files)

	codes, err := findCodes(ctx, files, scan)
	if err != nil {
		return err
	}
	slog.Info("valid codes found", slog.Int("count", len(codes)))
	if len(codes) == 0 {
		return nil
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc := coupon.NewService(postgres.NewCouponRepository(pool), postgres.NewRedemptionRepository(pool))
	stats, err := writeCoupons(ctx, svc, codes, attrs)
	if err != nil {
		return errors.Wrap(err, "write coupons to database")
	}
	slog.Info("coupons written", slog.Int("created", stats.Created), slog.Int("skipped", stats.Skipped))
	return nil
}

func importAttributes(typ, value string, quantity, limit int) (coupon.Attributes, error) {
	var attrs coupon.Attributes

	t := coupon.Type(typ)
	switch t {
	case coupon.TypeSubtraction, coupon.TypePercentage, coupon.TypeFixed:
		attrs.Type = &t
	default:
		return attrs, errors.Errorf("unknown type %q", typ)
	}

	v, err := decimal.NewFromString(value)
	if err != nil {
		return attrs, errors.Wrap(err, "value")
	}
	attrs.Value = &v

	if quantity < 0 || limit < 0 {
		return attrs, errors.New("quantity and limit must not be negative")
	}
	if quantity > 0 {
		attrs.Quantity = &quantity
	}
	if limit > 0 {
		attrs.Limit = &limit
	}
	return attrs, nil
}

// writeCoupons creates a coupon for each code. Codes that already exist are
// left untouched and counted as skipped.
func writeCoupons(ctx context.Context, store creator, codes []string, attrs coupon.Attributes) (importStats, error) {
	slog.Info("writing coupons to database", slog.Int("count", len(codes)))

	var stats importStats
	for i, code := range codes {
		c := &coupon.Coupon{Code: code}
		attrs.Apply(c)

		switch err := store.Create(ctx, c); {
		case err == nil:
			stats.Created++
		case errors.Is(err, coupon.ErrDuplicateCode):
			stats.Skipped++
		default:
			return stats, errors.Wrapf(err, "create coupon %s", code)
		}

		if (i+1)%1000 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}
	return stats, nil
}
