// Command make-coupon adds a single coupon to the database.
//
//	make-coupon --value 50 --type percentage --limit 3 SPRING24
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/couponables/internal/domain/auth"
	"github.com/xenking/couponables/internal/domain/coupon"
	"github.com/xenking/couponables/internal/notify"
	"github.com/xenking/couponables/internal/storage/postgres"
)

// options holds the raw flag values; empty strings mean "not set".
type options struct {
	Code         string
	Value        string
	Type         string
	Limit        string
	Quantity     string
	ExpiresAt    string
	RedeemerType string
	RedeemerID   string
	Data         string
}

// expiresLayouts are tried in order when parsing --expires-at.
var expiresLayouts = []string{time.RFC3339, time.DateTime, time.DateOnly}

func main() {
	var (
		opts         options
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.Value, "value", "", "value the discount is calculated from")
	flag.StringVar(&opts.Type, "type", "", "calculation strategy: subtraction, percentage or fixed")
	flag.StringVar(&opts.Limit, "limit", "", "how many times a single redeemer may use the coupon")
	flag.StringVar(&opts.Quantity, "quantity", "", "how many redemptions are available overall")
	flag.StringVar(&opts.ExpiresAt, "expires-at", "", "expiration time (RFC 3339 or 2006-01-02 15:04:05, UTC)")
	flag.StringVar(&opts.RedeemerType, "redeemer-type", "", "restrict the coupon to redeemers of this type")
	flag.StringVar(&opts.RedeemerID, "redeemer-id", "", "restrict the coupon to this redeemer id")
	flag.StringVar(&opts.Data, "data", "", "JSON metadata stored with the coupon")
	flag.StringVar(&apiKey, "api-key", "", "also store this admin API key (or COUPON_ADMIN_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or COUPON_API_KEY_PEPPER env)")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] CODE\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.Code = flag.Arg(0)

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("COUPON_ADMIN_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("COUPON_API_KEY_PEPPER")
	}

	c, err := opts.Coupon()
	if err != nil {
		slog.Error("invalid coupon", slog.String("error", err.Error()))
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, c, apiKey, apiKeyPepper); err != nil {
		slog.Error("make coupon failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("The coupon was added to the database successfully!", slog.String("code", c.Code))
}

func run(ctx context.Context, databaseURL string, c *coupon.Coupon, apiKey, pepper string) error {
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
	if err := svc.Create(ctx, c); err != nil {
		return errors.Wrap(err, "create coupon")
	}

	if apiKey == "" {
		return nil
	}
	if err := postgres.NewAPIKeyRepository(pool).Upsert(ctx, auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: auth.HashKey([]byte(pepper), apiKey),
		Name:    "bootstrap admin",
		Scopes:  []string{auth.ScopeManageCoupons, auth.ScopeRedeemCoupons},
	}); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}
	slog.Info("upserted API key", slog.String("id", "admin"))

	return nil
}

// Coupon builds the coupon described by the flags.
func (o options) Coupon() (*coupon.Coupon, error) {
	c := &coupon.Coupon{
		Code:         o.Code,
		Type:         coupon.TypeSubtraction,
		RedeemerType: o.RedeemerType,
		RedeemerID:   o.RedeemerID,
	}

	switch t := coupon.Type(o.Type); t {
	case "":
	case coupon.TypeSubtraction, coupon.TypePercentage, coupon.TypeFixed:
		c.Type = t
	default:
		return nil, errors.Errorf("unknown type %q", o.Type)
	}

	if o.Value != "" {
		v, err := decimal.NewFromString(o.Value)
		if err != nil {
			return nil, errors.Wrap(err, "value")
		}
		c.Value = v
	}

	var err error
	if c.Limit, err = optInt(o.Limit); err != nil {
		return nil, errors.Wrap(err, "limit")
	}
	if c.Quantity, err = optInt(o.Quantity); err != nil {
		return nil, errors.Wrap(err, "quantity")
	}

	if o.ExpiresAt != "" {
		at, err := parseExpiresAt(o.ExpiresAt)
		if err != nil {
			return nil, err
		}
		c.ExpiresAt = &at
	}

	if o.Data != "" {
		data, err := notify.DecodeAny(jx.DecodeStr(o.Data))
		if err != nil {
			return nil, errors.Wrap(err, "data")
		}
		obj, ok := data.(map[string]any)
		if !ok {
			// Scalars and arrays are kept under a single key.
			obj = map[string]any{"value": data}
		}
		c.Data = obj
	}

	if err := coupon.Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

func optInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func parseExpiresAt(s string) (time.Time, error) {
	for _, layout := range expiresLayouts {
		if at, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return at, nil
		}
	}
	return time.Time{}, errors.Errorf("expires-at: cannot parse %q", s)
}
