// Command coupon-issue gives one catalog coupon to every member listed in
// gzip-compressed email files, one address per line.
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/storage/postgres"
)

const (
	batchSize     = 1000
	holderFPR     = 0.001
	progressEvery = 100_000
)

func main() {
	var (
		databaseURL string
		couponID    int64
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Int64Var(&couponID, "coupon-id", 0, "catalog coupon to issue")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if couponID <= 0 || flag.NArg() == 0 {
		lg.Fatal("usage: coupon-issue -coupon-id N members1.gz [members2.gz ...]")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, couponID, flag.Args()); err != nil {
		lg.Fatal("Coupon issue failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, couponID int64, files []string) error {
	emails, err := collectEmails(ctx, lg, files)
	if err != nil {
		return errors.Wrap(err, "read member files")
	}
	lg.Info("Collected emails", zap.Int("unique", len(emails)))

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	coupons := postgres.NewCouponRepository(pool)
	members := postgres.NewMemberRepository(pool)

	c, err := coupons.FindByID(ctx, couponID)
	if err != nil {
		return err
	}
	holders, err := coupons.Holders(ctx, couponID)
	if err != nil {
		return err
	}
	filter := holderFilter(holders)
	lg.Info("Issuing coupon",
		zap.Int64("coupon_id", c.ID),
		zap.String("name", c.Name),
		zap.Int("current_holders", len(holders)),
	)

	var st stats
	for batch := range slices.Chunk(emails, batchSize) {
		ids, err := members.IDsByEmails(ctx, batch)
		if err != nil {
			return err
		}
		st.unknown += len(batch) - len(ids)

		if err := issueBatch(ctx, coupons, filter, couponID, ids, &st); err != nil {
			return err
		}
	}

	lg.Info("Coupon issued",
		zap.Int64("coupon_id", couponID),
		zap.Int64("issued", st.issued),
		zap.Int("copied", st.copied),
		zap.Int("probable_holders", st.probableHolders),
		zap.Int("copy_fallbacks", st.fallbacks),
		zap.Int("unknown_emails", st.unknown),
	)
	return nil
}

type stats struct {
	issued          int64
	copied          int
	probableHolders int
	fallbacks       int
	unknown         int
}

type issuer interface {
	CopyIssue(ctx context.Context, couponID int64, memberIDs []int64) (int64, error)
	IssueMany(ctx context.Context, couponID int64, memberIDs []int64) (int64, error)
}

// issueBatch copies members the filter has never seen straight into
// member_coupon and sends probable holders through the conflict-checked
// insert. A copy that hits a member issued since the holders were loaded is
// retried through the conflict-checked insert.
func issueBatch(ctx context.Context, iss issuer, filter *bloom.BloomFilter, couponID int64, ids map[string]int64, st *stats) error {
	fresh, probable := partition(filter, ids)
	st.probableHolders += len(probable)

	if len(fresh) > 0 {
		n, err := iss.CopyIssue(ctx, couponID, fresh)
		switch {
		case errors.Is(err, coupon.ErrAlreadyIssued):
			st.fallbacks++
			probable = append(probable, fresh...)
		case err != nil:
			return err
		default:
			st.issued += n
			st.copied += len(fresh)
		}
	}

	if len(probable) > 0 {
		n, err := iss.IssueMany(ctx, couponID, probable)
		if err != nil {
			return err
		}
		st.issued += n
	}
	return nil
}

// holderFilter indexes member ids that already hold the coupon.
func holderFilter(holders []int64) *bloom.BloomFilter {
	f := bloom.NewWithEstimates(uint(max(len(holders), 1024)), holderFPR)
	for _, id := range holders {
		f.Add(idKey(id))
	}
	return f
}

func idKey(id int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(id))
}

// partition splits ids into members that certainly lack the coupon and
// members that probably hold it.
func partition(filter *bloom.BloomFilter, ids map[string]int64) (fresh, probable []int64) {
	for _, id := range ids {
		if filter.Test(idKey(id)) {
			probable = append(probable, id)
			continue
		}
		fresh = append(fresh, id)
	}
	return fresh, probable
}

// collectEmails scans all files concurrently and returns the distinct
// normalized addresses.
func collectEmails(ctx context.Context, lg *zap.Logger, files []string) ([]string, error) {
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range files {
		g.Go(func() error {
			var lines int
			err := streamGzFile(ctx, path, func(line string) {
				lines++
				if lines%progressEvery == 0 {
					lg.Info("Scan progress", zap.String("file", path), zap.Int("lines", lines))
				}
				email, ok := normalizeEmail(line)
				if !ok {
					return
				}
				mu.Lock()
				seen[email] = struct{}{}
				mu.Unlock()
			})
			if err != nil {
				return err
			}
			lg.Info("Scanned file", zap.String("file", path), zap.Int("lines", lines))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for email := range seen {
		out = append(out, email)
	}
	return out, nil
}

// normalizeEmail lowercases and trims a line, rejecting blanks, comments
// and lines without an '@'.
func normalizeEmail(line string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(line))
	if s == "" || strings.HasPrefix(s, "#") || !strings.Contains(s, "@") {
		return "", false
	}
	return s, true
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
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
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
