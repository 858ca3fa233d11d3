package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/domain/discount"
	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
	"github.com/pilyang/jwp-shopping-order/internal/domain/product"
	"github.com/pilyang/jwp-shopping-order/internal/storage/postgres"
)

type seedMember struct {
	Email, Password string
}

type seedMemberCoupon struct {
	Email    string
	CouponID int64
}

type seedData struct {
	Members       []seedMember
	Products      []product.Product
	Coupons       []coupon.Coupon
	MemberCoupons []seedMemberCoupon
}

func main() {
	var (
		databaseURL string
		seedFile    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "db/seed/seed.json", "path to seed JSON file")
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, seedFile); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, seedFile string) error {
	raw, err := os.ReadFile(seedFile)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	data, err := parseSeed(raw)
	if err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	lg.Info("Running migrations")
	if err := postgres.Migrate(databaseURL); err != nil {
		return errors.Wrap(err, "migrate")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	memberIDs, err := seedMembers(ctx, lg, postgres.NewMemberRepository(pool), data.Members)
	if err != nil {
		return errors.Wrap(err, "seed members")
	}
	if err := seedProducts(ctx, lg, pool, data.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	coupons := postgres.NewCouponRepository(pool)
	for _, c := range data.Coupons {
		if err := coupons.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %d", c.ID)
		}
		lg.Info("Upserted coupon", zap.Int64("id", c.ID), zap.String("name", c.Name))
	}

	for _, mc := range data.MemberCoupons {
		id, ok := memberIDs[mc.Email]
		if !ok {
			return errors.Errorf("member coupon references unknown member %q", mc.Email)
		}
		_, err := coupons.Issue(ctx, id, mc.CouponID)
		switch {
		case errors.Is(err, coupon.ErrAlreadyIssued):
			lg.Debug("Coupon already issued", zap.String("email", mc.Email), zap.Int64("coupon_id", mc.CouponID))
		case err != nil:
			return errors.Wrapf(err, "issue coupon %d to %s", mc.CouponID, mc.Email)
		default:
			lg.Info("Issued coupon", zap.String("email", mc.Email), zap.Int64("coupon_id", mc.CouponID))
		}
	}
	return nil
}

func seedMembers(ctx context.Context, lg *zap.Logger, repo *postgres.MemberRepository, members []seedMember) (map[string]int64, error) {
	ids := make(map[string]int64, len(members))
	for _, m := range members {
		hash, err := member.HashPassword(m.Password)
		if err != nil {
			return nil, errors.Wrapf(err, "hash password of %s", m.Email)
		}
		id, err := repo.Upsert(ctx, m.Email, hash)
		if err != nil {
			return nil, err
		}
		ids[m.Email] = id
		lg.Info("Upserted member", zap.String("email", m.Email), zap.Int64("id", id))
	}
	return ids, nil
}

// seedProducts inserts catalog products missing by name, so reruns do not
// duplicate the catalog.
func seedProducts(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool, products []product.Product) error {
	repo := postgres.NewProductRepository(pool)
	existing, err := repo.List(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Name] = true
	}

	for _, p := range products {
		if have[p.Name] {
			continue
		}
		id, err := repo.Create(ctx, p)
		if err != nil {
			return errors.Wrapf(err, "create product %s", p.Name)
		}
		lg.Info("Created product", zap.Int64("id", id), zap.String("name", p.Name))
	}
	return nil
}

func parseSeed(raw []byte) (seedData, error) {
	var data seedData
	err := jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "members":
			return d.Arr(func(d *jx.Decoder) error {
				var m seedMember
				err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
					switch string(key) {
					case "email":
						m.Email, err = d.Str()
					case "password":
						m.Password, err = d.Str()
					default:
						err = d.Skip()
					}
					return err
				})
				data.Members = append(data.Members, m)
				return err
			})
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				var (
					p     product.Product
					price int64
				)
				err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
					switch string(key) {
					case "name":
						p.Name, err = d.Str()
					case "price":
						price, err = d.Int64()
					case "imageUrl":
						p.ImageURL, err = d.Str()
					default:
						err = d.Skip()
					}
					return err
				})
				if err != nil {
					return err
				}
				if p.Price, err = money.New(price); err != nil {
					return errors.Wrapf(err, "product %s", p.Name)
				}
				data.Products = append(data.Products, p)
				return nil
			})
		case "coupons":
			return d.Arr(func(d *jx.Decoder) error {
				var c coupon.Coupon
				err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
					switch string(key) {
					case "id":
						c.ID, err = d.Int64()
					case "name":
						c.Name, err = d.Str()
					case "type":
						var typ string
						typ, err = d.Str()
						c.DiscountType = discount.Type(typ)
					case "value":
						var n jx.Num
						if n, err = d.Num(); err == nil {
							c.Value, err = decimal.NewFromString(n.String())
						}
					default:
						err = d.Skip()
					}
					return err
				})
				if err != nil {
					return err
				}
				policy, err := discount.NewRegistry().Policy(c.DiscountType)
				if err != nil {
					return errors.Wrapf(err, "coupon %d", c.ID)
				}
				c.DiscountType = policy.Type()
				data.Coupons = append(data.Coupons, c)
				return nil
			})
		case "memberCoupons":
			return d.Arr(func(d *jx.Decoder) error {
				var mc seedMemberCoupon
				err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
					switch string(key) {
					case "email":
						mc.Email, err = d.Str()
					case "couponId":
						mc.CouponID, err = d.Int64()
					default:
						err = d.Skip()
					}
					return err
				})
				data.MemberCoupons = append(data.MemberCoupons, mc)
				return err
			})
		default:
			return d.Skip()
		}
	})
	return data, err
}
