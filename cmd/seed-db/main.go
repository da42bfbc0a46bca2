// Command seed-db loads a demo dataset into PostgreSQL: categories,
// products with variants, coupons, users with addresses and API keys.
// Without -catalog-file it uses the embedded default catalog; a path ending
// in .gz is transparently decompressed.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tactiqa/storefront/db"
	"github.com/tactiqa/storefront/internal/domain/catalog"
	"github.com/tactiqa/storefront/internal/repository"
)

type categoryJSON struct {
	Name   string `json:"name"`
	Parent string `json:"parent"`
}

type variantJSON struct {
	Name            string          `json:"name"`
	Value           string          `json:"value"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
	StockLevel      int             `json:"stock_level"`
}

type productJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Category    string          `json:"category"`
	StockLevel  int             `json:"stock_level"`
	Variants    []variantJSON   `json:"variants"`
}

type couponJSON struct {
	Code                 string          `json:"code"`
	DiscountType         string          `json:"discount_type"`
	DiscountValue        decimal.Decimal `json:"discount_value"`
	ValidFrom            time.Time       `json:"valid_from"`
	ValidUntil           time.Time       `json:"valid_until"`
	MinOrderAmount       decimal.Decimal `json:"min_order_amount"`
	MaxUses              *int            `json:"max_uses"`
	SingleUsePerCustomer bool            `json:"single_use_per_customer"`
}

type addressJSON struct {
	Street      string `json:"street"`
	City        string `json:"city"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
	AddressType string `json:"address_type"`
}

type userJSON struct {
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Email     string        `json:"email"`
	Role      string        `json:"role"`
	Addresses []addressJSON `json:"addresses"`
}

type catalogFile struct {
	Categories []categoryJSON `json:"categories"`
	Products   []productJSON  `json:"products"`
	Coupons    []couponJSON   `json:"coupons"`
	Users      []userJSON     `json:"users"`
}

func main() {
	var (
		databaseURL string
		catalogPath string
		apiKeys     string
		pepper      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogPath, "catalog-file", "", "path to catalog JSON file, .gz supported (default: embedded catalog)")
	flag.StringVar(&apiKeys, "api-keys", "", "comma-separated email:key pairs to seed as API keys (or SHOP_SEED_API_KEYS env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKeys == "" {
		apiKeys = os.Getenv("SHOP_SEED_API_KEYS")
	}
	if pepper == "" {
		pepper = os.Getenv("SHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogPath, apiKeys, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogPath, apiKeys, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	data, err := readCatalog(catalogPath)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}

	var cf catalogFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	users, err := seedUsers(ctx, pool, cf.Users)
	if err != nil {
		return errors.Wrap(err, "seed users")
	}

	categories, err := seedCategories(ctx, pool, cf.Categories)
	if err != nil {
		return errors.Wrap(err, "seed categories")
	}

	// Products and coupons are independent once categories exist.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return errors.Wrap(seedProducts(gctx, pool, cf.Products, categories), "seed products")
	})
	g.Go(func() error {
		return errors.Wrap(seedCoupons(gctx, pool, cf.Coupons), "seed coupons")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if apiKeys != "" {
		if err := seedAPIKeys(ctx, pool, users, apiKeys, pepper); err != nil {
			return errors.Wrap(err, "seed api keys")
		}
	}

	return nil
}

// readCatalog returns the catalog JSON bytes: the embedded default when path
// is empty, otherwise the file's contents, gunzipped for .gz paths.
func readCatalog(path string) ([]byte, error) {
	if path == "" {
		slog.Info("using embedded catalog")
		return db.SeedCatalog, nil
	}

	slog.Info("reading catalog file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

type seededUser struct {
	id   int64
	role string
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, users []userJSON) (map[string]seededUser, error) {
	slog.Info("upserting users", slog.Int("count", len(users)))

	const upsertUser = `
		INSERT INTO users (first_name, last_name, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name  = EXCLUDED.last_name,
		    role       = EXCLUDED.role
		RETURNING id`
	const insertAddress = `
		INSERT INTO addresses (user_id, street, city, zip_code, country, address_type)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM addresses
			WHERE user_id = $1 AND street = $2 AND address_type = $6
		)`

	out := make(map[string]seededUser, len(users))
	for _, u := range users {
		role := u.Role
		if role == "" {
			role = "customer"
		}

		var id int64
		if err := pool.QueryRow(ctx, upsertUser, u.FirstName, u.LastName, u.Email, role).Scan(&id); err != nil {
			return nil, errors.Wrapf(err, "upsert user %s", u.Email)
		}
		for _, a := range u.Addresses {
			if _, err := pool.Exec(ctx, insertAddress,
				id, a.Street, a.City, a.ZipCode, a.Country, a.AddressType,
			); err != nil {
				return nil, errors.Wrapf(err, "insert address for %s", u.Email)
			}
		}
		out[u.Email] = seededUser{id: id, role: role}

		slog.Info("upserted user", slog.String("email", u.Email), slog.String("role", role))
	}
	return out, nil
}

func seedCategories(ctx context.Context, pool *pgxpool.Pool, cats []categoryJSON) (map[string]int64, error) {
	slog.Info("upserting categories", slog.Int("count", len(cats)))

	const upsertCategory = `
		INSERT INTO categories (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`
	const setParent = `UPDATE categories SET parent_id = $2 WHERE id = $1`

	ids := make(map[string]int64, len(cats))
	for _, c := range cats {
		var id int64
		if err := pool.QueryRow(ctx, upsertCategory, c.Name).Scan(&id); err != nil {
			return nil, errors.Wrapf(err, "upsert category %s", c.Name)
		}
		ids[c.Name] = id
	}

	// Reject parent references that do not resolve or that would loop
	// before touching parent_id.
	tree := make([]catalog.Category, 0, len(cats))
	for _, c := range cats {
		node := catalog.Category{ID: ids[c.Name], Name: c.Name}
		if c.Parent != "" {
			parentID, ok := ids[c.Parent]
			if !ok {
				return nil, errors.Errorf("category %s references unknown parent %s", c.Name, c.Parent)
			}
			node.ParentID = parentID
		}
		tree = append(tree, node)
	}
	if err := catalog.ValidateHierarchy(tree); err != nil {
		return nil, err
	}

	for _, node := range tree {
		if node.ParentID == 0 {
			continue
		}
		if _, err := pool.Exec(ctx, setParent, node.ID, node.ParentID); err != nil {
			return nil, errors.Wrapf(err, "set parent of %s", node.Name)
		}
	}
	return ids, nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON, categories map[string]int64) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	const findProduct = `SELECT id FROM products WHERE name = $1`
	const insertProduct = `
		INSERT INTO products (name, description, base_price, tax_rate, category_id, stock_level, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id`
	const updateProduct = `
		UPDATE products
		SET description = $2, base_price = $3, tax_rate = $4, category_id = $5, stock_level = $6, active = TRUE
		WHERE id = $1`
	const findVariant = `SELECT id FROM product_variants WHERE product_id = $1 AND name = $2 AND value = $3`
	const insertVariant = `
		INSERT INTO product_variants (product_id, name, value, price_adjustment, stock_level)
		VALUES ($1, $2, $3, $4, $5)`
	const updateVariant = `
		UPDATE product_variants SET price_adjustment = $2, stock_level = $3 WHERE id = $1`

	for _, p := range products {
		categoryID, ok := categories[p.Category]
		if !ok {
			return errors.Errorf("product %s references unknown category %s", p.Name, p.Category)
		}

		var id int64
		err := pool.QueryRow(ctx, findProduct, p.Name).Scan(&id)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			err = pool.QueryRow(ctx, insertProduct,
				p.Name, p.Description, p.BasePrice, p.TaxRate, categoryID, p.StockLevel,
			).Scan(&id)
			if err != nil {
				return errors.Wrapf(err, "insert product %s", p.Name)
			}
		case err != nil:
			return errors.Wrapf(err, "find product %s", p.Name)
		default:
			if _, err := pool.Exec(ctx, updateProduct,
				id, p.Description, p.BasePrice, p.TaxRate, categoryID, p.StockLevel,
			); err != nil {
				return errors.Wrapf(err, "update product %s", p.Name)
			}
		}

		for _, v := range p.Variants {
			var variantID int64
			err := pool.QueryRow(ctx, findVariant, id, v.Name, v.Value).Scan(&variantID)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				if _, err := pool.Exec(ctx, insertVariant,
					id, v.Name, v.Value, v.PriceAdjustment, v.StockLevel,
				); err != nil {
					return errors.Wrapf(err, "insert variant %s=%s of %s", v.Name, v.Value, p.Name)
				}
			case err != nil:
				return errors.Wrapf(err, "find variant %s=%s of %s", v.Name, v.Value, p.Name)
			default:
				if _, err := pool.Exec(ctx, updateVariant,
					variantID, v.PriceAdjustment, v.StockLevel,
				); err != nil {
					return errors.Wrapf(err, "update variant %s=%s of %s", v.Name, v.Value, p.Name)
				}
			}
		}

		slog.Info("upserted product", slog.String("name", p.Name), slog.Int("variants", len(p.Variants)))
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, coupons []couponJSON) error {
	slog.Info("upserting coupons", slog.Int("count", len(coupons)))

	const upsertCoupon = `
		INSERT INTO coupons (code, discount_type, discount_value, valid_from, valid_until,
		                     min_order_amount, max_uses, single_use_per_customer)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE
		SET discount_type           = EXCLUDED.discount_type,
		    discount_value          = EXCLUDED.discount_value,
		    valid_from              = EXCLUDED.valid_from,
		    valid_until             = EXCLUDED.valid_until,
		    min_order_amount        = EXCLUDED.min_order_amount,
		    max_uses                = EXCLUDED.max_uses,
		    single_use_per_customer = EXCLUDED.single_use_per_customer`

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsertCoupon,
			c.Code, c.DiscountType, c.DiscountValue, c.ValidFrom, c.ValidUntil,
			c.MinOrderAmount, c.MaxUses, c.SingleUsePerCustomer,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("type", c.DiscountType))
	}
	return nil
}

// seedAPIKeys parses comma-separated email:key pairs and stores each key as
// an HMAC-SHA256 hash bound to the matching seeded user and its role.
func seedAPIKeys(ctx context.Context, pool *pgxpool.Pool, users map[string]seededUser, apiKeys, pepper string) error {
	const upsertKey = `
		INSERT INTO api_keys (key_hash, name, user_id, role, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (key_hash) DO UPDATE
		SET name = EXCLUDED.name, user_id = EXCLUDED.user_id, role = EXCLUDED.role, active = TRUE`

	for _, pair := range strings.Split(apiKeys, ",") {
		email, key, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || email == "" || key == "" {
			return errors.Errorf("invalid api key pair %q, want email:key", pair)
		}
		u, found := users[email]
		if !found {
			return errors.Errorf("api key references unknown user %s", email)
		}

		mac := hmac.New(sha256.New, []byte(pepper))
		mac.Write([]byte(key))
		keyHash := hex.EncodeToString(mac.Sum(nil))

		if _, err := pool.Exec(ctx, upsertKey, keyHash, "seed key for "+email, u.id, u.role); err != nil {
			return errors.Wrapf(err, "upsert api key for %s", email)
		}

		slog.Info("upserted api key", slog.String("email", email), slog.String("role", u.role))
	}
	return nil
}
