package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/iabalyuk/freightbot/validate"
)

// DriverName is the SQLite driver with the casefold() function registered.
const DriverName = "sqlite3_freight"

// timeLayout is fixed width so created_at compares lexicographically.
const timeLayout = "2006-01-02T15:04:05Z"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// lower() only folds ASCII, city names are Cyrillic.
			return conn.RegisterFunc("casefold", strings.ToLower, true)
		},
	})
}

// Options configures a SQLiteStore.
type Options struct {
	// Cache holds the distinct city projections. A fresh cache is created when nil.
	Cache *ProjectionCache
	// MaxWeight is the upper weight bound enforced on writes. The schema only
	// requires a positive weight, so raising it needs no rebuild.
	MaxWeight int
	Logger    *zerolog.Logger
	Now       func() time.Time
}

// SQLiteStore is the Store backed by a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	cache     *ProjectionCache
	dbPath    string
	log       zerolog.Logger
	now       func() time.Time
	maxWeight int
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// bootstraps the schema.
func NewSQLiteStore(ctx context.Context, dbPath string, opts Options) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "freightbot.db"
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		cache:  opts.Cache,
		dbPath: dbPath,
		log:    zerolog.Nop(),
		now:    opts.Now,
	}
	if s.cache == nil {
		s.cache = NewProjectionCache()
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "storage").Logger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.maxWeight = opts.MaxWeight
	if s.maxWeight <= 0 {
		s.maxWeight = validate.DefaultMaxWeight
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := s.migrateSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			telegram_id INTEGER NOT NULL UNIQUE,
			name TEXT NOT NULL,
			city TEXT NOT NULL,
			phone TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cargo (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			city_from TEXT NOT NULL,
			region_from TEXT NOT NULL,
			city_to TEXT NOT NULL,
			region_to TEXT NOT NULL,
			date_from TEXT NOT NULL,
			date_to TEXT NOT NULL,
			weight INTEGER NOT NULL CHECK(weight > 0),
			body_type TEXT NOT NULL,
			is_local INTEGER NOT NULL DEFAULT 0,
			comment TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			CHECK(date(date_to) >= date(date_from))
		)`,
		`CREATE TABLE IF NOT EXISTS trucks (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			city TEXT NOT NULL,
			region TEXT NOT NULL,
			date_from TEXT NOT NULL,
			date_to TEXT NOT NULL,
			weight INTEGER NOT NULL CHECK(weight > 0),
			body_type TEXT NOT NULL,
			direction TEXT NOT NULL,
			route_regions TEXT NOT NULL DEFAULT '',
			comment TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			CHECK(date(date_to) >= date(date_from))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cargo_dates ON cargo(date_from, date_to)`,
		`CREATE INDEX IF NOT EXISTS idx_cargo_cities ON cargo(city_from, city_to)`,
		`CREATE INDEX IF NOT EXISTS idx_trucks_city_date ON trucks(city, date_from)`,
		`CREATE INDEX IF NOT EXISTS idx_cargo_user ON cargo(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trucks_user ON trucks(user_id)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateSchema adds columns that databases created by earlier releases lack.
func (s *SQLiteStore) migrateSchema(ctx context.Context) error {
	migrations := []struct {
		table, column, ddl string
	}{
		{"cargo", "is_local", "ALTER TABLE cargo ADD COLUMN is_local INTEGER NOT NULL DEFAULT 0"},
		{"trucks", "route_regions", "ALTER TABLE trucks ADD COLUMN route_regions TEXT NOT NULL DEFAULT ''"},
	}
	for _, m := range migrations {
		exists, err := s.columnExists(ctx, m.table, m.column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		s.log.Info().Str("table", m.table).Str("column", m.column).Msg("schema migration: adding column")
		if _, err := s.db.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}

func (s *SQLiteStore) columnExists(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, fmt.Errorf("failed to query table info for %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			typeName  string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typeName, &notnull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("failed to scan table info row: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Cache exposes the projection cache the store invalidates.
func (s *SQLiteStore) Cache() *ProjectionCache {
	return s.cache
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseTimestamp(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

type scanner interface {
	Scan(dest ...any) error
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- users ---

const userColumns = `id, telegram_id, name, city, phone, created_at`

func scanUser(row scanner) (User, error) {
	var (
		u       User
		created string
	)
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Name, &u.City, &u.Phone, &created); err != nil {
		return User{}, err
	}
	u.CreatedAt = parseTimestamp(created)
	return u, nil
}

// UserByTelegramID resolves the internal owner record of a Telegram account.
func (s *SQLiteStore) UserByTelegramID(ctx context.Context, telegramID int64) (User, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("failed to load user %d: %w", telegramID, err)
	}
	return u, true, nil
}

// CreateUser inserts u; an already registered Telegram id is left untouched.
func (s *SQLiteStore) CreateUser(ctx context.Context, u User) (bool, error) {
	created, err := affected(s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (telegram_id, name, city, phone, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.TelegramID, u.Name, u.City, u.Phone, s.timestamp(),
	))
	if err != nil {
		return false, fmt.Errorf("failed to create user %d: %w", u.TelegramID, err)
	}
	return created, nil
}

var userFieldColumns = map[UserField]string{
	UserName:  "name",
	UserCity:  "city",
	UserPhone: "phone",
}

// UpdateUser sets one profile field.
func (s *SQLiteStore) UpdateUser(ctx context.Context, userID int64, field UserField, value string) (bool, error) {
	column, ok := userFieldColumns[field]
	if !ok {
		return false, fmt.Errorf("unknown user field %q", field)
	}
	found, err := affected(s.db.ExecContext(ctx, `UPDATE users SET `+column+` = ? WHERE id = ?`, value, userID))
	if err != nil {
		return false, fmt.Errorf("failed to update user %d %s: %w", userID, field, err)
	}
	return found, nil
}

// DeleteUser removes the user together with their listings in one transaction.
func (s *SQLiteStore) DeleteUser(ctx context.Context, userID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cargo WHERE user_id = ?`, userID); err != nil {
		return false, fmt.Errorf("failed to delete cargo of user %d: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM trucks WHERE user_id = ?`, userID); err != nil {
		return false, fmt.Errorf("failed to delete trucks of user %d: %w", userID, err)
	}
	found, err := affected(tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID))
	if err != nil {
		return false, fmt.Errorf("failed to delete user %d: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit user deletion: %w", err)
	}
	s.cache.Invalidate()
	return found, nil
}

// --- cargo ---

const cargoColumns = `c.id, c.user_id, c.region_from, c.city_from, c.region_to, c.city_to,
	c.date_from, c.date_to, c.weight, c.body_type, c.is_local, c.comment, c.created_at,
	u.name, u.phone`

const cargoFrom = ` FROM cargo c JOIN users u ON u.id = c.user_id`

func scanCargo(row scanner) (Cargo, error) {
	var (
		c       Cargo
		created string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.RegionFrom, &c.CityFrom, &c.RegionTo, &c.CityTo,
		&c.DateFrom, &c.DateTo, &c.Weight, &c.BodyType, &c.IsLocal, &c.Comment, &created,
		&c.OwnerName, &c.OwnerPhone)
	if err != nil {
		return Cargo{}, err
	}
	c.CreatedAt = parseTimestamp(created)
	return c, nil
}

func (s *SQLiteStore) queryCargo(ctx context.Context, query string, args ...any) ([]Cargo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cargo
	for rows.Next() {
		c, err := scanCargo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ErrWeightRange is returned when a weight exceeds the configured bound.
var ErrWeightRange = errors.New("weight out of range")

func (s *SQLiteStore) checkWeight(weight int) error {
	if weight > s.maxWeight {
		return fmt.Errorf("%w: %d > %d", ErrWeightRange, weight, s.maxWeight)
	}
	return nil
}

// CreateCargo inserts a complete cargo listing and invalidates the projections.
func (s *SQLiteStore) CreateCargo(ctx context.Context, c Cargo) (int64, error) {
	if err := s.checkWeight(c.Weight); err != nil {
		return 0, fmt.Errorf("failed to insert cargo: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO cargo
		(user_id, city_from, region_from, city_to, region_to, date_from, date_to,
		 weight, body_type, is_local, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.CityFrom, c.RegionFrom, c.CityTo, c.RegionTo, c.DateFrom, c.DateTo,
		c.Weight, c.BodyType, c.IsLocal, c.Comment, s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert cargo: %w", err)
	}
	s.cache.Invalidate()
	return res.LastInsertId()
}

// CargoByID loads a listing owned by ownerID.
func (s *SQLiteStore) CargoByID(ctx context.Context, ownerID, id int64) (Cargo, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cargoColumns+cargoFrom+` WHERE c.id = ? AND c.user_id = ?`, id, ownerID)
	c, err := scanCargo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Cargo{}, false, nil
	}
	if err != nil {
		return Cargo{}, false, fmt.Errorf("failed to load cargo %d: %w", id, err)
	}
	return c, true, nil
}

// CargoByOwner lists the owner's cargo, newest first.
func (s *SQLiteStore) CargoByOwner(ctx context.Context, ownerID int64) ([]Cargo, error) {
	out, err := s.queryCargo(ctx, `SELECT `+cargoColumns+cargoFrom+
		` WHERE c.user_id = ? ORDER BY c.created_at DESC, c.id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cargo of user %d: %w", ownerID, err)
	}
	return out, nil
}

func (s *SQLiteStore) updateOwned(ctx context.Context, invalidate bool, query string, args ...any) (bool, error) {
	found, err := affected(s.db.ExecContext(ctx, query, args...))
	if err != nil {
		return false, err
	}
	if found && invalidate {
		s.cache.Invalidate()
	}
	return found, nil
}

func (s *SQLiteStore) UpdateCargoWeight(ctx context.Context, ownerID, id int64, weight int) (bool, error) {
	if err := s.checkWeight(weight); err != nil {
		return false, fmt.Errorf("failed to update cargo %d weight: %w", id, err)
	}
	found, err := s.updateOwned(ctx, false, `UPDATE cargo SET weight = ? WHERE id = ? AND user_id = ?`, weight, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to update cargo %d weight: %w", id, err)
	}
	return found, nil
}

func (s *SQLiteStore) UpdateCargoRoute(ctx context.Context, ownerID, id int64, regionFrom, cityFrom, regionTo, cityTo string) (bool, error) {
	found, err := s.updateOwned(ctx, true,
		`UPDATE cargo SET region_from = ?, city_from = ?, region_to = ?, city_to = ? WHERE id = ? AND user_id = ?`,
		regionFrom, cityFrom, regionTo, cityTo, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to update cargo %d route: %w", id, err)
	}
	return found, nil
}

func (s *SQLiteStore) UpdateCargoDates(ctx context.Context, ownerID, id int64, from, to string) (bool, error) {
	found, err := s.updateOwned(ctx, false,
		`UPDATE cargo SET date_from = ?, date_to = ? WHERE id = ? AND user_id = ?`, from, to, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to update cargo %d dates: %w", id, err)
	}
	return found, nil
}

func (s *SQLiteStore) DeleteCargo(ctx context.Context, ownerID, id int64) (bool, error) {
	found, err := s.updateOwned(ctx, true, `DELETE FROM cargo WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete cargo %d: %w", id, err)
	}
	return found, nil
}

// --- trucks ---

const truckColumns = `t.id, t.user_id, t.region, t.city, t.date_from, t.date_to, t.weight,
	t.body_type, t.direction, t.route_regions, t.comment, t.created_at, u.name, u.phone`

const truckFrom = ` FROM trucks t JOIN users u ON u.id = t.user_id`

func scanTruck(row scanner) (Truck, error) {
	var (
		t       Truck
		created string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Region, &t.City, &t.DateFrom, &t.DateTo, &t.Weight,
		&t.BodyType, &t.Direction, &t.RouteRegions, &t.Comment, &created, &t.OwnerName, &t.OwnerPhone)
	if err != nil {
		return Truck{}, err
	}
	t.CreatedAt = parseTimestamp(created)
	return t, nil
}

func (s *SQLiteStore) queryTrucks(ctx context.Context, query string, args ...any) ([]Truck, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Truck
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTruck inserts a complete truck listing and invalidates the projections.
func (s *SQLiteStore) CreateTruck(ctx context.Context, t Truck) (int64, error) {
	if err := s.checkWeight(t.Weight); err != nil {
		return 0, fmt.Errorf("failed to insert truck: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO trucks
		(user_id, city, region, date_from, date_to, weight, body_type, direction,
		 route_regions, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.City, t.Region, t.DateFrom, t.DateTo, t.Weight, t.BodyType, t.Direction,
		t.RouteRegions, t.Comment, s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert truck: %w", err)
	}
	s.cache.Invalidate()
	return res.LastInsertId()
}

func (s *SQLiteStore) TruckByID(ctx context.Context, ownerID, id int64) (Truck, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+truckColumns+truckFrom+` WHERE t.id = ? AND t.user_id = ?`, id, ownerID)
	t, err := scanTruck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Truck{}, false, nil
	}
	if err != nil {
		return Truck{}, false, fmt.Errorf("failed to load truck %d: %w", id, err)
	}
	return t, true, nil
}

func (s *SQLiteStore) TrucksByOwner(ctx context.Context, ownerID int64) ([]Truck, error) {
	out, err := s.queryTrucks(ctx, `SELECT `+truckColumns+truckFrom+
		` WHERE t.user_id = ? ORDER BY t.created_at DESC, t.id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trucks of user %d: %w", ownerID, err)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateTruckWeight(ctx context.Context, ownerID, id int64, weight int) (bool, error) {
	if err := s.checkWeight(weight); err != nil {
		return false, fmt.Errorf("failed to update truck %d weight: %w", id, err)
	}
	found, err := s.updateOwned(ctx, false, `UPDATE trucks SET weight = ? WHERE id = ? AND user_id = ?`, weight, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to update truck %d weight: %w", id, err)
	}
	return found, nil
}

func (s *SQLiteStore) UpdateTruckRoute(ctx context.Context, ownerID, id int64, region, city string) (bool, error) {
	found, err := s.updateOwned(ctx, true,
		`UPDATE trucks SET region = ?, city = ? WHERE id = ? AND user_id = ?`, region, city, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to update truck %d route: %w", id, err)
	}
	return found, nil
}

func (s *SQLiteStore) UpdateTruckDates(ctx context.Context, ownerID, id int64, from, to string) (bool, error) {
	found, err := s.updateOwned(ctx, false,
		`UPDATE trucks SET date_from = ?, date_to = ? WHERE id = ? AND user_id = ?`, from, to, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to update truck %d dates: %w", id, err)
	}
	return found, nil
}

func (s *SQLiteStore) UpdateTruckRegions(ctx context.Context, ownerID, id int64, regions string) (bool, error) {
	found, err := s.updateOwned(ctx, false,
		`UPDATE trucks SET route_regions = ? WHERE id = ? AND user_id = ?`, regions, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to update truck %d regions: %w", id, err)
	}
	return found, nil
}

func (s *SQLiteStore) DeleteTruck(ctx context.Context, ownerID, id int64) (bool, error) {
	found, err := s.updateOwned(ctx, true, `DELETE FROM trucks WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete truck %d: %w", id, err)
	}
	return found, nil
}

// --- search ---

func pageArgs(args []any, limit, offset int) []any {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	return append(args, limit, offset)
}

func (s *SQLiteStore) count(ctx context.Context, query string, args []any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SearchCargo applies the present filters and returns one page plus the total.
func (s *SQLiteStore) SearchCargo(ctx context.Context, f CargoFilter, limit, offset int) ([]Cargo, int, error) {
	clauses := cargoClauses(f)
	countQuery, countArgs := BuildQuery(`SELECT COUNT(*) FROM cargo c WHERE 1=1`, clauses...)
	total, err := s.count(ctx, countQuery, countArgs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count cargo: %w", err)
	}

	query, args := BuildQuery(`SELECT `+cargoColumns+cargoFrom+` WHERE 1=1`, clauses...)
	query += ` ORDER BY c.created_at DESC, c.id DESC LIMIT ? OFFSET ?`
	out, err := s.queryCargo(ctx, query, pageArgs(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search cargo: %w", err)
	}
	return out, total, nil
}

// SearchTrucks applies the present filters and returns one page plus the total.
func (s *SQLiteStore) SearchTrucks(ctx context.Context, f TruckFilter, limit, offset int) ([]Truck, int, error) {
	clauses := truckClauses(f)
	countQuery, countArgs := BuildQuery(`SELECT COUNT(*) FROM trucks t WHERE 1=1`, clauses...)
	total, err := s.count(ctx, countQuery, countArgs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count trucks: %w", err)
	}

	query, args := BuildQuery(`SELECT `+truckColumns+truckFrom+` WHERE 1=1`, clauses...)
	query += ` ORDER BY t.created_at DESC, t.id DESC LIMIT ? OFFSET ?`
	out, err := s.queryTrucks(ctx, query, pageArgs(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search trucks: %w", err)
	}
	return out, total, nil
}

// --- projections ---

var projectionQueries = map[Projection]string{
	CargoOrigins:      `SELECT DISTINCT city_from FROM cargo ORDER BY city_from`,
	CargoDestinations: `SELECT DISTINCT city_to FROM cargo ORDER BY city_to`,
	TruckCities:       `SELECT DISTINCT city FROM trucks ORDER BY city`,
}

func (s *SQLiteStore) projection(ctx context.Context, p Projection) ([]string, error) {
	if cities, ok := s.cache.Get(p); ok {
		return cities, nil
	}
	rows, err := s.db.QueryContext(ctx, projectionQueries[p])
	if err != nil {
		return nil, fmt.Errorf("failed to load city projection: %w", err)
	}
	defer rows.Close()

	cities := []string{}
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		cities = append(cities, city)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cities: %w", err)
	}
	s.cache.Put(p, cities)
	return cities, nil
}

func (s *SQLiteStore) CargoOriginCities(ctx context.Context) ([]string, error) {
	return s.projection(ctx, CargoOrigins)
}

func (s *SQLiteStore) CargoDestinationCities(ctx context.Context) ([]string, error) {
	return s.projection(ctx, CargoDestinations)
}

func (s *SQLiteStore) TruckCities(ctx context.Context) ([]string, error) {
	return s.projection(ctx, TruckCities)
}

// --- operator views ---

// Stats counts users (total and registered since), cargo and trucks.
func (s *SQLiteStore) Stats(ctx context.Context, since time.Time) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM users WHERE created_at >= ?),
		(SELECT COUNT(*) FROM cargo),
		(SELECT COUNT(*) FROM trucks)`,
		since.UTC().Format(timeLayout),
	).Scan(&st.TotalUsers, &st.NewUsers, &st.Cargo, &st.Trucks)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to collect stats: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) LatestUsers(ctx context.Context, limit int) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LatestCargo(ctx context.Context, limit int) ([]Cargo, error) {
	out, err := s.queryCargo(ctx, `SELECT `+cargoColumns+cargoFrom+
		` ORDER BY c.created_at DESC, c.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cargo: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) LatestTrucks(ctx context.Context, limit int) ([]Truck, error) {
	out, err := s.queryTrucks(ctx, `SELECT `+truckColumns+truckFrom+
		` ORDER BY t.created_at DESC, t.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trucks: %w", err)
	}
	return out, nil
}

// TelegramIDs returns every registered Telegram account, oldest first.
func (s *SQLiteStore) TelegramIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT telegram_id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list telegram ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan telegram id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
