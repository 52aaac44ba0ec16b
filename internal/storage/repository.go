package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- services ---

func (r *SQLiteRepository) CreateService(ctx context.Context, name string) (Service, error) {
	var s Service
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO services (name) VALUES (?) RETURNING id, name, created_at`,
		name).Scan(&s.ID, &s.Name, &s.CreatedAt)
	if err != nil {
		return Service{}, fmt.Errorf("create service: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) GetService(ctx context.Context, id int64) (Service, error) {
	var s Service
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM services WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Service{}, fmt.Errorf("service %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Service{}, fmt.Errorf("get service: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM services ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateService(ctx context.Context, id int64, name string) (Service, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE services SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return Service{}, fmt.Errorf("update service: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Service{}, fmt.Errorf("service %d: %w", id, ErrNotFound)
	}
	return r.GetService(ctx, id)
}

func (r *SQLiteRepository) DeleteService(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("service %d: %w", id, ErrNotFound)
	}
	return nil
}

// --- teams ---

func (r *SQLiteRepository) CreateTeam(ctx context.Context, serviceID int64, name string) (Team, error) {
	var t Team
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO teams (service_id, name) VALUES (?, ?)
		 RETURNING id, service_id, name, created_at`,
		serviceID, name).Scan(&t.ID, &t.ServiceID, &t.Name, &t.CreatedAt)
	if err != nil {
		return Team{}, fmt.Errorf("create team: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetTeam(ctx context.Context, id int64) (Team, error) {
	var t Team
	err := r.db.QueryRowContext(ctx,
		`SELECT id, service_id, name, created_at FROM teams WHERE id = ?`, id).
		Scan(&t.ID, &t.ServiceID, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Team{}, fmt.Errorf("team %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Team{}, fmt.Errorf("get team: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, service_id, name, created_at FROM teams ORDER BY service_id, name`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var out []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.ServiceID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateTeam(ctx context.Context, id, serviceID int64, name string) (Team, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE teams SET service_id = ?, name = ? WHERE id = ?`, serviceID, name, id)
	if err != nil {
		return Team{}, fmt.Errorf("update team: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Team{}, fmt.Errorf("team %d: %w", id, ErrNotFound)
	}
	return r.GetTeam(ctx, id)
}

func (r *SQLiteRepository) DeleteTeam(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("team %d: %w", id, ErrNotFound)
	}
	return nil
}

// --- users ---

func (r *SQLiteRepository) CreateUser(ctx context.Context, u User) (User, error) {
	var out User
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (team_id, name, email, role) VALUES (?, ?, ?, ?)
		 RETURNING id, team_id, name, email, role, created_at`,
		nullableID(u.TeamID), u.Name, u.Email, u.Role).
		Scan(&out.ID, &teamIDScanner{&out.TeamID}, &out.Name, &out.Email, &out.Role, &out.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, team_id, name, email, role, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &teamIDScanner{&u.TeamID}, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, team_id, name, email, role, created_at FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &teamIDScanner{&u.TeamID}, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u User) (User, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET team_id = ?, name = ?, email = ?, role = ? WHERE id = ?`,
		nullableID(u.TeamID), u.Name, u.Email, u.Role, u.ID)
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, fmt.Errorf("user %d: %w", u.ID, ErrNotFound)
	}
	return r.GetUser(ctx, u.ID)
}

func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// --- bundles ---

func (r *SQLiteRepository) CreateBundle(ctx context.Context, teamID int64, name, icon string) (Bundle, error) {
	var b Bundle
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO bundles (team_id, name, icon) VALUES (?, ?, ?)
		 RETURNING id, team_id, name, icon, created_at`,
		teamID, name, icon).Scan(&b.ID, &b.TeamID, &b.Name, &b.Icon, &b.CreatedAt)
	if err != nil {
		return Bundle{}, fmt.Errorf("create bundle: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBundle(ctx context.Context, id int64) (Bundle, error) {
	var b Bundle
	err := r.db.QueryRowContext(ctx,
		`SELECT id, team_id, name, icon, created_at FROM bundles WHERE id = ?`, id).
		Scan(&b.ID, &b.TeamID, &b.Name, &b.Icon, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Bundle{}, fmt.Errorf("bundle %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Bundle{}, fmt.Errorf("get bundle: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBundles(ctx context.Context) ([]Bundle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, team_id, name, icon, created_at FROM bundles ORDER BY team_id, name`)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	var out []Bundle
	for rows.Next() {
		var b Bundle
		if err := rows.Scan(&b.ID, &b.TeamID, &b.Name, &b.Icon, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateBundle(ctx context.Context, b Bundle) (Bundle, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bundles SET team_id = ?, name = ?, icon = ? WHERE id = ?`,
		b.TeamID, b.Name, b.Icon, b.ID)
	if err != nil {
		return Bundle{}, fmt.Errorf("update bundle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Bundle{}, fmt.Errorf("bundle %d: %w", b.ID, ErrNotFound)
	}
	return r.GetBundle(ctx, b.ID)
}

func (r *SQLiteRepository) DeleteBundle(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bundles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bundle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bundle %d: %w", id, ErrNotFound)
	}
	return nil
}

// --- charts ---

const chartColumns = `id, bundle_id, name, ux_component, periodicity, is_cumulative,
	short_target, long_target, nb_decimal, distribution_mode, min_value, max_value, created_at`

func (r *SQLiteRepository) scanChart(row interface{ Scan(...any) error }) (Chart, error) {
	var (
		c        Chart
		min, max sql.NullFloat64
	)
	err := row.Scan(&c.ID, &c.BundleID, &c.Name, &c.UXComponent,
		&c.Config.Periodicity, &c.Config.IsCumulative,
		&c.Config.ShortTarget, &c.Config.LongTarget, &c.Config.NbDecimal,
		&c.Config.DistributionMode, &min, &max, &c.CreatedAt)
	if err != nil {
		return Chart{}, err
	}
	if min.Valid {
		c.Config.Min = &min.Float64
	}
	if max.Valid {
		c.Config.Max = &max.Float64
	}
	return c, nil
}

func (r *SQLiteRepository) CreateChart(ctx context.Context, c Chart) (Chart, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO charts (bundle_id, name, ux_component, periodicity, is_cumulative,
			short_target, long_target, nb_decimal, distribution_mode, min_value, max_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+chartColumns,
		c.BundleID, c.Name, c.UXComponent,
		string(c.Config.Periodicity), c.Config.IsCumulative,
		c.Config.ShortTarget, c.Config.LongTarget, c.Config.NbDecimal,
		string(c.Config.DistributionMode), nullableFloat(c.Config.Min), nullableFloat(c.Config.Max))
	out, err := r.scanChart(row)
	if err != nil {
		return Chart{}, fmt.Errorf("create chart: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetChart(ctx context.Context, id int64) (Chart, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+chartColumns+` FROM charts WHERE id = ?`, id)
	c, err := r.scanChart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Chart{}, fmt.Errorf("chart %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Chart{}, fmt.Errorf("get chart: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCharts(ctx context.Context) ([]Chart, error) {
	return r.listCharts(ctx, `SELECT `+chartColumns+` FROM charts ORDER BY bundle_id, name`)
}

func (r *SQLiteRepository) ListChartsByBundle(ctx context.Context, bundleID int64) ([]Chart, error) {
	return r.listCharts(ctx,
		`SELECT `+chartColumns+` FROM charts WHERE bundle_id = ? ORDER BY name`, bundleID)
}

func (r *SQLiteRepository) listCharts(ctx context.Context, query string, args ...any) ([]Chart, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}
	defer rows.Close()

	var out []Chart
	for rows.Next() {
		c, err := r.scanChart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chart: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateChart(ctx context.Context, c Chart) (Chart, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE charts SET bundle_id = ?, name = ?, ux_component = ?, periodicity = ?,
			is_cumulative = ?, short_target = ?, long_target = ?, nb_decimal = ?,
			distribution_mode = ?, min_value = ?, max_value = ?
		 WHERE id = ?`,
		c.BundleID, c.Name, c.UXComponent,
		string(c.Config.Periodicity), c.Config.IsCumulative,
		c.Config.ShortTarget, c.Config.LongTarget, c.Config.NbDecimal,
		string(c.Config.DistributionMode), nullableFloat(c.Config.Min), nullableFloat(c.Config.Max),
		c.ID)
	if err != nil {
		return Chart{}, fmt.Errorf("update chart: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Chart{}, fmt.Errorf("chart %d: %w", c.ID, ErrNotFound)
	}
	return r.GetChart(ctx, c.ID)
}

func (r *SQLiteRepository) DeleteChart(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM charts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chart: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chart %d: %w", id, ErrNotFound)
	}
	return nil
}

// --- scan helpers ---

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// teamIDScanner scans a nullable team_id column into a *int64 field.
type teamIDScanner struct {
	dst **int64
}

func (s *teamIDScanner) Scan(v any) error {
	if v == nil {
		*s.dst = nil
		return nil
	}
	n, ok := v.(int64)
	if !ok {
		return fmt.Errorf("unexpected team_id type %T", v)
	}
	*s.dst = &n
	return nil
}
