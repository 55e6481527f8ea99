package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore implements Store using a PostgreSQL backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore initializes a new PostgresStore with a connection pool
// and bootstraps the schema.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	// One statement per Exec: the pooled extended protocol rejects
	// multi-statement strings.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id    BIGSERIAL PRIMARY KEY,
			username   VARCHAR(20) UNIQUE NOT NULL,
			password   VARCHAR(64) NOT NULL,
			is_admin   BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS piles (
			pile_id                    BIGINT PRIMARY KEY,
			kind                       INT NOT NULL,
			status                     INT NOT NULL,
			register_time              DATE NOT NULL,
			cumulative_usage_times     INT NOT NULL DEFAULT 0,
			cumulative_charging_time   BIGINT NOT NULL DEFAULT 0,
			cumulative_charging_amount NUMERIC(10,2) NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			order_id        UUID PRIMARY KEY,
			user_id         BIGINT NOT NULL REFERENCES users(user_id),
			pile_id         BIGINT NOT NULL REFERENCES piles(pile_id),
			create_time     TIMESTAMPTZ NOT NULL,
			begin_time      TIMESTAMPTZ NOT NULL,
			end_time        TIMESTAMPTZ NOT NULL,
			charged_amount  NUMERIC(10,2) NOT NULL,
			charged_time    BIGINT NOT NULL,
			charging_cost   NUMERIC(10,2) NOT NULL,
			service_cost    NUMERIC(10,2) NOT NULL,
			total_cost      NUMERIC(10,2) NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// --- User Operations ---

func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (username, password, is_admin)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO NOTHING
		RETURNING user_id
	`
	err := s.pool.QueryRow(ctx, query, user.Username, user.Password, user.IsAdmin).Scan(&user.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserExists
	}
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, username string) (*User, error) {
	query := `SELECT user_id, username, password, is_admin FROM users WHERE username = $1`
	var u User
	err := s.pool.QueryRow(ctx, query, username).Scan(&u.UserID, &u.Username, &u.Password, &u.IsAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) SetAdmin(ctx context.Context, username string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_admin = TRUE WHERE username = $1`, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// --- Pile Operations ---

func (s *PostgresStore) ListPiles(ctx context.Context) ([]*Pile, error) {
	query := `
		SELECT pile_id, kind, status, register_time,
		       cumulative_usage_times, cumulative_charging_time, cumulative_charging_amount
		FROM piles ORDER BY pile_id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var piles []*Pile
	for rows.Next() {
		var p Pile
		if err := rows.Scan(
			&p.PileID, &p.Kind, &p.Status, &p.RegisterTime,
			&p.CumulativeUsageTimes, &p.CumulativeChargingSeconds, &p.CumulativeChargingAmount,
		); err != nil {
			return nil, err
		}
		piles = append(piles, &p)
	}
	return piles, rows.Err()
}

func (s *PostgresStore) GetPile(ctx context.Context, pileID int) (*Pile, error) {
	query := `
		SELECT pile_id, kind, status, register_time,
		       cumulative_usage_times, cumulative_charging_time, cumulative_charging_amount
		FROM piles WHERE pile_id = $1
	`
	var p Pile
	err := s.pool.QueryRow(ctx, query, pileID).Scan(
		&p.PileID, &p.Kind, &p.Status, &p.RegisterTime,
		&p.CumulativeUsageTimes, &p.CumulativeChargingSeconds, &p.CumulativeChargingAmount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) UpdatePileStatus(ctx context.Context, pileID int, status PileStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE piles SET status = $2 WHERE pile_id = $1`, pileID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPileNotFound
	}
	return nil
}

func (s *PostgresStore) BumpPileCounters(ctx context.Context, pileID int, seconds int64, amount decimal.Decimal) error {
	query := `
		UPDATE piles SET
			cumulative_usage_times = cumulative_usage_times + 1,
			cumulative_charging_time = cumulative_charging_time + $2,
			cumulative_charging_amount = cumulative_charging_amount + $3
		WHERE pile_id = $1
	`
	tag, err := s.pool.Exec(ctx, query, pileID, seconds, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPileNotFound
	}
	return nil
}

func (s *PostgresStore) SeedPiles(ctx context.Context, piles []*Pile) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM piles`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, p := range piles {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO piles (pile_id, kind, status, register_time, cumulative_charging_amount)
			VALUES ($1, $2, $3, $4, 0)
		`, p.PileID, p.Kind, p.Status, p.RegisterTime)
		if err != nil {
			return err
		}
	}
	return nil
}

// --- Order Operations ---

func (s *PostgresStore) SaveOrder(ctx context.Context, order *Order) error {
	query := `
		INSERT INTO orders (order_id, user_id, pile_id, create_time, begin_time, end_time,
		                    charged_amount, charged_time, charging_cost, service_cost, total_cost)
		VALUES ($1, (SELECT user_id FROM users WHERE username = $2), $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.pool.Exec(ctx, query,
		order.OrderID, order.Username, order.PileID,
		order.CreateTime, order.BeginTime, order.EndTime,
		order.ChargedAmount, order.ChargedSeconds,
		order.ChargingCost, order.ServiceCost, order.TotalCost,
	)
	return err
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, username string) ([]*Order, error) {
	query := `
		SELECT o.order_id, u.username, o.pile_id, o.create_time, o.begin_time, o.end_time,
		       o.charged_amount, o.charged_time, o.charging_cost, o.service_cost, o.total_cost
		FROM orders o JOIN users u ON u.user_id = o.user_id
		WHERE u.username = $1
		ORDER BY o.create_time DESC
	`
	rows, err := s.pool.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.OrderID, &o.Username, &o.PileID, &o.CreateTime, &o.BeginTime, &o.EndTime,
			&o.ChargedAmount, &o.ChargedSeconds, &o.ChargingCost, &o.ServiceCost, &o.TotalCost,
		); err != nil {
			return nil, err
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) PileReport(ctx context.Context) ([]*PileReport, error) {
	query := `
		SELECT p.pile_id, p.kind, p.status, p.register_time,
		       p.cumulative_usage_times, p.cumulative_charging_time, p.cumulative_charging_amount,
		       COALESCE(SUM(o.charging_cost), 0),
		       COALESCE(SUM(o.service_cost), 0),
		       COALESCE(SUM(o.total_cost), 0)
		FROM piles p LEFT JOIN orders o ON o.pile_id = p.pile_id
		GROUP BY p.pile_id
		ORDER BY p.pile_id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*PileReport
	for rows.Next() {
		var r PileReport
		if err := rows.Scan(
			&r.PileID, &r.Kind, &r.Status, &r.RegisterTime,
			&r.CumulativeUsageTimes, &r.CumulativeChargingSeconds, &r.CumulativeChargingAmount,
			&r.CumulativeChargingEarning, &r.CumulativeServiceEarning, &r.CumulativeEarning,
		); err != nil {
			return nil, err
		}
		reports = append(reports, &r)
	}
	return reports, rows.Err()
}
