package postgres

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lucsky/cuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/quiltdata/benchling-webhook-sub011/internal/storage"
)

type Adapter struct {
	db     *sql.DB
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	db, err := sql.Open("pgx", config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Create default user if none exists
	if err := adapter.createDefaultUser(); err != nil {
		return nil, fmt.Errorf("failed to create default user: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			is_default BOOLEAN DEFAULT false,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS deliveries (
			id TEXT PRIMARY KEY,
			message_id VARCHAR(255) NOT NULL,
			app_id VARCHAR(255) NOT NULL DEFAULT '',
			outcome VARCHAR(32) NOT NULL,
			reject_reason VARCHAR(64) NOT NULL DEFAULT '',
			source_ip VARCHAR(64) NOT NULL DEFAULT '',
			payload BYTEA,
			encrypted BOOLEAN DEFAULT false,
			forwarded BOOLEAN DEFAULT false,
			received_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_deliveries_message_id ON deliveries(message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_app_id ON deliveries(app_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_outcome ON deliveries(outcome)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_received_at ON deliveries(received_at)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

func (a *Adapter) createDefaultUser() error {
	var count int
	if err := a.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}

	if count > 0 {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash default password: %w", err)
	}

	_, err = a.db.Exec(`INSERT INTO users (id, username, password_hash, is_default)
					 VALUES ($1, $2, $3, true)`, cuid.New(), "admin", string(hashedPassword))
	if err != nil {
		return fmt.Errorf("failed to insert default user: %w", err)
	}

	return nil
}

// User methods
func (a *Adapter) CreateUser(username, password string) (*storage.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := cuid.New()
	_, err = a.db.Exec(`INSERT INTO users (id, username, password_hash, is_default)
					 VALUES ($1, $2, $3, false)`, id, username, string(hashedPassword))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return a.GetUser(id)
}

func (a *Adapter) GetUser(userID string) (*storage.User, error) {
	user := &storage.User{}
	err := a.db.QueryRow(`SELECT id, username, password_hash, is_default, created_at, updated_at
						FROM users WHERE id = $1`, userID).Scan(
		&user.ID, &user.Username, &user.Password, &user.IsDefault, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return user, nil
}

func (a *Adapter) GetUserByUsername(username string) (*storage.User, error) {
	user := &storage.User{}
	err := a.db.QueryRow(`SELECT id, username, password_hash, is_default, created_at, updated_at
						FROM users WHERE username = $1`, username).Scan(
		&user.ID, &user.Username, &user.Password, &user.IsDefault, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return user, nil
}

func (a *Adapter) ValidateUser(username, password string) (*storage.User, error) {
	user, err := a.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid password")
	}

	return user, nil
}

func (a *Adapter) UpdateUserCredentials(userID string, username, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = a.db.Exec(`UPDATE users SET username = $1, password_hash = $2, is_default = false, updated_at = NOW()
					 WHERE id = $3`, username, string(hashedPassword), userID)
	if err != nil {
		return fmt.Errorf("failed to update user credentials: %w", err)
	}

	return nil
}

func (a *Adapter) IsDefaultUser(userID string) (bool, error) {
	var isDefault bool
	err := a.db.QueryRow("SELECT is_default FROM users WHERE id = $1", userID).Scan(&isDefault)
	return isDefault, err
}

func (a *Adapter) GetUserCount() (int, error) {
	var count int
	err := a.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// Delivery methods
func (a *Adapter) CreateDelivery(delivery *storage.Delivery) error {
	if delivery.ID == "" {
		delivery.ID = cuid.New()
	}
	if delivery.ReceivedAt.IsZero() {
		delivery.ReceivedAt = time.Now().UTC()
	}

	query := `INSERT INTO deliveries (id, message_id, app_id, outcome, reject_reason, source_ip, payload, encrypted, forwarded, received_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := a.db.Exec(query, delivery.ID, delivery.MessageID, delivery.AppID, delivery.Outcome,
		delivery.RejectReason, delivery.SourceIP, delivery.Payload, delivery.Encrypted,
		delivery.Forwarded, delivery.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}

	return nil
}

func (a *Adapter) GetDelivery(id string) (*storage.Delivery, error) {
	delivery := &storage.Delivery{}
	err := a.db.QueryRow(`SELECT id, message_id, app_id, outcome, reject_reason, source_ip, payload, encrypted, forwarded, received_at
						FROM deliveries WHERE id = $1`, id).Scan(
		&delivery.ID, &delivery.MessageID, &delivery.AppID, &delivery.Outcome,
		&delivery.RejectReason, &delivery.SourceIP, &delivery.Payload, &delivery.Encrypted,
		&delivery.Forwarded, &delivery.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("delivery not found: %w", err)
	}

	return delivery, nil
}

func (a *Adapter) GetDeliveryByMessageID(messageID string) (*storage.Delivery, error) {
	delivery := &storage.Delivery{}
	err := a.db.QueryRow(`SELECT id, message_id, app_id, outcome, reject_reason, source_ip, payload, encrypted, forwarded, received_at
						FROM deliveries WHERE message_id = $1 ORDER BY received_at DESC LIMIT 1`, messageID).Scan(
		&delivery.ID, &delivery.MessageID, &delivery.AppID, &delivery.Outcome,
		&delivery.RejectReason, &delivery.SourceIP, &delivery.Payload, &delivery.Encrypted,
		&delivery.Forwarded, &delivery.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("delivery not found: %w", err)
	}

	return delivery, nil
}

func (a *Adapter) ListDeliveries(filters storage.DeliveryFilters, limit, offset int) ([]*storage.Delivery, int, error) {
	var conditions []string
	var args []interface{}

	if filters.AppID != "" {
		args = append(args, filters.AppID)
		conditions = append(conditions, fmt.Sprintf("app_id = $%d", len(args)))
	}
	if filters.Outcome != "" {
		args = append(args, filters.Outcome)
		conditions = append(conditions, fmt.Sprintf("outcome = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := a.db.QueryRow("SELECT COUNT(*) FROM deliveries"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count deliveries: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, message_id, app_id, outcome, reject_reason, source_ip, payload, encrypted, forwarded, received_at
			  FROM deliveries%s ORDER BY received_at DESC LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	rows, err := a.db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*storage.Delivery
	for rows.Next() {
		delivery := &storage.Delivery{}
		err := rows.Scan(&delivery.ID, &delivery.MessageID, &delivery.AppID, &delivery.Outcome,
			&delivery.RejectReason, &delivery.SourceIP, &delivery.Payload, &delivery.Encrypted,
			&delivery.Forwarded, &delivery.ReceivedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, delivery)
	}

	return deliveries, total, nil
}

func (a *Adapter) MarkDeliveryForwarded(id string) error {
	result, err := a.db.Exec("UPDATE deliveries SET forwarded = true WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to mark delivery forwarded: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delivery not found: %s", id)
	}

	return nil
}

func (a *Adapter) DeleteOldDeliveries(before time.Time) (int64, error) {
	result, err := a.db.Exec("DELETE FROM deliveries WHERE received_at < $1", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old deliveries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}

	return deleted, nil
}

func (a *Adapter) GetStats() (*storage.Stats, error) {
	stats := &storage.Stats{
		RejectReasons: make(map[string]int64),
	}

	err := a.db.QueryRow(`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = $1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = $2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN forwarded THEN 1 ELSE 0 END), 0)
			FROM deliveries`, storage.OutcomeAccepted, storage.OutcomeRejected).Scan(
		&stats.TotalDeliveries, &stats.AcceptedDeliveries, &stats.RejectedDeliveries, &stats.ForwardedDeliveries)
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery counts: %w", err)
	}

	err = a.db.QueryRow(`SELECT COUNT(*) FROM deliveries
			WHERE received_at >= NOW() - INTERVAL '24 hours'`).Scan(&stats.DeliveriesLast24h)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent delivery count: %w", err)
	}

	rows, err := a.db.Query(`SELECT reject_reason, COUNT(*) FROM deliveries
			WHERE outcome = $1 AND reject_reason != '' GROUP BY reject_reason`, storage.OutcomeRejected)
	if err != nil {
		return nil, fmt.Errorf("failed to get reject reasons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reason string
		var count int64
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("failed to scan reject reason: %w", err)
		}
		stats.RejectReasons[reason] = count
	}

	return stats, nil
}
