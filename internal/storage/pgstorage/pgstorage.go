package pgstorage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"syscall"
	"time"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/domain/wallet"
	"github.com/andymarkow/accountmart/internal/storage"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	// Postgres driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var _ storage.Storage = (*Storage)(nil)

//go:embed migrations/*.sql
var migrations embed.FS

type Storage struct {
	db  *sql.DB
	log *slog.Logger

	retryCount      int
	retryWaitTime   time.Duration
	txMaxAttempts   int
	txRetryWaitTime time.Duration
}

type Config struct {
	logger          *slog.Logger
	maxOpenConns    int
	maxIdleConns    int
	connMaxIdleTime time.Duration
	connMaxLifetime time.Duration
	retryCount      int
	retryWaitTime   time.Duration
	txMaxAttempts   int
	txRetryWaitTime time.Duration
}

type Option func(s *Config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithMaxOpenConns(conns int) Option {
	return func(c *Config) {
		c.maxOpenConns = conns
	}
}

func WithMaxIdleConns(conns int) Option {
	return func(c *Config) {
		c.maxIdleConns = conns
	}
}

func WithConnMaxIdleTime(idleTime time.Duration) Option {
	return func(c *Config) {
		c.connMaxIdleTime = idleTime
	}
}

func WithConnMaxLifetime(lifetime time.Duration) Option {
	return func(c *Config) {
		c.connMaxLifetime = lifetime
	}
}

// WithRetry sets how often an operation is repeated on connection errors and
// the base wait between attempts.
func WithRetry(count int, waitTime time.Duration) Option {
	return func(c *Config) {
		c.retryCount = count
		c.retryWaitTime = waitTime
	}
}

// WithTxRetry sets how often a transaction is re-run after a serialization
// failure and the base wait between attempts.
func WithTxRetry(attempts int, waitTime time.Duration) Option {
	return func(c *Config) {
		c.txMaxAttempts = attempts
		c.txRetryWaitTime = waitTime
	}
}

func defaultConfig() *Config {
	return &Config{
		logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		maxOpenConns:    10,
		maxIdleConns:    5,
		connMaxIdleTime: 180 * time.Second,
		connMaxLifetime: 3600 * time.Second,
		retryCount:      3,
		retryWaitTime:   time.Second,
		txMaxAttempts:   5,
		txRetryWaitTime: 20 * time.Millisecond,
	}
}

func NewStorage(connStr string, opts ...Option) (*Storage, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxIdleTime(cfg.connMaxIdleTime)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)

	return newStorage(db, cfg), nil
}

// NewStorageFromDB wraps an already opened database handle.
func NewStorageFromDB(db *sql.DB, opts ...Option) *Storage {
	cfg := defaultConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	return newStorage(db, cfg)
}

func newStorage(db *sql.DB, cfg *Config) *Storage {
	return &Storage{
		db:              db,
		log:             cfg.logger.With(slog.String("module", "pgstorage")),
		retryCount:      max(cfg.retryCount, 1),
		retryWaitTime:   cfg.retryWaitTime,
		txMaxAttempts:   max(cfg.txMaxAttempts, 1),
		txRetryWaitTime: cfg.txRetryWaitTime,
	}
}

// Bootstrap applies the embedded schema migrations.
func (s *Storage) Bootstrap(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("fs.Sub: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, s.db, fsys)
	if err != nil {
		return fmt.Errorf("goose.NewProvider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("provider.Up: %w", err)
	}

	for _, res := range results {
		s.log.Info("Migration applied", slog.String("source", res.Source.Path), slog.Duration("duration", res.Duration))
	}

	return nil
}

func (s *Storage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("db.Close: %w", err)
	}

	return nil
}

// isRetryableError checks if error is a connection level failure.
func isRetryableError(err error) bool {
	// Connection refused error
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsConnectionException(pgErr.Code) {
		return true
	}

	return false
}

// isSerializationError checks if the transaction lost a concurrency race
// and may succeed when run again.
func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// foreignKeyViolation reports a reference to a missing row and the name of
// the violated constraint.
func foreignKeyViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.ForeignKeyViolation {
		return "", false
	}

	return pgErr.ConstraintName, true
}

// withRetry retries operations in case of connection errors.
func (s *Storage) withRetry(ctx context.Context, operation func() error) error {
	var err error

	for i := 0; i < s.retryCount; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			return err
		}

		// 1x, 3x, 5x the base wait time.
		if err := sleep(ctx, time.Duration(i*2+1)*s.retryWaitTime); err != nil {
			return err
		}
	}

	return fmt.Errorf("retry attempts exceeded: %w", err)
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.withRetry(ctx, func() error {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("db.PingContext: %w", err)
		}

		return nil
	})
}

// RunTransaction runs fn in a SERIALIZABLE transaction. Postgres aborts the
// loser of a read/write race with a serialization failure; fn is then run
// again from scratch.
func (s *Storage) RunTransaction(ctx context.Context, fn storage.TxFunc) error {
	var err error

	for attempt := 1; attempt <= s.txMaxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil {
			return nil
		}

		if !isSerializationError(err) && !isRetryableError(err) {
			return err
		}

		s.log.Debug("Transaction conflict, retrying",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		if err := sleep(ctx, time.Duration(attempt)*s.txRetryWaitTime); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %w", storage.ErrConflict, err)
}

func (s *Storage) runTx(ctx context.Context, fn storage.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("db.BeginTx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx.Commit: %w", err)
	}

	return nil
}

func (s *Storage) CreateUser(ctx context.Context, usr *users.User) error {
	return s.withRetry(ctx, func() error {
		return insertUser(ctx, s.db, usr)
	})
}

func (s *Storage) GetUser(ctx context.Context, id string) (*users.User, error) {
	var usr *users.User

	err := s.withRetry(ctx, func() error {
		var err error
		usr, err = selectUser(ctx, s.db, id, false)

		return err
	})
	if err != nil {
		return nil, err
	}

	return usr, nil
}

func (s *Storage) IncrementBalance(ctx context.Context, userID string, delta int64) error {
	return s.withRetry(ctx, func() error {
		return incrementBalance(ctx, s.db, userID, delta)
	})
}

func (s *Storage) CreateAccount(ctx context.Context, acc *accounts.Account) error {
	return s.withRetry(ctx, func() error {
		return insertAccount(ctx, s.db, acc)
	})
}

func (s *Storage) GetAccount(ctx context.Context, id string) (*accounts.Account, error) {
	var acc *accounts.Account

	err := s.withRetry(ctx, func() error {
		var err error
		acc, err = selectAccount(ctx, s.db, id, false)

		return err
	})
	if err != nil {
		return nil, err
	}

	return acc, nil
}

func (s *Storage) GetAccountsByStatus(ctx context.Context, statuses ...accounts.Status) ([]*accounts.Account, error) {
	var accs []*accounts.Account

	err := s.withRetry(ctx, func() error {
		var err error
		accs, err = selectAccountsByStatus(ctx, s.db, statuses)

		return err
	})
	if err != nil {
		return nil, err
	}

	return accs, nil
}

func (s *Storage) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	var ord *orders.Order

	err := s.withRetry(ctx, func() error {
		var err error
		ord, err = selectOrder(ctx, s.db, id, false)

		return err
	})
	if err != nil {
		return nil, err
	}

	return ord, nil
}

func (s *Storage) GetOrdersByBuyer(ctx context.Context, buyerID string) ([]*orders.Order, error) {
	return s.selectOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`,
		buyerID)
}

func (s *Storage) GetOrdersByStatus(ctx context.Context, statuses ...orders.OrderStatus) ([]*orders.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}

	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		args = append(args, orderStatusArray(statuses))
	}

	query += ` ORDER BY created_at DESC`

	return s.selectOrders(ctx, query, args...)
}

// GetOrdersByAccountID is served by the order_items account index.
func (s *Storage) GetOrdersByAccountID(
	ctx context.Context, accountID string, statuses ...orders.OrderStatus,
) ([]*orders.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE EXISTS` +
		` (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.account_id = $1)`
	args := []any{accountID}

	if len(statuses) > 0 {
		query += ` AND o.status = ANY($2)`
		args = append(args, orderStatusArray(statuses))
	}

	query += ` ORDER BY o.created_at DESC`

	return s.selectOrders(ctx, query, args...)
}

func (s *Storage) selectOrders(ctx context.Context, query string, args ...any) ([]*orders.Order, error) {
	var ords []*orders.Order

	err := s.withRetry(ctx, func() error {
		var err error
		ords, err = selectOrders(ctx, s.db, query, args...)

		return err
	})
	if err != nil {
		return nil, err
	}

	return ords, nil
}

func (s *Storage) CreateTransaction(ctx context.Context, txn *wallet.Transaction) error {
	return s.withRetry(ctx, func() error {
		return insertTransaction(ctx, s.db, txn)
	})
}

func (s *Storage) GetTransaction(ctx context.Context, id string) (*wallet.Transaction, error) {
	var txn *wallet.Transaction

	err := s.withRetry(ctx, func() error {
		var err error
		txn, err = selectTransaction(ctx, s.db, id, false)

		return err
	})
	if err != nil {
		return nil, err
	}

	return txn, nil
}

func (s *Storage) GetTransactionsByUser(ctx context.Context, userID string) ([]*wallet.Transaction, error) {
	return s.selectTransactions(ctx,
		`SELECT `+transactionColumns+` FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (s *Storage) GetTransactionsByStatus(ctx context.Context, statuses ...wallet.Status) ([]*wallet.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions`
	args := []any{}

	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		args = append(args, walletStatusArray(statuses))
	}

	query += ` ORDER BY created_at DESC`

	return s.selectTransactions(ctx, query, args...)
}

func (s *Storage) selectTransactions(ctx context.Context, query string, args ...any) ([]*wallet.Transaction, error) {
	var txns []*wallet.Transaction

	err := s.withRetry(ctx, func() error {
		var err error
		txns, err = selectTransactions(ctx, s.db, query, args...)

		return err
	})
	if err != nil {
		return nil, err
	}

	return txns, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("ctx.Done: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
