// Package postgresdb provides a PostgreSQL-based implementation of the storage interface
// for persisting users and their room designs.
// It supports transactional operations and the user-to-design cascade.
package postgresdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/interioai/internal/db/storage"
	"github.com/patric-chuzhbe/interioai/internal/models"
	"github.com/patric-chuzhbe/interioai/internal/user"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	migrationsDir = "migrations"

	uniqueViolationCode = "23505"
	emailConstraintName = "user_email_key"
)

// PostgresDB is a PostgreSQL-backed storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables dropping every table before migration.
// It is meant for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs the embedded schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := newWithDB(database, connectionTimeout)

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.UpContext(ctx, result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.UpContext()` calling: %w",
				err,
			)
	}

	return result, nil
}

func newWithDB(database *sql.DB, connectionTimeout time.Duration) *PostgresDB {
	return &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}
}

func (db *PostgresDB) queryer(transaction *sql.Tx) queryer {
	if transaction == nil {
		return db.database
	}

	return transaction
}

func (db *PostgresDB) executor(transaction *sql.Tx) executor {
	if transaction == nil {
		return db.database
	}

	return transaction
}

// CommitTransaction commits the given SQL transaction.
func (db *PostgresDB) CommitTransaction(transaction *sql.Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while committing transaction: %v", r)
		}
	}()

	return transaction.Commit()
}

// RollbackTransaction rolls back the given SQL transaction.
// Rolling back an already committed transaction is not an error.
func (db *PostgresDB) RollbackTransaction(transaction *sql.Tx) error {
	err := transaction.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}

	return err
}

// BeginTransaction starts a new SQL transaction and returns it.
// The caller is responsible for committing or rolling it back.
func (db *PostgresDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

func isEmailUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) &&
		pgErr.Code == uniqueViolationCode &&
		(pgErr.ConstraintName == "" || pgErr.ConstraintName == emailConstraintName)
}

// CreateUser inserts a new user record and returns the generated id.
// A concurrent insert of the same email surfaces as storage.ErrEmailTaken.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error) {
	row := db.queryer(transaction).QueryRowContext(
		ctx,
		`INSERT INTO "user" (name, email, password) VALUES ($1, $2, $3) RETURNING id`,
		usr.Name,
		usr.Email,
		usr.PasswordHash,
	)
	var userID int64
	if err := row.Scan(&userID); err != nil {
		if isEmailUniqueViolation(err) {
			return 0, storage.ErrEmailTaken
		}
		return 0, err
	}

	return userID, nil
}

const selectUser = `
	SELECT u.id, u.name, u.email, u.password, u.created_at,
		(SELECT COUNT(*) FROM design d WHERE d.user_id = u.id)
		FROM "user" u
`

func scanUser(row *sql.Row) (*user.User, error) {
	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Name, &usr.Email, &usr.PasswordHash, &usr.CreatedAt, &usr.DesignsCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	usr.CreatedAt = usr.CreatedAt.UTC()

	return usr, nil
}

// GetUserByID fetches a user together with the number of designs it owns.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error) {
	return scanUser(db.queryer(transaction).QueryRowContext(ctx, selectUser+` WHERE u.id = $1`, userID))
}

// GetUserByEmail fetches a user by exact, case-sensitive email match.
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, error) {
	return scanUser(db.queryer(transaction).QueryRowContext(ctx, selectUser+` WHERE u.email = $1`, email))
}

// IsEmailTaken reports whether a user other than exceptUserID owns the email.
func (db *PostgresDB) IsEmailTaken(
	ctx context.Context,
	email string,
	exceptUserID int64,
	transaction *sql.Tx,
) (bool, error) {
	row := db.queryer(transaction).QueryRowContext(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM "user" WHERE email = $1 AND id <> $2)`,
		email,
		exceptUserID,
	)
	var taken bool
	if err := row.Scan(&taken); err != nil {
		return false, err
	}

	return taken, nil
}

// UpdateUser writes the name and email of an existing user.
func (db *PostgresDB) UpdateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error {
	result, err := db.executor(transaction).ExecContext(
		ctx,
		`UPDATE "user" SET name = $1, email = $2 WHERE id = $3`,
		usr.Name,
		usr.Email,
		usr.ID,
	)
	if err != nil {
		if isEmailUniqueViolation(err) {
			return storage.ErrEmailTaken
		}
		return err
	}

	return expectAffected(result, storage.ErrUserNotFound)
}

// DeleteUser removes the user row. Designs must be removed beforehand in the
// same transaction (see DeleteUserDesigns); the foreign key cascade is only a backstop.
func (db *PostgresDB) DeleteUser(ctx context.Context, userID int64, transaction *sql.Tx) error {
	result, err := db.executor(transaction).ExecContext(ctx, `DELETE FROM "user" WHERE id = $1`, userID)
	if err != nil {
		return err
	}

	return expectAffected(result, storage.ErrUserNotFound)
}

// CreateDesign inserts a design and returns the generated id.
func (db *PostgresDB) CreateDesign(ctx context.Context, design *models.Design, transaction *sql.Tx) (int64, error) {
	row := db.queryer(transaction).QueryRowContext(
		ctx,
		`
			INSERT INTO design (user_id, room_type, style, palette, furniture, width, length)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id
		`,
		design.UserID,
		design.RoomType,
		design.Style,
		design.Palette,
		design.Furniture,
		string(design.Width),
		string(design.Length),
	)
	var designID int64
	if err := row.Scan(&designID); err != nil {
		return 0, err
	}

	return designID, nil
}

const selectDesign = `
	SELECT id, user_id, room_type, style, palette, furniture, width, length, created_at
		FROM design
`

type scanner interface {
	Scan(dest ...any) error
}

func scanDesign(row scanner) (models.Design, error) {
	var design models.Design
	var width, length string
	err := row.Scan(
		&design.ID,
		&design.UserID,
		&design.RoomType,
		&design.Style,
		&design.Palette,
		&design.Furniture,
		&width,
		&length,
		&design.CreatedAt,
	)
	if err != nil {
		return models.Design{}, err
	}
	design.Width = models.Dimension(width)
	design.Length = models.Dimension(length)
	design.CreatedAt = design.CreatedAt.UTC()

	return design, nil
}

// GetDesignByID fetches a single design.
func (db *PostgresDB) GetDesignByID(ctx context.Context, designID int64, transaction *sql.Tx) (*models.Design, error) {
	design, err := scanDesign(db.queryer(transaction).QueryRowContext(ctx, selectDesign+` WHERE id = $1`, designID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDesignNotFound
		}
		return nil, err
	}

	return &design, nil
}

// GetUserDesigns returns the designs of a user, most recent first.
func (db *PostgresDB) GetUserDesigns(ctx context.Context, userID int64, transaction *sql.Tx) ([]models.Design, error) {
	rows, err := db.queryer(transaction).QueryContext(
		ctx,
		selectDesign+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Design{}
	for rows.Next() {
		design, err := scanDesign(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, design)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteDesign removes a single design.
func (db *PostgresDB) DeleteDesign(ctx context.Context, designID int64, transaction *sql.Tx) error {
	result, err := db.executor(transaction).ExecContext(ctx, `DELETE FROM design WHERE id = $1`, designID)
	if err != nil {
		return err
	}

	return expectAffected(result, storage.ErrDesignNotFound)
}

// DeleteUserDesigns removes every design owned by the user and returns how many were removed.
func (db *PostgresDB) DeleteUserDesigns(ctx context.Context, userID int64, transaction *sql.Tx) (int64, error) {
	result, err := db.executor(transaction).ExecContext(ctx, `DELETE FROM design WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (db *PostgresDB) count(ctx context.Context, query string) (int64, error) {
	var result int64
	if err := db.database.QueryRowContext(ctx, query).Scan(&result); err != nil {
		return 0, err
	}

	return result, nil
}

// GetNumberOfUsers returns the total number of registered users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM "user"`)
}

// GetNumberOfDesigns returns the total number of saved designs.
func (db *PostgresDB) GetNumberOfDesigns(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM design`)
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func expectAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}

	return nil
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}
