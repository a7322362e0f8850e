package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/GoCodeAlone/baseapp/modules/crypt"
	"github.com/GoCodeAlone/baseapp/modules/database"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidUser  = errors.New("email and password are required")
)

// Migrations returns the schema for driver.
func Migrations(driver string) []database.Migration {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == database.DriverMySQL {
		id = "BIGINT AUTO_INCREMENT PRIMARY KEY"
	}
	return []database.Migration{
		{
			ID: "0001_create_users",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id ` + id + `,
				email VARCHAR(191) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL
			)`,
		},
	}
}

// User is an administrator account.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Users is the "backend.users" service.
type Users struct {
	db   *database.Service
	cost int
}

// NewUsers creates the repository. A zero cost uses the bcrypt default.
func NewUsers(db *database.Service, cost int) *Users {
	return &Users{db: db, cost: cost}
}

func (u *Users) List(ctx context.Context) ([]User, error) {
	rows, err := u.db.QueryContext(ctx, "SELECT id, email FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (u *Users) Count(ctx context.Context) (int, error) {
	row := u.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users")
	if row == nil {
		return 0, database.ErrDatabaseNotConnected
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Create stores a user with a bcrypt password hash.
func (u *Users) Create(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return User{}, ErrInvalidUser
	}
	hash, err := crypt.HashPassword(password, u.cost)
	if err != nil {
		return User{}, err
	}
	res, err := u.db.ExecContext(ctx, "INSERT INTO users (email, password_hash) VALUES (?, ?)", email, hash)
	if err != nil {
		return User{}, fmt.Errorf("create user %s: %w", email, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("create user %s: %w", email, err)
	}
	return User{ID: id, Email: email}, nil
}

// Authenticate returns the user whose password matches.
func (u *Users) Authenticate(ctx context.Context, email, password string) (User, error) {
	row := u.db.QueryRowContext(ctx, "SELECT id, email, password_hash FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)))
	if row == nil {
		return User{}, database.ErrDatabaseNotConnected
	}
	var (
		user User
		hash string
	)
	if err := row.Scan(&user.ID, &user.Email, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, crypt.ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := crypt.VerifyPassword(hash, password); err != nil {
		return User{}, err
	}
	return user, nil
}

// Delete removes the user with id.
func (u *Users) Delete(ctx context.Context, id int64) error {
	res, err := u.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return nil
}
