package database

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/parleyhq/parley/internal/common/cnst"
)

// EnsureAdminUser creates the bootstrap admin account when it does not exist
// yet. A blank username or password disables seeding. Returns true when the
// account was created on this call.
func EnsureAdminUser(ctx context.Context, db Database, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	_, err := db.GetUserByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, cnst.ErrUserNotFound) {
		return false, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}

	user := &User{
		Username: username,
		Password: string(hashed),
		Role:     "admin",
		IsActive: true,
	}
	if err := db.CreateUser(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}
