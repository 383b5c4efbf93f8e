// Package mediawiki verifies collaboration credentials against the wiki's
// user table, which is the shared identity store. Only verification lives
// here; account management belongs to the wiki itself.
package mediawiki

import (
	"context"
	"crypto/md5" //nolint:gosec
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/aperture-array/obsdb/pkg/errorx"
)

// ErrWrongCredentials - the single failure for both an unknown user and a
// wrong password; callers cannot tell the two apart.
var ErrWrongCredentials = errors.New("wrong username or password")

// User - one row of the wiki's user table.
type User struct {
	ID       int64
	Name     string
	Password string
}

// Authenticate - look up name and verify password against the stored salted
// hash. The first letter of the name is uppercased first, following the
// wiki's naming convention. The stored hash must be the `:B:<salt>:<md5>`
// form; anything else is a ValidationError.
func Authenticate(ctx context.Context, db *sql.DB, name, password string) (*User, error) {
	user, err := userByName(ctx, db, upperFirst(name))
	if err != nil {
		if errors.Is(err, errorx.ErrNotFound) {
			return nil, ErrWrongCredentials
		}

		return nil, err
	}

	ok, err := verify(user.Password, password)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrWrongCredentials
	}

	return user, nil
}

// HashPassword - produce the stored form of a password. The scheme is the
// wiki's legacy salted MD5: md5(salt + "-" + md5(password)).
func HashPassword(password, salt string) string {
	return fmt.Sprintf(":B:%s:%s", salt, md5hex(salt+"-"+md5hex(password)))
}

func userByName(ctx context.Context, db *sql.DB, name string) (*User, error) {
	var user User

	row := db.QueryRowContext(ctx,
		"SELECT user_id, user_name, user_password FROM user WHERE user_name = ?", name)

	err := row.Scan(&user.ID, &user.Name, &user.Password)
	if err == sql.ErrNoRows {
		return nil, errorx.NewNotFoundError("user %q not found", name)
	}

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func verify(stored, password string) (bool, error) {
	parts := strings.Split(stored, ":")
	if len(parts) != 4 || parts[1] != "B" {
		return false, errorx.NewValidationError("unrecognized password hash format")
	}

	salt, want := parts[2], parts[3]
	got := md5hex(salt + "-" + md5hex(password))

	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec

	return hex.EncodeToString(sum[:])
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}

	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])

	return string(r)
}
