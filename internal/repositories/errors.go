package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrScholarshipNotFound = errors.New("scholarship not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrClaimNotFound       = errors.New("settlement claim not found")
	ErrDatabaseOperation   = errors.New("database operation failed")
)

const uniqueViolation = "23505"

// isUniqueViolation recognises duplicate-key errors whether or not the
// dialector translated them.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
