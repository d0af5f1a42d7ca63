package customer

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("customer: mapping not found")
	ErrConflict = errors.New("customer: mapping already exists")
)

// Mapping links a platform user to the gateway's customer record.
type Mapping struct {
	ID                 string
	ExternalCustomerID string
	UserID             int64
	Name               string
	Email              string
	CreatedAt          time.Time
}

func (m *Mapping) Clone() *Mapping {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

type Repository interface {
	FindByUserID(ctx context.Context, userID int64) (*Mapping, error)
	ExistsByUserID(ctx context.Context, userID int64) (bool, error)
	// Insert fails with ErrConflict when the user id or the external id is taken.
	Insert(ctx context.Context, m *Mapping) error
}

// DisplayName composes "first last", falling back to email when both are blank.
func DisplayName(first, last, email string) string {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	switch {
	case first != "" && last != "" && first != last:
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return strings.TrimSpace(email)
	}
}

// ExternalReference is the gateway-side reference for a user.
func ExternalReference(userID int64) string {
	return "user_" + strconv.FormatInt(userID, 10)
}

// FirstNonBlank returns the first value that is not blank, trimmed.
func FirstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
