package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid id")
	ErrDuplicate = errors.New("duplicate key")
)

const ItemStatusActive = "ACTIVE"

type (
	User struct {
		ID           string  `json:"_id"`
		Firstname    string  `json:"firstname"`
		Lastname     string  `json:"lastname"`
		Email        string  `json:"email"`
		Username     string  `json:"username"`
		Password     string  `json:"-"`
		ProfileImage *string `json:"profileImage"`
	}

	// UserPatch holds the fields of a partial user update; nil means keep.
	UserPatch struct {
		Firstname *string
		Lastname  *string
		Email     *string
	}

	Item struct {
		ID       string          `json:"_id"`
		Name     string          `json:"itemName"`
		Category string          `json:"itemCategory"`
		Price    decimal.Decimal `json:"itemPrice"`
		Status   string          `json:"status"`
	}

	ItemPatch struct {
		Name     *string
		Category *string
		Price    *decimal.Decimal
		Status   *string
	}

	// UserKey addresses one user record either by id or by email.
	UserKey struct {
		field string
		value string
	}

	UserRepository interface {
		FindUser(ctx context.Context, key UserKey) (*User, error)
		// SetProfileImage replaces only the profileImage field and reports
		// how many records matched the key.
		SetProfileImage(ctx context.Context, key UserKey, ref *string) (int64, error)
		CreateUser(ctx context.Context, user User) (string, error)
		UpdateUser(ctx context.Context, key UserKey, patch UserPatch) (int64, error)
		DeleteUser(ctx context.Context, id string) (int64, error)
	}

	ItemRepository interface {
		ListItems(ctx context.Context, skip, limit int64) ([]Item, error)
		CountItems(ctx context.Context) (int64, error)
		CreateItem(ctx context.Context, item Item) (string, error)
		UpdateItem(ctx context.Context, id string, patch ItemPatch) (int64, error)
		DeleteItem(ctx context.Context, id string) (int64, error)
	}

	Store interface {
		UserRepository
		ItemRepository
		Close(ctx context.Context) error
	}
)

const (
	keyByID    = "id"
	keyByEmail = "email"
)

func ByID(id string) UserKey {
	return UserKey{field: keyByID, value: strings.TrimSpace(id)}
}

// ByEmail normalises the email the same way user writes do.
func ByEmail(email string) UserKey {
	return UserKey{field: keyByEmail, value: NormalizeEmail(email)}
}

func (k UserKey) IsID() bool {
	return k.field == keyByID
}

func (k UserKey) Value() string {
	return k.value
}

func (k UserKey) String() string {
	return k.field + "=" + k.value
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p UserPatch) Empty() bool {
	return p.Firstname == nil && p.Lastname == nil && p.Email == nil
}

func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Price == nil && p.Status == nil
}
