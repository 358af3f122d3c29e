package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrEmailExists is returned when an account already uses the email.
var ErrEmailExists = errors.New("an account with this email already exists")

// ErrAccountNotFound is returned for unknown uids.
var ErrAccountNotFound = errors.New("account not found")

// CustomClaims are the role flags attached to an account.
type CustomClaims struct {
	Admin bool `json:"admin"`
}

// Account is a sign-in identity. Volunteers are keyed by their account uid.
type Account struct {
	UID          string    `gorm:"primaryKey;type:text" json:"uid"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Claims       string    `gorm:"type:text" json:"claims,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (Account) TableName() string { return "accounts" }

// Identity is the gorm-backed account provider.
type Identity struct {
	db *gorm.DB
}

func NewIdentity(db *gorm.DB) *Identity {
	return &Identity{db: db}
}

// AutoMigrate creates the accounts table
func (p *Identity) AutoMigrate() error {
	return p.db.AutoMigrate(&Account{})
}

// CreateAccount registers email with a random initial password and returns the new uid.
// Emails are unique case-insensitively.
func (p *Identity) CreateAccount(ctx context.Context, email, displayName string) (string, error) {
	password, err := randomPassword()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	account := Account{
		UID:          uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Account{}).Where("email = ?", account.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailExists
		}
		return tx.Create(&account).Error
	})
	if err != nil {
		return "", fmt.Errorf("create account %s: %w", account.Email, err)
	}
	return account.UID, nil
}

// AccountUID returns the uid of the account registered under email.
func (p *Identity) AccountUID(ctx context.Context, email string) (string, error) {
	var account Account
	err := p.db.WithContext(ctx).
		Select("uid").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find account %s: %w", email, err)
	}
	return account.UID, nil
}

// DeleteAccount removes uid. Deleting an unknown uid is not an error.
func (p *Identity) DeleteAccount(ctx context.Context, uid string) error {
	if err := p.db.WithContext(ctx).Where("uid = ?", uid).Delete(&Account{}).Error; err != nil {
		return fmt.Errorf("delete account %s: %w", uid, err)
	}
	return nil
}

// SetClaims replaces the custom claims of uid.
func (p *Identity) SetClaims(ctx context.Context, uid string, claims CustomClaims) error {
	data, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	res := p.db.WithContext(ctx).Model(&Account{}).Where("uid = ?", uid).Update("claims", string(data))
	if res.Error != nil {
		return fmt.Errorf("set claims for %s: %w", uid, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Caller loads uid as a Caller carrying its stored claims.
func (p *Identity) Caller(ctx context.Context, uid string) (*Caller, error) {
	var account Account
	err := p.db.WithContext(ctx).Where("uid = ?", uid).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	var claims CustomClaims
	if account.Claims != "" {
		if err := json.Unmarshal([]byte(account.Claims), &claims); err != nil {
			return nil, fmt.Errorf("decode claims for %s: %w", uid, err)
		}
	}
	return &Caller{UID: account.UID, Email: account.Email, Admin: claims.Admin}, nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
