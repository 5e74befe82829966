package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/warden/pkg/apperr"
)

const (
	minPasswordLength = 8
	maxPasswordBytes  = 72 // bcrypt ignores anything longer
	maxUsernameLength = 80
	maxEmailLength    = 120
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,80}$`)

// hasher wraps bcrypt with a fixed cost and a lazily computed dummy hash used
// to equalize timing for unknown usernames
type hasher struct {
	cost      int
	dummyOnce sync.Once
	dummy     []byte
}

func newHasher(cost int) *hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &hasher{cost: cost}
}

func (h *hasher) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// compare returns nil when password matches encoded
func (h *hasher) compare(encoded, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
}

// burn spends one comparison against the dummy hash
func (h *hasher) burn(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("warden-dummy-credential"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperr.Invalid("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return apperr.Invalid("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

func normalizeNewIdentity(in NewIdentity) (NewIdentity, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = RoleStandard
	}

	var errs []error
	if !usernamePattern.MatchString(in.Username) {
		errs = append(errs, apperr.Invalid("username must be 3-%d characters of letters, digits, '.', '_' or '-'", maxUsernameLength))
	}
	if len(in.Email) > maxEmailLength {
		errs = append(errs, apperr.Invalid("email must be at most %d characters", maxEmailLength))
	} else if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		errs = append(errs, apperr.Invalid("email is not a valid address"))
	}
	if !in.Role.Valid() {
		errs = append(errs, apperr.Invalid("role must be administrator, standard or viewer"))
	}
	if err := validatePassword(in.Password); err != nil {
		errs = append(errs, err)
	}

	return in, errors.Join(errs...)
}
