package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// Session is the persistence interface the controller writes through.
//
// Every method is safe for concurrent use and honours ctx cancellation.
// Create methods fail with errors.ErrAlreadyExists when the key is taken
// and with errors.ErrNotFound when a referenced parent row is missing.
// Delete methods fail with errors.ErrNotFound when the row is absent.
type Session interface {
	// Load returns every row in startup order.
	Load(ctx context.Context) (*Snapshot, error)

	// Account lookups and mutations. CreateAccount hashes password.
	Account(ctx context.Context, username string) (*Account, error)
	Accounts(ctx context.Context) ([]Account, error)
	CreateAccount(ctx context.Context, a Account, password string) error
	UpdateAccount(ctx context.Context, a Account, password string) error
	DeleteAccount(ctx context.Context, username string) error

	CreateTenant(ctx context.Context, t Tenant) error
	DeleteTenant(ctx context.Context, id uuid.UUID) error

	CreateDevice(ctx context.Context, d Device) error
	DeleteDevice(ctx context.Context, kind string, addr datatypes.EtherAddress) error

	CreateMembership(ctx context.Context, m Membership) error
	DeleteMembership(ctx context.Context, m Membership) error

	// PutSlice inserts or replaces the slice keyed by tenant and DSCP.
	PutSlice(ctx context.Context, s Slice) error
	DeleteSlice(ctx context.Context, tenant uuid.UUID, dscp datatypes.DSCP) error

	CreateEndpoint(ctx context.Context, e Endpoint) error
	DeleteEndpoint(ctx context.Context, tenant, id uuid.UUID) error
	CreateVirtualPort(ctx context.Context, p VirtualPort) error

	CreateTrafficRule(ctx context.Context, tr TrafficRule) error
	DeleteTrafficRule(ctx context.Context, tenant uuid.UUID, match string) error

	CreateACL(ctx context.Context, e ACLEntry) error
	DeleteACL(ctx context.Context, allow bool, addr datatypes.EtherAddress) error

	CreateFeed(ctx context.Context, f Feed) error
	DeleteFeed(ctx context.Context, id int) error

	PutIMSIMapping(ctx context.Context, m IMSIMapping) error
	DeleteIMSIMapping(ctx context.Context, imsi string) error

	Close() error
}

// DefaultCost is the bcrypt work factor for new passwords.
const DefaultCost = bcrypt.DefaultCost

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, errors.Invalidf(errors.ErrInvalidData, "password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultCost)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Persistence", "HashPassword", "bcrypt hash")
	}
	return hash, nil
}

// CheckPassword reports whether password matches the account's hash.
func CheckPassword(a *Account, password string) bool {
	if a == nil || len(a.PasswordHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) == nil
}

// Authenticate loads username and checks password. Any mismatch, including
// an unknown user, is errors.ErrUnauthorized.
func Authenticate(ctx context.Context, s Session, username, password string) (*Account, error) {
	a, err := s.Account(ctx, username)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrUnauthorized
		}
		return nil, err
	}
	if !CheckPassword(a, password) {
		return nil, errors.ErrUnauthorized
	}
	return a, nil
}

func validateAccount(a Account) error {
	if a.Username == "" {
		return errors.Invalidf(errors.ErrMissingParam, "username")
	}
	switch a.Role {
	case RoleAdmin, RoleUser:
	default:
		return errors.Invalidf(errors.ErrInvalidData, "role %q", a.Role)
	}
	return nil
}

func validDeviceKind(kind string) error {
	switch kind {
	case "wtp", "vbs", "cpp":
		return nil
	}
	return errors.Invalidf(errors.ErrInvalidData, "device kind %q", kind)
}

func existsErr(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errors.ErrAlreadyExists)
}

func notFoundErr(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errors.ErrNotFound)
}
