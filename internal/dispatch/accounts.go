package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ambulanceDispatch/internal/auth"
	"ambulanceDispatch/models"
	"ambulanceDispatch/repository"
)

// Seeded demo identities.
const (
	DefaultOperator         = "COMMANDER"
	defaultOperatorPassword = "TITAN-X"
	DefaultDriverID         = "UNIT-07"
	defaultDriverPassword   = "TITAN-DRIVER"
)

// AccountOptions configure an AccountService.
type AccountOptions struct {
	Secret   string
	TokenTTL time.Duration
	Now      func() time.Time
	Rand     func(n int) int
	Log      zerolog.Logger
}

// AccountService registers drivers and logs in drivers and HQ operators.
type AccountService struct {
	accounts repository.AccountRepositoryI
	opts     AccountOptions
	log      zerolog.Logger
}

func NewAccountService(accounts repository.AccountRepositoryI, opts AccountOptions) *AccountService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.IntN
	}
	return &AccountService{accounts: accounts, opts: opts, log: opts.Log.With().Str("component", "accounts").Logger()}
}

// DriverSignup is the registration form of a new driver unit.
type DriverSignup struct {
	Username     string
	Password     string
	FullName     string
	Phone        string
	VehicleID    string
	BaseLocation string
}

// SignupDriver creates an account under a freshly drawn UNIT-<nnn> id.
func (s *AccountService) SignupDriver(ctx context.Context, in DriverSignup) (*models.DriverAccount, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" || strings.TrimSpace(in.FullName) == "" {
		return nil, invalid("username, password and full name are required")
	}
	existing, err := s.accounts.GetDriverByUsername(ctx, username)
	if err != nil {
		return nil, storeErr("signup", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("username %s: %w", username, ErrConflict)
	}
	id, err := unitID(ctx, s.opts.Rand, s.accounts.DriverIDExists)
	if err != nil {
		return nil, storeErr("signup", err)
	}
	digest, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acct := &models.DriverAccount{
		DriverID:       id,
		Username:       username,
		PasswordDigest: digest,
		FullName:       strings.TrimSpace(in.FullName),
		Phone:          strings.TrimSpace(in.Phone),
		VehicleID:      strings.TrimSpace(in.VehicleID),
		BaseLocation:   strings.TrimSpace(in.BaseLocation),
		CreatedAt:      s.opts.Now().UTC(),
	}
	if err := s.accounts.CreateDriver(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("driver %s: %w", username, ErrConflict)
		}
		return nil, storeErr("signup", err)
	}
	s.log.Info().Str("driver_id", id).Str("username", username).Msg("driver registered")
	return acct, nil
}

// LoginDriver checks credentials given either the username or the unit id and
// returns a driver token whose principal name is the unit id.
func (s *AccountService) LoginDriver(ctx context.Context, login, password string) (string, *models.DriverAccount, error) {
	login = strings.TrimSpace(login)
	acct, err := s.accounts.GetDriverByUsername(ctx, login)
	if err == nil && acct == nil {
		acct, err = s.accounts.GetDriverByID(ctx, login)
	}
	if err != nil {
		return "", nil, storeErr("login", err)
	}
	if acct == nil {
		return "", nil, auth.ErrInvalidCredentials
	}
	rehash, err := auth.VerifyPassword(acct.PasswordDigest, password)
	if err != nil {
		return "", nil, err
	}
	if rehash {
		if digest, err := auth.HashPassword(password); err == nil {
			if err := s.accounts.UpdateDriverDigest(ctx, acct.DriverID, digest); err != nil {
				s.log.Warn().Err(err).Str("driver_id", acct.DriverID).Msg("legacy digest not upgraded")
			}
		}
	}
	tok, err := auth.IssueToken(s.opts.Secret, acct.DriverID, auth.KindDriver, s.opts.TokenTTL, s.opts.Now())
	if err != nil {
		return "", nil, err
	}
	return tok, acct, nil
}

// LoginOperator checks HQ credentials and returns an HQ token.
func (s *AccountService) LoginOperator(ctx context.Context, username, password string) (string, *models.Operator, error) {
	op, err := s.accounts.GetOperator(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", nil, storeErr("login", err)
	}
	if op == nil {
		return "", nil, auth.ErrInvalidCredentials
	}
	rehash, err := auth.VerifyPassword(op.PasswordDigest, password)
	if err != nil {
		return "", nil, err
	}
	if rehash {
		if digest, err := auth.HashPassword(password); err == nil {
			if err := s.accounts.UpdateOperatorDigest(ctx, op.Username, digest); err != nil {
				s.log.Warn().Err(err).Str("operator", op.Username).Msg("legacy digest not upgraded")
			}
		}
	}
	tok, err := auth.IssueToken(s.opts.Secret, op.Username, auth.KindHQ, s.opts.TokenTTL, s.opts.Now())
	if err != nil {
		return "", nil, err
	}
	return tok, op, nil
}

// SeedDefaults creates the demo HQ operator and demo driver when they are missing.
func (s *AccountService) SeedDefaults(ctx context.Context) error {
	now := s.opts.Now().UTC()
	op, err := s.accounts.GetOperator(ctx, DefaultOperator)
	if err != nil {
		return storeErr("seed", err)
	}
	if op == nil {
		digest, err := auth.HashPassword(defaultOperatorPassword)
		if err != nil {
			return err
		}
		err = s.accounts.CreateOperator(ctx, &models.Operator{Username: DefaultOperator, PasswordDigest: digest, DisplayName: "HQ Commander", CreatedAt: now})
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return storeErr("seed", err)
		}
	}

	acct, err := s.accounts.GetDriverByID(ctx, DefaultDriverID)
	if err != nil {
		return storeErr("seed", err)
	}
	if acct == nil {
		digest, err := auth.HashPassword(defaultDriverPassword)
		if err != nil {
			return err
		}
		err = s.accounts.CreateDriver(ctx, &models.DriverAccount{
			DriverID:       DefaultDriverID,
			Username:       DefaultDriverID,
			PasswordDigest: digest,
			FullName:       "Demo Driver",
			VehicleID:      "KL-07-AMB-01",
			BaseLocation:   "General Hospital (Ernakulam)",
			CreatedAt:      now,
		})
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return storeErr("seed", err)
		}
	}
	return nil
}
