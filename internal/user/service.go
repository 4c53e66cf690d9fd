package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
)

// Queries lists the address statements the service issues.
type Queries interface {
	ListAddressesByUser(ctx context.Context, userID pgtype.UUID) ([]db.Address, error)
	GetAddressForUser(ctx context.Context, arg db.GetAddressForUserParams) (db.Address, error)
	CreateAddress(ctx context.Context, arg db.CreateAddressParams) (db.Address, error)
	UpdateAddress(ctx context.Context, arg db.UpdateAddressParams) (db.Address, error)
	DeleteAddress(ctx context.Context, arg db.DeleteAddressParams) (int64, error)
	UnsetDefaultAddresses(ctx context.Context, userID pgtype.UUID) error
}

// TxFunc runs fn against a transactional query set.
type TxFunc func(ctx context.Context, fn func(Queries) error) error

// Address represents a user address in API-friendly format.
type Address struct {
	ID           string    `json:"id"`
	Label        string    `json:"label,omitempty"`
	ReceiverName string    `json:"receiverName"`
	Phone        string    `json:"phone"`
	Line1        string    `json:"line1"`
	Line2        string    `json:"line2,omitempty"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	PostalCode   string    `json:"postalCode"`
	Country      string    `json:"country"`
	GSTIN        string    `json:"gstin,omitempty"`
	IsDefault    bool      `json:"isDefault"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AddressInput captures payload for creating or updating an address.
type AddressInput struct {
	Label        string `json:"label" validate:"max=40"`
	ReceiverName string `json:"receiverName" validate:"required,max=120"`
	Phone        string `json:"phone" validate:"required,min=7,max=20"`
	Line1        string `json:"line1" validate:"required,max=200"`
	Line2        string `json:"line2" validate:"max=200"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=100"`
	PostalCode   string `json:"postalCode" validate:"required,numeric,len=6"`
	Country      string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	GSTIN        string `json:"gstin" validate:"omitempty,alphanum,len=15"`
	IsDefault    bool   `json:"isDefault"`
}

// Service orchestrates address book operations.
type Service struct {
	Queries Queries
	Tx      TxFunc
}

// NewService wires the service to a pool-backed query set.
func NewService(conn db.TxBeginner, queries *db.Queries) *Service {
	return &Service{
		Queries: queries,
		Tx: func(ctx context.Context, fn func(Queries) error) error {
			return db.InTx(ctx, conn, func(q *db.Queries) error { return fn(q) })
		},
	}
}

var (
	errUnauthorized = common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, common.ErrUnauthorized)
	errNotFound     = common.NewAppError("NOT_FOUND", "address not found", http.StatusNotFound, common.ErrNotFound)
)

// List returns every address for a user, default first.
func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	uid, err := common.ToUUID(userID)
	if err != nil {
		return nil, errUnauthorized
	}
	rows, err := s.Queries.ListAddressesByUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	addresses := make([]Address, 0, len(rows))
	for _, row := range rows {
		addresses = append(addresses, convertAddress(row))
	}
	return addresses, nil
}

// Get returns one address owned by userID.
func (s *Service) Get(ctx context.Context, userID, addressID string) (Address, error) {
	uid, err := common.ToUUID(userID)
	if err != nil {
		return Address{}, errUnauthorized
	}
	aid, err := common.ToUUID(addressID)
	if err != nil {
		return Address{}, errNotFound
	}
	row, err := s.Queries.GetAddressForUser(ctx, db.GetAddressForUserParams{ID: aid, UserID: uid})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Address{}, errNotFound
		}
		return Address{}, fmt.Errorf("get address: %w", err)
	}
	return convertAddress(row), nil
}

// Create inserts a new address. The first address a user saves becomes
// the default; marking another default clears the previous one.
func (s *Service) Create(ctx context.Context, userID string, input AddressInput) (Address, error) {
	uid, err := common.ToUUID(userID)
	if err != nil {
		return Address{}, errUnauthorized
	}
	input = normalize(input)
	if err := common.ValidateStruct(input); err != nil {
		return Address{}, err
	}

	var created db.Address
	err = s.Tx(ctx, func(q Queries) error {
		existing, err := q.ListAddressesByUser(ctx, uid)
		if err != nil {
			return err
		}
		isDefault := input.IsDefault || len(existing) == 0
		if isDefault && len(existing) > 0 {
			if err := q.UnsetDefaultAddresses(ctx, uid); err != nil {
				return err
			}
		}
		created, err = q.CreateAddress(ctx, db.CreateAddressParams{
			UserID:       uid,
			Label:        common.Text(input.Label),
			ReceiverName: input.ReceiverName,
			Phone:        input.Phone,
			Line1:        input.Line1,
			Line2:        common.Text(input.Line2),
			City:         input.City,
			State:        input.State,
			PostalCode:   input.PostalCode,
			Country:      input.Country,
			Gstin:        common.Text(input.GSTIN),
			IsDefault:    isDefault,
		})
		return err
	})
	if err != nil {
		return Address{}, fmt.Errorf("create address: %w", err)
	}
	return convertAddress(created), nil
}

// Update replaces an existing address.
func (s *Service) Update(ctx context.Context, userID, addressID string, input AddressInput) (Address, error) {
	uid, err := common.ToUUID(userID)
	if err != nil {
		return Address{}, errUnauthorized
	}
	aid, err := common.ToUUID(addressID)
	if err != nil {
		return Address{}, errNotFound
	}
	input = normalize(input)
	if err := common.ValidateStruct(input); err != nil {
		return Address{}, err
	}

	var updated db.Address
	err = s.Tx(ctx, func(q Queries) error {
		current, err := q.GetAddressForUser(ctx, db.GetAddressForUserParams{ID: aid, UserID: uid})
		if err != nil {
			return err
		}
		isDefault := input.IsDefault || current.IsDefault
		if input.IsDefault && !current.IsDefault {
			if err := q.UnsetDefaultAddresses(ctx, uid); err != nil {
				return err
			}
		}
		updated, err = q.UpdateAddress(ctx, db.UpdateAddressParams{
			ID:           aid,
			UserID:       uid,
			Label:        common.Text(input.Label),
			ReceiverName: input.ReceiverName,
			Phone:        input.Phone,
			Line1:        input.Line1,
			Line2:        common.Text(input.Line2),
			City:         input.City,
			State:        input.State,
			PostalCode:   input.PostalCode,
			Country:      input.Country,
			Gstin:        common.Text(input.GSTIN),
			IsDefault:    isDefault,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Address{}, errNotFound
		}
		return Address{}, fmt.Errorf("update address: %w", err)
	}
	return convertAddress(updated), nil
}

// Delete removes an address.
func (s *Service) Delete(ctx context.Context, userID, addressID string) error {
	uid, err := common.ToUUID(userID)
	if err != nil {
		return errUnauthorized
	}
	aid, err := common.ToUUID(addressID)
	if err != nil {
		return errNotFound
	}
	n, err := s.Queries.DeleteAddress(ctx, db.DeleteAddressParams{ID: aid, UserID: uid})
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if n == 0 {
		return errNotFound
	}
	return nil
}

func normalize(in AddressInput) AddressInput {
	in.Label = strings.TrimSpace(in.Label)
	in.ReceiverName = strings.TrimSpace(in.ReceiverName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Line1 = strings.TrimSpace(in.Line1)
	in.Line2 = strings.TrimSpace(in.Line2)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	if in.Country == "" {
		in.Country = "IN"
	}
	in.GSTIN = strings.ToUpper(strings.TrimSpace(in.GSTIN))
	return in
}

func convertAddress(row db.Address) Address {
	return Address{
		ID:           common.UUIDString(row.ID),
		Label:        row.Label.String,
		ReceiverName: row.ReceiverName,
		Phone:        row.Phone,
		Line1:        row.Line1,
		Line2:        row.Line2.String,
		City:         row.City,
		State:        row.State,
		PostalCode:   row.PostalCode,
		Country:      row.Country,
		GSTIN:        row.Gstin.String,
		IsDefault:    row.IsDefault,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}
