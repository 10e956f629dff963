// Package users resolves requesters to unique person records in the store:
// lookup by phone number first, then by full name, creating a record only when
// both miss.
package users

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/communityaid/volunteer-dispatch/internal/airtable"
	"github.com/communityaid/volunteer-dispatch/internal/phone"
)

const (
	fieldFullName    = "Full Name"
	fieldPhoneNumber = "Phone Number"
)

// ErrNoIdentity reports a caller bug: linking needs a phone number or a name.
var ErrNoIdentity = errors.New("request carries neither phone number nor name")

// User is one person record.
type User struct {
	ID          string `mapstructure:"-"`
	FullName    string `mapstructure:"Full Name"`
	PhoneNumber string `mapstructure:"Phone Number"`
}

// Store is the slice of the record store this service needs.
type Store interface {
	ListRecords(table string, opts airtable.SelectOptions) ([]*airtable.Record, error)
	CreateRecords(table string, fieldSets []map[string]any) ([]*airtable.Record, error)
}

// Service finds and creates person records.
type Service struct {
	store  Store
	logger *zap.Logger

	table string
	view  string
}

func NewService(store Store, logger *zap.Logger, table, view string) *Service {
	return &Service{
		store:  store,
		logger: logger,
		table:  table,
		view:   view,
	}
}

// Link resolves a requester to a person record id, creating the record if
// needed. Phone lookup wins over name lookup.
func (s *Service) Link(fullName, phoneNumber string) (string, error) {
	if fullName == "" && phoneNumber == "" {
		return "", ErrNoIdentity
	}

	if phoneNumber != "" {
		user, err := s.FindByPhoneNumber(phoneNumber)
		if err != nil {
			return "", err
		}
		if user != nil {
			return user.ID, nil
		}
	}

	if fullName != "" {
		user, err := s.FindByFullName(fullName)
		if err != nil {
			return "", err
		}
		if user != nil {
			return user.ID, nil
		}
	}

	user, err := s.Create(fullName, phoneNumber)
	if err != nil {
		return "", err
	}

	s.logger.Info("created user record",
		zap.String("user_id", user.ID),
		zap.String("full_name", user.FullName),
	)

	return user.ID, nil
}

// FindByPhoneNumber looks for a user with the provided phone number. Nil when
// no user matches; an error when more than one does.
func (s *Service) FindByPhoneNumber(phoneNumber string) (*User, error) {
	display := phone.DisplayNumber(phoneNumber)
	return s.findOne(phoneNumber, fmt.Sprintf("{%s} = '%s'", fieldPhoneNumber, display))
}

// FindByFullName looks for a user with the provided name.
func (s *Service) FindByFullName(fullName string) (*User, error) {
	return s.findOne(fullName, fmt.Sprintf("{%s} = '%s'", fieldFullName, fullName))
}

// Create inserts a new user record.
func (s *Service) Create(fullName, phoneNumber string) (*User, error) {
	records, err := s.store.CreateRecords(s.table, []map[string]any{{
		fieldFullName:    fullName,
		fieldPhoneNumber: phone.DisplayNumber(phoneNumber),
	}})
	if err != nil {
		return nil, fmt.Errorf("creating user record: %w", err)
	}
	if len(records) != 1 {
		return nil, fmt.Errorf("expected 1 created user record, got %d", len(records))
	}

	return decodeUser(records[0])
}

func (s *Service) findOne(key, formula string) (*User, error) {
	records, err := s.store.ListRecords(s.table, airtable.SelectOptions{
		View:            s.view,
		FilterByFormula: formula,
	})
	if err != nil {
		return nil, err
	}

	if len(records) > 1 {
		return nil, fmt.Errorf("%q has more than one user linked to it", key)
	}

	if len(records) == 0 {
		return nil, nil
	}

	return decodeUser(records[0])
}

func decodeUser(rec *airtable.Record) (*User, error) {
	var user User
	if err := mapstructure.Decode(rec.Fields, &user); err != nil {
		return nil, fmt.Errorf("decoding user record %s: %w", rec.ID, err)
	}
	user.ID = rec.ID

	return &user, nil
}
