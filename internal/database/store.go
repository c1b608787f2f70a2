package database

import (
	"context"
	"errors"

	"github.com/syy-ex/hair-makeover/internal/models"
)

// Snapshot is the whole persisted document. Every collection is non-nil after
// normalize, so older documents missing a collection still load.
type Snapshot struct {
	Users          []*models.User              `json:"users"`
	Sessions       []*models.Session           `json:"sessions"`
	EmailCodes     []*models.EmailCode         `json:"emailCodes"`
	PointsLedger   []*models.PointsLedgerEntry `json:"pointsLedger"`
	RechargeOrders []*models.RechargeOrder     `json:"rechargeOrders"`
}

func (s *Snapshot) normalize() {
	if s.Users == nil {
		s.Users = []*models.User{}
	}
	if s.Sessions == nil {
		s.Sessions = []*models.Session{}
	}
	if s.EmailCodes == nil {
		s.EmailCodes = []*models.EmailCode{}
	}
	if s.PointsLedger == nil {
		s.PointsLedger = []*models.PointsLedgerEntry{}
	}
	if s.RechargeOrders == nil {
		s.RechargeOrders = []*models.RechargeOrder{}
	}
}

func (s *Snapshot) FindUser(id string) *models.User {
	for _, u := range s.Users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *Snapshot) FindUserByEmail(email string) *models.User {
	normalized := models.NormalizeEmail(email)
	for _, u := range s.Users {
		if u.Email == normalized {
			return u
		}
	}
	return nil
}

func (s *Snapshot) FindOrder(id string) *models.RechargeOrder {
	for _, o := range s.RechargeOrders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (s *Snapshot) FindSession(token string) *models.Session {
	for _, sess := range s.Sessions {
		if sess.Token == token {
			return sess
		}
	}
	return nil
}

// Store is the single durable document behind every domain operation.
//
// Mutate calls are served one at a time in submission order. fn sees every
// previously completed mutation; if it returns an error nothing is written.
// Once fn starts the mutation runs to completion regardless of ctx, which
// only bounds the wait for the lock.
type Store interface {
	Read(ctx context.Context) (*Snapshot, error)
	Mutate(ctx context.Context, fn func(*Snapshot) error) error
	Close() error
}

// Mutate runs fn as one store mutation and returns its result.
func Mutate[T any](ctx context.Context, s Store, fn func(*Snapshot) (T, error)) (T, error) {
	var out T
	err := s.Mutate(ctx, func(snap *Snapshot) error {
		v, err := fn(snap)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

var ErrUnknownDriver = errors.New("unknown store driver")
