// README: Completion quota service (charge one token per submitted message).
package aiusage

import (
	"context"
	"errors"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// UseToken deducts one completion from uid's monthly allowance, creating the row on first use.
// Returns ErrInsufficientTokens when the month's allowance is spent.
func (s *Service) UseToken(ctx context.Context, uid string) error {
	err := s.store.UseToken(ctx, uid)
	if !errors.Is(err, ErrInsufficientTokens) {
		return err
	}

	// Row may be missing: create it, then retry once.
	if initErr := s.store.EnsureUser(ctx, uid); initErr != nil {
		return initErr
	}
	return s.store.UseToken(ctx, uid)
}

// Usage reports uid's remaining allowance.
func (s *Service) Usage(ctx context.Context, uid string) (Usage, error) {
	return s.store.Get(ctx, uid)
}
