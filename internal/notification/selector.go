package notification

import (
	"context"
	"fmt"

	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
)

// Selector resolves a targeting rule into the set of recipient Telegram IDs.
// The repository queries order by ID, so fan-out order is deterministic.
type Selector struct {
	users repository.UserRepository
}

// NewSelector constructs a Selector over the user store.
func NewSelector(users repository.UserRepository) *Selector {
	return &Selector{users: users}
}

// Resolve computes the recipient ID set for the rule.
func (s *Selector) Resolve(ctx context.Context, rule TargetRule) ([]int64, error) {
	switch rule.Kind {
	case RuleAll:
		ids, err := s.users.AllIDs(ctx)
		if err != nil {
			return nil, apperrors.NewDatabaseError(err)
		}
		return ids, nil

	case RuleLevel:
		ids, err := s.users.IDsWithMinLevel(ctx, rule.MinLevel)
		if err != nil {
			return nil, apperrors.NewDatabaseError(err)
		}
		return ids, nil

	case RuleIncome:
		ids, err := s.users.IDsWithMinIncome(ctx, rule.MinIncome)
		if err != nil {
			return nil, apperrors.NewDatabaseError(err)
		}
		return ids, nil

	case RuleTest:
		return []int64{rule.TestUserID}, nil

	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown targeting rule %q", rule.Kind))
	}
}
