// Package notification implements the campaign core: targeting rules,
// recipient selection, and the delivery fan-out.
package notification

import (
	"fmt"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
)

// RuleKind enumerates the closed set of targeting rules.
type RuleKind string

const (
	RuleAll    RuleKind = "all"
	RuleLevel  RuleKind = "level"
	RuleIncome RuleKind = "income"
	RuleTest   RuleKind = "test"
)

// TargetRule is a parsed targeting rule. Construct it through ParseRule so
// malformed input is rejected at the boundary instead of silently degrading
// to an unfiltered broadcast.
type TargetRule struct {
	Kind       RuleKind
	MinLevel   int
	MinIncome  int64
	TestUserID int64
}

// ParseRule validates the raw targeting input against the closed rule set.
// Unknown types and missing threshold conditions are validation errors.
func ParseRule(rawType string, cond domain.Conditions, testUserID int64) (TargetRule, error) {
	switch RuleKind(rawType) {
	case RuleAll:
		return TargetRule{Kind: RuleAll}, nil

	case RuleLevel:
		if cond.MinLevel <= 0 {
			return TargetRule{}, apperrors.NewValidationError("targeting by level requires a positive minLevel")
		}
		return TargetRule{Kind: RuleLevel, MinLevel: cond.MinLevel}, nil

	case RuleIncome:
		if cond.MinIncome <= 0 {
			return TargetRule{}, apperrors.NewValidationError("targeting by income requires a positive minIncome")
		}
		return TargetRule{Kind: RuleIncome, MinIncome: cond.MinIncome}, nil

	case RuleTest:
		if testUserID == 0 {
			return TargetRule{}, apperrors.NewValidationError("test targeting requires a testUserId")
		}
		return TargetRule{Kind: RuleTest, TestUserID: testUserID}, nil

	default:
		return TargetRule{}, apperrors.NewValidationError(fmt.Sprintf("unknown targeting type %q", rawType))
	}
}

// Conditions converts the rule back to its storable threshold form.
func (r TargetRule) Conditions() domain.Conditions {
	return domain.Conditions{
		MinLevel:  r.MinLevel,
		MinIncome: r.MinIncome,
	}
}
