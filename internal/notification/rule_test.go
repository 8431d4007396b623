package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		name       string
		rawType    string
		cond       domain.Conditions
		testUserID int64
		want       TargetRule
		wantErr    bool
	}{
		{
			name:    "all",
			rawType: "all",
			want:    TargetRule{Kind: RuleAll},
		},
		{
			name:    "level with threshold",
			rawType: "level",
			cond:    domain.Conditions{MinLevel: 5},
			want:    TargetRule{Kind: RuleLevel, MinLevel: 5},
		},
		{
			name:    "income with threshold",
			rawType: "income",
			cond:    domain.Conditions{MinIncome: 1000},
			want:    TargetRule{Kind: RuleIncome, MinIncome: 1000},
		},
		{
			name:       "test with user id",
			rawType:    "test",
			testUserID: 42,
			want:       TargetRule{Kind: RuleTest, TestUserID: 42},
		},
		{
			name:    "level without threshold",
			rawType: "level",
			wantErr: true,
		},
		{
			name:    "level with negative threshold",
			rawType: "level",
			cond:    domain.Conditions{MinLevel: -1},
			wantErr: true,
		},
		{
			name:    "income without threshold",
			rawType: "income",
			wantErr: true,
		},
		{
			name:    "test without user id",
			rawType: "test",
			wantErr: true,
		},
		{
			name:    "unknown type",
			rawType: "vip",
			wantErr: true,
		},
		{
			name:    "empty type",
			rawType: "",
			wantErr: true,
		},
		{
			name:    "case sensitive type",
			rawType: "ALL",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := ParseRule(tt.rawType, tt.cond, tt.testUserID)

			if tt.wantErr {
				require.Error(t, err)
				var appErr *apperrors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, apperrors.CodeValidation, appErr.Code)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, rule)
		})
	}
}

func TestTargetRuleConditions(t *testing.T) {
	rule, err := ParseRule("level", domain.Conditions{MinLevel: 3}, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Conditions{MinLevel: 3}, rule.Conditions())
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, "hello", FormatMessage("hello", false, false))
	assert.Equal(t, "🔔 ВАЖНО!\n\nhello", FormatMessage("hello", true, false))
	assert.Equal(t, "[TEST] hello", FormatMessage("hello", false, true))
	assert.Equal(t, "[TEST] 🔔 ВАЖНО!\n\nhello", FormatMessage("hello", true, true))
}
