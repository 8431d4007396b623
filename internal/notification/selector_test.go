package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorResolve(t *testing.T) {
	users := &fakeUserRepo{
		allIDs:   []int64{1, 2, 3},
		byLevel:  map[int][]int64{10: {2, 3}},
		byIncome: map[int64][]int64{5000: {3}},
	}
	selector := NewSelector(users)
	ctx := context.Background()

	ids, err := selector.Resolve(ctx, TargetRule{Kind: RuleAll})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	ids, err = selector.Resolve(ctx, TargetRule{Kind: RuleLevel, MinLevel: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids)

	ids, err = selector.Resolve(ctx, TargetRule{Kind: RuleIncome, MinIncome: 5000})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)

	ids, err = selector.Resolve(ctx, TargetRule{Kind: RuleTest, TestUserID: 42})
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, ids)

	_, err = selector.Resolve(ctx, TargetRule{Kind: "vip"})
	assert.Error(t, err)
}
