package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCondition_Valid(t *testing.T) {
	require.True(t, ConditionAbove.Valid())
	require.True(t, ConditionBelow.Valid())
	require.False(t, Condition("sideways").Valid())
	require.False(t, Condition("").Valid())
}

func TestAlert_ShouldTrigger(t *testing.T) {
	target := decimal.NewFromInt(100)

	above := &Alert{TargetPrice: target, Condition: ConditionAbove}
	require.True(t, above.ShouldTrigger(decimal.NewFromInt(101)))
	require.True(t, above.ShouldTrigger(target))
	require.False(t, above.ShouldTrigger(decimal.RequireFromString("99.999999")))

	below := &Alert{TargetPrice: target, Condition: ConditionBelow}
	require.True(t, below.ShouldTrigger(decimal.NewFromInt(99)))
	require.True(t, below.ShouldTrigger(target))
	require.False(t, below.ShouldTrigger(decimal.RequireFromString("100.000001")))

	broken := &Alert{TargetPrice: target, Condition: "sideways"}
	require.False(t, broken.ShouldTrigger(target))
}

func TestOrder_ShouldTrigger(t *testing.T) {
	order := &Order{LimitPrice: decimal.NewFromInt(100)}
	require.True(t, order.ShouldTrigger(decimal.NewFromInt(99)))
	require.True(t, order.ShouldTrigger(decimal.NewFromInt(100)))
	require.False(t, order.ShouldTrigger(decimal.RequireFromString("100.01")))
}
