package apperr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidation_MessageNamesField(t *testing.T) {
	err := Validation("weight", "must be greater than 0")
	require.Equal(t, "weight: must be greater than 0", err.Error())
	require.True(t, Is(err, KindValidation))
	require.Equal(t, KindValidation, KindOf(err))
}

func TestDependency_HidesCause(t *testing.T) {
	cause := errors.New(`relation "shipments" does not exist`)
	err := Dependency("select shipment", cause)

	require.Equal(t, KindDependencyFailure, err.Kind)
	require.NotContains(t, err.Error(), "shipments")
	require.ErrorIs(t, err, cause)
	require.Contains(t, Cause(err).Error(), "select shipment")
}

func TestDependency_DeadlineIsTimeout(t *testing.T) {
	err := Dependency("select tariff", context.DeadlineExceeded)
	require.Equal(t, KindDependencyTimeout, err.Kind)
}

func TestKindOf_UnknownErrorIsDependencyFailure(t *testing.T) {
	require.Equal(t, KindDependencyFailure, KindOf(errors.New("boom")))
	require.False(t, Is(errors.New("boom"), KindNotFound))
}
