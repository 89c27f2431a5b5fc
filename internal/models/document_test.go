package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindForPrefix(t *testing.T) {
	for _, k := range DocumentKinds {
		got, ok := KindForPrefix(k.Prefix())
		require.True(t, ok)
		require.Equal(t, k, got)
	}

	_, ok := KindForPrefix("INV")
	require.False(t, ok)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		kind DocumentKind
		from DocumentStatus
		to   DocumentStatus
		want bool
	}{
		{KindOrder, StatusPending, StatusConfirmed, true},
		{KindOrder, StatusPending, StatusCancelled, true},
		{KindOrder, StatusPending, StatusFulfilled, false},
		{KindOrder, StatusConfirmed, StatusFulfilled, true},
		{KindOrder, StatusFulfilled, StatusCancelled, false},
		{KindOrder, StatusCancelled, StatusPending, false},
		{KindDonation, StatusPending, StatusReceived, true},
		{KindDonation, StatusReceived, StatusReceipted, true},
		{KindDonation, StatusReceipted, StatusCancelled, false},
		{KindPledge, StatusPledged, StatusPartiallyFulfilled, true},
		{KindPledge, StatusPledged, StatusFulfilled, false},
		{KindPledge, StatusPartiallyFulfilled, StatusFulfilled, true},
		{KindPledge, StatusLapsed, StatusPledged, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"_"+string(tt.from)+"_"+string(tt.to), func(t *testing.T) {
			require.Equal(t, tt.want, tt.kind.CanTransition(tt.from, tt.to))
		})
	}
}

func TestInitialStatusIsValid(t *testing.T) {
	for _, k := range DocumentKinds {
		require.True(t, k.ValidStatus(k.InitialStatus()), k)
		require.NotEmpty(t, k.NextStatuses(k.InitialStatus()), k)
	}
}

func TestRoleRank(t *testing.T) {
	require.Greater(t, RoleOwner.Rank(), RoleAdmin.Rank())
	require.Greater(t, RoleAdmin.Rank(), RoleMember.Rank())
	require.Zero(t, Role("guest").Rank())
	require.False(t, Role("guest").Valid())
}
