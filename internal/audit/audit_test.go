package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/namdov3-blip/agribank-crm/internal/audit"
	"github.com/namdov3-blip/agribank-crm/internal/platform/authz"
	"github.com/namdov3-blip/agribank-crm/internal/platform/database/dbtest"
)

func TestRecorder_RecordAndList(t *testing.T) {
	db := dbtest.Open(t, audit.AutoMigrate)
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	rec := audit.NewRecorder(db).WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})
	ctx := context.Background()

	alice := authz.Caller{UserID: "u-alice", Name: "Alice", Role: "Admin", OrganizationID: "org-a"}
	bob := authz.Caller{UserID: "u-bob", Name: "Bob", Role: "User1", OrganizationID: "org-b"}

	require.NoError(t, rec.Record(ctx, db, alice, "org-a", audit.ActionManualDeposit, "bank", "deposit 100"))
	require.NoError(t, rec.Record(ctx, db, bob, "org-b", audit.ActionManualWithdraw, "bank", "withdraw 50"))
	require.NoError(t, rec.Record(ctx, db, alice, "org-a", audit.ActionDisburse, "transaction t1", "disburse"))

	entries, err := rec.List(ctx, alice.Scope(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionDisburse, entries[0].Action, "newest first")
	assert.Equal(t, "Alice", entries[0].ActorName)

	all, err := rec.List(ctx, authz.AllOrganizations(), 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRecorder_RollsBackWithTransaction(t *testing.T) {
	db := dbtest.Open(t, audit.AutoMigrate)
	rec := audit.NewRecorder(db)
	ctx := context.Background()
	caller := authz.Caller{UserID: "u1", OrganizationID: "org-a"}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := rec.Record(ctx, tx, caller, "org-a", audit.ActionRefund, "transaction t1", "refund"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	entries, err := rec.List(ctx, caller.Scope(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
