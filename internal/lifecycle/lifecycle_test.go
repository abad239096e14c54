package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/assetdesk/internal/activity"
	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/event"
	"github.com/matthewbaird/assetdesk/internal/guard"
	"github.com/matthewbaird/assetdesk/internal/settings"
	"github.com/matthewbaird/assetdesk/internal/store"
)

var (
	clock = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	admin = domain.Actor{Name: "admin@example.com", Source: "user"}
)

type fixture struct {
	st  store.Store
	eng *Engine
	g   *guard.MemoryGuard
	act *activity.MemoryStore
}

func newFixture(t *testing.T, model domain.AssignmentModel, assets ...domain.Asset) fixture {
	t.Helper()
	return newFixtureOn(t, store.NewMemoryStore(), model, assets...)
}

// newSQLiteFixture runs the engine on the single-connection SQLite store
// with the id scheme read from stored settings, as the server wires it.
func newSQLiteFixture(t *testing.T) fixture {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	f := newFixtureOn(t, st, domain.AssignmentSingle)
	f.eng.SetIDScheme(settings.New(st, nil))
	return f
}

func newFixtureOn(t *testing.T, st store.Store, model domain.AssignmentModel, assets ...domain.Asset) fixture {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.CreateAssetFamily(ctx, domain.AssetFamily{
		ID:              "fam-m365",
		AssetType:       domain.AssetTypeLicense,
		Name:            "Microsoft 365",
		ProductCode:     "M365",
		AssignmentModel: model,
		Variants: []domain.Variant{
			{ID: "v1", Name: "Business Standard", LicenseType: "E3", Cost: decimal.RequireFromString("12.50")},
			{ID: "v2", Name: "Business Premium", LicenseType: "E5", Cost: decimal.RequireFromString("22.00")},
		},
		TotalUnits: 3,
	}))
	for i, id := range []string{"SOFT-M365-0001", "SOFT-M365-0002", "SOFT-M365-0003"} {
		require.NoError(t, st.CreateAsset(ctx, domain.Asset{
			ID: "seed-" + string(rune('a'+i)), AssetID: id, FamilyID: "fam-m365",
			Title: "Microsoft 365", Status: domain.StatusActive, AssignedUser: "u-other",
		}))
	}
	for _, a := range assets {
		require.NoError(t, st.CreateAsset(ctx, a))
	}
	for _, u := range []domain.User{
		{ID: "u1", FullName: "Ada Lovelace", Email: "ada@example.com", Role: domain.RoleUser},
		{ID: "u2", FullName: "Grace Hopper", Email: "grace@example.com", Role: domain.RoleUser},
		{ID: "u-other", FullName: "Alan Turing", Email: "alan@example.com", Role: domain.RoleUser},
		{ID: "admin", FullName: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin},
	} {
		require.NoError(t, st.CreateUser(ctx, u))
	}

	g := guard.NewMemoryGuard()
	act := activity.NewMemoryStore()
	eng := New(st, g, nil)
	eng.now = func() time.Time { return clock }
	eng.SetRecorder(event.NewActivityRecorder(act))
	return fixture{st: st, eng: eng, g: g, act: act}
}

func (f fixture) submit(t *testing.T) domain.Request {
	t.Helper()
	req, err := f.eng.CreateRequest(context.Background(), domain.Request{
		Type: domain.RequestMicrosoft, FamilyID: "fam-m365", RequestedBy: "u1",
		Justification: "new starter",
	}, domain.Actor{Name: "ada@example.com"})
	require.NoError(t, err)
	return req
}

func task() domain.Task {
	return domain.Task{AssignedTo: "admin", Priority: domain.PriorityHigh, DueDate: "2025-03-21"}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{"Pending", "Approved", true},
		{"Pending", "Rejected", true},
		{"Pending", "Fulfilled", false},
		{"Approved", "Fulfilled", true},
		{"In-Progress", "Fulfilled", true},
		{"In-Progress", "Rejected", false},
		{"Rejected", "Approved", false},
		{"Fulfilled", "Pending", false},
		{"Archived", "Pending", false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			err := ValidateTransition(RequestTransitions, tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t, domain.AssignmentSingle)
	req := f.submit(t)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, domain.RequestPending, req.Status)
	assert.Equal(t, "2025-03-14", req.RequestDate)
	assert.Equal(t, "ada@example.com", req.CreatedBy)

	_, err := f.eng.CreateRequest(context.Background(), domain.Request{
		Type: "Fax", FamilyID: "fam-m365", RequestedBy: "u1",
	}, admin)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.eng.CreateRequest(context.Background(), domain.Request{
		Type: domain.RequestHardware, FamilyID: "missing", RequestedBy: "u1",
	}, admin)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBeginApproval_WritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.AssignmentSingle)
	req := f.submit(t)

	draft, err := f.eng.BeginApproval(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, draft.RequestID)
	assert.Equal(t, domain.PriorityMedium, draft.Priority)
	assert.Equal(t, domain.TaskTodo, draft.Status)
	assert.Equal(t, "2025-03-21", draft.DueDate)
	assert.Contains(t, draft.Description, "Microsoft 365")

	got, err := f.st.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, got.Status)
	tasks, err := f.st.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestConfirmTask_NoAvailableInstanceCreatesOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.AssignmentSingle)
	req := f.submit(t)

	out, err := f.eng.ConfirmTask(ctx, req.ID, task(), admin)
	require.NoError(t, err)
	assert.True(t, out.Created)

	assets, err := f.st.ListAssets(ctx)
	require.NoError(t, err)
	assert.Len(t, assets, 4)

	a, err := f.st.GetAsset(ctx, out.Asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "SOFT-M365-0004", a.AssetID)
	assert.Equal(t, "u1", a.AssignedUser)
	assert.Empty(t, a.AssignedUsers)
	assert.Equal(t, domain.StatusActive, a.Status)
	assert.True(t, decimal.RequireFromString("12.50").Equal(a.Cost))
	assert.Equal(t, "E3", a.VariantType)

	fam, err := f.st.GetAssetFamily(ctx, "fam-m365")
	require.NoError(t, err)
	assert.Equal(t, 4, fam.TotalUnits)

	got, err := f.st.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestFulfilled, got.Status)
	assert.Equal(t, a.ID, got.FulfilledAssetID)

	tasks, err := f.st.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, req.ID, tasks[0].RequestID)
	assert.Equal(t, tasks[0].ID, got.LinkedTaskID)
	assert.Equal(t, domain.PriorityHigh, tasks[0].Priority)

	u1, err := f.st.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, u1.History, 1)
	assert.Equal(t, domain.HistoryAssigned, u1.History[0].Type)
	assert.Equal(t, "SOFT-M365-0004", u1.History[0].AssetID)
	assert.Equal(t, []string{"u1"}, u1.History[0].AssignedTo)
}

func TestConfirmTask_ReusesAvailableInstance(t *testing.T) {
	ctx := context.Background()
	spare := domain.Asset{
		ID: "spare", AssetID: "SOFT-M365-0009", FamilyID: "fam-m365",
		Title: "Microsoft 365", Status: domain.StatusAvailable,
	}
	f := newFixture(t, domain.AssignmentSingle, spare)
	req := f.submit(t)

	out, err := f.eng.ConfirmTask(ctx, req.ID, task(), admin)
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Nil(t, out.Family)

	assets, err := f.st.ListAssets(ctx)
	require.NoError(t, err)
	assert.Len(t, assets, 4)

	a, err := f.st.GetAsset(ctx, "spare")
	require.NoError(t, err)
	assert.Equal(t, "SOFT-M365-0009", a.AssetID)
	assert.Equal(t, "u1", a.AssignedUser)
	assert.Equal(t, domain.StatusActive, a.Status)

	fam, err := f.st.GetAssetFamily(ctx, "fam-m365")
	require.NoError(t, err)
	assert.Equal(t, 3, fam.TotalUnits)
}

func TestConfirmTask_MultipleModelAddsRequester(t *testing.T) {
	ctx := context.Background()
	shared := domain.Asset{
		ID: "shared", AssetID: "SOFT-M365-0010", FamilyID: "fam-m365",
		Status: domain.StatusAvailable, AssignedUsers: []string{"u2"},
	}
	f := newFixture(t, domain.AssignmentMultiple, shared)
	req := f.submit(t)

	_, err := f.eng.ConfirmTask(ctx, req.ID, task(), admin)
	require.NoError(t, err)

	a, err := f.st.GetAsset(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u1"}, a.AssignedUsers)
	assert.Empty(t, a.AssignedUser)

	u2, err := f.st.GetUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, u2.History)
}

func TestConfirmTask_Twice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.AssignmentSingle)
	req := f.submit(t)

	_, err := f.eng.ConfirmTask(ctx, req.ID, task(), admin)
	require.NoError(t, err)
	_, err = f.eng.ConfirmTask(ctx, req.ID, task(), admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	tasks, err := f.st.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestConfirmTask_InvalidTaskWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.AssignmentSingle)
	req := f.submit(t)

	_, err := f.eng.ConfirmTask(ctx, req.ID, domain.Task{Priority: "Urgent"}, admin)
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := f.st.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, got.Status)
}

func TestConfirmTask_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.AssignmentSingle)
	req := f.submit(t)
	require.NoError(t, f.st.DeleteUser(ctx, "u1"))

	_, err := f.eng.ConfirmTask(ctx, req.ID, task(), admin)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := f.st.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, got.Status)
	assert.Empty(t, got.LinkedTaskID)

	tasks, err := f.st.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assets, err := f.st.ListAssets(ctx)
	require.NoError(t, err)
	assert.Len(t, assets, 3)
}

func TestConfirmTask_BusyGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.AssignmentSingle)
	req := f.submit(t)

	release, err := f.g.Acquire(ctx, "request:"+req.ID, time.Minute)
	require.NoError(t, err)

	_, err = f.eng.ConfirmTask(ctx, req.ID, task(), admin)
	assert.ErrorIs(t, err, guard.ErrBusy)

	release()
	_, err = f.eng.ConfirmTask(ctx, req.ID, task(), admin)
	assert.NoError(t, err)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.AssignmentSingle)
	req := f.submit(t)

	out, err := f.eng.Reject(ctx, req.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, out.Request.Status)

	_, err = f.eng.Reject(ctx, req.ID, admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.eng.BeginApproval(ctx, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.eng.MarkFulfilled(ctx, req.ID, admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkFulfilled(t *testing.T) {
	ctx := context.Background()
	spare := domain.Asset{ID: "spare", AssetID: "SOFT-M365-0009", FamilyID: "fam-m365", Status: domain.StatusAvailable}
	f := newFixture(t, domain.AssignmentSingle, spare)

	pending := f.submit(t)
	_, err := f.eng.MarkFulfilled(ctx, pending.ID, admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	approved := domain.Request{
		ID: "req-imported", Type: domain.RequestMicrosoft, FamilyID: "fam-m365",
		RequestedBy: "u2", Status: domain.RequestApproved, RequestDate: "2025-03-01",
	}
	require.NoError(t, f.st.CreateRequest(ctx, approved))

	out, err := f.eng.MarkFulfilled(ctx, approved.ID, admin)
	require.NoError(t, err)
	assert.True(t, out.Created, "direct fulfillment always issues a new instance")
	assert.Equal(t, "SOFT-M365-0010", out.Asset.AssetID)
	assert.Equal(t, "u2", out.Asset.AssignedUser)
	assert.Equal(t, 4, out.Family.TotalUnits)
	assert.Equal(t, domain.RequestFulfilled, out.Request.Status)

	u2, err := f.st.GetUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, u2.History, 1)
	assert.Equal(t, "SOFT-M365-0010", u2.History[0].AssetID)
}

func TestDeferTask_ThenMarkFulfilled(t *testing.T) {
	ctx := context.Background()
	spare := domain.Asset{ID: "spare", AssetID: "SOFT-M365-0004", FamilyID: "fam-m365", Status: domain.StatusAvailable}
	f := newFixture(t, domain.AssignmentSingle, spare)
	req := f.submit(t)

	out, err := f.eng.DeferTask(ctx, req.ID, task(), admin)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestInProgress, out.Request.Status)
	require.NotNil(t, out.Task)
	assert.Nil(t, out.Asset)

	got, err := f.eng.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestInProgress, got.Status)
	assert.Equal(t, out.Task.ID, got.LinkedTaskID)
	a, err := f.st.GetAsset(ctx, "spare")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAvailable, a.Status, "nothing is issued until fulfillment")

	_, err = f.eng.DeferTask(ctx, req.ID, task(), admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	done, err := f.eng.MarkFulfilled(ctx, req.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestFulfilled, done.Request.Status)
	assert.Equal(t, out.Task.ID, done.Request.LinkedTaskID)
	assert.Equal(t, "SOFT-M365-0005", done.Asset.AssetID)
	assert.Equal(t, "u1", done.Asset.AssignedUser)
}

func TestSQLite_FulfillmentIssuesInstances(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := newSQLiteFixture(t)
	req := f.submit(t)

	out, err := f.eng.ConfirmTask(ctx, req.ID, task(), admin)
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.Equal(t, "SOFT-M365-0004", out.Asset.AssetID)
	assert.Equal(t, domain.RequestFulfilled, out.Request.Status)

	approved := domain.Request{
		ID: "req-imported", Type: domain.RequestMicrosoft, FamilyID: "fam-m365",
		RequestedBy: "u2", Status: domain.RequestApproved, RequestDate: "2025-03-01",
	}
	require.NoError(t, f.st.CreateRequest(ctx, approved))
	out, err = f.eng.MarkFulfilled(ctx, approved.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, "SOFT-M365-0005", out.Asset.AssetID)

	fam, err := f.st.GetAssetFamily(ctx, "fam-m365")
	require.NoError(t, err)
	assert.Equal(t, 5, fam.TotalUnits)
	assert.Equal(t, 5, fam.LastSequence)
	require.NoError(t, ctx.Err())
}

func TestTransitions_RecordActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.AssignmentSingle)
	req := f.submit(t)

	out, err := f.eng.ConfirmTask(ctx, req.ID, task(), admin)
	require.NoError(t, err)

	entries, _, total, err := f.act.QueryByEntity(ctx, "request", req.ID, activity.DefaultQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	var types []string
	for _, e := range entries {
		types = append(types, e.EventType)
	}
	assert.ElementsMatch(t, []string{"request_submitted", "request_approved", "request_fulfilled"}, types)

	_, _, total, err = f.act.QueryByEntity(ctx, "asset", out.Asset.ID, activity.DefaultQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, total, "created, assigned and the fulfillment target")
}
