package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func seedPackage(t *testing.T, repo *Repository, id string, active bool) {
	t.Helper()
	_, err := repo.db.Exec(`INSERT INTO packages (id, name, type, price, days, is_active) VALUES ($1, $2, 'weekly', 89.99, 5, $3)`,
		id, "Package "+id, active)
	require.NoError(t, err)
}

func seedAddon(t *testing.T, repo *Repository, id, price string) {
	t.Helper()
	_, err := repo.db.Exec(`INSERT INTO addons (id, name, price) VALUES ($1, $2, $3)`, id, "Addon "+id, price)
	require.NoError(t, err)
}

func newTestOrder(paymentID string) *domain.Order {
	return &domain.Order{
		ID:        uuid.New(),
		UserID:    "user-123",
		PackageID: "pkg-1",
		PackageSnapshot: domain.PackageSnapshot{
			Name:  "Weekly Veg",
			Type:  "weekly",
			Price: decimal.RequireFromString("89.99"),
			Days:  5,
		},
		DeliveryAddressSnapshot: domain.Address{Street: "1 King St", City: "Toronto", PostalCode: "M5H 1A1"},
		StripePaymentID:         paymentID,
		StripeSessionID:         "cs_test_1",
		TotalAmount:             decimal.RequireFromString("89.99"),
		Currency:                "CAD",
		DeliveryStartDate:       domain.NewDate(2024, 3, 11),
		DeliveryEndDate:         domain.NewDate(2024, 3, 15),
		Status:                  domain.OrderStatusConfirmed,
	}
}

func newEvent(t *testing.T, eventType string, id uuid.UUID) *domain.OutboxEvent {
	t.Helper()
	e, err := domain.NewFinalizedEvent(eventType, id, "user-123", true, time.Now())
	require.NoError(t, err)
	return e
}

func TestCatalog(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	seedPackage(t, repo, "pkg-1", true)
	seedPackage(t, repo, "pkg-2", false)
	seedAddon(t, repo, "a-1", "2.50")
	seedAddon(t, repo, "a-2", "3.00")

	packages, err := repo.ListActivePackages(ctx)
	require.NoError(t, err)
	require.Len(t, packages, 1)
	assert.Equal(t, "pkg-1", packages[0].ID)
	assert.True(t, decimal.RequireFromString("89.99").Equal(packages[0].Price))

	p, err := repo.GetPackage(ctx, "pkg-2")
	require.NoError(t, err)
	assert.False(t, p.IsActive)

	_, err = repo.GetPackage(ctx, "missing")
	assert.ErrorIs(t, err, ErrPackageNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	addons, err := repo.GetAddonsByIDs(ctx, []string{"a-2", "nope"})
	require.NoError(t, err)
	require.Len(t, addons, 1)
	assert.Equal(t, "a-2", addons[0].ID)

	all, err := repo.ListActiveAddons(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProfiles(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.GetProfile(ctx, "user-1")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	saved, err := repo.UpsertProfile(ctx, &domain.Profile{
		UserID:   "user-1",
		FullName: "Asha",
		Email:    "asha@example.com",
		Phone:    "+14165550100",
		Address:  domain.Address{Street: "1 King St", City: "Toronto", PostalCode: "M5H 1A1"},
	})
	require.NoError(t, err)
	assert.False(t, saved.PhoneVerified)

	require.NoError(t, repo.MarkPhoneVerified(ctx, "user-1", "+14165550100"))

	byPhone, err := repo.GetProfileByPhone(ctx, "+14165550100")
	require.NoError(t, err)
	assert.Equal(t, "user-1", byPhone.UserID)
	assert.True(t, byPhone.PhoneVerified)

	// same phone keeps verification
	saved.FullName = "Asha K"
	saved, err = repo.UpsertProfile(ctx, saved)
	require.NoError(t, err)
	assert.True(t, saved.PhoneVerified)

	// new phone resets it
	saved.Phone = "+14165550199"
	saved, err = repo.UpsertProfile(ctx, saved)
	require.NoError(t, err)
	assert.False(t, saved.PhoneVerified)

	err = repo.MarkPhoneVerified(ctx, "ghost", "+1")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfiles_OnlyVerifiedPhoneIdentifiesUser(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	const phone = "+14165550142"

	// another user claims the number first without verifying it
	_, err := repo.UpsertProfile(ctx, &domain.Profile{UserID: "squatter", Phone: phone})
	require.NoError(t, err)
	_, err = repo.GetProfileByPhone(ctx, phone)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = repo.UpsertProfile(ctx, &domain.Profile{UserID: "owner", Phone: phone})
	require.NoError(t, err)
	require.NoError(t, repo.MarkPhoneVerified(ctx, "owner", phone))

	byPhone, err := repo.GetProfileByPhone(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, "owner", byPhone.UserID)

	err = repo.MarkPhoneVerified(ctx, "squatter", phone)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInsertOrFetchOrder_Idempotent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first := newTestOrder("pi_123")
	saved, created, err := repo.InsertOrFetchOrder(ctx, first, newEvent(t, domain.EventOrderFinalized, first.ID))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.ID, saved.ID)
	assert.Equal(t, domain.NewDate(2024, 3, 11), saved.DeliveryStartDate)
	assert.Equal(t, "Toronto", saved.DeliveryAddressSnapshot.City)

	second := newTestOrder("pi_123")
	again, created, err := repo.InsertOrFetchOrder(ctx, second, newEvent(t, domain.EventOrderFinalized, second.ID))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	var orders, events int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&orders))
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM outbox_events`).Scan(&events))
	assert.Equal(t, 1, orders)
	assert.Equal(t, 1, events)
}

func TestInsertOrFetchOrder_ConcurrentSamePayment(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	const n = 10
	ids := make([]uuid.UUID, n)
	createdCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := newTestOrder("pi_race")
			saved, created, err := repo.InsertOrFetchOrder(ctx, o, newEvent(t, domain.EventOrderFinalized, o.ID))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[i] = saved.ID
			if created {
				createdCount++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestInsertOrder_RejectsInvertedWindow(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	o := newTestOrder("pi_bad")
	o.DeliveryEndDate = domain.NewDate(2024, 3, 1)

	_, _, err := repo.InsertOrFetchOrder(context.Background(), o, nil)
	assert.Error(t, err)
}

func TestOrdersQueries(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	o := newTestOrder("pi_q")
	_, _, err := repo.InsertOrFetchOrder(ctx, o, nil)
	require.NoError(t, err)

	got, err := repo.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_q", got.StripePaymentID)
	assert.True(t, decimal.RequireFromString("89.99").Equal(got.PackageSnapshot.Price))

	_, err = repo.GetOrderByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)

	list, err := repo.ListOrdersByUserID(ctx, "user-123")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	empty, err := repo.ListOrdersByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInsertOrFetchAddonOrder(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	main := newTestOrder("pi_main")
	_, _, err := repo.InsertOrFetchOrder(ctx, main, nil)
	require.NoError(t, err)

	newAddonOrder := func() *domain.AddonOrder {
		return &domain.AddonOrder{
			ID:                uuid.New(),
			UserID:            "user-123",
			MainOrderID:       main.ID,
			AddonDeliveryDate: domain.NewDate(2024, 3, 12),
			AddonsOrdered: []domain.OrderedAddon{
				{AddonID: "a-1", Name: "Raita", PriceAtPurchase: decimal.RequireFromString("2.50"), Quantity: 2},
			},
			TotalAddonPrice:       decimal.RequireFromString("5.00"),
			Currency:              "CAD",
			StripePaymentIntentID: "pi_addon",
		}
	}

	first := newAddonOrder()
	saved, created, err := repo.InsertOrFetchAddonOrder(ctx, first, newEvent(t, domain.EventAddonOrderFinalized, first.ID))
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, saved.AddonsOrdered, 1)
	assert.Equal(t, 2, saved.AddonsOrdered[0].Quantity)

	again, created, err := repo.InsertOrFetchAddonOrder(ctx, newAddonOrder(), nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	list, err := repo.ListAddonOrdersByUserID(ctx, "user-123")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCalendar(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	cal := repo.Calendar()

	day := func(d int) domain.Date { return domain.NewDate(2024, 3, d) }
	require.NoError(t, cal.UpsertScheduleEntry(ctx, domain.DeliveryScheduleEntry{EventDate: day(10), IsDeliveryEnabled: false}))
	for _, d := range []int{11, 12, 14} {
		require.NoError(t, cal.UpsertScheduleEntry(ctx, domain.DeliveryScheduleEntry{EventDate: day(d), IsDeliveryEnabled: true}))
	}
	require.NoError(t, cal.UpsertScheduleEntry(ctx, domain.DeliveryScheduleEntry{EventDate: day(13), IsDeliveryEnabled: false, Notes: "holiday"}))

	first, ok, err := cal.FirstEnabledOnOrAfter(ctx, day(10), day(30))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day(11), first)

	_, ok, err = cal.FirstEnabledOnOrAfter(ctx, day(15), day(30))
	require.NoError(t, err)
	assert.False(t, ok)

	dates, err := cal.EnabledFrom(ctx, day(11), 3, day(30))
	require.NoError(t, err)
	assert.Equal(t, []domain.Date{day(11), day(12), day(14)}, dates)

	entries, err := cal.EnabledBetween(ctx, day(12), day(14))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, day(14), entries[1].EventDate)
}

func TestResetAttempts(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	a := &domain.PasswordResetAttempt{
		ID:     uuid.New(),
		Phone:  "+14165550100",
		UserID: "user-1",
		Status: domain.PasswordResetPending,
	}
	require.NoError(t, repo.CreateResetAttempt(ctx, a))

	latest, err := repo.LatestResetAttempt(ctx, a.Phone)
	require.NoError(t, err)
	assert.Equal(t, a.ID, latest.ID)
	assert.Nil(t, latest.VerifiedAt)

	n, err := repo.IncrementResetAttempts(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.TransitionResetAttempt(ctx, a.ID, domain.PasswordResetPending, domain.PasswordResetVerified))
	err = repo.TransitionResetAttempt(ctx, a.ID, domain.PasswordResetPending, domain.PasswordResetVerified)
	assert.ErrorIs(t, err, ErrStaleTransition)

	got, err := repo.GetResetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PasswordResetVerified, got.Status)
	assert.NotNil(t, got.VerifiedAt)

	_, err = repo.LatestResetAttempt(ctx, "+19999999999")
	assert.ErrorIs(t, err, ErrResetAttemptNotFound)
}

func TestOutbox(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	o := newTestOrder("pi_outbox")
	event := newEvent(t, domain.EventOrderFinalized, o.ID)
	_, _, err := repo.InsertOrFetchOrder(ctx, o, event)
	require.NoError(t, err)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, o.ID, events[0].AggregateID)
	assert.Equal(t, domain.EventOrderFinalized, events[0].EventType)
	assert.JSONEq(t, string(event.Payload), string(events[0].Payload))

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	deleted, err := repo.DeleteProcessedEventsBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
