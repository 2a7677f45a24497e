package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"portfolio/internal/config"
	"portfolio/internal/database"
	"portfolio/internal/domain"
	apperrors "portfolio/pkg/errors"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var testStorageConfig = config.StorageConfig{
	StatsWindowDays:  30,
	OperationTimeout: 5 * time.Second,
}

// forEachBackend runs fn against a fresh file backend and a fresh SQLite
// database, each behind its own gateway
func forEachBackend(t *testing.T, fn func(t *testing.T, gw *Gateway, clock *testClock)) {
	t.Helper()

	factories := map[string]func(t *testing.T) Backend{
		"file": func(t *testing.T) Backend {
			b, err := NewFileBackend(filepath.Join(t.TempDir(), "data", "site.json"))
			require.NoError(t, err)
			return b
		},
		"sqlite": func(t *testing.T) Backend {
			db, err := database.Open(&config.DatabaseConfig{URL: "sqlite:///" + filepath.Join(t.TempDir(), "site.db")})
			require.NoError(t, err)
			return NewRelationalBackend(db)
		},
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			t.Cleanup(func() { _ = backend.Close() })

			clock := &testClock{t: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)}
			gw := NewGateway(backend, &testStorageConfig).WithClock(clock.Now)
			fn(t, gw, clock)
		})
	}
}

func strPtr(s string) *string { return &s }

func sampleProjects() []domain.Project {
	return []domain.Project{
		{ID: "p-2", Title: "Compiler", Category: "tools", Tools: datatypes.JSONSlice[string]{"Go", "LLVM"}, Year: 2023, Link: strPtr("https://example.com/c")},
		{ID: "p-1", Title: "Portfolio", Category: "web", Tools: datatypes.JSONSlice[string]{"React"}, Year: 2024, Github: strPtr("https://github.com/x/y")},
		{ID: "p-3", Title: "Game", Category: "games", Tools: datatypes.JSONSlice[string]{}, Year: 2021},
	}
}

func TestGateway_EmptyStore(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		data, err := gw.LoadData(context.Background())
		require.NoError(t, err)

		assert.Empty(t, data.Projects)
		assert.NotNil(t, data.Projects)
		assert.NotNil(t, data.Subscribers)
		assert.Equal(t, 0, data.Visits)
		assert.Equal(t, 0, data.MessageCount)
		assert.Nil(t, data.Hero)
	})
}

func TestGateway_ProjectsRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()
		projects := sampleProjects()

		require.NoError(t, gw.UpdateContent(ctx, &domain.ContentUpdate{Projects: projects}))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		require.Len(t, data.Projects, 3)

		for i, p := range data.Projects {
			assert.Equal(t, projects[i].ID, p.ID)
			assert.Equal(t, projects[i].Title, p.Title)
			assert.Equal(t, i, p.DisplayOrder)
			assert.Equal(t, []string(projects[i].Tools), []string(p.Tools))
		}
		assert.Equal(t, "https://example.com/c", *data.Projects[0].Link)
		assert.Nil(t, data.Projects[0].Github)
		assert.Equal(t, "https://github.com/x/y", *data.Projects[1].Github)
	})
}

func TestGateway_UpdateReplacesWholeCollection(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()
		require.NoError(t, gw.UpdateContent(ctx, &domain.ContentUpdate{Projects: sampleProjects()}))

		only := []domain.Project{{ID: "p-9", Title: "Only"}}
		require.NoError(t, gw.UpdateContent(ctx, &domain.ContentUpdate{Projects: only}))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		require.Len(t, data.Projects, 1)
		assert.Equal(t, "p-9", data.Projects[0].ID)

		require.NoError(t, gw.UpdateContent(ctx, &domain.ContentUpdate{Projects: []domain.Project{}}))
		data, err = gw.LoadData(ctx)
		require.NoError(t, err)
		assert.Empty(t, data.Projects)
	})
}

func TestGateway_OmittedKeysUntouched(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()
		skills := []domain.Skill{
			{Name: "Go", Expertise: domain.ExpertiseExpert, Level: 90, Color: datatypes.JSONSlice[string]{"a", "b", "c"}},
			{Name: "SQL", Expertise: domain.ExpertiseAdvanced, Level: 70},
		}
		require.NoError(t, gw.UpdateContent(ctx, &domain.ContentUpdate{
			Projects: sampleProjects(),
			Skills:   skills,
			Hero:     datatypes.JSON(`{"title":"Hello"}`),
		}))

		require.NoError(t, gw.UpdateContent(ctx, &domain.ContentUpdate{
			About: datatypes.JSON(`{"text":"About me"}`),
		}))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		assert.Len(t, data.Projects, 3)
		require.Len(t, data.Skills, 2)
		assert.Equal(t, "Go", data.Skills[0].Name)
		assert.Equal(t, "SQL", data.Skills[1].Name)
		assert.JSONEq(t, `{"title":"Hello"}`, string(data.Hero))
		assert.JSONEq(t, `{"text":"About me"}`, string(data.About))
	})
}

func TestGateway_MalformedUpdateRejectedWhole(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()
		require.NoError(t, gw.UpdateContent(ctx, &domain.ContentUpdate{Projects: sampleProjects()}))

		err := gw.UpdateContent(ctx, &domain.ContentUpdate{
			Hero:     datatypes.JSON(`{"title":"Changed"}`),
			Projects: []domain.Project{{ID: "p-1", Title: "Fine"}, {ID: "p-2"}},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsMalformedUpdate(err))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		assert.Len(t, data.Projects, 3)
		assert.Nil(t, data.Hero)
	})
}

func TestGateway_IncrementVisits(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, clock *testClock) {
		ctx := context.Background()
		const n = 7

		var total int
		for i := 0; i < n; i++ {
			var err error
			total, err = gw.IncrementVisits(ctx)
			require.NoError(t, err)
		}
		assert.Equal(t, n, total)

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		assert.Equal(t, n, data.Visits)
		require.Len(t, data.DailyStats, 1)
		assert.Equal(t, Day(clock.Now()), data.DailyStats[0].Date)
		assert.Equal(t, n, data.DailyStats[0].Visits)
		assert.Equal(t, 0, data.DailyStats[0].MessageCount)
	})
}

func TestGateway_ConcurrentIncrementsAreNotLost(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()
		const workers = 20

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := gw.IncrementVisits(ctx)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		assert.Equal(t, workers, data.Visits)
	})
}

func TestGateway_TotalsSpanDays(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, clock *testClock) {
		ctx := context.Background()

		require.NoError(t, gw.AddMessage(ctx, &domain.Message{Name: "Ann", Email: "a@x.com", Message: "1"}))
		clock.Advance(24 * time.Hour)
		require.NoError(t, gw.AddMessage(ctx, &domain.Message{Name: "Bob", Email: "b@x.com", Message: "2"}))
		require.NoError(t, gw.AddMessage(ctx, &domain.Message{Name: "Cy", Email: "c@x.com", Message: "3"}))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		require.Len(t, data.DailyStats, 2)
		assert.Equal(t, 1, data.DailyStats[0].MessageCount)
		assert.Equal(t, 2, data.DailyStats[1].MessageCount)
		assert.Equal(t, 3, data.MessageCount)
		assert.Len(t, data.Messages, 3)
	})
}

func TestGateway_IncrementMessages(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()

		require.NoError(t, gw.AddMessage(ctx, &domain.Message{Name: "Ann", Email: "a@x.com", Message: "1"}))
		total, err := gw.IncrementMessages(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, total)

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, data.MessageCount)
		assert.Len(t, data.Messages, 1)
	})
}

// A message is never stored without its counter change, or the reverse
func TestGateway_MessageAndCounterAreAtomic(t *testing.T) {
	db, err := database.Open(&config.DatabaseConfig{URL: "sqlite:///" + filepath.Join(t.TempDir(), "site.db")})
	require.NoError(t, err)
	gw := NewGateway(NewRelationalBackend(db), &testStorageConfig)
	t.Cleanup(func() { _ = gw.Close() })
	ctx := context.Background()

	require.NoError(t, db.Migrator().DropTable(&domain.DailyStat{}))

	err = gw.AddMessage(ctx, &domain.Message{Name: "Ann", Email: "a@x.com", Message: "hi"})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&domain.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGateway_ConcurrentSubscribeSameAddress(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, clock *testClock) {
		ctx := context.Background()
		expires := clock.Now().Add(time.Hour)

		const workers = 10
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = gw.AddSubscriber(ctx, "Same@Example.com", fmt.Sprintf("token%02d", i), expires)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			assert.NoError(t, err)
		}
		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		require.Len(t, data.PendingSubscribers, 1)
		assert.Equal(t, "same@example.com", data.PendingSubscribers[0].Email)
		assert.Empty(t, data.Subscribers)
	})
}

func TestGateway_VerifiedAddOverExistingRow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, clock *testClock) {
		ctx := context.Background()

		require.NoError(t, gw.AddSubscriber(ctx, "a@x.com", "tok", clock.Now().Add(time.Hour)))
		require.NoError(t, gw.AddSubscriber(ctx, "a@x.com", "", time.Time{}))
		assert.True(t, apperrors.IsConflict(gw.AddSubscriber(ctx, "a@x.com", "", time.Time{})))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		require.Len(t, data.Subscribers, 1)
		assert.Empty(t, data.PendingSubscribers)
	})
}

func TestGateway_StatsWindowKeepsNewestDays(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, clock *testClock) {
		ctx := context.Background()
		first := Day(clock.Now())

		for i := 0; i < 31; i++ {
			_, err := gw.IncrementVisits(ctx)
			require.NoError(t, err)
			clock.Advance(24 * time.Hour)
		}

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		require.Len(t, data.DailyStats, 30)
		assert.NotEqual(t, first, data.DailyStats[0].Date)
		assert.Equal(t, Day(clock.Now().Add(-30*24*time.Hour)), data.DailyStats[0].Date)
		assert.Equal(t, Day(clock.Now().Add(-24*time.Hour)), data.DailyStats[29].Date)
		assert.Equal(t, 30, data.Visits)
	})
}

func TestGateway_ResetStats(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()
		_, err := gw.IncrementVisits(ctx)
		require.NoError(t, err)

		require.NoError(t, gw.ResetStats(ctx))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		assert.Empty(t, data.DailyStats)
		assert.Equal(t, 0, data.Visits)
	})
}

func TestGateway_SubscriberConfirmation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, clock *testClock) {
		ctx := context.Background()

		require.NoError(t, gw.AddSubscriber(ctx, "A@X.com", "tok-1", clock.Now().Add(time.Hour)))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		assert.Empty(t, data.Subscribers)
		require.Len(t, data.PendingSubscribers, 1)
		assert.Equal(t, "a@x.com", data.PendingSubscribers[0].Email)

		email, ok, err := gw.ConfirmSubscriber(ctx, "tok-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "a@x.com", email)

		data, err = gw.LoadData(ctx)
		require.NoError(t, err)
		require.Len(t, data.Subscribers, 1)
		assert.Equal(t, "a@x.com", data.Subscribers[0].Email)
		assert.True(t, data.Subscribers[0].Verified)
		assert.Nil(t, data.Subscribers[0].VerificationToken)
		assert.Empty(t, data.PendingSubscribers)
		require.Len(t, data.DailyStats, 1)
		assert.Equal(t, 1, data.DailyStats[0].SubscriberCount)

		// a used token cannot be replayed
		_, ok, err = gw.ConfirmSubscriber(ctx, "tok-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGateway_ExpiredTokenNotConfirmed(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, clock *testClock) {
		ctx := context.Background()
		require.NoError(t, gw.AddSubscriber(ctx, "late@x.com", "tok-late", clock.Now().Add(time.Hour)))

		clock.Advance(2 * time.Hour)
		_, ok, err := gw.ConfirmSubscriber(ctx, "tok-late")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = gw.ConfirmSubscriber(ctx, "unknown")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGateway_DuplicateSubscriber(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, clock *testClock) {
		ctx := context.Background()
		expires := clock.Now().Add(time.Hour)

		require.NoError(t, gw.AddSubscriber(ctx, "a@x.com", "tok-1", expires))
		require.NoError(t, gw.AddSubscriber(ctx, "a@x.com", "tok-2", expires))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		require.Len(t, data.PendingSubscribers, 1)

		// the first token was replaced
		_, ok, err := gw.ConfirmSubscriber(ctx, "tok-1")
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, err = gw.ConfirmSubscriber(ctx, "tok-2")
		require.NoError(t, err)
		assert.True(t, ok)

		err = gw.AddSubscriber(ctx, "A@x.com", "", time.Time{})
		assert.ErrorIs(t, err, ErrAlreadySubscribed)

		data, err = gw.LoadData(ctx)
		require.NoError(t, err)
		assert.Len(t, data.Subscribers, 1)
		assert.Empty(t, data.PendingSubscribers)
	})
}

func TestGateway_RemoveSubscriber(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()
		require.NoError(t, gw.AddSubscriber(ctx, "v@x.com", "", time.Time{}))

		require.NoError(t, gw.RemoveSubscriber(ctx, "V@x.com"))
		err := gw.RemoveSubscriber(ctx, "v@x.com")
		assert.True(t, apperrors.IsNotFound(err))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		assert.Empty(t, data.Subscribers)
		require.Len(t, data.DailyStats, 1)
		assert.Equal(t, 0, data.DailyStats[0].SubscriberCount)
	})
}

func TestGateway_Messages(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()

		first := &domain.Message{Name: "Ann", Email: "ann@x.com", Message: "hi"}
		second := &domain.Message{Name: "Bob", Email: "bob@x.com", Message: "job", Recruitment: true, Company: strPtr("Acme")}
		require.NoError(t, gw.AddMessage(ctx, first))
		require.NoError(t, gw.AddMessage(ctx, second))
		assert.NotZero(t, first.ID)
		assert.Greater(t, second.ID, first.ID)

		require.NoError(t, gw.SetMessageStatus(ctx, first.ID, domain.MessageRead))
		assert.True(t, apperrors.IsNotFound(gw.SetMessageStatus(ctx, 999, domain.MessageRead)))
		assert.Error(t, gw.SetMessageStatus(ctx, first.ID, "archived"))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		require.Len(t, data.Messages, 2)
		assert.Equal(t, domain.MessageRead, data.Messages[0].Status)
		assert.Equal(t, domain.MessageUnread, data.Messages[1].Status)
		assert.True(t, data.Messages[1].Recruitment)
		assert.Equal(t, "Acme", *data.Messages[1].Company)

		require.NoError(t, gw.DeleteMessage(ctx, first.ID))
		assert.True(t, apperrors.IsNotFound(gw.DeleteMessage(ctx, first.ID)))

		third := &domain.Message{Name: "Cy", Email: "cy@x.com", Message: "again"}
		require.NoError(t, gw.AddMessage(ctx, third))
		assert.Greater(t, third.ID, second.ID)
	})
}

func TestGateway_Appointments(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()

		appt := &domain.Appointment{Date: "2024-04-01", Time: "10:00", Name: "Ann", Email: "ann@x.com", Topic: "intro"}
		require.NoError(t, gw.AddAppointment(ctx, appt))
		assert.Equal(t, domain.AppointmentPending, appt.Status)

		updated, err := gw.SetAppointmentStatus(ctx, appt.ID, domain.AppointmentConfirmed)
		require.NoError(t, err)
		assert.Equal(t, domain.AppointmentConfirmed, updated.Status)
		assert.Equal(t, "ann@x.com", updated.Email)

		_, err = gw.SetAppointmentStatus(ctx, 999, domain.AppointmentCancelled)
		assert.True(t, apperrors.IsNotFound(err))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		require.Len(t, data.Appointments, 1)
		assert.Equal(t, domain.AppointmentConfirmed, data.Appointments[0].Status)
	})
}

func TestGateway_ConfigUpsert(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()

		_, found, err := gw.GetConfig(ctx, domain.AdminCredentialKey)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, gw.PutConfig(ctx, domain.AdminCredentialKey, datatypes.JSON(`{"salt":"a","hash":"b"}`)))
		require.NoError(t, gw.PutConfig(ctx, domain.AdminCredentialKey, datatypes.JSON(`{"salt":"c","hash":"d"}`)))

		value, found, err := gw.GetConfig(ctx, domain.AdminCredentialKey)
		require.NoError(t, err)
		assert.True(t, found)
		assert.JSONEq(t, `{"salt":"c","hash":"d"}`, string(value))

		// the credential never appears in the snapshot
		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		assert.Nil(t, data.Hero)
	})
}

func TestGateway_ImportKeepsExistingRows(t *testing.T) {
	forEachBackend(t, func(t *testing.T, gw *Gateway, _ *testClock) {
		ctx := context.Background()
		require.NoError(t, gw.UpdateContent(ctx, &domain.ContentUpdate{
			Projects: []domain.Project{{ID: "p-1", Title: "Current"}},
			Hero:     datatypes.JSON(`{"title":"current"}`),
		}))

		require.NoError(t, gw.Import(ctx, &domain.SiteData{
			Hero:     datatypes.JSON(`{"title":"imported"}`),
			About:    datatypes.JSON(`{"text":"imported"}`),
			Projects: []domain.Project{{ID: "p-1", Title: "Imported"}, {ID: "p-2", Title: "New", DisplayOrder: 1}},
			Messages: []domain.Message{{ID: 5, Name: "Old", Email: "old@x.com", Message: "m", Status: domain.MessageRead, Date: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)}},
		}))

		data, err := gw.LoadData(ctx)
		require.NoError(t, err)
		require.Len(t, data.Projects, 2)
		assert.Equal(t, "Current", data.Projects[0].Title)
		assert.Equal(t, "New", data.Projects[1].Title)
		assert.JSONEq(t, `{"title":"current"}`, string(data.Hero))
		assert.JSONEq(t, `{"text":"imported"}`, string(data.About))
		require.Len(t, data.Messages, 1)
		assert.Equal(t, uint(5), data.Messages[0].ID)

		next := &domain.Message{Name: "New", Email: "n@x.com", Message: "m"}
		require.NoError(t, gw.AddMessage(ctx, next))
		assert.Greater(t, next.ID, uint(5))
	})
}

func TestGateway_BackendSelection(t *testing.T) {
	dir := t.TempDir()

	cfg := &config.Config{Storage: config.StorageConfig{DataFile: filepath.Join(dir, "site.json")}}
	backend, err := Open(cfg)
	require.NoError(t, err)
	assert.False(t, NewGateway(backend, &testStorageConfig).IsBackendConfigured())
	assert.Equal(t, "file", backend.Name())

	cfg.Database.URL = "sqlite:///" + filepath.Join(dir, "site.db")
	backend, err = Open(cfg)
	require.NoError(t, err)
	defer backend.Close()
	assert.True(t, NewGateway(backend, &testStorageConfig).IsBackendConfigured())
	assert.Equal(t, "sqlite", backend.Name())
}
