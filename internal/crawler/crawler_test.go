package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lok-dashboard/internal/models"
	"github.com/lok-dashboard/internal/types"
)

// fakeLoader records EnsureDay calls and fails for configured land IDs.
type fakeLoader struct {
	mu      sync.Mutex
	calls   []string
	failFor map[string]bool
}

func newFakeLoader(failFor ...string) *fakeLoader {
	failing := make(map[string]bool)
	for _, id := range failFor {
		failing[id] = true
	}
	return &fakeLoader{failFor: failing}
}

func (f *fakeLoader) EnsureDay(_ context.Context, landID string, date types.Date) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, landID)
	if f.failFor[landID] {
		return errors.New("upstream unavailable")
	}
	return nil
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeJobStore keeps statuses and bad lands in memory.
type fakeJobStore struct {
	mu          sync.Mutex
	statuses    []models.BatchJobStatus
	bad         map[string]bool
	badListErr  error
	markBadErr  error
	markCalls   int
	latestByDay map[string]*models.BatchJobStatus
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		bad:         make(map[string]bool),
		latestByDay: make(map[string]*models.BatchJobStatus),
	}
}

func (f *fakeJobStore) SaveStatus(_ context.Context, status *models.BatchJobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, *status)
	copied := *status
	f.latestByDay[status.Date.String()] = &copied
	return nil
}

func (f *fakeJobStore) LatestStatusForDate(_ context.Context, date types.Date) (*models.BatchJobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.latestByDay[date.String()]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeJobStore) MarkBad(_ context.Context, landID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if f.markBadErr != nil {
		return f.markBadErr
	}
	f.bad[landID] = true
	return nil
}

func (f *fakeJobStore) IsBadLand(_ context.Context, landID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bad[landID], nil
}

func (f *fakeJobStore) BadLandIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.badListErr != nil {
		return nil, f.badListErr
	}
	var ids []string
	for id := range f.bad {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeJobStore) lastStatus() models.BatchJobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[len(f.statuses)-1]
}

func newTestCrawler(t *testing.T, loader ContributionLoader, jobs JobStore, policy QuarantinePolicy, start, end int) *Crawler {
	t.Helper()
	c, err := NewCrawler(&CrawlerConfig{
		Contributions: loader,
		Jobs:          jobs,
		Policy:        policy,
		StartLandID:   start,
		EndLandID:     end,
		Now:           func() time.Time { return time.Date(2026, 8, 28, 7, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return c
}

func TestRunSweepProcessesWholeRange(t *testing.T) {
	loader := newFakeLoader()
	jobs := newFakeJobStore()
	c := newTestCrawler(t, loader, jobs, nil, 100, 104)

	date := types.NewDate(2026, 8, 27)
	require.NoError(t, c.RunSweep(context.Background(), date))

	assert.Equal(t, []string{"100", "101", "102", "103", "104"}, loader.calls)

	status := jobs.lastStatus()
	assert.Equal(t, models.JobStatusSuccess, status.Status)
	assert.Equal(t, "Processed 5/5 lands successfully", status.Message)
	assert.True(t, status.Date.Equal(date))
}

func TestRunSweepSkipsQuarantinedLands(t *testing.T) {
	loader := newFakeLoader()
	jobs := newFakeJobStore()
	jobs.bad["101"] = true
	jobs.bad["103"] = true
	c := newTestCrawler(t, loader, jobs, nil, 100, 104)

	require.NoError(t, c.RunSweep(context.Background(), types.NewDate(2026, 8, 27)))

	assert.Equal(t, []string{"100", "102", "104"}, loader.calls)
	assert.Equal(t, "Processed 3/3 lands successfully", jobs.lastStatus().Message)
}

func TestRunSweepIsolatesLandFailures(t *testing.T) {
	loader := newFakeLoader("102")
	jobs := newFakeJobStore()
	c := newTestCrawler(t, loader, jobs, nil, 100, 104)

	require.NoError(t, c.RunSweep(context.Background(), types.NewDate(2026, 8, 27)))

	// The failing land does not stop the sweep.
	assert.Equal(t, 5, loader.callCount())

	status := jobs.lastStatus()
	assert.Equal(t, models.JobStatusSuccess, status.Status)
	assert.Equal(t, "Processed 4/5 lands successfully", status.Message)
}

func TestRunSweepFailsWhenQuarantineListUnavailable(t *testing.T) {
	loader := newFakeLoader()
	jobs := newFakeJobStore()
	jobs.badListErr = errors.New("connection refused")
	c := newTestCrawler(t, loader, jobs, nil, 100, 104)

	err := c.RunSweep(context.Background(), types.NewDate(2026, 8, 27))
	require.Error(t, err)

	assert.Equal(t, 0, loader.callCount())
	status := jobs.lastStatus()
	assert.Equal(t, models.JobStatusFailed, status.Status)
	assert.Contains(t, status.Message, "Batch job failed")
}

func TestRunSweepCancellation(t *testing.T) {
	loader := newFakeLoader()
	jobs := newFakeJobStore()
	c := newTestCrawler(t, loader, jobs, nil, 100, 104)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.RunSweep(ctx, types.NewDate(2026, 8, 27))
	require.ErrorIs(t, err, context.Canceled)

	status := jobs.lastStatus()
	assert.Equal(t, models.JobStatusFailed, status.Status)
	assert.Contains(t, status.Message, "Batch job cancelled")
}

func TestQuarantinePolicyMarksBadAfterThreshold(t *testing.T) {
	loader := newFakeLoader("102")
	jobs := newFakeJobStore()
	policy := NewConsecutiveFailures(2)
	c := newTestCrawler(t, loader, jobs, policy, 100, 104)

	date := types.NewDate(2026, 8, 27)

	require.NoError(t, c.RunSweep(context.Background(), date))
	assert.False(t, jobs.bad["102"], "one failure should not quarantine yet")

	require.NoError(t, c.RunSweep(context.Background(), date.AddDays(1)))
	assert.True(t, jobs.bad["102"])

	// The quarantined land is skipped from the next sweep on.
	before := loader.callCount()
	require.NoError(t, c.RunSweep(context.Background(), date.AddDays(2)))
	assert.Equal(t, before+4, loader.callCount())
}

func TestQuarantinePolicyDisabledByDefault(t *testing.T) {
	loader := newFakeLoader("102")
	jobs := newFakeJobStore()
	c := newTestCrawler(t, loader, jobs, nil, 100, 104)

	date := types.NewDate(2026, 8, 27)
	for i := 0; i < 5; i++ {
		require.NoError(t, c.RunSweep(context.Background(), date.AddDays(i)))
	}

	assert.Empty(t, jobs.bad)
}

func TestConsecutiveFailuresResetOnSuccess(t *testing.T) {
	policy := NewConsecutiveFailures(3)

	assert.False(t, policy.RecordFailure("100"))
	assert.False(t, policy.RecordFailure("100"))
	policy.RecordSuccess("100")
	assert.False(t, policy.RecordFailure("100"))
	assert.False(t, policy.RecordFailure("100"))
	assert.True(t, policy.RecordFailure("100"))
	// Past the threshold the policy stays quiet; the land is already marked.
	assert.False(t, policy.RecordFailure("100"))
}

func TestRunDailyUsesYesterday(t *testing.T) {
	loader := newFakeLoader()
	jobs := newFakeJobStore()
	c := newTestCrawler(t, loader, jobs, nil, 100, 100)

	require.NoError(t, c.RunDaily(context.Background()))

	status := jobs.lastStatus()
	assert.True(t, status.Date.Equal(types.NewDate(2026, 8, 27)))
}

func TestCheckAndRecover(t *testing.T) {
	t.Run("runs when no status recorded", func(t *testing.T) {
		loader := newFakeLoader()
		jobs := newFakeJobStore()
		c := newTestCrawler(t, loader, jobs, nil, 100, 100)

		ran, err := c.CheckAndRecover(context.Background())
		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, 1, loader.callCount())
	})

	t.Run("runs when last status is failed", func(t *testing.T) {
		loader := newFakeLoader()
		jobs := newFakeJobStore()
		c := newTestCrawler(t, loader, jobs, nil, 100, 100)

		yesterday := types.NewDate(2026, 8, 27)
		require.NoError(t, jobs.SaveStatus(context.Background(), &models.BatchJobStatus{
			Date:   yesterday,
			Status: models.JobStatusFailed,
		}))

		ran, err := c.CheckAndRecover(context.Background())
		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, models.JobStatusSuccess, jobs.lastStatus().Status)
	})

	t.Run("does nothing after a successful run", func(t *testing.T) {
		loader := newFakeLoader()
		jobs := newFakeJobStore()
		c := newTestCrawler(t, loader, jobs, nil, 100, 100)

		require.NoError(t, jobs.SaveStatus(context.Background(), &models.BatchJobStatus{
			Date:   types.NewDate(2026, 8, 27),
			Status: models.JobStatusSuccess,
		}))

		ran, err := c.CheckAndRecover(context.Background())
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Equal(t, 0, loader.callCount())
	})
}

func TestMarkBadDirect(t *testing.T) {
	loader := newFakeLoader()
	jobs := newFakeJobStore()
	c := newTestCrawler(t, loader, jobs, nil, 100, 104)

	require.NoError(t, c.MarkBad(context.Background(), "103"))
	assert.True(t, jobs.bad["103"])

	// Re-marking a quarantined land is a no-op.
	require.NoError(t, c.MarkBad(context.Background(), "103"))
	assert.Equal(t, 1, jobs.markCalls)
}
