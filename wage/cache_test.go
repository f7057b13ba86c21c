package wage_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/wage"
)

type countingObserver struct {
	hits, misses, invalidations atomic.Int64
}

func (o *countingObserver) CacheHit(string)   { o.hits.Add(1) }
func (o *countingObserver) CacheMiss(string)  { o.misses.Add(1) }
func (o *countingObserver) CacheInvalidated() { o.invalidations.Add(1) }

func TestCache_BreakTimeHitEqualsFresh(t *testing.T) {
	obs := &countingObserver{}
	c := wage.NewCache(obs)
	policy := wage.StatutoryJob("job-1", "Cafe").BreakTime

	first := c.BreakTime(5*time.Hour, policy)
	second := c.BreakTime(5*time.Hour, policy)

	assert.Equal(t, wage.CalculateBreakTime(5*time.Hour, policy), first)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), obs.misses.Load())
	assert.Equal(t, int64(1), obs.hits.Load())
}

func TestCache_PolicyChangeIsANewKey(t *testing.T) {
	c := wage.NewCache(nil)
	policy := wage.StatutoryJob("job-1", "Cafe").BreakTime
	require.Equal(t, 30, c.BreakTime(5*time.Hour, policy).Minutes)

	// WHEN: The table is edited in place
	policy.Ranges[0].BreakMinutes = 45

	// THEN: The fingerprint differs, so no stale hit
	assert.Equal(t, 45, c.BreakTime(5*time.Hour, policy).Minutes)
}

func TestCache_WeeklyKeyIgnoresRecordOrder(t *testing.T) {
	obs := &countingObserver{}
	c := wage.NewCache(obs)
	job := wage.StatutoryJob("job-1", "Cafe")
	records := fifteenHourWeek("job-1", "2025-03-03")
	reversed := []wage.RatedSession{records[2], records[1], records[0]}

	a := c.WeeklyAllowance(records, job)
	b := c.WeeklyAllowance(reversed, job)

	assert.Equal(t, a, b)
	assert.Equal(t, wage.CalculateWeeklyAllowance(records, job), a)
	_, weekly := c.Len()
	assert.Equal(t, 1, weekly)
}

func TestCache_WeeklyRateChangeIsANewKey(t *testing.T) {
	c := wage.NewCache(nil)
	job := wage.StatutoryJob("job-1", "Cafe")
	records := fifteenHourWeek("job-1", "2025-03-03")
	before := c.WeeklyAllowance(records, job)

	for i := range records {
		records[i].HourlyRate = dec("12000")
	}
	after := c.WeeklyAllowance(records, job)

	assertDecimal(t, "50000", before.AllowanceAmount, "before")
	assertDecimal(t, "60000", after.AllowanceAmount, "after")
}

func TestCache_Invalidate(t *testing.T) {
	obs := &countingObserver{}
	c := wage.NewCache(obs)
	job := wage.StatutoryJob("job-1", "Cafe")
	c.WeeklyAllowance(fifteenHourWeek("job-1", "2025-03-03"), job)

	breaks, weekly := c.Len()
	require.Positive(t, breaks)
	require.Equal(t, 1, weekly)

	c.Invalidate()

	breaks, weekly = c.Len()
	assert.Zero(t, breaks)
	assert.Zero(t, weekly)
	assert.Equal(t, int64(1), obs.invalidations.Load())
}

func TestCache_ConcurrentReadersAndInvalidation(t *testing.T) {
	// GIVEN: Many goroutines reading while another keeps invalidating
	c := wage.NewCache(nil)
	job := wage.StatutoryJob("job-1", "Cafe")
	records := fifteenHourWeek("job-1", "2025-03-03")
	want := wage.CalculateWeeklyAllowance(records, job)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				c.Invalidate()
			}
		}
	}()

	// WHEN / THEN: Every read equals a fresh computation
	var readers sync.WaitGroup
	for i := 0; i < 16; i++ {
		readers.Add(1)
		go func(i int) {
			defer readers.Done()
			for n := 0; n < 200; n++ {
				got := c.WeeklyAllowance(records, job)
				if !got.AllowanceAmount.Equal(want.AllowanceAmount) || got.Eligible != want.Eligible {
					t.Errorf("reader %d: got %+v", i, got)
					return
				}
				bt := c.BreakTime(time.Duration(n%12)*time.Hour, job.BreakTime)
				if bt != wage.CalculateBreakTime(time.Duration(n%12)*time.Hour, job.BreakTime) {
					t.Errorf("reader %d: break mismatch at %dh", i, n%12)
					return
				}
			}
		}(i)
	}
	readers.Wait()
	close(stop)
	wg.Wait()
}

// =============================================================================
// ENGINE
// =============================================================================

func TestEngine_MatchesPureFunctions(t *testing.T) {
	e := wage.NewEngine(zerolog.Nop(), nil)
	job := wage.StatutoryJob("job-1", "Cafe")
	records := append(fifteenHourWeek("job-1", "2025-03-10"), fifteenHourWeek("job-1", "2025-03-31")...)
	jobs := []wage.Job{job}

	for i := 0; i < 2; i++ {
		assert.Equal(t, wage.BuildMonthlyReport(records, jobs, 2025, time.March), e.MonthlyReport(records, jobs, 2025, time.March))
		assert.Equal(t, wage.CalculateMonthlyWeeklyAllowance(records, jobs, 2025, time.April),
			e.MonthlyWeeklyAllowance(records, jobs, 2025, time.April))
		assert.Equal(t, wage.CalculateSessionWage(records[0].Session, job, records[0].HourlyRate),
			e.SessionWage(records[0].Session, job, records[0].HourlyRate))
	}
}

func TestEngine_PoliciesChangedEmptiesCache(t *testing.T) {
	e := wage.NewEngine(zerolog.Nop(), nil)
	job := wage.StatutoryJob("job-1", "Cafe")
	e.WeeklyAllowance(fifteenHourWeek("job-1", "2025-03-03"), job)

	e.PoliciesChanged()

	breaks, weekly := e.CacheLen()
	assert.Zero(t, breaks)
	assert.Zero(t, weekly)
}
