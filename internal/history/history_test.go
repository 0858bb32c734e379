package history

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/registry"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

func up(ms float64) domain.Outcome {
	return domain.Outcome{Online: true, LatencyMS: &ms, CheckedAt: time.Now()}
}

func down() domain.Outcome {
	return domain.Outcome{Online: false, CheckedAt: time.Now()}
}

func hostWith(t *testing.T, id string, samples ...float64) *registry.Host {
	t.Helper()
	rec, err := domain.EncodeRecord(domain.HostSnapshot{ID: id, Active: true, History: samples})
	require.NoError(t, err)
	r := registry.New(registry.Options{})
	r.Apply(repo.State{Records: []string{rec}})
	h, ok := r.Get(id)
	require.True(t, ok)
	return h
}

func TestSample(t *testing.T) {
	zero := 0.0
	assert.Equal(t, Failed, Sample(down()))
	assert.Equal(t, 15.5, Sample(up(15.5)))
	assert.Equal(t, UnknownLatency, Sample(domain.Outcome{Online: true}))
	assert.Equal(t, UnknownLatency, Sample(domain.Outcome{Online: true, LatencyMS: &zero}))
}

func TestAppend_EvictsOldest(t *testing.T) {
	var s []float64
	for i := 1; i <= 250; i++ {
		s = Append(s, float64(i), domain.HistoryLimit)
		require.LessOrEqual(t, len(s), domain.HistoryLimit)
	}
	require.Len(t, s, domain.HistoryLimit)
	assert.Equal(t, 151.0, s[0])
	assert.Equal(t, 250.0, s[len(s)-1])
}

func TestWentDown(t *testing.T) {
	cases := []struct {
		in   []float64
		want bool
	}{
		{nil, false},
		{[]float64{0}, false},
		{[]float64{12, 0}, true},
		{[]float64{0, 0}, false},
		{[]float64{12, 9}, false},
		{[]float64{0, 15}, false},
		{[]float64{UnknownLatency, 0}, true},
		{[]float64{5, 0, 0}, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, WentDown(c.in), "WentDown(%v)", c.in)
	}
}

func TestTracker_Scenario(t *testing.T) {
	h := hostWith(t, "H", 12, 9)
	tr := Tracker{Limit: 2}

	ev := tr.Record(h, down())
	assert.Equal(t, []float64{9, 0}, h.History())
	require.NotNil(t, ev)
	assert.Equal(t, "H", ev.HostID)

	ev = tr.Record(h, down())
	assert.Equal(t, []float64{0, 0}, h.History())
	assert.Nil(t, ev, "already down must not fire again")

	ev = tr.Record(h, up(15))
	assert.Equal(t, []float64{0, 15}, h.History())
	assert.Nil(t, ev, "recovery is not signalled")
}

func TestTracker_OnePerExcursion(t *testing.T) {
	h := hostWith(t, "h")
	tr := NewTracker()

	fired := 0
	pattern := []bool{true, false, false, false, true, true, false, true, false}
	for _, ok := range pattern {
		o := down()
		if ok {
			o = up(3)
		}
		if tr.Record(h, o) != nil {
			fired++
		}
	}
	assert.Equal(t, 3, fired)
}

func TestTracker_ConcurrentRecordsSameHost(t *testing.T) {
	h := hostWith(t, "h")
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				tr.Record(h, up(float64(i+1)))
			} else {
				tr.Record(h, down())
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, h.History(), domain.HistoryLimit)
}
