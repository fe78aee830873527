package paginate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"GameStatsSync/internal/transport"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var errLimited = fmt.Errorf("fake: %w", transport.ErrRateLimited)

// fakeSource 模拟一个分页源：pageSizes[i] 为第 i+1 页的条目数，
// limited 记录每页还要返回几次限流
type fakeSource struct {
	mu        sync.Mutex
	pageSizes []int
	limited   map[int]int
	broken    map[int]bool
	calls     map[int]int
}

func newFakeSource(sizes ...int) *fakeSource {
	return &fakeSource{pageSizes: sizes, limited: map[int]int{}, broken: map[int]bool{}, calls: map[int]int{}}
}

func (s *fakeSource) fetch(_ context.Context, page int) (Result[string], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[page]++
	if s.limited[page] > 0 {
		s.limited[page]--
		return Result[string]{}, errLimited
	}
	if s.broken[page] {
		return Result[string]{}, transport.ErrMalformedResponse
	}
	if page > len(s.pageSizes) {
		return Result[string]{Total: len(s.pageSizes), Done: true}, nil
	}
	items := make([]string, s.pageSizes[page-1])
	for i := range items {
		items[i] = fmt.Sprintf("p%d-%d", page, i)
	}
	return Result[string]{Items: items, Total: len(s.pageSizes)}, nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
	return nil
}

func testDriver(strategy Strategy, rec *sleepRecorder) Driver {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return Driver{
		Strategy: strategy,
		Backoff:  305 * time.Second,
		Workers:  4,
		Sleep:    rec.sleep,
		Logger:   logrus.NewEntry(l),
	}
}

func drain(t *testing.T, seq func(func(Page[string], error) bool)) ([]string, []int, []error) {
	t.Helper()
	var items []string
	var numbers []int
	var errs []error
	for page, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		numbers = append(numbers, page.Number)
		items = append(items, page.Items...)
	}
	return items, numbers, errs
}

func TestPagesKnownExtent(t *testing.T) {
	src := newFakeSource(50, 50, 10)
	rec := &sleepRecorder{}

	items, numbers, errs := drain(t, Pages(context.Background(), testDriver(KnownExtent, rec), 1, src.fetch))
	require.Empty(t, errs)
	require.Equal(t, []int{1, 2, 3}, numbers)
	require.Len(t, items, 110)

	seen := map[string]bool{}
	for _, it := range items {
		require.False(t, seen[it], "duplicate %s", it)
		seen[it] = true
	}
	// 不会越过总页数
	require.Zero(t, src.calls[4])
}

func TestPagesRateLimitRetriesSamePageOnce(t *testing.T) {
	src := newFakeSource(10, 10, 10, 10, 10, 10)
	src.limited[5] = 1
	rec := &sleepRecorder{}

	items, numbers, errs := drain(t, Pages(context.Background(), testDriver(KnownExtent, rec), 1, src.fetch))
	require.Empty(t, errs)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6}, numbers)
	require.Len(t, items, 60)
	require.Equal(t, 2, src.calls[5])
	if diff := cmp.Diff([]time.Duration{305 * time.Second}, rec.slept); diff != "" {
		t.Fatal(diff)
	}

	count := 0
	for _, it := range items {
		if it == "p5-0" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestPagesRateLimitTwiceSkipsPage(t *testing.T) {
	src := newFakeSource(10, 10, 10)
	src.limited[2] = 2
	rec := &sleepRecorder{}

	items, numbers, errs := drain(t, Pages(context.Background(), testDriver(KnownExtent, rec), 1, src.fetch))
	require.Equal(t, []int{1, 3}, numbers)
	require.Len(t, items, 20)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrRateLimitExhausted)

	var pageErr *PageError
	require.True(t, errors.As(errs[0], &pageErr))
	require.Equal(t, 2, pageErr.Page)
	require.Equal(t, 2, src.calls[2])
}

func TestPagesFirstPageFailureStops(t *testing.T) {
	src := newFakeSource(10, 10)
	src.broken[1] = true

	_, numbers, errs := drain(t, Pages(context.Background(), testDriver(KnownExtent, &sleepRecorder{}), 1, src.fetch))
	require.Empty(t, numbers)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], transport.ErrMalformedResponse)
	require.Zero(t, src.calls[2])
}

func TestPagesUntilEmpty(t *testing.T) {
	src := newFakeSource(3, 2, 0, 5)

	items, numbers, errs := drain(t, Pages(context.Background(), testDriver(UntilEmpty, &sleepRecorder{}), 1, src.fetch))
	require.Empty(t, errs)
	require.Equal(t, []int{1, 2}, numbers)
	require.Len(t, items, 5)
	require.Zero(t, src.calls[4])
}

func TestPagesUntilEmptyContinuesPastFilteredPage(t *testing.T) {
	fetch := func(_ context.Context, page int) (Result[string], error) {
		switch page {
		case 1:
			return Result[string]{More: true}, nil
		case 2:
			return Result[string]{Items: []string{"game-2"}}, nil
		default:
			return Result[string]{Done: true}, nil
		}
	}

	items, numbers, errs := drain(t, Pages(context.Background(), testDriver(UntilEmpty, &sleepRecorder{}), 1, fetch))
	require.Empty(t, errs)
	require.Equal(t, []int{1, 2}, numbers)
	require.Equal(t, []string{"game-2"}, items)
}

func TestPagesRestartFromExplicitStart(t *testing.T) {
	src := newFakeSource(50, 50, 10)

	items, numbers, errs := drain(t, Pages(context.Background(), testDriver(KnownExtent, &sleepRecorder{}), 2, src.fetch))
	require.Empty(t, errs)
	require.Equal(t, []int{2, 3}, numbers)
	require.Len(t, items, 60)
	require.Zero(t, src.calls[1])
}

func TestPagesStopsWhenConsumerBreaks(t *testing.T) {
	src := newFakeSource(10, 10, 10)
	for page := range Pages(context.Background(), testDriver(KnownExtent, &sleepRecorder{}), 1, src.fetch) {
		if page.Number == 1 {
			break
		}
	}
	require.Zero(t, src.calls[2])
}

func TestPagesCanceledContext(t *testing.T) {
	src := newFakeSource(10, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, numbers, errs := drain(t, Pages(ctx, testDriver(KnownExtent, &sleepRecorder{}), 1, src.fetch))
	require.Empty(t, numbers)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], context.Canceled)
}

func TestCollectParallel(t *testing.T) {
	src := newFakeSource(50, 50, 10, 7, 3)
	src.limited[4] = 1
	src.broken[5] = true
	rec := &sleepRecorder{}

	pages, errs, err := Collect(context.Background(), testDriver(KnownExtent, rec), 1, src.fetch)
	require.NoError(t, err)
	require.Len(t, errs, 1)

	var pageErr *PageError
	require.True(t, errors.As(errs[0], &pageErr))
	require.Equal(t, 5, pageErr.Page)

	var numbers []int
	total := 0
	for _, p := range pages {
		numbers = append(numbers, p.Number)
		total += len(p.Items)
	}
	require.Equal(t, []int{1, 2, 3, 4}, numbers)
	require.Equal(t, 117, total)
	require.Len(t, rec.slept, 1)
}

func TestCollectExtentFailureIsFatal(t *testing.T) {
	src := newFakeSource(10, 10)
	src.limited[1] = 2

	_, _, err := Collect(context.Background(), testDriver(KnownExtent, &sleepRecorder{}), 1, src.fetch)
	require.ErrorIs(t, err, ErrRateLimitExhausted)
}
