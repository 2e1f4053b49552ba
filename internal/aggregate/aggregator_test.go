package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/bcdannyboy/EmailHunter/internal/platform/logger"
)

type recordingMirror struct {
	mu    sync.Mutex
	calls map[Kind]Mapping
	err   error
}

func (r *recordingMirror) Add(_ context.Context, kind Kind, m Mapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[Kind]Mapping)
	}
	if r.calls[kind] == nil {
		r.calls[kind] = make(Mapping)
	}
	r.calls[kind].Union(m)
	return r.err
}

type AggregatorSuite struct {
	suite.Suite
	agg *Aggregator
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorSuite))
}

func (s *AggregatorSuite) SetupTest() {
	s.agg = New(WithLogger(logger.Discard()))
}

func (s *AggregatorSuite) TestMergeUnionsSources() {
	s.agg.Merge(Mapping{"jane@acme.co": NewSourceSet("u1")}, nil)
	s.agg.Merge(Mapping{"jane@acme.co": NewSourceSet("u2"), "bob@acme.co": NewSourceSet("u2")}, nil)

	all, exact := s.agg.Snapshot()
	s.Equal([]string{"u1", "u2"}, all["jane@acme.co"].Sorted())
	s.Equal([]string{"bob@acme.co", "jane@acme.co"}, all.Emails())
	s.Empty(exact)
}

func (s *AggregatorSuite) TestMergeIsIdempotent() {
	all := Mapping{"jane@acme.co": NewSourceSet("u1")}
	exact := Mapping{"jane@acme.co": NewSourceSet("u1")}

	s.agg.Merge(all, exact)
	first, firstExact := s.agg.Snapshot()
	s.agg.Merge(all, exact)
	second, secondExact := s.agg.Snapshot()

	s.Equal(first, second)
	s.Equal(firstExact, secondExact)
}

func (s *AggregatorSuite) TestMergeIsCommutative() {
	a := Mapping{"jane@acme.co": NewSourceSet("u1")}
	b := Mapping{"jane@acme.co": NewSourceSet("u2"), "bob@acme.co": NewSourceSet("u3")}

	other := New(WithLogger(logger.Discard()))
	s.agg.Merge(a, nil)
	s.agg.Merge(b, nil)
	other.Merge(b, nil)
	other.Merge(a, nil)

	left, _ := s.agg.Snapshot()
	right, _ := other.Snapshot()
	s.Equal(left, right)
}

func (s *AggregatorSuite) TestExactStaysSubsetOfAll() {
	s.agg.Merge(nil, Mapping{"jane.doe@acme.co": NewSourceSet("u1")})

	all, exact := s.agg.Snapshot()
	for email := range exact {
		s.Contains(all, email)
	}
}

func (s *AggregatorSuite) TestConcurrentMergesLoseNothing() {
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := fmt.Sprintf("https://acme.co/%d", i)
			s.agg.Merge(
				Mapping{"x@acme.co": NewSourceSet(src)},
				Mapping{"x@acme.co": NewSourceSet(src)},
			)
		}(i)
	}
	wg.Wait()

	all, exact := s.agg.Snapshot()
	s.Len(all["x@acme.co"], n)
	s.Len(exact["x@acme.co"], n)
}

func (s *AggregatorSuite) TestSnapshotDuringMergesKeepsExactInAll() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			email := fmt.Sprintf("user%d@acme.co", i)
			src := fmt.Sprintf("https://acme.co/%d", i)
			s.agg.Merge(Mapping{email: NewSourceSet(src)}, Mapping{email: NewSourceSet(src)})
		}
	}()

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		all, exact := s.agg.Snapshot()
		for email, sources := range exact {
			s.Require().Contains(all, email)
			for src := range sources {
				s.Require().Contains(all[email], src)
			}
		}
		nAll, nExact := s.agg.Counts()
		s.Require().LessOrEqual(nExact, nAll)
	}
}

func (s *AggregatorSuite) TestSnapshotIsDetached() {
	s.agg.Merge(Mapping{"jane@acme.co": NewSourceSet("u1")}, nil)
	all, _ := s.agg.Snapshot()
	all["jane@acme.co"].Add("tampered")
	all["new@acme.co"] = NewSourceSet("x")

	again, _ := s.agg.Snapshot()
	s.Equal([]string{"u1"}, again["jane@acme.co"].Sorted())
	s.NotContains(again, "new@acme.co")
}

func (s *AggregatorSuite) TestMirror() {
	s.Run("receives every partial", func() {
		m := &recordingMirror{}
		agg := New(WithMirror(m), WithLogger(logger.Discard()))
		agg.Merge(
			Mapping{"jane@acme.co": NewSourceSet("u1")},
			Mapping{"jane@acme.co": NewSourceSet("u1")},
		)
		s.Contains(m.calls[KindAll], "jane@acme.co")
		s.Contains(m.calls[KindExact], "jane@acme.co")
	})

	s.Run("errors do not block merges", func() {
		m := &recordingMirror{err: errors.New("connection refused")}
		agg := New(WithMirror(m), WithLogger(logger.Discard()))
		agg.Merge(Mapping{"jane@acme.co": NewSourceSet("u1")}, nil)
		allCount, _ := agg.Counts()
		s.Equal(1, allCount)
	})
}

func (s *AggregatorSuite) TestSeed() {
	m := &recordingMirror{}
	agg := New(WithMirror(m), WithLogger(logger.Discard()))
	agg.Seed(Mapping{"a@acme.co": NewSourceSet("u1")}, Mapping{"b@acme.co": NewSourceSet("u2")})

	allCount, exactCount := agg.Counts()
	s.Equal(2, allCount)
	s.Equal(1, exactCount)
	s.Empty(m.calls)
}

func (s *AggregatorSuite) TestEmptyMergeIsNoop() {
	s.agg.Merge(Mapping{}, Mapping{})
	all, exact := s.agg.Counts()
	s.Zero(all)
	s.Zero(exact)
}
