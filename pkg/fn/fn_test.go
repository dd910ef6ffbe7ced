package fn

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMapFilter(t *testing.T) {
	got := Map([]int{1, 2, 3}, func(i int) int { return i * 10 })
	if !reflect.DeepEqual(got, []int{10, 20, 30}) {
		t.Errorf("Map: %v", got)
	}
	even := Filter([]int{1, 2, 3, 4}, func(i int) bool { return i%2 == 0 })
	if !reflect.DeepEqual(even, []int{2, 4}) {
		t.Errorf("Filter: %v", even)
	}
}

func TestGroupBySortedKeys(t *testing.T) {
	groups := GroupBy([]string{"water", "gas", "wifi", "guard"}, func(s string) string { return s[:1] })
	if !reflect.DeepEqual(SortedKeys(groups), []string{"g", "w"}) {
		t.Errorf("keys: %v", SortedKeys(groups))
	}
	if !reflect.DeepEqual(groups["w"], []string{"water", "wifi"}) {
		t.Errorf("group order: %v", groups["w"])
	}
}

func TestChunk(t *testing.T) {
	got := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || len(got[2]) != 1 {
		t.Errorf("Chunk: %v", got)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Error("expected nil for n=0")
	}
}

func TestUniqueTake(t *testing.T) {
	if got := Unique([]string{"a", "b", "a", "c", "b"}); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Unique: %v", got)
	}
	if got := Take([]int{1, 2, 3}, 2); len(got) != 2 {
		t.Errorf("Take: %v", got)
	}
	if got := Take([]int{1}, 5); len(got) != 1 {
		t.Errorf("Take over: %v", got)
	}
}

func TestResult(t *testing.T) {
	r := Ok(5)
	if v, err := r.Unwrap(); v != 5 || err != nil || !r.IsOk() {
		t.Errorf("Ok: %v %v", v, err)
	}
	e := Err[int](errors.New("boom"))
	if !e.IsErr() || e.UnwrapOr(7) != 7 {
		t.Error("Err should fall back")
	}
	if FromPair(1, errors.New("x")).IsOk() {
		t.Error("FromPair with error should fail")
	}
	if c := Collect([]Result[int]{Ok(1), e}); c.IsOk() {
		t.Error("Collect should surface the error")
	}
}

func TestThen(t *testing.T) {
	double := MapStage(func(i int) int { return i * 2 })
	toStr := MapStage(func(i int) string { return strings.Repeat("x", i) })
	v, err := Then(double, toStr)(context.Background(), 2).Unwrap()
	if err != nil || v != "xxxx" {
		t.Errorf("Then: %q %v", v, err)
	}

	fail := Stage[int, int](func(context.Context, int) Result[int] { return Err[int](errors.New("stop")) })
	called := false
	after := Stage[int, int](func(_ context.Context, i int) Result[int] { called = true; return Ok(i) })
	if r := Then(fail, after)(context.Background(), 1); r.IsOk() || called {
		t.Error("Then should short-circuit")
	}
}

func TestTracedStage(t *testing.T) {
	s := TracedStage("double", nil, MapStage(func(i int) int { return i * 2 }))
	if v, _ := s(context.Background(), 21).Unwrap(); v != 42 {
		t.Errorf("got %d", v)
	}
}

func TestRetry(t *testing.T) {
	calls := 0
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		calls++
		if calls < 3 {
			return Err[int](errors.New("transient"))
		}
		return Ok(calls)
	})
	if v, err := r.Unwrap(); err != nil || v != 3 {
		t.Errorf("Retry: %v %v", v, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r = Retry(ctx, RetryOpts{MaxAttempts: 5, InitialWait: time.Second, MaxWait: time.Second}, func(context.Context) Result[int] {
		return Err[int](errors.New("down"))
	})
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFanOutResult(t *testing.T) {
	r := FanOutResult(
		func() Result[int] { return Ok(1) },
		func() Result[int] { return Ok(2) },
	)
	if v, err := r.Unwrap(); err != nil || !reflect.DeepEqual(v, []int{1, 2}) {
		t.Errorf("FanOut: %v %v", v, err)
	}
	r = FanOutResult(
		func() Result[int] { return Ok(1) },
		func() Result[int] { return Err[int](errors.New("bad")) },
	)
	if r.IsOk() {
		t.Error("expected error")
	}
}
