package fn

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestResult(t *testing.T) {
	ok := Ok(3)
	if !ok.IsOk() || ok.IsErr() || ok.Error() != nil {
		t.Fatalf("Ok(3) = %+v", ok)
	}
	if v, err := ok.Unwrap(); v != 3 || err != nil {
		t.Fatalf("Unwrap = %d, %v", v, err)
	}

	boom := errors.New("boom")
	e := Err[int](boom)
	if e.IsOk() || !errors.Is(e.Error(), boom) {
		t.Fatalf("Err = %+v", e)
	}

	if Err[int](nil).IsOk() {
		t.Fatal("Err(nil) must stay failed")
	}

	f := Errf[string]("code %d", 7)
	if f.Error() == nil || f.Error().Error() != "code 7" {
		t.Fatalf("Errf = %v", f.Error())
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(strconv.Atoi("12")); !r.IsOk() {
		t.Fatalf("FromPair ok = %v", r.Error())
	}
	if r := FromPair(strconv.Atoi("x")); r.IsOk() {
		t.Fatal("FromPair should carry the parse error")
	}
}

func TestMapFilter(t *testing.T) {
	got := Map([]int{1, 2, 3}, strconv.Itoa)
	if len(got) != 3 || got[2] != "3" {
		t.Fatalf("Map = %v", got)
	}

	even := Filter([]int{1, 2, 3, 4}, func(n int) bool { return n%2 == 0 })
	if len(even) != 2 || even[0] != 2 || even[1] != 4 {
		t.Fatalf("Filter = %v", even)
	}
	if Filter([]int{1}, func(int) bool { return false }) != nil {
		t.Fatal("Filter with no matches should be nil")
	}

	nums := FilterMap([]string{"1", "x", "3"}, func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil
	})
	if len(nums) != 2 || nums[1] != 3 {
		t.Fatalf("FilterMap = %v", nums)
	}
}

func TestChunk(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 || chunks[2][0] != 5 {
		t.Fatalf("Chunk = %v", chunks)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("Chunk(n=0) should be nil")
	}
	if len(Chunk([]int{}, 3)) != 0 {
		t.Fatal("Chunk of empty input should be empty")
	}
}

func TestUnique(t *testing.T) {
	got := Unique([]string{"brake", "noise", "brake", "pedal", "noise"})
	want := []string{"brake", "noise", "pedal"}
	if len(got) != len(want) {
		t.Fatalf("Unique = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Unique = %v, want %v", got, want)
		}
	}
}

func TestParMapKeepsOrder(t *testing.T) {
	in := make([]int, 50)
	for i := range in {
		in[i] = i
	}
	var running, peak atomic.Int32
	out := ParMap(in, 4, func(n int) int {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return n * n
	})
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d", i, v)
		}
	}
	if peak.Load() > 4 {
		t.Errorf("peak concurrency %d exceeds 4 workers", peak.Load())
	}
}

func TestParMapEdgeCases(t *testing.T) {
	if out := ParMap([]int{}, 3, func(n int) int { return n }); len(out) != 0 {
		t.Fatalf("empty = %v", out)
	}
	out := ParMap([]int{1, 2, 3}, 0, func(n int) int { return n + 1 })
	if out[0] != 2 || out[2] != 4 {
		t.Fatalf("unbounded = %v", out)
	}
}

func TestParMapResultIsolatesFailures(t *testing.T) {
	rs := ParMapResult([]string{"1", "x", "3"}, 2, func(s string) Result[int] {
		return FromPair(strconv.Atoi(s))
	})
	if !rs[0].IsOk() || rs[1].IsOk() || !rs[2].IsOk() {
		t.Fatalf("results = %+v", rs)
	}
}

func TestThen(t *testing.T) {
	parse := Stage[string, int](func(_ context.Context, s string) Result[int] {
		return FromPair(strconv.Atoi(s))
	})
	calls := 0
	double := Stage[int, int](func(_ context.Context, n int) Result[int] {
		calls++
		return Ok(n * 2)
	})
	s := Then(parse, double)

	if v, err := s(context.Background(), "21").Unwrap(); err != nil || v != 42 {
		t.Fatalf("Then = %d, %v", v, err)
	}
	if s(context.Background(), "x").IsOk() {
		t.Fatal("Then should propagate the first failure")
	}
	if calls != 1 {
		t.Errorf("second stage ran %d times, want 1", calls)
	}
}

func TestTracedStage(t *testing.T) {
	ok := TracedStage("ok", Stage[int, int](func(_ context.Context, n int) Result[int] { return Ok(n + 1) }))
	if v, _ := ok(context.Background(), 1).Unwrap(); v != 2 {
		t.Fatalf("TracedStage = %d", v)
	}
	bad := TracedStage("bad", Stage[int, int](func(context.Context, int) Result[int] { return Err[int](errors.New("x")) }))
	if bad(context.Background(), 1).IsOk() {
		t.Fatal("TracedStage should pass failures through")
	}
}

func TestRetry(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Err[int](errors.New("not yet"))
		}
		return Ok(42)
	})
	if v, err := r.Unwrap(); err != nil || v != 42 || attempts != 3 {
		t.Fatalf("Retry = %d, %v after %d attempts", v, err, attempts)
	}
}

func TestRetryExhausted(t *testing.T) {
	last := errors.New("last")
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}, func(context.Context) Result[int] {
		attempts++
		return Err[int](last)
	})
	if !errors.Is(r.Error(), last) || attempts != 2 {
		t.Fatalf("Retry = %v after %d attempts", r.Error(), attempts)
	}
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	Retry(context.Background(), RetryOpts{}, func(context.Context) Result[int] {
		attempts++
		return Err[int](errors.New("fail"))
	})
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r := Retry(ctx, RetryOpts{MaxAttempts: 100, InitialWait: 50 * time.Millisecond}, func(context.Context) Result[int] {
		return Err[int](errors.New("fail"))
	})
	if !errors.Is(r.Error(), context.DeadlineExceeded) {
		t.Fatalf("Retry error = %v, want deadline", r.Error())
	}
}

func TestBackoff(t *testing.T) {
	o := RetryOpts{InitialWait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond}
	if got := o.backoff(0); got != 100*time.Millisecond {
		t.Errorf("backoff(0) = %v", got)
	}
	if got := o.backoff(1); got != 200*time.Millisecond {
		t.Errorf("backoff(1) = %v", got)
	}
	if got := o.backoff(5); got != 300*time.Millisecond {
		t.Errorf("backoff(5) = %v, want cap", got)
	}

	o.Jitter = true
	for range 20 {
		if got := o.backoff(0); got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered backoff(0) = %v", got)
		}
	}

	uncapped := RetryOpts{InitialWait: time.Millisecond}
	if got := uncapped.backoff(3); got != 8*time.Millisecond {
		t.Errorf("uncapped backoff(3) = %v", got)
	}
}

func TestRetryStage(t *testing.T) {
	attempts := 0
	s := RetryStage(RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond},
		Stage[int, int](func(_ context.Context, v int) Result[int] {
			attempts++
			if attempts < 2 {
				return Err[int](errors.New("fail"))
			}
			return Ok(v * 2)
		}))
	if v, err := s(context.Background(), 5).Unwrap(); err != nil || v != 10 {
		t.Fatalf("RetryStage = %d, %v", v, err)
	}
}
