package agent

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestRotateLeft(t *testing.T) {
	list := []string{"a", "b", "c"}
	tests := []struct {
		attempt int
		want    []string
	}{
		{1, []string{"a", "b", "c"}},
		{2, []string{"b", "c", "a"}},
		{3, []string{"c", "a", "b"}},
		{4, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		if got := RotateLeft(list, tt.attempt); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("RotateLeft(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
	if !reflect.DeepEqual(list, []string{"a", "b", "c"}) {
		t.Fatalf("input modified: %v", list)
	}
	if got := RotateLeft([]string{}, 2); len(got) != 0 {
		t.Fatalf("empty list rotated to %v", got)
	}
}

// Chaque candidat est essayé en tête exactement une fois sur n tentatives.
func TestRotateLeftVisitsEveryCandidate(t *testing.T) {
	for n := 1; n <= 5; n++ {
		list := make([]int, n)
		for i := range list {
			list[i] = i
		}
		seen := make(map[int]int)
		for attempt := 1; attempt <= n; attempt++ {
			seen[RotateLeft(list, attempt)[0]]++
		}
		for i := range list {
			if seen[i] != 1 {
				t.Fatalf("n=%d: candidate %d led %d times", n, i, seen[i])
			}
		}
	}
}

func TestRetry(t *testing.T) {
	var tried []string
	p := RetryPolicy[string]{Candidates: []string{"a", "b", "c"}, Rotate: RotateLeft[string]}
	got, err := Retry(context.Background(), p, func(_ context.Context, attempt int, c []string) (string, error) {
		tried = append(tried, c[0])
		if attempt < 3 {
			return "", fmt.Errorf("%s failed", c[0])
		}
		return c[0], nil
	})
	if err != nil || got != "c" {
		t.Fatalf("got %q, %v", got, err)
	}
	if !reflect.DeepEqual(tried, []string{"a", "b", "c"}) {
		t.Fatalf("tried = %v", tried)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	failures := 0
	p := RetryPolicy[int]{
		Attempts:  3,
		OnFailure: func(int, error) { failures++ },
	}
	_, err := Retry(context.Background(), p, func(_ context.Context, attempt int, _ []int) (int, error) {
		return 0, fmt.Errorf("attempt %d", attempt)
	})
	if err == nil || err.Error() != "attempt 3" || failures != 3 {
		t.Fatalf("err = %v, failures = %d", err, failures)
	}
}

func TestRetryAbort(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	p := RetryPolicy[int]{Attempts: 3, Abort: func(err error) bool { return errors.Is(err, stop) }}
	_, err := Retry(context.Background(), p, func(context.Context, int, []int) (int, error) {
		calls++
		return 0, stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryNoCandidates(t *testing.T) {
	_, err := Retry(context.Background(), RetryPolicy[string]{}, func(context.Context, int, []string) (int, error) {
		t.Fatal("op must not run")
		return 0, nil
	})
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, RetryPolicy[int]{Attempts: 2}, func(context.Context, int, []int) (int, error) {
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
