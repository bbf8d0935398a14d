package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ardanlabs/blockgraph/foundation/retry"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func TestDo(t *testing.T) {
	errBoom := errors.New("boom")
	p := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Log("Given the need to retry failing calls.")
	{
		t.Logf("\tTest 0:\tWhen the call succeeds on the second attempt.")
		{
			var calls int
			err := retry.Do(context.Background(), p, func(context.Context) error {
				calls++
				if calls == 1 {
					return errBoom
				}
				return nil
			})
			if err != nil || calls != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould succeed after 2 calls, got %d: %v", failed, calls, err)
			}
			t.Logf("\t%s\tTest 0:\tShould succeed after 2 calls.", success)
		}

		t.Logf("\tTest 1:\tWhen the call always fails.")
		{
			var calls, retries int
			p := p
			p.OnRetry = func(int, time.Duration, error) { retries++ }

			err := retry.Do(context.Background(), p, func(context.Context) error {
				calls++
				return errBoom
			})
			if !errors.Is(err, errBoom) || calls != 3 || retries != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould give up after 3 calls, got %d/%d: %v", failed, calls, retries, err)
			}
			t.Logf("\t%s\tTest 1:\tShould give up after 3 calls.", success)
		}

		t.Logf("\tTest 2:\tWhen the error is fatal.")
		{
			var calls int
			p := p
			p.Classify = func(error) retry.Class { return retry.Fatal }

			retry.Do(context.Background(), p, func(context.Context) error {
				calls++
				return errBoom
			})
			if calls != 1 {
				t.Fatalf("\t%s\tTest 2:\tShould stop after 1 call, got %d.", failed, calls)
			}
			t.Logf("\t%s\tTest 2:\tShould stop after 1 call.", success)
		}

		t.Logf("\tTest 3:\tWhen the backoff grows past the cap.")
		{
			if got := retry.Backoff(p, 10); got != p.MaxDelay {
				t.Fatalf("\t%s\tTest 3:\tShould cap the wait, got %v.", failed, got)
			}
			t.Logf("\t%s\tTest 3:\tShould cap the wait.", success)
		}
	}
}
