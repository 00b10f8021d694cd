package webhook

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errBoom = errors.New("boom")

func failing() (deliveryResult, error) { return deliveryResult{code: 500}, errBoom }
func passing() (deliveryResult, error) { return deliveryResult{code: 200}, nil }

func TestBreakerTripsAfterThreshold(t *testing.T) {
	set := newBreakerSet(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	cb := set.get("wh-1")

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(failing); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if got := set.state("wh-1"); got != "open" {
		t.Errorf("state = %q, want open", got)
	}
	if _, err := cb.Execute(passing); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	set := newBreakerSet(BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	cb := set.get("wh-1")

	cb.Execute(failing)
	cb.Execute(passing)
	cb.Execute(failing)
	if got := set.state("wh-1"); got != "closed" {
		t.Errorf("state = %q, want closed", got)
	}
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	set := newBreakerSet(BreakerConfig{FailureThreshold: 1, ResetTimeout: 50 * time.Millisecond})
	cb := set.get("wh-1")

	cb.Execute(failing)
	if got := set.state("wh-1"); got != "open" {
		t.Fatalf("state = %q, want open", got)
	}
	time.Sleep(80 * time.Millisecond)
	if got := set.state("wh-1"); got != "half-open" {
		t.Errorf("state = %q, want half-open", got)
	}
	if _, err := cb.Execute(passing); err != nil {
		t.Errorf("probe: %v", err)
	}
	if got := set.state("wh-1"); got != "closed" {
		t.Errorf("state = %q, want closed", got)
	}
}

func TestBreakerSetReusesPerEndpoint(t *testing.T) {
	set := newBreakerSet(BreakerConfig{})
	if set.get("a") != set.get("a") {
		t.Error("expected same breaker for same endpoint")
	}
	if set.get("a") == set.get("b") {
		t.Error("expected distinct breakers per endpoint")
	}
	if got := set.state("unknown"); got != "closed" {
		t.Errorf("state = %q", got)
	}
}
