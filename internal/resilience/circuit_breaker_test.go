package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpload = errors.New("upload failed")

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, transitions *[]string) (*Breaker, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker(Config{
		Name:      "mirror",
		Threshold: threshold,
		Cooldown:  time.Minute,
		OnStateChange: func(name string, from, to State) {
			if transitions != nil {
				*transitions = append(*transitions, from.String()+"->"+to.String())
			}
		},
	})
	b.now = c.now
	return b, c
}

func fail(ctx context.Context) error { return errUpload }
func ok(ctx context.Context) error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Do(ctx, fail), errUpload)
	}
	assert.Equal(t, StateClosed, b.State())

	assert.ErrorIs(t, b.Do(ctx, fail), errUpload)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(ctx, func(ctx context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(2, nil)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	require.NoError(t, b.Do(ctx, ok))
	_ = b.Do(ctx, fail)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name  string
		probe func(context.Context) error
		want  State
	}{
		{"probe succeeds", ok, StateClosed},
		{"probe fails", fail, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var transitions []string
			b, c := newTestBreaker(1, &transitions)
			ctx := context.Background()

			_ = b.Do(ctx, fail)
			c.advance(time.Minute)
			assert.Equal(t, StateHalfOpen, b.State())

			_ = b.Do(ctx, tt.probe)
			assert.Equal(t, tt.want, b.State())
			assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->" + tt.want.String()}, transitions)
		})
	}
}

func TestBreaker_SingleProbeInHalfOpen(t *testing.T) {
	b, c := newTestBreaker(1, nil)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	c.advance(2 * time.Minute)

	release := make(chan struct{})
	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		done <- b.Do(ctx, func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, b.Do(ctx, ok), ErrCircuitOpen)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ContextErrorsDoNotTrip(t *testing.T) {
	b, _ := newTestBreaker(1, nil)

	err := b.Do(context.Background(), func(ctx context.Context) error { return context.DeadlineExceeded })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateClosed, b.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Do(ctx, fail), context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("s3")
	assert.Equal(t, 5, cfg.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Cooldown)
	assert.Equal(t, "unknown", State(9).String())
}
