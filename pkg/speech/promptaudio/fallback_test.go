package promptaudio_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio"
	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio/mock"
)

func TestFallbackUsesSecondBackend(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{RenderError: errors.New("quota exceeded")}
	secondary := &mock.Provider{RenderResult: promptaudio.Clip{
		Data:     []byte("mp3"),
		MIMEType: "audio/mpeg",
	}}

	f := promptaudio.NewFallback("primary", primary, promptaudio.FallbackConfig{})
	f.Add("secondary", secondary)

	clip, err := f.Render(context.Background(), "slon", "sk")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if string(clip.Data) != "mp3" {
		t.Errorf("clip data = %q, want from secondary", clip.Data)
	}
	if len(primary.RenderCalls) != 1 || len(secondary.RenderCalls) != 1 {
		t.Errorf("calls = %d/%d, want 1/1", len(primary.RenderCalls), len(secondary.RenderCalls))
	}
}

func TestFallbackAllBackendsFailed(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{RenderError: errors.New("boom")}

	f := promptaudio.NewFallback("primary", primary, promptaudio.FallbackConfig{})

	_, err := f.Render(context.Background(), "pes", "sk")
	if !errors.Is(err, promptaudio.ErrAllBackendsFailed) {
		t.Fatalf("err = %v, want ErrAllBackendsFailed", err)
	}
}

func TestFallbackBreakerSkipsFailingBackend(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{RenderError: errors.New("down")}
	secondary := &mock.Provider{RenderResult: promptaudio.Clip{Data: []byte("x")}}

	f := promptaudio.NewFallback("primary", primary, promptaudio.FallbackConfig{
		MaxFailures: 2,
		ResetAfter:  time.Hour,
	})
	f.Add("secondary", secondary)

	for range 4 {
		if _, err := f.Render(context.Background(), "pes", "sk"); err != nil {
			t.Fatalf("Render: %v", err)
		}
	}

	// After two consecutive failures the primary's breaker opens and the
	// remaining renders go straight to the secondary.
	if got := len(primary.RenderCalls); got != 2 {
		t.Errorf("primary calls = %d, want 2", got)
	}
	if got := len(secondary.RenderCalls); got != 4 {
		t.Errorf("secondary calls = %d, want 4", got)
	}
}

func TestFallbackBreakerRecovers(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{RenderError: errors.New("down")}
	secondary := &mock.Provider{RenderResult: promptaudio.Clip{Data: []byte("x")}}

	f := promptaudio.NewFallback("primary", primary, promptaudio.FallbackConfig{
		MaxFailures: 1,
		ResetAfter:  10 * time.Millisecond,
	})
	f.Add("secondary", secondary)

	if _, err := f.Render(context.Background(), "pes", "sk"); err != nil {
		t.Fatalf("Render: %v", err)
	}

	// Breaker is open; wait out the reset timeout, heal the primary, and the
	// probe render should put it back in rotation.
	time.Sleep(20 * time.Millisecond)
	primary.RenderError = nil
	primary.RenderResult = promptaudio.Clip{Data: []byte("primary")}

	clip, err := f.Render(context.Background(), "pes", "sk")
	if err != nil {
		t.Fatalf("Render after recovery: %v", err)
	}
	if string(clip.Data) != "primary" {
		t.Errorf("clip data = %q, want probe to hit recovered primary", clip.Data)
	}
}

func TestFallbackCancelledContextAborts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &mock.Provider{RenderError: context.Canceled}
	secondary := &mock.Provider{}

	f := promptaudio.NewFallback("primary", primary, promptaudio.FallbackConfig{})
	f.Add("secondary", secondary)

	if _, err := f.Render(ctx, "pes", "sk"); err == nil {
		t.Fatal("want error from cancelled context")
	}
	if len(secondary.RenderCalls) != 0 {
		t.Errorf("secondary called %d times after cancellation, want 0", len(secondary.RenderCalls))
	}
}
