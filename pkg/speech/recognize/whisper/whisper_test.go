package whisper_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vocadrill/vocadrill/pkg/speech/recognize"
	"github.com/vocadrill/vocadrill/pkg/speech/recognize/whisper"
)

// ---- helpers ----------------------------------------------------------------

// newMockServer creates a test server that responds to POST /inference with
// a JSON body containing the provided responseText. It records the language
// form field of the last request in *lastLang and increments *callCount on
// every matched request.
func newMockServer(t *testing.T, responseText string, callCount *atomic.Int32, lastLang *atomic.Value) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if callCount != nil {
			callCount.Add(1)
		}
		if lastLang != nil {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				lastLang.Store(r.FormValue("language"))
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
}

// makeSpeechPCM generates a sine-wave PCM buffer at 440 Hz whose RMS is well
// above the silence threshold. The buffer contains `samples` 16-bit
// little-endian signed samples.
func makeSpeechPCM(samples int) []byte {
	const amplitude = 10_000.0 // RMS ≈ 7071, well above 300
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

// makeSilencePCM generates a zero-valued PCM buffer (RMS = 0).
func makeSilencePCM(samples int) []byte {
	return make([]byte, samples*2)
}

// mustStart is a test helper that calls Start and fails the test on error.
func mustStart(t *testing.T, p *whisper.Provider, cfg recognize.Config) recognize.SessionHandle {
	t.Helper()
	h, err := p.Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return h
}

// ---- provider construction --------------------------------------------------

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNew_WithOptions_DoesNotError(t *testing.T) {
	p, err := whisper.New("http://localhost:8080",
		whisper.WithModel("small"),
		whisper.WithSampleRate(16000),
		whisper.WithSilenceThresholdMs(300),
		whisper.WithMaxBufferDurationMs(5000),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil Provider")
	}
}

func TestPing_ReachableServer_ReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// whisper-server answers unknown paths with an error status; that
		// still proves reachability.
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestPing_UnreachableServer_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Ping(context.Background()); err == nil {
		t.Fatal("expected error for unreachable server, got nil")
	}
}

// ---- session creation -------------------------------------------------------

func TestStart_CancelledContext_ReturnsError(t *testing.T) {
	srv := newMockServer(t, "", nil, nil)
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled

	_, err := p.Start(ctx, recognize.Config{Locale: "en-US"})
	if err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}

func TestStart_LocaleReducedToLanguage(t *testing.T) {
	var lang atomic.Value
	srv := newMockServer(t, "ahoj", nil, &lang)
	defer srv.Close()

	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(100),
		whisper.WithSampleRate(16000),
	)
	h := mustStart(t, p, recognize.Config{Locale: "sk-SK"})
	defer h.Close()

	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))

	select {
	case <-h.Results():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	if got := lang.Load(); got != "sk" {
		t.Errorf("language field = %v, want sk", got)
	}
}

// ---- silence detection / buffering ------------------------------------------

func TestSilenceAloneDoesNotTriggerInference(t *testing.T) {
	var calls atomic.Int32
	srv := newMockServer(t, "unexpected", &calls, nil)
	defer srv.Close()

	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(50),
		whisper.WithSampleRate(16000),
	)
	h := mustStart(t, p, recognize.Config{})

	// 1 second of silence (16000 samples × 2 bytes).
	_ = h.SendAudio(makeSilencePCM(16000))

	// Give the processing goroutine time to act (it shouldn't).
	time.Sleep(150 * time.Millisecond)
	h.Close()

	if n := calls.Load(); n != 0 {
		t.Errorf("inference called %d time(s) for silence-only audio; want 0", n)
	}
}

func TestSpeechFollowedBySilenceTriggersInference(t *testing.T) {
	const wantText = "slon"
	srv := newMockServer(t, wantText, nil, nil)
	defer srv.Close()

	// Use a short silence threshold so the test is fast.
	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(100),
		whisper.WithSampleRate(16000),
	)
	h := mustStart(t, p, recognize.Config{})
	defer h.Close()

	// 100 ms of speech (1600 samples at 16 kHz).
	if err := h.SendAudio(makeSpeechPCM(1600)); err != nil {
		t.Fatalf("SendAudio (speech): %v", err)
	}

	// 100 ms of silence — meets the threshold and triggers a flush.
	if err := h.SendAudio(makeSilencePCM(1600)); err != nil {
		t.Fatalf("SendAudio (silence): %v", err)
	}

	select {
	case res := <-h.Results():
		if len(res.Alternatives) != 1 {
			t.Fatalf("got %d alternatives, want 1", len(res.Alternatives))
		}
		if got := res.Alternatives[0].Transcript; got != wantText {
			t.Errorf("transcript = %q; want %q", got, wantText)
		}
		if !res.Final {
			t.Error("whisper results should always be final")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestMaxBufferExceededForcesFlush(t *testing.T) {
	const wantText = "korytnačka"
	srv := newMockServer(t, wantText, nil, nil)
	defer srv.Close()

	// maxBuffer = 200 ms; silence threshold = 10 s (will never be reached).
	// The force-flush should kick in once we send > 200 ms of speech.
	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(10_000),
		whisper.WithMaxBufferDurationMs(200),
		whisper.WithSampleRate(16000),
	)
	h := mustStart(t, p, recognize.Config{})
	defer h.Close()

	// Send 210 ms of continuous speech (3360 samples at 16 kHz).
	if err := h.SendAudio(makeSpeechPCM(3360)); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case res := <-h.Results():
		if got := res.Alternatives[0].Transcript; got != wantText {
			t.Errorf("transcript = %q; want %q", got, wantText)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for forced-flush result")
	}
}

// ---- session teardown -------------------------------------------------------

func TestClose_ClosesResultsChannel(t *testing.T) {
	srv := newMockServer(t, "", nil, nil)
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	h := mustStart(t, p, recognize.Config{})
	h.Close()

	select {
	case _, open := <-h.Results():
		if open {
			t.Error("Results channel should be closed after Close()")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Results channel to close")
	}
}

func TestClose_Idempotent(t *testing.T) {
	srv := newMockServer(t, "", nil, nil)
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	h := mustStart(t, p, recognize.Config{})

	if err := h.Close(); err != nil {
		t.Fatalf("first Close() returned error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}
}

func TestClose_FlushesRemainingBuffer(t *testing.T) {
	const wantText = "žirafa"
	var calls atomic.Int32
	srv := newMockServer(t, wantText, &calls, nil)
	defer srv.Close()

	// Very long silence threshold — the flush only happens on Close().
	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(60_000),
		whisper.WithSampleRate(16000),
	)
	h := mustStart(t, p, recognize.Config{})

	_ = h.SendAudio(makeSpeechPCM(1600))
	// Wait briefly to ensure the chunk is processed before Close().
	time.Sleep(50 * time.Millisecond)

	h.Close()

	if n := calls.Load(); n != 1 {
		t.Errorf("inference called %d time(s) on close-flush; want 1", n)
	}
}

func TestAbort_DiscardsBufferedAudio(t *testing.T) {
	var calls atomic.Int32
	srv := newMockServer(t, "stale", &calls, nil)
	defer srv.Close()

	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(60_000),
		whisper.WithSampleRate(16000),
	)
	h := mustStart(t, p, recognize.Config{})

	_ = h.SendAudio(makeSpeechPCM(1600))
	time.Sleep(50 * time.Millisecond)

	h.Abort()

	if n := calls.Load(); n != 0 {
		t.Errorf("inference called %d time(s) after Abort; want 0 (buffer discarded)", n)
	}
	if _, open := <-h.Results(); open {
		t.Error("Results channel should be closed after Abort()")
	}
}

func TestSendAudio_AfterClose_ReturnsError(t *testing.T) {
	srv := newMockServer(t, "", nil, nil)
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	h := mustStart(t, p, recognize.Config{})
	h.Close()

	// Small sleep to let the processLoop goroutine exit cleanly.
	time.Sleep(50 * time.Millisecond)

	if err := h.SendAudio(makeSpeechPCM(100)); err == nil {
		t.Fatal("SendAudio after Close() should return an error")
	}
}

// ---- error handling ---------------------------------------------------------

func TestInference_ServerError_DoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(100),
		whisper.WithSampleRate(16000),
	)
	h := mustStart(t, p, recognize.Config{})
	defer h.Close()

	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))

	// No result should arrive (server errored), but the session must not
	// panic.
	select {
	case res, open := <-h.Results():
		if open {
			t.Errorf("expected no results on server error, got %v", res)
		}
	case <-time.After(3 * time.Second):
		// No message and no close — the session is still running, fine.
	}
}

func TestInference_EmptyResponse_ProducesNoResult(t *testing.T) {
	srv := newMockServer(t, "", nil, nil) // server returns empty text
	defer srv.Close()

	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(100),
		whisper.WithSampleRate(16000),
	)
	h := mustStart(t, p, recognize.Config{})
	defer h.Close()

	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))

	select {
	case res := <-h.Results():
		if len(res.Alternatives) == 0 || res.Alternatives[0].Transcript == "" {
			t.Error("received empty result; expected no emission")
		}
	case <-time.After(2 * time.Second):
		// Nothing received — correct behaviour for an empty response.
	}
}

// ---- concurrent use ---------------------------------------------------------

func TestConcurrentSendAudio_DoesNotRace(t *testing.T) {
	srv := newMockServer(t, "ahoj", nil, nil)
	defer srv.Close()

	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(100),
		whisper.WithSampleRate(16000),
	)
	h := mustStart(t, p, recognize.Config{})
	defer h.Close()

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				_ = h.SendAudio(makeSpeechPCM(160))
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
}
