package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vocadrill/vocadrill/internal/config"
	"github.com/vocadrill/vocadrill/internal/content"
	"github.com/vocadrill/vocadrill/internal/observe"
	"github.com/vocadrill/vocadrill/internal/quiz"
	"github.com/vocadrill/vocadrill/internal/speechio"
	"github.com/vocadrill/vocadrill/pkg/audio/cue"
	"github.com/vocadrill/vocadrill/pkg/speech/recognize"
)

// helloTimeout bounds how long a fresh connection may take to send its
// hello message.
const helloTimeout = 10 * time.Second

// handleDrill upgrades the connection and runs one drill session over it.
func (s *Server) handleDrill(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "drill aborted")

	ctx := r.Context()
	s.metrics.ActiveDrills.Add(ctx, 1)
	defer s.metrics.ActiveDrills.Add(ctx, -1)

	d, err := s.newDrillConn(ctx, conn)
	if err != nil {
		s.logger.Warn("drill setup failed", "err", err)
		return
	}
	defer d.session.Close()

	d.readLoop(ctx)
	conn.Close(websocket.StatusNormalClosure, "drill over")
}

// newDrillConn performs the hello handshake and wires the quiz engine to
// the connection's bridged speech ports.
func (s *Server) newDrillConn(ctx context.Context, conn *websocket.Conn) (*drillConn, error) {
	helloCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	var hello clientMessage
	if err := wsjson.Read(helloCtx, conn, &hello); err != nil {
		return nil, err
	}
	if hello.Type != msgHello {
		return nil, errors.New("server: first message must be hello")
	}

	d := &drillConn{
		conn:    conn,
		ctx:     ctx,
		metrics: s.metrics,
		logger:  s.logger.With("chapter", hello.ChapterID),
	}

	vocab, err := s.store.Vocabulary(ctx, hello.ChapterID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			_ = d.send(errorMessage{Type: "error", Message: "unknown chapter: " + hello.ChapterID})
		}
		s.metrics.RecordProviderError(ctx, "content", "vocabulary")
		return nil, err
	}
	d.items = content.Items(vocab)
	d.targetLang = hello.TargetLang
	d.nativeLang = hello.NativeLang

	d.bridge = newSpeechBridge(d.send, helloVoices(hello.Voices))

	// Recognition: prefer the browser's engine; fall back to a
	// server-side provider fed by the client's binary audio frames. With
	// neither, the input port stays nil and the drill runs hint-only.
	var rec recognize.Provider
	switch {
	case hello.RecognitionAvailable:
		d.browserRec = newBridgeRecognizer(d.send)
		rec = d.browserRec
	case s.rec != nil:
		d.serverRec = newTappedProvider(s.rec)
		rec = d.serverRec
	}

	output := speechio.NewOutput(d.bridge, s.prompts, d.bridge,
		outputOptions(s.quizCfg, d.logger)...)
	d.input = speechio.NewInput(rec, s.matcher, d,
		inputOptions(s.quizCfg, d.logger)...)

	d.session = quiz.NewSession(output, d.input, sessionOptions(s.quizCfg, d)...)
	return d, nil
}

// outputOptions maps the quiz tuning block onto speech-output options.
func outputOptions(cfg config.QuizConfig, logger *slog.Logger) []speechio.OutputOption {
	opts := []speechio.OutputOption{speechio.WithOutputLogger(logger)}
	if cfg.Rate > 0 {
		opts = append(opts, speechio.WithRate(cfg.Rate))
	}
	if cfg.FallbackLocale != "" {
		opts = append(opts, speechio.WithFallbackLocale(cfg.FallbackLocale))
	}
	return opts
}

// inputOptions maps the quiz tuning block onto speech-input options.
func inputOptions(cfg config.QuizConfig, logger *slog.Logger) []speechio.InputOption {
	opts := []speechio.InputOption{speechio.WithInputLogger(logger)}
	if cfg.MaxAlternatives > 0 {
		opts = append(opts, speechio.WithMaxAlternatives(cfg.MaxAlternatives))
	}
	if cfg.FallbackLocale != "" {
		opts = append(opts, speechio.WithRecognitionFallbackLocale(cfg.FallbackLocale))
	}
	return opts
}

// sessionOptions maps the quiz tuning block onto session options.
func sessionOptions(cfg config.QuizConfig, d *drillConn) []quiz.SessionOption {
	opts := []quiz.SessionOption{
		quiz.WithNotify(d.pushState),
		quiz.WithCelebrator(d),
		quiz.WithLogger(d.logger),
	}
	if cfg.PromptTimeoutMs > 0 {
		opts = append(opts, quiz.WithPromptTimeout(time.Duration(cfg.PromptTimeoutMs)*time.Millisecond))
	}
	if cfg.SuccessWindowMs > 0 {
		opts = append(opts, quiz.WithSuccessWindow(time.Duration(cfg.SuccessWindowMs)*time.Millisecond))
	}
	return opts
}

// Compile-time assertions for the cue and celebration surfaces.
var _ cue.Player = (*drillConn)(nil)
var _ quiz.Celebrator = (*drillConn)(nil)

// drillConn is one live drill connection: the websocket, the bridged
// speech ports, and the quiz session driving them.
type drillConn struct {
	conn *websocket.Conn
	ctx  context.Context

	bridge     *speechBridge
	browserRec *bridgeRecognizer
	serverRec  *tappedProvider
	input      *speechio.Input
	session    *quiz.Session

	metrics *observe.Metrics
	logger  *slog.Logger

	items      []quiz.Item
	targetLang string
	nativeLang string

	writeMu sync.Mutex

	stateMu     sync.Mutex
	lastPhase   quiz.Phase
	summarySent bool
}

// send serializes one protocol message onto the websocket.
func (d *drillConn) send(v any) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return wsjson.Write(d.ctx, d.conn, v)
}

// readLoop dispatches client messages until the connection drops or the
// client says close. Binary frames carry PCM audio for server-side
// recognition.
func (d *drillConn) readLoop(ctx context.Context) {
	for {
		typ, data, err := d.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) == -1 {
				d.logger.Debug("drill read ended", "err", err)
			}
			return
		}

		if typ == websocket.MessageBinary {
			if d.serverRec != nil {
				d.serverRec.SendAudio(data)
			}
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			d.logger.Debug("bad drill message", "err", err)
			continue
		}
		if !d.handle(&msg) {
			return
		}
	}
}

// handle processes one client message. Returns false when the drill is
// over and the read loop should exit.
func (d *drillConn) handle(msg *clientMessage) bool {
	switch msg.Type {
	case msgStart:
		if err := d.session.Start(d.items, d.targetLang, d.nativeLang); err != nil {
			d.logger.Warn("drill start failed", "err", err)
			_ = d.send(errorMessage{Type: "error", Message: err.Error()})
		}

	case msgSpeechEvent:
		d.bridge.dispatch(msg.UtteranceID, msg.Event, msg.Message)

	case msgRecognitionResult:
		if d.browserRec != nil {
			d.browserRec.deliver(resultFromWire(msg))
		}

	case msgRecognitionEnd:
		if d.browserRec != nil {
			d.browserRec.ended()
		}

	case msgListen:
		d.retryListening()

	case msgDontKnow:
		d.session.DontKnow()

	case msgRestart:
		d.session.Restart()

	case msgClose:
		return false

	default:
		d.logger.Debug("unknown drill message", "type", msg.Type)
	}
	return true
}

// retryListening re-arms the microphone for the current item. A missed
// answer aborts the recognition session, so without this the learner's only
// path forward after one wrong transcript would be giving up. Ignored
// outside the phases that wait on the learner.
func (d *drillConn) retryListening() {
	switch d.session.Snapshot().Phase {
	case quiz.PhaseAwaitingAnswer, quiz.PhaseHintShown:
		d.input.StartListening()
	}
}

// resultFromWire converts a recognition_result message.
func resultFromWire(msg *clientMessage) recognize.Result {
	alts := make([]recognize.Alternative, len(msg.Alternatives))
	for i, a := range msg.Alternatives {
		alts[i] = recognize.Alternative{Transcript: a.Transcript, Confidence: a.Confidence}
	}
	return recognize.Result{Alternatives: alts, Final: msg.Final}
}

// pushState forwards a session snapshot to the client and records the
// per-transition metrics. The completion summary is sent exactly once per
// finished run; a restart rearms it.
func (d *drillConn) pushState(snap quiz.Snapshot) {
	completed := d.recordTransition(snap)
	if err := d.send(stateFromSnapshot(snap)); err != nil {
		return
	}
	if !completed {
		return
	}
	if sum, ok := d.session.Summary(); ok {
		_ = d.send(summaryMessage{
			Type:        "summary",
			Score:       sum.Score,
			MaxScore:    sum.MaxScore,
			Percent:     sum.Percent,
			MissedCount: sum.MissedCount,
		})
	}
}

// recordTransition updates drill metrics on phase changes. Reports whether
// this snapshot is a fresh completion.
func (d *drillConn) recordTransition(snap quiz.Snapshot) bool {
	d.stateMu.Lock()
	prev := d.lastPhase
	d.lastPhase = snap.Phase
	completed := snap.Phase == quiz.PhaseCompleted && !d.summarySent
	d.summarySent = snap.Phase == quiz.PhaseCompleted
	d.stateMu.Unlock()

	if snap.Phase == prev {
		return completed
	}
	switch snap.Phase {
	case quiz.PhaseItemSuccess:
		d.metrics.RecordMatchAttempt(d.ctx, true)
	case quiz.PhaseHintShown:
		d.metrics.RecordItemMissed(d.ctx)
	case quiz.PhaseCompleted:
		if completed {
			d.metrics.RecordDrillCompleted(d.ctx)
		}
	}
	return completed
}

// Success implements [cue.Player] by delegating the chime to the client.
func (d *drillConn) Success() {
	_ = d.send(cueMessage{Type: "cue", Kind: "success"})
}

// Failure implements [cue.Player].
func (d *drillConn) Failure() {
	_ = d.send(cueMessage{Type: "cue", Kind: "failure"})
}

// Celebrate implements [cue.Player] and [quiz.Celebrator].
func (d *drillConn) Celebrate(percent int) {
	_ = d.send(cueMessage{Type: "cue", Kind: "celebrate", Percent: percent})
}
