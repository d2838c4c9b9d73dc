// Package call implements the per-call session engine: a finite state
// machine that owns one duplex audio WebSocket and walks a collections
// script from greeting to transfer or goodbye.
//
// Each session is composed of three cooperating tasks connected by bounded
// channels:
//
//   - Ingress reads envelopes from the socket, decodes audio frames, and
//     segments them into utterances.
//   - Dialog owns the FSM; it consumes utterances and control events, calls
//     ASR/LLM/TTS, and publishes outbound audio.
//   - Egress paces outbound 20 ms frames at real time and writes them to the
//     socket.
//
// Stage transitions are strictly serial; no two state-changing events are
// processed concurrently for the same call. Sessions share nothing with each
// other except the injected providers and stores.
package call

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaanilabs/vaani/internal/buffer"
	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/intent"
	"github.com/vaanilabs/vaani/internal/langid"
	"github.com/vaanilabs/vaani/internal/observe"
	"github.com/vaanilabs/vaani/internal/prompts"
	"github.com/vaanilabs/vaani/pkg/audio"
	"github.com/vaanilabs/vaani/pkg/callrecord"
	"github.com/vaanilabs/vaani/pkg/provider/asr"
	"github.com/vaanilabs/vaani/pkg/provider/transfer"
	"github.com/vaanilabs/vaani/pkg/provider/tts"
	"github.com/vaanilabs/vaani/pkg/session"
	"github.com/vaanilabs/vaani/pkg/telephony"
)

// Stage is a state of the call session FSM. The string values are what land
// in call records, so they are stable identifiers.
type Stage string

const (
	StageAwaitStart             Stage = "AWAIT_START"
	StageResolveContext         Stage = "RESOLVE_CONTEXT"
	StageSpeakingGreeting       Stage = "SPEAKING_GREETING"
	StageWaitingConfirmation    Stage = "WAITING_CONFIRMATION"
	StageSpeakingRegreeting     Stage = "SPEAKING_REGREETING"
	StageSpeakingEMI1           Stage = "SPEAKING_EMI_1"
	StageSpeakingEMI2           Stage = "SPEAKING_EMI_2"
	StageSpeakingAgentQuestion  Stage = "SPEAKING_AGENT_QUESTION"
	StageWaitingAgentResponse   Stage = "WAITING_AGENT_RESPONSE"
	StageTransferring           Stage = "TRANSFERRING"
	StageSpeakingDeclineGoodbye Stage = "SPEAKING_DECLINE_GOODBYE"
	StageEnd                    Stage = "END"
)

// errHardCap is the cancellation cause installed by the call-duration cap.
var errHardCap = errors.New("call: maximum duration reached")

// Conn is the minimal duplex message transport a session needs. The server
// adapts a live WebSocket to this; tests substitute an in-memory pipe.
type Conn interface {
	// Read returns the next complete inbound message.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one complete outbound message.
	Write(ctx context.Context, data []byte) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// PhoneDirectory is the secondary customer lookup used when the session
// store has no snapshot for the call id. Satisfied by [session.PhoneLookup].
type PhoneDirectory interface {
	ByPhone(ctx context.Context, phone string) (session.Customer, error)
}

// Config carries the resolved tunables for one session. All durations are
// plain values so tests can compress time.
type Config struct {
	Buffer buffer.Config

	// ConfirmationWait and AgentWait bound how long the caller may stay
	// silent in the two listening stages.
	ConfirmationWait time.Duration
	AgentWait        time.Duration

	// RepeatMax caps consecutive re-prompts per listening stage.
	RepeatMax int

	// OnRepeatedUnclear picks transfer or goodbye when the agent question
	// exhausts its retries.
	OnRepeatedUnclear config.RepeatedUnclearPolicy

	// MaxDuration is the hard call cap.
	MaxDuration time.Duration

	// ContextGrace and ContextPoll govern the session-store wait.
	ContextGrace time.Duration
	ContextPoll  time.Duration

	// ProcessingTail is the minimum quiet period after playback; the
	// effective tail is max(ProcessingTail, audio/2).
	ProcessingTail time.Duration

	// FrameInterval is the egress pacing per 20 ms frame. Zero disables
	// pacing (tests).
	FrameInterval time.Duration

	// TransferTimeout bounds one bridge request.
	TransferTimeout time.Duration

	// AgentNumber is the E.164 number calls are bridged to.
	AgentNumber string

	// DefaultLanguage and StateMap drive initial language resolution.
	DefaultLanguage langid.Language
	StateMap        map[string]langid.Language

	// SessionTTL is only used to bound the store Delete after consumption.
	SessionTTL time.Duration
}

// FromConfig derives a session Config from the application configuration.
func FromConfig(c *config.Config) Config {
	return Config{
		Buffer: buffer.Config{
			MinUtterance: time.Duration(c.Buffer.MinUtteranceMS) * time.Millisecond,
			QuietWindow:  time.Duration(c.Buffer.QuietWindowMS) * time.Millisecond,
			HardCap:      time.Duration(c.Buffer.HardCapMS) * time.Millisecond,
		},
		ConfirmationWait:  time.Duration(c.Wait.ConfirmationS) * time.Second,
		AgentWait:         time.Duration(c.Wait.AgentResponseS) * time.Second,
		RepeatMax:         c.Wait.RepeatMax,
		OnRepeatedUnclear: c.Transfer.OnRepeatedUnclear,
		MaxDuration:       time.Duration(c.Call.MaxDurationS) * time.Second,
		ContextGrace:      time.Duration(c.Call.ContextGraceS) * time.Second,
		ContextPoll:       time.Duration(c.Call.ContextPollMS) * time.Millisecond,
		ProcessingTail:    time.Duration(c.TTS.ProcessingTailMS) * time.Millisecond,
		FrameInterval:     time.Duration(c.TTS.ChunkMS) * time.Millisecond,
		TransferTimeout:   time.Duration(c.Transfer.TimeoutS) * time.Second,
		AgentNumber:       c.Transfer.AgentNumber,
		DefaultLanguage:   langid.Language(c.Language.Default),
		StateMap:          c.Language.ResolvedStateMap(),
		SessionTTL:        c.SessionStore.TTL,
	}
}

// Deps are the injected collaborators for one session. Phones may be nil,
// which disables the phone fallback. Metrics and Log fall back to package
// defaults when nil.
type Deps struct {
	ASR      asr.Provider
	TTS      tts.Provider
	Intent   *intent.Classifier
	Transfer transfer.Client
	Store    session.Store
	Phones   PhoneDirectory
	Recorder callrecord.Recorder
	Metrics  *observe.Metrics
	Log      *slog.Logger
}

// ─── Session ───

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evClosed
)

// event is a control message from the ingress task to the dialog loop.
type event struct {
	kind  eventKind
	start *telephony.Start
	err   error
}

// Session drives one live call from socket accept to terminal outcome.
// Create with [NewSession] and drive with [Session.Run]; a Session is
// single-use.
type Session struct {
	cfg  Config
	deps Deps
	conn Conn

	cancel context.CancelFunc

	ctrl chan event
	utts chan []byte
	out  chan outMsg

	buf *buffer.Buffer
	enc *telephony.Encoder

	// Dialog-task state. Only the dialog goroutine touches these.
	callID          string
	customer        session.Customer
	initial         langid.Language
	current         langid.Language
	asrLang         langid.Language
	regreeted       bool
	scriptDelivered bool
	created         bool
	trail           []Stage
	lastIntent      intent.Intent

	// log is shared by the ingress and egress tasks; dlog is the dialog
	// task's own handle, which grows a call_id attribute once known. Keeping
	// them separate avoids cross-goroutine writes.
	log  *slog.Logger
	dlog *slog.Logger
	met  *observe.Metrics
}

// NewSession wires a session around an accepted connection.
func NewSession(conn Conn, cfg Config, deps Deps) *Session {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	met := deps.Metrics
	if met == nil {
		met = observe.DefaultMetrics()
	}
	return &Session{
		cfg:  cfg,
		deps: deps,
		conn: conn,
		ctrl: make(chan event, 8),
		utts: make(chan []byte, 8),
		out:  make(chan outMsg, 64),
		buf:  buffer.New(cfg.Buffer),
		log:  log,
		dlog: log,
		met:  met,
	}
}

// Run executes the session to completion. It returns nil for every orderly
// ending, including error outcomes that were recorded and spoken; a non-nil
// error means the session could not even run its terminal path.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeoutCause(ctx, s.cfg.MaxDuration, errHardCap)
	s.cancel = cancel
	defer cancel()
	defer s.conn.Close()

	s.met.ActiveCalls.Add(ctx, 1)
	defer s.met.ActiveCalls.Add(context.WithoutCancel(ctx), -1)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.ingress(gctx) })
	g.Go(func() error { return s.egress(gctx) })
	g.Go(func() error { return s.dialog(gctx) })

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// ─── Dialog loop ───

// dialog walks the FSM. It always ends the call through finish, which writes
// the terminal record, so the returned error only propagates task teardown.
func (s *Session) dialog(ctx context.Context) error {
	// The other tasks stop when the dialog decides the call is over.
	defer s.cancel()

	s.setStage(ctx, StageAwaitStart)
	start, ok := s.awaitStart(ctx)
	if !ok {
		s.finish(ctx, callrecord.OutcomeFailed)
		return nil
	}
	s.callID = start.CallSid
	s.enc = telephony.NewEncoder(start.StreamSid)
	s.dlog = s.dlog.With(slog.String("call_id", s.callID))

	// The call span covers everything from the start envelope to the
	// terminal outcome; provider requests nest under it via ctx.
	ctx, span := observe.StartCallSpan(ctx, s.callID)
	defer span.End()

	s.setStage(ctx, StageResolveContext)
	cust, ok := s.resolveContext(ctx, start)
	if !ok {
		if ctx.Err() != nil && !s.hardCapped(ctx) {
			s.finish(ctx, callrecord.OutcomeFailed)
			return nil
		}
		s.dlog.Warn("no customer context after grace period",
			slog.String("kind", string(KindMissingContext)))
		s.finish(ctx, callrecord.OutcomeMissingContext)
		return nil
	}
	s.customer = cust
	s.initial = s.initialLanguage(cust)
	s.current = s.initial

	if err := s.deps.Recorder.Create(ctx, callrecord.Record{
		CallID:          s.callID,
		Phone:           cust.Phone,
		LoanID:          cust.LoanID,
		InitialLanguage: string(s.initial),
		StartedAt:       time.Now(),
	}); err != nil {
		s.dlog.Warn("call record create failed", slog.String("error", err.Error()))
	} else {
		s.created = true
	}

	s.setStage(ctx, StageSpeakingGreeting)
	s.speak(ctx, prompts.Greeting, s.greetingParams())

	outcome := s.confirmationLoop(ctx)
	s.finish(ctx, outcome)
	return nil
}

// confirmationLoop runs WAITING_CONFIRMATION and everything after it,
// returning the terminal outcome.
func (s *Session) confirmationLoop(ctx context.Context) callrecord.Outcome {
	s.setStage(ctx, StageWaitingConfirmation)
	attempts := 0
	for {
		transcript, ev, err := s.listen(ctx, s.cfg.ConfirmationWait)
		if err != nil {
			return s.interruptOutcome(ctx)
		}
		if ev != nil {
			return s.controlOutcome(ev)
		}

		if transcript == "" {
			attempts++
			if attempts > s.cfg.RepeatMax {
				s.sayGoodbye(ctx)
				return callrecord.OutcomeDeclined
			}
			s.speak(ctx, prompts.Greeting, s.greetingParams())
			continue
		}

		// Language first: a switch re-greets before any intent is read.
		detected := s.detectLanguage(transcript)
		if !s.regreeted && detected != s.current && detected != s.initial && langid.Supported(detected) {
			s.regreeted = true
			s.current = detected
			attempts = 0
			s.clearPlayback(ctx)
			s.setStage(ctx, StageSpeakingRegreeting)
			s.speak(ctx, prompts.Greeting, s.greetingParams())
			s.setStage(ctx, StageWaitingConfirmation)
			continue
		}

		switch intent.Lexicon(transcript) {
		case intent.Affirmative:
			s.lastIntent = intent.Affirmative
			return s.deliverScript(ctx)
		case intent.Negative:
			s.lastIntent = intent.Negative
			s.sayGoodbye(ctx)
			return callrecord.OutcomeDeclined
		default:
			attempts++
			if attempts > s.cfg.RepeatMax {
				s.sayGoodbye(ctx)
				return callrecord.OutcomeDeclined
			}
			s.speak(ctx, prompts.Greeting, s.greetingParams())
		}
	}
}

// deliverScript plays both EMI parts and runs the agent question. A stop that
// arrives while a prompt is playing is consumed between prompts, so the
// in-flight playback finishes but nothing further is spoken, and the outcome
// reflects how far the script had actually got.
func (s *Session) deliverScript(ctx context.Context) callrecord.Outcome {
	s.setStage(ctx, StageSpeakingEMI1)
	s.speak(ctx, prompts.EMIPart1, map[string]string{
		"loan_id":  s.customer.LoanID,
		"amount":   s.customer.OutstandingAmount,
		"due_date": s.customer.DueDate,
	})
	if ev := s.pollCtrl(); ev != nil {
		return s.controlOutcome(ev)
	}

	s.setStage(ctx, StageSpeakingEMI2)
	s.speak(ctx, prompts.EMIPart2, nil)
	s.scriptDelivered = true
	if ev := s.pollCtrl(); ev != nil {
		return s.controlOutcome(ev)
	}

	s.setStage(ctx, StageSpeakingAgentQuestion)
	attempts := 0
	if err := s.speak(ctx, prompts.AgentConnect, nil); err != nil {
		// An unspeakable question reads as one unclear reply, spending a
		// retry rather than abandoning the stage outright.
		attempts++
		if attempts > s.cfg.RepeatMax {
			return s.repeatedUnclear(ctx)
		}
	}
	if ev := s.pollCtrl(); ev != nil {
		return s.controlOutcome(ev)
	}

	s.setStage(ctx, StageWaitingAgentResponse)
	for {
		transcript, ev, err := s.listen(ctx, s.cfg.AgentWait)
		if err != nil {
			return s.interruptOutcome(ctx)
		}
		if ev != nil {
			return s.controlOutcome(ev)
		}

		var verdict intent.Intent
		if transcript == "" {
			verdict = intent.Unclear
		} else {
			verdict = s.deps.Intent.Classify(ctx, transcript)
		}

		switch verdict {
		case intent.Affirmative:
			s.lastIntent = intent.Affirmative
			return s.transferCall(ctx)
		case intent.Negative:
			s.lastIntent = intent.Negative
			s.sayGoodbye(ctx)
			return callrecord.OutcomeDeclined
		default:
			attempts++
			if attempts > s.cfg.RepeatMax {
				return s.repeatedUnclear(ctx)
			}
			if err := s.speak(ctx, prompts.AgentConnect, nil); err != nil {
				attempts++
				if attempts > s.cfg.RepeatMax {
					return s.repeatedUnclear(ctx)
				}
			}
		}
	}
}

// repeatedUnclear applies the configured policy once the agent question has
// exhausted its retries. An undecided caller is a lead, so the default
// bridges to the agent anyway.
func (s *Session) repeatedUnclear(ctx context.Context) callrecord.Outcome {
	s.lastIntent = intent.Unclear
	if s.cfg.OnRepeatedUnclear == config.PolicyGoodbye {
		s.sayGoodbye(ctx)
		return callrecord.OutcomeDeclined
	}
	return s.transferCall(ctx)
}

// transferCall plays the hold notice and bridges to the agent.
func (s *Session) transferCall(ctx context.Context) callrecord.Outcome {
	s.setStage(ctx, StageTransferring)
	s.speak(ctx, prompts.TransferNotice, nil)

	tctx, cancel := context.WithTimeout(ctx, s.cfg.TransferTimeout)
	defer cancel()
	begin := time.Now()
	out, err := s.deps.Transfer.Transfer(tctx, s.callID, s.cfg.AgentNumber)
	s.met.TransferDuration.Record(ctx, time.Since(begin).Seconds())
	if err != nil || !out.Success {
		s.met.RecordProviderError(ctx, s.deps.Transfer.Name(), "transfer")
		s.dlog.Warn("agent transfer failed",
			slog.String("kind", string(KindTransferFailure)),
			slog.Any("error", err))
		s.sayGoodbye(ctx)
		return callrecord.OutcomeFailed
	}
	s.met.RecordProviderRequest(ctx, s.deps.Transfer.Name(), "transfer", "ok")
	return callrecord.OutcomeTransferred
}

// sayGoodbye plays the decline goodbye. Failures are already logged by
// speak; there is nothing further to recover.
func (s *Session) sayGoodbye(ctx context.Context) {
	s.setStage(ctx, StageSpeakingDeclineGoodbye)
	s.speak(ctx, prompts.GoodbyeDecline, nil)
}

// ─── Stage bookkeeping ───

// setStage records a stage transition in the trail, the call record, and the
// log. Recording starts once the initial record exists.
func (s *Session) setStage(ctx context.Context, st Stage) {
	s.trail = append(s.trail, st)
	s.dlog.Info("stage", slog.String("stage", string(st)), slog.String("language", string(s.current)))
	if s.created {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.deps.Recorder.UpdateStage(rctx, s.callID, string(st), string(s.current)); err != nil {
			s.dlog.Warn("stage update failed", slog.String("error", err.Error()))
		}
	}
}

// summary renders the compact stage trail written into the final record.
func (s *Session) summary() string {
	parts := make([]string, len(s.trail))
	for i, st := range s.trail {
		parts[i] = string(st)
	}
	out := strings.Join(parts, ">")
	if s.lastIntent != "" {
		out += ";intent=" + string(s.lastIntent)
	}
	return out
}

// finish runs the terminal path: END stage, final record, outcome metric.
// It must succeed even when ctx is already cancelled.
func (s *Session) finish(ctx context.Context, outcome callrecord.Outcome) {
	s.setStage(ctx, StageEnd)
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if !s.created && s.callID != "" {
		if err := s.deps.Recorder.Create(fctx, callrecord.Record{
			CallID:    s.callID,
			StartedAt: time.Now(),
		}); err == nil {
			s.created = true
		}
	}
	if s.created {
		if err := s.deps.Recorder.Finalize(fctx, s.callID, outcome, s.summary(), time.Now()); err != nil {
			s.dlog.Warn("finalize failed", slog.String("error", err.Error()))
		}
	}
	s.met.RecordCallOutcome(fctx, string(outcome))
	s.dlog.Info("call ended",
		slog.String("outcome", string(outcome)),
		slog.String("summary", s.summary()))
}

// interruptOutcome maps a context interruption during a listening stage to
// its terminal outcome.
func (s *Session) interruptOutcome(ctx context.Context) callrecord.Outcome {
	if s.hardCapped(ctx) {
		s.dlog.Warn("call hit duration cap", slog.String("kind", string(KindTimeoutGlobal)))
		return callrecord.OutcomeTimeout
	}
	return callrecord.OutcomeFailed
}

// controlOutcome maps a control event consumed by the dialog loop. A stop is
// a hint: any in-flight playback already finished (playback is synchronous),
// so the call just ends with an outcome reflecting how far the script got
// when the event was consumed.
func (s *Session) controlOutcome(ev *event) callrecord.Outcome {
	switch ev.kind {
	case evStart:
		s.dlog.Error("duplicate start envelope", slog.String("kind", string(KindSessionProtocol)))
		return callrecord.OutcomeFailed
	case evStop:
		if s.scriptDelivered {
			return callrecord.OutcomeCompleted
		}
		return callrecord.OutcomeFailed
	default:
		return callrecord.OutcomeFailed
	}
}

func (s *Session) hardCapped(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errHardCap)
}

// ─── Context resolution ───

// awaitStart blocks until the provider's start envelope arrives.
func (s *Session) awaitStart(ctx context.Context) (*telephony.Start, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case ev := <-s.ctrl:
			switch ev.kind {
			case evStart:
				if ev.start == nil || ev.start.CallSid == "" {
					s.dlog.Error("start envelope without call id",
						slog.String("kind", string(KindSessionProtocol)))
					return nil, false
				}
				return ev.start, true
			case evStop, evClosed:
				return nil, false
			}
		}
	}
}

// resolveContext looks the customer up by call id, polling the session store
// for the grace period. The start envelope's custom parameters short-circuit
// the wait when the dialer inlined the snapshot; the phone directory is the
// last resort after the grace period expires.
func (s *Session) resolveContext(ctx context.Context, start *telephony.Start) (session.Customer, bool) {
	if cust, ok := customerFromParams(start.CustomParameters); ok {
		return cust, true
	}

	deadline := time.Now().Add(s.cfg.ContextGrace)
	for {
		cust, err := s.deps.Store.Get(ctx, s.callID)
		if err == nil {
			// The snapshot is a hand-off; consume it.
			if derr := s.deps.Store.Delete(ctx, s.callID); derr != nil {
				s.dlog.Warn("session store delete failed", slog.String("error", derr.Error()))
			}
			return cust, true
		}
		if !errors.Is(err, session.ErrNotFound) {
			s.dlog.Warn("session store lookup failed", slog.String("error", err.Error()))
		}
		if time.Now().After(deadline) {
			break
		}
		if err := sleepCtx(ctx, s.cfg.ContextPoll); err != nil {
			return session.Customer{}, false
		}
	}

	if s.deps.Phones != nil {
		if phone := start.CustomParameters["phone"]; phone != "" {
			cust, err := s.deps.Phones.ByPhone(ctx, phone)
			if err == nil {
				return cust, true
			}
			if !errors.Is(err, session.ErrNotFound) {
				s.dlog.Warn("phone fallback lookup failed", slog.String("error", err.Error()))
			}
		}
	}
	return session.Customer{}, false
}

// customerFromParams rebuilds a snapshot inlined in start.customParameters.
// The dialer either pipes the whole snapshot through one "snapshot" key or
// spreads it over individual keys. Name and loan id are the minimum for the
// script to make sense.
func customerFromParams(params map[string]string) (session.Customer, bool) {
	if len(params) == 0 {
		return session.Customer{}, false
	}
	if piped, ok := params["snapshot"]; ok {
		params = telephony.ParseCustomParameters(piped)
	}
	cust := session.Customer{
		Name:              params["name"],
		Phone:             params["phone"],
		State:             params["state"],
		LoanID:            params["loan_id"],
		OutstandingAmount: params["outstanding_amount"],
		DueDate:           params["due_date"],
		PreferredLanguage: params["preferred_language"],
	}
	if cust.OutstandingAmount == "" {
		cust.OutstandingAmount = params["amount"]
	}
	if cust.Name == "" || cust.LoanID == "" {
		return session.Customer{}, false
	}
	return cust, true
}

// initialLanguage prefers an explicit customer preference, then the state
// table, then the configured default.
func (s *Session) initialLanguage(cust session.Customer) langid.Language {
	if pref := langid.Language(cust.PreferredLanguage); pref != "" && langid.Supported(pref) {
		return pref
	}
	table := s.cfg.StateMap
	if table == nil {
		table = langid.DefaultStateMap
	}
	if lang, ok := table[strings.ToLower(strings.TrimSpace(cust.State))]; ok {
		return lang
	}
	if s.cfg.DefaultLanguage != "" {
		return s.cfg.DefaultLanguage
	}
	return langid.English
}

func (s *Session) greetingParams() map[string]string {
	return map[string]string{"name": s.customer.Name}
}

// detectLanguage picks the language of the latest transcript. The ASR
// adapter's detected language wins when it reported a supported one; lexical
// classification of the text is the fallback.
func (s *Session) detectLanguage(transcript string) langid.Language {
	if s.asrLang != "" && langid.Supported(s.asrLang) {
		return s.asrLang
	}
	return langid.Classify(transcript)
}

// ─── Listening ───

// listen waits up to wait for one utterance and transcribes it. It returns
// an empty transcript for silence, short audio, and ASR failures alike; the
// distinction only matters for logging. A non-nil event reports a control
// message instead.
func (s *Session) listen(ctx context.Context, wait time.Duration) (string, *event, error) {
	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return "", nil, ctx.Err()
	case ev := <-s.ctrl:
		return "", &ev, nil
	case <-t.C:
		return "", nil, nil
	case pcm := <-s.utts:
		return s.transcribe(ctx, pcm), nil, nil
	}
}

// pollCtrl returns a pending control event without blocking. The speaking
// stages use it between prompts so a stop received mid-playback is acted on
// before the next prompt starts.
func (s *Session) pollCtrl() *event {
	select {
	case ev := <-s.ctrl:
		return &ev
	default:
		return nil
	}
}

// transcribe runs ASR on one utterance. Every failure mode collapses to an
// empty transcript; the FSM alone decides what that means for the stage.
func (s *Session) transcribe(ctx context.Context, pcm []byte) string {
	begin := time.Now()
	res, err := s.deps.ASR.Transcribe(ctx, pcm, string(s.current))
	s.met.ASRDuration.Record(ctx, time.Since(begin).Seconds())
	s.asrLang = ""
	if err != nil {
		kind := KindASRTransient
		if errors.Is(err, asr.ErrRateLimited) {
			s.met.RecordUtterance(ctx, "rate_limited")
		} else {
			s.met.RecordProviderError(ctx, s.deps.ASR.Name(), "asr")
		}
		s.dlog.Warn("transcription failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		return ""
	}
	if res.Transcript == "" {
		s.met.RecordUtterance(ctx, "empty")
		return ""
	}
	s.asrLang = langid.Language(res.Language)
	s.met.RecordUtterance(ctx, "transcribed")
	s.met.RecordProviderRequest(ctx, s.deps.ASR.Name(), "asr", "ok")
	s.dlog.Debug("utterance transcribed",
		slog.Int("audio_bytes", len(pcm)),
		slog.String("transcript", res.Transcript))
	return res.Transcript
}

// ─── Speaking ───

// speak renders the template in the current language, synthesises it, and
// plays it through egress, blocking until playback and the processing tail
// complete. Synthesis failures retry once in English; if that also fails the
// prompt is skipped and a KindTTSFailure error returned.
func (s *Session) speak(ctx context.Context, id prompts.ID, params map[string]string) error {
	text, used, err := prompts.Render(id, s.current, params)
	if err != nil {
		return E(KindTTSFailure, err)
	}

	begin := time.Now()
	pcm, err := s.deps.TTS.Synthesize(ctx, text, string(used))
	if err != nil && used != langid.English {
		var etext string
		etext, used, _ = prompts.Render(id, langid.English, params)
		pcm, err = s.deps.TTS.Synthesize(ctx, etext, string(langid.English))
	}
	s.met.TTSDuration.Record(ctx, time.Since(begin).Seconds())
	if err != nil {
		s.met.RecordProviderError(ctx, s.deps.TTS.Name(), "tts")
		s.dlog.Warn("synthesis failed, skipping prompt",
			slog.String("kind", string(KindTTSFailure)),
			slog.String("template", string(id)),
			slog.String("error", err.Error()))
		return E(KindTTSFailure, err)
	}
	s.met.RecordProviderRequest(ctx, s.deps.TTS.Name(), "tts", "ok")

	dur, err := s.play(ctx, pcm, string(id))
	if err != nil {
		return err
	}

	// Processing tail: inbound audio keeps buffering but the next listening
	// window only opens after the tail.
	tail := s.cfg.ProcessingTail
	if half := dur / 2; half > tail {
		tail = half
	}
	return sleepCtx(ctx, tail)
}

// play streams pcm through the egress task and waits for the trailing mark,
// which is the playback-completion signal. Returns the audio duration.
func (s *Session) play(ctx context.Context, pcm []byte, markName string) (time.Duration, error) {
	frames, err := s.enc.MediaFrames(pcm)
	if err != nil {
		return 0, E(KindProviderTransport, err)
	}
	for _, f := range frames {
		select {
		case s.out <- outMsg{data: f, pace: true}:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	mark, err := s.enc.Mark(markName)
	if err != nil {
		return 0, E(KindProviderTransport, err)
	}
	done := make(chan struct{})
	select {
	case s.out <- outMsg{data: mark, done: done}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case <-done:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return audio.Duration(len(pcm), telephony.SampleRate), nil
}

// clearPlayback tells the provider to drop any queued audio. Sent before a
// re-greeting so the old-language greeting does not play out underneath the
// new one.
func (s *Session) clearPlayback(ctx context.Context) {
	msg, err := s.enc.Clear()
	if err != nil {
		return
	}
	select {
	case s.out <- outMsg{data: msg}:
	case <-ctx.Done():
	}
}

// sleepCtx waits for d or context cancellation, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
