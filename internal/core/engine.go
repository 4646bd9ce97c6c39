package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"waitroom-intake/internal/metrics"
	"waitroom-intake/internal/notify"
	"waitroom-intake/internal/session"
	"waitroom-intake/pkg"
	"waitroom-intake/pkg/logging"
)

// ErrSessionNotFound is returned by Handle when the key has no live session.
var ErrSessionNotFound = errors.New("core: session not found")

// RecordStore durably saves confirmed questionnaires.
type RecordStore interface {
	Put(ctx context.Context, rec pkg.Record) error
}

// BriefAttacher is implemented by record stores that can add a brief to a
// record after it was saved.
type BriefAttacher interface {
	AttachBrief(ctx context.Context, id, brief string) error
}

// DefaultCompletionTimeout bounds delivery and persistence of one
// confirmed questionnaire.
const DefaultCompletionTimeout = 30 * time.Second

// StoreError wraps a failed record write.
type StoreError struct {
	RecordID string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("core: persist record %s: %v", e.RecordID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Identity is what the transport knows about the patient at start.
type Identity struct {
	UserID      string
	Username    string
	DisplayName string
}

// Reply is the outbound prompt for one transition, with the keyboard the
// transport should offer.
type Reply struct {
	Step           Step       `json:"step"`
	Text           string     `json:"text"`
	Keyboard       [][]string `json:"keyboard,omitempty"`
	RemoveKeyboard bool       `json:"remove_keyboard,omitempty"`
}

// Config wires an Engine.  Sessions defaults to an in-memory store; Sink,
// Records and Brief may be nil.  The brief is only written when Records
// also implements BriefAttacher.
type Config struct {
	Sessions          session.Store
	Sink              notify.Sink
	Recipients        []string
	Records           RecordStore
	Brief             BriefWriter
	Metrics           *metrics.IntakeMetrics
	Logger            *logging.Logger
	Now               func() time.Time
	CompletionTimeout time.Duration
}

// Engine drives the questionnaire.  Every operation runs under a per-key
// lock so two messages from one patient never interleave.
type Engine struct {
	sessions   session.Store
	sink       notify.Sink
	recipients []string
	records    RecordStore
	brief      BriefWriter
	metrics    *metrics.IntakeMetrics
	logger     *logging.Logger
	now        func() time.Time
	locks      *keyedMutex
	timeout    time.Duration
	background sync.WaitGroup
}

// NewEngine constructs an Engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = DefaultCompletionTimeout
	}
	if len(cfg.Recipients) == 0 {
		cfg.Logger.Warn("core: no reviewer recipients configured, reports will not be delivered")
	}
	return &Engine{
		sessions:   cfg.Sessions,
		sink:       cfg.Sink,
		recipients: append([]string(nil), cfg.Recipients...),
		records:    cfg.Records,
		brief:      cfg.Brief,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        cfg.Now,
		locks:      newKeyedMutex(),
		timeout:    cfg.CompletionTimeout,
	}
}

// Start begins a new questionnaire for key, discarding any previous one.
func (e *Engine) Start(ctx context.Context, key string, id Identity) (Reply, error) {
	unlock := e.locks.Lock(key)
	defer unlock()

	username := id.Username
	if username == "" {
		username = id.DisplayName
	}
	sess := &pkg.Session{
		Key:         key,
		UserID:      id.UserID,
		Username:    username,
		DisplayName: id.DisplayName,
		StartedAt:   e.now(),
		Step:        StepName.String(),
		Answers:     pkg.Answers{},
	}
	if err := e.sessions.Save(ctx, sess); err != nil {
		return Reply{}, fmt.Errorf("core: start session: %w", err)
	}
	e.logger.Info("core: questionnaire started", "session", key, "user_id", id.UserID, "username", username)
	e.metrics.ObserveOutcome("started")

	f, _ := FieldForStep(StepName)
	return Reply{
		Step:           StepName,
		Text:           fmt.Sprintf(greetingTemplate, id.DisplayName) + f.Prompt,
		RemoveKeyboard: true,
	}, nil
}

// Handle applies one patient message to the session's current step.
func (e *Engine) Handle(ctx context.Context, key, text string) (Reply, error) {
	unlock := e.locks.Lock(key)
	defer unlock()

	sess, err := e.sessions.Load(ctx, key)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Reply{}, ErrSessionNotFound
		}
		return Reply{}, fmt.Errorf("core: load session: %w", err)
	}
	step, err := ParseStep(sess.Step)
	if err != nil {
		return Reply{}, err
	}

	var reply Reply
	switch step {
	case StepConfirm:
		reply = e.confirm(ctx, sess, text)
	case StepEditSelect:
		reply = e.editSelect(sess, text)
	default:
		n, ok := graph[step]
		if !ok {
			return Reply{}, fmt.Errorf("core: no transition from step %s", step)
		}
		reply = e.answer(sess, step, n, text)
	}
	e.metrics.ObserveTransition(step.String(), reply.Step.String())

	if reply.Step.Terminal() {
		if err := e.sessions.Delete(ctx, key); err != nil {
			e.logger.Error("core: failed to discard session", "session", key, "error", err)
		}
		return reply, nil
	}
	sess.Step = reply.Step.String()
	if err := e.sessions.Save(ctx, sess); err != nil {
		return Reply{}, fmt.Errorf("core: save session: %w", err)
	}
	return reply, nil
}

// Cancel ends the questionnaire from any step without delivering or
// persisting anything.
func (e *Engine) Cancel(ctx context.Context, key string) (Reply, error) {
	unlock := e.locks.Lock(key)
	defer unlock()

	if err := e.sessions.Delete(ctx, key); err != nil {
		return Reply{}, fmt.Errorf("core: cancel session: %w", err)
	}
	e.logger.Info("core: questionnaire cancelled", "session", key)
	e.metrics.ObserveOutcome("cancelled")
	return cancelledReply(), nil
}

// Session returns a snapshot of the live session for key.
func (e *Engine) Session(ctx context.Context, key string) (*pkg.Session, error) {
	sess, err := e.sessions.Load(ctx, key)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// answer stores the input for a field step and picks the next step.  A
// firing branch always wins, so editing an answer that opens a side
// question walks through that question before returning to review.
func (e *Engine) answer(sess *pkg.Session, step Step, n node, input string) Reply {
	f, _ := FieldForStep(step)
	writeAnswer(sess.Answers, f.Key, n.write, input)

	if n.branch != nil && n.branch(input) {
		return prompt(n.side)
	}
	if sess.ResumeTarget != "" {
		sess.ResumeTarget = ""
		return review(sess)
	}
	if n.next == StepConfirm {
		return review(sess)
	}
	return prompt(n.next)
}

func (e *Engine) confirm(ctx context.Context, sess *pkg.Session, input string) Reply {
	switch ClassifyConfirm(input) {
	case ChoiceConfirm:
		e.complete(ctx, sess)
		return Reply{Step: StepComplete, Text: CompletedMessage, RemoveKeyboard: true}
	case ChoiceEdit:
		sess.ResumeTarget = StepConfirm.String()
		return editMenu()
	default:
		e.logger.Info("core: questionnaire cancelled at review", "session", sess.Key)
		e.metrics.ObserveOutcome("cancelled")
		return cancelledReply()
	}
}

func (e *Engine) editSelect(sess *pkg.Session, input string) Reply {
	if input == LabelBackToForm {
		sess.ResumeTarget = ""
		return review(sess)
	}
	f, ok := fieldsByEditLabel[input]
	if !ok {
		return editMenu()
	}
	sess.ResumeTarget = StepConfirm.String()
	return Reply{Step: f.Step, Text: f.EditPrompt(sess.Answers[f.Key]), Keyboard: f.Keyboard}
}

// complete delivers and persists the reviewer report.  Neither failure is
// surfaced to the patient.  The work is detached from ctx so a client
// disconnect or shutdown does not drop a confirmed questionnaire.
func (e *Engine) complete(ctx context.Context, sess *pkg.Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	report := FormatReport(sess, true)
	now := e.now()

	switch {
	case len(e.recipients) == 0:
		e.logger.Warn("core: no reviewer recipients, report not delivered", "session", sess.Key)
	case e.sink == nil:
		e.logger.Warn("core: no reviewer sink, report not delivered", "session", sess.Key)
		for range e.recipients {
			e.metrics.ObserveDelivery(false)
		}
	default:
		failed := notify.Broadcast(ctx, e.sink, e.recipients, report, e.logger)
		for i := 0; i < len(e.recipients)-len(failed); i++ {
			e.metrics.ObserveDelivery(true)
		}
		for range failed {
			e.metrics.ObserveDelivery(false)
		}
	}

	rec := pkg.Record{
		ID:        RecordID(sess.UserID, now),
		UserID:    sess.UserID,
		Username:  sess.Username,
		Text:      report,
		CreatedAt: now,
	}
	if e.records != nil {
		if err := e.records.Put(ctx, rec); err != nil {
			e.logger.Error("core: record not saved", "error", &StoreError{RecordID: rec.ID, Err: err})
			e.metrics.ObserveRecord(false)
		} else {
			e.logger.Info("core: record saved", "record_id", rec.ID)
			e.metrics.ObserveRecord(true)
			e.writeBrief(ctx, rec)
		}
	}
	e.logger.Info("core: questionnaire completed", "session", sess.Key, "user_id", sess.UserID)
	e.metrics.ObserveOutcome("completed")
}

// writeBrief asks for the reviewer brief in the background and attaches it
// to the saved record.  Wait blocks until pending briefs are done.
func (e *Engine) writeBrief(ctx context.Context, rec pkg.Record) {
	attacher, ok := e.records.(BriefAttacher)
	if e.brief == nil || !ok {
		return
	}
	ctx = context.WithoutCancel(ctx)
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		brief, err := e.brief.Brief(ctx, rec.Text)
		if err != nil {
			e.logger.Warn("core: reviewer brief failed", "record_id", rec.ID, "error", err)
			return
		}
		if err := attacher.AttachBrief(ctx, rec.ID, brief); err != nil {
			e.logger.Error("core: brief not saved", "record_id", rec.ID, "error", err)
			return
		}
		e.logger.Info("core: brief saved", "record_id", rec.ID)
	}()
}

// Wait blocks until background brief writers have finished.
func (e *Engine) Wait() {
	e.background.Wait()
}

// RecordID names a record after the patient and completion time.
func RecordID(userID string, at time.Time) string {
	return fmt.Sprintf("survey_%s_%s", userID, at.Format("20060102_150405"))
}

func prompt(s Step) Reply {
	f, _ := FieldForStep(s)
	return Reply{Step: s, Text: f.Prompt, Keyboard: f.Keyboard}
}

func review(sess *pkg.Session) Reply {
	return Reply{
		Step:     StepConfirm,
		Text:     reviewHeader + FormatReport(sess, false) + reviewQuestion,
		Keyboard: keyboardConfirm,
	}
}

func editMenu() Reply {
	return Reply{Step: StepEditSelect, Text: editMenuPrompt, Keyboard: editMenuKeyboard}
}

func cancelledReply() Reply {
	return Reply{Step: StepCancelled, Text: CancelledMessage, RemoveKeyboard: true}
}
