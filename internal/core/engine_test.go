package core

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitroom-intake/internal/archive"
	"waitroom-intake/internal/metrics"
	"waitroom-intake/internal/session"
	"waitroom-intake/pkg"
	"waitroom-intake/pkg/logging"
)

var fixedNow = time.Date(2024, 3, 5, 14, 30, 15, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	sent   []delivery
	failOn map[string]bool
}

type delivery struct {
	to, text string
}

func (s *recordingSink) Notify(ctx context.Context, recipientID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[recipientID] {
		return errors.New("chat not found")
	}
	s.sent = append(s.sent, delivery{recipientID, text})
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type recordingStore struct {
	mu      sync.Mutex
	records []pkg.Record
	err     error
	calls   int
}

func (s *recordingStore) Put(ctx context.Context, rec pkg.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingStore) AttachBrief(ctx context.Context, id, brief string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Brief = brief
			return nil
		}
	}
	return errors.New("no such record")
}

func (s *recordingStore) snapshot() []pkg.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pkg.Record(nil), s.records...)
}

type stubBrief struct {
	text string
	err  error
}

func (b stubBrief) Brief(ctx context.Context, report string) (string, error) {
	return b.text, b.err
}

// gatedBrief blocks until release is closed.
type gatedBrief struct {
	started chan struct{}
	release chan struct{}
}

func (b gatedBrief) Brief(ctx context.Context, report string) (string, error) {
	close(b.started)
	select {
	case <-b.release:
		return "Пізній підсумок", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type harness struct {
	engine   *Engine
	sessions *session.MemoryStore
	sink     *recordingSink
	records  *recordingStore
}

func newHarness(recipients ...string) *harness {
	h := &harness{
		sessions: session.NewMemoryStore(),
		sink:     &recordingSink{},
		records:  &recordingStore{},
	}
	h.engine = NewEngine(Config{
		Sessions:   h.sessions,
		Sink:       h.sink,
		Recipients: recipients,
		Records:    h.records,
		Logger:     logging.Discard(),
		Now:        func() time.Time { return fixedNow },
	})
	return h
}

const testKey = "777"

var testIdentity = Identity{UserID: "777", Username: "ivan_p", DisplayName: "Іван"}

// happyPath is the linear walk with no side questions.
var happyPath = []struct {
	step  Step
	input string
}{
	{StepName, "Іван Петров"},
	{StepAge, "34"},
	{StepLocation, "Поперек"},
	{StepNumbness, "Ні"},
	{StepOnset, "До 6 тижнів"},
	{StepTrauma, "Ні"},
	{StepPainCharacter, "Ниючий"},
	{StepPainScale, "5"},
	{StepAggravating, "Сидіння"},
	{StepRelieving, "Рух"},
	{StepPriorEpisodes, "Ні"},
	{StepRedFlags, "Немає таких симптомів"},
	{StepComorbidities, "Немає супутніх захворювань"},
	{StepActivity, "Мало рухаюсь"},
	{StepMedication, "Не приймаю ліків"},
	{StepPhysiotherapy, "Ні"},
	{StepHeight, "180"},
	{StepWeight, "80"},
}

func (h *harness) walkToConfirm(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	reply, err := h.engine.Start(ctx, testKey, testIdentity)
	require.NoError(t, err)
	require.Equal(t, StepName, reply.Step)

	for i, in := range happyPath {
		snap, err := h.engine.Session(ctx, testKey)
		require.NoError(t, err)
		require.Equal(t, in.step.String(), snap.Step, "before input %d", i)

		reply, err = h.engine.Handle(ctx, testKey, in.input)
		require.NoError(t, err)
	}
	require.Equal(t, StepConfirm, reply.Step)
}

func (h *harness) send(t *testing.T, text string) Reply {
	t.Helper()
	reply, err := h.engine.Handle(context.Background(), testKey, text)
	require.NoError(t, err)
	return reply
}

func (h *harness) answers(t *testing.T) pkg.Answers {
	t.Helper()
	snap, err := h.engine.Session(context.Background(), testKey)
	require.NoError(t, err)
	return snap.Answers
}

func TestEndToEndScenario(t *testing.T) {
	h := newHarness("1001", "1002")
	h.walkToConfirm(t)

	answers := h.answers(t)
	assert.Len(t, answers, 18)
	for _, in := range happyPath {
		f, _ := FieldForStep(in.step)
		assert.Equal(t, in.input, answers[f.Key], "field %s", f.Key)
	}
	for _, k := range []pkg.FieldKey{KeyNumbnessLocation, KeyPriorTreatment, KeySportType} {
		assert.NotContains(t, answers, k)
	}

	reply := h.send(t, LabelConfirm)
	assert.Equal(t, StepComplete, reply.Step)
	assert.Equal(t, CompletedMessage, reply.Text)
	assert.True(t, reply.RemoveKeyboard)

	require.Equal(t, 2, h.sink.count())
	got := map[string]string{}
	for _, d := range h.sink.sent {
		got[d.to] = d.text
	}
	assert.Equal(t, got["1001"], got["1002"])
	assert.Contains(t, got["1001"], "Іван Петров")
	assert.Contains(t, got["1001"], "🆔 User ID: 777")

	require.Len(t, h.records.records, 1)
	rec := h.records.records[0]
	assert.Equal(t, "survey_777_20240305_143015", rec.ID)
	assert.Equal(t, got["1001"], rec.Text)
	assert.Equal(t, "ivan_p", rec.Username)

	_, err := h.engine.Session(context.Background(), testKey)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReviewShowsPatientReport(t *testing.T) {
	h := newHarness("1001")
	ctx := context.Background()
	_, err := h.engine.Start(ctx, testKey, testIdentity)
	require.NoError(t, err)

	var reply Reply
	for _, in := range happyPath {
		reply = h.send(t, in.input)
	}
	assert.True(t, strings.HasPrefix(reply.Text, reviewHeader))
	assert.Contains(t, reply.Text, "Іван Петров")
	assert.NotContains(t, reply.Text, "User ID")
	assert.Equal(t, keyboardConfirm, reply.Keyboard)
}

func TestSideBranchesAndAppendFields(t *testing.T) {
	h := newHarness()
	_, err := h.engine.Start(context.Background(), testKey, testIdentity)
	require.NoError(t, err)

	h.send(t, "Іван Петров")
	h.send(t, "34")
	assert.Equal(t, StepLocationDetail, h.send(t, "Біль віддає у ногу").Step)
	assert.Equal(t, StepNumbness, h.send(t, "у ліву ногу до коліна").Step)
	assert.Equal(t, StepNumbnessLocation, h.send(t, AnswerYes).Step)
	assert.Equal(t, StepOnset, h.send(t, "Стопа").Step)
	h.send(t, "Більше 3 місяців (хронічний)")

	reply := h.send(t, AnswerYes)
	assert.Equal(t, StepTraumaDetail, reply.Step)
	assert.Equal(t, [][]string{{AnswerSkip}}, reply.Keyboard)
	assert.Equal(t, StepPainCharacter, h.send(t, AnswerSkip).Step)

	answers := h.answers(t)
	assert.Equal(t, "Біль віддає у ногу\nДеталі: у ліву ногу до коліна", answers[KeyLocation])
	assert.Equal(t, "Так\nДеталі: Не вказано", answers[KeyTrauma])
	assert.Equal(t, "Стопа", answers[KeyNumbnessLocation])

	h.send(t, "Гострий")
	h.send(t, "7")
	h.send(t, "Нахили")
	h.send(t, "Лежання")
	assert.Equal(t, StepPriorTreatment, h.send(t, AnswerYes).Step)
	assert.Equal(t, StepRedFlags, h.send(t, "Масаж").Step)
	h.send(t, "Температура")
	h.send(t, "Остеопороз")
	assert.Equal(t, StepSportType, h.send(t, "Займаюся спортом").Step)
	assert.Equal(t, StepMedication, h.send(t, "Біг").Step)
	h.send(t, "Ібупрофен")
	h.send(t, "Так")
	h.send(t, "175")
	assert.Equal(t, StepConfirm, h.send(t, "70").Step)

	answers = h.answers(t)
	assert.Len(t, answers, 21)
	assert.Equal(t, "Масаж", answers[KeyPriorTreatment])
	assert.Equal(t, "Біг", answers[KeySportType])
}

func TestBranchKeywordIsCaseInsensitive(t *testing.T) {
	h := newHarness()
	_, err := h.engine.Start(context.Background(), testKey, testIdentity)
	require.NoError(t, err)
	h.send(t, "Іван")
	h.send(t, "40")
	assert.Equal(t, StepLocationDetail, h.send(t, "Шия, ВІДДАЄ в плече").Step)
}

func TestYesBranchNeedsExactLabel(t *testing.T) {
	h := newHarness()
	_, err := h.engine.Start(context.Background(), testKey, testIdentity)
	require.NoError(t, err)
	h.send(t, "Іван")
	h.send(t, "40")
	h.send(t, "Шия")
	assert.Equal(t, StepOnset, h.send(t, "так").Step)
}

func TestEditSnapsBackToReview(t *testing.T) {
	h := newHarness("1001")
	h.walkToConfirm(t)
	before := h.answers(t)

	reply := h.send(t, LabelEdit)
	assert.Equal(t, StepEditSelect, reply.Step)
	assert.Equal(t, editMenuKeyboard, reply.Keyboard)

	reply = h.send(t, "📅 Вік")
	assert.Equal(t, StepAge, reply.Step)
	assert.Equal(t, "Поточний вік: 34\n\nВведіть новий вік:", reply.Text)

	reply = h.send(t, "35")
	assert.Equal(t, StepConfirm, reply.Step)
	assert.Contains(t, reply.Text, "📅 Вік: 35")

	after := h.answers(t)
	assert.Equal(t, "35", after[KeyAge])
	delete(before, KeyAge)
	delete(after, KeyAge)
	assert.Equal(t, before, after)

	snap, err := h.engine.Session(context.Background(), testKey)
	require.NoError(t, err)
	assert.Empty(t, snap.ResumeTarget)
	assert.Equal(t, 0, h.sink.count())
}

func TestEditWithBranchWalksSideQuestion(t *testing.T) {
	h := newHarness()
	h.walkToConfirm(t)

	h.send(t, LabelEdit)
	reply := h.send(t, "📍 Локалізація болю")
	assert.Equal(t, StepLocation, reply.Step)
	assert.Equal(t, keyboardLocation, reply.Keyboard)
	assert.Contains(t, reply.Text, "Поточна локалізація: Поперек")

	assert.Equal(t, StepLocationDetail, h.send(t, "Біль віддає у руку").Step)
	reply = h.send(t, "до ліктя")
	assert.Equal(t, StepConfirm, reply.Step)
	assert.Equal(t, "Біль віддає у руку\nДеталі: до ліктя", h.answers(t)[KeyLocation])
}

func TestEditYesBranches(t *testing.T) {
	tests := []struct {
		label  string
		side   Step
		detail string
		key    pkg.FieldKey
	}{
		{"🔔 Оніміння", StepNumbnessLocation, "Пальці", KeyNumbnessLocation},
		{"🔄 Попередні епізоди", StepPriorTreatment, "Не лікував(ла)", KeyPriorTreatment},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			h := newHarness()
			h.walkToConfirm(t)
			h.send(t, LabelEdit)
			h.send(t, tt.label)
			assert.Equal(t, tt.side, h.send(t, AnswerYes).Step)
			assert.Equal(t, StepConfirm, h.send(t, tt.detail).Step)
			assert.Equal(t, tt.detail, h.answers(t)[tt.key])
		})
	}
}

func TestEditWithoutBranchTriggerSnapsBack(t *testing.T) {
	h := newHarness()
	h.walkToConfirm(t)
	h.send(t, LabelEdit)
	h.send(t, "🏃 Активність")
	assert.Equal(t, StepConfirm, h.send(t, "Сидяча робота").Step)
	h.send(t, LabelEdit)
	h.send(t, "💥 Травма")
	assert.Equal(t, StepConfirm, h.send(t, AnswerNo).Step)
}

func TestEditMenuBackAndUnknownChoice(t *testing.T) {
	h := newHarness()
	h.walkToConfirm(t)
	h.send(t, LabelEdit)

	reply := h.send(t, "щось незрозуміле")
	assert.Equal(t, StepEditSelect, reply.Step)
	assert.Equal(t, editMenuPrompt, reply.Text)

	reply = h.send(t, LabelBackToForm)
	assert.Equal(t, StepConfirm, reply.Step)
	snap, err := h.engine.Session(context.Background(), testKey)
	require.NoError(t, err)
	assert.Empty(t, snap.ResumeTarget)
}

func TestEditMenuListsEveryEditableField(t *testing.T) {
	labels := map[string]bool{}
	for _, row := range editMenuKeyboard {
		for _, l := range row {
			labels[l] = true
		}
	}
	assert.Len(t, EditableFields(), 18)
	for _, f := range EditableFields() {
		assert.True(t, labels[f.EditLabel], f.EditLabel)
	}
	assert.True(t, labels[LabelBackToForm])
}

func TestConfirmFallsThroughToCancel(t *testing.T) {
	for _, input := range []string{LabelCancel, "Підтвердити", "ok", ""} {
		t.Run(input, func(t *testing.T) {
			h := newHarness("1001")
			h.walkToConfirm(t)

			reply := h.send(t, input)
			assert.Equal(t, StepCancelled, reply.Step)
			assert.Equal(t, CancelledMessage, reply.Text)
			assert.Equal(t, 0, h.sink.count())
			assert.Equal(t, 0, h.records.calls)
			assert.Equal(t, 0, h.sessions.Len())
		})
	}
}

func TestCancelFromEveryStep(t *testing.T) {
	for _, step := range AllSteps() {
		t.Run(step.String(), func(t *testing.T) {
			h := newHarness("1001")
			require.NoError(t, h.sessions.Save(context.Background(), &pkg.Session{
				Key:     testKey,
				UserID:  testKey,
				Step:    step.String(),
				Answers: pkg.Answers{KeyName: "Іван Петров"},
			}))

			reply, err := h.engine.Cancel(context.Background(), testKey)
			require.NoError(t, err)
			assert.Equal(t, StepCancelled, reply.Step)
			assert.True(t, reply.RemoveKeyboard)
			assert.Equal(t, 0, h.sink.count())
			assert.Equal(t, 0, h.records.calls)

			_, err = h.engine.Handle(context.Background(), testKey, "x")
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestDeliveryFailureDoesNotBlockCompletion(t *testing.T) {
	h := newHarness("1001", "1002", "1003")
	h.sink.failOn = map[string]bool{"1002": true}
	h.walkToConfirm(t)

	reply := h.send(t, LabelConfirm)
	assert.Equal(t, StepComplete, reply.Step)
	assert.Equal(t, 2, h.sink.count())
	assert.Len(t, h.records.records, 1)
}

func TestStoreFailureDoesNotBlockCompletion(t *testing.T) {
	h := newHarness("1001")
	h.records.err = errors.New("disk full")
	h.walkToConfirm(t)

	reply := h.send(t, LabelConfirm)
	assert.Equal(t, StepComplete, reply.Step)
	assert.Equal(t, 1, h.sink.count())
	assert.Equal(t, 1, h.records.calls)
}

func TestNoRecipientsStillPersists(t *testing.T) {
	h := newHarness()
	h.walkToConfirm(t)
	assert.Equal(t, StepComplete, h.send(t, LabelConfirm).Step)
	assert.Equal(t, 0, h.sink.count())
	assert.Len(t, h.records.records, 1)
}

func TestBriefIsStoredNotDelivered(t *testing.T) {
	h := newHarness("1001")
	h.engine.brief = stubBrief{text: "Гострий біль у попереку"}
	h.walkToConfirm(t)
	h.send(t, LabelConfirm)
	h.engine.Wait()

	require.Len(t, h.records.records, 1)
	assert.Equal(t, "Гострий біль у попереку", h.records.records[0].Brief)
	assert.NotContains(t, h.sink.sent[0].text, "Гострий біль у попереку")

	h2 := newHarness("1001")
	h2.engine.brief = stubBrief{err: errors.New("timeout")}
	h2.walkToConfirm(t)
	assert.Equal(t, StepComplete, h2.send(t, LabelConfirm).Step)
	h2.engine.Wait()
	require.Len(t, h2.records.records, 1)
	assert.Empty(t, h2.records.records[0].Brief)
}

func TestStartDiscardsPreviousSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, err := h.engine.Start(ctx, testKey, testIdentity)
	require.NoError(t, err)
	h.send(t, "Іван Петров")

	reply, err := h.engine.Start(ctx, testKey, Identity{UserID: "777", DisplayName: "Іван"})
	require.NoError(t, err)
	assert.Equal(t, StepName, reply.Step)
	assert.True(t, strings.HasPrefix(reply.Text, "Вітаю, Іван! 👋"))
	assert.True(t, strings.HasSuffix(reply.Text, "Введіть, будь ласка, ваше ПІБ:"))

	snap, err := h.engine.Session(ctx, testKey)
	require.NoError(t, err)
	assert.Empty(t, snap.Answers)
	assert.Equal(t, "Іван", snap.Username)
	assert.True(t, snap.StartedAt.Equal(fixedNow))
}

func TestHandleWithoutSession(t *testing.T) {
	h := newHarness()
	_, err := h.engine.Handle(context.Background(), "nobody", "hi")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestConcurrentMessagesForOneKeyAreSerialised(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, err := h.engine.Start(ctx, testKey, testIdentity)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Handle(ctx, testKey, "x")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := h.engine.Session(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, StepTrauma.String(), snap.Step)
	assert.Len(t, snap.Answers, 5)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	keys := []string{"1", "2", "3", "4"}

	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			_, err := h.engine.Start(ctx, k, Identity{UserID: k, DisplayName: "P" + k})
			assert.NoError(t, err)
			_, err = h.engine.Handle(ctx, k, "name-"+k)
			assert.NoError(t, err)
		}(k)
	}
	wg.Wait()

	for _, k := range keys {
		snap, err := h.engine.Session(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, "name-"+k, snap.Answers[KeyName])
		assert.Equal(t, StepAge.String(), snap.Step)
	}
}

func TestCompletionCountsDeliveriesAndRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness("1001", "1002", "1003")
	h.engine.metrics = metrics.NewIntakeMetrics(reg)
	h.sink.failOn = map[string]bool{"1003": true}
	h.walkToConfirm(t)
	h.send(t, LabelConfirm)

	expected := `
# HELP intake_notify_deliveries_total Reviewer report deliveries
# TYPE intake_notify_deliveries_total counter
intake_notify_deliveries_total{status="error"} 1
intake_notify_deliveries_total{status="ok"} 2
# HELP intake_records_writes_total Record store writes
# TYPE intake_records_writes_total counter
intake_records_writes_total{status="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"intake_notify_deliveries_total", "intake_records_writes_total"))
}

func TestNoSinkCountsFailedDeliveries(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness("1001")
	h.engine.sink = nil
	h.engine.metrics = metrics.NewIntakeMetrics(reg)
	h.walkToConfirm(t)

	assert.Equal(t, StepComplete, h.send(t, LabelConfirm).Step)
	assert.Len(t, h.records.records, 1)
	expected := `
# HELP intake_notify_deliveries_total Reviewer report deliveries
# TYPE intake_notify_deliveries_total counter
intake_notify_deliveries_total{status="error"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "intake_notify_deliveries_total"))
}

func TestBriefDoesNotDelayCompletion(t *testing.T) {
	h := newHarness("1001")
	brief := gatedBrief{started: make(chan struct{}), release: make(chan struct{})}
	h.engine.brief = brief
	h.walkToConfirm(t)

	assert.Equal(t, StepComplete, h.send(t, LabelConfirm).Step)
	<-brief.started
	records := h.records.snapshot()
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Brief)
	assert.Equal(t, 1, h.sink.count())

	close(brief.release)
	h.engine.Wait()
	assert.Equal(t, "Пізній підсумок", h.records.snapshot()[0].Brief)
}

func TestCompletionSurvivesCancelledContext(t *testing.T) {
	h := newHarness("1001")
	h.engine.brief = stubBrief{text: "підсумок"}
	h.walkToConfirm(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reply, err := h.engine.Handle(ctx, testKey, LabelConfirm)
	require.NoError(t, err)
	assert.Equal(t, StepComplete, reply.Step)
	h.engine.Wait()

	assert.Equal(t, 1, h.sink.count())
	records := h.records.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "підсумок", records[0].Brief)
}

func TestCompletionWritesFileAfterClientDisconnect(t *testing.T) {
	dir := t.TempDir()
	h := newHarness("1001")
	h.engine.records = archive.NewFileStore(dir)
	h.walkToConfirm(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reply, err := h.engine.Handle(ctx, testKey, LabelConfirm)
	require.NoError(t, err)
	assert.Equal(t, StepComplete, reply.Step)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, RecordID("777", fixedNow)+".txt", files[0].Name())
}
