package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/transvox/transvox/internal/artifact"
	"github.com/transvox/transvox/internal/config"
	"github.com/transvox/transvox/internal/history"
	"github.com/transvox/transvox/internal/models"
	"github.com/transvox/transvox/internal/quota"
	"github.com/transvox/transvox/internal/session"
	"github.com/transvox/transvox/internal/speech"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeTranslator struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeResolver struct {
	url string
	err error
}

func (f *fakeResolver) FileURL(ctx context.Context, fileRef string) (string, error) {
	return f.url, f.err
}

// syncPublisher runs the worker half inline so one call drives the whole
// media path.
type syncPublisher struct {
	pipe      *Pipeline
	published []string
	err       error
}

func (p *syncPublisher) PublishJob(ctx context.Context, jobID string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, jobID)
	if p.pipe != nil {
		return p.pipe.ProcessJob(ctx, jobID)
	}
	return nil
}

type recordingNotifier struct {
	transcribing int
	ready        []string
	failed       []Kind
}

func (n *recordingNotifier) Transcribing(ctx context.Context, chatID int64, locale string) {
	n.transcribing++
}

func (n *recordingNotifier) TranscriptionReady(ctx context.Context, chatID int64, locale, transcription string) {
	n.ready = append(n.ready, transcription)
}

func (n *recordingNotifier) Failed(ctx context.Context, chatID int64, locale string, kind Kind) {
	n.failed = append(n.failed, kind)
}

type fixture struct {
	pipe        *Pipeline
	db          *gorm.DB
	quota       *quota.Service
	store       *session.MemoryStore
	transcriber *fakeTranscriber
	translator  *fakeTranslator
	publisher   *syncPublisher
	notifier    *recordingNotifier
	server      *httptest.Server
}

func newFixture(t *testing.T, opts Options) *fixture {
	return newFixtureCfg(t, opts, 3, "file::memory:?cache=shared", false)
}

func newFixtureWithLimit(t *testing.T, opts Options, freeLimit int) *fixture {
	return newFixtureCfg(t, opts, freeLimit, "file::memory:?cache=shared", false)
}

func newFixtureCfg(t *testing.T, opts Options, freeLimit int, dsn string, failOpen bool) *fixture {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &quota.Subscription{}, &quota.DailyUsage{},
		&history.Record{}, &Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fake media bytes"))
	}))
	t.Cleanup(server.Close)

	quotaSvc := quota.NewService(quota.NewRepo(db), freeLimit, 30, failOpen, zerolog.Nop())
	store := session.NewMemoryStore()
	transcriber := &fakeTranscriber{text: "hello from the recording"}
	translator := &fakeTranslator{text: "hola desde la grabación"}
	notifier := &recordingNotifier{}
	publisher := &syncPublisher{}

	translators := speech.NewRegistry()
	translators.Register("fake", "", func(ctx context.Context, model string) (speech.Translator, error) {
		return translator, nil
	})

	if opts.AudioExtensions == nil {
		opts.AudioExtensions = map[string]struct{}{".mp3": {}, ".ogg": {}}
	}
	if opts.VideoExtensions == nil {
		opts.VideoExtensions = map[string]struct{}{".mp4": {}}
	}
	if opts.TranslateProvider == "" {
		opts.TranslateProvider = "fake"
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = 30 * time.Minute
	}

	pipe := New(opts, Deps{
		Quota:       quotaSvc,
		Sessions:    store,
		Locker:      store,
		Artifacts:   artifact.NewManager(t.TempDir(), opts.MaxFileSizeBytes, zerolog.Nop()),
		Transcriber: transcriber,
		Translators: translators,
		History:     history.NewRepo(db),
		Jobs:        NewJobRepo(db),
		Publisher:   publisher,
		Files:       &fakeResolver{url: server.URL},
		Notifier:    notifier,
		Logger:      zerolog.Nop(),
	})
	publisher.pipe = pipe

	return &fixture{
		pipe:        pipe,
		db:          db,
		quota:       quotaSvc,
		store:       store,
		transcriber: transcriber,
		translator:  translator,
		publisher:   publisher,
		notifier:    notifier,
		server:      server,
	}
}

func upload(userID int64, filename string) MediaReceived {
	return MediaReceived{
		UserID:    userID,
		ChatID:    userID,
		FileRef:   "file-ref",
		Filename:  filename,
		SizeBytes: 16,
		Locale:    "en",
	}
}

func TestEnqueueMedia_FullAudioPath(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	res, err := f.pipe.EnqueueMedia(ctx, upload(1, "note.mp3"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if res.Class != quota.ClassFree {
		t.Fatalf("expected free class, got %s", res.Class)
	}

	// the inline worker ran the job to completion
	job, err := f.pipe.d.Jobs.GetByID(ctx, res.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != JobSucceeded {
		t.Fatalf("expected succeeded job, got %s", job.Status)
	}
	if f.notifier.transcribing != 1 || len(f.notifier.ready) != 1 {
		t.Fatalf("expected transcribing+ready notifications, got %+v", f.notifier)
	}
	if f.notifier.ready[0] != "hello from the recording" {
		t.Fatalf("unexpected transcription: %q", f.notifier.ready[0])
	}

	// a live session now waits for the language choice
	sess, err := f.store.Resolve(ctx, 1)
	if err != nil {
		t.Fatalf("resolve session: %v", err)
	}
	if sess.Transcription != "hello from the recording" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	// exactly one accounted request
	if n, _ := f.quota.GetToday(ctx, 1); n != 1 {
		t.Fatalf("expected usage 1, got %d", n)
	}
}

func TestEnqueueMedia_UnsupportedFormat(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.pipe.EnqueueMedia(context.Background(), upload(2, "notes.txt"))
	if KindOf(err) != KindUnsupportedFormat {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	if len(f.publisher.published) != 0 {
		t.Fatalf("nothing should have been published")
	}
}

func TestEnqueueMedia_FileTooLarge(t *testing.T) {
	f := newFixture(t, Options{MaxFileSizeBytes: 10})

	ev := upload(3, "note.mp3")
	ev.SizeBytes = 11
	_, err := f.pipe.EnqueueMedia(context.Background(), ev)
	if KindOf(err) != KindFileTooLarge {
		t.Fatalf("expected file too large, got %v", err)
	}
}

func TestEnqueueMedia_QuotaDenied(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.quota.Charge(ctx, 4); err != nil {
			t.Fatalf("charge: %v", err)
		}
	}

	_, err := f.pipe.EnqueueMedia(ctx, upload(4, "note.mp3"))
	if KindOf(err) != KindQuotaDenied {
		t.Fatalf("expected quota denied, got %v", err)
	}

	// denial leaves no job, no session, no extra charge
	if len(f.publisher.published) != 0 {
		t.Fatalf("nothing should have been published")
	}
	if _, err := f.store.Resolve(ctx, 4); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("no session expected, got %v", err)
	}
	if n, _ := f.quota.GetToday(ctx, 4); n != 3 {
		t.Fatalf("expected usage still 3, got %d", n)
	}
}

func TestEnqueueMedia_PremiumNotCharged(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	if err := f.quota.ActivatePremium(ctx, 5); err != nil {
		t.Fatalf("activate premium: %v", err)
	}

	res, err := f.pipe.EnqueueMedia(ctx, upload(5, "note.mp3"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if res.Class != quota.ClassPremium {
		t.Fatalf("expected premium class, got %s", res.Class)
	}
	if n, _ := f.quota.GetToday(ctx, 5); n != 0 {
		t.Fatalf("premium request must not be charged, got %d", n)
	}
}

func TestEnqueueMedia_QuotaOutageDegradesInsteadOfBlocking(t *testing.T) {
	f := newFixtureCfg(t, Options{}, 3, "file:pipe_quota_outage?mode=memory&cache=shared", true)
	ctx := context.Background()

	// the entitlement store goes away; the usage ledger stays readable
	if err := f.db.Migrator().DropTable(&quota.Subscription{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	res, err := f.pipe.EnqueueMedia(ctx, upload(40, "note.mp3"))
	if err != nil {
		t.Fatalf("enqueue during quota outage: %v", err)
	}

	job, err := f.pipe.d.Jobs.GetByID(ctx, res.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != JobSucceeded {
		t.Fatalf("expected succeeded job, got %s", job.Status)
	}
	if !job.Degraded {
		t.Fatalf("expected job marked degraded, got %+v", job)
	}
	if job.Charged {
		t.Fatalf("degraded job must not claim a charge")
	}
	if n, _ := f.quota.GetToday(ctx, 40); n != 0 {
		t.Fatalf("degraded request must not be accounted, got %d", n)
	}
	if len(f.notifier.ready) != 1 {
		t.Fatalf("expected transcription delivered, got %+v", f.notifier)
	}
}

func TestEnqueueMedia_RejectPolicyBusySession(t *testing.T) {
	f := newFixture(t, Options{ReplacePolicy: config.RejectNew})
	ctx := context.Background()

	if _, err := f.pipe.EnqueueMedia(ctx, upload(6, "first.mp3")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	_, err := f.pipe.EnqueueMedia(ctx, upload(6, "second.mp3"))
	if KindOf(err) != KindSessionBusy {
		t.Fatalf("expected session busy, got %v", err)
	}

	// the first session is still the live one
	sess, err := f.store.Resolve(ctx, 6)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess.Transcription != "hello from the recording" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestEnqueueMedia_ReplacePolicyReleasesOldArtifact(t *testing.T) {
	f := newFixture(t, Options{ReplacePolicy: config.ReplaceExisting})
	ctx := context.Background()

	if _, err := f.pipe.EnqueueMedia(ctx, upload(7, "first.mp3")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	first, err := f.store.Resolve(ctx, 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	firstArtifact := first.ArtifactPath

	if _, err := f.pipe.EnqueueMedia(ctx, upload(7, "second.mp3")); err != nil {
		t.Fatalf("second enqueue: %v", err)
	}

	if _, err := os.Stat(firstArtifact); !os.IsNotExist(err) {
		t.Fatalf("replaced artifact should be removed, stat err=%v", err)
	}
	second, err := f.store.Resolve(ctx, 7)
	if err != nil {
		t.Fatalf("resolve after replace: %v", err)
	}
	if second.ArtifactPath == firstArtifact {
		t.Fatalf("expected a fresh artifact after replace")
	}
}

func TestProcessJob_TranscriberFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.transcriber.err = errors.New("whisper down")
	ctx := context.Background()

	_, err := f.pipe.EnqueueMedia(ctx, upload(8, "note.mp3"))
	if KindOf(err) != KindCollaboratorFailure {
		t.Fatalf("expected collaborator failure, got %v", err)
	}

	if len(f.notifier.failed) != 1 || f.notifier.failed[0] != KindCollaboratorFailure {
		t.Fatalf("expected failure notification, got %+v", f.notifier.failed)
	}
	// a failed transcription is never charged
	if n, _ := f.quota.GetToday(ctx, 8); n != 0 {
		t.Fatalf("expected no charge, got %d", n)
	}
	if _, err := f.store.Resolve(ctx, 8); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("no session expected after failure, got %v", err)
	}
}

func TestProcessJob_EmptyTranscription(t *testing.T) {
	f := newFixture(t, Options{})
	f.transcriber.text = "   "
	ctx := context.Background()

	_, err := f.pipe.EnqueueMedia(ctx, upload(9, "note.mp3"))
	if KindOf(err) != KindEmptyTranscription {
		t.Fatalf("expected empty transcription, got %v", err)
	}
	if n, _ := f.quota.GetToday(ctx, 9); n != 0 {
		t.Fatalf("expected no charge, got %d", n)
	}
}

func TestProcessJob_SucceededJobNotRerun(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	res, err := f.pipe.EnqueueMedia(ctx, upload(10, "note.mp3"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	calls := f.transcriber.calls

	// redelivery after completion is a no-op
	if err := f.pipe.ProcessJob(ctx, res.JobID); err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	if f.transcriber.calls != calls {
		t.Fatalf("redelivered job must not transcribe again")
	}
	if n, _ := f.quota.GetToday(ctx, 10); n != 1 {
		t.Fatalf("expected single charge, got %d", n)
	}
}

func TestProcessJob_RedeliveryAfterCrashChargesOnce(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	res, err := f.pipe.EnqueueMedia(ctx, upload(18, "note.mp3"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n, _ := f.quota.GetToday(ctx, 18); n != 1 {
		t.Fatalf("expected usage 1 after first run, got %d", n)
	}

	// a worker that died between the charge and the broker ack leaves the
	// job in running; the broker then redelivers it
	if err := f.db.Model(&Job{}).Where("id = ?", res.JobID).
		Update("status", JobRunning).Error; err != nil {
		t.Fatalf("reset job status: %v", err)
	}
	if err := f.pipe.ProcessJob(ctx, res.JobID); err != nil {
		t.Fatalf("redelivered processing: %v", err)
	}

	if n, _ := f.quota.GetToday(ctx, 18); n != 1 {
		t.Fatalf("accounted request charged %d times, want exactly 1", n)
	}
}

func TestHandleLanguage_TranslatesAndTearsDown(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	if _, err := f.pipe.EnqueueMedia(ctx, upload(11, "note.mp3")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	sess, _ := f.store.Resolve(ctx, 11)

	res, err := f.pipe.HandleLanguage(ctx, LanguageChosen{
		UserID: 11, ChatID: 11, LanguageCode: "es", LanguageName: "Spanish",
	})
	if err != nil {
		t.Fatalf("handle language: %v", err)
	}
	if res.Translation != "hola desde la grabación" {
		t.Fatalf("unexpected translation: %q", res.Translation)
	}

	// session closed, artifact gone
	if _, err := f.store.Resolve(ctx, 11); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("session should be closed, got %v", err)
	}
	if _, err := os.Stat(sess.ArtifactPath); !os.IsNotExist(err) {
		t.Fatalf("artifact should be removed, stat err=%v", err)
	}

	// the request is recorded
	records, err := history.NewRepo(f.db).ListRecent(ctx, 11, 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(records) != 1 || records[0].TargetLanguage != "es" {
		t.Fatalf("unexpected history: %+v", records)
	}
}

func TestHandleLanguage_NoSession(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.pipe.HandleLanguage(context.Background(), LanguageChosen{
		UserID: 12, LanguageCode: "fr", LanguageName: "French",
	})
	if KindOf(err) != KindSessionExpired {
		t.Fatalf("expected session expired, got %v", err)
	}
}

func TestHandleLanguage_TranslationFailureNoRefund(t *testing.T) {
	f := newFixture(t, Options{})
	f.translator.err = errors.New("model overloaded")
	ctx := context.Background()

	if _, err := f.pipe.EnqueueMedia(ctx, upload(13, "note.mp3")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	sess, _ := f.store.Resolve(ctx, 13)

	_, err := f.pipe.HandleLanguage(ctx, LanguageChosen{
		UserID: 13, LanguageCode: "de", LanguageName: "German",
	})
	if KindOf(err) != KindCollaboratorFailure {
		t.Fatalf("expected collaborator failure, got %v", err)
	}

	// the charge from the successful transcription stands
	if n, _ := f.quota.GetToday(ctx, 13); n != 1 {
		t.Fatalf("expected charge kept after translation failure, got %d", n)
	}
	// session and artifact are torn down anyway
	if _, err := f.store.Resolve(ctx, 13); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("session should be closed, got %v", err)
	}
	if _, err := os.Stat(sess.ArtifactPath); !os.IsNotExist(err) {
		t.Fatalf("artifact should be removed, stat err=%v", err)
	}
}

func TestHandleCancel(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	if _, err := f.pipe.EnqueueMedia(ctx, upload(14, "note.mp3")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	sess, _ := f.store.Resolve(ctx, 14)

	if err := f.pipe.HandleCancel(ctx, 14); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.store.Resolve(ctx, 14); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("session should be gone, got %v", err)
	}
	if _, err := os.Stat(sess.ArtifactPath); !os.IsNotExist(err) {
		t.Fatalf("artifact should be removed, stat err=%v", err)
	}

	// cancelling again reports no live session
	if err := f.pipe.HandleCancel(ctx, 14); KindOf(err) != KindSessionExpired {
		t.Fatalf("expected session expired on double cancel, got %v", err)
	}
}

func TestHandlePayment_ActivatesPremium(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	// exhaust the free tier first
	for i := 0; i < 3; i++ {
		if _, err := f.quota.Charge(ctx, 15); err != nil {
			t.Fatalf("charge: %v", err)
		}
	}
	if _, err := f.pipe.EnqueueMedia(ctx, upload(15, "note.mp3")); KindOf(err) != KindQuotaDenied {
		t.Fatalf("expected denial before payment, got %v", err)
	}

	if err := f.pipe.HandlePayment(ctx, PaymentConfirmed{
		UserID: 15, ChargeID: "ch_1", Amount: 5, Payload: "premium_subscription",
	}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	res, err := f.pipe.EnqueueMedia(ctx, upload(15, "note.mp3"))
	if err != nil {
		t.Fatalf("enqueue after payment: %v", err)
	}
	if res.Class != quota.ClassPremium {
		t.Fatalf("expected premium class after payment, got %s", res.Class)
	}
}

func TestEnqueueMedia_PublishFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t, Options{})
	f.publisher.err = errors.New("broker gone")
	ctx := context.Background()

	_, err := f.pipe.EnqueueMedia(ctx, upload(16, "note.mp3"))
	if KindOf(err) != KindCollaboratorFailure {
		t.Fatalf("expected collaborator failure, got %v", err)
	}

	var job Job
	if err := f.db.First(&job, "user_id = ?", int64(16)).Error; err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job.Status != JobFailed {
		t.Fatalf("expected failed job, got %s", job.Status)
	}
}

// One user's full day on a single free request: upload, translate, hit the
// limit, pay, and upload again as premium.
func TestSingleFreeRequestDay(t *testing.T) {
	f := newFixtureWithLimit(t, Options{}, 1)
	ctx := context.Background()
	const userID = int64(17)

	// upload 1: allowed as free, transcribed, charged once
	res, err := f.pipe.EnqueueMedia(ctx, upload(userID, "memo.mp3"))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if res.Class != quota.ClassFree {
		t.Fatalf("expected free class, got %s", res.Class)
	}
	if n, _ := f.quota.GetToday(ctx, userID); n != 1 {
		t.Fatalf("expected usage 1, got %d", n)
	}

	// language choice: translated, history appended, session closed
	if _, err := f.pipe.HandleLanguage(ctx, LanguageChosen{
		UserID: userID, LanguageCode: "es", LanguageName: "Spanish",
	}); err != nil {
		t.Fatalf("language choice: %v", err)
	}
	records, err := history.NewRepo(f.db).ListRecent(ctx, userID, 10)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected one history record, got %d err=%v", len(records), err)
	}

	// upload 2 same day: denied, nothing charged or opened
	if _, err := f.pipe.EnqueueMedia(ctx, upload(userID, "memo2.mp3")); KindOf(err) != KindQuotaDenied {
		t.Fatalf("expected quota denied, got %v", err)
	}
	if _, err := f.store.Resolve(ctx, userID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("no session expected after denial, got %v", err)
	}
	if n, _ := f.quota.GetToday(ctx, userID); n != 1 {
		t.Fatalf("expected usage still 1, got %d", n)
	}

	// payment settles; upload 3 rides premium without touching the ledger
	if err := f.pipe.HandlePayment(ctx, PaymentConfirmed{UserID: userID, ChargeID: "ch_2", Amount: 5}); err != nil {
		t.Fatalf("payment: %v", err)
	}
	res, err = f.pipe.EnqueueMedia(ctx, upload(userID, "memo3.mp3"))
	if err != nil {
		t.Fatalf("third upload: %v", err)
	}
	if res.Class != quota.ClassPremium {
		t.Fatalf("expected premium class, got %s", res.Class)
	}
	if n, _ := f.quota.GetToday(ctx, userID); n != 1 {
		t.Fatalf("premium upload must not be charged, got %d", n)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != KindOK {
		t.Fatalf("nil error should be OK")
	}
	if KindOf(errors.New("plain")) != KindCollaboratorFailure {
		t.Fatalf("unknown errors default to collaborator failure")
	}
	wrapped := errKind(KindQuotaDenied, nil)
	if KindOf(wrapped) != KindQuotaDenied {
		t.Fatalf("expected quota denied kind")
	}
	// re-tagging an already-classified error keeps the inner kind
	rewrapped := errKind(KindCollaboratorFailure, errKind(KindEmptyTranscription, nil))
	if KindOf(rewrapped) != KindEmptyTranscription {
		t.Fatalf("expected inner kind preserved, got %s", KindOf(rewrapped))
	}
}
