package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/transvox/transvox/internal/artifact"
	"github.com/transvox/transvox/internal/config"
	"github.com/transvox/transvox/internal/history"
	"github.com/transvox/transvox/internal/quota"
	"github.com/transvox/transvox/internal/session"
	"github.com/transvox/transvox/internal/speech"
)

// FileResolver turns a transport file reference into a downloadable URL.
type FileResolver interface {
	FileURL(ctx context.Context, fileRef string) (string, error)
}

// JobPublisher hands a queued transcription job to the worker fleet.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// Notifier delivers the async half's user-facing updates. Failures carry a
// Kind only; the transport picks the localized wording.
type Notifier interface {
	Transcribing(ctx context.Context, chatID int64, locale string)
	TranscriptionReady(ctx context.Context, chatID int64, locale, transcription string)
	Failed(ctx context.Context, chatID int64, locale string, kind Kind)
}

// MediaReceived is an inbound upload event.
type MediaReceived struct {
	UserID    int64
	ChatID    int64
	FileRef   string
	Filename  string
	SizeBytes int64
	Locale    string
}

// LanguageChosen is the user's target-language selection.
type LanguageChosen struct {
	UserID       int64
	ChatID       int64
	LanguageCode string
	LanguageName string
}

// PaymentConfirmed reports a settled subscription payment.
type PaymentConfirmed struct {
	UserID   int64
	ChargeID string
	Amount   int
	Payload  string
}

type Deps struct {
	Quota       *quota.Service
	Sessions    session.Store
	Locker      session.Locker
	Artifacts   *artifact.Manager
	Transcriber speech.Transcriber
	Translators *speech.Registry
	History     *history.Repo
	Jobs        *JobRepo
	Publisher   JobPublisher
	Files       FileResolver
	Notifier    Notifier
	Logger      zerolog.Logger
}

type Options struct {
	MaxFileSizeBytes  int64
	AudioExtensions   map[string]struct{}
	VideoExtensions   map[string]struct{}
	SessionTTL        time.Duration
	ReplacePolicy     config.ReplacePolicy
	TranslateProvider string
	TranslateModel    string
}

// Pipeline sequences every entry point: entitlement check before any work,
// charge only after a successful transcription, artifact/session teardown on
// every exit path.
type Pipeline struct {
	opts Options
	d    Deps
	log  zerolog.Logger

	now func() time.Time
}

func New(opts Options, d Deps) *Pipeline {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.ReplacePolicy == "" {
		opts.ReplacePolicy = config.ReplaceExisting
	}
	return &Pipeline{
		opts: opts,
		d:    d,
		log:  d.Logger.With().Str("service", "pipeline").Logger(),
		now:  time.Now,
	}
}

// classify maps a filename to "audio", "video", or "" for unsupported.
func (p *Pipeline) classify(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := p.opts.AudioExtensions[ext]; ok {
		return "audio"
	}
	if _, ok := p.opts.VideoExtensions[ext]; ok {
		return "video"
	}
	return ""
}

type EnqueueResult struct {
	JobID string
	Class quota.Class
}

// EnqueueMedia validates an upload, checks entitlement, persists a job, and
// queues it for a worker. Nothing is charged here: the ledger is only
// touched after the transcription actually succeeds.
func (p *Pipeline) EnqueueMedia(ctx context.Context, ev MediaReceived) (*EnqueueResult, error) {
	kind := p.classify(ev.Filename)
	if kind == "" {
		return nil, errKind(KindUnsupportedFormat, nil)
	}
	if p.opts.MaxFileSizeBytes > 0 && ev.SizeBytes > p.opts.MaxFileSizeBytes {
		return nil, errKind(KindFileTooLarge, nil)
	}

	dec, err := p.d.Quota.Evaluate(ctx, ev.UserID)
	if err != nil {
		return nil, errKind(KindStoreUnavailable, err)
	}
	if !dec.Allowed {
		return nil, errKind(KindQuotaDenied, nil)
	}

	if p.opts.ReplacePolicy == config.RejectNew {
		if _, err := p.d.Sessions.Resolve(ctx, ev.UserID); err == nil {
			return nil, errKind(KindSessionBusy, nil)
		}
	}

	job := &Job{
		ID:        NewJobID(),
		UserID:    ev.UserID,
		ChatID:    ev.ChatID,
		FileRef:   ev.FileRef,
		Filename:  ev.Filename,
		FileKind:  kind,
		SizeBytes: ev.SizeBytes,
		Class:     string(dec.Class),
		Locale:    ev.Locale,
		Degraded:  dec.Degraded,
		Status:    JobQueued,
	}
	if err := p.d.Jobs.Create(ctx, job); err != nil {
		return nil, errKind(KindStoreUnavailable, err)
	}
	if err := p.d.Publisher.PublishJob(ctx, job.ID); err != nil {
		if mErr := p.d.Jobs.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
			p.log.Error().Err(mErr).Str("job_id", job.ID).Msg("failed to mark unpublished job")
		}
		return nil, errKind(KindCollaboratorFailure, err)
	}

	p.log.Info().Str("job_id", job.ID).Int64("user_id", ev.UserID).
		Str("class", job.Class).Str("kind", kind).Msg("transcription job queued")
	return &EnqueueResult{JobID: job.ID, Class: dec.Class}, nil
}

// ProcessJob runs the worker half of the media path. An error return means
// the delivery should be nacked; the user has already been told via the
// notifier by then.
func (p *Pipeline) ProcessJob(ctx context.Context, jobID string) error {
	_ = p.d.Jobs.MarkRunning(ctx, jobID)

	job, err := p.d.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == JobSucceeded {
		// redelivered after completion, nothing to do
		return nil
	}

	p.d.Notifier.Transcribing(ctx, job.ChatID, job.Locale)

	if err := p.runTranscription(ctx, job); err != nil {
		if mErr := p.d.Jobs.MarkFailed(ctx, jobID, err.Error()); mErr != nil {
			p.log.Error().Err(mErr).Str("job_id", jobID).Msg("failed to mark job failed")
		}
		p.d.Notifier.Failed(ctx, job.ChatID, job.Locale, KindOf(err))
		return err
	}

	if err := p.d.Jobs.MarkSucceeded(ctx, jobID); err != nil {
		p.log.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job succeeded")
	}
	return nil
}

func (p *Pipeline) runTranscription(ctx context.Context, job *Job) error {
	url, err := p.d.Files.FileURL(ctx, job.FileRef)
	if err != nil {
		return errKind(KindCollaboratorFailure, err)
	}

	art, err := p.d.Artifacts.Download(ctx, url, strings.ToLower(filepath.Ext(job.Filename)))
	if err != nil {
		if errors.Is(err, artifact.ErrTooLarge) {
			return errKind(KindFileTooLarge, err)
		}
		return errKind(KindCollaboratorFailure, err)
	}

	audioPath := art.Path
	if job.FileKind == "video" {
		out := art.SiblingPath("_audio.mp3")
		if err := speech.ExtractAudio(ctx, art.Path, out); err != nil {
			art.Release()
			return errKind(KindCollaboratorFailure, err)
		}
		audioPath = out
	}

	text, err := p.d.Transcriber.Transcribe(ctx, audioPath)
	if audioPath != art.Path {
		// the extracted track is only needed for transcription
		p.d.Artifacts.Adopt(audioPath).Release()
	}
	if err != nil {
		art.Release()
		return errKind(KindCollaboratorFailure, err)
	}
	if strings.TrimSpace(text) == "" {
		art.Release()
		return errKind(KindEmptyTranscription, nil)
	}

	now := p.now()
	sess := session.Session{
		UserID:        job.UserID,
		ChatID:        job.ChatID,
		Transcription: text,
		ArtifactPath:  art.Path,
		FileKind:      job.FileKind,
		StartedAt:     job.CreatedAt,
		CreatedAt:     now,
		ExpiresAt:     now.Add(p.opts.SessionTTL),
	}

	unlock, err := p.d.Locker.Lock(ctx, job.UserID)
	if err != nil {
		art.Release()
		return errKind(KindStoreUnavailable, err)
	}
	replaced, openErr := p.d.Sessions.Open(ctx, sess, p.opts.ReplacePolicy == config.ReplaceExisting)
	unlock()

	if errors.Is(openErr, session.ErrExists) {
		art.Release()
		return errKind(KindSessionBusy, openErr)
	}
	if openErr != nil {
		art.Release()
		return errKind(KindStoreUnavailable, openErr)
	}
	if replaced != nil {
		// the replaced upload's artifact would dangle otherwise
		p.d.Artifacts.Remove(replaced.ArtifactPath)
	}

	// Charge at most once per successfully transcribed free-tier request.
	// The job row claims the charge before the increment, so a redelivery
	// after a crash between charge and ack cannot charge again. Translation
	// failures later never refund this.
	if job.Class == string(quota.ClassFree) && !job.Degraded {
		first, err := p.d.Jobs.MarkCharged(ctx, job.ID)
		if err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to claim ledger charge")
		} else if first {
			if _, err := p.d.Quota.Charge(ctx, job.UserID); err != nil {
				// accounting must not fail a request the user already paid
				// wall-clock time for
				p.log.Error().Err(err).Int64("user_id", job.UserID).Msg("ledger charge failed")
			}
		}
	}

	p.d.Notifier.TranscriptionReady(ctx, job.ChatID, job.Locale, text)
	return nil
}

type TranslationResult struct {
	Translation   string
	Transcription string
	LanguageCode  string
}

// HandleLanguage resolves the live session, translates, records history, and
// tears the session down whether or not translation worked.
func (p *Pipeline) HandleLanguage(ctx context.Context, ev LanguageChosen) (*TranslationResult, error) {
	sess, err := p.d.Sessions.Resolve(ctx, ev.UserID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, errKind(KindSessionExpired, err)
	}
	if err != nil {
		return nil, errKind(KindStoreUnavailable, err)
	}

	translator, err := p.d.Translators.Get(ctx, p.opts.TranslateProvider, p.opts.TranslateModel)
	if err != nil {
		p.teardown(ctx, ev.UserID)
		return nil, errKind(KindCollaboratorFailure, err)
	}

	translated, err := translator.Translate(ctx, sess.Transcription, ev.LanguageName)
	if err != nil || strings.TrimSpace(translated) == "" {
		p.teardown(ctx, ev.UserID)
		return nil, errKind(KindCollaboratorFailure, err)
	}

	rec := &history.Record{
		UserID:            ev.UserID,
		FileKind:          sess.FileKind,
		SourceLanguage:    "auto",
		TargetLanguage:    ev.LanguageCode,
		TranscriptionText: sess.Transcription,
		TranslatedText:    translated,
		ProcessingSeconds: int(p.now().Sub(sess.StartedAt).Seconds()),
	}
	if err := p.d.History.Append(ctx, rec); err != nil {
		// history is observational; losing a row must not fail the request
		p.log.Error().Err(err).Int64("user_id", ev.UserID).Msg("history append failed")
	}

	p.teardown(ctx, ev.UserID)
	return &TranslationResult{
		Translation:   translated,
		Transcription: sess.Transcription,
		LanguageCode:  ev.LanguageCode,
	}, nil
}

// HandleCancel releases the live session without charging or recording
// anything. Cancelling with no session reports the session as gone.
func (p *Pipeline) HandleCancel(ctx context.Context, userID int64) error {
	if _, err := p.d.Sessions.Resolve(ctx, userID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return errKind(KindSessionExpired, err)
		}
		return errKind(KindStoreUnavailable, err)
	}
	p.teardown(ctx, userID)
	return nil
}

// HandlePayment activates the paid entitlement after the platform confirms
// the charge.
func (p *Pipeline) HandlePayment(ctx context.Context, ev PaymentConfirmed) error {
	if err := p.d.Quota.ActivatePremium(ctx, ev.UserID); err != nil {
		return errKind(KindStoreUnavailable, err)
	}
	p.log.Info().Int64("user_id", ev.UserID).Str("charge_id", ev.ChargeID).
		Int("amount", ev.Amount).Msg("subscription payment settled")
	return nil
}

// Entitlement exposes the resolver's decision for informational surfaces
// like /start.
func (p *Pipeline) Entitlement(ctx context.Context, userID int64) (quota.Decision, error) {
	return p.d.Quota.Evaluate(ctx, userID)
}

// teardown closes the session under the per-user lock and releases its
// artifact. It runs on success, failure, and cancel alike.
func (p *Pipeline) teardown(ctx context.Context, userID int64) {
	unlock, err := p.d.Locker.Lock(ctx, userID)
	if err != nil {
		p.log.Error().Err(err).Int64("user_id", userID).Msg("session lock failed during teardown")
		return
	}
	defer unlock()

	sess, err := p.d.Sessions.Close(ctx, userID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			p.log.Error().Err(err).Int64("user_id", userID).Msg("session close failed")
		}
		return
	}
	p.d.Artifacts.Remove(sess.ArtifactPath)
}
