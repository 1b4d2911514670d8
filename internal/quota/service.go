package quota

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/transvox/transvox/internal/models"
)

// Class is the entitlement class of a request.
type Class string

const (
	ClassFree    Class = "free"
	ClassPremium Class = "premium"
	ClassDenied  Class = "denied"
)

// Decision is the outcome of evaluating a user's right to proceed.
type Decision struct {
	Allowed bool
	Class   Class

	// Remaining free requests today; -1 for premium users. Informational
	// only (used by /start), never consulted by the pipeline.
	Remaining int

	// Degraded marks a fail-open decision taken while the store was
	// unreachable. Degraded requests are not accounted.
	Degraded bool
}

// Service is the entitlement resolver: it composes the subscription store
// and the usage ledger into a single free/premium/denied decision.
type Service struct {
	repo      *Repo
	freeLimit int
	duration  time.Duration
	failOpen  bool
	logger    zerolog.Logger

	now func() time.Time
}

func NewService(repo *Repo, freeLimit, durationDays int, failOpen bool, logger zerolog.Logger) *Service {
	if freeLimit < 0 {
		freeLimit = 0
	}
	if durationDays <= 0 {
		durationDays = 30
	}
	return &Service{
		repo:      repo,
		freeLimit: freeLimit,
		duration:  time.Duration(durationDays) * 24 * time.Hour,
		failOpen:  failOpen,
		logger:    logger.With().Str("service", "quota").Logger(),
		now:       time.Now,
	}
}

func (s *Service) today() string {
	return s.now().UTC().Format(DateLayout)
}

// RegisterContact creates or refreshes the user row on any inbound event.
func (s *Service) RegisterContact(ctx context.Context, user *models.User) error {
	return s.repo.UpsertUser(ctx, user)
}

// Evaluate resolves the user's entitlement class. Premium is checked first
// and bypasses the ledger entirely; an expired entitlement is corrected in
// place before the free tier is considered.
func (s *Service) Evaluate(ctx context.Context, userID int64) (Decision, error) {
	sub, err := s.repo.GetOrCreateSubscription(ctx, userID)
	if err != nil {
		return s.degrade(userID, err)
	}

	premium := sub.IsPremium
	if premium && sub.SubscriptionEnd != nil && !sub.SubscriptionEnd.After(s.now()) {
		premium = false
		if err := s.repo.DeactivatePremium(ctx, userID); err != nil {
			// The read path already treats it as expired; the row catches
			// up on the next successful write.
			s.logger.Error().Err(err).Int64("user_id", userID).
				Msg("failed to persist subscription expiry")
		}
	}
	if premium {
		return Decision{Allowed: true, Class: ClassPremium, Remaining: -1}, nil
	}

	count, err := s.repo.GetUsage(ctx, userID, s.today())
	if err != nil {
		return s.degrade(userID, err)
	}
	if count < s.freeLimit {
		return Decision{Allowed: true, Class: ClassFree, Remaining: s.freeLimit - count}, nil
	}
	return Decision{Allowed: false, Class: ClassDenied}, nil
}

func (s *Service) degrade(userID int64, err error) (Decision, error) {
	if !s.failOpen {
		return Decision{}, err
	}
	s.logger.Error().Err(err).Int64("user_id", userID).
		Msg("quota store unreachable, allowing request unaccounted")
	return Decision{Allowed: true, Class: ClassFree, Remaining: s.freeLimit, Degraded: true}, nil
}

// Charge accounts one free-tier request for today and returns the new count.
// Callers must invoke it at most once per accounted request and never for
// premium-classified ones.
func (s *Service) Charge(ctx context.Context, userID int64) (int, error) {
	return s.repo.IncrementUsage(ctx, userID, s.today())
}

// GetToday returns the user's accounted request count for the current day.
func (s *Service) GetToday(ctx context.Context, userID int64) (int, error) {
	return s.repo.GetUsage(ctx, userID, s.today())
}

// ActivatePremium starts (or extends from now) a paid entitlement.
func (s *Service) ActivatePremium(ctx context.Context, userID int64) error {
	start := s.now()
	end := start.Add(s.duration)
	if err := s.repo.ActivatePremium(ctx, userID, start, end); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to activate premium")
		return err
	}
	s.logger.Info().Int64("user_id", userID).Time("until", end).Msg("premium activated")
	return nil
}

// Stats is a snapshot for the ops API.
type Stats struct {
	Users         int64 `json:"users"`
	PremiumUsers  int64 `json:"premium_users"`
	RequestsToday int64 `json:"requests_today"`
}

func (s *Service) Snapshot(ctx context.Context) (Stats, error) {
	users, err := s.repo.CountUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	premium, err := s.repo.CountPremium(ctx)
	if err != nil {
		return Stats{}, err
	}
	today, err := s.repo.SumUsage(ctx, s.today())
	if err != nil {
		return Stats{}, err
	}
	return Stats{Users: users, PremiumUsers: premium, RequestsToday: today}, nil
}
