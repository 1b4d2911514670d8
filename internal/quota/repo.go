package quota

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/transvox/transvox/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// UpsertUser creates the user on first contact and refreshes display
// metadata on every later one.
func (r *Repo) UpsertUser(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "first_name", "language_code", "updated_at",
		}),
	}).Create(u).Error
}

func (r *Repo) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreateSubscription returns the user's subscription row, creating a
// default non-premium one if this is the first entitlement evaluation.
// Safe under concurrent callers: the insert ignores conflicts.
func (r *Repo) GetOrCreateSubscription(ctx context.Context, userID int64) (*Subscription, error) {
	var sub Subscription
	err := r.db.WithContext(ctx).First(&sub, "user_id = ?", userID).Error
	if err == nil {
		return &sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sub = Subscription{UserID: userID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&sub).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).First(&sub, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// ActivatePremium upserts an active entitlement running from start to end.
func (r *Repo) ActivatePremium(ctx context.Context, userID int64, start, end time.Time) error {
	sub := Subscription{
		UserID:            userID,
		IsPremium:         true,
		SubscriptionStart: &start,
		SubscriptionEnd:   &end,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"is_premium", "subscription_start", "subscription_end", "updated_at",
		}),
	}).Create(&sub).Error
}

// DeactivatePremium persists the lazy-expiry correction.
func (r *Repo) DeactivatePremium(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Model(&Subscription{}).
		Where("user_id = ?", userID).
		Update("is_premium", false).Error
}

// IncrementUsage atomically bumps the (user, day) counter, creating the row
// on the first accounted request of the day. The read-back runs after the
// upsert, so the returned count is at least the value this increment
// produced.
func (r *Repo) IncrementUsage(ctx context.Context, userID int64, day string) (int, error) {
	row := DailyUsage{UserID: userID, UsageDate: day, RequestsCount: 1}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "usage_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"requests_count": gorm.Expr("requests_count + 1"),
		}),
	}).Create(&row).Error
	if err != nil {
		return 0, err
	}
	return r.GetUsage(ctx, userID, day)
}

// GetUsage returns the counter for the given day; a missing row reads as 0.
func (r *Repo) GetUsage(ctx context.Context, userID int64, day string) (int, error) {
	var row DailyUsage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND usage_date = ?", userID, day).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.RequestsCount, nil
}

// CountPremium reports how many users currently hold the premium flag.
func (r *Repo) CountPremium(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Subscription{}).
		Where("is_premium = ?", true).
		Count(&n).Error
	return n, err
}

// SumUsage totals accounted requests across all users for one day.
func (r *Repo) SumUsage(ctx context.Context, day string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&DailyUsage{}).
		Where("usage_date = ?", day).
		Select("COALESCE(SUM(requests_count), 0)").
		Scan(&total).Error
	return total, err
}

// CountUsers reports the size of the user registry.
func (r *Repo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}
