package quota

import "time"

// DateLayout is the calendar-day key format for the usage ledger.
const DateLayout = "2006-01-02"

// Subscription holds a user's paid entitlement. A row is created lazily (as
// non-premium) the first time the user's entitlement is evaluated and is
// never deleted. A past SubscriptionEnd is corrected to non-premium on read.
type Subscription struct {
	UserID            int64      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	IsPremium         bool       `gorm:"not null;default:false" json:"is_premium"`
	SubscriptionStart *time.Time `json:"subscription_start"`
	SubscriptionEnd   *time.Time `json:"subscription_end"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string { return "user_subscriptions" }

// DailyUsage counts accounted requests per user and calendar day. Rows are
// created on the first accounted request of the day and only ever
// incremented.
type DailyUsage struct {
	UserID        int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	UsageDate     string    `gorm:"primaryKey;type:varchar(10)" json:"usage_date"`
	RequestsCount int       `gorm:"not null;default:0" json:"requests_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func (DailyUsage) TableName() string { return "daily_usage" }
