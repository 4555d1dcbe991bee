package models

import "time"

// CountryTopic is the notification channel state for one country.
type CountryTopic struct {
	Country       string    `gorm:"primaryKey;size:128" json:"country"`
	TopicHandle   string    `gorm:"not null" json:"topic_handle"`
	DisasterCount int       `gorm:"not null;default:0" json:"disaster_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (CountryTopic) TableName() string {
	return "country_topics"
}

type SubscriptionStatus string

const (
	SubscriptionPending      SubscriptionStatus = "pending"
	SubscriptionConfirmed    SubscriptionStatus = "confirmed"
	SubscriptionUnsubscribed SubscriptionStatus = "unsubscribed"
)

// Subscription is one email endpoint subscribed to one country's alerts.
type Subscription struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	UserID             *uint              `gorm:"index" json:"user_id,omitempty"`
	Email              string             `gorm:"size:255;not null;uniqueIndex:idx_subscription_email_country" json:"email"`
	Country            string             `gorm:"size:128;not null;uniqueIndex:idx_subscription_email_country" json:"country"`
	SubscriptionHandle *string            `json:"-"`
	Status             SubscriptionStatus `gorm:"size:16;not null;index" json:"status"`
	SubscribedAt       time.Time          `json:"subscribed_at"`
	ConfirmedAt        *time.Time         `json:"confirmed_at,omitempty"`
}

func (Subscription) TableName() string {
	return "email_subscriptions"
}
