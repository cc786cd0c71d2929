package entity

import "time"

// Status is the lifecycle state of a QueueItem. Transitions follow a strict
// state machine enforced by the queue engine, never by the entity itself.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// MaxErrorMessageLength bounds error_message so a chatty failure can't grow
// a queue row unboundedly.
const MaxErrorMessageLength = 1024

// TerminalRetryCount is set on items that fail permanently, so that
// retry(max_retries) can never reopen them regardless of max_retries.
const TerminalRetryCount = 1 << 30

// QueueItem is the publication-lifecycle record for one article. Fields not
// relevant to the status machine are denormalized from Article so the
// publisher never needs a join back to the Article Store.
type QueueItem struct {
	ID           int64
	UniqueID     string
	ArticleID    string
	Platform     string
	Title        string
	URL          string
	Content      string
	Category     string
	PublishedAt  *time.Time
	Status       Status
	RetryCount   int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClaimedAt    *time.Time
}

// TruncateErrorMessage bounds msg to MaxErrorMessageLength runes, per the
// edge-case policy that error_message must never grow unbounded.
func TruncateErrorMessage(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxErrorMessageLength {
		return msg
	}
	return string(r[:MaxErrorMessageLength])
}

// NewQueueItem builds a PENDING QueueItem from an Article, as the Enqueue
// Service does before calling Engine.Enqueue.
func NewQueueItem(a *Article, now time.Time) *QueueItem {
	return &QueueItem{
		UniqueID:    a.UniqueID,
		ArticleID:   a.ArticleID,
		Platform:    a.Platform,
		Title:       a.Title,
		URL:         a.URL,
		Content:     a.Content,
		Category:    a.Category,
		PublishedAt: a.PublishedAt,
		Status:      StatusPending,
		RetryCount:  0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
