package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Payment lifecycle facts written to the outbox.
const (
	TypePaymentCaptured = "payment.captured"
	TypePaymentFailed   = "payment.failed"
	TypePaymentPending  = "payment.pending"
	TypePaymentSettled  = "payment.settled"
	TypePaymentReturned = "payment.returned"
	TypeRefundCreated   = "refund.created"
)

// Event describes a payment fact to store in the outbox.
type Event struct {
	MerchantID snowflake.ID
	Type       string
	Payload    map[string]any
	DedupeKey  string
}

type outboxRow struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	MerchantID snowflake.ID      `gorm:"column:merchant_id"`
	EventType  string            `gorm:"column:event_type"`
	Payload    datatypes.JSONMap `gorm:"column:payload"`
	DedupeKey  *string           `gorm:"column:dedupe_key"`
	Published  bool              `gorm:"column:published"`
	CreatedAt  time.Time         `gorm:"column:created_at"`
}

func (outboxRow) TableName() string { return "payment_outbox" }

// Outbox inserts payment events into the payment_outbox table.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutbox(db *gorm.DB, genID *snowflake.Node) *Outbox {
	return &Outbox{db: db, genID: genID}
}

// Publish stores an event using the default database connection.
func (o *Outbox) Publish(ctx context.Context, event Event) error {
	return o.publish(ctx, o.db, event)
}

// PublishTx stores an event using an existing transaction.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	return o.publish(ctx, tx, event)
}

func (o *Outbox) publish(ctx context.Context, db *gorm.DB, event Event) error {
	if o == nil || db == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if event.MerchantID == 0 {
		return errors.New("invalid_merchant_id")
	}
	name := strings.TrimSpace(event.Type)
	if name == "" {
		return errors.New("missing_event_type")
	}

	payload := datatypes.JSONMap{}
	for key, value := range event.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	row := outboxRow{
		ID:         o.genID.Generate(),
		MerchantID: event.MerchantID,
		EventType:  name,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}
	if dedupe := strings.TrimSpace(event.DedupeKey); dedupe != "" {
		row.DedupeKey = &dedupe
	}

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}
