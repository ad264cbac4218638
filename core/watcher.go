package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is a single price update for a symbol. Ticks are ephemeral:
// they are produced by the feed connection, fanned out once and dropped.
type PriceTick struct {
	Symbol    string
	Price     decimal.Decimal
	Timestamp int64
}

// Condition determines on which side of the target price an alert fires
type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

// Valid reports whether the condition is one of the known values
func (c Condition) Valid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

// WatcherKind discriminates the two watcher families sharing the
// subscription machinery
type WatcherKind string

const (
	KindAlert WatcherKind = "alert"
	KindOrder WatcherKind = "order"
)

// OrderStatus tracks the order lifecycle. Terminal states are kept
// distinct so a failed execution is not indistinguishable from a fill.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusTriggered OrderStatus = "triggered"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Alert is a price-threshold notification rule. Alerts are never deleted
// physically; deactivation flips the Active flag and keeps the row for
// audit history.
type Alert struct {
	ID          int64           `db:"id" json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID     int64           `db:"owner_id" json:"owner_id"`
	Symbol      string          `db:"symbol" json:"symbol"`
	TargetPrice decimal.Decimal `db:"target_price" json:"target_price" gorm:"type:text"`
	Condition   Condition       `db:"condition" json:"condition"`
	Active      bool            `db:"active" json:"active"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ShouldTrigger reports whether the alert condition holds for price
func (a *Alert) ShouldTrigger(price decimal.Decimal) bool {
	switch a.Condition {
	case ConditionAbove:
		return price.GreaterThanOrEqual(a.TargetPrice)
	case ConditionBelow:
		return price.LessThanOrEqual(a.TargetPrice)
	}
	return false
}

// Order is a standing limit order: when the output token's price falls to
// or below LimitPrice, InputAmount of the input token is swapped for the
// output token on the owner's behalf.
type Order struct {
	ID           int64           `db:"id" json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID      int64           `db:"owner_id" json:"owner_id"`
	InputMint    string          `db:"input_mint" json:"input_mint"`
	InputSymbol  string          `db:"input_symbol" json:"input_symbol"`
	OutputMint   string          `db:"output_mint" json:"output_mint"`
	OutputSymbol string          `db:"output_symbol" json:"output_symbol"`
	LimitPrice   decimal.Decimal `db:"limit_price" json:"limit_price" gorm:"type:text"`
	InputAmount  decimal.Decimal `db:"input_amount" json:"input_amount" gorm:"type:text"`
	Active       bool            `db:"active" json:"active"`
	Status       OrderStatus     `db:"status" json:"status"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ShouldTrigger reports whether the order should execute at the given
// output-token price
func (o *Order) ShouldTrigger(price decimal.Decimal) bool {
	return price.LessThanOrEqual(o.LimitPrice)
}

// PriceFeed is one entry of the provider's symbol catalog, mapping a
// human symbol to the opaque feed account carried on wire frames.
type PriceFeed struct {
	Symbol         string `json:"symbol"`
	FeedAccount    string `json:"priceFeedAccount"`
	ProductAccount string `json:"productAccount"`
}

// TokenMetadata describes a tradable token as returned by the metadata
// resolver.
type TokenMetadata struct {
	MintAddress string `json:"mintAddress"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    int32  `json:"decimals"`
}
