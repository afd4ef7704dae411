package order

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/streak"
)

// Notification states of a confirmed order.
const (
	NotifyPending = -1
	NotifySent    = 1
)

// Cart is what a customer submits. Exactly one of Class or Store+Branch is set.
type Cart struct {
	Class  string     `json:"class,omitempty"`
	Store  string     `json:"store,omitempty"`
	Branch string     `json:"branch,omitempty"`
	Items  []CartItem `json:"items,omitempty"`
}

type CartItem struct {
	Product  string           `json:"product"`
	Quantity int              `json:"quantity"`
	Options  []SelectedOption `json:"options"`
}

// SelectedOption is the customer's pick for one product option tag.
type SelectedOption struct {
	Tag      string          `json:"tag"`
	Selected []catalog.Value `json:"selected"`
}

// OrderItem is a validated cart line.
type OrderItem struct {
	ProductName string           `json:"productName"`
	Quantity    int              `json:"quantity"`
	Image       string           `json:"image,omitempty"`
	Options     []SelectedOption `json:"options"`
}

// Kind discriminates the order target stored alongside the order.
type Kind string

const (
	KindStore Kind = "store"
	KindClass Kind = "class"
)

// Target is either a StoreTarget or a ClassTarget.
type Target interface {
	Kind() Kind
}

type StoreTarget struct {
	Store  string
	Branch string
	Items  []OrderItem
}

func (StoreTarget) Kind() Kind { return KindStore }

type ClassTarget struct {
	Class string
}

func (ClassTarget) Kind() Kind { return KindClass }

type PendingOrder struct {
	UUID        uuid.UUID
	RequestedBy string
	Vendor      string
	Target      Target
	RequestedAt time.Time
}

type ConfirmedOrder struct {
	PendingOrder
	ConfirmedBy         string
	ConfirmedAt         time.Time
	ScanDay             calendar.Day
	UserStreak          *streak.UserStreak
	StoreStreakDiscount *decimal.Decimal
	NotifyAt            time.Time
	NotifyOk            int
}

// orderJSON is the flat wire shape shared by pending and confirmed orders.
type orderJSON struct {
	UUID                uuid.UUID          `json:"uuid"`
	RequestedBy         string             `json:"requestedBy"`
	Vendor              string             `json:"vendor,omitempty"`
	Store               string             `json:"store,omitempty"`
	Branch              string             `json:"branch,omitempty"`
	Items               []OrderItem        `json:"items,omitempty"`
	Class               string             `json:"class,omitempty"`
	RequestedAt         time.Time          `json:"requestedAt"`
	ConfirmedBy         string             `json:"confirmedBy,omitempty"`
	ConfirmedAt         *time.Time         `json:"confirmedAt,omitempty"`
	ScanDay             calendar.Day       `json:"scanDay,omitempty"`
	UserStreak          *streak.UserStreak `json:"userStreak,omitempty"`
	StoreStreakDiscount *decimal.Decimal   `json:"storeStreakDiscount,omitempty"`
	NotifyAt            *time.Time         `json:"notifyAt,omitempty"`
	NotifyOk            int                `json:"notifyOk,omitempty"`
}

func (p PendingOrder) wire() orderJSON {
	out := orderJSON{
		UUID:        p.UUID,
		RequestedBy: p.RequestedBy,
		Vendor:      p.Vendor,
		RequestedAt: p.RequestedAt,
	}
	switch t := p.Target.(type) {
	case StoreTarget:
		out.Store, out.Branch, out.Items = t.Store, t.Branch, t.Items
	case ClassTarget:
		out.Class = t.Class
	}
	return out
}

func (p PendingOrder) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.wire())
}

func (c ConfirmedOrder) MarshalJSON() ([]byte, error) {
	out := c.PendingOrder.wire()
	out.ConfirmedBy = c.ConfirmedBy
	out.ConfirmedAt = &c.ConfirmedAt
	out.ScanDay = c.ScanDay
	out.UserStreak = c.UserStreak
	out.StoreStreakDiscount = c.StoreStreakDiscount
	out.NotifyAt = &c.NotifyAt
	out.NotifyOk = c.NotifyOk
	return json.Marshal(out)
}

// Filter narrows a vendor's confirmed orders. Empty fields are ignored.
type Filter struct {
	UUID        string
	Branch      string
	RequestedBy string
}

type Paging struct {
	Page     int
	PageSize int
}

func (p Paging) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type Page struct {
	Orders   []ConfirmedOrder `json:"orders"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Total    int64            `json:"total"`
}
