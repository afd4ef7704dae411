package http

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/streak"
)

type SubmitOrderRequest struct {
	Class  string            `json:"class" validate:"max=200"`
	Store  string            `json:"store" validate:"max=200"`
	Branch string            `json:"branch" validate:"max=200"`
	Items  []CartItemRequest `json:"items" validate:"max=100,dive"`
}

type CartItemRequest struct {
	Product  string          `json:"product" validate:"required,max=200"`
	Quantity int             `json:"quantity"`
	Options  []OptionRequest `json:"options" validate:"dive"`
}

type OptionRequest struct {
	Tag      string         `json:"tag"`
	Selected []ValueRequest `json:"selected" validate:"dive"`
}

type ValueRequest struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

func (req SubmitOrderRequest) toCart() order.Cart {
	cart := order.Cart{Class: req.Class, Store: req.Store, Branch: req.Branch}
	for _, item := range req.Items {
		ci := order.CartItem{Product: item.Product, Quantity: item.Quantity}
		for _, opt := range item.Options {
			so := order.SelectedOption{Tag: opt.Tag}
			for _, v := range opt.Selected {
				so.Selected = append(so.Selected, catalog.Value{Title: v.Title, Price: v.Price})
			}
			ci.Options = append(ci.Options, so)
		}
		cart.Items = append(cart.Items, ci)
	}
	return cart
}

type SubmitOrderResponse struct {
	UUID uuid.UUID `json:"uuid"`
}

type SubscribeRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

type StreakRecordsResponse struct {
	Day     calendar.Day    `json:"day"`
	Records []streak.Record `json:"records"`
}
