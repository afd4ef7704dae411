package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/catalog"
)

// ValidatedCart is a cart that passed every catalog check.
type ValidatedCart struct {
	Vendor string
	Target Target
}

// ValidateCart resolves the cart against the catalog and normalizes its items.
// It performs no writes.
func ValidateCart(ctx context.Context, lookup catalog.Lookup, cart Cart) (*ValidatedCart, error) {
	hasStore := cart.Store != "" || cart.Branch != ""
	if cart.Class != "" && hasStore {
		return nil, invalid("order must name either a class or a store, not both")
	}

	if cart.Class != "" {
		class, err := lookup.Class(ctx, cart.Class)
		if err != nil {
			return nil, lookupErr(err, "class %q", cart.Class)
		}
		return &ValidatedCart{Vendor: class.Vendor, Target: ClassTarget{Class: class.Name}}, nil
	}

	if cart.Store == "" || cart.Branch == "" {
		return nil, invalid("order must name a class or a store and branch")
	}

	store, err := lookup.Store(ctx, cart.Store)
	if err != nil {
		return nil, lookupErr(err, "store %q", cart.Store)
	}
	if _, err := lookup.Branch(ctx, cart.Store, cart.Branch); err != nil {
		return nil, lookupErr(err, "branch %q of store %q", cart.Branch, cart.Store)
	}

	if len(cart.Items) == 0 {
		return nil, invalid("order items required")
	}

	items := make([]OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.Product == "" {
			return nil, invalid("item product required")
		}
		product, err := lookup.Product(ctx, cart.Store, cart.Branch, item.Product)
		if err != nil {
			return nil, lookupErr(err, "product %q of %s/%s", item.Product, cart.Store, cart.Branch)
		}

		orderItem, err := ValidateItem(product, item)
		if err != nil {
			return nil, err
		}
		items = append(items, orderItem)
	}

	return &ValidatedCart{
		Vendor: store.Vendor,
		Target: StoreTarget{Store: cart.Store, Branch: cart.Branch, Items: items},
	}, nil
}

func lookupErr(err error, what string, args ...any) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return notFound(what, args...)
	}
	return fmt.Errorf("service: failed to look up %s: %w", fmt.Sprintf(what, args...), err)
}

// ValidateItem checks one cart line against its product's option schema.
// Selected values in the result are the catalog's own values.
func ValidateItem(product *catalog.Product, item CartItem) (OrderItem, error) {
	if item.Quantity <= 0 {
		return OrderItem{}, invalidOption("item quantity must be a positive integer", product.Name, "")
	}
	if len(item.Options) == 0 {
		return OrderItem{}, invalidOption("item options required", product.Name, "")
	}
	if len(product.Options) == 0 {
		return OrderItem{}, invalidOption("product declares no options", product.Name, "")
	}

	declared := make(map[string]catalog.ProductOption, len(product.Options))
	for _, po := range product.Options {
		declared[po.Tag] = po
	}

	seen := make(map[string]struct{}, len(item.Options))
	options := make([]SelectedOption, 0, len(item.Options))

	for _, opt := range item.Options {
		if opt.Tag == "" {
			return OrderItem{}, invalidOption("option tag required", product.Name, "")
		}
		if _, dup := seen[opt.Tag]; dup {
			return OrderItem{}, invalidOption("duplicate option tag", product.Name, opt.Tag)
		}
		seen[opt.Tag] = struct{}{}

		po, ok := declared[opt.Tag]
		if !ok {
			return OrderItem{}, invalidOption("unknown option tag", product.Name, opt.Tag)
		}

		switch po.Type {
		case catalog.OptionOneOf:
			if len(opt.Selected) != 1 {
				return OrderItem{}, invalidOption("oneOf option requires exactly one selected value", product.Name, opt.Tag)
			}
		case catalog.OptionManyOf:
			if len(opt.Selected) == 0 {
				return OrderItem{}, invalidOption("manyOf option requires at least one selected value", product.Name, opt.Tag)
			}
		default:
			return OrderItem{}, invalidOption(fmt.Sprintf("unsupported option type %q", po.Type), product.Name, opt.Tag)
		}

		selected, err := matchValues(product.Name, po, opt.Selected)
		if err != nil {
			return OrderItem{}, err
		}
		options = append(options, SelectedOption{Tag: po.Tag, Selected: selected})
	}

	for _, po := range product.Options {
		if _, ok := seen[po.Tag]; !ok {
			return OrderItem{}, invalidOption("option not found", product.Name, po.Tag)
		}
	}

	return OrderItem{
		ProductName: product.Name,
		Quantity:    item.Quantity,
		Image:       product.Image,
		Options:     options,
	}, nil
}

func matchValues(productName string, po catalog.ProductOption, picked []catalog.Value) ([]catalog.Value, error) {
	out := make([]catalog.Value, 0, len(picked))

	for _, sel := range picked {
		idx := -1
		for i, v := range po.Values {
			if v.Matches(sel) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, invalidOption("selected value not offered by product", productName, po.Tag)
		}
		out = append(out, po.Values[idx])
	}

	return out, nil
}
