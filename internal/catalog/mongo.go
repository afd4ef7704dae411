package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collections written by the catalog admin side of the marketplace.
const (
	collectionStores   = "stores"
	collectionBranches = "branches"
	collectionProducts = "products"
	collectionClasses  = "classes"
)

type mongoLookup struct {
	db     *mongo.Database
	prefix string
}

// NewMongoLookup reads catalog documents from db. Collection names are
// "<prefix>_<kind>", lower-cased.
func NewMongoLookup(db *mongo.Database, prefix string) Lookup {
	return &mongoLookup{db: db, prefix: prefix}
}

func (l *mongoLookup) collection(kind string) *mongo.Collection {
	name := kind
	if l.prefix != "" {
		name = l.prefix + "_" + kind
	}
	return l.db.Collection(strings.ToLower(strings.TrimSpace(name)))
}

type storeDoc struct {
	Name           string        `bson:"name"`
	Vendor         string        `bson:"vendor"`
	StreakDiscount bson.RawValue `bson:"streakDiscount"`
}

type branchDoc struct {
	Store string `bson:"store"`
	Name  string `bson:"name"`
}

type valueDoc struct {
	Title string        `bson:"title"`
	Price bson.RawValue `bson:"price"`
}

type optionDoc struct {
	Tag    string     `bson:"tag"`
	Type   string     `bson:"type"`
	Values []valueDoc `bson:"values"`
}

type productDoc struct {
	Store   string      `bson:"store"`
	Branch  string      `bson:"branch"`
	Name    string      `bson:"name"`
	Image   string      `bson:"image"`
	Options []optionDoc `bson:"options"`
}

type classDoc struct {
	Name   string `bson:"name"`
	Vendor string `bson:"vendor"`
}

func (l *mongoLookup) findOne(ctx context.Context, kind string, filter bson.M, out any) error {
	err := l.collection(kind).FindOne(ctx, filter).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		log.Error().Err(err).Str("collection", kind).Msg("catalog: failed to find document")
		return fmt.Errorf("catalog: failed to find %s: %w", kind, err)
	}
	return nil
}

func (l *mongoLookup) Store(ctx context.Context, name string) (*Store, error) {
	return l.store(ctx, bson.M{"name": name})
}

func (l *mongoLookup) VendorStore(ctx context.Context, vendor, name string) (*Store, error) {
	return l.store(ctx, bson.M{"name": name, "vendor": vendor})
}

func (l *mongoLookup) store(ctx context.Context, filter bson.M) (*Store, error) {
	var doc storeDoc
	if err := l.findOne(ctx, collectionStores, filter, &doc); err != nil {
		return nil, err
	}

	store := &Store{Name: doc.Name, Vendor: doc.Vendor}
	if !doc.StreakDiscount.IsZero() && doc.StreakDiscount.Type != bson.TypeNull {
		d, err := decimalFromRaw(doc.StreakDiscount)
		if err != nil {
			log.Warn().Err(err).Str("store", doc.Name).Msg("catalog: ignoring malformed store streak discount")
		} else {
			store.StreakDiscount = &d
		}
	}

	return store, nil
}

func (l *mongoLookup) Branch(ctx context.Context, store, name string) (*Branch, error) {
	var doc branchDoc
	if err := l.findOne(ctx, collectionBranches, bson.M{"name": name, "store": store}, &doc); err != nil {
		return nil, err
	}
	return &Branch{Store: doc.Store, Name: doc.Name}, nil
}

func (l *mongoLookup) Product(ctx context.Context, store, branch, name string) (*Product, error) {
	var doc productDoc
	filter := bson.M{"name": name, "branch": branch, "store": store}
	if err := l.findOne(ctx, collectionProducts, filter, &doc); err != nil {
		return nil, err
	}

	product := &Product{
		Store:   doc.Store,
		Branch:  doc.Branch,
		Name:    doc.Name,
		Image:   doc.Image,
		Options: make([]ProductOption, 0, len(doc.Options)),
	}
	for _, o := range doc.Options {
		option := ProductOption{Tag: o.Tag, Type: OptionType(o.Type), Values: make([]Value, 0, len(o.Values))}
		for _, v := range o.Values {
			price, err := decimalFromRaw(v.Price)
			if err != nil {
				return nil, fmt.Errorf("catalog: product %q option %q value %q: %w", doc.Name, o.Tag, v.Title, err)
			}
			option.Values = append(option.Values, Value{Title: v.Title, Price: price})
		}
		product.Options = append(product.Options, option)
	}

	return product, nil
}

func (l *mongoLookup) Class(ctx context.Context, name string) (*Class, error) {
	return l.class(ctx, bson.M{"name": name})
}

func (l *mongoLookup) VendorClass(ctx context.Context, vendor, name string) (*Class, error) {
	return l.class(ctx, bson.M{"name": name, "vendor": vendor})
}

func (l *mongoLookup) class(ctx context.Context, filter bson.M) (*Class, error) {
	var doc classDoc
	if err := l.findOne(ctx, collectionClasses, filter, &doc); err != nil {
		return nil, err
	}
	return &Class{Name: doc.Name, Vendor: doc.Vendor}, nil
}

// decimalFromRaw accepts the numeric encodings the admin side has written
// over time: doubles, integers, decimal128 and numeric strings.
func decimalFromRaw(v bson.RawValue) (decimal.Decimal, error) {
	switch v.Type {
	case bson.TypeDouble:
		return decimal.NewFromFloat(v.Double()), nil
	case bson.TypeInt32:
		return decimal.NewFromInt32(v.Int32()), nil
	case bson.TypeInt64:
		return decimal.NewFromInt(v.Int64()), nil
	case bson.TypeDecimal128:
		return decimal.NewFromString(v.Decimal128().String())
	case bson.TypeString:
		return decimal.NewFromString(strings.TrimSpace(v.StringValue()))
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric bson type %s", v.Type)
	}
}
