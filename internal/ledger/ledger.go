package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
	"github.com/vhpx/pleasebuyus-sub000/internal/store"
)

const persistTimeout = 5 * time.Second

// Ledger is one shopper's cart. Every method is safe for concurrent use and
// every mutation writes the full cart back to the store before returning.
//
// A failed write is logged and does not undo the mutation: the in-memory
// cart stays authoritative and the next successful write re-syncs it.
type Ledger struct {
	mu     sync.Mutex
	key    string
	store  store.Store
	logger *zap.Logger

	lines []domain.CartLine
	index map[string]int // productID -> position in lines
}

// New returns an empty ledger persisted under key.
func New(st store.Store, key string, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		key:    key,
		store:  st,
		logger: logger.With(zap.String("cart_key", key)),
		index:  make(map[string]int),
	}
}

// Load hydrates a ledger from the store. A missing record yields an empty
// cart; an undecodable one is logged and also yields an empty cart. A failed
// read is returned wrapped in ErrStoreUnavailable, since starting empty would
// overwrite the stored cart on the next mutation.
func Load(ctx context.Context, st store.Store, key string, logger *zap.Logger) (*Ledger, error) {
	l := New(st, key, logger)

	payload, err := st.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return l, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	lines, err := decodeLines(payload)
	if err != nil {
		l.logger.Warn("discarding stored cart", zap.Error(err))
		return l, nil
	}

	for _, line := range lines {
		l.index[line.ProductID] = len(l.lines)
		l.lines = append(l.lines, line)
	}
	return l, nil
}

// Key is the store key the ledger is persisted under.
func (l *Ledger) Key() string {
	return l.key
}

// AddProduct puts quantity units of p into the cart.
//
// A zero quantity means "not specified" and adds one unit. A negative
// quantity leaves the cart unchanged and returns ErrInvalidQuantity.
// When the product is already in the cart its quantity grows by the
// requested amount and the stored name/price snapshot is kept; with
// merge=false the cart is left unchanged and ErrAlreadyInCart is returned.
func (l *Ledger) AddProduct(ctx context.Context, p domain.Product, quantity int, merge bool) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		quantity = 1
	}
	if err := p.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if i, ok := l.index[p.ID]; ok {
		if !merge {
			return ErrAlreadyInCart
		}
		l.lines[i].Quantity += quantity
	} else {
		l.index[p.ID] = len(l.lines)
		l.lines = append(l.lines, domain.NewCartLine(p, quantity))
	}

	l.persist(ctx)
	return nil
}

// RemoveProduct drops the product's line whatever its quantity.
// Removing a product that is not in the cart is a no-op.
func (l *Ledger) RemoveProduct(ctx context.Context, productID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.remove(productID)
	l.persist(ctx)
}

// SetQuantity replaces the quantity of an existing line. A quantity <= 0
// removes the line. It never creates a line: a positive quantity for a
// product not in the cart returns ErrProductNotInCart.
func (l *Ledger) SetQuantity(ctx context.Context, productID string, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if quantity <= 0 {
		l.remove(productID)
		l.persist(ctx)
		return nil
	}

	i, ok := l.index[productID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProductNotInCart, productID)
	}
	l.lines[i].Quantity = quantity

	l.persist(ctx)
	return nil
}

// Clear empties the cart and persists the empty state.
func (l *Ledger) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = nil
	l.index = make(map[string]int)
	l.persist(ctx)
}

// TotalProducts is the number of units in the cart, not the number of lines.
func (l *Ledger) TotalProducts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return totalProducts(l.lines)
}

// Total is the cart subtotal: sum of quantity * unit price.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return total(l.lines)
}

// Lines returns a copy of the lines in insertion order.
func (l *Ledger) Lines() []domain.CartLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.copyLines()
}

// Len is the number of distinct products.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Line returns the line for productID, if present.
func (l *Ledger) Line(productID string) (domain.CartLine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[productID]
	if !ok {
		return domain.CartLine{}, false
	}
	return l.lines[i], true
}

// Summary reads lines and aggregates under one lock so they agree.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines := l.copyLines()
	return Summary{
		Lines:         lines,
		Outlets:       groupByOutlet(lines),
		TotalProducts: totalProducts(lines),
		Total:         total(lines),
	}
}

// LinesByOutlet groups the lines by selling outlet in first-seen order.
func (l *Ledger) LinesByOutlet() []OutletGroup {
	l.mu.Lock()
	defer l.mu.Unlock()
	return groupByOutlet(l.copyLines())
}

func (l *Ledger) remove(productID string) {
	i, ok := l.index[productID]
	if !ok {
		return
	}
	l.lines = append(l.lines[:i], l.lines[i+1:]...)
	delete(l.index, productID)
	for j := i; j < len(l.lines); j++ {
		l.index[l.lines[j].ProductID] = j
	}
}

func (l *Ledger) copyLines() []domain.CartLine {
	out := make([]domain.CartLine, len(l.lines))
	copy(out, l.lines)
	return out
}

// persist must be called with l.mu held so writes reach the store in
// mutation order. The write outlives a cancelled request context.
func (l *Ledger) persist(ctx context.Context) {
	payload, err := encodeLines(l.lines)
	if err != nil {
		l.logger.Error("cart encode failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := l.store.Set(ctx, l.key, payload); err != nil {
		l.logger.Warn("cart persist failed", zap.Error(err))
	}
}

func totalProducts(lines []domain.CartLine) int {
	n := 0
	for _, line := range lines {
		n += line.Quantity
	}
	return n
}

func total(lines []domain.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Subtotal())
	}
	return sum
}
