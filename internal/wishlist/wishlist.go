package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
	"github.com/vhpx/pleasebuyus-sub000/internal/ledger"
	"github.com/vhpx/pleasebuyus-sub000/internal/store"
)

var (
	ErrNotInWishlist    = errors.New("product not in wishlist")
	ErrInvalidSession   = errors.New("session id is required")
	ErrStoreUnavailable = errors.New("wishlist store is unavailable")
)

func Key(sessionID string) string {
	return "wishlist:" + sessionID
}

// Service keeps one ordered set of saved products per shopper session.
// Unlike carts, wishlists are not cached in memory: every call reads the
// store, so all instances see the same list.
type Service struct {
	store  store.Store
	logger *zap.Logger
	mu     sync.Mutex
}

func NewService(st store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

func (s *Service) Items(ctx context.Context, sessionID string) ([]domain.Product, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	return s.load(ctx, sessionID)
}

func (s *Service) Contains(ctx context.Context, sessionID, productID string) (bool, error) {
	items, err := s.Items(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return indexOf(items, productID) >= 0, nil
}

// Add saves p; adding a product that is already saved is a no-op.
func (s *Service) Add(ctx context.Context, sessionID string, p domain.Product) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if indexOf(items, p.ID) >= 0 {
		return nil
	}
	return s.save(ctx, sessionID, append(items, p))
}

// Remove is idempotent.
func (s *Service) Remove(ctx context.Context, sessionID, productID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	i := indexOf(items, productID)
	if i < 0 {
		return nil
	}
	return s.save(ctx, sessionID, append(items[:i], items[i+1:]...))
}

// MoveToCart adds one unit of the saved product to cart and drops it from
// the wishlist. The saved snapshot is what enters the cart.
func (s *Service) MoveToCart(ctx context.Context, sessionID, productID string, cart *ledger.Ledger) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	i := indexOf(items, productID)
	if i < 0 {
		return ErrNotInWishlist
	}

	if err := cart.AddProduct(ctx, items[i], 1, true); err != nil {
		return err
	}
	return s.save(ctx, sessionID, append(items[:i], items[i+1:]...))
}

type persistedWishlist struct {
	Items   []domain.Product `json:"items"`
	SavedAt time.Time        `json:"saved_at"`
}

// load returns the saved items. A missing or undecodable record is an empty
// list; a failed read is an error so the caller does not save over it.
func (s *Service) load(ctx context.Context, sessionID string) ([]domain.Product, error) {
	payload, err := s.store.Get(ctx, Key(sessionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []domain.Product{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	var pw persistedWishlist
	if err := json.Unmarshal([]byte(payload), &pw); err != nil {
		s.logger.Warn("discarding stored wishlist", zap.String("session_id", sessionID), zap.Error(err))
		return []domain.Product{}, nil
	}
	if pw.Items == nil {
		return []domain.Product{}, nil
	}
	return pw.Items, nil
}

func (s *Service) save(ctx context.Context, sessionID string, items []domain.Product) error {
	data, err := json.Marshal(persistedWishlist{Items: items, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.store.Set(ctx, Key(sessionID), string(data))
}

func indexOf(items []domain.Product, productID string) int {
	for i, p := range items {
		if p.ID == productID {
			return i
		}
	}
	return -1
}
