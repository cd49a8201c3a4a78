package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
	"github.com/vhpx/pleasebuyus-sub000/internal/events"
	"github.com/vhpx/pleasebuyus-sub000/internal/ledger"
)

const publishTimeout = 5 * time.Second

// Publisher announces completed checkouts to other instances.
type Publisher interface {
	PublishCheckoutCompleted(ctx context.Context, ev events.CheckoutCompleted) error
}

type Request struct {
	SessionID string
	UserID    string
}

type Result struct {
	Bill *domain.Bill
}

type BreakerSettings struct {
	// MaxFailures consecutive write failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

type Options struct {
	Currency string
	Breaker  BreakerSettings
}

func DefaultOptions() Options {
	return Options{
		Currency: "USD",
		Breaker: BreakerSettings{
			MaxFailures:      5,
			OpenTimeout:      30 * time.Second,
			HalfOpenRequests: 1,
		},
	}
}

type Service struct {
	carts     *ledger.Registry
	writer    BillWriter
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]
	currency  string
	logger    *zap.Logger
	now       func() time.Time

	sessions sessionLocks
}

// NewService wires checkout. publisher may be nil.
func NewService(carts *ledger.Registry, writer BillWriter, publisher Publisher, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = DefaultOptions().Currency
	}

	maxFailures := opts.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = DefaultOptions().Breaker.MaxFailures
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "bill-writer",
		MaxRequests: opts.Breaker.HalfOpenRequests,
		Timeout:     opts.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// a duplicate is the caller's problem, not a sick database
			return err == nil || errors.Is(err, ErrDuplicateBill)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Service{
		carts:     carts,
		writer:    writer,
		publisher: publisher,
		breaker:   breaker,
		currency:  strings.ToUpper(opts.Currency),
		logger:    logger,
		now:       time.Now,
		sessions:  sessionLocks{locks: make(map[string]*sessionLock)},
	}
}

// Checkout turns the session's cart into a stored bill and empties the cart.
// The cart is only cleared once the bill is stored. Checkouts of one session
// run one at a time, so a repeated submit finds the cart already empty.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrUnauthenticated
	}

	unlock := s.sessions.lock(req.SessionID)
	defer unlock()

	cart, err := s.carts.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	summary := cart.Summary()
	if summary.TotalProducts == 0 {
		return nil, ErrEmptyCart
	}

	bill := s.buildBill(req, summary)
	log := s.logger.With(
		zap.String("bill_id", bill.ID),
		zap.String("session_id", req.SessionID),
		zap.String("user_id", req.UserID),
	)

	_, err = s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.writer.WriteBill(ctx, bill)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn("bill write rejected by breaker", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrBillingUnavailable, err)
		}
		log.Error("bill write failed", zap.Error(err))
		return nil, fmt.Errorf("failed to write bill: %w", err)
	}

	s.publish(ctx, log, bill, summary.TotalProducts)
	cart.Clear(ctx)

	log.Info("checkout completed",
		zap.Int("items", summary.TotalProducts),
		zap.String("total", bill.Total.StringFixed(2)),
	)
	return &Result{Bill: bill}, nil
}

func (s *Service) buildBill(req Request, summary ledger.Summary) *domain.Bill {
	lines := make([]domain.BillLine, 0, len(summary.Lines))
	for _, l := range summary.Lines {
		lines = append(lines, domain.BillLine{
			ProductID:   l.ProductID,
			ProductName: l.Name,
			OutletID:    l.OutletID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal(),
		})
	}

	// shipping and tax are not computed yet
	shipping, tax := decimal.Zero, decimal.Zero

	return &domain.Bill{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Lines:     lines,
		Subtotal:  summary.Total,
		Shipping:  shipping,
		Tax:       tax,
		Total:     summary.Total.Add(shipping).Add(tax),
		Currency:  s.currency,
		Status:    domain.BillStatusCompleted,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
}

func (s *Service) publish(ctx context.Context, log *zap.Logger, bill *domain.Bill, items int) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.PublishCheckoutCompleted(ctx, events.CheckoutCompleted{
		BillID:      bill.ID,
		SessionID:   bill.SessionID,
		UserID:      bill.UserID,
		Total:       bill.Total,
		Currency:    bill.Currency,
		ItemCount:   items,
		CompletedAt: bill.CreatedAt,
	})
	if err != nil {
		log.Warn("checkout event not published", zap.Error(err))
	}
}

type sessionLock struct {
	sync.Mutex
	refs int
}

// sessionLocks is a mutex per session, dropped once nobody holds or waits on it.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

func (l *sessionLocks) lock(sessionID string) func() {
	l.mu.Lock()
	sl, ok := l.locks[sessionID]
	if !ok {
		sl = &sessionLock{}
		l.locks[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}
