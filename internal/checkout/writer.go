package checkout

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
)

// BillWriter stores a finished bill. WriteBill must be atomic: either the
// bill and all its lines are stored or nothing is.
type BillWriter interface {
	WriteBill(ctx context.Context, bill *domain.Bill) error
}

// MemoryBillWriter keeps bills in process and logs each one. Used when no
// database is configured.
type MemoryBillWriter struct {
	mu     sync.RWMutex
	bills  map[string]domain.Bill
	logger *zap.Logger
}

func NewMemoryBillWriter(logger *zap.Logger) *MemoryBillWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBillWriter{bills: make(map[string]domain.Bill), logger: logger}
}

func (w *MemoryBillWriter) WriteBill(_ context.Context, bill *domain.Bill) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.bills[bill.ID]; ok {
		return ErrDuplicateBill
	}
	stored := *bill
	stored.Lines = append([]domain.BillLine(nil), bill.Lines...)
	w.bills[bill.ID] = stored

	w.logger.Info("bill recorded",
		zap.String("bill_id", bill.ID),
		zap.String("user_id", bill.UserID),
		zap.Int("lines", len(bill.Lines)),
		zap.String("total", bill.Total.StringFixed(2)),
		zap.String("currency", bill.Currency),
	)
	return nil
}

func (w *MemoryBillWriter) GetBill(_ context.Context, id string) (*domain.Bill, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	b, ok := w.bills[id]
	if !ok {
		return nil, ErrBillNotFound
	}
	return &b, nil
}

func (w *MemoryBillWriter) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.bills)
}
