package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
)

const formatVersion = 1

type persistedCart struct {
	Version int               `json:"version"`
	Lines   []domain.CartLine `json:"lines"`
}

func encodeLines(lines []domain.CartLine) (string, error) {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	data, err := json.Marshal(persistedCart{Version: formatVersion, Lines: lines})
	if err != nil {
		return "", fmt.Errorf("marshal cart failed: %w", err)
	}
	return string(data), nil
}

// decodeLines rejects anything that would break the cart invariants rather
// than repairing it line by line.
func decodeLines(payload string) ([]domain.CartLine, error) {
	var pc persistedCart
	if err := json.Unmarshal([]byte(payload), &pc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceRead, err)
	}
	if pc.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrPersistenceRead, pc.Version)
	}

	seen := make(map[string]struct{}, len(pc.Lines))
	for _, l := range pc.Lines {
		if l.ProductID == "" {
			return nil, fmt.Errorf("%w: line without product id", ErrPersistenceRead)
		}
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%w: product %s has quantity %d", ErrPersistenceRead, l.ProductID, l.Quantity)
		}
		if l.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: product %s has negative price", ErrPersistenceRead, l.ProductID)
		}
		if _, dup := seen[l.ProductID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %s", ErrPersistenceRead, l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
	}
	return pc.Lines, nil
}
