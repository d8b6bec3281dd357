package payment

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"
)

const txidAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var txidPattern = regexp.MustCompile(`^PAY_[A-Z0-9]{8}_(\d{13,})$`)

// NewTransactionID returns PAY_<8 random [A-Z0-9]>_<unix millis>
func NewTransactionID() (string, error) {
	return newTransactionID(time.Now())
}

func newTransactionID(now time.Time) (string, error) {
	max := big.NewInt(int64(len(txidAlphabet)))
	random := make([]byte, 8)
	for i := range random {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate transaction id: %w", err)
		}
		random[i] = txidAlphabet[n.Int64()]
	}
	return fmt.Sprintf("PAY_%s_%d", random, now.UnixMilli()), nil
}

// ParseTransactionID validates the format and returns the embedded time
func ParseTransactionID(txid string) (time.Time, error) {
	m := txidPattern.FindStringSubmatch(txid)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTransactionID, txid)
	}
	millis, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTransactionID, txid)
	}
	return time.UnixMilli(millis), nil
}
