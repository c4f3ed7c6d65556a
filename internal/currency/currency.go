// Package currency converts amounts between fiat and crypto symbols. A fiat
// rate lookup is tried first; when it misses, a crypto price lookup is
// consulted in both symbol orders before giving up.
package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/olzhask/aqylbot/internal/session"
)

// ErrPairNotFound means no provider knows the requested pair.
var ErrPairNotFound = errors.New("currency: pair not found")

// RateProvider returns how many units of `to` one unit of `from` is worth.
// Unknown pairs return an error wrapping ErrPairNotFound.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

var directionDelimiters = []string{" в ", " to ", "->", "→", "/"}

// ParseDirection extracts a currency pair from free text like "USD в KZT",
// "btc->usdt" or "EUR/USD". Symbols are trimmed and upper-cased.
func ParseDirection(text string) (session.Direction, bool) {
	text = strings.TrimSpace(text)
	lowered := strings.ToLower(text)
	for _, delim := range directionDelimiters {
		idx := strings.Index(lowered, delim)
		if idx < 0 {
			continue
		}
		from := normalizeSymbol(text[:idx])
		to := normalizeSymbol(text[idx+len(delim):])
		if from == "" || to == "" || from == to {
			return session.Direction{}, false
		}
		return session.Direction{From: from, To: to}, true
	}
	// Bare "USD KZT" also counts as a pair.
	fields := strings.Fields(text)
	if len(fields) == 2 {
		from, to := normalizeSymbol(fields[0]), normalizeSymbol(fields[1])
		if from != "" && to != "" && from != to {
			return session.Direction{From: from, To: to}, true
		}
	}
	return session.Direction{}, false
}

func normalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || len(s) > 6 {
		return ""
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return s
}

// ParseAmount accepts a positive number with dot or comma decimals.
func ParseAmount(text string) (float64, bool) {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// ParseRequest recognizes a full inline request like "10 BTC в USD".
func ParseRequest(text string) (float64, session.Direction, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) < 2 {
		return 0, session.Direction{}, false
	}
	amount, ok := ParseAmount(fields[0])
	if !ok {
		return 0, session.Direction{}, false
	}
	dir, ok := ParseDirection(strings.Join(fields[1:], " "))
	if !ok {
		return 0, session.Direction{}, false
	}
	return amount, dir, true
}

type Converter struct {
	Fiat   RateProvider
	Crypto RateProvider
	Logger *slog.Logger
}

// Convert returns the converted amount and the provider tag that served it.
func (c *Converter) Convert(ctx context.Context, amount float64, dir session.Direction) (float64, string, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if c.Fiat != nil {
		rate, err := c.Fiat.Rate(ctx, dir.From, dir.To)
		if err == nil {
			return amount * rate, "fiat", nil
		}
		if !errors.Is(err, ErrPairNotFound) {
			logger.Warn("currency_fiat_error", "from", dir.From, "to", dir.To, "error", err.Error())
		}
	}

	if c.Crypto != nil {
		price, err := c.Crypto.Rate(ctx, dir.From, dir.To)
		if err == nil {
			return amount * price, "crypto", nil
		}
		if !errors.Is(err, ErrPairNotFound) {
			logger.Warn("currency_crypto_error", "from", dir.From, "to", dir.To, "error", err.Error())
		}
		// Reverse order: a BTC quote in USD also answers USD в BTC.
		price, err = c.Crypto.Rate(ctx, dir.To, dir.From)
		if err == nil && price > 0 {
			return amount / price, "crypto", nil
		}
		if err != nil && !errors.Is(err, ErrPairNotFound) {
			logger.Warn("currency_crypto_error", "from", dir.To, "to", dir.From, "error", err.Error())
		}
	}

	return 0, "", fmt.Errorf("%w: %s/%s", ErrPairNotFound, dir.From, dir.To)
}

// FormatResult renders the user-facing conversion summary.
func FormatResult(amount float64, dir session.Direction, converted float64) string {
	return fmt.Sprintf("%s %s = %s %s",
		trimFloat(amount), dir.From, trimFloat(converted), dir.To)
}

func trimFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
