package invoices

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// maxNumberAttempts bounds invoice number regeneration after collisions.
const maxNumberAttempts = 5

// NumberFunc generates an invoice number from the creation clock.
type NumberFunc func(now time.Time) string

// RandomNumber builds INV-<YYYYMMDD>-<3-digit random suffix>.
func RandomNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%03d", now.Format("20060102"), rand.IntN(1000))
}
