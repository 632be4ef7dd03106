package service

import (
	"fmt"
	"math/rand"
	"time"
)

// maxOrderNumberAttempts bounds the retries on an order number clash.
const maxOrderNumberAttempts = 5

// OrderNumberFunc produces a candidate order number for the given instant.
type OrderNumberFunc func(now time.Time) string

// GenerateOrderNumber returns ORD-{YY}{MM}-{last 6 digits of the unix
// millisecond clock}{3 random digits}.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%06d%03d",
		now.Format("0601"),
		now.UnixMilli()%1_000_000,
		rand.Intn(1000),
	)
}
