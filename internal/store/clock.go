package store

import (
	"time"

	"github.com/roach88/kiosk/internal/ir"
)

// TimeLayout is the stored form of created_at and updated_at. The width is
// fixed, so string order equals time order and the columns work as cursor keys.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Clock supplies timestamps for documents that lack them.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// FormatTime renders t in TimeLayout, in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// IDGenerator supplies ids for documents that lack them.
type IDGenerator interface {
	NewID(kind ir.Kind) string
}

type uuidIDs struct{}

func (uuidIDs) NewID(kind ir.Kind) string { return ir.NewID(kind) }
