// Telegram delivers webhook updates at-least-once - a slow reply or a 5xx anywhere on the
// path makes the server redeliver the same update later. The dedup marker is the single
// persisted high water mark of the last processed update id per bot. Advancing it is a
// conditional write, never a read followed by an unconditional write.
package dedup

import "context"

// Marker guards the webhook pipeline against duplicate deliveries.
// The stored value per bot is monotonically non decreasing.
type Marker interface {
	// ShouldProcess advances the marker of the bot to updateID when updateID is
	// strictly greater than the stored value, and reports whether the caller should
	// go ahead and process the update. Equal or lower ids are duplicates or late
	// redeliveries - the marker is left untouched and false is returned.
	// A missing marker record counts as the first ever update, never an error.
	ShouldProcess(ctx context.Context, bot string, updateID int64) (bool, error)
}
