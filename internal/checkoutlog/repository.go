package checkoutlog

import "context"

// Repository is the port for persisting checkout log entries. The order
// engine depends on this abstraction; a nil Repository disables the log.
type Repository interface {
	// Save appends a row. The table is append-only.
	Save(ctx context.Context, entry *Entry) error
}
