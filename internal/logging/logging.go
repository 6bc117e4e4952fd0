// Package logging holds logger helpers shared by the library packages.
package logging

import (
	"io"
	"sync"

	"github.com/google/logger"
)

var discard = sync.OnceValue(func() *logger.Logger {
	return logger.Init("discard", false, false, io.Discard)
})

// OrDiscard returns l, or a logger that drops info and warning output when l
// is nil. Errors still reach stderr.
func OrDiscard(l *logger.Logger) *logger.Logger {
	if l != nil {
		return l
	}
	return discard()
}
