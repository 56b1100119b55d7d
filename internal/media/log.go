package media

import (
	"os"

	"github.com/charmbracelet/log"
)

// Diagnostics only: nothing consumer-facing depends on these lines.
var logger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "media",
})

// Verbose switches diagnostic logging between the default (warnings and
// errors) and full debug output, including buffering gap reports.
func Verbose(enabled bool) {
	if enabled {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
}

func init() {
	logger.SetLevel(log.WarnLevel)
}
