package spectrum

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the process-wide structured logger every stage writes
// through, mirroring the original's "one timestamped line per second
// per stage" diagnostic output but in the corpus's preferred
// key=value form instead of raw stdout writes.
var Logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "spectrumcore",
})

// SetLogLevel parses one of "debug", "info", "warn", "error" and
// applies it to Logger; an unrecognized name leaves the level
// unchanged and logs a warning.
func SetLogLevel(name string) {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		Logger.Warn("unrecognized log level, keeping current", "requested", name)
		return
	}
	Logger.SetLevel(lvl)
}
