package textsearch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/Aman-CERP/textsearch/internal/logging"
)

var (
	initOnce    sync.Once
	initCleanup func()

	// initErrOut receives the report of a failed Init.
	initErrOut io.Writer = os.Stderr
)

// Init sets up process-wide JSON logging to the default log file. It runs
// once per process; later calls do nothing. A failure is reported on
// stderr and logging stays on slog's default handler.
func Init() {
	initOnce.Do(func() {
		cleanup, err := logging.SetupDefault(logging.DefaultConfig())
		if err != nil {
			_, _ = fmt.Fprintf(initErrOut, "textsearch: logging disabled: %v\n", err)
			return
		}
		initCleanup = cleanup
		slog.Debug("logging_initialized", slog.String("log_file", logging.DefaultLogPath()))
	})
}

// Shutdown flushes and closes the log file opened by Init.
func Shutdown() {
	if initCleanup != nil {
		initCleanup()
		initCleanup = nil
	}
}
