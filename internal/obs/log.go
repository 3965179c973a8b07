package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the process-wide line logger. Every entry is a single
// JSON object per line, so log shippers need no multi-line handling.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Event emits one structured line with the standard envelope (ts, level,
// msg) merged over the given fields.
func Event(level, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Printf(`{"ts":%q,"level":"error","msg":"log marshal failed"}`,
			time.Now().UTC().Format(time.RFC3339Nano))
		return
	}
	Logger().Println(string(data))
}

// LogRequest writes the per-request line emitted by the HTTP middleware.
func LogRequest(fields map[string]any) {
	Event("info", "request_complete", fields)
}
