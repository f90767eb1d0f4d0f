package hooks

import (
	"runtime"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const modulePrefix = "osio-iosched/"

// contextHook stamps each entry with the file:line of the code that logged it.
type contextHook struct{}

func NewContextHook() log.Hook {
	return contextHook{}
}

func (hook contextHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook contextHook) Fire(entry *log.Entry) error {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "sirupsen/logrus") && !strings.Contains(frame.File, "context_hook.go") {
			entry.Data["file:line"] = trimFile(frame.File) + ":" + strconv.Itoa(frame.Line)
			return nil
		}
		if !more {
			return nil
		}
	}
}

func trimFile(file string) string {
	if i := strings.LastIndex(file, modulePrefix); i >= 0 {
		return file[i+len(modulePrefix):]
	}
	return file
}
