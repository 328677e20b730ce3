package slide

import (
	"log"
	"os"
	"strings"
	"sync"
)

// DebugFlag selects a category of diagnostic logging, enabled by
// listing its name in the GOSLIDE_DEBUG environment variable
// (comma-separated).
type DebugFlag string

const (
	// DebugDetection logs each format's rejection reason while
	// probing a file.
	DebugDetection DebugFlag = "detection"
)

var debugFlags = sync.OnceValue(func() map[DebugFlag]bool {
	flags := make(map[DebugFlag]bool)
	for _, f := range strings.Split(os.Getenv("GOSLIDE_DEBUG"), ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			flags[DebugFlag(f)] = true
		}
	}
	return flags
})

func debugf(flag DebugFlag, format string, args ...any) {
	if debugFlags()[flag] {
		log.Printf("slide: "+format, args...)
	}
}
