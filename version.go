package pykythe

import (
	"crypto/sha256"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

// computeVersion derives the cache-key version: a fingerprint of the engine
// build (module path, version, VCS revision), the Go runtime identity, the
// bootstrap declaration hash, and the configured environment suffix. For a
// fixed version, resolution is referentially transparent, which is what
// makes cache entries content-addressed rather than merely memoized.
func computeVersion(stubHash, envSuffix string) string {
	h := sha256.New()
	io.WriteString(h, runtime.Version())
	if info, ok := debug.ReadBuildInfo(); ok {
		io.WriteString(h, info.Main.Path)
		io.WriteString(h, info.Main.Version)
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" || setting.Key == "vcs.modified" {
				io.WriteString(h, setting.Key)
				io.WriteString(h, setting.Value)
			}
		}
	}
	io.WriteString(h, stubHash)
	io.WriteString(h, envSuffix)
	return fmt.Sprintf("%x", h.Sum(nil))
}
