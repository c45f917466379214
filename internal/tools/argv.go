package tools

import (
	"os"
	"sync"
)

// StageArgs installs a copy of args as os.Args and returns a func that puts
// back whatever os.Args held at the time of the call. The returned func is
// safe to call more than once; only the first call restores.
func StageArgs(args []string) (restore func()) {
	saved := os.Args
	os.Args = append([]string(nil), args...)

	var once sync.Once
	return func() {
		once.Do(func() {
			os.Args = saved
		})
	}
}
