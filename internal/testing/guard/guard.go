// Package guard forces test mode when imported, so tests can never hit
// live infrastructure through an entrypoint side effect.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SALDOKU_TEST_MODE") == "" {
			_ = os.Setenv("SALDOKU_TEST_MODE", "1")
		}
	})
}
