// Package guard forces test mode before any package init can start
// runtime side effects. Import it for side effects in TestMain files.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TEMPUS_TEST_MODE") == "" {
			_ = os.Setenv("TEMPUS_TEST_MODE", "1")
		}
	})
}
