package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ROLELINK_TEST_MODE") == "" {
			_ = os.Setenv("ROLELINK_TEST_MODE", "1")
		}
	})
}
