//go:build debugNbind
// +build debugNbind

package nbind

import (
	"fmt"
	"log"
	"path/filepath"
	"runtime"
)

// debug traces binder steps along with the line that asked for them
func debug(args ...interface{}) {
	where := "?"
	if _, file, line, ok := runtime.Caller(1); ok {
		where = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	log.Println(append([]interface{}{"nbind", where}, args...)...)
}
