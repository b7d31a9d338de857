//go:build debugNbind
// +build debugNbind

package nstore

import "log"

func debug(args ...interface{}) {
	log.Println(append([]interface{}{"nstore:"}, args...)...)
}
