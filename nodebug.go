//go:build !debugNbind
// +build !debugNbind

package nbind

func debug(args ...interface{}) {}
