//go:build !debugNbind
// +build !debugNbind

package nstore

func debug(args ...interface{}) {}
