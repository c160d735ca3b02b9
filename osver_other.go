//go:build !(linux || darwin || freebsd)

package dynip

func osVersion() string { return "" }
