//go:build !linux

package main

// setRawMode is a no-op off linux; keys then need Enter.
func setRawMode(uintptr) (func(), error) { return func() {}, nil }
