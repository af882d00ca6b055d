//go:build !linux
// +build !linux

package reactor

func currentThreadID() int64 { return 0 }
