//go:build unix

package load

import "golang.org/x/sys/unix"

func pageSize() int {
	return unix.Getpagesize()
}
