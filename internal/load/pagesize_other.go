//go:build !unix

package load

import "os"

func pageSize() int {
	return os.Getpagesize()
}
