//go:build debug
// +build debug

package tlsf

import "fmt"

const debugtlsf = true

func assertf(cond bool, fmsg string, args ...interface{}) {
	if !cond {
		panic(fmt.Errorf(fmsg, args...))
	}
}
