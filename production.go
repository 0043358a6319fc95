//go:build !debug
// +build !debug

package tlsf

const debugtlsf = false

func assertf(cond bool, fmsg string, args ...interface{}) {
}
