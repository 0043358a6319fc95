package lib

import "testing"
import "unsafe"

func TestMemcpy(t *testing.T) {
	src, dst := make([]byte, 100), make([]byte, 100)
	for i := 0; i < len(src); i++ {
		src[i] = byte(i)
	}
	n := Memcpy(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), len(src))
	if n != 100 {
		t.Errorf("expected %v, got %v", 100, n)
	}
	for i := 0; i < len(dst); i++ {
		if dst[i] != byte(i) {
			t.Fatalf("offset %v: expected %v, got %v", i, byte(i), dst[i])
		}
	}
}
