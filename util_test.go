package tlsf

import "testing"

func TestAlignup(t *testing.T) {
	if x := alignUp(0, 8); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	} else if x = alignUp(1, 8); x != 8 {
		t.Errorf("expected %v, got %v", 8, x)
	} else if x = alignUp(8, 8); x != 8 {
		t.Errorf("expected %v, got %v", 8, x)
	} else if x = alignUp(9, 8); x != 16 {
		t.Errorf("expected %v, got %v", 16, x)
	}
	// idempotent, monotone, within one stride.
	for _, align := range []uintptr{4, 8, 64, 2048} {
		for x := uintptr(0); x < 5000; x += 7 {
			up := alignUp(x, align)
			if up < x {
				t.Fatalf("alignUp(%v, %v) = %v went down", x, align, up)
			} else if up-x >= align {
				t.Fatalf("alignUp(%v, %v) = %v overshot", x, align, up)
			} else if again := alignUp(up, align); again != up {
				t.Fatalf("alignUp(%v, %v) not idempotent", x, align)
			}
			down := alignDown(x, align)
			if down > x || x-down >= align || down&(align-1) != 0 {
				t.Fatalf("alignDown(%v, %v) = %v broken", x, align, down)
			}
		}
	}
}

func TestAdjustRequestSize(t *testing.T) {
	if x := adjustRequestSize(0, alignSize); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	if x := adjustRequestSize(1, alignSize); x != blockSizeMin {
		t.Errorf("expected %v, got %v", blockSizeMin, x)
	}
	if x := adjustRequestSize(1024, alignSize); x != 1024 {
		t.Errorf("expected %v, got %v", 1024, x)
	}
	if x := adjustRequestSize(1025, alignSize); x != 1024+alignSize {
		t.Errorf("expected %v, got %v", 1024+alignSize, x)
	}
	if x := adjustRequestSize(blockSizeMax, alignSize); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	if x := adjustRequestSize(blockSizeMax-1, alignSize); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
}

func TestMappingInsert(t *testing.T) {
	// all sizes below smallBlockSize file under first level 0.
	fl, sl := mappingInsert(blockSizeMin)
	if fl != 0 {
		t.Errorf("expected %v, got %v", 0, fl)
	} else if sl != int(blockSizeMin)/(smallBlockSize/slIndexCount) {
		t.Errorf("unexpected %v", sl)
	}
	fl, sl = mappingInsert(smallBlockSize)
	if fl != 1 || sl != 0 {
		t.Errorf("expected (1,0), got (%v,%v)", fl, sl)
	}
	// every size lands inside the table.
	for size := uintptr(blockSizeMin); size < 1<<20; size += alignSize {
		fl, sl := mappingInsert(size)
		if fl < 0 || fl >= flIndexCount || sl < 0 || sl >= slIndexCount {
			t.Fatalf("size %v mapped out of table (%v,%v)", size, fl, sl)
		}
	}
}

func TestMappingSearch(t *testing.T) {
	if ptrSize != 8 {
		t.Skipf("class boundaries below assume 64-bit sizing")
	}
	if fl, sl := mappingSearch(1000); fl != 2 || sl != 31 {
		t.Errorf("expected (2,31), got (%v,%v)", fl, sl)
	}
	if fl, sl := mappingSearch(1500); fl != 3 || sl != 15 {
		t.Errorf("expected (3,15), got (%v,%v)", fl, sl)
	}
	// a block found at the rounded-up class always satisfies the
	// request: the class floor is at or above the request.
	for size := uintptr(smallBlockSize); size < 1<<20; size += 13 * alignSize {
		fl, sl := mappingSearch(size)
		if fl >= flIndexCount {
			continue
		}
		if floor := classfloor(fl, sl); floor < size {
			t.Fatalf("size %v: class (%v,%v) floor %v below request", size, fl, sl, floor)
		}
	}
}

// smallest size that files under (fl,sl).
func classfloor(fl, sl int) uintptr {
	if fl == 0 {
		return uintptr(sl * (smallBlockSize / slIndexCount))
	}
	base := uintptr(1) << uint(fl+flIndexShift-1)
	return base + uintptr(sl)*(base>>slIndexCountLog2)
}
