package tlsf

import s "github.com/bnclabs/gosettings"
import sigar "github.com/cloudfoundry/gosigar"

// Defaultsettings for tlsf pool and default values.
//
// "upstream" (string, default: "malloc")
//		Source of the pool's backing buffer. "malloc" obtains the
//		buffer from the host's general allocator, outside the go
//		heap. "heap" obtains it from the go runtime. The package
//		is built with cgo whichever upstream is chosen.
func Defaultsettings() s.Settings {
	return s.Settings{
		"upstream": "malloc",
	}
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}
