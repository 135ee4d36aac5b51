package vibeagent

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/davecgh/go-spew/spew"
)

// dumpConfig keeps run dumps diffable: map keys sorted, no pointer addresses.
var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	MaxDepth:                8,
}

// Dump pretty-prints values to stderr prefixed with the caller's file and line.
func Dump(v ...any) {
	_, file, line, _ := runtime.Caller(1)
	fdump(os.Stderr, fmt.Sprintf("%s:%d:", file, line), v...)
}

func fdump(w io.Writer, prefix string, v ...any) {
	args := append([]any{prefix}, v...)
	dumpConfig.Fdump(w, args...)
}
