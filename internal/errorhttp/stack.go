package errorhttp

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

type hasStack interface {
	StackPCs() []uintptr
}

// stackOf renders the first stack captured in err's chain, innermost frame
// first. It returns "" when nothing in the chain carries one.
func stackOf(err error) string {
	var hs hasStack
	if !errors.As(err, &hs) {
		return ""
	}
	pcs := hs.StackPCs()
	if len(pcs) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs)
	var b strings.Builder
	for {
		fr, more := frames.Next()
		if strings.HasPrefix(fr.Function, "runtime.") {
			break
		}
		if fr.Function != "" {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", fr.Function, fr.File, fr.Line)
		}
		if !more {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
