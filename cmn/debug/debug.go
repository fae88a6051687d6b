// Package debug provides assertions for conditions that must hold by construction.
package debug

import (
	"fmt"
	"strings"
)

func Assert(cond bool, a ...any) {
	if !cond {
		panic("assertion failed: " + _str(a...))
	}
}

func Assertf(cond bool, format string, a ...any) {
	if !cond {
		panic("assertion failed: " + fmt.Sprintf(format, a...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic("assertion failed: " + err.Error())
	}
}

func _str(a ...any) string {
	if len(a) == 0 {
		return "(no message)"
	}
	sb := &strings.Builder{}
	for i, x := range a {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(sb, "%v", x)
	}
	return sb.String()
}
