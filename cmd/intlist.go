package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// intList is a comma-separated int flag that tolerates spaces around items,
// so --nums="1000, 10000" parses. Repeating the flag appends.
type intList struct {
	value   *[]int
	changed bool
}

var _ pflag.Value = (*intList)(nil)

func newIntList(p *[]int) *intList { return &intList{value: p} }

func (l *intList) Set(s string) error {
	var out []int
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		n, err := strconv.Atoi(item)
		if err != nil {
			return fmt.Errorf("%q is not an integer", item)
		}
		out = append(out, n)
	}
	if l.changed {
		*l.value = append(*l.value, out...)
	} else {
		*l.value = out
		l.changed = true
	}
	return nil
}

func (l *intList) Type() string { return "ints" }

func (l *intList) String() string {
	if len(*l.value) == 0 {
		return ""
	}
	parts := make([]string, len(*l.value))
	for i, n := range *l.value {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
