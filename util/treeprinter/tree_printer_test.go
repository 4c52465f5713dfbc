package treeprinter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrinter(t *testing.T) {
	tp := New()

	tp.Add("root")
	tp.Enter()
	tp.Add("1.1")
	tp.Enter()
	tp.Add("1.1.1")
	tp.Add("1.1.2")
	tp.Enter()
	tp.Add("1.1.2.1")
	tp.Add("1.1.2.2")
	tp.Exit()
	tp.Add("1.1.3")
	tp.Exit()
	tp.Add("1.2")
	tp.Exit()

	exp := `
root
 ├── 1.1
 │    ├── 1.1.1
 │    ├── 1.1.2
 │    │    ├── 1.1.2.1
 │    │    └── 1.1.2.2
 │    └── 1.1.3
 └── 1.2
`
	require.Equal(t, strings.TrimLeft(exp, "\n"), tp.String())
}

func TestPrinterMultiLine(t *testing.T) {
	tp := New()
	tp.Add("root")
	tp.Enter()
	tp.Add("a\ncost: 1")
	tp.Add("b")
	tp.Exit()

	exp := `
root
 ├── a
 │   cost: 1
 └── b
`
	require.Equal(t, strings.TrimLeft(exp, "\n"), tp.String())
}

func TestPrinterUnbalanced(t *testing.T) {
	tp := New()
	require.Panics(t, func() { tp.Exit() })

	tp.Add("root")
	tp.Enter()
	require.Panics(t, func() { _ = tp.String() })
}
