package treeprinter

import (
	"fmt"
	"strings"
)

// Printer pretty-prints a tree:
//
//	root
//	 ├── child1
//	 │    ├── grandchild1
//	 │    └── grandchild2
//	 └── child2
//
// Entries are added in depth-first order. Enter makes the following entries
// children of the last added entry, and Exit returns to the parent level.
type Printer struct {
	level int

	// Rows accumulated so far. When a new sibling is added we may have to go
	// back up and draw the vertical edge connecting it to its predecessor.
	rows [][]rune

	// The index of the last row for a given level, or -1.
	lastEntry []int
}

func New() *Printer {
	return &Printer{lastEntry: make([]int, 1, 4)}
}

// Enter indicates that entries that follow are children of the last entry.
// Each Enter() call must be paired with a subsequent Exit() call.
func (p *Printer) Enter() {
	p.level++
	p.lastEntry = append(p.lastEntry, -1)
}

// Exit is the reverse of Enter.
func (p *Printer) Exit() {
	if p.level == 0 {
		panic("treeprinter: Exit without Enter")
	}
	p.level--
	p.lastEntry = p.lastEntry[:len(p.lastEntry)-1]
}

func (p *Printer) Addf(format string, args ...interface{}) {
	p.Add(fmt.Sprintf(format, args...))
}

// Add appends an entry at the current level. Multi-line entries are indented
// so that continuation lines stay beneath the entry.
func (p *Printer) Add(entry string) {
	lines := strings.Split(entry, "\n")
	indent := 5 * p.level
	for n, line := range lines {
		row := make([]rune, 0, indent+len(line))
		for i := 0; i < indent; i++ {
			row = append(row, ' ')
		}
		if p.level > 0 {
			if n == 0 {
				copy(row[indent-5:], []rune(" └── "))
			}
		}
		row = append(row, []rune(line)...)

		if n == 0 {
			// Connect to the previous sibling.
			if p.level > 0 && p.lastEntry[p.level] != -1 {
				col := indent - 4
				prev := p.lastEntry[p.level]
				p.rows[prev][col] = '├'
				for i := prev + 1; i < len(p.rows); i++ {
					if col < len(p.rows[i]) && p.rows[i][col] == ' ' {
						p.rows[i][col] = '│'
					}
				}
			}
			p.lastEntry[p.level] = len(p.rows)
		}
		p.rows = append(p.rows, row)
	}
}

func (p *Printer) String() string {
	if p.level != 0 {
		panic("treeprinter: Enter without Exit")
	}
	var buf strings.Builder
	for _, r := range p.rows {
		buf.WriteString(strings.TrimRight(string(r), " "))
		buf.WriteByte('\n')
	}
	return buf.String()
}
