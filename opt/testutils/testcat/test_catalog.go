// Package testcat builds catalogs for optimizer tests from YAML schemas.
package testcat

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/petermattis/cascades/cat"
	"github.com/petermattis/cascades/exec"
	"github.com/sirupsen/logrus"
)

// New creates a catalog holding the tables of a YAML schema. It panics if the
// schema is invalid.
func New(schema string) *cat.Catalog {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	e := exec.NewEngine(cat.NewCatalog(), log)
	if _, err := e.LoadSchema(strings.NewReader(schema)); err != nil {
		panic(err)
	}
	return e.Catalog()
}

// JoinSchema returns a schema of n tables named t1..tn. Each table has a
// primary key column k and a value column v. With stats, table ti has
// 100*i rows and v has 10*i distinct values.
func JoinSchema(n int, withStats bool) string {
	var buf bytes.Buffer
	buf.WriteString("tables:\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&buf, "  - name: t%d\n", i)
		buf.WriteString("    columns:\n")
		buf.WriteString("      - {name: k, type: int}\n")
		buf.WriteString("      - {name: v, type: int}\n")
		buf.WriteString("    primary_key: [k]\n")
		if withStats {
			buf.WriteString("    stats:\n")
			fmt.Fprintf(&buf, "      rows: %d\n", 100*i)
			buf.WriteString("      columns:\n")
			fmt.Fprintf(&buf, "        k: {distinct: %d}\n", 100*i)
			fmt.Fprintf(&buf, "        v: {distinct: %d}\n", 10*i)
		}
	}
	return buf.String()
}

// JoinCatalog returns a catalog with the tables of JoinSchema.
func JoinCatalog(n int, withStats bool) *cat.Catalog {
	return New(JoinSchema(n, withStats))
}
