package optbuilder

import (
	"github.com/cockroachdb/errors"
	"github.com/petermattis/cascades/cat"
	"github.com/petermattis/cascades/opt"
)

// scope maps column names to column IDs. Table columns are reachable by
// their qualified label ("alias.col") and, when unambiguous, by their bare
// name.
type scope struct {
	cols      map[string]opt.ColumnID
	ambiguous map[string]bool
}

func (s *scope) add(name string, col opt.ColumnID) {
	if s.cols == nil {
		s.cols = make(map[string]opt.ColumnID)
		s.ambiguous = make(map[string]bool)
	}
	if _, ok := s.cols[name]; ok {
		s.ambiguous[name] = true
		return
	}
	s.cols[name] = col
}

func (s *scope) addTable(md *opt.Metadata, tab opt.TableID) {
	tbl := md.Table(tab)
	for i := range tbl.Columns {
		col := md.TableColumn(tab, cat.ColumnOrdinal(i))
		s.add(md.ColumnLabel(col), col)
		s.add(string(tbl.Columns[i].Name), col)
	}
}

func (s *scope) resolve(name string) (opt.ColumnID, error) {
	if s.ambiguous[name] {
		return 0, errors.Newf("column reference %q is ambiguous", name)
	}
	col, ok := s.cols[name]
	if !ok {
		return 0, errors.Mark(errors.Newf("column %q does not exist", name), opt.ErrUnresolvedColumn)
	}
	return col, nil
}
