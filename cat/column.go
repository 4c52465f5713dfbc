package cat

type ColumnName string
type ColumnOrdinal int

// ColumnType is the SQL type name of a column. Plan search only needs it for
// display.
type ColumnType string

type Column struct {
	Name    ColumnName
	Type    ColumnType
	NotNull bool
}
