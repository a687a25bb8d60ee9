package core

// DBOrdering is a single ORDER BY term, API-agnostic so handlers can pass
// orderings down to the storage layer without knowing the SQL dialect.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
