package export

// Dataset defines tabular export content. Footer, when present, is rendered
// after the rows as a totals line.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	Footer  map[string]string
}

// Column returns the ordered cell values of row.
func (d Dataset) Column(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}
