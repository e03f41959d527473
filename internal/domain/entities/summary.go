package entities

// SummarySchema is the fixed column layout of the global phage signal file
var SummarySchema = []string{
	"Contig_id",
	"Nb genes contigs",
	"Fragment",
	"Nb genes",
	"Category",
	"Nb phage hallmark genes",
	"Phage gene enrichment sig",
	"Non-Caudovirales phage gene enrichment sig",
	"Pfam depletion sig",
	"Uncharacterized enrichment sig",
	"Strand switch depletion sig",
	"Short genes enrichment sig",
}

// SummaryRecord is one analyzed sequence from the summary file
type SummaryRecord struct {
	ID string
	// Category is the section the row appeared under, not the row's own category column
	Category string
	// Fields are aligned with SummarySchema
	Fields []string
}

// Field returns the value of the named schema column
func (r *SummaryRecord) Field(name string) (string, bool) {
	for i, col := range SummarySchema {
		if col == name {
			if i < len(r.Fields) {
				return r.Fields[i], true
			}
			return "", false
		}
	}
	return "", false
}

// Len returns the number of populated fields
func (r *SummaryRecord) Len() int {
	n := 0
	for _, f := range r.Fields {
		if f != "" {
			n++
		}
	}
	return n
}
