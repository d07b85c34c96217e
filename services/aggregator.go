package services

import (
	"strings"

	"github/itish2003/rentalqa/models"
)

// sourceSeparator puts two blank lines between merged chunks.
const sourceSeparator = "\n\n\n"

// Aggregate groups retrieved documents by metadata source, keeping the order
// in which each source was first seen. A source with one document passes
// through unchanged; several are joined in retrieval order and keep the
// first document's metadata.
func Aggregate(docs []models.RetrievedDocument) []models.AggregatedSource {
	order := make([]string, 0, len(docs))
	groups := make(map[string][]models.RetrievedDocument, len(docs))
	for _, d := range docs {
		src := d.Metadata.Source()
		if _, seen := groups[src]; !seen {
			order = append(order, src)
		}
		groups[src] = append(groups[src], d)
	}

	out := make([]models.AggregatedSource, 0, len(order))
	for _, src := range order {
		group := groups[src]
		if len(group) == 1 {
			out = append(out, models.AggregatedSource{
				PageContent: group[0].PageContent,
				Metadata:    group[0].Metadata,
			})
			continue
		}
		texts := make([]string, len(group))
		for i, d := range group {
			texts[i] = d.PageContent
		}
		out = append(out, models.AggregatedSource{
			PageContent: strings.Join(texts, sourceSeparator),
			Metadata:    group[0].Metadata,
		})
	}
	return out
}
