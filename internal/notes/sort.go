package notes

import (
	"sort"

	"github.com/maruel/natural"

	"github.com/starford/notter/internal/models"
)

// sortSummaries orders a listing in place. Titles use natural ordering so
// "Note 2" sorts before "Note 10".
func sortSummaries(list []models.NoteSummary, order models.SortOption) {
	var less func(a, b *models.NoteSummary) bool
	switch order {
	case models.SortTitleAsc:
		less = func(a, b *models.NoteSummary) bool { return natural.Less(a.Title, b.Title) }
	case models.SortTitleDesc:
		less = func(a, b *models.NoteSummary) bool { return natural.Less(b.Title, a.Title) }
	case models.SortCreatedNewest:
		less = func(a, b *models.NoteSummary) bool { return a.Created.After(b.Created) }
	case models.SortCreatedOldest:
		less = func(a, b *models.NoteSummary) bool { return a.Created.Before(b.Created) }
	case models.SortModifiedOldest:
		less = func(a, b *models.NoteSummary) bool { return a.Modified.Before(b.Modified) }
	default:
		less = func(a, b *models.NoteSummary) bool { return a.Modified.After(b.Modified) }
	}
	sort.SliceStable(list, func(i, j int) bool { return less(&list[i], &list[j]) })
}
