package workspace

import (
	"math"

	"github.com/ophion/companion/internal/domain/entities"
)

// CategoryColors are the chart colours per category
var CategoryColors = map[entities.Category]string{
	entities.CategoryWork:     "#3b82f6",
	entities.CategoryPersonal: "#8b5cf6",
	entities.CategoryHealth:   "#ec4899",
	entities.CategoryGrowth:   "#10b981",
}

// Progress is the rounded completed percentage, 0 for an empty list
func Progress(tasks []entities.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(tasks))))
}

// CategoryDistribution counts tasks per category, listing every category
func CategoryDistribution(tasks []entities.Task) []entities.CategoryStat {
	counts := make(map[entities.Category]int, len(entities.Categories))
	for _, t := range tasks {
		counts[t.Category]++
	}

	out := make([]entities.CategoryStat, 0, len(entities.Categories))
	for _, c := range entities.Categories {
		out = append(out, entities.CategoryStat{Name: c, Value: counts[c], Color: CategoryColors[c]})
	}
	return out
}
