package tasklist

import (
	"fmt"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/models"
)

// RenderedPage is what a view layer needs to draw one page of the task table.
// Empty is set for an empty collection; views show an empty-state message
// instead of a table in that case.
type RenderedPage struct {
	Empty       bool                 `json:"empty"`
	Rows        []models.TaskSummary `json:"rows"`
	FirstIndex  int                  `json:"first_index"`
	CurrentPage int                  `json:"current_page"`
	TotalPages  int                  `json:"total_pages"`
	PageSize    int                  `json:"page_size"`
	TotalTasks  int                  `json:"total_tasks"`
	Label       string               `json:"label"`
	HasPrev     bool                 `json:"has_prev"`
	HasNext     bool                 `json:"has_next"`
}

// PageLabel formats the pagination caption.
func PageLabel(current, total int) string {
	return fmt.Sprintf("第 %d 页，共 %d 页", current, total)
}

// Render slices tasks according to p. It does not mutate its inputs.
func Render(tasks []models.TaskSummary, p Pagination) RenderedPage {
	page := RenderedPage{
		CurrentPage: p.CurrentPage,
		TotalPages:  p.TotalPages,
		PageSize:    p.PageSize,
		TotalTasks:  len(tasks),
		Label:       PageLabel(p.CurrentPage, p.TotalPages),
	}
	if len(tasks) == 0 {
		page.Empty = true
		return page
	}

	start, end := p.Bounds(len(tasks))
	page.FirstIndex = start
	page.Rows = make([]models.TaskSummary, end-start)
	copy(page.Rows, tasks[start:end])
	page.HasPrev = p.HasPrev()
	page.HasNext = p.HasNext()
	return page
}
