// Package textview draws the task list for terminals.
package textview

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/models"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/notice"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/tasklist"
)

const (
	// EmptyTitle 空列表提示
	EmptyTitle = "暂无分析任务"
	// EmptyHint 空列表下的操作提示
	EmptyHint = "使用 upload 命令或网页上传页面开始第一个分析任务"

	barWidth = 10
)

type column struct {
	title string
	max   int
	cell  func(models.TaskSummary) string
}

var columns = []column{
	{"课程名称", 24, func(t models.TaskSummary) string { return models.OrPlaceholder(t.CourseName) }},
	{"任务ID", 10, func(t models.TaskSummary) string { return models.OrPlaceholder(t.TaskID) }},
	{"授课教师", 12, func(t models.TaskSummary) string { return models.OrPlaceholder(t.Teacher) }},
	{"授课对象", 16, func(t models.TaskSummary) string { return models.OrPlaceholder(t.StudentType) }},
	{"上传时间", 16, func(t models.TaskSummary) string { return t.DisplayUploadTime() }},
	{"当前步骤", 24, StepCell},
	{"进度", 18, ProgressCell},
	{"剩余时间", 10, func(t models.TaskSummary) string { return models.OrPlaceholder(t.Progress.EstimatedRemaining) }},
	{"状态", 8, func(t models.TaskSummary) string { return string(t.Status) }},
}

// StepCell 形如 "语音识别 步骤 2/5"
func StepCell(t models.TaskSummary) string {
	return fmt.Sprintf("%s 步骤 %d/%d",
		models.OrPlaceholder(t.Progress.CurrentStepName), t.Progress.CurrentStep, t.Progress.TotalSteps)
}

// ProgressCell 进度条按限制后的百分比绘制，数字显示原始值
func ProgressCell(t models.TaskSummary) string {
	filled := int(t.Progress.ClampedPercentage()/100*barWidth + 0.5)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return bar + " " + FormatPercent(t.Progress.ProgressPercentage)
}

// FormatPercent 去掉多余的小数位，例如 40 -> "40%", 33.3 -> "33.3%"
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}

// RenderTable 输出当前页表格；空列表输出空状态提示
func RenderTable(w io.Writer, page tasklist.RenderedPage) error {
	if page.Empty {
		_, err := fmt.Fprintf(w, "%s\n%s\n", EmptyTitle, EmptyHint)
		return err
	}

	cells := make([][]string, len(page.Rows))
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = StringWidth(c.title)
	}
	for r, task := range page.Rows {
		cells[r] = make([]string, len(columns))
		for i, c := range columns {
			v := Truncate(c.cell(task), c.max)
			cells[r][i] = v
			if sw := StringWidth(v); sw > widths[i] {
				widths[i] = sw
			}
		}
	}

	var b strings.Builder
	writeRow := func(vals []string) {
		for i, v := range vals {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(vals)-1 {
				b.WriteString(v)
			} else {
				b.WriteString(Pad(v, widths[i]))
			}
		}
		b.WriteByte('\n')
	}

	titles := make([]string, len(columns))
	rules := make([]string, len(columns))
	for i, c := range columns {
		titles[i] = c.title
		rules[i] = strings.Repeat("-", widths[i])
	}
	writeRow(titles)
	writeRow(rules)
	for _, row := range cells {
		writeRow(row)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Footer 分页说明和可用的翻页方向
func Footer(page tasklist.RenderedPage) string {
	parts := []string{page.Label, fmt.Sprintf("共 %d 个任务", page.TotalTasks)}
	if page.HasPrev {
		parts = append(parts, "[p] 上一页")
	}
	if page.HasNext {
		parts = append(parts, "[n] 下一页")
	}
	return strings.Join(parts, "  ")
}

// Screen 是 watch 模式一次完整重绘所需的内容
type Screen struct {
	Page       tasklist.RenderedPage
	Notice     *notice.Notice
	LastUpdate time.Time
	Hint       bool
}

// RenderScreen 输出标题、通知、表格和分页信息
func RenderScreen(w io.Writer, s Screen) error {
	var b strings.Builder
	b.WriteString("视频分析任务列表")
	if !s.LastUpdate.IsZero() {
		b.WriteString("    最后更新: " + s.LastUpdate.Format("15:04:05"))
	}
	b.WriteString("\n\n")
	if s.Notice != nil {
		fmt.Fprintf(&b, "[%s] %s\n\n", s.Notice.Level, s.Notice.Message)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if err := RenderTable(w, s.Page); err != nil {
		return err
	}

	footer := "\n" + Footer(s.Page) + "\n"
	if s.Hint {
		footer += "命令: n 下一页, p 上一页, <页码> 跳转, r 刷新, q 退出\n"
	}
	_, err := io.WriteString(w, footer)
	return err
}

// RenderTask 输出单个任务的详情
func RenderTask(w io.Writer, t models.TaskSummary) error {
	rows := [][2]string{
		{"任务ID", models.OrPlaceholder(t.TaskID)},
		{"课程名称", models.OrPlaceholder(t.CourseName)},
		{"授课教师", models.OrPlaceholder(t.Teacher)},
		{"授课对象", models.OrPlaceholder(t.StudentType)},
		{"上传时间", t.DisplayUploadTime()},
		{"状态", string(t.Status)},
		{"当前步骤", StepCell(t)},
		{"进度", ProgressCell(t)},
		{"剩余时间", models.OrPlaceholder(t.Progress.EstimatedRemaining)},
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(Pad(r[0], 10))
		b.WriteString(r[1])
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
