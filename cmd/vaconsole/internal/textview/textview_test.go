package textview

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/models"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/notice"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/tasklist"
)

func TestStringWidth(t *testing.T) {
	assert.Equal(t, 5, StringWidth("hello"))
	assert.Equal(t, 8, StringWidth("高等数学"))
	assert.Equal(t, 6, StringWidth("ab课程"))
	assert.Equal(t, 2, StringWidth("Ａ"))
}

func TestTruncateAndPad(t *testing.T) {
	assert.Equal(t, "高等数学", Truncate("高等数学", 8))
	assert.Equal(t, "高等数…", Truncate("高等数学", 7))
	assert.Equal(t, "高等…", Truncate("高等数学", 6))
	assert.Equal(t, "", Truncate("x", 0))
	assert.Equal(t, "ab…", Truncate("abcdef", 3))

	assert.Equal(t, "课程  ", Pad("课程", 6))
	assert.Equal(t, "课程", Pad("课程", 3))
}

func TestProgressCell(t *testing.T) {
	task := models.TaskSummary{Progress: models.Progress{ProgressPercentage: 40}}
	assert.Equal(t, "████░░░░░░ 40%", ProgressCell(task))

	task.Progress.ProgressPercentage = 130
	assert.Equal(t, strings.Repeat("█", 10)+" 130%", ProgressCell(task))

	task.Progress.ProgressPercentage = 33.3
	assert.True(t, strings.HasSuffix(ProgressCell(task), " 33.3%"))
}

func TestStepCell(t *testing.T) {
	task := models.TaskSummary{Progress: models.Progress{CurrentStep: 2, TotalSteps: 5, CurrentStepName: "语音识别"}}
	assert.Equal(t, "语音识别 步骤 2/5", StepCell(task))
	task.Progress.CurrentStepName = ""
	assert.Equal(t, "-- 步骤 2/5", StepCell(task))
}

func TestRenderTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	page := tasklist.Render(nil, tasklist.NewPagination(10))
	require.NoError(t, RenderTable(&buf, page))
	assert.Contains(t, buf.String(), EmptyTitle)
	assert.NotContains(t, buf.String(), "课程名称")
}

func TestRenderTableAlignsColumns(t *testing.T) {
	tasks := []models.TaskSummary{
		{TaskID: "123456", CourseName: "高等数学", Teacher: "王老师", StudentType: "大一", Status: models.StatusAnalyzing},
		{TaskID: "654321", CourseName: "Linear Algebra", Teacher: "Li", StudentType: "grad", Status: models.StatusCompleted},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, tasklist.Render(tasks, tasklist.NewPagination(10))))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "课程名称"))

	// the task id column starts at the same display offset in every row
	offset := func(line, needle string) int {
		idx := strings.Index(line, needle)
		require.GreaterOrEqual(t, idx, 0)
		return StringWidth(line[:idx])
	}
	assert.Equal(t, offset(lines[0], "任务ID"), offset(lines[2], "123456"))
	assert.Equal(t, offset(lines[2], "123456"), offset(lines[3], "654321"))
	assert.Contains(t, lines[2], "--", "empty upload time renders a placeholder")
}

func TestRenderScreen(t *testing.T) {
	tasks := make([]models.TaskSummary, 25)
	for i := range tasks {
		tasks[i] = models.TaskSummary{TaskID: "t", Status: models.StatusPending}
	}
	p := tasklist.NewPagination(10).Resize(len(tasks))
	p.CurrentPage = 2
	n := notice.Notice{Level: notice.LevelError, Message: "加载任务列表失败: HTTP错误: 500"}

	var buf bytes.Buffer
	require.NoError(t, RenderScreen(&buf, Screen{
		Page:       tasklist.Render(tasks, p),
		Notice:     &n,
		LastUpdate: time.Date(2024, 3, 1, 9, 30, 15, 0, time.Local),
		Hint:       true,
	}))

	out := buf.String()
	assert.Contains(t, out, "最后更新: 09:30:15")
	assert.Contains(t, out, "[error] 加载任务列表失败: HTTP错误: 500")
	assert.Contains(t, out, "第 2 页，共 3 页")
	assert.Contains(t, out, "共 25 个任务")
	assert.Contains(t, out, "[p] 上一页")
	assert.Contains(t, out, "[n] 下一页")
	assert.Contains(t, out, "r 刷新")
}

func TestRenderTask(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTask(&buf, models.TaskSummary{
		TaskID:     "123456",
		CourseName: "高等数学",
		UploadTime: "2024-03-01T09:30:00",
		Status:     models.StatusCompleted,
		Progress:   models.Progress{CurrentStep: 5, TotalSteps: 5, ProgressPercentage: 100},
	}))
	out := buf.String()
	assert.Contains(t, out, "高等数学")
	assert.Contains(t, out, "2024-03-01 09:30")
	assert.Contains(t, out, "分析完成")
	assert.Contains(t, out, "100%")
}
