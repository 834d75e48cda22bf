package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync/atomic"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/models"
)

// multipart 字段名，与后端上传接口约定一致
const (
	FieldCourseName  = "courseName"
	FieldTeacher     = "teacher"
	FieldStudentType = "studentType"
	FieldVideo       = "video"
	FieldOutline     = "outline"
)

// UploadFile 待上传的文件
type UploadFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// ProgressFunc 上传进度回调，total 为全部文件字节数之和
type ProgressFunc func(sent, total int64)

// UploadRequest 上传表单
type UploadRequest struct {
	CourseName  string
	Teacher     string
	StudentType string
	Video       UploadFile
	Outline     *UploadFile // 可选
	OnProgress  ProgressFunc
}

// Upload 以 multipart 流式提交视频和教案，返回后端生成的任务信息
func (c *Client) Upload(ctx context.Context, up UploadRequest) (*models.UploadResult, error) {
	if up.Video.Reader == nil {
		return nil, errors.New("video file is required")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	total := up.Video.Size
	if up.Outline != nil {
		total += up.Outline.Size
	}
	var sent atomic.Int64
	report := func(n int) {
		if up.OnProgress != nil && n > 0 {
			up.OnProgress(sent.Add(int64(n)), total)
		}
	}

	go func() {
		pw.CloseWithError(writeUploadForm(mw, up, report))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, status, err := c.do(req)
	// 请求提前失败时让写协程退出
	pr.Close()
	if err != nil {
		return nil, err
	}

	data, err := unwrapEnvelope(status, body)
	if err != nil {
		return nil, err
	}
	var result models.UploadResult
	if isNull(data) {
		return nil, &DecodeError{Err: errors.New("missing data")}
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if result.TaskID == "" {
		return nil, &DecodeError{Err: errors.New("missing task_id")}
	}
	return &result, nil
}

func writeUploadForm(mw *multipart.Writer, up UploadRequest, report func(int)) error {
	fields := [][2]string{
		{FieldCourseName, up.CourseName},
		{FieldTeacher, up.Teacher},
		{FieldStudentType, up.StudentType},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if err := copyFile(mw, FieldVideo, up.Video, report); err != nil {
		return err
	}
	if up.Outline != nil && up.Outline.Reader != nil {
		if err := copyFile(mw, FieldOutline, *up.Outline, report); err != nil {
			return err
		}
	}
	return mw.Close()
}

func copyFile(mw *multipart.Writer, field string, f UploadFile, report func(int)) error {
	part, err := mw.CreateFormFile(field, f.Name)
	if err != nil {
		return fmt.Errorf("create form file %s: %w", field, err)
	}
	if _, err := io.Copy(part, &progressReader{r: f.Reader, report: report}); err != nil {
		return fmt.Errorf("copy %s: %w", field, err)
	}
	return nil
}

type progressReader struct {
	r      io.Reader
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.report(n)
	return n, err
}
