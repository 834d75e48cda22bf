package upload

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/client"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/events"
	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/models"
	"github.com/houzhh15/vaconsole/pkg/metrics"
)

// Uploader 提交 multipart 表单的后端接口，由 client.Client 实现
type Uploader interface {
	Upload(ctx context.Context, req client.UploadRequest) (*models.UploadResult, error)
}

// Service 校验表单、提交上传并在成功后广播 UploadCompleted
type Service struct {
	uploader  Uploader
	validator *Validator
	bus       *events.Bus
	logger    *slog.Logger
}

// NewService 创建上传服务；bus 为 nil 时不广播
func NewService(uploader Uploader, validator *Validator, bus *events.Bus, logger *slog.Logger) *Service {
	if validator == nil {
		validator = NewValidator(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{uploader: uploader, validator: validator, bus: bus, logger: logger}
}

// Validator 返回服务使用的校验器
func (s *Service) Validator() *Validator {
	return s.validator
}

// Submit 校验并上传。校验失败返回 *ValidationError 且不发起请求
func (s *Service) Submit(ctx context.Context, req client.UploadRequest) (*models.UploadResult, error) {
	req.CourseName = strings.TrimSpace(req.CourseName)
	req.Teacher = strings.TrimSpace(req.Teacher)
	req.StudentType = strings.TrimSpace(req.StudentType)

	if err := s.validator.Validate(FormFromRequest(req)); err != nil {
		metrics.RecordUpload("invalid")
		return nil, err
	}

	s.logger.Info("Uploading course video",
		"course", req.CourseName,
		"video", req.Video.Name,
		"size", FormatFileSize(req.Video.Size),
		"has_outline", req.Outline != nil,
	)

	result, err := s.uploader.Upload(ctx, req)
	if err != nil {
		outcome := client.Kind(err)
		if errors.Is(err, context.Canceled) {
			outcome = "canceled"
		}
		metrics.RecordUpload(outcome)
		s.logger.Warn("Upload failed", "course", req.CourseName, "outcome", outcome, "error", err)
		return nil, err
	}

	metrics.RecordUpload("ok")
	s.logger.Info("Upload accepted", "task_id", result.TaskID, "course", req.CourseName)

	if s.bus != nil {
		s.bus.Publish(events.TopicUploadCompleted, events.UploadCompleted{
			TaskID:     result.TaskID,
			CourseName: req.CourseName,
		})
	}
	return result, nil
}
