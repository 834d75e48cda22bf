// Package upload validates the course upload form and submits it to the
// backend.
package upload

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/houzhh15/vaconsole/cmd/vaconsole/internal/client"
)

// DefaultMaxVideoSize 视频文件大小上限 500MB
const DefaultMaxVideoSize int64 = 500 * 1024 * 1024

var (
	// VideoExtensions 支持的视频格式
	VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv"}
	// OutlineExtensions 支持的教案格式
	OutlineExtensions = []string{".pdf", ".doc", ".docx", ".txt", ".ppt", ".pptx"}
)

// Form 上传表单中需要校验的部分，form 标签即错误中的字段名
type Form struct {
	CourseName  string `form:"courseName" validate:"required,max=100"`
	Teacher     string `form:"teacher" validate:"required,max=50"`
	StudentType string `form:"studentType" validate:"required,max=100"`
	VideoName   string `form:"video" validate:"required,videoext"`
	VideoSize   int64  `form:"-"`
	OutlineName string `form:"outline" validate:"omitempty,outlineext"`
	OutlineSize int64  `form:"-"`
}

// FormFromRequest 从上传请求提取待校验字段，文本字段去除首尾空白
func FormFromRequest(req client.UploadRequest) Form {
	f := Form{
		CourseName:  strings.TrimSpace(req.CourseName),
		Teacher:     strings.TrimSpace(req.Teacher),
		StudentType: strings.TrimSpace(req.StudentType),
	}
	if req.Video.Reader != nil || req.Video.Name != "" {
		f.VideoName = req.Video.Name
		f.VideoSize = req.Video.Size
	}
	if req.Outline != nil {
		f.OutlineName = req.Outline.Name
		f.OutlineSize = req.Outline.Size
	}
	return f
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 汇总全部字段错误，按表单顺序排列
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "表单校验失败: " + strings.Join(msgs, "; ")
}

// Message 返回指定字段的错误信息，没有错误时为空
func (e *ValidationError) Message(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

var messages = map[string]map[string]string{
	client.FieldCourseName: {
		"required": "请输入课程名称",
		"max":      "课程名称不能超过100个字符",
	},
	client.FieldTeacher: {
		"required": "请输入授课教师",
		"max":      "教师姓名不能超过50个字符",
	},
	client.FieldStudentType: {
		"required": "请输入授课对象",
		"max":      "授课对象描述不能超过100个字符",
	},
	client.FieldVideo: {
		"required": "请选择视频文件",
		"videoext": "不支持的文件格式。支持格式: " + strings.Join(VideoExtensions, ", "),
	},
	client.FieldOutline: {
		"outlineext": "不支持的教案格式。支持格式: " + strings.Join(OutlineExtensions, ", "),
	},
}

// Validator 上传表单校验器
type Validator struct {
	validate     *validator.Validate
	maxVideoSize int64
}

// NewValidator 创建校验器，maxVideoSize<=0 时使用 DefaultMaxVideoSize
func NewValidator(maxVideoSize int64) *Validator {
	if maxVideoSize <= 0 {
		maxVideoSize = DefaultMaxVideoSize
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// 自定义标签注册失败只可能是编程错误
	if err := v.RegisterValidation("videoext", extensionIn(VideoExtensions)); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("outlineext", extensionIn(OutlineExtensions)); err != nil {
		panic(err)
	}

	return &Validator{validate: v, maxVideoSize: maxVideoSize}
}

// MaxVideoSize 返回视频大小上限
func (v *Validator) MaxVideoSize() int64 {
	return v.maxVideoSize
}

// Validate 校验表单，全部错误一次性返回；通过时返回 nil
func (v *Validator) Validate(f Form) error {
	var fields []FieldError

	if err := v.validate.Struct(f); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validate upload form: %w", err)
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: messageFor(fe.Field(), fe.Tag())})
		}
	}

	// 格式错误时不再报告大小
	if f.VideoName != "" && !hasField(fields, client.FieldVideo) && f.VideoSize > v.maxVideoSize {
		fields = append(fields, FieldError{
			Field:   client.FieldVideo,
			Message: "文件大小不能超过" + FormatFileSize(v.maxVideoSize),
		})
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// FormatFileSize 以 IEC 单位格式化文件大小，例如 "1.5 MiB"
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// HasExtension 文件名扩展名（忽略大小写）是否在列表中
func HasExtension(name string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

func extensionIn(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return HasExtension(fl.Field().String(), allowed)
	}
}

func messageFor(field, tag string) string {
	if msg, ok := messages[field][tag]; ok {
		return msg
	}
	return fmt.Sprintf("%s 校验失败 (%s)", field, tag)
}

func hasField(fields []FieldError, field string) bool {
	for _, f := range fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
