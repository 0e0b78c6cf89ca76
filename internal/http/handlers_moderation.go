package httpx

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
	apperrors "github.com/target/mmk-moderation/internal/errors"
	"github.com/target/mmk-moderation/internal/service"
)

const (
	// multipartOverhead is allowed on top of the upload cap for boundaries and form fields.
	multipartOverhead = 1 << 20
	// multipartMemory is the part of the form parsed in memory; the rest spills to temp files.
	multipartMemory = 8 << 20
)

// Dispatcher queues moderation tasks.
type Dispatcher interface {
	SubmitText(ctx context.Context, content, sourceID string) (string, error)
	SubmitImage(ctx context.Context, upload core.Upload, sourceID string) (*service.ImageSubmission, error)
}

// ResultReader looks up task results.
type ResultReader interface {
	Get(ctx context.Context, taskID string) (*model.TaskResult, error)
}

// ModerationHandlers serves the /moderate endpoints.
type ModerationHandlers struct {
	Dispatch       Dispatcher
	Results        ResultReader
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type textRequest struct {
	Content  *string `json:"content"`
	SourceID string  `json:"source_id"`
}

type taskAccepted struct {
	TaskID string `json:"task_id"`
}

// taskResponse is the public view of a TaskResult.
type taskResponse struct {
	TaskID   string               `json:"task_id"`
	Status   model.TaskStatus     `json:"status"`
	Verdict  *model.Verdict       `json:"verdict,omitempty"`
	Scores   model.Scores         `json:"scores,omitzero"`
	Analysis *model.ImageAnalysis `json:"analysis,omitempty"`
	FileInfo *model.FileInfo      `json:"file_info,omitempty"`
	Error    *string              `json:"error,omitempty"`
}

func newTaskResponse(res *model.TaskResult, withImage bool) taskResponse {
	out := taskResponse{
		TaskID:  res.TaskID,
		Status:  res.Status,
		Verdict: res.Verdict,
		Error:   res.Error,
	}
	if res.Status.Terminal() {
		out.Scores = res.Scores
		if out.Scores == nil && res.Verdict != nil {
			out.Scores = model.Scores{}
		}
	}
	if withImage {
		out.Analysis = res.Analysis
		out.FileInfo = res.FileInfo
	}
	return out
}

// SubmitText handles POST /moderate/text.
func (h *ModerationHandlers) SubmitText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Content == nil {
		h.fail(w, r, apperrors.ValidationField("content", "content is required"))
		return
	}
	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		h.fail(w, r, apperrors.ValidationField("source_id", "source_id is required"))
		return
	}

	taskID, err := h.Dispatch.SubmitText(r.Context(), *req.Content, sourceID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, taskAccepted{TaskID: taskID})
}

// SubmitImage handles POST /moderate/image with a multipart "file" part.
func (h *ModerationHandlers) SubmitImage(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, apperrors.ValidationField("file", "uploaded file is too large"))
			return
		}
		h.fail(w, r, apperrors.ValidationField("file", "expected a multipart form with a file field"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, apperrors.ValidationField("file", "file is required"))
		return
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	sub, err := h.Dispatch.SubmitImage(r.Context(), core.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	}, r.FormValue("source_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, sub)
}

// GetTask handles GET /moderate/task/{task_id}.
func (h *ModerationHandlers) GetTask(w http.ResponseWriter, r *http.Request) {
	h.getResult(w, r, false)
}

// GetImage handles GET /moderate/image/{task_id}.
func (h *ModerationHandlers) GetImage(w http.ResponseWriter, r *http.Request) {
	h.getResult(w, r, true)
}

func (h *ModerationHandlers) getResult(w http.ResponseWriter, r *http.Request, withImage bool) {
	res, err := h.Results.Get(r.Context(), r.PathValue("task_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, newTaskResponse(res, withImage))
}

func (h *ModerationHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	WriteAppError(w, r, h.Logger, err)
}
