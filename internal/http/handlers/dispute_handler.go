package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/ignatzorin/freelance-core/internal/dto"
	"github.com/ignatzorin/freelance-core/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-core/internal/service"
	"github.com/ignatzorin/freelance-core/internal/storage"
)

// Разрешённые типы файлов-доказательств
var allowedEvidenceMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"application/zip": true,
}

// Разрешённые расширения файлов-доказательств
var allowedEvidenceExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
	".zip":  true,
}

// DisputeHandler обслуживает маршруты споров.
type DisputeHandler struct {
	disputes *service.DisputeService
	storage  *storage.EvidenceStorage
}

// NewDisputeHandler создаёт новый хэндлер.
func NewDisputeHandler(disputes *service.DisputeService, storage *storage.EvidenceStorage) *DisputeHandler {
	return &DisputeHandler{disputes: disputes, storage: storage}
}

// CreateDispute обрабатывает POST /disputes.
func (h *DisputeHandler) CreateDispute(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	dispute, err := h.disputes.CreateDispute(c.Request.Context(), req.EscrowID, userID, req.Reason)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// GetDispute обрабатывает GET /disputes/:id.
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.GetDispute(c.Request.Context(), disputeID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ListMyDisputes обрабатывает GET /disputes/my.
func (h *DisputeHandler) ListMyDisputes(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	disputes, err := h.disputes.ListMyDisputes(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

// ListOpenDisputes обрабатывает GET /admin/disputes.
func (h *DisputeHandler) ListOpenDisputes(c *gin.Context) {
	_, role, ok := currentUser(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	disputes, err := h.disputes.ListOpenDisputes(c.Request.Context(), role, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

// StartReview обрабатывает POST /admin/disputes/:id/review.
func (h *DisputeHandler) StartReview(c *gin.Context) {
	_, role, ok := currentUser(c)
	if !ok {
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.StartReview(c.Request.Context(), disputeID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// Escalate обрабатывает POST /admin/disputes/:id/escalate.
func (h *DisputeHandler) Escalate(c *gin.Context) {
	_, role, ok := currentUser(c)
	if !ok {
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.Escalate(c.Request.Context(), disputeID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ResolveDispute обрабатывает POST /admin/disputes/:id/resolve.
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	dispute, escrow, err := h.disputes.ResolveDispute(c.Request.Context(), disputeID, userID, role, service.ResolveDisputeInput{
		Decision:         req.Decision,
		Notes:            req.Notes,
		ClientAmount:     req.ClientAmount,
		FreelancerAmount: req.FreelancerAmount,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DisputeResolutionResponse{Dispute: dispute, Escrow: escrow})
}

// UploadEvidence обрабатывает POST /disputes/:id/evidence.
// Тип файла проверяется по магическим байтам, а не только по расширению.
func (h *DisputeHandler) UploadEvidence(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "поле file обязательно")
		return
	}
	if file.Size == 0 {
		common.RespondBadRequest(c, "файл не может быть пустым")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedEvidenceExtensions[ext] {
		common.RespondBadRequest(c, "неподдерживаемый формат файла")
		return
	}

	src, err := file.Open()
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	defer src.Close()

	// Читаем первые 512 байт для проверки магических байтов
	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && err != io.EOF {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}

	kind, err := filetype.Match(buffer[:n])
	if err != nil || kind == filetype.Unknown {
		common.RespondBadRequest(c, "не удалось определить тип файла")
		return
	}
	if !allowedEvidenceMimeTypes[kind.MIME.Value] {
		common.RespondBadRequest(c, fmt.Sprintf("неподдерживаемый тип файла (%s)", kind.MIME.Value))
		return
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		common.RespondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	relPath, size, err := h.storage.Save(c.Request.Context(), disputeID, file.Filename, src)
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	evidence, err := h.disputes.AddEvidence(c.Request.Context(), disputeID, userID, file.Filename, relPath, kind.MIME.Value, size)
	if err != nil {
		// Метаданные не сохранились, файл на диске не нужен
		_ = h.storage.Delete(c.Request.Context(), relPath)
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, evidence)
}

// ListEvidence обрабатывает GET /disputes/:id/evidence.
func (h *DisputeHandler) ListEvidence(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	evidence, err := h.disputes.ListEvidence(c.Request.Context(), disputeID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, evidence)
}
