package emails

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ews-api/internal/attachments"
	"ews-api/internal/ewsclient"
	"ews-api/internal/ewsxml"
	"ews-api/internal/mailstore"
	"ews-api/internal/utils"
)

// Handler handles email and attachment HTTP requests.
type Handler struct {
	service Service
}

// NewHandler creates a new email handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers email routes under /emails.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/emails", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/detail", h.GetDetail)
		r.Post("/attachments", h.AddAttachment)
		r.Get("/attachments", h.ListAttachments)
		r.Get("/attachments/{id}/download", h.DownloadAttachment)
		r.Delete("/attachments", h.DeleteAttachment)
	})
}

// respondServiceError maps service errors onto HTTP statuses. Remote and
// protocol failures surface as 502 because the fault is upstream, not here.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *ewsxml.ValidationError
		remoteErr     *ewsclient.RemoteError
		protocolErr   *ewsxml.ProtocolError
	)
	switch {
	case errors.Is(err, ErrEmailNotFound), errors.Is(err, mailstore.ErrRecordNotFound):
		utils.RespondError(w, r, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrMissingParameter),
		errors.Is(err, ewsclient.ErrUnknownFolder),
		errors.As(err, &validationErr):
		utils.RespondError(w, r, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrAttachmentDetached),
		errors.Is(err, attachments.ErrAlreadyAttached),
		errors.Is(err, attachments.ErrNotAttached):
		utils.RespondError(w, r, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &remoteErr), errors.As(err, &protocolErr):
		utils.RespondError(w, r, http.StatusBadGateway, "Bad Gateway", err.Error())
	default:
		utils.RespondInternalError(w, r, err, "Failed to process request")
	}
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// List handles GET /emails.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		utils.RespondError(w, r, http.StatusBadRequest, "Bad Request", "invalid limit parameter")
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		utils.RespondError(w, r, http.StatusBadRequest, "Bad Request", "invalid offset parameter")
		return
	}

	req := &ListEmailsRequest{
		Mailbox: r.URL.Query().Get("mailbox"),
		Folder:  r.URL.Query().Get("folder"),
		Limit:   limit,
		Offset:  offset,
	}
	resp, err := h.service.ListEmails(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

// GetDetail handles GET /emails/detail.
func (h *Handler) GetDetail(w http.ResponseWriter, r *http.Request) {
	req := &GetEmailRequest{
		Mailbox:   r.URL.Query().Get("mailbox"),
		ItemID:    r.URL.Query().Get("item_id"),
		ChangeKey: r.URL.Query().Get("change_key"),
	}
	detail, err := h.service.GetEmail(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, detail)
}

// AddAttachment handles POST /emails/attachments.
func (h *Handler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	var req AddAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, r, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	resp, err := h.service.AddAttachment(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, resp)
}

// ListAttachments handles GET /emails/attachments?item_id=...
func (h *Handler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListAttachments(r.Context(), r.URL.Query().Get("item_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"attachments": records,
		"total":       len(records),
	})
}

// DownloadAttachment handles GET /emails/attachments/{id}/download. The body
// is the raw attachment content, not JSON.
func (h *Handler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "id")

	dl, err := h.service.DownloadAttachment(r.Context(), publicID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	contentType := dl.Record.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+dl.Record.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(dl.Content); err != nil {
		utils.LogError(r, http.StatusOK, err, "writing attachment content")
	}
}

// DeleteAttachment handles DELETE /emails/attachments.
func (h *Handler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	var req DeleteAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, r, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	resp, err := h.service.DeleteAttachment(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}
