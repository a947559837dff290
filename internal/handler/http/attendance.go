package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/sse"
)

type AttendanceHandler interface {
	Punch(w http.ResponseWriter, r *http.Request)
	ListRecords(w http.ResponseWriter, r *http.Request)
	Import(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.Service
	importer          attendance.Importer
	hub               *sse.Hub
}

func NewAttendanceHandler(attendanceService attendance.Service, importer attendance.Importer, hub *sse.Hub) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
		importer:          importer,
		hub:               hub,
	}
}

// Punch implements AttendanceHandler.
func (h *attendanceHandlerImpl) Punch(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	var req attendance.PunchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.OrgID = actor.OrgID
	if req.UserID == "" {
		req.UserID = actor.UserID
	}
	req.IP = clientIP(r)

	record, err := h.attendanceService.Punch(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Punch recorded", attendance.NewRecordResponse(record))
}

// ListRecords implements AttendanceHandler.
func (h *attendanceHandlerImpl) ListRecords(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	from, to, err := dateRange(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	filter := attendance.RecordFilter{
		OrgID:  actor.OrgID,
		UserID: r.URL.Query().Get("user_id"),
		From:   from,
		To:     to,
		Limit:  getIntQueryParam(r, "limit", 0),
	}

	records, err := h.attendanceService.ListRecords(r.Context(), actor, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	out := make([]attendance.RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, attendance.NewRecordResponse(rec))
	}
	response.SuccessWithMeta(w, out, listMeta(filter.From, filter.To, filter.Limit, len(out)))
}

// Import implements AttendanceHandler.
func (h *attendanceHandlerImpl) Import(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		response.BadRequest(w, "Failed to parse form data", nil)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			response.BadRequest(w, "Field 'file' is required", nil)
			return
		}
		slog.Error("Failed to get file from form", "error", err)
		response.BadRequest(w, "Invalid file upload", nil)
		return
	}
	defer file.Close()

	result, err := h.importer.Import(r.Context(), actor, attendance.ImportRequest{
		OrgID:    actor.OrgID,
		Filename: fileHeader.Filename,
		Reader:   file,
		Mode:     attendance.Mode(r.FormValue("mode")),
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, fmt.Sprintf("Imported %d of %d rows", result.Succeeded, result.Total), result)
}

// Stream pushes the caller's attendance and request events over SSE.
func (h *attendanceHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(sse.Subscriber{OrgID: actor.OrgID, UserID: actor.UserID})
	defer cleanup()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"user_id\":%q}\n\n", actor.UserID)
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
