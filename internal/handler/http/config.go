package http

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/handler/http/response"
)

// ConfigHandler serves the org-level configuration: rule sets, holidays and
// attendance settings.
type ConfigHandler interface {
	GetRuleSet(w http.ResponseWriter, r *http.Request)
	SaveRuleSet(w http.ResponseWriter, r *http.Request)
	ListHolidays(w http.ResponseWriter, r *http.Request)
	UpsertHoliday(w http.ResponseWriter, r *http.Request)
	ImportHolidays(w http.ResponseWriter, r *http.Request)
	GetSettings(w http.ResponseWriter, r *http.Request)
	SaveSettings(w http.ResponseWriter, r *http.Request)
}

type configHandlerImpl struct {
	rules    ruleset.Service
	holidays schedule.HolidayService
	settings settings.Service
	gate     user.PermissionGate
}

func NewConfigHandler(rules ruleset.Service, holidays schedule.HolidayService, settingsService settings.Service, gate user.PermissionGate) ConfigHandler {
	return &configHandlerImpl{
		rules:    rules,
		holidays: holidays,
		settings: settingsService,
		gate:     gate,
	}
}

type ruleSetResponse struct {
	OrgID    string           `json:"org_id"`
	Version  int              `json:"version"`
	Document ruleset.Document `json:"document"`
}

// GetRuleSet implements ConfigHandler.
func (h *configHandlerImpl) GetRuleSet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	if err := h.gate.Require(r.Context(), actor, user.PermissionRuleSetManage); err != nil {
		response.HandleError(w, err)
		return
	}

	compiled, err := h.rules.Get(r.Context(), actor.OrgID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if compiled == nil {
		response.HandleError(w, ruleset.ErrRuleSetNotFound)
		return
	}

	response.Success(w, ruleSetResponse{OrgID: compiled.OrgID, Version: compiled.Version, Document: compiled.Document})
}

// SaveRuleSet implements ConfigHandler.
func (h *configHandlerImpl) SaveRuleSet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		response.BadRequest(w, "Failed to read request body", nil)
		return
	}

	compiled, err := h.rules.Save(r.Context(), actor, actor.OrgID, raw)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Rule set saved", ruleSetResponse{OrgID: compiled.OrgID, Version: compiled.Version, Document: compiled.Document})
}

// ListHolidays implements ConfigHandler.
func (h *configHandlerImpl) ListHolidays(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	from, to, err := dateRange(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	now := time.Now().UTC()
	if from == nil {
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		from = &start
	}
	if to == nil {
		end := time.Date(now.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
		to = &end
	}

	holidays, err := h.holidays.List(r.Context(), actor.OrgID, *from, *to)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if holidays == nil {
		holidays = []schedule.Holiday{}
	}
	response.Success(w, holidays)
}

// UpsertHoliday implements ConfigHandler.
func (h *configHandlerImpl) UpsertHoliday(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	var req schedule.UpsertHolidayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.OrgID = actor.OrgID

	holiday, err := h.holidays.Upsert(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Holiday saved", holiday)
}

// ImportHolidays implements ConfigHandler.
func (h *configHandlerImpl) ImportHolidays(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		response.BadRequest(w, "Failed to parse form data", nil)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "Field 'file' is required", nil)
		return
	}
	defer file.Close()

	working := false
	if v := r.FormValue("working"); v != "" {
		working, err = strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(w, "Field 'working' must be a boolean", nil)
			return
		}
	}

	result, err := h.holidays.ImportICS(r.Context(), actor, file, working)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Holidays imported", result)
}

// GetSettings implements ConfigHandler.
func (h *configHandlerImpl) GetSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	if err := h.gate.Require(r.Context(), actor, user.PermissionSettingsManage); err != nil {
		response.HandleError(w, err)
		return
	}

	s, err := h.settings.Get(r.Context(), actor.OrgID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, s)
}

// SaveSettings implements ConfigHandler.
func (h *configHandlerImpl) SaveSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}

	var s settings.Settings
	if !decodeJSON(w, r, &s) {
		return
	}
	s.OrgID = actor.OrgID

	saved, err := h.settings.Save(r.Context(), actor, s)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Settings saved", saved)
}
