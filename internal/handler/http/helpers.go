package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-core/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/validator"
)

const maxUploadSize = 10 << 20

// actorOrFail writes 401 and returns false when the request has no actor.
func actorOrFail(w http.ResponseWriter, r *http.Request) (user.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.HandleError(w, user.ErrUnauthenticated)
		return user.Actor{}, false
	}
	return actor, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// dateRange reads optional from/to query params (YYYY-MM-DD).
func dateRange(r *http.Request) (from, to *time.Time, err error) {
	var errs validator.ValidationErrors
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		d, ok := validator.IsValidDate(v)
		if !ok {
			errs.Add("from", "from must be YYYY-MM-DD")
		}
		from = &d
	}
	if v := q.Get("to"); v != "" {
		d, ok := validator.IsValidDate(v)
		if !ok {
			errs.Add("to", "to must be YYYY-MM-DD")
		}
		to = &d
	}
	return from, to, errs.Err()
}

// getIntQueryParam gets an int query parameter with a default value
func getIntQueryParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

// clientIP expects chi's RealIP middleware to have normalized RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func listMeta(from, to *time.Time, limit, count int) *response.Meta {
	meta := &response.Meta{Limit: limit, Count: count}
	if from != nil {
		meta.From = from.Format("2006-01-02")
	}
	if to != nil {
		meta.To = to.Format("2006-01-02")
	}
	return meta
}
