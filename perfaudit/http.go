package perfaudit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/perfaudit/kit"
)

// RegisterHTTP mounts the audit API on r:
//
//	POST /api/audits   run an audit (body: AuditInput)
//	GET  /api/audits   list past runs (?url=&limit=)
//	GET  /api/audits/{runID}/stages   state transitions of one run
//	GET  /healthz
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	audit := kit.Chain(kit.Logging(s.logger, "audit"))(func(ctx context.Context, req any) (any, error) {
		return s.Audit(ctx, *req.(*AuditInput))
	})
	r.Post("/api/audits", kit.HTTPHandler(audit, func(r *http.Request) (any, error) {
		var in AuditInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return nil, err
		}
		return &in, nil
	}, httpStatus))

	list := kit.Chain(kit.Logging(s.logger, "history"))(func(ctx context.Context, req any) (any, error) {
		runs, err := s.History(ctx, *req.(*HistoryInput))
		if err != nil {
			return nil, err
		}
		return map[string]any{"runs": runs}, nil
	})
	r.Get("/api/audits", kit.HTTPHandler(list, func(r *http.Request) (any, error) {
		q := r.URL.Query()
		in := HistoryInput{URL: q.Get("url")}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, err
			}
			in.Limit = n
		}
		return &in, nil
	}, httpStatus))

	stages := func(ctx context.Context, req any) (any, error) {
		st, err := s.Stages(ctx, req.(string))
		if err != nil {
			return nil, err
		}
		return map[string]any{"stages": st}, nil
	}
	r.Get("/api/audits/{runID}/stages", kit.HTTPHandler(stages, func(r *http.Request) (any, error) {
		return chi.URLParam(r, "runID"), nil
	}, httpStatus))
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionLaunch):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNavigation), errors.Is(err, ErrAuditExecution), errors.Is(err, ErrMetricExtraction):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
