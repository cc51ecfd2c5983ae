package perfaudit

import (
	"errors"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/lighthouse"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/metrics"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/report"
)

// Errors returned by Run, matched with errors.Is. Only ErrReportPersistence
// never fails a run: it is logged and surfaced in Result.PersistError.
var (
	ErrInvalidRequest    = errors.New("perfaudit: invalid request")
	ErrSessionLaunch     = browser.ErrLaunch
	ErrNavigation        = lighthouse.ErrNavigation
	ErrAuditExecution    = lighthouse.ErrAuditExecution
	ErrReportPersistence = report.ErrPersistence
	ErrMetricExtraction  = metrics.ErrExtraction
)
