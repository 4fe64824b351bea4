package api

import (
	"time"

	"github.com/labstack/echo/v4"

	models "OddsPulse/internal/domain/models"
	"OddsPulse/internal/service/metrics"
	"OddsPulse/internal/service/ratelimit"
	"OddsPulse/internal/usecase"
	xhttp "OddsPulse/pkg/http"
	xlogger "OddsPulse/pkg/logger"
)

// RecordsEchoHandler serves scoring, records and stats.
type RecordsEchoHandler struct {
	logger    *xlogger.Logger
	recommend *usecase.RecommendUsecase
	records   *usecase.RecordService
	limiter   *ratelimit.Limiter
}

// NewRecordsEchoHandler builds the handler. limiter may be nil.
func NewRecordsEchoHandler(
	logger *xlogger.Logger,
	recommend *usecase.RecommendUsecase,
	records *usecase.RecordService,
	limiter *ratelimit.Limiter,
) *RecordsEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RecordsEchoHandler{logger: logger, recommend: recommend, records: records, limiter: limiter}
}

func (h *RecordsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)

	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, h.limiter.Middleware())
	}
	g.POST("/recommend", h.Recommend, mw...)
	g.GET("/stats", h.Stats, mw...)
	g.GET("/history", h.History, mw...)
	g.GET("/records", h.ListRecords, mw...)
	g.POST("/records", h.CreateRecord, mw...)
	g.PUT("/records/:id", h.ResolveRecord, mw...)
	g.DELETE("/records/:id", h.DeleteRecord, mw...)
}

func (h *RecordsEchoHandler) Recommend(c echo.Context) error {
	defer metrics.ObserveSince("recommend", time.Now())
	req := &models.RecommendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.recommend.Recommend(c.Request().Context(), models.HandicapType(req.Type), req.Snapshot())
	if err != nil {
		return fail(c, h.logger, "recommend", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RecordsEchoHandler) Stats(c echo.Context) error {
	defer metrics.ObserveSince("stats", time.Now())
	req := &models.StatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.records.Stats(c.Request().Context(), req.UserID)
	if err != nil {
		return fail(c, h.logger, "stats", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, res)
}

func (h *RecordsEchoHandler) History(c echo.Context) error {
	defer metrics.ObserveSince("history", time.Now())
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.records.History(c.Request().Context(), req.UserID, req.Limit)
	if err != nil {
		return fail(c, h.logger, "history", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RecordsEchoHandler) ListRecords(c echo.Context) error {
	defer metrics.ObserveSince("records_list", time.Now())
	req := &models.ListRecordsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, total, err := h.records.List(c.Request().Context(), req.Filter())
	if err != nil {
		return fail(c, h.logger, "records_list", err)
	}
	return xhttp.ListResponse(c, rows, total, req.Limit, req.Offset)
}

func (h *RecordsEchoHandler) CreateRecord(c echo.Context) error {
	defer metrics.ObserveSince("records_create", time.Now())
	req := &models.CreateRecordRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.records.Create(c.Request().Context(), req)
	if err != nil {
		return fail(c, h.logger, "records_create", err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *RecordsEchoHandler) ResolveRecord(c echo.Context) error {
	defer metrics.ObserveSince("records_resolve", time.Now())
	req := &models.ResolveRecordRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.records.Resolve(c.Request().Context(), req.ID, req.UserID, models.ActualResult(req.ActualResult))
	if err != nil {
		return fail(c, h.logger, "records_resolve", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RecordsEchoHandler) DeleteRecord(c echo.Context) error {
	defer metrics.ObserveSince("records_delete", time.Now())
	req := &models.RecordIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.records.Delete(c.Request().Context(), req.ID, req.UserID); err != nil {
		return fail(c, h.logger, "records_delete", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *RecordsEchoHandler) Health(c echo.Context) error {
	if err := h.records.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("store unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
