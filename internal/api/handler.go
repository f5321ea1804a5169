package api

import (
	"net/http"
	"time"

	"github.com/benmeehan/geo-reporter/pkg/location"
	"github.com/labstack/echo/v4"
)

// ReportController is the part of the report scheduler exposed over HTTP.
// Implemented by *services.LocationReportService.
type ReportController interface {
	ReportOnce()
	ReportLocation(coord location.Coordinate)
	Configure(endpoint, ext string)
	Endpoint() string
	Ext() string
	StartUpdatingLocation(interval time.Duration) error
	StopUpdatingLocation()
	IsScheduled() bool
	Interval() time.Duration
	LocationAvailable() bool
}

// ReportHandler drives the report scheduler.
type ReportHandler struct {
	controller ReportController
	pending    func() int
}

// NewReportHandler creates a ReportHandler. pending may be nil.
func NewReportHandler(controller ReportController, pending func() int) *ReportHandler {
	return &ReportHandler{controller: controller, pending: pending}
}

// Status handles GET /v1/status.
func (h *ReportHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.status())
}

// ReportNow handles POST /v1/report. The report runs in the background; its
// outcome goes to the delegates, not to this response.
func (h *ReportHandler) ReportNow(c echo.Context) error {
	go h.controller.ReportOnce()
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "report requested"})
}

// ReportLocation handles POST /v1/location with an externally observed position.
func (h *ReportHandler) ReportLocation(c echo.Context) error {
	var req locationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	coord := location.Coordinate{Latitude: *req.Lat, Longitude: *req.Lon}
	go h.controller.ReportLocation(coord)
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "location accepted"})
}

// Configure handles PUT /v1/config. The endpoint is stored as given; a
// malformed URL is reported on the next attempt.
func (h *ReportHandler) Configure(c echo.Context) error {
	var req configRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	h.controller.Configure(req.Endpoint, req.Ext)
	return c.JSON(http.StatusOK, h.status())
}

// StartSchedule handles PUT /v1/schedule, replacing any running schedule.
func (h *ReportHandler) StartSchedule(c echo.Context) error {
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	interval, err := time.ParseDuration(req.Interval)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid interval")
	}

	if err := h.controller.StartUpdatingLocation(interval); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.status())
}

// StopSchedule handles DELETE /v1/schedule.
func (h *ReportHandler) StopSchedule(c echo.Context) error {
	h.controller.StopUpdatingLocation()
	return c.NoContent(http.StatusNoContent)
}

func (h *ReportHandler) status() statusResponse {
	resp := statusResponse{
		Endpoint:          h.controller.Endpoint(),
		Ext:               h.controller.Ext(),
		Scheduled:         h.controller.IsScheduled(),
		LocationAvailable: h.controller.LocationAvailable(),
	}
	if interval := h.controller.Interval(); interval > 0 {
		resp.Interval = interval.String()
	}
	if h.pending != nil {
		resp.PendingRequests = h.pending()
	}
	return resp
}

// Liveness handles GET /health.
func Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
