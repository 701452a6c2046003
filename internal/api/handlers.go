package api

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"sealoop/essctl/internal/alarm"
	"sealoop/essctl/internal/health"
	"sealoop/essctl/internal/supervisor"
	"sealoop/essctl/internal/telemetry"

	"github.com/gin-gonic/gin"
)

// Handlers contains all API handlers
type Handlers struct {
	supervisor    *supervisor.Supervisor
	alarmManager  *alarm.Manager
	healthService *health.HealthService
	log           *zap.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(
	sup *supervisor.Supervisor,
	alarmManager *alarm.Manager,
	healthService *health.HealthService,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		supervisor:    sup,
		alarmManager:  alarmManager,
		healthService: healthService,
		log:           logger.With(zap.String("component", "api_handlers")),
	}
}

// HealthCheck returns detailed health status.
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	results := h.healthService.CheckAll(ctx)
	overallStatus := h.healthService.GetOverallStatus(results)

	response := gin.H{
		"checks": results,
		"status": overallStatus,
	}

	statusCode := http.StatusOK
	switch overallStatus {
	case health.StatusUnhealthy:
		statusCode = http.StatusServiceUnavailable
		h.log.Warn("health check failed - system unhealthy", zap.String("status", string(overallStatus)))
	case health.StatusDegraded:
		statusCode = http.StatusPartialContent
		h.log.Warn("health check shows degraded status", zap.String("status", string(overallStatus)))
	}

	c.JSON(statusCode, response)
}

// GetStatus returns array-wide status: mode, bus voltage, array
// limits, and each pack's mode/contactor/alarm state.
func (h *Handlers) GetStatus(c *gin.Context) {
	a := h.supervisor.ArrayController()
	packs := a.Packs()

	packStatus := make([]gin.H, 0, len(packs))
	for _, p := range packs {
		packStatus = append(packStatus, gin.H{
			"id":                p.ID,
			"mode":              p.Mode().String(),
			"contactors_closed": p.ContactorsClosed(),
			"has_warning":       p.HasWarning(),
			"has_fault":         p.HasFault(),
			"fault_message":     p.FaultMessage(),
			"charge_limit_a":    p.ChargeLimitA(),
			"discharge_limit_a": p.DischargeLimitA(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"mode":                    h.supervisor.Mode(),
		"bus_voltage_v":           a.BusVoltage(),
		"array_charge_limit_a":    a.ArrayChargeLimit(),
		"array_discharge_limit_a": a.ArrayDischargeLimit(),
		"last_tick":               h.supervisor.LastTick(),
		"packs":                   packStatus,
	})
}

// GetTelemetry returns the live per-pack plant telemetry, built the
// same way the supervisor builds its per-tick InfluxDB snapshot.
func (h *Handlers) GetTelemetry(c *gin.Context) {
	a := h.supervisor.ArrayController()
	snap := telemetry.BuildSnapshot(a, 0, time.Now())
	c.JSON(http.StatusOK, snap)
}

// GetAlarms returns either the currently-active alarm set or, with
// active=false, paginated persisted alarm history.
func (h *Handlers) GetAlarms(c *gin.Context) {
	if c.Query("active") == "false" {
		limit := 100
		offset := 0
		if l := c.Query("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil {
				limit = parsed
			}
		}
		if o := c.Query("offset"); o != "" {
			if parsed, err := strconv.Atoi(o); err == nil {
				offset = parsed
			}
		}

		history, err := h.alarmManager.History(limit, offset)
		if err != nil {
			h.log.Error("failed to get alarm history", zap.Error(err), zap.Int("limit", limit), zap.Int("offset", offset))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"alarms":      history,
			"total_count": len(history),
			"timestamp":   time.Now(),
		})
		return
	}

	active := h.alarmManager.ActiveAlarms()
	packID := c.Query("pack_id")
	if packID != "" {
		filtered := make([]any, 0, len(active))
		for _, a := range active {
			if a.PackID == packID {
				filtered = append(filtered, a)
			}
		}
		c.JSON(http.StatusOK, gin.H{"alarms": filtered, "total_count": len(filtered), "timestamp": time.Now()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alarms":      active,
		"total_count": len(active),
		"timestamp":   time.Now(),
	})
}

// SetControlMode switches between AUTO and MANUAL.
func (h *Handlers) SetControlMode(c *gin.Context) {
	var request struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		h.log.Warn("invalid control mode request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.supervisor.SetMode(supervisor.Mode(request.Mode)); err != nil {
		h.log.Warn("invalid control mode requested", zap.String("mode", request.Mode))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.log.Info("control mode changed successfully", zap.String("mode", request.Mode))
	c.JSON(http.StatusOK, gin.H{"message": "control mode set successfully", "mode": request.Mode})
}

// RequestCurrent sets the requested bus current. Only honored in
// MANUAL mode.
func (h *Handlers) RequestCurrent(c *gin.Context) {
	var request struct {
		AmpsA float64 `json:"amps_a" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.supervisor.RequestCurrent(request.AmpsA); err != nil {
		h.log.Warn("rejected requested-current command", zap.Error(err), zap.Float64("amps_a", request.AmpsA))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "requested current accepted", "amps_a": request.AmpsA})
}

// Connect triggers two-phase connection sequencing.
func (h *Handlers) Connect(c *gin.Context) {
	h.supervisor.Connect()
	c.JSON(http.StatusOK, gin.H{"message": "connection sequencing started"})
}

// Disconnect opens every pack's contactors.
func (h *Handlers) Disconnect(c *gin.Context) {
	h.supervisor.Disconnect()
	c.JSON(http.StatusOK, gin.H{"message": "array disconnected"})
}

// ResetFaults attempts a manual fault reset on every pack.
func (h *Handlers) ResetFaults(c *gin.Context) {
	results := h.supervisor.ResetFaults()
	c.JSON(http.StatusOK, gin.H{"results": results})
}
