package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/millrun/internal/domain"
	"github.com/xiaot623/millrun/internal/repository"
	"github.com/xiaot623/millrun/internal/solver"
)

// CreateRun validates a mill configuration and runs the solver on it.
// POST /api/runs
func (h *Handler) CreateRun(c echo.Context) error {
	ctx := c.Request().Context()

	var params domain.MillParams
	if err := json.NewDecoder(c.Request().Body).Decode(&params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result, err := h.service.CreateRun(ctx, params)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
				"error":      verr.Error(),
				"violations": verr.Violations,
			})
		case errors.Is(err, solver.ErrRunConflict):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusOK, result)
}

// ListRuns lists recent runs, newest first.
// GET /api/runs
func (h *Handler) ListRuns(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := queryLimit(c, 0)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	runs, err := h.service.ListRuns(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// GetRun gets a specific run by ID.
// GET /api/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		return runLookupError(c, runID, err)
	}

	return c.JSON(http.StatusOK, run)
}

// GetRunEvents retrieves events for a run.
// GET /api/runs/:run_id/events
func (h *Handler) GetRunEvents(c echo.Context) error {
	runID := c.Param("run_id")
	limit, err := queryLimit(c, 100)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	afterTs := int64(0)
	if t := c.QueryParam("after_ts"); t != "" {
		val, err := strconv.ParseInt(t, 10, 64)
		if err != nil || val < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "after_ts must be a non-negative integer"})
		}
		afterTs = val
	}
	var types []string
	if raw := c.QueryParam("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	ctx := c.Request().Context()

	events, err := h.service.GetRunEvents(ctx, runID, afterTs, types, limit)
	if err != nil {
		return runLookupError(c, runID, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

// queryLimit parses the limit query parameter. Absent means def.
func queryLimit(c echo.Context, def int) (int, error) {
	l := c.QueryParam("limit")
	if l == "" {
		return def, nil
	}
	val, err := strconv.Atoi(l)
	if err != nil || val < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return val, nil
}

func runLookupError(c echo.Context, runID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run " + runID + " not found"})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
