package v1

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/millrun/internal/chart"
	"github.com/xiaot623/millrun/internal/domain"
)

type chartWriter func(w io.Writer, o chart.Options, data domain.ChargeThrowData) error

// ChargeThrowHTML renders the interactive charge throw scatter.
// GET /api/runs/:run_id/charge-throw.html
func (h *Handler) ChargeThrowHTML(c echo.Context) error {
	return h.renderChart(c, chart.WriteHTML, echo.MIMETextHTMLCharsetUTF8)
}

// ChargeThrowPNG renders the charge throw trajectories as an image.
// GET /api/runs/:run_id/charge-throw.png
func (h *Handler) ChargeThrowPNG(c echo.Context) error {
	return h.renderChart(c, chart.WritePNG, "image/png")
}

func (h *Handler) renderChart(c echo.Context, write chartWriter, contentType string) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		return runLookupError(c, runID, err)
	}
	if !run.ChargeThrow.Available() {
		return c.JSON(http.StatusNotFound, map[string]string{"error": run.ChargeThrow.Message})
	}

	var buf bytes.Buffer
	if err := write(&buf, chart.Options{RunID: run.RunID, Config: run.Config}, run.ChargeThrow); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}
