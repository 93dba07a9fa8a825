package handler

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportExposure writes the exposure table as an Excel file, most exposed first
// GET /api/cat/exposure/export
func (h *CATHandler) ExportExposure(c *gin.Context) {
	snap, err := h.engine.GetExposureRates(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	items := make([]string, 0, len(snap.Counts))
	for id := range snap.Counts {
		items = append(items, id)
	}
	sort.Slice(items, func(i, j int) bool {
		if snap.Counts[items[i]] == snap.Counts[items[j]] {
			return items[i] < items[j]
		}
		return snap.Counts[items[i]] > snap.Counts[items[j]]
	})

	rows := make([][]interface{}, 0, len(items))
	for _, id := range items {
		category := ""
		if p, err := h.engine.GetItemParameters(id); err == nil {
			category = p.Category
		}
		rows = append(rows, []interface{}{sanitizeForExcel(id), sanitizeForExcel(category), snap.Counts[id], snap.Rates[id]})
	}

	filename := fmt.Sprintf("exposure_%s", time.Now().UTC().Format("20060102_150405"))
	h.writeXLSX(c, filename, "Exposure",
		[]interface{}{"Item", "Category", "Administrations", fmt.Sprintf("Rate (sessions: %d)", snap.Sessions)},
		rows)
}

// ExportSession writes a session's administered items as an Excel file
// GET /api/cat/sessions/:id/export
func (h *CATHandler) ExportSession(c *gin.Context) {
	session, err := h.engine.GetSession(c.GetString(SessionIDKey))
	if err != nil {
		h.handleError(c, err)
		return
	}

	rows := make([][]interface{}, 0, len(session.Administered))
	for i, a := range session.Administered {
		correct := "No"
		if a.IsCorrect {
			correct = "Yes"
		}
		rows = append(rows, []interface{}{
			i + 1,
			sanitizeForExcel(a.ItemID),
			correct,
			a.ResponseTimeMs,
			a.AbilityBefore,
			a.AbilityAfter,
			a.InformationValue,
			a.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	h.writeXLSX(c, "session_"+session.ID, "Responses",
		[]interface{}{"#", "Item", "Correct", "Response time (ms)", "Ability before", "Ability after", "Information", "Answered at"},
		rows)
}

// writeXLSX streams a single-sheet workbook into the response
func (h *CATHandler) writeXLSX(c *gin.Context, filename, sheet string, headers []interface{}, rows [][]interface{}) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		h.logger.Error("Failed to rename sheet", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		h.logger.Error("Failed to create stream writer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	if err := sw.SetRow("A1", headers); err != nil {
		h.logger.Warn("Failed to write header row", "error", err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			h.logger.Warn("Failed to write row", "row", i+2, "error", err)
		}
	}
	if err := sw.Flush(); err != nil {
		h.logger.Error("Failed to flush workbook", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("Failed to write workbook to response", "error", err)
	}
}

// sanitizeForExcel neutralises values that spreadsheet apps would read as formulas
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
