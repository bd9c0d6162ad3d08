package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) exportXLSX(c *gin.Context) {
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		s.fail(c, err)
		return
	}
	data, err := s.deps.Exporter.ExportXLSX(c.Request.Context(), statuses...)
	if err != nil {
		s.fail(c, err)
		return
	}
	name := fmt.Sprintf("waste-export-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, data)
}
