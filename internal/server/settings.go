package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
)

type thresholdRequest struct {
	Threshold float64 `json:"threshold" binding:"required"`
}

// synonymRequest edits the material synonym table. Action is one of add, remove,
// add_category or remove_category.
type synonymRequest struct {
	Action   string `json:"action" binding:"required"`
	Category string `json:"category" binding:"required"`
	Synonym  string `json:"synonym"`
}

func (s *Server) getSettings(c *gin.Context) {
	st, err := s.deps.Settings.Get(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) setThreshold(c *gin.Context) {
	var req thresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.Errorf("INVALID_BODY", common.ErrInvalidInput, "threshold is required: %v", err))
		return
	}
	st, err := s.deps.Settings.SetThreshold(c.Request.Context(), req.Threshold)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("settings.threshold.updated", "threshold", st.AutoApproveThreshold)
	c.JSON(http.StatusOK, st)
}

func (s *Server) editSynonyms(c *gin.Context) {
	var req synonymRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.Errorf("INVALID_BODY", common.ErrInvalidInput, "action and category are required: %v", err))
		return
	}
	ctx := c.Request.Context()
	var (
		st  entity.Settings
		err error
	)
	switch req.Action {
	case "add":
		st, err = s.deps.Settings.AddSynonym(ctx, req.Category, req.Synonym)
	case "remove":
		st, err = s.deps.Settings.RemoveSynonym(ctx, req.Category, req.Synonym)
	case "add_category":
		st, err = s.deps.Settings.AddCategory(ctx, req.Category)
	case "remove_category":
		st, err = s.deps.Settings.RemoveCategory(ctx, req.Category)
	default:
		err = common.Errorf("INVALID_ACTION", common.ErrInvalidInput, "unknown action %q", req.Action)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("settings.synonyms.updated", "action", req.Action, "category", req.Category, "synonym", req.Synonym)
	c.JSON(http.StatusOK, st)
}
