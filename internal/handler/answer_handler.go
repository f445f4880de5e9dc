package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragserver/internal/pkg/errcode"
	"ragserver/internal/pkg/response"
	"ragserver/internal/service"
)

type AnswerHandler struct {
	answer *service.AnswerService
}

func NewAnswerHandler(answer *service.AnswerService) *AnswerHandler {
	return &AnswerHandler{answer: answer}
}

type answerRequest struct {
	Query      string  `json:"query"`
	TopK       int     `json:"top_k"`
	MinScore   float64 `json:"min_score"`
	DocumentID string  `json:"document_id"`
}

func (h *AnswerHandler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.answer.Answer(c.Request.Context(), req.Query, service.RetrieveOptions{
		TopK:       req.TopK,
		MinScore:   req.MinScore,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
