package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/opsdeck/pkg/llm"
	"github.com/papercomputeco/opsdeck/pkg/markdown"
	"github.com/papercomputeco/opsdeck/pkg/storage"
)

// maxHistoryLimit caps the limit query parameter of /history.
const maxHistoryLimit = 500

// RenderRequest is the body of POST /render.
type RenderRequest struct {
	Markdown string `json:"markdown"`

	// Strict sanitizes the output even when the server is not in strict mode.
	Strict bool `json:"strict,omitempty"`
}

// RenderResponse is the body returned by POST /render.
type RenderResponse struct {
	HTML string `json:"html"`
}

// HistoryResponse is a stored response with its rendered HTML.
type HistoryResponse struct {
	storage.Record
	HTML string `json:"html"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleRender renders a markdown document.
func (s *Server) handleRender(c *fiber.Ctx) error {
	var req RenderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	html := markdown.Render(req.Markdown)
	if req.Strict || s.config.Strict {
		html = markdown.Policy().Sanitize(html)
	}

	return c.JSON(RenderResponse{HTML: html})
}

// handleListHistory returns stored responses, newest first.
func (s *Server) handleListHistory(c *fiber.Ctx) error {
	opts := storage.ListOptions{
		ClientID: c.Query("client_id"),
		Limit:    100,
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "limit must be a positive integer"})
		}
		opts.Limit = min(limit, maxHistoryLimit)
	}

	records, err := s.storer.List(c.Context(), opts)
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list history"})
	}

	return c.JSON(map[string]any{
		"count":   len(records),
		"records": records,
	})
}

// handleGetHistory returns one stored response rendered to HTML.
func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "id parameter required"})
	}

	rec, err := s.storer.Get(c.Context(), id)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "record not found"})
		}
		s.logger.Error("failed to get history", "record_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get record"})
	}

	return c.JSON(HistoryResponse{
		Record: *rec,
		HTML:   s.sanitize(markdown.Render(rec.Text)),
	})
}
