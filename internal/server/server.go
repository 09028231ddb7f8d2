// Package server exposes a read-only HTTP view of a running session:
// graph state, variables, and the execution summary. It never mutates the
// graph; the driver loop owns every transition.
package server

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/vk/stepgrid/internal/graph"
)

// Server serves inspection endpoints for one session graph.
type Server struct {
	app   *fiber.App
	graph *graph.Store
}

// New builds the server and registers its routes.
func New(g *graph.Store) *Server {
	s := &Server{
		app:   fiber.New(fiber.Config{AppName: "stepgrid"}),
		graph: g,
	}

	s.app.Get("/healthz", s.health)
	s.app.Get("/session", s.session)
	s.app.Get("/session/nodes", s.nodes)
	s.app.Get("/session/nodes/:id", s.node)
	s.app.Get("/session/vars", s.vars)
	s.app.Get("/session/summary", s.summary)

	return s
}

// App exposes the underlying fiber app for in-process testing.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) session(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"session_id":     s.graph.SessionID(),
		"original_query": s.graph.Query(),
		"created_at":     s.graph.CreatedAt(),
		"status":         s.graph.RunStatus(),
		"nodes":          len(s.graph.NodeIDs()),
	})
}

func (s *Server) nodes(c fiber.Ctx) error {
	ids := s.graph.NodeIDs()
	out := make([]fiber.Map, 0, len(ids))
	for _, id := range ids {
		n, ok := s.graph.Node(id)
		if !ok {
			continue
		}
		out = append(out, fiber.Map{
			"id":     n.ID,
			"agent":  n.Agent,
			"status": n.Status.String(),
			"reads":  n.Reads,
			"writes": n.Writes,
		})
	}
	return c.JSON(out)
}

func (s *Server) node(c fiber.Ctx) error {
	id := c.Params("id")
	n, ok := s.graph.Node(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "node not found", "id": id,
		})
	}
	return c.JSON(fiber.Map{
		"id":             n.ID,
		"agent":          n.Agent,
		"description":    n.Description,
		"status":         n.Status.String(),
		"reads":          n.Reads,
		"writes":         n.Writes,
		"output":         n.Output,
		"error":          n.Error,
		"cost":           n.Cost,
		"input_tokens":   n.InputTokens,
		"output_tokens":  n.OutputTokens,
		"execution_time": n.ExecutionTime,
		"call_self_used": n.CallSelfUsed,
		"iterations":     len(n.Iterations),
	})
}

func (s *Server) vars(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"keys":   s.graph.Vars().Keys(),
		"values": s.graph.Vars().Snapshot(),
	})
}

func (s *Server) summary(c fiber.Ctx) error {
	return c.JSON(s.graph.Summary())
}
