package peer

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/thellimist/mcphost/internal/taskstore"
)

const jsonMIME = "application/json"

func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource("tasks://all", "All tasks",
		mcp.WithResourceDescription("Every task, newest first"),
		mcp.WithMIMEType(jsonMIME),
	), s.readTasks(""))
	s.mcp.AddResource(mcp.NewResource("tasks://statistics", "Task statistics",
		mcp.WithResourceDescription("Counts by status and priority with the completion rate"),
		mcp.WithMIMEType(jsonMIME),
	), s.readStatistics)
	for _, st := range taskstore.Statuses {
		uri := "tasks://" + string(st)
		s.mcp.AddResource(mcp.NewResource(uri, fmt.Sprintf("Tasks %s", st),
			mcp.WithResourceDescription(fmt.Sprintf("Tasks with status %s", st)),
			mcp.WithMIMEType(jsonMIME),
		), s.readTasks(st))
	}

	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate("task://{task_id}", "Task by ID",
		mcp.WithTemplateDescription("A single task"),
		mcp.WithTemplateMIMEType(jsonMIME),
	), s.readTask)
	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate("tasks://status/{status}", "Tasks by status",
		mcp.WithTemplateDescription("Tasks in one status"),
		mcp.WithTemplateMIMEType(jsonMIME),
	), s.readTasksByStatus)
	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate("tasks://priority/{priority}", "Tasks by priority",
		mcp.WithTemplateDescription("Tasks of one priority"),
		mcp.WithTemplateMIMEType(jsonMIME),
	), s.readTasksByPriority)
}

func (s *Server) readTasks(status taskstore.Status) server.ResourceHandlerFunc {
	return func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonContents(req.Params.URI, s.store.List(status))
	}
}

func (s *Server) readStatistics(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(req.Params.URI, s.store.Statistics())
}

func (s *Server) readTask(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	task, err := s.store.Get(templateArg(req, "task_id"))
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, task)
}

func (s *Server) readTasksByStatus(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	status, err := taskstore.ParseStatus(templateArg(req, "status"))
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, s.store.List(status))
}

func (s *Server) readTasksByPriority(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	priority, err := taskstore.ParsePriority(templateArg(req, "priority"))
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, s.store.ListByPriority(priority))
}

// templateArg returns a variable matched from the resource template. The
// server stores matches as string slices.
func templateArg(req mcp.ReadResourceRequest, name string) string {
	switch v := req.Params.Arguments[name].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	text, err := marshalText(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: jsonMIME, Text: text},
	}, nil
}
