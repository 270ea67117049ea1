package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/thellimist/mcphost/internal/taskstore"
)

type createTaskArgs struct {
	Title       string `json:"title" jsonschema:"description=Short title of the task"`
	Description string `json:"description" jsonschema:"description=What needs to be done"`
	Priority    string `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high,default=medium"`
	Status      string `json:"status,omitempty" jsonschema:"enum=pending,enum=in_progress,enum=completed,default=pending"`
}

type listTasksArgs struct {
	Status string `json:"status,omitempty" jsonschema:"description=Only return tasks in this status,enum=pending,enum=in_progress,enum=completed"`
}

type taskIDArgs struct {
	TaskID string `json:"task_id" jsonschema:"description=Identifier returned by create_task"`
}

type updateTaskArgs struct {
	TaskID      string  `json:"task_id" jsonschema:"description=Identifier returned by create_task"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" jsonschema:"enum=pending,enum=in_progress,enum=completed"`
	Priority    *string `json:"priority,omitempty" jsonschema:"enum=low,enum=medium,enum=high"`
}

type noArgs struct{}

type listTasksResult struct {
	Tasks  []taskstore.Task `json:"tasks"`
	Count  int              `json:"count"`
	Filter string           `json:"filter"`
}

// inputSchema reflects the argument struct A into the tool's JSON schema.
func inputSchema[A any]() json.RawMessage {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(new(A))
	s.Version = ""
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("reflect input schema: %v", err))
	}
	return data
}

// typedHandler binds the call arguments into A before invoking fn. Binding
// failures are reported to the caller as tool errors.
func typedHandler[A any](fn func(context.Context, A) (*mcp.CallToolResult, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args A
		if req.Params.Arguments != nil {
			if err := req.BindArguments(&args); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
		}
		return fn(ctx, args)
	}
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewToolWithRawSchema("create_task",
		"Create a new task with a title, description, priority and status",
		inputSchema[createTaskArgs]()), typedHandler(s.createTask))
	s.mcp.AddTool(mcp.NewToolWithRawSchema("list_tasks",
		"List tasks, newest first, optionally filtered by status",
		inputSchema[listTasksArgs]()), typedHandler(s.listTasks))
	s.mcp.AddTool(mcp.NewToolWithRawSchema("get_task",
		"Get a single task by its ID",
		inputSchema[taskIDArgs]()), typedHandler(s.getTask))
	s.mcp.AddTool(mcp.NewToolWithRawSchema("update_task",
		"Update the title, description, status or priority of a task",
		inputSchema[updateTaskArgs]()), typedHandler(s.updateTask))
	s.mcp.AddTool(mcp.NewToolWithRawSchema("delete_task",
		"Delete a task by its ID",
		inputSchema[taskIDArgs]()), typedHandler(s.deleteTask))
	s.mcp.AddTool(mcp.NewToolWithRawSchema("get_statistics",
		"Summarize tasks by status and priority",
		inputSchema[noArgs]()), typedHandler(s.getStatistics))
}

func (s *Server) createTask(_ context.Context, args createTaskArgs) (*mcp.CallToolResult, error) {
	task, err := s.store.Create(taskstore.NewTask{
		Title:       args.Title,
		Description: args.Description,
		Status:      args.Status,
		Priority:    args.Priority,
	})
	if err != nil {
		return s.toolError("create_task", err)
	}
	s.logger.Info("task created", "id", task.ID, "title", task.Title)
	return jsonResult(task)
}

func (s *Server) listTasks(_ context.Context, args listTasksArgs) (*mcp.CallToolResult, error) {
	var status taskstore.Status
	if args.Status != "" {
		var err error
		if status, err = taskstore.ParseStatus(args.Status); err != nil {
			return s.toolError("list_tasks", err)
		}
	}
	tasks := s.store.List(status)
	filter := args.Status
	if filter == "" {
		filter = "all"
	}
	return jsonResult(listTasksResult{Tasks: tasks, Count: len(tasks), Filter: filter})
}

func (s *Server) getTask(_ context.Context, args taskIDArgs) (*mcp.CallToolResult, error) {
	task, err := s.store.Get(args.TaskID)
	if err != nil {
		return s.toolError("get_task", err)
	}
	return jsonResult(task)
}

func (s *Server) updateTask(_ context.Context, args updateTaskArgs) (*mcp.CallToolResult, error) {
	task, err := s.store.Update(args.TaskID, taskstore.Update{
		Title:       args.Title,
		Description: args.Description,
		Status:      args.Status,
		Priority:    args.Priority,
	})
	if err != nil {
		return s.toolError("update_task", err)
	}
	s.logger.Info("task updated", "id", task.ID)
	return jsonResult(task)
}

func (s *Server) deleteTask(_ context.Context, args taskIDArgs) (*mcp.CallToolResult, error) {
	if err := s.store.Delete(args.TaskID); err != nil {
		return s.toolError("delete_task", err)
	}
	s.logger.Info("task deleted", "id", args.TaskID)
	return jsonResult(map[string]any{"deleted": true, "task_id": args.TaskID})
}

func (s *Server) getStatistics(_ context.Context, _ noArgs) (*mcp.CallToolResult, error) {
	return jsonResult(s.store.Statistics())
}

// toolError turns store failures into isError results. Anything else is a
// server fault and surfaces as a JSON-RPC error.
func (s *Server) toolError(tool string, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, taskstore.ErrValidation) || errors.Is(err, taskstore.ErrNotFound) {
		s.logger.Debug("tool call rejected", "tool", tool, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, fmt.Errorf("%s: %w", tool, err)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	text, err := marshalText(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(text), nil
}
