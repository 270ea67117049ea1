// Package taskstore is the in-memory task repository served by the task peer.
package taskstore

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("task not found")
	ErrValidation = errors.New("invalid task")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: invalid status: %s. Must be one of %s", ErrValidation, s, joinValues(Statuses))
}

func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: invalid priority: %s. Must be one of %s", ErrValidation, s, joinValues(Priorities))
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTask is the input to Create. Empty Status and Priority take the
// pending/medium defaults.
type NewTask struct {
	Title       string
	Description string
	Status      string
	Priority    string
}

// Update is a partial update; nil fields are left unchanged.
type Update struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
}

type Statistics struct {
	Total          int              `json:"total"`
	ByStatus       map[Status]int   `json:"by_status"`
	ByPriority     map[Priority]int `json:"by_priority"`
	CompletionRate float64          `json:"completion_rate"`
	RecentTaskIDs  []string         `json:"recent_task_ids"`
}

const recentTasks = 5

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]Task
	now   func() time.Time
	newID func() string
}

func New() *Store {
	return &Store{
		tasks: make(map[string]Task),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *Store) Create(in NewTask) (Task, error) {
	title, err := requireText("title", in.Title)
	if err != nil {
		return Task{}, err
	}
	description, err := requireText("description", in.Description)
	if err != nil {
		return Task{}, err
	}

	status := StatusPending
	if in.Status != "" {
		if status, err = ParseStatus(in.Status); err != nil {
			return Task{}, err
		}
	}
	priority := PriorityMedium
	if in.Priority != "" {
		if priority, err = ParsePriority(in.Priority); err != nil {
			return Task{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	task := Task{
		ID:          s.newID(),
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tasks[task.ID] = task
	return task, nil
}

func (s *Store) Get(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return Task{}, notFound(id)
	}
	return task, nil
}

// List returns tasks newest first. An empty status returns every task.
func (s *Store) List(status Status) []Task {
	s.mu.RLock()
	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if status == "" || t.Status == status {
			tasks = append(tasks, t)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(tasks)
	return tasks
}

// ListByPriority returns tasks of one priority, newest first.
func (s *Store) ListByPriority(priority Priority) []Task {
	s.mu.RLock()
	tasks := []Task{}
	for _, t := range s.tasks {
		if t.Priority == priority {
			tasks = append(tasks, t)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(tasks)
	return tasks
}

func (s *Store) Update(id string, u Update) (Task, error) {
	// Validate everything before touching the task so a bad field leaves it
	// unchanged.
	var (
		title, description string
		status             Status
		priority           Priority
		err                error
	)
	if u.Title != nil {
		if title, err = requireText("title", *u.Title); err != nil {
			return Task{}, err
		}
	}
	if u.Description != nil {
		if description, err = requireText("description", *u.Description); err != nil {
			return Task{}, err
		}
	}
	if u.Status != nil {
		if status, err = ParseStatus(*u.Status); err != nil {
			return Task{}, err
		}
	}
	if u.Priority != nil {
		if priority, err = ParsePriority(*u.Priority); err != nil {
			return Task{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return Task{}, notFound(id)
	}
	if u.Title != nil {
		task.Title = title
	}
	if u.Description != nil {
		task.Description = description
	}
	if u.Status != nil {
		task.Status = status
	}
	if u.Priority != nil {
		task.Priority = priority
	}
	task.UpdatedAt = s.now()
	s.tasks[id] = task
	return task, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return notFound(id)
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) Statistics() Statistics {
	tasks := s.List("")

	stats := Statistics{
		Total:         len(tasks),
		ByStatus:      make(map[Status]int, len(Statuses)),
		ByPriority:    make(map[Priority]int, len(Priorities)),
		RecentTaskIDs: []string{},
	}
	for _, st := range Statuses {
		stats.ByStatus[st] = 0
	}
	for _, p := range Priorities {
		stats.ByPriority[p] = 0
	}
	for i, t := range tasks {
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
		if i < recentTasks {
			stats.RecentTaskIDs = append(stats.RecentTaskIDs, t.ID)
		}
	}
	if stats.Total > 0 {
		rate := float64(stats.ByStatus[StatusCompleted]) / float64(stats.Total) * 100
		stats.CompletionRate = math.Round(rate*100) / 100
	}
	return stats
}

// Seed loads the sample tasks. Creation times are staggered so the
// newest-first order is stable.
func (s *Store) Seed() error {
	samples := []NewTask{
		{Title: "Learn MCP Protocol", Description: "Study the Model Context Protocol specification and message flow", Status: "in_progress", Priority: "high"},
		{Title: "Build MCP Server", Description: "Implement a server exposing task tools and resources", Status: "completed", Priority: "high"},
		{Title: "Test Integration", Description: "Exercise the host against the task server end to end", Status: "pending", Priority: "medium"},
		{Title: "Write Documentation", Description: "Document the REST API and configuration options", Status: "pending", Priority: "medium"},
		{Title: "Performance Optimization", Description: "Profile request handling and reduce latency", Status: "pending", Priority: "low"},
	}

	base := s.now().Add(-time.Duration(len(samples)) * time.Minute)
	for i, in := range samples {
		task, err := s.Create(in)
		if err != nil {
			return fmt.Errorf("seed %q: %w", in.Title, err)
		}
		s.mu.Lock()
		task.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		task.UpdatedAt = task.CreatedAt
		s.tasks[task.ID] = task
		s.mu.Unlock()
	}
	return nil
}

func requireText(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s cannot be empty", ErrValidation, capitalize(field))
	}
	return trimmed, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func notFound(id string) error {
	return fmt.Errorf("%w with ID: %s", ErrNotFound, id)
}

func sortNewestFirst(tasks []Task) {
	slices.SortFunc(tasks, func(a, b Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
