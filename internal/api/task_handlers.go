package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// CreateTaskRequest is the body of a new task
type CreateTaskRequest struct {
	Title string `json:"title"`
}

// HandleCreateTask creates a task with an empty thread
func (s *Server) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_input")
		return
	}

	task, err := s.service.CreateTask(ctx, req.Title)
	if err != nil {
		s.respondServiceError(w, r, err, "failed to create task")
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// HandleGetTask returns a task
func (s *Server) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	taskID, ok := idParam(r, "taskId")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid task ID", "invalid_input")
		return
	}

	task, err := s.service.GetTask(ctx, taskID)
	if err != nil {
		s.respondServiceError(w, r, err, "failed to get task")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// HandleDeleteTask removes a task and its thread
func (s *Server) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	taskID, ok := idParam(r, "taskId")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid task ID", "invalid_input")
		return
	}

	if err := s.service.DeleteTask(ctx, taskID); err != nil {
		s.respondServiceError(w, r, err, "failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
