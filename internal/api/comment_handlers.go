package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"taskthread/internal/thread"
)

// CreateCommentRequest is the body of a new comment or reply
type CreateCommentRequest struct {
	Content  string `json:"content"`
	ParentID *int64 `json:"parentId,omitempty"`
}

// UpdateCommentRequest is the body of an edit
type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// DeleteCommentResponse reports how many comments a cascade removed
type DeleteCommentResponse struct {
	Deleted int `json:"deleted"`
}

// HandleListComments returns one page of a task's thread
func (s *Server) HandleListComments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	taskID, ok := idParam(r, "taskId")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid task ID", "invalid_input")
		return
	}

	pageIndex, ok := queryInt(r, "page", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid page", "invalid_input")
		return
	}
	pageSize, ok := queryInt(r, "size", thread.DefaultPageSize)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid size", "invalid_input")
		return
	}
	sort, err := thread.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "invalid_input")
		return
	}

	page, err := s.service.GetPage(ctx, taskID, thread.PageRequest{
		PageIndex: pageIndex,
		PageSize:  pageSize,
		Sort:      sort,
	})
	if err != nil {
		s.respondServiceError(w, r, err, "failed to fetch comments")
		return
	}

	respondJSON(w, http.StatusOK, page)
}

// HandleGetComment returns a single comment of a task
func (s *Server) HandleGetComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	taskID, commentID, ok := commentParams(w, r)
	if !ok {
		return
	}

	c, err := s.taskComment(ctx, taskID, commentID)
	if err != nil {
		s.respondServiceError(w, r, err, "failed to fetch comment")
		return
	}

	respondJSON(w, http.StatusOK, c)
}

// HandleCreateComment adds a root comment or a reply to a task
func (s *Server) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := GetUserID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	taskID, ok := idParam(r, "taskId")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid task ID", "invalid_input")
		return
	}

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_input")
		return
	}

	c, err := s.service.CreateComment(thread.WithActor(ctx, userID), thread.NewComment{
		TaskID:          taskID,
		AuthorID:        userID,
		Content:         req.Content,
		ParentCommentID: req.ParentID,
	})
	if err != nil {
		s.respondServiceError(w, r, err, "failed to create comment")
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

// HandleUpdateComment replaces the content of a comment
func (s *Server) HandleUpdateComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := GetUserID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	taskID, commentID, ok := commentParams(w, r)
	if !ok {
		return
	}

	var req UpdateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_input")
		return
	}
	if err := thread.ValidateContent(req.Content); err != nil {
		s.respondServiceError(w, r, err, "failed to update comment")
		return
	}

	if _, err := s.taskComment(ctx, taskID, commentID); err != nil {
		s.respondServiceError(w, r, err, "failed to update comment")
		return
	}

	c, err := s.service.UpdateComment(thread.WithActor(ctx, userID), commentID, req.Content)
	if err != nil {
		s.respondServiceError(w, r, err, "failed to update comment")
		return
	}

	respondJSON(w, http.StatusOK, c)
}

// HandleDeleteComment removes a comment together with its replies
func (s *Server) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := GetUserID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	taskID, commentID, ok := commentParams(w, r)
	if !ok {
		return
	}

	removed, err := s.service.DeleteComment(thread.WithActor(ctx, userID), taskID, commentID)
	if err != nil {
		s.respondServiceError(w, r, err, "failed to delete comment")
		return
	}

	respondJSON(w, http.StatusOK, DeleteCommentResponse{Deleted: removed})
}

func commentParams(w http.ResponseWriter, r *http.Request) (taskID, commentID int64, ok bool) {
	taskID, ok = idParam(r, "taskId")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid task ID", "invalid_input")
		return 0, 0, false
	}
	commentID, ok = idParam(r, "commentId")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid comment ID", "invalid_input")
		return 0, 0, false
	}
	return taskID, commentID, true
}

// taskComment loads a comment and checks that it belongs to taskID.
func (s *Server) taskComment(ctx context.Context, taskID, commentID int64) (*thread.Comment, error) {
	c, err := s.service.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.TaskID != taskID {
		return nil, fmt.Errorf("comment %d on task %d: %w", commentID, taskID, thread.ErrNotFound)
	}
	return c, nil
}
