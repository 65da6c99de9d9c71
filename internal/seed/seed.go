// Package seed loads YAML fixtures into an in-memory thread store so the
// server can run without a database.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"taskthread/internal/thread"
)

//go:embed default.yaml
var defaultFixtures []byte

// Fixtures is the top-level fixture document
type Fixtures struct {
	Tasks []TaskFixture `yaml:"tasks"`
}

// TaskFixture is a task and its root comments
type TaskFixture struct {
	Title    string           `yaml:"title"`
	Comments []CommentFixture `yaml:"comments"`
}

// CommentFixture is a comment created Age before load time. Replies may
// only hang off root comments.
type CommentFixture struct {
	Author  int64            `yaml:"author"`
	Age     string           `yaml:"age"`
	Content string           `yaml:"content"`
	Replies []CommentFixture `yaml:"replies"`
}

// Result summarises what a load created
type Result struct {
	Tasks    []int64
	Comments int
}

// Parse decodes a fixture document
func Parse(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	return &f, nil
}

// LoadFile loads the fixtures at path, or the built-in fixtures when path
// is empty
func LoadFile(ctx context.Context, store *thread.MemoryStore, path string, now time.Time, logger *zap.Logger) (*Result, error) {
	var f *Fixtures
	var err error
	if path == "" {
		f, err = Default()
	} else {
		var file *os.File
		file, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open fixtures: %w", err)
		}
		defer file.Close()
		f, err = Parse(file)
	}
	if err != nil {
		return nil, err
	}

	res, err := Load(ctx, store, f, now)
	if err != nil {
		return nil, err
	}

	if logger != nil {
		source := path
		if source == "" {
			source = "built-in"
		}
		logger.Info("Seeded thread store",
			zap.String("source", source),
			zap.Int("tasks", len(res.Tasks)),
			zap.Int("comments", res.Comments),
		)
	}
	return res, nil
}

// Default returns the built-in fixtures
func Default() (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(defaultFixtures, &f); err != nil {
		return nil, fmt.Errorf("failed to decode built-in fixtures: %w", err)
	}
	return &f, nil
}

// Load creates every task and comment of f in store. Comment timestamps
// are now minus each fixture's age.
func Load(ctx context.Context, store *thread.MemoryStore, f *Fixtures, now time.Time) (*Result, error) {
	res := &Result{}
	for i, tf := range f.Tasks {
		task, err := store.CreateTask(ctx, tf.Title)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		res.Tasks = append(res.Tasks, task.ID)

		for j, cf := range tf.Comments {
			root, err := importComment(ctx, store, task.ID, nil, cf, now)
			if err != nil {
				return nil, fmt.Errorf("task %d comment %d: %w", i, j, err)
			}
			res.Comments++

			for k, rf := range cf.Replies {
				if len(rf.Replies) > 0 {
					return nil, fmt.Errorf("task %d comment %d reply %d: %w: replies cannot have replies", i, j, k, thread.ErrValidation)
				}
				if _, err := importComment(ctx, store, task.ID, &root.ID, rf, now); err != nil {
					return nil, fmt.Errorf("task %d comment %d reply %d: %w", i, j, k, err)
				}
				res.Comments++
			}
		}
	}
	return res, nil
}

func importComment(ctx context.Context, store *thread.MemoryStore, taskID int64, parentID *int64, cf CommentFixture, now time.Time) (*thread.Comment, error) {
	if err := thread.ValidateContent(cf.Content); err != nil {
		return nil, err
	}

	var age time.Duration
	if cf.Age != "" {
		d, err := time.ParseDuration(cf.Age)
		if err != nil {
			return nil, fmt.Errorf("%w: age %q: %v", thread.ErrValidation, cf.Age, err)
		}
		age = d
	}

	return store.ImportComment(ctx, thread.NewComment{
		TaskID:          taskID,
		AuthorID:        cf.Author,
		Content:         cf.Content,
		ParentCommentID: parentID,
	}, now.Add(-age))
}
