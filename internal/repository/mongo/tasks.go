package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
	"github.com/parlour-dev/parlour/backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type taskDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	AssignedTo  primitive.ObjectID `bson:"assigned_to"`
	Status      string             `bson:"status"`
	DueDate     time.Time          `bson:"due_date"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d *taskDocument) toDomain() *domain.Task {
	return &domain.Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		AssignedTo:  d.AssignedTo.Hex(),
		Status:      domain.TaskStatus(d.Status),
		DueDate:     d.DueDate,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// populate 为任务填充负责人信息，任务列表中只展示姓名和邮箱
func (s *Store) populate(ctx context.Context, tasks ...*domain.Task) error {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.AssignedTo)
	}

	summaries, err := s.summaries(ctx, ids)
	if err != nil {
		return err
	}

	for _, t := range tasks {
		if summary, ok := summaries[t.AssignedTo]; ok {
			assignee := *summary
			assignee.Role = ""
			t.Assignee = &assignee
		}
	}
	return nil
}

func (s *Store) GetAllTasks(ctx context.Context) ([]*domain.Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.tasks.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find tasks")
	}
	defer cursor.Close(ctx)

	tasks := make([]*domain.Task, 0)
	for cursor.Next(ctx) {
		var doc taskDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode task")
		}
		tasks = append(tasks, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate tasks")
	}

	if err := s.populate(ctx, tasks...); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Store) GetTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	oid, err := parseID(id, "task")
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc taskDocument
	if err := s.tasks.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, goerr.Wrap(repository.ErrNotFound, "task not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to find task", goerr.V("id", id))
	}

	task := doc.toDomain()
	if err := s.populate(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Store) CreateTask(ctx context.Context, task *domain.Task) error {
	assignee, err := parseID(task.AssignedTo, "employee")
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := &taskDocument{
		ID:          primitive.NewObjectID(),
		Title:       task.Title,
		Description: task.Description,
		AssignedTo:  assignee,
		Status:      string(task.Status),
		DueDate:     task.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.tasks.InsertOne(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to insert task")
	}

	*task = *doc.toDomain()
	return s.populate(ctx, task)
}

func (s *Store) UpdateTask(ctx context.Context, task *domain.Task) error {
	oid, err := parseID(task.ID, "task")
	if err != nil {
		return err
	}
	assignee, err := parseID(task.AssignedTo, "employee")
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"title":       task.Title,
		"description": task.Description,
		"assigned_to": assignee,
		"status":      string(task.Status),
		"due_date":    task.DueDate,
		"updated_at":  time.Now().UTC().Truncate(time.Millisecond),
	}}

	var doc taskDocument
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.tasks.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return goerr.Wrap(repository.ErrNotFound, "task not found", goerr.V("id", task.ID))
		}
		return goerr.Wrap(err, "failed to update task", goerr.V("id", task.ID))
	}

	*task = *doc.toDomain()
	return s.populate(ctx, task)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	oid, err := parseID(id, "task")
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.tasks.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return goerr.Wrap(err, "failed to delete task", goerr.V("id", id))
	}
	if result.DeletedCount == 0 {
		return goerr.Wrap(repository.ErrNotFound, "task not found", goerr.V("id", id))
	}
	return nil
}
