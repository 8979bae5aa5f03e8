package mongo

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection      = "users"
	employeesCollection  = "employees"
	tasksCollection      = "tasks"
	attendanceCollection = "attendance_logs"
)

type Store struct {
	client       *mongo.Client
	users        *mongo.Collection
	employees    *mongo.Collection
	tasks        *mongo.Collection
	attendance   *mongo.Collection
	queryTimeout time.Duration
}

var _ repository.Repository = &Store{}

// New 连接 MongoDB 并确保唯一索引存在
func New(ctx context.Context, uri, database string, queryTimeout time.Duration) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect mongo")
	}

	// mongo.Connect 不会立即建立连接，需要显式 ping 一下
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, goerr.Wrap(err, "failed to ping mongo")
	}

	db := client.Database(database)
	s := &Store{
		client:       client,
		users:        db.Collection(usersCollection),
		employees:    db.Collection(employeesCollection),
		tasks:        db.Collection(tasksCollection),
		attendance:   db.Collection(attendanceCollection),
		queryTimeout: queryTimeout,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: unique,
	}); err != nil {
		return goerr.Wrap(err, "failed to create users email index")
	}

	if _, err := s.employees.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: unique,
	}); err != nil {
		return goerr.Wrap(err, "failed to create employees email index")
	}

	if _, err := s.attendance.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}},
	}); err != nil {
		return goerr.Wrap(err, "failed to create attendance timestamp index")
	}

	if _, err := s.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "due_date", Value: 1}},
	}); err != nil {
		return goerr.Wrap(err, "failed to create tasks due date index")
	}

	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// parseID 把十六进制字符串转换为 ObjectID，非法的 ID 视为记录不存在
func parseID(id string, what string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, goerr.Wrap(repository.ErrNotFound, what+" not found", goerr.V("id", id))
	}
	return oid, nil
}

// mapWriteError 把唯一索引冲突转换为 repository.ErrDuplicateEmail
func mapWriteError(err error, msg string, values ...goerr.Option) error {
	if mongo.IsDuplicateKeyError(err) {
		return goerr.Wrap(repository.ErrDuplicateEmail, msg, values...)
	}
	return goerr.Wrap(err, msg, values...)
}
