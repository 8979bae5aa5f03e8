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

type employeeDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	Email           string             `bson:"email"`
	Role            string             `bson:"role"`
	Department      string             `bson:"department"`
	IsActive        bool               `bson:"is_active"`
	LastPunchAction *string            `bson:"last_punch_action,omitempty"`
	LastPunchTime   *time.Time         `bson:"last_punch_time,omitempty"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

func (d *employeeDocument) toDomain() *domain.Employee {
	e := &domain.Employee{
		ID:         d.ID.Hex(),
		Name:       d.Name,
		Email:      d.Email,
		Role:       d.Role,
		Department: d.Department,
		IsActive:   d.IsActive,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if d.LastPunchAction != nil && d.LastPunchTime != nil {
		action := domain.PunchAction(*d.LastPunchAction)
		at := *d.LastPunchTime
		e.LastPunchAction = &action
		e.LastPunchTime = &at
	}
	return e
}

func (s *Store) GetAllEmployees(ctx context.Context) ([]*domain.Employee, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.employees.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find employees")
	}
	defer cursor.Close(ctx)

	employees := make([]*domain.Employee, 0)
	for cursor.Next(ctx) {
		var doc employeeDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode employee")
		}
		employees = append(employees, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate employees")
	}

	return employees, nil
}

func (s *Store) GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error) {
	oid, err := parseID(id, "employee")
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc employeeDocument
	if err := s.employees.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, goerr.Wrap(repository.ErrNotFound, "employee not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to find employee", goerr.V("id", id))
	}
	return doc.toDomain(), nil
}

func (s *Store) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := &employeeDocument{
		ID:         primitive.NewObjectID(),
		Name:       employee.Name,
		Email:      employee.Email,
		Role:       employee.Role,
		Department: employee.Department,
		IsActive:   employee.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.employees.InsertOne(ctx, doc); err != nil {
		return mapWriteError(err, "failed to insert employee", goerr.V("email", employee.Email))
	}

	*employee = *doc.toDomain()
	return nil
}

func (s *Store) UpdateEmployee(ctx context.Context, employee *domain.Employee) error {
	oid, err := parseID(employee.ID, "employee")
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// 打卡缓存字段只能由考勤记录更新
	update := bson.M{"$set": bson.M{
		"name":       employee.Name,
		"email":      employee.Email,
		"role":       employee.Role,
		"department": employee.Department,
		"is_active":  employee.IsActive,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	var doc employeeDocument
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.employees.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return goerr.Wrap(repository.ErrNotFound, "employee not found", goerr.V("id", employee.ID))
		}
		return mapWriteError(err, "failed to update employee", goerr.V("id", employee.ID))
	}

	*employee = *doc.toDomain()
	return nil
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	oid, err := parseID(id, "employee")
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.employees.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return goerr.Wrap(err, "failed to delete employee", goerr.V("id", id))
	}
	if result.DeletedCount == 0 {
		return goerr.Wrap(repository.ErrNotFound, "employee not found", goerr.V("id", id))
	}
	return nil
}

func (s *Store) UpdateEmployeePunch(ctx context.Context, id string, action domain.PunchAction, at time.Time) error {
	oid, err := parseID(id, "employee")
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"last_punch_action": string(action),
		"last_punch_time":   at,
		"updated_at":        time.Now().UTC().Truncate(time.Millisecond),
	}}
	result, err := s.employees.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return goerr.Wrap(err, "failed to update employee punch", goerr.V("id", id))
	}
	if result.MatchedCount == 0 {
		return goerr.Wrap(repository.ErrNotFound, "employee not found", goerr.V("id", id))
	}
	return nil
}

// summaries 批量查询员工摘要，找不到的员工不会出现在结果中
func (s *Store) summaries(ctx context.Context, ids []string) (map[string]*domain.EmployeeSummary, error) {
	result := make(map[string]*domain.EmployeeSummary, len(ids))

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return result, nil
	}

	projection := options.Find().SetProjection(bson.M{"name": 1, "email": 1, "role": 1})
	cursor, err := s.employees.Find(ctx, bson.M{"_id": bson.M{"$in": oids}}, projection)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find employee summaries")
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc employeeDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode employee summary")
		}
		result[doc.ID.Hex()] = &domain.EmployeeSummary{
			ID:    doc.ID.Hex(),
			Name:  doc.Name,
			Email: doc.Email,
			Role:  doc.Role,
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate employee summaries")
	}

	return result, nil
}
