package mongo

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type attendanceDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	EmployeeID primitive.ObjectID `bson:"employee_id"`
	Action     string             `bson:"action"`
	Timestamp  time.Time          `bson:"timestamp"`
}

func (d *attendanceDocument) toDomain() *domain.AttendanceLog {
	return &domain.AttendanceLog{
		ID:         d.ID.Hex(),
		EmployeeID: d.EmployeeID.Hex(),
		Action:     domain.PunchAction(d.Action),
		Timestamp:  d.Timestamp,
	}
}

func (s *Store) InsertAttendanceLog(ctx context.Context, log *domain.AttendanceLog) error {
	employeeID, err := parseID(log.EmployeeID, "employee")
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := &attendanceDocument{
		ID:         primitive.NewObjectID(),
		EmployeeID: employeeID,
		Action:     string(log.Action),
		Timestamp:  log.Timestamp,
	}
	if _, err := s.attendance.InsertOne(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to insert attendance log", goerr.V("employee_id", log.EmployeeID))
	}
	// 员工信息由调用方填充，写入成功后不再查询
	log.ID = doc.ID.Hex()
	return nil
}

func (s *Store) GetRecentAttendanceLogs(ctx context.Context, limit int) ([]*domain.AttendanceLog, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// ObjectID 单调递增，时间相同时按写入顺序倒序
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.attendance.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find attendance logs")
	}
	defer cursor.Close(ctx)

	logs := make([]*domain.AttendanceLog, 0, limit)
	ids := make([]string, 0, limit)
	for cursor.Next(ctx) {
		var doc attendanceDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode attendance log")
		}
		log := doc.toDomain()
		logs = append(logs, log)
		ids = append(ids, log.EmployeeID)
	}
	if err := cursor.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate attendance logs")
	}

	summaries, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, log := range logs {
		log.Employee = summaries[log.EmployeeID]
	}

	return logs, nil
}
