package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/parlour-dev/parlour/backend/internal/auth"
	"github.com/parlour-dev/parlour/backend/internal/config"
	"github.com/parlour-dev/parlour/backend/internal/domain"
	"github.com/parlour-dev/parlour/backend/internal/handler"
	"github.com/parlour-dev/parlour/backend/internal/ledger"
	"github.com/parlour-dev/parlour/backend/internal/realtime"
	"github.com/parlour-dev/parlour/backend/internal/repository/memory"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/crypto/bcrypt"
)

const password = "password123"

var errStorage = errors.New("connection refused")

// faultyRepository 在 failOn 指定的操作上返回存储错误，其余操作交给内存存储
type faultyRepository struct {
	*memory.Memory

	mu     sync.Mutex
	failOn string
}

func (r *faultyRepository) setFailOn(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn = op
}

func (r *faultyRepository) fail(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == op {
		return errStorage
	}
	return nil
}

func (r *faultyRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if err := r.fail("user"); err != nil {
		return nil, err
	}
	return r.Memory.GetUserByID(ctx, id)
}

func (r *faultyRepository) GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error) {
	if err := r.fail("employee"); err != nil {
		return nil, err
	}
	return r.Memory.GetEmployeeByID(ctx, id)
}

func (r *faultyRepository) InsertAttendanceLog(ctx context.Context, log *domain.AttendanceLog) error {
	if err := r.fail("insert"); err != nil {
		return err
	}
	return r.Memory.InsertAttendanceLog(ctx, log)
}

func (r *faultyRepository) GetRecentAttendanceLogs(ctx context.Context, limit int) ([]*domain.AttendanceLog, error) {
	if err := r.fail("list"); err != nil {
		return nil, err
	}
	return r.Memory.GetRecentAttendanceLogs(ctx, limit)
}

type fakeMail struct {
	mu       sync.Mutex
	keys     []string
	messages []domain.MailMessage
}

func (m *fakeMail) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	var mailMessage domain.MailMessage
	if err := json.Unmarshal(msg.Body, &mailMessage); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	m.messages = append(m.messages, mailMessage)
	return nil
}

func (m *fakeMail) sent() []domain.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MailMessage(nil), m.messages...)
}

type recordingExporter struct {
	exported chan *domain.AttendanceLog
}

func (e *recordingExporter) ExportPunch(ctx context.Context, entry *domain.AttendanceLog) error {
	e.exported <- entry
	return nil
}

func (e *recordingExporter) Close() error {
	return nil
}

type memoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (r *memoryRevoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = ttl
	return nil
}

func (r *memoryRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[jti]
	return ok, nil
}

// observerConn 作为一个实时连接接收广播
type observerConn struct {
	messages  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newObserverConn() *observerConn {
	return &observerConn{messages: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *observerConn) WriteMessage(messageType int, data []byte) error {
	c.messages <- data
	return nil
}

func (c *observerConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *observerConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *observerConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type testEnv struct {
	handler     *handler.Handler
	repo        *memory.Memory
	faults      *faultyRepository
	issuer      *auth.Issuer
	broadcaster *realtime.Broadcaster
	mail        *fakeMail
	exporter    *recordingExporter
	observer    *observerConn

	adminToken      string
	superAdminToken string
	managerToken    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.CORS.AllowedOrigins = []string{"*"}
	cfg.RabbitMQ.Queue = "email_queue"
	cfg.RabbitMQ.PublishTimeout = 1
	cfg.Kafka.WriteTimeout = 1

	repo := memory.New()
	store := &faultyRepository{Memory: repo}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	gt.NoError(t, err).Required()

	issuer := auth.NewIssuer("test-secret", time.Hour)
	tokens := map[domain.Role]string{}
	for _, u := range []*domain.User{
		{Name: "Admin User", Email: "admin@parlour.com", Role: domain.RoleAdmin},
		{Name: "Super Admin", Email: "superadmin@parlour.com", Role: domain.RoleSuperAdmin},
		{Name: "Manager", Email: "manager@parlour.com", Role: domain.Role("manager")},
	} {
		u.PasswordHash = string(hash)
		gt.NoError(t, repo.CreateUser(ctx, u)).Required()
		token, err := issuer.Issue(u)
		gt.NoError(t, err).Required()
		tokens[u.Role] = token
	}

	revoker := &memoryRevoker{revoked: map[string]time.Duration{}}
	broadcaster := realtime.NewBroadcaster(16, time.Second)
	mail := &fakeMail{}
	exporter := &recordingExporter{exported: make(chan *domain.AttendanceLog, 16)}

	h, err := handler.NewHandler(handler.Deps{
		Config:      cfg,
		Repository:  store,
		Issuer:      issuer,
		Verifier:    auth.NewVerifier(issuer, store, revoker),
		Revoker:     revoker,
		Ledger:      ledger.New(store),
		Broadcaster: broadcaster,
		Exporter:    exporter,
		MailChannel: mail,
	})
	gt.NoError(t, err).Required()
	h.RegisterRoutes()

	observer := newObserverConn()
	broadcaster.Register(observer, auth.Identity{ID: "observer", Role: domain.RoleAdmin})
	t.Cleanup(broadcaster.Close)

	return &testEnv{
		handler:         h,
		repo:            repo,
		faults:          store,
		issuer:          issuer,
		broadcaster:     broadcaster,
		mail:            mail,
		exporter:        exporter,
		observer:        observer,
		adminToken:      tokens[domain.RoleAdmin],
		superAdminToken: tokens[domain.RoleSuperAdmin],
		managerToken:    tokens[domain.Role("manager")],
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		gt.NoError(t, json.NewEncoder(&buf).Encode(v)).Required()
	}

	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.handler.Mux.ServeHTTP(w, r)
	return w
}

func (e *testEnv) employee(t *testing.T, name, email string) *domain.Employee {
	t.Helper()

	employee := &domain.Employee{Name: name, Email: email, Role: "Hair Stylist", Department: "Hair", IsActive: true}
	gt.NoError(t, e.repo.CreateEmployee(context.Background(), employee)).Required()
	return employee
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &v)).Required()
	return v
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[handler.Response](t, w).Message
}

func TestPunch(t *testing.T) {
	type punchResponse struct {
		Message string               `json:"message"`
		Log     domain.AttendanceLog `json:"log"`
	}

	t.Run("records punch and notifies observers", func(t *testing.T) {
		env := newTestEnv(t)
		mohan := env.employee(t, "Mohan", "Mohan@parlour.com")

		w := env.do(t, "POST", "/attendance/punch", "", map[string]string{
			"employeeId": mohan.ID,
			"action":     "punch_in",
		})
		gt.Number(t, w.Code).Equal(http.StatusOK)

		resp := decode[punchResponse](t, w)
		gt.Value(t, resp.Message).Equal("Mohan punched in successfully")
		gt.Value(t, resp.Log.EmployeeID).Equal(mohan.ID)
		gt.Value(t, resp.Log.Action).Equal(domain.PunchIn)
		gt.Value(t, resp.Log.Employee).NotNil()
		gt.Value(t, resp.Log.Employee.Role).Equal("Hair Stylist")

		stored, err := env.repo.GetEmployeeByID(context.Background(), mohan.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, *stored.LastPunchAction).Equal(domain.PunchIn)
		gt.Bool(t, stored.LastPunchTime.Equal(resp.Log.Timestamp)).True()

		select {
		case msg := <-env.observer.messages:
			var ev struct {
				Event string               `json:"event"`
				Data  domain.AttendanceLog `json:"data"`
			}
			gt.NoError(t, json.Unmarshal(msg, &ev)).Required()
			gt.Value(t, ev.Event).Equal(realtime.EventAttendanceUpdate)
			gt.Value(t, ev.Data.ID).Equal(resp.Log.ID)
		case <-time.After(time.Second):
			t.Fatal("no attendance_update event")
		}

		select {
		case exported := <-env.exporter.exported:
			gt.Value(t, exported.ID).Equal(resp.Log.ID)
		case <-time.After(time.Second):
			t.Fatal("punch was not exported")
		}
	})

	t.Run("unknown employee", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, "POST", "/attendance/punch", "", map[string]string{
			"employeeId": "missing",
			"action":     "punch_out",
		})
		gt.Number(t, w.Code).Equal(http.StatusNotFound)
		gt.Value(t, message(t, w)).Equal("Employee not found")

		logs, err := env.repo.GetRecentAttendanceLogs(context.Background(), 10)
		gt.NoError(t, err).Required()
		gt.Array(t, logs).Length(0)

		select {
		case msg := <-env.observer.messages:
			t.Fatalf("unexpected broadcast: %s", msg)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("double punch in is accepted", func(t *testing.T) {
		env := newTestEnv(t)
		sarah := env.employee(t, "Sarah", "sarah@parlour.com")

		for i := 0; i < 2; i++ {
			w := env.do(t, "POST", "/attendance/punch", "", map[string]string{
				"employeeId": sarah.ID,
				"action":     "punch_in",
			})
			gt.Number(t, w.Code).Equal(http.StatusOK)
		}

		w := env.do(t, "GET", "/attendance/logs", env.adminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)
		logs := decode[[]domain.AttendanceLog](t, w)
		gt.Array(t, logs).Length(2)
		gt.Value(t, logs[0].Action).Equal(domain.PunchIn)
		gt.Value(t, logs[1].Action).Equal(domain.PunchIn)
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)
		virat := env.employee(t, "Virat", "virat@parlour.com")

		testCases := []struct {
			name string
			body any
			msg  string
		}{
			{name: "malformed body", body: "{", msg: "Invalid request body"},
			{name: "missing employee", body: map[string]string{"action": "punch_in"}, msg: "employeeId is a required field"},
			{name: "missing action", body: map[string]string{"employeeId": virat.ID}, msg: "action is a required field"},
			{name: "unknown action", body: map[string]string{"employeeId": virat.ID, "action": "lunch"}, msg: "action must be one of [punch_in punch_out]"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				w := env.do(t, "POST", "/attendance/punch", "", tc.body)
				gt.Number(t, w.Code).Equal(http.StatusBadRequest)
				gt.Value(t, message(t, w)).Equal(tc.msg)
			})
		}
	})
}

func TestAttendanceLogs(t *testing.T) {
	env := newTestEnv(t)
	mohan := env.employee(t, "Mohan", "Mohan@parlour.com")
	vikram := env.employee(t, "Vikram", "Vikram@parlour.com")

	for i := 0; i < 12; i++ {
		employeeID := mohan.ID
		if i%2 == 1 {
			employeeID = vikram.ID
		}
		w := env.do(t, "POST", "/attendance/punch", "", map[string]string{"employeeId": employeeID, "action": "punch_in"})
		gt.Number(t, w.Code).Equal(http.StatusOK)
	}

	t.Run("requires token", func(t *testing.T) {
		w := env.do(t, "GET", "/attendance/logs", "", nil)
		gt.Number(t, w.Code).Equal(http.StatusUnauthorized)
		gt.Value(t, message(t, w)).Equal("No token provided")
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		w := env.do(t, "GET", "/attendance/logs", "invalid", nil)
		gt.Number(t, w.Code).Equal(http.StatusUnauthorized)
		gt.Value(t, message(t, w)).Equal("Invalid token")
	})

	t.Run("returns newest ten to any verified user", func(t *testing.T) {
		for _, token := range []string{env.adminToken, env.superAdminToken, env.managerToken} {
			w := env.do(t, "GET", "/attendance/logs", token, nil)
			gt.Number(t, w.Code).Equal(http.StatusOK)

			logs := decode[[]domain.AttendanceLog](t, w)
			gt.Array(t, logs).Length(10)
			gt.Value(t, logs[0].EmployeeID).Equal(vikram.ID)
			for i := 1; i < len(logs); i++ {
				gt.Bool(t, logs[i].Timestamp.After(logs[i-1].Timestamp)).False()
			}
		}
	})

	t.Run("limit", func(t *testing.T) {
		w := env.do(t, "GET", "/attendance/logs?limit=3", env.adminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)
		gt.Array(t, decode[[]domain.AttendanceLog](t, w)).Length(3)

		for _, limit := range []string{"0", "11", "abc"} {
			w := env.do(t, "GET", "/attendance/logs?limit="+limit, env.adminToken, nil)
			gt.Number(t, w.Code).Equal(http.StatusBadRequest)
			gt.Value(t, message(t, w)).Equal("limit must be between 1 and 10")
		}
	})

	t.Run("logs survive employee deletion", func(t *testing.T) {
		w := env.do(t, "DELETE", "/employees/"+vikram.ID, env.superAdminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)

		w = env.do(t, "GET", "/attendance/logs", env.adminToken, nil)
		logs := decode[[]domain.AttendanceLog](t, w)
		gt.Array(t, logs).Length(10)
		gt.Value(t, logs[0].EmployeeID).Equal(vikram.ID)
		gt.Value(t, logs[0].Employee).Nil()
		gt.Value(t, logs[1].Employee).NotNil()
	})
}

func TestAuth(t *testing.T) {
	type loginResponse struct {
		Token string        `json:"token"`
		User  auth.Identity `json:"user"`
	}
	type meResponse struct {
		User auth.Identity `json:"user"`
	}

	t.Run("login and fetch identity", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, "POST", "/auth/login", "", map[string]string{"email": "admin@parlour.com", "password": password})
		gt.Number(t, w.Code).Equal(http.StatusOK)
		login := decode[loginResponse](t, w)
		gt.String(t, login.Token).NotEqual("")
		gt.Value(t, login.User.Role).Equal(domain.RoleAdmin)

		w = env.do(t, "GET", "/auth/me", login.Token, nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)
		me := decode[meResponse](t, w)
		gt.Value(t, me.User).Equal(login.User)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		env := newTestEnv(t)

		for _, body := range []map[string]string{
			{"email": "admin@parlour.com", "password": "wrong"},
			{"email": "nobody@parlour.com", "password": password},
		} {
			w := env.do(t, "POST", "/auth/login", "", body)
			gt.Number(t, w.Code).Equal(http.StatusUnauthorized)
			gt.Value(t, message(t, w)).Equal("Invalid credentials")
		}

		w := env.do(t, "POST", "/auth/login", "", map[string]string{"email": "admin@parlour.com"})
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, message(t, w)).Equal("password is a required field")
	})

	t.Run("token for removed user", func(t *testing.T) {
		env := newTestEnv(t)

		token, err := env.issuer.Issue(&domain.User{ID: "removed", Role: domain.RoleSuperAdmin})
		gt.NoError(t, err).Required()

		w := env.do(t, "GET", "/auth/me", token, nil)
		gt.Number(t, w.Code).Equal(http.StatusUnauthorized)
		gt.Value(t, message(t, w)).Equal("User not found")
	})

	t.Run("logout revokes token", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, "POST", "/auth/logout", env.adminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, message(t, w)).Equal("Logged out successfully")

		w = env.do(t, "GET", "/auth/me", env.adminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusUnauthorized)
		gt.Value(t, message(t, w)).Equal("Invalid token")

		w = env.do(t, "GET", "/auth/me", env.superAdminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)
	})
}

func TestEmployees(t *testing.T) {
	newEmployee := map[string]any{
		"name":       "Anshita",
		"email":      "Anshita@parlour.com",
		"role":       "Massage Therapist",
		"department": "Spa",
	}

	t.Run("listing is public", func(t *testing.T) {
		env := newTestEnv(t)
		env.employee(t, "Mohan", "Mohan@parlour.com")
		env.employee(t, "Vikram", "Vikram@parlour.com")

		w := env.do(t, "GET", "/employees", "", nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)
		employees := decode[[]domain.Employee](t, w)
		gt.Array(t, employees).Length(2)
		gt.Value(t, employees[0].Name).Equal("Mohan")
	})

	t.Run("mutations require super admin", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, "POST", "/employees", "", newEmployee)
		gt.Number(t, w.Code).Equal(http.StatusUnauthorized)

		w = env.do(t, "POST", "/employees", env.adminToken, newEmployee)
		gt.Number(t, w.Code).Equal(http.StatusForbidden)
		gt.Value(t, message(t, w)).Equal("Forbidden: Super Admins only")

		w = env.do(t, "DELETE", "/employees/missing", env.adminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusForbidden)
	})

	t.Run("create update delete", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, "POST", "/employees", env.superAdminToken, newEmployee)
		gt.Number(t, w.Code).Equal(http.StatusCreated)
		created := decode[domain.Employee](t, w)
		gt.String(t, created.ID).NotEqual("")
		gt.Bool(t, created.IsActive).True()
		gt.Value(t, created.LastPunchAction).Nil()

		w = env.do(t, "POST", "/employees", env.superAdminToken, newEmployee)
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, message(t, w)).Equal("Email already exists")

		w = env.do(t, "POST", "/attendance/punch", "", map[string]string{"employeeId": created.ID, "action": "punch_in"})
		gt.Number(t, w.Code).Equal(http.StatusOK)

		update := map[string]any{
			"name":       "Anshita K",
			"email":      "Anshita@parlour.com",
			"role":       "Massage Therapist",
			"department": "Spa",
			"isActive":   false,
		}
		w = env.do(t, "PUT", "/employees/"+created.ID, env.superAdminToken, update)
		gt.Number(t, w.Code).Equal(http.StatusOK)
		updated := decode[domain.Employee](t, w)
		gt.Value(t, updated.Name).Equal("Anshita K")
		gt.Bool(t, updated.IsActive).False()
		gt.Value(t, updated.LastPunchAction).NotNil()
		gt.Value(t, *updated.LastPunchAction).Equal(domain.PunchIn)

		w = env.do(t, "GET", "/employees/"+created.ID, "", nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, decode[domain.Employee](t, w).Name).Equal("Anshita K")

		w = env.do(t, "DELETE", "/employees/"+created.ID, env.superAdminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, message(t, w)).Equal("Employee deleted successfully")

		w = env.do(t, "GET", "/employees/"+created.ID, "", nil)
		gt.Number(t, w.Code).Equal(http.StatusNotFound)
		gt.Value(t, message(t, w)).Equal("Employee not found")
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, "POST", "/employees", env.superAdminToken, map[string]any{
			"name":       "Nobody",
			"email":      "not-an-email",
			"role":       "Receptionist",
			"department": "Front Desk",
		})
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, message(t, w)).Equal("email must be a valid email address")
	})

	t.Run("update to an existing email", func(t *testing.T) {
		env := newTestEnv(t)
		env.employee(t, "Mohan", "Mohan@parlour.com")
		vikram := env.employee(t, "Vikram", "Vikram@parlour.com")

		w := env.do(t, "PUT", "/employees/"+vikram.ID, env.superAdminToken, map[string]any{
			"name":       "Vikram",
			"email":      "Mohan@parlour.com",
			"role":       "Nail Technician",
			"department": "Nails",
		})
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, message(t, w)).Equal("Email already exists")
	})
}

func TestTasks(t *testing.T) {
	taskBody := func(assignee string) map[string]string {
		return map[string]string{
			"title":       "Restock towels",
			"description": "Refill the spa towel cabinet",
			"assignedTo":  assignee,
			"status":      "pending",
			"dueDate":     "2024-06-30",
		}
	}

	t.Run("access tiers", func(t *testing.T) {
		env := newTestEnv(t)
		mohan := env.employee(t, "Mohan", "Mohan@parlour.com")

		w := env.do(t, "GET", "/tasks", "", nil)
		gt.Number(t, w.Code).Equal(http.StatusUnauthorized)

		w = env.do(t, "GET", "/tasks", env.managerToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusForbidden)
		gt.Value(t, message(t, w)).Equal("Forbidden: Admins only")

		w = env.do(t, "GET", "/tasks", env.adminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)

		w = env.do(t, "POST", "/tasks", env.adminToken, taskBody(mohan.ID))
		gt.Number(t, w.Code).Equal(http.StatusForbidden)
		gt.Value(t, message(t, w)).Equal("Forbidden: Super Admins only")

		w = env.do(t, "GET", "/tasks/missing", env.adminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusNotFound)
		gt.Value(t, message(t, w)).Equal("Task not found")
	})

	t.Run("create update delete", func(t *testing.T) {
		env := newTestEnv(t)
		mohan := env.employee(t, "Mohan", "Mohan@parlour.com")
		sarah := env.employee(t, "Sarah", "sarah@parlour.com")

		w := env.do(t, "POST", "/tasks", env.superAdminToken, taskBody(mohan.ID))
		gt.Number(t, w.Code).Equal(http.StatusCreated)
		created := decode[domain.Task](t, w)
		gt.Value(t, created.AssignedTo).Equal(mohan.ID)
		gt.Value(t, created.Assignee).NotNil()
		gt.Value(t, created.Assignee.Name).Equal("Mohan")
		gt.Value(t, created.Assignee.Role).Equal("")
		gt.Bool(t, created.DueDate.Equal(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))).True()

		sent := env.mail.sent()
		gt.Array(t, sent).Length(1)
		gt.Value(t, sent[0].Type).Equal(domain.MailTypeTaskAssigned)
		gt.Value(t, sent[0].To).Equal("Mohan@parlour.com")
		gt.Value(t, env.mail.keys[0]).Equal("email_queue")

		w = env.do(t, "GET", "/tasks/"+created.ID, env.adminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, decode[domain.Task](t, w).Title).Equal("Restock towels")

		// 负责人不变时不再发送邮件
		update := taskBody(mohan.ID)
		update["status"] = "in_progress"
		w = env.do(t, "PUT", "/tasks/"+created.ID, env.superAdminToken, update)
		gt.Number(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, decode[domain.Task](t, w).Status).Equal(domain.TaskInProgress)
		gt.Array(t, env.mail.sent()).Length(1)

		w = env.do(t, "PUT", "/tasks/"+created.ID, env.superAdminToken, taskBody(sarah.ID))
		gt.Number(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, decode[domain.Task](t, w).Assignee.Name).Equal("Sarah")
		sent = env.mail.sent()
		gt.Array(t, sent).Length(2)
		gt.Value(t, sent[1].To).Equal("sarah@parlour.com")

		w = env.do(t, "DELETE", "/tasks/"+created.ID, env.superAdminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, message(t, w)).Equal("Task deleted successfully")

		w = env.do(t, "GET", "/tasks/"+created.ID, env.adminToken, nil)
		gt.Number(t, w.Code).Equal(http.StatusNotFound)
	})

	t.Run("tasks are ordered by due date", func(t *testing.T) {
		env := newTestEnv(t)
		mohan := env.employee(t, "Mohan", "Mohan@parlour.com")

		for _, due := range []string{"2024-07-10", "2024-07-01T09:00:00Z", "2024-07-05"} {
			body := taskBody(mohan.ID)
			body["dueDate"] = due
			w := env.do(t, "POST", "/tasks", env.superAdminToken, body)
			gt.Number(t, w.Code).Equal(http.StatusCreated)
		}

		w := env.do(t, "GET", "/tasks", env.adminToken, nil)
		tasks := decode[[]domain.Task](t, w)
		gt.Array(t, tasks).Length(3)
		for i := 1; i < len(tasks); i++ {
			gt.Bool(t, tasks[i].DueDate.Before(tasks[i-1].DueDate)).False()
		}
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)
		mohan := env.employee(t, "Mohan", "Mohan@parlour.com")

		w := env.do(t, "POST", "/tasks", env.superAdminToken, taskBody("missing"))
		gt.Number(t, w.Code).Equal(http.StatusNotFound)
		gt.Value(t, message(t, w)).Equal("Employee not found")

		body := taskBody(mohan.ID)
		body["status"] = "blocked"
		w = env.do(t, "POST", "/tasks", env.superAdminToken, body)
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, message(t, w)).Equal("status must be one of [pending in_progress completed]")

		body = taskBody(mohan.ID)
		body["dueDate"] = "next week"
		w = env.do(t, "POST", "/tasks", env.superAdminToken, body)
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, message(t, w)).Equal("dueDate must be a valid date")

		gt.Array(t, env.mail.sent()).Length(0)
	})
}

func TestStorageFailures(t *testing.T) {
	testCases := []struct {
		name   string
		failOn string
		method string
		path   string
		token  func(env *testEnv) string
		punch  bool
	}{
		{name: "punch employee lookup", failOn: "employee", method: "POST", path: "/attendance/punch", punch: true},
		{name: "punch insert", failOn: "insert", method: "POST", path: "/attendance/punch", punch: true},
		{name: "list logs", failOn: "list", method: "GET", path: "/attendance/logs", token: func(env *testEnv) string { return env.adminToken }},
		{name: "authenticate user lookup", failOn: "user", method: "GET", path: "/attendance/logs", token: func(env *testEnv) string { return env.adminToken }},
		{name: "me user lookup", failOn: "user", method: "GET", path: "/auth/me", token: func(env *testEnv) string { return env.superAdminToken }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			mohan := env.employee(t, "Mohan", "Mohan@parlour.com")

			var body any
			if tc.punch {
				body = map[string]string{"employeeId": mohan.ID, "action": "punch_in"}
			}
			token := ""
			if tc.token != nil {
				token = tc.token(env)
			}

			env.faults.setFailOn(tc.failOn)
			w := env.do(t, tc.method, tc.path, token, body)
			env.faults.setFailOn("")

			gt.Number(t, w.Code).Equal(http.StatusInternalServerError)
			gt.Value(t, message(t, w)).Equal("Server error")

			logs, err := env.repo.GetRecentAttendanceLogs(context.Background(), 10)
			gt.NoError(t, err).Required()
			gt.Array(t, logs).Length(0)

			stored, err := env.repo.GetEmployeeByID(context.Background(), mohan.ID)
			gt.NoError(t, err).Required()
			gt.Value(t, stored.LastPunchAction).Nil()

			select {
			case msg := <-env.observer.messages:
				t.Fatalf("unexpected broadcast: %s", msg)
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/healthz", "", nil)
	gt.Number(t, w.Code).Equal(http.StatusOK)

	body := decode[map[string]any](t, w)
	gt.Value(t, body["status"]).Equal(any("ok"))
	gt.Value(t, body["sessions"]).Equal(any(float64(1)))
}
