package handler

import (
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/parlour-dev/parlour/backend/internal/auth"
	"github.com/parlour-dev/parlour/backend/internal/config"
	"github.com/parlour-dev/parlour/backend/internal/events"
	"github.com/parlour-dev/parlour/backend/internal/ledger"
	"github.com/parlour-dev/parlour/backend/internal/realtime"
	"github.com/parlour-dev/parlour/backend/internal/repository"
)

// Deps 是 Handler 依赖的组件，全部在进程启动时创建一次
type Deps struct {
	Config      *config.Config
	Repository  repository.Repository
	Issuer      *auth.Issuer
	Verifier    *auth.Verifier
	Revoker     auth.Revoker // 可以为 nil
	Ledger      *ledger.Ledger
	Broadcaster *realtime.Broadcaster
	Exporter    events.Exporter // 可以为 nil
	MailChannel MailPublisher   // 可以为 nil
}

type Handler struct {
	validate    *validator.Validate
	translator  ut.Translator
	config      *config.Config
	repository  repository.Repository
	issuer      *auth.Issuer
	verifier    *auth.Verifier
	revoker     auth.Revoker
	ledger      *ledger.Ledger
	broadcaster *realtime.Broadcaster
	realtime    *realtime.Server
	exporter    events.Exporter
	mailChannel MailPublisher

	Mux *chi.Mux
}

func NewHandler(deps Deps) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息中使用 json 字段名
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	exporter := deps.Exporter
	if exporter == nil {
		exporter = events.NewNoopExporter()
	}

	return &Handler{
		validate:    validate,
		translator:  trans,
		config:      deps.Config,
		repository:  deps.Repository,
		issuer:      deps.Issuer,
		verifier:    deps.Verifier,
		revoker:     deps.Revoker,
		ledger:      deps.Ledger,
		broadcaster: deps.Broadcaster,
		realtime:    realtime.NewServer(deps.Broadcaster, deps.Verifier, originChecker(deps.Config.CORS.AllowedOrigins)),
		exporter:    exporter,
		mailChannel: deps.MailChannel,

		Mux: chi.NewRouter(),
	}, nil
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// 非浏览器客户端不会携带 Origin
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(middleware.RequestID)
	h.Mux.Use(middleware.RealIP)
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h.Mux.Get("/healthz", h.Health)
	h.Mux.Handle("/ws", h.realtime)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/me", h.GetMe)
			r.Post("/logout", h.Logout)
		})
	})

	h.Mux.Route("/attendance", func(r chi.Router) {
		r.Post("/punch", h.Punch) // 前台打卡终端使用，不需要登录
		r.With(h.authenticate).Get("/logs", h.GetAttendanceLogs)
	})

	h.Mux.Route("/employees", func(r chi.Router) {
		r.Get("/", h.GetAllEmployees) // 打卡页面需要员工列表，因此公开
		r.With(h.authenticate, h.requireTier(auth.TierSuperAdminOnly)).Post("/", h.CreateEmployee)
		r.Route("/{id}", func(r chi.Router) {
			r.With(h.employeeInfo).Get("/", h.GetEmployee)
			r.With(h.authenticate, h.requireTier(auth.TierSuperAdminOnly), h.employeeInfo).Put("/", h.UpdateEmployee)
			r.With(h.authenticate, h.requireTier(auth.TierSuperAdminOnly), h.employeeInfo).Delete("/", h.DeleteEmployee)
		})
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Route("/tasks", func(r chi.Router) {
		r.Use(h.authenticate)
		r.With(h.requireTier(auth.TierAdminOrAbove)).Get("/", h.GetAllTasks)
		r.With(h.requireTier(auth.TierSuperAdminOnly)).Post("/", h.CreateTask)
		r.Route("/{id}", func(r chi.Router) {
			r.With(h.requireTier(auth.TierAdminOrAbove), h.taskInfo).Get("/", h.GetTask)
			r.With(h.requireTier(auth.TierSuperAdminOnly), h.taskInfo).Put("/", h.UpdateTask)
			r.With(h.requireTier(auth.TierSuperAdminOnly), h.taskInfo).Delete("/", h.DeleteTask)
		})
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.broadcaster.Count(),
	})
}
