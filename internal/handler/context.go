package handler

type ContextKey string

var (
	IdentityCtxKey ContextKey = "identity"
	ClaimsCtxKey   ContextKey = "claims"
	EmployeeCtx    ContextKey = "employee"
	TaskCtx        ContextKey = "task"
)
