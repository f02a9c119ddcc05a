package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"taskflow/internal/app"
	"taskflow/internal/attach"
	"taskflow/internal/domain"
	"taskflow/internal/engine"
	"taskflow/internal/engine/auth"
	"taskflow/internal/query"
	"taskflow/internal/report"
)

// Config for the HTTP API handler.
type Config struct {
	Session  *app.Session
	BasePath string
	Auth     AuthConfig
	Now      func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"task_busy"`
	Message string         `json:"message" example:"task has an attachment upload in progress"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"task_id\":\"t1\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// maxAttachmentBody fits a full-size upload after base64 expansion.
const maxAttachmentBody = 4 * attach.MaxSize

// New returns an HTTP handler exposing the taskflow API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Session == nil {
		return nil, errors.New("server needs a session")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(io.LimitReader(r.Body, maxAttachmentBody+1))
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Session))
	hcfg := huma.DefaultConfig("Taskflow API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerUsers(group, cfg)
	registerTasks(group, cfg)
	registerTaskActions(group, cfg)
	registerReports(group, cfg)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	msg := err.Error()
	switch {
	case errors.Is(err, app.ErrTaskNotFound):
		return newAPIError(http.StatusNotFound, "task_not_found", msg, nil)
	case errors.Is(err, app.ErrUserNotFound):
		return newAPIError(http.StatusNotFound, "user_not_found", msg, nil)
	case errors.Is(err, app.ErrTaskBusy):
		return newAPIError(http.StatusConflict, "task_busy", msg, nil)
	case errors.Is(err, app.ErrConfirmationRequired):
		return newAPIError(http.StatusPreconditionFailed, "confirmation_required", msg, map[string]any{"hint": "repeat with confirm=true"})
	case errors.Is(err, attach.ErrTooLarge):
		return newAPIError(http.StatusRequestEntityTooLarge, "attachment_too_large", msg, map[string]any{"max_bytes": attach.MaxSize})
	case errors.Is(err, engine.ErrInvalidInput):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case errors.Is(err, context.Canceled):
		return newAPIError(http.StatusServiceUnavailable, "canceled", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	docPath := path.Join(basePath, "openapi.json")
	r.Get(docPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Patch,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["userHeader"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-User-Id",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"userHeader": {}},
	}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Patch,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Taskflow API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Act as a user with Authorization: Bearer &lt;token&gt; or X-User-Id.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerUsers(api huma.API, cfg Config) {
	sess := cfg.Session

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "Team roster",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: mapUsers(sess.Users())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Acting user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		p, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{User: userResponse(p.User), Source: p.Source}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-current-user",
		Method:      http.MethodGet,
		Path:        "/session/current-user",
		Summary:     "Session current user",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(sess.CurrentUser())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-current-user",
		Method:      http.MethodPut,
		Path:        "/session/current-user",
		Summary:     "Switch session current user",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body SwitchUserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.UserID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id is required", nil)
		}
		u, err := sess.SwitchUser(ctx, strings.TrimSpace(input.Body.UserID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})
}

// visibleTask loads id and checks that actor may see it.
func visibleTask(sess *app.Session, actor domain.User, id string) (domain.Task, error) {
	t, err := sess.Task(id)
	if err != nil {
		return domain.Task{}, err
	}
	if err := auth.RequireView(actor, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func registerTasks(api huma.API, cfg Config) {
	sess := cfg.Session

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "Tasks visible to the acting user, ordered by due date",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Search     string `query:"search"`
		Status     string `query:"status"`
		Priority   string `query:"priority"`
		AssigneeID string `query:"assignee_id"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items := sess.Visible(actor, query.TaskFilters{
			SearchTerm: input.Search,
			Status:     input.Status,
			Priority:   input.Priority,
			AssigneeID: input.AssigneeID,
		})
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items, sess.Users(), cfg.now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TaskCreateOptions{
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			Status:      domain.Status(stringOrEmpty(input.Body.Status)),
			Priority:    domain.Priority(stringOrEmpty(input.Body.Priority)),
			DueDate:     input.Body.DueDate,
			AssigneeIDs: input.Body.AssigneeIDs,
			IsRecurring: input.Body.IsRecurring,
			ActorID:     actor.ID,
		}
		if input.Body.RecurrenceInterval != nil {
			opts.RecurrenceInterval = domain.RecurrenceInterval(*input.Body.RecurrenceInterval)
		}
		t, err := sess.CreateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t, sess.Users(), cfg.now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := visibleTask(sess, actor, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t, sess.Users(), cfg.now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Edit task fields",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body MutationResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := visibleTask(sess, actor, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		b := input.Body
		opts := engine.TaskUpdateOptions{
			Title:       b.Title,
			Description: b.Description,
			DueDate:     b.DueDate,
			AssigneeIDs: b.AssigneeIDs,
			IsRecurring: b.IsRecurring,
			ActorID:     actor.ID,
		}
		if b.Status != nil {
			s := domain.Status(*b.Status)
			opts.Status = &s
		}
		if b.Priority != nil {
			p := domain.Priority(*b.Priority)
			opts.Priority = &p
		}
		if b.RecurrenceInterval != nil {
			ri := domain.RecurrenceInterval(*b.RecurrenceInterval)
			opts.RecurrenceInterval = &ri
		}
		out, err := sess.UpdateTask(ctx, input.TaskID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MutationResponse `json:"body"`
		}{Body: mutationResponse(out, sess.Users(), cfg.now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete task (requires confirm=true)",
		Errors: []int{
			http.StatusForbidden,
			http.StatusConflict,
			http.StatusPreconditionFailed,
		},
	}, func(ctx context.Context, input *struct {
		TaskID  string `path:"task_id"`
		Confirm bool   `query:"confirm"`
	}) (*struct {
		Body DeleteTaskResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := visibleTask(sess, actor, input.TaskID); err != nil && !errors.Is(err, app.ErrTaskNotFound) {
			return nil, handleError(err)
		}
		deleted, err := sess.DeleteTask(ctx, input.TaskID, input.Confirm)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeleteTaskResponse `json:"body"`
		}{Body: DeleteTaskResponse{Deleted: deleted}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-audit",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/audit",
		Summary:     "Task audit log, oldest first",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body []AuditEntryResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := visibleTask(sess, actor, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []AuditEntryResponse `json:"body"`
		}{Body: auditResponse(t.AuditLog, sess.Users())}, nil
	})
}

func registerTaskActions(api huma.API, cfg Config) {
	sess := cfg.Session
	respond := func(out engine.Outcome) *struct {
		Body MutationResponse `json:"body"`
	} {
		return &struct {
			Body MutationResponse `json:"body"`
		}{Body: mutationResponse(out, sess.Users(), cfg.now())}
	}
	errs := []int{
		http.StatusBadRequest,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusConflict,
	}

	huma.Register(api, huma.Operation{
		OperationID: "set-task-status",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}/status",
		Summary:     "Change status; completing a recurring task spawns the next occurrence",
		Errors:      errs,
	}, func(ctx context.Context, input *struct {
		TaskID string           `path:"task_id"`
		Body   SetStatusRequest `json:"body"`
	}) (*struct {
		Body MutationResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := visibleTask(sess, actor, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		out, err := sess.ChangeStatus(ctx, input.TaskID, domain.Status(input.Body.Status), actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-priority",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}/priority",
		Summary:     "Change priority",
		Errors:      errs,
	}, func(ctx context.Context, input *struct {
		TaskID string             `path:"task_id"`
		Body   SetPriorityRequest `json:"body"`
	}) (*struct {
		Body MutationResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := visibleTask(sess, actor, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		out, err := sess.ChangePriority(ctx, input.TaskID, domain.Priority(input.Body.Priority), actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-comment",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/comments",
		Summary:     "Add comment; blank content is ignored",
		Errors:      errs,
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   AddCommentRequest `json:"body"`
	}) (*struct {
		Body MutationResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := visibleTask(sess, actor, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		out, err := sess.AddComment(ctx, input.TaskID, input.Body.Content, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:  "add-attachments",
		Method:       http.MethodPost,
		Path:         "/tasks/{task_id}/attachments",
		Summary:      "Attach files (base64 content)",
		MaxBodyBytes: maxAttachmentBody,
		Errors: append(errs,
			http.StatusRequestEntityTooLarge,
		),
	}, func(ctx context.Context, input *struct {
		TaskID string                `path:"task_id"`
		Body   AddAttachmentsRequest `json:"body"`
	}) (*struct {
		Body MutationResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := visibleTask(sess, actor, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		uploads := make([]attach.Upload, 0, len(input.Body.Files))
		for i, f := range input.Body.Files {
			if strings.TrimSpace(f.Name) == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "attachment name is required",
					map[string]any{"field": fmt.Sprintf("files[%d].name", i)})
			}
			data, err := base64.StdEncoding.DecodeString(f.ContentBase64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid base64 content",
					map[string]any{"field": fmt.Sprintf("files[%d].content_base64", i)})
			}
			uploads = append(uploads, attach.Upload{
				Name:        f.Name,
				ContentType: f.ContentType,
				Content:     bytes.NewReader(data),
			})
		}
		out, err := sess.AddAttachments(ctx, input.TaskID, uploads, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(out), nil
	})
}

func registerReports(api huma.API, cfg Config) {
	sess := cfg.Session

	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Team metrics (managers only)",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body report.Metrics `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.RequireManager(actor); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body report.Metrics `json:"body"`
		}{Body: report.Dashboard(sess.Tasks(), sess.Users(), cfg.now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "calendar",
		Method:      http.MethodGet,
		Path:        "/calendar",
		Summary:     "Month grid of visible tasks, filtered like the task list",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Month      string `query:"month" doc:"YYYY-MM, defaults to the current month"`
		Search     string `query:"search"`
		Status     string `query:"status"`
		Priority   string `query:"priority"`
		AssigneeID string `query:"assignee_id"`
	}) (*struct {
		Body CalendarResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		now := cfg.now()
		year, month, err := report.ParseMonth(input.Month, now)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "month must be YYYY-MM", map[string]any{"month": input.Month})
		}
		visible := sess.Visible(actor, query.TaskFilters{
			SearchTerm: input.Search,
			Status:     input.Status,
			Priority:   input.Priority,
			AssigneeID: input.AssigneeID,
		})
		return &struct {
			Body CalendarResponse `json:"body"`
		}{Body: calendarResponse(report.MonthGrid(visible, year, month, now), now)}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}
