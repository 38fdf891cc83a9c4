package api

import (
	"errors"
	"log"

	"github.com/example/collab-task-board/domain/task"
	"github.com/example/collab-task-board/domain/user"
	"github.com/example/collab-task-board/middleware/ratelimit"
	"github.com/example/collab-task-board/modules/auth"
	"github.com/example/collab-task-board/modules/board"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))

	api := m.app.Group("/api")
	requireAuth := AuthMiddleware(m.authAdapter)

	users := api.Group("/users")
	credentials := []fiber.Handler{}
	if m.limiter != nil {
		credentials = append(credentials, ratelimit.ByIP(m.limiter))
	}
	users.Post("/register", append(credentials, m.register)...)
	users.Post("/login", append(credentials, m.login)...)
	users.Post("/refresh", append(credentials, m.refresh)...)
	users.Get("/", requireAuth, m.listUsers)
	users.Get("/me", requireAuth, m.me)

	tasks := api.Group("/tasks", requireAuth)
	tasks.Get("/", m.listTasks)
	tasks.Post("/", m.createTask)
	tasks.Put("/:id/smart-assign", m.smartAssign)
	tasks.Put("/:id", m.updateTask)
	tasks.Delete("/:id", m.deleteTask)

	api.Get("/logs", requireAuth, m.recentLogs)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	details := map[string]any{
		"module": "api",
	}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: details,
	})
}

// listTasks handles GET /api/tasks.
func (m *APIModule) listTasks(c *fiber.Ctx) error {
	tasks, err := m.boardAdapter.ListTasks(c.UserContext())
	if err != nil {
		return m.taskError(c, "list tasks", err)
	}
	return c.JSON(toTaskResponses(tasks))
}

// createTask handles POST /api/tasks.
func (m *APIModule) createTask(c *fiber.Ctx) error {
	session, ok := sessionFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	created, err := m.boardAdapter.CreateTask(c.UserContext(), board.CreateTaskRequest{
		ActorID:     session.UserID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return m.taskError(c, "create task", err)
	}
	return c.Status(fiber.StatusCreated).JSON(toTaskResponse(*created))
}

// updateTask handles PUT /api/tasks/:id.
func (m *APIModule) updateTask(c *fiber.Ctx) error {
	session, ok := sessionFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	updated, err := m.boardAdapter.UpdateTask(c.UserContext(), board.UpdateTaskRequest{
		TaskID:   c.Params("id"),
		ActorID:  session.UserID,
		Patch:    req.patch(),
		Expected: req.fingerprint(),
		Force:    req.Force,
	})
	if err != nil {
		return m.taskError(c, "update task", err)
	}
	return c.JSON(toTaskResponse(*updated))
}

// deleteTask handles DELETE /api/tasks/:id.
func (m *APIModule) deleteTask(c *fiber.Ctx) error {
	session, ok := sessionFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	id := c.Params("id")
	if err := m.boardAdapter.DeleteTask(c.UserContext(), session.UserID, id); err != nil {
		return m.taskError(c, "delete task", err)
	}
	return c.JSON(DeleteTaskResponse{Message: "Task deleted", ID: id})
}

// smartAssign handles PUT /api/tasks/:id/smart-assign.
func (m *APIModule) smartAssign(c *fiber.Ctx) error {
	session, ok := sessionFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	assigned, err := m.boardAdapter.SmartAssign(c.UserContext(), session.UserID, c.Params("id"))
	if err != nil {
		return m.taskError(c, "smart assign", err)
	}
	return c.JSON(toTaskResponse(*assigned))
}

// recentLogs handles GET /api/logs.
func (m *APIModule) recentLogs(c *fiber.Ctx) error {
	items, err := m.activityAdapter.Recent(c.UserContext(), c.QueryInt("limit", m.feedLimit))
	if err != nil {
		log.Printf("[api] Failed to load activity feed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load activity",
		})
	}
	return c.JSON(feedOrEmpty(items))
}

// register handles POST /api/users/register.
func (m *APIModule) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Email and password are required",
		})
	}

	member, err := m.authAdapter.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return m.authError(c, "register", err)
	}
	return c.Status(fiber.StatusCreated).JSON(MemberResponse{
		ID:    member.ID,
		Name:  member.Name,
		Email: member.Email,
	})
}

// login handles POST /api/users/login.
func (m *APIModule) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Email and password are required",
		})
	}

	grant, err := m.authAdapter.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return m.authError(c, "login", err)
	}
	return c.JSON(toLoginResponse(grant))
}

// refresh handles POST /api/users/refresh.
func (m *APIModule) refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	if req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Refresh token is required",
		})
	}

	grant, err := m.authAdapter.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return m.authError(c, "refresh", err)
	}
	return c.JSON(toLoginResponse(grant))
}

// listUsers handles GET /api/users.
func (m *APIModule) listUsers(c *fiber.Ctx) error {
	workloads, err := m.boardAdapter.Workloads(c.UserContext())
	if err != nil {
		log.Printf("[api] Failed to list workloads: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list users",
		})
	}

	out := make([]WorkloadResponse, 0, len(workloads))
	for _, w := range workloads {
		out = append(out, WorkloadResponse{
			MemberResponse: toMember(w.User),
			ActiveTasks:    w.ActiveTasks,
		})
	}
	return c.JSON(out)
}

// me handles GET /api/users/me.
func (m *APIModule) me(c *fiber.Ctx) error {
	session, ok := sessionFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	u, err := m.boardAdapter.GetUser(c.UserContext(), session.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "not_found",
				Message: "User not found",
			})
		}
		log.Printf("[api] Failed to load user %s: %v", session.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load user",
		})
	}
	return c.JSON(toMember(*u))
}

func toLoginResponse(grant *auth.Login) LoginResponse {
	return LoginResponse{
		Token:        grant.Tokens.AccessToken,
		RefreshToken: grant.Tokens.RefreshToken,
		ExpiresIn:    grant.Tokens.ExpiresIn,
		TokenType:    grant.Tokens.TokenType,
		User: MemberResponse{
			ID:    grant.Session.UserID,
			Name:  grant.Session.Name,
			Email: grant.Session.Email,
		},
	}
}

// taskError maps a board failure onto the HTTP response for op.
func (m *APIModule) taskError(c *fiber.Ctx, op string, err error) error {
	var conflict *task.ConflictError
	switch {
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(ConflictResponse{
			Message:    "Conflict detected",
			ServerTask: toTaskResponse(conflict.Current),
			UserTask:   conflict.Patch,
		})
	case errors.Is(err, task.ErrTaskNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Task not found",
		})
	case errors.Is(err, task.ErrNotCreator):
		return c.Status(fiber.StatusForbidden).JSON(MessageResponse{
			Message: "Not authorized to delete this task",
		})
	case errors.Is(err, task.ErrDuplicateTitle):
		return c.Status(fiber.StatusBadRequest).JSON(MessageResponse{
			Message: "Task title must be unique",
		})
	case errors.Is(err, task.ErrInvalidTask):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	case errors.Is(err, task.ErrNoEligibleAssignee):
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   task.CodeNoAssignee,
			Message: "No users available for assignment",
		})
	case errors.Is(err, task.ErrUpdateContention):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   task.CodeContention,
			Message: "Task is being modified concurrently, please retry",
		})
	}

	log.Printf("[api] Failed to %s: %v", op, err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "internal_error",
		Message: "Failed to " + op,
	})
}

// authError maps an auth failure onto the HTTP response for op.
func (m *APIModule) authError(c *fiber.Ctx, op string, err error) error {
	var input *auth.InputError
	switch {
	case errors.As(err, &input):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: input.Message,
		})
	case errors.Is(err, user.ErrUserExists):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "User with this email already exists",
		})
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid email or password",
		})
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired refresh token",
		})
	}

	log.Printf("[api] Failed to %s: %v", op, err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "internal_error",
		Message: "Failed to " + op,
	})
}
