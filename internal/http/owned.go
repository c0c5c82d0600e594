package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// queryFilter maps a query parameter onto an equality filter column.
type queryFilter struct {
	column  string
	boolean bool
}

// ownedRoutes serves the five standard routes of one owned entity. C and U
// are the create and update request bodies.
type ownedRoutes[T any, C any, U any] struct {
	store   repository.Owned[T]
	create  func(*C) *T
	update  func(*U) repository.Fields
	filters map[string]queryFilter
	// afterCreate and afterUpdate run after a successful write and return
	// the entity to respond with. afterUpdate also receives the entity as it
	// was before the write.
	afterCreate func(ctx context.Context, userID string, entity *T) *T
	afterUpdate func(ctx context.Context, userID string, before, entity *T) *T
	// afterDelete receives the entity as it was before deletion.
	afterDelete func(ctx context.Context, userID string, entity *T)
}

func (r ownedRoutes[T, C, U]) register(g *gin.RouterGroup, h *Handler) {
	g.POST("", r.createHandler(h))
	g.GET("", r.listHandler(h))
	g.GET("/:id", r.getHandler(h))
	g.PUT("/:id", r.updateHandler(h))
	g.DELETE("/:id", r.deleteHandler(h))
}

func (r ownedRoutes[T, C, U]) createHandler(h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req C
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondBindError(c, err)
			return
		}
		userID := currentUser(c)
		entity := r.create(&req)
		if err := r.store.Create(c.Request.Context(), userID, entity); err != nil {
			h.respondError(c, err)
			return
		}
		if r.afterCreate != nil {
			entity = r.afterCreate(c.Request.Context(), userID, entity)
		}
		c.JSON(http.StatusCreated, entity)
	}
}

func (r ownedRoutes[T, C, U]) listHandler(h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := repository.Fields{}
		for param, f := range r.filters {
			raw, ok := c.GetQuery(param)
			if !ok || raw == "" {
				continue
			}
			if !f.boolean {
				filter[f.column] = raw
				continue
			}
			b, err := strconv.ParseBool(raw)
			if err != nil {
				h.respondError(c, domain.Errorf(domain.ErrValidation, "%s must be true or false", param))
				return
			}
			filter[f.column] = b
		}

		items, err := r.store.List(c.Request.Context(), currentUser(c), filter)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func (r ownedRoutes[T, C, U]) getHandler(h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, err := r.store.Get(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entity)
	}
}

func (r ownedRoutes[T, C, U]) updateHandler(h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req U
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondBindError(c, err)
			return
		}
		ctx, userID, id := c.Request.Context(), currentUser(c), c.Param("id")
		fields := r.update(&req)

		var before *T
		if r.afterUpdate != nil || len(fields) == 0 {
			current, err := r.store.Get(ctx, userID, id)
			if err != nil {
				h.respondError(c, err)
				return
			}
			before = current
		}

		entity := before
		if len(fields) > 0 {
			updated, err := r.store.Update(ctx, userID, id, fields)
			if err != nil {
				h.respondError(c, err)
				return
			}
			entity = updated
		}
		if r.afterUpdate != nil {
			entity = r.afterUpdate(ctx, userID, before, entity)
		}
		c.JSON(http.StatusOK, entity)
	}
}

func (r ownedRoutes[T, C, U]) deleteHandler(h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID, id := currentUser(c), c.Param("id")

		var before *T
		if r.afterDelete != nil {
			entity, err := r.store.Get(ctx, userID, id)
			if err != nil {
				h.respondError(c, err)
				return
			}
			before = entity
		}
		if err := r.store.Delete(ctx, userID, id); err != nil {
			h.respondError(c, err)
			return
		}
		if before != nil {
			r.afterDelete(ctx, userID, before)
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *Handler) roadmapRoutes() ownedRoutes[domain.Roadmap, createRoadmapRequest, updateRoadmapRequest] {
	return ownedRoutes[domain.Roadmap, createRoadmapRequest, updateRoadmapRequest]{
		store:  h.stores.Roadmaps,
		create: (*createRoadmapRequest).entity,
		update: (*updateRoadmapRequest).fields,
		filters: map[string]queryFilter{
			"status":     {column: "status"},
			"category":   {column: "category"},
			"difficulty": {column: "difficulty"},
		},
	}
}

func (h *Handler) milestoneRoutes() ownedRoutes[domain.Milestone, createMilestoneRequest, updateMilestoneRequest] {
	return ownedRoutes[domain.Milestone, createMilestoneRequest, updateMilestoneRequest]{
		store:  h.stores.Milestones,
		create: (*createMilestoneRequest).entity,
		update: (*updateMilestoneRequest).fields,
		filters: map[string]queryFilter{
			"roadmapId": {column: "roadmap_id"},
			"status":    {column: "status"},
		},
	}
}

func (h *Handler) taskRoutes() ownedRoutes[domain.Task, createTaskRequest, updateTaskRequest] {
	return ownedRoutes[domain.Task, createTaskRequest, updateTaskRequest]{
		store:  h.stores.Tasks,
		create: (*createTaskRequest).entity,
		update: (*updateTaskRequest).fields,
		filters: map[string]queryFilter{
			"status":      {column: "status"},
			"priority":    {column: "priority"},
			"roadmapId":   {column: "roadmap_id"},
			"milestoneId": {column: "milestone_id"},
		},
		afterCreate: h.taskWritten,
		afterUpdate: func(ctx context.Context, userID string, _, task *domain.Task) *domain.Task {
			return h.taskWritten(ctx, userID, task)
		},
	}
}

// taskWritten feeds completions into the learning stats.
func (h *Handler) taskWritten(ctx context.Context, userID string, task *domain.Task) *domain.Task {
	if task.Status != domain.TaskStatusDone || task.CompletedAt != nil || h.stats == nil {
		return task
	}
	h.stats.TaskDone(ctx, userID, task.ID)
	fresh, err := h.stores.Tasks.Get(ctx, userID, task.ID)
	if err != nil {
		h.logger.WithError(err).WithField("task_id", task.ID).Warn("reload completed task")
		return task
	}
	return fresh
}

func (h *Handler) timeLogRoutes() ownedRoutes[domain.TimeLog, createTimeLogRequest, updateTimeLogRequest] {
	return ownedRoutes[domain.TimeLog, createTimeLogRequest, updateTimeLogRequest]{
		store:  h.stores.TimeLogs,
		create: (*createTimeLogRequest).entity,
		update: (*updateTimeLogRequest).fields,
		filters: map[string]queryFilter{
			"taskId": {column: "task_id"},
		},
		afterCreate: h.timeLogged,
		afterUpdate: h.timeLogChanged,
		afterDelete: h.timeLogRemoved,
	}
}

// timeLogged feeds new time logs into the learning stats.
func (h *Handler) timeLogged(ctx context.Context, userID string, log *domain.TimeLog) *domain.TimeLog {
	if h.stats != nil {
		h.stats.TimeLogged(ctx, userID, log)
	}
	return log
}

func (h *Handler) timeLogChanged(ctx context.Context, userID string, before, log *domain.TimeLog) *domain.TimeLog {
	if h.stats != nil {
		h.stats.TimeLogChanged(ctx, userID, before, log)
	}
	return log
}

func (h *Handler) timeLogRemoved(ctx context.Context, userID string, log *domain.TimeLog) {
	if h.stats != nil {
		h.stats.TimeLogRemoved(ctx, userID, log)
	}
}

func (h *Handler) resourceRoutes() ownedRoutes[domain.Resource, createResourceRequest, updateResourceRequest] {
	return ownedRoutes[domain.Resource, createResourceRequest, updateResourceRequest]{
		store:  h.stores.Resources,
		create: (*createResourceRequest).entity,
		update: (*updateResourceRequest).fields,
		filters: map[string]queryFilter{
			"roadmapId":   {column: "roadmap_id"},
			"type":        {column: "type"},
			"isCompleted": {column: "is_completed", boolean: true},
		},
		afterDelete: h.resourceDeleted,
	}
}

func (h *Handler) tagRoutes() ownedRoutes[domain.Tag, createTagRequest, updateTagRequest] {
	return ownedRoutes[domain.Tag, createTagRequest, updateTagRequest]{
		store:   h.stores.Tags,
		create:  (*createTagRequest).entity,
		update:  (*updateTagRequest).fields,
		filters: map[string]queryFilter{"name": {column: "name"}},
	}
}

func (h *Handler) skillRoutes() ownedRoutes[domain.Skill, createSkillRequest, updateSkillRequest] {
	return ownedRoutes[domain.Skill, createSkillRequest, updateSkillRequest]{
		store:   h.stores.Skills,
		create:  (*createSkillRequest).entity,
		update:  (*updateSkillRequest).fields,
		filters: map[string]queryFilter{"category": {column: "category"}},
	}
}

func (h *Handler) achievementRoutes() ownedRoutes[domain.Achievement, createAchievementRequest, updateAchievementRequest] {
	return ownedRoutes[domain.Achievement, createAchievementRequest, updateAchievementRequest]{
		store:  h.stores.Achievements,
		create: (*createAchievementRequest).entity,
		update: (*updateAchievementRequest).fields,
	}
}

func (h *Handler) roadmapMilestones(c *gin.Context) {
	ctx, userID, id := c.Request.Context(), currentUser(c), c.Param("id")
	if _, err := h.stores.Roadmaps.Get(ctx, userID, id); err != nil {
		h.respondError(c, err)
		return
	}
	items, err := h.stores.Milestones.List(ctx, userID, repository.Fields{"roadmap_id": id})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) taskTimeLogs(c *gin.Context) {
	ctx, userID, id := c.Request.Context(), currentUser(c), c.Param("id")
	if _, err := h.stores.Tasks.Get(ctx, userID, id); err != nil {
		h.respondError(c, err)
		return
	}
	items, err := h.stores.TimeLogs.List(ctx, userID, repository.Fields{"task_id": id})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// singletonRoutes serves GET and PUT of a 1:1 per-user record.
type singletonRoutes[T any, U any] struct {
	store  repository.Singleton[T]
	update func(*U) repository.Fields
}

func (r singletonRoutes[T, U]) register(g *gin.RouterGroup, h *Handler) {
	g.GET("", func(c *gin.Context) {
		entity, err := r.store.Get(c.Request.Context(), currentUser(c))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entity)
	})
	g.PUT("", func(c *gin.Context) {
		var req U
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondBindError(c, err)
			return
		}
		userID := currentUser(c)
		fields := r.update(&req)

		var (
			entity *T
			err    error
		)
		if len(fields) == 0 {
			entity, err = r.store.Get(c.Request.Context(), userID)
		} else {
			entity, err = r.store.Update(c.Request.Context(), userID, fields)
		}
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entity)
	})
}

func (h *Handler) progressSummary(c *gin.Context) {
	summary, err := h.stats.Summary(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
