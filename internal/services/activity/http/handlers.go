// Package http provides http transport for activity listings, comments and writes
package http

import (
	stdhttp "net/http"
	"time"

	"murmur/internal/core/query"
	"murmur/internal/modkit/httpkit"
	perr "murmur/internal/platform/errors"
	"murmur/internal/services/activity/domain"
)

// Defaults applied to listing requests that leave paging out
const (
	DefaultPage    = 1
	DefaultPerPage = 20
)

// Register mounts activity endpoints on the given router
func Register(r httpkit.Router, read domain.ReadPort, write domain.WritePort) {
	h := &handlers{read: read, write: write}

	httpkit.PostJSON[query.Spec](r, "/query", h.query)
	httpkit.PostJSON[domain.Record](r, "/", h.create)
	httpkit.PostJSON[domain.DeleteFilter](r, "/delete", h.deleteWhere)
	httpkit.Post(r, "/last-seen", h.lastSeen)

	httpkit.Get(r, "/{id}", h.get)
	httpkit.PutJSON[domain.Record](r, "/{id}", h.update)
	httpkit.Delete(r, "/{id}", h.delete)
	httpkit.PostJSON[SpamInput](r, "/{id}/spam", h.spam)

	httpkit.Get(r, "/{id}/comments", h.comments)
	httpkit.PostJSON[CommentInput](r, "/{id}/comments", h.addComment)
	httpkit.Delete(r, "/{id}/comments/{commentID}", h.deleteComment)

	httpkit.Get(r, "/{id}/meta", h.meta)
	httpkit.PutJSON[MetaInput](r, "/{id}/meta", h.putMeta)
	httpkit.Delete(r, "/{id}/meta/{key}", h.deleteMeta)
}

type handlers struct {
	read  domain.ReadPort
	write domain.WritePort
}

// Feed is the listing body, Comments is only set for threaded listings
type Feed struct {
	Activities []domain.Activity               `json:"activities"`
	Comments   map[int64][]*domain.CommentNode `json:"comments,omitempty"`
}

// Count is the body of a count only listing
type Count struct {
	Total int64 `json:"total"`
}

// SpamInput flags or clears the spam bit
type SpamInput struct {
	Spam bool `json:"spam"`
}

// CommentInput is a reply, ParentID 0 replies to the activity itself
type CommentInput struct {
	ParentID int64  `json:"parent_id"`
	Content  string `json:"content"`
}

// MetaInput sets one meta key
type MetaInput struct {
	Key   string `json:"key" validate:"required,max=255"`
	Value string `json:"value"`
}

// Saved is returned by writes that create or touch a row
type Saved struct {
	ID int64 `json:"id"`
}

// Deleted lists every row a delete removed, cascades included
type Deleted struct {
	IDs []int64 `json:"ids"`
}

// swagger:route POST /activity/query Activity activityQuery
// @Summary List activity matching a listing spec
// @Description Scopes resolve against the X-Viewer-ID header. Threaded listings carry a comment forest per item.
// @Tags Activity
// @Accept json
// @Produce json
// @Param payload body query.Spec true "Listing spec"
// @Success 200 {object} Feed "ok"
// @Failure 400 {object} httpkit.Envelope "invalid spec"
// @Router /activity/query [post]
func (h *handlers) query(r *stdhttp.Request, spec query.Spec) (any, error) {
	spec.ViewerID = httpkit.Viewer(r)
	if spec.Page <= 0 && spec.PerPage <= 0 && spec.Max <= 0 {
		spec.Page, spec.PerPage = DefaultPage, DefaultPerPage
	}

	p, err := h.read.List(r.Context(), spec)
	if err != nil {
		return nil, err
	}
	if spec.CountOnly {
		var total int64
		if p.Total != nil {
			total = *p.Total
		}
		return Count{Total: total}, nil
	}
	return httpkit.List(Feed{Activities: p.Items, Comments: p.Comments}, httpkit.Page{
		Page:    p.Page,
		PerPage: p.PerPage,
		HasMore: p.HasMore,
		Total:   p.Total,
	}), nil
}

// swagger:route GET /activity/{id} Activity activityGet
// @Summary One activity, hidden or not
// @Tags Activity
// @Produce json
// @Param id path int true "Activity id"
// @Success 200 {object} domain.Activity "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /activity/{id} [get]
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	return h.read.Get(r.Context(), httpkit.Viewer(r), id)
}

// swagger:route POST /activity Activity activityCreate
// @Summary Record a new activity
// @Description user_id defaults to the viewer
// @Tags Activity
// @Accept json
// @Produce json
// @Param payload body domain.Record true "Activity"
// @Success 201 {object} Saved "created"
// @Failure 400 {object} httpkit.Envelope "invalid activity"
// @Router /activity [post]
func (h *handlers) create(r *stdhttp.Request, rec domain.Record) (any, error) {
	rec.ID = 0
	if rec.UserID == 0 {
		rec.UserID = httpkit.Viewer(r)
	}
	id, err := h.write.Save(r.Context(), rec)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(Saved{ID: id}), nil
}

// swagger:route PUT /activity/{id} Activity activityUpdate
// @Summary Replace an existing activity
// @Tags Activity
// @Accept json
// @Produce json
// @Param id path int true "Activity id"
// @Param payload body domain.Record true "Activity"
// @Success 200 {object} Saved "ok"
// @Router /activity/{id} [put]
func (h *handlers) update(r *stdhttp.Request, rec domain.Record) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	rec.ID = id
	if _, err := h.write.Save(r.Context(), rec); err != nil {
		return nil, err
	}
	return Saved{ID: id}, nil
}

// swagger:route DELETE /activity/{id} Activity activityDelete
// @Summary Delete an activity with its comments and meta
// @Tags Activity
// @Produce json
// @Param id path int true "Activity id"
// @Success 200 {object} Deleted "ok"
// @Router /activity/{id} [delete]
func (h *handlers) delete(r *stdhttp.Request) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	ids, err := h.write.Delete(r.Context(), domain.DeleteFilter{IDs: []int64{id}})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, perr.WithField(perr.NotFoundf("activity %d not found", id), "id")
	}
	return Deleted{IDs: ids}, nil
}

// swagger:route POST /activity/delete Activity activityDeleteWhere
// @Summary Delete every activity matching a filter
// @Description Fields are ANDed, an empty filter is rejected
// @Tags Activity
// @Accept json
// @Produce json
// @Param payload body domain.DeleteFilter true "Filter"
// @Success 200 {object} Deleted "ok"
// @Router /activity/delete [post]
func (h *handlers) deleteWhere(r *stdhttp.Request, f domain.DeleteFilter) (any, error) {
	ids, err := h.write.Delete(r.Context(), f)
	if err != nil {
		return nil, err
	}
	return Deleted{IDs: ids}, nil
}

// swagger:route POST /activity/{id}/spam Activity activitySpam
// @Summary Mark or unmark an activity as spam
// @Tags Activity
// @Accept json
// @Param id path int true "Activity id"
// @Param payload body SpamInput true "Spam flag"
// @Success 204 "no content"
// @Router /activity/{id}/spam [post]
func (h *handlers) spam(r *stdhttp.Request, in SpamInput) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	if err := h.write.MarkSpam(r.Context(), id, in.Spam); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}

// swagger:route GET /activity/{id}/comments Activity activityComments
// @Summary The comment forest of one activity
// @Tags Activity
// @Produce json
// @Param id path int true "Activity id"
// @Param spam query string false "ham_only, spam_only or all"
// @Success 200 {array} domain.CommentNode "ok"
// @Router /activity/{id}/comments [get]
func (h *handlers) comments(r *stdhttp.Request) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	spam := query.SpamPolicy(r.URL.Query().Get("spam")).Normalize()
	nodes, err := h.read.Comments(r.Context(), id, spam)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []*domain.CommentNode{}
	}
	return nodes, nil
}

// swagger:route POST /activity/{id}/comments Activity activityAddComment
// @Summary Reply to an activity or to one of its comments
// @Tags Activity
// @Accept json
// @Produce json
// @Param id path int true "Activity id"
// @Param payload body CommentInput true "Reply"
// @Success 201 {object} Saved "created"
// @Failure 401 {object} httpkit.Envelope "anonymous"
// @Router /activity/{id}/comments [post]
func (h *handlers) addComment(r *stdhttp.Request, in CommentInput) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	viewer := httpkit.Viewer(r)
	if viewer == 0 {
		return nil, perr.Unauthorizedf("commenting needs a viewer")
	}
	cid, err := h.write.AddComment(r.Context(), domain.NewComment{
		ActivityID: id,
		ParentID:   in.ParentID,
		UserID:     viewer,
		Content:    in.Content,
	})
	if err != nil {
		return nil, err
	}
	return httpkit.Created(Saved{ID: cid}), nil
}

// swagger:route DELETE /activity/{id}/comments/{commentID} Activity activityDeleteComment
// @Summary Delete a comment and every reply below it
// @Tags Activity
// @Param id path int true "Activity id"
// @Param commentID path int true "Comment id"
// @Success 204 "no content"
// @Router /activity/{id}/comments/{commentID} [delete]
func (h *handlers) deleteComment(r *stdhttp.Request) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	cid, err := httpkit.ParamInt64(r, "commentID")
	if err != nil {
		return nil, err
	}
	if err := h.write.DeleteComment(r.Context(), id, cid); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}

// swagger:route GET /activity/{id}/meta Activity activityMeta
// @Summary Meta of one activity, ordered by key
// @Tags Activity
// @Produce json
// @Param id path int true "Activity id"
// @Success 200 {array} domain.MetaEntry "ok"
// @Router /activity/{id}/meta [get]
func (h *handlers) meta(r *stdhttp.Request) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	m, err := h.read.Meta(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = []domain.MetaEntry{}
	}
	return m, nil
}

// swagger:route PUT /activity/{id}/meta Activity activityPutMeta
// @Summary Set one meta key
// @Tags Activity
// @Accept json
// @Param id path int true "Activity id"
// @Param payload body MetaInput true "Key and value"
// @Success 204 "no content"
// @Router /activity/{id}/meta [put]
func (h *handlers) putMeta(r *stdhttp.Request, in MetaInput) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	if err := h.write.UpdateMeta(r.Context(), id, in.Key, in.Value); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}

// swagger:route DELETE /activity/{id}/meta/{key} Activity activityDeleteMeta
// @Summary Remove one meta key
// @Tags Activity
// @Param id path int true "Activity id"
// @Param key path string true "Meta key"
// @Success 204 "no content"
// @Router /activity/{id}/meta/{key} [delete]
func (h *handlers) deleteMeta(r *stdhttp.Request) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	key := httpkit.Param(r, "key")
	if key == "" {
		return nil, perr.WithField(perr.Validationf("key is required"), "key")
	}
	if err := h.write.DeleteMeta(r.Context(), id, key); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}

// swagger:route POST /activity/last-seen Activity activityLastSeen
// @Summary Record that the viewer was active now
// @Tags Activity
// @Success 204 "no content"
// @Failure 401 {object} httpkit.Envelope "anonymous"
// @Router /activity/last-seen [post]
func (h *handlers) lastSeen(r *stdhttp.Request) (any, error) {
	viewer := httpkit.Viewer(r)
	if viewer == 0 {
		return nil, perr.Unauthorizedf("last seen needs a viewer")
	}
	if err := h.write.TouchLastSeen(r.Context(), viewer, time.Now().UTC()); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}
