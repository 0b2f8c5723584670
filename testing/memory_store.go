package testing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/amirphl/Geovid/models"
	"github.com/amirphl/Geovid/repository"
	"github.com/amirphl/Geovid/utils"
	"github.com/google/uuid"
)

// ErrForeignKey is returned when a delete would leave rows pointing at a missing parent,
// mirroring the RESTRICT foreign keys of the schema.
var ErrForeignKey = errors.New("foreign key violation")

// MemoryStore is an in-memory relational store implementing every repository interface.
// Each call is atomic on its own; nothing spans calls, so read-then-write counter
// updates interleave the same way they do against Postgres.
type MemoryStore struct {
	mu       sync.Mutex
	seq      map[string]uint
	users    map[uint]*models.User
	videos   map[uint]*models.Video
	tags     map[uint]*models.Tag
	links    map[uint]*models.VideoTag
	likes    map[uint]*models.Like
	comments map[uint]*models.Comment
	views    map[uint]*models.VideoView
	faults   map[string]*fault
	calls    map[string]int
}

type fault struct {
	err       error
	remaining int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seq:      map[string]uint{},
		users:    map[uint]*models.User{},
		videos:   map[uint]*models.Video{},
		tags:     map[uint]*models.Tag{},
		links:    map[uint]*models.VideoTag{},
		likes:    map[uint]*models.Like{},
		comments: map[uint]*models.Comment{},
		views:    map[uint]*models.VideoView{},
		faults:   map[string]*fault{},
		calls:    map[string]int{},
	}
}

// FailOn makes the next times calls of op return err. op is "<table>.<Method>", e.g. "links.Create".
// times <= 0 fails every call until ClearFaults.
func (s *MemoryStore) FailOn(op string, err error, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{err: err, remaining: times}
}

// ClearFaults removes every injected failure
func (s *MemoryStore) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = map[string]*fault{}
}

// Calls returns how many times op was invoked
func (s *MemoryStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter records the call and returns an injected fault; the caller must hold mu
func (s *MemoryStore) enter(op string) error {
	s.calls[op]++
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(s.faults, op)
		}
	}
	return f.err
}

func (s *MemoryStore) next(table string) uint {
	s.seq[table]++
	return s.seq[table]
}

func conflict(what string) error {
	return fmt.Errorf("duplicate %s: %w", what, repository.ErrConflict)
}

func fkViolation(what string) error {
	return fmt.Errorf("%s: %w", what, ErrForeignKey)
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func sortedIDs[T any](m map[uint]*T) []uint {
	ids := make([]uint, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// page applies the "id ASC" / default "id DESC" ordering plus limit and offset
func page(ids []uint, orderBy string, limit, offset int) []uint {
	if orderBy != "id ASC" && orderBy != "id asc" {
		sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	}
	if offset > 0 {
		if offset >= len(ids) {
			return nil
		}
		ids = ids[offset:]
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

func inSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Users returns the user table
func (s *MemoryStore) Users() *MemoryUsers { return &MemoryUsers{s: s} }

// Videos returns the video table
func (s *MemoryStore) Videos() *MemoryVideos { return &MemoryVideos{s: s} }

// Tags returns the tag table
func (s *MemoryStore) Tags() *MemoryTags { return &MemoryTags{s: s} }

// Links returns the video_tags link store
func (s *MemoryStore) Links() *MemoryLinks { return &MemoryLinks{s: s} }

// Counters returns the counter repository
func (s *MemoryStore) Counters() *MemoryCounters { return &MemoryCounters{s: s} }

// Likes returns the like table
func (s *MemoryStore) Likes() *MemoryLikes { return &MemoryLikes{s: s} }

// Comments returns the comment table
func (s *MemoryStore) Comments() *MemoryComments { return &MemoryComments{s: s} }

// Views returns the video_views table
func (s *MemoryStore) Views() *MemoryViews { return &MemoryViews{s: s} }

// RowCount returns the number of rows in table (users, videos, tags, video_tags, likes, comments, video_views)
func (s *MemoryStore) RowCount(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch table {
	case "users":
		return len(s.users)
	case "videos":
		return len(s.videos)
	case "tags":
		return len(s.tags)
	case "video_tags":
		return len(s.links)
	case "likes":
		return len(s.likes)
	case "comments":
		return len(s.comments)
	case "video_views":
		return len(s.views)
	}
	return 0
}

// ---- users ----

// MemoryUsers implements repository.UserRepository and repository.AtomicUserUpserter
type MemoryUsers struct{ s *MemoryStore }

var (
	_ repository.UserRepository      = (*MemoryUsers)(nil)
	_ repository.AtomicUserUpserter  = (*MemoryUsers)(nil)
	_ repository.VideoRepository     = (*MemoryVideos)(nil)
	_ repository.TagRepository       = (*MemoryTags)(nil)
	_ repository.VideoTagRepository  = (*MemoryLinks)(nil)
	_ repository.CounterRepository   = (*MemoryCounters)(nil)
	_ repository.LikeRepository      = (*MemoryLikes)(nil)
	_ repository.CommentRepository   = (*MemoryComments)(nil)
	_ repository.VideoViewRepository = (*MemoryViews)(nil)
)

func (r *MemoryUsers) ByID(ctx context.Context, id uint) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.ByID"); err != nil {
		return nil, err
	}
	return clone(r.s.users[id]), nil
}

func (r *MemoryUsers) match(u *models.User, f models.UserFilter) bool {
	switch {
	case f.ID != nil && u.ID != *f.ID:
		return false
	case f.ExternalID != nil && u.ExternalID != *f.ExternalID:
		return false
	case f.Email != nil && (u.Email == nil || *u.Email != *f.Email):
		return false
	case f.IsAdmin != nil && utils.IsTrue(u.IsAdmin) != *f.IsAdmin:
		return false
	case f.CreatedAfter != nil && !u.CreatedAt.After(*f.CreatedAfter):
		return false
	case f.CreatedBefore != nil && !u.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	return true
}

func (r *MemoryUsers) filter(f models.UserFilter) []uint {
	var ids []uint
	for _, id := range sortedIDs(r.s.users) {
		if r.match(r.s.users[id], f) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *MemoryUsers) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.ByFilter"); err != nil {
		return nil, err
	}
	var out []*models.User
	for _, id := range page(r.filter(filter), orderBy, limit, offset) {
		out = append(out, clone(r.s.users[id]))
	}
	return out, nil
}

func (r *MemoryUsers) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filter(filter))), nil
}

func (r *MemoryUsers) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *MemoryUsers) insertLocked(user *models.User) error {
	for _, u := range r.s.users {
		if u.ExternalID == user.ExternalID {
			return conflict("users.external_id")
		}
	}
	user.ID = r.s.next("users")
	now := utils.UTCNow()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.IsAdmin == nil {
		user.IsAdmin = utils.ToPtr(false)
	}
	r.s.users[user.ID] = clone(user)
	return nil
}

func (r *MemoryUsers) Save(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.Save"); err != nil {
		return err
	}
	return r.insertLocked(user)
}

func (r *MemoryUsers) SaveBatch(ctx context.Context, users []*models.User) error {
	for _, u := range users {
		if err := r.Save(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryUsers) ByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.ByExternalID"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.ExternalID == externalID {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (r *MemoryUsers) Update(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.Update"); err != nil {
		return err
	}
	row, ok := r.s.users[user.ID]
	if !ok {
		return fmt.Errorf("failed to update user %d: %w", user.ID, repository.ErrNotFound)
	}
	row.Email = user.Email
	row.DisplayName = user.DisplayName
	row.AvatarURL = user.AvatarURL
	row.LastLoginAt = user.LastLoginAt
	row.UpdatedAt = utils.UTCNow()
	user.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *MemoryUsers) UpsertByExternalID(ctx context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.UpsertByExternalID"); err != nil {
		return nil, err
	}
	for _, row := range r.s.users {
		if row.ExternalID != user.ExternalID {
			continue
		}
		if user.Email != nil {
			row.Email = user.Email
		}
		if user.DisplayName != nil {
			row.DisplayName = user.DisplayName
		}
		if user.AvatarURL != nil {
			row.AvatarURL = user.AvatarURL
		}
		if user.LastLoginAt != nil {
			row.LastLoginAt = user.LastLoginAt
		}
		row.UpdatedAt = utils.UTCNow()
		return clone(row), nil
	}
	if err := r.insertLocked(user); err != nil {
		return nil, err
	}
	return clone(r.s.users[user.ID]), nil
}

func (r *MemoryUsers) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.DeleteByIDs"); err != nil {
		return 0, err
	}
	set := inSet(ids)
	for _, v := range r.s.videos {
		if _, ok := set[v.UserID]; ok {
			return 0, fkViolation("videos.user_id")
		}
	}
	for _, l := range r.s.likes {
		if _, ok := set[l.UserID]; ok {
			return 0, fkViolation("likes.user_id")
		}
	}
	for _, c := range r.s.comments {
		if _, ok := set[c.UserID]; ok {
			return 0, fkViolation("comments.user_id")
		}
	}
	// ON DELETE SET NULL columns
	for _, t := range r.s.tags {
		if t.CreatedBy != nil {
			if _, ok := set[*t.CreatedBy]; ok {
				t.CreatedBy = nil
			}
		}
	}
	for _, l := range r.s.links {
		if l.AssignedBy != nil {
			if _, ok := set[*l.AssignedBy]; ok {
				l.AssignedBy = nil
			}
		}
	}
	for _, v := range r.s.views {
		if v.UserID != nil {
			if _, ok := set[*v.UserID]; ok {
				v.UserID = nil
			}
		}
	}
	var n int64
	for id := range set {
		if _, ok := r.s.users[id]; ok {
			delete(r.s.users, id)
			n++
		}
	}
	return n, nil
}

// ---- videos ----

// MemoryVideos implements repository.VideoRepository
type MemoryVideos struct{ s *MemoryStore }

func (r *MemoryVideos) ByID(ctx context.Context, id uint) (*models.Video, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("videos.ByID"); err != nil {
		return nil, err
	}
	return clone(r.s.videos[id]), nil
}

func (r *MemoryVideos) match(v *models.Video, f models.VideoFilter) bool {
	switch {
	case f.ID != nil && v.ID != *f.ID:
		return false
	case len(f.IDs) > 0 && !slices.Contains(f.IDs, v.ID):
		return false
	case f.UUID != nil && v.UUID != *f.UUID:
		return false
	case f.UserID != nil && v.UserID != *f.UserID:
		return false
	case f.CreatedAfter != nil && !v.CreatedAt.After(*f.CreatedAfter):
		return false
	case f.CreatedBefore != nil && !v.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	return true
}

func (r *MemoryVideos) filter(f models.VideoFilter) []uint {
	var ids []uint
	for _, id := range sortedIDs(r.s.videos) {
		if r.match(r.s.videos[id], f) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *MemoryVideos) ByFilter(ctx context.Context, filter models.VideoFilter, orderBy string, limit, offset int) ([]*models.Video, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("videos.ByFilter"); err != nil {
		return nil, err
	}
	var out []*models.Video
	for _, id := range page(r.filter(filter), orderBy, limit, offset) {
		out = append(out, clone(r.s.videos[id]))
	}
	return out, nil
}

func (r *MemoryVideos) Count(ctx context.Context, filter models.VideoFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filter(filter))), nil
}

func (r *MemoryVideos) Exists(ctx context.Context, filter models.VideoFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *MemoryVideos) Save(ctx context.Context, video *models.Video) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("videos.Save"); err != nil {
		return err
	}
	if _, ok := r.s.users[video.UserID]; !ok {
		return fkViolation("videos.user_id")
	}
	if video.UUID == uuid.Nil {
		video.UUID = uuid.New()
	}
	for _, v := range r.s.videos {
		if v.UUID == video.UUID {
			return conflict("videos.uuid")
		}
	}
	video.ID = r.s.next("videos")
	now := utils.UTCNow()
	video.CreatedAt = now
	video.UpdatedAt = now
	r.s.videos[video.ID] = clone(video)
	return nil
}

func (r *MemoryVideos) SaveBatch(ctx context.Context, videos []*models.Video) error {
	for _, v := range videos {
		if err := r.Save(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryVideos) ByUUID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.videos {
		if v.UUID == id {
			return clone(v), nil
		}
	}
	return nil, nil
}

func (r *MemoryVideos) ListIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("videos.ListIDsByUser"); err != nil {
		return nil, err
	}
	return r.filter(models.VideoFilter{UserID: &userID}), nil
}

func (r *MemoryVideos) ListIDsAfter(ctx context.Context, afterID uint, limit int) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("videos.ListIDsAfter"); err != nil {
		return nil, err
	}
	return idsAfter(sortedIDs(r.s.videos), afterID, limit), nil
}

func idsAfter(sorted []uint, afterID uint, limit int) []uint {
	var out []uint
	for _, id := range sorted {
		if id <= afterID {
			continue
		}
		out = append(out, id)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (r *MemoryVideos) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("videos.DeleteByIDs"); err != nil {
		return 0, err
	}
	set := inSet(ids)
	for _, l := range r.s.links {
		if _, ok := set[l.VideoID]; ok {
			return 0, fkViolation("video_tags.video_id")
		}
	}
	for _, l := range r.s.likes {
		if _, ok := set[l.VideoID]; ok {
			return 0, fkViolation("likes.video_id")
		}
	}
	for _, c := range r.s.comments {
		if _, ok := set[c.VideoID]; ok {
			return 0, fkViolation("comments.video_id")
		}
	}
	for _, v := range r.s.views {
		if _, ok := set[v.VideoID]; ok {
			return 0, fkViolation("video_views.video_id")
		}
	}
	var n int64
	for id := range set {
		if _, ok := r.s.videos[id]; ok {
			delete(r.s.videos, id)
			n++
		}
	}
	return n, nil
}

// ---- tags ----

// MemoryTags implements repository.TagRepository
type MemoryTags struct{ s *MemoryStore }

func (r *MemoryTags) ByID(ctx context.Context, id uint) (*models.Tag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tags.ByID"); err != nil {
		return nil, err
	}
	return clone(r.s.tags[id]), nil
}

func (r *MemoryTags) match(t *models.Tag, f models.TagFilter) bool {
	switch {
	case f.ID != nil && t.ID != *f.ID:
		return false
	case len(f.IDs) > 0 && !slices.Contains(f.IDs, t.ID):
		return false
	case f.Name != nil && t.Name != *f.Name:
		return false
	case f.CreatedBy != nil && (t.CreatedBy == nil || *t.CreatedBy != *f.CreatedBy):
		return false
	case f.CreatedAfter != nil && !t.CreatedAt.After(*f.CreatedAfter):
		return false
	case f.CreatedBefore != nil && !t.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	return true
}

func (r *MemoryTags) filter(f models.TagFilter) []uint {
	var ids []uint
	for _, id := range sortedIDs(r.s.tags) {
		if r.match(r.s.tags[id], f) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *MemoryTags) ByFilter(ctx context.Context, filter models.TagFilter, orderBy string, limit, offset int) ([]*models.Tag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tags.ByFilter"); err != nil {
		return nil, err
	}
	var out []*models.Tag
	for _, id := range page(r.filter(filter), orderBy, limit, offset) {
		out = append(out, clone(r.s.tags[id]))
	}
	return out, nil
}

func (r *MemoryTags) Count(ctx context.Context, filter models.TagFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filter(filter))), nil
}

func (r *MemoryTags) Exists(ctx context.Context, filter models.TagFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *MemoryTags) Save(ctx context.Context, tag *models.Tag) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tags.Save"); err != nil {
		return err
	}
	for _, t := range r.s.tags {
		if t.Name == tag.Name {
			return conflict("tags.name")
		}
	}
	tag.ID = r.s.next("tags")
	now := utils.UTCNow()
	tag.CreatedAt = now
	tag.UpdatedAt = now
	r.s.tags[tag.ID] = clone(tag)
	return nil
}

func (r *MemoryTags) SaveBatch(ctx context.Context, tags []*models.Tag) error {
	for _, t := range tags {
		if err := r.Save(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryTags) ByName(ctx context.Context, name string) (*models.Tag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tags.ByName"); err != nil {
		return nil, err
	}
	key := models.NormalizeTagName(name)
	for _, t := range r.s.tags {
		if t.Name == key {
			return clone(t), nil
		}
	}
	return nil, nil
}

func (r *MemoryTags) ListByIDs(ctx context.Context, ids []uint) ([]*models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.ByFilter(ctx, models.TagFilter{IDs: ids}, "id ASC", 0, 0)
}

func (r *MemoryTags) ListIDsAfter(ctx context.Context, afterID uint, limit int) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tags.ListIDsAfter"); err != nil {
		return nil, err
	}
	return idsAfter(sortedIDs(r.s.tags), afterID, limit), nil
}

func (r *MemoryTags) DeleteByID(ctx context.Context, id uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tags.DeleteByID"); err != nil {
		return 0, err
	}
	for _, l := range r.s.links {
		if l.TagID == id {
			return 0, fkViolation("video_tags.tag_id")
		}
	}
	if _, ok := r.s.tags[id]; !ok {
		return 0, nil
	}
	delete(r.s.tags, id)
	return 1, nil
}

func (r *MemoryTags) ClearCreator(ctx context.Context, userID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tags.ClearCreator"); err != nil {
		return 0, err
	}
	var n int64
	for _, t := range r.s.tags {
		if t.CreatedBy != nil && *t.CreatedBy == userID {
			t.CreatedBy = nil
			n++
		}
	}
	return n, nil
}

// ---- video_tags ----

// MemoryLinks implements repository.VideoTagRepository
type MemoryLinks struct{ s *MemoryStore }

func (r *MemoryLinks) Create(ctx context.Context, link *models.VideoTag) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("links.Create"); err != nil {
		return err
	}
	if _, ok := r.s.videos[link.VideoID]; !ok {
		return fkViolation("video_tags.video_id")
	}
	if _, ok := r.s.tags[link.TagID]; !ok {
		return fkViolation("video_tags.tag_id")
	}
	for _, l := range r.s.links {
		if l.VideoID == link.VideoID && l.TagID == link.TagID {
			return conflict("video_tags(video_id, tag_id)")
		}
	}
	link.ID = r.s.next("video_tags")
	if link.CreatedAt.IsZero() {
		link.CreatedAt = utils.UTCNow()
	}
	r.s.links[link.ID] = clone(link)
	return nil
}

func (r *MemoryLinks) Exists(ctx context.Context, videoID, tagID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("links.Exists"); err != nil {
		return false, err
	}
	for _, l := range r.s.links {
		if l.VideoID == videoID && l.TagID == tagID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryLinks) ListTagIDsByVideo(ctx context.Context, videoID uint) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uint
	for _, l := range r.s.links {
		if l.VideoID == videoID {
			ids = append(ids, l.TagID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *MemoryLinks) DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("links.DeleteByVideoIDs"); err != nil {
		return 0, err
	}
	set := inSet(videoIDs)
	var n int64
	for id, l := range r.s.links {
		if _, ok := set[l.VideoID]; ok {
			delete(r.s.links, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryLinks) DeleteByTagID(ctx context.Context, tagID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("links.DeleteByTagID"); err != nil {
		return 0, err
	}
	var n int64
	for id, l := range r.s.links {
		if l.TagID == tagID {
			delete(r.s.links, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryLinks) CountByTagID(ctx context.Context, tagID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("links.CountByTagID"); err != nil {
		return 0, err
	}
	var n int64
	for _, l := range r.s.links {
		if l.TagID == tagID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryLinks) CountByTagIDs(ctx context.Context, tagIDs []uint) (map[uint]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("links.CountByTagIDs"); err != nil {
		return nil, err
	}
	set := inSet(tagIDs)
	out := map[uint]int64{}
	for _, l := range r.s.links {
		if _, ok := set[l.TagID]; ok {
			out[l.TagID]++
		}
	}
	return out, nil
}

func (r *MemoryLinks) CountByTagForVideos(ctx context.Context, videoIDs []uint) (map[uint]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("links.CountByTagForVideos"); err != nil {
		return nil, err
	}
	set := inSet(videoIDs)
	out := map[uint]int64{}
	for _, l := range r.s.links {
		if _, ok := set[l.VideoID]; ok {
			out[l.TagID]++
		}
	}
	return out, nil
}

// ---- counters ----

// MemoryCounters implements repository.CounterRepository. Adjust reads and writes under
// separate lock acquisitions, so concurrent adjustments can lose updates.
type MemoryCounters struct{ s *MemoryStore }

func (r *MemoryCounters) TagUsage(ctx context.Context, tagID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("counters.TagUsage"); err != nil {
		return 0, err
	}
	t, ok := r.s.tags[tagID]
	if !ok {
		return 0, fmt.Errorf("tag %d: %w", tagID, repository.ErrNotFound)
	}
	return t.UsageCount, nil
}

func (r *MemoryCounters) SetTagUsage(ctx context.Context, tagID uint, value int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("counters.SetTagUsage"); err != nil {
		return err
	}
	t, ok := r.s.tags[tagID]
	if !ok {
		return fmt.Errorf("tag %d: %w", tagID, repository.ErrNotFound)
	}
	t.UsageCount = max(value, 0)
	t.UpdatedAt = utils.UTCNow()
	return nil
}

func (r *MemoryCounters) AdjustTagUsage(ctx context.Context, tagID uint, delta int64) (repository.CounterChange, error) {
	current, err := r.TagUsage(ctx, tagID)
	if err != nil {
		return repository.CounterChange{}, err
	}
	next := repository.ClampCounter(current, delta)
	if err := r.SetTagUsage(ctx, tagID, next); err != nil {
		return repository.CounterChange{Before: current, After: current}, err
	}
	return repository.CounterChange{Before: current, After: next}, nil
}

func (r *MemoryCounters) VideoCounter(ctx context.Context, videoID uint, counter models.VideoCounter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("counters.VideoCounter"); err != nil {
		return 0, err
	}
	if !counter.Valid() {
		return 0, fmt.Errorf("unknown video counter %q", counter)
	}
	v, ok := r.s.videos[videoID]
	if !ok {
		return 0, fmt.Errorf("video %d: %w", videoID, repository.ErrNotFound)
	}
	return v.Counter(counter), nil
}

func (r *MemoryCounters) SetVideoCounter(ctx context.Context, videoID uint, counter models.VideoCounter, value int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("counters.SetVideoCounter"); err != nil {
		return err
	}
	if !counter.Valid() {
		return fmt.Errorf("unknown video counter %q", counter)
	}
	v, ok := r.s.videos[videoID]
	if !ok {
		return fmt.Errorf("video %d: %w", videoID, repository.ErrNotFound)
	}
	v.SetCounter(counter, max(value, 0))
	v.UpdatedAt = utils.UTCNow()
	return nil
}

func (r *MemoryCounters) AdjustVideoCounter(ctx context.Context, videoID uint, counter models.VideoCounter, delta int64) (repository.CounterChange, error) {
	current, err := r.VideoCounter(ctx, videoID, counter)
	if err != nil {
		return repository.CounterChange{}, err
	}
	next := repository.ClampCounter(current, delta)
	if err := r.SetVideoCounter(ctx, videoID, counter, next); err != nil {
		return repository.CounterChange{Before: current, After: current}, err
	}
	return repository.CounterChange{Before: current, After: next}, nil
}

// ---- likes ----

// MemoryLikes implements repository.LikeRepository
type MemoryLikes struct{ s *MemoryStore }

func (r *MemoryLikes) Save(ctx context.Context, like *models.Like) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("likes.Save"); err != nil {
		return err
	}
	if _, ok := r.s.videos[like.VideoID]; !ok {
		return fkViolation("likes.video_id")
	}
	if _, ok := r.s.users[like.UserID]; !ok {
		return fkViolation("likes.user_id")
	}
	for _, l := range r.s.likes {
		if l.VideoID == like.VideoID && l.UserID == like.UserID {
			return conflict("likes(video_id, user_id)")
		}
	}
	like.ID = r.s.next("likes")
	like.CreatedAt = utils.UTCNow()
	r.s.likes[like.ID] = clone(like)
	return nil
}

func (r *MemoryLikes) Delete(ctx context.Context, videoID, userID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("likes.Delete"); err != nil {
		return 0, err
	}
	var n int64
	for id, l := range r.s.likes {
		if l.VideoID == videoID && l.UserID == userID {
			delete(r.s.likes, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryLikes) CountByVideoIDs(ctx context.Context, videoIDs []uint) (map[uint]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("likes.CountByVideoIDs"); err != nil {
		return nil, err
	}
	set := inSet(videoIDs)
	out := map[uint]int64{}
	for _, l := range r.s.likes {
		if _, ok := set[l.VideoID]; ok {
			out[l.VideoID]++
		}
	}
	return out, nil
}

func (r *MemoryLikes) CountByVideoForUser(ctx context.Context, userID uint) (map[uint]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[uint]int64{}
	for _, l := range r.s.likes {
		if l.UserID == userID {
			out[l.VideoID]++
		}
	}
	return out, nil
}

func (r *MemoryLikes) DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("likes.DeleteByVideoIDs"); err != nil {
		return 0, err
	}
	set := inSet(videoIDs)
	var n int64
	for id, l := range r.s.likes {
		if _, ok := set[l.VideoID]; ok {
			delete(r.s.likes, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryLikes) DeleteByUserID(ctx context.Context, userID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("likes.DeleteByUserID"); err != nil {
		return 0, err
	}
	var n int64
	for id, l := range r.s.likes {
		if l.UserID == userID {
			delete(r.s.likes, id)
			n++
		}
	}
	return n, nil
}

// ---- comments ----

// MemoryComments implements repository.CommentRepository
type MemoryComments struct{ s *MemoryStore }

func (r *MemoryComments) Save(ctx context.Context, comment *models.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("comments.Save"); err != nil {
		return err
	}
	if _, ok := r.s.videos[comment.VideoID]; !ok {
		return fkViolation("comments.video_id")
	}
	if _, ok := r.s.users[comment.UserID]; !ok {
		return fkViolation("comments.user_id")
	}
	comment.ID = r.s.next("comments")
	now := utils.UTCNow()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	r.s.comments[comment.ID] = clone(comment)
	return nil
}

func (r *MemoryComments) ByID(ctx context.Context, id uint) (*models.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return clone(r.s.comments[id]), nil
}

func (r *MemoryComments) DeleteByID(ctx context.Context, id uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("comments.DeleteByID"); err != nil {
		return 0, err
	}
	if _, ok := r.s.comments[id]; !ok {
		return 0, nil
	}
	delete(r.s.comments, id)
	return 1, nil
}

func (r *MemoryComments) CountByVideoIDs(ctx context.Context, videoIDs []uint) (map[uint]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("comments.CountByVideoIDs"); err != nil {
		return nil, err
	}
	set := inSet(videoIDs)
	out := map[uint]int64{}
	for _, c := range r.s.comments {
		if _, ok := set[c.VideoID]; ok {
			out[c.VideoID]++
		}
	}
	return out, nil
}

func (r *MemoryComments) CountByVideoForUser(ctx context.Context, userID uint) (map[uint]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[uint]int64{}
	for _, c := range r.s.comments {
		if c.UserID == userID {
			out[c.VideoID]++
		}
	}
	return out, nil
}

func (r *MemoryComments) DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("comments.DeleteByVideoIDs"); err != nil {
		return 0, err
	}
	set := inSet(videoIDs)
	var n int64
	for id, c := range r.s.comments {
		if _, ok := set[c.VideoID]; ok {
			delete(r.s.comments, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryComments) DeleteByUserID(ctx context.Context, userID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("comments.DeleteByUserID"); err != nil {
		return 0, err
	}
	var n int64
	for id, c := range r.s.comments {
		if c.UserID == userID {
			delete(r.s.comments, id)
			n++
		}
	}
	return n, nil
}

// ---- video_views ----

// MemoryViews implements repository.VideoViewRepository
type MemoryViews struct{ s *MemoryStore }

func (r *MemoryViews) Save(ctx context.Context, view *models.VideoView) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("views.Save"); err != nil {
		return err
	}
	if _, ok := r.s.videos[view.VideoID]; !ok {
		return fkViolation("video_views.video_id")
	}
	view.ID = r.s.next("video_views")
	view.CreatedAt = utils.UTCNow()
	r.s.views[view.ID] = clone(view)
	return nil
}

func (r *MemoryViews) CountByVideoIDs(ctx context.Context, videoIDs []uint) (map[uint]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("views.CountByVideoIDs"); err != nil {
		return nil, err
	}
	set := inSet(videoIDs)
	out := map[uint]int64{}
	for _, v := range r.s.views {
		if _, ok := set[v.VideoID]; ok {
			out[v.VideoID]++
		}
	}
	return out, nil
}

func (r *MemoryViews) DeleteByVideoIDs(ctx context.Context, videoIDs []uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("views.DeleteByVideoIDs"); err != nil {
		return 0, err
	}
	set := inSet(videoIDs)
	var n int64
	for id, v := range r.s.views {
		if _, ok := set[v.VideoID]; ok {
			delete(r.s.views, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryViews) AnonymizeByUserID(ctx context.Context, userID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("views.AnonymizeByUserID"); err != nil {
		return 0, err
	}
	var n int64
	for _, v := range r.s.views {
		if v.UserID != nil && *v.UserID == userID {
			v.UserID = nil
			n++
		}
	}
	return n, nil
}
