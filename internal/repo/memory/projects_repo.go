package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/jobsheet/internal/domain/project"
	"github.com/google/uuid"
)

// ProjectsRepo keeps projects in process memory with the same
// creator-only update rule as the postgres store.
type ProjectsRepo struct {
	mu    sync.RWMutex
	items map[string]project.Project
	now   func() time.Time
}

func NewProjectsRepo() *ProjectsRepo {
	return &ProjectsRepo{
		items: make(map[string]project.Project),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *ProjectsRepo) List(ctx context.Context) ([]project.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]project.Project, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (r *ProjectsRepo) GetByID(ctx context.Context, id string) (project.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	return p, nil
}

func (r *ProjectsRepo) Create(ctx context.Context, req project.CreateRequest) (project.Project, error) {
	p := project.NewFromCreateRequest(uuid.NewString(), req, r.now())

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[p.ID] = p
	return p, nil
}

func (r *ProjectsRepo) UpdateField(ctx context.Context, id, actorID string, patch project.Patch) (project.Project, error) {
	if _, ok := project.LookupColumn(patch.Column); !ok {
		return project.Project{}, fmt.Errorf("%w: %s", project.ErrUnknownColumn, patch.Column)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	if p.CreatorID() == "" || p.CreatorID() != actorID {
		return project.Project{}, project.ErrForbidden
	}

	if err := p.Apply(patch); err != nil {
		return project.Project{}, err
	}

	r.items[id] = p
	return p, nil
}
