package memory

import (
	"context"
	"sort"

	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/pagination"
)

// TemplateRepository is the in-memory finding.TemplateRepository.
type TemplateRepository struct {
	store *Store
}

// NewTemplateRepository creates a template repository over a Store.
func NewTemplateRepository(store *Store) *TemplateRepository {
	return &TemplateRepository{store: store}
}

// Create stores a new template.
func (r *TemplateRepository) Create(_ context.Context, t *finding.Template) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.templates[t.ID()]; exists {
		return shared.ErrConflict
	}
	r.store.templates[t.ID()] = cloneTemplate(t)
	return nil
}

// GetByID retrieves a template by ID.
func (r *TemplateRepository) GetByID(_ context.Context, id shared.ID) (*finding.Template, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	t, ok := r.store.templates[id]
	if !ok {
		return nil, finding.NewTemplateNotFoundError(id)
	}
	return cloneTemplate(t), nil
}

// List returns one page of templates, newest first.
func (r *TemplateRepository) List(_ context.Context, page pagination.Pagination) ([]*finding.Template, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	templates := make([]*finding.Template, 0, len(r.store.templates))
	for _, t := range r.store.templates {
		templates = append(templates, t)
	}

	sort.Slice(templates, func(i, j int) bool {
		if !templates[i].CreatedAt().Equal(templates[j].CreatedAt()) {
			return templates[i].CreatedAt().After(templates[j].CreatedAt())
		}
		return templates[i].ID().String() < templates[j].ID().String()
	})

	total := int64(len(templates))
	start := page.Offset()
	if start >= len(templates) {
		return nil, total, nil
	}
	end := start + page.Limit()
	if end > len(templates) {
		end = len(templates)
	}

	result := make([]*finding.Template, 0, end-start)
	for _, t := range templates[start:end] {
		result = append(result, cloneTemplate(t))
	}
	return result, total, nil
}

// Delete removes a template. Findings created from it are untouched.
func (r *TemplateRepository) Delete(_ context.Context, id shared.ID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.templates[id]; !ok {
		return finding.NewTemplateNotFoundError(id)
	}
	delete(r.store.templates, id)
	return nil
}
