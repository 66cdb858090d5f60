package ai

import (
	"strings"

	"github.com/kiranshivaraju/textbrief/internal/ai/cohere"
	"github.com/kiranshivaraju/textbrief/internal/ai/google"
	"github.com/kiranshivaraju/textbrief/internal/ai/groq"
	"github.com/kiranshivaraju/textbrief/internal/ai/sambanova"
	"github.com/kiranshivaraju/textbrief/internal/config"
	"github.com/kiranshivaraju/textbrief/pkg/models"
)

// Registry maps provider IDs to their adapters and credentials. It is built
// once at startup and read-only afterwards.
type Registry struct {
	adapters map[models.ProviderID]models.ProviderAdapter
	creds    map[models.ProviderID]string
}

// NewRegistry constructs the four built-in adapters from config.
func NewRegistry(cfg config.AIConfig) *Registry {
	return NewRegistryWith([]models.ProviderAdapter{
		google.NewAdapter(cfg.Google, cfg.Language),
		groq.NewAdapter(cfg.Groq, cfg.Language),
		sambanova.NewAdapter(cfg.SambaNova, cfg.Language),
		cohere.NewAdapter(cfg.Cohere, cfg.Language),
	}, cfg.Credentials())
}

// NewRegistryWith builds a Registry from explicit adapters and credentials.
func NewRegistryWith(adapters []models.ProviderAdapter, creds map[models.ProviderID]string) *Registry {
	r := &Registry{
		adapters: make(map[models.ProviderID]models.ProviderAdapter, len(adapters)),
		creds:    make(map[models.ProviderID]string, len(creds)),
	}
	for _, a := range adapters {
		r.adapters[a.ID()] = a
	}
	for id, c := range creds {
		r.creds[id] = strings.TrimSpace(c)
	}
	return r
}

// IsAvailable reports whether id has an adapter with at least one model and a non-empty credential.
func (r *Registry) IsAvailable(id models.ProviderID) bool {
	a, ok := r.adapters[id]
	return ok && len(a.Models()) > 0 && r.creds[id] != ""
}

func (r *Registry) Adapter(id models.ProviderID) (models.ProviderAdapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

func (r *Registry) Credential(id models.ProviderID) string {
	return r.creds[id]
}

// Availability reports IsAvailable for every known provider.
func (r *Registry) Availability() map[models.ProviderID]bool {
	out := make(map[models.ProviderID]bool, len(models.PriorityOrder))
	for _, id := range models.PriorityOrder {
		out[id] = r.IsAvailable(id)
	}
	return out
}
