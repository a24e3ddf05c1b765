package usecases

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"project_asisten/internal/entities"
	"project_asisten/internal/infrastructure"
)

// resolverTTL bounds credential-rotation staleness without forcing a
// datastore round-trip per message.
const resolverTTL = 5 * time.Minute

type bindingSource interface {
	GetAgent(ctx context.Context, id int) (*entities.Agent, error)
	GetBindingByChannelID(ctx context.Context, phoneNumberID string) (*entities.ChannelBinding, error)
	GetBindingByPhoneNumber(ctx context.Context, phoneNumber string) (*entities.ChannelBinding, error)
	GetBindingByAgentID(ctx context.Context, agentID int) (*entities.ChannelBinding, error)
}

// TenantResolver maps inbound platform identifiers to the owning tenant's
// configuration. A nil, nil return means "no agent configured" and the caller
// silently drops the message; it is not an error.
type TenantResolver struct {
	repo  bindingSource
	cache *infrastructure.TTLCache[string, *entities.ResolvedTenant]
}

func NewTenantResolver(repo bindingSource) *TenantResolver {
	return &TenantResolver{
		repo:  repo,
		cache: infrastructure.NewTTLCache[string, *entities.ResolvedTenant](resolverTTL),
	}
}

func (r *TenantResolver) ResolveByChannelID(ctx context.Context, phoneNumberID string) (*entities.ResolvedTenant, error) {
	return r.resolve(ctx, "ch:"+phoneNumberID, func() (*entities.ChannelBinding, error) {
		return r.repo.GetBindingByChannelID(ctx, phoneNumberID)
	})
}

func (r *TenantResolver) ResolveByPhoneNumber(ctx context.Context, phoneNumber string) (*entities.ResolvedTenant, error) {
	return r.resolve(ctx, "pn:"+phoneNumber, func() (*entities.ChannelBinding, error) {
		return r.repo.GetBindingByPhoneNumber(ctx, phoneNumber)
	})
}

func (r *TenantResolver) ResolveByID(ctx context.Context, agentID int) (*entities.ResolvedTenant, error) {
	return r.resolve(ctx, "id:"+strconv.Itoa(agentID), func() (*entities.ChannelBinding, error) {
		return r.repo.GetBindingByAgentID(ctx, agentID)
	})
}

func (r *TenantResolver) resolve(ctx context.Context, cacheKey string, lookup func() (*entities.ChannelBinding, error)) (*entities.ResolvedTenant, error) {
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached, nil
	}

	binding, err := lookup()
	if err != nil {
		return nil, fmt.Errorf("resolve binding: %w", err)
	}
	if binding == nil || binding.Status != entities.AgentActive {
		return nil, nil
	}

	agent, err := r.repo.GetAgent(ctx, binding.AgentID)
	if err != nil {
		return nil, fmt.Errorf("resolve agent %d: %w", binding.AgentID, err)
	}
	if agent == nil || agent.Status != entities.AgentActive {
		return nil, nil
	}

	resolved := &entities.ResolvedTenant{Agent: agent, Binding: binding}
	r.cache.Set(cacheKey, resolved)
	return resolved, nil
}

// Invalidate evicts every cache entry referencing the tenant. Binding writes
// must call this so a rotated credential is observed on the next resolution.
func (r *TenantResolver) Invalidate(agentID int) {
	r.cache.DeleteFunc(func(_ string, v *entities.ResolvedTenant) bool {
		return v != nil && v.Agent != nil && v.Agent.ID == agentID
	})
}
