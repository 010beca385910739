package hub

import "context"

type Service interface {
	GetByID(ctx context.Context, id string) (*Hub, error)
	List(ctx context.Context, filter Filter) ([]*Hub, int, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetByID(ctx context.Context, id string) (*Hub, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Hub, int, error) {
	return s.repo.List(ctx, filter)
}
