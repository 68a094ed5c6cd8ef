package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aura-dev/aura/internal/models"
)

// Router picks the channel service of a channel-qualified user id.
type Router struct {
	services map[models.Channel]Service
	order    []models.Channel
}

func NewRouter(services ...Service) *Router {
	r := &Router{services: make(map[models.Channel]Service)}
	for _, s := range services {
		r.Register(s)
	}
	return r
}

// Register adds svc, replacing any service of the same channel.
func (r *Router) Register(svc Service) {
	ch := svc.Channel()
	if _, ok := r.services[ch]; !ok {
		r.order = append(r.order, ch)
	}
	r.services[ch] = svc
	slog.Debug("Router.Register: channel registered", "channel", ch)
}

// Service returns the service registered for ch.
func (r *Router) Service(ch models.Channel) (Service, bool) {
	s, ok := r.services[ch]
	return s, ok
}

// Services returns the registered services in registration order.
func (r *Router) Services() []Service {
	out := make([]Service, 0, len(r.order))
	for _, ch := range r.order {
		out = append(out, r.services[ch])
	}
	return out
}

// Send delivers text to a channel-qualified user id.
func (r *Router) Send(ctx context.Context, userID, text string) error {
	ch, recipient, err := models.SplitUserID(userID)
	if err != nil {
		return err
	}
	svc, ok := r.services[ch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, ch)
	}
	return svc.SendMessage(ctx, recipient, text)
}

// Start starts every service.
func (r *Router) Start(ctx context.Context) error {
	for _, s := range r.Services() {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start %s service: %w", s.Channel(), err)
		}
	}
	return nil
}

// Stop stops every service and returns the first error.
func (r *Router) Stop() error {
	var first error
	for _, s := range r.Services() {
		if err := s.Stop(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
