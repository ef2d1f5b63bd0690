package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"yogavision/log"
	"yogavision/util/timer"

	hash "github.com/mitchellh/hashstructure/v2"
	"go.uber.org/zap"
)

var ErrorNoService = errors.New("no service available")

const DefaultFormat = hash.FormatV2

// Fingerprint hashes everything about a service so an in-place change is
// seen as an Update.
func Fingerprint(s *Service) uint64 {
	h, err := hash.Hash(s, DefaultFormat, nil)
	if err != nil {
		return 0
	}

	return h
}

// Diff reports how cur differs from prev, keyed by service ID.
func Diff(prev, cur []*Service) []*Event {
	before := make(map[string]*Service, len(prev))
	for _, s := range prev {
		before[s.ID] = s
	}

	var events []*Event

	seen := make(map[string]bool, len(cur))

	for _, s := range cur {
		seen[s.ID] = true

		old, ok := before[s.ID]

		switch {
		case !ok:
			events = append(events, &Event{Type: Create, Service: s})
		case Fingerprint(old) != Fingerprint(s):
			events = append(events, &Event{Type: Update, Service: s})
		}
	}

	for _, s := range prev {
		if !seen[s.ID] {
			events = append(events, &Event{Type: Delete, Service: s})
		}
	}

	return events
}

// Poll lists every interval and reports differences from the previous list.
// Listing errors keep the previous list.
func Poll(ctx context.Context, initial []*Service, opts *WatchOptions, list func() ([]*Service, error)) timer.Ticker {
	if ctx == nil {
		ctx = context.Background()
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	prev := initial

	return timer.NewTickerContext(ctx, interval, func() {
		cur, err := list()
		if err != nil {
			log.Warn("RegistryPoll", zap.String("domain", opts.Domain), zap.String("err", err.Error()))

			return
		}

		for _, e := range Diff(prev, cur) {
			if opts.EventHandler != nil {
				opts.EventHandler(e)
			}
		}

		prev = cur
	})
}

// Pick chooses the backend with the lowest ID among those whose ID starts
// with prefix, so every client of a domain agrees on the choice.
func Pick(services []*Service, prefix string) (*Service, error) {
	var match []*Service

	for _, s := range services {
		if strings.HasPrefix(s.ID, prefix) && s.Addr != "" {
			match = append(match, s)
		}
	}

	if len(match) == 0 {
		return nil, ErrorNoService
	}

	sort.Slice(match, func(i, j int) bool { return match[i].ID < match[j].ID })

	return match[0], nil
}

// Resolver keeps a backend address current from registry events.
type Resolver struct {
	reg     Registry
	domain  string
	service string

	mu       sync.Mutex
	current  string
	onChange func(addr string)
}

func NewResolver(reg Registry, domain, service string, onChange func(string)) *Resolver {
	return &Resolver{reg: reg, domain: domain, service: service, onChange: onChange}
}

func (r *Resolver) Resolve() (string, error) {
	services, err := r.reg.ListServices(ListOptionWithDomain(r.domain))
	if err != nil {
		return "", err
	}

	s, err := Pick(services, r.service)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.current = s.Addr
	r.mu.Unlock()

	return s.Addr, nil
}

func (r *Resolver) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.current
}

// Watch re-resolves on every registry event and calls onChange when the
// chosen address moves. A domain with no backend left keeps the last address.
func (r *Resolver) Watch(ctx context.Context, interval time.Duration) error {
	return r.reg.Watch(
		WatchOptionWithContext(ctx),
		WatchOptionWithDomain(r.domain),
		WatchOptionWithInterval(interval),
		WatchOptionWithEventHandler(r.handle))
}

func (r *Resolver) handle(e *Event) {
	log.Info("RegistryEvent", zap.String("type", e.Type.String()), zap.String("id", e.Service.ID), zap.String("addr", e.Service.Addr))

	before := r.Current()

	addr, err := r.Resolve()
	if err != nil {
		log.Warn("RegistryResolve", zap.String("domain", r.domain), zap.String("err", err.Error()))

		return
	}

	if addr != before && r.onChange != nil {
		r.onChange(addr)
	}
}
