package authorization

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clinical-consent/internal/domain/consent"
	"clinical-consent/internal/domain/qrtokens"
	"clinical-consent/internal/ports/events"
)

// -------------------------
// Test stores (in-memory)
// -------------------------

var errStoreDown = errors.New("store: connection refused")

type triple struct{ p, d, s string }

type testConsents struct {
	mu   sync.Mutex
	rows map[triple]consent.Grant
	seq  int

	// failUpsert/failFind simulan un storage caído
	failUpsert bool
	failFind   bool
}

func newTestConsents() *testConsents {
	return &testConsents{rows: map[triple]consent.Grant{}}
}

func (r *testConsents) Upsert(_ context.Context, in consent.UpsertInput) (consent.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpsert {
		return consent.Grant{}, errStoreDown
	}

	k := triple{in.PatientID, in.DoctorID, in.Scope}
	g, ok := r.rows[k]
	if !ok {
		r.seq++
		g = consent.Grant{
			ID:        fmt.Sprintf("grant-%d", r.seq),
			PatientID: in.PatientID,
			DoctorID:  in.DoctorID,
			Scope:     in.Scope,
			CreatedAt: in.Now,
		}
	}
	g.Status = in.Status
	g.ExpiresAt = in.ExpiresAt
	g.UpdatedAt = in.Now
	g.RevokedAt = nil
	r.rows[k] = g
	return g, nil
}

func (r *testConsents) Find(_ context.Context, p, d, s string) (consent.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFind {
		return consent.Grant{}, errStoreDown
	}
	g, ok := r.rows[triple{p, d, s}]
	if !ok {
		return consent.Grant{}, consent.ErrNotFound
	}
	return g, nil
}

func (r *testConsents) MarkRevoked(_ context.Context, p, d, s string, now time.Time) (consent.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := triple{p, d, s}
	g, ok := r.rows[k]
	if !ok {
		return consent.Grant{}, consent.ErrNotFound
	}
	g.Status = consent.StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = &now
	r.rows[k] = g
	return g, nil
}

func (r *testConsents) ListByPatient(_ context.Context, p string) ([]consent.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]consent.Grant, 0)
	for k, g := range r.rows {
		if k.p == p {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testConsents) ListByDoctor(_ context.Context, d string) ([]consent.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]consent.Grant, 0)
	for k, g := range r.rows {
		if k.d == d {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testConsents) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type testTokens struct {
	mu      sync.Mutex
	byValue map[string]qrtokens.Token

	failClaim  bool
	dupCreates int // cuántos Create seguidos devuelven ErrDuplicate
	deleted    []time.Time
}

func newTestTokens() *testTokens {
	return &testTokens{byValue: map[string]qrtokens.Token{}}
}

func (r *testTokens) Create(_ context.Context, t qrtokens.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dupCreates > 0 {
		r.dupCreates--
		return qrtokens.ErrDuplicate
	}
	if _, ok := r.byValue[t.Value]; ok {
		return qrtokens.ErrDuplicate
	}
	r.byValue[t.Value] = t
	return nil
}

func (r *testTokens) Claim(_ context.Context, value, doctorID string, now time.Time) (qrtokens.Claimed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failClaim {
		return qrtokens.Claimed{}, errStoreDown
	}
	t, ok := r.byValue[value]
	if !ok {
		return qrtokens.Claimed{}, qrtokens.ErrNotFound
	}
	if t.ExpiredAt(now) {
		return qrtokens.Claimed{}, qrtokens.ErrExpired
	}
	if t.Used() {
		return qrtokens.Claimed{}, qrtokens.ErrAlreadyUsed
	}
	t.UsedAt = &now
	t.UsedByDoctorID = doctorID
	r.byValue[value] = t
	return qrtokens.Claimed{PatientID: t.PatientID, DoctorID: doctorID, UsedAt: now}, nil
}

func (r *testTokens) Get(_ context.Context, value string) (qrtokens.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byValue[value]
	if !ok {
		return qrtokens.Token{}, qrtokens.ErrNotFound
	}
	return t, nil
}

func (r *testTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, before)
	var n int64
	for v, t := range r.byValue {
		if t.ExpiresAt.Before(before) {
			delete(r.byValue, v)
			n++
		}
	}
	return n, nil
}

type testPublisher struct {
	mu   sync.Mutex
	got  []events.Event
	fail bool
}

func (p *testPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.got = append(p.got, e)
	return nil
}

func (p *testPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.got))
	for _, e := range p.got {
		out = append(out, e.Type)
	}
	return out
}

// clock manual para los escenarios con tiempo
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}
