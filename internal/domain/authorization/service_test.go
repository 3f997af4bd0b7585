package authorization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"clinical-consent/internal/domain/consent"
	"clinical-consent/internal/ports/auth"
	"clinical-consent/internal/ports/events"
)

var (
	t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	patient = auth.Claims{UserID: "P1", Role: auth.RolePatient}
	doctor1 = auth.Claims{UserID: "D1", Role: auth.RoleDoctor}
	doctor2 = auth.Claims{UserID: "D2", Role: auth.RoleDoctor}
)

type fixture struct {
	svc      *Service
	consents *testConsents
	tokens   *testTokens
	pub      *testPublisher
	clock    *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		consents: newTestConsents(),
		tokens:   newTestTokens(),
		pub:      &testPublisher{},
		clock:    &clock{t: t0},
	}
	f.svc = NewService(f.consents, f.tokens, Options{Publisher: f.pub})
	f.svc.now = f.clock.Now
	return f
}

func (f *fixture) active(t *testing.T, doctorID, scope string) bool {
	t.Helper()
	ok, err := f.svc.HasActiveConsent(context.Background(), "P1", doctorID, scope)
	if err != nil {
		t.Fatalf("HasActiveConsent: %v", err)
	}
	return ok
}

func TestGrantConsent_ThenCheckWithinAndAfterWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.svc.GrantConsent(ctx, patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: 60})
	if err != nil {
		t.Fatalf("GrantConsent: %v", err)
	}
	if g.Status != consent.StatusApproved || g.ExpiresAt == nil || !g.ExpiresAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("unexpected grant: %+v", g)
	}

	f.clock.Set(t0.Add(30 * time.Minute))
	if !f.active(t, "D1", "lab") {
		t.Fatal("expected active at T0+30m")
	}
	if f.active(t, "D1", "imaging") {
		t.Fatal("scopes are independent")
	}
	if f.active(t, "D2", "lab") {
		t.Fatal("other doctor must not be active")
	}

	// el límite exacto sigue activo
	f.clock.Set(t0.Add(time.Hour))
	if !f.active(t, "D1", "lab") {
		t.Fatal("expected active at exactly expires_at")
	}

	f.clock.Set(t0.Add(61 * time.Minute))
	if f.active(t, "D1", "lab") {
		t.Fatal("expected inactive after expiry")
	}

	// el chequeo no modifica el grant vencido
	stored, _ := f.consents.Find(ctx, "P1", "D1", "lab")
	if stored.Status != consent.StatusApproved {
		t.Fatalf("lazy expiry must not rewrite status, got %q", stored.Status)
	}
}

func TestRevokeConsent_ThenRegrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.GrantConsent(ctx, patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: 60}); err != nil {
		t.Fatalf("GrantConsent: %v", err)
	}
	first, _ := f.consents.Find(ctx, "P1", "D1", "lab")

	f.clock.Set(t0.Add(5 * time.Minute))
	g, err := f.svc.RevokeConsent(ctx, patient, "D1", "lab")
	if err != nil {
		t.Fatalf("RevokeConsent: %v", err)
	}
	if g.Status != consent.StatusRevoked || g.RevokedAt == nil {
		t.Fatalf("unexpected revoked grant: %+v", g)
	}
	if f.active(t, "D1", "lab") {
		t.Fatal("expected inactive right after revoke")
	}

	f.clock.Set(t0.Add(10 * time.Minute))
	if _, err := f.svc.GrantConsent(ctx, patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: 30}); err != nil {
		t.Fatalf("regrant: %v", err)
	}
	if !f.active(t, "D1", "lab") {
		t.Fatal("grant must override previous revoke")
	}

	again, _ := f.consents.Find(ctx, "P1", "D1", "lab")
	if again.ID != first.ID || f.consents.count() != 1 {
		t.Fatalf("expected a single row per triple, got id %q vs %q count=%d", again.ID, first.ID, f.consents.count())
	}
	if !again.ExpiresAt.Equal(t0.Add(40 * time.Minute)) {
		t.Fatalf("latest write must win, expires_at=%v", again.ExpiresAt)
	}
}

func TestRevokeConsent_NothingToRevoke(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.RevokeConsent(context.Background(), patient, "D1", "lab"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGrantConsent_Validation(t *testing.T) {
	cases := []struct {
		name   string
		caller auth.Claims
		in     GrantInput
		want   error
	}{
		{"doctor cannot grant", doctor1, GrantInput{DoctorID: "D2", Scope: "lab", DurationMinutes: 10}, ErrUnauthorized},
		{"no identity", auth.Claims{Role: auth.RolePatient}, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: 10}, ErrUnauthorized},
		{"missing doctor", patient, GrantInput{Scope: "lab", DurationMinutes: 10}, ErrInvalidInput},
		{"missing scope", patient, GrantInput{DoctorID: "D1", DurationMinutes: 10}, ErrInvalidInput},
		{"zero duration", patient, GrantInput{DoctorID: "D1", Scope: "lab"}, ErrInvalidInput},
		{"negative duration", patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: -5}, ErrInvalidInput},
		{"over maximum", patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: 8 * 24 * 60}, ErrInvalidInput},
		{"overflowing duration", patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: 307445734562}, ErrInvalidInput},
		{"max int duration", patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: math.MaxInt}, ErrInvalidInput},
		{"self grant", patient, GrantInput{DoctorID: "P1", Scope: "lab", DurationMinutes: 10}, ErrInvalidInput},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.GrantConsent(context.Background(), tc.caller, tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if f.consents.count() != 0 {
				t.Fatal("rejected grant must not write")
			}
		})
	}
}

func TestGrantConsent_MaximumDurationAccepted(t *testing.T) {
	f := newFixture(t)

	maxMinutes := int(DefaultMaxConsentDuration / time.Minute)
	g, err := f.svc.GrantConsent(context.Background(), patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: maxMinutes})
	if err != nil {
		t.Fatalf("GrantConsent at the maximum: %v", err)
	}
	if !g.ExpiresAt.Equal(t0.Add(DefaultMaxConsentDuration)) {
		t.Fatalf("unexpected expiry: %v", g.ExpiresAt)
	}
	if _, err := f.svc.GrantConsent(context.Background(), patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: maxMinutes + 1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput one minute over, got %v", err)
	}
}

func TestHasActiveConsent_EmptyInputsAndFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.svc.HasActiveConsent(ctx, "", "D1", "lab")
	if ok || err != nil {
		t.Fatalf("empty patient: got %v, %v", ok, err)
	}
	ok, err = f.svc.HasActiveConsent(ctx, "P1", "D1", "lab")
	if ok || err != nil {
		t.Fatalf("no grant: got %v, %v", ok, err)
	}

	f.consents.failFind = true
	ok, err = f.svc.HasActiveConsent(ctx, "P1", "D1", "lab")
	if ok {
		t.Fatal("storage failure must never read as active")
	}
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, errStoreDown) {
		t.Fatalf("expected ErrUnavailable wrapping the cause, got %v", err)
	}
}

func TestQRFlow_ExchangeWithinTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.svc.IssueToken(ctx, patient)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if issued.Token == "" || !issued.ExpiresAt.Equal(t0.Add(DefaultTokenTTL)) {
		t.Fatalf("unexpected token: %+v", issued)
	}

	f.clock.Set(t0.Add(2 * time.Minute))
	ex, err := f.svc.ExchangeToken(ctx, doctor1, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15})
	if err != nil {
		t.Fatalf("ExchangeToken: %v", err)
	}
	if ex.PatientID != "P1" || !ex.ExpiresAt.Equal(t0.Add(17*time.Minute)) {
		t.Fatalf("unexpected exchange: %+v", ex)
	}

	f.clock.Set(t0.Add(10 * time.Minute))
	if !f.active(t, "D1", "lab") {
		t.Fatal("expected active at T0+10m")
	}
	f.clock.Set(t0.Add(20 * time.Minute))
	if f.active(t, "D1", "lab") {
		t.Fatal("expected inactive at T0+20m")
	}

	tok, _ := f.tokens.Get(ctx, issued.Token)
	if tok.UsedAt == nil || tok.UsedByDoctorID != "D1" {
		t.Fatalf("token must record its redeemer: %+v", tok)
	}
}

func TestQRFlow_SecondExchangeRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, _ := f.svc.IssueToken(ctx, patient)
	f.clock.Set(t0.Add(time.Minute))
	if _, err := f.svc.ExchangeToken(ctx, doctor1, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15}); err != nil {
		t.Fatalf("first exchange: %v", err)
	}

	f.clock.Set(t0.Add(2 * time.Minute))
	_, err := f.svc.ExchangeToken(ctx, doctor2, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15})
	if !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed, got %v", err)
	}
	if f.active(t, "D2", "lab") {
		t.Fatal("second doctor must not get a grant")
	}
}

func TestQRFlow_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, _ := f.svc.IssueToken(ctx, patient)

	f.clock.Set(t0.Add(6 * time.Minute))
	_, err := f.svc.ExchangeToken(ctx, doctor1, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15})
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if f.consents.count() != 0 {
		t.Fatal("expired exchange must not create a grant")
	}

	tok, _ := f.tokens.Get(ctx, issued.Token)
	if tok.UsedAt != nil {
		t.Fatal("expired token must stay unused")
	}
}

func TestQRFlow_ExpiredWinsOverUsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, _ := f.svc.IssueToken(ctx, patient)
	if _, err := f.svc.ExchangeToken(ctx, doctor1, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15}); err != nil {
		t.Fatalf("exchange: %v", err)
	}

	f.clock.Set(t0.Add(time.Hour))
	_, err := f.svc.ExchangeToken(ctx, doctor2, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15})
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestExchangeToken_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, _ := f.svc.IssueToken(ctx, patient)

	cases := []struct {
		name   string
		caller auth.Claims
		in     ExchangeInput
		want   error
	}{
		{"patient cannot exchange", patient, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15}, ErrUnauthorized},
		{"unknown token", doctor1, ExchangeInput{Token: "nope", Scope: "lab", DurationMinutes: 15}, ErrNotFound},
		{"missing scope", doctor1, ExchangeInput{Token: issued.Token, DurationMinutes: 15}, ErrInvalidInput},
		{"zero duration", doctor1, ExchangeInput{Token: issued.Token, Scope: "lab"}, ErrInvalidInput},
		{"overflowing duration", doctor1, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 307445734562}, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.ExchangeToken(ctx, tc.caller, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	// ninguno de los rechazos anteriores quemó el token
	if _, err := f.svc.ExchangeToken(ctx, doctor1, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15}); err != nil {
		t.Fatalf("token should still be redeemable: %v", err)
	}
}

func TestIssueToken_OnlyPatients(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.IssueToken(context.Background(), doctor1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestIssueToken_RetriesCollisions(t *testing.T) {
	f := newFixture(t)
	f.tokens.dupCreates = tokenCreateAttempts - 1

	if _, err := f.svc.IssueToken(context.Background(), patient); err != nil {
		t.Fatalf("expected success after collisions, got %v", err)
	}

	f.tokens.dupCreates = tokenCreateAttempts
	if _, err := f.svc.IssueToken(context.Background(), patient); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable after exhausting attempts, got %v", err)
	}
}

func TestIssueToken_UniqueValues(t *testing.T) {
	f := newFixture(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		issued, err := f.svc.IssueToken(context.Background(), patient)
		if err != nil {
			t.Fatalf("IssueToken: %v", err)
		}
		if seen[issued.Token] {
			t.Fatalf("duplicate token %q", issued.Token)
		}
		seen[issued.Token] = true
	}
}

func TestExchangeToken_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, _ := f.svc.IssueToken(ctx, patient)

	const n = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		reused  int
		winners []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := auth.Claims{UserID: fmt.Sprintf("doc-%d", i), Role: auth.RoleDoctor}
			_, err := f.svc.ExchangeToken(ctx, caller, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
				winners = append(winners, caller.UserID)
			case errors.Is(err, ErrAlreadyUsed):
				reused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || reused != n-1 {
		t.Fatalf("expected exactly one winner, got wins=%d reused=%d", wins, reused)
	}
	if f.consents.count() != 1 {
		t.Fatalf("expected one grant, got %d", f.consents.count())
	}
	if !f.active(t, winners[0], "lab") {
		t.Fatal("winner must hold the grant")
	}
}

func TestExchangeToken_StoreFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, _ := f.svc.IssueToken(ctx, patient)

	f.tokens.failClaim = true
	_, err := f.svc.ExchangeToken(ctx, doctor1, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on claim failure, got %v", err)
	}
	f.tokens.failClaim = false

	// el claim pasa pero el grant falla: el token queda consumido
	f.consents.failUpsert = true
	_, err = f.svc.ExchangeToken(ctx, doctor1, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on grant failure, got %v", err)
	}
	f.consents.failUpsert = false

	_, err = f.svc.ExchangeToken(ctx, doctor1, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 15})
	if !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed on retry, got %v", err)
	}
}

func TestListConsents_ByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.GrantConsent(ctx, patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: 10})
	_, _ = f.svc.GrantConsent(ctx, patient, GrantInput{DoctorID: "D2", Scope: "lab", DurationMinutes: 10})
	other := auth.Claims{UserID: "P2", Role: auth.RolePatient}
	_, _ = f.svc.GrantConsent(ctx, other, GrantInput{DoctorID: "D1", Scope: "imaging", DurationMinutes: 10})

	mine, err := f.svc.ListConsents(ctx, patient)
	if err != nil || len(mine) != 2 {
		t.Fatalf("patient list: %d items, err=%v", len(mine), err)
	}
	received, err := f.svc.ListConsents(ctx, doctor1)
	if err != nil || len(received) != 2 {
		t.Fatalf("doctor list: %d items, err=%v", len(received), err)
	}
	if _, err := f.svc.ListConsents(ctx, auth.Claims{UserID: "x"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without role, got %v", err)
	}
}

func TestAuditEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.GrantConsent(ctx, patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: 10})
	_, _ = f.svc.RevokeConsent(ctx, patient, "D1", "lab")
	issued, _ := f.svc.IssueToken(ctx, patient)
	_, _ = f.svc.ExchangeToken(ctx, doctor1, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 10})
	_, _ = f.svc.ExchangeToken(ctx, doctor2, ExchangeInput{Token: issued.Token, Scope: "lab", DurationMinutes: 10})

	want := []events.Type{
		events.ConsentGranted,
		events.ConsentRevoked,
		events.TokenIssued,
		events.TokenExchanged,
		events.TokenRejected,
	}
	got := f.pub.types()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	last := f.pub.got[len(f.pub.got)-1]
	if last.Reason != "already_used" || last.DoctorID != "D2" {
		t.Fatalf("unexpected rejection event: %+v", last)
	}
	for _, e := range f.pub.got {
		if e.OccurredAt.IsZero() {
			t.Fatalf("event %s without timestamp", e.Type)
		}
	}
}

func TestPublisherFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.pub.fail = true

	if _, err := f.svc.GrantConsent(context.Background(), patient, GrantInput{DoctorID: "D1", Scope: "lab", DurationMinutes: 10}); err != nil {
		t.Fatalf("grant must succeed without audit sink: %v", err)
	}
	if !f.active(t, "D1", "lab") {
		t.Fatal("expected active grant")
	}
}
