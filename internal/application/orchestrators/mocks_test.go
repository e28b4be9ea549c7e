package orchestrators

import (
	"context"
	"errors"
	"sort"
	"time"

	emailAdapter "stablepost/internal/adapters/email"
	"stablepost/internal/adapters/render"
	paymentDomain "stablepost/internal/domain/payment"
	queueDomain "stablepost/internal/domain/queue"
	registrationDomain "stablepost/internal/domain/registration"
)

var fixedTime = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func testNow() time.Time { return fixedTime }

func testRenderer() *render.Renderer {
	return render.New(render.Branding{
		BusinessName:   "Highfield Equestrian",
		Tagline:        "Test tagline",
		WebsiteURL:     "https://example.test",
		ContactPhone:   "+91-9900000000",
		ContactEmail:   "info@example.test",
		ConsentBaseURL: "https://example.test/consent",
	}, "Welcome **aboard**.")
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + string(rune('0'+n))
	}
}

// --- Mock quota store ---

type mockQuotaStore struct {
	counts   map[string]int
	usageErr error
	incErr   error
}

func newMockQuotaStore() *mockQuotaStore {
	return &mockQuotaStore{counts: make(map[string]int)}
}

func (m *mockQuotaStore) Usage(_ context.Context, day string) (int, error) {
	if m.usageErr != nil {
		return 0, m.usageErr
	}
	return m.counts[day], nil
}

func (m *mockQuotaStore) Increment(_ context.Context, day string) error {
	if m.incErr != nil {
		return m.incErr
	}
	m.counts[day]++
	return nil
}

func (m *mockQuotaStore) DeleteExcept(_ context.Context, keep string) error {
	for day := range m.counts {
		if day != keep {
			delete(m.counts, day)
		}
	}
	return nil
}

// --- Mock queue store ---

type mockQueueStore struct {
	entries map[string]queueDomain.Entry
	listErr error
	saveErr error
}

func newMockQueueStore() *mockQueueStore {
	return &mockQueueStore{entries: make(map[string]queueDomain.Entry)}
}

func (m *mockQueueStore) GetByID(_ context.Context, id string) (queueDomain.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return queueDomain.Entry{}, queueDomain.ErrNotFound
	}
	return e, nil
}

func (m *mockQueueStore) GetByRecipient(_ context.Context, email string) (queueDomain.Entry, error) {
	for _, e := range m.entries {
		if e.RecipientKey == email {
			return e, nil
		}
	}
	return queueDomain.Entry{}, queueDomain.ErrNotFound
}

func (m *mockQueueStore) Save(_ context.Context, e queueDomain.Entry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries[e.ID] = e
	return nil
}

func (m *mockQueueStore) ListOldestFirst(_ context.Context, limit int) ([]queueDomain.Entry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []queueDomain.Entry
	for _, e := range m.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EnqueuedAt.Before(result[j].EnqueuedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockQueueStore) Count(_ context.Context) (int, error) {
	return len(m.entries), nil
}

func (m *mockQueueStore) Delete(_ context.Context, id string) error {
	delete(m.entries, id)
	return nil
}

// --- Mock registration store ---

type mockRegistrationStore struct {
	regs map[string]registrationDomain.Registration // keyed by email
}

func newMockRegistrationStore() *mockRegistrationStore {
	return &mockRegistrationStore{regs: make(map[string]registrationDomain.Registration)}
}

func (m *mockRegistrationStore) GetByEmail(_ context.Context, email string) (registrationDomain.Registration, error) {
	r, ok := m.regs[email]
	if !ok {
		return registrationDomain.Registration{}, registrationDomain.ErrNotFound
	}
	return r, nil
}

func (m *mockRegistrationStore) GetByNumber(_ context.Context, number string) (registrationDomain.Registration, error) {
	for _, r := range m.regs {
		if r.RegistrationNumber == number {
			return r, nil
		}
	}
	return registrationDomain.Registration{}, registrationDomain.ErrNotFound
}

func (m *mockRegistrationStore) Save(_ context.Context, r registrationDomain.Registration) error {
	m.regs[r.Email] = r
	return nil
}

func (m *mockRegistrationStore) UpdateEmailStatus(_ context.Context, email, status string, at time.Time, errMsg string) error {
	r, ok := m.regs[email]
	if !ok {
		return registrationDomain.ErrNotFound
	}
	r.EmailStatus = status
	r.EmailStatusAt = at
	r.EmailError = errMsg
	m.regs[email] = r
	return nil
}

func (m *mockRegistrationStore) CountByLocation(_ context.Context, location string) (int, error) {
	count := 0
	for _, r := range m.regs {
		if r.Location == location {
			count++
		}
	}
	return count, nil
}

// --- Mock payment store ---

type mockPaymentStore struct {
	subs     map[string]paymentDomain.Submission
	listErr  error
	countErr error
}

func newMockPaymentStore() *mockPaymentStore {
	return &mockPaymentStore{subs: make(map[string]paymentDomain.Submission)}
}

func (m *mockPaymentStore) GetByID(_ context.Context, id string) (paymentDomain.Submission, error) {
	s, ok := m.subs[id]
	if !ok {
		return paymentDomain.Submission{}, paymentDomain.ErrNotFound
	}
	return s, nil
}

func (m *mockPaymentStore) Save(_ context.Context, s paymentDomain.Submission) error {
	m.subs[s.ID] = s
	return nil
}

func (m *mockPaymentStore) ListIssuedByReference(_ context.Context, ref string) ([]paymentDomain.Submission, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []paymentDomain.Submission
	for _, s := range m.subs {
		if s.ReceiptStatus == paymentDomain.ReceiptIssued && s.ReferenceNumber == ref {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt.Before(result[j].SubmittedAt)
	})
	return result, nil
}

func (m *mockPaymentStore) CountIssued(_ context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	for _, s := range m.subs {
		if s.ReceiptStatus == paymentDomain.ReceiptIssued {
			count++
		}
	}
	return count, nil
}

// --- Mock email sender ---

type mockSender struct {
	sent     int
	failAt   int // fail on the Nth send (-1 = never fail)
	failErr  error
	sentReqs []emailAdapter.SendRequest
}

func newMockSender() *mockSender {
	return &mockSender{failAt: -1, failErr: errors.New("send failed")}
}

func (m *mockSender) Send(_ context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	m.sent++
	m.sentReqs = append(m.sentReqs, req)
	if m.failAt >= 0 && m.sent >= m.failAt {
		return emailAdapter.SendResult{}, m.failErr
	}
	return emailAdapter.SendResult{MessageID: "mock-msg-id", SentAt: fixedTime}, nil
}
