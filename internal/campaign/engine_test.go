package campaign

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Megaphone/internal/domain"
	"github.com/shaiso/Megaphone/internal/experiment"
)

// --- Fakes ---

type fakeStatusStore struct {
	pushes    map[uuid.UUID]domain.PushStatus
	created   []uuid.UUID
	deleted   []uuid.UUID
	createErr error
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{pushes: make(map[uuid.UUID]domain.PushStatus)}
}

func (s *fakeStatusStore) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]domain.PushStatus, error) {
	var out []domain.PushStatus
	for _, st := range s.pushes {
		if st.CampaignID != nil && *st.CampaignID == campaignID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *fakeStatusStore) Create(_ context.Context, st *domain.PushStatus) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.pushes[st.ID] = *st
	s.created = append(s.created, st.ID)
	return nil
}

func (s *fakeStatusStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.pushes[id]; !ok {
		return errors.New("not found")
	}
	delete(s.pushes, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type fakeCampaignStore struct {
	campaigns  []domain.Campaign
	nextPushes map[uuid.UUID][]uuid.UUID
	listErr    error
}

func newFakeCampaignStore(campaigns ...domain.Campaign) *fakeCampaignStore {
	return &fakeCampaignStore{
		campaigns:  campaigns,
		nextPushes: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *fakeCampaignStore) ListActive(_ context.Context) ([]domain.Campaign, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.campaigns, nil
}

func (s *fakeCampaignStore) SetNextPushes(_ context.Context, campaignID uuid.UUID, pushIDs []uuid.UUID) error {
	s.nextPushes[campaignID] = pushIDs
	return nil
}

func dailyCampaign() domain.Campaign {
	return domain.Campaign{
		ID:       uuid.New(),
		Name:     "daily-digest",
		Interval: domain.IntervalDaily,
		SendTime: "19:30:00",
		Query:    `{"deviceType":"ios"}`,
		Payload:  `{"alert":"digest"}`,
		Status:   domain.CampaignStateActive,
	}
}

// --- ScheduleNext Tests ---

func TestScheduleNext_CreatesPush(t *testing.T) {
	statuses := newFakeStatusStore()
	c := dailyCampaign()
	campaigns := newFakeCampaignStore(c)
	e := NewEngine(statuses, campaigns, nil)

	created, err := e.ScheduleNext(context.Background(), &c, augustNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 created push, got %d", len(created))
	}

	st := created[0]
	if st.PushTime != "2017-08-10T19:30:00.000" {
		t.Errorf("pushTime = %q, want 2017-08-10T19:30:00.000", st.PushTime)
	}
	if st.Status != domain.PushStateScheduled {
		t.Errorf("status = %q, want scheduled", st.Status)
	}
	if st.Source != Source {
		t.Errorf("source = %q, want %q", st.Source, Source)
	}
	if st.CampaignID == nil || *st.CampaignID != c.ID {
		t.Error("push must reference its campaign")
	}
	if st.Distribution != nil {
		t.Error("single-variant campaign must not carry a distribution")
	}
	if st.PushHash == "" {
		t.Error("push hash must be computed")
	}
	if got := campaigns.nextPushes[c.ID]; len(got) != 1 || got[0] != st.ID {
		t.Errorf("nextPushIds = %v, want [%s]", got, st.ID)
	}
}

func TestScheduleNext_IdempotentAcrossTicks(t *testing.T) {
	statuses := newFakeStatusStore()
	c := dailyCampaign()
	campaigns := newFakeCampaignStore(c)
	e := NewEngine(statuses, campaigns, nil)

	if _, err := e.ScheduleNext(context.Background(), &c, augustNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := e.ScheduleNext(context.Background(), &c, augustNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if again != nil {
		t.Errorf("second tick must be a no-op, created %d pushes", len(again))
	}
	if len(statuses.created) != 1 {
		t.Errorf("store has %d pushes, want 1", len(statuses.created))
	}
}

func TestScheduleNext_ReschedulesAfterOccurrencePasses(t *testing.T) {
	statuses := newFakeStatusStore()
	c := dailyCampaign()
	campaigns := newFakeCampaignStore(c)
	e := NewEngine(statuses, campaigns, nil)

	if _, err := e.ScheduleNext(context.Background(), &c, augustNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Через сутки occurrence другой — создаётся новая запись.
	created, err := e.ScheduleNext(context.Background(), &c, augustNow.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 created push, got %d", len(created))
	}
	if created[0].PushTime != "2017-08-11T19:30:00.000" {
		t.Errorf("pushTime = %q, want 2017-08-11T19:30:00.000", created[0].PushTime)
	}
}

func TestScheduleNext_VariantsGetDistributions(t *testing.T) {
	statuses := newFakeStatusStore()
	c := dailyCampaign()
	c.Variants = []domain.Variant{
		{Percent: 51, Payload: `{"alert":"A"}`},
		{Percent: 49, Payload: `{"alert":"B"}`},
	}
	campaigns := newFakeCampaignStore(c)
	e := NewEngine(statuses, campaigns, nil)

	created, err := e.ScheduleNext(context.Background(), &c, augustNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 created pushes, got %d", len(created))
	}

	var total int64
	for _, st := range created {
		if st.Distribution == nil {
			t.Fatal("experiment push must carry a distribution")
		}
		if st.Distribution.Salt != c.ID.String() {
			t.Errorf("salt = %q, want campaign id", st.Distribution.Salt)
		}
		total += st.Distribution.Max - st.Distribution.Min
	}
	if total != experiment.DistributionMax {
		t.Errorf("variant ranges cover %d of %d buckets", total, experiment.DistributionMax)
	}
}

func TestScheduleNext_DeletesDuplicates(t *testing.T) {
	statuses := newFakeStatusStore()
	c := dailyCampaign()
	campaigns := newFakeCampaignStore(c)
	e := NewEngine(statuses, campaigns, nil)

	// Две записи на один occurrence — след гонки планировщиков.
	for i := 0; i < 2; i++ {
		st := domain.PushStatus{
			ID:         uuid.New(),
			PushTime:   "2017-08-10T19:30:00.000",
			Status:     domain.PushStateScheduled,
			CampaignID: &c.ID,
		}
		statuses.pushes[st.ID] = st
	}

	if _, err := e.ScheduleNext(context.Background(), &c, augustNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(statuses.deleted) != 1 {
		t.Errorf("deleted %d duplicates, want 1", len(statuses.deleted))
	}
	// Выживший дубликат покрывает occurrence — новая запись не создаётся.
	if len(statuses.created) != 0 {
		t.Errorf("created %d pushes, want 0", len(statuses.created))
	}
}

func TestScheduleNext_VariantsAreNotDuplicates(t *testing.T) {
	statuses := newFakeStatusStore()
	c := dailyCampaign()
	campaigns := newFakeCampaignStore(c)
	e := NewEngine(statuses, campaigns, nil)

	// Два варианта одного occurrence с разными диапазонами.
	for _, rng := range [][2]int64{{0, 136902083}, {136902083, experiment.DistributionMax}} {
		st := domain.PushStatus{
			ID:         uuid.New(),
			PushTime:   "2017-08-10T19:30:00.000",
			Status:     domain.PushStateScheduled,
			CampaignID: &c.ID,
			Distribution: &domain.Distribution{
				Min: rng[0], Max: rng[1], Salt: c.ID.String(),
			},
		}
		statuses.pushes[st.ID] = st
	}

	if _, err := e.ScheduleNext(context.Background(), &c, augustNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statuses.deleted) != 0 {
		t.Errorf("deleted %d variant records, want 0", len(statuses.deleted))
	}
}

func TestScheduleAll_IsolatesCampaignErrors(t *testing.T) {
	statuses := newFakeStatusStore()
	broken := dailyCampaign()
	broken.SendTime = "not-a-time"
	healthy := dailyCampaign()
	campaigns := newFakeCampaignStore(broken, healthy)
	e := NewEngine(statuses, campaigns, nil)

	if err := e.ScheduleAll(context.Background(), augustNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statuses.created) != 1 {
		t.Errorf("healthy campaign must still be scheduled, created %d", len(statuses.created))
	}
}

// --- payloadHash Tests ---

func TestPayloadHash(t *testing.T) {
	// md5("") — отсутствующий или неразбираемый alert.
	empty := "d41d8cd98f00b204e9800998ecf8427e"

	if got := payloadHash(""); got != empty {
		t.Errorf("payloadHash(\"\") = %q, want md5 of empty string", got)
	}
	if got := payloadHash(`{"badge":1}`); got != empty {
		t.Errorf("payload without alert = %q, want md5 of empty string", got)
	}

	// md5("hello") — строковый alert хэшируется своим значением.
	if got := payloadHash(`{"alert":"hello"}`); got != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("string alert hash = %q", got)
	}

	// Нестроковый alert хэшируется JSON-представлением.
	object := payloadHash(`{"alert":{"title":"hi"}}`)
	if object == empty {
		t.Error("object alert must not hash as empty")
	}
	if object != payloadHash(`{"alert":{"title":"hi"}}`) {
		t.Error("object alert hash must be deterministic")
	}
}
