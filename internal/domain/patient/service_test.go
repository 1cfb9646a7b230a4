package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repositories --

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	for _, existing := range m.patients {
		if existing.NationalID == p.NationalID {
			return ErrDuplicateNationalID
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) GetByNationalID(_ context.Context, nationalID string) (*Patient, error) {
	for _, p := range m.patients {
		if p.NationalID == nationalID {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		result = append(result, p)
	}
	return result, len(result), nil
}

func (m *mockRepo) SearchByName(_ context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	return m.List(nil, limit, offset)
}

type mockSeq struct {
	counts map[string]int
}

func (m *mockSeq) Next(_ context.Context, day time.Time) (int, error) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	key := day.Format("2006-01-02")
	m.counts[key]++
	return m.counts[key], nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// -- Tests --

func TestRegisterAssignsSequentialAdmissionNumbers(t *testing.T) {
	svc := NewService(newMockRepo(), &mockSeq{}, passthroughTx)
	ctx := context.Background()

	first := &Patient{Name: "Ana Silva", NationalID: "11111"}
	second := &Patient{Name: "Bren Costa", NationalID: "22222"}
	if err := svc.Register(ctx, first); err != nil {
		t.Fatalf("Register first: %v", err)
	}
	if err := svc.Register(ctx, second); err != nil {
		t.Fatalf("Register second: %v", err)
	}

	day := time.Now().Format("20060102")
	if want := day + "0001"; first.AdmissionNo != want {
		t.Fatalf("first admission no: got %s, want %s", first.AdmissionNo, want)
	}
	if want := day + "0002"; second.AdmissionNo != want {
		t.Fatalf("second admission no: got %s, want %s", second.AdmissionNo, want)
	}
	if first.AdmissionNo == second.AdmissionNo {
		t.Fatal("same-day registrations must get distinct numbers")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newMockRepo(), &mockSeq{}, passthroughTx)
	ctx := context.Background()

	cases := []struct {
		name    string
		patient Patient
	}{
		{"MissingName", Patient{NationalID: "33333"}},
		{"MissingNationalID", Patient{Name: "Carla"}},
		{"BadSex", Patient{Name: "Carla", NationalID: "33333", Sex: "X"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.patient
			if err := svc.Register(ctx, &p); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	future := time.Now().Add(48 * time.Hour)
	p := Patient{Name: "Carla", NationalID: "33333", BirthDate: &future}
	if err := svc.Register(ctx, &p); err == nil {
		t.Fatal("expected error for future birth date")
	}
}

func TestRegisterRejectsDuplicateNationalID(t *testing.T) {
	svc := NewService(newMockRepo(), &mockSeq{}, passthroughTx)
	ctx := context.Background()

	if err := svc.Register(ctx, &Patient{Name: "Ana", NationalID: "55555"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := svc.Register(ctx, &Patient{Name: "Other Ana", NationalID: "55555"})
	if !errors.Is(err, ErrDuplicateNationalID) {
		t.Fatalf("expected ErrDuplicateNationalID, got %v", err)
	}
}

func TestUpdateKeepsAdmissionNumber(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &mockSeq{}, passthroughTx)
	ctx := context.Background()

	p := &Patient{Name: "Ana", NationalID: "66666"}
	if err := svc.Register(ctx, p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	admissionNo := p.AdmissionNo

	p.Name = "Ana Maria"
	p.Phone = "555-0100"
	if err := svc.Update(ctx, p); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := repo.GetByID(ctx, p.ID)
	if got.AdmissionNo != admissionNo {
		t.Fatalf("admission number changed on update: %s -> %s", admissionNo, got.AdmissionNo)
	}
	if got.Name != "Ana Maria" {
		t.Fatalf("name not updated: %s", got.Name)
	}
}

func TestAge(t *testing.T) {
	if age := (&Patient{}).Age(); age != nil {
		t.Fatal("expected nil age without birth date")
	}
	birth := time.Now().AddDate(-30, 0, -1)
	p := &Patient{BirthDate: &birth}
	age := p.Age()
	if age == nil || *age != 30 {
		t.Fatalf("expected age 30, got %v", age)
	}
}
