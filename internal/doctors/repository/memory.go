package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	doctorserrors "docslot/internal/doctors/errors"
	"docslot/pkg/model"
)

// memoryDoctorRepository keeps doctors in process, for single-instance deployments and tests.
type memoryDoctorRepository struct {
	mu      sync.RWMutex
	doctors map[string]*model.Doctor
}

func NewMemoryDoctorRepository() DoctorRepository {
	return &memoryDoctorRepository{
		doctors: make(map[string]*model.Doctor),
	}
}

func (r *memoryDoctorRepository) Create(_ context.Context, doctor *model.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(doctor.Email, "") {
		return fmt.Errorf("%w: %s", doctorserrors.ErrDuplicate, doctor.Email)
	}

	stampCreated(doctor)
	doctor.ID = uuid.NewString()
	r.doctors[doctor.ID] = clone(doctor)
	return nil
}

func (r *memoryDoctorRepository) FindByID(_ context.Context, id string) (*model.Doctor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", doctorserrors.ErrInvalidID, id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", doctorserrors.ErrNotFound, id)
	}
	return clone(d), nil
}

func (r *memoryDoctorRepository) FindAll(_ context.Context, limit int, offset int64) ([]*model.Doctor, error) {
	r.mu.RLock()
	all := make([]*model.Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		all = append(all, clone(d))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})

	if offset >= int64(len(all)) {
		return []*model.Doctor{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *memoryDoctorRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.doctors)), nil
}

func (r *memoryDoctorRepository) Update(_ context.Context, id string, doctor *model.Doctor) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", doctorserrors.ErrInvalidID, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.doctors[id]
	if !ok {
		return fmt.Errorf("%w: %s", doctorserrors.ErrNotFound, id)
	}
	if r.emailTaken(doctor.Email, id) {
		return fmt.Errorf("%w: %s", doctorserrors.ErrDuplicate, doctor.Email)
	}

	updated := clone(doctor)
	updated.ID = id
	updated.CreatedAt = stored.CreatedAt
	r.doctors[id] = updated
	return nil
}

func (r *memoryDoctorRepository) emailTaken(email, exceptID string) bool {
	if email == "" {
		return false
	}
	for id, d := range r.doctors {
		if id != exceptID && strings.EqualFold(d.Email, email) {
			return true
		}
	}
	return false
}

func clone(d *model.Doctor) *model.Doctor {
	out := *d
	out.Availability = slices.Clone(d.Availability)
	return &out
}
