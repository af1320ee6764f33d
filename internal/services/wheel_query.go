package services

import (
	"fmt"

	"github.com/Cloud956/wheel-tracker/internal/domain"
	"github.com/Cloud956/wheel-tracker/internal/modules/wheels"
)

// WheelQueryService rehydrates an owner's wheel collection for read-side
// handlers. Wheel rows store trade ids only; full trades come from the
// execution history.
type WheelQueryService struct {
	executions ExecutionStore
	wheelStore WheelStore
}

// NewWheelQueryService creates the wheel query service
func NewWheelQueryService(executions ExecutionStore, wheelStore WheelStore) *WheelQueryService {
	return &WheelQueryService{executions: executions, wheelStore: wheelStore}
}

// Load returns the owner's wheels with trades attached.
func (s *WheelQueryService) Load(owner string) ([]*wheels.Wheel, error) {
	history, err := s.executions.GetAllByOwner(owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution history: %w", err)
	}

	byID := make(map[string]domain.Trade, len(history))
	for _, t := range history {
		byID[t.ID] = t
	}
	return s.wheelStore.GetByOwner(owner, byID)
}
