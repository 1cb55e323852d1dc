package service

import "sentinel/internal/models"

// DecisionService предоставляет чтение журнала решений монитора.
type DecisionService struct {
	decisionRepo DecisionRepositoryInterface
}

// NewDecisionService создает новый экземпляр DecisionService.
func NewDecisionService(decisionRepo DecisionRepositoryInterface) *DecisionService {
	return &DecisionService{
		decisionRepo: decisionRepo,
	}
}

// GetRecentDecisions возвращает последние записи аудита.
func (s *DecisionService) GetRecentDecisions(limit int) ([]*models.DecisionRecord, error) {
	return s.decisionRepo.GetRecent(normalizeLimit(limit))
}

// GetDecision возвращает запись аудита по ID.
//
// Возвращает repository.ErrDecisionNotFound если записи нет.
func (s *DecisionService) GetDecision(id int) (*models.DecisionRecord, error) {
	return s.decisionRepo.GetByID(id)
}
