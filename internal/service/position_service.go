package service

import (
	"sentinel/internal/models"
	"sentinel/internal/monitor"
)

// PositionView - позиция с рассчитанным PnL для API и dashboard
//
// Зеркало позиции хранит только сырые цены; процент с учётом плеча
// считается на чтении, чтобы не дублировать состояние.
type PositionView struct {
	models.Position
	PnlPercent float64 `json:"pnl_percent"`
}

// PositionService предоставляет чтение наблюдаемых позиций.
//
// Отвечает за:
// - Список открытых позиций с PnL в процентах
// - Получение одной позиции по символу
// - Счетчик позиций для health-check и dashboard
type PositionService struct {
	positionRepo PositionRepositoryInterface
}

// NewPositionService создает новый экземпляр PositionService.
func NewPositionService(positionRepo PositionRepositoryInterface) *PositionService {
	return &PositionService{
		positionRepo: positionRepo,
	}
}

// GetPositions возвращает все наблюдаемые позиции с PnL.
func (s *PositionService) GetPositions() ([]*PositionView, error) {
	positions, err := s.positionRepo.GetAll()
	if err != nil {
		return nil, err
	}

	views := make([]*PositionView, 0, len(positions))
	for _, pos := range positions {
		views = append(views, newPositionView(pos))
	}

	return views, nil
}

// GetPosition возвращает позицию по символу.
//
// Возвращает repository.ErrPositionNotFound если позиция не наблюдается.
func (s *PositionService) GetPosition(symbol string) (*PositionView, error) {
	pos, err := s.positionRepo.GetBySymbol(symbol)
	if err != nil {
		return nil, err
	}

	return newPositionView(pos), nil
}

// GetPositionCount возвращает количество наблюдаемых позиций.
func (s *PositionService) GetPositionCount() (int, error) {
	return s.positionRepo.Count()
}

func newPositionView(pos *models.Position) *PositionView {
	return &PositionView{
		Position:   *pos,
		PnlPercent: monitor.PnlPercent(pos.EntryPrice, pos.MarkPrice, pos.Leverage, pos.Side),
	}
}
