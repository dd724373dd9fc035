package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/tradegym/internal/id"
	"github.com/rustyeddy/tradegym/market"
	"github.com/shopspring/decimal"
)

var (
	ErrPositionNotFound   = errors.New("position not found")
	ErrInsufficientVolume = errors.New("insufficient volume")
	ErrInvalidSide        = errors.New("invalid side")
	ErrInvalidVolume      = errors.New("volume must be positive")
	ErrDuplicatePosition  = errors.New("duplicate position id")
)

// Portfolio is the list of positions of an account, in open order.
type Portfolio struct {
	positions []*Position
	index     map[string]int
	ids       *id.Generator
}

func NewPortfolio(ids *id.Generator) *Portfolio {
	if ids == nil {
		ids = id.NewGenerator(0)
	}
	return &Portfolio{index: make(map[string]int), ids: ids}
}

// Open appends a new position and returns its id.
func (p *Portfolio) Open(code string, side market.Side, price decimal.Decimal, volume int64, commission, margin decimal.Decimal, date time.Time) (string, error) {
	if !side.Valid() {
		return "", fmt.Errorf("%w %q", ErrInvalidSide, side)
	}
	if volume <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidVolume, volume)
	}
	pos := &Position{
		ID:             p.ids.New(date),
		Code:           code,
		Side:           side,
		OpenPrice:      price,
		OpenVolume:     volume,
		OpenCommission: commission,
		OpenMargin:     margin,
		OpenDate:       date,
	}
	if err := p.add(pos); err != nil {
		return "", err
	}
	return pos.ID, nil
}

func (p *Portfolio) add(pos *Position) error {
	if _, ok := p.index[pos.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePosition, pos.ID)
	}
	p.index[pos.ID] = len(p.positions)
	p.positions = append(p.positions, pos)
	return nil
}

// Close appends a close to the position and returns the close id.
func (p *Portfolio) Close(positionID string, price decimal.Decimal, volume int64, commission, realizedPnL, releasedMargin decimal.Decimal, date time.Time) (string, error) {
	i, ok := p.index[positionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPositionNotFound, positionID)
	}
	pos := p.positions[i]
	if volume <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidVolume, volume)
	}
	if cur := pos.CurrentVolume(); volume > cur {
		return "", fmt.Errorf("%w: position %s has %d, close %d", ErrInsufficientVolume, positionID, cur, volume)
	}
	c := Close{
		ID:             p.ids.New(date),
		Price:          price,
		Volume:         volume,
		Commission:     commission,
		ReleasedMargin: releasedMargin,
		RealizedPnL:    realizedPnL,
		Date:           date,
	}
	pos.Closes = append(pos.Closes, c)
	return c.ID, nil
}

// Get returns a copy of the position.
func (p *Portfolio) Get(positionID string) (Position, error) {
	i, ok := p.index[positionID]
	if !ok {
		return Position{}, fmt.Errorf("%w: %s", ErrPositionNotFound, positionID)
	}
	return p.positions[i].clone(), nil
}

func (p *Portfolio) Len() int { return len(p.positions) }

// Filter selects positions. Empty fields match everything; set fields
// are combined with AND, values within a field with OR.
type Filter struct {
	Codes    []string
	Sides    []market.Side
	Statuses []market.Status
}

func (f Filter) match(pos *Position) bool {
	if len(f.Codes) > 0 && !contains(f.Codes, pos.Code) {
		return false
	}
	if len(f.Sides) > 0 && !contains(f.Sides, pos.Side) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, pos.Status()) {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Query returns copies of matching positions in open order.
func (p *Portfolio) Query(f Filter) []Position {
	var out []Position
	for _, pos := range p.positions {
		if f.match(pos) {
			out = append(out, pos.clone())
		}
	}
	return out
}

// Opened is shorthand for the opened positions of code on side.
func (p *Portfolio) Opened(code string, side market.Side) []Position {
	return p.Query(Filter{
		Codes:    []string{code},
		Sides:    []market.Side{side},
		Statuses: []market.Status{market.Opened},
	})
}

// Reset empties the portfolio and rewinds the id generator.
func (p *Portfolio) Reset() {
	p.positions = nil
	p.index = make(map[string]int)
	p.ids.Reset()
}

type PortfolioState struct {
	IDs       id.State   `json:"ids"`
	Positions []Position `json:"positions"`
}

func (p *Portfolio) State() PortfolioState {
	st := PortfolioState{IDs: p.ids.State(), Positions: make([]Position, 0, len(p.positions))}
	for _, pos := range p.positions {
		st.Positions = append(st.Positions, pos.clone())
	}
	return st
}

func PortfolioFromState(st PortfolioState) (*Portfolio, error) {
	p := NewPortfolio(id.FromState(st.IDs))
	for i := range st.Positions {
		pos := st.Positions[i].clone()
		if !pos.Side.Valid() {
			return nil, fmt.Errorf("%w %q on position %s", ErrInvalidSide, pos.Side, pos.ID)
		}
		if pos.CurrentVolume() < 0 {
			return nil, fmt.Errorf("%w: position %s closes exceed open volume", ErrInsufficientVolume, pos.ID)
		}
		if err := p.add(&pos); err != nil {
			return nil, err
		}
	}
	return p, nil
}
