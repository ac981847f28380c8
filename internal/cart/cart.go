package cart

import (
	"errors"

	"pharmacy-store/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrOutOfStock      = errors.New("medicine is out of stock")
	ErrLineNotFound    = errors.New("medicine is not in the cart")
)

// State summarises whether the cart may proceed to order submission
type State string

const (
	StateEmpty   State = "empty"
	StateReady   State = "ready"
	StateBlocked State = "blocked"
)

// Line is one medicine in the cart. The medicine is copied when added so
// later catalog changes do not leak into an assembled cart.
type Line struct {
	Medicine domain.Medicine
	Quantity int
}

// LineTotal is unit price times quantity
func (l Line) LineTotal() decimal.Decimal {
	return l.Medicine.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds the selected medicines and the chosen prescription for one
// session. It is not safe for concurrent use.
type Cart struct {
	lines        []Line
	prescription *uuid.UUID
}

// New returns an empty cart
func New() *Cart {
	return &Cart{}
}

// Add puts qty units of m in the cart, merging with an existing line. The
// resulting quantity is capped at the medicine's stock.
func (c *Cart) Add(m domain.Medicine, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if !m.InStock() {
		return ErrOutOfStock
	}

	if i := c.index(m.ID); i >= 0 {
		c.lines[i].Medicine = m
		c.lines[i].Quantity = clamp(c.lines[i].Quantity+qty, m.Stock)
		return nil
	}

	c.lines = append(c.lines, Line{Medicine: m, Quantity: clamp(qty, m.Stock)})
	return nil
}

// SetQuantity adjusts a line to qty, clamped to [0, stock]. Zero removes the line.
func (c *Cart) SetQuantity(id uuid.UUID, qty int) error {
	i := c.index(id)
	if i < 0 {
		return ErrLineNotFound
	}

	qty = clamp(qty, c.lines[i].Medicine.Stock)
	if qty == 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return nil
	}
	c.lines[i].Quantity = qty
	return nil
}

// Remove drops the line for id if present
func (c *Cart) Remove(id uuid.UUID) {
	if i := c.index(id); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// Lines returns the lines in insertion order
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// ItemCount is the total number of units across all lines
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Subtotal is the sum of all line totals
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// RequiresPrescription is true iff any line holds a restricted medicine.
// It is derived from the current lines on every call.
func (c *Cart) RequiresPrescription() bool {
	for _, l := range c.lines {
		if l.Medicine.RequiresPrescription {
			return true
		}
	}
	return false
}

// SelectPrescription attaches an uploaded prescription to the cart
func (c *Cart) SelectPrescription(id uuid.UUID) {
	c.prescription = &id
}

// PrescriptionUploaded records a fresh upload. The newest upload always
// becomes the selected prescription.
func (c *Cart) PrescriptionUploaded(p domain.Prescription) {
	c.SelectPrescription(p.ID)
}

// ClearPrescription detaches the selected prescription
func (c *Cart) ClearPrescription() {
	c.prescription = nil
}

// Prescription returns the selected prescription, if any
func (c *Cart) Prescription() (uuid.UUID, bool) {
	if c.prescription == nil {
		return uuid.Nil, false
	}
	return *c.prescription, true
}

// RequiresCheckoutBlock is true when a restricted medicine is in the cart and
// no prescription is selected
func (c *Cart) RequiresCheckoutBlock() bool {
	return c.RequiresPrescription() && c.prescription == nil
}

// CanCheckout reports whether the cart may be submitted as an order
func (c *Cart) CanCheckout() bool {
	return c.State() == StateReady
}

// State returns the gate state for the current contents
func (c *Cart) State() State {
	switch {
	case len(c.lines) == 0:
		return StateEmpty
	case c.RequiresCheckoutBlock():
		return StateBlocked
	default:
		return StateReady
	}
}

func (c *Cart) index(id uuid.UUID) int {
	for i, l := range c.lines {
		if l.Medicine.ID == id {
			return i
		}
	}
	return -1
}

func clamp(qty, stock int) int {
	if stock < 0 {
		stock = 0
	}
	if qty < 0 {
		return 0
	}
	if qty > stock {
		return stock
	}
	return qty
}
