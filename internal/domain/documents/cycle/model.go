// Package cycle provides the InventoryCycle document and the
// reconciliation engine around it. A cycle is one physical counting
// period per business: opened over a set of supplier goods, counted
// incrementally, then finalized once, which resyncs the stock ledger.
package cycle

import (
	"context"
	"time"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
)

// CountKind distinguishes how a count row entered the history.
type CountKind string

const (
	// KindCount is a regular incremental count while the cycle is open.
	KindCount CountKind = "count"
	// KindFinal is the count supplied by the finalization transition.
	KindFinal CountKind = "final"
	// KindCorrection is an audited post-finalization ledger correction.
	KindCorrection CountKind = "correction"
)

// Cycle is one inventory counting period for a business.
type Cycle struct {
	ID         id.ID  `db:"id" json:"id"`
	BusinessID id.ID  `db:"business_id" json:"businessId"`
	Title      string `db:"title" json:"title"`

	// SetFinalCount locks the cycle: false = open/editable, true = final.
	// The conditional flip of this flag is the finalization mutex.
	SetFinalCount bool `db:"set_final_count" json:"setFinalCount"`

	Comments    string     `db:"comments" json:"comments,omitempty"`
	CountedDate *time.Time `db:"counted_date" json:"countedDate,omitempty"`
	DoneBy      []id.ID    `db:"done_by" json:"doneBy"`

	Goods []GoodEntry `db:"-" json:"inventoryGoods"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// GoodEntry tracks one supplier good inside a cycle.
type GoodEntry struct {
	SupplierGoodID id.ID `db:"supplier_good_id" json:"supplierGoodId"`

	// DynamicSystemCount is the running count snapshot at last touch:
	// seeded from the ledger on creation, replaced by each recorded
	// count, incremented by purchases while the cycle is open.
	DynamicSystemCount types.Quantity `db:"dynamic_system_count" json:"dynamicSystemCount"`

	AverageDeviationPercent float64 `db:"average_deviation_percent" json:"averageDeviationPercent"`

	// Counts is append-only; only the most recent entry may be replaced,
	// and then only with the prior values preserved in its Reedited block.
	Counts []Count `db:"-" json:"monthlyCounts"`
}

// Count is one count event in a good's history.
type Count struct {
	ID   id.ID     `db:"id" json:"id"`
	Kind CountKind `db:"kind" json:"kind"`

	// SystemCount is the running count before this count was applied;
	// deviation math and re-edits are computed against it.
	SystemCount types.Quantity `db:"system_count" json:"systemCount"`

	CurrentCountQuantity types.Quantity `db:"current_count_quantity" json:"currentCountQuantity"`
	CountedByUserID      id.ID          `db:"counted_by" json:"countedByUserId"`
	CountedAt            time.Time      `db:"counted_at" json:"countedAt"`

	QuantityNeeded   types.Quantity `db:"quantity_needed" json:"quantityNeeded"`
	DeviationPercent float64        `db:"deviation_percent" json:"deviationPercent"`

	Comments string  `db:"comments" json:"comments,omitempty"`
	Reedited *Reedit `db:"reedited" json:"reedited,omitempty"`
}

// Reedit preserves the values a count held before it was replaced.
type Reedit struct {
	ReeditedByUserID id.ID     `json:"reeditedByUserId"`
	Date             time.Time `json:"date"`
	Reason           string    `json:"reason"`

	OriginalQuantity         types.Quantity `json:"originalQuantity"`
	OriginalDeviationPercent float64        `json:"originalDeviationPercent"`
	OriginalQuantityNeeded   types.Quantity `json:"originalQuantityNeeded"`
}

// NewCycle creates an open cycle over the given supplier goods, seeding
// each entry's running count from the current ledger value.
func NewCycle(businessID id.ID, title string, doneBy []id.ID) *Cycle {
	now := time.Now().UTC()
	return &Cycle{
		ID:         id.New(),
		BusinessID: businessID,
		Title:      title,
		DoneBy:     doneBy,
		Goods:      make([]GoodEntry, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AddGood seeds an entry for a supplier good.
func (c *Cycle) AddGood(supplierGoodID id.ID, systemCount types.Quantity) {
	c.Goods = append(c.Goods, GoodEntry{
		SupplierGoodID:     supplierGoodID,
		DynamicSystemCount: systemCount,
		Counts:             make([]Count, 0),
	})
}

// Validate checks entity invariants.
func (c *Cycle) Validate(ctx context.Context) error {
	if id.IsNil(c.BusinessID) {
		return apperror.NewValidation("business is required").
			WithDetail("field", "businessId")
	}
	if c.Title == "" {
		return apperror.NewValidation("title is required").
			WithDetail("field", "title")
	}
	if len(c.Goods) == 0 {
		return apperror.NewValidation("at least one supplier good is required").
			WithDetail("field", "inventoryGoods")
	}

	seen := make(map[id.ID]struct{}, len(c.Goods))
	for _, g := range c.Goods {
		if id.IsNil(g.SupplierGoodID) {
			return apperror.NewValidation("supplier good id is required").
				WithDetail("field", "inventoryGoods")
		}
		if _, dup := seen[g.SupplierGoodID]; dup {
			return apperror.NewDuplicate("inventory cycle entry", "supplierGoodId", g.SupplierGoodID.String())
		}
		seen[g.SupplierGoodID] = struct{}{}
	}

	return nil
}

// CanCount rejects count mutations on a finalized cycle.
func (c *Cycle) CanCount() error {
	if c.SetFinalCount {
		return apperror.NewCycleLocked(c.ID.String())
	}
	return nil
}

// EntryFor returns the entry tracking the given supplier good.
func (c *Cycle) EntryFor(supplierGoodID id.ID) (*GoodEntry, error) {
	for i := range c.Goods {
		if c.Goods[i].SupplierGoodID == supplierGoodID {
			return &c.Goods[i], nil
		}
	}
	return nil, apperror.NewNotFound("inventory cycle entry", supplierGoodID.String()).
		WithDetail("cycle_id", c.ID.String())
}

// RecordCount appends a physical count to the entry's history and rolls
// the running count forward to the counted quantity.
func (e *GoodEntry) RecordCount(parLevel, counted types.Quantity, userID id.ID, comments string) (*Count, error) {
	if counted.IsNegative() {
		return nil, apperror.NewValidation("count quantity must not be negative").
			WithDetail("field", "currentCountQuantity")
	}

	// No-op guard: resubmitting the current running count records nothing.
	if counted == e.DynamicSystemCount {
		return nil, apperror.NewNothingToRecord(e.SupplierGoodID.String())
	}

	count := Count{
		ID:                   id.New(),
		Kind:                 KindCount,
		SystemCount:          e.DynamicSystemCount,
		CurrentCountQuantity: counted,
		CountedByUserID:      userID,
		CountedAt:            time.Now().UTC(),
		QuantityNeeded:       QuantityNeeded(parLevel, counted),
		DeviationPercent:     DeviationAgainstSystem(e.DynamicSystemCount, counted),
		Comments:             comments,
	}

	e.Counts = append(e.Counts, count)
	e.DynamicSystemCount = counted
	e.recalcAverageDeviation()

	return &e.Counts[len(e.Counts)-1], nil
}

// ReeditLatest replaces the most recent count in place, preserving its
// prior values in a Reedited audit block. Earlier counts are immutable.
func (e *GoodEntry) ReeditLatest(countID id.ID, newQuantity, parLevel types.Quantity, reason string, userID id.ID) (*Count, error) {
	if reason == "" {
		return nil, apperror.NewMissingReason()
	}
	if newQuantity.IsNegative() {
		return nil, apperror.NewValidation("count quantity must not be negative").
			WithDetail("field", "currentCountQuantity")
	}

	latest := e.latest()
	if latest == nil {
		return nil, apperror.NewNotFound("count", countID.String())
	}
	if latest.ID != countID {
		return nil, apperror.NewConflict("only the most recent count can be re-edited").
			WithDetail("count_id", countID.String()).
			WithDetail("latest_count_id", latest.ID.String())
	}

	latest.Reedited = &Reedit{
		ReeditedByUserID:         userID,
		Date:                     time.Now().UTC(),
		Reason:                   reason,
		OriginalQuantity:         latest.CurrentCountQuantity,
		OriginalDeviationPercent: latest.DeviationPercent,
		OriginalQuantityNeeded:   latest.QuantityNeeded,
	}

	latest.CurrentCountQuantity = newQuantity
	latest.DeviationPercent = DeviationAgainstSystem(latest.SystemCount, newQuantity)
	latest.QuantityNeeded = QuantityNeeded(parLevel, newQuantity)

	e.DynamicSystemCount = newQuantity
	e.recalcAverageDeviation()

	return latest, nil
}

// RecordFinalCount appends the finalization count for this entry.
// systemCount is the ledger value before the resync.
func (e *GoodEntry) RecordFinalCount(systemCount, parLevel, counted types.Quantity, userID id.ID) *Count {
	count := Count{
		ID:                   id.New(),
		Kind:                 KindFinal,
		SystemCount:          systemCount,
		CurrentCountQuantity: counted,
		CountedByUserID:      userID,
		CountedAt:            time.Now().UTC(),
		QuantityNeeded:       QuantityNeeded(parLevel, counted),
		DeviationPercent:     DeviationAgainstPar(systemCount, counted, parLevel),
	}

	e.Counts = append(e.Counts, count)
	e.DynamicSystemCount = counted

	return &e.Counts[len(e.Counts)-1]
}

// RecordCorrection appends an audited post-finalization correction.
func (e *GoodEntry) RecordCorrection(parLevel, corrected types.Quantity, reason string, userID id.ID) (*Count, error) {
	if reason == "" {
		return nil, apperror.NewMissingReason()
	}

	count := Count{
		ID:                   id.New(),
		Kind:                 KindCorrection,
		SystemCount:          e.DynamicSystemCount,
		CurrentCountQuantity: corrected,
		CountedByUserID:      userID,
		CountedAt:            time.Now().UTC(),
		QuantityNeeded:       QuantityNeeded(parLevel, corrected),
		DeviationPercent:     DeviationAgainstPar(e.DynamicSystemCount, corrected, parLevel),
		Comments:             reason,
	}

	e.Counts = append(e.Counts, count)
	e.DynamicSystemCount = corrected

	return &e.Counts[len(e.Counts)-1], nil
}

func (e *GoodEntry) latest() *Count {
	if len(e.Counts) == 0 {
		return nil
	}
	return &e.Counts[len(e.Counts)-1]
}

// recalcAverageDeviation recomputes the rolling average: the sum of all
// non-zero deviations before the latest count plus the latest deviation,
// divided by the number of non-zero prior deviations plus one. Only
// regular counts participate; final and correction rows do not.
func (e *GoodEntry) recalcAverageDeviation() {
	var regular []Count
	for _, c := range e.Counts {
		if c.Kind == KindCount {
			regular = append(regular, c)
		}
	}
	if len(regular) == 0 {
		e.AverageDeviationPercent = 0
		return
	}

	latest := regular[len(regular)-1]
	sum := latest.DeviationPercent
	n := 1
	for _, c := range regular[:len(regular)-1] {
		if c.DeviationPercent != 0 {
			sum += c.DeviationPercent
			n++
		}
	}

	e.AverageDeviationPercent = sum / float64(n)
}

// --- Deviation math ---

// DeviationAgainstSystem is the incremental-count formula:
// ((system - current) / system) * 100, with a zero system count treated
// as divisor 1.
func DeviationAgainstSystem(system, current types.Quantity) float64 {
	divisor := system.Float64()
	if divisor == 0 {
		divisor = 1
	}
	return (system.Float64() - current.Float64()) / divisor * 100
}

// DeviationAgainstPar is the final-count formula:
// ((system - current) / parLevel) * 100, with a zero par level treated
// as divisor 1.
func DeviationAgainstPar(system, current, parLevel types.Quantity) float64 {
	divisor := parLevel.Float64()
	if divisor == 0 {
		divisor = 1
	}
	return (system.Float64() - current.Float64()) / divisor * 100
}

// QuantityNeeded is the reorder gap: max(parLevel - current, 0).
func QuantityNeeded(parLevel, current types.Quantity) types.Quantity {
	need := parLevel - current
	if need.IsNegative() {
		return 0
	}
	return need
}
