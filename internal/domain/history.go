package domain

import "time"

// HistoryKind captures what a history entry records.
type HistoryKind string

const (
	HistoryCreation          HistoryKind = "CREATION"
	HistoryStatusChange      HistoryKind = "STATUS_CHANGE"
	HistorySendToWarehouse   HistoryKind = "SEND_TO_WAREHOUSE"
	HistorySendToPurchasing  HistoryKind = "SEND_TO_PURCHASING"
	HistoryReturnToShop      HistoryKind = "RETURN_TO_SHOP"
	HistoryReturnToWarehouse HistoryKind = "RETURN_TO_WAREHOUSE"
	HistoryCustodyChange     HistoryKind = "CUSTODY_CHANGE"
	HistoryNote              HistoryKind = "NOTE"
)

var knownKinds = map[HistoryKind]struct{}{
	HistoryCreation:          {},
	HistoryStatusChange:      {},
	HistorySendToWarehouse:   {},
	HistorySendToPurchasing:  {},
	HistoryReturnToShop:      {},
	HistoryReturnToWarehouse: {},
	HistoryCustodyChange:     {},
	HistoryNote:              {},
}

// Valid reports whether k is one of the known kinds.
func (k HistoryKind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// ChangesStatus reports whether events of kind k record a status transition.
// Only the service operations that actually move the status may write them.
func (k HistoryKind) ChangesStatus() bool {
	switch k {
	case HistoryStatusChange, HistorySendToWarehouse, HistorySendToPurchasing,
		HistoryReturnToShop, HistoryReturnToWarehouse:
		return true
	default:
		return false
	}
}

// Custody labels used by the transition operations.
const (
	CustodyWorkshop   = "Workshop"
	CustodyWarehouse  = "Warehouse"
	CustodyPurchasing = "Purchasing"
)

// HistoryEvent is an immutable audit trail entry embedded in a work order.
type HistoryEvent struct {
	ID            string
	Timestamp     time.Time
	Kind          HistoryKind
	From          string
	To            string
	StatusAtEvent WorkOrderStatus
	Note          string
	Actor         string
}
