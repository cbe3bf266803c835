package schema

// Price is a scaled integer. The scale is defined per symbol in the registry.
type Price int64

// Quantity is a scaled integer. The scale is defined per symbol in the registry.
type Quantity int64

// Notional is a scaled integer with scale PriceScale+QuantityScale.
type Notional int64

// Payload is the typed body of a message. Implementations are immutable
// value types; a payload emitted on a topic must match the topic's
// PayloadType.
type Payload interface {
	PayloadType() EventType
}

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderType describes order type.
type OrderType uint16

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
)

// TimeInForce describes order time-in-force.
type TimeInForce uint16

const (
	TimeInForceUnknown TimeInForce = iota
	TimeInForceGTC
	TimeInForceIOC
)

// OrderStatus is the lifecycle state reported in an OrderResult.
type OrderStatus uint16

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusNew
	OrderStatusPartFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
)

// IsTerminal reports whether no further results follow for the order.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// RejectReason is the coarse reason code attached to rejected intents.
type RejectReason uint16

const (
	RejectReasonNone RejectReason = iota
	RejectReasonInvalidQty
	RejectReasonInvalidPrice
	RejectReasonUnknownSymbol
	RejectReasonUnknownOrder
	RejectReasonDuplicateOrder
	RejectReasonInsufficientBalance
	RejectReasonKillSwitch
	RejectReasonMaxQty
	RejectReasonMaxNotional
	RejectReasonRateLimit
	RejectReasonPriceBand
	RejectReasonPositionLimit
)

// BookTicker is a best-bid/best-ask snapshot for a symbol.
type BookTicker struct {
	SymbolID SymbolID
	BidPrice Price
	BidQty   Quantity
	AskPrice Price
	AskQty   Quantity
}

func (BookTicker) PayloadType() EventType { return EventBookTicker }

// Trade is a public market trade print.
type Trade struct {
	SymbolID   SymbolID
	Price      Price
	Qty        Quantity
	BuyerMaker bool
}

func (Trade) PayloadType() EventType { return EventTrade }

// OrderIntent is a strategy's request to place an order, before matching.
type OrderIntent struct {
	OrderID     uint64
	StrategyID  uint32
	SymbolID    SymbolID
	Side        OrderSide
	Type        OrderType
	TimeInForce TimeInForce
	Price       Price
	Qty         Quantity
}

func (OrderIntent) PayloadType() EventType { return EventOrderIntent }

// OrderCancel asks the execution venue to remove a resting order.
type OrderCancel struct {
	OrderID  uint64
	SymbolID SymbolID
}

func (OrderCancel) PayloadType() EventType { return EventOrderCancel }

// OrderResult reports an order state transition: acknowledgment, fill,
// cancellation or rejection. FilledQty is the quantity of this transition,
// LeavesQty the remaining open quantity after it.
type OrderResult struct {
	OrderID   uint64
	SymbolID  SymbolID
	Side      OrderSide
	Status    OrderStatus
	Reason    RejectReason
	Price     Price
	FilledQty Quantity
	LeavesQty Quantity
}

func (OrderResult) PayloadType() EventType { return EventOrderResult }

// BalanceEntry is one asset row of an account update.
type BalanceEntry struct {
	Asset   string
	Balance Quantity
	Locked  Quantity
}

// AccountUpdate reports balances for the assets touched by a settlement.
type AccountUpdate struct {
	Entries []BalanceEntry
}

func (AccountUpdate) PayloadType() EventType { return EventAccountUpdate }
