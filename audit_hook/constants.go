package audithook

// Action constants for audit events.
const (
	// Ledger actions
	ActionSaleRecorded       = "sale.recorded"
	ActionSupplyReceived     = "supply.received"
	ActionCreditOpened       = "credit.opened"
	ActionTransactionSettled = "transaction.settled"
	ActionExpenseRecorded    = "expense.recorded"

	// Catalog actions
	ActionProductAdded   = "product.added"
	ActionProductUpdated = "product.updated"
	ActionProductDeleted = "product.deleted"
	ActionPriceChanged   = "product.price_changed"
	ActionStockClamped   = "stock.clamped"
	ActionStockLow       = "stock.low"

	// Settings actions
	ActionRatesUpdated = "rates.updated"

	// Entitlement actions
	ActionLimitExceeded = "limit.exceeded"

	// Persistence actions
	ActionSnapshotFailed = "snapshot.failed"
)

// Resource constants for audit events.
const (
	ResourceTransaction = "transaction"
	ResourceExpense     = "expense"
	ResourceProduct     = "product"
	ResourceRates       = "rates"
	ResourcePlan        = "plan"
	ResourceSnapshot    = "snapshot"
)

// Category constants for audit events.
const (
	CategorySales     = "sales"
	CategoryInventory = "inventory"
	CategoryFinance   = "finance"
	CategoryAccess    = "access"
	CategoryStorage   = "storage"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
