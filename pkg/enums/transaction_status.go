package enums

// TransactionStatus tracks the payment record attached to an order. Values
// are capitalised to match the transaction_status type in Postgres.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "Pending"
	TransactionStatusPaid    TransactionStatus = "Paid"
	TransactionStatusFailed  TransactionStatus = "Failed"
)

var transactionStatuses = newSet(
	TransactionStatusPending,
	TransactionStatusPaid,
	TransactionStatusFailed,
)

func (s TransactionStatus) String() string { return string(s) }

func (s TransactionStatus) IsValid() bool { return transactionStatuses.contains(s) }
