package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"

	FieldTransactionID    = "transaction_id"
	FieldTransactionTitle = "transaction_title"
	FieldTransactionType  = "transaction_type"
	FieldAmountCents      = "amount_cents"
	FieldCategory         = "category"
	FieldCategoryID       = "category_id"
	FieldBalanceCents     = "balance_cents"
	FieldFilename         = "filename"
	FieldRowCount         = "row_count"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentTransaction = "transaction"
	ComponentImport      = "import"
	ComponentStorage     = "storage"
	ComponentUpload      = "upload"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentTrace       = "trace"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpDelete   = "delete"
	OpList     = "list"
	OpBalance  = "balance"
	OpImport   = "import"
	OpParse    = "parse"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
