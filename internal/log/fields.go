package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldTenantID    = "tenant_id"
	FieldPlanID      = "plan_id"
	FieldAccountID   = "account_id"
	FieldBucketName  = "bucket_name"
	FieldAmount      = "amount"
	FieldEvent       = "event"
	FieldShareToken  = "share_token"
	FieldPlanStatus  = "plan_status"
	FieldExportedRows = "exported_rows"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentPlan    = "plan"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
	ComponentLookup  = "lookup"
)
