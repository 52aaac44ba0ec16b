package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldChartID    = "chart_id"
	FieldBundleID   = "bundle_id"
	FieldHorizon    = "horizon"
	FieldEntryDate  = "entry_date"
	FieldMonth      = "month"
	FieldMirrorRef  = "mirror_ref"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentChart   = "chart"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentMirror  = "mirror"
	ComponentCache   = "cache"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpImport     = "import"
	OpDistribute = "distribute"
	OpMirror     = "mirror"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)
