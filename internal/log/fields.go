package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldUserID       = "user_id"
	FieldEntryID      = "entry_id"
	FieldEntryType    = "entry_type"
	FieldCategory     = "category"
	FieldAmount       = "amount"
	FieldRiskTier     = "risk_tier"
	FieldPercentLeft  = "percent_left"
	FieldLookbackDays = "lookback_days"
	FieldWindowDays   = "window_days"
	FieldScanID       = "scan_id"
	FieldSnapshots    = "snapshots"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentRisk    = "risk"
	ComponentBudget  = "budget"
	ComponentReport  = "report"
	ComponentCache   = "cache"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpList     = "list"
	OpRecalc   = "recalc"
	OpScan     = "scan"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithUser adds user ID field
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithEntry adds ledger entry fields
func (f LogFields) WithEntry(entryID, entryType, category string, amount float64) LogFields {
	f[FieldEntryID] = entryID
	f[FieldEntryType] = entryType
	f[FieldCategory] = category
	f[FieldAmount] = amount
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
