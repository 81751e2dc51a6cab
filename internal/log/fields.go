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
	FieldStoreKey   = "store_key"
	FieldEntityID   = "entity_id"
	FieldCategory   = "category"
	FieldAmount     = "amount_cents"
	FieldDate       = "date"
	FieldVersion    = "version"
	FieldMessageID  = "message_id"
	FieldEventType  = "event_type"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentInventory = "inventory"
	ComponentMaterials = "materials"
	ComponentExpense   = "expense"
	ComponentSuppliers = "suppliers"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentExport    = "export"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpAppend   = "append"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpGenerate = "generate"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// Fields is a builder for structured log attributes.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithComponent(component string) Fields {
	f[FieldComponent] = component
	return f
}

func (f Fields) WithRequestID(requestID string) Fields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds the error text; a nil error adds nothing.
func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

func (f Fields) WithEntity(storeKey, id string) Fields {
	f[FieldStoreKey] = storeKey
	f[FieldEntityID] = id
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts Fields to key/value pairs for slog.
func (f Fields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
