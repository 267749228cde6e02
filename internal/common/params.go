package common

// Logging params
const (
	// Interceptor mostly uses these
	LogMethod    = "method"
	LogTimestamp = "timestamp"
	LogStatus    = "grpc_status"
	LogDuration  = "duration"
	LogRequestID = "request_id"

	// Dispatcher and executors
	LogComponent  = "component"
	LogAction     = "action"
	LogAttempt    = "attempt"
	LogOutcome    = "outcome"
	LogDispatchID = "dispatch_id"

	// General, used across the board
	LogError     = "error"
	LogOperation = "operation"
	LogService   = "service"
	LogNodeID    = "node_id"
)

// Operations
const (
	OpDispatch       = "dispatch"
	OpDispatchBatch  = "dispatch_batch"
	OpExecute        = "execute"
	OpStatusProbe    = "status_probe"
	OpListComponents = "list_components"
)

// Service names
const (
	ServiceAgent    = "agent"
	ServiceAgentCtl = "agentctl"
)
