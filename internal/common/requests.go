package common

import (
	"errors"
	"fmt"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMalformedMessage is returned when a wire message has a field of the wrong shape.
var ErrMalformedMessage = errors.New("malformed message")

// Dispatch a single action to a component
type DispatchRequest struct {
	Component string
	Action    string
	Params    map[string]string
}

func DispatchRequestFromProto(pb *structpb.Struct) (DispatchRequest, error) {
	params, err := stringMapField(pb, "params")
	if err != nil {
		return DispatchRequest{}, err
	}
	return DispatchRequest{
		Component: stringField(pb, "component"),
		Action:    stringField(pb, "action"),
		Params:    params,
	}, nil
}

func (r DispatchRequest) ToProto() *structpb.Struct {
	return &structpb.Struct{Fields: r.fields()}
}

func (r DispatchRequest) fields() map[string]*structpb.Value {
	params := make(map[string]*structpb.Value, len(r.Params))
	for k, v := range r.Params {
		params[k] = structpb.NewStringValue(v)
	}
	return map[string]*structpb.Value{
		"component": structpb.NewStringValue(r.Component),
		"action":    structpb.NewStringValue(r.Action),
		"params":    structpb.NewStructValue(&structpb.Struct{Fields: params}),
	}
}

type DispatchResponse struct {
	Outcome    string
	Message    string
	DurationMs int64
	Attempt    int
}

func DispatchResponseFromProto(pb *structpb.Struct) DispatchResponse {
	return DispatchResponse{
		Outcome:    stringField(pb, "outcome"),
		Message:    stringField(pb, "message"),
		DurationMs: int64(numberField(pb, "duration_ms")),
		Attempt:    int(numberField(pb, "attempt")),
	}
}

func (r DispatchResponse) ToProto() *structpb.Struct {
	return &structpb.Struct{Fields: r.fields()}
}

func (r DispatchResponse) fields() map[string]*structpb.Value {
	return map[string]*structpb.Value{
		"outcome":     structpb.NewStringValue(r.Outcome),
		"message":     structpb.NewStringValue(r.Message),
		"duration_ms": structpb.NewNumberValue(float64(r.DurationMs)),
		"attempt":     structpb.NewNumberValue(float64(r.Attempt)),
	}
}

// Dispatch a list of commands, results are returned in the same order
type DispatchBatchRequest struct {
	Commands []DispatchRequest
}

func DispatchBatchRequestFromProto(pb *structpb.Struct) (DispatchBatchRequest, error) {
	items, err := structListField(pb, "commands")
	if err != nil {
		return DispatchBatchRequest{}, err
	}
	commands := make([]DispatchRequest, 0, len(items))
	for i, item := range items {
		cmd, err := DispatchRequestFromProto(item)
		if err != nil {
			return DispatchBatchRequest{}, fmt.Errorf("commands[%d]: %w", i, err)
		}
		commands = append(commands, cmd)
	}
	return DispatchBatchRequest{Commands: commands}, nil
}

func (r DispatchBatchRequest) ToProto() *structpb.Struct {
	values := make([]*structpb.Value, 0, len(r.Commands))
	for _, cmd := range r.Commands {
		values = append(values, structpb.NewStructValue(cmd.ToProto()))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"commands": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// BatchItem carries either a result or the caller-input error that prevented the dispatch.
// ErrorCode holds the name of the gRPC code the error would have had on a single Dispatch.
type BatchItem struct {
	Component string
	Action    string
	Response  DispatchResponse
	ErrorCode string
	Error     string
}

func BatchItemFromProto(pb *structpb.Struct) BatchItem {
	return BatchItem{
		Component: stringField(pb, "component"),
		Action:    stringField(pb, "action"),
		Response:  DispatchResponseFromProto(pb),
		ErrorCode: stringField(pb, "error_code"),
		Error:     stringField(pb, "error"),
	}
}

func (i BatchItem) ToProto() *structpb.Struct {
	fields := i.Response.fields()
	fields["component"] = structpb.NewStringValue(i.Component)
	fields["action"] = structpb.NewStringValue(i.Action)
	if i.Error != "" {
		fields["error_code"] = structpb.NewStringValue(i.ErrorCode)
		fields["error"] = structpb.NewStringValue(i.Error)
	}
	return &structpb.Struct{Fields: fields}
}

type DispatchBatchResponse struct {
	Results []BatchItem
}

func DispatchBatchResponseFromProto(pb *structpb.Struct) (DispatchBatchResponse, error) {
	items, err := structListField(pb, "results")
	if err != nil {
		return DispatchBatchResponse{}, err
	}
	results := make([]BatchItem, 0, len(items))
	for _, item := range items {
		results = append(results, BatchItemFromProto(item))
	}
	return DispatchBatchResponse{Results: results}, nil
}

func (r DispatchBatchResponse) ToProto() *structpb.Struct {
	values := make([]*structpb.Value, 0, len(r.Results))
	for _, item := range r.Results {
		values = append(values, structpb.NewStructValue(item.ToProto()))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"results": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// ListComponentsRequest has no fields, the server ignores the request body.
type ListComponentsRequest struct{}

func (r ListComponentsRequest) ToProto() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}

// ComponentInfo describes a registered component and what the dispatcher last saw of it
type ComponentInfo struct {
	Name        string
	Kind        string // executor kind
	State       string
	Actions     []string
	LastAction  string
	LastOutcome string
}

func ComponentInfoFromProto(pb *structpb.Struct) ComponentInfo {
	return ComponentInfo{
		Name:        stringField(pb, "name"),
		Kind:        stringField(pb, "kind"),
		State:       stringField(pb, "state"),
		Actions:     stringListField(pb, "actions"),
		LastAction:  stringField(pb, "last_action"),
		LastOutcome: stringField(pb, "last_outcome"),
	}
}

func (c ComponentInfo) ToProto() *structpb.Struct {
	actions := make([]*structpb.Value, 0, len(c.Actions))
	for _, a := range c.Actions {
		actions = append(actions, structpb.NewStringValue(a))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":         structpb.NewStringValue(c.Name),
		"kind":         structpb.NewStringValue(c.Kind),
		"state":        structpb.NewStringValue(c.State),
		"actions":      structpb.NewListValue(&structpb.ListValue{Values: actions}),
		"last_action":  structpb.NewStringValue(c.LastAction),
		"last_outcome": structpb.NewStringValue(c.LastOutcome),
	}}
}

func (c ComponentInfo) String() string {
	lastOutcome := c.LastOutcome
	if lastOutcome == "" {
		lastOutcome = "-"
	}
	return fmt.Sprintf("%-20s %-7s %-8s last=%s actions=%v", c.Name, c.Kind, c.State, lastOutcome, c.Actions)
}

type ListComponentsResponse struct {
	Components []ComponentInfo
}

func ListComponentsResponseFromProto(pb *structpb.Struct) (ListComponentsResponse, error) {
	items, err := structListField(pb, "components")
	if err != nil {
		return ListComponentsResponse{}, err
	}
	components := make([]ComponentInfo, 0, len(items))
	for _, item := range items {
		components = append(components, ComponentInfoFromProto(item))
	}
	return ListComponentsResponse{Components: components}, nil
}

func (r ListComponentsResponse) ToProto() *structpb.Struct {
	values := make([]*structpb.Value, 0, len(r.Components))
	for _, c := range r.Components {
		values = append(values, structpb.NewStructValue(c.ToProto()))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"components": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// Field accessors. Missing or mistyped scalar fields read as zero values,
// params and lists of objects are checked since a silent default would change what gets run.

func stringField(pb *structpb.Struct, key string) string {
	return pb.GetFields()[key].GetStringValue()
}

func numberField(pb *structpb.Struct, key string) float64 {
	return pb.GetFields()[key].GetNumberValue()
}

// stringMapField reads an object of scalars. Numbers and bools are formatted the way they
// would be written on a command line (8080, true), nested objects, lists and nulls are rejected.
func stringMapField(pb *structpb.Struct, key string) (map[string]string, error) {
	value, ok := pb.GetFields()[key]
	if !ok {
		return nil, nil
	}
	if _, isNull := value.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, nil
	}
	obj := value.GetStructValue()
	if obj == nil {
		return nil, fmt.Errorf("%w: %s must be an object", ErrMalformedMessage, key)
	}
	if len(obj.GetFields()) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(obj.GetFields()))
	for k, v := range obj.GetFields() {
		switch kind := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			out[k] = kind.StringValue
		case *structpb.Value_NumberValue:
			out[k] = strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
		case *structpb.Value_BoolValue:
			out[k] = strconv.FormatBool(kind.BoolValue)
		default:
			return nil, fmt.Errorf("%w: %s.%s must be a string, number or bool", ErrMalformedMessage, key, k)
		}
	}
	return out, nil
}

func stringListField(pb *structpb.Struct, key string) []string {
	values := pb.GetFields()[key].GetListValue().GetValues()
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStringValue())
	}
	return out
}

// structListField fails on any item that is not an object, dropping it would shift the
// positions of the items after it.
func structListField(pb *structpb.Struct, key string) ([]*structpb.Struct, error) {
	values := pb.GetFields()[key].GetListValue().GetValues()
	out := make([]*structpb.Struct, 0, len(values))
	for i, v := range values {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("%w: %s[%d] must be an object", ErrMalformedMessage, key, i)
		}
		out = append(out, s)
	}
	return out, nil
}
