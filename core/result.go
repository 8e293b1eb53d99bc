package core

import "encoding/json"

// Result is the uniform outcome of a function execution. Exactly one variant
// is populated: Success with Data, or failure with Error.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`

	// Kind classifies a failure (see ErrorKind). It is not serialized so the
	// model layer only ever sees the message.
	Kind string `json:"-"`
}

// Succeed wraps handler data into the success variant. A nil map is replaced
// by an empty one so consumers can always index Data.
func Succeed(data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{Success: true, Data: data}
}

// Fail converts err into the failure variant using its user-facing message.
func Fail(err error) Result {
	if err == nil {
		return Result{Success: false, Error: "unknown error", Kind: KindInternal}
	}
	return Result{Success: false, Error: PublicMessage(err), Kind: ErrorKind(err)}
}

// MarshalJSON guarantees the {success,data} / {success,error} wire shape.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Success {
		data := r.Data
		if data == nil {
			data = map[string]any{}
		}
		return json.Marshal(struct {
			Success bool           `json:"success"`
			Data    map[string]any `json:"data"`
		}{true, data})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{false, r.Error})
}
