package domain

// Result is the uniform JSON shape returned by every workflow action:
// {"success": true, ...payload} or {"success": false, "error": "..."}.
type Result map[string]interface{}

// Failure converts err into the failure shape
func Failure(err error) Result {
	return Result{
		"success": false,
		"error":   UserMessage(err),
	}
}

// Success wraps payload into the success shape. payload is copied.
func Success(payload map[string]interface{}) Result {
	r := make(Result, len(payload)+1)
	for k, v := range payload {
		r[k] = v
	}
	r["success"] = true
	return r
}

// Succeeded reports whether the result carries success=true
func (r Result) Succeeded() bool {
	ok, _ := r["success"].(bool)
	return ok
}

// ErrorMessage returns the error string of a failed result
func (r Result) ErrorMessage() string {
	msg, _ := r["error"].(string)
	return msg
}

// Map returns the nested object stored under key, nil when absent or not an object
func (r Result) Map(key string) map[string]interface{} {
	m, _ := r[key].(map[string]interface{})
	return m
}

// String returns the string stored under key, empty when absent or not a string
func (r Result) String(key string) string {
	s, _ := r[key].(string)
	return s
}
