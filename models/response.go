package models

// APIResponse is the envelope around every REST reply.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func SuccessResponse(data any) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

func ErrorResponse(msg string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   msg,
	}
}

// ErrorFrom wraps err's message; import and generation errors carry the cause
// after the sentinel text, which the editor shows inline.
func ErrorFrom(err error) APIResponse {
	return ErrorResponse(err.Error())
}

func MessageResponse(message string) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
	}
}
