package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrMissingCSRFToken = fmt.Errorf("missing CSRF token")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrMissingRecord      = fmt.Errorf("response contained no record")
	ErrRecordNotFound     = fmt.Errorf("record not found")

	// Generation errors
	ErrBusy         = fmt.Errorf("a generation is already in progress")
	ErrEmptyPrompt  = fmt.Errorf("请输入用于生成的关键词或描述")
	ErrInvalidModel = fmt.Errorf("model not available for mode")

	// Input validation errors
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrInvalidMediaType = fmt.Errorf("invalid media type")
	ErrEmptySelection   = fmt.Errorf("no records selected")
	ErrMissingArgument  = fmt.Errorf("missing required argument")
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrCancelled        = fmt.Errorf("cancelled by user")
)
