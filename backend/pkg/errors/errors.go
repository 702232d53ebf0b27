package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeTransport represents voice gateway/connection errors
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeVoice represents voice session errors
	ErrorTypeVoice ErrorType = "voice"
	// ErrorTypeCapability represents external capability (STT/TTS/agent) errors
	ErrorTypeCapability ErrorType = "capability"
	// ErrorTypePipeline represents per-segment processing errors
	ErrorTypePipeline ErrorType = "pipeline"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Transport Errors

// ErrTransportJoinFailed is returned when the voice handshake fails
type ErrTransportJoinFailed struct {
	*BaseError
	GuildID   string
	ChannelID string
}

func NewTransportJoinFailed(guildID, channelID string, err error) *ErrTransportJoinFailed {
	return &ErrTransportJoinFailed{
		BaseError: NewBaseError(ErrorTypeTransport, fmt.Sprintf("voice join failed for channel %s", channelID), err),
		GuildID:   guildID,
		ChannelID: channelID,
	}
}

// ErrTransportDisconnected is returned when a connection drops without recovery
type ErrTransportDisconnected struct {
	*BaseError
	GuildID string
}

func NewTransportDisconnected(guildID string, err error) *ErrTransportDisconnected {
	return &ErrTransportDisconnected{
		BaseError: NewBaseError(ErrorTypeTransport, fmt.Sprintf("voice connection lost for guild %s", guildID), err),
		GuildID:   guildID,
	}
}

// Voice Errors

// ErrSessionNotFound is returned when an operation targets a guild with no session
type ErrSessionNotFound struct {
	*BaseError
	GuildID string
}

func NewSessionNotFound(guildID string) *ErrSessionNotFound {
	return &ErrSessionNotFound{
		BaseError: NewBaseError(ErrorTypeVoice, fmt.Sprintf("no voice session for guild %s", guildID), nil),
		GuildID:   guildID,
	}
}

// Capability Errors

// ErrTranscriptionFailed is returned when the STT capability fails
type ErrTranscriptionFailed struct {
	*BaseError
	AudioPath string
}

func NewTranscriptionFailed(audioPath string, err error) *ErrTranscriptionFailed {
	return &ErrTranscriptionFailed{
		BaseError: NewBaseError(ErrorTypeCapability, "transcription request failed", err),
		AudioPath: audioPath,
	}
}

// ErrSynthesisFailed is returned when the TTS capability fails
type ErrSynthesisFailed struct {
	*BaseError
}

func NewSynthesisFailed(err error) *ErrSynthesisFailed {
	return &ErrSynthesisFailed{
		BaseError: NewBaseError(ErrorTypeCapability, "speech synthesis failed", err),
	}
}

// ErrReplyFailed is returned when the reply agent fails
type ErrReplyFailed struct {
	*BaseError
	Model string
}

func NewReplyFailed(model string, err error) *ErrReplyFailed {
	return &ErrReplyFailed{
		BaseError: NewBaseError(ErrorTypeCapability, "reply generation failed", err),
		Model:     model,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Context Errors

// ErrContextTimeout is returned when a bounded wait times out
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), nil),
		Operation: operation,
		Timeout:   timeout,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if baseErr, ok := err.(*BaseError); ok {
		return baseErr.Type == errType
	}
	// Check wrapped errors
	if wrapped, ok := err.(interface{ Unwrap() error }); ok {
		inner := wrapped.Unwrap()
		if inner == nil {
			return false
		}
		return IsErrorType(inner, errType)
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	// Transport failures may recover on a fresh handshake
	if IsErrorType(err, ErrorTypeTransport) {
		return true
	}
	// Capability calls can be retried by the caller's discipline
	if IsErrorType(err, ErrorTypeCapability) {
		return true
	}
	return false
}
