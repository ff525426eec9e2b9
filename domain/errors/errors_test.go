package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
)

func TestToErrorDetail(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		assert.Nil(t, ToErrorDetail(nil))
	})

	t.Run("ErrorDetailPassthrough", func(t *testing.T) {
		detail := entities.NewErrorDetail("config", "bad value")
		assert.Same(t, detail, ToErrorDetail(detail))
	})

	t.Run("WrappedErrorDetail", func(t *testing.T) {
		detail := entities.NewErrorDetail("job", "gone")
		wrapped := fmt.Errorf("handling request: %w", detail)
		assert.Same(t, detail, ToErrorDetail(wrapped))
	})

	t.Run("GenericError", func(t *testing.T) {
		detail := ToErrorDetail(stdErrors.New("something broke"))
		require.NotNil(t, detail)
		assert.Equal(t, "internal", detail.Type)
		assert.Equal(t, "something broke", detail.Message)
	})
}

func TestConfigError(t *testing.T) {
	inner := stdErrors.New("unknown option")
	err := &ConfigError{Err: inner, Field: "log-level"}

	assert.Contains(t, err.Error(), "log-level")
	assert.True(t, stdErrors.Is(err, inner))

	detail := err.ToErrorDetail()
	assert.Equal(t, "config", detail.Type)
	assert.Equal(t, "log-level", detail.Code)
}

func TestWireFormatError(t *testing.T) {
	inner := stdErrors.New("unexpected end of JSON input")
	err := &WireFormatError{Err: inner, Operation: "decode", Type: "request"}

	assert.Contains(t, err.Error(), "decode")
	assert.True(t, stdErrors.Is(err, inner))
	assert.Equal(t, "wire_format", err.ToErrorDetail().Code)
}

func TestProtocolError(t *testing.T) {
	err := &ProtocolError{Reason: "message too large", Size: 100, Limit: 10}
	assert.Contains(t, err.Error(), "message too large")
	assert.Contains(t, err.Error(), "100")

	detail := err.ToErrorDetail()
	assert.Equal(t, "protocol", detail.Type)
}

func TestJobNotFoundError(t *testing.T) {
	err := &JobNotFoundError{JobID: "42", Username: "bob"}
	assert.Equal(t, "job 42 could not be found for user bob", err.Error())

	detail := err.ToErrorDetail()
	assert.Equal(t, "job", detail.Type)
	assert.True(t, detail.IsNotFound)
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Operation: "bootstrap", Duration: 5 * time.Second}
	assert.True(t, err.Timeout())

	detail := err.ToErrorDetail()
	assert.Equal(t, "timeout", detail.Type)
	assert.True(t, detail.IsTimeout)

	// Conversion through the generic path finds the DetailedError.
	wrapped := fmt.Errorf("request failed: %w", err)
	assert.True(t, ToErrorDetail(wrapped).IsTimeout)
}
