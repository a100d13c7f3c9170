package publishing

import (
	"errors"
	"fmt"

	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

// Erros específicos para o contexto de publicação
var (
	// Erros de validação do publish request
	ErrPlatformRequired        = errors.New("platform is required")
	ErrUnsupportedPlatform     = errors.New("unsupported platform")
	ErrCampaignIDRequired      = errors.New("campaign ID is required")
	ErrAdSetIDRequired         = errors.New("ad set ID is required")
	ErrMediaPathRequired       = errors.New("media path is required")
	ErrCreativeTitleRequired   = errors.New("creative title is required")
	ErrCreativeMessageRequired = errors.New("creative message is required")
	ErrAdNameRequired          = errors.New("ad name is required")

	// Erros de ciclo de vida do job
	ErrJobNotFound  = errors.New("publish job not found")
	ErrJobTerminal  = errors.New("job already in terminal state")
	ErrJobNotFailed = errors.New("job is not in failed state")

	// Erros de banco de dados
	ErrDatabaseOperation = errors.New("database operation error")
)

// ValidationError é rejeitado de forma síncrona ao chamador do publish
// request, antes de qualquer chamada à plataforma
type ValidationError struct {
	Field string
	Err   error
}

// Error implementa a interface error
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
	}
	return e.Err.Error()
}

// Unwrap retorna o erro subjacente
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError cria um erro de validação para o campo informado
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// ConflictError indica uma transição de estado ilegal solicitada pela API
// (ex.: cancelar um job já terminal, retentar um job não-failed)
type ConflictError struct {
	JobID string
	State domain.JobState
	Err   error
}

// Error implementa a interface error
func (e *ConflictError) Error() string {
	return fmt.Sprintf("job %s (state %s): %s", e.JobID, e.State, e.Err.Error())
}

// Unwrap retorna o erro subjacente
func (e *ConflictError) Unwrap() error {
	return e.Err
}

// NewConflictError cria um erro de conflito de estado para o job informado
func NewConflictError(jobID string, state domain.JobState, err error) *ConflictError {
	return &ConflictError{JobID: jobID, State: state, Err: err}
}

// IsValidation indica se o erro é de validação de entrada
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict indica se o erro é de transição de estado ilegal
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
