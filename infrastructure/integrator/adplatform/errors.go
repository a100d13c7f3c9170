package adplatform

import (
	"context"
	"errors"
	"fmt"
)

// Erros base compartilhados pelas implementações de plataforma
var (
	ErrUnsupportedPlatform = errors.New("unsupported ad platform")
	ErrRateLimited         = errors.New("rate limited by ad platform")
	ErrInvalidMedia        = errors.New("invalid media file")
)

// ErrorKind classifica uma falha de chamada à plataforma externa
type ErrorKind string

const (
	// KindTransient é retentável: timeout de rede, rate limit, 5xx
	KindTransient ErrorKind = "transient"

	// KindPermanent não é retentável: id inválido, autenticação, validação
	KindPermanent ErrorKind = "permanent"
)

// Error é o erro classificado retornado por toda implementação de Client
type Error struct {
	Kind ErrorKind
	Op   string // operação da plataforma que falhou (ex.: "upload_media")
	Err  error
}

// Error implementa a interface error
func (e *Error) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Op, e.Kind, e.Err.Error())
}

// Unwrap retorna o erro subjacente
func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransient cria um erro retentável para a operação informada
func NewTransient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// NewPermanent cria um erro não-retentável para a operação informada
func NewPermanent(op string, err error) *Error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// IsTransient indica se o erro é retentável. Prazos excedidos de contexto são
// sempre tratados como transitórios, mesmo sem classificação explícita.
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindTransient
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsPermanent indica se o erro é definitivo e não deve ser retentado
func IsPermanent(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindPermanent
	}
	return false
}
