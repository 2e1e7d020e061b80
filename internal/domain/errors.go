package domain

import "errors"

var (
	// ErrMalformedMandates: данные мандатов не разобрать. Это "не могу проверить авторизацию",
	// а не "разрешено": хост обязан отказать.
	ErrMalformedMandates = errors.New("cannot verify authorization: malformed mandates")
	ErrMandatesRequired  = errors.New("agent mandates are required to purchase a product")
	ErrMandateRevoked    = errors.New("mandate has been revoked")
	ErrMandateNotFound   = errors.New("mandate not found")
	ErrInvalidMandate    = errors.New("invalid mandate data")
	ErrInvalidOrder      = errors.New("invalid purchase order")
)
