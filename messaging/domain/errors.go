package domain

import "errors"

var (
	// ErrMessageNotFound se retorna cuando no existe el mensaje
	ErrMessageNotFound = errors.New("message not found")

	// ErrTemplateNotFound se retorna cuando no existe la plantilla
	ErrTemplateNotFound = errors.New("template not found")

	// ErrDuplicateTemplate se retorna al crear una plantilla con nombre repetido
	ErrDuplicateTemplate = errors.New("template with this name already exists")

	// ErrMissingTemplateVariables se retorna cuando quedan placeholders sin reemplazar
	ErrMissingTemplateVariables = errors.New("missing template variables")

	// ErrInvalidStatus se retorna con un status desconocido
	ErrInvalidStatus = errors.New("invalid message status")
)
