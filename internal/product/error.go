package product

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
	ErrVariantInUse    = errors.New("variant is referenced by existing orders")
	ErrDuplicateSKU    = errors.New("sku already exists")
	ErrInvalidVariant  = errors.New("invalid variant")
)
