package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Details       any    `json:"details,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeMissingField        = "MISSING_FIELD"
	ErrCodeInvalidID           = "INVALID_ID"
	ErrCodeInvalidIdentity     = "INVALID_IDENTITY"
	ErrCodeCartNotFound        = "CART_NOT_FOUND"
	ErrCodeCartItemNotFound    = "CART_ITEM_NOT_FOUND"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeProductInactive     = "PRODUCT_INACTIVE"
	ErrCodeInsufficientStock   = "INSUFFICIENT_STOCK"
	ErrCodeInvalidQuantity     = "INVALID_QUANTITY"
	ErrCodeEmptyCart           = "EMPTY_CART"
	ErrCodeInvalidCart         = "INVALID_CART"
	ErrCodeCustomerNotFound    = "CUSTOMER_NOT_FOUND"
	ErrCodeAddressNotFound     = "ADDRESS_NOT_FOUND"
	ErrCodeInvalidPayment      = "INVALID_PAYMENT_METHOD"
	ErrCodeInvalidDelivery     = "INVALID_DELIVERY_TYPE"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeInvalidTransition   = "INVALID_STATUS_TRANSITION"
	ErrCodeInvalidStatus       = "INVALID_STATUS"
	ErrCodeOrderNotCancellable = "ORDER_NOT_CANCELLABLE"
	ErrCodeOrderNumberConflict = "ORDER_NUMBER_CONFLICT"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	ErrCodeInvalidQuery        = "INVALID_QUERY"
	ErrCodeSearchTermTooShort  = "SEARCH_TERM_TOO_SHORT"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// ErrorKind classifies domain errors so transports can pick a status code.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindForbidden
	KindConflict
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Kind    ErrorKind
	Message string
	Details any
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so enriched copies still
// match their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of the error with a more specific message.
func (e *DomainError) WithMessage(message string) *DomainError {
	cp := *e
	cp.Message = message
	return &cp
}

// WithDetails returns a copy of the error carrying structured details.
func (e *DomainError) WithDetails(details any) *DomainError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewDomainError creates a new domain error
func NewDomainError(code string, kind ErrorKind, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInvalidIdentity     = NewDomainError(ErrCodeInvalidIdentity, KindValidation, "Exactly one of user or session must identify the cart")
	ErrCartNotFound        = NewDomainError(ErrCodeCartNotFound, KindNotFound, "Cart not found")
	ErrCartItemNotFound    = NewDomainError(ErrCodeCartItemNotFound, KindNotFound, "Item not found in cart")
	ErrProductNotFound     = NewDomainError(ErrCodeProductNotFound, KindNotFound, "Product not found")
	ErrProductInactive     = NewDomainError(ErrCodeProductInactive, KindValidation, "Product is not available")
	ErrInsufficientStock   = NewDomainError(ErrCodeInsufficientStock, KindValidation, "Insufficient stock")
	ErrInvalidQuantity     = NewDomainError(ErrCodeInvalidQuantity, KindValidation, "Quantity must be between 1 and 100")
	ErrEmptyCart           = NewDomainError(ErrCodeEmptyCart, KindValidation, "Cart is empty")
	ErrInvalidCart         = NewDomainError(ErrCodeInvalidCart, KindValidation, "Cart contains items that cannot be ordered")
	ErrCustomerNotFound    = NewDomainError(ErrCodeCustomerNotFound, KindNotFound, "Customer not found")
	ErrAddressNotFound     = NewDomainError(ErrCodeAddressNotFound, KindValidation, "Shipping address not found")
	ErrInvalidPayment      = NewDomainError(ErrCodeInvalidPayment, KindValidation, "Invalid payment method")
	ErrInvalidDelivery     = NewDomainError(ErrCodeInvalidDelivery, KindValidation, "Invalid delivery type")
	ErrOrderNotFound       = NewDomainError(ErrCodeOrderNotFound, KindNotFound, "Order not found")
	ErrInvalidTransition   = NewDomainError(ErrCodeInvalidTransition, KindValidation, "Invalid order status transition")
	ErrInvalidStatus       = NewDomainError(ErrCodeInvalidStatus, KindValidation, "Unknown status")
	ErrOrderNotCancellable = NewDomainError(ErrCodeOrderNotCancellable, KindValidation, "Order cannot be cancelled in its current status")
	ErrOrderNumberConflict = NewDomainError(ErrCodeOrderNumberConflict, KindConflict, "Could not allocate a unique order number")
	ErrForbidden           = NewDomainError(ErrCodeForbidden, KindForbidden, "Not allowed to access this order")
	ErrSearchTermTooShort  = NewDomainError(ErrCodeSearchTermTooShort, KindValidation, "Search term must be at least 2 characters")
	ErrInvalidDateRange    = NewDomainError(ErrCodeInvalidQuery, KindValidation, "startDate must be before endDate")
)
