package validation

import "strings"

// SwapRequest mirrors the fields needed for slot-swap validation.
type SwapRequest struct {
	Kind     string
	Day      string
	Shift    string
	FromSlot int
	ToSlot   int
}

// ValidateSwapRequest validates a roster slot-swap request.
func ValidateSwapRequest(req SwapRequest) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(req.Kind) == "" {
		errs = append(errs, FieldError{Field: "kind", Message: "kind is required"})
	}
	if strings.TrimSpace(req.Day) == "" {
		errs = append(errs, FieldError{Field: "day", Message: "day is required"})
	}
	if strings.TrimSpace(req.Shift) == "" {
		errs = append(errs, FieldError{Field: "shift", Message: "shift is required"})
	}
	if req.FromSlot < 1 {
		errs = append(errs, FieldError{Field: "fromSlot", Message: "fromSlot must be a positive slot number"})
	}
	if req.ToSlot < 1 {
		errs = append(errs, FieldError{Field: "toSlot", Message: "toSlot must be a positive slot number"})
	}
	if req.FromSlot >= 1 && req.FromSlot == req.ToSlot {
		errs = append(errs, FieldError{Field: "toSlot", Message: "toSlot must differ from fromSlot"})
	}

	return errs
}
