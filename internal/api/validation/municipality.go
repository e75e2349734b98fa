package validation

import "strings"

// StatusUpsertRequest mirrors the fields needed for municipal status
// validation.
type StatusUpsertRequest struct {
	Municipality string
	Day          string
}

// ValidateStatusUpsertRequest validates a municipal status upsert.
func ValidateStatusUpsertRequest(req StatusUpsertRequest) []FieldError {
	var errs []FieldError

	name := strings.TrimSpace(req.Municipality)
	if name == "" {
		errs = append(errs, FieldError{Field: "municipality", Message: "municipality is required"})
	} else if len(name) > 255 {
		errs = append(errs, FieldError{Field: "municipality", Message: "municipality must be at most 255 characters"})
	}

	if strings.TrimSpace(req.Day) == "" {
		errs = append(errs, FieldError{Field: "day", Message: "day is required"})
	}

	return errs
}

// ContactEntry mirrors one contact-list entry for validation.
type ContactEntry struct {
	Name  string
	Email string
}

// ValidateContacts validates a replacement contact list.
func ValidateContacts(contacts []ContactEntry) []FieldError {
	var errs []FieldError

	for _, c := range contacts {
		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, FieldError{Field: "contacts", Message: "every contact needs a name"})
			break
		}
		if c.Email != "" && !emailRegex.MatchString(c.Email) {
			errs = append(errs, FieldError{Field: "contacts", Message: "contact email must be a valid address"})
			break
		}
	}

	return errs
}
