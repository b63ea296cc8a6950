package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// pathID returns the named URL parameter. Anything that is not a UUID
// cannot name a stored row, so it is reported as not found.
func pathID(r *http.Request, name string) (string, error) {
	id := chi.URLParam(r, name)
	if uuid.Validate(id) != nil {
		return "", common.ErrorNotFound
	}
	return id, nil
}

// refID checks an id referenced from a request body or query.
func refID(field, id, message string) error {
	if uuid.Validate(id) != nil {
		return common.Validation(field, message)
	}
	return nil
}

// optionalRefID is refID for references that may be left empty.
func optionalRefID(field, id, message string) error {
	if id == "" {
		return nil
	}
	return refID(field, id, message)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
