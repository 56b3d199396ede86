package dto

import (
	"github.com/jsamuelsen/bibresolve/internal/domain"
)

// MaxBatchIdentifiers caps POST /resolve/batch.
const MaxBatchIdentifiers = 50

// ResolveQuery is the query string of the GET resolve endpoints.
type ResolveQuery struct {
	Q          string `form:"q"           json:"q"           validate:"required,notempty,identifier"`
	Pure       bool   `form:"pure"        json:"pure"`
	DateFormat string `form:"date_format" json:"date_format" validate:"dateformat"`
}

// BatchRequest is the body of POST /resolve/batch.
type BatchRequest struct {
	Identifiers []string `json:"identifiers"           validate:"required,min=1,max=50,dive,notempty,identifier"`
	DateFormat  string   `json:"date_format,omitempty" validate:"dateformat"`
}

// BatchItem is one entry of a batch response. Exactly one of Record and
// Error is set.
type BatchItem struct {
	Input  string         `json:"input"`
	Record *domain.Record `json:"record,omitempty"`
	Error  *ErrorDetail   `json:"error,omitempty"`
}

// BatchResponse is the body returned by POST /resolve/batch.
type BatchResponse struct {
	Items  []BatchItem `json:"items"`
	Failed int         `json:"failed"`
}

// AuthorsResponse is the body returned by POST /authors. A null list means
// no byline was found.
type AuthorsResponse struct {
	Authors []domain.Name `json:"authors"`
}

// NewBatchItem converts one resolved entry. A catalog notice is reported as
// an item error carrying the notice lines.
func NewBatchItem(input string, rec *domain.Record, msg *domain.UserMessage, err error) BatchItem {
	item := BatchItem{Input: input}

	switch {
	case err != nil:
		_, resp := MapDomainError(err)
		item.Error = &resp.Error
	case msg != nil:
		item.Error = &NewMessageResponse(msg).Error
	default:
		item.Record = rec
	}

	return item
}

// FormatQuery is the query string of endpoints keyed by a path parameter.
type FormatQuery struct {
	DateFormat string `form:"date_format" json:"date_format" validate:"dateformat"`
}
